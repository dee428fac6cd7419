package handlers

import (
	"errors"
	"fmt"

	"direct-chat/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// respondError writes the {message, field} body for err. Internal causes are
// logged and never sent to the client.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	_ = c.Error(err)

	msg, field := apperr.Public(err)
	body := gin.H{"message": msg}
	if field != "" {
		body["field"] = field
	}
	c.AbortWithStatusJSON(kind.HTTPStatus(), body)
}

// bindError converts a gin binding failure into a validation error naming
// the first offending field.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("invalid body")
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return apperr.ValidationField(field, field+" is required")
	case "email":
		return apperr.ValidationField(field, field+" must be a valid email")
	case "min":
		return apperr.ValidationField(field, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
	case "max":
		return apperr.ValidationField(field, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	default:
		return apperr.ValidationField(field, field+" is invalid")
	}
}
