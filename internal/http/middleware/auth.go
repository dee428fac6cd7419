package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const actingUserKey = "actingUser"

// ActingUser is the authenticated caller, resolved once per request.
type ActingUser struct {
	ID string
}

// TokenParser turns a session token into a user id.
type TokenParser interface {
	Parse(token string) (string, error)
}

// AuthMiddleware resolves the session from the cookie, a Bearer header, or a
// token query parameter (browsers cannot set headers on websocket upgrades).
func AuthMiddleware(tokens TokenParser, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := sessionToken(c, cookieName)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing session"})
			return
		}

		userID, err := tokens.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid session"})
			return
		}

		c.Set(actingUserKey, ActingUser{ID: userID})
		c.Next()
	}
}

func sessionToken(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}

func ActingUserFrom(c *gin.Context) (ActingUser, bool) {
	v, ok := c.Get(actingUserKey)
	if !ok {
		return ActingUser{}, false
	}
	u, ok := v.(ActingUser)
	return u, ok
}

// MustActingUser is for handlers mounted behind AuthMiddleware.
func MustActingUser(c *gin.Context) ActingUser {
	u, ok := ActingUserFrom(c)
	if !ok {
		panic("middleware: no acting user on context")
	}
	return u
}
