package handlers

import (
	"net/http"

	"direct-chat/internal/auth"
	"direct-chat/internal/models"
	"direct-chat/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	Store        *store.Store
	Tokens       *auth.Issuer
	CookieName   string
	CookieSecure bool
	Log          *zap.Logger
}

type registerReq struct {
	Username  string `json:"username" binding:"required,min=3,max=64"`
	Email     string `json:"email" binding:"required,email,max=190"`
	Password  string `json:"password" binding:"required,min=6,max=72"`
	FirstName string `json:"firstName" binding:"max=120"`
	LastName  string `json:"lastName" binding:"max=120"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Log, bindError(err))
		return
	}

	u, err := h.Store.RegisterUser(c.Request.Context(), store.NewUser{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	if _, err := h.startSession(c, u); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

type loginReq struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Log, bindError(err))
		return
	}

	u, err := h.Store.Authenticate(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	token, err := h.startSession(c, u)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken": token,
		"user":        u,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.CookieName, "", -1, "/", "", h.CookieSecure, true)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) startSession(c *gin.Context, u *models.User) (string, error) {
	token, err := h.Tokens.Issue(u.ID)
	if err != nil {
		return "", err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.CookieName, token, int(h.Tokens.TTL().Seconds()), "/", "", h.CookieSecure, true)
	return token, nil
}
