package handlers

import (
	"errors"
	"net/http"

	"direct-chat/internal/apperr"
	"direct-chat/internal/http/middleware"
	"direct-chat/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	Store *store.Store
	Log   *zap.Logger
}

func (h *UserHandler) Search(c *gin.Context) {
	users, err := h.Store.SearchUsers(c.Request.Context(), c.Query("query"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Me(c *gin.Context) {
	me := middleware.MustActingUser(c)

	u, err := h.Store.GetUser(c.Request.Context(), me.ID)
	if errors.Is(err, store.ErrUserNotFound) {
		// A valid token for a deleted account is not a session.
		err = apperr.Unauthorized("invalid session")
	}
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type ContactHandler struct {
	Store *store.Store
	Log   *zap.Logger
}

func (h *ContactHandler) List(c *gin.Context) {
	me := middleware.MustActingUser(c)

	users, err := h.Store.GetContacts(c.Request.Context(), me.ID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

type addContactReq struct {
	Username string `json:"username" binding:"required"`
}

func (h *ContactHandler) Add(c *gin.Context) {
	me := middleware.MustActingUser(c)

	var req addContactReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Log, bindError(err))
		return
	}

	u, err := h.Store.AddContact(c.Request.Context(), me.ID, req.Username)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}
