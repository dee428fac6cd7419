package handlers

import (
	"context"
	"net/http"
	"strconv"

	"direct-chat/internal/apperr"
	"direct-chat/internal/http/middleware"
	"direct-chat/internal/metrics"
	"direct-chat/internal/models"
	"direct-chat/internal/store"
	"direct-chat/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errNotMember = apperr.Unauthorized("not a member of this conversation")

type ChatHandler struct {
	Store *store.Store
	Hub   *ws.Hub
	Log   *zap.Logger
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	me := middleware.MustActingUser(c)

	convs, err := h.Store.ListConversations(c.Request.Context(), me.ID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

type createConversationReq struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	me := middleware.MustActingUser(c)

	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Log, bindError(err))
		return
	}

	conv, created, err := h.Store.CreateConversation(c.Request.Context(), me.ID, req.ParticipantID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, conv)
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, err := h.authorize(c)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	conv, err := h.authorize(c)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	page, err := pageFromQuery(c)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	msgs, err := h.Store.ListMessages(c.Request.Context(), conv.ID, page)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type sendMessageReq struct {
	Content string `json:"content" binding:"required"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	me := middleware.MustActingUser(c)

	conv, err := h.authorize(c)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Log, bindError(err))
		return
	}

	msg, err := h.Store.CreateMessage(c.Request.Context(), me.ID, conv.ID, req.Content)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	metrics.MessagesCreated.Inc()

	c.JSON(http.StatusCreated, msg)

	n := h.Hub.Publish(conv.ID, msg)
	h.Log.Debug("message published",
		zap.Uint("conversation_id", conv.ID),
		zap.Uint("message_id", msg.ID),
		zap.Int("subscribers", n))
}

// authorize loads the :id conversation and checks the acting user is a
// member. Missing conversations are 404, non-members 401, on every route.
func (h *ChatHandler) authorize(c *gin.Context) (*models.Conversation, error) {
	me := middleware.MustActingUser(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return nil, store.ErrConversationNotFound
	}
	return authorizeMember(c.Request.Context(), h.Store, uint(id), me.ID)
}

func authorizeMember(ctx context.Context, s *store.Store, id uint, userID string) (*models.Conversation, error) {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(userID) {
		return nil, errNotMember
	}
	return conv, nil
}

func pageFromQuery(c *gin.Context) (store.Page, error) {
	var page store.Page
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, apperr.ValidationField("limit", "limit must be a non-negative integer")
		}
		page.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, apperr.ValidationField("offset", "offset must be a non-negative integer")
		}
		page.Offset = n
	}
	return page, nil
}
