package handlers

import (
	"context"
	"errors"

	"direct-chat/internal/http/middleware"
	"direct-chat/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const maxSignalSize = 4096

// MembershipChecker answers whether a user may subscribe to a conversation.
type MembershipChecker interface {
	IsMember(ctx context.Context, conversationID uint, userID string) (bool, error)
}

type WSHandler struct {
	Hub                  *ws.Hub
	Members              MembershipChecker
	RequireMembership    bool
	WSInsecureSkipVerify bool
	OriginPatterns       []string
	Log                  *zap.Logger
}

func (h *WSHandler) Handle(c *gin.Context) {
	me := middleware.MustActingUser(c)

	opts := &websocket.AcceptOptions{
		InsecureSkipVerify: h.WSInsecureSkipVerify,
		OriginPatterns:     h.OriginPatterns,
	}
	conn, err := websocket.Accept(c.Writer, c.Request, opts)
	if err != nil {
		return // Accept has already written the error response
	}
	conn.SetReadLimit(maxSignalSize)

	client := h.Hub.AddClient(me.ID, ws.NewConn(conn))
	defer h.Hub.RemoveClient(client)

	log := h.Log.With(zap.String("user_id", me.ID))
	log.Debug("push connection opened")

	ctx := c.Request.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				log.Debug("push connection closed")
			} else {
				log.Info("push connection lost", zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			log.Warn("ignoring non-text push frame")
			continue
		}

		sig, err := ws.ParseSignal(data)
		if err != nil {
			log.Warn("ignoring push signal", zap.Error(err))
			continue
		}
		h.join(ctx, log, client, me.ID, sig.ConversationID)
	}
}

func (h *WSHandler) join(ctx context.Context, log *zap.Logger, client *ws.Client, userID string, conversationID uint) {
	log = log.With(zap.Uint("conversation_id", conversationID))
	if h.RequireMembership {
		ok, err := h.Members.IsMember(ctx, conversationID, userID)
		if err != nil {
			log.Warn("join rejected", zap.Error(err))
			return
		}
		if !ok {
			log.Warn("join rejected: not a member")
			return
		}
	}
	if h.Hub.Join(client, conversationID) {
		log.Debug("joined conversation")
	}
}
