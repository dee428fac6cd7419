package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type wsConn struct {
	c *websocket.Conn
}

// NewConn adapts a websocket connection to the Hub transport.
func NewConn(c *websocket.Conn) Conn {
	return wsConn{c: c}
}

func (w wsConn) WriteJSON(ctx context.Context, v interface{}) error {
	return wsjson.Write(ctx, w.c, v)
}

func (w wsConn) Ping(ctx context.Context) error {
	return w.c.Ping(ctx)
}

func (w wsConn) Close(reason string) error {
	return w.c.Close(websocket.StatusNormalClosure, reason)
}

const SignalJoin = "join"

// Signal is a client-to-server control message.
type Signal struct {
	Type           string `json:"type"`
	ConversationID uint   `json:"conversationId"`
}

var ErrMalformedSignal = errors.New("malformed signal")

func ParseSignal(b []byte) (Signal, error) {
	var sig Signal
	if err := json.Unmarshal(b, &sig); err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrMalformedSignal, err)
	}
	switch sig.Type {
	case SignalJoin:
		if sig.ConversationID == 0 {
			return Signal{}, fmt.Errorf("%w: join without conversationId", ErrMalformedSignal)
		}
	default:
		return Signal{}, fmt.Errorf("%w: unknown type %q", ErrMalformedSignal, sig.Type)
	}
	return sig, nil
}
