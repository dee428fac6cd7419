package ws

import (
	"context"
	"sync"
	"time"

	"direct-chat/internal/metrics"

	"go.uber.org/zap"
)

const EventMessageNew = "message:new"

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingInterval = 25 * time.Second
	pingTimeout  = 5 * time.Second
)

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Conn is the transport a Client pushes events over.
type Conn interface {
	WriteJSON(ctx context.Context, v interface{}) error
	Ping(ctx context.Context) error
	Close(reason string) error
}

type Client struct {
	UserID string
	conn   Conn
	send   chan Event

	ctx    context.Context
	cancel context.CancelFunc

	// guarded by Hub.mu
	joined  map[uint]struct{}
	removed bool
}

// Hub fans events out to the live connections subscribed to a conversation.
// Delivery is best effort: a client that is not subscribed at publish time,
// or whose queue is full, misses the event and catches up by re-fetching.
type Hub struct {
	mu            sync.RWMutex
	conversations map[uint]map[*Client]struct{}
	clients       map[*Client]struct{}

	log          *zap.Logger
	pingInterval time.Duration
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		conversations: map[uint]map[*Client]struct{}{},
		clients:       map[*Client]struct{}{},
		log:           log.Named("hub"),
		pingInterval:  pingInterval,
	}
}

// AddClient tracks conn and starts its writer. The client receives nothing
// until it joins a conversation.
func (h *Hub) AddClient(userID string, conn Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan Event, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
		joined: map[uint]struct{}{},
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.PushConnections.Inc()

	go h.writeLoop(c)
	go h.keepAliveLoop(c)

	return c
}

// Join subscribes c to conversationID. It returns false for a client that
// has already been removed.
func (h *Hub) Join(c *Client, conversationID uint) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.removed {
		return false
	}
	set := h.conversations[conversationID]
	if set == nil {
		set = map[*Client]struct{}{}
		h.conversations[conversationID] = set
	}
	set[c] = struct{}{}
	c.joined[conversationID] = struct{}{}
	return true
}

// RemoveClient drops c from every conversation it joined and closes it.
// Once it returns, no later Publish reaches c. Safe to call twice.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if c.removed {
		h.mu.Unlock()
		return
	}
	c.removed = true
	for id := range c.joined {
		if set, ok := h.conversations[id]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.conversations, id)
			}
		}
	}
	c.joined = map[uint]struct{}{}
	delete(h.clients, c)
	h.mu.Unlock()

	metrics.PushConnections.Dec()
	c.cancel()
	_ = c.conn.Close("bye")
}

// Publish queues a message:new event for every open subscriber of
// conversationID and returns how many were queued.
func (h *Hub) Publish(conversationID uint, data interface{}) int {
	return h.Broadcast(conversationID, Event{Type: EventMessageNew, Data: data})
}

func (h *Hub) Broadcast(conversationID uint, ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	queued := 0
	for c := range h.conversations[conversationID] {
		// Closed transports are reaped by RemoveClient, not here.
		if c.ctx.Err() != nil {
			metrics.PushEvents.WithLabelValues("skipped_closed").Inc()
			continue
		}
		select {
		case c.send <- ev:
			queued++
			metrics.PushEvents.WithLabelValues("queued").Inc()
		default:
			metrics.PushEvents.WithLabelValues("dropped").Inc()
			h.log.Warn("push queue full, dropping event",
				zap.String("user_id", c.UserID),
				zap.Uint("conversation_id", conversationID),
				zap.String("event", ev.Type))
		}
	}
	return queued
}

// Subscribers returns the number of clients joined to conversationID.
func (h *Hub) Subscribers(conversationID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conversations[conversationID])
}

// Joined returns the conversations c is subscribed to.
func (h *Hub) Joined(c *Client) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uint, 0, len(c.joined))
	for id := range c.joined {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) writeLoop(c *Client) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.send:
			writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.WriteJSON(writeCtx, ev)
			cancel()
			if err != nil && c.ctx.Err() == nil {
				h.log.Debug("push write failed", zap.String("user_id", c.UserID), zap.Error(err))
			}
		}
	}
}

func (h *Hub) keepAliveLoop(c *Client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, pingTimeout)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}
