package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	events chan Event
	block  chan struct{}

	mu     sync.Mutex
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan Event, 256)}
}

func (f *fakeConn) WriteJSON(ctx context.Context, v interface{}) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ev, ok := v.(Event)
	if !ok {
		return errors.New("unexpected payload")
	}
	f.events <- ev
	return nil
}

func (f *fakeConn) Ping(context.Context) error { return nil }

func (f *fakeConn) Close(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func next(t *testing.T, f *fakeConn) Event {
	t.Helper()
	select {
	case ev := <-f.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNothing(t *testing.T, f *fakeConn) {
	t.Helper()
	select {
	case ev := <-f.events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishReachesJoinedClientsOnly(t *testing.T) {
	h := NewHub(nil)
	inConv, elsewhere, idle := newFakeConn(), newFakeConn(), newFakeConn()

	a := h.AddClient("a", inConv)
	b := h.AddClient("b", elsewhere)
	h.AddClient("c", idle)
	require.True(t, h.Join(a, 1))
	require.True(t, h.Join(b, 2))

	n := h.Publish(1, "hello")
	assert.Equal(t, 1, n)

	ev := next(t, inConv)
	assert.Equal(t, EventMessageNew, ev.Type)
	assert.Equal(t, "hello", ev.Data)
	assertNothing(t, elsewhere)
	assertNothing(t, idle)
}

func TestPublishOneEventPerCallInOrder(t *testing.T) {
	h := NewHub(nil)
	conn := newFakeConn()
	c := h.AddClient("a", conn)
	h.Join(c, 7)

	for i := 0; i < 20; i++ {
		h.Publish(7, i)
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, i, next(t, conn).Data)
	}
	assertNothing(t, conn)
}

func TestRemovedClientGetsNothing(t *testing.T) {
	h := NewHub(nil)
	conn := newFakeConn()
	c := h.AddClient("a", conn)
	h.Join(c, 1)

	h.RemoveClient(c)

	assert.Zero(t, h.Publish(1, "late"))
	assertNothing(t, conn)
	assert.True(t, conn.isClosed())
	assert.Zero(t, h.Subscribers(1))
	assert.Zero(t, h.Clients())
	assert.False(t, h.Join(c, 1), "join after removal is refused")

	h.RemoveClient(c)
}

func TestRemoveClearsEveryJoinedConversation(t *testing.T) {
	h := NewHub(nil)
	c := h.AddClient("a", newFakeConn())
	other := h.AddClient("b", newFakeConn())

	h.Join(c, 1)
	h.Join(c, 2)
	h.Join(c, 3)
	h.Join(other, 2)
	assert.ElementsMatch(t, []uint{1, 2, 3}, h.Joined(c))

	h.RemoveClient(c)

	assert.Zero(t, h.Subscribers(1))
	assert.Equal(t, 1, h.Subscribers(2))
	assert.Zero(t, h.Subscribers(3))
}

func TestIndependentHubs(t *testing.T) {
	h1, h2 := NewHub(nil), NewHub(nil)
	conn := newFakeConn()
	c := h1.AddClient("a", conn)
	h1.Join(c, 1)

	assert.Zero(t, h2.Publish(1, "x"))
	assertNothing(t, conn)
}

func TestFullQueueDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(nil)
	conn := newFakeConn()
	conn.block = make(chan struct{})
	c := h.AddClient("a", conn)
	h.Join(c, 1)

	queued := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sendBuffer*2; i++ {
			queued += h.Publish(1, i)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow client")
	}
	// One event may already sit in the blocked writer.
	assert.LessOrEqual(t, queued, sendBuffer+1)
	assert.GreaterOrEqual(t, queued, sendBuffer)

	close(conn.block)
	h.RemoveClient(c)
}

func TestConcurrentJoinPublishRemove(t *testing.T) {
	h := NewHub(nil)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := h.AddClient(fmt.Sprintf("u%d", i), newFakeConn())
			h.Join(c, uint(i%5)+1)
			h.Join(c, uint(i%3)+1)
			h.Publish(uint(i%5)+1, i)
			h.RemoveClient(c)
		}(i)
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Publish(uint(i%5)+1, i)
		}(i)
	}
	wg.Wait()

	for id := uint(1); id <= 5; id++ {
		assert.Zero(t, h.Subscribers(id))
	}
	assert.Zero(t, h.Clients())
}

func TestParseSignal(t *testing.T) {
	sig, err := ParseSignal([]byte(`{"type":"join","conversationId":12}`))
	require.NoError(t, err)
	assert.Equal(t, Signal{Type: SignalJoin, ConversationID: 12}, sig)

	for _, raw := range []string{
		`not json`,
		`{"type":"join"}`,
		`{"type":"leave","conversationId":1}`,
		`{"type":"join","conversationId":"12"}`,
	} {
		_, err := ParseSignal([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedSignal, raw)
	}
}
