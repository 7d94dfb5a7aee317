package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"ai-queryrefine-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewHub(nil, logger.NewNopLogger())
	go h.Run(ctx)
	return h
}

func connect(h *Hub, sessionID string) *Client {
	c := &Client{Hub: h, SessionID: sessionID, UserID: "u1", Send: make(chan []byte, 4)}
	h.Register(c)
	return c
}

func TestHub_SendToSession(t *testing.T) {
	h := runHub(t)
	a1 := connect(h, "a")
	a2 := connect(h, "a")
	b := connect(h, "b")

	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients["a"]) == 2 && len(h.clients["b"]) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, h.SendToSession("a", []byte(`{"type":"x"}`)))
	assert.Equal(t, `{"type":"x"}`, string(<-a1.Send))
	assert.Equal(t, `{"type":"x"}`, string(<-a2.Send))
	assert.Empty(t, b.Send)

	assert.Zero(t, h.SendToSession("missing", []byte("{}")))
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := runHub(t)
	c := connect(h, "a")
	h.unregister <- c

	require.Eventually(t, func() bool {
		_, open := <-c.Send
		return !open
	}, time.Second, 5*time.Millisecond)

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.NotContains(t, h.clients, "a")
}

func TestHub_ReceiveWithoutRedisCallsHandler(t *testing.T) {
	h := NewHub(nil, logger.NewNopLogger())
	var gotSession string
	var gotFrame []byte
	h.OnReply(func(sessionID string, frame []byte) {
		gotSession, gotFrame = sessionID, frame
	})

	h.receive("s1", []byte("reply"))
	assert.Equal(t, "s1", gotSession)
	assert.Equal(t, "reply", string(gotFrame))
}

func TestHub_SendRacingUnregisterDoesNotPanic(t *testing.T) {
	h := runHub(t)
	clients := make([]*Client, 20)
	for i := range clients {
		clients[i] = connect(h, "a")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			h.SendToSession("a", []byte("{}"))
		}
	}()
	go func() {
		defer wg.Done()
		for _, c := range clients {
			h.Unregister(c)
		}
	}()
	wg.Wait()

	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients["a"]) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestHub_StoppedHubReleasesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(nil, logger.NewNopLogger())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	c := connect(h, "a")
	cancel()
	<-stopped

	_, open := <-c.Send
	assert.False(t, open)

	returned := make(chan struct{})
	go func() {
		h.Unregister(c)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Unregister blocked after the hub stopped")
	}

	assert.False(t, h.Register(&Client{Hub: h, SessionID: "b", Send: make(chan []byte, 1)}))
}
