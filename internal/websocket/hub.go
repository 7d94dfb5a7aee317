package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-queryrefine-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// prompts travel to every instance holding a connection for the session
	promptChannel = "cluster_events"
	// replies travel to every instance, the one waiting on the request picks it up
	replyChannel = "cluster_replies"
)

// ReplyHandler receives an inbound client frame for a session
type ReplyHandler func(sessionID string, frame []byte)

type clusterMessage struct {
	Origin    string          `json:"origin"`
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

type Hub struct {
	// Registered clients map: SessionID -> connections (several tabs or devices)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client
	// closed when Run returns
	done chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance communication, nil on a single instance
	rdb *redis.Client

	onReply ReplyHandler

	// instanceID marks frames this process published
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// OnReply sets the handler for client frames. Call before Run.
func (h *Hub) OnReply(handler ReplyHandler) {
	h.onReply = handler
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{
				"session_id": client.SessionID,
				"user_id":    client.UserID,
			})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// Register attaches a client; false once the hub has stopped
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister detaches a client. It never blocks after the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// shutdown closes every connection still attached
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	close(h.done)
	for sessionID, clients := range h.clients {
		for _, c := range clients {
			close(c.Send)
		}
		delete(h.clients, sessionID)
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.SessionID]) == 0 {
		delete(h.clients, client.SessionID)
		h.logger.Info("Hub", "Session has no more connections", map[string]interface{}{"session_id": client.SessionID})
	}
}

// SendToSession delivers a frame to local connections of the session and publishes it for other instances.
// It returns the number of local connections reached.
func (h *Hub) SendToSession(sessionID string, payload []byte) int {
	delivered := h.deliverLocal(sessionID, payload)

	if h.rdb != nil {
		h.publish(promptChannel, sessionID, payload)
	}
	return delivered
}

// deliverLocal sends under the read lock; remove closes Send under the write lock,
// so a send never races a close
func (h *Hub) deliverLocal(sessionID string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
			delivered++
		default:
			h.logger.Warn("Hub", "Client Send buffer full, dropping connection", map[string]interface{}{"session_id": sessionID})
			go h.Unregister(client)
		}
	}
	return delivered
}

// receive is called by a client's readPump for every inbound frame
func (h *Hub) receive(sessionID string, frame []byte) {
	if h.rdb != nil {
		h.publish(replyChannel, sessionID, frame)
		return
	}
	if h.onReply != nil {
		h.onReply(sessionID, frame)
	}
}

func (h *Hub) publish(channel, sessionID string, payload []byte) {
	msg, _ := json.Marshal(clusterMessage{Origin: h.instanceID, SessionID: sessionID, Message: payload})
	if err := h.rdb.Publish(context.Background(), channel, msg).Err(); err != nil {
		h.logger.Error("Hub", "Redis publish failed", map[string]interface{}{"channel": channel, "error": err.Error()})
	}
}

// subscribeToRedis relays frames from other instances. Prompts this instance
// published itself are skipped since they were already delivered locally.
func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, promptChannel, replyChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
			continue
		}

		switch msg.Channel {
		case replyChannel:
			if h.onReply != nil {
				h.onReply(payload.SessionID, payload.Message)
			}
		case promptChannel:
			if payload.Origin == h.instanceID {
				continue
			}
			h.deliverLocal(payload.SessionID, payload.Message)
		}
	}
}
