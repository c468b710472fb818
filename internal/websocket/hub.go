package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"wiki-console-be/internal/pkg/logger"
	"wiki-console-be/pkg/wizard"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	clusterChannel = "cluster_events"
	module         = "Hub"

	MessageSnapshot = "wizard_snapshot"
)

// Message is the frame pushed to consoles.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clusterMessage struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

// Hub fans wizard snapshots out to every console an operator has open, on
// this instance and, through Redis, on the others.
type Hub struct {
	// operator id -> open consoles
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb *redis.Client
	// instance id, so an instance ignores its own cluster messages
	origin string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		origin:     uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info(module, "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.UserID]) == 0 {
		delete(h.clients, client.UserID)
		h.logger.Info(module, "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
	}
}

// SendSnapshot pushes the operator's current wizard state.
// EncodeSnapshot renders the frame a console receives for snap.
func EncodeSnapshot(snap wizard.Snapshot) ([]byte, error) {
	return json.Marshal(Message{Type: MessageSnapshot, Data: snap})
}

func (h *Hub) SendSnapshot(operatorID uuid.UUID, snap wizard.Snapshot) {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		h.logger.Error(module, "Failed to encode snapshot", map[string]interface{}{"error": err.Error()})
		return
	}

	h.deliver(operatorID, data)

	if h.rdb != nil {
		payload, err := json.Marshal(clusterMessage{
			Origin:       h.origin,
			TargetUserID: operatorID.String(),
			Message:      data,
		})
		if err != nil {
			h.logger.Error(module, "Failed to encode cluster message", map[string]interface{}{"error": err.Error()})
			return
		}
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn(module, "Failed to publish to cluster", map[string]interface{}{"error": err.Error()})
		}
	}
}

// ClientCount returns the number of consoles the operator has open here.
func (h *Hub) ClientCount(operatorID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[operatorID])
}

func (h *Hub) deliver(operatorID uuid.UUID, data []byte) {
	// sends stay under the read lock so remove cannot close Send meanwhile
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[operatorID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn(module, "Client Send buffer full, dropping client", map[string]interface{}{"user_id": operatorID})
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn(module, "Redis msg parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		if payload.Origin == h.origin {
			continue
		}

		uid, err := uuid.Parse(payload.TargetUserID)
		if err != nil {
			continue
		}
		h.deliver(uid, payload.Message)
	}
}
