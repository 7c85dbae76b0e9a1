package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"fittrack-be/internal/model"
	"fittrack-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// Hub tracks connected clients per user and fans notifications out to them.
// When Redis is configured, deliveries are also published on a cluster
// channel so other instances can reach clients connected to them.
type Hub struct {
	// UserID -> connected clients (multi-device)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb *redis.Client

	// instanceID tags cluster publishes so this instance can skip
	// messages it originated itself.
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToCluster()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("hub", "client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
				}
			}
			h.mu.Unlock()
		}
	}
}

func envelope(notification model.Notification) []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "notification",
		"data": notification,
	})
	return data
}

// sendLocal delivers to the clients connected here. Sends happen under the
// read lock so they cannot race the close in Run, which holds the write lock.
// A client with a full buffer is only queued for unregistration; Run is the
// single place that closes Send.
func (h *Hub) sendLocal(userID uuid.UUID, data []byte) {
	var dropped []*Client

	h.mu.RLock()
	for _, client := range h.clients[userID] {
		select {
		case client.Send <- data:
		default:
			dropped = append(dropped, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range dropped {
		h.logger.Warn("hub", "client send buffer full, dropping connection", map[string]interface{}{"user_id": userID})
		h.unregister <- client
	}
}

// Send delivers a notification to every connection of one user, local and
// remote.
func (h *Hub) Send(userID uuid.UUID, notification model.Notification) {
	data := envelope(notification)

	h.sendLocal(userID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"origin":         h.instanceID,
			"target_user_id": userID.String(),
			"message":        data,
		})
		h.rdb.Publish(context.Background(), clusterChannel, payload)
	}
}

// Broadcast delivers a notification to every connected client.
func (h *Hub) Broadcast(notification model.Notification) {
	data := envelope(notification)

	h.mu.RLock()
	userIds := make([]uuid.UUID, 0, len(h.clients))
	for userID := range h.clients {
		userIds = append(userIds, userID)
	}
	h.mu.RUnlock()

	for _, userID := range userIds {
		h.sendLocal(userID, data)
	}

	if h.rdb != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"origin":         h.instanceID,
			"target_user_id": "*",
			"message":        data,
		})
		h.rdb.Publish(context.Background(), clusterChannel, payload)
	}
}

// subscribeToCluster relays deliveries published by other instances to the
// clients connected here.
func (h *Hub) subscribeToCluster() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.handleClusterMessage([]byte(msg.Payload))
	}
}

// handleClusterMessage delivers one cluster payload locally. Messages this
// instance published itself were already delivered by Send or Broadcast and
// are skipped.
func (h *Hub) handleClusterMessage(raw []byte) {
	var payload struct {
		Origin       string          `json:"origin"`
		TargetUserID string          `json:"target_user_id"`
		Message      json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("hub", "cluster message parse error", map[string]interface{}{"error": err.Error()})
		return
	}

	if payload.Origin == h.instanceID {
		return
	}

	if payload.TargetUserID == "*" {
		h.mu.RLock()
		userIds := make([]uuid.UUID, 0, len(h.clients))
		for userID := range h.clients {
			userIds = append(userIds, userID)
		}
		h.mu.RUnlock()
		for _, userID := range userIds {
			h.sendLocal(userID, payload.Message)
		}
		return
	}

	uid, err := uuid.Parse(payload.TargetUserID)
	if err != nil {
		return
	}
	h.sendLocal(uid, payload.Message)
}
