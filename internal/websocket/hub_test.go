package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"fittrack-be/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil, nopLogger{})
	go hub.Run()
	return hub
}

func connCount(hub *Hub, userID uuid.UUID) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients[userID])
}

func waitForConnCount(t *testing.T, hub *Hub, userID uuid.UUID, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if connCount(hub, userID) == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected %d connections for %s, have %d", want, userID, connCount(hub, userID))
}

func recvWithTimeout(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

func TestSendDropsStalledClientAndKeepsHealthyOne(t *testing.T) {
	hub := newTestHub(t)
	userID := uuid.New()

	healthy := &Client{Hub: hub, UserID: userID, Send: make(chan []byte, 4)}
	stalled := &Client{Hub: hub, UserID: userID, Send: make(chan []byte)}

	hub.register <- healthy
	hub.register <- stalled
	waitForConnCount(t, hub, userID, 2)

	hub.Send(userID, model.Notification{Title: "first"})

	// The stalled connection had no buffer space, so the hub removes it and
	// closes its channel exactly once.
	waitForConnCount(t, hub, userID, 1)
	_, open := <-stalled.Send
	assert.False(t, open)

	var delivered map[string]interface{}
	require.NoError(t, json.Unmarshal(recvWithTimeout(t, healthy.Send), &delivered))
	assert.Equal(t, "notification", delivered["type"])

	// A duplicate unregister, as the read side emits when its connection
	// dies, must be a no-op.
	hub.unregister <- stalled

	hub.Send(userID, model.Notification{Title: "second"})
	recvWithTimeout(t, healthy.Send)
	assert.Equal(t, 1, connCount(hub, userID))
}

func TestSendToUserWithoutConnections(t *testing.T) {
	hub := newTestHub(t)
	hub.Send(uuid.New(), model.Notification{Title: "nobody home"})
}

func clusterPayload(t *testing.T, origin, target string, notification model.Notification) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"origin":         origin,
		"target_user_id": target,
		"message":        envelope(notification),
	})
	require.NoError(t, err)
	return payload
}

func TestClusterMessageFromOwnInstanceIsSkipped(t *testing.T) {
	hub := newTestHub(t)
	userID := uuid.New()

	client := &Client{Hub: hub, UserID: userID, Send: make(chan []byte, 4)}
	hub.register <- client
	waitForConnCount(t, hub, userID, 1)

	// Send and Broadcast already delivered locally before publishing, so a
	// payload carrying this instance's own id must not deliver again.
	hub.handleClusterMessage(clusterPayload(t, hub.instanceID, userID.String(), model.Notification{Title: "own"}))

	select {
	case <-client.Send:
		t.Fatal("self-originated cluster message was delivered twice")
	case <-time.After(50 * time.Millisecond):
	}

	hub.handleClusterMessage(clusterPayload(t, uuid.NewString(), userID.String(), model.Notification{Title: "remote"}))
	recvWithTimeout(t, client.Send)
}

func TestClusterBroadcastReachesLocalClients(t *testing.T) {
	hub := newTestHub(t)
	userID := uuid.New()

	client := &Client{Hub: hub, UserID: userID, Send: make(chan []byte, 4)}
	hub.register <- client
	waitForConnCount(t, hub, userID, 1)

	hub.handleClusterMessage(clusterPayload(t, uuid.NewString(), "*", model.Notification{Title: "everyone"}))
	recvWithTimeout(t, client.Send)

	hub.handleClusterMessage(clusterPayload(t, hub.instanceID, "*", model.Notification{Title: "own broadcast"}))
	select {
	case <-client.Send:
		t.Fatal("self-originated broadcast was delivered twice")
	case <-time.After(50 * time.Millisecond):
	}

	hub.handleClusterMessage([]byte("not json"))
}
