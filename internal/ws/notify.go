package ws

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	EventUserRegistered = "user.registered"
	EventUserUpdated    = "user.updated"
	EventUserUpgraded   = "user.upgraded"
	EventUserDeleted    = "user.deleted"
)

type UserEvent struct {
	Type      string    `json:"type"`
	UserID    uuid.UUID `json:"user_id"`
	Timestamp string    `json:"timestamp"`
}

var defaultHub atomic.Pointer[Hub]

func SetDefaultHub(h *Hub) {
	defaultHub.Store(h)
}

// NotifyUserEvent broadcasts a user-lifecycle event to all connected clients.
// A nil default hub makes this a no-op, handlers never need to care whether
// the websocket layer is up.
func NotifyUserEvent(eventType string, userID uuid.UUID) {
	h := defaultHub.Load()
	if h == nil {
		return
	}

	evt := UserEvent{
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return
	}

	h.Broadcast(b)
}
