package model

import (
	"encoding/json"
	"time"
)

// Server-to-client event types.
const (
	EventLOICreated   = "loi:created"
	EventLOIUpdated   = "loi:updated"
	EventLOIDeleted   = "loi:deleted"
	EventNotification = "notification"
)

// Client-to-server event types.
const (
	EventJoinConversation  = "join:conversation"
	EventLeaveConversation = "leave:conversation"
	EventWebUpdate         = "loi:web-update"
	EventPing              = "ping"
	EventPong              = "pong"
)

type WSEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewWSEvent marshals payload into a typed event envelope.
func NewWSEvent(eventType string, payload any) (*WSEvent, error) {
	if payload == nil {
		return &WSEvent{Type: eventType}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &WSEvent{Type: eventType, Data: data}, nil
}

type LOICreatedPayload struct {
	LOI       *LOI      `json:"loi"`
	Timestamp time.Time `json:"timestamp"`
}

type LOIUpdatedPayload struct {
	LOI       *LOI           `json:"loi"`
	UpdatedBy string         `json:"updatedBy"`
	Source    string         `json:"source"`
	Changes   map[string]any `json:"changes"`
	Timestamp time.Time      `json:"timestamp"`
}

type LOIDeletedPayload struct {
	LOIID     string    `json:"loiId"`
	DeletedBy string    `json:"deletedBy"`
	Timestamp time.Time `json:"timestamp"`
}

type NotificationPayload struct {
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomRequest is the payload for join/leave conversation events.
type RoomRequest struct {
	ConversationID string `json:"conversation_id"`
}

// WebUpdateNotice is the informational client event sent alongside a REST
// update. The REST call remains the source of truth.
type WebUpdateNotice struct {
	LOIID   string         `json:"loiId"`
	Changes map[string]any `json:"changes,omitempty"`
}
