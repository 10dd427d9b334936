package websocket

import "time"

// EventType represents different WebSocket event types
type EventType string

const (
	// Group events
	EventGroupActivity EventType = "group_activity"

	// Typing events
	EventTypingStart EventType = "typing_start"
	EventTypingStop  EventType = "typing_stop"

	// Error events
	EventError EventType = "error"
)

// WSMessage represents a WebSocket message structure
type WSMessage struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// ActivityPayload tells a client that a group has something new to poll for.
// It carries no message content.
type ActivityPayload struct {
	GroupID   string    `json:"groupId"`
	MessageID string    `json:"messageId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TypingPayload represents typing indicator payload
type TypingPayload struct {
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
}

// ErrorPayload represents error event payload
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IncomingMessage represents messages received from clients
type IncomingMessage struct {
	Type    EventType              `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}
