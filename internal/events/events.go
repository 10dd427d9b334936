// Package events publishes domain events after a message is committed.
package events

import (
	"context"
	"time"

	"campushub/server/internal/models"
)

// TypeMessageCreated is the event type for a newly appended message
const TypeMessageCreated = "message.created"

// Envelope is the wire format of every event
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	GroupID    string          `json:"groupId"`
	Message    *models.Message `json:"message"`
}

// Publisher receives committed messages
type Publisher interface {
	MessageCreated(ctx context.Context, msg *models.Message) error
	Close() error
}

// Nop discards every event
type Nop struct{}

// MessageCreated implements Publisher
func (Nop) MessageCreated(context.Context, *models.Message) error { return nil }

// Close implements Publisher
func (Nop) Close() error { return nil }
