// Package messages is the append-only message log. Every backend assigns
// ids and timestamps itself, resolves reply references inside the same
// exclusive section that commits the new record, and answers incremental
// queries with an exclusive lower bound.
package messages

import (
	"context"
	"strconv"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"
)

// Batch is the result of a group query
type Batch struct {
	Messages []models.Message
	// ServerTime is the watermark for the next incremental query.
	ServerTime time.Time
}

// Store is the message log contract
type Store interface {
	// Append validates and persists a draft, returning the stored message.
	Append(ctx context.Context, draft models.Draft) (*models.Message, error)
	// QueryGroup returns the group's messages created strictly after since
	// (all of them when since is nil) in ascending order.
	QueryGroup(ctx context.Context, groupID string, since *time.Time) (*Batch, error)
	// FindByID looks up a single message.
	FindByID(ctx context.Context, id string) (*models.Message, error)
	// Restore inserts a historical message keeping its id and timestamp.
	// Restoring an id that already exists is a no-op.
	Restore(ctx context.Context, msg models.Message) error
}

func validateDraft(d *models.Draft) error {
	if d.AuthorID == "" {
		return apperr.Validation("author is required")
	}
	if !d.HasContent() {
		return apperr.Validation("Message text or attachment required")
	}
	return nil
}

// build turns a validated draft into a message. target is the resolved
// reply target or nil.
func build(d *models.Draft, createdAt time.Time, target *models.Message) *models.Message {
	msg := &models.Message{
		ID:                newID(createdAt),
		GroupID:           models.ScopeFor(d.GroupKey()),
		AuthorID:          d.AuthorID,
		AuthorDisplayName: d.AuthorDisplayName,
		Text:              d.Text,
		Attachments:       d.Attachments,
		CreatedAt:         createdAt,
	}
	if msg.Attachments == nil {
		msg.Attachments = []models.AttachmentRef{}
	}
	if target != nil && target.GroupKey() == d.GroupKey() {
		msg.ReplyTo = target.Snapshot()
	}
	return msg
}

// newID derives the message id from its timestamp. Timestamps are unique
// per store, so ids are too, and they sort numerically with createdAt.
func newID(createdAt time.Time) string {
	return strconv.FormatInt(createdAt.UnixMicro(), 10)
}
