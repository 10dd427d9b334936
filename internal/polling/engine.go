// Package polling serves incremental message fetches to polling clients.
package polling

import (
	"context"
	"time"

	"campushub/server/internal/access"
	"campushub/server/internal/apperr"
	"campushub/server/internal/messages"
	"campushub/server/internal/metrics"
)

// Engine answers "what is new in group G since T"
type Engine struct {
	gate  *access.Gate
	store messages.Store
}

// NewEngine creates a sync engine
func NewEngine(gate *access.Gate, store messages.Store) *Engine {
	return &Engine{gate: gate, store: store}
}

// Poll returns the group's messages with createdAt strictly after since.
// The batch's ServerTime is the caller's next since. An unknown group is
// reported as forbidden so a client never mistakes lost access for silence.
func (e *Engine) Poll(ctx context.Context, groupID string, since *time.Time, callerID string) (*messages.Batch, error) {
	group, err := e.gate.AuthorizeRead(ctx, callerID, groupID)
	if apperr.Is(err, apperr.KindNotFound) {
		metrics.Polls.WithLabelValues("denied").Inc()
		return nil, apperr.Forbidden("Group not available")
	}
	if err != nil {
		if apperr.Is(err, apperr.KindForbidden) || apperr.Is(err, apperr.KindUnauthorized) {
			metrics.Polls.WithLabelValues("denied").Inc()
		} else {
			metrics.Polls.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	batch, err := e.store.QueryGroup(ctx, group.ID, since)
	if err != nil {
		metrics.Polls.WithLabelValues("error").Inc()
		return nil, err
	}

	if len(batch.Messages) == 0 {
		metrics.Polls.WithLabelValues("empty").Inc()
	} else {
		metrics.Polls.WithLabelValues("delivered").Inc()
	}
	return batch, nil
}
