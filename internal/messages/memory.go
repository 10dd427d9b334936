package messages

import (
	"context"
	"sort"
	"sync"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"
)

// Memory keeps the log in process memory
type Memory struct {
	mu    sync.RWMutex
	clock *Clock
	log   []models.Message
	byID  map[string]int
}

// NewMemory creates an empty in-memory store
func NewMemory(clock *Clock) *Memory {
	if clock == nil {
		clock = NewClock(nil)
	}
	return &Memory{
		clock: clock,
		byID:  make(map[string]int),
	}
}

// Append implements Store
func (s *Memory) Append(ctx context.Context, draft models.Draft) (*models.Message, error) {
	if err := validateDraft(&draft); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var target *models.Message
	if draft.ReplyToID != "" {
		if idx, ok := s.byID[draft.ReplyToID]; ok {
			target = &s.log[idx]
		}
	}

	msg := build(&draft, s.clock.Next(), target)
	s.byID[msg.ID] = len(s.log)
	s.log = append(s.log, *msg)

	return msg, nil
}

// QueryGroup implements Store
func (s *Memory) QueryGroup(ctx context.Context, groupID string, since *time.Time) (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// The mark is taken under the read lock so no append is in flight.
	batch := &Batch{ServerTime: s.clock.Mark(), Messages: []models.Message{}}
	key := models.GroupKey(&groupID)

	start := 0
	if since != nil {
		// log is sorted by createdAt
		start = sort.Search(len(s.log), func(i int) bool {
			return s.log[i].CreatedAt.After(*since)
		})
	}

	for i := start; i < len(s.log); i++ {
		if s.log[i].GroupKey() == key {
			batch.Messages = append(batch.Messages, s.log[i])
		}
	}
	return batch, nil
}

// FindByID implements Store
func (s *Memory) FindByID(ctx context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return nil, apperr.NotFound("Message not found")
	}
	msg := s.log[idx]
	return &msg, nil
}

// Restore implements Store
func (s *Memory) Restore(ctx context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[msg.ID]; ok {
		return nil
	}

	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(Resolution)
	if msg.Attachments == nil {
		msg.Attachments = []models.AttachmentRef{}
	}

	// Insert after every message with createdAt <= msg.CreatedAt so ties
	// keep insertion order.
	pos := sort.Search(len(s.log), func(i int) bool {
		return s.log[i].CreatedAt.After(msg.CreatedAt)
	})
	s.log = append(s.log, models.Message{})
	copy(s.log[pos+1:], s.log[pos:])
	s.log[pos] = msg

	for i := pos; i < len(s.log); i++ {
		s.byID[s.log[i].ID] = i
	}
	s.clock.Observe(msg.CreatedAt)
	return nil
}
