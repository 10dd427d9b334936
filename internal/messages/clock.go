package messages

import (
	"sync"
	"time"
)

// Resolution is the precision of message timestamps. Postgres timestamptz
// stores microseconds, so every backend truncates to that.
const Resolution = time.Microsecond

// Clock hands out message timestamps and poll watermarks.
//
// Next is strictly increasing. Mark returns a watermark that every later
// Next exceeds, so a poll using the watermark as its exclusive lower bound
// cannot skip a message committed after the mark was taken.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock returns a clock reading from now, or time.Now when nil.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) read() time.Time {
	return c.now().UTC().Truncate(Resolution)
}

// Next returns the timestamp for a new message.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.read()
	if !t.After(c.last) {
		t = c.last.Add(Resolution)
	}
	c.last = t
	return t
}

// Mark returns the current watermark.
func (c *Clock) Mark() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.read()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}

// Observe moves the clock past t. Used when restoring history and when a
// shared database already holds newer rows.
func (c *Clock) Observe(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t = t.UTC().Truncate(Resolution)
	if t.After(c.last) {
		c.last = t
	}
}
