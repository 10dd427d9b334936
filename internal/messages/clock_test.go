package messages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func frozen(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestClockNextStrictlyIncreasing(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewClock(frozen(base))

	a := c.Next()
	b := c.Next()
	d := c.Next()

	assert.Equal(t, base, a)
	assert.True(t, b.After(a))
	assert.True(t, d.After(b))
	assert.Equal(t, Resolution, b.Sub(a))
}

func TestClockSurvivesBackwardsJump(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewClock(func() time.Time { return now })

	first := c.Next()
	now = now.Add(-time.Hour)
	second := c.Next()

	assert.True(t, second.After(first))
}

func TestClockMarkPrecedesLaterNext(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewClock(frozen(base))

	msg := c.Next()
	mark := c.Mark()
	assert.False(t, mark.Before(msg))

	later := c.Next()
	assert.True(t, later.After(mark))
}

func TestClockTruncatesToResolution(t *testing.T) {
	c := NewClock(frozen(time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)))
	assert.Equal(t, 123456000, c.Next().Nanosecond())
}

func TestClockObserve(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewClock(frozen(base))

	c.Observe(base.Add(time.Minute))
	assert.Equal(t, base.Add(time.Minute+Resolution), c.Next())

	c.Observe(base)
	assert.True(t, c.Next().After(base.Add(time.Minute)))
}
