package polling

import (
	"context"
	"testing"
	"time"

	"campushub/server/internal/access"
	"campushub/server/internal/apperr"
	"campushub/server/internal/membership"
	"campushub/server/internal/messages"
	"campushub/server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	members *membership.Memory
	store   *messages.Memory
	engine  *Engine
}

func newFixture() *fixture {
	members := membership.NewMemory()
	store := messages.NewMemory(nil)
	return &fixture{
		members: members,
		store:   store,
		engine:  NewEngine(access.NewGate(members), store),
	}
}

func (f *fixture) post(t *testing.T, groupID, author, text string) *models.Message {
	t.Helper()
	msg, err := f.store.Append(context.Background(), models.Draft{
		GroupID:           models.ScopeFor(groupID),
		AuthorID:          author,
		AuthorDisplayName: author,
		Text:              &text,
	})
	require.NoError(t, err)
	return msg
}

func TestPollIncrementalRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	g, err := f.members.CreateGroup(ctx, "Algorithms", "U1")
	require.NoError(t, err)
	_, err = f.members.AddMember(ctx, g.ID, "U2")
	require.NoError(t, err)

	before := time.Now().Add(-time.Minute).UTC()
	sent := f.post(t, g.ID, "U1", "Hi")

	first, err := f.engine.Poll(ctx, g.ID, &before, "U2")
	require.NoError(t, err)
	require.Len(t, first.Messages, 1)
	assert.Equal(t, sent.ID, first.Messages[0].ID)

	watermark := first.ServerTime
	second, err := f.engine.Poll(ctx, g.ID, &watermark, "U2")
	require.NoError(t, err)
	assert.Empty(t, second.Messages)
}

func TestPollSinceIsStrict(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	var last *models.Message
	for i := 0; i < 5; i++ {
		last = f.post(t, models.DefaultGroupID, "U1", "m")
	}

	batch, err := f.engine.Poll(ctx, models.DefaultGroupID, &last.CreatedAt, "anyone")
	require.NoError(t, err)
	assert.Empty(t, batch.Messages)

	all, err := f.engine.Poll(ctx, models.DefaultGroupID, nil, "anyone")
	require.NoError(t, err)
	require.Len(t, all.Messages, 5)
	for _, m := range all.Messages {
		since := m.CreatedAt
		later, err := f.engine.Poll(ctx, models.DefaultGroupID, &since, "anyone")
		require.NoError(t, err)
		for _, got := range later.Messages {
			assert.True(t, got.CreatedAt.After(since))
		}
	}
}

func TestPollMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	var stamps []time.Time
	for i := 0; i < 6; i++ {
		stamps = append(stamps, f.post(t, models.DefaultGroupID, "U1", "m").CreatedAt)
	}

	t1, t2 := stamps[1], stamps[3]
	early, err := f.engine.Poll(ctx, models.DefaultGroupID, &t1, "U1")
	require.NoError(t, err)
	late, err := f.engine.Poll(ctx, models.DefaultGroupID, &t2, "U1")
	require.NoError(t, err)

	earlyIDs := make(map[string]bool)
	for _, m := range early.Messages {
		earlyIDs[m.ID] = true
	}
	for _, m := range late.Messages {
		assert.True(t, earlyIDs[m.ID], "message %s missing from the wider poll", m.ID)
	}
	assert.Len(t, early.Messages, 4)
	assert.Len(t, late.Messages, 2)
}

func TestPollNonMemberIsForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	g, err := f.members.CreateGroup(ctx, "Private", "U1")
	require.NoError(t, err)
	f.post(t, g.ID, "U1", "secret")

	batch, err := f.engine.Poll(ctx, g.ID, nil, "U3")
	assert.Nil(t, batch)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestPollUnknownGroupIsForbidden(t *testing.T) {
	_, err := newFixture().engine.Poll(context.Background(), "no-such-group", nil, "U1")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}
