package membership

import (
	"context"
	"strings"
	"sync"
	"testing"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGroupMakesCreatorMember(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	g, err := s.CreateGroup(ctx, "  Algorithms ", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Algorithms", g.Name)
	assert.Equal(t, "u1", g.CreatedBy)
	assert.Equal(t, []string{"u1"}, g.Members)
	assert.False(t, g.IsDefault)

	ok, err := s.IsMember(ctx, g.ID, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsMember(ctx, g.ID, "u2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateGroupValidatesName(t *testing.T) {
	s := NewMemory()

	_, err := s.CreateGroup(context.Background(), "   ", "u1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = s.CreateGroup(context.Background(), strings.Repeat("x", MaxNameLength+1), "u1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestAddMemberIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	g, err := s.CreateGroup(ctx, "Algorithms", "u1")
	require.NoError(t, err)

	added, err := s.AddMember(ctx, g.ID, "u2")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddMember(ctx, g.ID, "u2")
	require.NoError(t, err)
	assert.False(t, added)

	got, err := s.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, got.Members)
}

func TestUnknownGroup(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.AddMember(ctx, "missing", "u1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = s.IsMember(ctx, "missing", "u1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = s.GetGroup(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDefaultGroupIsImplicit(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	ok, err := s.IsMember(ctx, models.DefaultGroupID, "anyone")
	require.NoError(t, err)
	assert.True(t, ok)

	added, err := s.AddMember(ctx, models.DefaultGroupID, "anyone")
	require.NoError(t, err)
	assert.False(t, added)

	def, err := s.GetGroup(ctx, "")
	require.NoError(t, err)
	assert.True(t, def.IsDefault)
	assert.Empty(t, def.Members)

	again, err := s.EnsureDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, def.ID, again.ID)
}

func TestListGroupsFor(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	a, err := s.CreateGroup(ctx, "Algorithms", "u1")
	require.NoError(t, err)
	_, err = s.CreateGroup(ctx, "Databases", "u3")
	require.NoError(t, err)

	groups, err := s.ListGroupsFor(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].IsDefault)

	_, err = s.AddMember(ctx, a.ID, "u2")
	require.NoError(t, err)

	groups, err = s.ListGroupsFor(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.True(t, groups[0].IsDefault)
	assert.Equal(t, a.ID, groups[1].ID)
}

func TestReturnedGroupsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	g, err := s.CreateGroup(ctx, "Algorithms", "u1")
	require.NoError(t, err)

	g.Members[0] = "intruder"

	ok, err := s.IsMember(ctx, g.ID, "intruder")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentAddMember(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	g, err := s.CreateGroup(ctx, "Algorithms", "u1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddMember(ctx, g.ID, "u2")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, got.Members)
}

func TestRestoreGroup(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	err := s.RestoreGroup(ctx, models.Group{
		ID:        "legacy-1",
		Name:      "Old",
		CreatedBy: "u1",
		Members:   []string{"u1", "u2", "u1"},
		IsDefault: true,
	})
	require.NoError(t, err)

	g, err := s.GetGroup(ctx, "legacy-1")
	require.NoError(t, err)
	assert.False(t, g.IsDefault)
	assert.Equal(t, []string{"u1", "u2"}, g.Members)

	// A second restore does not overwrite
	require.NoError(t, s.RestoreGroup(ctx, models.Group{ID: "legacy-1", Name: "New"}))
	g, err = s.GetGroup(ctx, "legacy-1")
	require.NoError(t, err)
	assert.Equal(t, "Old", g.Name)
}
