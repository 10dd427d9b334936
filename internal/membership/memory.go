package membership

import (
	"context"
	"sort"
	"sync"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"github.com/google/uuid"
)

// Memory keeps groups in process memory
type Memory struct {
	mu     sync.RWMutex
	groups map[string]*models.Group
	now    func() time.Time
}

// NewMemory returns a store that already holds the default group
func NewMemory() *Memory {
	s := &Memory{
		groups: make(map[string]*models.Group),
		now:    time.Now,
	}
	s.groups[models.DefaultGroupID] = s.defaultGroup()
	return s
}

func (s *Memory) defaultGroup() *models.Group {
	return &models.Group{
		ID:        models.DefaultGroupID,
		Name:      models.DefaultGroupName,
		Members:   []string{},
		IsDefault: true,
		CreatedAt: s.now().UTC(),
	}
}

// copyGroup hands out a snapshot so callers never share the member slice
func copyGroup(g *models.Group) *models.Group {
	cp := *g
	cp.Members = append([]string{}, g.Members...)
	return &cp
}

// EnsureDefault implements Store
func (s *Memory) EnsureDefault(ctx context.Context) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[models.DefaultGroupID]
	if !ok {
		g = s.defaultGroup()
		s.groups[g.ID] = g
	}
	return copyGroup(g), nil
}

// CreateGroup implements Store
func (s *Memory) CreateGroup(ctx context.Context, name, createdBy string) (*models.Group, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if createdBy == "" {
		return nil, apperr.Validation("creator is required")
	}

	g := &models.Group{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: createdBy,
		Members:   []string{createdBy},
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.groups[g.ID] = g
	s.mu.Unlock()

	return copyGroup(g), nil
}

// GetGroup implements Store
func (s *Memory) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	if isDefault(groupID) {
		groupID = models.DefaultGroupID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[groupID]
	if !ok {
		return nil, groupNotFound()
	}
	return copyGroup(g), nil
}

// IsMember implements Store
func (s *Memory) IsMember(ctx context.Context, groupID, identityID string) (bool, error) {
	if isDefault(groupID) {
		return true, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[groupID]
	if !ok {
		return false, groupNotFound()
	}
	return g.HasMember(identityID), nil
}

// AddMember implements Store
func (s *Memory) AddMember(ctx context.Context, groupID, identityID string) (bool, error) {
	if identityID == "" {
		return false, apperr.Validation("userId is required")
	}
	if isDefault(groupID) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return false, groupNotFound()
	}
	if g.HasMember(identityID) {
		return false, nil
	}
	g.Members = append(g.Members, identityID)
	return true, nil
}

// ListGroupsFor implements Store
func (s *Memory) ListGroupsFor(ctx context.Context, identityID string) ([]models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var def *models.Group
	var joined []models.Group
	for _, g := range s.groups {
		switch {
		case g.IsDefault:
			def = g
		case g.HasMember(identityID):
			joined = append(joined, *copyGroup(g))
		}
	}

	sort.Slice(joined, func(i, j int) bool {
		if joined[i].CreatedAt.Equal(joined[j].CreatedAt) {
			return joined[i].ID < joined[j].ID
		}
		return joined[i].CreatedAt.Before(joined[j].CreatedAt)
	})

	if def == nil {
		def = s.defaultGroup()
	}
	return append([]models.Group{*copyGroup(def)}, joined...), nil
}

// RestoreGroup implements Store
func (s *Memory) RestoreGroup(ctx context.Context, group models.Group) error {
	if group.ID == "" {
		return apperr.Validation("group id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[group.ID]; ok {
		return nil
	}
	// The default group is never imported
	group.IsDefault = false
	group.Members = dedupe(group.Members)
	s.groups[group.ID] = &group
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
