// Package membership tracks which identities belong to which group.
package membership

import (
	"context"
	"strings"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"
)

// Store is the membership contract shared by every backend
type Store interface {
	// EnsureDefault creates the default group if it does not exist yet.
	EnsureDefault(ctx context.Context) (*models.Group, error)
	// CreateGroup creates a group with the creator as its first member.
	CreateGroup(ctx context.Context, name, createdBy string) (*models.Group, error)
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	// IsMember is always true for the default group.
	IsMember(ctx context.Context, groupID, identityID string) (bool, error)
	// AddMember reports whether the identity was newly added. Adding an
	// existing member, or anyone to the default group, is a no-op.
	AddMember(ctx context.Context, groupID, identityID string) (bool, error)
	// ListGroupsFor returns the default group followed by every group the
	// identity is an explicit member of, oldest first.
	ListGroupsFor(ctx context.Context, identityID string) ([]models.Group, error)
	// RestoreGroup imports a group keeping its id. Existing ids are left alone.
	RestoreGroup(ctx context.Context, group models.Group) error
}

// MaxNameLength bounds group names, in runes
const MaxNameLength = 100

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("Group name is required")
	}
	if len([]rune(name)) > MaxNameLength {
		return "", apperr.Validation("Group name must be at most %d characters", MaxNameLength)
	}
	return name, nil
}

func isDefault(groupID string) bool {
	return groupID == "" || groupID == models.DefaultGroupID
}

func groupNotFound() error {
	return apperr.NotFound("Group not found")
}
