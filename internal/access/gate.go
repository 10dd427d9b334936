// Package access decides who may read, write and invite in a group.
// Every check goes to the membership store; nothing is cached.
package access

import (
	"context"

	"campushub/server/internal/apperr"
	"campushub/server/internal/membership"
	"campushub/server/internal/metrics"
	"campushub/server/internal/models"
)

// Gate authorizes group operations
type Gate struct {
	members membership.Store
}

// NewGate creates a gate over the membership store
func NewGate(members membership.Store) *Gate {
	return &Gate{members: members}
}

// AuthorizeRead allows any authenticated caller on the default group and
// members only everywhere else. It returns the resolved group.
func (g *Gate) AuthorizeRead(ctx context.Context, callerID, groupID string) (*models.Group, error) {
	return g.authorize(ctx, "read", callerID, groupID)
}

// AuthorizeWrite follows the same rule as AuthorizeRead
func (g *Gate) AuthorizeWrite(ctx context.Context, callerID, groupID string) (*models.Group, error) {
	return g.authorize(ctx, "write", callerID, groupID)
}

// AuthorizeAddMember lets anyone who can read the group invite others
func (g *Gate) AuthorizeAddMember(ctx context.Context, callerID, groupID string) (*models.Group, error) {
	return g.authorize(ctx, "add_member", callerID, groupID)
}

func (g *Gate) authorize(ctx context.Context, action, callerID, groupID string) (*models.Group, error) {
	if callerID == "" {
		metrics.AccessDenied.WithLabelValues(action).Inc()
		return nil, apperr.Unauthorized("Authentication required")
	}

	group, err := g.members.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.IsDefault {
		return group, nil
	}

	ok, err := g.members.IsMember(ctx, group.ID, callerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.AccessDenied.WithLabelValues(action).Inc()
		return nil, apperr.Forbidden("You are not a member of this group")
	}
	return group, nil
}
