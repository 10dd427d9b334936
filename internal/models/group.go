package models

import "time"

// DefaultGroupID is the reserved identifier of the broadcast group.
const DefaultGroupID = "default"

// DefaultGroupName is the display name given to the broadcast group.
const DefaultGroupName = "General"

// Group represents a chat group
type Group struct {
	ID        string    `json:"id" db:"id" bson:"_id"`
	Name      string    `json:"name" db:"name" bson:"name"`
	CreatedBy string    `json:"createdBy" db:"created_by" bson:"created_by"`
	Members   []string  `json:"members" bson:"members"`
	IsDefault bool      `json:"isDefault" db:"is_default" bson:"is_default"`
	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"created_at"`
}

// HasMember reports whether identityID is listed explicitly. The default
// group has no explicit list; callers check IsDefault first.
func (g *Group) HasMember(identityID string) bool {
	for _, m := range g.Members {
		if m == identityID {
			return true
		}
	}
	return false
}

// GroupSummary is the shape returned by the groups listing endpoint
type GroupSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedBy   string    `json:"createdBy"`
	IsDefault   bool      `json:"isDefault"`
	MemberCount int       `json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Summary converts Group to GroupSummary
func (g *Group) Summary() GroupSummary {
	return GroupSummary{
		ID:          g.ID,
		Name:        g.Name,
		CreatedBy:   g.CreatedBy,
		IsDefault:   g.IsDefault,
		MemberCount: len(g.Members),
		CreatedAt:   g.CreatedAt,
	}
}
