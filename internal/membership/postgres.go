package membership

import (
	"context"
	"errors"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps groups in the groups and group_members tables
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool. The schema is created by database.Migrate.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureDefault implements Store
func (s *Postgres) EnsureDefault(ctx context.Context) (*models.Group, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO groups (id, name, created_by, is_default, created_at)
		VALUES ($1, $2, '', TRUE, $3)
		ON CONFLICT (id) DO NOTHING
	`, models.DefaultGroupID, models.DefaultGroupName, time.Now().UTC())
	if err != nil {
		return nil, apperr.Storage("failed to create default group", err)
	}
	return s.GetGroup(ctx, models.DefaultGroupID)
}

// CreateGroup implements Store
func (s *Postgres) CreateGroup(ctx context.Context, name, createdBy string) (*models.Group, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if createdBy == "" {
		return nil, apperr.Validation("creator is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Storage("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	group := models.Group{ID: uuid.NewString(), Members: []string{createdBy}}
	err = tx.QueryRow(ctx, `
		INSERT INTO groups (id, name, created_by, is_default, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		RETURNING name, created_by, created_at
	`, group.ID, name, createdBy, time.Now().UTC()).
		Scan(&group.Name, &group.CreatedBy, &group.CreatedAt)
	if err != nil {
		return nil, apperr.Storage("failed to create group", err)
	}

	// Add creator as member
	_, err = tx.Exec(ctx, `
		INSERT INTO group_members (group_id, user_id, joined_at)
		VALUES ($1, $2, $3)
	`, group.ID, createdBy, group.CreatedAt)
	if err != nil {
		return nil, apperr.Storage("failed to add creator to group", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Storage("failed to commit group", err)
	}
	group.CreatedAt = group.CreatedAt.UTC()
	return &group, nil
}

// GetGroup implements Store
func (s *Postgres) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	if isDefault(groupID) {
		groupID = models.DefaultGroupID
	}

	var g models.Group
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, created_by, is_default, created_at FROM groups WHERE id = $1
	`, groupID).Scan(&g.ID, &g.Name, &g.CreatedBy, &g.IsDefault, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, groupNotFound()
	}
	if err != nil {
		return nil, apperr.Storage("failed to load group", err)
	}
	g.CreatedAt = g.CreatedAt.UTC()

	g.Members, err = s.members(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Postgres) members(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY joined_at, user_id
	`, groupID)
	if err != nil {
		return nil, apperr.Storage("failed to load members", err)
	}
	members, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperr.Storage("failed to read members", err)
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

// IsMember implements Store
func (s *Postgres) IsMember(ctx context.Context, groupID, identityID string) (bool, error) {
	if isDefault(groupID) {
		return true, nil
	}

	var exists, member bool
	err := s.pool.QueryRow(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM groups WHERE id = $1),
			EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
	`, groupID, identityID).Scan(&exists, &member)
	if err != nil {
		return false, apperr.Storage("failed to check membership", err)
	}
	if !exists {
		return false, groupNotFound()
	}
	return member, nil
}

// AddMember implements Store
func (s *Postgres) AddMember(ctx context.Context, groupID, identityID string) (bool, error) {
	if identityID == "" {
		return false, apperr.Validation("userId is required")
	}
	if isDefault(groupID) {
		return false, nil
	}

	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM groups WHERE id = $1)`, groupID).Scan(&exists)
	if err != nil {
		return false, apperr.Storage("failed to load group", err)
	}
	if !exists {
		return false, groupNotFound()
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO group_members (group_id, user_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, groupID, identityID, time.Now().UTC())
	if err != nil {
		return false, apperr.Storage("failed to add member", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListGroupsFor implements Store
func (s *Postgres) ListGroupsFor(ctx context.Context, identityID string) ([]models.Group, error) {
	def, err := s.GetGroup(ctx, models.DefaultGroupID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT g.id, g.name, g.created_by, g.is_default, g.created_at,
			ARRAY(SELECT m.user_id FROM group_members m WHERE m.group_id = g.id ORDER BY m.joined_at, m.user_id)
		FROM groups g
		INNER JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = $1 AND NOT g.is_default
		ORDER BY g.created_at, g.id
	`, identityID)
	if err != nil {
		return nil, apperr.Storage("failed to list groups", err)
	}
	defer rows.Close()

	groups := []models.Group{*def}
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedBy, &g.IsDefault, &g.CreatedAt, &g.Members); err != nil {
			return nil, apperr.Storage("failed to scan group", err)
		}
		g.CreatedAt = g.CreatedAt.UTC()
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("failed to read groups", err)
	}
	return groups, nil
}

// RestoreGroup implements Store
func (s *Postgres) RestoreGroup(ctx context.Context, group models.Group) error {
	if group.ID == "" {
		return apperr.Validation("group id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Storage("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO groups (id, name, created_by, is_default, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		ON CONFLICT (id) DO NOTHING
	`, group.ID, group.Name, group.CreatedBy, group.CreatedAt.UTC())
	if err != nil {
		return apperr.Storage("failed to restore group", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	for _, member := range dedupe(group.Members) {
		_, err := tx.Exec(ctx, `
			INSERT INTO group_members (group_id, user_id, joined_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (group_id, user_id) DO NOTHING
		`, group.ID, member, group.CreatedAt.UTC())
		if err != nil {
			return apperr.Storage("failed to restore member", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Storage("failed to commit group", err)
	}
	return nil
}
