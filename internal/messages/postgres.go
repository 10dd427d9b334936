package messages

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// logLockKey is the advisory lock that orders appends against queries.
// Appends take it exclusively, queries take it shared.
const logLockKey int64 = 0x63616d7075736d67

// Postgres stores the log in the chat_messages table. Timestamps come from
// the database clock so several API processes can share one log.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool. The schema is created by database.Migrate.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const messageColumns = `id, group_id, author_id, author_display_name, text, attachments, reply_to, created_at`

// Append implements Store
func (s *Postgres) Append(ctx context.Context, draft models.Draft) (*models.Message, error) {
	if err := validateDraft(&draft); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Storage("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, logLockKey); err != nil {
		return nil, apperr.Storage("failed to lock message log", err)
	}

	var target *models.Message
	if draft.ReplyToID != "" {
		target, err = scanMessage(tx.QueryRow(ctx,
			`SELECT `+messageColumns+` FROM chat_messages WHERE id = $1`, draft.ReplyToID))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Storage("failed to resolve reply target", err)
		}
	}

	// Strictly after the newest row, even if the clock stepped back
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT GREATEST(clock_timestamp(), MAX(created_at) + interval '1 microsecond')
		FROM chat_messages
	`).Scan(&createdAt)
	if err != nil {
		return nil, apperr.Storage("failed to read clock", err)
	}

	msg := build(&draft, createdAt.UTC().Truncate(Resolution), target)
	if err := insertMessage(ctx, tx, msg, false); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Storage("failed to commit message", err)
	}
	return msg, nil
}

// QueryGroup implements Store
func (s *Postgres) QueryGroup(ctx context.Context, groupID string, since *time.Time) (*Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Storage("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock_shared($1)`, logLockKey); err != nil {
		return nil, apperr.Storage("failed to lock message log", err)
	}

	batch := &Batch{Messages: []models.Message{}}
	err = tx.QueryRow(ctx, `
		SELECT GREATEST(clock_timestamp(), MAX(created_at)) FROM chat_messages
	`).Scan(&batch.ServerTime)
	if err != nil {
		return nil, apperr.Storage("failed to read clock", err)
	}
	batch.ServerTime = batch.ServerTime.UTC().Truncate(Resolution)

	query := `SELECT ` + messageColumns + ` FROM chat_messages
		WHERE COALESCE(group_id, $1) = $2`
	args := []any{models.DefaultGroupID, models.GroupKey(&groupID)}
	if since != nil {
		query += ` AND created_at > $3`
		args = append(args, *since)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage("failed to query messages", err)
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, apperr.Storage("failed to scan message", err)
		}
		batch.Messages = append(batch.Messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("failed to read messages", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Storage("failed to finish query", err)
	}
	return batch, nil
}

// FindByID implements Store
func (s *Postgres) FindByID(ctx context.Context, id string) (*models.Message, error) {
	msg, err := scanMessage(s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("Message not found")
	}
	if err != nil {
		return nil, apperr.Storage("failed to load message", err)
	}
	return msg, nil
}

// Restore implements Store
func (s *Postgres) Restore(ctx context.Context, msg models.Message) error {
	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(Resolution)
	return insertMessage(ctx, s.pool, &msg, true)
}

// dbExecer is satisfied by both the pool and a transaction
type dbExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertMessage(ctx context.Context, db dbExecer, msg *models.Message, ignoreDuplicate bool) error {
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return apperr.Storage("failed to encode attachments", err)
	}
	var replyTo []byte
	if msg.ReplyTo != nil {
		if replyTo, err = json.Marshal(msg.ReplyTo); err != nil {
			return apperr.Storage("failed to encode reply", err)
		}
	}

	query := `INSERT INTO chat_messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if ignoreDuplicate {
		query += ` ON CONFLICT (id) DO NOTHING`
	}

	_, err = db.Exec(ctx, query,
		msg.ID, msg.GroupID, msg.AuthorID, msg.AuthorDisplayName,
		msg.Text, attachments, replyTo, msg.CreatedAt)
	if err != nil {
		return apperr.Storage("failed to insert message", err)
	}
	return nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var (
		msg         models.Message
		attachments []byte
		replyTo     []byte
	)
	err := row.Scan(&msg.ID, &msg.GroupID, &msg.AuthorID, &msg.AuthorDisplayName,
		&msg.Text, &attachments, &replyTo, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	msg.CreatedAt = msg.CreatedAt.UTC()
	msg.Attachments = []models.AttachmentRef{}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
			return nil, err
		}
	}
	if len(replyTo) > 0 {
		msg.ReplyTo = &models.ReplySnapshot{}
		if err := json.Unmarshal(replyTo, msg.ReplyTo); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}
