package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Connect opens a pgx pool and checks it with a ping
func Connect(ctx context.Context, databaseURL string, log *zap.Logger) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connected", zap.String("driver", "postgres"))
	return pool, nil
}

// schema is applied in order on every start. Each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		student_id    TEXT NOT NULL CONSTRAINT users_student_id_key UNIQUE,
		full_name     TEXT NOT NULL DEFAULT '',
		email         TEXT NOT NULL DEFAULT '',
		course        TEXT NOT NULL DEFAULT '',
		campus        TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email) WHERE email <> ''`,

	`CREATE TABLE IF NOT EXISTS groups (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		is_default BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS groups_single_default ON groups (is_default) WHERE is_default`,

	`CREATE TABLE IF NOT EXISTS group_members (
		group_id  TEXT NOT NULL REFERENCES groups (id),
		user_id   TEXT NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (group_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS group_members_user_idx ON group_members (user_id)`,

	`CREATE TABLE IF NOT EXISTS chat_messages (
		id                  TEXT PRIMARY KEY,
		group_id            TEXT,
		author_id           TEXT NOT NULL,
		author_display_name TEXT NOT NULL,
		text                TEXT,
		attachments         JSONB NOT NULL DEFAULT '[]',
		reply_to            JSONB,
		created_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS chat_messages_group_time_idx
		ON chat_messages ((COALESCE(group_id, 'default')), created_at)`,

	`CREATE TABLE IF NOT EXISTS files (
		id            TEXT PRIMARY KEY,
		storage_key   TEXT NOT NULL UNIQUE,
		original_name TEXT NOT NULL,
		file_type     TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL DEFAULT '',
		course        TEXT NOT NULL DEFAULT '',
		semester      TEXT NOT NULL DEFAULT '',
		content_type  TEXT NOT NULL DEFAULT '',
		size          BIGINT NOT NULL DEFAULT 0,
		uploaded_by   TEXT NOT NULL,
		uploaded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS files_course_idx ON files (course, file_type, semester)`,
}

// Migrate creates the tables used by the postgres stores
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
