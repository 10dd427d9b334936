package files

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCatalog keeps file records in the files table
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalog wraps an open pool. The schema is created by database.Migrate.
func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

const fileColumns = `id, storage_key, original_name, file_type, description, course, semester, content_type, size, uploaded_by, uploaded_at`

func scanFile(row pgx.Row) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := row.Scan(&rec.ID, &rec.StorageKey, &rec.OriginalName, &rec.FileType, &rec.Description,
		&rec.Course, &rec.Semester, &rec.ContentType, &rec.Size, &rec.UploadedBy, &rec.UploadedAt)
	if err != nil {
		return nil, err
	}
	rec.UploadedAt = rec.UploadedAt.UTC()
	return &rec, nil
}

// Register implements Catalog
func (c *PostgresCatalog) Register(ctx context.Context, rec *models.FileRecord) error {
	prepare(rec)

	_, err := c.pool.Exec(ctx, `
		INSERT INTO files (`+fileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.ID, rec.StorageKey, rec.OriginalName, rec.FileType, rec.Description,
		rec.Course, rec.Semester, rec.ContentType, rec.Size, rec.UploadedBy, rec.UploadedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.Conflict("File already registered")
	}
	if err != nil {
		return apperr.Storage("failed to register file", err)
	}
	return nil
}

// Get implements Catalog
func (c *PostgresCatalog) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	rec, err := scanFile(c.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fileNotFound()
	}
	if err != nil {
		return nil, apperr.Storage("failed to load file", err)
	}
	return rec, nil
}

func (c *PostgresCatalog) query(ctx context.Context, where []string, args []any) ([]models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY uploaded_at ASC, id ASC`

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage("failed to query files", err)
	}
	defer rows.Close()

	out := []models.FileRecord{}
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, apperr.Storage("failed to scan file", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("failed to read files", err)
	}
	return out, nil
}

// List implements Catalog
func (c *PostgresCatalog) List(ctx context.Context, filter models.FileFilter) ([]models.FileRecord, error) {
	var where []string
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("course", filter.Course)
	add("file_type", filter.FileType)
	add("semester", filter.Semester)

	return c.query(ctx, where, args)
}

// Search implements Catalog
func (c *PostgresCatalog) Search(ctx context.Context, q string) ([]models.FileRecord, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return c.query(ctx, nil, nil)
	}
	return c.query(ctx,
		[]string{`(strpos(lower(original_name), lower($1)) > 0 OR strpos(lower(description), lower($1)) > 0)`},
		[]any{q})
}

// Remove implements Catalog
func (c *PostgresCatalog) Remove(ctx context.Context, id string) error {
	if _, err := c.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, id); err != nil {
		return apperr.Storage("failed to remove file", err)
	}
	return nil
}
