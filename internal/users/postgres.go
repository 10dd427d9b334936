package users

import (
	"context"
	"errors"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps users in the users table
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool. The schema is created by database.Migrate.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const userColumns = `id, student_id, full_name, email, course, campus, password_hash, created_at`

// Create implements Directory
func (d *Postgres) Create(ctx context.Context, user *models.User) error {
	if user.StudentID == "" {
		return apperr.Validation("studentId is required")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.StudentID, user.FullName, normalizeEmail(user.Email),
		user.Course, user.Campus, user.Password, user.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "users_student_id_key":
			return studentIDTaken()
		case "users_email_key":
			return emailTaken()
		default:
			return apperr.Conflict("User already exists")
		}
	}
	if err != nil {
		return apperr.Storage("failed to create user", err)
	}
	return nil
}

func (d *Postgres) findOne(ctx context.Context, where string, arg string) (*models.User, error) {
	var u models.User
	err := d.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` = $1`, arg).
		Scan(&u.ID, &u.StudentID, &u.FullName, &u.Email, &u.Course, &u.Campus, &u.Password, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, userNotFound()
	}
	if err != nil {
		return nil, apperr.Storage("failed to load user", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// FindByID implements Directory
func (d *Postgres) FindByID(ctx context.Context, id string) (*models.User, error) {
	return d.findOne(ctx, "id", id)
}

// FindByStudentID implements Directory
func (d *Postgres) FindByStudentID(ctx context.Context, studentID string) (*models.User, error) {
	return d.findOne(ctx, "student_id", studentID)
}
