// Package users is the identity directory: registration records and the
// display names stamped on new messages.
package users

import (
	"context"
	"strings"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"
)

// UnknownAuthor is the display name used when the author record is gone
const UnknownAuthor = "Unknown"

// Directory stores registered users
type Directory interface {
	// Create assigns an id and creation time when they are empty.
	// Duplicate student ids or emails are rejected with a conflict.
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByStudentID(ctx context.Context, studentID string) (*models.User, error)
}

// DisplayName resolves the name stamped on a message written by userID.
// A missing user resolves to UnknownAuthor instead of an error.
func DisplayName(ctx context.Context, dir Directory, userID string) (string, error) {
	u, err := dir.FindByID(ctx, userID)
	if apperr.Is(err, apperr.KindNotFound) {
		return UnknownAuthor, nil
	}
	if err != nil {
		return "", err
	}
	return u.DisplayName(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userNotFound() error {
	return apperr.NotFound("User not found")
}

func studentIDTaken() error {
	return apperr.Conflict("Student ID already registered")
}

func emailTaken() error {
	return apperr.Conflict("Email already registered")
}
