package users

import (
	"context"
	"sync"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"github.com/google/uuid"
)

// Memory keeps users in process memory
type Memory struct {
	mu          sync.RWMutex
	byID        map[string]*models.User
	byStudentID map[string]string
	byEmail     map[string]string
}

// NewMemory creates an empty directory
func NewMemory() *Memory {
	return &Memory{
		byID:        make(map[string]*models.User),
		byStudentID: make(map[string]string),
		byEmail:     make(map[string]string),
	}
}

// Create implements Directory
func (d *Memory) Create(ctx context.Context, user *models.User) error {
	if user.StudentID == "" {
		return apperr.Validation("studentId is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byStudentID[user.StudentID]; ok {
		return studentIDTaken()
	}
	email := normalizeEmail(user.Email)
	if email != "" {
		if _, ok := d.byEmail[email]; ok {
			return emailTaken()
		}
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, ok := d.byID[user.ID]; ok {
		return apperr.Conflict("User already exists")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	stored := *user
	d.byID[stored.ID] = &stored
	d.byStudentID[stored.StudentID] = stored.ID
	if email != "" {
		d.byEmail[email] = stored.ID
	}
	return nil
}

// FindByID implements Directory
func (d *Memory) FindByID(ctx context.Context, id string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byID[id]
	if !ok {
		return nil, userNotFound()
	}
	cp := *u
	return &cp, nil
}

// FindByStudentID implements Directory
func (d *Memory) FindByStudentID(ctx context.Context, studentID string) (*models.User, error) {
	d.mu.RLock()
	id, ok := d.byStudentID[studentID]
	d.mu.RUnlock()

	if !ok {
		return nil, userNotFound()
	}
	return d.FindByID(ctx, id)
}
