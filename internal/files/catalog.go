package files

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"github.com/google/uuid"
)

// Catalog is the file metadata index
type Catalog interface {
	// Register stores rec, assigning an id and upload time when they are empty.
	Register(ctx context.Context, rec *models.FileRecord) error
	Get(ctx context.Context, id string) (*models.FileRecord, error)
	// List returns matching records oldest first.
	List(ctx context.Context, filter models.FileFilter) ([]models.FileRecord, error)
	// Search matches q case-insensitively against name and description.
	// An empty query returns everything.
	Search(ctx context.Context, q string) ([]models.FileRecord, error)
	// Remove deletes a record. Removing a missing record is not an error.
	Remove(ctx context.Context, id string) error
}

func prepare(rec *models.FileRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now().UTC()
	}
}

func fileNotFound() error {
	return apperr.NotFound("File not found")
}

func matchesQuery(rec *models.FileRecord, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(rec.OriginalName), q) ||
		strings.Contains(strings.ToLower(rec.Description), q)
}

// MemoryCatalog keeps file records in process memory
type MemoryCatalog struct {
	mu      sync.RWMutex
	records map[string]models.FileRecord
	seq     map[string]int
	next    int
}

// NewMemoryCatalog creates an empty catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		records: make(map[string]models.FileRecord),
		seq:     make(map[string]int),
	}
}

// Register implements Catalog
func (c *MemoryCatalog) Register(ctx context.Context, rec *models.FileRecord) error {
	prepare(rec)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[rec.ID]; ok {
		return apperr.Conflict("File already registered")
	}
	c.records[rec.ID] = *rec
	c.seq[rec.ID] = c.next
	c.next++
	return nil
}

// Get implements Catalog
func (c *MemoryCatalog) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[id]
	if !ok {
		return nil, fileNotFound()
	}
	return &rec, nil
}

func (c *MemoryCatalog) collect(keep func(*models.FileRecord) bool) []models.FileRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []models.FileRecord{}
	for _, rec := range c.records {
		if keep(&rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		return c.seq[out[i].ID] < c.seq[out[j].ID]
	})
	return out
}

// List implements Catalog
func (c *MemoryCatalog) List(ctx context.Context, filter models.FileFilter) ([]models.FileRecord, error) {
	return c.collect(filter.Matches), nil
}

// Search implements Catalog
func (c *MemoryCatalog) Search(ctx context.Context, q string) ([]models.FileRecord, error) {
	q = strings.TrimSpace(q)
	return c.collect(func(rec *models.FileRecord) bool {
		return q == "" || matchesQuery(rec, q)
	}), nil
}

// Remove implements Catalog
func (c *MemoryCatalog) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.records, id)
	delete(c.seq, id)
	return nil
}
