package files

import (
	"context"
	"io"
	"strings"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"go.uber.org/zap"
)

// Metadata describes a course-material upload
type Metadata struct {
	FileType    string
	Description string
	Course      string
	Semester    string
}

// Library is the course-material side of the file store
type Library struct {
	blobs   BlobStore
	catalog Catalog
	log     *zap.Logger
}

// NewLibrary wires a blob store to a catalog
func NewLibrary(blobs BlobStore, catalog Catalog, log *zap.Logger) *Library {
	if log == nil {
		log = zap.NewNop()
	}
	return &Library{blobs: blobs, catalog: catalog, log: log}
}

// Upload stores a single file and registers it
func (l *Library) Upload(ctx context.Context, uploaderID string, up Upload, meta Metadata) (*models.FileRecord, error) {
	stored, err := l.blobs.Save(ctx, up)
	if err != nil {
		return nil, err
	}

	rec := &models.FileRecord{
		StorageKey:   stored.StorageKey,
		OriginalName: stored.OriginalName,
		FileType:     strings.TrimSpace(meta.FileType),
		Description:  strings.TrimSpace(meta.Description),
		Course:       strings.TrimSpace(meta.Course),
		Semester:     strings.TrimSpace(meta.Semester),
		ContentType:  stored.ContentType,
		Size:         stored.Size,
		UploadedBy:   uploaderID,
	}
	if err := l.catalog.Register(ctx, rec); err != nil {
		if delErr := l.blobs.Delete(ctx, stored.StorageKey); delErr != nil {
			l.log.Warn("failed to remove orphaned blob",
				zap.String("storage_key", stored.StorageKey), zap.Error(delErr))
		}
		return nil, err
	}
	return rec, nil
}

// List returns catalog entries matching the filter
func (l *Library) List(ctx context.Context, filter models.FileFilter) ([]models.FileRecord, error) {
	return l.catalog.List(ctx, filter)
}

// Search returns catalog entries whose name or description contain q
func (l *Library) Search(ctx context.Context, q string) ([]models.FileRecord, error) {
	return l.catalog.Search(ctx, q)
}

// Get returns a single catalog entry
func (l *Library) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	return l.catalog.Get(ctx, id)
}

// Open returns the record and a reader for its contents. The caller closes the reader.
func (l *Library) Open(ctx context.Context, id string) (*models.FileRecord, io.ReadCloser, error) {
	rec, err := l.catalog.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := l.blobs.Open(ctx, rec.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return rec, body, nil
}

// Delete removes a file. Only the uploader may delete it.
func (l *Library) Delete(ctx context.Context, callerID, id string) error {
	rec, err := l.catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.UploadedBy != callerID {
		return apperr.Forbidden("Only the uploader can delete this file")
	}

	if err := l.catalog.Remove(ctx, id); err != nil {
		return err
	}
	if err := l.blobs.Delete(ctx, rec.StorageKey); err != nil {
		// The record is gone already; a leftover blob is only wasted space
		l.log.Warn("failed to delete blob", zap.String("storage_key", rec.StorageKey), zap.Error(err))
	}
	return nil
}
