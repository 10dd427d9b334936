package files

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"campushub/server/internal/apperr"
)

// LocalStore keeps blobs under a directory on disk
type LocalStore struct {
	dir    string
	policy Policy
}

// NewLocalStore creates the upload directory if needed
func NewLocalStore(dir string, policy Policy) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperr.Storage("failed to create upload directory", err)
	}
	return &LocalStore{dir: dir, policy: policy}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	if !validKey(key) {
		return "", apperr.Validation("invalid storage key")
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}

// Save implements BlobStore
func (s *LocalStore) Save(ctx context.Context, up Upload) (*StoredFile, error) {
	if err := s.policy.Check(&up); err != nil {
		return nil, err
	}

	key := newKey(up)
	fullPath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, apperr.Storage("failed to create upload directory", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return nil, apperr.Storage("failed to save file", err)
	}

	body := up.Body
	if s.policy.MaxBytes > 0 {
		// One extra byte tells an oversized stream apart from an exact fit
		body = io.LimitReader(body, s.policy.MaxBytes+1)
	}
	written, copyErr := io.Copy(f, body)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		os.Remove(fullPath)
		return nil, apperr.Storage("failed to save file", copyErr)
	case closeErr != nil:
		os.Remove(fullPath)
		return nil, apperr.Storage("failed to save file", closeErr)
	case s.policy.MaxBytes > 0 && written > s.policy.MaxBytes:
		os.Remove(fullPath)
		return nil, apperr.Validation("File size exceeds limit of %s", formatMB(s.policy.MaxBytes))
	}

	return &StoredFile{
		StorageKey:   key,
		OriginalName: up.Filename,
		ContentType:  up.ContentType,
		Size:         written,
	}, nil
}

// Open implements BlobStore
func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("File not found")
	}
	if err != nil {
		return nil, apperr.Storage("failed to open file", err)
	}
	return f, nil
}

// Delete implements BlobStore
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	fullPath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.Storage("failed to delete file", err)
	}
	return nil
}
