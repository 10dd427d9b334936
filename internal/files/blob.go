// Package files is the file store: binary blobs on disk or S3 plus the
// metadata catalog used for course-material browsing.
package files

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"campushub/server/internal/apperr"

	"github.com/google/uuid"
)

// Upload is a single incoming file
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// StoredFile is what the blob store hands back after a successful save
type StoredFile struct {
	StorageKey   string `json:"storageKey"`
	OriginalName string `json:"originalName"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
}

// BlobStore persists raw file contents
type BlobStore interface {
	Save(ctx context.Context, up Upload) (*StoredFile, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, key string) error
}

// knownTypes maps extensions to the content type stored with the blob
var knownTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".md":   "text/markdown",
	".zip":  "application/zip",
}

// executableTypes are refused outright. Anything else is stored, unknown
// extensions as application/octet-stream.
var executableTypes = map[string]struct{}{
	".exe": {}, ".msi": {}, ".bat": {}, ".cmd": {}, ".com": {},
	".scr": {}, ".ps1": {}, ".sh": {}, ".dll": {}, ".apk": {},
}

// ContentTypeFor returns the content type for a file name based on its extension
func ContentTypeFor(name string) string {
	if ct, ok := knownTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// category groups blobs into subdirectories the same way for every backend
func category(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "images"
	case strings.HasPrefix(contentType, "video/"):
		return "videos"
	case strings.HasPrefix(contentType, "audio/"):
		return "audios"
	default:
		return "files"
	}
}

// Policy holds the checks applied to every upload before it is stored
type Policy struct {
	MaxBytes int64
}

// Check validates the upload and fills in its content type
func (p Policy) Check(up *Upload) error {
	name := filepath.Base(strings.TrimSpace(up.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return apperr.Validation("File name is required")
	}
	up.Filename = name

	ext := strings.ToLower(filepath.Ext(name))
	if _, denied := executableTypes[ext]; denied {
		return apperr.Validation("File extension %s not allowed", ext)
	}
	up.ContentType = ContentTypeFor(name)

	if p.MaxBytes > 0 && up.Size > p.MaxBytes {
		return apperr.Validation("File size exceeds limit of %s (uploaded: %s)",
			formatMB(p.MaxBytes), formatMB(up.Size))
	}
	return nil
}

func formatMB(n int64) string {
	return fmt.Sprintf("%.2fMB", float64(n)/(1024*1024))
}

// newKey builds a unique storage key for a file
func newKey(up Upload) string {
	ext := strings.ToLower(filepath.Ext(up.Filename))
	return fmt.Sprintf("%s/%s-%d%s", category(up.ContentType), uuid.New().String(), time.Now().Unix(), ext)
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return false
		}
	}
	return true
}
