// Package attachments turns files stored alongside a chat post into
// references embedded in the message.
package attachments

import (
	"context"

	"campushub/server/internal/files"
	"campushub/server/internal/metrics"
	"campushub/server/internal/models"

	"go.uber.org/zap"
)

// Description is the catalog description given to chat attachments
const Description = "Chat attachment"

// Linker registers stored chat uploads in the file catalog
type Linker struct {
	catalog files.Catalog
	log     *zap.Logger
}

// NewLinker creates a linker backed by catalog
func NewLinker(catalog files.Catalog, log *zap.Logger) *Linker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Linker{catalog: catalog, log: log}
}

// LinkUploaded registers every stored file under the chat-attachment type
// and returns the references in input order. No blob is read or written.
// If any registration fails the ones already made are removed again.
func (l *Linker) LinkUploaded(ctx context.Context, uploaderID string, stored []files.StoredFile) ([]models.AttachmentRef, error) {
	refs := make([]models.AttachmentRef, 0, len(stored))
	for _, f := range stored {
		rec := &models.FileRecord{
			StorageKey:   f.StorageKey,
			OriginalName: f.OriginalName,
			FileType:     models.ChatAttachmentType,
			Description:  Description,
			ContentType:  f.ContentType,
			Size:         f.Size,
			UploadedBy:   uploaderID,
		}
		if err := l.catalog.Register(ctx, rec); err != nil {
			l.Unlink(ctx, refs)
			return nil, err
		}
		refs = append(refs, models.AttachmentRef{
			ID:           rec.ID,
			StorageKey:   rec.StorageKey,
			OriginalName: rec.OriginalName,
			Size:         rec.Size,
			ContentType:  rec.ContentType,
		})
	}

	metrics.AttachmentsLinked.Add(float64(len(refs)))
	return refs, nil
}

// Unlink removes catalog entries created by LinkUploaded. Failures are
// logged and skipped so every entry gets a removal attempt.
func (l *Linker) Unlink(ctx context.Context, refs []models.AttachmentRef) {
	for _, ref := range refs {
		if err := l.catalog.Remove(ctx, ref.ID); err != nil {
			l.log.Warn("failed to unlink attachment",
				zap.String("file_id", ref.ID), zap.Error(err))
		}
	}
}
