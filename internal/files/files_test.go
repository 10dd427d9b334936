package files

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T, max int64) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir(), Policy{MaxBytes: max})
	require.NoError(t, err)
	return s
}

func upload(name, body string) Upload {
	return Upload{Filename: name, Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestPolicyCheck(t *testing.T) {
	p := Policy{MaxBytes: 10}

	up := upload("../../notes.PDF", "x")
	require.NoError(t, p.Check(&up))
	assert.Equal(t, "notes.PDF", up.Filename)
	assert.Equal(t, "application/pdf", up.ContentType)

	up = upload("virus.exe", "x")
	assert.True(t, apperr.Is(p.Check(&up), apperr.KindValidation))

	up = upload("grades.csv", "x")
	require.NoError(t, p.Check(&up))
	assert.Equal(t, "text/csv", up.ContentType)

	for _, name := range []string{"lab.py", "README", "essay.odt"} {
		up = upload(name, "x")
		require.NoError(t, p.Check(&up), name)
		assert.Equal(t, "application/octet-stream", up.ContentType, name)
	}

	up = upload("big.txt", strings.Repeat("x", 11))
	assert.True(t, apperr.Is(p.Check(&up), apperr.KindValidation))

	up = upload("", "x")
	assert.True(t, apperr.Is(p.Check(&up), apperr.KindValidation))
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t, 1024)

	stored, err := s.Save(ctx, upload("lecture.pdf", "hello world"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.StorageKey, "files/"))
	assert.Equal(t, "lecture.pdf", stored.OriginalName)
	assert.Equal(t, int64(11), stored.Size)

	r, err := s.Open(ctx, stored.StorageKey)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	require.NoError(t, s.Delete(ctx, stored.StorageKey))
	require.NoError(t, s.Delete(ctx, stored.StorageKey))

	_, err = s.Open(ctx, stored.StorageKey)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLocalStoreRejectsUnderreportedSize(t *testing.T) {
	s := newLocal(t, 4)

	up := Upload{Filename: "a.txt", Size: 1, Body: strings.NewReader("too long")}
	_, err := s.Save(context.Background(), up)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	s := newLocal(t, 0)

	_, err := s.Open(context.Background(), "../etc/passwd")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.True(t, apperr.Is(s.Delete(context.Background(), "/abs"), apperr.KindValidation))
}

func TestMemoryCatalogListAndSearch(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []*models.FileRecord{
		{OriginalName: "Graphs.pdf", Description: "Week 1 notes", Course: "CS201", FileType: "notes", Semester: "1", UploadedAt: base},
		{OriginalName: "exam.docx", Description: "Past paper on GRAPHS", Course: "CS201", FileType: "exam", Semester: "2", UploadedAt: base.Add(time.Minute)},
		{OriginalName: "photo.png", Description: "Chat attachment", FileType: models.ChatAttachmentType, UploadedAt: base.Add(2 * time.Minute)},
	}
	for _, rec := range records {
		require.NoError(t, c.Register(ctx, rec))
		assert.NotEmpty(t, rec.ID)
	}

	all, err := c.List(ctx, models.FileFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Graphs.pdf", all[0].OriginalName)

	cs, err := c.List(ctx, models.FileFilter{Course: "CS201", Semester: "2"})
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "exam.docx", cs[0].OriginalName)

	hits, err := c.Search(ctx, "graphs")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	everything, err := c.Search(ctx, "  ")
	require.NoError(t, err)
	assert.Len(t, everything, 3)

	require.NoError(t, c.Remove(ctx, records[0].ID))
	_, err = c.Get(ctx, records[0].ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLibraryDeleteOnlyByUploader(t *testing.T) {
	ctx := context.Background()
	lib := NewLibrary(newLocal(t, 1024), NewMemoryCatalog(), nil)

	rec, err := lib.Upload(ctx, "u1", upload("notes.txt", "abc"), Metadata{Course: " CS201 ", FileType: "notes"})
	require.NoError(t, err)
	assert.Equal(t, "CS201", rec.Course)
	assert.Equal(t, "u1", rec.UploadedBy)

	err = lib.Delete(ctx, "u2", rec.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	got, body, err := lib.Open(ctx, rec.ID)
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, rec.ID, got.ID)

	require.NoError(t, lib.Delete(ctx, "u1", rec.ID))
	_, _, err = lib.Open(ctx, rec.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

type failingCatalog struct{ *MemoryCatalog }

func (failingCatalog) Register(context.Context, *models.FileRecord) error {
	return apperr.Storage("catalog down", io.ErrUnexpectedEOF)
}

func TestLibraryUploadRemovesBlobWhenRegisterFails(t *testing.T) {
	ctx := context.Background()
	blobs := &recordingBlobs{BlobStore: newLocal(t, 1024)}
	lib := NewLibrary(blobs, failingCatalog{NewMemoryCatalog()}, nil)

	_, err := lib.Upload(ctx, "u1", upload("notes.txt", "abc"), Metadata{})
	assert.True(t, apperr.Is(err, apperr.KindStorage))
	require.Len(t, blobs.saved, 1)
	assert.Equal(t, blobs.saved, blobs.deleted)
}

type recordingBlobs struct {
	BlobStore
	saved   []string
	deleted []string
}

func (r *recordingBlobs) Save(ctx context.Context, up Upload) (*StoredFile, error) {
	stored, err := r.BlobStore.Save(ctx, up)
	if err == nil {
		r.saved = append(r.saved, stored.StorageKey)
	}
	return stored, err
}

func (r *recordingBlobs) Delete(ctx context.Context, key string) error {
	r.deleted = append(r.deleted, key)
	return r.BlobStore.Delete(ctx, key)
}
