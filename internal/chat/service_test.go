package chat

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/files"
	"campushub/server/internal/membership"
	"campushub/server/internal/messages"
	"campushub/server/internal/models"
	"campushub/server/internal/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	notified []*models.Message
}

func (r *recordingNotifier) NotifyGroup(ctx context.Context, msg *models.Message) {
	r.notified = append(r.notified, msg)
}

type failingPublisher struct{}

func (failingPublisher) MessageCreated(context.Context, *models.Message) error {
	return errors.New("broker down")
}

func (failingPublisher) Close() error { return nil }

// stalledPublisher blocks until its context gives up, like a writer
// retrying against an unreachable broker
type stalledPublisher struct{ gaveUp chan error }

func (p stalledPublisher) MessageCreated(ctx context.Context, _ *models.Message) error {
	<-ctx.Done()
	p.gaveUp <- ctx.Err()
	return ctx.Err()
}

func (stalledPublisher) Close() error { return nil }

// brokenLog accepts nothing
type brokenLog struct{ *messages.Memory }

func (brokenLog) Append(context.Context, models.Draft) (*models.Message, error) {
	return nil, apperr.Storage("failed to append message", errors.New("disk full"))
}

type fixture struct {
	svc       *Service
	members   *membership.Memory
	users     *users.Memory
	catalog   *files.MemoryCatalog
	uploadDir string
	notifier  *recordingNotifier
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()
	dir := t.TempDir()
	blobs, err := files.NewLocalStore(dir, files.Policy{MaxBytes: 1 << 20})
	require.NoError(t, err)

	f := &fixture{
		members:   membership.NewMemory(),
		users:     users.NewMemory(),
		catalog:   files.NewMemoryCatalog(),
		uploadDir: dir,
		notifier:  &recordingNotifier{},
	}
	d := Deps{
		Members:  f.members,
		Messages: messages.NewMemory(nil),
		Users:    f.users,
		Blobs:    blobs,
		Catalog:  f.catalog,
		Notifier: f.notifier,
	}
	for _, opt := range opts {
		opt(&d)
	}
	f.svc = NewService(d)
	return f
}

func (f *fixture) register(t *testing.T, id, name string) {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), &models.User{
		ID: id, StudentID: "S-" + id, FullName: name,
	}))
}

func (f *fixture) blobCount(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(f.uploadDir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	})
	require.NoError(t, err)
	return n
}

func pdf(name string) files.Upload {
	body := "%PDF-1.4 " + name
	return files.Upload{Filename: name, Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestGroupLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "U1", "U1")
	f.register(t, "U2", "U2")

	g, err := f.svc.CreateGroup(ctx, "U1", "Algorithms")
	require.NoError(t, err)
	assert.Equal(t, []string{"U1"}, g.Members)

	g, added, err := f.svc.AddMember(ctx, "U1", g.ID, "U2")
	require.NoError(t, err)
	assert.True(t, added)
	assert.ElementsMatch(t, []string{"U1", "U2"}, g.Members)

	_, added, err = f.svc.AddMember(ctx, "U1", g.ID, "U2")
	require.NoError(t, err)
	assert.False(t, added)

	visible, err := f.svc.ListGroups(ctx, "U2")
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.True(t, visible[0].IsDefault)
	assert.Equal(t, g.ID, visible[1].ID)
}

func TestAddMemberChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "U1", "U1")
	f.register(t, "U2", "U2")

	g, err := f.svc.CreateGroup(ctx, "U1", "Algorithms")
	require.NoError(t, err)

	_, _, err = f.svc.AddMember(ctx, "U2", g.ID, "U2")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, _, err = f.svc.AddMember(ctx, "U1", g.ID, "ghost")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, _, err = f.svc.AddMember(ctx, "U1", "missing", "U2")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, _, err = f.svc.AddMember(ctx, "U1", g.ID, " ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestPostAndReply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "U1", "U1")
	f.register(t, "U2", "U2")

	g, err := f.svc.CreateGroup(ctx, "U1", "Algorithms")
	require.NoError(t, err)
	_, _, err = f.svc.AddMember(ctx, "U1", g.ID, "U2")
	require.NoError(t, err)

	hi, err := f.svc.Post(ctx, PostInput{CallerID: "U1", GroupID: g.ID, Text: "Hi"})
	require.NoError(t, err)
	require.NotNil(t, hi.GroupID)
	assert.Equal(t, g.ID, *hi.GroupID)
	assert.Equal(t, "U1", hi.AuthorDisplayName)

	back, err := f.svc.Post(ctx, PostInput{CallerID: "U2", GroupID: g.ID, Text: "Hello back", ReplyToID: hi.ID})
	require.NoError(t, err)
	require.NotNil(t, back.ReplyTo)
	assert.Equal(t, models.ReplySnapshot{ID: hi.ID, AuthorDisplayName: "U1", TextExcerpt: "Hi"}, *back.ReplyTo)

	assert.Len(t, f.notifier.notified, 2)
}

func TestPostAttachmentsOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "U1", "U1")

	msg, err := f.svc.Post(ctx, PostInput{
		CallerID: "U1",
		GroupID:  models.DefaultGroupID,
		Files:    []files.Upload{pdf("a.pdf"), pdf("b.pdf"), pdf("c.pdf")},
	})
	require.NoError(t, err)
	assert.Nil(t, msg.Text)
	assert.Nil(t, msg.GroupID)
	require.Len(t, msg.Attachments, 3)
	assert.Equal(t, "a.pdf", msg.Attachments[0].OriginalName)
	assert.Equal(t, "c.pdf", msg.Attachments[2].OriginalName)

	linked, err := f.catalog.List(ctx, models.FileFilter{FileType: models.ChatAttachmentType})
	require.NoError(t, err)
	assert.Len(t, linked, 3)
	assert.Equal(t, 3, f.blobCount(t))
}

func TestPostValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "U1", "U1")

	_, err := f.svc.Post(ctx, PostInput{CallerID: "U1", GroupID: models.DefaultGroupID, Text: "   "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	many := make([]files.Upload, 6)
	for i := range many {
		many[i] = pdf("x.pdf")
	}
	_, err = f.svc.Post(ctx, PostInput{CallerID: "U1", GroupID: models.DefaultGroupID, Files: many})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Post(ctx, PostInput{GroupID: models.DefaultGroupID, Text: "hi"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	assert.Equal(t, 0, f.blobCount(t))
}

func TestPostToPrivateGroupRequiresMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "U1", "U1")
	f.register(t, "U3", "U3")

	g, err := f.svc.CreateGroup(ctx, "U1", "Algorithms")
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, PostInput{CallerID: "U3", GroupID: g.ID, Text: "let me in", Files: []files.Upload{pdf("a.pdf")}})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, 0, f.blobCount(t))

	_, err = f.svc.Poll(ctx, "U3", g.ID, nil)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestPostRollsBackWhenAppendFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(d *Deps) {
		d.Messages = brokenLog{messages.NewMemory(nil)}
	})
	f.register(t, "U1", "U1")

	_, err := f.svc.Post(ctx, PostInput{
		CallerID: "U1",
		GroupID:  models.DefaultGroupID,
		Text:     "with files",
		Files:    []files.Upload{pdf("a.pdf"), pdf("b.pdf")},
	})
	assert.True(t, apperr.Is(err, apperr.KindStorage))

	linked, err := f.catalog.List(ctx, models.FileFilter{})
	require.NoError(t, err)
	assert.Empty(t, linked)
	assert.Equal(t, 0, f.blobCount(t))
	assert.Empty(t, f.notifier.notified)
}

func TestPostRollsBackStoredBlobsWhenLaterFileIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "U1", "U1")

	_, err := f.svc.Post(ctx, PostInput{
		CallerID: "U1",
		GroupID:  models.DefaultGroupID,
		Files:    []files.Upload{pdf("a.pdf"), {Filename: "run.exe", Size: 1, Body: strings.NewReader("x")}},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, 0, f.blobCount(t))
}

func TestPostSurvivesPublisherFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(d *Deps) {
		d.Publisher = failingPublisher{}
	})
	f.register(t, "U1", "U1")

	msg, err := f.svc.Post(ctx, PostInput{CallerID: "U1", GroupID: models.DefaultGroupID, Text: "still here"})
	require.NoError(t, err)

	batch, err := f.svc.Poll(ctx, "U1", models.DefaultGroupID, nil)
	require.NoError(t, err)
	require.Len(t, batch.Messages, 1)
	assert.Equal(t, msg.ID, batch.Messages[0].ID)
}

func TestPostDoesNotWaitForStalledPublisher(t *testing.T) {
	pub := stalledPublisher{gaveUp: make(chan error, 1)}
	f := newFixture(t, func(d *Deps) {
		d.Publisher = pub
		d.PublishTimeout = 20 * time.Millisecond
	})
	f.register(t, "U1", "U1")

	start := time.Now()
	_, err := f.svc.Post(context.Background(), PostInput{CallerID: "U1", GroupID: models.DefaultGroupID, Text: "broker is down"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, <-pub.gaveUp, context.DeadlineExceeded)
	assert.Len(t, f.notifier.notified, 1)
}

func TestPostByUnknownAuthor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	msg, err := f.svc.Post(ctx, PostInput{CallerID: "deleted-user", GroupID: models.DefaultGroupID, Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, users.UnknownAuthor, msg.AuthorDisplayName)
}

func TestPollSeesPostsInOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "U1", "U1")

	start := time.Now().Add(-time.Minute)
	for _, text := range []string{"one", "two", "three"} {
		_, err := f.svc.Post(ctx, PostInput{CallerID: "U1", GroupID: models.DefaultGroupID, Text: text})
		require.NoError(t, err)
	}

	batch, err := f.svc.Poll(ctx, "U2", models.DefaultGroupID, &start)
	require.NoError(t, err)
	require.Len(t, batch.Messages, 3)
	assert.Equal(t, "one", *batch.Messages[0].Text)
	assert.Equal(t, "three", *batch.Messages[2].Text)
}
