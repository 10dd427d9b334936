package legacy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"campushub/server/internal/files"
	"campushub/server/internal/membership"
	"campushub/server/internal/messages"
	"campushub/server/internal/models"
	"campushub/server/internal/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersJSON = `[
  {"id":"1700000000000","studentId":"S100","password":"$2a$10$abcdefghijklmnopqrstuv","fullName":"Ayu Lestari","email":"ayu@campus.ac.id","course":"CS","campus":"Main","createdAt":"2024-01-10T08:00:00.000Z"},
  {"id":"1700000000001","studentId":"S101","password":"$2a$10$abcdefghijklmnopqrstuv","fullName":"Budi","email":"budi@campus.ac.id","course":"CS","campus":"Main","createdAt":"2024-01-11T08:00:00.000Z"},
  {"id":"1700000000002","studentId":"S100","password":"x","fullName":"Duplicate","email":"","course":"","campus":"","createdAt":"2024-01-12T08:00:00.000Z"}
]`

const filesJSON = `[
  {"id":"1700000000100","filename":"1700000000100-notes.pdf","originalName":"notes.pdf","fileType":"lecture","description":"Week 1","course":"CS101","semester":null,"uploadedBy":"1700000000000","uploadedAt":"2024-02-01T10:00:00.000Z","size":2048,"path":"uploads/1700000000100-notes.pdf"}
]`

const groupsJSON = `[
  {"id":"g-study","name":"Study","createdBy":"1700000000000","members":["1700000000000","1700000000001","1700000000000"],"createdAt":"2024-02-02T10:00:00.000Z"},
  {"id":"default","name":"General","createdBy":"","members":[],"createdAt":"2024-01-01T00:00:00.000Z"}
]`

const chatJSON = `[
  {"id":"m1","userId":"1700000000000","userName":"Ayu Lestari","text":"hello everyone","attachment":null,"attachments":[],"replyTo":null,"createdAt":"2024-03-01T09:00:00.000Z"},
  {"id":"m2","userId":"1700000000001","userName":"Budi","text":"  ","attachment":{"id":"a1","filename":"1700000000200-slides.pptx","originalName":"slides.pptx","path":"uploads/chat/x"},"replyTo":{"id":"m1","userName":"Ayu Lestari","text":"hello everyone"},"createdAt":"2024-03-01T09:01:00.000Z"},
  {"id":"m3","userId":"1700000000001","userName":"Budi","text":"","attachments":[],"createdAt":"2024-03-01T09:02:00.000Z"},
  {"id":"m4","groupId":"g-study","userId":"1700000000000","userName":"","text":"study at 7","createdAt":"2024-03-01T09:03:00.000Z"}
]`

type fixture struct {
	users    *users.Memory
	members  *membership.Memory
	messages *messages.Memory
	catalog  *files.MemoryCatalog
	importer *Importer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:    users.NewMemory(),
		members:  membership.NewMemory(),
		messages: messages.NewMemory(nil),
		catalog:  files.NewMemoryCatalog(),
	}
	_, err := f.members.EnsureDefault(context.Background())
	require.NoError(t, err)
	f.importer = NewImporter(f.users, f.members, f.messages, f.catalog, nil)
	return f
}

func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		UsersFile:  usersJSON,
		FilesFile:  filesJSON,
		GroupsFile: groupsJSON,
		ChatFile:   chatJSON,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestImportDir(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.importer.ImportDir(ctx, writeDataDir(t))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Users)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 1, report.Groups)
	assert.Equal(t, 3, report.Messages)
	// duplicate student id, default group, empty message
	assert.Equal(t, 3, report.Skipped)

	u, err := f.users.FindByID(ctx, "1700000000000")
	require.NoError(t, err)
	assert.Equal(t, "Ayu Lestari", u.FullName)
	assert.True(t, strings.HasPrefix(u.Password, "$2a$"))

	rec, err := f.catalog.Get(ctx, "1700000000100")
	require.NoError(t, err)
	assert.Equal(t, "1700000000100-notes.pdf", rec.StorageKey)
	assert.Equal(t, "CS101", rec.Course)
	assert.Empty(t, rec.Semester)

	g, err := f.members.GetGroup(ctx, "g-study")
	require.NoError(t, err)
	assert.False(t, g.IsDefault)
	assert.ElementsMatch(t, []string{"1700000000000", "1700000000001"}, g.Members)

	general, err := f.messages.QueryGroup(ctx, models.DefaultGroupID, nil)
	require.NoError(t, err)
	require.Len(t, general.Messages, 2)
	assert.Equal(t, "m1", general.Messages[0].ID)
	assert.Nil(t, general.Messages[0].GroupID)

	withFile := general.Messages[1]
	assert.Nil(t, withFile.Text)
	require.Len(t, withFile.Attachments, 1)
	assert.Equal(t, "1700000000200-slides.pptx", withFile.Attachments[0].StorageKey)
	require.NotNil(t, withFile.ReplyTo)
	assert.Equal(t, "m1", withFile.ReplyTo.ID)
	assert.Equal(t, "hello everyone", withFile.ReplyTo.TextExcerpt)

	study, err := f.messages.QueryGroup(ctx, "g-study", nil)
	require.NoError(t, err)
	require.Len(t, study.Messages, 1)
	assert.Equal(t, users.UnknownAuthor, study.Messages[0].AuthorDisplayName)
}

func TestImportDirIsRepeatable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := writeDataDir(t)

	_, err := f.importer.ImportDir(ctx, dir)
	require.NoError(t, err)
	_, err = f.importer.ImportDir(ctx, dir)
	require.NoError(t, err)

	general, err := f.messages.QueryGroup(ctx, models.DefaultGroupID, nil)
	require.NoError(t, err)
	assert.Len(t, general.Messages, 2)
}

func TestImportDirSkipsMissingFiles(t *testing.T) {
	f := newFixture(t)

	report, err := f.importer.ImportDir(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Report{}, *report)
}

func TestImportRejectsMalformedJSON(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ChatFile), []byte(`{"not":"an array"`), 0o644))

	_, err := f.importer.ImportDir(context.Background(), dir)
	assert.ErrorContains(t, err, ChatFile)
}

func TestParseTime(t *testing.T) {
	assert.Equal(t, 2024, parseTime("2024-03-01T09:00:00.000Z").Year())
	assert.Equal(t, int64(1700000000000), parseTime("1700000000000").UnixMilli())
	assert.True(t, parseTime("yesterday").IsZero())
}
