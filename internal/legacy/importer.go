// Package legacy imports the JSON data files written by the previous
// single-process server.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/files"
	"campushub/server/internal/membership"
	"campushub/server/internal/messages"
	"campushub/server/internal/models"
	"campushub/server/internal/users"

	"go.uber.org/zap"
)

// Data file names inside the legacy data directory
const (
	UsersFile  = "users.json"
	FilesFile  = "files.json"
	ChatFile   = "chat.json"
	GroupsFile = "groups.json"
)

type legacyUser struct {
	ID        string `json:"id"`
	StudentID string `json:"studentId"`
	Password  string `json:"password"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Course    string `json:"course"`
	Campus    string `json:"campus"`
	CreatedAt string `json:"createdAt"`
}

type legacyFile struct {
	ID           string  `json:"id"`
	Filename     string  `json:"filename"`
	OriginalName string  `json:"originalName"`
	FileType     *string `json:"fileType"`
	Description  *string `json:"description"`
	Course       *string `json:"course"`
	Semester     *string `json:"semester"`
	UploadedBy   string  `json:"uploadedBy"`
	UploadedAt   string  `json:"uploadedAt"`
	Size         int64   `json:"size"`
}

type legacyAttachment struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}

type legacyReply struct {
	ID       string  `json:"id"`
	UserName string  `json:"userName"`
	Text     *string `json:"text"`
}

type legacyMessage struct {
	ID          string             `json:"id"`
	GroupID     *string            `json:"groupId"`
	UserID      string             `json:"userId"`
	UserName    string             `json:"userName"`
	Text        *string            `json:"text"`
	Attachment  *legacyAttachment  `json:"attachment"`
	Attachments []legacyAttachment `json:"attachments"`
	ReplyTo     *legacyReply       `json:"replyTo"`
	CreatedAt   string             `json:"createdAt"`
}

type legacyGroup struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	CreatedBy string   `json:"createdBy"`
	Members   []string `json:"members"`
	CreatedAt string   `json:"createdAt"`
}

// Report counts what an import did
type Report struct {
	Users    int `json:"users"`
	Files    int `json:"files"`
	Groups   int `json:"groups"`
	Messages int `json:"messages"`
	Skipped  int `json:"skipped"`
}

// Importer restores legacy records into the configured stores. Re-running
// an import skips records that already exist.
type Importer struct {
	users    users.Directory
	members  membership.Store
	messages messages.Store
	catalog  files.Catalog
	log      *zap.Logger
}

// NewImporter creates an importer
func NewImporter(dir users.Directory, members membership.Store, msgs messages.Store, catalog files.Catalog, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{users: dir, members: members, messages: msgs, catalog: catalog, log: log}
}

// ImportDir imports every known data file found in dir. Missing files are skipped.
func (im *Importer) ImportDir(ctx context.Context, dir string) (*Report, error) {
	report := &Report{}

	steps := []struct {
		name string
		run  func(context.Context, io.Reader, *Report) error
	}{
		{UsersFile, im.ImportUsers},
		{FilesFile, im.ImportFiles},
		{GroupsFile, im.ImportGroups},
		{ChatFile, im.ImportMessages},
	}

	for _, step := range steps {
		f, err := os.Open(filepath.Join(dir, step.name))
		if errors.Is(err, os.ErrNotExist) {
			im.log.Info("legacy file not found, skipping", zap.String("file", step.name))
			continue
		}
		if err != nil {
			return report, err
		}

		err = step.run(ctx, f, report)
		f.Close()
		if err != nil {
			return report, fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return report, nil
}

func decodeAll[T any](r io.Reader) ([]T, error) {
	var out []T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// parseTime accepts ISO-8601 strings and millisecond epoch strings
func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	var ms int64
	if _, err := fmt.Sscanf(raw, "%d", &ms); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ImportUsers restores users.json. Password hashes are kept as they are.
func (im *Importer) ImportUsers(ctx context.Context, r io.Reader, report *Report) error {
	records, err := decodeAll[legacyUser](r)
	if err != nil {
		return err
	}

	for _, lu := range records {
		u := &models.User{
			ID:        lu.ID,
			StudentID: lu.StudentID,
			FullName:  lu.FullName,
			Email:     lu.Email,
			Course:    lu.Course,
			Campus:    lu.Campus,
			Password:  lu.Password,
			CreatedAt: parseTime(lu.CreatedAt),
		}
		if err := im.users.Create(ctx, u); err != nil {
			if apperr.Is(err, apperr.KindConflict) || apperr.Is(err, apperr.KindValidation) {
				im.log.Warn("skipping user", zap.String("id", lu.ID), zap.Error(err))
				report.Skipped++
				continue
			}
			return err
		}
		report.Users++
	}
	return nil
}

// ImportFiles restores the course-material catalog. Blobs are expected to
// be copied into the upload directory under their legacy file names.
func (im *Importer) ImportFiles(ctx context.Context, r io.Reader, report *Report) error {
	records, err := decodeAll[legacyFile](r)
	if err != nil {
		return err
	}

	for _, lf := range records {
		rec := &models.FileRecord{
			ID:           lf.ID,
			StorageKey:   lf.Filename,
			OriginalName: lf.OriginalName,
			FileType:     deref(lf.FileType),
			Description:  deref(lf.Description),
			Course:       deref(lf.Course),
			Semester:     deref(lf.Semester),
			ContentType:  files.ContentTypeFor(lf.OriginalName),
			Size:         lf.Size,
			UploadedBy:   lf.UploadedBy,
			UploadedAt:   parseTime(lf.UploadedAt),
		}
		if err := im.catalog.Register(ctx, rec); err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				report.Skipped++
				continue
			}
			return err
		}
		report.Files++
	}
	return nil
}

// ImportGroups restores groups.json
func (im *Importer) ImportGroups(ctx context.Context, r io.Reader, report *Report) error {
	records, err := decodeAll[legacyGroup](r)
	if err != nil {
		return err
	}

	for _, lg := range records {
		if lg.ID == "" || lg.ID == models.DefaultGroupID {
			report.Skipped++
			continue
		}
		err := im.members.RestoreGroup(ctx, models.Group{
			ID:        lg.ID,
			Name:      lg.Name,
			CreatedBy: lg.CreatedBy,
			Members:   lg.Members,
			CreatedAt: parseTime(lg.CreatedAt),
		})
		if err != nil {
			return err
		}
		report.Groups++
	}
	return nil
}

// ImportMessages restores chat.json. Messages without a group belong to
// the default group; messages with neither text nor attachments are dropped.
func (im *Importer) ImportMessages(ctx context.Context, r io.Reader, report *Report) error {
	records, err := decodeAll[legacyMessage](r)
	if err != nil {
		return err
	}

	for _, lm := range records {
		msg, ok := convertMessage(lm)
		if !ok {
			im.log.Warn("skipping invalid legacy message", zap.String("id", lm.ID))
			report.Skipped++
			continue
		}
		if err := im.messages.Restore(ctx, msg); err != nil {
			return err
		}
		report.Messages++
	}
	return nil
}

func convertMessage(lm legacyMessage) (models.Message, bool) {
	createdAt := parseTime(lm.CreatedAt)
	if lm.ID == "" || createdAt.IsZero() {
		return models.Message{}, false
	}

	legacyAtts := lm.Attachments
	if len(legacyAtts) == 0 && lm.Attachment != nil {
		legacyAtts = []legacyAttachment{*lm.Attachment}
	}
	atts := make([]models.AttachmentRef, 0, len(legacyAtts))
	for _, a := range legacyAtts {
		atts = append(atts, models.AttachmentRef{
			ID:           a.ID,
			StorageKey:   a.Filename,
			OriginalName: a.OriginalName,
			Size:         a.Size,
			ContentType:  files.ContentTypeFor(a.OriginalName),
		})
	}

	var text *string
	if lm.Text != nil {
		text = models.NormalizeText(*lm.Text)
	}
	if text == nil && len(atts) == 0 {
		return models.Message{}, false
	}

	name := lm.UserName
	if name == "" {
		name = users.UnknownAuthor
	}

	msg := models.Message{
		ID:                lm.ID,
		GroupID:           models.ScopeFor(deref(lm.GroupID)),
		AuthorID:          lm.UserID,
		AuthorDisplayName: name,
		Text:              text,
		Attachments:       atts,
		CreatedAt:         createdAt,
	}
	if lm.ReplyTo != nil && lm.ReplyTo.ID != "" {
		msg.ReplyTo = &models.ReplySnapshot{
			ID:                lm.ReplyTo.ID,
			AuthorDisplayName: lm.ReplyTo.UserName,
			TextExcerpt:       models.Excerpt(deref(lm.ReplyTo.Text), models.ReplyExcerptLimit),
		}
	}
	return msg, true
}
