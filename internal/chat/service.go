// Package chat implements posting and group management on top of the
// message, membership and file stores.
package chat

import (
	"context"
	"strings"
	"time"

	"campushub/server/internal/access"
	"campushub/server/internal/apperr"
	"campushub/server/internal/attachments"
	"campushub/server/internal/events"
	"campushub/server/internal/files"
	"campushub/server/internal/membership"
	"campushub/server/internal/messages"
	"campushub/server/internal/metrics"
	"campushub/server/internal/models"
	"campushub/server/internal/polling"
	"campushub/server/internal/users"

	"go.uber.org/zap"
)

// DefaultMaxAttachments is used when Deps.MaxAttachments is zero
const DefaultMaxAttachments = 5

// DefaultPublishTimeout bounds event publishing when Deps.PublishTimeout is zero
const DefaultPublishTimeout = 3 * time.Second

// Notifier tells connected clients that a group has new activity
type Notifier interface {
	NotifyGroup(ctx context.Context, msg *models.Message)
}

type nopNotifier struct{}

func (nopNotifier) NotifyGroup(context.Context, *models.Message) {}

// Deps are the collaborators of a Service. Publisher, Notifier and Log
// may be left nil.
type Deps struct {
	Members        membership.Store
	Messages       messages.Store
	Users          users.Directory
	Blobs          files.BlobStore
	Catalog        files.Catalog
	Publisher      events.Publisher
	Notifier       Notifier
	MaxAttachments int
	PublishTimeout time.Duration
	Log            *zap.Logger
}

// Service is the entry point for chat operations
type Service struct {
	gate           *access.Gate
	engine         *polling.Engine
	members        membership.Store
	store          messages.Store
	users          users.Directory
	blobs          files.BlobStore
	linker         *attachments.Linker
	publisher      events.Publisher
	notifier       Notifier
	maxAttachments int
	publishTimeout time.Duration
	log            *zap.Logger
}

// NewService wires a Service
func NewService(d Deps) *Service {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.MaxAttachments <= 0 {
		d.MaxAttachments = DefaultMaxAttachments
	}
	if d.PublishTimeout <= 0 {
		d.PublishTimeout = DefaultPublishTimeout
	}

	gate := access.NewGate(d.Members)
	return &Service{
		gate:           gate,
		engine:         polling.NewEngine(gate, d.Messages),
		members:        d.Members,
		store:          d.Messages,
		users:          d.Users,
		blobs:          d.Blobs,
		linker:         attachments.NewLinker(d.Catalog, d.Log),
		publisher:      d.Publisher,
		notifier:       d.Notifier,
		maxAttachments: d.MaxAttachments,
		publishTimeout: d.PublishTimeout,
		log:            d.Log,
	}
}

// MaxAttachments is the per-message attachment limit
func (s *Service) MaxAttachments() int {
	return s.maxAttachments
}

// PostInput is a message submission
type PostInput struct {
	CallerID  string
	GroupID   string
	Text      string
	ReplyToID string
	Files     []files.Upload
}

// Post stores the uploaded files, links them and appends the message.
// Either the whole post lands or nothing it created is left behind.
func (s *Service) Post(ctx context.Context, in PostInput) (*models.Message, error) {
	text := models.NormalizeText(in.Text)
	if text == nil && len(in.Files) == 0 {
		return nil, apperr.Validation("Message text or attachment required")
	}
	if len(in.Files) > s.maxAttachments {
		return nil, apperr.Validation("At most %d attachments per message", s.maxAttachments)
	}

	group, err := s.gate.AuthorizeWrite(ctx, in.CallerID, in.GroupID)
	if err != nil {
		return nil, err
	}

	author, err := users.DisplayName(ctx, s.users, in.CallerID)
	if err != nil {
		return nil, err
	}

	stored, err := s.storeBlobs(ctx, in.Files)
	if err != nil {
		return nil, err
	}

	refs, err := s.linker.LinkUploaded(ctx, in.CallerID, stored)
	if err != nil {
		s.deleteBlobs(ctx, stored)
		return nil, err
	}

	msg, err := s.store.Append(ctx, models.Draft{
		GroupID:           models.ScopeFor(group.ID),
		AuthorID:          in.CallerID,
		AuthorDisplayName: author,
		Text:              text,
		Attachments:       refs,
		ReplyToID:         strings.TrimSpace(in.ReplyToID),
	})
	if err != nil {
		s.linker.Unlink(ctx, refs)
		s.deleteBlobs(ctx, stored)
		return nil, err
	}

	metrics.MessagesAppended.WithLabelValues(metrics.Scope(group.IsDefault)).Inc()
	s.announce(ctx, msg)
	return msg, nil
}

func (s *Service) storeBlobs(ctx context.Context, uploads []files.Upload) ([]files.StoredFile, error) {
	stored := make([]files.StoredFile, 0, len(uploads))
	for _, up := range uploads {
		f, err := s.blobs.Save(ctx, up)
		if err != nil {
			s.deleteBlobs(ctx, stored)
			return nil, err
		}
		stored = append(stored, *f)
	}
	return stored, nil
}

func (s *Service) deleteBlobs(ctx context.Context, stored []files.StoredFile) {
	for _, f := range stored {
		if err := s.blobs.Delete(ctx, f.StorageKey); err != nil {
			s.log.Warn("failed to remove blob of failed post",
				zap.String("storage_key", f.StorageKey), zap.Error(err))
		}
	}
}

// announce runs after commit; nothing here can fail the post
func (s *Service) announce(ctx context.Context, msg *models.Message) {
	pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.publisher.MessageCreated(pubCtx, msg); err != nil {
		s.log.Warn("failed to publish message event",
			zap.String("message_id", msg.ID),
			zap.String("group_id", msg.GroupKey()),
			zap.Error(err))
	}
	s.notifier.NotifyGroup(ctx, msg)
}

// Poll returns the group's messages strictly newer than since
func (s *Service) Poll(ctx context.Context, callerID, groupID string, since *time.Time) (*messages.Batch, error) {
	return s.engine.Poll(ctx, groupID, since, callerID)
}

// CreateGroup creates a group with the caller as its first member
func (s *Service) CreateGroup(ctx context.Context, callerID, name string) (*models.Group, error) {
	if callerID == "" {
		return nil, apperr.Unauthorized("Authentication required")
	}
	group, err := s.members.CreateGroup(ctx, name, callerID)
	if err != nil {
		return nil, err
	}
	s.log.Info("group created",
		zap.String("group_id", group.ID), zap.String("created_by", callerID))
	return group, nil
}

// GetGroup returns a group the caller can read
func (s *Service) GetGroup(ctx context.Context, callerID, groupID string) (*models.Group, error) {
	return s.gate.AuthorizeRead(ctx, callerID, groupID)
}

// ListGroups returns every group visible to the caller, default group first
func (s *Service) ListGroups(ctx context.Context, callerID string) ([]models.Group, error) {
	if callerID == "" {
		return nil, apperr.Unauthorized("Authentication required")
	}
	return s.members.ListGroupsFor(ctx, callerID)
}

// AddMember adds userID to the group. Adding an existing member succeeds
// and reports added=false.
func (s *Service) AddMember(ctx context.Context, callerID, groupID, userID string) (*models.Group, bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, false, apperr.Validation("userId is required")
	}

	group, err := s.gate.AuthorizeAddMember(ctx, callerID, groupID)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, false, err
	}

	added, err := s.members.AddMember(ctx, group.ID, userID)
	if err != nil {
		return nil, false, err
	}
	if added {
		s.log.Info("group member added",
			zap.String("group_id", group.ID),
			zap.String("user_id", userID),
			zap.String("added_by", callerID))
	}

	group, err = s.members.GetGroup(ctx, group.ID)
	if err != nil {
		return nil, false, err
	}
	return group, added, nil
}
