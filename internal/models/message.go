package models

import (
	"strings"
	"time"
)

// ReplyExcerptLimit caps the quoted text carried by a reply snapshot, in runes.
const ReplyExcerptLimit = 120

// AttachmentRef points from a message to a file kept by the file store
type AttachmentRef struct {
	ID           string `json:"id" bson:"id"`
	StorageKey   string `json:"storageKey" bson:"storage_key"`
	OriginalName string `json:"originalName" bson:"original_name"`
	Size         int64  `json:"size" bson:"size"`
	ContentType  string `json:"contentType,omitempty" bson:"content_type,omitempty"`
}

// ReplySnapshot is a copy of the replied-to message taken at post time.
// It is never re-resolved.
type ReplySnapshot struct {
	ID                string `json:"id" bson:"id"`
	AuthorDisplayName string `json:"authorDisplayName" bson:"author_display_name"`
	TextExcerpt       string `json:"textExcerpt" bson:"text_excerpt"`
}

// Message represents an immutable chat message
type Message struct {
	ID                string          `json:"id"`
	GroupID           *string         `json:"groupId"` // Null for the default group
	AuthorID          string          `json:"authorId"`
	AuthorDisplayName string          `json:"authorDisplayName"`
	Text              *string         `json:"text"`
	Attachments       []AttachmentRef `json:"attachments"`
	ReplyTo           *ReplySnapshot  `json:"replyTo"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// GroupKey returns the group the message belongs to, using DefaultGroupID
// for unscoped messages.
func (m *Message) GroupKey() string {
	return GroupKey(m.GroupID)
}

// Snapshot builds the reply snapshot other messages embed when replying to m.
func (m *Message) Snapshot() *ReplySnapshot {
	excerpt := ""
	if m.Text != nil {
		excerpt = Excerpt(*m.Text, ReplyExcerptLimit)
	}
	return &ReplySnapshot{
		ID:                m.ID,
		AuthorDisplayName: m.AuthorDisplayName,
		TextExcerpt:       excerpt,
	}
}

// Draft is the caller-supplied part of a message. The store assigns the
// rest on append.
type Draft struct {
	GroupID           *string
	AuthorID          string
	AuthorDisplayName string
	Text              *string
	Attachments       []AttachmentRef
	ReplyToID         string
}

// HasContent reports whether the draft carries text or at least one attachment.
func (d *Draft) HasContent() bool {
	return d.Text != nil || len(d.Attachments) > 0
}

// GroupKey mirrors Message.GroupKey.
func (d *Draft) GroupKey() string {
	return GroupKey(d.GroupID)
}

// GroupKey normalises an optional group reference.
func GroupKey(groupID *string) string {
	if groupID == nil || *groupID == "" || *groupID == DefaultGroupID {
		return DefaultGroupID
	}
	return *groupID
}

// ScopeFor is the inverse of GroupKey: nil for the default group.
func ScopeFor(groupID string) *string {
	if groupID == "" || groupID == DefaultGroupID {
		return nil
	}
	id := groupID
	return &id
}

// NormalizeText returns nil for blank input.
func NormalizeText(text string) *string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return &text
}

// Excerpt truncates s to at most limit runes.
func Excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
