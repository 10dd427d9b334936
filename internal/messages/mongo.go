package messages

import (
	"context"
	"errors"
	"sync"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type messageDoc struct {
	ID                string                 `bson:"_id"`
	GroupKey          string                 `bson:"group_key"`
	GroupID           *string                `bson:"group_id"`
	AuthorID          string                 `bson:"author_id"`
	AuthorDisplayName string                 `bson:"author_display_name"`
	Text              *string                `bson:"text"`
	Attachments       []models.AttachmentRef `bson:"attachments"`
	ReplyTo           *models.ReplySnapshot  `bson:"reply_to"`
	CreatedAtUS       int64                  `bson:"created_at_us"`
}

func toDoc(m *models.Message) messageDoc {
	return messageDoc{
		ID:                m.ID,
		GroupKey:          m.GroupKey(),
		GroupID:           m.GroupID,
		AuthorID:          m.AuthorID,
		AuthorDisplayName: m.AuthorDisplayName,
		Text:              m.Text,
		Attachments:       m.Attachments,
		ReplyTo:           m.ReplyTo,
		CreatedAtUS:       m.CreatedAt.UnixMicro(),
	}
}

func (d *messageDoc) message() *models.Message {
	msg := &models.Message{
		ID:                d.ID,
		GroupID:           d.GroupID,
		AuthorID:          d.AuthorID,
		AuthorDisplayName: d.AuthorDisplayName,
		Text:              d.Text,
		Attachments:       d.Attachments,
		ReplyTo:           d.ReplyTo,
		CreatedAt:         time.UnixMicro(d.CreatedAtUS).UTC(),
	}
	if msg.Attachments == nil {
		msg.Attachments = []models.AttachmentRef{}
	}
	return msg
}

// Mongo stores the log in a MongoDB collection. Timestamps are kept as
// integer microseconds. Ordering is enforced in process, so only one API
// process may write to a database at a time.
type Mongo struct {
	mu    sync.RWMutex
	coll  *mongo.Collection
	clock *Clock
}

// NewMongo opens the chat_messages collection, creates its indexes and
// moves the clock past the newest stored message.
func NewMongo(ctx context.Context, db *mongo.Database, clock *Clock) (*Mongo, error) {
	if clock == nil {
		clock = NewClock(nil)
	}
	s := &Mongo{coll: db.Collection("chat_messages"), clock: clock}

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "group_key", Value: 1}, {Key: "created_at_us", Value: 1}},
	})
	if err != nil {
		return nil, apperr.Storage("failed to create message index", err)
	}

	var newest messageDoc
	err = s.coll.FindOne(ctx, bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "created_at_us", Value: -1}})).Decode(&newest)
	switch {
	case err == nil:
		clock.Observe(time.UnixMicro(newest.CreatedAtUS))
	case !errors.Is(err, mongo.ErrNoDocuments):
		return nil, apperr.Storage("failed to read newest message", err)
	}
	return s, nil
}

// Append implements Store
func (s *Mongo) Append(ctx context.Context, draft models.Draft) (*models.Message, error) {
	if err := validateDraft(&draft); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var target *models.Message
	if draft.ReplyToID != "" {
		var doc messageDoc
		err := s.coll.FindOne(ctx, bson.M{"_id": draft.ReplyToID}).Decode(&doc)
		switch {
		case err == nil:
			target = doc.message()
		case !errors.Is(err, mongo.ErrNoDocuments):
			return nil, apperr.Storage("failed to resolve reply target", err)
		}
	}

	msg := build(&draft, s.clock.Next(), target)
	if _, err := s.coll.InsertOne(ctx, toDoc(msg)); err != nil {
		return nil, apperr.Storage("failed to insert message", err)
	}
	return msg, nil
}

// QueryGroup implements Store
func (s *Mongo) QueryGroup(ctx context.Context, groupID string, since *time.Time) (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := &Batch{ServerTime: s.clock.Mark(), Messages: []models.Message{}}

	filter := bson.M{"group_key": models.GroupKey(&groupID)}
	if since != nil {
		filter["created_at_us"] = bson.M{"$gt": since.UnixMicro()}
	}

	cursor, err := s.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at_us", Value: 1}}))
	if err != nil {
		return nil, apperr.Storage("failed to query messages", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc messageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, apperr.Storage("failed to decode message", err)
		}
		batch.Messages = append(batch.Messages, *doc.message())
	}
	if err := cursor.Err(); err != nil {
		return nil, apperr.Storage("failed to read messages", err)
	}
	return batch, nil
}

// FindByID implements Store
func (s *Mongo) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var doc messageDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("Message not found")
	}
	if err != nil {
		return nil, apperr.Storage("failed to load message", err)
	}
	return doc.message(), nil
}

// Restore implements Store
func (s *Mongo) Restore(ctx context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(Resolution)
	_, err := s.coll.InsertOne(ctx, toDoc(&msg))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return apperr.Storage("failed to restore message", err)
	}
	s.clock.Observe(msg.CreatedAt)
	return nil
}
