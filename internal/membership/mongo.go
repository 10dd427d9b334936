package membership

import (
	"context"
	"errors"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo keeps groups in the groups collection with an embedded member list
type Mongo struct {
	coll *mongo.Collection
}

// NewMongo opens the groups collection and indexes the member list
func NewMongo(ctx context.Context, db *mongo.Database) (*Mongo, error) {
	s := &Mongo{coll: db.Collection("groups")}
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "members", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return nil, apperr.Storage("failed to create group index", err)
	}
	return s, nil
}

func (s *Mongo) findOne(ctx context.Context, filter bson.M) (*models.Group, error) {
	var g models.Group
	err := s.coll.FindOne(ctx, filter).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, groupNotFound()
	}
	if err != nil {
		return nil, apperr.Storage("failed to load group", err)
	}
	g.CreatedAt = g.CreatedAt.UTC()
	if g.Members == nil {
		g.Members = []string{}
	}
	return &g, nil
}

// EnsureDefault implements Store
func (s *Mongo) EnsureDefault(ctx context.Context) (*models.Group, error) {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": models.DefaultGroupID},
		bson.M{"$setOnInsert": bson.M{
			"name":       models.DefaultGroupName,
			"created_by": "",
			"members":    bson.A{},
			"is_default": true,
			"created_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return nil, apperr.Storage("failed to create default group", err)
	}
	return s.findOne(ctx, bson.M{"_id": models.DefaultGroupID})
}

// CreateGroup implements Store
func (s *Mongo) CreateGroup(ctx context.Context, name, createdBy string) (*models.Group, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if createdBy == "" {
		return nil, apperr.Validation("creator is required")
	}

	g := models.Group{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: createdBy,
		Members:   []string{createdBy},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.coll.InsertOne(ctx, g); err != nil {
		return nil, apperr.Storage("failed to create group", err)
	}
	return &g, nil
}

// GetGroup implements Store
func (s *Mongo) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	if isDefault(groupID) {
		groupID = models.DefaultGroupID
	}
	return s.findOne(ctx, bson.M{"_id": groupID})
}

// IsMember implements Store
func (s *Mongo) IsMember(ctx context.Context, groupID, identityID string) (bool, error) {
	if isDefault(groupID) {
		return true, nil
	}
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	return g.HasMember(identityID), nil
}

// AddMember implements Store
func (s *Mongo) AddMember(ctx context.Context, groupID, identityID string) (bool, error) {
	if identityID == "" {
		return false, apperr.Validation("userId is required")
	}
	if isDefault(groupID) {
		return false, nil
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": groupID},
		bson.M{"$addToSet": bson.M{"members": identityID}})
	if err != nil {
		return false, apperr.Storage("failed to add member", err)
	}
	if res.MatchedCount == 0 {
		return false, groupNotFound()
	}
	return res.ModifiedCount == 1, nil
}

// ListGroupsFor implements Store
func (s *Mongo) ListGroupsFor(ctx context.Context, identityID string) ([]models.Group, error) {
	def, err := s.GetGroup(ctx, models.DefaultGroupID)
	if err != nil {
		return nil, err
	}

	cursor, err := s.coll.Find(ctx,
		bson.M{"members": identityID, "is_default": bson.M{"$ne": true}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, apperr.Storage("failed to list groups", err)
	}

	var joined []models.Group
	if err := cursor.All(ctx, &joined); err != nil {
		return nil, apperr.Storage("failed to read groups", err)
	}
	for i := range joined {
		joined[i].CreatedAt = joined[i].CreatedAt.UTC()
	}
	return append([]models.Group{*def}, joined...), nil
}

// RestoreGroup implements Store
func (s *Mongo) RestoreGroup(ctx context.Context, group models.Group) error {
	if group.ID == "" {
		return apperr.Validation("group id is required")
	}
	group.IsDefault = false
	group.Members = dedupe(group.Members)
	group.CreatedAt = group.CreatedAt.UTC()

	_, err := s.coll.InsertOne(ctx, group)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return apperr.Storage("failed to restore group", err)
	}
	return nil
}
