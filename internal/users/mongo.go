package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo keeps users in the users collection
type Mongo struct {
	coll *mongo.Collection
}

// NewMongo opens the users collection and creates its unique indexes
func NewMongo(ctx context.Context, db *mongo.Database) (*Mongo, error) {
	d := &Mongo{coll: db.Collection("users")}
	_, err := d.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "student_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("student_id_unique"),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique").
				SetPartialFilterExpression(bson.M{"email": bson.M{"$gt": ""}}),
		},
	})
	if err != nil {
		return nil, apperr.Storage("failed to create user indexes", err)
	}
	return d, nil
}

// Create implements Directory
func (d *Mongo) Create(ctx context.Context, user *models.User) error {
	if user.StudentID == "" {
		return apperr.Validation("studentId is required")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	doc := *user
	doc.Email = normalizeEmail(doc.Email)
	_, err := d.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		switch {
		case strings.Contains(err.Error(), "student_id_unique"):
			return studentIDTaken()
		case strings.Contains(err.Error(), "email_unique"):
			return emailTaken()
		default:
			return apperr.Conflict("User already exists")
		}
	}
	if err != nil {
		return apperr.Storage("failed to create user", err)
	}
	return nil
}

func (d *Mongo) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	err := d.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, userNotFound()
	}
	if err != nil {
		return nil, apperr.Storage("failed to load user", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// FindByID implements Directory
func (d *Mongo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return d.findOne(ctx, bson.M{"_id": id})
}

// FindByStudentID implements Directory
func (d *Mongo) FindByStudentID(ctx context.Context, studentID string) (*models.User, error) {
	return d.findOne(ctx, bson.M{"student_id": studentID})
}
