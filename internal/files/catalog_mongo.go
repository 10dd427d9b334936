package files

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"campushub/server/internal/apperr"
	"campushub/server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCatalog keeps file records in the files collection
type MongoCatalog struct {
	coll *mongo.Collection
}

// NewMongoCatalog opens the files collection and indexes the filter fields
func NewMongoCatalog(ctx context.Context, db *mongo.Database) (*MongoCatalog, error) {
	c := &MongoCatalog{coll: db.Collection("files")}
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "course", Value: 1}, {Key: "file_type", Value: 1}, {Key: "semester", Value: 1}},
	})
	if err != nil {
		return nil, apperr.Storage("failed to create file index", err)
	}
	return c, nil
}

// Register implements Catalog
func (c *MongoCatalog) Register(ctx context.Context, rec *models.FileRecord) error {
	prepare(rec)
	_, err := c.coll.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Conflict("File already registered")
	}
	if err != nil {
		return apperr.Storage("failed to register file", err)
	}
	return nil
}

// Get implements Catalog
func (c *MongoCatalog) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fileNotFound()
	}
	if err != nil {
		return nil, apperr.Storage("failed to load file", err)
	}
	rec.UploadedAt = rec.UploadedAt.UTC()
	return &rec, nil
}

func (c *MongoCatalog) find(ctx context.Context, filter bson.M) ([]models.FileRecord, error) {
	cursor, err := c.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, apperr.Storage("failed to query files", err)
	}

	out := []models.FileRecord{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, apperr.Storage("failed to read files", err)
	}
	for i := range out {
		out[i].UploadedAt = out[i].UploadedAt.UTC()
	}
	return out, nil
}

// List implements Catalog
func (c *MongoCatalog) List(ctx context.Context, filter models.FileFilter) ([]models.FileRecord, error) {
	q := bson.M{}
	if filter.Course != "" {
		q["course"] = filter.Course
	}
	if filter.FileType != "" {
		q["file_type"] = filter.FileType
	}
	if filter.Semester != "" {
		q["semester"] = filter.Semester
	}
	return c.find(ctx, q)
}

// Search implements Catalog
func (c *MongoCatalog) Search(ctx context.Context, q string) ([]models.FileRecord, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return c.find(ctx, bson.M{})
	}
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	return c.find(ctx, bson.M{"$or": bson.A{
		bson.M{"original_name": pattern},
		bson.M{"description": pattern},
	}})
}

// Remove implements Catalog
func (c *MongoCatalog) Remove(ctx context.Context, id string) error {
	if _, err := c.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return apperr.Storage("failed to remove file", err)
	}
	return nil
}
