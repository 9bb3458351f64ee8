package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/imemory/server/internal/model"
)

const notesCollection = "usernotes"

type noteDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	User          primitive.ObjectID `bson:"user"`
	Title         string             `bson:"title"`
	Description   string             `bson:"description"`
	Tag           string             `bson:"tag"`
	ImageURL      string             `bson:"imageUrl,omitempty"`
	ImagePublicID string             `bson:"imagePublicId,omitempty"`
	Date          time.Time          `bson:"date"`
}

func (d *noteDocument) toModel() model.Note {
	return model.Note{
		ID:            d.ID.Hex(),
		UserID:        d.User.Hex(),
		Title:         d.Title,
		Description:   d.Description,
		Tag:           d.Tag,
		ImageURL:      d.ImageURL,
		ImagePublicID: d.ImagePublicID,
		Date:          d.Date.UTC(),
	}
}

type mongoNoteRepo struct {
	coll *mongo.Collection
}

// NewMongoNoteRepo creates a MongoDB-backed NoteRepo
func NewMongoNoteRepo(db *mongo.Database) NoteRepo {
	return &mongoNoteRepo{coll: db.Collection(notesCollection)}
}

func (r *mongoNoteRepo) Create(ctx context.Context, n *model.Note) error {
	userID, err := primitive.ObjectIDFromHex(n.UserID)
	if err != nil {
		return fmt.Errorf("invalid note owner id: %w", err)
	}
	if n.Date.IsZero() {
		n.Date = time.Now().UTC()
	}
	doc := noteDocument{
		ID:            primitive.NewObjectID(),
		User:          userID,
		Title:         n.Title,
		Description:   n.Description,
		Tag:           n.Tag,
		ImageURL:      n.ImageURL,
		ImagePublicID: n.ImagePublicID,
		Date:          n.Date,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert note in mongo: %w", err)
	}
	n.ID = doc.ID.Hex()
	return nil
}

func (r *mongoNoteRepo) GetByID(ctx context.Context, id string) (model.Note, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.Note{}, ErrNotFound
	}
	var doc noteDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Note{}, ErrNotFound
		}
		return model.Note{}, fmt.Errorf("failed to find note in mongo: %w", err)
	}
	return doc.toModel(), nil
}

func (r *mongoNoteRepo) ListByUser(ctx context.Context, userID string) ([]model.Note, error) {
	notes := []model.Note{}
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return notes, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"user": objID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes in mongo: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc noteDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode note: %w", err)
		}
		notes = append(notes, doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return notes, nil
}

func (r *mongoNoteRepo) Update(ctx context.Context, n *model.Note) error {
	objID, err := primitive.ObjectIDFromHex(n.ID)
	if err != nil {
		return ErrNotFound
	}
	update := bson.M{
		"$set": bson.M{
			"title":         n.Title,
			"description":   n.Description,
			"tag":           n.Tag,
			"imageUrl":      n.ImageURL,
			"imagePublicId": n.ImagePublicID,
		},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return fmt.Errorf("failed to update note in mongo: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoNoteRepo) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return fmt.Errorf("failed to delete note in mongo: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureNoteIndexes indexes notes by owner and date for listing.
func EnsureNoteIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(notesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetName("user_date"),
	})
	if err != nil {
		return fmt.Errorf("failed to create note indexes: %w", err)
	}
	return nil
}
