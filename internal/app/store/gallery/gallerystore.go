// internal/app/store/gallery/gallerystore.go
package gallerystore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/subbanorg/subban-server/internal/app/store/storeutil"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

// ErrNotFound is returned when the requested gallery item does not exist.
var ErrNotFound = errors.New("gallery item not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("gallery")}
}

// EnsureIndexes creates indexes for list queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "is_public", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_gallery_public_created"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}},
			Options: options.Index().SetName("idx_gallery_category"),
		},
		{
			Keys:    bson.D{{Key: "uploaded_by", Value: 1}},
			Options: options.Index().SetName("idx_gallery_uploader"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create inserts a new gallery item.
func (s *Store) Create(ctx context.Context, g models.GalleryItem) (models.GalleryItem, error) {
	g.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.GalleryItem{}, err
	}
	return g, nil
}

// GetByID loads a gallery item. Returns ErrNotFound if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.GalleryItem, error) {
	var g models.GalleryItem
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// Update holds the editable fields of an item. Nil means "leave as is".
type Update struct {
	Title       *string
	Description *string
	Category    *string
	Tags        *[]string
	IsPublic    *bool
	IsFeatured  *bool
}

// Apply updates an item's fields. Returns ErrNotFound if absent.
func (s *Store) Apply(ctx context.Context, id primitive.ObjectID, upd Update) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Category != nil {
		set["category"] = *upd.Category
	}
	if upd.Tags != nil {
		set["tags"] = *upd.Tags
	}
	if upd.IsPublic != nil {
		set["is_public"] = *upd.IsPublic
	}
	if upd.IsFeatured != nil {
		set["is_featured"] = *upd.IsFeatured
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an item, returning it so the caller can delete the backing
// file from storage. Returns ErrNotFound if absent.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (*models.GalleryItem, error) {
	var g models.GalleryItem
	err := s.c.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&g)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	Category   string
	UploadedBy primitive.ObjectID
	PublicOnly bool
	Search     string
	Featured   *bool
}

// List returns a page of items newest-first plus the total match count.
func (s *Store) List(ctx context.Context, f ListFilter, page, limit int64) ([]models.GalleryItem, int64, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if !f.UploadedBy.IsZero() {
		filter["uploaded_by"] = f.UploadedBy
	}
	if f.PublicOnly {
		filter["is_public"] = true
	}
	if f.Featured != nil {
		filter["is_featured"] = *f.Featured
	}
	if f.Search != "" {
		re := storeutil.EscapeRegex(f.Search)
		filter["$or"] = bson.A{
			bson.M{"title": bson.M{"$regex": re, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": re, "$options": "i"}},
		}
	}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := storeutil.Paginate(limit, page).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var items []models.GalleryItem
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// IncrementViews bumps the view counter without touching updated_at.
func (s *Store) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1}})
	return err
}

// ToggleLike flips the user's like on an item and reports the new state.
func (s *Store) ToggleLike(ctx context.Context, id, userID primitive.ObjectID) (liked bool, count int, err error) {
	g, err := s.GetByID(ctx, id)
	if err != nil {
		return false, 0, err
	}
	liked = g.ToggleLike(userID)
	_, err = s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"likes": g.Likes}})
	if err != nil {
		return false, 0, err
	}
	return liked, len(g.Likes), nil
}

// Count returns the number of items matching the filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
