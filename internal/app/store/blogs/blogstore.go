// internal/app/store/blogs/blogstore.go

// Package blogstore persists blog posts with their embedded comments and
// like lists.
package blogstore

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

// ErrNotFound is returned when the requested blog post does not exist.
var ErrNotFound = errors.New("blog post not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("blogs")}
}

// EnsureIndexes creates indexes for list and search queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_blogs_status_created"),
		},
		{
			Keys:    bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_blogs_author_created"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}},
			Options: options.Index().SetName("idx_blogs_category"),
		},
		{
			Keys:    bson.D{{Key: "tags", Value: 1}},
			Options: options.Index().SetName("idx_blogs_tags"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create inserts a new blog post.
func (s *Store) Create(ctx context.Context, b models.Blog) (models.Blog, error) {
	b.ID = primitive.NewObjectID()
	if b.Status == "" {
		b.Status = models.BlogDraft
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, b); err != nil {
		return models.Blog{}, err
	}
	return b, nil
}

// GetByID loads a blog post. Returns ErrNotFound if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Blog, error) {
	var b models.Blog
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Update holds the editable fields of a post. Nil means "leave as is".
type Update struct {
	Title         *string
	Content       *string
	Excerpt       *string
	Category      *string
	Tags          *[]string
	FeaturedImage *string
	Status        *string
	IsFeatured    *bool
}

// Apply updates a post's fields. Returns ErrNotFound if absent.
func (s *Store) Apply(ctx context.Context, id primitive.ObjectID, upd Update) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Content != nil {
		set["content"] = *upd.Content
	}
	if upd.Excerpt != nil {
		set["excerpt"] = *upd.Excerpt
	}
	if upd.Category != nil {
		set["category"] = *upd.Category
	}
	if upd.Tags != nil {
		set["tags"] = *upd.Tags
	}
	if upd.FeaturedImage != nil {
		set["featured_image"] = *upd.FeaturedImage
	}
	if upd.Status != nil {
		set["status"] = *upd.Status
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

// Delete removes a post. Returns ErrNotFound if absent.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	Status   string
	Category string
	Tag      string
	AuthorID primitive.ObjectID
	Search   string // matched against title and content, case-insensitive
	Featured *bool
}

// List returns a page of posts newest-first plus the total match count.
func (s *Store) List(ctx context.Context, f ListFilter, page, limit int64) ([]models.Blog, int64, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Tag != "" {
		filter["tags"] = f.Tag
	}
	if !f.AuthorID.IsZero() {
		filter["author_id"] = f.AuthorID
	}
	if f.Featured != nil {
		filter["is_featured"] = *f.Featured
	}
	if f.Search != "" {
		re := storeutil.EscapeRegex(f.Search)
		filter["$or"] = bson.A{
			bson.M{"title": bson.M{"$regex": re, "$options": "i"}},
			bson.M{"content": bson.M{"$regex": re, "$options": "i"}},
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

	var posts []models.Blog
	if err := cur.All(ctx, &posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// IncrementViews bumps the view counter without touching updated_at.
func (s *Store) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1}})
	return err
}

// ToggleLike flips the user's like on a post and returns whether the post
// is liked afterwards plus the new like count.
func (s *Store) ToggleLike(ctx context.Context, id, userID primitive.ObjectID) (liked bool, count int, err error) {
	b, err := s.GetByID(ctx, id)
	if err != nil {
		return false, 0, err
	}
	liked = b.ToggleLike(userID)
	_, err = s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"likes": b.Likes}})
	if err != nil {
		return false, 0, err
	}
	return liked, len(b.Likes), nil
}

// AddComment appends a comment to a post and returns it with its id set.
func (s *Store) AddComment(ctx context.Context, id primitive.ObjectID, c models.Comment) (models.Comment, error) {
	c.ID = primitive.NewObjectID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$push": bson.M{"comments": c}})
	if err != nil {
		return models.Comment{}, err
	}
	if res.MatchedCount == 0 {
		return models.Comment{}, ErrNotFound
	}
	return c, nil
}

// RemoveComment deletes a comment from a post. Returns ErrNotFound when
// either the post or the comment is absent.
func (s *Store) RemoveComment(ctx context.Context, id, commentID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$pull": bson.M{"comments": bson.M{"_id": commentID}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 || res.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of posts matching the filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// CountByStatus returns the number of posts per status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	counts := make(map[string]int64)
	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
