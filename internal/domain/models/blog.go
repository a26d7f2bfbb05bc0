// internal/domain/models/blog.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Blog represents a blog post authored by a moderator or admin.
type Blog struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title         string               `bson:"title" json:"title"`
	Content       string               `bson:"content" json:"content"` // sanitized HTML
	Excerpt       string               `bson:"excerpt,omitempty" json:"excerpt,omitempty"`
	AuthorID      primitive.ObjectID   `bson:"author_id" json:"author_id"`
	AuthorName    string               `bson:"author_name" json:"author_name"`
	Category      string               `bson:"category" json:"category"`
	Tags          []string             `bson:"tags,omitempty" json:"tags,omitempty"`
	FeaturedImage string               `bson:"featured_image,omitempty" json:"featured_image,omitempty"`
	Status        string               `bson:"status" json:"status"` // draft, published, archived
	Views         int64                `bson:"views" json:"views"`
	Likes         []primitive.ObjectID `bson:"likes,omitempty" json:"likes,omitempty"`
	Comments      []Comment            `bson:"comments,omitempty" json:"comments,omitempty"`
	IsFeatured    bool                 `bson:"is_featured" json:"is_featured"`
	CreatedAt     time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at" json:"updated_at"`
}

// Comment is a reader comment embedded in a blog post.
type Comment struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	UserName   string             `bson:"user_name" json:"user_name"`
	Content    string             `bson:"content" json:"content"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// Blog statuses
const (
	BlogDraft     = "draft"
	BlogPublished = "published"
	BlogArchived  = "archived"
)

// IsValidBlogStatus checks if a blog status is valid.
func IsValidBlogStatus(status string) bool {
	switch status {
	case BlogDraft, BlogPublished, BlogArchived:
		return true
	}
	return false
}

// ToggleLike adds the user's like if absent, removes it if present.
// Returns true when the post is liked after the call.
func (b *Blog) ToggleLike(userID primitive.ObjectID) bool {
	for i, id := range b.Likes {
		if id == userID {
			b.Likes = append(b.Likes[:i], b.Likes[i+1:]...)
			return false
		}
	}
	b.Likes = append(b.Likes, userID)
	return true
}
