// internal/domain/models/gallery.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GalleryItem represents a photo published in the community gallery.
type GalleryItem struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title        string               `bson:"title" json:"title"`
	Description  string               `bson:"description,omitempty" json:"description,omitempty"`
	ImageURL     string               `bson:"image_url" json:"image_url"`
	ImageKey     string               `bson:"image_key,omitempty" json:"image_key,omitempty"` // storage object key
	Category     string               `bson:"category" json:"category"`
	UploadedBy   primitive.ObjectID   `bson:"uploaded_by" json:"uploaded_by"`
	UploaderName string               `bson:"uploader_name" json:"uploader_name"`
	Tags         []string             `bson:"tags,omitempty" json:"tags,omitempty"`
	IsPublic     bool                 `bson:"is_public" json:"is_public"`
	Views        int64                `bson:"views" json:"views"`
	Likes        []primitive.ObjectID `bson:"likes,omitempty" json:"likes,omitempty"`
	FileSize     int64                `bson:"file_size,omitempty" json:"file_size,omitempty"` // bytes
	IsFeatured   bool                 `bson:"is_featured" json:"is_featured"`
	CreatedAt    time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at" json:"updated_at"`
}

// ToggleLike adds the user's like if absent, removes it if present.
// Returns true when the item is liked after the call.
func (g *GalleryItem) ToggleLike(userID primitive.ObjectID) bool {
	for i, id := range g.Likes {
		if id == userID {
			g.Likes = append(g.Likes[:i], g.Likes[i+1:]...)
			return false
		}
	}
	g.Likes = append(g.Likes, userID)
	return true
}
