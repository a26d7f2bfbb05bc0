// internal/app/features/galleryapi/types.go
package galleryapi

// galleryRequest carries create/update fields. Pointers distinguish
// "field absent" from "field set to zero value" on updates.
type galleryRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	ImageURL    *string   `json:"image_url"`
	ImageKey    *string   `json:"image_key"`
	Category    *string   `json:"category"`
	Tags        *[]string `json:"tags"`
	IsPublic    *bool     `json:"is_public"`
	IsFeatured  *bool     `json:"is_featured"`
	FileSize    *int64    `json:"file_size"`
}

type likeResponse struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}
