// internal/app/features/blogapi/types.go
package blogapi

type blogRequest struct {
	Title         *string   `json:"title"`
	Content       *string   `json:"content"`
	Excerpt       *string   `json:"excerpt"`
	Category      *string   `json:"category"`
	Tags          *[]string `json:"tags"`
	FeaturedImage *string   `json:"featured_image"`
	Status        *string   `json:"status"`
	IsFeatured    *bool     `json:"is_featured"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type likeResponse struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}
