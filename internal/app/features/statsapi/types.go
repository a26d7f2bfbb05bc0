// internal/app/features/statsapi/types.go
package statsapi

import "github.com/subbanorg/subban-server/internal/domain/models"

// communityStats is the public dashboard payload.
type communityStats struct {
	Members        int64 `json:"members"`
	PublishedBlogs int64 `json:"published_blogs"`
	GalleryItems   int64 `json:"gallery_items"`
}

// adminStats is the admin dashboard payload.
type adminStats struct {
	UsersByRole   map[string]int64     `json:"users_by_role"`
	UsersByStatus map[string]int64     `json:"users_by_status"`
	BlogsByStatus map[string]int64     `json:"blogs_by_status"`
	GalleryItems  int64                `json:"gallery_items"`
	GalleryPublic int64                `json:"gallery_public"`
	LoginsLastDay int64                `json:"logins_last_day"`
	LoginsLast7d  int64                `json:"logins_last_7d"`
	RecentLogins  []models.LoginRecord `json:"recent_logins"`
}
