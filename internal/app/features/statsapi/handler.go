// internal/app/features/statsapi/handler.go

// Package statsapi serves dashboard counts: a small public summary and a
// richer admin view with role breakdowns and recent login activity.
package statsapi

import (
	"context"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	blogstore "github.com/subbanorg/subban-server/internal/app/store/blogs"
	gallerystore "github.com/subbanorg/subban-server/internal/app/store/gallery"
	loginstore "github.com/subbanorg/subban-server/internal/app/store/logins"
	userstore "github.com/subbanorg/subban-server/internal/app/store/users"
	"github.com/subbanorg/subban-server/internal/app/system/jsonutil"
	"github.com/subbanorg/subban-server/internal/app/system/timeouts"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

const recentLoginLimit = 20

// Handler handles statistics HTTP requests.
type Handler struct {
	Users   *userstore.Store
	Blogs   *blogstore.Store
	Gallery *gallerystore.Store
	Logins  *loginstore.Store
	Log     *zap.Logger
}

// NewHandler creates the stats handler.
func NewHandler(users *userstore.Store, blogs *blogstore.Store, gallery *gallerystore.Store, logins *loginstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Blogs: blogs, Gallery: gallery, Logins: logins, Log: logger}
}

// Community handles GET /api/stats, the public dashboard counts.
func (h *Handler) Community(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	members, err := h.Users.Count(ctx, bson.M{"status": models.StatusActive})
	if err != nil {
		h.Log.Error("member count failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}
	blogs, err := h.Blogs.Count(ctx, bson.M{"status": models.BlogPublished})
	if err != nil {
		h.Log.Error("blog count failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}
	gallery, err := h.Gallery.Count(ctx, bson.M{"is_public": true})
	if err != nil {
		h.Log.Error("gallery count failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	jsonutil.OK(w, "stats fetched", communityStats{
		Members:        members,
		PublishedBlogs: blogs,
		GalleryItems:   gallery,
	})
}

// Admin handles GET /api/stats/admin with per-role and per-status breakdowns.
func (h *Handler) Admin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	out := adminStats{
		UsersByRole:   make(map[string]int64),
		UsersByStatus: make(map[string]int64),
	}

	for _, role := range models.AllRoles() {
		n, err := h.Users.Count(ctx, bson.M{"role": role})
		if err != nil {
			h.Log.Error("role count failed", zap.String("role", role), zap.Error(err))
			jsonutil.ServerError(w)
			return
		}
		out.UsersByRole[role] = n
	}
	for _, status := range []string{models.StatusActive, models.StatusDisabled} {
		n, err := h.Users.Count(ctx, bson.M{"status": status})
		if err != nil {
			h.Log.Error("status count failed", zap.String("status", status), zap.Error(err))
			jsonutil.ServerError(w)
			return
		}
		out.UsersByStatus[status] = n
	}

	blogCounts, err := h.Blogs.CountByStatus(ctx)
	if err != nil {
		h.Log.Error("blog status counts failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}
	out.BlogsByStatus = blogCounts

	if out.GalleryItems, err = h.Gallery.Count(ctx, bson.M{}); err != nil {
		h.Log.Error("gallery count failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}
	if out.GalleryPublic, err = h.Gallery.Count(ctx, bson.M{"is_public": true}); err != nil {
		h.Log.Error("gallery public count failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	now := time.Now().UTC()
	if out.LoginsLastDay, err = h.Logins.CountSince(ctx, now.AddDate(0, 0, -1)); err != nil {
		h.Log.Error("login count failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}
	if out.LoginsLast7d, err = h.Logins.CountSince(ctx, now.AddDate(0, 0, -7)); err != nil {
		h.Log.Error("login count failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	recent, err := h.Logins.GetRecent(ctx, recentLoginLimit)
	if err != nil {
		h.Log.Error("recent logins failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}
	if recent == nil {
		recent = []models.LoginRecord{}
	}
	out.RecentLogins = recent

	jsonutil.OK(w, "admin stats fetched", out)
}
