// internal/app/features/galleryapi/handler.go

// Package galleryapi implements the photo gallery endpoints: public browsing
// with pagination, publishing for moderators and admins, and likes for
// signed-in members.
package galleryapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	gallerystore "github.com/subbanorg/subban-server/internal/app/store/gallery"
	"github.com/subbanorg/subban-server/internal/app/store/storeutil"
	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/app/system/htmlsanitize"
	"github.com/subbanorg/subban-server/internal/app/system/jsonutil"
	"github.com/subbanorg/subban-server/internal/app/system/normalize"
	"github.com/subbanorg/subban-server/internal/app/system/timeouts"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

const maxPageSize = 50

// Handler handles gallery HTTP requests. Files holds the media store so
// deleting an item can also remove its backing object; it may be nil in
// deployments without configured storage.
type Handler struct {
	Gallery *gallerystore.Store
	Files   storage.Store
	Log     *zap.Logger
}

// NewHandler creates the gallery handler.
func NewHandler(gallery *gallerystore.Store, files storage.Store, logger *zap.Logger) *Handler {
	return &Handler{Gallery: gallery, Files: files, Log: logger}
}

// List handles GET /api/gallery. Anonymous callers see public items only.
// Signed-in uploaders also see their own private items; admins see all.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, limit := storeutil.ClampPage(atoi(query.Get(r, "page")), atoi(query.Get(r, "limit")), maxPageSize)

	filter := gallerystore.ListFilter{
		Category: query.Get(r, "category"),
		Search:   query.Get(r, "search"),
	}
	if query.Get(r, "featured") == "true" {
		t := true
		filter.Featured = &t
	}

	p, signedIn := auth.CurrentUser(r)
	switch {
	case !signedIn:
		filter.PublicOnly = true
	case p.Role == models.RoleAdmin:
		// admins browse everything
	case query.Get(r, "mine") == "true":
		filter.UploadedBy = p.UserID()
	default:
		filter.PublicOnly = true
	}

	items, total, err := h.Gallery.List(ctx, filter, int64(page), int64(limit))
	if err != nil {
		h.Log.Error("gallery list failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}
	if items == nil {
		items = []models.GalleryItem{}
	}

	jsonutil.OKPaged(w, "gallery fetched", items, jsonutil.NewPagination(page, limit, total))
}

// Get handles GET /api/gallery/{id}. Private items are visible only to their
// uploader and to admins. Views count once per fetch of a public item.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, ok := h.load(ctx, w, r)
	if !ok {
		return
	}

	if !g.IsPublic && !h.canEdit(r, g) {
		jsonutil.NotFound(w, "gallery item not found")
		return
	}

	if g.IsPublic {
		if err := h.Gallery.IncrementViews(ctx, g.ID); err != nil {
			h.Log.Warn("view count failed", zap.String("item_id", g.ID.Hex()), zap.Error(err))
		}
		g.Views++
	}

	jsonutil.OK(w, "gallery item fetched", g)
}

// Create handles POST /api/gallery, restricted to moderators and admins.
// The image itself is uploaded first through /api/upload/image, which yields
// the image_url and image_key referenced here.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var req galleryRequest
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		jsonutil.BadRequest(w, "invalid request body")
		return
	}
	if req.Title == nil || htmlsanitize.PlainText(*req.Title) == "" {
		jsonutil.BadRequest(w, "title is required")
		return
	}
	if req.ImageURL == nil || *req.ImageURL == "" {
		jsonutil.BadRequest(w, "image_url is required")
		return
	}

	p, _ := auth.CurrentUser(r)

	g := models.GalleryItem{
		Title:        htmlsanitize.PlainText(*req.Title),
		ImageURL:     *req.ImageURL,
		UploadedBy:   p.UserID(),
		UploaderName: p.Name,
		IsPublic:     true,
	}
	if req.Description != nil {
		g.Description = htmlsanitize.PlainText(*req.Description)
	}
	if req.ImageKey != nil {
		g.ImageKey = *req.ImageKey
	}
	if req.Category != nil {
		g.Category = htmlsanitize.PlainText(*req.Category)
	}
	if req.Tags != nil {
		g.Tags = normalize.Tags(*req.Tags)
	}
	if req.IsPublic != nil {
		g.IsPublic = *req.IsPublic
	}
	if req.IsFeatured != nil {
		g.IsFeatured = *req.IsFeatured
	}
	if req.FileSize != nil {
		g.FileSize = *req.FileSize
	}

	created, err := h.Gallery.Create(ctx, g)
	if err != nil {
		h.Log.Error("gallery create failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	jsonutil.Created(w, "gallery item created", created)
}

// Update handles PUT /api/gallery/{id}. Uploaders edit their own items;
// admins edit anything. The image itself is immutable; replace the item to
// change it.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !h.canEdit(r, g) {
		jsonutil.Forbidden(w, "you may only edit your own gallery items")
		return
	}

	var req galleryRequest
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		jsonutil.BadRequest(w, "invalid request body")
		return
	}

	upd := gallerystore.Update{
		IsPublic:   req.IsPublic,
		IsFeatured: req.IsFeatured,
	}
	if req.Title != nil {
		title := htmlsanitize.PlainText(*req.Title)
		if title == "" {
			jsonutil.BadRequest(w, "title cannot be empty")
			return
		}
		upd.Title = &title
	}
	if req.Description != nil {
		desc := htmlsanitize.PlainText(*req.Description)
		upd.Description = &desc
	}
	if req.Category != nil {
		category := htmlsanitize.PlainText(*req.Category)
		upd.Category = &category
	}
	if req.Tags != nil {
		tags := normalize.Tags(*req.Tags)
		upd.Tags = &tags
	}

	if err := h.Gallery.Apply(ctx, g.ID, upd); err != nil {
		h.Log.Error("gallery update failed", zap.String("item_id", g.ID.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	updated, err := h.Gallery.GetByID(ctx, g.ID)
	if err != nil {
		jsonutil.ServerError(w)
		return
	}
	jsonutil.OK(w, "gallery item updated", updated)
}

// Delete handles DELETE /api/gallery/{id}. The backing file is removed from
// storage after the record is gone; a storage failure only logs, since the
// record deletion already committed.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !h.canEdit(r, g) {
		jsonutil.Forbidden(w, "you may only delete your own gallery items")
		return
	}

	deleted, err := h.Gallery.Delete(ctx, g.ID)
	if err != nil {
		h.Log.Error("gallery delete failed", zap.String("item_id", g.ID.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	if h.Files != nil && deleted.ImageKey != "" {
		if err := h.Files.Delete(ctx, deleted.ImageKey); err != nil {
			h.Log.Warn("orphaned storage object",
				zap.String("key", deleted.ImageKey), zap.Error(err))
		}
	}

	jsonutil.OK(w, "gallery item deleted", nil)
}

// ToggleLike handles POST /api/gallery/{id}/like.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, ok := h.load(ctx, w, r)
	if !ok {
		return
	}

	p, _ := auth.CurrentUser(r)
	liked, count, err := h.Gallery.ToggleLike(ctx, g.ID, p.UserID())
	if err != nil {
		h.Log.Error("gallery like failed", zap.String("item_id", g.ID.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	msg := "gallery item unliked"
	if liked {
		msg = "gallery item liked"
	}
	jsonutil.OK(w, msg, likeResponse{Liked: liked, Likes: count})
}

// load parses the id and fetches the item, writing the error response itself.
func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.GalleryItem, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid gallery item id")
		return nil, false
	}
	g, err := h.Gallery.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gallerystore.ErrNotFound) {
			jsonutil.NotFound(w, "gallery item not found")
			return nil, false
		}
		h.Log.Error("gallery fetch failed", zap.String("item_id", id.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return nil, false
	}
	return g, true
}

// canEdit reports whether the caller may modify the item.
func (h *Handler) canEdit(r *http.Request, g *models.GalleryItem) bool {
	p, ok := auth.CurrentUser(r)
	if !ok {
		return false
	}
	if p.Role == models.RoleAdmin {
		return true
	}
	return g.UploadedBy == p.UserID()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
