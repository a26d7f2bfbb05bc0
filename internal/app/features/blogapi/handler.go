// internal/app/features/blogapi/handler.go

// Package blogapi implements the blog endpoints: public reading with
// pagination and search, authoring for moderators and admins, and likes
// and comments for signed-in members.
package blogapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	blogstore "github.com/subbanorg/subban-server/internal/app/store/blogs"
	"github.com/subbanorg/subban-server/internal/app/store/storeutil"
	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/app/system/htmlsanitize"
	"github.com/subbanorg/subban-server/internal/app/system/jsonutil"
	"github.com/subbanorg/subban-server/internal/app/system/normalize"
	"github.com/subbanorg/subban-server/internal/app/system/timeouts"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

const (
	maxPageSize   = 50
	excerptLength = 200
)

// Handler handles blog HTTP requests.
type Handler struct {
	Blogs *blogstore.Store
	Log   *zap.Logger
}

// NewHandler creates the blog handler.
func NewHandler(blogs *blogstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Blogs: blogs, Log: logger}
}

// List handles GET /api/blogs. Anonymous callers see published posts only;
// moderators and admins may filter by status to reach drafts and archives.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, limit := storeutil.ClampPage(atoi(query.Get(r, "page")), atoi(query.Get(r, "limit")), maxPageSize)

	filter := blogstore.ListFilter{
		Status:   models.BlogPublished,
		Category: query.Get(r, "category"),
		Tag:      normalize.Tag(query.Get(r, "tag")),
		Search:   query.Get(r, "search"),
	}
	if query.Get(r, "featured") == "true" {
		t := true
		filter.Featured = &t
	}
	if status := query.Get(r, "status"); status != "" && isStaff(r) {
		if !models.IsValidBlogStatus(status) {
			jsonutil.BadRequest(w, "invalid status filter")
			return
		}
		filter.Status = status
	}

	posts, total, err := h.Blogs.List(ctx, filter, int64(page), int64(limit))
	if err != nil {
		h.Log.Error("blog list failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}
	if posts == nil {
		posts = []models.Blog{}
	}

	jsonutil.OKPaged(w, "blogs fetched", posts, jsonutil.NewPagination(page, limit, total))
}

// Get handles GET /api/blogs/{id}. Unpublished posts are visible only to
// their author and to staff. Views count once per fetch of a published post.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	b, ok := h.load(ctx, w, r)
	if !ok {
		return
	}

	if b.Status != models.BlogPublished && !h.canEdit(r, b) {
		jsonutil.NotFound(w, "blog post not found")
		return
	}

	if b.Status == models.BlogPublished {
		if err := h.Blogs.IncrementViews(ctx, b.ID); err != nil {
			h.Log.Warn("view count failed", zap.String("blog_id", b.ID.Hex()), zap.Error(err))
		}
		b.Views++
	}

	jsonutil.OK(w, "blog fetched", b)
}

// Create handles POST /api/blogs, restricted to moderators and admins.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var req blogRequest
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		jsonutil.BadRequest(w, "invalid request body")
		return
	}
	if req.Title == nil || htmlsanitize.PlainText(*req.Title) == "" {
		jsonutil.BadRequest(w, "title is required")
		return
	}
	if req.Content == nil || *req.Content == "" {
		jsonutil.BadRequest(w, "content is required")
		return
	}

	p, _ := auth.CurrentUser(r)
	content := htmlsanitize.RichText(*req.Content)

	b := models.Blog{
		Title:      htmlsanitize.PlainText(*req.Title),
		Content:    content,
		Excerpt:    htmlsanitize.Excerpt(content, excerptLength),
		AuthorID:   p.UserID(),
		AuthorName: p.Name,
		Status:     models.BlogDraft,
	}
	if req.Excerpt != nil && *req.Excerpt != "" {
		b.Excerpt = htmlsanitize.PlainText(*req.Excerpt)
	}
	if req.Category != nil {
		b.Category = htmlsanitize.PlainText(*req.Category)
	}
	if req.Tags != nil {
		b.Tags = normalize.Tags(*req.Tags)
	}
	if req.FeaturedImage != nil {
		b.FeaturedImage = *req.FeaturedImage
	}
	if req.Status != nil {
		if !models.IsValidBlogStatus(*req.Status) {
			jsonutil.BadRequest(w, "invalid status")
			return
		}
		b.Status = *req.Status
	}
	if req.IsFeatured != nil {
		b.IsFeatured = *req.IsFeatured
	}

	created, err := h.Blogs.Create(ctx, b)
	if err != nil {
		h.Log.Error("blog create failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	jsonutil.Created(w, "blog created", created)
}

// Update handles PUT /api/blogs/{id}. Authors edit their own posts; admins
// edit anything.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	b, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !h.canEdit(r, b) {
		jsonutil.Forbidden(w, "you may only edit your own posts")
		return
	}

	var req blogRequest
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		jsonutil.BadRequest(w, "invalid request body")
		return
	}

	upd := blogstore.Update{
		FeaturedImage: req.FeaturedImage,
		IsFeatured:    req.IsFeatured,
	}
	if req.Title != nil {
		title := htmlsanitize.PlainText(*req.Title)
		if title == "" {
			jsonutil.BadRequest(w, "title cannot be empty")
			return
		}
		upd.Title = &title
	}
	if req.Content != nil {
		content := htmlsanitize.RichText(*req.Content)
		upd.Content = &content
		if req.Excerpt == nil {
			excerpt := htmlsanitize.Excerpt(content, excerptLength)
			upd.Excerpt = &excerpt
		}
	}
	if req.Excerpt != nil {
		excerpt := htmlsanitize.PlainText(*req.Excerpt)
		upd.Excerpt = &excerpt
	}
	if req.Category != nil {
		category := htmlsanitize.PlainText(*req.Category)
		upd.Category = &category
	}
	if req.Tags != nil {
		tags := normalize.Tags(*req.Tags)
		upd.Tags = &tags
	}
	if req.Status != nil {
		if !models.IsValidBlogStatus(*req.Status) {
			jsonutil.BadRequest(w, "invalid status")
			return
		}
		upd.Status = req.Status
	}

	if err := h.Blogs.Apply(ctx, b.ID, upd); err != nil {
		h.Log.Error("blog update failed", zap.String("blog_id", b.ID.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	updated, err := h.Blogs.GetByID(ctx, b.ID)
	if err != nil {
		jsonutil.ServerError(w)
		return
	}
	jsonutil.OK(w, "blog updated", updated)
}

// Delete handles DELETE /api/blogs/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	b, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !h.canEdit(r, b) {
		jsonutil.Forbidden(w, "you may only delete your own posts")
		return
	}

	if err := h.Blogs.Delete(ctx, b.ID); err != nil {
		h.Log.Error("blog delete failed", zap.String("blog_id", b.ID.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	jsonutil.OK(w, "blog deleted", nil)
}

// ToggleLike handles POST /api/blogs/{id}/like.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	b, ok := h.load(ctx, w, r)
	if !ok {
		return
	}

	p, _ := auth.CurrentUser(r)
	liked, count, err := h.Blogs.ToggleLike(ctx, b.ID, p.UserID())
	if err != nil {
		h.Log.Error("blog like failed", zap.String("blog_id", b.ID.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	msg := "blog unliked"
	if liked {
		msg = "blog liked"
	}
	jsonutil.OK(w, msg, likeResponse{Liked: liked, Likes: count})
}

// AddComment handles POST /api/blogs/{id}/comments.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	b, ok := h.load(ctx, w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		jsonutil.BadRequest(w, "invalid request body")
		return
	}
	content := htmlsanitize.PlainText(req.Content)
	if content == "" {
		jsonutil.BadRequest(w, "comment cannot be empty")
		return
	}

	p, _ := auth.CurrentUser(r)
	c, err := h.Blogs.AddComment(ctx, b.ID, models.Comment{
		UserID:   p.UserID(),
		UserName: p.Name,
		Content:  content,
	})
	if err != nil {
		h.Log.Error("comment add failed", zap.String("blog_id", b.ID.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	jsonutil.Created(w, "comment added", c)
}

// RemoveComment handles DELETE /api/blogs/{id}/comments/{commentID}.
// Comment owners remove their own; staff remove any.
func (h *Handler) RemoveComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	b, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	commentID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "commentID"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid comment id")
		return
	}

	p, _ := auth.CurrentUser(r)
	allowed := isStaff(r)
	if !allowed {
		for _, c := range b.Comments {
			if c.ID == commentID && c.UserID == p.UserID() {
				allowed = true
				break
			}
		}
	}
	if !allowed {
		jsonutil.Forbidden(w, "you may only remove your own comments")
		return
	}

	if err := h.Blogs.RemoveComment(ctx, b.ID, commentID); err != nil {
		if errors.Is(err, blogstore.ErrNotFound) {
			jsonutil.NotFound(w, "comment not found")
			return
		}
		h.Log.Error("comment remove failed", zap.String("blog_id", b.ID.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	jsonutil.OK(w, "comment removed", nil)
}

// load parses the id and fetches the post, writing the error response itself.
func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.Blog, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid blog id")
		return nil, false
	}
	b, err := h.Blogs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, blogstore.ErrNotFound) {
			jsonutil.NotFound(w, "blog post not found")
			return nil, false
		}
		h.Log.Error("blog fetch failed", zap.String("blog_id", id.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return nil, false
	}
	return b, true
}

// canEdit reports whether the caller may modify the post.
func (h *Handler) canEdit(r *http.Request, b *models.Blog) bool {
	p, ok := auth.CurrentUser(r)
	if !ok {
		return false
	}
	if p.Role == models.RoleAdmin {
		return true
	}
	return b.AuthorID == p.UserID()
}

// isStaff reports whether the caller is a moderator or admin.
func isStaff(r *http.Request) bool {
	p, ok := auth.CurrentUser(r)
	if !ok {
		return false
	}
	return p.Role == models.RoleAdmin || p.Role == models.RoleModerator
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
