// internal/app/features/usersapi/handler.go

// Package usersapi implements admin-only account management: listing and
// searching accounts, changing roles, activating and deactivating, and
// deleting. The last active admin can never be demoted, disabled, or
// deleted.
package usersapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/subbanorg/subban-server/internal/app/store/storeutil"
	userstore "github.com/subbanorg/subban-server/internal/app/store/users"
	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/app/system/jsonutil"
	"github.com/subbanorg/subban-server/internal/app/system/normalize"
	"github.com/subbanorg/subban-server/internal/app/system/timeouts"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

const maxPageSize = 100

const msgLastAdmin = "cannot remove the last active admin"

type updateUserRequest struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// Handler handles admin user-management HTTP requests.
type Handler struct {
	Users *userstore.Store
	Log   *zap.Logger
}

// NewHandler creates the user-management handler.
func NewHandler(users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Log: logger}
}

// List handles GET /api/users with role, status, and search filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, limit := storeutil.ClampPage(atoi(query.Get(r, "page")), atoi(query.Get(r, "limit")), maxPageSize)

	filter := userstore.ListFilter{
		Role:   normalize.Role(query.Get(r, "role")),
		Status: query.Get(r, "status"),
		Search: query.Get(r, "search"),
	}
	if filter.Role != "" && !models.IsValidRole(filter.Role) {
		jsonutil.BadRequest(w, "invalid role filter")
		return
	}
	if filter.Status != "" && !models.IsValidStatus(filter.Status) {
		jsonutil.BadRequest(w, "invalid status filter")
		return
	}

	users, total, err := h.Users.List(ctx, filter, int64(page), int64(limit))
	if err != nil {
		h.Log.Error("user list failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}
	if users == nil {
		users = []models.User{}
	}

	jsonutil.OKPaged(w, "users fetched", users, jsonutil.NewPagination(page, limit, total))
}

// Get handles GET /api/users/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	jsonutil.OK(w, "user fetched", u)
}

// Update handles PUT /api/users/{id}, changing name and role.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, ok := h.load(ctx, w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		jsonutil.BadRequest(w, "invalid request body")
		return
	}

	if req.Role != nil {
		role := normalize.Role(*req.Role)
		if !models.IsValidRole(role) {
			jsonutil.BadRequest(w, "invalid role")
			return
		}
		if u.Role == models.RoleAdmin && role != models.RoleAdmin {
			if ok := h.guardLastAdmin(ctx, w, u); !ok {
				return
			}
		}
		if err := h.Users.SetRole(ctx, u.ID, role); err != nil {
			h.Log.Error("role change failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
			jsonutil.ServerError(w)
			return
		}
		h.Log.Info("user role changed",
			zap.String("user_id", u.ID.Hex()),
			zap.String("from", u.Role),
			zap.String("to", role))
	}

	if req.Name != nil {
		name := *req.Name
		if name == "" {
			jsonutil.BadRequest(w, "name cannot be empty")
			return
		}
		if err := h.Users.UpdateProfile(ctx, u.ID, userstore.ProfileUpdate{Name: &name}); err != nil {
			h.Log.Error("name change failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
			jsonutil.ServerError(w)
			return
		}
	}

	updated, err := h.Users.GetByID(ctx, u.ID)
	if err != nil {
		jsonutil.ServerError(w)
		return
	}
	jsonutil.OK(w, "user updated", updated)
}

// SetStatus handles PUT /api/users/{id}/status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, ok := h.load(ctx, w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		jsonutil.BadRequest(w, "invalid request body")
		return
	}
	if !models.IsValidStatus(req.Status) {
		jsonutil.BadRequest(w, "invalid status")
		return
	}

	if u.Role == models.RoleAdmin && u.Status == models.StatusActive && req.Status != models.StatusActive {
		if ok := h.guardLastAdmin(ctx, w, u); !ok {
			return
		}
	}

	if err := h.Users.SetStatus(ctx, u.ID, req.Status); err != nil {
		h.Log.Error("status change failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	h.Log.Info("user status changed",
		zap.String("user_id", u.ID.Hex()),
		zap.String("status", req.Status))

	updated, err := h.Users.GetByID(ctx, u.ID)
	if err != nil {
		jsonutil.ServerError(w)
		return
	}
	jsonutil.OK(w, "user status updated", updated)
}

// Delete handles DELETE /api/users/{id}. Admins cannot delete themselves.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, ok := h.load(ctx, w, r)
	if !ok {
		return
	}

	p, _ := auth.CurrentUser(r)
	if u.ID == p.UserID() {
		jsonutil.BadRequest(w, "you cannot delete your own account")
		return
	}
	if u.Role == models.RoleAdmin && u.Status == models.StatusActive {
		if ok := h.guardLastAdmin(ctx, w, u); !ok {
			return
		}
	}

	if _, err := h.Users.Delete(ctx, u.ID); err != nil {
		h.Log.Error("user delete failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	h.Log.Info("user deleted", zap.String("user_id", u.ID.Hex()), zap.String("email", u.Email))
	jsonutil.OK(w, "user deleted", nil)
}

// guardLastAdmin writes a conflict response and returns false when the
// target is the only remaining active admin.
func (h *Handler) guardLastAdmin(ctx context.Context, w http.ResponseWriter, u *models.User) bool {
	n, err := h.Users.CountActiveAdmins(ctx)
	if err != nil {
		h.Log.Error("admin count failed", zap.Error(err))
		jsonutil.ServerError(w)
		return false
	}
	if n <= 1 {
		jsonutil.Conflict(w, msgLastAdmin)
		return false
	}
	return true
}

// load parses the id and fetches the user, writing the error response itself.
func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid user id")
		return nil, false
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			jsonutil.NotFound(w, "user not found")
			return nil, false
		}
		h.Log.Error("user fetch failed", zap.String("user_id", id.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return nil, false
	}
	return u, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
