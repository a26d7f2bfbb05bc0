// internal/app/features/authapi/handler.go

// Package authapi implements registration, login, logout, and the admin
// device session endpoints.
package authapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	loginstore "github.com/subbanorg/subban-server/internal/app/store/logins"
	"github.com/subbanorg/subban-server/internal/app/store/ratelimit"
	userstore "github.com/subbanorg/subban-server/internal/app/store/users"
	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/app/system/authutil"
	"github.com/subbanorg/subban-server/internal/app/system/jsonutil"
	"github.com/subbanorg/subban-server/internal/app/system/normalize"
	"github.com/subbanorg/subban-server/internal/app/system/session"
	"github.com/subbanorg/subban-server/internal/app/system/timeouts"
	"github.com/subbanorg/subban-server/internal/app/system/token"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

// msgBadCredentials covers both unknown email and wrong password so the
// endpoint cannot be used to probe which addresses are registered.
const msgBadCredentials = "invalid email or password"

// Handler handles authentication HTTP requests. A nil Limiter disables
// login rate limiting.
type Handler struct {
	Users      *userstore.Store
	Logins     *loginstore.Store
	Limiter    *ratelimit.Store
	Tokens     *token.Service
	Registry   *session.Registry
	MaxDevices int
	Log        *zap.Logger
}

// NewHandler creates the auth handler.
func NewHandler(users *userstore.Store, logins *loginstore.Store, limiter *ratelimit.Store, tokens *token.Service, registry *session.Registry, maxDevices int, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		Logins:     logins,
		Limiter:    limiter,
		Tokens:     tokens,
		Registry:   registry,
		MaxDevices: maxDevices,
		Log:        logger,
	}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var req registerRequest
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		jsonutil.BadRequest(w, "invalid request body")
		return
	}

	if normalize.Name(req.Name) == "" {
		jsonutil.BadRequest(w, "name is required")
		return
	}
	email := normalize.Email(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		jsonutil.BadRequest(w, "invalid email address")
		return
	}
	if err := authutil.ValidatePassword(req.Password); err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	hash, err := authutil.HashPassword(req.Password)
	if err != nil {
		h.Log.Error("password hash failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	u, err := h.Users.Create(ctx, models.User{
		Name:         req.Name,
		Email:        email,
		PasswordHash: hash,
		Phone:        req.Phone,
		Address:      req.Address,
		Role:         models.RoleUser,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			jsonutil.Conflict(w, "an account with this email already exists")
			return
		}
		h.Log.Error("user create failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	tok, err := h.Tokens.IssueSession(u.ID.Hex())
	if err != nil {
		h.Log.Error("token issue failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	jsonutil.Created(w, "registration successful", sessionResponse{User: u.Sanitized(), Token: tok})
}

// Login handles POST /api/auth/login, issuing a general session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	req, u, ok := h.verifyCredentials(ctx, w, r)
	if !ok {
		return
	}

	tok, err := h.Tokens.IssueSession(u.ID.Hex())
	if err != nil {
		h.Log.Error("token issue failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	h.recordLogin(ctx, r, u, req.Email, models.LoginKindGeneral)
	jsonutil.OK(w, "login successful", sessionResponse{User: u.Sanitized(), Token: tok})
}

// AdminLogin handles POST /api/auth/admin-login. On top of credential
// verification it requires the admin role and registers a device session,
// returning a short-lived device-bound token.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	req, u, ok := h.verifyCredentials(ctx, w, r)
	if !ok {
		return
	}
	if u.Role != models.RoleAdmin {
		jsonutil.Forbidden(w, "admin access required")
		return
	}

	descriptor := r.UserAgent()
	if descriptor == "" {
		descriptor = "unknown device"
	}

	est, err := h.Registry.Establish(ctx, u.ID, u.Role, descriptor)
	if err != nil {
		h.sessionError(w, err)
		return
	}

	h.recordLogin(ctx, r, u, req.Email, models.LoginKindAdmin)
	jsonutil.OK(w, "admin login successful", adminSessionResponse{
		User:      u.Sanitized(),
		Token:     est.Token,
		DeviceID:  est.DeviceID,
		ExpiresAt: est.ExpiresAt,
	})
}

// Logout handles POST /api/auth/logout. For device-bound sessions the
// device registration is revoked; for general tokens only the logout time
// is stamped, since stateless tokens expire on their own.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, _ := auth.CurrentUser(r)

	if p.DeviceID != "" {
		if _, err := h.Registry.Revoke(ctx, p.UserID(), p.DeviceID); err != nil {
			h.sessionError(w, err)
			return
		}
	}
	if err := h.Users.UpdateLastLogout(ctx, p.UserID(), time.Now().UTC()); err != nil {
		h.Log.Warn("logout stamp failed", zap.String("user_id", p.ID), zap.Error(err))
	}

	jsonutil.OK(w, "logged out", nil)
}

// AdminSignout handles POST /api/auth/admin-signout, revoking the device
// session the presented token is bound to.
func (h *Handler) AdminSignout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, _ := auth.CurrentUser(r)
	if p.DeviceID == "" {
		jsonutil.BadRequest(w, "token is not bound to a device session")
		return
	}

	if _, err := h.Registry.Revoke(ctx, p.UserID(), p.DeviceID); err != nil {
		h.sessionError(w, err)
		return
	}
	if err := h.Users.UpdateLastLogout(ctx, p.UserID(), time.Now().UTC()); err != nil {
		h.Log.Warn("signout stamp failed", zap.String("user_id", p.ID), zap.Error(err))
	}

	jsonutil.OK(w, "signed out", nil)
}

// Devices handles GET /api/auth/admin-devices, listing the caller's live
// device sessions.
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, _ := auth.CurrentUser(r)
	devices, err := h.Registry.Devices(ctx, p.UserID())
	if err != nil {
		h.sessionError(w, err)
		return
	}

	jsonutil.OK(w, "devices fetched", deviceListResponse{
		Devices: devices,
		Count:   len(devices),
		Max:     h.MaxDevices,
	})
}

// RevokeDevice handles DELETE /api/auth/admin-devices/{deviceID}. Admins
// may revoke any of their own sessions, including the one making the call.
func (h *Handler) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, _ := auth.CurrentUser(r)
	deviceID := chi.URLParam(r, "deviceID")

	removed, err := h.Registry.Revoke(ctx, p.UserID(), deviceID)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	if !removed {
		jsonutil.NotFound(w, "device session not found")
		return
	}

	jsonutil.OK(w, "device session revoked", nil)
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, _ := auth.CurrentUser(r)
	u, err := h.Users.GetByID(ctx, p.UserID())
	if err != nil {
		h.Log.Error("me lookup failed", zap.String("user_id", p.ID), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	jsonutil.OK(w, "profile fetched", u.Sanitized())
}

// UpdateProfile handles PUT /api/auth/profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var req profileRequest
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		jsonutil.BadRequest(w, "invalid request body")
		return
	}
	if req.Name != nil && normalize.Name(*req.Name) == "" {
		jsonutil.BadRequest(w, "name cannot be empty")
		return
	}

	p, _ := auth.CurrentUser(r)
	err := h.Users.UpdateProfile(ctx, p.UserID(), userstore.ProfileUpdate{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		h.Log.Error("profile update failed", zap.String("user_id", p.ID), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	u, err := h.Users.GetByID(ctx, p.UserID())
	if err != nil {
		jsonutil.ServerError(w)
		return
	}
	jsonutil.OK(w, "profile updated", u.Sanitized())
}

// ChangePassword handles PUT /api/auth/change-password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var req changePasswordRequest
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		jsonutil.BadRequest(w, "invalid request body")
		return
	}

	p, _ := auth.CurrentUser(r)
	u, err := h.Users.GetByID(ctx, p.UserID())
	if err != nil {
		jsonutil.ServerError(w)
		return
	}

	match, err := authutil.CheckStoredHash(req.CurrentPassword, u.PasswordHash)
	if err != nil {
		h.Log.Error("stored hash unusable", zap.String("user_id", p.ID), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}
	if !match {
		jsonutil.Unauthorized(w, "current password is incorrect")
		return
	}
	if err := authutil.ValidatePassword(req.NewPassword); err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	hash, err := authutil.HashPassword(req.NewPassword)
	if err != nil {
		jsonutil.ServerError(w)
		return
	}
	if err := h.Users.UpdatePassword(ctx, p.UserID(), hash); err != nil {
		h.Log.Error("password update failed", zap.String("user_id", p.ID), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	jsonutil.OK(w, "password changed", nil)
}

// verifyCredentials runs the shared login checks: rate limit, account
// lookup, status, and password. On failure the response has already been
// written and ok is false.
func (h *Handler) verifyCredentials(ctx context.Context, w http.ResponseWriter, r *http.Request) (loginRequest, *models.User, bool) {
	var req loginRequest
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		jsonutil.BadRequest(w, "invalid request body")
		return req, nil, false
	}
	if req.Email == "" || req.Password == "" {
		jsonutil.BadRequest(w, "email and password are required")
		return req, nil, false
	}

	if h.Limiter != nil {
		if allowed, _, lockedUntil := h.Limiter.CheckAllowed(ctx, req.Email); !allowed {
			msg := "too many failed attempts, try again later"
			if lockedUntil != nil {
				msg = fmt.Sprintf("too many failed attempts, locked until %s", lockedUntil.UTC().Format(time.RFC3339))
			}
			jsonutil.TooManyRequests(w, msg)
			return req, nil, false
		}
	}

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			// Burn an attempt for unknown emails too, or the limiter would
			// reveal which addresses exist.
			h.recordLimiterFailure(ctx, req.Email)
			jsonutil.Unauthorized(w, msgBadCredentials)
			return req, nil, false
		}
		h.Log.Error("login lookup failed", zap.Error(err))
		jsonutil.ServerError(w)
		return req, nil, false
	}

	if !u.IsActive() {
		jsonutil.Unauthorized(w, auth.MsgAccountDisabled)
		return req, nil, false
	}

	match, err := authutil.CheckStoredHash(req.Password, u.PasswordHash)
	if err != nil {
		h.Log.Error("stored hash unusable", zap.String("user_id", u.ID.Hex()), zap.Error(err))
		jsonutil.ServerError(w)
		return req, nil, false
	}
	if !match {
		h.recordLimiterFailure(ctx, req.Email)
		jsonutil.Unauthorized(w, msgBadCredentials)
		return req, nil, false
	}

	if h.Limiter != nil {
		_ = h.Limiter.RecordSuccess(ctx, req.Email)
	}
	return req, u, true
}

func (h *Handler) recordLimiterFailure(ctx context.Context, email string) {
	if h.Limiter != nil {
		_ = h.Limiter.RecordFailure(ctx, email)
	}
}

// recordLogin stamps the login time and appends a history record, both best
// effort: a logging failure must not fail the login.
func (h *Handler) recordLogin(ctx context.Context, r *http.Request, u *models.User, email, kind string) {
	if err := h.Users.UpdateLastLogin(ctx, u.ID, time.Now().UTC()); err != nil {
		h.Log.Warn("login stamp failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}
	if err := h.Logins.CreateFrom(ctx, r, u.ID, kind); err != nil {
		h.Log.Warn("login record failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}
}

// sessionError maps registry failures to responses.
func (h *Handler) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrIdentityNotFound):
		jsonutil.Unauthorized(w, auth.MsgIdentityGone)
	case errors.Is(err, session.ErrStoreUnavailable):
		jsonutil.Fail(w, http.StatusServiceUnavailable, auth.MsgStoreUnavailable)
	default:
		h.Log.Error("session registry error", zap.Error(err))
		jsonutil.ServerError(w)
	}
}
