// internal/app/system/auth/auth.go

// Package auth is the authentication gate for the API. It verifies bearer
// tokens, loads the live account behind them, and injects a Principal into
// the request context. Authorization by role builds on top of the gate.
//
// Failure responses are deliberately uniform: a client learns whether its
// token was missing, unusable, or the account is gone, but never which
// internal check rejected it beyond that.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	userstore "github.com/subbanorg/subban-server/internal/app/store/users"
	"github.com/subbanorg/subban-server/internal/app/system/jsonutil"
	"github.com/subbanorg/subban-server/internal/app/system/normalize"
	"github.com/subbanorg/subban-server/internal/app/system/token"
)

// Client-visible rejection messages. Keep these stable: clients branch on them.
const (
	MsgMissingToken     = "missing token"
	MsgInvalidToken     = "invalid or expired token"
	MsgIdentityGone     = "identity no longer exists"
	MsgAccountDisabled  = "account deactivated"
	MsgForbidden        = "insufficient role"
	MsgStoreUnavailable = "service temporarily unavailable"
)

// Principal is the authenticated identity in the request context, loaded
// fresh from the database on every request so role changes and deactivation
// take effect immediately.
type Principal struct {
	ID       string
	Name     string
	Email    string
	Role     string
	DeviceID string // set only for device-bound admin sessions
}

// UserID returns the principal's id as an ObjectID, or the zero id if the
// stored value is not a valid hex id.
func (p *Principal) UserID() primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

type ctxKey string

const principalKey ctxKey = "principal"

// CurrentUser returns the principal and a found flag from the request context.
func CurrentUser(r *http.Request) (*Principal, bool) {
	p, ok := r.Context().Value(principalKey).(*Principal)
	return p, ok
}

func withPrincipal(r *http.Request, p *Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), principalKey, p))
}

// WithTestUser injects a Principal into the request context for handler tests.
func WithTestUser(r *http.Request, p *Principal) *http.Request {
	return withPrincipal(r, p)
}

// Gate verifies tokens and resolves principals.
type Gate struct {
	users  *userstore.Store
	tokens *token.Service
	logger *zap.Logger
}

// NewGate creates the authentication gate.
func NewGate(users *userstore.Store, tokens *token.Service, logger *zap.Logger) *Gate {
	return &Gate{users: users, tokens: tokens, logger: logger}
}

// Require returns middleware that rejects requests without a valid, live
// bearer token. On success the Principal is available via CurrentUser.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			jsonutil.Unauthorized(w, MsgMissingToken)
			return
		}
		p, status, msg := g.resolve(r.Context(), raw)
		if p == nil {
			jsonutil.Fail(w, status, msg)
			return
		}
		next.ServeHTTP(w, withPrincipal(r, p))
	})
}

// Optional returns middleware that attaches a Principal when a valid token
// is presented but lets anonymous and invalid-token requests through. A
// store outage still fails the request: silently downgrading an
// authenticated caller to anonymous would be worse than a 503.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		p, status, msg := g.resolve(r.Context(), raw)
		if p == nil {
			if status == http.StatusServiceUnavailable {
				jsonutil.Fail(w, status, msg)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, withPrincipal(r, p))
	})
}

// RequireRoles returns middleware that admits only principals whose role is
// in the allowed set. It must run inside Require.
func RequireRoles(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[normalize.Role(role)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := CurrentUser(r)
			if !ok {
				jsonutil.Unauthorized(w, MsgMissingToken)
				return
			}
			if _, has := set[normalize.Role(p.Role)]; !has {
				jsonutil.Forbidden(w, MsgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolve verifies the token string and loads the account behind it.
// Returns either a principal or the HTTP status and message to reject with.
func (g *Gate) resolve(ctx context.Context, raw string) (*Principal, int, string) {
	claims, err := g.tokens.Verify(raw)
	if err != nil {
		return nil, http.StatusUnauthorized, MsgInvalidToken
	}

	oid, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, http.StatusUnauthorized, MsgInvalidToken
	}

	u, err := g.users.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return nil, http.StatusUnauthorized, MsgIdentityGone
		}
		g.logger.Error("auth gate: user lookup failed",
			zap.String("user_id", claims.UserID), zap.Error(err))
		return nil, http.StatusServiceUnavailable, MsgStoreUnavailable
	}
	if !u.IsActive() {
		return nil, http.StatusUnauthorized, MsgAccountDisabled
	}

	// Device-bound tokens must still be registered; a revoked device kills
	// its tokens on the next request even before they expire.
	if claims.DeviceID != "" {
		if !u.HasLiveToken(claims.DeviceID, time.Now().UTC()) {
			return nil, http.StatusUnauthorized, MsgInvalidToken
		}
		if err := g.users.TouchDeviceActivity(ctx, u.ID, claims.DeviceID, time.Now().UTC()); err != nil {
			g.logger.Debug("auth gate: device activity update failed",
				zap.String("user_id", claims.UserID), zap.Error(err))
		}
	}

	return &Principal{
		ID:       u.ID.Hex(),
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		DeviceID: claims.DeviceID,
	}, 0, ""
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
