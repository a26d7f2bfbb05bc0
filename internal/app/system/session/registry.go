// internal/app/system/session/registry.go

// Package session manages the per-account device session registry used by
// admin authentication. Each admin login registers a device session and an
// issued token; the account holds at most a configured number of concurrent
// devices, with the oldest evicted to make room. All mutations go through a
// load, mutate, compare-and-swap save cycle so concurrent logins on the same
// account cannot lose each other's writes.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	userstore "github.com/subbanorg/subban-server/internal/app/store/users"
	"github.com/subbanorg/subban-server/internal/app/system/token"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

var (
	// ErrIdentityNotFound is returned when the account no longer exists.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrStoreUnavailable is returned when session state could not be saved
	// after exhausting compare-and-swap retries.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// casRetries bounds the reload-and-retry loop on version conflicts. Conflicts
// need two writers on one account in the same instant, so one retry nearly
// always wins; the bound keeps a pathological interleave from spinning.
const casRetries = 3

// Registry coordinates device sessions and their issued tokens.
type Registry struct {
	users      *userstore.Store
	tokens     *token.Service
	maxDevices int
	logger     *zap.Logger
}

// New creates a Registry. maxDevices <= 0 disables the cap.
func New(users *userstore.Store, tokens *token.Service, maxDevices int, logger *zap.Logger) *Registry {
	return &Registry{users: users, tokens: tokens, maxDevices: maxDevices, logger: logger}
}

// Established describes a successfully registered admin session.
type Established struct {
	Token     string
	DeviceID  string
	ExpiresAt time.Time
	Evicted   []string // device ids displaced by the cap
}

// Establish registers a device session for the user and issues a token bound
// to it. The descriptor is the client-reported device description, typically
// the user agent. When the account is at its device cap the oldest session is
// evicted along with its tokens, unless the descriptor already has a live
// session (a re-login from the same client never bumps a different device).
func (r *Registry) Establish(ctx context.Context, userID primitive.ObjectID, role, descriptor string) (*Established, error) {
	deviceID, err := newDeviceID()
	if err != nil {
		return nil, err
	}

	var out *Established
	err = r.mutate(ctx, userID, func(u *models.User) error {
		now := time.Now().UTC()
		evicted := u.AdmitDevice(deviceID, descriptor, r.maxDevices, now)

		tok, err := r.tokens.IssueAdminSession(u.ID.Hex(), role, deviceID)
		if err != nil {
			return err
		}
		expiresAt := now.Add(r.tokens.AdminTTL())
		u.RecordToken(models.IssuedToken{
			Token:     tok,
			DeviceID:  deviceID,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		})

		out = &Established{Token: tok, DeviceID: deviceID, ExpiresAt: expiresAt, Evicted: evicted}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(out.Evicted) > 0 {
		r.logger.Info("device sessions evicted",
			zap.String("user_id", userID.Hex()),
			zap.Strings("evicted_device_ids", out.Evicted))
	}
	return out, nil
}

// Revoke removes the device session with the given id and every token issued
// against it. Revoking an unknown device is a no-op; returns whether a
// session was actually removed.
func (r *Registry) Revoke(ctx context.Context, userID primitive.ObjectID, deviceID string) (bool, error) {
	var removed bool
	err := r.mutate(ctx, userID, func(u *models.User) error {
		removed = u.RevokeDevice(deviceID)
		if !removed {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Devices lists the account's live device sessions, oldest login first.
func (r *Registry) Devices(ctx context.Context, userID primitive.ObjectID) ([]models.DeviceSession, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return u.Devices, nil
}

// Sweep removes expired tokens and the device sessions they orphan, across
// every account holding a stale token. Returns totals for logging.
func (r *Registry) Sweep(ctx context.Context) (tokens, devices int, err error) {
	now := time.Now().UTC()
	ids, err := r.users.IDsWithExpiredTokens(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		var nt, nd int
		err := r.mutate(ctx, id, func(u *models.User) error {
			nt, nd = u.PruneExpired(now)
			if nt == 0 && nd == 0 {
				return errNoChange
			}
			return nil
		})
		if err != nil && !errors.Is(err, errNoChange) {
			// A single contended account must not stall the whole sweep.
			r.logger.Warn("session sweep skipped account",
				zap.String("user_id", id.Hex()), zap.Error(err))
			continue
		}
		tokens += nt
		devices += nd
	}
	return tokens, devices, nil
}

// errNoChange signals that the mutation left session state untouched, so no
// save is needed.
var errNoChange = errors.New("no session state change")

// mutate runs fn against a freshly loaded user and saves the resulting
// session state under a compare-and-swap on the loaded version, reloading
// and re-running fn when a concurrent writer got there first.
func (r *Registry) mutate(ctx context.Context, userID primitive.ObjectID, fn func(*models.User) error) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		u, err := r.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, userstore.ErrNotFound) {
				return ErrIdentityNotFound
			}
			return err
		}

		loaded := u.SessionVersion
		if err := fn(u); err != nil {
			return err
		}

		err = r.users.SaveSessionState(ctx, u, loaded)
		if err == nil {
			return nil
		}
		if errors.Is(err, userstore.ErrNotFound) {
			return ErrIdentityNotFound
		}
		if !errors.Is(err, userstore.ErrVersionConflict) {
			return err
		}
		r.logger.Debug("session state conflict, retrying",
			zap.String("user_id", userID.Hex()),
			zap.Int("attempt", attempt+1))
	}
	return ErrStoreUnavailable
}

// newDeviceID generates the opaque identifier for a device session.
func newDeviceID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
