// internal/domain/models/user.go
package models

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered account: members, moderators, and admins.
//
// Auth fields:
//   - Email: what the user types to log in (stored lowercase)
//   - EmailCI: case/diacritic-insensitive version for matching (folded)
//   - PasswordHash: bcrypt hash, never serialized to JSON
//
// Device session fields (admin accounts only):
//   - Devices: currently signed-in clients, capped per config
//   - Tokens: bearer tokens issued against those devices
//   - SessionVersion: bumped on every device/token mutation; used as the
//     compare-and-swap guard when saving session state
type User struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name    string             `bson:"name" json:"name"`
	Email   string             `bson:"email" json:"email"`
	EmailCI string             `bson:"email_ci" json:"-"` // lowercase, diacritics-stripped

	PasswordHash string `bson:"password_hash" json:"-"`

	Phone   string `bson:"phone,omitempty" json:"phone,omitempty"`
	Address string `bson:"address,omitempty" json:"address,omitempty"`

	Role   string `bson:"role" json:"role"`     // user, moderator, admin
	Status string `bson:"status" json:"status"` // active, disabled

	LastLoginAt  *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	LastLogoutAt *time.Time `bson:"last_logout_at,omitempty" json:"last_logout_at,omitempty"`

	Devices        []DeviceSession `bson:"devices,omitempty" json:"-"`
	Tokens         []IssuedToken   `bson:"tokens,omitempty" json:"-"`
	SessionVersion int64           `bson:"session_version" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// DeviceSession is one concurrently signed-in client for an admin account.
// The DeviceID is an opaque random token generated at login; the Descriptor
// is whatever the client reported, typically a user-agent string.
type DeviceSession struct {
	DeviceID       string    `bson:"device_id" json:"device_id"`
	Descriptor     string    `bson:"descriptor" json:"descriptor"`
	LoginAt        time.Time `bson:"login_at" json:"login_at"`
	LastActivityAt time.Time `bson:"last_activity_at" json:"last_activity_at"`
}

// IssuedToken records a bearer token issued against a device session.
// Tokens are removed whenever their device session is removed; the two
// collections stay in referential sync by device id.
type IssuedToken struct {
	Token     string    `bson:"token" json:"-"`
	DeviceID  string    `bson:"device_id" json:"device_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
}

// User roles
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User statuses
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// AllRoles returns all valid user roles.
func AllRoles() []string {
	return []string{RoleUser, RoleModerator, RoleAdmin}
}

// IsValidRole checks if a role is valid.
func IsValidRole(role string) bool {
	for _, r := range AllRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// IsValidStatus checks if a status is valid.
func IsValidStatus(status string) bool {
	return status == StatusActive || status == StatusDisabled
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// AdmitDevice inserts a device session, evicting the oldest session when the
// account is at the device cap. Re-login from a descriptor that already has a
// live session never triggers eviction, so the collection may briefly hold
// cap+1 entries in that one case.
//
// Returns the device ids that were evicted (with their tokens cascaded away).
// The caller supplies the new device id; generation lives with the registry
// so entropy requirements stay in one place.
func (u *User) AdmitDevice(deviceID, descriptor string, maxDevices int, now time.Time) []string {
	var evicted []string

	if maxDevices > 0 && len(u.Devices) >= maxDevices && !u.hasDescriptor(descriptor) {
		// Stable sort: equal login times keep their insertion order, so the
		// eviction choice cannot flip within a single call.
		ordered := make([]DeviceSession, len(u.Devices))
		copy(ordered, u.Devices)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].LoginAt.Before(ordered[j].LoginAt)
		})
		oldest := ordered[0].DeviceID
		u.removeDevice(oldest)
		evicted = append(evicted, oldest)
	}

	u.Devices = append(u.Devices, DeviceSession{
		DeviceID:       deviceID,
		Descriptor:     descriptor,
		LoginAt:        now,
		LastActivityAt: now,
	})
	u.SessionVersion++
	return evicted
}

// RecordToken appends an issued token entry. The device id must reference a
// live device session; RecordToken does not verify this because it is only
// called from the registry immediately after AdmitDevice.
func (u *User) RecordToken(t IssuedToken) {
	u.Tokens = append(u.Tokens, t)
	u.SessionVersion++
}

// RevokeDevice removes the device session with the given id and every issued
// token referencing it. Removing an absent device is a no-op, not an error.
// Returns true if a device was removed.
func (u *User) RevokeDevice(deviceID string) bool {
	removed := u.removeDevice(deviceID)
	if removed {
		u.SessionVersion++
	}
	return removed
}

// HasLiveToken reports whether an unexpired issued token exists for the
// given device id. The authentication gate uses this to cross-check
// device-tagged tokens against the registry, so revoking a device takes
// effect on the next request even for tokens that have not expired.
func (u *User) HasLiveToken(deviceID string, now time.Time) bool {
	for _, t := range u.Tokens {
		if t.DeviceID == deviceID && now.Before(t.ExpiresAt) {
			return true
		}
	}
	return false
}

// FindDevice returns the device session with the given id, if present.
func (u *User) FindDevice(deviceID string) (DeviceSession, bool) {
	for _, d := range u.Devices {
		if d.DeviceID == deviceID {
			return d, true
		}
	}
	return DeviceSession{}, false
}

// PruneExpired removes issued tokens past their expiry and any device
// session left without a live token, restoring the invariant that the two
// collections reference each other. Returns counts of removed entries.
func (u *User) PruneExpired(now time.Time) (tokens, devices int) {
	kept := u.Tokens[:0]
	for _, t := range u.Tokens {
		if now.Before(t.ExpiresAt) {
			kept = append(kept, t)
			continue
		}
		tokens++
	}
	u.Tokens = kept

	live := make(map[string]struct{}, len(u.Tokens))
	for _, t := range u.Tokens {
		live[t.DeviceID] = struct{}{}
	}
	keptDevices := u.Devices[:0]
	for _, d := range u.Devices {
		if _, ok := live[d.DeviceID]; ok {
			keptDevices = append(keptDevices, d)
			continue
		}
		devices++
	}
	u.Devices = keptDevices

	if tokens > 0 || devices > 0 {
		u.SessionVersion++
	}
	return tokens, devices
}

func (u *User) hasDescriptor(descriptor string) bool {
	for _, d := range u.Devices {
		if d.Descriptor == descriptor {
			return true
		}
	}
	return false
}

func (u *User) removeDevice(deviceID string) bool {
	removed := false
	devices := u.Devices[:0]
	for _, d := range u.Devices {
		if d.DeviceID == deviceID {
			removed = true
			continue
		}
		devices = append(devices, d)
	}
	u.Devices = devices

	if removed {
		tokens := u.Tokens[:0]
		for _, t := range u.Tokens {
			if t.DeviceID == deviceID {
				continue
			}
			tokens = append(tokens, t)
		}
		u.Tokens = tokens
	}
	return removed
}

// Sanitized returns a copy safe for API responses: credential and session
// internals are stripped. JSON tags hide most of this already; Sanitized
// exists for callers that re-marshal the struct through other encoders.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.Tokens = nil
	u.Devices = nil
	return u
}
