// internal/app/system/token/token.go

// Package token issues and verifies the signed bearer tokens used by the
// authentication gate. Tokens are HMAC-signed JWTs carrying a user id and,
// for admin sessions, the role and device id. The service is stateless: a
// token is valid iff its signature matches the configured secret and its
// embedded expiry has not passed. Revocation of admin sessions happens in
// the device session registry, not here.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification:
// bad signature, malformed structure, or past expiry. Callers must not
// surface which of those happened to clients.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the payload embedded in every issued token.
// Role and DeviceID are set only for admin sessions.
type Claims struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the signing configuration injected at construction.
// The secret must be stable across restarts or outstanding tokens die
// with the process.
type Config struct {
	Secret     string
	Issuer     string
	SessionTTL time.Duration // general sessions (default 30 days)
	AdminTTL   time.Duration // admin sessions (default 2 hours)
}

// Service signs and verifies bearer tokens with a process-wide secret.
type Service struct {
	cfg Config
}

// New creates a token Service. An empty secret is a configuration error
// surfaced at startup, not at first use.
func New(cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token: signing secret is empty")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.AdminTTL <= 0 {
		cfg.AdminTTL = 2 * time.Hour
	}
	return &Service{cfg: cfg}, nil
}

// SessionTTL returns the configured TTL for general sessions.
func (s *Service) SessionTTL() time.Duration { return s.cfg.SessionTTL }

// AdminTTL returns the configured TTL for admin sessions.
func (s *Service) AdminTTL() time.Duration { return s.cfg.AdminTTL }

// Issue signs a token with the given claims and TTL. A zero or negative
// ttl produces an already-expired token, which Verify will reject; the
// caller decides TTL policy (IssueSession / IssueAdminSession below).
func (s *Service) Issue(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(s.cfg.Secret))
}

// IssueSession issues a general session token (user id claim only).
func (s *Service) IssueSession(userID string) (string, error) {
	return s.Issue(Claims{UserID: userID}, s.cfg.SessionTTL)
}

// IssueAdminSession issues a device-tagged admin session token.
func (s *Service) IssueAdminSession(userID, role, deviceID string) (string, error) {
	return s.Issue(Claims{UserID: userID, Role: role, DeviceID: deviceID}, s.cfg.AdminTTL)
}

// Verify parses and validates a token string. Any failure (signature,
// structure, expiry) yields ErrInvalidToken; the underlying cause is
// wrapped for internal logging only.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
