// internal/app/system/authutil/password.go
package authutil

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password validation constants
const (
	MinPasswordLength = 6
	MaxPasswordLength = 128
	BcryptCost        = 12
)

// Password validation errors
var (
	ErrPasswordTooShort = errors.New("Password must be at least 6 characters.")
	ErrPasswordTooLong  = errors.New("Password must be less than 128 characters.")
	ErrPasswordCommon   = errors.New("This password is too common. Please choose a different one.")
)

// commonPasswords is a list of very common passwords that are blocked.
var commonPasswords = map[string]bool{
	"123456":    true,
	"1234567":   true,
	"12345678":  true,
	"123456789": true,
	"password":  true,
	"password1": true,
	"qwerty":    true,
	"qwerty123": true,
	"abc123":    true,
	"111111":    true,
	"000000":    true,
	"123123":    true,
	"654321":    true,
	"iloveyou":  true,
	"letmein":   true,
	"welcome":   true,
	"login":     true,
	"admin":     true,
	"sunshine":  true,
}

// ValidatePassword checks if a password meets the requirements.
// Returns nil if valid, or an error describing the issue.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}

	// Check against common passwords (case-insensitive)
	if commonPasswords[strings.ToLower(password)] {
		return ErrPasswordCommon
	}

	return nil
}

// HashPassword hashes a password using bcrypt. The salt is random, so
// hashing the same password twice yields different strings that both verify.
// The password should be validated with ValidatePassword first.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plain-text password with a bcrypt hash.
// Returns true if the password matches, false otherwise. A malformed hash
// is a verification failure here, never a panic; callers that load hashes
// from storage and need to distinguish corruption should use CheckStoredHash.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ErrCorruptHash indicates a stored hash that bcrypt cannot parse at all.
// Login flows surface this as an internal error rather than a silent
// credential mismatch, since the account can never verify until repaired.
var ErrCorruptHash = errors.New("stored password hash is unreadable")

// CheckStoredHash compares a password against a hash loaded from storage.
// It reports (false, ErrCorruptHash) when the hash is structurally invalid,
// and (false, nil) for an ordinary mismatch.
func CheckStoredHash(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrCorruptHash
	}
}
