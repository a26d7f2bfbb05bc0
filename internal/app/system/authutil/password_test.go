package authutil

import (
	"errors"
	"testing"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("hash should not equal the plaintext")
	}
	if !CheckPassword("correct horse battery", hash) {
		t.Error("CheckPassword should accept the original password")
	}
}

func TestHashPassword_SaltedDistinct(t *testing.T) {
	h1, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	h2, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password should differ (random salt)")
	}
	if !CheckPassword("same-input", h1) || !CheckPassword("same-input", h2) {
		t.Error("both hashes should verify against the original password")
	}
}

func TestCheckPassword_RejectsMutations(t *testing.T) {
	const password = "Sa7e-passw0rd"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	// Flip each character in turn; every mutation must fail.
	for i := 0; i < len(password); i++ {
		mutated := []byte(password)
		mutated[i] ^= 0x01
		if CheckPassword(string(mutated), hash) {
			t.Errorf("mutation at index %d unexpectedly verified", i)
		}
	}
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	if CheckPassword("anything", "not-a-bcrypt-hash") {
		t.Error("malformed hash should not verify")
	}
	if CheckPassword("anything", "") {
		t.Error("empty hash should not verify")
	}
}

func TestCheckStoredHash(t *testing.T) {
	hash, err := HashPassword("stored-secret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	ok, err := CheckStoredHash("stored-secret", hash)
	if err != nil || !ok {
		t.Errorf("CheckStoredHash(match) = %v, %v; want true, nil", ok, err)
	}

	ok, err = CheckStoredHash("wrong", hash)
	if err != nil || ok {
		t.Errorf("CheckStoredHash(mismatch) = %v, %v; want false, nil", ok, err)
	}

	ok, err = CheckStoredHash("anything", "garbage")
	if ok || !errors.Is(err, ErrCorruptHash) {
		t.Errorf("CheckStoredHash(corrupt) = %v, %v; want false, ErrCorruptHash", ok, err)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"valid", "decent-length", nil},
		{"too short", "abc", ErrPasswordTooShort},
		{"common", "password", ErrPasswordCommon},
		{"common mixed case", "PassWord", ErrPasswordCommon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePassword(%q) = %v, want %v", tt.password, err, tt.wantErr)
			}
		})
	}
}
