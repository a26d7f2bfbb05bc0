// internal/app/system/token/token_test.go

package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(Config{
		Secret:     "test-secret-for-token-tests",
		Issuer:     "subban-test",
		SessionTTL: time.Hour,
		AdminTTL:   10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestNew_EmptySecret(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	svc := newTestService(t)

	tok, err := svc.IssueSession("user-123")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	claims, err := svc.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("UserID = %q, want user-123", claims.UserID)
	}
	if claims.Role != "" || claims.DeviceID != "" {
		t.Errorf("general session should not carry role/device, got %q/%q", claims.Role, claims.DeviceID)
	}
}

func TestIssueAdminSession_CarriesRoleAndDevice(t *testing.T) {
	svc := newTestService(t)

	tok, err := svc.IssueAdminSession("admin-1", "admin", "dev-abc")
	if err != nil {
		t.Fatalf("IssueAdminSession: %v", err)
	}
	claims, err := svc.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Role != "admin" || claims.DeviceID != "dev-abc" {
		t.Errorf("got role=%q device=%q", claims.Role, claims.DeviceID)
	}
}

func TestVerify_Expired(t *testing.T) {
	svc := newTestService(t)

	tok, err := svc.Issue(Claims{UserID: "user-1"}, -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: err = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_TamperedSignature(t *testing.T) {
	svc := newTestService(t)

	tok, err := svc.IssueSession("user-1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	// Flip a character in the signature segment.
	i := strings.LastIndex(tok, ".")
	tampered := tok[:i+1] + "x" + tok[i+2:]
	if _, err := svc.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("tampered token: err = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	svc := newTestService(t)
	other, err := New(Config{Secret: "a-different-secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tok, err := other.IssueSession("user-1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, err := svc.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret: err = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	svc := newTestService(t)

	for _, tok := range []string{"", "garbage", "a.b", "a.b.c"} {
		if _, err := svc.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q): err = %v, want ErrInvalidToken", tok, err)
		}
	}
}
