// internal/app/system/auth/auth_test.go
package auth_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	userstore "github.com/subbanorg/subban-server/internal/app/store/users"
	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/app/system/token"
	"github.com/subbanorg/subban-server/internal/domain/models"
	"github.com/subbanorg/subban-server/internal/testutil"
)

type gateFixture struct {
	gate   *auth.Gate
	users  *userstore.Store
	tokens *token.Service
}

func newFixture(t *testing.T) *gateFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	users := userstore.New(db)
	tokens, err := token.New(token.Config{
		Secret:     "gate-test-secret",
		SessionTTL: time.Hour,
		AdminTTL:   time.Hour,
	})
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	return &gateFixture{
		gate:   auth.NewGate(users, tokens, zap.NewNop()),
		users:  users,
		tokens: tokens,
	}
}

func (f *gateFixture) seedUser(t *testing.T, email, role, status string) models.User {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := f.users.Create(ctx, models.User{Name: "Test", Email: email, Role: role, Status: status})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// echoPrincipal writes the principal's email, or "anonymous".
func echoPrincipal(w http.ResponseWriter, r *http.Request) {
	if p, ok := auth.CurrentUser(r); ok {
		w.Write([]byte(p.Email))
		return
	}
	w.Write([]byte("anonymous"))
}

func TestRequire_MissingToken(t *testing.T) {
	f := newFixture(t)
	h := f.gate.Require(http.HandlerFunc(echoPrincipal))

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer "} {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), auth.MsgMissingToken) {
			t.Errorf("header %q: body = %s", header, rec.Body.String())
		}
	}
}

func TestRequire_InvalidToken(t *testing.T) {
	f := newFixture(t)
	h := f.gate.Require(http.HandlerFunc(echoPrincipal))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), auth.MsgInvalidToken) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRequire_ValidToken(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "member@example.com", models.RoleUser, models.StatusActive)
	tok, err := f.tokens.IssueSession(u.ID.Hex())
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	h := f.gate.Require(http.HandlerFunc(echoPrincipal))
	req := testutil.WithBearer(httptest.NewRequest("GET", "/", nil), tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "member@example.com" {
		t.Errorf("principal email = %q", rec.Body.String())
	}
}

func TestRequire_IdentityGone(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "gone@example.com", models.RoleUser, models.StatusActive)
	tok, _ := f.tokens.IssueSession(u.ID.Hex())

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := f.users.Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	h := f.gate.Require(http.HandlerFunc(echoPrincipal))
	req := testutil.WithBearer(httptest.NewRequest("GET", "/", nil), tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), auth.MsgIdentityGone) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRequire_DisabledAccount(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "off@example.com", models.RoleUser, models.StatusActive)
	tok, _ := f.tokens.IssueSession(u.ID.Hex())

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := f.users.SetStatus(ctx, u.ID, models.StatusDisabled); err != nil {
		t.Fatalf("disable: %v", err)
	}

	h := f.gate.Require(http.HandlerFunc(echoPrincipal))
	req := testutil.WithBearer(httptest.NewRequest("GET", "/", nil), tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), auth.MsgAccountDisabled) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRequire_DeviceBoundToken(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "admin@example.com", models.RoleAdmin, models.StatusActive)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	tok, _ := f.tokens.IssueAdminSession(u.ID.Hex(), models.RoleAdmin, "dev-1")

	w, _ := f.users.GetByID(ctx, u.ID)
	v := w.SessionVersion
	w.AdmitDevice("dev-1", "chrome", 3, now)
	w.RecordToken(models.IssuedToken{Token: tok, DeviceID: "dev-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	if err := f.users.SaveSessionState(ctx, w, v); err != nil {
		t.Fatalf("save session: %v", err)
	}

	h := f.gate.Require(http.HandlerFunc(echoPrincipal))

	t.Run("registered device passes", func(t *testing.T) {
		req := testutil.WithBearer(httptest.NewRequest("GET", "/", nil), tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
	})

	t.Run("activity touched on use", func(t *testing.T) {
		got, _ := f.users.GetByID(ctx, u.ID)
		d, ok := got.FindDevice("dev-1")
		if !ok {
			t.Fatal("device missing")
		}
		if d.LastActivityAt.Before(now) {
			t.Error("last activity not advanced")
		}
	})

	t.Run("revoked device rejected before expiry", func(t *testing.T) {
		w, _ := f.users.GetByID(ctx, u.ID)
		v := w.SessionVersion
		w.RevokeDevice("dev-1")
		if err := f.users.SaveSessionState(ctx, w, v); err != nil {
			t.Fatalf("revoke: %v", err)
		}

		req := testutil.WithBearer(httptest.NewRequest("GET", "/", nil), tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), auth.MsgInvalidToken) {
			t.Errorf("body = %s", rec.Body.String())
		}
	})
}

func TestOptional(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "opt@example.com", models.RoleUser, models.StatusActive)
	tok, _ := f.tokens.IssueSession(u.ID.Hex())

	h := f.gate.Optional(http.HandlerFunc(echoPrincipal))

	t.Run("no token passes anonymously", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
			t.Errorf("code=%d body=%s", rec.Code, rec.Body.String())
		}
	})

	t.Run("bad token passes anonymously", func(t *testing.T) {
		req := testutil.WithBearer(httptest.NewRequest("GET", "/", nil), "junk")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
			t.Errorf("code=%d body=%s", rec.Code, rec.Body.String())
		}
	})

	t.Run("valid token attaches principal", func(t *testing.T) {
		req := testutil.WithBearer(httptest.NewRequest("GET", "/", nil), tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Body.String() != "opt@example.com" {
			t.Errorf("body = %s", rec.Body.String())
		}
	})
}

func TestRequireRoles(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	h := auth.RequireRoles(models.RoleAdmin, models.RoleModerator)(okHandler)

	t.Run("no principal is 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("wrong role is 403", func(t *testing.T) {
		req := testutil.NewAuthenticatedRequest("GET", "/", testutil.RegularUser())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), auth.MsgForbidden) {
			t.Errorf("body = %s, want %q", rec.Body.String(), auth.MsgForbidden)
		}
		if !strings.Contains(rec.Body.String(), "insufficient role") {
			t.Errorf("message = %s, want insufficient role", rec.Body.String())
		}
	})

	t.Run("allowed role passes", func(t *testing.T) {
		req := testutil.NewAuthenticatedRequest("GET", "/", testutil.ModeratorUser())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("role match is case insensitive", func(t *testing.T) {
		user := testutil.AdminUser()
		user.Role = "Admin"
		req := testutil.NewAuthenticatedRequest("GET", "/", user)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}
