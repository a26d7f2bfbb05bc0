// internal/app/features/authapi/handler_test.go
package authapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	loginstore "github.com/subbanorg/subban-server/internal/app/store/logins"
	"github.com/subbanorg/subban-server/internal/app/store/ratelimit"
	userstore "github.com/subbanorg/subban-server/internal/app/store/users"
	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/app/system/authutil"
	"github.com/subbanorg/subban-server/internal/app/system/session"
	"github.com/subbanorg/subban-server/internal/app/system/token"
	"github.com/subbanorg/subban-server/internal/domain/models"
	"github.com/subbanorg/subban-server/internal/testutil"
)

type fixture struct {
	router http.Handler
	users  *userstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	users := userstore.New(db)
	logins := loginstore.New(db)
	limiter := ratelimit.New(db, 3, 15*time.Minute, 30*time.Minute)
	tokens, err := token.New(token.Config{
		Secret:     "authapi-test-secret",
		SessionTTL: time.Hour,
		AdminTTL:   time.Hour,
	})
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	registry := session.New(users, tokens, 3, logger)
	gate := auth.NewGate(users, tokens, logger)

	h := NewHandler(users, logins, limiter, tokens, registry, 3, logger)
	return &fixture{router: Routes(h, gate), users: users}
}

func (f *fixture) seed(t *testing.T, email, password, role string) models.User {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	hash, err := authutil.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := f.users.Create(ctx, models.User{
		Name:         "Seeded User",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return u
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, bearer string) *testutil.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	if bearer != "" {
		testutil.WithBearer(req, bearer)
	}
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// login runs a login request and returns the issued token.
func (f *fixture) login(t *testing.T, path, email, password string) string {
	t.Helper()
	rec := f.do(t, "POST", path, loginRequest{Email: email, Password: password}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status = %d (%s)", path, rec.Code, rec.Body.String())
	}
	_, _, data := rec.Envelope(t)
	var resp struct {
		Token    string `json:"token"`
		DeviceID string `json:"device_id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	t.Run("success", func(t *testing.T) {
		rec := f.do(t, "POST", "/register", registerRequest{
			Name:     "New Member",
			Email:    "new@example.com",
			Password: "s3curePass",
		}, "")
		rec.AssertStatus(t, http.StatusCreated)

		success, _, data := rec.Envelope(t)
		if !success {
			t.Fatalf("body = %s", rec.Body.String())
		}
		var resp sessionResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Token == "" {
			t.Error("no token issued")
		}
		if resp.User.Email != "new@example.com" || resp.User.Role != models.RoleUser {
			t.Errorf("user = %+v", resp.User)
		}
		if resp.User.PasswordHash != "" {
			t.Error("password hash leaked in response")
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec := f.do(t, "POST", "/register", registerRequest{
			Name: "Dup", Email: "NEW@example.com", Password: "s3curePass",
		}, "")
		rec.AssertStatus(t, http.StatusConflict)
	})

	t.Run("weak password", func(t *testing.T) {
		rec := f.do(t, "POST", "/register", registerRequest{
			Name: "Weak", Email: "weak@example.com", Password: "abc",
		}, "")
		rec.AssertStatus(t, http.StatusBadRequest)
	})

	t.Run("bad email", func(t *testing.T) {
		rec := f.do(t, "POST", "/register", registerRequest{
			Name: "Bad", Email: "not-an-email", Password: "s3curePass",
		}, "")
		rec.AssertStatus(t, http.StatusBadRequest)
	})
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "member@example.com", "correct-horse", models.RoleUser)

	t.Run("success issues usable token", func(t *testing.T) {
		tok := f.login(t, "/login", "member@example.com", "correct-horse")
		rec := f.do(t, "GET", "/me", nil, tok)
		rec.AssertStatus(t, http.StatusOK)
		rec.AssertContains(t, "member@example.com")
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		rec1 := f.do(t, "POST", "/login", loginRequest{Email: "member@example.com", Password: "wrong"}, "")
		rec2 := f.do(t, "POST", "/login", loginRequest{Email: "ghost@example.com", Password: "wrong"}, "")
		rec1.AssertStatus(t, http.StatusUnauthorized)
		rec2.AssertStatus(t, http.StatusUnauthorized)

		_, msg1, _ := rec1.Envelope(t)
		_, msg2, _ := rec2.Envelope(t)
		if msg1 != msg2 {
			t.Errorf("messages differ: %q vs %q", msg1, msg2)
		}
	})

	t.Run("disabled account", func(t *testing.T) {
		u := f.seed(t, "off@example.com", "correct-horse", models.RoleUser)
		ctx, cancel := testutil.TestContext()
		defer cancel()
		f.users.SetStatus(ctx, u.ID, models.StatusDisabled)

		rec := f.do(t, "POST", "/login", loginRequest{Email: "off@example.com", Password: "correct-horse"}, "")
		rec.AssertStatus(t, http.StatusUnauthorized)
		rec.AssertContains(t, auth.MsgAccountDisabled)
	})
}

func TestLogin_RateLimit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "target@example.com", "correct-horse", models.RoleUser)

	// Burn the 3-attempt budget.
	for i := 0; i < 3; i++ {
		rec := f.do(t, "POST", "/login", loginRequest{Email: "target@example.com", Password: "wrong"}, "")
		rec.AssertStatus(t, http.StatusUnauthorized)
	}

	rec := f.do(t, "POST", "/login", loginRequest{Email: "target@example.com", Password: "correct-horse"}, "")
	rec.AssertStatus(t, http.StatusTooManyRequests)
}

func TestAdminLogin(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "admin@example.com", "adminPass1", models.RoleAdmin)
	f.seed(t, "member@example.com", "memberPass1", models.RoleUser)

	t.Run("non-admin rejected", func(t *testing.T) {
		rec := f.do(t, "POST", "/admin-login", loginRequest{Email: "member@example.com", Password: "memberPass1"}, "")
		rec.AssertStatus(t, http.StatusForbidden)
	})

	t.Run("registers device session", func(t *testing.T) {
		rec := f.do(t, "POST", "/admin-login", loginRequest{Email: "admin@example.com", Password: "adminPass1"}, "")
		rec.AssertStatus(t, http.StatusOK)

		_, _, data := rec.Envelope(t)
		var resp adminSessionResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.DeviceID == "" || resp.Token == "" {
			t.Fatalf("resp = %+v", resp)
		}

		devRec := f.do(t, "GET", "/admin-devices", nil, resp.Token)
		devRec.AssertStatus(t, http.StatusOK)
		devRec.AssertContains(t, resp.DeviceID)
	})
}

func TestAdminDeviceCap(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "admin@example.com", "adminPass1", models.RoleAdmin)

	// Each login uses a distinct user agent, so the cap evicts the oldest.
	var tokens []string
	agents := []string{"agent-a", "agent-b", "agent-c", "agent-d"}
	for _, ua := range agents {
		req := testutil.NewJSONRequest(t, "POST", "/admin-login",
			loginRequest{Email: "admin@example.com", Password: "adminPass1"})
		req.Header.Set("User-Agent", ua)
		rec := testutil.NewRecorder()
		f.router.ServeHTTP(rec, req)
		rec.AssertStatus(t, http.StatusOK)

		_, _, data := rec.Envelope(t)
		var resp adminSessionResponse
		json.Unmarshal(data, &resp)
		tokens = append(tokens, resp.Token)
	}

	t.Run("oldest token no longer works", func(t *testing.T) {
		rec := f.do(t, "GET", "/admin-devices", nil, tokens[0])
		rec.AssertStatus(t, http.StatusUnauthorized)
		rec.AssertContains(t, auth.MsgInvalidToken)
	})

	t.Run("newest token lists three devices", func(t *testing.T) {
		rec := f.do(t, "GET", "/admin-devices", nil, tokens[3])
		rec.AssertStatus(t, http.StatusOK)

		_, _, data := rec.Envelope(t)
		var resp deviceListResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Count != 3 || resp.Max != 3 {
			t.Errorf("count=%d max=%d, want 3/3", resp.Count, resp.Max)
		}
	})
}

func TestRevokeDevice(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "admin@example.com", "adminPass1", models.RoleAdmin)

	// Two sessions from different clients.
	var resps []adminSessionResponse
	for _, ua := range []string{"desktop", "phone"} {
		req := testutil.NewJSONRequest(t, "POST", "/admin-login",
			loginRequest{Email: "admin@example.com", Password: "adminPass1"})
		req.Header.Set("User-Agent", ua)
		rec := testutil.NewRecorder()
		f.router.ServeHTTP(rec, req)
		_, _, data := rec.Envelope(t)
		var resp adminSessionResponse
		json.Unmarshal(data, &resp)
		resps = append(resps, resp)
	}

	t.Run("revoke other device kills its token", func(t *testing.T) {
		rec := f.do(t, "DELETE", "/admin-devices/"+resps[0].DeviceID, nil, resps[1].Token)
		rec.AssertStatus(t, http.StatusOK)

		dead := f.do(t, "GET", "/admin-devices", nil, resps[0].Token)
		dead.AssertStatus(t, http.StatusUnauthorized)
	})

	t.Run("unknown device is 404", func(t *testing.T) {
		rec := f.do(t, "DELETE", "/admin-devices/no-such-device", nil, resps[1].Token)
		rec.AssertStatus(t, http.StatusNotFound)
	})
}

func TestAdminSignout(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "admin@example.com", "adminPass1", models.RoleAdmin)

	rec := f.do(t, "POST", "/admin-login", loginRequest{Email: "admin@example.com", Password: "adminPass1"}, "")
	_, _, data := rec.Envelope(t)
	var resp adminSessionResponse
	json.Unmarshal(data, &resp)

	out := f.do(t, "POST", "/admin-signout", nil, resp.Token)
	out.AssertStatus(t, http.StatusOK)

	// The token is dead immediately, not at expiry.
	after := f.do(t, "GET", "/admin-devices", nil, resp.Token)
	after.AssertStatus(t, http.StatusUnauthorized)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "member@example.com", "oldPassword1", models.RoleUser)
	tok := f.login(t, "/login", "member@example.com", "oldPassword1")

	t.Run("wrong current password", func(t *testing.T) {
		rec := f.do(t, "PUT", "/change-password", changePasswordRequest{
			CurrentPassword: "nope", NewPassword: "newPassword1",
		}, tok)
		rec.AssertStatus(t, http.StatusUnauthorized)
	})

	t.Run("success", func(t *testing.T) {
		rec := f.do(t, "PUT", "/change-password", changePasswordRequest{
			CurrentPassword: "oldPassword1", NewPassword: "newPassword1",
		}, tok)
		rec.AssertStatus(t, http.StatusOK)

		// Old password no longer works, new one does.
		bad := f.do(t, "POST", "/login", loginRequest{Email: "member@example.com", Password: "oldPassword1"}, "")
		bad.AssertStatus(t, http.StatusUnauthorized)
		f.login(t, "/login", "member@example.com", "newPassword1")
	})
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ method, path string }{
		{"POST", "/logout"},
		{"GET", "/me"},
		{"POST", "/admin-signout"},
		{"GET", "/admin-devices"},
	} {
		rec := f.do(t, tc.method, tc.path, nil, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "member@example.com", "memberPass1", models.RoleUser)
	tok := f.login(t, "/login", "member@example.com", "memberPass1")

	name := "Renamed Member"
	phone := "+1 555 0100"
	rec := f.do(t, "PUT", "/profile", profileRequest{Name: &name, Phone: &phone}, tok)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Renamed Member")
	rec.AssertContains(t, "+1 555 0100")
}
