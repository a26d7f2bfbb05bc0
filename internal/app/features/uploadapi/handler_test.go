// internal/app/features/uploadapi/handler_test.go
package uploadapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/storage"
	"go.uber.org/zap"

	userstore "github.com/subbanorg/subban-server/internal/app/store/users"
	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/app/system/token"
	"github.com/subbanorg/subban-server/internal/domain/models"
	"github.com/subbanorg/subban-server/internal/testutil"
)

// pngBytes is a minimal PNG header, enough for content sniffing.
var pngBytes = []byte{
	0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n',
	0, 0, 0, 13, 'I', 'H', 'D', 'R',
	0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0,
}

type fixture struct {
	router http.Handler
	files  storage.Store
	tokens *token.Service
	users  *userstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	files, err := storage.NewLocal(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/media",
	})
	if err != nil {
		t.Fatalf("storage.NewLocal: %v", err)
	}

	users := userstore.New(db)
	tokens, err := token.New(token.Config{Secret: "uploadapi-test-secret", SessionTTL: time.Hour, AdminTTL: time.Hour})
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	gate := auth.NewGate(users, tokens, logger)

	h := NewHandler(files, logger)
	return &fixture{router: Routes(h, gate), files: files, tokens: tokens, users: users}
}

func (f *fixture) seedUser(t *testing.T, email, role string) string {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := f.users.Create(ctx, models.User{Name: "Uploader", Email: email, Role: role, PasswordHash: "x"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	tok, err := f.tokens.IssueSession(u.ID.Hex())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

// multipartImage builds a multipart body with an "image" part holding data.
func multipartImage(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func (f *fixture) upload(t *testing.T, filename string, data []byte, bearer string) *testutil.ResponseRecorder {
	t.Helper()
	body, contentType := multipartImage(t, filename, data)
	req := testutil.NewRequest("POST", "/image")
	req.Body = nopCloser{bytes.NewReader(body.Bytes())}
	req.ContentLength = int64(body.Len())
	req.Header.Set("Content-Type", contentType)
	if bearer != "" {
		testutil.WithBearer(req, bearer)
	}
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

func TestUploadImage(t *testing.T) {
	f := newFixture(t)
	modTok := f.seedUser(t, "mod@example.com", models.RoleModerator)
	memberTok := f.seedUser(t, "member@example.com", models.RoleUser)

	t.Run("member forbidden", func(t *testing.T) {
		rec := f.upload(t, "photo.png", pngBytes, memberTok)
		rec.AssertStatus(t, http.StatusForbidden)
	})

	t.Run("anonymous unauthorized", func(t *testing.T) {
		rec := f.upload(t, "photo.png", pngBytes, "")
		rec.AssertStatus(t, http.StatusUnauthorized)
	})

	t.Run("moderator uploads png", func(t *testing.T) {
		rec := f.upload(t, "photo.png", pngBytes, modTok)
		rec.AssertStatus(t, http.StatusCreated)

		var env struct {
			Data uploadResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Data.ContentType != "image/png" {
			t.Errorf("content type = %q", env.Data.ContentType)
		}
		if filepath.Ext(env.Data.Key) != ".png" {
			t.Errorf("key extension: %q", env.Data.Key)
		}
		if env.Data.URL == "" {
			t.Error("url missing from response")
		}

		// The object must be readable back from storage under the key.
		ctx, cancel := testutil.TestContext()
		defer cancel()
		reader, err := f.files.Get(ctx, env.Data.Key)
		if err != nil {
			t.Fatalf("stored object: %v", err)
		}
		defer reader.Close()
		got, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("read stored object: %v", err)
		}
		if !bytes.Equal(got, pngBytes) {
			t.Error("stored bytes differ from upload")
		}
	})

	t.Run("rejects non-image", func(t *testing.T) {
		rec := f.upload(t, "notes.txt", []byte("plain text, not an image"), modTok)
		rec.AssertStatus(t, http.StatusBadRequest)
		rec.AssertContains(t, "unsupported image type")
	})

	t.Run("rejects spoofed extension", func(t *testing.T) {
		rec := f.upload(t, "fake.png", []byte("<html><body>hi</body></html>"), modTok)
		rec.AssertStatus(t, http.StatusBadRequest)
	})

	t.Run("missing file part", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("caption", "no image here")
		mw.Close()

		req := testutil.NewRequest("POST", "/image")
		req.Body = nopCloser{bytes.NewReader(buf.Bytes())}
		req.ContentLength = int64(buf.Len())
		req.Header.Set("Content-Type", mw.FormDataContentType())
		testutil.WithBearer(req, modTok)

		rec := testutil.NewRecorder()
		f.router.ServeHTTP(rec, req)
		rec.AssertStatus(t, http.StatusBadRequest)
	})
}

func TestDeleteImage(t *testing.T) {
	f := newFixture(t)
	modTok := f.seedUser(t, "mod@example.com", models.RoleModerator)

	up := f.upload(t, "photo.png", pngBytes, modTok)
	up.AssertStatus(t, http.StatusCreated)

	var env struct {
		Data uploadResponse `json:"data"`
	}
	if err := json.Unmarshal(up.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}

	t.Run("rejects key outside gallery prefix", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, "DELETE", "/image", deleteRequest{Key: "../etc/passwd"})
		testutil.WithBearer(req, modTok)
		rec := testutil.NewRecorder()
		f.router.ServeHTTP(rec, req)
		rec.AssertStatus(t, http.StatusBadRequest)
	})

	t.Run("deletes by key", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, "DELETE", "/image", deleteRequest{Key: env.Data.Key})
		testutil.WithBearer(req, modTok)
		rec := testutil.NewRecorder()
		f.router.ServeHTTP(rec, req)
		rec.AssertStatus(t, http.StatusOK)

		ctx, cancel := testutil.TestContext()
		defer cancel()
		if reader, err := f.files.Get(ctx, env.Data.Key); err == nil {
			reader.Close()
			t.Error("object still present after delete")
		}
	})
}
