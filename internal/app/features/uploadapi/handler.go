// internal/app/features/uploadapi/handler.go

// Package uploadapi implements image upload to the media store. Files land
// under date-partitioned keys and the response carries the public URL plus
// the object key, which gallery items reference for later cleanup.
package uploadapi

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/subbanorg/subban-server/internal/app/system/jsonutil"
	"github.com/subbanorg/subban-server/internal/app/system/timeouts"
)

// maxUploadSize caps a single image at 10MB.
const maxUploadSize = 10 << 20

// allowedImageTypes maps accepted content types to canonical extensions.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type uploadResponse struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type deleteRequest struct {
	Key string `json:"key"`
}

// Handler handles image upload HTTP requests.
type Handler struct {
	Files storage.Store
	Log   *zap.Logger
}

// NewHandler creates the upload handler.
func NewHandler(files storage.Store, logger *zap.Logger) *Handler {
	return &Handler{Files: files, Log: logger}
}

// UploadImage handles POST /api/upload/image. The multipart field is named
// "image". The content type is sniffed from the file bytes rather than
// trusted from the client.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		jsonutil.BadRequest(w, "image too large (max 10MB)")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		jsonutil.BadRequest(w, "image file is required")
		return
	}
	defer file.Close()

	contentType, err := sniffContentType(file)
	if err != nil {
		h.Log.Error("content sniff failed", zap.Error(err))
		jsonutil.ServerError(w)
		return
	}
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		jsonutil.BadRequest(w, "unsupported image type (jpeg, png, gif, webp only)")
		return
	}

	key := newObjectKey(ext)
	opts := &storage.PutOptions{ContentType: contentType}
	if err := h.Files.Put(ctx, key, file, opts); err != nil {
		h.Log.Error("image upload failed",
			zap.String("key", key),
			zap.String("filename", header.Filename),
			zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	h.Log.Info("image uploaded",
		zap.String("key", key),
		zap.Int64("size", header.Size),
		zap.String("content_type", contentType))

	jsonutil.Created(w, "image uploaded", uploadResponse{
		URL:         h.Files.URL(key),
		Key:         key,
		Size:        header.Size,
		ContentType: contentType,
	})
}

// DeleteImage handles DELETE /api/upload/image, removing an object by key.
// Only keys inside the gallery prefix are deletable through this endpoint.
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var req deleteRequest
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		jsonutil.BadRequest(w, "invalid request body")
		return
	}
	key := filepath.ToSlash(filepath.Clean(req.Key))
	if !strings.HasPrefix(key, "gallery/") {
		jsonutil.BadRequest(w, "invalid object key")
		return
	}

	if err := h.Files.Delete(ctx, key); err != nil {
		h.Log.Error("image delete failed", zap.String("key", key), zap.Error(err))
		jsonutil.ServerError(w)
		return
	}

	jsonutil.OK(w, "image deleted", nil)
}

// sniffContentType reads the leading bytes of the file to detect its type,
// then rewinds so the full content can still be uploaded.
func sniffContentType(file multipart.File) (string, error) {
	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	ct := http.DetectContentType(head[:n])
	// DetectContentType may append a charset suffix.
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct, nil
}

// newObjectKey builds a date-partitioned key like gallery/2026/08/ab12cd34.jpg.
func newObjectKey(ext string) string {
	now := time.Now().UTC()
	name := uuid.New().String()[:8] + ext
	return fmt.Sprintf("gallery/%04d/%02d/%s", now.Year(), int(now.Month()), name)
}
