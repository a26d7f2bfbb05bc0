// internal/app/features/uploadapi/routes.go
package uploadapi

import (
	"github.com/go-chi/chi/v5"

	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

// Routes returns the router for the upload feature, mounted at /api/upload.
func Routes(h *Handler, gate *auth.Gate) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(gate.Require)
		r.Use(auth.RequireRoles(models.RoleModerator, models.RoleAdmin))

		r.Post("/image", h.UploadImage)
		r.Delete("/image", h.DeleteImage)
	})

	return r
}
