// internal/app/features/galleryapi/routes.go
package galleryapi

import (
	"github.com/go-chi/chi/v5"

	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

// Routes returns the router for the gallery feature, mounted at /api/gallery.
func Routes(h *Handler, gate *auth.Gate) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(gate.Optional)

		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})

	r.Group(func(r chi.Router) {
		r.Use(gate.Require)

		r.Post("/{id}/like", h.ToggleLike)

		// Ownership of updates and deletes is enforced in the handler so
		// admins can manage any item.
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRoles(models.RoleModerator, models.RoleAdmin))

			r.Post("/", h.Create)
		})
	})

	return r
}
