// internal/app/features/blogapi/routes.go
package blogapi

import (
	"github.com/go-chi/chi/v5"

	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

// Routes returns the router for the blog feature, mounted at /api/blogs.
func Routes(h *Handler, gate *auth.Gate) chi.Router {
	r := chi.NewRouter()

	// Reading is public; a token, when present, unlocks drafts for staff.
	r.Group(func(r chi.Router) {
		r.Use(gate.Optional)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})

	r.Group(func(r chi.Router) {
		r.Use(gate.Require)

		r.Post("/{id}/like", h.ToggleLike)
		r.Post("/{id}/comments", h.AddComment)
		r.Delete("/{id}/comments/{commentID}", h.RemoveComment)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRoles(models.RoleModerator, models.RoleAdmin))
			r.Post("/", h.Create)
		})

		// Update and Delete enforce ownership in the handler, so any
		// authenticated caller reaches them.
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})

	return r
}
