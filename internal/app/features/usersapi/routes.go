// internal/app/features/usersapi/routes.go
package usersapi

import (
	"github.com/go-chi/chi/v5"

	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

// Routes returns the router for user management, mounted at /api/users.
func Routes(h *Handler, gate *auth.Gate) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(gate.Require)
		r.Use(auth.RequireRoles(models.RoleAdmin))

		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Put("/{id}/status", h.SetStatus)
		r.Delete("/{id}", h.Delete)
	})

	return r
}
