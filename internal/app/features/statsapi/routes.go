// internal/app/features/statsapi/routes.go
package statsapi

import (
	"github.com/go-chi/chi/v5"

	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

// Routes returns the router for the stats feature, mounted at /api/stats.
func Routes(h *Handler, gate *auth.Gate) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Community)

	r.Group(func(r chi.Router) {
		r.Use(gate.Require)
		r.Use(auth.RequireRoles(models.RoleAdmin))

		r.Get("/admin", h.Admin)
	})

	return r
}
