// internal/app/features/authapi/routes.go
package authapi

import (
	"github.com/go-chi/chi/v5"

	"github.com/subbanorg/subban-server/internal/app/system/auth"
	"github.com/subbanorg/subban-server/internal/domain/models"
)

// Routes returns the router for the auth feature, mounted at /api/auth.
func Routes(h *Handler, gate *auth.Gate) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/admin-login", h.AdminLogin)

	r.Group(func(r chi.Router) {
		r.Use(gate.Require)

		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Put("/profile", h.UpdateProfile)
		r.Put("/change-password", h.ChangePassword)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRoles(models.RoleAdmin))

			r.Post("/admin-signout", h.AdminSignout)
			r.Get("/admin-devices", h.Devices)
			r.Delete("/admin-devices/{deviceID}", h.RevokeDevice)
		})
	})

	return r
}
