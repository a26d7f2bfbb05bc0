// internal/app/features/authapi/types.go
package authapi

import (
	"time"

	"github.com/subbanorg/subban-server/internal/domain/models"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type profileRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// sessionResponse is the payload returned by register and login.
type sessionResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

// adminSessionResponse adds the device binding of an admin login.
type adminSessionResponse struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	DeviceID  string      `json:"device_id"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type deviceListResponse struct {
	Devices []models.DeviceSession `json:"devices"`
	Count   int                    `json:"count"`
	Max     int                    `json:"max"`
}
