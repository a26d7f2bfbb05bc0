// internal/domain/models/loginhistory.go
package models

import "time"

// LoginRecord captures a single successful login event.
// CreatedAt is indexed for recent-activity views.
type LoginRecord struct {
	UserID    string    `bson:"user_id" json:"user_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	IP        string    `bson:"ip" json:"ip"`
	UserAgent string    `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	Kind      string    `bson:"kind" json:"kind"` // "login" or "admin_login"
}

// Login record kinds.
const (
	LoginKindGeneral = "login"
	LoginKindAdmin   = "admin_login"
)
