package models

import (
	"time"

	"github.com/google/uuid"
)

// User owns a closet and a stream of generation jobs. Raw API keys are shown
// once at provisioning; only the bcrypt hash is stored.
type User struct {
	ID        uuid.UUID `json:"id"`
	Handle    string    `json:"handle"`
	KeyHash   string    `json:"-"`
	KeyPrefix string    `json:"key_prefix"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
