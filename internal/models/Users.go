package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the directory collaborator's projection of a member. The
// messaging core reads it for display metadata and maintains IsOnline
// from live room occupancy.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	IsOnline  bool      `json:"is_online"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
