package models

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID           uuid.UUID
	Name         string
	AdminID      uuid.UUID
	Admin        string
	PasswordHash string // empty if room has no password
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r Room) HasPassword() bool {
	return r.PasswordHash != ""
}

// Summary is the public room projection: password hash never leaves the service
func (r Room) Summary() RoomSummary {
	return RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		Admin:       r.Admin,
		HasPassword: r.HasPassword(),
		CreatedAt:   r.CreatedAt,
	}
}

type RoomSummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Admin       string    `json:"admin"`
	HasPassword bool      `json:"hasPassword"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Result of a chat room login
type RoomLogin struct {
	Room         RoomSummary
	NewRoomAdded bool
}
