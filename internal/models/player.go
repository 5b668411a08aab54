package models

import "github.com/google/uuid"

// Player is a user seated at a Mighty table.
type Player struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Seat      int       `json:"seat"`
	Connected bool      `json:"connected"`

	User *User `json:"-"`
}
