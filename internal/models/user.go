package models

import "github.com/google/uuid"

type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Password string    `json:"password,omitempty"`
	Username string    `json:"username"`

	IsEphemeral bool `json:"is_ephemeral"`
	IsAdmin     bool `json:"is_admin"`

	// Chips is the running balance carried between sessions.
	Chips int `json:"chips"`

	// Rating is the Glicko-2 rating on the 1500 scale; guests stay unrated.
	Rating float64 `json:"rating"`
}
