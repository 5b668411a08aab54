package models

import "github.com/google/uuid"

// SeatResult is one seat's share of a settled round.
type SeatResult struct {
	UserID uuid.UUID `json:"user_id"`
	Seat   int       `json:"seat"`
	Points int       `json:"points"`
	Delta  int       `json:"delta"`
	Chips  int       `json:"chips"`
}

// RoundResult is the persisted summary of one deal.
type RoundResult struct {
	GameID      uuid.UUID    `json:"game_id"`
	Deal        int          `json:"deal"`
	MasterSeat  int          `json:"master_seat"`
	FriendSeat  int          `json:"friend_seat"` // -1 without a friend
	BidQuantity int          `json:"bid_quantity"`
	Trump       string       `json:"trump"`
	Success     bool         `json:"success"`
	TeamPoints  int          `json:"team_points"`
	Seats       []SeatResult `json:"seats"`
}
