// internal/game/sync_state.go
package game

import (
	"slices"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/engine"
)

// ObfPlayerState represents one seat from the perspective of a requesting user.
type ObfPlayerState struct {
	PlayerID      uuid.UUID     `json:"player_id"`
	Username      string        `json:"username"`
	Seat          int           `json:"seat"`
	Connected     bool          `json:"connected"`
	HandSize      int           `json:"hand_size"`
	Hand          []engine.Card `json:"hand,omitempty"` // only the requester's own seat
	Chips         int           `json:"chips"`
	Points        int           `json:"points"`
	IsMaster      bool          `json:"isMaster"`
	IsFriend      bool          `json:"isFriend"` // false until the friend is revealed
	Passed        bool          `json:"passed"`
	IsCurrentTurn bool          `json:"isCurrentTurn"`
}

// ObfFriend is the friend designation as the table knows it. Seat is nil while unknown.
type ObfFriend struct {
	Mode string       `json:"mode"`
	Card *engine.Card `json:"card,omitempty"`
	Seat *int         `json:"seat"`
}

// ObfGameState is returned by GetCurrentObfuscatedGameState.
type ObfGameState struct {
	GameID         uuid.UUID        `json:"game_id"`
	Started        bool             `json:"started"`
	GameOver       bool             `json:"gameOver"`
	Phase          engine.PhaseName `json:"phase"`
	Deal           int              `json:"deal"`
	Round          int              `json:"round"`
	DrawCount      int              `json:"drawCount"` // cards already in the current trick
	CurrentTurn    int              `json:"currentTurn"`
	StartingBidder int              `json:"startingBidder"`
	Players        []ObfPlayerState `json:"players"`

	Bid        *engine.Bid   `json:"bid,omitempty"`       // highest bid while bidding, the contract after
	Trump      engine.Suit   `json:"trump"`
	Master     int           `json:"master"`
	Friend     *ObfFriend    `json:"friend,omitempty"`
	Mighty     *engine.Card  `json:"mighty,omitempty"`
	JokerCall  *engine.Card  `json:"jokerCall,omitempty"`
	KittySize  int           `json:"kittySize"`
	DeadCards  []engine.Card `json:"deadCards,omitempty"` // master only
	Trick      *engine.Trick `json:"trick,omitempty"`
	LastTrick  *engine.Trick `json:"lastTrick,omitempty"`
	TricksDone int           `json:"tricksDone"`

	Outcome    *engine.Outcome `json:"outcome,omitempty"`
	HouseRules HouseRules      `json:"houseRules"`
}

// GetCurrentObfuscatedGameState generates a snapshot of the game for the requesting user.
// Other seats' hands are reduced to counts. Assumes lock is held.
func (g *MightyGame) GetCurrentObfuscatedGameState(forUser uuid.UUID) ObfGameState {
	s := g.state
	viewer, _ := g.seatOf(forUser)

	obf := ObfGameState{
		GameID:         g.ID,
		Started:        g.Started,
		GameOver:       g.GameOver,
		Phase:          s.Phase.Name(),
		Deal:           s.Deal,
		Round:          s.Round,
		CurrentTurn:    s.CurrentTurn(),
		StartingBidder: s.StartingBidder,
		Trump:          s.Trump,
		Master:         -1,
		KittySize:      len(s.Kitty),
		TricksDone:     len(s.Completed),
		HouseRules:     g.HouseRules,
	}

	masterKnown := false
	switch p := s.Phase.(type) {
	case engine.Bidding:
		if p.Highest != nil {
			b := *p.Highest
			obf.Bid = &b
		}
	case engine.Playing:
		t := p.Trick
		t.Plays = slices.Clone(t.Plays)
		obf.Trick = &t
		obf.DrawCount = len(t.Plays)
		masterKnown = true
	case engine.TableCards, engine.FriendSelect:
		masterKnown = true
	case engine.Result:
		out := p.Outcome
		obf.Outcome = &out
		masterKnown = true
	}

	if masterKnown {
		obf.Master = s.Master
		if s.Bid != nil {
			b := *s.Bid
			obf.Bid = &b
		}
		if s.Trump.IsTrumpDeclaration() {
			mighty, call := s.Mighty(), engine.JokerCallCard(s.Trump)
			obf.Mighty, obf.JokerCall = &mighty, &call
		}
		if viewer == s.Master {
			obf.DeadCards = slices.Clone(s.Dead)
		}
	}
	if _, ok := s.Phase.(engine.Playing); ok || obf.Outcome != nil {
		obf.Friend = g.obfFriend()
	}
	if n := len(s.Completed); n > 0 {
		last := s.Completed[n-1]
		last.Plays = slices.Clone(last.Plays)
		obf.LastTrick = &last
	}

	bidding, isBidding := s.Phase.(engine.Bidding)
	for seat, pl := range g.Players {
		ep := s.Players[seat]
		ps := ObfPlayerState{
			PlayerID:      pl.ID,
			Username:      pl.Username,
			Seat:          seat,
			Connected:     pl.Connected,
			HandSize:      len(ep.Hand),
			Chips:         ep.Chips,
			Points:        ep.Points,
			IsMaster:      ep.IsMaster,
			IsFriend:      ep.IsFriend && s.Friend.Revealed,
			IsCurrentTurn: seat == obf.CurrentTurn,
		}
		if isBidding {
			ps.Passed = bidding.Passed[seat]
		}
		if seat == viewer {
			ps.Hand = slices.Clone(ep.Hand)
		}
		obf.Players = append(obf.Players, ps)
	}
	return obf
}

// obfFriend hides the friend's seat until it has been revealed. Assumes lock is held.
func (g *MightyGame) obfFriend() *ObfFriend {
	f := g.state.Friend
	of := &ObfFriend{Mode: f.Mode.String()}
	if f.Card != nil {
		c := *f.Card
		of.Card = &c
	}
	if f.Revealed && f.Seat >= 0 {
		seat := f.Seat
		of.Seat = &seat
	}
	return of
}
