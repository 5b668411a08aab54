// internal/engine/rules.go
package engine

import "fmt"

// NumPlayers is fixed: Mighty is a five-player game.
const NumPlayers = 5

// MaxBid is the highest contract; the deck holds exactly 20 points.
const MaxBid = 20

// LowestMinBid is the smallest minimum contract a table may configure.
const LowestMinBid = 13

// Rules holds the per-session constants the engine consults.
type Rules struct {
	HandSize  int `json:"handSize"`
	KittySize int `json:"kittySize"`
	MinBid    int `json:"minBid"`

	// OpenBidding keeps the auction going until a single bidder remains.
	// When false the auction closes once all five seats have acted and a bid stands.
	OpenBidding bool `json:"openBidding"`

	AllowDealMiss     bool `json:"allowDealMiss"`
	DealMissThreshold int  `json:"dealMissThreshold"`

	// TrumpChangeRaise lets the master change a suited trump after the exchange by
	// raising the contract at least this much. Zero disables trump changes.
	TrumpChangeRaise int `json:"trumpChangeRaise"`

	// JokerPowerlessFirstLast makes the Joker lose like any off-suit card in tricks 1 and 10.
	JokerPowerlessFirstLast bool `json:"jokerPowerlessFirstLast"`

	StartingChips int `json:"startingChips"`

	// Payout computes chip deltas; nil selects DefaultPayout.
	Payout PayoutFunc `json:"-"`
}

// DefaultRules are the deal sizes and thresholds used unless a room overrides them.
func DefaultRules() Rules {
	return Rules{
		HandSize:          10,
		KittySize:         3,
		MinBid:            13,
		AllowDealMiss:     true,
		DealMissThreshold: 0,
		StartingChips:     100,
	}
}

// Validate checks that the deal sizes partition the deck and the bid range is sane.
func (r Rules) Validate() error {
	if r.HandSize <= 0 || r.KittySize <= 0 {
		return fmt.Errorf("hand size and kitty size must be positive")
	}
	if NumPlayers*r.HandSize+r.KittySize != DeckSize {
		return fmt.Errorf("%d hands of %d plus a kitty of %d must use all %d cards",
			NumPlayers, r.HandSize, r.KittySize, DeckSize)
	}
	if r.MinBid < LowestMinBid || r.MinBid > MaxBid {
		return fmt.Errorf("minBid must be between %d and %d", LowestMinBid, MaxBid)
	}
	if r.TrumpChangeRaise < 0 {
		return fmt.Errorf("trumpChangeRaise must be non-negative")
	}
	return nil
}

// Tricks is the number of tricks in a round, one per card in a hand after the exchange.
func (r Rules) Tricks() int {
	return r.HandSize
}

func (r Rules) payout() PayoutFunc {
	if r.Payout != nil {
		return r.Payout
	}
	return DefaultPayout
}
