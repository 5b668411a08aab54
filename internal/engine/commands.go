// internal/engine/commands.go
package engine

import "fmt"

// Command is one player (or timeout) action submitted to Apply.
type Command interface {
	CommandName() string
}

// StartDeal deals a new hand from Waiting or Result.
type StartDeal struct{}

// PlaceBid offers a contract.
type PlaceBid struct {
	Quantity int
	Trump    Suit
}

// PassBid leaves the auction for the rest of the deal.
type PassBid struct{}

// DeclareDealMiss asks for a redeal because the hand is too weak.
type DeclareDealMiss struct{}

// SetTableCards is the master's discard and final contract.
type SetTableCards struct {
	Discards []Card
	// Trump and Quantity may be left zero to keep the winning bid.
	Trump    Suit
	Quantity int
}

// SelectFriend designates the master's partner.
type SelectFriend struct {
	Mode FriendMode
	Card *Card
}

// PlayCard plays one card into the current trick.
type PlayCard struct {
	Card Card
	// JokerCall, on a lead of the joker-call card, forces the Joker out.
	JokerCall bool
	// JokerCallSuit declares the led suit when the Joker leads.
	JokerCallSuit Suit
}

// ForcePass is the timeout fallback during bidding.
type ForcePass struct{}

// ForceDiscardRandom is the timeout fallback during the exchange.
type ForceDiscardRandom struct{}

// ForcePlay is the timeout fallback during trick play: the first legal card in hand order.
type ForcePlay struct{}

func (StartDeal) CommandName() string          { return "start_deal" }
func (PlaceBid) CommandName() string           { return "bid" }
func (PassBid) CommandName() string            { return "pass" }
func (DeclareDealMiss) CommandName() string    { return "deal_miss" }
func (SetTableCards) CommandName() string      { return "table_cards" }
func (SelectFriend) CommandName() string       { return "friend" }
func (PlayCard) CommandName() string           { return "play" }
func (ForcePass) CommandName() string          { return "force_pass" }
func (ForceDiscardRandom) CommandName() string { return "force_discard" }
func (ForcePlay) CommandName() string          { return "force_play" }

// Apply validates cmd from seat against s. On success it returns the next state and the
// events produced, in order. On failure it returns s itself, untouched, and the rejection.
func Apply(s *State, seat int, cmd Command) (*State, []Event, error) {
	if !validSeat(seat) {
		return s, nil, fmt.Errorf("%w: seat %d", ErrUnknownPlayer, seat)
	}
	next := s.Clone()

	var (
		events []Event
		err    error
	)
	switch c := cmd.(type) {
	case StartDeal:
		events, err = next.startDeal()
	case PlaceBid:
		events, err = next.placeBid(seat, c.Quantity, c.Trump)
	case PassBid:
		events, err = next.pass(seat, false)
	case ForcePass:
		events, err = next.pass(seat, true)
	case DeclareDealMiss:
		events, err = next.declareDealMiss(seat)
	case SetTableCards:
		events, err = next.setTableCards(seat, c, false)
	case ForceDiscardRandom:
		events, err = next.forceDiscard(seat)
	case SelectFriend:
		events, err = next.selectFriend(seat, c.Mode, c.Card)
	case PlayCard:
		events, err = next.playCard(seat, c, false)
	case ForcePlay:
		events, err = next.forcePlay(seat)
	default:
		err = fmt.Errorf("%w: unsupported command %T", ErrPhaseMismatch, cmd)
	}
	if err != nil {
		return s, nil, err
	}
	return next, events, nil
}

func phaseMismatch(s *State, cmd string) error {
	return fmt.Errorf("%w: %s during %s", ErrPhaseMismatch, cmd, s.Phase.Name())
}
