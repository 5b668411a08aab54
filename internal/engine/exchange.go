// internal/engine/exchange.go
package engine

import "fmt"

func (s *State) setTableCards(seat int, c SetTableCards, forced bool) ([]Event, error) {
	if _, ok := s.Phase.(TableCards); !ok {
		return nil, phaseMismatch(s, "table cards")
	}
	if seat != s.Master {
		return nil, fmt.Errorf("%w: only the master (seat %d) discards", ErrOutOfTurn, s.Master)
	}

	hand := s.Players[seat].Hand
	if len(c.Discards) != s.Rules.KittySize {
		return nil, fmt.Errorf("%w: discard exactly %d cards, got %d", ErrInvalidDiscard, s.Rules.KittySize, len(c.Discards))
	}
	seen := make(map[Card]bool, len(c.Discards))
	for _, d := range c.Discards {
		if seen[d] {
			return nil, fmt.Errorf("%w: %s discarded twice", ErrInvalidDiscard, d)
		}
		seen[d] = true
		if !containsCard(hand, d) {
			return nil, fmt.Errorf("%w: %s is not in the master's hand", ErrInvalidDiscard, d)
		}
	}

	quantity, trump := c.Quantity, c.Trump
	if quantity == 0 {
		quantity = s.Bid.Quantity
	}
	if trump == SuitNone {
		trump = s.Bid.Trump
	}
	if quantity < s.Bid.Quantity || quantity > MaxBid {
		return nil, fmt.Errorf("%w: contract %d must be between the winning bid %d and %d",
			ErrInvalidBid, quantity, s.Bid.Quantity, MaxBid)
	}
	if !trump.IsTrumpDeclaration() {
		return nil, fmt.Errorf("%w: %s cannot be trump", ErrInvalidBid, trump)
	}
	if s.Bid.Trump != NoTrump && trump != s.Bid.Trump {
		raise := s.Rules.TrumpChangeRaise
		if raise == 0 {
			return nil, fmt.Errorf("%w: trump is fixed to %s", ErrInvalidBid, s.Bid.Trump)
		}
		if quantity < s.Bid.Quantity+raise {
			return nil, fmt.Errorf("%w: changing trump requires a contract of at least %d",
				ErrInvalidBid, s.Bid.Quantity+raise)
		}
	}

	for _, d := range c.Discards {
		hand, _ = removeCard(hand, d)
	}
	s.Players[seat].Hand = hand
	s.Dead = append([]Card(nil), c.Discards...)
	s.Bid.Quantity = quantity
	s.Bid.Trump = trump
	s.Trump = trump
	s.Phase = FriendSelect{}

	ev := publicEvent(EventTableCardsSet, seat)
	contract := *s.Bid
	ev.Bid = &contract
	ev.Trump = trump
	ev.Forced = forced
	return []Event{ev}, nil
}

// forceDiscard discards kitty-size random cards and keeps the winning bid unchanged.
func (s *State) forceDiscard(seat int) ([]Event, error) {
	if _, ok := s.Phase.(TableCards); !ok {
		return nil, phaseMismatch(s, "force discard")
	}
	if seat != s.Master {
		return nil, fmt.Errorf("%w: only the master (seat %d) discards", ErrOutOfTurn, s.Master)
	}
	hand := s.Players[seat].Hand
	perm := s.rng(1).Perm(len(hand))
	discards := make([]Card, 0, s.Rules.KittySize)
	for _, idx := range perm[:s.Rules.KittySize] {
		discards = append(discards, hand[idx])
	}
	return s.setTableCards(seat, SetTableCards{Discards: discards}, true)
}
