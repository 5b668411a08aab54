// internal/engine/bidding.go
package engine

import "fmt"

func (s *State) startDeal() ([]Event, error) {
	switch s.Phase.(type) {
	case Waiting:
		return s.deal(ReasonFirstDeal), nil
	case Result:
		s.StartingBidder = nextSeat(s.StartingBidder)
		return s.deal(ReasonNextDeal), nil
	default:
		return nil, phaseMismatch(s, "start deal")
	}
}

// deal shuffles and distributes a fresh deck and opens the auction.
func (s *State) deal(reason string) []Event {
	s.Deal++
	deck := shuffledDeck(s.rng(0))
	size := s.Rules.HandSize
	for i := range s.Players {
		hand := make([]Card, size)
		copy(hand, deck[i*size:(i+1)*size])
		SortHand(hand)
		s.Players[i].Hand = hand
		s.Players[i].IsMaster = false
		s.Players[i].IsFriend = false
		s.Players[i].Points = 0
	}
	s.Kitty = append([]Card(nil), deck[NumPlayers*size:]...)
	s.Dead = nil
	s.Trump = SuitNone
	s.Bid = nil
	s.Master = -1
	s.Friend = Friend{Seat: -1}
	s.Completed = nil
	s.Round = 0
	s.JokerCallUsed = false
	s.Phase = Bidding{Current: s.StartingBidder}

	ev := publicEvent(EventDealt, s.StartingBidder)
	ev.Reason = reason
	return []Event{ev}
}

func (s *State) redeal(reason string) []Event {
	ev := publicEvent(EventRedealt, -1)
	ev.Reason = reason
	return append([]Event{ev}, s.deal(reason)...)
}

func (s *State) placeBid(seat, quantity int, trump Suit) ([]Event, error) {
	b, ok := s.Phase.(Bidding)
	if !ok {
		return nil, phaseMismatch(s, "bid")
	}
	if seat != b.Current {
		return nil, fmt.Errorf("%w: seat %d bid while seat %d is bidding", ErrOutOfTurn, seat, b.Current)
	}
	if quantity < s.Rules.MinBid || quantity > MaxBid {
		return nil, fmt.Errorf("%w: quantity %d outside %d..%d", ErrInvalidBid, quantity, s.Rules.MinBid, MaxBid)
	}
	if !trump.IsTrumpDeclaration() {
		return nil, fmt.Errorf("%w: %s cannot be trump", ErrInvalidBid, trump)
	}
	bid := Bid{Seat: seat, Quantity: quantity, Trump: trump}
	if !bid.Beats(b.Highest) {
		return nil, fmt.Errorf("%w: %d %s does not beat %d %s",
			ErrInvalidBid, quantity, trump, b.Highest.Quantity, b.Highest.Trump)
	}
	b.Highest = &bid
	b.Acted[seat] = true

	ev := publicEvent(EventBidPlaced, seat)
	placed := bid
	ev.Bid = &placed
	return s.advanceBidding(b, []Event{ev}), nil
}

func (s *State) pass(seat int, forced bool) ([]Event, error) {
	b, ok := s.Phase.(Bidding)
	if !ok {
		return nil, phaseMismatch(s, "pass")
	}
	if seat != b.Current {
		return nil, fmt.Errorf("%w: seat %d passed while seat %d is bidding", ErrOutOfTurn, seat, b.Current)
	}
	b.Passed[seat] = true
	b.Acted[seat] = true

	ev := publicEvent(EventBidPassed, seat)
	ev.Forced = forced
	return s.advanceBidding(b, []Event{ev}), nil
}

// advanceBidding either closes the auction or hands the turn to the next active seat.
func (s *State) advanceBidding(b Bidding, events []Event) []Event {
	active, acted := 0, 0
	for i := 0; i < NumPlayers; i++ {
		if !b.Passed[i] {
			active++
		}
		if b.Acted[i] {
			acted++
		}
	}

	switch {
	case active == 0:
		return append(events, s.redeal(ReasonAllPassed)...)
	case b.Highest != nil && active == 1:
		return append(events, s.decideMaster(*b.Highest)...)
	case b.Highest != nil && acted == NumPlayers && !s.Rules.OpenBidding:
		return append(events, s.decideMaster(*b.Highest)...)
	}

	next := b.Current
	for i := 0; i < NumPlayers; i++ {
		next = nextSeat(next)
		if b.Passed[next] {
			continue
		}
		if b.Highest != nil && b.Highest.Seat == next {
			continue
		}
		b.Current = next
		s.Phase = b
		return events
	}
	// Only the highest bidder is left.
	return append(events, s.decideMaster(*b.Highest)...)
}

// decideMaster seats the contract holder and gives them the kitty.
func (s *State) decideMaster(bid Bid) []Event {
	s.Master = bid.Seat
	s.Bid = &bid
	s.Trump = bid.Trump
	s.Players[bid.Seat].IsMaster = true

	kitty := s.Kitty
	s.Kitty = nil
	hand := append(s.Players[bid.Seat].Hand, kitty...)
	SortHand(hand)
	s.Players[bid.Seat].Hand = hand
	s.Phase = TableCards{}

	decided := publicEvent(EventMasterDecided, bid.Seat)
	won := bid
	decided.Bid = &won
	decided.Trump = bid.Trump

	dealt := Event{Kind: EventKittyDealt, Seat: bid.Seat, PrivateTo: bid.Seat, Cards: kitty}
	return []Event{decided, dealt}
}

func (s *State) declareDealMiss(seat int) ([]Event, error) {
	b, ok := s.Phase.(Bidding)
	if !ok {
		return nil, phaseMismatch(s, "deal miss")
	}
	if !s.Rules.AllowDealMiss {
		return nil, fmt.Errorf("%w: deal miss is disabled", ErrInvalidBid)
	}
	if b.Highest != nil {
		return nil, fmt.Errorf("%w: deal miss must be declared before the first bid", ErrInvalidBid)
	}
	hand := s.Players[seat].Hand
	score := HandScore(hand)
	if score > s.Rules.DealMissThreshold {
		return nil, fmt.Errorf("%w: hand score %d is above the deal-miss threshold %d",
			ErrInvalidBid, score, s.Rules.DealMissThreshold)
	}

	ev := publicEvent(EventDealMissDeclared, seat)
	ev.Cards = append([]Card(nil), hand...)
	return append([]Event{ev}, s.redeal(ReasonDealMiss)...), nil
}
