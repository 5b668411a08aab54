// internal/engine/trick.go
package engine

import "fmt"

func (s *State) playCard(seat int, pc PlayCard, forced bool) ([]Event, error) {
	p, ok := s.Phase.(Playing)
	if !ok {
		return nil, phaseMismatch(s, "play")
	}
	if turn := s.CurrentTurn(); seat != turn {
		return nil, fmt.Errorf("%w: seat %d played while seat %d is to play", ErrOutOfTurn, seat, turn)
	}
	hand := s.Players[seat].Hand
	if !containsCard(hand, pc.Card) {
		return nil, fmt.Errorf("%w: %s is not in hand", ErrIllegalCard, pc.Card)
	}
	if err := s.checkPlay(p.Trick, hand, pc); err != nil {
		return nil, err
	}

	t := p.Trick
	if len(t.Plays) == 0 {
		t.LedSuit = pc.Card.Suit
		if pc.Card.IsJoker() {
			t.LedSuit = pc.JokerCallSuit
		}
		if pc.JokerCall {
			t.JokerCalled = true
			s.JokerCallUsed = true
		}
	}
	s.Players[seat].Hand, _ = removeCard(hand, pc.Card)
	t.Plays = append(t.Plays, Play{Seat: seat, Card: pc.Card})

	played := publicEvent(EventCardPlayed, seat)
	card := pc.Card
	played.Card = &card
	played.JokerCall = pc.JokerCall
	played.JokerCallSuit = pc.JokerCallSuit
	played.Forced = forced
	events := []Event{played}

	if s.Friend.Mode == FriendByCard && !s.Friend.Revealed && s.Friend.Card != nil && *s.Friend.Card == pc.Card {
		events = append(events, s.revealFriend(seat))
	}

	if !t.Complete() {
		p.Trick = t
		s.Phase = p
		return events, nil
	}
	return append(events, s.resolveTrick(t)...), nil
}

// checkPlay enforces lead options and the follow rule. hand still contains the card.
func (s *State) checkPlay(t Trick, hand []Card, pc PlayCard) error {
	card := pc.Card
	if len(t.Plays) == 0 {
		if card.IsJoker() {
			if pc.JokerCall {
				return fmt.Errorf("%w: the Joker cannot call itself", ErrInvalidJokerCall)
			}
			if !pc.JokerCallSuit.IsPlain() {
				return fmt.Errorf("%w: leading the Joker requires a declared suit", ErrInvalidJokerCall)
			}
			return nil
		}
		if pc.JokerCallSuit != SuitNone {
			return fmt.Errorf("%w: a suit may only be declared when leading the Joker", ErrInvalidJokerCall)
		}
		if pc.JokerCall && card != JokerCallCard(s.Trump) {
			return fmt.Errorf("%w: only %s calls the Joker", ErrInvalidJokerCall, JokerCallCard(s.Trump))
		}
		return nil
	}

	if pc.JokerCall || pc.JokerCallSuit != SuitNone {
		return fmt.Errorf("%w: only the leader may call", ErrInvalidJokerCall)
	}
	if t.JokerCalled && containsCard(hand, JokerCard) && !card.IsJoker() {
		return fmt.Errorf("%w: the Joker was called and must be played", ErrIllegalCard)
	}
	if card == s.Mighty() || card.IsJoker() {
		return nil
	}
	if card.Suit != t.LedSuit && hasSuit(hand, t.LedSuit) {
		return fmt.Errorf("%w: must follow %s", ErrIllegalCard, t.LedSuit)
	}
	return nil
}

// LegalPlays lists the cards seat may play right now, in hand order.
func (s *State) LegalPlays(seat int) []Card {
	p, ok := s.Phase.(Playing)
	if !ok || !validSeat(seat) || s.CurrentTurn() != seat {
		return nil
	}
	hand := s.Players[seat].Hand
	var legal []Card
	for _, c := range hand {
		if s.checkPlay(p.Trick, hand, autoPlay(p.Trick, hand, c)) == nil {
			legal = append(legal, c)
		}
	}
	return legal
}

// autoPlay builds the play of c without optional calls, declaring the longest suit on a Joker lead.
func autoPlay(t Trick, hand []Card, c Card) PlayCard {
	pc := PlayCard{Card: c}
	if len(t.Plays) == 0 && c.IsJoker() {
		pc.JokerCallSuit = longestSuit(hand)
	}
	return pc
}

func (s *State) forcePlay(seat int) ([]Event, error) {
	p, ok := s.Phase.(Playing)
	if !ok {
		return nil, phaseMismatch(s, "force play")
	}
	if turn := s.CurrentTurn(); seat != turn {
		return nil, fmt.Errorf("%w: seat %d is not to play", ErrOutOfTurn, seat)
	}
	hand := s.Players[seat].Hand
	for _, c := range hand {
		pc := autoPlay(p.Trick, hand, c)
		if s.checkPlay(p.Trick, hand, pc) == nil {
			return s.playCard(seat, pc, true)
		}
	}
	return nil, fmt.Errorf("%w: seat %d has no legal card", ErrIllegalCard, seat)
}

// resolveTrick settles a complete trick and moves to the next trick or to scoring.
func (s *State) resolveTrick(t Trick) []Event {
	last := s.Round == s.Rules.Tricks()
	powerless := t.JokerCalled || (s.Rules.JokerPowerlessFirstLast && (s.Round == 1 || last))
	t.Winner = TrickWinner(t, s.Trump, powerless)
	for _, pl := range t.Plays {
		t.Points += pl.Card.Points()
	}
	s.Players[t.Winner].Points += t.Points
	s.Completed = append(s.Completed, t)

	resolved := publicEvent(EventTrickResolved, t.Winner)
	done := t.clone()
	resolved.Trick = &done
	events := []Event{resolved}

	if s.Friend.Mode == FriendFirstTrickWinner && s.Round == 1 && !s.Friend.Revealed {
		if t.Winner == s.Master {
			s.Friend.Revealed = true
		} else {
			events = append(events, s.revealFriend(t.Winner))
		}
	}

	if last {
		return append(events, s.score()...)
	}
	s.Round++
	s.Phase = Playing{Trick: Trick{Leader: t.Winner, Winner: -1}}
	return events
}

// TrickWinner applies the precedence Mighty, Joker (unless powerless), highest trump,
// highest card of the led suit, and finally the leader.
func TrickWinner(t Trick, trump Suit, jokerPowerless bool) int {
	mighty := MightyCard(trump)
	for _, pl := range t.Plays {
		if pl.Card == mighty {
			return pl.Seat
		}
	}
	if !jokerPowerless {
		for _, pl := range t.Plays {
			if pl.Card.IsJoker() {
				return pl.Seat
			}
		}
	}
	if trump.IsPlain() {
		if seat := highestOfSuit(t.Plays, trump); seat >= 0 {
			return seat
		}
	}
	if seat := highestOfSuit(t.Plays, t.LedSuit); seat >= 0 {
		return seat
	}
	return t.Leader
}

func highestOfSuit(plays []Play, suit Suit) int {
	best, bestRank := -1, 0
	for _, pl := range plays {
		if pl.Card.IsJoker() || pl.Card.Suit != suit {
			continue
		}
		if pl.Card.Rank > bestRank {
			best, bestRank = pl.Seat, pl.Card.Rank
		}
	}
	return best
}
