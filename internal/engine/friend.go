// internal/engine/friend.go
package engine

import "fmt"

func (s *State) selectFriend(seat int, mode FriendMode, card *Card) ([]Event, error) {
	if _, ok := s.Phase.(FriendSelect); !ok {
		return nil, phaseMismatch(s, "select friend")
	}
	if seat != s.Master {
		return nil, fmt.Errorf("%w: only the master (seat %d) selects a friend", ErrOutOfTurn, s.Master)
	}
	if !mode.valid() {
		return nil, fmt.Errorf("%w: unknown friend mode %d", ErrInvalidFriendCard, mode)
	}

	friend := Friend{Mode: mode, Seat: -1}
	switch mode {
	case FriendByCard:
		if card == nil {
			return nil, fmt.Errorf("%w: a friend card is required", ErrInvalidFriendCard)
		}
		if !card.Valid() {
			return nil, fmt.Errorf("%w: %s is not a card", ErrInvalidFriendCard, card)
		}
		if *card == s.Mighty() {
			return nil, fmt.Errorf("%w: the Mighty cannot name a friend", ErrInvalidFriendCard)
		}
		if containsCard(s.Players[seat].Hand, *card) {
			return nil, fmt.Errorf("%w: %s is in the master's own hand", ErrInvalidFriendCard, card)
		}
		if containsCard(s.Dead, *card) {
			return nil, fmt.Errorf("%w: %s was discarded", ErrInvalidFriendCard, card)
		}
		fc := *card
		friend.Card = &fc
	case FriendNone:
		friend.Revealed = true
	}
	s.Friend = friend
	s.Round = 1
	s.Phase = Playing{Trick: Trick{Leader: nextSeat(s.Master), Winner: -1}}

	ev := publicEvent(EventFriendSelected, seat)
	announced := friend
	if friend.Card != nil {
		fc := *friend.Card
		announced.Card = &fc
	}
	ev.Friend = &announced
	return []Event{ev}, nil
}

// revealFriend records seat as the friend and returns the reveal event.
func (s *State) revealFriend(seat int) Event {
	s.Friend.Seat = seat
	s.Friend.Revealed = true
	s.Players[seat].IsFriend = true
	return publicEvent(EventFriendRevealed, seat)
}
