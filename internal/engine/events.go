// internal/engine/events.go
package engine

// EventKind names something that happened during Apply.
type EventKind string

const (
	EventDealt            EventKind = "dealt"
	EventBidPlaced        EventKind = "bid_placed"
	EventBidPassed        EventKind = "bid_passed"
	EventDealMissDeclared EventKind = "deal_miss_declared"
	EventRedealt          EventKind = "redealt"
	EventMasterDecided    EventKind = "master_decided"
	EventKittyDealt       EventKind = "kitty_dealt"
	EventTableCardsSet    EventKind = "table_cards_set"
	EventFriendSelected   EventKind = "friend_selected"
	EventFriendRevealed   EventKind = "friend_revealed"
	EventCardPlayed       EventKind = "card_played"
	EventTrickResolved    EventKind = "trick_resolved"
	EventRoundResult      EventKind = "round_result"
)

// Redeal reasons.
const (
	ReasonAllPassed = "all_passed"
	ReasonDealMiss  = "deal_miss"
	ReasonNextDeal  = "next_deal"
	ReasonFirstDeal = "first_deal"
)

// Event is emitted in order by Apply. Fields not relevant to Kind are zero.
type Event struct {
	Kind EventKind
	// Seat is the acting or affected seat, -1 when the event concerns the whole table.
	Seat int
	// PrivateTo restricts the event to one seat; -1 means every seat may see it.
	PrivateTo int
	Forced    bool

	Bid           *Bid
	Card          *Card
	Cards         []Card
	Trump         Suit
	Friend        *Friend
	JokerCall     bool
	JokerCallSuit Suit
	Trick         *Trick
	Outcome       *Outcome
	Reason        string
}

// Public reports whether every seat may see the event.
func (e Event) Public() bool {
	return e.PrivateTo < 0
}

func publicEvent(kind EventKind, seat int) Event {
	return Event{Kind: kind, Seat: seat, PrivateTo: -1}
}
