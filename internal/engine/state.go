// internal/engine/state.go
package engine

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"slices"
	"strconv"
	"strings"
)

// PhaseName is the wire name of a phase.
type PhaseName string

const (
	PhaseWaiting      PhaseName = "waiting"
	PhaseBidding      PhaseName = "bidding"
	PhaseTableCards   PhaseName = "tableCards"
	PhaseFriendSelect PhaseName = "friendSelect"
	PhasePlaying      PhaseName = "playing"
	PhaseResult       PhaseName = "result"
)

// Phase is a sealed variant; each implementation carries only its own payload.
type Phase interface {
	Name() PhaseName
	clone() Phase
}

// Waiting is the state before the first deal.
type Waiting struct{}

// Bidding tracks the auction.
type Bidding struct {
	Current int
	Passed  [NumPlayers]bool
	Acted   [NumPlayers]bool
	Highest *Bid
}

// TableCards waits for the master to discard and fix the contract.
type TableCards struct{}

// FriendSelect waits for the master to designate a friend.
type FriendSelect struct{}

// Playing holds the trick in progress.
type Playing struct {
	Trick Trick
}

// Result holds the outcome of the finished round.
type Result struct {
	Outcome Outcome
}

func (Waiting) Name() PhaseName      { return PhaseWaiting }
func (Bidding) Name() PhaseName      { return PhaseBidding }
func (TableCards) Name() PhaseName   { return PhaseTableCards }
func (FriendSelect) Name() PhaseName { return PhaseFriendSelect }
func (Playing) Name() PhaseName      { return PhasePlaying }
func (Result) Name() PhaseName       { return PhaseResult }

func (p Waiting) clone() Phase      { return p }
func (p TableCards) clone() Phase   { return p }
func (p FriendSelect) clone() Phase { return p }
func (p Result) clone() Phase       { return p }

func (p Bidding) clone() Phase {
	if p.Highest != nil {
		b := *p.Highest
		p.Highest = &b
	}
	return p
}

func (p Playing) clone() Phase {
	p.Trick = p.Trick.clone()
	return p
}

// Bid is a contract offer: the number of points the bidder's side will take, and the trump.
type Bid struct {
	Seat     int  `json:"seat"`
	Quantity int  `json:"quantity"`
	Trump    Suit `json:"trump"`
}

// Beats reports whether b outranks other. At equal quantity a no-trump bid outranks a suited one.
func (b Bid) Beats(other *Bid) bool {
	if other == nil {
		return true
	}
	if b.Quantity != other.Quantity {
		return b.Quantity > other.Quantity
	}
	return b.Trump == NoTrump && other.Trump != NoTrump
}

// FriendMode is how the master chooses a partner. Values match the client's friend types.
type FriendMode int

const (
	FriendByCard           FriendMode = 0
	FriendFirstTrickWinner FriendMode = 1
	FriendNone             FriendMode = 2
)

func (m FriendMode) String() string {
	switch m {
	case FriendByCard:
		return "card"
	case FriendFirstTrickWinner:
		return "first_trick"
	case FriendNone:
		return "none"
	default:
		return "unknown"
	}
}

func (m FriendMode) valid() bool {
	return m >= FriendByCard && m <= FriendNone
}

// ParseFriendMode accepts the mode name or the client's numeric friend type.
func ParseFriendMode(v string) (FriendMode, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if n, err := strconv.Atoi(v); err == nil {
		if m := FriendMode(n); m.valid() {
			return m, nil
		}
		return 0, fmt.Errorf("unknown friend type %d", n)
	}
	switch v {
	case "card", "by_card":
		return FriendByCard, nil
	case "first", "first_trick":
		return FriendFirstTrickWinner, nil
	case "none", "no_friend":
		return FriendNone, nil
	}
	return 0, fmt.Errorf("unknown friend type %q", v)
}

func (m FriendMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both the name and the numeric client code.
func (m *FriendMode) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		raw = string(data)
	}
	parsed, err := ParseFriendMode(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Friend is the master's designation and, once known, the friend's seat.
type Friend struct {
	Mode FriendMode `json:"mode"`
	Card *Card      `json:"card,omitempty"`
	// Seat is -1 until the friend is revealed, and stays -1 when the master plays alone.
	Seat     int  `json:"seat"`
	Revealed bool `json:"revealed"`
}

// Play is one card placed into a trick.
type Play struct {
	Seat int  `json:"seat"`
	Card Card `json:"card"`
}

// Trick is one round of five plays.
type Trick struct {
	Leader      int    `json:"leader"`
	Plays       []Play `json:"plays"`
	LedSuit     Suit   `json:"ledSuit"`
	JokerCalled bool   `json:"jokerCalled"`
	Winner      int    `json:"winner"`
	Points      int    `json:"points"`
}

func (t Trick) clone() Trick {
	t.Plays = slices.Clone(t.Plays)
	return t
}

// Complete reports whether all five seats have played.
func (t Trick) Complete() bool {
	return len(t.Plays) == NumPlayers
}

// Player is one seat at the table.
type Player struct {
	Seat     int    `json:"seat"`
	Hand     []Card `json:"hand"`
	Chips    int    `json:"chips"`
	IsMaster bool   `json:"isMaster"`
	IsFriend bool   `json:"isFriend"`
	// Points counts point cards captured in tricks this round.
	Points int `json:"points"`
}

// State is the complete authoritative state of one session. It is never shared between sessions.
type State struct {
	Rules   Rules
	Seed    int64
	Phase   Phase
	Players [NumPlayers]Player

	Kitty []Card
	Dead  []Card

	Trump  Suit
	Bid    *Bid
	Master int
	Friend Friend

	Completed []Trick
	// Round is the 1-based number of the trick being played.
	Round int
	// Deal counts deals, including redeals.
	Deal           int
	StartingBidder int
	JokerCallUsed  bool
}

// NewState returns a session in the Waiting phase. Seed drives every shuffle.
func NewState(rules Rules, seed int64) (*State, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	s := &State{
		Rules:  rules,
		Seed:   seed,
		Phase:  Waiting{},
		Master: -1,
		Friend: Friend{Seat: -1},
	}
	for i := range s.Players {
		s.Players[i] = Player{Seat: i, Chips: rules.StartingChips}
	}
	return s, nil
}

// Clone deep-copies the state.
func (s *State) Clone() *State {
	c := *s
	c.Phase = s.Phase.clone()
	for i := range c.Players {
		c.Players[i].Hand = slices.Clone(s.Players[i].Hand)
	}
	c.Kitty = slices.Clone(s.Kitty)
	c.Dead = slices.Clone(s.Dead)
	if s.Bid != nil {
		b := *s.Bid
		c.Bid = &b
	}
	if s.Friend.Card != nil {
		fc := *s.Friend.Card
		c.Friend.Card = &fc
	}
	c.Completed = slices.Clone(s.Completed)
	for i := range c.Completed {
		c.Completed[i] = c.Completed[i].clone()
	}
	return &c
}

// Mighty is the Mighty card under the current trump.
func (s *State) Mighty() Card {
	return MightyCard(s.Trump)
}

// CurrentTurn is the seat expected to act next, or -1 when no seat is.
func (s *State) CurrentTurn() int {
	switch p := s.Phase.(type) {
	case Bidding:
		return p.Current
	case TableCards, FriendSelect:
		return s.Master
	case Playing:
		return (p.Trick.Leader + len(p.Trick.Plays)) % NumPlayers
	default:
		return -1
	}
}

// CardCount is the number of cards accounted for across hands, kitty, tricks and dead cards.
func (s *State) CardCount() int {
	n := len(s.Kitty) + len(s.Dead)
	for _, p := range s.Players {
		n += len(p.Hand)
	}
	for _, t := range s.Completed {
		n += len(t.Plays)
	}
	if p, ok := s.Phase.(Playing); ok {
		n += len(p.Trick.Plays)
	}
	return n
}

// rng returns a deterministic source for the current deal and purpose.
func (s *State) rng(salt int64) *rand.Rand {
	return rand.New(rand.NewSource(s.Seed*7919 + int64(s.Deal)*104729 + salt))
}

func nextSeat(seat int) int {
	return (seat + 1) % NumPlayers
}

func validSeat(seat int) bool {
	return seat >= 0 && seat < NumPlayers
}
