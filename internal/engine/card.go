// internal/engine/card.go
package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Suit identifies a card suit or a trump declaration. The numeric values match
// the card type codes used by the web client.
type Suit int

const (
	SuitNone    Suit = 0
	SuitSpade   Suit = 1
	SuitHeart   Suit = 2
	SuitDiamond Suit = 3
	SuitClover  Suit = 4
	SuitJoker   Suit = 5

	// NoTrump is only valid as a trump declaration, never as a card suit.
	NoTrump Suit = 8
)

// Rank values. Ace is high.
const (
	RankJack  = 11
	RankQueen = 12
	RankKing  = 13
	RankAce   = 14
)

var suitNames = map[Suit]string{
	SuitNone:    "none",
	SuitSpade:   "spade",
	SuitHeart:   "heart",
	SuitDiamond: "diamond",
	SuitClover:  "clover",
	SuitJoker:   "joker",
	NoTrump:     "notrump",
}

// PlainSuits lists the four playing suits in deck order.
var PlainSuits = []Suit{SuitSpade, SuitHeart, SuitDiamond, SuitClover}

func (s Suit) String() string {
	if name, ok := suitNames[s]; ok {
		return name
	}
	return "suit(" + strconv.Itoa(int(s)) + ")"
}

// IsPlain reports whether s is one of the four playing suits.
func (s Suit) IsPlain() bool {
	return s >= SuitSpade && s <= SuitClover
}

// IsTrumpDeclaration reports whether s may be named as trump in a bid.
func (s Suit) IsTrumpDeclaration() bool {
	return s.IsPlain() || s == NoTrump
}

// ParseSuit accepts either a suit name ("heart", "notrump") or its numeric code ("2", "8").
func ParseSuit(v string) (Suit, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if n, err := strconv.Atoi(v); err == nil {
		s := Suit(n)
		if _, ok := suitNames[s]; ok {
			return s, nil
		}
		return SuitNone, fmt.Errorf("unknown suit code %d", n)
	}
	switch v {
	case "no_trump", "no-trump", "nt":
		return NoTrump, nil
	case "club", "clubs":
		return SuitClover, nil
	}
	for s, name := range suitNames {
		if name == v || name+"s" == v {
			return s, nil
		}
	}
	return SuitNone, fmt.Errorf("unknown suit %q", v)
}

func (s Suit) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts both the string form and the numeric client code.
func (s *Suit) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = SuitNone
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		parsed, err := ParseSuit(strconv.Itoa(n))
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("suit must be a string or number: %w", err)
	}
	if str == "" {
		*s = SuitNone
		return nil
	}
	parsed, err := ParseSuit(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Card is a single playing card. The Joker has suit SuitJoker and rank 0.
type Card struct {
	Suit Suit `json:"suit"`
	Rank int  `json:"rank"`
}

// JokerCard is the one Joker in the deck.
var JokerCard = Card{Suit: SuitJoker}

func (c Card) IsJoker() bool {
	return c.Suit == SuitJoker
}

// Valid reports whether c is one of the 53 cards of the deck.
func (c Card) Valid() bool {
	if c.IsJoker() {
		return c.Rank == 0
	}
	return c.Suit.IsPlain() && c.Rank >= 2 && c.Rank <= RankAce
}

// Points is the number of scoring points the card carries (10, J, Q, K and A score one).
func (c Card) Points() int {
	if !c.IsJoker() && c.Rank >= 10 {
		return 1
	}
	return 0
}

var suitLetters = map[Suit]string{
	SuitSpade:   "S",
	SuitHeart:   "H",
	SuitDiamond: "D",
	SuitClover:  "C",
}

// String renders the card compactly, e.g. "S14", "H10" or "JK".
func (c Card) String() string {
	if c.IsJoker() {
		return "JK"
	}
	letter, ok := suitLetters[c.Suit]
	if !ok {
		letter = "?"
	}
	return letter + strconv.Itoa(c.Rank)
}

// ParseCard is the inverse of Card.String.
func ParseCard(v string) (Card, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "JK" {
		return JokerCard, nil
	}
	if len(v) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", v)
	}
	var suit Suit
	for s, letter := range suitLetters {
		if letter == v[:1] {
			suit = s
		}
	}
	rank, err := strconv.Atoi(v[1:])
	if err != nil || suit == SuitNone {
		return Card{}, fmt.Errorf("invalid card %q", v)
	}
	c := Card{Suit: suit, Rank: rank}
	if !c.Valid() {
		return Card{}, fmt.Errorf("invalid card %q", v)
	}
	return c, nil
}

// MightyCard returns the Mighty for a trump declaration: the ace of the suit opposite
// the trump (spade/diamond, heart/clover), or the ace of diamonds under no-trump.
func MightyCard(trump Suit) Card {
	switch trump {
	case SuitSpade:
		return Card{Suit: SuitDiamond, Rank: RankAce}
	case SuitDiamond:
		return Card{Suit: SuitSpade, Rank: RankAce}
	case SuitHeart:
		return Card{Suit: SuitClover, Rank: RankAce}
	case SuitClover:
		return Card{Suit: SuitHeart, Rank: RankAce}
	default:
		return Card{Suit: SuitDiamond, Rank: RankAce}
	}
}

// JokerCallCard returns the card whose lead forces the Joker out: the three of
// clovers, or the three of spades when clovers are trump.
func JokerCallCard(trump Suit) Card {
	if trump == SuitClover {
		return Card{Suit: SuitSpade, Rank: 3}
	}
	return Card{Suit: SuitClover, Rank: 3}
}

// UnmarshalJSON accepts the object form {"suit":..,"rank":..} or the short string "S14".
func (c *Card) UnmarshalJSON(data []byte) error {
	var short string
	if err := json.Unmarshal(data, &short); err == nil {
		parsed, err := ParseCard(short)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	type plain Card
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("card must be an object or short string: %w", err)
	}
	*c = Card(p)
	return nil
}
