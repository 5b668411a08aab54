// internal/engine/deck.go
package engine

import (
	"math/rand"
	"slices"
)

// DeckSize is the number of cards in a Mighty deck: four suits of thirteen plus the Joker.
const DeckSize = 53

// NewDeck returns the full deck in canonical order.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, s := range PlainSuits {
		for r := 2; r <= RankAce; r++ {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return append(deck, JokerCard)
}

// shuffledDeck returns a new deck shuffled with the given rng.
func shuffledDeck(rng *rand.Rand) []Card {
	deck := NewDeck()
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

func containsCard(cards []Card, c Card) bool {
	return slices.Contains(cards, c)
}

// removeCard returns cards without the first occurrence of c.
func removeCard(cards []Card, c Card) ([]Card, bool) {
	idx := slices.Index(cards, c)
	if idx < 0 {
		return cards, false
	}
	return slices.Delete(cards, idx, idx+1), true
}

// hasSuit reports whether any card in hand belongs to suit s. The Joker belongs to no suit.
func hasSuit(hand []Card, s Suit) bool {
	for _, c := range hand {
		if !c.IsJoker() && c.Suit == s {
			return true
		}
	}
	return false
}

// SortHand orders a hand by suit and then descending rank, Joker last.
func SortHand(hand []Card) {
	slices.SortFunc(hand, func(a, b Card) int {
		if a.Suit != b.Suit {
			return int(a.Suit) - int(b.Suit)
		}
		return b.Rank - a.Rank
	})
}

// longestSuit returns the plain suit with the most cards in hand, spade on ties.
func longestSuit(hand []Card) Suit {
	best, bestCount := SuitSpade, -1
	for _, s := range PlainSuits {
		n := 0
		for _, c := range hand {
			if c.Suit == s {
				n++
			}
		}
		if n > bestCount {
			best, bestCount = s, n
		}
	}
	return best
}

// HandScore is the deal-miss score of a hand: one per point card, minus one for the Joker.
func HandScore(hand []Card) int {
	score := 0
	for _, c := range hand {
		if c.IsJoker() {
			score--
			continue
		}
		score += c.Points()
	}
	return score
}
