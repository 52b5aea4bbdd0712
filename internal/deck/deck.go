package deck

import (
	"math/rand"
	"sort"
)

// Size is the number of cards in a full deck.
const Size = 52

// HandSize is the number of cards dealt to each of the four seats.
const HandSize = Size / 4

var suits = []Suit{Club, Diamond, Heart, Spade}

var ranks = []Rank{
	Two, Three, Four, Five, Six, Seven,
	Eight, Nine, Ten, Jack, Queen, King, Ace,
}

// Full returns all 52 cards in canonical order.
func Full() []Card {
	cards := make([]Card, 0, Size)
	for _, s := range suits {
		for _, r := range ranks {
			cards = append(cards, Card{Suit: s, Rank: r})
		}
	}
	return cards
}

// NewShuffled returns a full deck in pseudo-random order. Every card appears
// exactly once; the permutation is the only source of randomness in a game.
func NewShuffled() []Card {
	cards := Full()
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return cards
}

// DealFour partitions a full deck into four 13-card hands in dealing order
// (seat 0, 1, 2, 3 repeating). Each hand is sorted for stable display.
func DealFour(cards []Card) [4][]Card {
	var hands [4][]Card
	for i := range hands {
		hands[i] = make([]Card, 0, HandSize)
	}
	for i, c := range cards {
		seat := i % 4
		hands[seat] = append(hands[seat], c)
	}
	for i := range hands {
		sort.Slice(hands[i], func(a, b int) bool {
			return hands[i][a].Less(hands[i][b])
		})
	}
	return hands
}

// TrickWinner returns the seat that wins a completed trick. leader is the seat
// that led and plays holds one card per seat. The highest spade wins if any
// spade was played; otherwise the highest card of the suit led.
func TrickWinner(leader int, plays [4]Card) int {
	winner := leader
	best := plays[leader]
	for seat := 0; seat < 4; seat++ {
		card := plays[seat]
		switch {
		case card.Suit == best.Suit:
			if card.Rank > best.Rank {
				best = card
				winner = seat
			}
		case card.Suit == Spade:
			best = card
			winner = seat
		}
	}
	return winner
}
