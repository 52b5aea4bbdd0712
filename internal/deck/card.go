package deck

import (
	"encoding/json"
	"fmt"
)

// Suit identifies one of the four card suits.
type Suit int

const (
	Club Suit = iota + 1
	Diamond
	Heart
	Spade
)

func (s Suit) String() string {
	switch s {
	case Club:
		return "Club"
	case Diamond:
		return "Diamond"
	case Heart:
		return "Heart"
	case Spade:
		return "Spade"
	default:
		return "Unknown"
	}
}

func suitFromString(s string) (Suit, error) {
	switch s {
	case "Club":
		return Club, nil
	case "Diamond":
		return Diamond, nil
	case "Heart":
		return Heart, nil
	case "Spade":
		return Spade, nil
	default:
		return 0, fmt.Errorf("unknown suit %q", s)
	}
}

// MarshalJSON encodes the suit as its name, the fixed wire enumeration.
func (s Suit) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Suit) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := suitFromString(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Rank identifies a card rank. Numeric values follow trick-taking order,
// Two lowest through Ace highest.
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

var rankNames = map[Rank]string{
	Two:   "Two",
	Three: "Three",
	Four:  "Four",
	Five:  "Five",
	Six:   "Six",
	Seven: "Seven",
	Eight: "Eight",
	Nine:  "Nine",
	Ten:   "Ten",
	Jack:  "Jack",
	Queen: "Queen",
	King:  "King",
	Ace:   "Ace",
}

func (r Rank) String() string {
	if name, ok := rankNames[r]; ok {
		return name
	}
	return "Unknown"
}

func rankFromString(s string) (Rank, error) {
	for r, name := range rankNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown rank %q", s)
}

// MarshalJSON encodes the rank as its name, the fixed wire enumeration.
func (r Rank) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Rank) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := rankFromString(name)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Card is an immutable suit-and-rank pair. Cards compare by value; two cards
// are the same card exactly when suit and rank match.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s of %ss", c.Rank, c.Suit)
}

// Less orders cards by suit then rank, giving a stable display order for hands.
func (c Card) Less(other Card) bool {
	if c.Suit != other.Suit {
		return c.Suit < other.Suit
	}
	return c.Rank < other.Rank
}
