package game

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/wlim33/spades-server/internal/deck"
)

// gameSnapshot is the persisted form of a Game. It captures everything needed
// to reconstruct mid-round state: hands, bids, the in-progress trick and the
// clocks, with the state encoded in its "Trick(2)" textual form.
type gameSnapshot struct {
	ID              uuid.UUID         `json:"id"`
	MaxPoints       int               `json:"max_points"`
	Players         [4]playerSnapshot `json:"players"`
	State           State             `json:"state"`
	CurrentSeat     int               `json:"current_seat"`
	Bids            [4]int            `json:"bids"`
	SpadesBroken    bool              `json:"spades_broken"`
	Trick           []Play            `json:"trick"`
	SeatTricks      [4]int            `json:"seat_tricks"`
	Played          []deck.Card       `json:"played"`
	Teams           [2]TeamScore      `json:"teams"`
	RoundsCompleted int               `json:"rounds_completed"`
	TimerConfig     *TimerConfig      `json:"timer_config,omitempty"`
	Clocks          *PlayerClocks     `json:"clocks,omitempty"`
	TurnStartedAtMs *int64            `json:"turn_started_at_ms,omitempty"`
}

type playerSnapshot struct {
	ID   uuid.UUID   `json:"id"`
	Name *string     `json:"name,omitempty"`
	Hand []deck.Card `json:"hand"`
}

func (g *Game) MarshalJSON() ([]byte, error) {
	snap := gameSnapshot{
		ID:              g.id,
		MaxPoints:       g.maxPoints,
		State:           g.state,
		CurrentSeat:     g.current,
		Bids:            g.bids,
		SpadesBroken:    g.spadesBroken,
		Trick:           g.trick,
		SeatTricks:      g.seatTricks,
		Played:          g.played,
		Teams:           g.teams,
		RoundsCompleted: g.rounds,
		TimerConfig:     g.timerCfg,
		Clocks:          g.clocks,
		TurnStartedAtMs: g.turnStartedAtMs,
	}
	for i, p := range g.players {
		snap.Players[i] = playerSnapshot{ID: p.id, Name: p.name, Hand: p.hand}
	}
	return json.Marshal(snap)
}

func (g *Game) UnmarshalJSON(data []byte) error {
	var snap gameSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	g.id = snap.ID
	g.maxPoints = snap.MaxPoints
	g.state = snap.State
	g.current = snap.CurrentSeat
	g.bids = snap.Bids
	g.spadesBroken = snap.SpadesBroken
	g.trick = snap.Trick
	g.seatTricks = snap.SeatTricks
	g.played = snap.Played
	g.teams = snap.Teams
	g.rounds = snap.RoundsCompleted
	g.timerCfg = snap.TimerConfig
	g.clocks = snap.Clocks
	g.turnStartedAtMs = snap.TurnStartedAtMs
	for i, p := range snap.Players {
		g.players[i] = player{id: p.ID, name: p.Name, hand: p.Hand}
	}
	return nil
}
