package game

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/wlim33/spades-server/internal/deck"
)

// Transition is a request to advance the game: Start, Bet or PlayCard.
type Transition interface {
	transition()
}

// Start deals the first round and opens betting.
type Start struct{}

// Bet records the acting seat's bid; 0 bids nil.
type Bet struct {
	Amount int
}

// PlayCard plays a card from the acting seat's hand into the current trick.
type PlayCard struct {
	Card deck.Card
}

func (Start) transition()    {}
func (Bet) transition()      {}
func (PlayCard) transition() {}

// Outcome describes what a successful transition did.
type Outcome int

const (
	OutcomeStarted      Outcome = iota // game started, betting open
	OutcomeBet                         // bid recorded, more bidders remain
	OutcomeBetComplete                 // last bid recorded, first trick open
	OutcomeCardPlayed                  // card added, trick still incomplete
	OutcomeTrickResolved               // fourth card resolved the trick
	OutcomeGameOver                    // trick resolution completed the game
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeBet:
		return "bet"
	case OutcomeBetComplete:
		return "bet_complete"
	case OutcomeCardPlayed:
		return "card_played"
	case OutcomeTrickResolved:
		return "trick_resolved"
	case OutcomeGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// Play is one card contributed to the in-progress trick.
type Play struct {
	Seat int       `json:"seat"`
	Card deck.Card `json:"card"`
}

type player struct {
	id   uuid.UUID
	name *string
	hand []deck.Card
}

// Game is the aggregate root for a single spades game. It is not safe for
// concurrent use; the manager serializes access per game.
type Game struct {
	id        uuid.UUID
	maxPoints int

	players [4]player

	state        State
	current      int // seat to act while state is Active
	bids         [4]int
	spadesBroken bool
	trick        []Play
	seatTricks   [4]int
	played       []deck.Card // cards out of hands this round
	teams        [2]TeamScore
	rounds       int // completed rounds

	timerCfg        *TimerConfig
	clocks          *PlayerClocks
	turnStartedAtMs *int64 // epoch ms, persisted so clocks survive restarts
}

// New creates a game in NotStarted with the four seats bound to playerIDs in
// seat order. timerCfg may be nil for an untimed game.
func New(id uuid.UUID, playerIDs [4]uuid.UUID, maxPoints int, timerCfg *TimerConfig) *Game {
	g := &Game{
		id:        id,
		maxPoints: maxPoints,
		state:     NotStarted(),
	}
	for i := range g.players {
		g.players[i] = player{id: playerIDs[i]}
	}
	if timerCfg != nil {
		cfg := *timerCfg
		g.timerCfg = &cfg
		g.clocks = NewPlayerClocks(cfg)
	}
	return g
}

func (g *Game) ID() uuid.UUID { return g.id }

func (g *Game) MaxPoints() int { return g.maxPoints }

func (g *Game) State() State { return g.state }

// CurrentSeat returns the seat to act, valid only while the state is active.
func (g *Game) CurrentSeat() int { return g.current }

// CurrentPlayerID returns the id bound to the seat to act, or false when no
// seat is to act (not started or terminal).
func (g *Game) CurrentPlayerID() (uuid.UUID, bool) {
	if !g.state.Active() {
		return uuid.Nil, false
	}
	return g.players[g.current].id, true
}

// PlayerIDs returns the seat-ordered player ids.
func (g *Game) PlayerIDs() [4]uuid.UUID {
	var ids [4]uuid.UUID
	for i, p := range g.players {
		ids[i] = p.id
	}
	return ids
}

// PlayerName returns the display name set for a seat, if any.
func (g *Game) PlayerName(seat int) *string {
	name := g.players[seat].name
	if name == nil {
		return nil
	}
	copied := *name
	return &copied
}

// SetPlayerName sets or clears the display name of the seat holding playerID.
func (g *Game) SetPlayerName(playerID uuid.UUID, name *string) error {
	seat, err := g.seatOf(playerID)
	if err != nil {
		return err
	}
	if name == nil {
		g.players[seat].name = nil
		return nil
	}
	copied := *name
	g.players[seat].name = &copied
	return nil
}

// HandByPlayer returns a copy of the hand held by the seat bound to playerID.
func (g *Game) HandByPlayer(playerID uuid.UUID) ([]deck.Card, error) {
	seat, err := g.seatOf(playerID)
	if err != nil {
		return nil, err
	}
	return append([]deck.Card(nil), g.players[seat].hand...), nil
}

func (g *Game) seatOf(playerID uuid.UUID) (int, error) {
	for seat, p := range g.players {
		if p.id == playerID {
			return seat, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
}

// TeamScores returns cumulative scores and bags, team 0 (seats A+C) first.
func (g *Game) TeamScores() [2]TeamScore { return g.teams }

// SpadesBroken reports whether a spade has been played this round.
func (g *Game) SpadesBroken() bool { return g.spadesBroken }

// CurrentTrick returns a copy of the in-progress trick in play order.
func (g *Game) CurrentTrick() []Play {
	return append([]Play(nil), g.trick...)
}

// LeadSuit returns the suit led in the current trick, if a card has been led.
func (g *Game) LeadSuit() (deck.Suit, bool) {
	if g.state.Phase != PhaseTrick || len(g.trick) == 0 {
		return 0, false
	}
	return g.trick[0].Card.Suit, true
}

// Bids returns the bids recorded so far this round, indexed by seat. Entries
// past the betting progress counter are meaningless.
func (g *Game) Bids() [4]int { return g.bids }

// RoundsCompleted returns how many full rounds have been scored.
func (g *Game) RoundsCompleted() int { return g.rounds }

// IsFirstRoundBetting reports whether the game sits in the very first betting
// phase, before any trick has been played. A betting timeout here aborts the
// game instead of forcing a bid.
func (g *Game) IsFirstRoundBetting() bool {
	return g.state.Phase == PhaseBetting && g.rounds == 0
}

// Winners returns the winning partnership's player ids once the game has
// completed. An exact score tie yields ErrTiedGame and no winner.
func (g *Game) Winners() ([2]uuid.UUID, error) {
	if g.state.Phase != PhaseCompleted {
		return [2]uuid.UUID{}, ErrGameNotCompleted
	}
	switch {
	case g.teams[0].Score > g.teams[1].Score:
		return [2]uuid.UUID{g.players[0].id, g.players[2].id}, nil
	case g.teams[1].Score > g.teams[0].Score:
		return [2]uuid.UUID{g.players[1].id, g.players[3].id}, nil
	default:
		return [2]uuid.UUID{}, ErrTiedGame
	}
}

// LegalCards returns the subset of the acting seat's hand that may legally be
// played right now. Valid only during a trick.
func (g *Game) LegalCards() ([]deck.Card, error) {
	if g.state.Phase != PhaseTrick {
		return nil, fmt.Errorf("%w: no trick in progress (state %s)", ErrInvalidTransition, g.state)
	}
	hand := g.players[g.current].hand
	legal := make([]deck.Card, 0, len(hand))
	for _, c := range hand {
		if g.cardLegal(c, hand) == nil {
			legal = append(legal, c)
		}
	}
	return legal, nil
}

// Timer accessors. TimerConfig and Clocks return the live structures: the
// manager mutates clocks under the game's write lock.

func (g *Game) TimerConfig() *TimerConfig { return g.timerCfg }

func (g *Game) Clocks() *PlayerClocks { return g.clocks }

func (g *Game) TurnStartedAtMs() *int64 { return g.turnStartedAtMs }

func (g *Game) SetTurnStartedAtMs(ms *int64) { g.turnStartedAtMs = ms }

// Abort moves the game to the Aborted terminal state. Used by the clock
// driver when a seat times out during the game's first betting phase.
func (g *Game) Abort() error {
	if g.state.Terminal() {
		return fmt.Errorf("%w: abort from %s", ErrInvalidTransition, g.state)
	}
	g.state = Aborted()
	g.turnStartedAtMs = nil
	return nil
}

// Apply validates and applies a transition. On failure the game state is
// unchanged and the error matches one of the taxonomy sentinels.
func (g *Game) Apply(t Transition) (Outcome, error) {
	switch t := t.(type) {
	case Start:
		return g.applyStart()
	case Bet:
		return g.applyBet(t.Amount)
	case PlayCard:
		return g.applyCard(t.Card)
	default:
		return 0, fmt.Errorf("%w: unknown transition %T", ErrInvalidTransition, t)
	}
}

func (g *Game) applyStart() (Outcome, error) {
	if g.state.Phase != PhaseNotStarted {
		return 0, fmt.Errorf("%w: start from %s", ErrInvalidTransition, g.state)
	}
	g.deal()
	g.state = Betting(0)
	g.current = 0
	return OutcomeStarted, nil
}

func (g *Game) applyBet(amount int) (Outcome, error) {
	if g.state.Phase != PhaseBetting {
		return 0, fmt.Errorf("%w: bet from %s", ErrInvalidTransition, g.state)
	}
	if amount < NilBid || amount > MaxBid {
		return 0, fmt.Errorf("%w: amount %d out of range 0..13", ErrInvalidBet, amount)
	}
	g.bids[g.current] = amount
	if g.state.K == 3 {
		g.state = InTrick(0)
		g.current = 0
		return OutcomeBetComplete, nil
	}
	g.state = Betting(g.state.K + 1)
	g.current = (g.current + 1) % 4
	return OutcomeBet, nil
}

func (g *Game) applyCard(card deck.Card) (Outcome, error) {
	if g.state.Phase != PhaseTrick {
		return 0, fmt.Errorf("%w: card from %s", ErrInvalidTransition, g.state)
	}
	hand := g.players[g.current].hand
	if err := g.cardLegal(card, hand); err != nil {
		return 0, err
	}

	g.removeFromHand(g.current, card)
	g.played = append(g.played, card)
	g.trick = append(g.trick, Play{Seat: g.current, Card: card})
	if card.Suit == deck.Spade {
		g.spadesBroken = true
	}

	if g.state.K < 3 {
		g.state = InTrick(g.state.K + 1)
		g.current = (g.current + 1) % 4
		return OutcomeCardPlayed, nil
	}
	return g.resolveTrick()
}

// cardLegal checks card against the acting seat's hand and the current trick:
// the card must be held, suit must be followed when possible, and spades may
// not be led before they are broken unless the hand is all spades.
func (g *Game) cardLegal(card deck.Card, hand []deck.Card) error {
	if !containsCard(hand, card) {
		return fmt.Errorf("%w: %s not in hand", ErrIllegalCard, card)
	}
	if len(g.trick) == 0 {
		if card.Suit == deck.Spade && !g.spadesBroken && hasSuitOtherThan(hand, deck.Spade) {
			return fmt.Errorf("%w: cannot lead %s before spades are broken", ErrIllegalCard, card)
		}
		return nil
	}
	lead := g.trick[0].Card.Suit
	if card.Suit != lead && hasSuit(hand, lead) {
		return fmt.Errorf("%w: must follow %s", ErrIllegalCard, lead)
	}
	return nil
}

func (g *Game) resolveTrick() (Outcome, error) {
	var plays [4]deck.Card
	for _, p := range g.trick {
		plays[p.Seat] = p.Card
	}
	winner := deck.TrickWinner(g.trick[0].Seat, plays)
	g.seatTricks[winner]++
	g.trick = g.trick[:0]

	if g.tricksThisRound() < deck.HandSize {
		g.state = InTrick(0)
		g.current = winner
		return OutcomeTrickResolved, nil
	}

	scoreRound(g.bids, g.seatTricks, &g.teams)
	g.rounds++
	g.resetRound()

	if g.teams[0].Score >= g.maxPoints || g.teams[1].Score >= g.maxPoints {
		g.state = Completed()
		return OutcomeGameOver, nil
	}

	g.deal()
	g.state = Betting(0)
	g.current = 0
	return OutcomeTrickResolved, nil
}

func (g *Game) tricksThisRound() int {
	total := 0
	for _, n := range g.seatTricks {
		total += n
	}
	return total
}

func (g *Game) resetRound() {
	g.seatTricks = [4]int{}
	g.bids = [4]int{}
	g.spadesBroken = false
	g.played = g.played[:0]
}

func (g *Game) deal() {
	hands := deck.DealFour(deck.NewShuffled())
	for i := range g.players {
		g.players[i].hand = hands[i]
	}
}

func (g *Game) removeFromHand(seat int, card deck.Card) {
	hand := g.players[seat].hand
	for i, c := range hand {
		if c == card {
			g.players[seat].hand = append(hand[:i], hand[i+1:]...)
			return
		}
	}
}

func containsCard(hand []deck.Card, card deck.Card) bool {
	for _, c := range hand {
		if c == card {
			return true
		}
	}
	return false
}

func hasSuit(hand []deck.Card, suit deck.Suit) bool {
	for _, c := range hand {
		if c.Suit == suit {
			return true
		}
	}
	return false
}

func hasSuitOtherThan(hand []deck.Card, suit deck.Suit) bool {
	for _, c := range hand {
		if c.Suit != suit {
			return true
		}
	}
	return false
}
