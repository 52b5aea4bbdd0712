package game

import "errors"

// Rule violations are ordinary, recoverable outcomes: a caller that submits an
// illegal move gets one of these back and the game is left untouched.
var (
	// ErrInvalidTransition means the attempted transition is not legal from
	// the current state, e.g. a bet during a trick or any move after the
	// game has completed or aborted.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidBet means the bid amount is outside 0..13.
	ErrInvalidBet = errors.New("invalid bet")

	// ErrIllegalCard means the card is not held, breaks suit-following, or is
	// an illegal spades lead.
	ErrIllegalCard = errors.New("illegal card")

	// ErrPlayerNotFound means no seat in the game is bound to the player id.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrGameNotCompleted is returned by winner queries before completion.
	ErrGameNotCompleted = errors.New("game not completed")

	// ErrTiedGame is returned by winner queries when both teams finished on
	// the same score.
	ErrTiedGame = errors.New("tied game")
)
