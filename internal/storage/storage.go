// Package storage provides the optional persistence collaborator for the game
// manager: every successful transition is saved, and the full set of games is
// reloaded on startup.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wlim33/spades-server/internal/game"
)

// ErrGameNotFound is returned when a delete targets an unknown game id.
var ErrGameNotFound = errors.New("game not found in storage")

// Store persists full game state keyed by game id. SaveGame is an upsert;
// LoadAll reconstructs every stored game, including in-progress hands, bids
// and tricks.
type Store interface {
	SaveGame(ctx context.Context, g *game.Game) error
	LoadAll(ctx context.Context) ([]*game.Game, error)
	DeleteGame(ctx context.Context, id uuid.UUID) error
	Close()
}
