package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/wlim33/spades-server/internal/game"
)

// MemoryStore keeps serialized games in a map. It exists for tests and for
// running without a database; games do not survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[uuid.UUID][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: make(map[uuid.UUID][]byte)}
}

func (s *MemoryStore) SaveGame(_ context.Context, g *game.Game) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal game %s: %w", g.ID(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID()] = data
	return nil
}

func (s *MemoryStore) LoadAll(_ context.Context) ([]*game.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	games := make([]*game.Game, 0, len(s.games))
	for _, data := range s.games {
		var g game.Game
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("unmarshal stored game: %w", err)
		}
		games = append(games, &g)
	}
	return games, nil
}

func (s *MemoryStore) DeleteGame(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[id]; !ok {
		return ErrGameNotFound
	}
	delete(s.games, id)
	return nil
}

func (s *MemoryStore) Close() {}
