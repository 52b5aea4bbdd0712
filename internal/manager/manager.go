// Package manager hosts many independent spades games behind per-game locks,
// routes transitions to the right state machine, persists every successful
// mutation and fans out change notifications to subscribers.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wlim33/spades-server/internal/deck"
	"github.com/wlim33/spades-server/internal/game"
	"github.com/wlim33/spades-server/internal/storage"
)

// ErrGameNotFound means the registry holds no game with the requested id.
var ErrGameNotFound = errors.New("game not found")

// gameEntry is the per-game handle the registry hands out: the game plus the
// lock serializing its mutation. Holding the registry lock is never required
// to take an entry lock, so registry churn and game mutation do not contend.
type gameEntry struct {
	mu   sync.RWMutex
	game *game.Game
}

// Manager owns the id -> game registry.
type Manager struct {
	mu     sync.RWMutex
	games  map[uuid.UUID]*gameEntry
	feeds  map[uuid.UUID]*broadcaster
	timers *timerDriver
	store  storage.Store // nil when persistence is disabled
	logger *zap.Logger
}

// CreateGameResult is returned by CreateGame: the new game id plus the four
// freshly generated player ids in seat order (A, B, C, D).
type CreateGameResult struct {
	GameID    uuid.UUID    `json:"game_id"`
	PlayerIDs [4]uuid.UUID `json:"player_ids"`
}

// NewManager creates an empty manager. store may be nil to run in-memory only.
func NewManager(logger *zap.Logger, store storage.Store) *Manager {
	m := &Manager{
		games:  make(map[uuid.UUID]*gameEntry),
		feeds:  make(map[uuid.UUID]*broadcaster),
		store:  store,
		logger: logger,
	}
	m.timers = newTimerDriver(m)
	return m
}

// LoadPersisted registers every game found in storage and restarts turn
// clocks for timed games that were mid-turn when the process stopped.
func (m *Manager) LoadPersisted(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	games, err := m.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load persisted games: %w", err)
	}
	for _, g := range games {
		m.register(g)
		m.timers.resumeFromPersisted(g)
	}
	m.logger.Info("restored games from storage", zap.Int("count", len(games)))
	return nil
}

func (m *Manager) register(g *game.Game) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID()] = &gameEntry{game: g}
	m.feeds[g.ID()] = newBroadcaster()
}

// CreateGame allocates a new game with four fresh player ids.
func (m *Manager) CreateGame(maxPoints int, timerCfg *game.TimerConfig) (CreateGameResult, error) {
	playerIDs := [4]uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	return m.CreateGameWithPlayers(playerIDs, maxPoints, timerCfg)
}

// CreateGameWithPlayers allocates a new game with pre-assigned player ids,
// used by matchmaking when the seats already belong to known seekers.
func (m *Manager) CreateGameWithPlayers(playerIDs [4]uuid.UUID, maxPoints int, timerCfg *game.TimerConfig) (CreateGameResult, error) {
	g := game.New(uuid.New(), playerIDs, maxPoints, timerCfg)
	if err := m.persist(g); err != nil {
		return CreateGameResult{}, err
	}
	m.register(g)

	m.logger.Info("game created",
		zap.String("game_id", g.ID().String()),
		zap.Int("max_points", maxPoints),
		zap.Bool("timed", timerCfg != nil),
	)
	return CreateGameResult{GameID: g.ID(), PlayerIDs: playerIDs}, nil
}

func (m *Manager) entry(gameID uuid.UUID) (*gameEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return entry, nil
}

func (m *Manager) feed(gameID uuid.UUID) *broadcaster {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.feeds[gameID]
}

// MakeTransition validates and applies a transition against one game. The
// game's writer lock is held for the duration of validation and mutation;
// transitions on other games proceed in parallel. On success the game is
// persisted and a StateChanged event is published to its feed.
func (m *Manager) MakeTransition(gameID uuid.UUID, t game.Transition) (game.Outcome, error) {
	return m.makeTransition(gameID, t, false)
}

func (m *Manager) makeTransition(gameID uuid.UUID, t game.Transition, isTimeout bool) (game.Outcome, error) {
	entry, err := m.entry(gameID)
	if err != nil {
		return 0, err
	}

	entry.mu.Lock()
	outcome, view, err := m.applyLocked(entry, gameID, t, isTimeout)
	entry.mu.Unlock()
	if err != nil {
		return 0, err
	}

	m.publishState(gameID, view)
	return outcome, nil
}

// applyLocked performs the transition with the entry writer lock held: the
// move itself, then clock bookkeeping, persistence and timer rescheduling.
// A rejected move must leave the clocks and the armed timer untouched, so
// nothing is settled until Apply succeeds. It returns the post-transition
// view for publishing after the lock is released.
func (m *Manager) applyLocked(entry *gameEntry, gameID uuid.UUID, t game.Transition, isTimeout bool) (game.Outcome, *GameStateView, error) {
	g := entry.game

	outcome, err := g.Apply(t)
	if err != nil {
		return 0, nil, err
	}

	if g.TimerConfig() != nil {
		if _, isStart := t.(game.Start); !isStart {
			m.settleClock(g, gameID, isTimeout)
		}
		m.timers.reschedule(g, gameID)
	}

	if err := m.persist(g); err != nil {
		m.logger.Error("failed to persist game after transition",
			zap.String("game_id", gameID.String()),
			zap.Error(err),
		)
	}

	view := m.buildView(g)
	return outcome, &view, nil
}

// settleClock charges the elapsed turn time to the seat that just moved and
// adds the Fischer increment, unless the move was synthesized by a timeout.
func (m *Manager) settleClock(g *game.Game, gameID uuid.UUID, isTimeout bool) {
	elapsedMs, seat, ok := m.timers.cancel(gameID)
	if !ok {
		return
	}
	clocks := g.Clocks()
	if clocks == nil {
		return
	}
	remaining := clocks.RemainingMs[seat] - elapsedMs
	if remaining < 0 {
		remaining = 0
	}
	if !isTimeout {
		remaining += g.TimerConfig().IncrementSecs * 1000
	}
	clocks.RemainingMs[seat] = remaining
}

// GetGameState returns a snapshot of one game, never a live reference.
func (m *Manager) GetGameState(gameID uuid.UUID) (GameStateView, error) {
	entry, err := m.entry(gameID)
	if err != nil {
		return GameStateView{}, err
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return m.buildView(entry.game), nil
}

// GetHand returns the hand of the seat bound to playerID. The lookup is by
// player id, not seat position; each of the four ids sees only its own cards.
func (m *Manager) GetHand(gameID, playerID uuid.UUID) ([]deck.Card, error) {
	entry, err := m.entry(gameID)
	if err != nil {
		return nil, err
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.game.HandByPlayer(playerID)
}

// LegalCards returns the cards the acting seat may play right now.
func (m *Manager) LegalCards(gameID uuid.UUID) ([]deck.Card, error) {
	entry, err := m.entry(gameID)
	if err != nil {
		return nil, err
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.game.LegalCards()
}

// SetPlayerName sets or clears the display name for the seat holding playerID
// and publishes the updated state.
func (m *Manager) SetPlayerName(gameID, playerID uuid.UUID, name *string) error {
	entry, err := m.entry(gameID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	if err := entry.game.SetPlayerName(playerID, name); err != nil {
		entry.mu.Unlock()
		return err
	}
	if err := m.persist(entry.game); err != nil {
		m.logger.Error("failed to persist name change",
			zap.String("game_id", gameID.String()),
			zap.Error(err),
		)
	}
	view := m.buildView(entry.game)
	entry.mu.Unlock()

	m.publishState(gameID, &view)
	return nil
}

// ListGames returns the ids of all registered games.
func (m *Manager) ListGames() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}
	return ids
}

// DeleteGame removes a game from the registry, cancels its turn clock, drops
// it from storage and closes its subscription feed.
func (m *Manager) DeleteGame(gameID uuid.UUID) error {
	m.timers.cancel(gameID)

	m.mu.Lock()
	_, ok := m.games[gameID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	delete(m.games, gameID)
	feed := m.feeds[gameID]
	delete(m.feeds, gameID)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.DeleteGame(context.Background(), gameID); err != nil && !errors.Is(err, storage.ErrGameNotFound) {
			m.logger.Error("failed to delete game from storage",
				zap.String("game_id", gameID.String()),
				zap.Error(err),
			)
		}
	}
	if feed != nil {
		feed.close()
	}

	m.logger.Info("game deleted", zap.String("game_id", gameID.String()))
	return nil
}

// Subscribe attaches to a game's event feed. The returned cancel function
// detaches the subscriber; the channel closes on cancel, on drop, and when
// the game is deleted.
func (m *Manager) Subscribe(gameID uuid.UUID) (<-chan Event, func(), error) {
	feed := m.feed(gameID)
	if feed == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	ch, cancel := feed.subscribe()
	return ch, cancel, nil
}

// Winners reports the winning partnership of a completed game.
func (m *Manager) Winners(gameID uuid.UUID) ([2]uuid.UUID, error) {
	entry, err := m.entry(gameID)
	if err != nil {
		return [2]uuid.UUID{}, err
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.game.Winners()
}

// Close stops all turn clocks and closes every feed. The manager must not be
// used afterwards.
func (m *Manager) Close() {
	m.timers.stopAll()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, feed := range m.feeds {
		feed.close()
		delete(m.feeds, id)
	}
}

func (m *Manager) persist(g *game.Game) error {
	if m.store == nil {
		return nil
	}
	return m.store.SaveGame(context.Background(), g)
}

func (m *Manager) publishState(gameID uuid.UUID, view *GameStateView) {
	if feed := m.feed(gameID); feed != nil {
		feed.publish(Event{Type: EventStateChanged, GameID: gameID, State: view})
	}
}

func (m *Manager) publishAborted(gameID uuid.UUID, reason string) {
	if feed := m.feed(gameID); feed != nil {
		feed.publish(Event{Type: EventGameAborted, GameID: gameID, Reason: reason})
	}
}

// buildView snapshots a game for external consumption. Callers must hold the
// entry lock (read or write).
func (m *Manager) buildView(g *game.Game) GameStateView {
	view := GameStateView{
		GameID: g.ID(),
		State:  g.State().String(),
	}

	if g.State().Phase != game.PhaseNotStarted {
		teams := g.TeamScores()
		view.TeamAScore = intPtr(teams[0].Score)
		view.TeamBScore = intPtr(teams[1].Score)
		view.TeamABags = intPtr(teams[0].Bags)
		view.TeamBBags = intPtr(teams[1].Bags)
	}

	if current, ok := g.CurrentPlayerID(); ok {
		view.CurrentPlayerID = &current
	}

	ids := g.PlayerIDs()
	for i := range view.PlayerNames {
		view.PlayerNames[i] = PlayerNameEntry{PlayerID: ids[i], Name: g.PlayerName(i)}
	}

	if cfg := g.TimerConfig(); cfg != nil {
		cfgCopy := *cfg
		view.TimerConfig = &cfgCopy
		if clocks := g.Clocks(); clocks != nil {
			snapshot := clocks.RemainingMs
			if remaining, seat, ok := m.timers.liveRemaining(g.ID()); ok {
				snapshot[seat] = remaining
				view.ActivePlayerClockMs = &remaining
			}
			view.PlayerClocksMs = &snapshot
		}
	}
	return view
}

func intPtr(v int) *int { return &v }
