package manager

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wlim33/spades-server/internal/game"
	"github.com/wlim33/spades-server/internal/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(zap.NewNop(), nil)
	t.Cleanup(m.Close)
	return m
}

func createStartedGame(t *testing.T, m *Manager) CreateGameResult {
	t.Helper()
	result, err := m.CreateGame(500, nil)
	require.NoError(t, err)
	_, err = m.MakeTransition(result.GameID, game.Start{})
	require.NoError(t, err)
	return result
}

func TestCreateAndGetGame(t *testing.T) {
	m := newTestManager(t)

	result, err := m.CreateGame(500, nil)
	require.NoError(t, err)

	seen := make(map[uuid.UUID]bool)
	for _, id := range result.PlayerIDs {
		assert.False(t, seen[id], "duplicate player id")
		seen[id] = true
	}

	view, err := m.GetGameState(result.GameID)
	require.NoError(t, err)
	assert.Equal(t, "NotStarted", view.State)
	assert.Nil(t, view.CurrentPlayerID)
	assert.Nil(t, view.TeamAScore)

	assert.Contains(t, m.ListGames(), result.GameID)
}

func TestUnknownGameID(t *testing.T) {
	m := newTestManager(t)
	unknown := uuid.New()

	_, err := m.GetGameState(unknown)
	assert.ErrorIs(t, err, ErrGameNotFound)
	_, err = m.MakeTransition(unknown, game.Start{})
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.ErrorIs(t, m.DeleteGame(unknown), ErrGameNotFound)
	_, _, err = m.Subscribe(unknown)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestTransitionFlow(t *testing.T) {
	m := newTestManager(t)
	result := createStartedGame(t, m)

	view, err := m.GetGameState(result.GameID)
	require.NoError(t, err)
	assert.Equal(t, "Betting(0)", view.State)
	require.NotNil(t, view.CurrentPlayerID)
	assert.Equal(t, result.PlayerIDs[0], *view.CurrentPlayerID)

	for i := 0; i < 4; i++ {
		_, err := m.MakeTransition(result.GameID, game.Bet{Amount: 3})
		require.NoError(t, err)
	}

	view, err = m.GetGameState(result.GameID)
	require.NoError(t, err)
	assert.Equal(t, "Trick(0)", view.State)

	_, err = m.MakeTransition(result.GameID, game.Bet{Amount: 2})
	assert.ErrorIs(t, err, game.ErrInvalidTransition)
}

func TestGetHandReturnsDisjointHands(t *testing.T) {
	m := newTestManager(t)
	result := createStartedGame(t, m)

	seen := make(map[string]int)
	for _, pid := range result.PlayerIDs {
		hand, err := m.GetHand(result.GameID, pid)
		require.NoError(t, err)
		require.Len(t, hand, 13)
		for _, c := range hand {
			seen[c.String()]++
		}
	}
	assert.Len(t, seen, 52)
	for card, n := range seen {
		assert.Equal(t, 1, n, "card %s appears in %d hands", card, n)
	}

	_, err := m.GetHand(result.GameID, uuid.New())
	assert.ErrorIs(t, err, game.ErrPlayerNotFound)
}

func TestDeleteGameClosesFeed(t *testing.T) {
	m := newTestManager(t)
	result, err := m.CreateGame(500, nil)
	require.NoError(t, err)

	events, _, err := m.Subscribe(result.GameID)
	require.NoError(t, err)

	require.NoError(t, m.DeleteGame(result.GameID))
	assert.NotContains(t, m.ListGames(), result.GameID)
	assert.ErrorIs(t, m.DeleteGame(result.GameID), ErrGameNotFound)

	select {
	case _, open := <-events:
		assert.False(t, open, "feed should close on delete")
	case <-time.After(time.Second):
		t.Fatal("feed not closed after delete")
	}
}

func TestSubscribeReceivesStateChanges(t *testing.T) {
	m := newTestManager(t)
	result, err := m.CreateGame(500, nil)
	require.NoError(t, err)

	events, cancel, err := m.Subscribe(result.GameID)
	require.NoError(t, err)
	defer cancel()

	_, err = m.MakeTransition(result.GameID, game.Start{})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, EventStateChanged, ev.Type)
		assert.Equal(t, result.GameID, ev.GameID)
		require.NotNil(t, ev.State)
		assert.Equal(t, "Betting(0)", ev.State.State)
	case <-time.After(time.Second):
		t.Fatal("no event after transition")
	}
}

func TestSetPlayerName(t *testing.T) {
	m := newTestManager(t)
	result, err := m.CreateGame(500, nil)
	require.NoError(t, err)

	name := "carol"
	require.NoError(t, m.SetPlayerName(result.GameID, result.PlayerIDs[3], &name))

	view, err := m.GetGameState(result.GameID)
	require.NoError(t, err)
	require.NotNil(t, view.PlayerNames[3].Name)
	assert.Equal(t, "carol", *view.PlayerNames[3].Name)
	assert.Nil(t, view.PlayerNames[0].Name)

	assert.ErrorIs(t, m.SetPlayerName(result.GameID, uuid.New(), &name), game.ErrPlayerNotFound)
}

func TestWinnersRequiresCompletion(t *testing.T) {
	m := newTestManager(t)
	result := createStartedGame(t, m)
	_, err := m.Winners(result.GameID)
	assert.ErrorIs(t, err, game.ErrGameNotCompleted)
}

// tiedGameSnapshot renders a finished game with both teams on score.
func tiedGameSnapshot(score int) string {
	return fmt.Sprintf(`{"id":%q,"max_points":200,`+
		`"players":[{"id":%q,"hand":[]},{"id":%q,"hand":[]},{"id":%q,"hand":[]},{"id":%q,"hand":[]}],`+
		`"state":"Completed","current_seat":0,"bids":[0,0,0,0],"spades_broken":false,`+
		`"trick":[],"seat_tricks":[0,0,0,0],"played":[],`+
		`"teams":[{"score":%d,"bags":1},{"score":%d,"bags":4}],"rounds_completed":3}`,
		uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New(), score, score)
}

func TestWinnersOnTiedGame(t *testing.T) {
	store := storage.NewMemoryStore()
	var g game.Game
	require.NoError(t, g.UnmarshalJSON([]byte(tiedGameSnapshot(230))))
	require.NoError(t, store.SaveGame(context.Background(), &g))

	m := NewManager(zap.NewNop(), store)
	t.Cleanup(m.Close)
	require.NoError(t, m.LoadPersisted(context.Background()))

	_, err := m.Winners(g.ID())
	assert.ErrorIs(t, err, game.ErrTiedGame)
}

func TestConflictingMovesOnSameGameSerialized(t *testing.T) {
	m := newTestManager(t)
	result := createStartedGame(t, m)
	for i := 0; i < 3; i++ {
		_, err := m.MakeTransition(result.GameID, game.Bet{Amount: 2})
		require.NoError(t, err)
	}

	// Two racers submit the round's final bet; the state machine admits one.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.MakeTransition(result.GameID, game.Bet{Amount: 3})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes, rejections := 0, 0
	for err := range errs {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, game.ErrInvalidTransition)
			rejections++
		}
	}
	assert.Equal(t, 1, successes, "exactly one racer's bet may land")
	assert.Equal(t, 1, rejections)

	view, err := m.GetGameState(result.GameID)
	require.NoError(t, err)
	assert.Equal(t, "Trick(0)", view.State)
}

func TestPersistedGamesSurviveRestart(t *testing.T) {
	store := storage.NewMemoryStore()
	m1 := NewManager(zap.NewNop(), store)

	result, err := m1.CreateGame(500, nil)
	require.NoError(t, err)
	_, err = m1.MakeTransition(result.GameID, game.Start{})
	require.NoError(t, err)
	_, err = m1.MakeTransition(result.GameID, game.Bet{Amount: 4})
	require.NoError(t, err)
	m1.Close()

	m2 := NewManager(zap.NewNop(), store)
	t.Cleanup(m2.Close)
	require.NoError(t, m2.LoadPersisted(context.Background()))

	view, err := m2.GetGameState(result.GameID)
	require.NoError(t, err)
	assert.Equal(t, "Betting(1)", view.State)
	require.NotNil(t, view.CurrentPlayerID)
	assert.Equal(t, result.PlayerIDs[1], *view.CurrentPlayerID)

	hand, err := m2.GetHand(result.GameID, result.PlayerIDs[2])
	require.NoError(t, err)
	assert.Len(t, hand, 13)
}

func TestConcurrentGamesProgressIndependently(t *testing.T) {
	m := newTestManager(t)

	const n = 8
	results := make([]CreateGameResult, n)
	for i := range results {
		result, err := m.CreateGame(500, nil)
		require.NoError(t, err)
		results[i] = result
	}

	var wg sync.WaitGroup
	for _, result := range results {
		wg.Add(1)
		go func(gameID uuid.UUID) {
			defer wg.Done()
			if _, err := m.MakeTransition(gameID, game.Start{}); err != nil {
				t.Errorf("start: %v", err)
				return
			}
			for i := 0; i < 4; i++ {
				if _, err := m.MakeTransition(gameID, game.Bet{Amount: 2}); err != nil {
					t.Errorf("bet: %v", err)
					return
				}
			}
		}(result.GameID)
	}
	wg.Wait()

	for _, result := range results {
		view, err := m.GetGameState(result.GameID)
		require.NoError(t, err)
		assert.Equal(t, "Trick(0)", view.State)
	}
}

func TestTimeoutDuringFirstBettingAbortsGame(t *testing.T) {
	m := newTestManager(t)
	cfg := &game.TimerConfig{InitialTimeSecs: 3600, IncrementSecs: 0}
	result, err := m.CreateGame(500, cfg)
	require.NoError(t, err)
	_, err = m.MakeTransition(result.GameID, game.Start{})
	require.NoError(t, err)

	events, cancel, err := m.Subscribe(result.GameID)
	require.NoError(t, err)
	defer cancel()

	m.forceTimeoutMove(result.GameID, 0)

	view, err := m.GetGameState(result.GameID)
	require.NoError(t, err)
	assert.Equal(t, "Aborted", view.State)
	require.NotNil(t, view.PlayerClocksMs)
	assert.Zero(t, view.PlayerClocksMs[0])

	select {
	case ev := <-events:
		assert.Equal(t, EventGameAborted, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no abort event")
	}
}

func TestTimeoutDuringTrickForcesLegalCard(t *testing.T) {
	m := newTestManager(t)
	cfg := &game.TimerConfig{InitialTimeSecs: 3600, IncrementSecs: 1}
	result, err := m.CreateGame(500, cfg)
	require.NoError(t, err)
	_, err = m.MakeTransition(result.GameID, game.Start{})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err = m.MakeTransition(result.GameID, game.Bet{Amount: 3})
		require.NoError(t, err)
	}

	handBefore, err := m.GetHand(result.GameID, result.PlayerIDs[0])
	require.NoError(t, err)

	m.forceTimeoutMove(result.GameID, 0)

	view, err := m.GetGameState(result.GameID)
	require.NoError(t, err)
	assert.Equal(t, "Trick(1)", view.State)

	handAfter, err := m.GetHand(result.GameID, result.PlayerIDs[0])
	require.NoError(t, err)
	assert.Len(t, handAfter, len(handBefore)-1)
}

func TestTimeoutAfterFirstRoundForcesMinimalBet(t *testing.T) {
	m := newTestManager(t)
	cfg := &game.TimerConfig{InitialTimeSecs: 3600, IncrementSecs: 0}
	result, err := m.CreateGame(100000, cfg)
	require.NoError(t, err)
	_, err = m.MakeTransition(result.GameID, game.Start{})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err = m.MakeTransition(result.GameID, game.Bet{Amount: 1})
		require.NoError(t, err)
	}

	// Play out the round so the next betting phase is no longer the first.
	for {
		view, err := m.GetGameState(result.GameID)
		require.NoError(t, err)
		if view.State == "Betting(0)" {
			break
		}
		legal, err := m.LegalCards(result.GameID)
		require.NoError(t, err)
		require.NotEmpty(t, legal)
		_, err = m.MakeTransition(result.GameID, game.PlayCard{Card: legal[0]})
		require.NoError(t, err)
	}

	m.forceTimeoutMove(result.GameID, 0)

	view, err := m.GetGameState(result.GameID)
	require.NoError(t, err)
	assert.Equal(t, "Betting(1)", view.State, "second-round betting timeout must force a bid, not abort")
	require.NotNil(t, view.PlayerClocksMs)
	assert.Zero(t, view.PlayerClocksMs[0])
}

func TestTimeoutIgnoredWhenSeatAlreadyMoved(t *testing.T) {
	m := newTestManager(t)
	cfg := &game.TimerConfig{InitialTimeSecs: 3600, IncrementSecs: 0}
	result, err := m.CreateGame(500, cfg)
	require.NoError(t, err)
	_, err = m.MakeTransition(result.GameID, game.Start{})
	require.NoError(t, err)
	_, err = m.MakeTransition(result.GameID, game.Bet{Amount: 2})
	require.NoError(t, err)

	// Seat 0 already bet; a stale timeout for seat 0 must be a no-op.
	m.forceTimeoutMove(result.GameID, 0)

	view, err := m.GetGameState(result.GameID)
	require.NoError(t, err)
	assert.Equal(t, "Betting(1)", view.State)
}

func TestTimedGameReportsClocks(t *testing.T) {
	m := newTestManager(t)
	cfg := &game.TimerConfig{InitialTimeSecs: 3600, IncrementSecs: 5}
	result, err := m.CreateGame(500, cfg)
	require.NoError(t, err)
	_, err = m.MakeTransition(result.GameID, game.Start{})
	require.NoError(t, err)

	view, err := m.GetGameState(result.GameID)
	require.NoError(t, err)
	require.NotNil(t, view.TimerConfig)
	assert.Equal(t, *cfg, *view.TimerConfig)
	require.NotNil(t, view.PlayerClocksMs)
	require.NotNil(t, view.ActivePlayerClockMs)
	assert.LessOrEqual(t, *view.ActivePlayerClockMs, int64(3600*1000))
	assert.Positive(t, *view.ActivePlayerClockMs)
}

func TestRejectedMoveLeavesClockUntouched(t *testing.T) {
	m := newTestManager(t)
	cfg := &game.TimerConfig{InitialTimeSecs: 3600, IncrementSecs: 5}
	result, err := m.CreateGame(500, cfg)
	require.NoError(t, err)
	_, err = m.MakeTransition(result.GameID, game.Start{})
	require.NoError(t, err)

	_, err = m.MakeTransition(result.GameID, game.Bet{Amount: 14})
	require.ErrorIs(t, err, game.ErrInvalidBet)

	view, err := m.GetGameState(result.GameID)
	require.NoError(t, err)
	assert.Equal(t, "Betting(0)", view.State)
	require.NotNil(t, view.ActivePlayerClockMs, "turn clock must stay armed after a rejected move")
	require.NotNil(t, view.PlayerClocksMs)
	// No increment banked: the seat's clock never exceeds its initial time.
	assert.LessOrEqual(t, view.PlayerClocksMs[0], int64(3600*1000))

	_, seat, ok := m.timers.liveRemaining(result.GameID)
	require.True(t, ok, "turn timer must still be scheduled")
	assert.Equal(t, 0, seat)

	// A legal move afterwards settles normally and banks the increment.
	_, err = m.MakeTransition(result.GameID, game.Bet{Amount: 2})
	require.NoError(t, err)
	view, err = m.GetGameState(result.GameID)
	require.NoError(t, err)
	assert.Greater(t, view.PlayerClocksMs[0], int64(3600*1000))
}

func TestFischerIncrementOnMove(t *testing.T) {
	m := newTestManager(t)
	cfg := &game.TimerConfig{InitialTimeSecs: 60, IncrementSecs: 5}
	result, err := m.CreateGame(500, cfg)
	require.NoError(t, err)
	_, err = m.MakeTransition(result.GameID, game.Start{})
	require.NoError(t, err)
	_, err = m.MakeTransition(result.GameID, game.Bet{Amount: 2})
	require.NoError(t, err)

	view, err := m.GetGameState(result.GameID)
	require.NoError(t, err)
	require.NotNil(t, view.PlayerClocksMs)
	// Seat 0 moved near-instantly and banked the full increment.
	assert.Greater(t, view.PlayerClocksMs[0], int64(60*1000))
	assert.LessOrEqual(t, view.PlayerClocksMs[0], int64(65*1000))
}
