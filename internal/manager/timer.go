package manager

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wlim33/spades-server/internal/game"
)

// activeTimer tracks the one ticking clock of a timed game: the seat on the
// clock, when its turn started, and how much time it had at that moment.
type activeTimer struct {
	timer       *time.Timer
	seat        int
	startedAtMs int64
	remainingMs int64
	gen         uint64
}

// timerDriver schedules turn timeouts for timed games. One timer is live per
// game at most; a generation counter guards the fire callback against moves
// that land between the timer firing and the callback taking the game lock.
type timerDriver struct {
	mu      sync.Mutex
	mgr     *Manager
	active  map[uuid.UUID]*activeTimer
	gen     uint64
	stopped bool
}

func newTimerDriver(mgr *Manager) *timerDriver {
	return &timerDriver{
		mgr:    mgr,
		active: make(map[uuid.UUID]*activeTimer),
	}
}

// reschedule stops any running timer for the game and, if the game is still
// active, starts the clock of the seat now to act. Callers hold the game's
// write lock, so turnStartedAt and the scheduled timer stay consistent.
func (d *timerDriver) reschedule(g *game.Game, gameID uuid.UUID) {
	d.cancel(gameID)
	if !g.State().Active() {
		g.SetTurnStartedAtMs(nil)
		return
	}
	seat := g.CurrentSeat()
	nowMs := time.Now().UnixMilli()
	g.SetTurnStartedAtMs(&nowMs)
	d.schedule(gameID, seat, g.Clocks().RemainingMs[seat], nowMs)
}

// resumeFromPersisted restarts the clock of a timed game loaded from storage.
// The persisted turn start is kept as the timer origin so time spent down
// still counts against the seat on the clock.
func (d *timerDriver) resumeFromPersisted(g *game.Game) {
	if g.TimerConfig() == nil || !g.State().Active() {
		return
	}
	seat := g.CurrentSeat()
	startedAtMs := time.Now().UnixMilli()
	if persisted := g.TurnStartedAtMs(); persisted != nil {
		startedAtMs = *persisted
	}
	d.schedule(g.ID(), seat, g.Clocks().RemainingMs[seat], startedAtMs)
}

func (d *timerDriver) schedule(gameID uuid.UUID, seat int, remainingMs, startedAtMs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.gen++
	gen := d.gen
	delay := time.Duration(startedAtMs+remainingMs-time.Now().UnixMilli()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	at := &activeTimer{
		seat:        seat,
		startedAtMs: startedAtMs,
		remainingMs: remainingMs,
		gen:         gen,
	}
	at.timer = time.AfterFunc(delay, func() { d.fire(gameID, gen) })
	d.active[gameID] = at
}

// cancel stops the game's running timer, if any, and reports the seat that
// was on the clock and how long its turn lasted.
func (d *timerDriver) cancel(gameID uuid.UUID) (elapsedMs int64, seat int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.active[gameID]
	if !ok {
		return 0, 0, false
	}
	delete(d.active, gameID)
	at.timer.Stop()
	return time.Now().UnixMilli() - at.startedAtMs, at.seat, true
}

// liveRemaining reports the ticking seat's remaining time right now, without
// touching persisted clock state.
func (d *timerDriver) liveRemaining(gameID uuid.UUID) (remainingMs int64, seat int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.active[gameID]
	if !ok {
		return 0, 0, false
	}
	remaining := at.remainingMs - (time.Now().UnixMilli() - at.startedAtMs)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, at.seat, true
}

func (d *timerDriver) stopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for id, at := range d.active {
		at.timer.Stop()
		delete(d.active, id)
	}
}

// fire runs when a turn clock reaches zero. The generation check discards
// stale callbacks from timers that were rescheduled after firing.
func (d *timerDriver) fire(gameID uuid.UUID, gen uint64) {
	d.mu.Lock()
	at, ok := d.active[gameID]
	if !ok || at.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.active, gameID)
	d.mu.Unlock()

	d.mgr.forceTimeoutMove(gameID, at.seat)
}

// forceTimeoutMove resolves a turn timeout. The timed-out seat's clock drops
// to zero and a move is made on its behalf: abort during the game's first
// betting phase, a bid of 1 in later betting, a random legal card in a trick.
// The seat is re-verified under the game lock before anything is forced.
func (m *Manager) forceTimeoutMove(gameID uuid.UUID, seat int) {
	entry, err := m.entry(gameID)
	if err != nil {
		return
	}

	entry.mu.Lock()
	g := entry.game
	if !g.State().Active() || g.CurrentSeat() != seat {
		entry.mu.Unlock()
		return
	}
	// Safe when the firing timer already removed itself from the driver.
	m.timers.cancel(gameID)
	if clocks := g.Clocks(); clocks != nil {
		clocks.RemainingMs[seat] = 0
	}

	if g.IsFirstRoundBetting() {
		if err := g.Abort(); err != nil {
			entry.mu.Unlock()
			return
		}
		if err := m.persist(g); err != nil {
			m.logger.Error("failed to persist aborted game",
				zap.String("game_id", gameID.String()),
				zap.Error(err),
			)
		}
		view := m.buildView(g)
		entry.mu.Unlock()

		m.logger.Warn("game aborted on first-round betting timeout",
			zap.String("game_id", gameID.String()),
			zap.Int("seat", seat),
		)
		m.publishAborted(gameID, "betting timeout")
		m.publishState(gameID, &view)
		return
	}

	var t game.Transition
	switch g.State().Phase {
	case game.PhaseBetting:
		t = game.Bet{Amount: 1}
	case game.PhaseTrick:
		legal, err := g.LegalCards()
		if err != nil || len(legal) == 0 {
			entry.mu.Unlock()
			return
		}
		t = game.PlayCard{Card: legal[rand.Intn(len(legal))]}
	default:
		entry.mu.Unlock()
		return
	}

	outcome, view, err := m.applyLocked(entry, gameID, t, true)
	entry.mu.Unlock()
	if err != nil {
		m.logger.Error("failed to apply forced timeout move",
			zap.String("game_id", gameID.String()),
			zap.Int("seat", seat),
			zap.Error(err),
		)
		return
	}

	m.logger.Warn("turn timed out, move forced",
		zap.String("game_id", gameID.String()),
		zap.Int("seat", seat),
		zap.String("outcome", outcome.String()),
	)
	m.publishState(gameID, view)
}
