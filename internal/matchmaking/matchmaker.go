// Package matchmaking pools individual seek requests and starts a game as
// soon as four compatible seekers are waiting. Seeks are compatible when they
// ask for the same target score and the same clock settings.
package matchmaking

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wlim33/spades-server/internal/game"
	"github.com/wlim33/spades-server/internal/manager"
)

// ErrSeekNotFound means the seek id is unknown or already resolved.
var ErrSeekNotFound = errors.New("seek not found")

// ErrAlreadySeeking means the player already has a waiting seek for the same
// game parameters; one player cannot fill more than one seat.
var ErrAlreadySeeking = errors.New("player already seeking")

// GameCreator starts a game for four matched seekers. Satisfied by
// *manager.Manager.
type GameCreator interface {
	CreateGameWithPlayers(playerIDs [4]uuid.UUID, maxPoints int, timerCfg *game.TimerConfig) (manager.CreateGameResult, error)
}

// SeekEventType tags events on a seeker's channel.
type SeekEventType string

const (
	SeekQueueUpdate SeekEventType = "queue_update"
	SeekGameStart   SeekEventType = "game_start"
)

// SeekEvent notifies a seeker of queue progress. QueueSize counts compatible
// seekers including the recipient. On GameStart the channel carries the new
// game id, the recipient's player id and seat, then closes.
type SeekEvent struct {
	Type      SeekEventType `json:"event"`
	QueueSize int           `json:"queue_size,omitempty"`
	GameID    *uuid.UUID    `json:"game_id,omitempty"`
	PlayerID  *uuid.UUID    `json:"player_id,omitempty"`
	Seat      *int          `json:"seat,omitempty"`
}

// SeekInfo describes one waiting seek, for listing.
type SeekInfo struct {
	SeekID      uuid.UUID         `json:"seek_id"`
	MaxPoints   int               `json:"max_points"`
	TimerConfig *game.TimerConfig `json:"timer_config,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// bucketKey groups compatible seeks. Untimed seeks share one bucket per
// target score; timed seeks additionally match on the exact clock settings.
type bucketKey struct {
	maxPoints     int
	timed         bool
	initialSecs   int64
	incrementSecs int64
}

func keyFor(maxPoints int, timerCfg *game.TimerConfig) bucketKey {
	k := bucketKey{maxPoints: maxPoints}
	if timerCfg != nil {
		k.timed = true
		k.initialSecs = timerCfg.InitialTimeSecs
		k.incrementSecs = timerCfg.IncrementSecs
	}
	return k
}

type seekEntry struct {
	id        uuid.UUID
	playerID  uuid.UUID
	key       bucketKey
	timerCfg  *game.TimerConfig
	events    chan SeekEvent
	createdAt time.Time
}

// Matchmaker holds the seek queue. Buckets fill in arrival order; the moment
// a bucket holds four seeks a game is created and all four are resolved.
type Matchmaker struct {
	mu      sync.Mutex
	seeks   map[uuid.UUID]*seekEntry
	buckets map[bucketKey][]uuid.UUID
	creator GameCreator
	logger  *zap.Logger
}

func New(creator GameCreator, logger *zap.Logger) *Matchmaker {
	return &Matchmaker{
		seeks:   make(map[uuid.UUID]*seekEntry),
		buckets: make(map[bucketKey][]uuid.UUID),
		creator: creator,
		logger:  logger,
	}
}

// seekEventBuffer is sized so one queue update plus the game start never
// block the matchmaker.
const seekEventBuffer = 8

// Seek enqueues a player. The returned channel reports queue progress and
// finally the created game; it closes once the seek resolves or is canceled.
func (mm *Matchmaker) Seek(playerID uuid.UUID, maxPoints int, timerCfg *game.TimerConfig) (uuid.UUID, <-chan SeekEvent, error) {
	entry := &seekEntry{
		id:        uuid.New(),
		playerID:  playerID,
		key:       keyFor(maxPoints, timerCfg),
		events:    make(chan SeekEvent, seekEventBuffer),
		createdAt: time.Now(),
	}
	if timerCfg != nil {
		cfg := *timerCfg
		entry.timerCfg = &cfg
	}

	mm.mu.Lock()
	for _, id := range mm.buckets[entry.key] {
		if mm.seeks[id].playerID == playerID {
			mm.mu.Unlock()
			return uuid.Nil, nil, fmt.Errorf("%w: %s", ErrAlreadySeeking, playerID)
		}
	}
	mm.seeks[entry.id] = entry
	mm.buckets[entry.key] = append(mm.buckets[entry.key], entry.id)
	waiting := mm.buckets[entry.key]

	if len(waiting) < 4 {
		mm.notifyBucketLocked(entry.key)
		mm.mu.Unlock()
		return entry.id, entry.events, nil
	}

	matched := make([]*seekEntry, 4)
	for i, id := range waiting[:4] {
		matched[i] = mm.seeks[id]
		delete(mm.seeks, id)
	}
	rest := waiting[4:]
	if len(rest) == 0 {
		delete(mm.buckets, entry.key)
	} else {
		mm.buckets[entry.key] = rest
	}
	mm.mu.Unlock()

	return entry.id, entry.events, mm.startMatched(matched, maxPoints)
}

// startMatched creates the game for four matched seeks and resolves them in
// seat order. On creation failure the seeks are already out of the queue, so
// their channels simply close without a game.
func (mm *Matchmaker) startMatched(matched []*seekEntry, maxPoints int) error {
	var playerIDs [4]uuid.UUID
	for i, e := range matched {
		playerIDs[i] = e.playerID
	}

	result, err := mm.creator.CreateGameWithPlayers(playerIDs, maxPoints, matched[0].timerCfg)
	if err != nil {
		mm.logger.Error("failed to create game for matched seeks", zap.Error(err))
		for _, e := range matched {
			close(e.events)
		}
		return err
	}

	for seat, e := range matched {
		s := seat
		gameID := result.GameID
		pid := e.playerID
		e.events <- SeekEvent{
			Type:     SeekGameStart,
			GameID:   &gameID,
			PlayerID: &pid,
			Seat:     &s,
		}
		close(e.events)
	}

	mm.logger.Info("seeks matched into game",
		zap.String("game_id", result.GameID.String()),
		zap.Int("max_points", maxPoints),
	)
	return nil
}

// CancelSeek removes a waiting seek and closes its channel.
func (mm *Matchmaker) CancelSeek(seekID uuid.UUID) error {
	mm.mu.Lock()
	entry, ok := mm.seeks[seekID]
	if !ok {
		mm.mu.Unlock()
		return ErrSeekNotFound
	}
	delete(mm.seeks, seekID)
	waiting := mm.buckets[entry.key]
	for i, id := range waiting {
		if id == seekID {
			waiting = append(waiting[:i], waiting[i+1:]...)
			break
		}
	}
	if len(waiting) == 0 {
		delete(mm.buckets, entry.key)
	} else {
		mm.buckets[entry.key] = waiting
	}
	mm.notifyBucketLocked(entry.key)
	mm.mu.Unlock()

	close(entry.events)
	return nil
}

// ListSeeks returns all waiting seeks, oldest first.
func (mm *Matchmaker) ListSeeks() []SeekInfo {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	infos := make([]SeekInfo, 0, len(mm.seeks))
	for _, e := range mm.seeks {
		info := SeekInfo{
			SeekID:    e.id,
			MaxPoints: e.key.maxPoints,
			CreatedAt: e.createdAt,
		}
		if e.timerCfg != nil {
			cfg := *e.timerCfg
			info.TimerConfig = &cfg
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos
}

// notifyBucketLocked sends the current bucket size to every waiting seek in
// it. Sends are non-blocking; a queue update lost to a full buffer is
// superseded by the next one.
func (mm *Matchmaker) notifyBucketLocked(key bucketKey) {
	waiting := mm.buckets[key]
	for _, id := range waiting {
		entry := mm.seeks[id]
		select {
		case entry.events <- SeekEvent{Type: SeekQueueUpdate, QueueSize: len(waiting)}:
		default:
		}
	}
}
