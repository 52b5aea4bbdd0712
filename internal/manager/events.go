package manager

import (
	"sync"

	"github.com/google/uuid"
	"github.com/wlim33/spades-server/internal/game"
)

// EventType tags events on a game's subscription feed.
type EventType string

const (
	EventStateChanged EventType = "state_changed"
	EventGameAborted  EventType = "game_aborted"
)

// Event is one entry on a game's subscription feed: a StateChanged snapshot
// after every successful transition, or a terminal GameAborted.
type Event struct {
	Type   EventType      `json:"event"`
	GameID uuid.UUID      `json:"game_id"`
	State  *GameStateView `json:"state,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// PlayerNameEntry pairs a seat's player id with its optional display name.
type PlayerNameEntry struct {
	PlayerID uuid.UUID `json:"player_id"`
	Name     *string   `json:"name"`
}

// GameStateView is the externally consumed snapshot of a game. Scores and the
// current player are nil before the game starts; clock fields are nil when
// timers are disabled.
type GameStateView struct {
	GameID              uuid.UUID          `json:"game_id"`
	State               string             `json:"state"`
	TeamAScore          *int               `json:"team_a_score"`
	TeamBScore          *int               `json:"team_b_score"`
	TeamABags           *int               `json:"team_a_bags"`
	TeamBBags           *int               `json:"team_b_bags"`
	CurrentPlayerID     *uuid.UUID         `json:"current_player_id"`
	PlayerNames         [4]PlayerNameEntry `json:"player_names"`
	TimerConfig         *game.TimerConfig  `json:"timer_config,omitempty"`
	PlayerClocksMs      *[4]int64          `json:"player_clocks_ms,omitempty"`
	ActivePlayerClockMs *int64             `json:"active_player_clock_ms,omitempty"`
}

// subscriberBuffer bounds each subscriber channel. A subscriber that falls
// this far behind is dropped rather than allowed to stall game mutation.
const subscriberBuffer = 16

// broadcaster fans events out to a game's subscribers. Publishing never
// blocks: a subscriber whose buffer is full is closed and removed.
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

// subscribe registers a new subscriber and returns its channel along with a
// cancel function. The channel is closed on cancel, on drop, and when the
// game is deleted.
func (b *broadcaster) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			delete(b.subs, id)
			close(ch)
		}
	}
}

// close terminates the feed, closing every subscriber channel.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *broadcaster) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
