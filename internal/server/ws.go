package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wlim33/spades-server/internal/game"
)

var errInvalidTimer = errors.New("invalid timer parameters")

const wsWriteTimeout = 10 * time.Second

// handleGameFeed upgrades the connection and streams the game's event feed.
// The current state is sent first so subscribers do not start blind. The
// connection closes when the feed does or the client goes away.
func (s *Server) handleGameFeed(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	events, cancel, err := s.mgr.Subscribe(gameID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	defer cancel()

	view, err := s.mgr.GetGameState(gameID)
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(view); err != nil {
			return
		}
	}

	// Reader goroutine exists only to observe the close from the client side.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// handleSeekFeed enqueues a matchmaking seek and streams queue updates over
// the socket until the seek resolves into a game or the client disconnects.
// Parameters come from the query string: player_id (optional, generated when
// absent), max_points, initial_time_secs and increment_secs.
func (s *Server) handleSeekFeed(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	playerID, err := parsePlayerID(query.Get("player_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid player_id")
		return
	}

	maxPoints := s.cfg.DefaultMaxPoints
	if raw := query.Get("max_points"); raw != "" {
		maxPoints, err = strconv.Atoi(raw)
		if err != nil || maxPoints <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid max_points")
			return
		}
	}

	timerCfg, err := parseTimerConfig(query.Get("initial_time_secs"), query.Get("increment_secs"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	seekID, events, err := s.mm.Seek(playerID, maxPoints, timerCfg)
	if err != nil {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		conn.WriteJSON(errorResponse{Error: err.Error()})
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.mm.CancelSeek(seekID)
				return
			}
		case <-done:
			s.mm.CancelSeek(seekID)
			return
		}
	}
}

func parsePlayerID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(raw)
}

// parseTimerConfig builds a clock config from query parameters. Both absent
// means an untimed seek.
func parseTimerConfig(initialRaw, incrementRaw string) (*game.TimerConfig, error) {
	if initialRaw == "" && incrementRaw == "" {
		return nil, nil
	}
	initial, err := strconv.ParseInt(initialRaw, 10, 64)
	if err != nil || initial <= 0 {
		return nil, errInvalidTimer
	}
	increment := int64(0)
	if incrementRaw != "" {
		increment, err = strconv.ParseInt(incrementRaw, 10, 64)
		if err != nil || increment < 0 {
			return nil, errInvalidTimer
		}
	}
	return &game.TimerConfig{InitialTimeSecs: initial, IncrementSecs: increment}, nil
}
