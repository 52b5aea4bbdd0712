// Package server exposes the game manager and matchmaker over HTTP, with
// per-game WebSocket event feeds.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wlim33/spades-server/internal/config"
	"github.com/wlim33/spades-server/internal/deck"
	"github.com/wlim33/spades-server/internal/game"
	"github.com/wlim33/spades-server/internal/manager"
	"github.com/wlim33/spades-server/internal/matchmaking"
)

// Server wires HTTP routes to the manager and matchmaker.
type Server struct {
	mgr      *manager.Manager
	mm       *matchmaking.Matchmaker
	cfg      config.GameConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func New(mgr *manager.Manager, mm *matchmaking.Matchmaker, cfg config.GameConfig, logger *zap.Logger) *Server {
	return &Server{
		mgr:    mgr,
		mm:     mm,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes builds the handler. Method-qualified patterns need Go 1.22+.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /games", s.handleCreateGame)
	mux.HandleFunc("GET /games", s.handleListGames)
	mux.HandleFunc("GET /games/{id}", s.handleGetGame)
	mux.HandleFunc("DELETE /games/{id}", s.handleDeleteGame)
	mux.HandleFunc("POST /games/{id}/transition", s.handleTransition)
	mux.HandleFunc("GET /games/{id}/winners", s.handleWinners)
	mux.HandleFunc("GET /games/{id}/legal_cards", s.handleLegalCards)
	mux.HandleFunc("GET /games/{id}/players/{playerID}/hand", s.handleGetHand)
	mux.HandleFunc("PUT /games/{id}/players/{playerID}/name", s.handleSetName)
	mux.HandleFunc("GET /games/{id}/ws", s.handleGameFeed)

	mux.HandleFunc("GET /matchmaking/seeks", s.handleListSeeks)
	mux.HandleFunc("DELETE /matchmaking/seeks/{seekID}", s.handleCancelSeek)
	mux.HandleFunc("GET /matchmaking/seek/ws", s.handleSeekFeed)

	return mux
}

type createGameRequest struct {
	MaxPoints   *int              `json:"max_points"`
	TimerConfig *game.TimerConfig `json:"timer_config"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	maxPoints := s.cfg.DefaultMaxPoints
	if req.MaxPoints != nil {
		if *req.MaxPoints <= 0 {
			s.writeError(w, http.StatusBadRequest, "max_points must be positive")
			return
		}
		maxPoints = *req.MaxPoints
	}
	if req.TimerConfig != nil && (req.TimerConfig.InitialTimeSecs <= 0 || req.TimerConfig.IncrementSecs < 0) {
		s.writeError(w, http.StatusBadRequest, "invalid timer_config")
		return
	}

	result, err := s.mgr.CreateGame(maxPoints, req.TimerConfig)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListGames(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]uuid.UUID{"games": s.mgr.ListGames()})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	view, err := s.mgr.GetGameState(gameID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.mgr.DeleteGame(gameID); err != nil {
		s.writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transitionRequest struct {
	Type   string     `json:"type"`
	Amount *int       `json:"amount"`
	Card   *deck.Card `json:"card"`
}

type transitionResponse struct {
	Outcome string                 `json:"outcome"`
	State   *manager.GameStateView `json:"state"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var t game.Transition
	switch req.Type {
	case "start":
		t = game.Start{}
	case "bet":
		if req.Amount == nil {
			s.writeError(w, http.StatusBadRequest, "bet requires amount")
			return
		}
		t = game.Bet{Amount: *req.Amount}
	case "play_card":
		if req.Card == nil {
			s.writeError(w, http.StatusBadRequest, "play_card requires card")
			return
		}
		t = game.PlayCard{Card: *req.Card}
	default:
		s.writeError(w, http.StatusBadRequest, "unknown transition type "+req.Type)
		return
	}

	outcome, err := s.mgr.MakeTransition(gameID, t)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	view, err := s.mgr.GetGameState(gameID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, transitionResponse{Outcome: outcome.String(), State: &view})
}

func (s *Server) handleWinners(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	winners, err := s.mgr.Winners(gameID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][2]uuid.UUID{"winners": winners})
}

func (s *Server) handleLegalCards(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	cards, err := s.mgr.LegalCards(gameID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]deck.Card{"cards": cards})
}

func (s *Server) handleGetHand(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	playerID, ok := s.pathUUID(w, r, "playerID")
	if !ok {
		return
	}
	hand, err := s.mgr.GetHand(gameID, playerID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]deck.Card{"cards": hand})
}

type setNameRequest struct {
	Name *string `json:"name"`
}

func (s *Server) handleSetName(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	playerID, ok := s.pathUUID(w, r, "playerID")
	if !ok {
		return
	}
	var req setNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != nil && len(*req.Name) > s.cfg.MaxNameLength {
		s.writeError(w, http.StatusBadRequest, "name too long")
		return
	}
	if err := s.mgr.SetPlayerName(gameID, playerID, req.Name); err != nil {
		s.writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSeeks(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]matchmaking.SeekInfo{"seeks": s.mm.ListSeeks()})
}

func (s *Server) handleCancelSeek(w http.ResponseWriter, r *http.Request) {
	seekID, ok := s.pathUUID(w, r, "seekID")
	if !ok {
		return
	}
	if err := s.mm.CancelSeek(seekID); err != nil {
		s.writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// writeGameError maps domain errors onto HTTP statuses: unknown ids are 404,
// rule violations are 400, transitions rejected by the state machine are 409.
func (s *Server) writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, manager.ErrGameNotFound),
		errors.Is(err, game.ErrPlayerNotFound),
		errors.Is(err, matchmaking.ErrSeekNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrInvalidBet), errors.Is(err, game.ErrIllegalCard):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrInvalidTransition),
		errors.Is(err, game.ErrGameNotCompleted),
		errors.Is(err, game.ErrTiedGame),
		errors.Is(err, matchmaking.ErrAlreadySeeking):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
	}
}
