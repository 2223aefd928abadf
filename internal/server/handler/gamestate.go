package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/averyhart/pettycoon/internal/domain"
	"github.com/averyhart/pettycoon/internal/server/middleware"
)

// GameStateService defines the methods the game-state handler requires from
// the service layer.
type GameStateService interface {
	GetState(ctx context.Context, playerID string) (domain.GameState, *domain.OfflineReport, error)
	SubmitState(ctx context.Context, state domain.GameState) (domain.GameState, error)
	Reset(ctx context.Context, playerID string) (domain.GameState, error)
}

// GameStateHandler serves save-state load/save/reset endpoints.
type GameStateHandler struct {
	game   GameStateService
	logger *slog.Logger
}

// NewGameStateHandler creates a GameStateHandler.
func NewGameStateHandler(game GameStateService, logger *slog.Logger) *GameStateHandler {
	return &GameStateHandler{game: game, logger: logger}
}

// stateResponse wraps a save state, with offline earnings attached when the
// load triggered a catch-up.
type stateResponse struct {
	State   domain.GameState      `json:"state"`
	Offline *domain.OfflineReport `json:"offline,omitempty"`
}

// GetState loads the caller's save, creating a default one for first-time
// players and applying offline catch-up earnings.
// GET /api/game-state
func (h *GameStateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())

	state, offline, err := h.game.GetState(r.Context(), playerID)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{State: state, Offline: offline})
}

// SubmitState persists a full client-side save. The body is a GameState;
// the player ID always comes from the authenticated identity, never the
// body.
// POST /api/game-state
func (h *GameStateHandler) SubmitState(w http.ResponseWriter, r *http.Request) {
	var state domain.GameState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	state.PlayerID = middleware.PlayerFrom(r.Context())

	saved, err := h.game.SubmitState(r.Context(), state)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{State: saved})
}

// Reset discards the caller's save and starts over from the default state.
// POST /api/game-state/reset
func (h *GameStateHandler) Reset(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())

	state, err := h.game.Reset(r.Context(), playerID)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{State: state})
}
