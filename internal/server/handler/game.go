package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/averyhart/pettycoon/internal/domain"
	"github.com/averyhart/pettycoon/internal/server/middleware"
)

// GameService defines the gameplay methods the game handler requires from
// the service layer.
type GameService interface {
	PurchaseEgg(ctx context.Context, playerID, eggID string) (domain.GameState, domain.Pet, error)
	UpgradeStore(ctx context.Context, playerID string) (domain.GameState, error)
	AssignPet(ctx context.Context, playerID, petID string, position int) (domain.GameState, error)
	UnassignSlot(ctx context.Context, playerID string, position int) (domain.GameState, error)
}

// GameHandler serves gameplay action endpoints: hatching eggs, upgrading
// the store, and moving pets between slots.
type GameHandler struct {
	game   GameService
	logger *slog.Logger
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(game GameService, logger *slog.Logger) *GameHandler {
	return &GameHandler{game: game, logger: logger}
}

// purchaseResponse carries the hatched pet alongside the updated state.
type purchaseResponse struct {
	State domain.GameState `json:"state"`
	Pet   domain.Pet       `json:"pet"`
}

// OpenEgg buys and hatches one egg for the caller.
// POST /api/game/eggs/{id}/open
func (h *GameHandler) OpenEgg(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())
	eggID := pathParam(r, "id")

	state, pet, err := h.game.PurchaseEgg(r.Context(), playerID, eggID)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, purchaseResponse{State: state, Pet: pet})
}

// UpgradeStore moves the caller's store to the next tier.
// POST /api/game/store/upgrade
func (h *GameHandler) UpgradeStore(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())

	state, err := h.game.UpgradeStore(r.Context(), playerID)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{State: state})
}

// assignRequest is the body for placing a pet in a slot.
type assignRequest struct {
	PetID string `json:"petId"`
}

// AssignPet places one of the caller's pets into a store slot.
// PUT /api/game/slots/{position}/pet
func (h *GameHandler) AssignPet(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())

	position, err := strconv.Atoi(pathParam(r, "position"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot position")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.PetID == "" {
		writeError(w, http.StatusBadRequest, "petId is required")
		return
	}

	state, err := h.game.AssignPet(r.Context(), playerID, req.PetID, position)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{State: state})
}

// UnassignSlot clears a store slot, returning its pet to the bench.
// DELETE /api/game/slots/{position}/pet
func (h *GameHandler) UnassignSlot(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())

	position, err := strconv.Atoi(pathParam(r, "position"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot position")
		return
	}

	state, err := h.game.UnassignSlot(r.Context(), playerID, position)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{State: state})
}
