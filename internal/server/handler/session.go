package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/averyhart/pettycoon/internal/server/middleware"
)

// SessionService defines the methods the session handler requires from the
// live session controller.
type SessionService interface {
	Attach(ctx context.Context, playerID string) error
	Detach(ctx context.Context, playerID string)
	Balance(playerID string) (float64, bool)
}

// SessionHandler manages live play sessions. Attached players accrue
// income server-side every tick instead of waiting for offline catch-up.
type SessionHandler struct {
	sessions SessionService
	logger   *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// Attach starts a live session for the caller.
// POST /api/session
func (h *SessionHandler) Attach(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())

	if err := h.sessions.Attach(r.Context(), playerID); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"attached": true})
}

// Detach flushes and ends the caller's live session. Idempotent.
// DELETE /api/session
func (h *SessionHandler) Detach(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())

	h.sessions.Detach(r.Context(), playerID)
	writeJSON(w, http.StatusOK, map[string]any{"attached": false})
}

// Balance returns the caller's live in-memory balance, which runs ahead of
// the persisted save between autosaves.
// GET /api/session/balance
func (h *SessionHandler) Balance(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())

	balance, ok := h.sessions.Balance(playerID)
	if !ok {
		writeError(w, http.StatusNotFound, "no live session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"money": balance})
}
