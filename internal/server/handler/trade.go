package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/averyhart/pettycoon/internal/domain"
	"github.com/averyhart/pettycoon/internal/server/middleware"
	"github.com/averyhart/pettycoon/internal/service"
)

// TradeService defines the methods the trade handler requires from the
// service layer.
type TradeService interface {
	Create(ctx context.Context, fromPlayerID string, req service.CreateTradeRequest) (domain.TradeOffer, error)
	Get(ctx context.Context, actorID, offerID string) (domain.TradeOffer, error)
	List(ctx context.Context, playerID string, opts domain.ListOpts) ([]domain.TradeOffer, error)
	Resolve(ctx context.Context, actorID, offerID string, status domain.TradeStatus) (domain.TradeOffer, error)
}

// TradeHandler serves trade offer endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

// listTradesResponse wraps the trade list response.
type listTradesResponse struct {
	Trades []domain.TradeOffer `json:"trades"`
}

// ListTrades returns offers where the caller is sender or recipient.
// GET /api/trades?limit=50&offset=0
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())

	trades, err := h.trades.List(r.Context(), playerID, parseListOpts(r))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	if trades == nil {
		trades = []domain.TradeOffer{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades})
}

// GetTrade returns a single offer the caller is party to.
// GET /api/trades/{id}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())

	offer, err := h.trades.Get(r.Context(), playerID, pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, offer)
}

// CreateTrade proposes a new offer from the caller to another player.
// POST /api/trades
func (h *TradeHandler) CreateTrade(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())

	var req service.CreateTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	offer, err := h.trades.Create(r.Context(), playerID, req)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, offer)
}

// resolveRequest is the body for settling an offer.
type resolveRequest struct {
	Status domain.TradeStatus `json:"status"`
}

// ResolveTrade accepts, rejects, or cancels a pending offer on behalf of
// the caller.
// PATCH /api/trades/{id}/status
func (h *TradeHandler) ResolveTrade(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	offer, err := h.trades.Resolve(r.Context(), playerID, pathParam(r, "id"), req.Status)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, offer)
}
