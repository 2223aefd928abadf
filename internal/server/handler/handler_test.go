package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averyhart/pettycoon/internal/catalog"
	"github.com/averyhart/pettycoon/internal/domain"
	"github.com/averyhart/pettycoon/internal/loot"
	"github.com/averyhart/pettycoon/internal/server/handler"
	"github.com/averyhart/pettycoon/internal/server/middleware"
	"github.com/averyhart/pettycoon/internal/service"
	"github.com/averyhart/pettycoon/internal/store/memory"
)

type apiFixture struct {
	mux    *http.ServeMux
	game   *service.GameService
	trades *service.TradeService
	states *memory.GameStateStore
	users  *memory.UserStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	states := memory.NewGameStateStore()
	tradeStore := memory.NewTradeStore(states)
	users := memory.NewUserStore()
	cache := memory.NewStateCache()
	locks := memory.NewLockManager()
	limiter := memory.NewRateLimiter()
	bus := memory.NewSignalBus()
	audit := memory.NewAuditStore()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	game := service.NewGameService(states, users, cache, limiter, bus, audit,
		catalog.Default(), loot.NewSeeded(7, 11), logger)
	trades := service.NewTradeService(tradeStore, states, users, cache, locks,
		limiter, bus, audit, logger)

	gameState := handler.NewGameStateHandler(game, logger)
	gameplay := handler.NewGameHandler(game, logger)
	catalogH := handler.NewCatalogHandler(game.Catalog(), logger)
	tradesH := handler.NewTradeHandler(trades, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/catalog", catalogH.GetCatalog)
	mux.HandleFunc("GET /api/game-state", gameState.GetState)
	mux.HandleFunc("POST /api/game-state", gameState.SubmitState)
	mux.HandleFunc("POST /api/game-state/reset", gameState.Reset)
	mux.HandleFunc("POST /api/game/eggs/{id}/open", gameplay.OpenEgg)
	mux.HandleFunc("POST /api/game/store/upgrade", gameplay.UpgradeStore)
	mux.HandleFunc("PUT /api/game/slots/{position}/pet", gameplay.AssignPet)
	mux.HandleFunc("DELETE /api/game/slots/{position}/pet", gameplay.UnassignSlot)
	mux.HandleFunc("GET /api/trades", tradesH.ListTrades)
	mux.HandleFunc("POST /api/trades", tradesH.CreateTrade)
	mux.HandleFunc("GET /api/trades/{id}", tradesH.GetTrade)
	mux.HandleFunc("PATCH /api/trades/{id}/status", tradesH.ResolveTrade)

	return &apiFixture{mux: mux, game: game, trades: trades, states: states, users: users}
}

// do performs a request as the given player and decodes the JSON response
// into out when it is non-nil.
func (f *apiFixture) do(t *testing.T, playerID, method, path string, body, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(middleware.WithPlayer(req.Context(), playerID))

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

type stateEnvelope struct {
	State   domain.GameState      `json:"state"`
	Offline *domain.OfflineReport `json:"offline"`
}

func TestGetStateCreatesDefaultSave(t *testing.T) {
	f := newAPIFixture(t)

	var resp stateEnvelope
	rec := f.do(t, "alice", http.MethodGet, "/api/game-state", nil, &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", resp.State.PlayerID)
	assert.Equal(t, float64(1000), resp.State.Money)
	assert.Equal(t, "shack", resp.State.StoreType)
	assert.Len(t, resp.State.StoreSlots, 3)
	assert.Nil(t, resp.Offline)
}

func TestGetCatalog(t *testing.T) {
	f := newAPIFixture(t)

	var resp struct {
		Eggs  []domain.Egg       `json:"eggs"`
		Tiers []domain.StoreTier `json:"tiers"`
	}
	rec := f.do(t, "alice", http.MethodGet, "/api/catalog", nil, &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Eggs, 8)
	assert.Len(t, resp.Tiers, 6)
}

func TestOpenEggHappyPath(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, "alice", http.MethodGet, "/api/game-state", nil, nil)

	var resp struct {
		State domain.GameState `json:"state"`
		Pet   domain.Pet       `json:"pet"`
	}
	rec := f.do(t, "alice", http.MethodPost, "/api/game/eggs/basic-animal/open", nil, &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, resp.Pet.ID)
	assert.Equal(t, float64(500), resp.State.Money)
	assert.Len(t, resp.State.Pets, 1)
}

func TestOpenEggInsufficientFunds(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, "alice", http.MethodGet, "/api/game-state", nil, nil)

	rec := f.do(t, "alice", http.MethodPost, "/api/game/eggs/rare-bug/open", nil, nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "you need")
}

func TestOpenEggUnknownEgg(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, "alice", http.MethodGet, "/api/game-state", nil, nil)

	rec := f.do(t, "alice", http.MethodPost, "/api/game/eggs/nope/open", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssignAndUnassignSlot(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, "alice", http.MethodGet, "/api/game-state", nil, nil)

	var opened struct {
		Pet domain.Pet `json:"pet"`
	}
	f.do(t, "alice", http.MethodPost, "/api/game/eggs/basic-animal/open", nil, &opened)

	var resp stateEnvelope
	rec := f.do(t, "alice", http.MethodPut, "/api/game/slots/0/pet",
		map[string]string{"petId": opened.Pet.ID}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	slot, ok := resp.State.SlotAt(0)
	require.True(t, ok)
	require.NotNil(t, slot.PetID)
	assert.Equal(t, opened.Pet.ID, *slot.PetID)

	rec = f.do(t, "alice", http.MethodDelete, "/api/game/slots/0/pet", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	slot, ok = resp.State.SlotAt(0)
	require.True(t, ok)
	assert.Nil(t, slot.PetID)
}

func TestAssignSlotBadPosition(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, "alice", http.MethodGet, "/api/game-state", nil, nil)

	rec := f.do(t, "alice", http.MethodPut, "/api/game/slots/abc/pet",
		map[string]string{"petId": "x"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitStateIgnoresBodyPlayerID(t *testing.T) {
	f := newAPIFixture(t)

	var initial stateEnvelope
	f.do(t, "alice", http.MethodGet, "/api/game-state", nil, &initial)

	body := initial.State
	body.PlayerID = "mallory"
	body.Money = 2500

	var resp stateEnvelope
	rec := f.do(t, "alice", http.MethodPost, "/api/game-state", body, &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", resp.State.PlayerID)
	assert.Equal(t, float64(2500), resp.State.Money)
}

func TestResetRestoresDefaults(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, "alice", http.MethodGet, "/api/game-state", nil, nil)
	f.do(t, "alice", http.MethodPost, "/api/game/eggs/basic-animal/open", nil, nil)

	var resp stateEnvelope
	rec := f.do(t, "alice", http.MethodPost, "/api/game-state/reset", nil, &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1000), resp.State.Money)
	assert.Empty(t, resp.State.Pets)
}

func TestTradeLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, "alice", http.MethodGet, "/api/game-state", nil, nil)
	f.do(t, "bob", http.MethodGet, "/api/game-state", nil, nil)

	var offer domain.TradeOffer
	rec := f.do(t, "alice", http.MethodPost, "/api/trades", map[string]any{
		"toPlayerId": "bob",
		"fromItems":  map[string]any{"money": 200},
		"toItems":    map[string]any{"money": 100},
	}, &offer)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.TradeStatusPending, offer.Status)

	var listed struct {
		Trades []domain.TradeOffer `json:"trades"`
	}
	rec = f.do(t, "bob", http.MethodGet, "/api/trades", nil, &listed)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, listed.Trades, 1)

	var resolved domain.TradeOffer
	rec = f.do(t, "bob", http.MethodPatch, "/api/trades/"+offer.ID+"/status",
		map[string]string{"status": "accepted"}, &resolved)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.TradeStatusAccepted, resolved.Status)

	var alice stateEnvelope
	f.do(t, "alice", http.MethodGet, "/api/game-state", nil, &alice)
	assert.Equal(t, float64(900), alice.State.Money)
}

func TestTradeResolveWrongActor(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, "alice", http.MethodGet, "/api/game-state", nil, nil)
	f.do(t, "bob", http.MethodGet, "/api/game-state", nil, nil)

	var offer domain.TradeOffer
	f.do(t, "alice", http.MethodPost, "/api/trades", map[string]any{
		"toPlayerId": "bob",
		"fromItems":  map[string]any{"money": 200},
	}, &offer)

	// Sender cannot accept their own offer.
	rec := f.do(t, "alice", http.MethodPatch, "/api/trades/"+offer.ID+"/status",
		map[string]string{"status": "accepted"}, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTradeGetStranger(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, "alice", http.MethodGet, "/api/game-state", nil, nil)
	f.do(t, "bob", http.MethodGet, "/api/game-state", nil, nil)

	var offer domain.TradeOffer
	f.do(t, "alice", http.MethodPost, "/api/trades", map[string]any{
		"toPlayerId": "bob",
		"fromItems":  map[string]any{"money": 50},
	}, &offer)

	rec := f.do(t, "carol", http.MethodGet, "/api/trades/"+offer.ID, nil, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
