// Package server hosts the HTTP + WebSocket API for the game backend.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/averyhart/pettycoon/internal/domain"
	"github.com/averyhart/pettycoon/internal/server/handler"
	"github.com/averyhart/pettycoon/internal/server/middleware"
	"github.com/averyhart/pettycoon/internal/server/ws"
)

const (
	// apiRateLimit caps requests per client IP per second across the API.
	apiRateLimit  = 30
	apiRateWindow = time.Second
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	GameState *handler.GameStateHandler
	Game      *handler.GameHandler
	Catalog   *handler.CatalogHandler
	Trades    *handler.TradeHandler
	Sessions  *handler.SessionHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (CORS, auth, identity, rate limit, logging) wired.
// limiter may be nil to disable API-level rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no player identity required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Catalog.
	mux.HandleFunc("GET /api/catalog", handlers.Catalog.GetCatalog)

	// Save state.
	mux.HandleFunc("GET /api/game-state", handlers.GameState.GetState)
	mux.HandleFunc("POST /api/game-state", handlers.GameState.SubmitState)
	mux.HandleFunc("POST /api/game-state/reset", handlers.GameState.Reset)

	// Gameplay actions.
	mux.HandleFunc("POST /api/game/eggs/{id}/open", handlers.Game.OpenEgg)
	mux.HandleFunc("POST /api/game/store/upgrade", handlers.Game.UpgradeStore)
	mux.HandleFunc("PUT /api/game/slots/{position}/pet", handlers.Game.AssignPet)
	mux.HandleFunc("DELETE /api/game/slots/{position}/pet", handlers.Game.UnassignSlot)

	// Trades.
	mux.HandleFunc("GET /api/trades", handlers.Trades.ListTrades)
	mux.HandleFunc("POST /api/trades", handlers.Trades.CreateTrade)
	mux.HandleFunc("GET /api/trades/{id}", handlers.Trades.GetTrade)
	mux.HandleFunc("PATCH /api/trades/{id}/status", handlers.Trades.ResolveTrade)

	// Live sessions.
	mux.HandleFunc("POST /api/session", handlers.Sessions.Attach)
	mux.HandleFunc("DELETE /api/session", handlers.Sessions.Detach)
	mux.HandleFunc("GET /api/session/balance", handlers.Sessions.Balance)

	// WebSocket event feed.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first. Logging sits inside
	// identity so request logs carry the player ID.
	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.Identity("/api/health")(h)
	if limiter != nil {
		h = middleware.RateLimit(limiter, apiRateLimit, apiRateWindow)(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
