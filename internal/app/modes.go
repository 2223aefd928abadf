package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/averyhart/pettycoon/internal/notify"
	"github.com/averyhart/pettycoon/internal/server"
	"github.com/averyhart/pettycoon/internal/server/handler"
	"github.com/averyhart/pettycoon/internal/server/ws"
	"github.com/averyhart/pettycoon/internal/service"
	"github.com/averyhart/pettycoon/internal/session"
)

// services bundles the long-lived service objects shared by the modes.
type services struct {
	game     *service.GameService
	trades   *service.TradeService
	sweeper  *service.TradeSweeper
	sessions *session.Controller
}

func (a *App) buildServices(deps *Dependencies) *services {
	sessions := session.NewController(
		deps.StateStore, deps.StateCache,
		a.cfg.Game.TickInterval.Duration, a.cfg.Game.SaveInterval.Duration,
		a.logger,
	)
	game := service.NewGameService(
		deps.StateStore, deps.UserStore, deps.StateCache, deps.RateLimiter,
		deps.SignalBus, deps.AuditStore, deps.Catalog, deps.Roller, a.logger,
	).WithPresence(sessions)
	trades := service.NewTradeService(
		deps.TradeStore, deps.StateStore, deps.UserStore, deps.StateCache,
		deps.LockManager, deps.RateLimiter, deps.SignalBus, deps.AuditStore, a.logger,
	)
	return &services{
		game:     game,
		trades:   trades,
		sweeper:  service.NewTradeSweeper(trades, a.cfg.Game.SweepInterval.Duration, a.logger),
		sessions: sessions,
	}
}

// ServeMode runs the HTTP + WebSocket API together with the live session
// controller.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startEventWatcher(ctx, g, deps)
	a.startServer(ctx, g, deps, svcs)

	g.Go(func() error {
		return ignoreCancel(svcs.sessions.Run(ctx))
	})

	return ignoreCancel(g.Wait())
}

// SweepMode runs only the background maintenance loops: trade offer expiry
// and, when object storage is configured, resolved trade archival.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sweep mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	g.Go(func() error {
		return ignoreCancel(svcs.sweeper.Run(ctx))
	})
	a.startArchiver(ctx, g, deps)

	return ignoreCancel(g.Wait())
}

// FullMode runs everything: the API, live sessions, the trade sweeper, the
// archiver, and event notifications.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startEventWatcher(ctx, g, deps)
	a.startServer(ctx, g, deps, svcs)
	a.startArchiver(ctx, g, deps)

	g.Go(func() error {
		return ignoreCancel(svcs.sessions.Run(ctx))
	})
	g.Go(func() error {
		return ignoreCancel(svcs.sweeper.Run(ctx))
	})

	return ignoreCancel(g.Wait())
}

// startServer registers all handlers and runs the HTTP server until the
// context is cancelled. No-op when the server is disabled in config.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Channel:   service.EventChannel,
		Stream:    service.EventStream,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return ignoreCancel(hub.Run(ctx))
	})

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		},
		server.Handlers{
			Health:    handler.NewHealthHandler(a.logger),
			GameState: handler.NewGameStateHandler(svcs.game, a.logger),
			Game:      handler.NewGameHandler(svcs.game, a.logger),
			Catalog:   handler.NewCatalogHandler(deps.Catalog, a.logger),
			Trades:    handler.NewTradeHandler(svcs.trades, a.logger),
			Sessions:  handler.NewSessionHandler(svcs.sessions, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startEventWatcher forwards selected game events to the configured
// notification channels.
func (a *App) startEventWatcher(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	watcher := notify.NewEventWatcher(deps.SignalBus, deps.Notifier, deps.RateLimiter, service.EventChannel, a.logger)
	g.Go(func() error {
		return ignoreCancel(watcher.Run(ctx))
	})
}

// startArchiver periodically moves resolved trades older than the retention
// window into object storage. No-op when S3 is not configured.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		a.logger.InfoContext(ctx, "object storage not configured, trade archival disabled")
		return
	}

	retention := time.Duration(a.cfg.Game.ArchiveRetentionDays) * 24 * time.Hour
	interval := a.cfg.Game.ArchiveInterval.Duration

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				count, err := deps.Archiver.ArchiveTrades(ctx, time.Now().UTC().Add(-retention))
				if err != nil {
					a.logger.ErrorContext(ctx, "trade archival failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if count > 0 {
					a.logger.InfoContext(ctx, "trade archival complete",
						slog.Int64("archived", count),
					)
				}
			}
		}
	})
}

// ignoreCancel maps context cancellation to a clean nil so an orderly
// shutdown does not surface as an error.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
