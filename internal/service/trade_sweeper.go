package service

import (
	"context"
	"log/slog"
	"time"
)

const sweepBatchSize = 200

// TradeSweeper periodically expires pending offers past their window.
// Expiry is also applied lazily on read, so the sweeper only keeps the
// table tidy for offers nobody looks at.
type TradeSweeper struct {
	trades  *TradeService
	pollDur time.Duration
	logger  *slog.Logger
}

// NewTradeSweeper creates a TradeSweeper. pollInterval is how often to
// scan for expired offers.
func NewTradeSweeper(trades *TradeService, pollInterval time.Duration, logger *slog.Logger) *TradeSweeper {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &TradeSweeper{
		trades:  trades,
		pollDur: pollInterval,
		logger:  logger.With(slog.String("component", "trade_sweeper")),
	}
}

// Run sweeps on a ticker until the context ends. Call in a goroutine.
func (w *TradeSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollDur)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			swept, err := w.trades.ExpirePending(ctx, sweepBatchSize)
			if err != nil {
				w.logger.ErrorContext(ctx, "trade sweep failed", slog.String("error", err.Error()))
				continue
			}
			if swept > 0 {
				w.logger.InfoContext(ctx, "expired pending trades", slog.Int("count", swept))
			}
		}
	}
}
