package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/averyhart/pettycoon/internal/domain"
)

// EventWatcher subscribes to the game event channel and turns selected
// events into operator notifications. It is read-only: delivery failures
// are logged and never affect gameplay.
type EventWatcher struct {
	bus      domain.SignalBus
	notifier *Notifier
	limiter  domain.RateLimiter
	channel  string
	logger   *slog.Logger
}

// NewEventWatcher creates an EventWatcher reading from the given bus
// channel. The limiter paces outbound webhook calls so an event burst
// never trips the chat APIs' own limits.
func NewEventWatcher(bus domain.SignalBus, notifier *Notifier, limiter domain.RateLimiter, channel string, logger *slog.Logger) *EventWatcher {
	return &EventWatcher{
		bus:      bus,
		notifier: notifier,
		limiter:  limiter,
		channel:  channel,
		logger:   logger.With(slog.String("component", "event_watcher")),
	}
}

// Run consumes events until the context is cancelled.
func (w *EventWatcher) Run(ctx context.Context) error {
	msgCh, err := w.bus.Subscribe(ctx, w.channel)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", w.channel, err)
	}

	w.logger.Info("watching game events", slog.String("channel", w.channel))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-msgCh:
			if !ok {
				w.logger.Warn("event channel closed")
				return nil
			}
			w.handle(ctx, payload)
		}
	}
}

func (w *EventWatcher) handle(ctx context.Context, payload []byte) {
	var event domain.GameEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		w.logger.Warn("skipping malformed event", slog.String("error", err.Error()))
		return
	}

	title, message := describe(event)
	if title == "" {
		return
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx, "notify"); err != nil {
			w.logger.WarnContext(ctx, "notification pacing interrupted",
				slog.String("error", err.Error()),
			)
			return
		}
	}

	if err := w.notifier.Notify(ctx, string(event.Type), title, message); err != nil {
		w.logger.WarnContext(ctx, "notification failed",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// describe renders an event as a notification title and body. Events not
// worth an operator ping return an empty title.
func describe(event domain.GameEvent) (title, message string) {
	players := strings.Join(event.PlayerIDs, ", ")

	switch event.Type {
	case domain.EventTradeAccepted:
		return "Trade settled", fmt.Sprintf("Trade %v between %s completed.", event.Detail["trade_id"], players)
	case domain.EventTradeExpired:
		return "Trade expired", fmt.Sprintf("Trade %v between %s expired unanswered.", event.Detail["trade_id"], players)
	case domain.EventStoreUpgraded:
		return "Store upgraded", fmt.Sprintf("Player %s upgraded to %v.", players, event.Detail["tier"])
	case domain.EventStateReset:
		return "Save reset", fmt.Sprintf("Player %s reset their save.", players)
	default:
		return "", ""
	}
}
