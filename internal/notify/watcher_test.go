package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averyhart/pettycoon/internal/domain"
	"github.com/averyhart/pettycoon/internal/store/memory"
)

type captureSender struct {
	mu     sync.Mutex
	titles []string
}

func (c *captureSender) Send(_ context.Context, title, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, title)
	return nil
}

func (c *captureSender) Name() string { return "capture" }

func (c *captureSender) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.titles...)
}

func TestEventWatcherNotifiesOnTradeEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := memory.NewSignalBus()
	sender := &captureSender{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	notifier := NewNotifier([]Sender{sender}, nil, logger)
	watcher := NewEventWatcher(bus, notifier, memory.NewRateLimiter(), "game.events", logger)

	go watcher.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	publish := func(typ domain.EventType) {
		payload, err := json.Marshal(domain.GameEvent{
			ID:        "e1",
			Type:      typ,
			PlayerIDs: []string{"alice", "bob"},
			Detail:    map[string]any{"trade_id": "t1"},
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, "game.events", payload))
	}

	publish(domain.EventTradeAccepted)
	// Routine gameplay events stay quiet.
	publish(domain.EventPetAssigned)

	require.Eventually(t, func() bool {
		return len(sender.got()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Trade settled"}, sender.got())
}

func TestNotifierEventFilter(t *testing.T) {
	sender := &captureSender{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	notifier := NewNotifier([]Sender{sender}, []string{"trade.expired"}, logger)

	require.NoError(t, notifier.Notify(context.Background(), "trade.accepted", "ignored", ""))
	require.NoError(t, notifier.Notify(context.Background(), "trade.expired", "kept", ""))

	assert.Equal(t, []string{"kept"}, sender.got())
}
