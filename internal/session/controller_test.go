package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averyhart/pettycoon/internal/domain"
	"github.com/averyhart/pettycoon/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedState(t *testing.T, states *memory.GameStateStore, playerID string, rate float64) domain.GameState {
	t.Helper()
	petID := playerID + "-pet"
	state := domain.GameState{
		PlayerID:  playerID,
		Money:     1000,
		StoreType: "shack",
		Pets: []domain.Pet{
			{ID: petID, Name: "Puppy", Kind: domain.IncomeKindPerSecond, Income: rate},
		},
		StoreSlots: []domain.StoreSlot{
			{Position: 0, PetID: &petID},
			{Position: 1},
			{Position: 2},
		},
		Version:   1,
		LastSaved: time.Now().UTC(),
	}
	require.NoError(t, states.Create(context.Background(), state))
	return state
}

func TestTickAccruesInMemory(t *testing.T) {
	states := memory.NewGameStateStore()
	seedState(t, states, "alice", 100)

	c := NewController(states, nil, time.Second, time.Hour, testLogger())
	require.NoError(t, c.Attach(context.Background(), "alice"))

	c.tick()
	c.tick()
	c.tick()

	balance, ok := c.Balance("alice")
	require.True(t, ok)
	assert.Equal(t, float64(1300), balance)

	// Nothing persisted yet.
	stored, err := states.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, float64(1000), stored.Money)
}

func TestTickScalesToInterval(t *testing.T) {
	states := memory.NewGameStateStore()
	seedState(t, states, "alice", 100)

	// Four quarter-second ticks pay one second's rate, not four.
	c := NewController(states, nil, 250*time.Millisecond, time.Hour, testLogger())
	require.NoError(t, c.Attach(context.Background(), "alice"))

	c.tick()
	c.tick()
	c.tick()
	c.tick()

	balance, ok := c.Balance("alice")
	require.True(t, ok)
	assert.InDelta(t, 1100, balance, 0.001)
}

func TestAttachCreditsIdleGap(t *testing.T) {
	states := memory.NewGameStateStore()
	state := seedState(t, states, "alice", 100)
	state.LastSaved = time.Now().UTC().Add(-10 * time.Second)
	state.Version++
	require.NoError(t, states.Update(context.Background(), state))

	c := NewController(states, nil, time.Second, time.Hour, testLogger())
	require.NoError(t, c.Attach(context.Background(), "alice"))
	assert.True(t, c.Attached("alice"))
	assert.False(t, c.Attached("bob"))

	// Ten seconds away at 100/s land as pending earnings.
	balance, ok := c.Balance("alice")
	require.True(t, ok)
	assert.InDelta(t, 2000, balance, 10)

	c.flush(context.Background())
	stored, err := states.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.InDelta(t, 2000, stored.Money, 10)
}

func TestFlushPersistsPending(t *testing.T) {
	states := memory.NewGameStateStore()
	cache := memory.NewStateCache()
	seedState(t, states, "alice", 100)

	c := NewController(states, cache, time.Second, time.Hour, testLogger())
	require.NoError(t, c.Attach(context.Background(), "alice"))

	c.tick()
	c.tick()
	c.flush(context.Background())

	stored, err := states.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, float64(1200), stored.Money)
	assert.Equal(t, int64(2), stored.Version)

	cached, err := cache.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, float64(1200), cached.Money)
}

func TestFlushSurvivesConcurrentWriters(t *testing.T) {
	states := memory.NewGameStateStore()
	seedState(t, states, "alice", 100)

	c := NewController(states, nil, time.Second, time.Hour, testLogger())
	require.NoError(t, c.Attach(context.Background(), "alice"))

	c.tick()

	// Another writer (an egg purchase) advances the stored row.
	stored, err := states.Get(context.Background(), "alice")
	require.NoError(t, err)
	stored.Money -= 500
	stored.Version++
	require.NoError(t, states.Update(context.Background(), stored))

	c.flush(context.Background())

	final, err := states.Get(context.Background(), "alice")
	require.NoError(t, err)
	// The tick's 100 lands on top of the purchase, not over it.
	assert.Equal(t, float64(600), final.Money)
}

func TestDetachFlushes(t *testing.T) {
	states := memory.NewGameStateStore()
	seedState(t, states, "alice", 50)

	c := NewController(states, nil, time.Second, time.Hour, testLogger())
	require.NoError(t, c.Attach(context.Background(), "alice"))
	c.tick()

	c.Detach(context.Background(), "alice")

	_, ok := c.Balance("alice")
	assert.False(t, ok)
	assert.Empty(t, c.Active())

	stored, err := states.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, float64(1050), stored.Money)
}

func TestRunTicksAndSaves(t *testing.T) {
	states := memory.NewGameStateStore()
	seedState(t, states, "alice", 100)

	c := NewController(states, nil, 5*time.Millisecond, 20*time.Millisecond, testLogger())
	require.NoError(t, c.Attach(context.Background(), "alice"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Run(ctx))

	// The shutdown flush persists whatever ticked.
	stored, err := states.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Greater(t, stored.Money, float64(1000))
}

func TestAttachUnknownPlayer(t *testing.T) {
	states := memory.NewGameStateStore()
	c := NewController(states, nil, time.Second, time.Hour, testLogger())

	err := c.Attach(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
