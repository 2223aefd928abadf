// Package session drives active play: a per-second income tick over
// the attached players and a slower autosave that persists what the
// ticks accrued. The two loops run on independent timers so a slow or
// failing save never stalls income.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/averyhart/pettycoon/internal/domain"
	"github.com/averyhart/pettycoon/internal/income"
)

const (
	// DefaultTickInterval is how often live income accrues.
	DefaultTickInterval = time.Second
	// DefaultSaveInterval is how often accrued income persists.
	DefaultSaveInterval = 30 * time.Second
)

type playerSession struct {
	state   domain.GameState
	pending float64
}

// Controller tracks attached players, ticks their placed pets, and
// periodically flushes balances to the store.
type Controller struct {
	states    domain.GameStateStore
	cache     domain.StateCache
	logger    *slog.Logger
	tickEvery time.Duration
	saveEvery time.Duration

	mu     sync.Mutex
	active map[string]*playerSession
}

// NewController creates a Controller. Zero intervals fall back to the
// defaults.
func NewController(
	states domain.GameStateStore,
	cache domain.StateCache,
	tickEvery, saveEvery time.Duration,
	logger *slog.Logger,
) *Controller {
	if tickEvery <= 0 {
		tickEvery = DefaultTickInterval
	}
	if saveEvery <= 0 {
		saveEvery = DefaultSaveInterval
	}
	return &Controller{
		states:    states,
		cache:     cache,
		logger:    logger.With(slog.String("component", "session")),
		tickEvery: tickEvery,
		saveEvery: saveEvery,
		active:    make(map[string]*playerSession),
	}
}

// Attach starts ticking for a player using their stored state.
// Attaching an already-active player reloads the state.
//
// Any idle gap since the last save is credited here as pending
// earnings, so a client that attaches without fetching its state first
// still gets paid for the time away. Fetching first saves with a fresh
// timestamp and the gap is zero.
func (c *Controller) Attach(ctx context.Context, playerID string) error {
	state, err := c.states.Get(ctx, playerID)
	if err != nil {
		return fmt.Errorf("session: attach %s: %w", playerID, err)
	}

	sess := &playerSession{state: state}
	if elapsed := time.Since(state.LastSaved).Seconds(); elapsed >= 1 {
		if earned := income.AccumulatedTotal(&state, elapsed); earned > 0 {
			sess.state.Money += earned
			sess.pending += earned
		}
	}

	c.mu.Lock()
	c.active[playerID] = sess
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "player attached", slog.String("player_id", playerID))
	return nil
}

// Detach flushes any pending earnings and stops ticking the player.
func (c *Controller) Detach(ctx context.Context, playerID string) {
	c.mu.Lock()
	sess, ok := c.active[playerID]
	if ok {
		delete(c.active, playerID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	if err := c.persist(ctx, playerID, sess); err != nil {
		c.logger.WarnContext(ctx, "detach flush failed",
			slog.String("player_id", playerID),
			slog.String("error", err.Error()),
		)
	}
	c.logger.InfoContext(ctx, "player detached", slog.String("player_id", playerID))
}

// Active returns the IDs of currently attached players.
func (c *Controller) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	return ids
}

// Attached reports whether the player currently has a live session.
func (c *Controller) Attached(playerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[playerID]
	return ok
}

// Balance returns the live in-memory balance for an attached player.
func (c *Controller) Balance(playerID string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.active[playerID]
	if !ok {
		return 0, false
	}
	return sess.state.Money, true
}

// Run drives the tick and autosave loops until the context ends. The
// final flush runs on shutdown so no ticked income is lost.
func (c *Controller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.tickLoop(ctx) })
	g.Go(func() error { return c.saveLoop(ctx) })

	err := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(flushCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *Controller) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Controller) saveLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.saveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.flush(ctx)
		}
	}
}

// tick adds one interval's earnings to every attached session. Rates
// are per second, so the gain scales with the configured interval.
// Purely in-memory; persistence is the save loop's job.
func (c *Controller) tick() {
	seconds := c.tickEvery.Seconds()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sess := range c.active {
		gained := income.TickTotal(&sess.state) * seconds
		if gained == 0 {
			continue
		}
		sess.state.Money += gained
		sess.pending += gained
	}
}

// flush persists every session with pending earnings. Failures are
// logged and the pending amount kept for the next attempt.
func (c *Controller) flush(ctx context.Context) {
	c.mu.Lock()
	snapshot := make(map[string]*playerSession, len(c.active))
	for id, sess := range c.active {
		if sess.pending > 0 {
			snapshot[id] = sess
		}
	}
	c.mu.Unlock()

	for id, sess := range snapshot {
		if err := c.persist(ctx, id, sess); err != nil {
			c.logger.WarnContext(ctx, "autosave failed",
				slog.String("player_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

// persist writes the session's earnings on top of the stored state.
// Other writers (purchases, trades) may have advanced the row, so the
// pending amount is applied to a fresh read rather than blindly
// overwriting.
func (c *Controller) persist(ctx context.Context, playerID string, sess *playerSession) error {
	c.mu.Lock()
	pending := sess.pending
	c.mu.Unlock()
	if pending == 0 {
		return nil
	}

	stored, err := c.states.Get(ctx, playerID)
	if err != nil {
		return err
	}
	stored.Money += pending
	stored.LastSaved = time.Now().UTC()
	stored.Version++
	if err := c.states.Update(ctx, stored); err != nil {
		return err
	}

	c.mu.Lock()
	sess.pending -= pending
	sess.state = stored
	sess.state.Money += sess.pending
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.Set(ctx, stored); err != nil {
			c.logger.WarnContext(ctx, "state cache write failed",
				slog.String("player_id", playerID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
