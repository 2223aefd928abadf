package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/averyhart/pettycoon/internal/domain"
)

// StateCache implements domain.StateCache in memory, without TTLs.
type StateCache struct {
	mu     sync.RWMutex
	states map[string]domain.GameState
}

var _ domain.StateCache = (*StateCache)(nil)

// NewStateCache creates an empty in-memory state cache.
func NewStateCache() *StateCache {
	return &StateCache{states: make(map[string]domain.GameState)}
}

func (c *StateCache) Set(_ context.Context, state domain.GameState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[state.PlayerID] = cloneState(state)
	return nil
}

func (c *StateCache) Get(_ context.Context, playerID string) (domain.GameState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.states[playerID]
	if !ok {
		return domain.GameState{}, fmt.Errorf("memory: cached state %s: %w", playerID, domain.ErrNotFound)
	}
	return cloneState(state), nil
}

func (c *StateCache) Invalidate(_ context.Context, playerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, playerID)
	return nil
}

// LockManager implements domain.LockManager with process-local mutexes.
type LockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

var _ domain.LockManager = (*LockManager)(nil)

// NewLockManager creates an empty in-memory lock manager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]bool)}
}

// Acquire takes the named lock. The ttl is ignored; process-local
// locks cannot outlive the process.
func (m *LockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, fmt.Errorf("memory: lock %s: %w", key, domain.ErrLockHeld)
	}
	m.held[key] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}

// RateLimiter implements domain.RateLimiter with per-key sliding windows.
type RateLimiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates an empty in-memory rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{hits: make(map[string][]time.Time)}
}

func (l *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)
	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= limit {
		l.hits[key] = kept
		return false, nil
	}
	l.hits[key] = append(kept, now)
	return true, nil
}

func (l *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		ok, err := l.Allow(ctx, key, 10, time.Second)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return domain.ErrContextDone
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// SignalBus implements domain.SignalBus with process-local channels.
// Stream entries are kept in an append-only slice per stream.
type SignalBus struct {
	mu      sync.Mutex
	subs    map[string][]chan []byte
	streams map[string][]domain.StreamMessage
	nextID  int64
}

var _ domain.SignalBus = (*SignalBus)(nil)

// NewSignalBus creates an empty in-memory signal bus.
func NewSignalBus() *SignalBus {
	return &SignalBus{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][]domain.StreamMessage),
		nextID:  1,
	}
}

func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	subs := make([]chan []byte, len(b.subs[channel]))
	copy(subs, b.subs[channel])
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- payload:
		default:
			// Slow subscribers drop messages rather than block publishers.
		}
	}
	return nil
}

func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (b *SignalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream] = append(b.streams[stream], domain.StreamMessage{
		ID:      fmt.Sprintf("%d-0", b.nextID),
		Payload: payload,
	})
	b.nextID++
	return nil
}

func (b *SignalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []domain.StreamMessage
	for _, msg := range b.streams[stream] {
		if lastID != "" && msg.ID <= lastID {
			continue
		}
		out = append(out, msg)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out, nil
}
