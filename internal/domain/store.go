package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// GameStateStore persists player save states.
//
// Update performs a compare-and-swap: the given state carries the NEW
// version number, and the write succeeds only if the stored row still
// holds version-1. A mismatch returns ErrStaleState.
type GameStateStore interface {
	Create(ctx context.Context, state GameState) error
	Get(ctx context.Context, playerID string) (GameState, error)
	Update(ctx context.Context, state GameState) error
	Delete(ctx context.Context, playerID string) error
}

// TradeStore persists trade offers.
//
// Settle atomically marks the offer with a terminal status and writes
// both players' post-exchange states; either all three rows change or
// none do.
type TradeStore interface {
	Create(ctx context.Context, offer TradeOffer) error
	GetByID(ctx context.Context, id string) (TradeOffer, error)
	UpdateStatus(ctx context.Context, id string, status TradeStatus) error
	ListForPlayer(ctx context.Context, playerID string, opts ListOpts) ([]TradeOffer, error)
	ListPendingExpired(ctx context.Context, now time.Time, limit int) ([]TradeOffer, error)
	Settle(ctx context.Context, offerID string, status TradeStatus, from, to GameState) error
	ListResolvedBefore(ctx context.Context, before time.Time, limit int) ([]TradeOffer, error)
	DeleteResolvedBefore(ctx context.Context, before time.Time) (int64, error)
}

// UserStore persists player accounts.
type UserStore interface {
	Upsert(ctx context.Context, user User) error
	GetByID(ctx context.Context, id string) (User, error)
	List(ctx context.Context, opts ListOpts) ([]User, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
