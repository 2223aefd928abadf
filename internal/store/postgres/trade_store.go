package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averyhart/pettycoon/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Each side
// of an offer is a JSONB document of money plus pet snapshots.
type TradeStore struct {
	pool *pgxpool.Pool
}

var _ domain.TradeStore = (*TradeStore)(nil)

// NewTradeStore creates a new TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeColumns = `id, from_player_id, to_player_id, from_items, to_items, status, expires_at, created_at, updated_at`

// Create inserts a new pending offer.
func (s *TradeStore) Create(ctx context.Context, offer domain.TradeOffer) error {
	fromJSON, err := json.Marshal(offer.FromItems)
	if err != nil {
		return fmt.Errorf("postgres: marshal from items: %w", err)
	}
	toJSON, err := json.Marshal(offer.ToItems)
	if err != nil {
		return fmt.Errorf("postgres: marshal to items: %w", err)
	}

	const query = `
		INSERT INTO trade_offers (id, from_player_id, to_player_id, from_items, to_items, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`
	_, err = s.pool.Exec(ctx, query,
		offer.ID, offer.FromPlayerID, offer.ToPlayerID, fromJSON, toJSON, offer.Status, offer.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("postgres: create trade %s: %w", offer.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create trade %s: %w", offer.ID, err)
	}
	return nil
}

// GetByID loads a single offer.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.TradeOffer, error) {
	const query = `SELECT ` + tradeColumns + ` FROM trade_offers WHERE id = $1`
	offer, err := scanTradeOffer(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradeOffer{}, fmt.Errorf("postgres: trade %s: %w", id, domain.ErrNotFound)
		}
		return domain.TradeOffer{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return offer, nil
}

// UpdateStatus moves a pending offer to a terminal status. Offers
// already resolved are left untouched and reported as ErrTradeInvalid.
func (s *TradeStore) UpdateStatus(ctx context.Context, id string, status domain.TradeStatus) error {
	const query = `
		UPDATE trade_offers SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	tag, err := s.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("postgres: update trade %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM trade_offers WHERE id = $1)", id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: update trade %s status: %w", id, err)
		}
		if !exists {
			return fmt.Errorf("postgres: trade %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("postgres: trade %s already resolved: %w", id, domain.ErrTradeInvalid)
	}
	return nil
}

// ListForPlayer returns offers where the player is either party,
// newest first.
func (s *TradeStore) ListForPlayer(ctx context.Context, playerID string, opts domain.ListOpts) ([]domain.TradeOffer, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_offers
		WHERE (from_player_id = $1 OR to_player_id = $1)`
	args := []any{playerID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	return s.queryTrades(ctx, query, args...)
}

// ListPendingExpired returns pending offers whose expiry has passed.
func (s *TradeStore) ListPendingExpired(ctx context.Context, now time.Time, limit int) ([]domain.TradeOffer, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_offers
		WHERE status = 'pending' AND expires_at <= $1
		ORDER BY expires_at ASC`
	args := []any{now}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.queryTrades(ctx, query, args...)
}

// Settle atomically resolves the offer and writes both players'
// post-exchange states in one transaction. Either side's version
// check failing rolls the whole exchange back.
func (s *TradeStore) Settle(ctx context.Context, offerID string, status domain.TradeStatus, from, to domain.GameState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: settle trade %s: begin: %w", offerID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE trade_offers SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, offerID, status)
	if err != nil {
		return fmt.Errorf("postgres: settle trade %s: mark: %w", offerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: trade %s not pending: %w", offerID, domain.ErrTradeInvalid)
	}

	for _, state := range []domain.GameState{from, to} {
		petsJSON, slotsJSON, err := marshalStateDocs(state)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE game_states
			SET money = $2, store_type = $3, pets = $4, store_slots = $5,
			    version = $6, last_saved = $7, updated_at = NOW()
			WHERE player_id = $1 AND version = $6 - 1`,
			state.PlayerID, state.Money, state.StoreType, petsJSON, slotsJSON, state.Version, state.LastSaved)
		if err != nil {
			return fmt.Errorf("postgres: settle trade %s: write state %s: %w", offerID, state.PlayerID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: settle trade %s: state %s: %w", offerID, state.PlayerID, domain.ErrStaleState)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: settle trade %s: commit: %w", offerID, err)
	}
	return nil
}

// ListResolvedBefore returns terminal offers last touched before the cutoff.
func (s *TradeStore) ListResolvedBefore(ctx context.Context, before time.Time, limit int) ([]domain.TradeOffer, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_offers
		WHERE status <> 'pending' AND updated_at < $1
		ORDER BY updated_at ASC`
	args := []any{before}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.queryTrades(ctx, query, args...)
}

// DeleteResolvedBefore removes terminal offers last touched before the
// cutoff, returning the number deleted.
func (s *TradeStore) DeleteResolvedBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trade_offers WHERE status <> 'pending' AND updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete resolved trades: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *TradeStore) queryTrades(ctx context.Context, query string, args ...any) ([]domain.TradeOffer, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query trades: %w", err)
	}
	defer rows.Close()

	var offers []domain.TradeOffer
	for rows.Next() {
		offer, err := scanTradeOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query trades rows: %w", err)
	}
	return offers, nil
}

func scanTradeOffer(row interface{ Scan(dest ...any) error }) (domain.TradeOffer, error) {
	var (
		offer    domain.TradeOffer
		fromJSON []byte
		toJSON   []byte
	)
	if err := row.Scan(
		&offer.ID, &offer.FromPlayerID, &offer.ToPlayerID,
		&fromJSON, &toJSON, &offer.Status, &offer.ExpiresAt, &offer.CreatedAt, &offer.UpdatedAt,
	); err != nil {
		return domain.TradeOffer{}, err
	}
	if err := json.Unmarshal(fromJSON, &offer.FromItems); err != nil {
		return domain.TradeOffer{}, fmt.Errorf("unmarshal from items: %w", err)
	}
	if err := json.Unmarshal(toJSON, &offer.ToItems); err != nil {
		return domain.TradeOffer{}, fmt.Errorf("unmarshal to items: %w", err)
	}
	return offer, nil
}
