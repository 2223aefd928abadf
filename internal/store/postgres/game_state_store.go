package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averyhart/pettycoon/internal/domain"
)

// GameStateStore implements domain.GameStateStore using PostgreSQL.
// Pets and store slots are stored as JSONB documents on the row.
type GameStateStore struct {
	pool *pgxpool.Pool
}

var _ domain.GameStateStore = (*GameStateStore)(nil)

// NewGameStateStore creates a new GameStateStore backed by the given pool.
func NewGameStateStore(pool *pgxpool.Pool) *GameStateStore {
	return &GameStateStore{pool: pool}
}

const gameStateColumns = `player_id, money, store_type, pets, store_slots, version, last_saved, updated_at`

// Create inserts a fresh save state for a player.
func (s *GameStateStore) Create(ctx context.Context, state domain.GameState) error {
	petsJSON, slotsJSON, err := marshalStateDocs(state)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO game_states (player_id, money, store_type, pets, store_slots, version, last_saved, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`
	_, err = s.pool.Exec(ctx, query,
		state.PlayerID, state.Money, state.StoreType, petsJSON, slotsJSON, state.Version, state.LastSaved)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("postgres: create game state %s: %w", state.PlayerID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create game state %s: %w", state.PlayerID, err)
	}
	return nil
}

// Get loads a player's save state.
func (s *GameStateStore) Get(ctx context.Context, playerID string) (domain.GameState, error) {
	const query = `SELECT ` + gameStateColumns + ` FROM game_states WHERE player_id = $1`
	state, err := scanGameState(s.pool.QueryRow(ctx, query, playerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.GameState{}, fmt.Errorf("postgres: game state %s: %w", playerID, domain.ErrNotFound)
		}
		return domain.GameState{}, fmt.Errorf("postgres: get game state %s: %w", playerID, err)
	}
	return state, nil
}

// Update writes a save state guarded by its version: the row must
// still hold state.Version-1 or the write fails with ErrStaleState.
func (s *GameStateStore) Update(ctx context.Context, state domain.GameState) error {
	petsJSON, slotsJSON, err := marshalStateDocs(state)
	if err != nil {
		return err
	}

	const query = `
		UPDATE game_states
		SET money = $2, store_type = $3, pets = $4, store_slots = $5,
		    version = $6, last_saved = $7, updated_at = NOW()
		WHERE player_id = $1 AND version = $6 - 1`
	tag, err := s.pool.Exec(ctx, query,
		state.PlayerID, state.Money, state.StoreType, petsJSON, slotsJSON, state.Version, state.LastSaved)
	if err != nil {
		return fmt.Errorf("postgres: update game state %s: %w", state.PlayerID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM game_states WHERE player_id = $1)", state.PlayerID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: update game state %s: %w", state.PlayerID, err)
		}
		if !exists {
			return fmt.Errorf("postgres: game state %s: %w", state.PlayerID, domain.ErrNotFound)
		}
		return fmt.Errorf("postgres: update game state %s: %w", state.PlayerID, domain.ErrStaleState)
	}
	return nil
}

// Delete removes a player's save state.
func (s *GameStateStore) Delete(ctx context.Context, playerID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM game_states WHERE player_id = $1`, playerID)
	if err != nil {
		return fmt.Errorf("postgres: delete game state %s: %w", playerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: game state %s: %w", playerID, domain.ErrNotFound)
	}
	return nil
}

func marshalStateDocs(state domain.GameState) (pets, slots []byte, err error) {
	if state.Pets == nil {
		state.Pets = []domain.Pet{}
	}
	if state.StoreSlots == nil {
		state.StoreSlots = []domain.StoreSlot{}
	}
	pets, err = json.Marshal(state.Pets)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal pets: %w", err)
	}
	slots, err = json.Marshal(state.StoreSlots)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal store slots: %w", err)
	}
	return pets, slots, nil
}

func scanGameState(row interface{ Scan(dest ...any) error }) (domain.GameState, error) {
	var (
		state     domain.GameState
		petsJSON  []byte
		slotsJSON []byte
	)
	if err := row.Scan(
		&state.PlayerID, &state.Money, &state.StoreType,
		&petsJSON, &slotsJSON, &state.Version, &state.LastSaved, &state.UpdatedAt,
	); err != nil {
		return domain.GameState{}, err
	}
	if err := json.Unmarshal(petsJSON, &state.Pets); err != nil {
		return domain.GameState{}, fmt.Errorf("unmarshal pets: %w", err)
	}
	if err := json.Unmarshal(slotsJSON, &state.StoreSlots); err != nil {
		return domain.GameState{}, fmt.Errorf("unmarshal store slots: %w", err)
	}
	return state, nil
}
