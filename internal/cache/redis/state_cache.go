package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/averyhart/pettycoon/internal/domain"
)

const stateTTL = 10 * time.Minute

// StateCache implements domain.StateCache using Redis hashes with the
// JSON-serialized save state in field "data".
//
// Key schema:
//
//	gamestate:{playerID} - hash with field "data" containing JSON
type StateCache struct {
	rdb *redis.Client
}

var _ domain.StateCache = (*StateCache)(nil)

// NewStateCache creates a StateCache backed by the given Client.
func NewStateCache(c *Client) *StateCache {
	return &StateCache{rdb: c.Underlying()}
}

func stateKey(playerID string) string { return "gamestate:" + playerID }

// Set stores a save state with a 10-minute TTL.
func (sc *StateCache) Set(ctx context.Context, state domain.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redis: marshal state %s: %w", state.PlayerID, err)
	}

	key := stateKey(state.PlayerID)
	pipe := sc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, stateTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set state %s: %w", state.PlayerID, err)
	}
	return nil
}

// Get retrieves a save state by player ID. It returns
// domain.ErrNotFound when the key does not exist.
func (sc *StateCache) Get(ctx context.Context, playerID string) (domain.GameState, error) {
	data, err := sc.rdb.HGet(ctx, stateKey(playerID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.GameState{}, domain.ErrNotFound
		}
		return domain.GameState{}, fmt.Errorf("redis: get state %s: %w", playerID, err)
	}

	var state domain.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.GameState{}, fmt.Errorf("redis: unmarshal state %s: %w", playerID, err)
	}
	return state, nil
}

// Invalidate removes a save state from the cache.
func (sc *StateCache) Invalidate(ctx context.Context, playerID string) error {
	if err := sc.rdb.Del(ctx, stateKey(playerID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate state %s: %w", playerID, err)
	}
	return nil
}
