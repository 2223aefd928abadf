// Package memory implements domain store interfaces with in-process
// maps. It backs dev mode, where no PostgreSQL is configured, and the
// service tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/averyhart/pettycoon/internal/domain"
)

// GameStateStore implements domain.GameStateStore in memory.
type GameStateStore struct {
	mu     sync.RWMutex
	states map[string]domain.GameState
}

var _ domain.GameStateStore = (*GameStateStore)(nil)

// NewGameStateStore creates an empty in-memory state store.
func NewGameStateStore() *GameStateStore {
	return &GameStateStore{states: make(map[string]domain.GameState)}
}

// Create inserts a fresh save state for a player.
func (s *GameStateStore) Create(_ context.Context, state domain.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[state.PlayerID]; ok {
		return fmt.Errorf("memory: create game state %s: %w", state.PlayerID, domain.ErrAlreadyExists)
	}
	s.states[state.PlayerID] = cloneState(state)
	return nil
}

// Get loads a player's save state.
func (s *GameStateStore) Get(_ context.Context, playerID string) (domain.GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[playerID]
	if !ok {
		return domain.GameState{}, fmt.Errorf("memory: game state %s: %w", playerID, domain.ErrNotFound)
	}
	return cloneState(state), nil
}

// Update writes a save state guarded by its version.
func (s *GameStateStore) Update(_ context.Context, state domain.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(state)
}

func (s *GameStateStore) updateLocked(state domain.GameState) error {
	current, ok := s.states[state.PlayerID]
	if !ok {
		return fmt.Errorf("memory: game state %s: %w", state.PlayerID, domain.ErrNotFound)
	}
	if current.Version != state.Version-1 {
		return fmt.Errorf("memory: update game state %s: %w", state.PlayerID, domain.ErrStaleState)
	}
	s.states[state.PlayerID] = cloneState(state)
	return nil
}

// updatePair writes two states under one lock; a failure on the
// second write restores the first.
func (s *GameStateStore) updatePair(from, to domain.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup, ok := s.states[from.PlayerID]
	if !ok {
		return fmt.Errorf("memory: game state %s: %w", from.PlayerID, domain.ErrNotFound)
	}
	if err := s.updateLocked(from); err != nil {
		return err
	}
	if err := s.updateLocked(to); err != nil {
		s.states[from.PlayerID] = backup
		return err
	}
	return nil
}

// Delete removes a player's save state.
func (s *GameStateStore) Delete(_ context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[playerID]; !ok {
		return fmt.Errorf("memory: game state %s: %w", playerID, domain.ErrNotFound)
	}
	delete(s.states, playerID)
	return nil
}

func cloneState(state domain.GameState) domain.GameState {
	out := state
	out.Pets = make([]domain.Pet, len(state.Pets))
	copy(out.Pets, state.Pets)
	out.StoreSlots = make([]domain.StoreSlot, len(state.StoreSlots))
	for i, slot := range state.StoreSlots {
		out.StoreSlots[i] = slot
		if slot.PetID != nil {
			id := *slot.PetID
			out.StoreSlots[i].PetID = &id
		}
	}
	return out
}
