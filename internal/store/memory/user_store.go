package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/averyhart/pettycoon/internal/domain"
)

// UserStore implements domain.UserStore in memory.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

var _ domain.UserStore = (*UserStore)(nil)

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

// Upsert inserts or refreshes a player account.
func (s *UserStore) Upsert(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = user
	return nil
}

// GetByID loads a player account.
func (s *UserStore) GetByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("memory: user %s: %w", id, domain.ErrNotFound)
	}
	return user, nil
}

// List returns player accounts, newest first.
func (s *UserStore) List(_ context.Context, opts domain.ListOpts) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(users) {
			return nil, nil
		}
		users = users[opts.Offset:]
	}
	if opts.Limit > 0 && len(users) > opts.Limit {
		users = users[:opts.Limit]
	}
	return users, nil
}
