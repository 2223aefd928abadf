package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/averyhart/pettycoon/internal/domain"
)

// TradeStore implements domain.TradeStore in memory. Settle writes
// through to the paired GameStateStore so both players' states and the
// offer resolve together.
type TradeStore struct {
	mu     sync.RWMutex
	offers map[string]domain.TradeOffer
	states *GameStateStore
}

var _ domain.TradeStore = (*TradeStore)(nil)

// NewTradeStore creates an empty in-memory trade store settling
// against the given state store.
func NewTradeStore(states *GameStateStore) *TradeStore {
	return &TradeStore{offers: make(map[string]domain.TradeOffer), states: states}
}

// Create inserts a new pending offer.
func (s *TradeStore) Create(_ context.Context, offer domain.TradeOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offers[offer.ID]; ok {
		return fmt.Errorf("memory: create trade %s: %w", offer.ID, domain.ErrAlreadyExists)
	}
	now := time.Now().UTC()
	offer.CreatedAt = now
	offer.UpdatedAt = now
	s.offers[offer.ID] = offer
	return nil
}

// GetByID loads a single offer.
func (s *TradeStore) GetByID(_ context.Context, id string) (domain.TradeOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offer, ok := s.offers[id]
	if !ok {
		return domain.TradeOffer{}, fmt.Errorf("memory: trade %s: %w", id, domain.ErrNotFound)
	}
	return offer, nil
}

// UpdateStatus moves a pending offer to a terminal status.
func (s *TradeStore) UpdateStatus(_ context.Context, id string, status domain.TradeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	offer, ok := s.offers[id]
	if !ok {
		return fmt.Errorf("memory: trade %s: %w", id, domain.ErrNotFound)
	}
	if offer.Status != domain.TradeStatusPending {
		return fmt.Errorf("memory: trade %s already resolved: %w", id, domain.ErrTradeInvalid)
	}
	offer.Status = status
	offer.UpdatedAt = time.Now().UTC()
	s.offers[id] = offer
	return nil
}

// ListForPlayer returns offers where the player is either party,
// newest first.
func (s *TradeStore) ListForPlayer(_ context.Context, playerID string, opts domain.ListOpts) ([]domain.TradeOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var offers []domain.TradeOffer
	for _, offer := range s.offers {
		if offer.FromPlayerID != playerID && offer.ToPlayerID != playerID {
			continue
		}
		if opts.Since != nil && offer.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && offer.CreatedAt.After(*opts.Until) {
			continue
		}
		offers = append(offers, offer)
	}
	sort.Slice(offers, func(i, j int) bool {
		return offers[i].CreatedAt.After(offers[j].CreatedAt)
	})
	return paginate(offers, opts), nil
}

// ListPendingExpired returns pending offers whose expiry has passed.
func (s *TradeStore) ListPendingExpired(_ context.Context, now time.Time, limit int) ([]domain.TradeOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var offers []domain.TradeOffer
	for _, offer := range s.offers {
		if offer.Status == domain.TradeStatusPending && offer.Expired(now) {
			offers = append(offers, offer)
		}
	}
	sort.Slice(offers, func(i, j int) bool {
		return offers[i].ExpiresAt.Before(offers[j].ExpiresAt)
	})
	if limit > 0 && len(offers) > limit {
		offers = offers[:limit]
	}
	return offers, nil
}

// Settle resolves the offer and writes both players' states; a version
// conflict on either side undoes everything.
func (s *TradeStore) Settle(_ context.Context, offerID string, status domain.TradeStatus, from, to domain.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, ok := s.offers[offerID]
	if !ok {
		return fmt.Errorf("memory: trade %s: %w", offerID, domain.ErrNotFound)
	}
	if offer.Status != domain.TradeStatusPending {
		return fmt.Errorf("memory: trade %s not pending: %w", offerID, domain.ErrTradeInvalid)
	}

	if err := s.states.updatePair(from, to); err != nil {
		return fmt.Errorf("memory: settle trade %s: %w", offerID, err)
	}

	offer.Status = status
	offer.UpdatedAt = time.Now().UTC()
	s.offers[offerID] = offer
	return nil
}

// ListResolvedBefore returns terminal offers last touched before the cutoff.
func (s *TradeStore) ListResolvedBefore(_ context.Context, before time.Time, limit int) ([]domain.TradeOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var offers []domain.TradeOffer
	for _, offer := range s.offers {
		if offer.Resolved() && offer.UpdatedAt.Before(before) {
			offers = append(offers, offer)
		}
	}
	sort.Slice(offers, func(i, j int) bool {
		return offers[i].UpdatedAt.Before(offers[j].UpdatedAt)
	})
	if limit > 0 && len(offers) > limit {
		offers = offers[:limit]
	}
	return offers, nil
}

// DeleteResolvedBefore removes terminal offers last touched before the cutoff.
func (s *TradeStore) DeleteResolvedBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, offer := range s.offers {
		if offer.Resolved() && offer.UpdatedAt.Before(before) {
			delete(s.offers, id)
			n++
		}
	}
	return n, nil
}

func paginate(offers []domain.TradeOffer, opts domain.ListOpts) []domain.TradeOffer {
	if opts.Offset > 0 {
		if opts.Offset >= len(offers) {
			return nil
		}
		offers = offers[opts.Offset:]
	}
	if opts.Limit > 0 && len(offers) > opts.Limit {
		offers = offers[:opts.Limit]
	}
	return offers
}
