package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/averyhart/pettycoon/internal/catalog"
	"github.com/averyhart/pettycoon/internal/domain"
	"github.com/averyhart/pettycoon/internal/income"
	"github.com/averyhart/pettycoon/internal/loot"
)

const (
	// EventChannel carries live game events for websocket fan-out.
	EventChannel = "game.events"
	// EventStream is the durable log of the same events.
	EventStream = "game.events.log"

	// DefaultStartingMoney seeds a fresh save.
	DefaultStartingMoney = 1000

	purchaseLimit  = 5
	purchaseWindow = time.Second
)

// Presence reports whether a player currently has a live ticking
// session. The session controller implements it.
type Presence interface {
	Attached(playerID string) bool
}

// GameService handles the single-player game loop: save states, egg
// purchases, store upgrades, and slot assignment.
type GameService struct {
	states   domain.GameStateStore
	users    domain.UserStore
	cache    domain.StateCache
	limiter  domain.RateLimiter
	bus      domain.SignalBus
	audit    domain.AuditStore
	catalog  *catalog.Catalog
	roller   *loot.Roller
	presence Presence
	logger   *slog.Logger
	now      func() time.Time
}

// NewGameService creates a GameService with all required dependencies.
func NewGameService(
	states domain.GameStateStore,
	users domain.UserStore,
	cache domain.StateCache,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	audit domain.AuditStore,
	cat *catalog.Catalog,
	roller *loot.Roller,
	logger *slog.Logger,
) *GameService {
	return &GameService{
		states:  states,
		users:   users,
		cache:   cache,
		limiter: limiter,
		bus:     bus,
		audit:   audit,
		catalog: cat,
		roller:  roller,
		logger:  logger.With(slog.String("component", "game_service")),
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *GameService) WithClock(now func() time.Time) *GameService {
	s.now = now
	return s
}

// WithPresence wires the live-session tracker so idle catch-up never
// pays for seconds a ticking session already covers.
func (s *GameService) WithPresence(p Presence) *GameService {
	s.presence = p
	return s
}

// Catalog exposes the static content for read endpoints.
func (s *GameService) Catalog() *catalog.Catalog {
	return s.catalog
}

// GetState loads the player's save, creating a default one on first
// sight. When the save has been idle it applies offline catch-up
// earnings for the placed pets and reports the lump sum.
func (s *GameService) GetState(ctx context.Context, playerID string) (domain.GameState, *domain.OfflineReport, error) {
	state, err := s.loadState(ctx, playerID)
	if errors.Is(err, domain.ErrNotFound) {
		state, err = s.createDefault(ctx, playerID)
		if err != nil {
			return domain.GameState{}, nil, err
		}
		s.cacheState(ctx, state)
		return state, nil, nil
	}
	if err != nil {
		return domain.GameState{}, nil, fmt.Errorf("game_service: get state: %w", err)
	}

	// A live session's tick loop is already paying for this time, so
	// catch-up would double-count it.
	if s.presence != nil && s.presence.Attached(playerID) {
		return state, nil, nil
	}

	now := s.now().UTC()
	elapsed := now.Sub(state.LastSaved).Seconds()
	if elapsed < 1 {
		s.cacheState(ctx, state)
		return state, nil, nil
	}

	earned := income.AccumulatedTotal(&state, elapsed)
	state.Money += earned
	state.LastSaved = now
	state.Version++
	if err := s.states.Update(ctx, state); err != nil {
		return domain.GameState{}, nil, fmt.Errorf("game_service: apply offline earnings: %w", err)
	}
	s.cacheState(ctx, state)

	if earned > 0 {
		s.logger.InfoContext(ctx, "offline earnings applied",
			slog.String("player_id", playerID),
			slog.Float64("seconds", elapsed),
			slog.Float64("earned", earned),
		)
	}
	return state, &domain.OfflineReport{
		Away:    time.Duration(elapsed * float64(time.Second)),
		Seconds: elapsed,
		Earned:  earned,
	}, nil
}

// SubmitState validates and persists a client-pushed save. The stored
// version must match what the client loaded or the save is rejected
// with ErrStaleState.
func (s *GameService) SubmitState(ctx context.Context, state domain.GameState) (domain.GameState, error) {
	if err := s.validateState(&state); err != nil {
		return domain.GameState{}, err
	}

	state.LastSaved = s.now().UTC()
	state.Version++
	if err := s.states.Update(ctx, state); err != nil {
		return domain.GameState{}, fmt.Errorf("game_service: submit state: %w", err)
	}
	s.cacheState(ctx, state)
	return state, nil
}

// Reset replaces the player's save with a fresh default. The record
// itself survives; only its contents reset.
func (s *GameService) Reset(ctx context.Context, playerID string) (domain.GameState, error) {
	current, err := s.states.Get(ctx, playerID)
	if errors.Is(err, domain.ErrNotFound) {
		state, err := s.createDefault(ctx, playerID)
		if err != nil {
			return domain.GameState{}, err
		}
		return state, nil
	}
	if err != nil {
		return domain.GameState{}, fmt.Errorf("game_service: reset: %w", err)
	}

	state := s.defaultState(playerID)
	state.Version = current.Version + 1
	if err := s.states.Update(ctx, state); err != nil {
		return domain.GameState{}, fmt.Errorf("game_service: reset: %w", err)
	}
	s.cacheState(ctx, state)
	s.publishEvent(ctx, domain.EventStateReset, []string{playerID}, nil)
	s.auditLog(ctx, "state_reset", map[string]any{"player_id": playerID})
	return state, nil
}

// PurchaseEgg buys and opens an egg, appending the hatched pet to the
// collection unplaced. The full collection counts against the tier
// capacity, so a full store blocks purchases even with empty slots.
func (s *GameService) PurchaseEgg(ctx context.Context, playerID, eggID string) (domain.GameState, domain.Pet, error) {
	allowed, err := s.limiter.Allow(ctx, "purchase:"+playerID, purchaseLimit, purchaseWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "purchase rate limiter unavailable", slog.String("error", err.Error()))
	} else if !allowed {
		return domain.GameState{}, domain.Pet{}, fmt.Errorf("game_service: purchases too fast: %w", domain.ErrRateLimited)
	}

	egg, err := s.catalog.Egg(eggID)
	if err != nil {
		return domain.GameState{}, domain.Pet{}, fmt.Errorf("game_service: %w", err)
	}

	state, err := s.states.Get(ctx, playerID)
	if err != nil {
		return domain.GameState{}, domain.Pet{}, fmt.Errorf("game_service: purchase egg: %w", err)
	}
	tier, err := s.catalog.Tier(state.StoreType)
	if err != nil {
		return domain.GameState{}, domain.Pet{}, fmt.Errorf("game_service: purchase egg: %w", err)
	}

	if state.Money < egg.Cost {
		return domain.GameState{}, domain.Pet{}, fmt.Errorf(
			"game_service: you need $%s to buy %s: %w", FormatMoney(egg.Cost), egg.Name, domain.ErrInsufficientFunds)
	}
	if len(state.Pets) >= tier.Capacity {
		return domain.GameState{}, domain.Pet{}, fmt.Errorf(
			"game_service: %s holds %d pets, upgrade to buy more: %w", tier.Name, tier.Capacity, domain.ErrStoreFull)
	}

	pet := s.roller.Hatch(egg)
	state.Money -= egg.Cost
	state.Pets = append(state.Pets, pet)
	state.LastSaved = s.now().UTC()
	state.Version++
	if err := s.states.Update(ctx, state); err != nil {
		return domain.GameState{}, domain.Pet{}, fmt.Errorf("game_service: purchase egg: %w", err)
	}
	s.cacheState(ctx, state)

	s.publishEvent(ctx, domain.EventEggOpened, []string{playerID}, map[string]any{
		"egg_id":   egg.ID,
		"pet_id":   pet.ID,
		"pet_name": pet.Name,
		"income":   pet.Income,
	})
	s.auditLog(ctx, "egg_opened", map[string]any{
		"player_id": playerID,
		"egg_id":    egg.ID,
		"pet_name":  pet.Name,
		"cost":      egg.Cost,
	})
	s.logger.InfoContext(ctx, "egg opened",
		slog.String("player_id", playerID),
		slog.String("egg_id", egg.ID),
		slog.String("pet", pet.Name),
	)
	return state, pet, nil
}

// UpgradeStore moves the save to the next tier, rebuilding the slot
// sequence to the new capacity. Occupants keep their positions up to
// the overlap of old and new lengths.
func (s *GameService) UpgradeStore(ctx context.Context, playerID string) (domain.GameState, error) {
	state, err := s.states.Get(ctx, playerID)
	if err != nil {
		return domain.GameState{}, fmt.Errorf("game_service: upgrade store: %w", err)
	}

	next, ok, err := s.catalog.NextTier(state.StoreType)
	if err != nil {
		return domain.GameState{}, fmt.Errorf("game_service: upgrade store: %w", err)
	}
	if !ok {
		return domain.GameState{}, fmt.Errorf("game_service: store already at the top tier: %w", domain.ErrValidation)
	}
	if state.Money < next.Cost {
		return domain.GameState{}, fmt.Errorf(
			"game_service: you need $%s to upgrade to %s: %w", FormatMoney(next.Cost), next.Name, domain.ErrInsufficientFunds)
	}

	slots := make([]domain.StoreSlot, next.Capacity)
	for i := range slots {
		slots[i] = domain.StoreSlot{Position: i}
		if i < len(state.StoreSlots) {
			slots[i].PetID = state.StoreSlots[i].PetID
		}
	}

	state.Money -= next.Cost
	state.StoreType = next.ID
	state.StoreSlots = slots
	state.LastSaved = s.now().UTC()
	state.Version++
	if err := s.states.Update(ctx, state); err != nil {
		return domain.GameState{}, fmt.Errorf("game_service: upgrade store: %w", err)
	}
	s.cacheState(ctx, state)

	s.publishEvent(ctx, domain.EventStoreUpgraded, []string{playerID}, map[string]any{
		"tier":     next.ID,
		"capacity": next.Capacity,
	})
	s.auditLog(ctx, "store_upgraded", map[string]any{
		"player_id": playerID,
		"tier":      next.ID,
		"cost":      next.Cost,
	})
	return state, nil
}

// AssignPet places an owned pet into an empty slot.
func (s *GameService) AssignPet(ctx context.Context, playerID, petID string, position int) (domain.GameState, error) {
	state, err := s.states.Get(ctx, playerID)
	if err != nil {
		return domain.GameState{}, fmt.Errorf("game_service: assign pet: %w", err)
	}

	pet, owned := state.Pet(petID)
	if !owned {
		return domain.GameState{}, fmt.Errorf("game_service: pet %s: %w", petID, domain.ErrNotOwned)
	}
	if _, placed := state.SlotOf(petID); placed {
		return domain.GameState{}, fmt.Errorf("game_service: %s is already working a slot: %w", pet.Name, domain.ErrPetAlreadyPlaced)
	}
	slot, ok := state.SlotAt(position)
	if !ok {
		return domain.GameState{}, fmt.Errorf("game_service: slot %d: %w", position, domain.ErrNotFound)
	}
	if slot.PetID != nil {
		return domain.GameState{}, fmt.Errorf("game_service: slot %d: %w", position, domain.ErrSlotOccupied)
	}

	slot.PetID = &pet.ID
	state.LastSaved = s.now().UTC()
	state.Version++
	if err := s.states.Update(ctx, state); err != nil {
		return domain.GameState{}, fmt.Errorf("game_service: assign pet: %w", err)
	}
	s.cacheState(ctx, state)

	s.publishEvent(ctx, domain.EventPetAssigned, []string{playerID}, map[string]any{
		"pet_id":   petID,
		"position": position,
	})
	return state, nil
}

// UnassignSlot clears a slot's occupant. Clearing an already-empty
// slot is a no-op, not an error.
func (s *GameService) UnassignSlot(ctx context.Context, playerID string, position int) (domain.GameState, error) {
	state, err := s.states.Get(ctx, playerID)
	if err != nil {
		return domain.GameState{}, fmt.Errorf("game_service: unassign slot: %w", err)
	}

	slot, ok := state.SlotAt(position)
	if !ok {
		return domain.GameState{}, fmt.Errorf("game_service: slot %d: %w", position, domain.ErrNotFound)
	}
	if slot.PetID == nil {
		return state, nil
	}
	petID := *slot.PetID
	slot.PetID = nil

	state.LastSaved = s.now().UTC()
	state.Version++
	if err := s.states.Update(ctx, state); err != nil {
		return domain.GameState{}, fmt.Errorf("game_service: unassign slot: %w", err)
	}
	s.cacheState(ctx, state)

	s.publishEvent(ctx, domain.EventPetUnassigned, []string{playerID}, map[string]any{
		"pet_id":   petID,
		"position": position,
	})
	return state, nil
}

func (s *GameService) createDefault(ctx context.Context, playerID string) (domain.GameState, error) {
	if err := s.users.Upsert(ctx, domain.User{ID: playerID}); err != nil {
		return domain.GameState{}, fmt.Errorf("game_service: register player: %w", err)
	}

	state := s.defaultState(playerID)
	if err := s.states.Create(ctx, state); err != nil {
		// Another request may have created it first.
		if errors.Is(err, domain.ErrAlreadyExists) {
			existing, getErr := s.states.Get(ctx, playerID)
			if getErr == nil {
				return existing, nil
			}
		}
		return domain.GameState{}, fmt.Errorf("game_service: create default state: %w", err)
	}

	s.auditLog(ctx, "state_created", map[string]any{"player_id": playerID})
	s.logger.InfoContext(ctx, "default state created", slog.String("player_id", playerID))
	return state, nil
}

func (s *GameService) defaultState(playerID string) domain.GameState {
	base := s.catalog.BaseTier()
	slots := make([]domain.StoreSlot, base.Capacity)
	for i := range slots {
		slots[i] = domain.StoreSlot{Position: i}
	}
	return domain.GameState{
		PlayerID:   playerID,
		Money:      DefaultStartingMoney,
		StoreType:  base.ID,
		Pets:       []domain.Pet{},
		StoreSlots: slots,
		Version:    1,
		LastSaved:  s.now().UTC(),
	}
}

func (s *GameService) validateState(state *domain.GameState) error {
	if state.PlayerID == "" {
		return fmt.Errorf("game_service: missing player id: %w", domain.ErrValidation)
	}
	if state.Money < 0 {
		return fmt.Errorf("game_service: negative balance: %w", domain.ErrValidation)
	}
	tier, err := s.catalog.Tier(state.StoreType)
	if err != nil {
		return fmt.Errorf("game_service: unknown store tier %q: %w", state.StoreType, domain.ErrValidation)
	}
	if len(state.Pets) > tier.Capacity {
		return fmt.Errorf("game_service: %d pets exceed %s capacity %d: %w",
			len(state.Pets), tier.Name, tier.Capacity, domain.ErrValidation)
	}

	seen := make(map[string]bool, len(state.Pets))
	for _, pet := range state.Pets {
		if pet.ID == "" {
			return fmt.Errorf("game_service: pet without id: %w", domain.ErrValidation)
		}
		if seen[pet.ID] {
			return fmt.Errorf("game_service: duplicate pet %s: %w", pet.ID, domain.ErrValidation)
		}
		if pet.Income < 0 {
			return fmt.Errorf("game_service: pet %s has negative income: %w", pet.ID, domain.ErrValidation)
		}
		seen[pet.ID] = true
	}

	occupied := make(map[string]bool, len(state.StoreSlots))
	for _, slot := range state.StoreSlots {
		if slot.PetID == nil {
			continue
		}
		if !seen[*slot.PetID] {
			return fmt.Errorf("game_service: slot %d references unowned pet %s: %w",
				slot.Position, *slot.PetID, domain.ErrValidation)
		}
		if occupied[*slot.PetID] {
			return fmt.Errorf("game_service: pet %s placed twice: %w", *slot.PetID, domain.ErrValidation)
		}
		occupied[*slot.PetID] = true
	}
	return nil
}

// loadState tries the cache before falling back to the store. Every
// write path re-caches or invalidates, so a hit is authoritative.
func (s *GameService) loadState(ctx context.Context, playerID string) (domain.GameState, error) {
	if s.cache != nil {
		if state, err := s.cache.Get(ctx, playerID); err == nil {
			return state, nil
		}
	}
	return s.states.Get(ctx, playerID)
}

func (s *GameService) cacheState(ctx context.Context, state domain.GameState) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, state); err != nil {
		s.logger.WarnContext(ctx, "state cache write failed",
			slog.String("player_id", state.PlayerID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *GameService) publishEvent(ctx context.Context, typ domain.EventType, playerIDs []string, detail map[string]any) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.GameEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		PlayerIDs: playerIDs,
		Detail:    detail,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, EventChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, EventStream, payload); err != nil {
		s.logger.WarnContext(ctx, "stream append failed",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *GameService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
