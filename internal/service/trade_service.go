package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/averyhart/pettycoon/internal/domain"
)

const (
	// TradeLifetime is how long an offer stays actionable.
	TradeLifetime = 24 * time.Hour

	// tradeLockTTL bounds how long an acceptance can hold an offer's lock.
	tradeLockTTL = 10 * time.Second

	createTradeLimit  = 10
	createTradeWindow = time.Minute
)

// TradeService manages trade offers between players, from creation
// through atomic settlement.
type TradeService struct {
	trades  domain.TradeStore
	states  domain.GameStateStore
	users   domain.UserStore
	cache   domain.StateCache
	locks   domain.LockManager
	limiter domain.RateLimiter
	bus     domain.SignalBus
	audit   domain.AuditStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewTradeService creates a TradeService with all required dependencies.
func NewTradeService(
	trades domain.TradeStore,
	states domain.GameStateStore,
	users domain.UserStore,
	cache domain.StateCache,
	locks domain.LockManager,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		trades:  trades,
		states:  states,
		users:   users,
		cache:   cache,
		locks:   locks,
		limiter: limiter,
		bus:     bus,
		audit:   audit,
		logger:  logger.With(slog.String("component", "trade_service")),
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *TradeService) WithClock(now func() time.Time) *TradeService {
	s.now = now
	return s
}

// CreateTradeRequest is the payload for proposing a trade.
type CreateTradeRequest struct {
	ToPlayerID string            `json:"toPlayerId"`
	FromItems  domain.TradeItems `json:"fromItems"`
	ToItems    domain.TradeItems `json:"toItems"`
}

// Create proposes a trade from fromPlayerID. The offer must name a
// distinct recipient and offer something; ownership and balances are
// checked at acceptance time, not here, since holdings can change
// while the offer is pending.
func (s *TradeService) Create(ctx context.Context, fromPlayerID string, req CreateTradeRequest) (domain.TradeOffer, error) {
	if req.ToPlayerID == "" {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: offer needs a recipient: %w", domain.ErrValidation)
	}
	if req.ToPlayerID == fromPlayerID {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: cannot trade with yourself: %w", domain.ErrValidation)
	}
	if req.FromItems.Empty() {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: offer is empty: %w", domain.ErrValidation)
	}
	if req.FromItems.Money < 0 || req.ToItems.Money < 0 {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: negative money amount: %w", domain.ErrValidation)
	}

	allowed, err := s.limiter.Allow(ctx, "trade-create:"+fromPlayerID, createTradeLimit, createTradeWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "trade rate limiter unavailable", slog.String("error", err.Error()))
	} else if !allowed {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: too many offers: %w", domain.ErrRateLimited)
	}

	if _, err := s.users.GetByID(ctx, req.ToPlayerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TradeOffer{}, fmt.Errorf("trade_service: recipient %s: %w", req.ToPlayerID, domain.ErrNotFound)
		}
		return domain.TradeOffer{}, fmt.Errorf("trade_service: create: %w", err)
	}

	now := s.now().UTC()
	offer := domain.TradeOffer{
		ID:           uuid.NewString(),
		FromPlayerID: fromPlayerID,
		ToPlayerID:   req.ToPlayerID,
		FromItems:    req.FromItems,
		ToItems:      req.ToItems,
		Status:       domain.TradeStatusPending,
		ExpiresAt:    now.Add(TradeLifetime),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.trades.Create(ctx, offer); err != nil {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: create: %w", err)
	}

	s.publishTradeEvent(ctx, domain.EventTradeCreated, offer)
	s.auditLog(ctx, "trade_created", map[string]any{
		"trade_id": offer.ID,
		"from":     offer.FromPlayerID,
		"to":       offer.ToPlayerID,
	})
	s.logger.InfoContext(ctx, "trade created",
		slog.String("trade_id", offer.ID),
		slog.String("from", offer.FromPlayerID),
		slog.String("to", offer.ToPlayerID),
	)
	return offer, nil
}

// Get returns a single offer to one of its parties, lazily expiring it
// when its window has passed.
func (s *TradeService) Get(ctx context.Context, actorID, offerID string) (domain.TradeOffer, error) {
	offer, err := s.trades.GetByID(ctx, offerID)
	if err != nil {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: get: %w", err)
	}
	if !s.isParty(actorID, offer) {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: trade %s: %w", offerID, domain.ErrUnauthorized)
	}
	return s.maybeExpire(ctx, offer), nil
}

// List returns every offer where the player is a party, newest first.
func (s *TradeService) List(ctx context.Context, playerID string, opts domain.ListOpts) ([]domain.TradeOffer, error) {
	offers, err := s.trades.ListForPlayer(ctx, playerID, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list: %w", err)
	}
	for i, offer := range offers {
		offers[i] = s.maybeExpire(ctx, offer)
	}
	return offers, nil
}

// Resolve applies a terminal status requested by actorID: the
// recipient may accept or reject, the sender may cancel.
func (s *TradeService) Resolve(ctx context.Context, actorID, offerID string, status domain.TradeStatus) (domain.TradeOffer, error) {
	switch status {
	case domain.TradeStatusAccepted:
		return s.Accept(ctx, actorID, offerID)
	case domain.TradeStatusRejected:
		return s.Reject(ctx, actorID, offerID)
	case domain.TradeStatusCancelled:
		return s.Cancel(ctx, actorID, offerID)
	default:
		return domain.TradeOffer{}, fmt.Errorf("trade_service: cannot set status %q: %w", status, domain.ErrValidation)
	}
}

// Accept performs the exchange. Acceptance is serialized per offer via
// a lock, and ownership and balances are re-verified under it; the
// asset movement and the status flip commit atomically or not at all.
func (s *TradeService) Accept(ctx context.Context, actorID, offerID string) (domain.TradeOffer, error) {
	unlock, err := s.locks.Acquire(ctx, "trade:"+offerID, tradeLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.TradeOffer{}, fmt.Errorf("trade_service: trade %s is being settled: %w", offerID, domain.ErrTradeInvalid)
		}
		return domain.TradeOffer{}, fmt.Errorf("trade_service: accept: %w", err)
	}
	defer unlock()

	offer, err := s.trades.GetByID(ctx, offerID)
	if err != nil {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: accept: %w", err)
	}
	if !s.isParty(actorID, offer) {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: trade %s: %w", offerID, domain.ErrUnauthorized)
	}
	if actorID != offer.ToPlayerID {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: only the recipient can accept: %w", domain.ErrUnauthorized)
	}
	if offer.Status != domain.TradeStatusPending {
		return offer, fmt.Errorf("trade_service: trade %s already %s: %w", offerID, offer.Status, domain.ErrTradeInvalid)
	}
	if offer.Expired(s.now().UTC()) {
		expired := s.expire(ctx, offer)
		return expired, fmt.Errorf("trade_service: trade %s expired: %w", offerID, domain.ErrTradeInvalid)
	}

	from, err := s.states.Get(ctx, offer.FromPlayerID)
	if err != nil {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: accept: sender state: %w", err)
	}
	to, err := s.states.Get(ctx, offer.ToPlayerID)
	if err != nil {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: accept: recipient state: %w", err)
	}

	// Validate the whole exchange before touching anything.
	if from.Money < offer.FromItems.Money {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: sender can no longer cover $%s: %w",
			FormatMoney(offer.FromItems.Money), domain.ErrTradeInvalid)
	}
	if to.Money < offer.ToItems.Money {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: you need $%s to accept this trade: %w",
			FormatMoney(offer.ToItems.Money), domain.ErrTradeInvalid)
	}
	for _, pet := range offer.FromItems.Pets {
		if _, owned := from.Pet(pet.ID); !owned {
			return domain.TradeOffer{}, fmt.Errorf("trade_service: sender no longer owns %s: %w", pet.Name, domain.ErrTradeInvalid)
		}
	}
	for _, pet := range offer.ToItems.Pets {
		if _, owned := to.Pet(pet.ID); !owned {
			return domain.TradeOffer{}, fmt.Errorf("trade_service: you no longer own %s: %w", pet.Name, domain.ErrTradeInvalid)
		}
	}

	movePets(&from, &to, offer.FromItems.Pets)
	movePets(&to, &from, offer.ToItems.Pets)
	from.Money += offer.ToItems.Money - offer.FromItems.Money
	to.Money += offer.FromItems.Money - offer.ToItems.Money

	now := s.now().UTC()
	from.LastSaved = now
	to.LastSaved = now
	from.Version++
	to.Version++

	if err := s.trades.Settle(ctx, offerID, domain.TradeStatusAccepted, from, to); err != nil {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: accept: %w", err)
	}

	s.invalidateState(ctx, from.PlayerID)
	s.invalidateState(ctx, to.PlayerID)

	offer.Status = domain.TradeStatusAccepted
	offer.UpdatedAt = now
	s.publishTradeEvent(ctx, domain.EventTradeAccepted, offer)
	s.auditLog(ctx, "trade_accepted", map[string]any{
		"trade_id":   offer.ID,
		"from":       offer.FromPlayerID,
		"to":         offer.ToPlayerID,
		"from_money": offer.FromItems.Money,
		"to_money":   offer.ToItems.Money,
		"from_pets":  len(offer.FromItems.Pets),
		"to_pets":    len(offer.ToItems.Pets),
	})
	s.logger.InfoContext(ctx, "trade accepted", slog.String("trade_id", offer.ID))
	return offer, nil
}

// Reject declines a pending offer. No assets move.
func (s *TradeService) Reject(ctx context.Context, actorID, offerID string) (domain.TradeOffer, error) {
	return s.close(ctx, actorID, offerID, domain.TradeStatusRejected)
}

// Cancel withdraws a pending offer; only the sender may cancel.
func (s *TradeService) Cancel(ctx context.Context, actorID, offerID string) (domain.TradeOffer, error) {
	return s.close(ctx, actorID, offerID, domain.TradeStatusCancelled)
}

func (s *TradeService) close(ctx context.Context, actorID, offerID string, status domain.TradeStatus) (domain.TradeOffer, error) {
	offer, err := s.trades.GetByID(ctx, offerID)
	if err != nil {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: %s: %w", status, err)
	}
	if !s.isParty(actorID, offer) {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: trade %s: %w", offerID, domain.ErrUnauthorized)
	}
	switch status {
	case domain.TradeStatusRejected:
		if actorID != offer.ToPlayerID {
			return domain.TradeOffer{}, fmt.Errorf("trade_service: only the recipient can reject: %w", domain.ErrUnauthorized)
		}
	case domain.TradeStatusCancelled:
		if actorID != offer.FromPlayerID {
			return domain.TradeOffer{}, fmt.Errorf("trade_service: only the sender can cancel: %w", domain.ErrUnauthorized)
		}
	}
	if offer.Status != domain.TradeStatusPending {
		return offer, fmt.Errorf("trade_service: trade %s already %s: %w", offerID, offer.Status, domain.ErrTradeInvalid)
	}
	if offer.Expired(s.now().UTC()) {
		expired := s.expire(ctx, offer)
		return expired, fmt.Errorf("trade_service: trade %s expired: %w", offerID, domain.ErrTradeInvalid)
	}

	if err := s.trades.UpdateStatus(ctx, offerID, status); err != nil {
		return domain.TradeOffer{}, fmt.Errorf("trade_service: %s: %w", status, err)
	}
	offer.Status = status
	offer.UpdatedAt = s.now().UTC()

	event := domain.EventTradeRejected
	if status == domain.TradeStatusCancelled {
		event = domain.EventTradeCancelled
	}
	s.publishTradeEvent(ctx, event, offer)
	s.auditLog(ctx, "trade_"+string(status), map[string]any{"trade_id": offer.ID, "actor": actorID})
	return offer, nil
}

// ExpirePending sweeps pending offers past their expiry and marks them
// expired, returning how many were swept. The sweeper loop drives this.
func (s *TradeService) ExpirePending(ctx context.Context, limit int) (int, error) {
	offers, err := s.trades.ListPendingExpired(ctx, s.now().UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("trade_service: expire pending: %w", err)
	}

	var swept int
	for _, offer := range offers {
		if err := s.trades.UpdateStatus(ctx, offer.ID, domain.TradeStatusExpired); err != nil {
			// Raced with an accept or another sweeper; skip it.
			if errors.Is(err, domain.ErrTradeInvalid) || errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return swept, fmt.Errorf("trade_service: expire pending: %w", err)
		}
		offer.Status = domain.TradeStatusExpired
		s.publishTradeEvent(ctx, domain.EventTradeExpired, offer)
		swept++
	}
	return swept, nil
}

func (s *TradeService) maybeExpire(ctx context.Context, offer domain.TradeOffer) domain.TradeOffer {
	if offer.Status != domain.TradeStatusPending || !offer.Expired(s.now().UTC()) {
		return offer
	}
	return s.expire(ctx, offer)
}

func (s *TradeService) expire(ctx context.Context, offer domain.TradeOffer) domain.TradeOffer {
	if err := s.trades.UpdateStatus(ctx, offer.ID, domain.TradeStatusExpired); err != nil {
		// Lost a race with accept/reject; report what the store has now.
		if current, getErr := s.trades.GetByID(ctx, offer.ID); getErr == nil {
			return current
		}
		return offer
	}
	offer.Status = domain.TradeStatusExpired
	offer.UpdatedAt = s.now().UTC()
	s.publishTradeEvent(ctx, domain.EventTradeExpired, offer)
	return offer
}

func (s *TradeService) isParty(actorID string, offer domain.TradeOffer) bool {
	return actorID == offer.FromPlayerID || actorID == offer.ToPlayerID
}

// movePets transfers the named pets between collections, vacating any
// slots they occupied. Callers verify ownership first.
func movePets(from, to *domain.GameState, pets []domain.Pet) {
	for _, pet := range pets {
		for i, owned := range from.Pets {
			if owned.ID != pet.ID {
				continue
			}
			if slot, placed := from.SlotOf(pet.ID); placed {
				slot.PetID = nil
			}
			from.Pets = append(from.Pets[:i], from.Pets[i+1:]...)
			to.Pets = append(to.Pets, owned)
			break
		}
	}
}

func (s *TradeService) invalidateState(ctx context.Context, playerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, playerID); err != nil {
		s.logger.WarnContext(ctx, "state cache invalidate failed",
			slog.String("player_id", playerID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TradeService) publishTradeEvent(ctx context.Context, typ domain.EventType, offer domain.TradeOffer) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.GameEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		PlayerIDs: []string{offer.FromPlayerID, offer.ToPlayerID},
		Detail: map[string]any{
			"trade_id": offer.ID,
			"status":   string(offer.Status),
		},
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, EventChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish trade event failed",
			slog.String("trade_id", offer.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, EventStream, payload); err != nil {
		s.logger.WarnContext(ctx, "stream trade event failed",
			slog.String("trade_id", offer.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TradeService) auditLog(ctx context.Context, event string, detail map[string]any) {
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
