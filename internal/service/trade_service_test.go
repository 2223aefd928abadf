package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averyhart/pettycoon/internal/domain"
)

func (f *fixture) pendingTrade(t *testing.T, req CreateTradeRequest) domain.TradeOffer {
	t.Helper()
	offer, err := f.trades.Create(context.Background(), "alice", req)
	require.NoError(t, err)
	return offer
}

func tradeFixture(t *testing.T) (*fixture, domain.GameState, domain.GameState) {
	t.Helper()
	f := newFixture(t)
	alice := f.player(t, "alice")
	bob := f.player(t, "bob")

	pet := domain.Pet{ID: "dog-1", Name: "Dog", Kind: domain.IncomeKindPerSecond, Income: 25}
	alice.Pets = append(alice.Pets, pet)
	alice.StoreSlots[0].PetID = &pet.ID
	alice.Money = 5000
	alice = f.setState(t, alice)

	bob.Money = 3000
	bob = f.setState(t, bob)
	return f, alice, bob
}

func TestCreateTradeValidation(t *testing.T) {
	f := newFixture(t)
	f.player(t, "alice")
	f.player(t, "bob")

	// Empty offer.
	_, err := f.trades.Create(context.Background(), "alice", CreateTradeRequest{
		ToPlayerID: "bob",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// No recipient.
	_, err = f.trades.Create(context.Background(), "alice", CreateTradeRequest{
		FromItems: domain.TradeItems{Money: 100},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Self-trade.
	_, err = f.trades.Create(context.Background(), "alice", CreateTradeRequest{
		ToPlayerID: "alice",
		FromItems:  domain.TradeItems{Money: 100},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Unknown recipient.
	_, err = f.trades.Create(context.Background(), "alice", CreateTradeRequest{
		ToPlayerID: "nobody",
		FromItems:  domain.TradeItems{Money: 100},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateTrade(t *testing.T) {
	f, alice, _ := tradeFixture(t)

	offer := f.pendingTrade(t, CreateTradeRequest{
		ToPlayerID: "bob",
		FromItems:  domain.TradeItems{Money: 500, Pets: []domain.Pet{alice.Pets[0]}},
		ToItems:    domain.TradeItems{Money: 1000},
	})

	assert.Equal(t, domain.TradeStatusPending, offer.Status)
	assert.Equal(t, "alice", offer.FromPlayerID)
	assert.Equal(t, "bob", offer.ToPlayerID)
	assert.WithinDuration(t, offer.CreatedAt.Add(TradeLifetime), offer.ExpiresAt, time.Second)
}

func TestAcceptTrade(t *testing.T) {
	f, alice, bob := tradeFixture(t)

	offer := f.pendingTrade(t, CreateTradeRequest{
		ToPlayerID: "bob",
		FromItems:  domain.TradeItems{Money: 500, Pets: []domain.Pet{alice.Pets[0]}},
		ToItems:    domain.TradeItems{Money: 1000},
	})

	got, err := f.trades.Accept(context.Background(), "bob", offer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusAccepted, got.Status)

	newAlice, err := f.states.Get(context.Background(), "alice")
	require.NoError(t, err)
	newBob, err := f.states.Get(context.Background(), "bob")
	require.NoError(t, err)

	// Alice paid 500, received 1000, and lost the dog.
	assert.Equal(t, alice.Money-500+1000, newAlice.Money)
	assert.Empty(t, newAlice.Pets)
	// Her vacated slot is empty again.
	assert.Nil(t, newAlice.StoreSlots[0].PetID)

	// Bob paid 1000, received 500, and owns the dog unplaced.
	assert.Equal(t, bob.Money-1000+500, newBob.Money)
	require.Len(t, newBob.Pets, 1)
	assert.Equal(t, "dog-1", newBob.Pets[0].ID)
	for _, slot := range newBob.StoreSlots {
		assert.Nil(t, slot.PetID)
	}
}

func TestAcceptTwiceFails(t *testing.T) {
	f, alice, bob := tradeFixture(t)

	offer := f.pendingTrade(t, CreateTradeRequest{
		ToPlayerID: "bob",
		FromItems:  domain.TradeItems{Money: 500},
		ToItems:    domain.TradeItems{Money: 1000},
	})

	_, err := f.trades.Accept(context.Background(), "bob", offer.ID)
	require.NoError(t, err)

	// The offer is settled; re-accepting must not move money again.
	got, err := f.trades.Accept(context.Background(), "bob", offer.ID)
	assert.ErrorIs(t, err, domain.ErrTradeInvalid)
	assert.Equal(t, domain.TradeStatusAccepted, got.Status)

	newAlice, err := f.states.Get(context.Background(), "alice")
	require.NoError(t, err)
	newBob, err := f.states.Get(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, alice.Money-500+1000, newAlice.Money)
	assert.Equal(t, bob.Money-1000+500, newBob.Money)
}

func TestAcceptRequiresRecipient(t *testing.T) {
	f, alice, _ := tradeFixture(t)

	offer := f.pendingTrade(t, CreateTradeRequest{
		ToPlayerID: "bob",
		FromItems:  domain.TradeItems{Pets: []domain.Pet{alice.Pets[0]}},
	})

	_, err := f.trades.Accept(context.Background(), "alice", offer.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.trades.Accept(context.Background(), "mallory", offer.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAcceptFailsWhenSenderLostThePet(t *testing.T) {
	f, alice, bob := tradeFixture(t)

	offer := f.pendingTrade(t, CreateTradeRequest{
		ToPlayerID: "bob",
		FromItems:  domain.TradeItems{Pets: []domain.Pet{alice.Pets[0]}},
	})

	// The dog disappears from Alice's collection before acceptance.
	alice.Pets = []domain.Pet{}
	alice.StoreSlots[0].PetID = nil
	alice = f.setState(t, alice)

	_, err := f.trades.Accept(context.Background(), "bob", offer.ID)
	assert.ErrorIs(t, err, domain.ErrTradeInvalid)

	// No partial mutation on either side.
	gotAlice, err := f.states.Get(context.Background(), "alice")
	require.NoError(t, err)
	gotBob, err := f.states.Get(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, alice, gotAlice)
	assert.Equal(t, bob, gotBob)

	// The offer stays pending.
	stored, err := f.trades.Get(context.Background(), "bob", offer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusPending, stored.Status)
}

func TestAcceptFailsWhenRecipientCannotPay(t *testing.T) {
	f, alice, _ := tradeFixture(t)

	offer := f.pendingTrade(t, CreateTradeRequest{
		ToPlayerID: "bob",
		FromItems:  domain.TradeItems{Pets: []domain.Pet{alice.Pets[0]}},
		ToItems:    domain.TradeItems{Money: 1000000},
	})

	_, err := f.trades.Accept(context.Background(), "bob", offer.ID)
	assert.ErrorIs(t, err, domain.ErrTradeInvalid)
	assert.Contains(t, err.Error(), "you need $1.0M")
}

func TestRejectAndCancelAuthorization(t *testing.T) {
	f, _, _ := tradeFixture(t)

	offer := f.pendingTrade(t, CreateTradeRequest{
		ToPlayerID: "bob",
		FromItems:  domain.TradeItems{Money: 100},
	})

	// Sender cannot reject, recipient cannot cancel.
	_, err := f.trades.Reject(context.Background(), "alice", offer.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.trades.Cancel(context.Background(), "bob", offer.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	got, err := f.trades.Reject(context.Background(), "bob", offer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusRejected, got.Status)

	// Terminal offers stay terminal.
	_, err = f.trades.Cancel(context.Background(), "alice", offer.ID)
	assert.ErrorIs(t, err, domain.ErrTradeInvalid)
}

func TestCancelTrade(t *testing.T) {
	f, _, _ := tradeFixture(t)

	offer := f.pendingTrade(t, CreateTradeRequest{
		ToPlayerID: "bob",
		FromItems:  domain.TradeItems{Money: 100},
	})

	got, err := f.trades.Cancel(context.Background(), "alice", offer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCancelled, got.Status)
}

func TestAcceptExpiredTrade(t *testing.T) {
	f, alice, _ := tradeFixture(t)

	offer := f.pendingTrade(t, CreateTradeRequest{
		ToPlayerID: "bob",
		FromItems:  domain.TradeItems{Pets: []domain.Pet{alice.Pets[0]}},
	})

	// Jump the clock past the expiry window.
	f.trades.WithClock(func() time.Time { return time.Now().Add(TradeLifetime + time.Hour) })

	got, err := f.trades.Accept(context.Background(), "bob", offer.ID)
	assert.ErrorIs(t, err, domain.ErrTradeInvalid)
	assert.Equal(t, domain.TradeStatusExpired, got.Status)
}

func TestListLazilyExpires(t *testing.T) {
	f, _, _ := tradeFixture(t)

	f.pendingTrade(t, CreateTradeRequest{
		ToPlayerID: "bob",
		FromItems:  domain.TradeItems{Money: 100},
	})

	f.trades.WithClock(func() time.Time { return time.Now().Add(TradeLifetime + time.Hour) })

	offers, err := f.trades.List(context.Background(), "bob", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, domain.TradeStatusExpired, offers[0].Status)
}

func TestListOnlyParties(t *testing.T) {
	f, _, _ := tradeFixture(t)
	f.player(t, "carol")

	offer := f.pendingTrade(t, CreateTradeRequest{
		ToPlayerID: "bob",
		FromItems:  domain.TradeItems{Money: 100},
	})

	offers, err := f.trades.List(context.Background(), "carol", domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, offers)

	_, err = f.trades.Get(context.Background(), "carol", offer.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestExpirePendingSweep(t *testing.T) {
	f, _, _ := tradeFixture(t)

	f.pendingTrade(t, CreateTradeRequest{
		ToPlayerID: "bob",
		FromItems:  domain.TradeItems{Money: 100},
	})
	f.pendingTrade(t, CreateTradeRequest{
		ToPlayerID: "bob",
		FromItems:  domain.TradeItems{Money: 200},
	})

	f.trades.WithClock(func() time.Time { return time.Now().Add(TradeLifetime + time.Hour) })

	swept, err := f.trades.ExpirePending(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	// A second sweep finds nothing.
	swept, err = f.trades.ExpirePending(context.Background(), 100)
	require.NoError(t, err)
	assert.Zero(t, swept)
}
