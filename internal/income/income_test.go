package income

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/averyhart/pettycoon/internal/domain"
)

func perSecond(rate float64) domain.Pet {
	return domain.Pet{ID: "p", Name: "Dog", Kind: domain.IncomeKindPerSecond, Income: rate}
}

func perSecondSquared(rate float64) domain.Pet {
	return domain.Pet{ID: "q", Name: "Cute Snake", Kind: domain.IncomeKindPerSecondSquared, Income: rate}
}

func TestAccumulated(t *testing.T) {
	tests := []struct {
		name    string
		pet     domain.Pet
		elapsed float64
		want    float64
	}{
		{"per second flat", perSecond(100), 10, 1000},
		{"per second zero time", perSecond(100), 0, 0},
		{"per second squared integral", perSecondSquared(650), 10, 32500},
		{"per second squared one second", perSecondSquared(650), 1, 325},
		{"negative elapsed clamps to zero", perSecond(100), -5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Accumulated(tt.pet, tt.elapsed))
		})
	}
}

func TestPerTickUsesBaseRateForBothKinds(t *testing.T) {
	assert.Equal(t, float64(100), PerTick(perSecond(100)))
	assert.Equal(t, float64(650), PerTick(perSecondSquared(650)))
}

func TestTotalsCountOnlyPlacedPets(t *testing.T) {
	placed := perSecond(100)
	placed.ID = "placed"
	bench := perSecond(9999)
	bench.ID = "bench"
	state := &domain.GameState{
		Pets: []domain.Pet{placed, bench},
		StoreSlots: []domain.StoreSlot{
			{Position: 0, PetID: &placed.ID},
			{Position: 1},
			{Position: 2},
		},
	}

	assert.Equal(t, float64(100), TickTotal(state))
	assert.Equal(t, float64(1000), AccumulatedTotal(state, 10))
}

func TestAccumulatedTotalMixedKinds(t *testing.T) {
	flat := perSecond(10)
	accel := perSecondSquared(4)
	state := &domain.GameState{
		Pets: []domain.Pet{flat, accel},
		StoreSlots: []domain.StoreSlot{
			{Position: 0, PetID: &flat.ID},
			{Position: 1, PetID: &accel.ID},
		},
	}

	// 10*60 + 4*3600/2
	assert.Equal(t, float64(7800), AccumulatedTotal(state, 60))
}
