// Package income computes pet earnings. Live ticking and offline
// catch-up deliberately use different formulas: ticking adds the base
// rate once per second for every pet kind, while catch-up integrates
// the accelerating kinds over the whole away window. The two paths
// must stay separate.
package income

import "github.com/averyhart/pettycoon/internal/domain"

// PerTick returns the money a placed pet earns in one live tick.
func PerTick(pet domain.Pet) float64 {
	return pet.Income
}

// Accumulated returns the money a placed pet earns over elapsedSeconds
// of batch catch-up.
//
// PerSecond pets earn rate*t. PerSecondSquared pets earn rate*t^2/2,
// the integral of a rate growing linearly from zero.
func Accumulated(pet domain.Pet, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	switch pet.Kind {
	case domain.IncomeKindPerSecondSquared:
		return pet.Income * elapsedSeconds * elapsedSeconds / 2
	default:
		return pet.Income * elapsedSeconds
	}
}

// TickTotal sums the live per-tick earnings of every placed pet.
func TickTotal(state *domain.GameState) float64 {
	var total float64
	for _, pet := range state.PlacedPets() {
		total += PerTick(pet)
	}
	return total
}

// AccumulatedTotal sums the catch-up earnings of every placed pet over
// the away window.
func AccumulatedTotal(state *domain.GameState, elapsedSeconds float64) float64 {
	var total float64
	for _, pet := range state.PlacedPets() {
		total += Accumulated(pet, elapsedSeconds)
	}
	return total
}
