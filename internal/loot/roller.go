// Package loot draws pets from egg definitions by weighted chance.
package loot

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/averyhart/pettycoon/internal/domain"
)

// Roller hatches eggs. The zero value is not usable; construct with
// New or NewSeeded.
type Roller struct {
	rng *rand.Rand
}

// New returns a roller backed by a randomly seeded source.
func New() *Roller {
	return NewSeeded(rand.Uint64(), rand.Uint64())
}

// NewSeeded returns a roller with a deterministic source, for tests.
func NewSeeded(seed1, seed2 uint64) *Roller {
	return &Roller{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Draw picks one pet template from the egg.
//
// A uniform value in [0, 100) walks the template list accumulating
// chances; the first template whose cumulative chance covers the draw
// wins. When the chances sum below 100 and the draw lands past them
// all, the first template is returned, so Draw cannot fail on a
// non-empty egg.
func (r *Roller) Draw(egg domain.Egg) domain.PetTemplate {
	roll := r.rng.Float64() * 100
	var cumulative float64
	for _, tpl := range egg.Pets {
		cumulative += tpl.Chance
		if roll <= cumulative {
			return tpl
		}
	}
	return egg.Pets[0]
}

// Hatch draws from the egg and instantiates an owned pet with a fresh
// unique ID, tagged with the egg's rarity.
func (r *Roller) Hatch(egg domain.Egg) domain.Pet {
	tpl := r.Draw(egg)
	return domain.Pet{
		ID:     uuid.NewString(),
		Name:   tpl.Name,
		Rarity: egg.Rarity,
		Kind:   tpl.Kind,
		Income: tpl.Income,
	}
}
