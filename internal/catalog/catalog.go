// Package catalog holds the static game content: the purchasable egg
// types and the store upgrade ladder. A Catalog is immutable after
// construction; accessors hand out copies.
package catalog

import (
	"fmt"

	"github.com/averyhart/pettycoon/internal/domain"
)

// Catalog indexes the game's egg and tier definitions.
type Catalog struct {
	eggs     []domain.Egg
	tiers    []domain.StoreTier
	eggByID  map[string]int
	tierByID map[string]int
}

// New builds a catalog from the given definitions. Egg and tier IDs
// must be unique; tiers must be ordered from smallest to largest.
func New(eggs []domain.Egg, tiers []domain.StoreTier) (*Catalog, error) {
	c := &Catalog{
		eggs:     make([]domain.Egg, len(eggs)),
		tiers:    make([]domain.StoreTier, len(tiers)),
		eggByID:  make(map[string]int, len(eggs)),
		tierByID: make(map[string]int, len(tiers)),
	}
	copy(c.eggs, eggs)
	copy(c.tiers, tiers)
	for i, egg := range c.eggs {
		if len(egg.Pets) == 0 {
			return nil, fmt.Errorf("catalog: egg %s has no pets", egg.ID)
		}
		if _, dup := c.eggByID[egg.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate egg id %s", egg.ID)
		}
		c.eggByID[egg.ID] = i
	}
	for i, tier := range c.tiers {
		if _, dup := c.tierByID[tier.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate tier id %s", tier.ID)
		}
		if i > 0 && tier.Capacity <= c.tiers[i-1].Capacity {
			return nil, fmt.Errorf("catalog: tier %s does not grow capacity", tier.ID)
		}
		c.tierByID[tier.ID] = i
	}
	if len(c.tiers) == 0 {
		return nil, fmt.Errorf("catalog: no store tiers")
	}
	return c, nil
}

// Egg returns the egg definition with the given ID.
func (c *Catalog) Egg(id string) (domain.Egg, error) {
	i, ok := c.eggByID[id]
	if !ok {
		return domain.Egg{}, fmt.Errorf("catalog: egg %s: %w", id, domain.ErrNotFound)
	}
	return c.eggs[i], nil
}

// Tier returns the store tier with the given ID.
func (c *Catalog) Tier(id string) (domain.StoreTier, error) {
	i, ok := c.tierByID[id]
	if !ok {
		return domain.StoreTier{}, fmt.Errorf("catalog: tier %s: %w", id, domain.ErrNotFound)
	}
	return c.tiers[i], nil
}

// NextTier returns the tier one rung above the given tier ID. The
// second return is false when the tier is already the largest.
func (c *Catalog) NextTier(id string) (domain.StoreTier, bool, error) {
	i, ok := c.tierByID[id]
	if !ok {
		return domain.StoreTier{}, false, fmt.Errorf("catalog: tier %s: %w", id, domain.ErrNotFound)
	}
	if i+1 >= len(c.tiers) {
		return domain.StoreTier{}, false, nil
	}
	return c.tiers[i+1], true, nil
}

// BaseTier returns the smallest store tier, the one new saves start at.
func (c *Catalog) BaseTier() domain.StoreTier {
	return c.tiers[0]
}

// Eggs returns all egg definitions in display order.
func (c *Catalog) Eggs() []domain.Egg {
	out := make([]domain.Egg, len(c.eggs))
	copy(out, c.eggs)
	return out
}

// Tiers returns all store tiers from smallest to largest.
func (c *Catalog) Tiers() []domain.StoreTier {
	out := make([]domain.StoreTier, len(c.tiers))
	copy(out, c.tiers)
	return out
}
