package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averyhart/pettycoon/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	assert.Len(t, c.Eggs(), 8)
	assert.Len(t, c.Tiers(), 6)
	assert.Equal(t, "shack", c.BaseTier().ID)
	assert.Equal(t, 3, c.BaseTier().Capacity)

	egg, err := c.Egg("legendary-reptile")
	require.NoError(t, err)
	assert.Equal(t, float64(1000000), egg.Cost)
	assert.Equal(t, domain.IncomeKindPerSecondSquared, egg.Pets[0].Kind)
}

func TestEggUnknown(t *testing.T) {
	c := Default()
	_, err := c.Egg("mythic-dragon")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNextTier(t *testing.T) {
	c := Default()

	next, ok, err := c.NextTier("shack")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "small", next.ID)
	assert.Equal(t, 5, next.Capacity)
	assert.Equal(t, float64(50000), next.Cost)

	_, ok, err = c.NextTier("mall")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRejectsDuplicates(t *testing.T) {
	eggs := []domain.Egg{
		{ID: "a", Pets: []domain.PetTemplate{{Name: "X", Chance: 100}}},
		{ID: "a", Pets: []domain.PetTemplate{{Name: "Y", Chance: 100}}},
	}
	_, err := New(eggs, DefaultTiers())
	assert.Error(t, err)
}

func TestNewRejectsShrinkingTiers(t *testing.T) {
	tiers := []domain.StoreTier{
		{ID: "big", Capacity: 10},
		{ID: "small", Capacity: 3},
	}
	_, err := New(DefaultEggs(), tiers)
	assert.Error(t, err)
}

func TestAccessorsCopy(t *testing.T) {
	c := Default()
	eggs := c.Eggs()
	eggs[0].Cost = -1

	again, err := c.Egg(eggs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, float64(500), again.Cost)
}
