package catalog

import "github.com/averyhart/pettycoon/internal/domain"

// DefaultEggs returns the stock egg roster.
func DefaultEggs() []domain.Egg {
	return []domain.Egg{
		{
			ID:     "basic-animal",
			Name:   "Basic Animal Egg",
			Cost:   500,
			Rarity: "basic",
			Pets: []domain.PetTemplate{
				{Name: "Dog", Chance: 33.33, Income: 25, Kind: domain.IncomeKindPerSecond},
				{Name: "Bunny", Chance: 33.33, Income: 20, Kind: domain.IncomeKindPerSecond},
				{Name: "Cat", Chance: 33.33, Income: 30, Kind: domain.IncomeKindPerSecond},
			},
		},
		{
			ID:     "rare-animal",
			Name:   "Rare Animal Egg",
			Cost:   10000,
			Rarity: "rare",
			Pets: []domain.PetTemplate{
				{Name: "Puppy", Chance: 80, Income: 100, Kind: domain.IncomeKindPerSecond},
				{Name: "Kitten", Chance: 15, Income: 150, Kind: domain.IncomeKindPerSecond},
				{Name: "Ferret", Chance: 5, Income: 250, Kind: domain.IncomeKindPerSecond},
			},
		},
		{
			ID:     "legendary-animal",
			Name:   "Legendary Animal Egg",
			Cost:   100000,
			Rarity: "legendary",
			Pets: []domain.PetTemplate{
				{Name: "Baby Ferret", Chance: 50, Income: 245, Kind: domain.IncomeKindPerSecond},
				{Name: "Capybara", Chance: 45, Income: 600, Kind: domain.IncomeKindPerSecond},
				{Name: "Parrot", Chance: 5, Income: 1000, Kind: domain.IncomeKindPerSecond},
			},
		},
		{
			ID:     "common-reptile",
			Name:   "Common Reptile Egg",
			Cost:   500000,
			Rarity: "reptile",
			Pets: []domain.PetTemplate{
				{Name: "Salamander", Chance: 33.33, Income: 750, Kind: domain.IncomeKindPerSecond},
				{Name: "Gecko", Chance: 33.33, Income: 1200, Kind: domain.IncomeKindPerSecond},
				{Name: "Baby Gecko", Chance: 22.22, Income: 1500, Kind: domain.IncomeKindPerSecond},
				{Name: "Baby Salamander", Chance: 11.11, Income: 2000, Kind: domain.IncomeKindPerSecond},
			},
		},
		{
			ID:     "rare-reptile",
			Name:   "Rare Reptile Egg",
			Cost:   750000,
			Rarity: "reptile",
			Pets: []domain.PetTemplate{
				{Name: "Snake", Chance: 50, Income: 100, Kind: domain.IncomeKindPerSecond},
				{Name: "Boa Constrictor", Chance: 35, Income: 500, Kind: domain.IncomeKindPerSecond},
				{Name: "Baby Snake", Chance: 15, Income: 750, Kind: domain.IncomeKindPerSecond},
			},
		},
		{
			ID:     "legendary-reptile",
			Name:   "Legendary Reptile Egg",
			Cost:   1000000,
			Rarity: "reptile",
			Pets: []domain.PetTemplate{
				{Name: "Cute Snake", Chance: 75, Income: 650, Kind: domain.IncomeKindPerSecondSquared},
				{Name: "Baby Bearded Dragon", Chance: 15, Income: 5000, Kind: domain.IncomeKindPerSecond},
				{Name: "Bearded Dragon", Chance: 9.5, Income: 10000, Kind: domain.IncomeKindPerSecond},
				{Name: "Toothless the Bearded Dragon", Chance: 0.5, Income: 100000000, Kind: domain.IncomeKindPerSecond},
			},
		},
		{
			ID:     "common-bug",
			Name:   "Common Bug Egg",
			Cost:   5000000,
			Rarity: "bug",
			Pets: []domain.PetTemplate{
				{Name: "Ant", Chance: 50, Income: 10000, Kind: domain.IncomeKindPerSecond},
				{Name: "Firefly", Chance: 35, Income: 12000, Kind: domain.IncomeKindPerSecond},
				{Name: "Butterfly", Chance: 15, Income: 15000, Kind: domain.IncomeKindPerSecond},
			},
		},
		{
			ID:     "rare-bug",
			Name:   "Rare Bug Egg",
			Cost:   10000000,
			Rarity: "bug",
			Pets: []domain.PetTemplate{
				{Name: "Worm", Chance: 75, Income: 20000, Kind: domain.IncomeKindPerSecond},
				{Name: "Caterpillar", Chance: 24, Income: 25000, Kind: domain.IncomeKindPerSecond},
				{Name: "Queen Ant", Chance: 1, Income: 100000, Kind: domain.IncomeKindPerSecond},
			},
		},
	}
}

// DefaultTiers returns the stock upgrade ladder, smallest first.
func DefaultTiers() []domain.StoreTier {
	return []domain.StoreTier{
		{ID: "shack", Name: "Shack", Capacity: 3, Cost: 0},
		{ID: "small", Name: "Small Store", Capacity: 5, Cost: 50000},
		{ID: "large", Name: "Large Store", Capacity: 10, Cost: 100000},
		{ID: "mega", Name: "Mega Store", Capacity: 25, Cost: 500000},
		{ID: "ultra", Name: "Ultra Store", Capacity: 50, Cost: 1000000},
		{ID: "mall", Name: "Pet Mall", Capacity: 999999, Cost: 1000000000},
	}
}

// Default returns a catalog loaded with the stock eggs and tiers.
func Default() *Catalog {
	c, err := New(DefaultEggs(), DefaultTiers())
	if err != nil {
		panic("catalog: stock definitions invalid: " + err.Error())
	}
	return c
}
