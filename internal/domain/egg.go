package domain

// Egg is a purchasable loot container. Opening it draws one pet from
// Pets according to the per-template chances.
type Egg struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Cost   float64       `json:"cost"`
	Rarity string        `json:"rarity"`
	Pets   []PetTemplate `json:"pets"`
}
