package domain

import "time"

// StoreSlot is a display position in the player's store. PetID is nil
// while the slot is empty.
type StoreSlot struct {
	Position int     `json:"position"`
	PetID    *string `json:"petId"`
}

// GameState is the full persisted state of one player's save. Version
// increments on every write and guards concurrent saves.
type GameState struct {
	PlayerID   string      `json:"playerId"`
	Money      float64     `json:"money"`
	StoreType  string      `json:"storeType"`
	Pets       []Pet       `json:"pets"`
	StoreSlots []StoreSlot `json:"storeSlots"`
	Version    int64       `json:"version"`
	LastSaved  time.Time   `json:"lastSaved"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Pet returns the owned pet with the given ID, or false.
func (s *GameState) Pet(id string) (Pet, bool) {
	for _, p := range s.Pets {
		if p.ID == id {
			return p, true
		}
	}
	return Pet{}, false
}

// SlotAt returns the slot at the given position, or false.
func (s *GameState) SlotAt(position int) (*StoreSlot, bool) {
	for i := range s.StoreSlots {
		if s.StoreSlots[i].Position == position {
			return &s.StoreSlots[i], true
		}
	}
	return nil, false
}

// SlotOf returns the slot currently holding the given pet, or false.
func (s *GameState) SlotOf(petID string) (*StoreSlot, bool) {
	for i := range s.StoreSlots {
		if s.StoreSlots[i].PetID != nil && *s.StoreSlots[i].PetID == petID {
			return &s.StoreSlots[i], true
		}
	}
	return nil, false
}

// PlacedPets returns the pets currently assigned to slots, in slot order.
func (s *GameState) PlacedPets() []Pet {
	var placed []Pet
	for _, slot := range s.StoreSlots {
		if slot.PetID == nil {
			continue
		}
		if p, ok := s.Pet(*slot.PetID); ok {
			placed = append(placed, p)
		}
	}
	return placed
}

// OfflineReport summarizes earnings accrued between the last save and
// the moment the session was resumed.
type OfflineReport struct {
	Away    time.Duration `json:"-"`
	Seconds float64       `json:"seconds"`
	Earned  float64       `json:"earned"`
}
