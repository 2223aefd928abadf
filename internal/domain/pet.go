package domain

// IncomeKind selects the accrual curve for a pet's earnings.
type IncomeKind string

const (
	IncomeKindPerSecond        IncomeKind = "perSecond"
	IncomeKindPerSecondSquared IncomeKind = "perSecondSquared"
)

// Pet is a single owned pet instance. Rate is the pet's base earning
// rate; how it compounds over time depends on Kind.
type Pet struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Rarity string     `json:"rarity"`
	Kind   IncomeKind `json:"incomeType"`
	Income float64    `json:"income"`
}

// PetTemplate is one possible outcome of opening an egg. Chance is a
// percentage weight relative to the other templates in the same egg.
type PetTemplate struct {
	Name   string     `json:"name"`
	Chance float64    `json:"chance"`
	Income float64    `json:"income"`
	Kind   IncomeKind `json:"incomeType"`
}
