package domain

// StoreTier is one rung of the store upgrade ladder. Cost is the price
// of upgrading INTO this tier from the one below.
type StoreTier struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Capacity int     `json:"capacity"`
	Cost     float64 `json:"cost"`
}
