package domain

import "time"

// TradeStatus tracks the offer lifecycle.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusAccepted  TradeStatus = "accepted"
	TradeStatusRejected  TradeStatus = "rejected"
	TradeStatusCancelled TradeStatus = "cancelled"
	TradeStatusExpired   TradeStatus = "expired"
)

// TradeItems is one side of an exchange: a cash amount plus zero or
// more pets owned by that side's player.
type TradeItems struct {
	Money float64 `json:"money"`
	Pets  []Pet   `json:"pets"`
}

// Empty reports whether the side offers nothing at all.
func (t TradeItems) Empty() bool {
	return t.Money <= 0 && len(t.Pets) == 0
}

// TradeOffer is a proposed exchange between two players. Only pending
// offers are actionable; an offer past ExpiresAt settles as expired.
type TradeOffer struct {
	ID           string      `json:"id"`
	FromPlayerID string      `json:"fromPlayerId"`
	ToPlayerID   string      `json:"toPlayerId"`
	FromItems    TradeItems  `json:"fromItems"`
	ToItems      TradeItems  `json:"toItems"`
	Status       TradeStatus `json:"status"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Expired reports whether the offer's window has passed at now.
func (o TradeOffer) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// Resolved reports whether the offer has reached a terminal status.
func (o TradeOffer) Resolved() bool {
	return o.Status != TradeStatusPending
}
