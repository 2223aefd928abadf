package domain

import "time"

// EventType names a game lifecycle event published on the signal bus.
type EventType string

const (
	EventEggOpened      EventType = "egg.opened"
	EventStoreUpgraded  EventType = "store.upgraded"
	EventPetAssigned    EventType = "pet.assigned"
	EventPetUnassigned  EventType = "pet.unassigned"
	EventStateReset     EventType = "state.reset"
	EventTradeCreated   EventType = "trade.created"
	EventTradeAccepted  EventType = "trade.accepted"
	EventTradeRejected  EventType = "trade.rejected"
	EventTradeCancelled EventType = "trade.cancelled"
	EventTradeExpired   EventType = "trade.expired"
)

// GameEvent is a single entry on the game event bus. PlayerIDs lists
// every player the event concerns; trade events carry both parties.
type GameEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	PlayerIDs []string       `json:"playerIds"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Concerns reports whether the event involves the given player.
func (e GameEvent) Concerns(playerID string) bool {
	for _, id := range e.PlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}
