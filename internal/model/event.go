package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names what changed in the economy.
type EventKind string

const (
	EventBalanceChanged   EventKind = "balance.changed"
	EventListingAdded     EventKind = "listing.added"
	EventListingRemoved   EventKind = "listing.removed"
	EventListingSold      EventKind = "listing.sold"
	EventRequestAdded     EventKind = "request.added"
	EventRequestRemoved   EventKind = "request.removed"
	EventRequestFulfilled EventKind = "request.fulfilled"
	EventDeliveryAdded    EventKind = "delivery.added"
	EventDeliveryClaimed  EventKind = "delivery.claimed"
)

// Event describes a committed change. ID is the listing or request id when
// relevant, Player the primary affected player.
type Event struct {
	Kind   EventKind `json:"kind"`
	ID     int64     `json:"id,omitempty"`
	Player uuid.UUID `json:"player"`
	Other  uuid.UUID `json:"other"`
	Amount int64     `json:"amount,omitempty"`
	At     time.Time `json:"at"`
}
