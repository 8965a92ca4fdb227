package model

import "time"

// Persisted record concerns. Each concern is stored as one JSON document.
const (
	ConcernBalances    = "balances"
	ConcernDailyClaims = "daily_claims"
	ConcernDailySells  = "daily_sells"
	ConcernListings    = "listings"
	ConcernDeliveries  = "deliveries"
	ConcernOrders      = "orders"
)

// Concerns lists every persisted concern in load order.
var Concerns = []string{
	ConcernBalances,
	ConcernDailyClaims,
	ConcernDailySells,
	ConcernListings,
	ConcernDeliveries,
	ConcernOrders,
}

// Record is a single concern snapshot for batch operations.
type Record struct {
	Concern string
	Data    []byte
	SavedAt time.Time
}

// BufferedRecord represents a pending record write in the buffer.
type BufferedRecord struct {
	Concern   string    `json:"concern"`
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListingsDocument is the persisted shape of the listings concern.
type ListingsDocument struct {
	NextID   int64     `json:"next_id"`
	Listings []Listing `json:"listings"`
}

// OrdersDocument is the persisted shape of the orders concern.
type OrdersDocument struct {
	NextID   int64          `json:"next_id"`
	Requests []OrderRequest `json:"requests"`
}
