package model

import (
	"time"

	"github.com/google/uuid"
)

// Listing is a sell-side marketplace entry.
type Listing struct {
	ID        int64     `json:"id"`
	Seller    uuid.UUID `json:"seller"`
	Item      Item      `json:"item"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a copy that shares no memory with l.
func (l Listing) Clone() Listing {
	l.Item = l.Item.Clone()
	return l
}

// OrderRequest is a buy-side marketplace entry. Item is the template of the
// requested item; Amount is how many of it are wanted.
type OrderRequest struct {
	ID        int64     `json:"id"`
	Requester uuid.UUID `json:"requester"`
	Item      Item      `json:"item"`
	Amount    int       `json:"amount"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a copy that shares no memory with r.
func (r OrderRequest) Clone() OrderRequest {
	r.Item = r.Item.Clone()
	return r
}

// DailySellRecord tracks how much a player sold on a given epoch day.
type DailySellRecord struct {
	Day    int64 `json:"day"`
	Amount int64 `json:"amount"`
}

// BalanceEntry is one row of the balance leaderboard.
type BalanceEntry struct {
	Rank    int       `json:"rank"`
	Player  uuid.UUID `json:"player"`
	Name    string    `json:"name,omitempty"`
	Balance int64     `json:"balance"`
}

// PendingSale is a "sell all" preview waiting for confirmation.
type PendingSale struct {
	Player    uuid.UUID `json:"player"`
	Item      Item      `json:"item"`
	Count     int       `json:"count"`
	Total     int64     `json:"total"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SaleResult describes a completed sale to the server. Remaining is -1 when
// no daily limit applies.
type SaleResult struct {
	Item      Item  `json:"item"`
	Count     int   `json:"count"`
	Total     int64 `json:"total"`
	Remaining int64 `json:"remaining_today"`
	Balance   int64 `json:"balance"`
}

// Player maps a player id to its last known name.
type Player struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}
