package service

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/StimpyDev/EconomyCraft/internal/metrics"
	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseReceipt describes a completed purchase.
type PurchaseReceipt struct {
	Listing   model.Listing `json:"listing"`
	Tax       int64         `json:"tax"`
	Total     int64         `json:"total"`
	Delivered bool          `json:"delivered"` // false: item went to the mailbox
}

// ListingMarket is the sell-side marketplace. A listing is removed exactly
// once, by a purchase or by its seller.
type ListingMarket struct {
	taxRate decimal.Decimal

	mu       sync.Mutex
	listings map[int64]model.Listing
	nextID   int64

	ledger  *Ledger
	deliver *deliverer
	persist *Persister
	hub     *Hub
	audit   *auditor
	clock   Clock
	metrics *metrics.Metrics
	log     *slog.Logger
}

func (m *ListingMarket) load(ctx context.Context) error {
	doc := model.ListingsDocument{NextID: 1}
	if err := m.persist.load(ctx, model.ConcernListings, &doc); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = max(doc.NextID, 1)
	for _, l := range doc.Listings {
		m.listings[l.ID] = l
		if l.ID >= m.nextID {
			m.nextID = l.ID + 1
		}
	}
	m.metrics.SetListings(len(m.listings))
	return nil
}

func (m *ListingMarket) saveLocked(ctx context.Context) {
	doc := model.ListingsDocument{NextID: m.nextID, Listings: m.sortedLocked(nil)}
	m.persist.save(ctx, model.ConcernListings, doc)
	m.metrics.SetListings(len(m.listings))
}

func (m *ListingMarket) sortedLocked(keep func(model.Listing) bool) []model.Listing {
	out := make([]model.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		if keep == nil || keep(l) {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddListing stores a new active listing and returns it with its id.
func (m *ListingMarket) AddListing(ctx context.Context, seller uuid.UUID, item model.Item, price int64) (model.Listing, error) {
	const op = "add listing"
	if item.IsEmpty() {
		return model.Listing{}, m.reject(op, newError(KindInvalidAmount, op, "item is empty"))
	}
	if price <= 0 || price > MaxBalance {
		return model.Listing{}, m.reject(op, newError(KindInvalidAmount, op, "price out of range"))
	}

	m.mu.Lock()
	l := model.Listing{
		ID:        m.nextID,
		Seller:    seller,
		Item:      item.Clone(),
		Price:     price,
		CreatedAt: m.clock.Now().UTC(),
	}
	m.nextID++
	m.listings[l.ID] = l
	m.saveLocked(ctx)
	m.mu.Unlock()

	m.log.Info("listing added", "id", l.ID, "seller", seller, "kind", item.Kind, "price", price)
	m.hub.Publish(model.Event{Kind: model.EventListingAdded, ID: l.ID, Player: seller, Amount: price, At: l.CreatedAt})
	return l.Clone(), nil
}

// RemoveListing removes id unconditionally. It reports false when the
// listing no longer exists.
func (m *ListingMarket) RemoveListing(ctx context.Context, id int64) (model.Listing, bool) {
	m.mu.Lock()
	l, ok := m.listings[id]
	if ok {
		delete(m.listings, id)
		m.saveLocked(ctx)
	}
	m.mu.Unlock()

	if !ok {
		return model.Listing{}, false
	}
	m.hub.Publish(model.Event{Kind: model.EventListingRemoved, ID: id, Player: l.Seller, At: m.clock.Now()})
	return l.Clone(), true
}

// CancelListing removes a listing on behalf of its seller and returns the
// item to them.
func (m *ListingMarket) CancelListing(ctx context.Context, id int64, by uuid.UUID) (model.Listing, error) {
	const op = "cancel listing"

	m.mu.Lock()
	l, ok := m.listings[id]
	if !ok {
		m.mu.Unlock()
		return model.Listing{}, m.reject(op, withOp(ErrAlreadySold, op))
	}
	if l.Seller != by {
		m.mu.Unlock()
		return model.Listing{}, m.reject(op, newError(KindForbidden, op, "only the seller may cancel"))
	}
	delete(m.listings, id)
	m.saveLocked(ctx)
	m.mu.Unlock()

	m.deliver.deliver(ctx, by, l.Item)
	m.hub.Publish(model.Event{Kind: model.EventListingRemoved, ID: id, Player: by, At: m.clock.Now()})
	return l.Clone(), nil
}

// Purchase buys listing id for buyer. The buyer pays price plus tax, the
// seller receives price. Of two concurrent buyers exactly one wins; the
// other gets ErrAlreadySold and is not charged.
func (m *ListingMarket) Purchase(ctx context.Context, id int64, buyer uuid.UUID) (PurchaseReceipt, error) {
	const op = "purchase"

	m.mu.Lock()
	l, ok := m.listings[id]
	if !ok {
		m.mu.Unlock()
		return PurchaseReceipt{}, m.reject(op, withOp(ErrAlreadySold, op))
	}
	if l.Seller == buyer {
		m.mu.Unlock()
		return PurchaseReceipt{}, m.reject(op, withOp(ErrSelfTrade, op))
	}

	tax := Tax(l.Price, m.taxRate)
	total := l.Price + tax

	// Funds are checked and moved in one ledger step while the listing is
	// still held, so removal below cannot leave a sold listing unpaid.
	if !m.ledger.transfer(ctx, buyer, l.Seller, total, l.Price) {
		m.mu.Unlock()
		return PurchaseReceipt{}, m.reject(op, withOp(ErrInsufficientFunds, op))
	}
	delete(m.listings, id)
	m.saveLocked(ctx)
	m.mu.Unlock()

	delivered := m.deliver.deliver(ctx, buyer, l.Item)

	ref := "listing:" + strconv.FormatInt(id, 10)
	m.audit.record(ctx, model.TxPurchase, buyer, l.Seller, l.Price, tax, ref)
	m.log.Info("listing sold", "id", id, "buyer", buyer, "seller", l.Seller, "price", l.Price, "tax", tax)

	now := m.clock.Now()
	m.hub.Publish(model.Event{Kind: model.EventListingSold, ID: id, Player: l.Seller, Other: buyer, Amount: l.Price, At: now})
	m.hub.Publish(model.Event{Kind: model.EventListingRemoved, ID: id, Player: l.Seller, At: now})

	return PurchaseReceipt{Listing: l.Clone(), Tax: tax, Total: total, Delivered: delivered}, nil
}

// Listing returns the active listing id.
func (m *ListingMarket) Listing(id int64) (model.Listing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	return l.Clone(), ok
}

// Listings returns every active listing ordered by id.
func (m *ListingMarket) Listings() []model.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked(nil)
}

// ListingsBySeller returns the active listings of seller ordered by id.
func (m *ListingMarket) ListingsBySeller(seller uuid.UUID) []model.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked(func(l model.Listing) bool { return l.Seller == seller })
}

// Count returns the number of active listings.
func (m *ListingMarket) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listings)
}

// QuoteTax returns the tax a buyer would pay on price.
func (m *ListingMarket) QuoteTax(price int64) int64 {
	return Tax(price, m.taxRate)
}

func (m *ListingMarket) reject(op string, err *Error) error {
	m.audit.rejected(op, err)
	return err
}
