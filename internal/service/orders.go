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

// FulfillReceipt describes a completed request fulfillment.
type FulfillReceipt struct {
	Request model.OrderRequest `json:"request"`
	Tax     int64              `json:"tax"`
	Payout  int64              `json:"payout"`
}

// OrderBook is the buy-side marketplace. Requesters escrow nothing; funds
// are checked and moved only when a request is fulfilled.
type OrderBook struct {
	taxRate   decimal.Decimal
	maxStacks int
	catalog   ItemCatalog
	inventory Inventory

	mu       sync.Mutex
	requests map[int64]model.OrderRequest
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

func (b *OrderBook) load(ctx context.Context) error {
	doc := model.OrdersDocument{NextID: 1}
	if err := b.persist.load(ctx, model.ConcernOrders, &doc); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID = max(doc.NextID, 1)
	for _, r := range doc.Requests {
		b.requests[r.ID] = r
		if r.ID >= b.nextID {
			b.nextID = r.ID + 1
		}
	}
	b.metrics.SetRequests(len(b.requests))
	return nil
}

func (b *OrderBook) saveLocked(ctx context.Context) {
	doc := model.OrdersDocument{NextID: b.nextID, Requests: b.sortedLocked(nil)}
	b.persist.save(ctx, model.ConcernOrders, doc)
	b.metrics.SetRequests(len(b.requests))
}

func (b *OrderBook) sortedLocked(keep func(model.OrderRequest) bool) []model.OrderRequest {
	out := make([]model.OrderRequest, 0, len(b.requests))
	for _, r := range b.requests {
		if keep == nil || keep(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MaxRequestAmount returns the largest amount a request for kind may ask for.
func (b *OrderBook) MaxRequestAmount(kind string) int {
	return b.maxStacks * stackSize(b.catalog, kind)
}

// CreateRequest posts a request for amount items like item, paying price.
func (b *OrderBook) CreateRequest(ctx context.Context, requester uuid.UUID, item model.Item, amount int, price int64) (model.OrderRequest, error) {
	const op = "create request"
	if item.Kind == "" {
		return model.OrderRequest{}, b.reject(op, newError(KindInvalidAmount, op, "item is empty"))
	}
	if amount <= 0 || amount > b.MaxRequestAmount(item.Kind) {
		return model.OrderRequest{}, b.reject(op, newError(KindInvalidAmount, op, "amount out of range"))
	}
	if price <= 0 || price > MaxBalance {
		return model.OrderRequest{}, b.reject(op, newError(KindInvalidAmount, op, "price out of range"))
	}

	b.mu.Lock()
	r := model.OrderRequest{
		ID:        b.nextID,
		Requester: requester,
		Item:      item.WithCount(1),
		Amount:    amount,
		Price:     price,
		CreatedAt: b.clock.Now().UTC(),
	}
	b.nextID++
	b.requests[r.ID] = r
	b.saveLocked(ctx)
	b.mu.Unlock()

	b.log.Info("request created", "id", r.ID, "requester", requester, "kind", item.Kind, "amount", amount, "price", price)
	b.hub.Publish(model.Event{Kind: model.EventRequestAdded, ID: r.ID, Player: requester, Amount: price, At: r.CreatedAt})
	return r.Clone(), nil
}

// RemoveRequest removes id unconditionally. It reports false when the
// request no longer exists.
func (b *OrderBook) RemoveRequest(ctx context.Context, id int64) (model.OrderRequest, bool) {
	b.mu.Lock()
	r, ok := b.requests[id]
	if ok {
		delete(b.requests, id)
		b.saveLocked(ctx)
	}
	b.mu.Unlock()

	if !ok {
		return model.OrderRequest{}, false
	}
	b.hub.Publish(model.Event{Kind: model.EventRequestRemoved, ID: id, Player: r.Requester, At: b.clock.Now()})
	return r.Clone(), true
}

// CancelRequest removes a request on behalf of its requester.
func (b *OrderBook) CancelRequest(ctx context.Context, id int64, by uuid.UUID) (model.OrderRequest, error) {
	const op = "cancel request"

	b.mu.Lock()
	r, ok := b.requests[id]
	if !ok {
		b.mu.Unlock()
		return model.OrderRequest{}, b.reject(op, withOp(ErrAlreadyFulfilled, op))
	}
	if r.Requester != by {
		b.mu.Unlock()
		return model.OrderRequest{}, b.reject(op, newError(KindForbidden, op, "only the requester may cancel"))
	}
	delete(b.requests, id)
	b.saveLocked(ctx)
	b.mu.Unlock()

	b.hub.Publish(model.Event{Kind: model.EventRequestRemoved, ID: id, Player: by, At: b.clock.Now()})
	return r.Clone(), nil
}

// Fulfill hands the requested items from fulfiller to the requester. The
// requester pays price, the fulfiller receives price minus tax, and the
// items go to the requester's mailbox in max-stack chunks.
func (b *OrderBook) Fulfill(ctx context.Context, id int64, fulfiller uuid.UUID) (FulfillReceipt, error) {
	const op = "fulfill"
	if b.inventory == nil {
		return FulfillReceipt{}, b.reject(op, newError(KindUnavailable, op, "no inventory attached"))
	}

	b.mu.Lock()
	r, ok := b.requests[id]
	if !ok {
		b.mu.Unlock()
		return FulfillReceipt{}, b.reject(op, withOp(ErrAlreadyFulfilled, op))
	}
	if r.Requester == fulfiller {
		b.mu.Unlock()
		return FulfillReceipt{}, b.reject(op, withOp(ErrSelfTrade, op))
	}

	have, err := b.inventory.Count(ctx, fulfiller, r.Item)
	if err != nil {
		b.mu.Unlock()
		return FulfillReceipt{}, b.reject(op, &Error{Kind: KindUnavailable, Op: op, Msg: "inventory lookup failed", Err: err})
	}
	if have < r.Amount {
		b.mu.Unlock()
		return FulfillReceipt{}, b.reject(op, withOp(ErrInsufficientItems, op))
	}

	if !b.ledger.removeMoney(ctx, r.Requester, r.Price) {
		b.mu.Unlock()
		return FulfillReceipt{}, b.reject(op, withOp(ErrRequesterCannotPay, op))
	}
	if err := b.inventory.Remove(ctx, fulfiller, r.Item, r.Amount); err != nil {
		b.ledger.addMoney(ctx, r.Requester, r.Price)
		b.mu.Unlock()
		return FulfillReceipt{}, b.reject(op, &Error{Kind: KindInsufficientItems, Op: op, Err: err})
	}
	delete(b.requests, id)
	b.saveLocked(ctx)
	b.mu.Unlock()

	tax := Tax(r.Price, b.taxRate)
	payout := max(0, r.Price-tax)
	b.ledger.addMoney(ctx, fulfiller, payout)

	// The requester may be offline; the mailbox is the only delivery path.
	b.deliver.deliverStacks(ctx, r.Requester, r.Item, r.Amount, stackSize(b.catalog, r.Item.Kind), false)

	ref := "request:" + strconv.FormatInt(id, 10)
	b.audit.record(ctx, model.TxFulfill, r.Requester, fulfiller, r.Price, tax, ref)
	b.log.Info("request fulfilled", "id", id, "requester", r.Requester, "fulfiller", fulfiller, "price", r.Price, "tax", tax)

	now := b.clock.Now()
	b.hub.Publish(model.Event{Kind: model.EventRequestFulfilled, ID: id, Player: r.Requester, Other: fulfiller, Amount: r.Price, At: now})
	b.hub.Publish(model.Event{Kind: model.EventRequestRemoved, ID: id, Player: r.Requester, At: now})

	return FulfillReceipt{Request: r.Clone(), Tax: tax, Payout: payout}, nil
}

// Request returns the open request id.
func (b *OrderBook) Request(id int64) (model.OrderRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.requests[id]
	return r.Clone(), ok
}

// Requests returns every open request ordered by id.
func (b *OrderBook) Requests() []model.OrderRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortedLocked(nil)
}

// RequestsBy returns the open requests of requester.
func (b *OrderBook) RequestsBy(requester uuid.UUID) []model.OrderRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortedLocked(func(r model.OrderRequest) bool { return r.Requester == requester })
}

// Count returns the number of open requests.
func (b *OrderBook) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *OrderBook) reject(op string, err *Error) error {
	b.audit.rejected(op, err)
	return err
}
