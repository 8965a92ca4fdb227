package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/cache"
	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/google/uuid"
)

const pendingSalePrefix = "sell:pending:"

// Seller sells player items to the server at catalog prices, subject to the
// daily sell limit.
type Seller struct {
	window    time.Duration
	catalog   ItemCatalog
	inspector ItemInspector
	inventory Inventory
	pending   cache.Cache

	limits *DailyLimits
	ledger *Ledger
	audit  *auditor
	clock  Clock
	log    *slog.Logger
}

// quote validates item and returns its unit sell price.
func (s *Seller) quote(op string, item model.Item) (int64, *Error) {
	if s.inventory == nil {
		return 0, newError(KindUnavailable, op, "no inventory attached")
	}
	if item.Kind == "" {
		return 0, newError(KindInvalidAmount, op, "item is empty")
	}
	desc, ok := s.catalog.Resolve(item.Kind)
	if !ok || desc.SellPrice <= 0 {
		return 0, newError(KindNotFound, op, "item cannot be sold to the server")
	}
	if s.inspector != nil && !s.inspector.Sellable(item) {
		return 0, newError(KindInvalidAmount, op, "item cannot be sold in its current state")
	}
	return desc.SellPrice, nil
}

func (s *Seller) held(ctx context.Context, op string, player uuid.UUID, item model.Item) (int, *Error) {
	n, err := s.inventory.Count(ctx, player, item)
	if err != nil {
		return 0, &Error{Kind: KindUnavailable, Op: op, Msg: "inventory lookup failed", Err: err}
	}
	return n, nil
}

// Sell sells count items like item from player's inventory.
func (s *Seller) Sell(ctx context.Context, player uuid.UUID, item model.Item, count int) (model.SaleResult, error) {
	const op = "sell"
	unit, e := s.quote(op, item)
	if e != nil {
		return model.SaleResult{}, s.reject(op, e)
	}
	if count <= 0 {
		return model.SaleResult{}, s.reject(op, newError(KindInvalidAmount, op, "count must be positive"))
	}
	total, ok := safeMultiply(unit, count)
	if !ok {
		return model.SaleResult{}, s.reject(op, newError(KindInvalidAmount, op, "sale total overflows"))
	}
	have, e := s.held(ctx, op, player, item)
	if e != nil {
		return model.SaleResult{}, s.reject(op, e)
	}
	if have < count {
		return model.SaleResult{}, s.reject(op, withOp(ErrInsufficientItems, op))
	}
	return s.complete(ctx, op, player, item, count, total)
}

// PreviewSellAll prices every item like item held by player and keeps the
// quote until ConfirmSellAll or the confirmation window elapses.
func (s *Seller) PreviewSellAll(ctx context.Context, player uuid.UUID, item model.Item) (model.PendingSale, error) {
	const op = "sell all"
	unit, e := s.quote(op, item)
	if e != nil {
		return model.PendingSale{}, s.reject(op, e)
	}
	count, e := s.held(ctx, op, player, item)
	if e != nil {
		return model.PendingSale{}, s.reject(op, e)
	}
	if count <= 0 {
		return model.PendingSale{}, s.reject(op, withOp(ErrInsufficientItems, op))
	}
	total, ok := safeMultiply(unit, count)
	if !ok {
		return model.PendingSale{}, s.reject(op, newError(KindInvalidAmount, op, "sale total overflows"))
	}
	if total > s.limits.Remaining(player) {
		return model.PendingSale{}, s.reject(op, withOp(ErrLimitExceeded, op))
	}

	now := s.clock.Now()
	p := model.PendingSale{
		Player:    player,
		Item:      item.WithCount(1),
		Count:     count,
		Total:     total,
		CreatedAt: now,
		ExpiresAt: now.Add(s.window),
	}
	data, err := json.Marshal(p)
	if err != nil {
		return model.PendingSale{}, err
	}
	if err := s.pending.Set(ctx, pendingSalePrefix+player.String(), data, s.window); err != nil {
		return model.PendingSale{}, &Error{Kind: KindUnavailable, Op: op, Msg: "store pending sale", Err: err}
	}
	return p, nil
}

// ConfirmSellAll completes the pending sale of player. The pending quote is
// discarded whatever the outcome.
func (s *Seller) ConfirmSellAll(ctx context.Context, player uuid.UUID, item model.Item) (model.SaleResult, error) {
	const op = "confirm sell all"
	key := pendingSalePrefix + player.String()

	data, err := s.pending.Get(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return model.SaleResult{}, s.reject(op, newError(KindNotFound, op, "no pending sale"))
	}
	if err != nil {
		return model.SaleResult{}, s.reject(op, &Error{Kind: KindUnavailable, Op: op, Msg: "load pending sale", Err: err})
	}
	if err := s.pending.Delete(ctx, key); err != nil {
		s.log.Warn("failed to discard pending sale", "player", player, "error", err)
	}

	var p model.PendingSale
	if err := json.Unmarshal(data, &p); err != nil {
		return model.SaleResult{}, s.reject(op, &Error{Kind: KindNotFound, Op: op, Msg: "no pending sale", Err: err})
	}
	if s.clock.Now().After(p.ExpiresAt) {
		return model.SaleResult{}, s.reject(op, newError(KindNotFound, op, "pending sale expired"))
	}
	if !p.Item.SameKind(item) {
		return model.SaleResult{}, s.reject(op, newError(KindInvalidAmount, op, "held item does not match pending sale"))
	}
	if _, e := s.quote(op, item); e != nil {
		return model.SaleResult{}, s.reject(op, e)
	}
	have, e := s.held(ctx, op, player, item)
	if e != nil {
		return model.SaleResult{}, s.reject(op, e)
	}
	if have < p.Count {
		return model.SaleResult{}, s.reject(op, withOp(ErrInsufficientItems, op))
	}
	return s.complete(ctx, op, player, item, p.Count, p.Total)
}

// complete records the sale against the daily limit, takes the items and
// credits the player. The limit is recorded first so a refused sale leaves
// the inventory untouched.
func (s *Seller) complete(ctx context.Context, op string, player uuid.UUID, item model.Item, count int, total int64) (model.SaleResult, error) {
	if s.limits.TryRecordSale(ctx, player, total) {
		return model.SaleResult{}, s.reject(op, withOp(ErrLimitExceeded, op))
	}
	if err := s.inventory.Remove(ctx, player, item, count); err != nil {
		s.limits.Release(ctx, player, total)
		return model.SaleResult{}, s.reject(op, &Error{Kind: KindInsufficientItems, Op: op, Err: err})
	}

	bal := s.ledger.addMoney(ctx, player, total)
	s.audit.record(ctx, model.TxServerSell, player, uuid.Nil, total, 0, item.Kind)
	s.log.Info("sold to server", "player", player, "kind", item.Kind, "count", count, "total", total)

	remaining := int64(-1)
	if s.limits.Enabled() {
		remaining = s.limits.Remaining(player)
	}
	return model.SaleResult{
		Item:      item.WithCount(count),
		Count:     count,
		Total:     total,
		Remaining: remaining,
		Balance:   bal,
	}, nil
}

func (s *Seller) reject(op string, err *Error) error {
	s.audit.rejected(op, err)
	return err
}
