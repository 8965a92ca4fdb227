package service

import (
	"context"
	"log/slog"

	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/google/uuid"
)

// ShopReceipt describes a purchase from the server shop.
type ShopReceipt struct {
	Item    model.Item `json:"item"`
	Count   int        `json:"count"`
	Total   int64      `json:"total"`
	Balance int64      `json:"balance"`
}

// ServerShop sells catalog items at their buy price.
type ServerShop struct {
	enabled bool
	catalog ItemCatalog

	ledger  *Ledger
	deliver *deliverer
	audit   *auditor
	log     *slog.Logger
}

// Enabled reports whether the shop accepts purchases.
func (s *ServerShop) Enabled() bool { return s.enabled }

// BuyFromServer debits count times the buy price of key and delivers the
// items in max-stack chunks.
func (s *ServerShop) BuyFromServer(ctx context.Context, player uuid.UUID, key string, count int) (ShopReceipt, error) {
	const op = "server buy"
	if !s.enabled {
		return ShopReceipt{}, s.reject(op, newError(KindUnavailable, op, "server shop is disabled"))
	}
	if count <= 0 {
		return ShopReceipt{}, s.reject(op, newError(KindInvalidAmount, op, "count must be positive"))
	}
	desc, ok := s.catalog.Resolve(key)
	if !ok || desc.BuyPrice <= 0 {
		return ShopReceipt{}, s.reject(op, newError(KindNotFound, op, "item is not sold by the server"))
	}
	total, ok := safeMultiply(desc.BuyPrice, count)
	if !ok || total > MaxBalance {
		return ShopReceipt{}, s.reject(op, newError(KindInvalidAmount, op, "purchase total overflows"))
	}
	if !s.ledger.removeMoney(ctx, player, total) {
		return ShopReceipt{}, s.reject(op, withOp(ErrInsufficientFunds, op))
	}

	item := model.NewItem(desc.Key, 1, nil)
	s.deliver.deliverStacks(ctx, player, item, count, desc.StackSize(), true)

	s.audit.record(ctx, model.TxServerBuy, player, uuid.Nil, total, 0, desc.Key)
	s.log.Info("bought from server", "player", player, "kind", desc.Key, "count", count, "total", total)

	bal, _ := s.ledger.GetBalance(ctx, player, false)
	return ShopReceipt{Item: item.WithCount(count), Count: count, Total: total, Balance: bal}, nil
}

func (s *ServerShop) reject(op string, err *Error) error {
	s.audit.rejected(op, err)
	return err
}
