package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/StimpyDev/EconomyCraft/internal/metrics"
	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/google/uuid"
)

// Inventory is the host's item storage for online players. Add reports
// false when the item did not fit; Remove takes exactly n matching items or
// none.
type Inventory interface {
	Count(ctx context.Context, player uuid.UUID, item model.Item) (int, error)
	Remove(ctx context.Context, player uuid.UUID, item model.Item, n int) error
	Add(ctx context.Context, player uuid.UUID, item model.Item) (bool, error)
}

// Mailbox holds items that could not be handed over directly.
type Mailbox struct {
	mu         sync.Mutex
	deliveries map[uuid.UUID][]model.Item

	persist *Persister
	hub     *Hub
	clock   Clock
	metrics *metrics.Metrics
}

func newMailbox(p *Persister, hub *Hub, clock Clock, m *metrics.Metrics) *Mailbox {
	return &Mailbox{
		deliveries: make(map[uuid.UUID][]model.Item),
		persist:    p,
		hub:        hub,
		clock:      clock,
		metrics:    m,
	}
}

func (m *Mailbox) load(ctx context.Context) error {
	deliveries := map[uuid.UUID][]model.Item{}
	if err := m.persist.load(ctx, model.ConcernDeliveries, &deliveries); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for owner, items := range deliveries {
		if len(items) > 0 {
			m.deliveries[owner] = items
		}
	}
	m.metrics.SetMailboxItems(m.countLocked())
	return nil
}

func (m *Mailbox) countLocked() int {
	n := 0
	for _, items := range m.deliveries {
		n += len(items)
	}
	return n
}

func (m *Mailbox) saveLocked(ctx context.Context) {
	m.persist.save(ctx, model.ConcernDeliveries, m.deliveries)
	m.metrics.SetMailboxItems(m.countLocked())
}

// AddDelivery appends item to owner's queue.
func (m *Mailbox) AddDelivery(ctx context.Context, owner uuid.UUID, item model.Item) {
	m.mu.Lock()
	m.deliveries[owner] = append(m.deliveries[owner], item.Clone())
	m.saveLocked(ctx)
	m.mu.Unlock()

	m.hub.Publish(model.Event{Kind: model.EventDeliveryAdded, Player: owner, Amount: 1, At: m.clock.Now()})
}

// HasDeliveries reports whether owner has anything waiting.
func (m *Mailbox) HasDeliveries(owner uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deliveries[owner]) > 0
}

// Deliveries returns a snapshot of owner's queue.
func (m *Mailbox) Deliveries(owner uuid.UUID) []model.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.deliveries[owner]
	out := make([]model.Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// RemoveDelivery removes the first entry equal to item. It reports whether
// one was found.
func (m *Mailbox) RemoveDelivery(ctx context.Context, owner uuid.UUID, item model.Item) bool {
	m.mu.Lock()
	items := m.deliveries[owner]
	idx := -1
	for i, it := range items {
		if it.Equal(item) {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	items = append(items[:idx:idx], items[idx+1:]...)
	if len(items) == 0 {
		delete(m.deliveries, owner)
	} else {
		m.deliveries[owner] = items
	}
	m.saveLocked(ctx)
	m.mu.Unlock()

	m.hub.Publish(model.Event{Kind: model.EventDeliveryClaimed, Player: owner, Amount: 1, At: m.clock.Now()})
	return true
}

// ClaimDeliveries drains and returns owner's whole queue.
func (m *Mailbox) ClaimDeliveries(ctx context.Context, owner uuid.UUID) []model.Item {
	m.mu.Lock()
	items, ok := m.deliveries[owner]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.deliveries, owner)
	m.saveLocked(ctx)
	m.mu.Unlock()

	m.hub.Publish(model.Event{Kind: model.EventDeliveryClaimed, Player: owner, Amount: int64(len(items)), At: m.clock.Now()})
	return items
}

// Snapshot returns a copy of every queue.
func (m *Mailbox) Snapshot() map[uuid.UUID][]model.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[uuid.UUID][]model.Item, len(m.deliveries))
	for owner, items := range m.deliveries {
		cp := make([]model.Item, len(items))
		for i, it := range items {
			cp[i] = it.Clone()
		}
		out[owner] = cp
	}
	return out
}

// ItemCount returns the number of queued items across all owners.
func (m *Mailbox) ItemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked()
}

// deliverer hands items to players, directly when possible.
type deliverer struct {
	inventory Inventory
	mailbox   *Mailbox
	log       *slog.Logger
}

// deliver tries the inventory first and falls back to the mailbox. It
// reports whether the item went straight into the inventory.
func (d *deliverer) deliver(ctx context.Context, player uuid.UUID, item model.Item) bool {
	if d.inventory != nil {
		ok, err := d.inventory.Add(ctx, player, item.Clone())
		if err == nil && ok {
			return true
		}
		if err != nil {
			d.log.Warn("direct delivery failed, using mailbox", "player", player, "kind", item.Kind, "error", err)
		}
	}
	d.mailbox.AddDelivery(ctx, player, item)
	return false
}

// deliverStacks splits count items of template into max-stack chunks.
func (d *deliverer) deliverStacks(ctx context.Context, player uuid.UUID, template model.Item, count, stack int, direct bool) {
	if stack <= 0 {
		stack = model.DefaultMaxStack
	}
	for count > 0 {
		n := min(stack, count)
		chunk := template.WithCount(n)
		if direct {
			d.deliver(ctx, player, chunk)
		} else {
			d.mailbox.AddDelivery(ctx, player, chunk)
		}
		count -= n
	}
}
