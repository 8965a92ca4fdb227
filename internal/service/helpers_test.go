package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/config"
	"github.com/StimpyDev/EconomyCraft/internal/logger"
	"github.com/StimpyDev/EconomyCraft/internal/model"
	"github.com/StimpyDev/EconomyCraft/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeInventory stores stacks per player. Players marked full accept nothing.
type fakeInventory struct {
	mu    sync.Mutex
	items map[uuid.UUID][]model.Item
	full  map[uuid.UUID]bool
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{items: map[uuid.UUID][]model.Item{}, full: map[uuid.UUID]bool{}}
}

func (f *fakeInventory) give(player uuid.UUID, item model.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[player] = append(f.items[player], item.Clone())
}

func (f *fakeInventory) setFull(player uuid.UUID, full bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.full[player] = full
}

func (f *fakeInventory) countLocked(player uuid.UUID, item model.Item) int {
	n := 0
	for _, it := range f.items[player] {
		if it.SameKind(item) {
			n += it.Count
		}
	}
	return n
}

func (f *fakeInventory) Count(_ context.Context, player uuid.UUID, item model.Item) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countLocked(player, item), nil
}

func (f *fakeInventory) Remove(_ context.Context, player uuid.UUID, item model.Item, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countLocked(player, item) < n {
		return errors.New("not enough items")
	}
	kept := f.items[player][:0]
	for _, it := range f.items[player] {
		if n > 0 && it.SameKind(item) {
			take := min(n, it.Count)
			it.Count -= take
			n -= take
		}
		if it.Count > 0 {
			kept = append(kept, it)
		}
	}
	f.items[player] = kept
	return nil
}

func (f *fakeInventory) Add(_ context.Context, player uuid.UUID, item model.Item) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full[player] {
		return false, nil
	}
	f.items[player] = append(f.items[player], item.Clone())
	return true, nil
}

// memStore is an in-memory RecordStore whose writes can be made to fail.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (s *memStore) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *memStore) LoadRecord(_ context.Context, concern string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[concern], nil
}

func (s *memStore) SaveRecord(_ context.Context, concern string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("disk full")
	}
	s.data[concern] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) BatchSaveRecords(ctx context.Context, records []model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("disk full")
	}
	for _, r := range records {
		s.data[r.Concern] = append([]byte(nil), r.Data...)
	}
	return nil
}

func (s *memStore) GetStats(context.Context) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{"concerns": len(s.data)}, nil
}

func (s *memStore) Close() error { return nil }

var _ repository.RecordStore = (*memStore)(nil)

type mapCatalog map[string]model.ItemDescriptor

func (c mapCatalog) Resolve(key string) (model.ItemDescriptor, bool) {
	d, ok := c[key]
	return d, ok
}

var testCatalog = mapCatalog{
	"diamond": {Key: "diamond", MaxStack: 64, SellPrice: 100, BuyPrice: 250},
	"pearl":   {Key: "pearl", MaxStack: 16, SellPrice: 20},
	"bread":   {Key: "bread", MaxStack: 64, BuyPrice: 5},
	"dirt":    {Key: "dirt", MaxStack: 64},
}

func testConfig() config.EconomyConfig {
	return config.EconomyConfig{
		StartingBalance:   100,
		DailyAmount:       50,
		TaxRate:           0.1,
		MaxRequestStacks:  36,
		SellConfirmWindow: 20 * time.Second,
		Timezone:          "UTC",
		ServerShopEnabled: true,
		TopPageSize:       10,
	}
}

type testEnv struct {
	eco   *Economy
	clock *fakeClock
	inv   *fakeInventory
	store *memStore
}

func newTestEnv(t *testing.T, mutate func(*config.EconomyConfig), opts ...Option) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	env := &testEnv{clock: newFakeClock(), inv: newFakeInventory(), store: newMemStore()}

	base := []Option{
		WithLogger(logger.Discard()),
		WithClock(env.clock),
		WithInventory(env.inv),
		WithCatalog(testCatalog),
	}
	eco, err := Open(context.Background(), env.store, cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { eco.Close(context.Background()) })

	env.eco = eco
	return env
}

func item(kind string, count int) model.Item {
	return model.NewItem(kind, count, nil)
}
