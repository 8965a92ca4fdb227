package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/config"
	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withSellLimit(limit int64) func(*config.EconomyConfig) {
	return func(c *config.EconomyConfig) { c.DailySellLimit = limit }
}

func TestDailyLimitScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withSellLimit(500))
	limits := env.eco.Limits
	p := uuid.New()

	assert.False(t, limits.TryRecordSale(ctx, p, 300))
	assert.Equal(t, int64(200), limits.Remaining(p))

	assert.True(t, limits.TryRecordSale(ctx, p, 300))
	assert.Equal(t, int64(200), limits.Remaining(p), "exceeded sale records nothing")

	limits.Release(ctx, p, 100)
	assert.Equal(t, int64(300), limits.Remaining(p))
}

func TestDailyLimitRollover(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withSellLimit(500))
	p := uuid.New()

	require.False(t, env.eco.Limits.TryRecordSale(ctx, p, 500))
	assert.Equal(t, int64(0), env.eco.Limits.Remaining(p))

	env.clock.Advance(24 * time.Hour)
	assert.Equal(t, int64(500), env.eco.Limits.Remaining(p), "yesterday's record counts as zero")
	assert.False(t, env.eco.Limits.TryRecordSale(ctx, p, 500))
}

func TestDailyLimitDisabled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withSellLimit(0))
	p := uuid.New()

	assert.False(t, env.eco.Limits.Enabled())
	assert.False(t, env.eco.Limits.TryRecordSale(ctx, p, math.MaxInt64))
	assert.Equal(t, int64(math.MaxInt64), env.eco.Limits.Remaining(p))
}

func TestEpochDayUsesCivilDate(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	late := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, EpochDay(late, time.UTC)+1, EpochDay(late, tokyo))
	assert.Equal(t, int64(0), EpochDay(time.Unix(0, 0), time.UTC))
}

func TestSell(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withSellLimit(500))
	p := uuid.New()
	env.inv.give(p, item("diamond", 10))

	res, err := env.eco.Seller.Sell(ctx, p, item("diamond", 1), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.Total)
	assert.Equal(t, int64(200), res.Remaining)
	assert.Equal(t, int64(400), res.Balance)

	_, err = env.eco.Seller.Sell(ctx, p, item("diamond", 1), 3)
	assert.ErrorIs(t, err, ErrLimitExceeded)

	left, _ := env.inv.Count(ctx, p, item("diamond", 1))
	assert.Equal(t, 7, left, "refused sale leaves items untouched")
	assert.Equal(t, int64(400), env.eco.Ledger.Balance(ctx, p))
}

func TestSellRejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	p := uuid.New()
	env.inv.give(p, item("diamond", 2))
	env.inv.give(p, item("dirt", 64))

	tests := []struct {
		name  string
		item  model.Item
		count int
		err   error
	}{
		{"not sellable", item("dirt", 1), 1, ErrNotFound},
		{"unknown item", item("bedrock", 1), 1, ErrNotFound},
		{"zero count", item("diamond", 1), 0, ErrInvalidAmount},
		{"more than held", item("diamond", 1), 3, ErrInsufficientItems},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.eco.Seller.Sell(ctx, p, tt.item, tt.count)
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.Equal(t, int64(100), env.eco.Ledger.Balance(ctx, p))
}

type rejectMeta struct{}

func (rejectMeta) Sellable(it model.Item) bool { return len(it.Meta) == 0 }

func TestSellConsultsInspector(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, WithInspector(rejectMeta{}))
	p := uuid.New()
	damaged := model.NewItem("diamond", 1, []byte("damaged"))
	env.inv.give(p, damaged)

	_, err := env.eco.Seller.Sell(ctx, p, damaged, 1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSellAllConfirm(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	p := uuid.New()
	env.inv.give(p, item("diamond", 5))

	pending, err := env.eco.Seller.PreviewSellAll(ctx, p, item("diamond", 1))
	require.NoError(t, err)
	assert.Equal(t, 5, pending.Count)
	assert.Equal(t, int64(500), pending.Total)
	assert.Equal(t, env.clock.Now().Add(20*time.Second), pending.ExpiresAt)

	env.clock.Advance(10 * time.Second)
	res, err := env.eco.Seller.ConfirmSellAll(ctx, p, item("diamond", 1))
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Total)
	assert.Equal(t, int64(-1), res.Remaining)
	assert.Equal(t, int64(600), env.eco.Ledger.Balance(ctx, p))

	_, err = env.eco.Seller.ConfirmSellAll(ctx, p, item("diamond", 1))
	assert.ErrorIs(t, err, ErrNotFound, "pending sale is consumed")
}

func TestSellAllExpires(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	p := uuid.New()
	env.inv.give(p, item("diamond", 5))

	_, err := env.eco.Seller.PreviewSellAll(ctx, p, item("diamond", 1))
	require.NoError(t, err)

	env.clock.Advance(21 * time.Second)
	_, err = env.eco.Seller.ConfirmSellAll(ctx, p, item("diamond", 1))
	assert.ErrorIs(t, err, ErrNotFound)

	n, _ := env.inv.Count(ctx, p, item("diamond", 1))
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(100), env.eco.Ledger.Balance(ctx, p))
}

func TestSellAllDetectsChangedInventory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	p := uuid.New()
	env.inv.give(p, item("diamond", 5))
	env.inv.give(p, item("pearl", 4))

	_, err := env.eco.Seller.PreviewSellAll(ctx, p, item("diamond", 1))
	require.NoError(t, err)
	_, err = env.eco.Seller.ConfirmSellAll(ctx, p, item("pearl", 1))
	assert.ErrorIs(t, err, ErrInvalidAmount, "held item switched")

	_, err = env.eco.Seller.PreviewSellAll(ctx, p, item("diamond", 1))
	require.NoError(t, err)
	require.NoError(t, env.inv.Remove(ctx, p, item("diamond", 1), 2))
	_, err = env.eco.Seller.ConfirmSellAll(ctx, p, item("diamond", 1))
	assert.ErrorIs(t, err, ErrInsufficientItems)
}

func TestSellAllPreviewRespectsLimit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withSellLimit(200))
	p := uuid.New()
	env.inv.give(p, item("diamond", 5))

	_, err := env.eco.Seller.PreviewSellAll(ctx, p, item("diamond", 1))
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestBuyFromServer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	p := uuid.New()
	env.eco.Ledger.SetMoney(ctx, p, 1000)

	receipt, err := env.eco.Shop.BuyFromServer(ctx, p, "bread", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(500), receipt.Total)
	assert.Equal(t, int64(500), receipt.Balance)

	n, _ := env.inv.Count(ctx, p, item("bread", 1))
	assert.Equal(t, 100, n)

	env.inv.setFull(p, true)
	_, err = env.eco.Shop.BuyFromServer(ctx, p, "bread", 70)
	require.NoError(t, err)
	assert.Equal(t, []model.Item{item("bread", 64), item("bread", 6)}, env.eco.Mailbox.Deliveries(p))
}

func TestBuyFromServerRejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	p := uuid.New()

	_, err := env.eco.Shop.BuyFromServer(ctx, p, "diamond", 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = env.eco.Shop.BuyFromServer(ctx, p, "pearl", 1)
	assert.ErrorIs(t, err, ErrNotFound, "pearls are not sold by the server")

	_, err = env.eco.Shop.BuyFromServer(ctx, p, "bread", math.MaxInt)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	disabled := newTestEnv(t, func(c *config.EconomyConfig) { c.ServerShopEnabled = false })
	_, err = disabled.eco.Shop.BuyFromServer(ctx, p, "bread", 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}
