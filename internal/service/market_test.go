package service

import (
	"context"
	"testing"

	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPurchase(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	eco := env.eco
	seller, buyer := uuid.New(), uuid.New()

	eco.Ledger.SetMoney(ctx, seller, 0)
	eco.Ledger.SetMoney(ctx, buyer, 1100)

	l, err := eco.Listings.AddListing(ctx, seller, item("axe", 1), 1000)
	require.NoError(t, err)

	receipt, err := eco.Listings.Purchase(ctx, l.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, int64(100), receipt.Tax)
	assert.Equal(t, int64(1100), receipt.Total)
	assert.True(t, receipt.Delivered)

	assert.Equal(t, int64(0), eco.Ledger.Balance(ctx, buyer))
	assert.Equal(t, int64(1000), eco.Ledger.Balance(ctx, seller))
	_, ok := eco.Listings.Listing(l.ID)
	assert.False(t, ok)

	n, _ := env.inv.Count(ctx, buyer, item("axe", 1))
	assert.Equal(t, 1, n)
}

func TestPurchaseRejections(t *testing.T) {
	ctx := context.Background()
	eco := newTestEnv(t, nil).eco
	seller, buyer := uuid.New(), uuid.New()

	l, err := eco.Listings.AddListing(ctx, seller, item("axe", 1), 100)
	require.NoError(t, err)

	_, err = eco.Listings.Purchase(ctx, l.ID, seller)
	assert.ErrorIs(t, err, ErrSelfTrade)

	eco.Ledger.SetMoney(ctx, buyer, 109)
	_, err = eco.Listings.Purchase(ctx, l.ID, buyer)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(109), eco.Ledger.Balance(ctx, buyer))
	_, ok := eco.Listings.Listing(l.ID)
	assert.True(t, ok, "listing survives a failed purchase")

	_, err = eco.Listings.Purchase(ctx, 9999, buyer)
	assert.ErrorIs(t, err, ErrAlreadySold)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurchaseFullInventoryUsesMailbox(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	seller, buyer := uuid.New(), uuid.New()
	env.inv.setFull(buyer, true)

	l, err := env.eco.Listings.AddListing(ctx, seller, item("axe", 1), 10)
	require.NoError(t, err)

	receipt, err := env.eco.Listings.Purchase(ctx, l.ID, buyer)
	require.NoError(t, err)
	assert.False(t, receipt.Delivered)
	assert.Equal(t, []model.Item{item("axe", 1)}, env.eco.Mailbox.Deliveries(buyer))
}

func TestConcurrentPurchaseHasOneWinner(t *testing.T) {
	ctx := context.Background()
	eco := newTestEnv(t, nil).eco
	seller := uuid.New()
	buyers := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	for _, b := range buyers {
		eco.Ledger.SetMoney(ctx, b, 1000)
	}
	eco.Ledger.SetMoney(ctx, seller, 0)

	l, err := eco.Listings.AddListing(ctx, seller, item("axe", 1), 100)
	require.NoError(t, err)

	results := make([]error, len(buyers))
	var g errgroup.Group
	for i, b := range buyers {
		i, b := i, b
		g.Go(func() error {
			_, results[i] = eco.Listings.Purchase(ctx, l.ID, b)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	winners := 0
	for i, err := range results {
		if err == nil {
			winners++
			assert.Equal(t, int64(890), eco.Ledger.Balance(ctx, buyers[i]))
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadySold)
		assert.Equal(t, int64(1000), eco.Ledger.Balance(ctx, buyers[i]), "loser is not charged")
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, int64(100), eco.Ledger.Balance(ctx, seller), "seller credited exactly once")
}

func TestRemoveListingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	eco := newTestEnv(t, nil).eco
	seller := uuid.New()

	l, err := eco.Listings.AddListing(ctx, seller, item("axe", 1), 10)
	require.NoError(t, err)

	removed, ok := eco.Listings.RemoveListing(ctx, l.ID)
	require.True(t, ok)
	assert.Equal(t, l.ID, removed.ID)

	_, ok = eco.Listings.RemoveListing(ctx, l.ID)
	assert.False(t, ok)
	assert.Empty(t, eco.Listings.Listings())
}

func TestListingIDsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	eco := newTestEnv(t, nil).eco
	seller := uuid.New()

	a, err := eco.Listings.AddListing(ctx, seller, item("axe", 1), 10)
	require.NoError(t, err)
	eco.Listings.RemoveListing(ctx, a.ID)
	b, err := eco.Listings.AddListing(ctx, seller, item("axe", 1), 10)
	require.NoError(t, err)
	assert.Greater(t, b.ID, a.ID, "ids are never reused")
}

func TestAddListingValidation(t *testing.T) {
	ctx := context.Background()
	eco := newTestEnv(t, nil).eco
	seller := uuid.New()

	tests := []struct {
		name  string
		item  model.Item
		price int64
	}{
		{"empty item", model.Item{}, 10},
		{"zero price", item("axe", 1), 0},
		{"price above max", item("axe", 1), MaxBalance + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eco.Listings.AddListing(ctx, seller, tt.item, tt.price)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
	assert.Equal(t, 0, eco.Listings.Count())
}

func TestListingCopiesItemPayload(t *testing.T) {
	ctx := context.Background()
	eco := newTestEnv(t, nil).eco
	meta := []byte("sharpness")

	l, err := eco.Listings.AddListing(ctx, uuid.New(), model.Item{Kind: "axe", Count: 1, Meta: meta}, 10)
	require.NoError(t, err)
	meta[0] = 'X'

	stored, ok := eco.Listings.Listing(l.ID)
	require.True(t, ok)
	assert.Equal(t, "sharpness", string(stored.Item.Meta))
}

func TestCancelListing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	seller, other := uuid.New(), uuid.New()

	l, err := env.eco.Listings.AddListing(ctx, seller, item("axe", 1), 10)
	require.NoError(t, err)

	_, err = env.eco.Listings.CancelListing(ctx, l.ID, other)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.eco.Listings.CancelListing(ctx, l.ID, seller)
	require.NoError(t, err)
	n, _ := env.inv.Count(ctx, seller, item("axe", 1))
	assert.Equal(t, 1, n, "item returned to the seller")

	_, err = env.eco.Listings.CancelListing(ctx, l.ID, seller)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingsBySeller(t *testing.T) {
	ctx := context.Background()
	eco := newTestEnv(t, nil).eco
	a, b := uuid.New(), uuid.New()

	for _, s := range []uuid.UUID{a, b, a} {
		_, err := eco.Listings.AddListing(ctx, s, item("axe", 1), 10)
		require.NoError(t, err)
	}

	mine := eco.Listings.ListingsBySeller(a)
	require.Len(t, mine, 2)
	assert.Less(t, mine[0].ID, mine[1].ID)
	assert.Len(t, eco.Listings.Listings(), 3)
}

func TestFulfill(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	eco := env.eco
	requester, fulfiller := uuid.New(), uuid.New()
	env.inv.give(fulfiller, item("diamond", 64))
	env.inv.give(fulfiller, item("diamond", 10))

	r, err := eco.Orders.CreateRequest(ctx, requester, item("diamond", 5), 70, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Item.Count, "request stores a single-item template")

	receipt, err := eco.Orders.Fulfill(ctx, r.ID, fulfiller)
	require.NoError(t, err)
	assert.Equal(t, int64(10), receipt.Tax)
	assert.Equal(t, int64(90), receipt.Payout)

	assert.Equal(t, int64(0), eco.Ledger.Balance(ctx, requester))
	assert.Equal(t, int64(190), eco.Ledger.Balance(ctx, fulfiller))

	left, _ := env.inv.Count(ctx, fulfiller, item("diamond", 1))
	assert.Equal(t, 4, left)
	n, _ := env.inv.Count(ctx, requester, item("diamond", 1))
	assert.Zero(t, n, "fulfilled items only go to the mailbox")

	assert.Equal(t, []model.Item{item("diamond", 64), item("diamond", 6)}, eco.Mailbox.Deliveries(requester))
	_, ok := eco.Orders.Request(r.ID)
	assert.False(t, ok)
}

func TestFulfillRejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	eco := env.eco
	requester, fulfiller := uuid.New(), uuid.New()

	r, err := eco.Orders.CreateRequest(ctx, requester, item("diamond", 1), 10, 500)
	require.NoError(t, err)

	_, err = eco.Orders.Fulfill(ctx, r.ID, fulfiller)
	assert.ErrorIs(t, err, ErrInsufficientItems)

	env.inv.give(fulfiller, item("diamond", 10))
	_, err = eco.Orders.Fulfill(ctx, r.ID, fulfiller)
	assert.ErrorIs(t, err, ErrRequesterCannotPay)
	n, _ := env.inv.Count(ctx, fulfiller, item("diamond", 1))
	assert.Equal(t, 10, n, "fulfiller keeps items when the requester cannot pay")
	assert.Equal(t, int64(100), eco.Ledger.Balance(ctx, requester))

	_, err = eco.Orders.Fulfill(ctx, r.ID, requester)
	assert.ErrorIs(t, err, ErrSelfTrade)

	_, err = eco.Orders.Fulfill(ctx, 4242, fulfiller)
	assert.ErrorIs(t, err, ErrAlreadyFulfilled)

	_, ok := eco.Orders.Request(r.ID)
	assert.True(t, ok)
}

func TestFulfillWithoutInventory(t *testing.T) {
	ctx := context.Background()
	eco := newTestEnv(t, nil, WithInventory(nil)).eco

	r, err := eco.Orders.CreateRequest(ctx, uuid.New(), item("diamond", 1), 1, 10)
	require.NoError(t, err)
	_, err = eco.Orders.Fulfill(ctx, r.ID, uuid.New())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestConcurrentFulfillHasOneWinner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	eco := env.eco
	requester := uuid.New()
	eco.Ledger.SetMoney(ctx, requester, 1000)

	fulfillers := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, f := range fulfillers {
		env.inv.give(f, item("pearl", 16))
	}

	r, err := eco.Orders.CreateRequest(ctx, requester, item("pearl", 1), 16, 200)
	require.NoError(t, err)

	results := make([]error, len(fulfillers))
	var g errgroup.Group
	for i, f := range fulfillers {
		i, f := i, f
		g.Go(func() error {
			_, results[i] = eco.Orders.Fulfill(ctx, r.ID, f)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	winners := 0
	for i, err := range results {
		n, _ := env.inv.Count(ctx, fulfillers[i], item("pearl", 1))
		if err == nil {
			winners++
			assert.Zero(t, n)
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyFulfilled)
		assert.Equal(t, 16, n)
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, int64(800), eco.Ledger.Balance(ctx, requester), "requester charged exactly once")
}

func TestCreateRequestValidation(t *testing.T) {
	ctx := context.Background()
	eco := newTestEnv(t, nil).eco
	p := uuid.New()

	assert.Equal(t, 36*16, eco.Orders.MaxRequestAmount("pearl"))
	assert.Equal(t, 36*64, eco.Orders.MaxRequestAmount("unknown"))

	tests := []struct {
		name   string
		item   model.Item
		amount int
		price  int64
	}{
		{"empty kind", model.Item{Count: 1}, 1, 10},
		{"zero amount", item("pearl", 1), 0, 10},
		{"amount above stacks", item("pearl", 1), 36*16 + 1, 10},
		{"zero price", item("pearl", 1), 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eco.Orders.CreateRequest(ctx, p, tt.item, tt.amount, tt.price)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestCancelAndRemoveRequest(t *testing.T) {
	ctx := context.Background()
	eco := newTestEnv(t, nil).eco
	requester := uuid.New()

	r, err := eco.Orders.CreateRequest(ctx, requester, item("pearl", 1), 4, 10)
	require.NoError(t, err)

	_, err = eco.Orders.CancelRequest(ctx, r.ID, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = eco.Orders.CancelRequest(ctx, r.ID, requester)
	require.NoError(t, err)

	_, ok := eco.Orders.RemoveRequest(ctx, r.ID)
	assert.False(t, ok, "second removal is a no-op")
	assert.Empty(t, eco.Orders.Requests())
}
