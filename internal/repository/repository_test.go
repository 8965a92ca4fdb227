package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]RecordStore {
	t.Helper()

	file, err := NewFileRecordStore(filepath.Join(t.TempDir(), "records"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "economy.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]RecordStore{"file": file, "sqlite": sqlite}
}

func TestRecordStores(t *testing.T) {
	ctx := context.Background()

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			data, err := store.LoadRecord(ctx, model.ConcernBalances)
			require.NoError(t, err)
			assert.Nil(t, data, "missing concern loads as nil")

			require.NoError(t, store.SaveRecord(ctx, model.ConcernBalances, []byte(`{"a":1}`)))
			require.NoError(t, store.SaveRecord(ctx, model.ConcernBalances, []byte(`{"a":2}`)))

			data, err = store.LoadRecord(ctx, model.ConcernBalances)
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":2}`, string(data))

			require.NoError(t, store.BatchSaveRecords(ctx, []model.Record{
				{Concern: model.ConcernListings, Data: []byte(`{"next_id":3,"listings":[]}`)},
				{Concern: model.ConcernOrders, Data: []byte(`{"next_id":1,"requests":[]}`)},
			}))

			data, err = store.LoadRecord(ctx, model.ConcernListings)
			require.NoError(t, err)
			assert.JSONEq(t, `{"next_id":3,"listings":[]}`, string(data))

			stats, err := store.GetStats(ctx)
			require.NoError(t, err)
			assert.Contains(t, stats, "db_size_bytes")
		})
	}
}

func TestFileRecordStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileRecordStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveRecord(ctx, model.ConcernDeliveries, []byte(`{"x":[]}`)))
	require.NoError(t, store.Close())

	reopened, err := NewFileRecordStore(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.LoadRecord(ctx, model.ConcernDeliveries)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":[]}`, string(data))

	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	assert.Empty(t, matches, "no temp files left behind")
}

func newTransactionLogs(t *testing.T) map[string]TransactionLog {
	t.Helper()

	zlog, err := NewZstdTransactionLog(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { zlog.Close() })

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tx.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]TransactionLog{"zstd": zlog, "sqlite": sqlite}
}

func TestTransactionLogs(t *testing.T) {
	ctx := context.Background()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, txLog := range newTransactionLogs(t) {
		t.Run(name, func(t *testing.T) {
			entries := []model.Transaction{
				{ID: uuid.NewString(), Kind: model.TxPay, Player: alice, Counterparty: bob, Amount: 10, CreatedAt: base},
				{ID: uuid.NewString(), Kind: model.TxDaily, Player: alice, Amount: 5, CreatedAt: base.Add(time.Minute)},
				{ID: uuid.NewString(), Kind: model.TxPay, Player: carol, Counterparty: bob, Amount: 7, CreatedAt: base.Add(2 * time.Minute)},
			}
			for _, e := range entries {
				require.NoError(t, txLog.AppendTransaction(ctx, e))
			}

			got, err := txLog.ListTransactions(ctx, alice, 10)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, model.TxDaily, got[0].Kind, "newest first")
			assert.Equal(t, bob, got[1].Counterparty)

			got, err = txLog.ListTransactions(ctx, bob, 1)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, carol, got[0].Player)
		})
	}
}

func TestSQLitePlayerRepository(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "players.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	id := uuid.New()
	_, err = store.GetPlayerName(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.UpsertPlayer(ctx, id, "Steve"))
	require.NoError(t, store.UpsertPlayer(ctx, id, "Alex"))

	name, err := store.GetPlayerName(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alex", name)

	got, err := store.GetPlayerID(ctx, "aLeX")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = store.GetPlayerID(ctx, "Steve")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: postgresDialect}
	assert.Equal(t, "SELECT $1, $2", pg.rebind("SELECT ?, ?"))

	lite := &SQLStore{dialect: sqliteDialect}
	assert.Equal(t, "SELECT ?, ?", lite.rebind("SELECT ?, ?"))
}
