package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/google/uuid"
)

// sqlDialect carries the statements that differ between SQL backends.
type sqlDialect struct {
	name         string
	schema       []string
	upsertRecord string
	insertTx     string
	upsertPlayer string
	sizeQuery    string
	// serialize guards every call with a mutex (single-writer SQLite).
	serialize bool
}

// SQLStore implements RecordStore, TransactionLog and PlayerRepository on
// top of database/sql. The SQLite, PostgreSQL and MySQL constructors only
// differ in driver, pool settings and dialect.
type SQLStore struct {
	db      *sql.DB
	dialect sqlDialect
	mu      sync.RWMutex
	log     *slog.Logger
}

func newSQLStore(db *sql.DB, d sqlDialect, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &SQLStore{db: db, dialect: d, log: logger}, nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect.name != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) lock() func() {
	if !s.dialect.serialize {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *SQLStore) rlock() func() {
	if !s.dialect.serialize {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// LoadRecord returns the stored document for concern.
func (s *SQLStore) LoadRecord(ctx context.Context, concern string) ([]byte, error) {
	defer s.rlock()()

	var data []byte
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT data FROM economy_records WHERE concern = ?`), concern).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", concern, err)
	}
	return data, nil
}

// SaveRecord upserts the document for concern.
func (s *SQLStore) SaveRecord(ctx context.Context, concern string, data []byte) error {
	defer s.lock()()

	_, err := s.db.ExecContext(ctx, s.rebind(s.dialect.upsertRecord), concern, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", concern, err)
	}
	return nil
}

// BatchSaveRecords upserts several documents in one transaction.
func (s *SQLStore) BatchSaveRecords(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	defer s.lock()()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(s.dialect.upsertRecord))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		savedAt := rec.SavedAt
		if savedAt.IsZero() {
			savedAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, rec.Concern, string(rec.Data), savedAt.UnixMilli()); err != nil {
			return fmt.Errorf("failed to batch save %s: %w", rec.Concern, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AppendTransaction inserts an audit row.
func (s *SQLStore) AppendTransaction(ctx context.Context, t model.Transaction) error {
	defer s.lock()()

	_, err := s.db.ExecContext(ctx, s.rebind(s.dialect.insertTx),
		t.ID, string(t.Kind), t.Player.String(), t.Counterparty.String(),
		t.Amount, t.Tax, t.Reference, t.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the newest rows involving player.
func (s *SQLStore) ListTransactions(ctx context.Context, player uuid.UUID, limit int) ([]model.Transaction, error) {
	defer s.rlock()()

	if limit <= 0 {
		limit = 50
	}
	query := s.rebind(`
		SELECT id, kind, player, counterparty, amount, tax, reference, created_at
		FROM economy_transactions
		WHERE player = ? OR counterparty = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, player.String(), player.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	result := []model.Transaction{}
	for rows.Next() {
		var (
			t                    model.Transaction
			kind, p, counterpart string
			createdAt            int64
		)
		if err := rows.Scan(&t.ID, &kind, &p, &counterpart, &t.Amount, &t.Tax, &t.Reference, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Kind = model.TransactionKind(kind)
		t.Player, _ = uuid.Parse(p)
		t.Counterparty, _ = uuid.Parse(counterpart)
		t.CreatedAt = time.UnixMilli(createdAt).UTC()
		result = append(result, t)
	}
	return result, rows.Err()
}

// UpsertPlayer records the latest known name for id.
func (s *SQLStore) UpsertPlayer(ctx context.Context, id uuid.UUID, name string) error {
	defer s.lock()()

	_, err := s.db.ExecContext(ctx, s.rebind(s.dialect.upsertPlayer),
		id.String(), name, strings.ToLower(name), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert player: %w", err)
	}
	return nil
}

// GetPlayerName returns the stored name for id.
func (s *SQLStore) GetPlayerName(ctx context.Context, id uuid.UUID) (string, error) {
	defer s.rlock()()

	var name string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT name FROM economy_players WHERE id = ?`), id.String()).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get player name: %w", err)
	}
	return name, nil
}

// GetPlayerID resolves name case-insensitively, preferring the most recent entry.
func (s *SQLStore) GetPlayerID(ctx context.Context, name string) (uuid.UUID, error) {
	defer s.rlock()()

	query := s.rebind(`SELECT id FROM economy_players WHERE name_lower = ? ORDER BY updated_at DESC LIMIT 1`)

	var raw string
	err := s.db.QueryRowContext(ctx, query, strings.ToLower(name)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get player id: %w", err)
	}
	return uuid.Parse(raw)
}

// GetStats returns row counts, size and pool usage.
func (s *SQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	defer s.rlock()()

	stats := make(map[string]interface{})
	stats["driver"] = s.dialect.name

	counts := map[string]string{
		"records":      "SELECT COUNT(*) FROM economy_records",
		"transactions": "SELECT COUNT(*) FROM economy_transactions",
		"players":      "SELECT COUNT(*) FROM economy_players",
	}
	for key, query := range counts {
		var n int64
		if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, err
		}
		stats["total_"+key] = n
	}

	var lastSave sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(saved_at) FROM economy_records").Scan(&lastSave); err == nil && lastSave.Valid {
		stats["last_save"] = time.UnixMilli(lastSave.Int64).UTC()
	}

	if s.dialect.sizeQuery != "" {
		var size int64
		if err := s.db.QueryRowContext(ctx, s.dialect.sizeQuery).Scan(&size); err == nil {
			stats["db_size_bytes"] = size
		}
	}

	dbStats := s.db.Stats()
	stats["connections"] = map[string]interface{}{
		"open":     dbStats.OpenConnections,
		"in_use":   dbStats.InUse,
		"idle":     dbStats.Idle,
		"max_open": dbStats.MaxOpenConnections,
	}
	return stats, nil
}

// Close closes the database connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var (
	_ RecordStore      = (*SQLStore)(nil)
	_ TransactionLog   = (*SQLStore)(nil)
	_ PlayerRepository = (*SQLStore)(nil)
)
