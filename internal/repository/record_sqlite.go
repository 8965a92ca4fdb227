package repository

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = sqlDialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS economy_records (
			concern TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			saved_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS economy_transactions (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			player TEXT NOT NULL,
			counterparty TEXT NOT NULL,
			amount INTEGER NOT NULL,
			tax INTEGER NOT NULL DEFAULT 0,
			reference TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_player ON economy_transactions(player, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_counterparty ON economy_transactions(counterparty, created_at)`,
		`CREATE TABLE IF NOT EXISTS economy_players (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_lower TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_players_name ON economy_players(name_lower)`,
	},
	upsertRecord: `
		INSERT INTO economy_records (concern, data, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(concern) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`,
	insertTx: `
		INSERT INTO economy_transactions (id, kind, player, counterparty, amount, tax, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	upsertPlayer: `
		INSERT INTO economy_players (id, name, name_lower, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, name_lower = excluded.name_lower, updated_at = excluded.updated_at`,
	sizeQuery: `SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`,
	serialize: true,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open with WAL mode and other optimizations
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store, err := newSQLStore(db, sqliteDialect, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	store.log.Info("sqlite store initialized", "path", dbPath)
	return store, nil
}
