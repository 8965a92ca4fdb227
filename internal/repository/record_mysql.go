package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var mysqlDialect = sqlDialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS economy_records (
			concern VARCHAR(64) PRIMARY KEY,
			data LONGTEXT NOT NULL,
			saved_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS economy_transactions (
			id VARCHAR(36) PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			player CHAR(36) NOT NULL,
			counterparty CHAR(36) NOT NULL,
			amount BIGINT NOT NULL,
			tax BIGINT NOT NULL DEFAULT 0,
			reference VARCHAR(255) NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			INDEX idx_tx_player (player, created_at),
			INDEX idx_tx_counterparty (counterparty, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS economy_players (
			id CHAR(36) PRIMARY KEY,
			name VARCHAR(64) NOT NULL,
			name_lower VARCHAR(64) NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_players_name (name_lower)
		)`,
	},
	upsertRecord: `
		INSERT INTO economy_records (concern, data, saved_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE data = VALUES(data), saved_at = VALUES(saved_at)`,
	insertTx: `
		INSERT INTO economy_transactions (id, kind, player, counterparty, amount, tax, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	upsertPlayer: `
		INSERT INTO economy_players (id, name, name_lower, updated_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), name_lower = VALUES(name_lower), updated_at = VALUES(updated_at)`,
	sizeQuery: `SELECT COALESCE(SUM(data_length + index_length), 0) FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name LIKE 'economy_%'`,
}

// NewMySQLStore connects to MySQL.
func NewMySQLStore(dsn string, logger *slog.Logger) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	store, err := newSQLStore(db, mysqlDialect, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	store.log.Info("mysql store initialized", "max_open", 10, "max_idle", 5)
	return store, nil
}
