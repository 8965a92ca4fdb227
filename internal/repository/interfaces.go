package repository

import (
	"context"
	"errors"

	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/google/uuid"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("not found")

// RecordStore persists one JSON document per economy concern.
type RecordStore interface {
	// LoadRecord returns the stored document for concern, or nil when none was saved.
	LoadRecord(ctx context.Context, concern string) ([]byte, error)

	// SaveRecord replaces the document for concern.
	SaveRecord(ctx context.Context, concern string, data []byte) error

	// BatchSaveRecords replaces several documents at once.
	BatchSaveRecords(ctx context.Context, records []model.Record) error

	// GetStats returns statistics about the backing storage.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close releases the store.
	Close() error
}

// TransactionLog is the append-only audit trail of ledger movements.
type TransactionLog interface {
	// AppendTransaction records a movement.
	AppendTransaction(ctx context.Context, tx model.Transaction) error

	// ListTransactions returns the newest movements involving player.
	ListTransactions(ctx context.Context, player uuid.UUID, limit int) ([]model.Transaction, error)
}

// PlayerRepository stores the player id to name directory.
type PlayerRepository interface {
	// UpsertPlayer records the latest known name for id.
	UpsertPlayer(ctx context.Context, id uuid.UUID, name string) error

	// GetPlayerName returns the name for id or ErrNotFound.
	GetPlayerName(ctx context.Context, id uuid.UUID) (string, error)

	// GetPlayerID resolves a name case-insensitively or returns ErrNotFound.
	GetPlayerID(ctx context.Context, name string) (uuid.UUID, error)
}
