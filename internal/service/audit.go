package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/metrics"
	"github.com/StimpyDev/EconomyCraft/internal/model"
	"github.com/StimpyDev/EconomyCraft/internal/repository"
	"github.com/StimpyDev/EconomyCraft/pkg/uid"

	"github.com/google/uuid"
)

// auditor records committed movements in the transaction log and metrics.
// Log failures are reported but never undo the movement.
type auditor struct {
	txLog   repository.TransactionLog
	clock   Clock
	log     *slog.Logger
	metrics *metrics.Metrics
}

func (a *auditor) record(ctx context.Context, kind model.TransactionKind, player, counterparty uuid.UUID, amount, tax int64, ref string) {
	a.metrics.Transaction(string(kind), amount)
	if a.txLog == nil {
		return
	}

	tx := model.Transaction{
		ID:           uid.New(),
		Kind:         kind,
		Player:       player,
		Counterparty: counterparty,
		Amount:       amount,
		Tax:          tax,
		Reference:    ref,
		CreatedAt:    a.clock.Now().UTC(),
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.txLog.AppendTransaction(writeCtx, tx); err != nil {
		a.log.Warn("failed to append transaction", "kind", kind, "player", player, "error", err)
	}
}

// rejected counts a refused operation.
func (a *auditor) rejected(op string, err error) {
	if k := KindOf(err); k != "" {
		a.metrics.Rejected(op, string(k))
	}
}
