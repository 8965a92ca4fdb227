package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/metrics"
	"github.com/StimpyDev/EconomyCraft/internal/model"
	"github.com/StimpyDev/EconomyCraft/internal/repository"
)

// Persister writes concern snapshots to a RecordStore. Writes are serialized.
// A failed write keeps the snapshot so Retry can replay it; the in-memory
// state stays authoritative in the meantime.
type Persister struct {
	store   repository.RecordStore
	log     *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	failed  map[string][]byte
	lastErr error
}

// NewPersister creates a persister writing to store.
func NewPersister(store repository.RecordStore, logger *slog.Logger, m *metrics.Metrics) *Persister {
	return &Persister{
		store:   store,
		log:     logger,
		metrics: m,
		failed:  make(map[string][]byte),
	}
}

// load decodes the stored concern into v. Missing concerns leave v untouched.
func (p *Persister) load(ctx context.Context, concern string, v any) error {
	data, err := p.store.LoadRecord(ctx, concern)
	if err != nil {
		return &Error{Kind: KindPersistenceFailure, Op: "load " + concern, Err: err}
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{Kind: KindPersistenceFailure, Op: "load " + concern, Msg: "corrupt record", Err: err}
	}
	return nil
}

// save encodes v and writes it. Callers hold the lock guarding v so
// snapshots of one concern reach the store in mutation order.
func (p *Persister) save(ctx context.Context, concern string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		// Encoding our own types cannot fail short of a programming error.
		panic(fmt.Sprintf("encode %s: %v", concern, err))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// A cancelled caller must not leave the snapshot unwritten.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.store.SaveRecord(writeCtx, concern, data); err != nil {
		p.failed[concern] = data
		p.lastErr = err
		p.metrics.PersistFailed(concern)
		p.metrics.SetPersistPending(len(p.failed))
		p.log.Error("failed to persist record, will retry", "concern", concern, "error", err)
		return
	}
	if _, ok := p.failed[concern]; ok {
		delete(p.failed, concern)
		p.metrics.SetPersistPending(len(p.failed))
	}
}

// Retry replays every failed snapshot. It returns a PersistenceFailure error
// when some remain unsaved.
func (p *Persister) Retry(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.failed) == 0 {
		return nil
	}

	records := make([]model.Record, 0, len(p.failed))
	now := time.Now()
	for concern, data := range p.failed {
		records = append(records, model.Record{Concern: concern, Data: data, SavedAt: now})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Concern < records[j].Concern })

	if err := p.store.BatchSaveRecords(ctx, records); err != nil {
		p.lastErr = err
		p.log.Warn("persistence retry failed", "pending", len(records), "error", err)
		return &Error{Kind: KindPersistenceFailure, Op: "retry", Msg: fmt.Sprintf("%d concerns unsaved", len(records)), Err: err}
	}

	p.failed = make(map[string][]byte)
	p.lastErr = nil
	p.metrics.SetPersistPending(0)
	p.log.Info("persistence retry succeeded", "concerns", len(records))
	return nil
}

// Pending lists concerns whose latest snapshot is not durable.
func (p *Persister) Pending() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.failed))
	for concern := range p.failed {
		out = append(out, concern)
	}
	sort.Strings(out)
	return out
}

// LastError returns the most recent write error while writes are pending.
func (p *Persister) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
