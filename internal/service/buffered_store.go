package service

import (
	"context"
	"errors"

	"github.com/StimpyDev/EconomyCraft/internal/cache"
	"github.com/StimpyDev/EconomyCraft/internal/model"
	"github.com/StimpyDev/EconomyCraft/internal/repository"
)

// BufferedStore is a RecordStore that writes to a Redis buffer first and
// lets the buffer flush to the durable store in the background.
type BufferedStore struct {
	store  repository.RecordStore
	buffer *cache.RedisRecordBuffer
}

// NewBufferedStore wraps store with buffer. buffer must have been created
// with CreateFlushFunc(store).
func NewBufferedStore(store repository.RecordStore, buffer *cache.RedisRecordBuffer) *BufferedStore {
	return &BufferedStore{store: store, buffer: buffer}
}

// LoadRecord checks the buffer first, then falls back to the durable store.
func (s *BufferedStore) LoadRecord(ctx context.Context, concern string) ([]byte, error) {
	if rec, err := s.buffer.Get(ctx, concern); err == nil && rec != nil {
		return rec.Data, nil
	}
	return s.store.LoadRecord(ctx, concern)
}

// SaveRecord buffers the snapshot.
func (s *BufferedStore) SaveRecord(ctx context.Context, concern string, data []byte) error {
	return s.buffer.Add(ctx, concern, data)
}

// BatchSaveRecords buffers every snapshot.
func (s *BufferedStore) BatchSaveRecords(ctx context.Context, records []model.Record) error {
	var errs []error
	for _, r := range records {
		if err := s.buffer.Add(ctx, r.Concern, r.Data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetStats adds the buffer backlog to the durable store statistics.
func (s *BufferedStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := s.buffer.Count(ctx); err == nil {
		stats["buffered_records"] = n
	}
	return stats, nil
}

// Flush writes every buffered snapshot to the durable store now.
func (s *BufferedStore) Flush(ctx context.Context) error {
	return s.buffer.Flush(ctx)
}

// Close performs a final flush and closes the durable store.
func (s *BufferedStore) Close() error {
	s.buffer.Stop()
	return s.store.Close()
}

// CreateFlushFunc creates a flush function for the Redis buffer.
func CreateFlushFunc(store repository.RecordStore) cache.FlushFunc {
	return func(ctx context.Context, items []*model.BufferedRecord) error {
		records := make([]model.Record, len(items))
		for i, item := range items {
			records[i] = model.Record{
				Concern: item.Concern,
				Data:    item.Data,
				SavedAt: item.UpdatedAt,
			}
		}
		return store.BatchSaveRecords(ctx, records)
	}
}
