package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/redis/go-redis/v9"
)

// FlushTimeout bounds a single flush to the durable store.
const FlushTimeout = 30 * time.Second

// FlushFunc is called to persist buffered records to the durable store.
type FlushFunc func(ctx context.Context, records []*model.BufferedRecord) error

var deleteIfUnchangedScript = redis.NewScript(`
	if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
		redis.call("HDEL", KEYS[1], ARGV[1])
		redis.call("SREM", KEYS[2], ARGV[1])
		return 1
	else
		return 0
	end
`)

// RedisRecordBuffer coalesces record writes in Redis and flushes the latest
// snapshot of each concern to the durable store in the background.
type RedisRecordBuffer struct {
	client      *redis.Client
	flushFunc   FlushFunc
	flushTicker *time.Ticker
	stopFlush   chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
	keyPrefix   string
	log         *slog.Logger
}

// RedisBufferConfig holds configuration for the Redis buffer.
type RedisBufferConfig struct {
	FlushInterval time.Duration
	KeyPrefix     string
	Logger        *slog.Logger
}

// NewRedisRecordBuffer creates a Redis-backed record buffer using client.
func NewRedisRecordBuffer(client *redis.Client, cfg RedisBufferConfig, flushFunc FlushFunc) (*RedisRecordBuffer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "economycraft:records"
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &RedisRecordBuffer{
		client:      client,
		flushFunc:   flushFunc,
		flushTicker: time.NewTicker(cfg.FlushInterval),
		stopFlush:   make(chan struct{}),
		done:        make(chan struct{}),
		keyPrefix:   keyPrefix,
		log:         logger,
	}

	go b.backgroundFlush()

	logger.Info("redis record buffer started", "prefix", keyPrefix, "flush", cfg.FlushInterval)
	return b, nil
}

func (b *RedisRecordBuffer) bufferKey() string {
	return b.keyPrefix + ":buffer"
}

func (b *RedisRecordBuffer) pendingKey() string {
	return b.keyPrefix + ":pending"
}

// Add buffers the latest snapshot of a concern.
func (b *RedisRecordBuffer) Add(ctx context.Context, concern string, data []byte) error {
	rec := &model.BufferedRecord{
		Concern:   concern,
		Data:      data,
		UpdatedAt: time.Now(),
	}

	jsonData, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := b.client.Pipeline()
	pipe.HSet(ctx, b.bufferKey(), concern, jsonData)
	pipe.SAdd(ctx, b.pendingKey(), concern)
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the buffered snapshot of a concern, or nil when nothing is pending.
func (b *RedisRecordBuffer) Get(ctx context.Context, concern string) (*model.BufferedRecord, error) {
	data, err := b.client.HGet(ctx, b.bufferKey(), concern).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec model.BufferedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Count returns the number of pending concerns.
func (b *RedisRecordBuffer) Count(ctx context.Context) (int64, error) {
	return b.client.SCard(ctx, b.pendingKey()).Result()
}

// FlushBatch writes every pending concern to the durable store. A concern
// rewritten during the flush stays pending.
func (b *RedisRecordBuffer) FlushBatch(ctx context.Context) (int, error) {
	concerns, err := b.client.SMembers(ctx, b.pendingKey()).Result()
	if err != nil {
		return 0, err
	}
	if len(concerns) == 0 {
		return 0, nil
	}

	records := make([]*model.BufferedRecord, 0, len(concerns))
	originalData := make(map[string]string, len(concerns))

	for _, concern := range concerns {
		data, err := b.client.HGet(ctx, b.bufferKey(), concern).Bytes()
		if errors.Is(err, redis.Nil) {
			b.client.SRem(ctx, b.pendingKey(), concern)
			continue
		}
		if err != nil {
			b.log.Error("failed to read buffered record", "concern", concern, "error", err)
			continue
		}

		var rec model.BufferedRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			b.log.Error("dropping corrupt buffered record", "concern", concern, "error", err)
			b.client.HDel(ctx, b.bufferKey(), concern)
			b.client.SRem(ctx, b.pendingKey(), concern)
			continue
		}
		originalData[concern] = string(data)
		records = append(records, &rec)
	}

	if len(records) == 0 {
		return 0, nil
	}

	if err := b.flushFunc(ctx, records); err != nil {
		return 0, err
	}

	pipe := b.client.Pipeline()
	for concern, raw := range originalData {
		deleteIfUnchangedScript.Run(ctx, pipe, []string{b.bufferKey(), b.pendingKey()}, concern, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		b.log.Warn("failed to clear flushed records", "error", err)
	}

	b.log.Debug("flushed buffered records", "count", len(records))
	return len(records), nil
}

// Flush writes all buffered records to the durable store.
func (b *RedisRecordBuffer) Flush(ctx context.Context) error {
	_, err := b.FlushBatch(ctx)
	return err
}

func (b *RedisRecordBuffer) backgroundFlush() {
	defer close(b.done)
	for {
		select {
		case <-b.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
			if _, err := b.FlushBatch(ctx); err != nil {
				b.log.Error("background flush failed", "error", err)
			}
			cancel()
		case <-b.stopFlush:
			ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
			if _, err := b.FlushBatch(ctx); err != nil {
				b.log.Error("shutdown flush failed", "error", err)
			}
			cancel()
			return
		}
	}
}

// Stop halts the background loop after a final flush. The client stays open.
func (b *RedisRecordBuffer) Stop() {
	b.stopOnce.Do(func() {
		b.flushTicker.Stop()
		close(b.stopFlush)
	})
	<-b.done
}
