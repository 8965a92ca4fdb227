package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FlushConfig holds configuration for the flush scheduler.
type FlushConfig struct {
	// RetryInterval is how often unsaved concerns are written again.
	// Default: 30 seconds
	RetryInterval time.Duration
}

// DefaultFlushConfig returns default flush configuration.
func DefaultFlushConfig() FlushConfig {
	return FlushConfig{RetryInterval: 30 * time.Second}
}

// FlushScheduler periodically retries snapshots the Persister failed to write.
type FlushScheduler struct {
	persist   *Persister
	config    FlushConfig
	log       *slog.Logger
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
	wg        sync.WaitGroup
}

// NewFlushScheduler creates a new flush scheduler.
func NewFlushScheduler(p *Persister, config FlushConfig, logger *slog.Logger) *FlushScheduler {
	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultFlushConfig().RetryInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FlushScheduler{
		persist: p,
		config:  config,
		log:     logger,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the flush scheduler.
func (s *FlushScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.RetryInterval)
	s.mu.Unlock()

	s.log.Info("flush scheduler started", "interval", s.config.RetryInterval)

	s.wg.Add(1)
	go s.run()
}

func (s *FlushScheduler) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.runRetry()
		case <-s.stopCh:
			s.log.Info("flush scheduler stopped")
			return
		}
	}
}

func (s *FlushScheduler) runRetry() {
	if len(s.persist.Pending()) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.persist.Retry(ctx); err != nil {
		s.log.Warn("unsaved economy state remains", "pending", s.persist.Pending(), "error", err)
	}
}

// Stop stops the flush scheduler and waits for an in-flight retry.
func (s *FlushScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
		s.mu.Unlock()
	})
	s.wg.Wait()
}
