package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/cache"
	"github.com/StimpyDev/EconomyCraft/internal/catalog"
	"github.com/StimpyDev/EconomyCraft/internal/config"
	"github.com/StimpyDev/EconomyCraft/internal/handler"
	"github.com/StimpyDev/EconomyCraft/internal/logger"
	"github.com/StimpyDev/EconomyCraft/internal/metrics"
	"github.com/StimpyDev/EconomyCraft/internal/middleware"
	"github.com/StimpyDev/EconomyCraft/internal/repository"
	"github.com/StimpyDev/EconomyCraft/internal/router"
	"github.com/StimpyDev/EconomyCraft/internal/service"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.MustLoad()
	if cfg.App.Debug {
		cfg.Logging.Level = "debug"
	}
	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// openStore opens the durable record store selected by cfg.Store.Type.
func openStore(cfg *config.Config, log *slog.Logger) (repository.RecordStore, error) {
	switch cfg.Store.Type {
	case "mongodb", "mongo":
		return repository.NewMongoDBStore(cfg.Store.MongoURI, cfg.Store.MongoDatabase, log)
	case "postgres", "postgresql":
		return repository.NewPostgresStore(cfg.Store.PostgresDSN(), log)
	case "mysql":
		return repository.NewMySQLStore(cfg.Store.MySQLDSN(), log)
	case "sqlite":
		return repository.NewSQLiteStore(filepath.Join(cfg.Store.Path, "economy.db"), log)
	case "file", "":
		return repository.NewFileRecordStore(cfg.Store.Path, log)
	default:
		return nil, fmt.Errorf("unknown STORE_TYPE %q", cfg.Store.Type)
	}
}

// connectRedis returns a client, or nil when Redis is not needed or not reachable.
func connectRedis(cfg *config.Config, log *slog.Logger) *redis.Client {
	if cfg.Cache.Type != "redis" && !cfg.Store.Buffered {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddress(),
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis connection failed, continuing without it", "addr", cfg.Cache.RedisAddress(), "error", err)
		client.Close()
		return nil
	}
	log.Info("redis client initialized", "addr", cfg.Cache.RedisAddress())
	return client
}

func run(cfg *config.Config, log *slog.Logger) error {
	log.Info("starting economy server", "env", cfg.App.Environment, "version", cfg.App.Version, "store", cfg.Store.Type)
	if len(cfg.App.Keys()) == 0 {
		if cfg.App.IsProduction() {
			return errors.New("API_KEYS must be set in production")
		}
		log.Warn("no API keys configured, every authenticated request will be refused")
	}

	m := metrics.New()

	base, err := openStore(cfg, log)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	store := base

	redisClient := connectRedis(cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var redisBuffer *cache.RedisRecordBuffer
	if redisClient != nil && cfg.Store.Buffered {
		redisBuffer, err = cache.NewRedisRecordBuffer(redisClient, cache.RedisBufferConfig{
			FlushInterval: cfg.Store.FlushInterval,
			KeyPrefix:     cfg.Cache.RedisPrefix + ":records",
			Logger:        logger.Component(log, "record_buffer"),
		}, service.CreateFlushFunc(base))
		if err != nil {
			log.Warn("redis record buffer unavailable, writing through", "error", err)
			redisBuffer = nil
		} else {
			store = service.NewBufferedStore(base, redisBuffer)
			log.Info("redis record buffer initialized")
		}
	}
	// BufferedStore closes the base store after its final flush.
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("failed to close record store", "error", err)
		}
	}()

	var shortCache cache.Cache
	if redisClient != nil && cfg.Cache.Type == "redis" {
		shortCache = cache.NewRedisCache(redisClient, cfg.Cache.RedisPrefix+":cache")
	} else {
		mem := cache.NewMemoryCache()
		defer mem.Close()
		shortCache = mem
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithCache(shortCache),
	}

	switch s := base.(type) {
	case *repository.FileRecordStore:
		txLog, err := repository.NewZstdTransactionLog(filepath.Join(cfg.Store.Path, "transactions"))
		if err != nil {
			return fmt.Errorf("open transaction log: %w", err)
		}
		defer txLog.Close()
		opts = append(opts, service.WithTransactionLog(txLog))
	case repository.TransactionLog:
		opts = append(opts, service.WithTransactionLog(s))
	}

	if players, ok := base.(repository.PlayerRepository); ok {
		opts = append(opts, service.WithDirectory(
			service.NewCachedDirectory(players, shortCache, cfg.Cache.TTL, log)))
	}

	items, err := catalog.Load(cfg.Economy.ItemCatalogPath)
	if err != nil {
		return err
	}
	log.Info("item catalog loaded", "path", cfg.Economy.ItemCatalogPath, "items", items.Len())
	opts = append(opts, service.WithCatalog(items))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	eco, err := service.Open(ctx, store, cfg.Economy, opts...)
	cancel()
	if err != nil {
		return fmt.Errorf("open economy: %w", err)
	}

	scheduler := service.NewFlushScheduler(eco.Persister(), service.FlushConfig{
		RetryInterval: cfg.Store.RetryInterval,
	}, log)
	scheduler.Start()

	r := router.New(router.Config{
		Logger:         log,
		Metrics:        m,
		Handler:        handler.New(eco, cfg.App.Name, cfg.App.Version),
		EconomyHandler: handler.NewEconomyHandler(eco),
		MarketHandler:  handler.NewMarketHandler(eco),
		ShopHandler:    handler.NewShopHandler(eco, items),
		MailboxHandler: handler.NewMailboxHandler(eco),
		LogHandler:     handler.NewLogHandler(eco),
		AdminHandler:   handler.NewAdminHandler(eco, redisBuffer, cfg.Store.Type),
		EventsHandler:  handler.NewEventsHandler(eco.Hub, cfg.Economy.EventSubscriberSize, logger.Component(log, "events")),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{
			APIKeys: cfg.App.Keys(),
			Logger:  log,
		}),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		log.Error("server error", "error", err)
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	scheduler.Stop()

	// Close retries unsaved state once more; the store is closed by the deferred call.
	if err := eco.Close(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
