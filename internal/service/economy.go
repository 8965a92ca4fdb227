package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/cache"
	"github.com/StimpyDev/EconomyCraft/internal/config"
	"github.com/StimpyDev/EconomyCraft/internal/logger"
	"github.com/StimpyDev/EconomyCraft/internal/metrics"
	"github.com/StimpyDev/EconomyCraft/internal/model"
	"github.com/StimpyDev/EconomyCraft/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Economy owns every economy component and their shared persistence.
type Economy struct {
	Ledger    *Ledger
	Limits    *DailyLimits
	Listings  *ListingMarket
	Orders    *OrderBook
	Mailbox   *Mailbox
	Seller    *Seller
	Shop      *ServerShop
	Hub       *Hub
	Directory Directory

	cfg        config.EconomyConfig
	store      repository.RecordStore
	persist    *Persister
	txLog      repository.TransactionLog
	ownedCache *cache.MemoryCache
	log        *slog.Logger
	metrics    *metrics.Metrics
	openedAt   time.Time
}

type options struct {
	logger    *slog.Logger
	clock     Clock
	inventory Inventory
	catalog   ItemCatalog
	inspector ItemInspector
	txLog     repository.TransactionLog
	cache     cache.Cache
	directory Directory
	metrics   *metrics.Metrics
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithClock overrides the time source used for day boundaries and expiry.
func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

// WithInventory attaches the host inventory. Without one, fulfillment and
// selling to the server are unavailable and deliveries go to the mailbox.
func WithInventory(inv Inventory) Option { return func(o *options) { o.inventory = inv } }

// WithCatalog sets the item catalog.
func WithCatalog(c ItemCatalog) Option { return func(o *options) { o.catalog = c } }

// WithInspector sets the sellability check.
func WithInspector(i ItemInspector) Option { return func(o *options) { o.inspector = i } }

// WithTransactionLog enables the audit trail.
func WithTransactionLog(t repository.TransactionLog) Option {
	return func(o *options) { o.txLog = t }
}

// WithCache sets the cache holding pending sell confirmations.
func WithCache(c cache.Cache) Option { return func(o *options) { o.cache = c } }

// WithDirectory sets the player directory.
func WithDirectory(d Directory) Option { return func(o *options) { o.directory = d } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// Open loads every concern from store and assembles the economy. The store
// stays owned by the caller.
func Open(ctx context.Context, store repository.RecordStore, cfg config.EconomyConfig, opts ...Option) (*Economy, error) {
	if store == nil {
		return nil, errors.New("economy: record store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("economy: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = SystemClock()
	}
	if o.catalog == nil {
		o.catalog = emptyCatalog{}
	}
	if o.directory == nil {
		o.directory = NewMemoryDirectory()
	}

	e := &Economy{
		cfg:      cfg,
		store:    store,
		txLog:    o.txLog,
		log:      logger.Component(o.logger, "economy"),
		metrics:  o.metrics,
		openedAt: o.clock.Now(),
	}
	if o.cache == nil {
		e.ownedCache = cache.NewMemoryCache(cache.WithClock(o.clock.Now))
		o.cache = e.ownedCache
	}

	taxRate := decimal.NewFromFloat(cfg.TaxRate)
	e.persist = NewPersister(store, logger.Component(o.logger, "persister"), o.metrics)
	e.Hub = NewHub(o.metrics)
	a := &auditor{txLog: o.txLog, clock: o.clock, log: logger.Component(o.logger, "audit"), metrics: o.metrics}

	e.Limits = newDailyLimits(cfg.DailySellLimit, loc, o.clock, e.persist)
	e.Ledger = newLedger(LedgerConfig{
		StartingBalance: cfg.StartingBalance,
		DailyAmount:     cfg.DailyAmount,
		PvPLossPct:      decimal.NewFromFloat(cfg.PvPBalanceLossPct),
		Location:        loc,
	}, e.Limits, e.persist, e.Hub, a, o.clock, logger.Component(o.logger, "ledger"))
	e.Mailbox = newMailbox(e.persist, e.Hub, o.clock, o.metrics)

	d := &deliverer{inventory: o.inventory, mailbox: e.Mailbox, log: logger.Component(o.logger, "delivery")}

	e.Listings = &ListingMarket{
		taxRate:  taxRate,
		listings: make(map[int64]model.Listing),
		nextID:   1,
		ledger:   e.Ledger,
		deliver:  d,
		persist:  e.persist,
		hub:      e.Hub,
		audit:    a,
		clock:    o.clock,
		metrics:  o.metrics,
		log:      logger.Component(o.logger, "listings"),
	}
	e.Orders = &OrderBook{
		taxRate:   taxRate,
		maxStacks: cfg.MaxRequestStacks,
		catalog:   o.catalog,
		inventory: o.inventory,
		requests:  make(map[int64]model.OrderRequest),
		nextID:    1,
		ledger:    e.Ledger,
		deliver:   d,
		persist:   e.persist,
		hub:       e.Hub,
		audit:     a,
		clock:     o.clock,
		metrics:   o.metrics,
		log:       logger.Component(o.logger, "orders"),
	}
	e.Seller = &Seller{
		window:    cfg.SellConfirmWindow,
		catalog:   o.catalog,
		inspector: o.inspector,
		inventory: o.inventory,
		pending:   o.cache,
		limits:    e.Limits,
		ledger:    e.Ledger,
		audit:     a,
		clock:     o.clock,
		log:       logger.Component(o.logger, "seller"),
	}
	e.Shop = &ServerShop{
		enabled: cfg.ServerShopEnabled,
		catalog: o.catalog,
		ledger:  e.Ledger,
		deliver: d,
		audit:   a,
		log:     logger.Component(o.logger, "shop"),
	}
	e.Directory = o.directory

	loaders := []func(context.Context) error{
		e.Ledger.load,
		e.Limits.load,
		e.Listings.load,
		e.Mailbox.load,
		e.Orders.load,
	}
	for _, load := range loaders {
		if err := load(ctx); err != nil {
			e.release()
			return nil, err
		}
	}

	e.log.Info("economy opened",
		"accounts", e.Ledger.AccountCount(),
		"listings", e.Listings.Count(),
		"requests", e.Orders.Count(),
		"mailbox_items", e.Mailbox.ItemCount(),
	)
	return e, nil
}

// Persister exposes the persister for scheduling retries.
func (e *Economy) Persister() *Persister { return e.persist }

// Config returns the tunables the economy was opened with.
func (e *Economy) Config() config.EconomyConfig { return e.cfg }

// Flush retries every snapshot that has not been saved yet.
func (e *Economy) Flush(ctx context.Context) error {
	return e.persist.Retry(ctx)
}

// Close flushes pending state and shuts the event hub down. It reports a
// PersistenceFailure when some state could not be saved.
func (e *Economy) Close(ctx context.Context) error {
	err := e.persist.Retry(ctx)
	e.release()
	if err != nil {
		e.log.Error("economy closed with unsaved state", "pending", strings.Join(e.persist.Pending(), ","), "error", err)
		return err
	}
	e.log.Info("economy closed")
	return nil
}

func (e *Economy) release() {
	e.Hub.Close()
	if e.ownedCache != nil {
		e.ownedCache.Close()
	}
}

// Transactions returns the newest audit entries involving player.
func (e *Economy) Transactions(ctx context.Context, player uuid.UUID, limit int) ([]model.Transaction, error) {
	const op = "transactions"
	if e.txLog == nil {
		return nil, newError(KindUnavailable, op, "transaction log is disabled")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	txs, err := e.txLog.ListTransactions(ctx, player, limit)
	if err != nil {
		return nil, &Error{Kind: KindUnavailable, Op: op, Err: err}
	}
	return txs, nil
}

// Stats returns a summary of economy state for operators.
func (e *Economy) Stats(ctx context.Context) map[string]interface{} {
	var total int64
	for _, bal := range e.Ledger.Balances() {
		total = saturatingAdd(total, bal)
	}

	stats := map[string]interface{}{
		"accounts":          e.Ledger.AccountCount(),
		"money_supply":      total,
		"listings":          e.Listings.Count(),
		"requests":          e.Orders.Count(),
		"mailbox_items":     e.Mailbox.ItemCount(),
		"subscribers":       e.Hub.Subscribers(),
		"pending_concerns":  e.persist.Pending(),
		"uptime_seconds":    int64(time.Since(e.openedAt).Seconds()),
		"daily_sell_limit":  e.cfg.DailySellLimit,
		"server_shop":       e.Shop.Enabled(),
		"transaction_audit": e.txLog != nil,
	}
	if err := e.persist.LastError(); err != nil {
		stats["last_persist_error"] = err.Error()
	}
	if storeStats, err := e.store.GetStats(ctx); err == nil {
		stats["store"] = storeStats
	} else {
		e.log.Warn("failed to read store stats", "error", err)
	}
	return stats
}
