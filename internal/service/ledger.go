package service

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerConfig holds the ledger tunables.
type LedgerConfig struct {
	StartingBalance int64
	DailyAmount     int64
	PvPLossPct      decimal.Decimal
	Location        *time.Location
}

// Ledger is the authoritative balance store. One mutex guards all accounts
// and daily claims, so multi-account movements are atomic.
type Ledger struct {
	cfg LedgerConfig

	mu       sync.Mutex
	balances map[uuid.UUID]int64
	claims   map[uuid.UUID]int64

	limits  *DailyLimits
	persist *Persister
	hub     *Hub
	audit   *auditor
	clock   Clock
	log     *slog.Logger
}

func newLedger(cfg LedgerConfig, limits *DailyLimits, p *Persister, hub *Hub, a *auditor, clock Clock, logger *slog.Logger) *Ledger {
	return &Ledger{
		cfg:      cfg,
		balances: make(map[uuid.UUID]int64),
		claims:   make(map[uuid.UUID]int64),
		limits:   limits,
		persist:  p,
		hub:      hub,
		audit:    a,
		clock:    clock,
		log:      logger,
	}
}

func (l *Ledger) load(ctx context.Context) error {
	balances := map[uuid.UUID]int64{}
	if err := l.persist.load(ctx, model.ConcernBalances, &balances); err != nil {
		return err
	}
	claims := map[uuid.UUID]int64{}
	if err := l.persist.load(ctx, model.ConcernDailyClaims, &claims); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, bal := range balances {
		l.balances[id] = Clamp(bal)
	}
	l.claims = claims
	return nil
}

func (l *Ledger) saveBalancesLocked(ctx context.Context) {
	l.persist.save(ctx, model.ConcernBalances, l.balances)
}

// accountLocked returns the balance of id, materializing it when create is set.
func (l *Ledger) accountLocked(id uuid.UUID, create bool) (int64, bool, bool) {
	if bal, ok := l.balances[id]; ok {
		return bal, true, false
	}
	if !create {
		return 0, false, false
	}
	bal := Clamp(l.cfg.StartingBalance)
	l.balances[id] = bal
	return bal, true, true
}

func (l *Ledger) changed(id uuid.UUID, balance int64) {
	l.hub.Publish(model.Event{Kind: model.EventBalanceChanged, Player: id, Amount: balance, At: l.clock.Now()})
}

// GetBalance returns the balance of id. When the account is absent and
// createIfMissing is set it is created at the starting balance.
func (l *Ledger) GetBalance(ctx context.Context, id uuid.UUID, createIfMissing bool) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal, ok, created := l.accountLocked(id, createIfMissing)
	if created {
		l.saveBalancesLocked(ctx)
	}
	return bal, ok
}

// Balance returns the balance of id, creating the account if needed.
func (l *Ledger) Balance(ctx context.Context, id uuid.UUID) int64 {
	bal, _ := l.GetBalance(ctx, id, true)
	return bal
}

// SetMoney sets the balance of id to clamp(amount) and returns it.
func (l *Ledger) SetMoney(ctx context.Context, id uuid.UUID, amount int64) int64 {
	l.mu.Lock()
	bal := Clamp(amount)
	l.balances[id] = bal
	l.saveBalancesLocked(ctx)
	l.mu.Unlock()

	l.audit.record(ctx, model.TxSet, id, uuid.Nil, bal, 0, "")
	l.changed(id, bal)
	return bal
}

// AddMoney adds amount (which may be negative) with saturation and clamping.
func (l *Ledger) AddMoney(ctx context.Context, id uuid.UUID, amount int64) int64 {
	bal := l.addMoney(ctx, id, amount)
	l.audit.record(ctx, model.TxAdd, id, uuid.Nil, amount, 0, "")
	return bal
}

func (l *Ledger) addMoney(ctx context.Context, id uuid.UUID, amount int64) int64 {
	l.mu.Lock()
	cur, _, _ := l.accountLocked(id, true)
	bal := Clamp(saturatingAdd(cur, amount))
	l.balances[id] = bal
	l.saveBalancesLocked(ctx)
	l.mu.Unlock()

	l.changed(id, bal)
	return bal
}

// RemoveMoney debits amount when the balance covers it. It reports false
// and changes nothing otherwise.
func (l *Ledger) RemoveMoney(ctx context.Context, id uuid.UUID, amount int64) bool {
	if !l.removeMoney(ctx, id, amount) {
		return false
	}
	l.audit.record(ctx, model.TxRemove, id, uuid.Nil, amount, 0, "")
	return true
}

func (l *Ledger) removeMoney(ctx context.Context, id uuid.UUID, amount int64) bool {
	if amount < 0 {
		return false
	}

	l.mu.Lock()
	cur, _, created := l.accountLocked(id, true)
	if cur < amount {
		if created {
			l.saveBalancesLocked(ctx)
		}
		l.mu.Unlock()
		return false
	}
	bal := Clamp(cur - amount)
	l.balances[id] = bal
	l.saveBalancesLocked(ctx)
	l.mu.Unlock()

	l.changed(id, bal)
	return true
}

// transfer atomically debits from and credits to. The difference between
// debit and credit is retained by the server.
func (l *Ledger) transfer(ctx context.Context, from, to uuid.UUID, debit, credit int64) bool {
	l.mu.Lock()
	fromBal, _, _ := l.accountLocked(from, true)
	if debit < 0 || credit < 0 || fromBal < debit {
		l.mu.Unlock()
		return false
	}
	fromBal = Clamp(fromBal - debit)
	l.balances[from] = fromBal
	toBal, _, _ := l.accountLocked(to, true)
	toBal = Clamp(saturatingAdd(toBal, credit))
	l.balances[to] = toBal
	l.saveBalancesLocked(ctx)
	l.mu.Unlock()

	l.changed(from, fromBal)
	l.changed(to, toBal)
	return true
}

// Pay moves amount from one player to another. Both balances change in
// one step or neither does.
func (l *Ledger) Pay(ctx context.Context, from, to uuid.UUID, amount int64) error {
	const op = "pay"
	if amount <= 0 {
		return l.reject(op, newError(KindInvalidAmount, op, "amount must be positive"))
	}
	if from == to {
		return l.reject(op, withOp(ErrSelfTrade, op))
	}
	if !l.transfer(ctx, from, to, amount, amount) {
		return l.reject(op, withOp(ErrInsufficientFunds, op))
	}
	l.audit.record(ctx, model.TxPay, from, to, amount, 0, "")
	return nil
}

// RemovePlayer deletes the account with its daily claim and sell records.
// Removing an unknown player is a no-op.
func (l *Ledger) RemovePlayer(ctx context.Context, id uuid.UUID) {
	l.mu.Lock()
	_, hadBalance := l.balances[id]
	_, hadClaim := l.claims[id]
	if hadBalance {
		delete(l.balances, id)
		l.saveBalancesLocked(ctx)
	}
	if hadClaim {
		delete(l.claims, id)
		l.persist.save(ctx, model.ConcernDailyClaims, l.claims)
	}
	l.mu.Unlock()

	l.limits.Forget(ctx, id)
	if hadBalance {
		l.audit.record(ctx, model.TxPlayerRemoved, id, uuid.Nil, 0, 0, "")
		l.changed(id, 0)
	}
}

// ClaimDaily credits the daily reward once per calendar day.
func (l *Ledger) ClaimDaily(ctx context.Context, id uuid.UUID) (int64, error) {
	const op = "claim daily"
	today := EpochDay(l.clock.Now(), l.cfg.Location)

	l.mu.Lock()
	if last, ok := l.claims[id]; ok && last >= today {
		l.mu.Unlock()
		return 0, l.reject(op, withOp(ErrAlreadyClaimed, op))
	}
	cur, _, _ := l.accountLocked(id, true)
	bal := Clamp(saturatingAdd(cur, l.cfg.DailyAmount))
	l.balances[id] = bal
	l.claims[id] = today
	l.saveBalancesLocked(ctx)
	l.persist.save(ctx, model.ConcernDailyClaims, l.claims)
	l.mu.Unlock()

	l.audit.record(ctx, model.TxDaily, id, uuid.Nil, l.cfg.DailyAmount, 0, strconv.FormatInt(today, 10))
	l.changed(id, bal)
	return bal, nil
}

// HasClaimedToday reports whether id already claimed today's reward.
func (l *Ledger) HasClaimedToday(id uuid.UUID) bool {
	today := EpochDay(l.clock.Now(), l.cfg.Location)
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.claims[id]
	return ok && last >= today
}

// HandleTransferOnKill moves floor(pct*victimBalance) from victim to killer
// and returns the amount moved.
func (l *Ledger) HandleTransferOnKill(ctx context.Context, victim, killer uuid.UUID) int64 {
	if victim == killer || l.cfg.PvPLossPct.Sign() <= 0 {
		return 0
	}

	l.mu.Lock()
	victimBal, ok := l.balances[victim]
	loss := PercentOf(victimBal, l.cfg.PvPLossPct)
	if !ok || loss <= 0 {
		l.mu.Unlock()
		return 0
	}
	victimBal = Clamp(victimBal - loss)
	l.balances[victim] = victimBal
	killerBal, _, _ := l.accountLocked(killer, true)
	killerBal = Clamp(saturatingAdd(killerBal, loss))
	l.balances[killer] = killerBal
	l.saveBalancesLocked(ctx)
	l.mu.Unlock()

	l.audit.record(ctx, model.TxPvP, victim, killer, loss, 0, "")
	l.changed(victim, victimBal)
	l.changed(killer, killerBal)
	return loss
}

// TopBalances returns one page (1-based) of accounts by descending balance,
// and the total number of pages.
func (l *Ledger) TopBalances(page, pageSize int) ([]model.BalanceEntry, int, error) {
	const op = "balance top"
	if pageSize <= 0 {
		pageSize = 10
	}

	l.mu.Lock()
	entries := make([]model.BalanceEntry, 0, len(l.balances))
	for id, bal := range l.balances {
		entries = append(entries, model.BalanceEntry{Player: id, Balance: bal})
	}
	l.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Balance != entries[j].Balance {
			return entries[i].Balance > entries[j].Balance
		}
		return entries[i].Player.String() < entries[j].Player.String()
	})

	pages := (len(entries) + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}
	if page < 1 || page > pages {
		return nil, pages, newError(KindNotFound, op, "page out of range")
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(entries))
	out := entries[start:end]
	for i := range out {
		out[i].Rank = start + i + 1
	}
	return out, pages, nil
}

// Balances returns a copy of every balance.
func (l *Ledger) Balances() map[uuid.UUID]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[uuid.UUID]int64, len(l.balances))
	for id, bal := range l.balances {
		out[id] = bal
	}
	return out
}

// AccountCount returns the number of materialized accounts.
func (l *Ledger) AccountCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.balances)
}

func (l *Ledger) reject(op string, err *Error) error {
	l.audit.rejected(op, err)
	return err
}
