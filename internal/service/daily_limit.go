package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/google/uuid"
)

// DailyLimits caps how much each player may sell to the server per calendar
// day. A limit of zero or less disables the cap.
type DailyLimits struct {
	limit int64
	loc   *time.Location
	clock Clock

	mu      sync.Mutex
	records map[uuid.UUID]model.DailySellRecord
	persist *Persister
}

func newDailyLimits(limit int64, loc *time.Location, clock Clock, p *Persister) *DailyLimits {
	return &DailyLimits{
		limit:   limit,
		loc:     loc,
		clock:   clock,
		records: make(map[uuid.UUID]model.DailySellRecord),
		persist: p,
	}
}

func (d *DailyLimits) load(ctx context.Context) error {
	records := map[uuid.UUID]model.DailySellRecord{}
	if err := d.persist.load(ctx, model.ConcernDailySells, &records); err != nil {
		return err
	}
	d.mu.Lock()
	d.records = records
	d.mu.Unlock()
	return nil
}

// Enabled reports whether a daily cap is configured.
func (d *DailyLimits) Enabled() bool {
	return d.limit > 0
}

func (d *DailyLimits) soldTodayLocked(id uuid.UUID, today int64) int64 {
	rec, ok := d.records[id]
	if !ok || rec.Day != today {
		return 0
	}
	return rec.Amount
}

// TryRecordSale records amount against today's total. It reports exceeded
// and records nothing when the sale would pass the limit.
func (d *DailyLimits) TryRecordSale(ctx context.Context, id uuid.UUID, amount int64) (exceeded bool) {
	if !d.Enabled() {
		return false
	}
	today := EpochDay(d.clock.Now(), d.loc)

	d.mu.Lock()
	defer d.mu.Unlock()

	sold := d.soldTodayLocked(id, today)
	if amount < 0 || saturatingAdd(sold, amount) > d.limit {
		return true
	}
	d.records[id] = model.DailySellRecord{Day: today, Amount: sold + amount}
	d.persist.save(ctx, model.ConcernDailySells, d.records)
	return false
}

// Release gives back amount recorded today, used when a sale could not be
// completed after it was recorded.
func (d *DailyLimits) Release(ctx context.Context, id uuid.UUID, amount int64) {
	if !d.Enabled() || amount <= 0 {
		return
	}
	today := EpochDay(d.clock.Now(), d.loc)

	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[id]
	if !ok || rec.Day != today {
		return
	}
	rec.Amount = max(0, rec.Amount-amount)
	d.records[id] = rec
	d.persist.save(ctx, model.ConcernDailySells, d.records)
}

// Remaining returns how much id may still sell today, or math.MaxInt64
// when the cap is disabled.
func (d *DailyLimits) Remaining(id uuid.UUID) int64 {
	if !d.Enabled() {
		return math.MaxInt64
	}
	today := EpochDay(d.clock.Now(), d.loc)

	d.mu.Lock()
	defer d.mu.Unlock()
	return max(0, d.limit-d.soldTodayLocked(id, today))
}

// Forget drops the record of id.
func (d *DailyLimits) Forget(ctx context.Context, id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.records[id]; !ok {
		return
	}
	delete(d.records, id)
	d.persist.save(ctx, model.ConcernDailySells, d.records)
}
