package service

import (
	"math"

	"github.com/shopspring/decimal"
)

// MaxBalance is the upper bound of every account balance.
const MaxBalance int64 = 999_999_999

// Clamp bounds v to [0, MaxBalance].
func Clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	if v > MaxBalance {
		return MaxBalance
	}
	return v
}

// saturatingAdd adds without wrapping around int64.
func saturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

// safeMultiply returns price*count, or false when it overflows or a factor is negative.
func safeMultiply(price int64, count int) (int64, bool) {
	if price < 0 || count < 0 {
		return 0, false
	}
	if price == 0 || count == 0 {
		return 0, true
	}
	if price > math.MaxInt64/int64(count) {
		return 0, false
	}
	return price * int64(count), true
}

// Tax returns round-half-up(price * rate). Ties go up, which charges the
// payer the extra unit.
func Tax(price int64, rate decimal.Decimal) int64 {
	if price <= 0 || rate.Sign() <= 0 {
		return 0
	}
	return decimal.NewFromInt(price).Mul(rate).Round(0).IntPart()
}

// PercentOf returns floor(amount * pct).
func PercentOf(amount int64, pct decimal.Decimal) int64 {
	if amount <= 0 || pct.Sign() <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(pct).Floor().IntPart()
}
