package service

import "time"

// Clock supplies the current time. Day boundaries are derived from it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// EpochDay returns the number of days since 1970-01-01 of t's civil date in loc.
func EpochDay(t time.Time, loc *time.Location) int64 {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}
