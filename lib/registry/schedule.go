package registry

import "time"

// fixedRate fires at first, then every period after it. Slots missed while
// a firing was still running are skipped rather than replayed.
//
// Next is only called from the cron run loop, so the started flag needs no
// locking.
type fixedRate struct {
	first   time.Time
	period  time.Duration
	started bool
}

func newFixedRate(first time.Time, period time.Duration) *fixedRate {
	return &fixedRate{first: first, period: period}
}

func (s *fixedRate) Next(t time.Time) time.Time {
	if !s.started {
		s.started = true
		return s.first
	}
	if t.Before(s.first) {
		return s.first
	}
	slots := t.Sub(s.first)/s.period + 1
	return s.first.Add(slots * s.period)
}
