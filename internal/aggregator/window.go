// Package aggregator keeps a rolling window of cumulative step-counter
// readings and answers "how many steps" questions over it.
package aggregator

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
)

// Retention is how far back the window keeps samples.
const Retention = 24 * time.Hour

var (
	// ErrNoData is returned by queries before any usable sample was ingested.
	ErrNoData = errors.New("aggregator: no step data available")
	// ErrInvalidPeriod is returned for periods a query does not support.
	ErrInvalidPeriod = errors.New("aggregator: invalid period")
)

// Sample is a single retained reading.
type Sample struct {
	Timestamp time.Time
	Count     float64
}

// ResetFunc is called when a reading is lower than the one before it.
type ResetFunc func(previous, current float64, at time.Time)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock replaces time.Now as the reference for query periods.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithResetHook installs a callback for counter resets.
func WithResetHook(fn ResetFunc) Option {
	return func(a *Aggregator) {
		a.onReset = fn
	}
}

// Aggregator is safe for one writer calling Ingest and any number of
// concurrent readers.
type Aggregator struct {
	mu          sync.Mutex
	samples     []Sample
	initialized bool
	initial     float64
	last        float64

	now     func() time.Time
	onReset ResetFunc
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Ingest records a cumulative reading taken at ts and evicts everything
// older than Retention relative to ts.
func (a *Aggregator) Ingest(ts time.Time, count float64) {
	a.mu.Lock()
	if !a.initialized {
		a.initialized = true
		a.initial = count
		a.last = count
	}
	previous := a.last

	a.samples = append(a.samples, Sample{Timestamp: ts, Count: count})

	cutoff := ts.Add(-Retention)
	drop := 0
	for drop < len(a.samples) && a.samples[drop].Timestamp.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		n := copy(a.samples, a.samples[drop:])
		clear(a.samples[n:])
		a.samples = a.samples[:n]
	}

	a.last = count
	onReset := a.onReset
	a.mu.Unlock()

	if count < previous && onReset != nil {
		onReset(previous, count, ts)
	}
}

// QueryDelta returns the steps taken during the trailing hour or day: the
// latest reading minus the first reading inside the period, never negative.
func (a *Aggregator) QueryDelta(period domain.Period) (domain.StepCount, error) {
	span := period.Duration()
	if period == domain.PeriodAll || span == 0 {
		return domain.StepCount{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	now := a.now()
	start := now.Add(-span)
	res := domain.StepCount{Period: period, Start: &start, End: now}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.samples) == 0 {
		return domain.StepCount{}, ErrNoData
	}

	first, found := 0.0, false
	for _, s := range a.samples {
		if !s.Timestamp.Before(start) {
			first, found = s.Count, true
			break
		}
	}
	if !found {
		return res, nil
	}

	delta := a.samples[len(a.samples)-1].Count - first
	if delta < 0 {
		delta = 0
	}
	res.Count = int64(math.Floor(delta))
	return res, nil
}

// QueryTotalSinceInit returns the raw counter value of the latest reading,
// i.e. the steps counted since the counting device last reset.
func (a *Aggregator) QueryTotalSinceInit() (domain.StepCount, error) {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return domain.StepCount{}, ErrNoData
	}
	return domain.StepCount{
		Count:  int64(math.Floor(a.last)),
		Period: domain.PeriodAll,
		End:    now,
	}, nil
}

// Query dispatches to QueryDelta or QueryTotalSinceInit.
func (a *Aggregator) Query(period domain.Period) (domain.StepCount, error) {
	if period == domain.PeriodAll {
		return a.QueryTotalSinceInit()
	}
	return a.QueryDelta(period)
}

// Initial returns the first reading ever ingested.
func (a *Aggregator) Initial() (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initial, a.initialized
}

// Len reports how many samples the window currently holds.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.samples)
}

// Snapshot returns a copy of the retained samples in ingest order.
func (a *Aggregator) Snapshot() []Sample {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Sample, len(a.samples))
	copy(out, a.samples)
	return out
}
