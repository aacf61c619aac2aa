package stats

import (
	"sync"
	"time"
)

// Snapshot is a consistent copy of the Aggregator counters.
type Snapshot struct {
	Requests uint64 // Successful computations
	TotalMs  uint64 // Sum of processing times
	MaxMs    uint64 // Longest processing time
}

// AverageSeconds returns the mean processing time in seconds, or 0 before
// the first request.
func (s Snapshot) AverageSeconds() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.TotalMs) / float64(s.Requests) / 1000
}

// MaxSeconds returns the longest processing time in seconds.
func (s Snapshot) MaxSeconds() float64 {
	return float64(s.MaxMs) / 1000
}

// Aggregator accumulates processing statistics across all connections.
// The zero value is ready to use.
type Aggregator struct {
	mu   sync.Mutex // Guards snap
	snap Snapshot
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Update records one successful computation that took d.
func (a *Aggregator) Update(d time.Duration) {
	ms := uint64(0)
	if d > 0 {
		ms = uint64(d.Milliseconds())
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap.Requests++
	a.snap.TotalMs += ms
	a.snap.MaxMs = max(a.snap.MaxMs, ms)
}

// Snapshot returns a copy of the counters.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// RequestCount returns the number of successful computations.
func (a *Aggregator) RequestCount() uint64 {
	return a.Snapshot().Requests
}

// AverageTime returns the mean processing time in seconds.
func (a *Aggregator) AverageTime() float64 {
	return a.Snapshot().AverageSeconds()
}

// MaxTime returns the longest processing time in seconds.
func (a *Aggregator) MaxTime() float64 {
	return a.Snapshot().MaxSeconds()
}
