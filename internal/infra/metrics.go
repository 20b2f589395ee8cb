package infra

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics provides lightweight in-process counters for the status bar.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Gateway
	requestsTotal atomic.Uint64
	failuresTotal atomic.Uint64
	retriesTotal  atomic.Uint64
	latencySumNs  atomic.Int64
	latencyCount  atomic.Uint64
	breakerTrips  atomic.Uint64
	breakers      sync.Map // endpoint -> bool (open)

	// Range cache
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	// Ticker stream
	activeConnections atomic.Int32
	ticksTotal        atomic.Uint64
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics { return &Metrics{} }

// ObserveRequest records one finished gateway call.
func (m *Metrics) ObserveRequest(endpoint string, latency time.Duration, err error) {
	m.requestsTotal.Add(1)
	m.latencySumNs.Add(int64(latency))
	m.latencyCount.Add(1)
	if err != nil {
		m.failuresTotal.Add(1)
	}
}

// ObserveRetry records a retry attempt.
func (m *Metrics) ObserveRetry(endpoint string) {
	m.retriesTotal.Add(1)
}

// ObserveBreaker records a breaker transition for endpoint.
func (m *Metrics) ObserveBreaker(endpoint string, open bool) {
	prev, loaded := m.breakers.Swap(endpoint, open)
	if open && (!loaded || !prev.(bool)) {
		m.breakerTrips.Add(1)
	}
}

// ObserveCache records a range cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
}

// ObserveStream records a stream connect (true) or disconnect (false).
func (m *Metrics) ObserveStream(connected bool) {
	if connected {
		m.activeConnections.Add(1)
	} else {
		m.activeConnections.Add(-1)
	}
}

// ObserveTick records one applied ticker update.
func (m *Metrics) ObserveTick() {
	m.ticksTotal.Add(1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	RequestsTotal     uint64
	FailuresTotal     uint64
	RetriesTotal      uint64
	AvgLatency        time.Duration
	BreakerTrips      uint64
	OpenBreakers      int
	CacheHits         uint64
	CacheMisses       uint64
	ActiveConnections int32
	TicksTotal        uint64
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avg time.Duration
	if count := m.latencyCount.Load(); count > 0 {
		avg = time.Duration(m.latencySumNs.Load() / int64(count))
	}

	open := 0
	m.breakers.Range(func(_, v any) bool {
		if v.(bool) {
			open++
		}
		return true
	})

	return MetricsSnapshot{
		RequestsTotal:     m.requestsTotal.Load(),
		FailuresTotal:     m.failuresTotal.Load(),
		RetriesTotal:      m.retriesTotal.Load(),
		AvgLatency:        avg,
		BreakerTrips:      m.breakerTrips.Load(),
		OpenBreakers:      open,
		CacheHits:         m.cacheHits.Load(),
		CacheMisses:       m.cacheMisses.Load(),
		ActiveConnections: m.activeConnections.Load(),
		TicksTotal:        m.ticksTotal.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.requestsTotal.Store(0)
	m.failuresTotal.Store(0)
	m.retriesTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.breakerTrips.Store(0)
	m.breakers.Clear()
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.activeConnections.Store(0)
	m.ticksTotal.Store(0)
}
