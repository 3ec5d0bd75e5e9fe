package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	ordersExecuted atomic.Uint64
	ordersRejected atomic.Uint64
	conflictsSeen  atomic.Uint64
	quoteFailures  atomic.Uint64

	// Latency tracking (order execution)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	inflightOrders atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordOrderExecuted records a committed order with its execution latency.
func (m *Metrics) RecordOrderExecuted(latencyNs int64) {
	m.ordersExecuted.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordOrderRejected records an order that failed a precondition.
func (m *Metrics) RecordOrderRejected() {
	m.ordersRejected.Add(1)
}

// RecordConflict records one optimistic-concurrency retry.
func (m *Metrics) RecordConflict() {
	m.conflictsSeen.Add(1)
}

// RecordQuoteFailure records a failed quote fetch.
func (m *Metrics) RecordQuoteFailure() {
	m.quoteFailures.Add(1)
}

// IncrementInflight increments the in-flight order gauge by 1.
func (m *Metrics) IncrementInflight() {
	m.inflightOrders.Add(1)
}

// DecrementInflight decrements the in-flight order gauge by 1.
func (m *Metrics) DecrementInflight() {
	m.inflightOrders.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	OrdersExecuted uint64    `json:"orders_executed"`
	OrdersRejected uint64    `json:"orders_rejected"`
	ConflictsSeen  uint64    `json:"conflicts_seen"`
	QuoteFailures  uint64    `json:"quote_failures"`
	AvgLatencyNs   int64     `json:"avg_latency_ns"`
	InflightOrders int32     `json:"inflight_orders"`
	Timestamp      time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		OrdersExecuted: m.ordersExecuted.Load(),
		OrdersRejected: m.ordersRejected.Load(),
		ConflictsSeen:  m.conflictsSeen.Load(),
		QuoteFailures:  m.quoteFailures.Load(),
		AvgLatencyNs:   avgLatency,
		InflightOrders: m.inflightOrders.Load(),
		Timestamp:      time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ordersExecuted.Store(0)
	m.ordersRejected.Store(0)
	m.conflictsSeen.Store(0)
	m.quoteFailures.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.inflightOrders.Store(0)
}
