package obs

import (
	"sync/atomic"
	"time"

	"main/internal/risk"
	"main/internal/schema"
)

var eventTypes = []schema.EventType{
	schema.EventTick,
	schema.EventCandle,
	schema.EventOrderBook,
	schema.EventFill,
	schema.EventTimer,
}

var riskReasons = []risk.Reason{
	risk.ReasonKillSwitch,
	risk.ReasonRateLimit,
	risk.ReasonZeroQuantity,
	risk.ReasonMaxQty,
	risk.ReasonMaxNotional,
	risk.ReasonPositionLimit,
}

// Metrics collects lightweight counters and latency stats for a run. All
// methods are safe from multiple goroutines and nil receivers are no-ops.
type Metrics struct {
	eventCounts      map[schema.EventType]*uint64
	riskReasonCounts map[risk.Reason]*uint64

	signalsEmitted uint64
	ordersPlaced   uint64
	signalsDropped uint64
	eventsSkipped  uint64
	ledgerBatches  uint64

	dispatchLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts      map[schema.EventType]uint64
	RiskReasonCounts map[risk.Reason]uint64
	SignalsEmitted   uint64
	OrdersPlaced     uint64
	SignalsDropped   uint64
	EventsSkipped    uint64
	LedgerBatches    uint64
	DispatchLatency  LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	m := &Metrics{
		eventCounts:      make(map[schema.EventType]*uint64, len(eventTypes)),
		riskReasonCounts: make(map[risk.Reason]*uint64, len(riskReasons)),
	}
	for _, t := range eventTypes {
		m.eventCounts[t] = new(uint64)
	}
	for _, r := range riskReasons {
		m.riskReasonCounts[r] = new(uint64)
	}
	return m
}

// ObserveEvent counts one dispatched event and its handling latency.
func (m *Metrics) ObserveEvent(eventType schema.EventType, took time.Duration) {
	if m == nil {
		return
	}
	if counter, ok := m.eventCounts[eventType]; ok {
		atomic.AddUint64(counter, 1)
	}
	m.dispatchLatency.Observe(took)
}

// IncRiskReason counts one denied or clipped signal by reason.
func (m *Metrics) IncRiskReason(reason risk.Reason) {
	if m == nil {
		return
	}
	if counter, ok := m.riskReasonCounts[reason]; ok {
		atomic.AddUint64(counter, 1)
	}
}

// IncSignal counts one signal emitted by the strategy.
func (m *Metrics) IncSignal() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.signalsEmitted, 1)
}

// IncOrder counts one order action forwarded downstream.
func (m *Metrics) IncOrder() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersPlaced, 1)
}

// IncDropped counts one signal rejected by the risk gate.
func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.signalsDropped, 1)
}

// IncSkipped counts one event skipped after a recoverable error.
func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.eventsSkipped, 1)
}

// IncLedgerBatch counts one committed ledger batch.
func (m *Metrics) IncLedgerBatch() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ledgerBatches, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[schema.EventType]uint64)
	for t, counter := range m.eventCounts {
		if v := atomic.LoadUint64(counter); v > 0 {
			eventCounts[t] = v
		}
	}
	riskCounts := make(map[risk.Reason]uint64)
	for r, counter := range m.riskReasonCounts {
		if v := atomic.LoadUint64(counter); v > 0 {
			riskCounts[r] = v
		}
	}
	return Snapshot{
		EventCounts:      eventCounts,
		RiskReasonCounts: riskCounts,
		SignalsEmitted:   atomic.LoadUint64(&m.signalsEmitted),
		OrdersPlaced:     atomic.LoadUint64(&m.ordersPlaced),
		SignalsDropped:   atomic.LoadUint64(&m.signalsDropped),
		EventsSkipped:    atomic.LoadUint64(&m.eventsSkipped),
		LedgerBatches:    atomic.LoadUint64(&m.ledgerBatches),
		DispatchLatency:  m.dispatchLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
