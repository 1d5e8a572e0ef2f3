package obs

import (
	"sync/atomic"
	"time"

	"main/internal/schema"
)

const maxRecordType = int(schema.RecordRotation)

// Metrics collects lightweight counters and latency stats for the engine.
type Metrics struct {
	recordCounts [maxRecordType + 1]uint64

	unknownOrders   uint64
	overfills       uint64
	duplicateFills  uint64
	riskRejections  uint64
	checkpoints     uint64
	queueDrops      uint64
	queueClosed     uint64
	reconcileDrifts uint64

	appendLatency LatencyStats
	applyLatency  LatencyStats
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
	RecordCounts    map[schema.RecordType]uint64
	UnknownOrders   uint64
	Overfills       uint64
	DuplicateFills  uint64
	RiskRejections  uint64
	Checkpoints     uint64
	QueueDrops      uint64
	QueueClosed     uint64
	ReconcileDrifts uint64
	AppendLatency   LatencySnapshot
	ApplyLatency    LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncRecord counts a record appended to the log.
func (m *Metrics) IncRecord(t schema.RecordType) {
	if m == nil {
		return
	}
	idx := int(t)
	if idx >= 0 && idx < len(m.recordCounts) {
		atomic.AddUint64(&m.recordCounts[idx], 1)
	}
}

// IncUnknownOrder records a report for an order the table never saw.
func (m *Metrics) IncUnknownOrder() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.unknownOrders, 1)
}

// IncOverfill records a rejected overfill report.
func (m *Metrics) IncOverfill() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.overfills, 1)
}

// IncDuplicateFill records a deduplicated execution report.
func (m *Metrics) IncDuplicateFill() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.duplicateFills, 1)
}

// IncRiskRejection records an order denied by pre-trade checks.
func (m *Metrics) IncRiskRejection() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.riskRejections, 1)
}

// IncCheckpoint records a checkpoint written to the log.
func (m *Metrics) IncCheckpoint() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.checkpoints, 1)
}

// IncQueueDrop records an observer queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// IncReconcileDrift records a position reconciliation mismatch.
func (m *Metrics) IncReconcileDrift() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.reconcileDrifts, 1)
}

// ObserveAppend measures log append latency.
func (m *Metrics) ObserveAppend(d time.Duration) {
	if m == nil {
		return
	}
	m.appendLatency.Observe(d)
}

// ObserveApply measures end-to-end report apply latency.
func (m *Metrics) ObserveApply(d time.Duration) {
	if m == nil {
		return
	}
	m.applyLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	recordCounts := make(map[schema.RecordType]uint64)
	for i := range m.recordCounts {
		if v := atomic.LoadUint64(&m.recordCounts[i]); v > 0 {
			recordCounts[schema.RecordType(i)] = v
		}
	}
	return Snapshot{
		RecordCounts:    recordCounts,
		UnknownOrders:   atomic.LoadUint64(&m.unknownOrders),
		Overfills:       atomic.LoadUint64(&m.overfills),
		DuplicateFills:  atomic.LoadUint64(&m.duplicateFills),
		RiskRejections:  atomic.LoadUint64(&m.riskRejections),
		Checkpoints:     atomic.LoadUint64(&m.checkpoints),
		QueueDrops:      atomic.LoadUint64(&m.queueDrops),
		QueueClosed:     atomic.LoadUint64(&m.queueClosed),
		ReconcileDrifts: atomic.LoadUint64(&m.reconcileDrifts),
		AppendLatency:   m.appendLatency.Snapshot(),
		ApplyLatency:    m.applyLatency.Snapshot(),
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
