// Package metrics provides runtime statistics for conversions: an in-memory
// collector for end-of-run summaries and a Prometheus exporter.
package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/raphaelgruber/fileconv/internal/converter"
)

// OperationMetrics holds aggregated timings for one terminal status.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot represents conversion statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Started       int64
	Rejected      int64
	// Dropped counts requests cancelled before they were dispatched.
	Dropped       int64
	Succeeded     *OperationSnapshot
	Failed        *OperationSnapshot
	Cancelled     *OperationSnapshot
	Unsupported   *OperationSnapshot
}

// Collector aggregates conversion events in memory.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	started   int64
	rejected  int64
	dropped   int64
	ops       map[converter.Status]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[converter.Status]*OperationMetrics),
	}
}

// Emit implements converter.Sink.
func (c *Collector) Emit(e converter.Event) {
	switch e.Kind {
	case converter.EventStarted:
		c.mu.Lock()
		c.started++
		c.mu.Unlock()
	case converter.EventError:
		c.mu.Lock()
		c.rejected++
		c.mu.Unlock()
	case converter.EventFinished:
		// Requests cancelled while queued were never dispatched and carry no timing.
		if e.JobID == "" {
			c.mu.Lock()
			c.dropped++
			c.mu.Unlock()
			return
		}
		c.RecordTiming(e.Status, e.Duration)
	}
}

// getOrCreate returns existing metrics or creates new ones for a status.
// Caller must hold write lock.
func (c *Collector) getOrCreate(status converter.Status) *OperationMetrics {
	m, ok := c.ops[status]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[status] = m
	}
	return m
}

// RecordTiming records how long a conversion took to reach status.
func (c *Collector) RecordTiming(status converter.Status, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(status)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// snapshotOp creates a snapshot for a status, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	return &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Started:       c.started,
		Rejected:      c.rejected,
		Dropped:       c.dropped,
		Succeeded:     snapshotOp(c.ops[converter.StatusSucceeded]),
		Failed:        snapshotOp(c.ops[converter.StatusFailed]),
		Cancelled:     snapshotOp(c.ops[converter.StatusCancelled]),
		Unsupported:   snapshotOp(c.ops[converter.StatusUnsupported]),
	}
}
