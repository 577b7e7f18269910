package pagearena

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    committed prometheus.Gauge
//	    latency   prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordCommit(bytes int, duration time.Duration, err error) {
//	    if err == nil {
//	        p.committed.Add(float64(bytes))
//	    }
//	    p.latency.Observe(duration.Seconds())
//	}
type MetricsCollector interface {
	// RecordCommit is called after each commit attempt.
	// bytes is the requested size, err is nil if successful.
	RecordCommit(bytes int, duration time.Duration, err error)

	// RecordDecommit is called after each decommit.
	RecordDecommit(bytes int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCommit(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDecommit(int, time.Duration)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CommitCount        atomic.Int64
	CommitErrors       atomic.Int64
	CommitBytes        atomic.Int64
	CommitTotalNanos   atomic.Int64
	DecommitCount      atomic.Int64
	DecommitBytes      atomic.Int64
	DecommitTotalNanos atomic.Int64
}

// RecordCommit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommit(bytes int, duration time.Duration, err error) {
	b.CommitCount.Add(1)
	b.CommitTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CommitErrors.Add(1)
		return
	}
	b.CommitBytes.Add(int64(bytes))
}

// RecordDecommit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDecommit(bytes int, duration time.Duration) {
	b.DecommitCount.Add(1)
	b.DecommitBytes.Add(int64(bytes))
	b.DecommitTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	committed := b.CommitBytes.Load()
	decommitted := b.DecommitBytes.Load()
	return BasicMetricsStats{
		CommitCount:      b.CommitCount.Load(),
		CommitErrors:     b.CommitErrors.Load(),
		CommitBytes:      committed,
		CommitAvgNanos:   avg(b.CommitTotalNanos.Load(), b.CommitCount.Load()),
		DecommitCount:    b.DecommitCount.Load(),
		DecommitBytes:    decommitted,
		DecommitAvgNanos: avg(b.DecommitTotalNanos.Load(), b.DecommitCount.Load()),
		LiveBytes:        committed - decommitted,
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CommitCount      int64
	CommitErrors     int64
	CommitBytes      int64
	CommitAvgNanos   int64
	DecommitCount    int64
	DecommitBytes    int64
	DecommitAvgNanos int64
	LiveBytes        int64
}
