package bookcache

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
//	    hits        prometheus.Counter
//	    missLatency prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordMiss(duration time.Duration, err error) {
//	    p.missLatency.Observe(duration.Seconds())
//	}
type MetricsCollector interface {
	// RecordHit is called when GetBook is served from the cache.
	RecordHit()

	// RecordMiss is called after each provider call.
	// duration is the time spent materializing, err is nil if successful.
	RecordMiss(duration time.Duration, err error)

	// RecordEviction is called when books are evicted to make room.
	RecordEviction(count int, bytes int64)

	// RecordReset is called when an oversized book clears the cache.
	RecordReset(dropped int, bytes int64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordHit()                      {}
func (NoopMetricsCollector) RecordMiss(time.Duration, error) {}
func (NoopMetricsCollector) RecordEviction(int, int64)       {}
func (NoopMetricsCollector) RecordReset(int, int64)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	HitCount       atomic.Int64
	MissCount      atomic.Int64
	MissErrors     atomic.Int64
	MissTotalNanos atomic.Int64
	EvictionCount  atomic.Int64
	EvictedBytes   atomic.Int64
	ResetCount     atomic.Int64
	ResetBooks     atomic.Int64
	ResetBytes     atomic.Int64
}

// RecordHit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordHit() {
	b.HitCount.Add(1)
}

// RecordMiss implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMiss(duration time.Duration, err error) {
	b.MissCount.Add(1)
	b.MissTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MissErrors.Add(1)
	}
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction(count int, bytes int64) {
	b.EvictionCount.Add(int64(count))
	b.EvictedBytes.Add(bytes)
}

// RecordReset implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReset(dropped int, bytes int64) {
	b.ResetCount.Add(1)
	b.ResetBooks.Add(int64(dropped))
	b.ResetBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		HitCount:      b.HitCount.Load(),
		MissCount:     b.MissCount.Load(),
		MissErrors:    b.MissErrors.Load(),
		MissAvgNanos:  b.getAvgMissNanos(),
		EvictionCount: b.EvictionCount.Load(),
		EvictedBytes:  b.EvictedBytes.Load(),
		ResetCount:    b.ResetCount.Load(),
		ResetBooks:    b.ResetBooks.Load(),
		ResetBytes:    b.ResetBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgMissNanos() int64 {
	count := b.MissCount.Load()
	if count == 0 {
		return 0
	}
	return b.MissTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	HitCount      int64
	MissCount     int64
	MissErrors    int64
	MissAvgNanos  int64
	EvictionCount int64
	EvictedBytes  int64
	ResetCount    int64
	ResetBooks    int64
	ResetBytes    int64
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s BasicMetricsStats) HitRatio() float64 {
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(total)
}
