package build

import (
	"sync"
	"time"
)

// MetricsSnapshot is a point-in-time copy of BuildMetrics.
type MetricsSnapshot struct {
	Builds    int64
	Succeeded int64
	Failed    int64
	Total     time.Duration
	Average   time.Duration
}

// SuccessRate returns the share of successful builds as a percentage.
func (s MetricsSnapshot) SuccessRate() float64 {
	if s.Builds == 0 {
		return 0.0
	}

	return float64(s.Succeeded) / float64(s.Builds) * 100.0
}

// BuildMetrics accumulates task results. Safe for concurrent use.
type BuildMetrics struct {
	mutex sync.Mutex
	stats MetricsSnapshot
}

// NewBuildMetrics creates an empty accumulator.
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild adds one task result.
func (bm *BuildMetrics) RecordBuild(result Result) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.stats.Builds++
	bm.stats.Total += result.Duration

	if result.Failed() {
		bm.stats.Failed++
	} else {
		bm.stats.Succeeded++
	}

	bm.stats.Average = bm.stats.Total / time.Duration(bm.stats.Builds)
}

// Snapshot returns the current totals.
func (bm *BuildMetrics) Snapshot() MetricsSnapshot {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	return bm.stats
}
