package sentinel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/sentinel/report"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// promcollector package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordStage is called after each integrity stage.
	RecordStage(stage string, status report.Status, duration time.Duration)

	// RecordDriftScore is called for every scored baseline entity.
	RecordDriftScore(entity string, score float64)

	// RecordRun is called after each verifier run.
	RecordRun(verifier string, passed bool, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordStage(string, report.Status, time.Duration) {}
func (NoopMetricsCollector) RecordDriftScore(string, float64)                 {}
func (NoopMetricsCollector) RecordRun(string, bool, time.Duration)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	StagePassed  atomic.Int64
	StageFailed  atomic.Int64
	StageSkipped atomic.Int64
	RunCount     atomic.Int64
	RunFailed    atomic.Int64
	RunNanos     atomic.Int64
	ScoredCount  atomic.Int64

	mu       sync.Mutex
	minScore float64
}

// RecordStage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStage(_ string, status report.Status, _ time.Duration) {
	switch status {
	case report.StatusPass:
		b.StagePassed.Add(1)
	case report.StatusFail:
		b.StageFailed.Add(1)
	case report.StatusSkip:
		b.StageSkipped.Add(1)
	}
}

// RecordDriftScore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDriftScore(_ string, score float64) {
	b.mu.Lock()
	if b.ScoredCount.Load() == 0 || score < b.minScore {
		b.minScore = score
	}
	b.ScoredCount.Add(1)
	b.mu.Unlock()
}

// RecordRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRun(_ string, passed bool, duration time.Duration) {
	b.RunCount.Add(1)
	b.RunNanos.Add(duration.Nanoseconds())
	if !passed {
		b.RunFailed.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	b.mu.Lock()
	minScore := b.minScore
	b.mu.Unlock()

	return BasicMetricsStats{
		StagePassed:  b.StagePassed.Load(),
		StageFailed:  b.StageFailed.Load(),
		StageSkipped: b.StageSkipped.Load(),
		RunCount:     b.RunCount.Load(),
		RunFailed:    b.RunFailed.Load(),
		RunAvgNanos:  b.getAvgRunNanos(),
		ScoredCount:  b.ScoredCount.Load(),
		MinScore:     minScore,
	}
}

func (b *BasicMetricsCollector) getAvgRunNanos() int64 {
	count := b.RunCount.Load()
	if count == 0 {
		return 0
	}
	return b.RunNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	StagePassed  int64
	StageFailed  int64
	StageSkipped int64
	RunCount     int64
	RunFailed    int64
	RunAvgNanos  int64
	ScoredCount  int64
	// MinScore is the lowest drift score seen; 0 when nothing was scored.
	MinScore float64
}
