// Package promcollector exports Sentinel metrics to Prometheus.
//
// Sentinel usually runs as a short-lived cron job, so besides the usual
// registry the collector can write its metrics to a file for
// node_exporter's textfile collector.
package promcollector

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/sentinel"
	"github.com/hupe1980/sentinel/report"
)

// Namespace prefixes every metric.
const Namespace = "sentinel"

// Collector implements sentinel.MetricsCollector.
type Collector struct {
	registry *prometheus.Registry

	stages        *prometheus.CounterVec
	stageLatency  *prometheus.HistogramVec
	driftScore    *prometheus.GaugeVec
	runs          *prometheus.CounterVec
	runDuration   *prometheus.GaugeVec
	lastSuccess   *prometheus.GaugeVec
	lastTimestamp *prometheus.GaugeVec

	now func() time.Time
}

var _ sentinel.MetricsCollector = (*Collector)(nil)

// New creates a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stage_total",
			Help:      "Integrity stages executed, by outcome.",
		}, []string{"stage", "status"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of integrity stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		driftScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "drift_score",
			Help:      "Latest cosine similarity between baseline and current embedding.",
		}, []string{"entity"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "run_total",
			Help:      "Verifier runs, by result.",
		}, []string{"verifier", "result"}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the latest verifier run.",
		}, []string{"verifier"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_success",
			Help:      "1 if the latest verifier run passed, 0 otherwise.",
		}, []string{"verifier"}),
		lastTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the latest verifier run.",
		}, []string{"verifier"}),
		now: time.Now,
	}

	c.registry.MustRegister(
		c.stages,
		c.stageLatency,
		c.driftScore,
		c.runs,
		c.runDuration,
		c.lastSuccess,
		c.lastTimestamp,
	)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the metrics over HTTP.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteTextfile atomically writes the metrics in text exposition format.
// The file name must end in ".prom" for node_exporter to pick it up.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// RecordStage implements sentinel.MetricsCollector.
func (c *Collector) RecordStage(stage string, status report.Status, duration time.Duration) {
	c.stages.WithLabelValues(stage, string(status)).Inc()
	c.stageLatency.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordDriftScore implements sentinel.MetricsCollector.
func (c *Collector) RecordDriftScore(entity string, score float64) {
	c.driftScore.WithLabelValues(entity).Set(score)
}

// RecordRun implements sentinel.MetricsCollector.
func (c *Collector) RecordRun(verifier string, passed bool, duration time.Duration) {
	result, success := "fail", 0.0
	if passed {
		result, success = "pass", 1.0
	}
	c.runs.WithLabelValues(verifier, result).Inc()
	c.runDuration.WithLabelValues(verifier).Set(duration.Seconds())
	c.lastSuccess.WithLabelValues(verifier).Set(success)
	c.lastTimestamp.WithLabelValues(verifier).Set(float64(c.now().Unix()))
}
