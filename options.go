package sentinel

import (
	"time"

	"github.com/hupe1980/sentinel/alert"
	"github.com/hupe1980/sentinel/codec"
	"github.com/hupe1980/sentinel/drift"
	"github.com/hupe1980/sentinel/integrity"
	"github.com/hupe1980/sentinel/manifest"
	"github.com/hupe1980/sentinel/oracle"
	"github.com/hupe1980/sentinel/resource"
)

type options struct {
	enabled          bool
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	alertSink        alert.Sink
	resource         *resource.Controller

	manifestPath   string
	sourcePath     string
	embeddingsPath string
	countKey       string
	oracle         oracle.CountOracle
	oracleTimeout  time.Duration

	baselinePath string
	currentPath  string
	threshold    float64
}

func defaultOptions() options {
	return options{
		enabled:          true,
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		manifestPath:     manifest.DefaultPath,
		sourcePath:       integrity.DefaultSourcePath,
		embeddingsPath:   integrity.DefaultEmbeddingsPath,
		countKey:         manifest.DefaultCountKey,
		oracleTimeout:    oracle.DefaultTimeout,
		baselinePath:     drift.DefaultBaselinePath,
		currentPath:      drift.DefaultCurrentPath,
		threshold:        drift.DefaultThreshold,
	}
}

// Option configures a Suite.
type Option func(*options)

// WithEnabled is the kill switch. A disabled suite skips every check.
func WithEnabled(enabled bool) Option {
	return func(o *options) {
		o.enabled = enabled
	}
}

// WithCodec configures the codec used for manifests and snapshots.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector sets a custom metrics collector for monitoring.
//
// Example:
//
//	collector := promcollector.New(prometheus.DefaultRegisterer)
//	suite, _ := sentinel.New(store, sentinel.WithMetricsCollector(collector))
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metricsCollector = mc
		}
	}
}

// WithLogger sets a structured logger. Default is NoopLogger().
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithAlertSink sets where run outcomes are delivered.
func WithAlertSink(s alert.Sink) Option {
	return func(o *options) {
		o.alertSink = s
	}
}

// WithResourceController bounds concurrent checks and artifact IO.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resource = rc
	}
}

// WithManifest sets the manifest location and its count key.
func WithManifest(path, countKey string) Option {
	return func(o *options) {
		if path != "" {
			o.manifestPath = path
		}
		if countKey != "" {
			o.countKey = countKey
		}
	}
}

// WithArtifacts sets the source and embeddings artifacts to fingerprint.
func WithArtifacts(source, embeddings string) Option {
	return func(o *options) {
		if source != "" {
			o.sourcePath = source
		}
		if embeddings != "" {
			o.embeddingsPath = embeddings
		}
	}
}

// WithOracle sets the remote count oracle and, if positive, its timeout.
func WithOracle(co oracle.CountOracle, timeout ...time.Duration) Option {
	return func(o *options) {
		o.oracle = co
		if len(timeout) > 0 && timeout[0] > 0 {
			o.oracleTimeout = timeout[0]
		}
	}
}

// WithSnapshots sets the golden baseline and current snapshot locations.
func WithSnapshots(baseline, current string) Option {
	return func(o *options) {
		if baseline != "" {
			o.baselinePath = baseline
		}
		if current != "" {
			o.currentPath = current
		}
	}
}

// WithThreshold sets the minimum drift similarity.
func WithThreshold(t float64) Option {
	return func(o *options) {
		o.threshold = t
	}
}
