package integrity

import (
	"context"
	"log/slog"
	"time"

	"github.com/hupe1980/sentinel/fingerprint"
	"github.com/hupe1980/sentinel/manifest"
	"github.com/hupe1980/sentinel/oracle"
	"github.com/hupe1980/sentinel/report"
)

// Name identifies integrity results.
const Name = "integrity"

const (
	// DefaultSourcePath is the curriculum source artifact.
	DefaultSourcePath = "src/data/curriculum.ts"
	// DefaultEmbeddingsPath is the derived embeddings artifact.
	DefaultEmbeddingsPath = "backend/data/embeddings/lesson_vectors.json"
)

// StageObserver receives the outcome of every executed stage. Used for metrics.
type StageObserver func(stage string, status report.Status, elapsed time.Duration)

// Verifier runs the integrity stages.
type Verifier struct {
	loader         *manifest.Loader
	engine         *fingerprint.Engine
	manifestPath   string
	sourcePath     string
	embeddingsPath string
	oracle         oracle.CountOracle
	oracleTimeout  time.Duration
	stages         []Stage
	logger         *slog.Logger
	observe        StageObserver
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithManifestPath sets the manifest location.
func WithManifestPath(path string) Option {
	return func(v *Verifier) {
		if path != "" {
			v.manifestPath = path
		}
	}
}

// WithArtifacts sets the source and embeddings artifact ids.
func WithArtifacts(source, embeddings string) Option {
	return func(v *Verifier) {
		if source != "" {
			v.sourcePath = source
		}
		if embeddings != "" {
			v.embeddingsPath = embeddings
		}
	}
}

// WithOracle sets the remote count oracle. Without one, the count stage skips.
func WithOracle(o oracle.CountOracle) Option {
	return func(v *Verifier) {
		v.oracle = o
	}
}

// WithOracleTimeout bounds each oracle query.
func WithOracleTimeout(d time.Duration) Option {
	return func(v *Verifier) {
		v.oracleTimeout = d
	}
}

// WithStages replaces the default stage list.
func WithStages(stages ...Stage) Option {
	return func(v *Verifier) {
		v.stages = stages
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithStageObserver registers fn to receive every stage outcome.
func WithStageObserver(fn StageObserver) Option {
	return func(v *Verifier) {
		v.observe = fn
	}
}

// NewVerifier creates an integrity verifier.
func NewVerifier(loader *manifest.Loader, engine *fingerprint.Engine, opts ...Option) *Verifier {
	v := &Verifier{
		loader:         loader,
		engine:         engine,
		manifestPath:   manifest.DefaultPath,
		sourcePath:     DefaultSourcePath,
		embeddingsPath: DefaultEmbeddingsPath,
		oracleTimeout:  oracle.DefaultTimeout,
		logger:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.stages == nil {
		v.stages = []Stage{
			NewFingerprintStage(StageSource, "SOURCE", v.sourcePath, engine),
			NewFingerprintStage(StageEmbeddings, "EMBEDDINGS", v.embeddingsPath, engine),
			NewCountStage(v.oracle, v.oracleTimeout),
		}
	}
	return v
}

// Stages returns the ordered stage list.
func (v *Verifier) Stages() []Stage { return v.stages }

// Run loads the manifest and executes the stages in order, halting at the
// first failure.
func (v *Verifier) Run(ctx context.Context) report.Result {
	start := time.Now()
	res := report.Result{Verifier: Name, Passed: true}

	m, err := v.loader.Load(ctx, v.manifestPath)
	if err != nil {
		v.logger.Error("manifest unavailable", "path", v.manifestPath, "error", err)
		res.Passed = false
		res.Add(report.Finding{
			Check:   "manifest",
			Subject: v.manifestPath,
			Status:  report.StatusFail,
			Class:   report.ClassConfiguration,
			Message: "Manifest unavailable: " + err.Error(),
		})
		res.Duration = time.Since(start)
		return res
	}

	if digest, err := m.Digest(); err == nil {
		res.SetMetadata("manifest_digest", string(digest))
	}

	for _, stage := range v.stages {
		if err := ctx.Err(); err != nil {
			res.Passed = false
			res.Add(report.Finding{
				Check:   stage.Name(),
				Status:  report.StatusFail,
				Class:   report.ClassInternal,
				Message: "Run cancelled: " + err.Error(),
			})
			break
		}

		stageStart := time.Now()
		f := stage.Check(ctx, m)
		elapsed := time.Since(stageStart)
		res.Add(f)

		if v.observe != nil {
			v.observe(stage.Name(), f.Status, elapsed)
		}
		v.log(f, elapsed)

		if f.Status == report.StatusFail {
			res.Passed = false
			break
		}
	}

	res.Duration = time.Since(start)
	v.logger.Info("integrity check complete", "passed", res.Passed, "stages", len(res.Findings))
	return res
}

func (v *Verifier) log(f report.Finding, elapsed time.Duration) {
	attrs := []any{"stage", f.Check, "status", string(f.Status), "elapsed", elapsed}
	if f.Subject != "" {
		attrs = append(attrs, "artifact", f.Subject)
	}

	switch f.Status {
	case report.StatusFail:
		v.logger.Error(f.Message, append(attrs, "class", string(f.Class), "expected", f.Expected, "actual", f.Actual)...)
	case report.StatusSkip:
		v.logger.Warn(f.Message, append(attrs, "reason", f.Actual)...)
	default:
		v.logger.Info(f.Message, attrs...)
	}
}
