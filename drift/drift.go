package drift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hupe1980/sentinel/metric"
	"github.com/hupe1980/sentinel/report"
)

// DefaultThreshold is the minimum cosine similarity an entity must keep.
const DefaultThreshold = 0.85

// Name identifies drift results.
const Name = "drift"

// ScoreObserver receives every computed score. Used for metrics.
type ScoreObserver func(entity string, score float64)

// Score is the similarity of one baseline entity.
type Score struct {
	Entity   string
	Score    float64
	Missing  bool
	Critical bool
	// Err is set when the vectors could not be compared.
	Err error
}

// Evaluate scores every baseline entity against current.
//
// Entities are visited in sorted id order. A baseline entity missing from
// current scores 0. Vectors of different length cannot be compared; they
// carry an *metric.ErrDimensionMismatch in Err and count as critical.
func Evaluate(baseline, current Snapshot, threshold float64) []Score {
	ids := baseline.IDs()
	scores := make([]Score, 0, len(ids))

	for _, id := range ids {
		s := Score{Entity: id}

		vec, ok := current[id]
		if !ok {
			s.Missing = true
		} else {
			sim, err := metric.CosineSimilarity(baseline[id], vec)
			if err != nil {
				s.Err = err
			} else {
				s.Score = sim
			}
		}

		// Written so that a NaN score is critical.
		s.Critical = s.Err != nil || !(s.Score >= threshold)
		scores = append(scores, s)
	}

	return scores
}

// Verify scores baseline against current and builds the result.
//
// The result passes iff no baseline entity is critical. Critical lists the
// critical entity ids in sorted order.
func Verify(baseline, current Snapshot, threshold float64) report.Result {
	res := report.Result{Verifier: Name, Passed: true}
	res.SetMetadata("threshold", strconv.FormatFloat(threshold, 'f', -1, 64))
	res.SetMetadata("entities", strconv.Itoa(len(baseline)))

	for _, s := range Evaluate(baseline, current, threshold) {
		res.Add(finding(s, threshold))
		if s.Critical {
			res.Passed = false
			res.Critical = append(res.Critical, s.Entity)
		}
	}

	return res
}

func finding(s Score, threshold float64) report.Finding {
	score := s.Score
	f := report.Finding{
		Check:    "similarity",
		Subject:  s.Entity,
		Status:   report.StatusPass,
		Kind:     report.ValueScore,
		Expected: ">= " + formatScore(threshold),
		Actual:   formatScore(score),
		Score:    &score,
		Message:  fmt.Sprintf("%s: similarity %s", s.Entity, formatScore(score)),
	}

	var dim *metric.ErrDimensionMismatch
	switch {
	case errors.As(s.Err, &dim):
		f.Status = report.StatusFail
		f.Class = report.ClassConfiguration
		f.Expected = fmt.Sprintf("dimension %d", dim.Expected)
		f.Actual = fmt.Sprintf("dimension %d", dim.Actual)
		f.Message = fmt.Sprintf("%s: cannot compare vectors", s.Entity)
	case s.Err != nil:
		f.Status = report.StatusFail
		f.Class = report.ClassInternal
		f.Message = fmt.Sprintf("%s: %v", s.Entity, s.Err)
	case s.Missing:
		f.Status = report.StatusFail
		f.Class = report.ClassMissingEntity
		f.Actual = "<missing>"
		f.Message = fmt.Sprintf("%s: missing from current embeddings", s.Entity)
	case s.Critical:
		f.Status = report.StatusFail
		f.Class = report.ClassDriftViolation
		f.Message = fmt.Sprintf("%s: CRITICAL DRIFT, similarity %s", s.Entity, formatScore(score))
	}

	return f
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// Verifier loads a baseline and current snapshot and checks them for drift.
type Verifier struct {
	loader       *Loader
	baselinePath string
	currentPath  string
	threshold    float64
	logger       *slog.Logger
	observe      ScoreObserver
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithThreshold sets the minimum similarity.
func WithThreshold(t float64) Option {
	return func(v *Verifier) {
		v.threshold = t
	}
}

// WithPaths sets the baseline and current snapshot locations.
func WithPaths(baseline, current string) Option {
	return func(v *Verifier) {
		if baseline != "" {
			v.baselinePath = baseline
		}
		if current != "" {
			v.currentPath = current
		}
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

// WithScoreObserver registers fn to receive every computed score.
func WithScoreObserver(fn ScoreObserver) Option {
	return func(v *Verifier) {
		v.observe = fn
	}
}

// NewVerifier creates a drift verifier reading snapshots through loader.
func NewVerifier(loader *Loader, opts ...Option) *Verifier {
	v := &Verifier{
		loader:       loader,
		baselinePath: DefaultBaselinePath,
		currentPath:  DefaultCurrentPath,
		threshold:    DefaultThreshold,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Threshold returns the configured threshold.
func (v *Verifier) Threshold() float64 { return v.threshold }

// Run loads both snapshots and verifies them.
//
// A snapshot that cannot be loaded yields a failing result with a
// configuration finding; no entity is scored in that case.
func (v *Verifier) Run(ctx context.Context) report.Result {
	start := time.Now()

	baseline, err := v.loader.Load(ctx, v.baselinePath)
	if err != nil {
		return v.unavailable("baseline", v.baselinePath, err, start)
	}
	current, err := v.loader.Load(ctx, v.currentPath)
	if err != nil {
		return v.unavailable("current", v.currentPath, err, start)
	}

	res := Verify(baseline, current, v.threshold)

	for _, f := range res.Findings {
		if f.Score != nil && v.observe != nil {
			v.observe(f.Subject, *f.Score)
		}
		switch f.Class {
		case report.ClassMissingEntity:
			v.logger.Warn("entity missing from current embeddings", "entity", f.Subject)
		case report.ClassConfiguration:
			v.logger.Error("vector dimension mismatch", "entity", f.Subject, "expected", f.Expected, "actual", f.Actual)
		case report.ClassDriftViolation:
			v.logger.Warn("critical drift", "entity", f.Subject, "score", *f.Score, "threshold", v.threshold)
		default:
			v.logger.Debug("entity scored", "entity", f.Subject, "score", *f.Score)
		}
	}

	res.Duration = time.Since(start)
	v.logger.Info("drift analysis complete",
		"passed", res.Passed, "critical", len(res.Critical), "entities", len(baseline))
	return res
}

func (v *Verifier) unavailable(which, path string, err error, start time.Time) report.Result {
	v.logger.Error("snapshot unavailable", "snapshot", which, "path", path, "error", err)

	res := report.Result{Verifier: Name}
	res.Add(report.Finding{
		Check:   which + "_snapshot",
		Subject: path,
		Status:  report.StatusFail,
		Class:   report.ClassConfiguration,
		Message: fmt.Sprintf("%s snapshot unavailable: %v", which, err),
	})
	res.Duration = time.Since(start)
	return res
}
