package sentinel

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/sentinel/alert"
	"github.com/hupe1980/sentinel/blobstore"
	"github.com/hupe1980/sentinel/drift"
	"github.com/hupe1980/sentinel/fingerprint"
	"github.com/hupe1980/sentinel/integrity"
	"github.com/hupe1980/sentinel/manifest"
	"github.com/hupe1980/sentinel/report"
)

// Check names a verifier of the suite.
type Check string

// Checks.
const (
	CheckIntegrity Check = integrity.Name
	CheckDrift     Check = drift.Name
)

// AllChecks lists every check in reporting order.
var AllChecks = []Check{CheckIntegrity, CheckDrift}

// ParseCheck validates a check name.
func ParseCheck(s string) (Check, error) {
	for _, c := range AllChecks {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCheck, s)
}

// Outcome is the result of a suite run.
type Outcome struct {
	Results  []report.Result
	Passed   bool
	Disabled bool
	Duration time.Duration
}

// ExitCode returns the process exit code for the outcome.
func (o Outcome) ExitCode() int {
	return report.ExitCode(o.Results...)
}

// Err returns a *VerificationError if the run failed, nil otherwise.
func (o Outcome) Err() error {
	if o.Passed {
		return nil
	}
	return &VerificationError{Results: o.Results}
}

// Suite composes the integrity and drift verifiers.
// It is safe for concurrent use; every run loads its inputs fresh.
type Suite struct {
	opts      options
	integrity *integrity.Verifier
	drift     *drift.Verifier
}

// New creates a suite reading every artifact, manifest and snapshot from store.
func New(store blobstore.BlobStore, optFns ...Option) (*Suite, error) {
	if store == nil {
		return nil, ErrNoStore
	}

	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if math.IsNaN(opts.threshold) || opts.threshold < -1 || opts.threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, opts.threshold)
	}

	mc := opts.metricsCollector

	loader := manifest.NewLoader(store,
		manifest.WithCodec(opts.codec),
		manifest.WithCountKey(opts.countKey),
	)
	engine := fingerprint.NewEngine(store, fingerprint.WithResourceController(opts.resource))

	iv := integrity.NewVerifier(loader, engine,
		integrity.WithManifestPath(opts.manifestPath),
		integrity.WithArtifacts(opts.sourcePath, opts.embeddingsPath),
		integrity.WithOracle(opts.oracle),
		integrity.WithOracleTimeout(opts.oracleTimeout),
		integrity.WithLogger(opts.logger.WithVerifier(integrity.Name).Logger),
		integrity.WithStageObserver(func(stage string, status report.Status, elapsed time.Duration) {
			mc.RecordStage(stage, status, elapsed)
		}),
	)

	snapshots := drift.NewLoader(store,
		drift.WithCodec(opts.codec),
		drift.WithResourceController(opts.resource),
	)
	dv := drift.NewVerifier(snapshots,
		drift.WithPaths(opts.baselinePath, opts.currentPath),
		drift.WithThreshold(opts.threshold),
		drift.WithLogger(opts.logger.WithVerifier(drift.Name).Logger),
		drift.WithScoreObserver(mc.RecordDriftScore),
	)

	return &Suite{opts: opts, integrity: iv, drift: dv}, nil
}

// Enabled reports whether the kill switch allows checks to run.
func (s *Suite) Enabled() bool { return s.opts.enabled }

// Integrity runs only the integrity check.
func (s *Suite) Integrity(ctx context.Context) report.Result {
	return s.Run(ctx, CheckIntegrity).Results[0]
}

// Drift runs only the drift check.
func (s *Suite) Drift(ctx context.Context) report.Result {
	return s.Run(ctx, CheckDrift).Results[0]
}

// Run executes the given checks, or all of them if none are given.
//
// Checks run one after another in the given order unless a resource
// controller with more than one check slot is configured, in which case they
// run concurrently within its bound. Results are returned in the order the
// checks were given either way.
// Failed runs are delivered to the alert sink; delivery errors are logged.
func (s *Suite) Run(ctx context.Context, checks ...Check) Outcome {
	start := time.Now()
	if len(checks) == 0 {
		checks = AllChecks
	}

	if !s.opts.enabled {
		return s.disabled(ctx, checks, start)
	}

	results := make([]report.Result, len(checks))

	if s.opts.resource.MaxConcurrentChecks() > 1 {
		var g errgroup.Group
		for i, c := range checks {
			g.Go(func() error {
				results[i] = s.runCheck(ctx, c)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, c := range checks {
			results[i] = s.runCheck(ctx, c)
		}
	}

	out := Outcome{
		Results:  results,
		Passed:   report.Passed(results...),
		Duration: time.Since(start),
	}

	if !out.Passed && s.opts.alertSink != nil {
		err := s.opts.alertSink.Send(ctx, alert.Event{Source: "sentinel", Passed: false, Results: results})
		s.opts.logger.LogAlert(ctx, err)
	}

	return out
}

func (s *Suite) runCheck(ctx context.Context, c Check) report.Result {
	if err := s.opts.resource.AcquireCheck(ctx); err != nil {
		return internalResult(string(c), err)
	}
	defer s.opts.resource.ReleaseCheck()

	var res report.Result
	switch c {
	case CheckIntegrity:
		res = s.integrity.Run(ctx)
	case CheckDrift:
		res = s.drift.Run(ctx)
	default:
		res = internalResult(string(c), fmt.Errorf("%w: %q", ErrUnknownCheck, c))
	}

	s.opts.metricsCollector.RecordRun(res.Verifier, res.Passed, res.Duration)
	s.opts.logger.LogRun(ctx, res)
	return res
}

func (s *Suite) disabled(ctx context.Context, checks []Check, start time.Time) Outcome {
	s.opts.logger.WarnContext(ctx, "sentinel disabled by kill switch, skipping all checks")

	results := make([]report.Result, len(checks))
	for i, c := range checks {
		results[i] = report.Result{Verifier: string(c), Passed: true}
		results[i].Add(report.Finding{
			Check:   string(c),
			Status:  report.StatusSkip,
			Message: "Check disabled by kill switch",
		})
	}
	return Outcome{Results: results, Passed: true, Disabled: true, Duration: time.Since(start)}
}

func internalResult(verifier string, err error) report.Result {
	res := report.Result{Verifier: verifier}
	res.Add(report.Finding{
		Check:   verifier,
		Status:  report.StatusFail,
		Class:   report.ClassInternal,
		Message: err.Error(),
	})
	return res
}
