package integrity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hupe1980/sentinel/fingerprint"
	"github.com/hupe1980/sentinel/manifest"
	"github.com/hupe1980/sentinel/oracle"
	"github.com/hupe1980/sentinel/report"
)

// Stage names.
const (
	StageSource     = "source_fingerprint"
	StageEmbeddings = "embeddings_fingerprint"
	StageCount      = "remote_count"
)

// Stage is one ordered integrity check.
type Stage interface {
	Name() string
	Check(ctx context.Context, m *manifest.Manifest) report.Finding
}

// FingerprintStage compares an artifact's fingerprint with the manifest.
type FingerprintStage struct {
	name     string
	label    string
	artifact string
	engine   *fingerprint.Engine
}

// NewFingerprintStage creates a stage checking artifact. label names the
// artifact in diagnostics, e.g. "SOURCE".
func NewFingerprintStage(name, label, artifact string, engine *fingerprint.Engine) *FingerprintStage {
	return &FingerprintStage{name: name, label: label, artifact: artifact, engine: engine}
}

// Name implements Stage.
func (s *FingerprintStage) Name() string { return s.name }

// Artifact returns the artifact id the stage checks.
func (s *FingerprintStage) Artifact() string { return s.artifact }

// Check implements Stage.
func (s *FingerprintStage) Check(ctx context.Context, m *manifest.Manifest) report.Finding {
	f := report.Finding{
		Check:   s.name,
		Subject: s.artifact,
		Kind:    report.ValueFingerprint,
	}

	expected, ok := m.Expected(s.artifact)
	if !ok {
		f.Status = report.StatusFail
		f.Class = report.ClassConfiguration
		f.Message = fmt.Sprintf("Manifest has no fingerprint for %s", s.artifact)
		return f
	}
	f.Expected = string(expected)

	state, err := s.engine.Fingerprint(ctx, s.artifact)
	if err != nil {
		f.Status = report.StatusFail
		f.Class = report.ClassInternal
		f.Message = fmt.Sprintf("Cannot fingerprint %s: %v", s.artifact, err)
		return f
	}
	f.Actual = state.String()

	if !state.Matches(expected) {
		f.Status = report.StatusFail
		f.Class = report.ClassIntegrityViolation
		f.Message = fmt.Sprintf("%s TAMPERING DETECTED: %s", s.label, s.artifact)
		return f
	}

	f.Status = report.StatusPass
	f.Message = fmt.Sprintf("%s hash verified: %s", s.label, s.artifact)
	return f
}

// CountStage compares the oracle's live record count with the manifest.
type CountStage struct {
	oracle oracle.CountOracle
}

// NewCountStage creates the remote count stage. The oracle is guarded with
// timeout; a nil oracle makes the stage skip.
func NewCountStage(o oracle.CountOracle, timeout time.Duration) *CountStage {
	if o != nil {
		o = oracle.WithTimeout(o, timeout)
	}
	return &CountStage{oracle: o}
}

// Name implements Stage.
func (s *CountStage) Name() string { return StageCount }

// Check implements Stage.
func (s *CountStage) Check(ctx context.Context, m *manifest.Manifest) report.Finding {
	f := report.Finding{Check: StageCount, Kind: report.ValueCount}

	expected, hasExpected := m.ExpectedCount()
	if hasExpected {
		f.Expected = strconv.FormatInt(expected, 10)
	}

	if s.oracle == nil {
		f.Status = report.StatusSkip
		f.Class = report.ClassOracleUnavailable
		f.Message = "Remote count skipped: no oracle configured"
		return f
	}

	actual, err := s.oracle.Count(ctx)
	if err != nil {
		f.Status = report.StatusSkip
		f.Class = report.ClassOracleUnavailable
		f.Message = "Remote count skipped: oracle unavailable"
		if !errors.Is(err, oracle.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", oracle.ErrUnavailable, err)
		}
		f.Actual = err.Error()
		f.Kind = report.ValueText
		return f
	}
	f.Actual = strconv.FormatInt(actual, 10)

	if !hasExpected || actual != expected {
		f.Status = report.StatusFail
		f.Class = report.ClassIntegrityViolation
		f.Message = fmt.Sprintf("DATA DRIFT DETECTED: expected %s records, found %d", displayCount(hasExpected, expected), actual)
		return f
	}

	f.Status = report.StatusPass
	f.Message = fmt.Sprintf("Remote count verified: %d records", actual)
	return f
}

func displayCount(ok bool, n int64) string {
	if !ok {
		return "<none>"
	}
	return strconv.FormatInt(n, 10)
}
