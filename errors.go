package sentinel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/sentinel/report"
)

var (
	// ErrInvalidThreshold is returned when the drift threshold is outside [-1, 1].
	ErrInvalidThreshold = errors.New("threshold must be within [-1, 1]")

	// ErrNoStore is returned when the suite is created without a blob store.
	ErrNoStore = errors.New("blob store is required")

	// ErrUnknownCheck is returned for a check name the suite does not know.
	ErrUnknownCheck = errors.New("unknown check")
)

// FailureClass is a stable failure category.
type FailureClass = report.Class

// Failure classes.
const (
	ClassConfiguration      = report.ClassConfiguration
	ClassIntegrityViolation = report.ClassIntegrityViolation
	ClassOracleUnavailable  = report.ClassOracleUnavailable
	ClassDriftViolation     = report.ClassDriftViolation
	ClassMissingEntity      = report.ClassMissingEntity
	ClassInternal           = report.ClassInternal
)

// VerificationError reports a failed run.
//
// It carries the failing results so callers that only see an error, such as
// a CLI command, can still map it to an exit code.
type VerificationError struct {
	Results []report.Result
}

func (e *VerificationError) Error() string {
	var failed []string
	for _, r := range e.Results {
		if r.Passed {
			continue
		}
		classes := make(map[report.Class]bool)
		var names []string
		for _, f := range r.Failures() {
			if !classes[f.Class] {
				classes[f.Class] = true
				names = append(names, string(f.Class))
			}
		}
		failed = append(failed, fmt.Sprintf("%s (%s)", r.Verifier, strings.Join(names, ", ")))
	}
	return "verification failed: " + strings.Join(failed, "; ")
}

// ExitCode returns the process exit code for the failure.
func (e *VerificationError) ExitCode() int {
	return report.ExitCode(e.Results...)
}

// Class returns the most severe failure class.
func (e *VerificationError) Class() FailureClass {
	worst := report.ClassNone
	for _, r := range e.Results {
		for _, f := range r.Failures() {
			if f.Class.ExitCode() > worst.ExitCode() || worst == report.ClassNone {
				worst = f.Class
			}
		}
	}
	return worst
}
