// Package report holds the structured outcome of a verification run and
// renders it for operators.
//
// Verifiers compute a Result; rendering it to a stream is a separate,
// swappable concern (see Renderer).
package report

import (
	"time"
)

// Status is the outcome of a single check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Class is a stable failure category. It tells operators whether a run
// "could not check" or "checked and found bad".
type Class string

const (
	ClassNone               Class = ""
	ClassConfiguration      Class = "CONFIGURATION"
	ClassIntegrityViolation Class = "INTEGRITY_VIOLATION"
	ClassOracleUnavailable  Class = "ORACLE_UNAVAILABLE"
	ClassDriftViolation     Class = "DRIFT_VIOLATION"
	ClassMissingEntity      Class = "MISSING_ENTITY"
	ClassInternal           Class = "INTERNAL"
)

// ExitCode returns the process exit code for a failure of this class.
func (c Class) ExitCode() int {
	switch c {
	case ClassNone, ClassOracleUnavailable:
		return 0
	case ClassConfiguration:
		return 2
	case ClassInternal:
		return 10
	default:
		return 1
	}
}

// ValueKind tells renderers how to present Expected/Actual.
type ValueKind int

const (
	ValueText ValueKind = iota
	// ValueFingerprint values are truncated in human-readable output.
	ValueFingerprint
	ValueCount
	ValueScore
)

// Finding is one diagnostic record produced by a verifier.
type Finding struct {
	Check    string    `json:"check"`
	Status   Status    `json:"status"`
	Class    Class     `json:"class,omitempty"`
	Subject  string    `json:"subject,omitempty"`
	Message  string    `json:"message"`
	Kind     ValueKind `json:"-"`
	Expected string    `json:"expected,omitempty"`
	Actual   string    `json:"actual,omitempty"`
	Score    *float64  `json:"score,omitempty"`
}

// Result is the outcome of one verifier run.
type Result struct {
	Verifier string            `json:"verifier"`
	Passed   bool              `json:"passed"`
	Findings []Finding         `json:"findings"`
	Critical []string          `json:"critical,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Duration time.Duration     `json:"duration_ns"`
}

// Add appends a finding.
func (r *Result) Add(f Finding) {
	r.Findings = append(r.Findings, f)
}

// SetMetadata records a key/value describing the run (e.g. the manifest digest).
func (r *Result) SetMetadata(key, value string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
}

// Failures returns the failing findings.
func (r Result) Failures() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Status == StatusFail {
			out = append(out, f)
		}
	}
	return out
}

// Skipped returns the skipped findings.
func (r Result) Skipped() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Status == StatusSkip {
			out = append(out, f)
		}
	}
	return out
}

// ExitCode returns 0 for a passing result, otherwise the highest exit code
// among the failing findings' classes.
func (r Result) ExitCode() int {
	if r.Passed {
		return 0
	}
	code := 0
	for _, f := range r.Failures() {
		code = max(code, f.Class.ExitCode())
	}
	if code == 0 {
		code = 1
	}
	return code
}

// ExitCode combines several results into one process exit code.
func ExitCode(results ...Result) int {
	code := 0
	for _, r := range results {
		code = max(code, r.ExitCode())
	}
	return code
}

// Passed reports whether every result passed.
func Passed(results ...Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
