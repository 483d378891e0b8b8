// Package alert delivers verification outcomes to operators.
//
// A Sink receives the pass/fail verdict and its detail. Delivery is best
// effort: callers log a failed delivery and never change the verdict.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hupe1980/sentinel/fingerprint"
	"github.com/hupe1980/sentinel/report"
)

// Event is one alert.
type Event struct {
	Source  string
	Passed  bool
	Results []report.Result
}

// Summary renders a short multi-line description of the event.
func (e Event) Summary() string {
	var b strings.Builder

	verdict := "PASSED"
	if !e.Passed {
		verdict = "FAILED"
	}
	source := e.Source
	if source == "" {
		source = "sentinel"
	}
	fmt.Fprintf(&b, "%s: verification %s", source, verdict)

	for _, r := range e.Results {
		status := "pass"
		if !r.Passed {
			status = "fail"
		}
		fmt.Fprintf(&b, "\n• %s: %s", r.Verifier, status)
		for _, f := range r.Failures() {
			fmt.Fprintf(&b, "\n    %s", f.Message)
			if f.Expected != "" || f.Actual != "" {
				fmt.Fprintf(&b, " (expected %s, actual %s)", short(f, f.Expected), short(f, f.Actual))
			}
		}
		if len(r.Critical) > 0 {
			fmt.Fprintf(&b, "\n    critical: %s", strings.Join(r.Critical, ", "))
		}
	}
	return b.String()
}

func short(f report.Finding, v string) string {
	if v == "" {
		return "<none>"
	}
	if f.Kind == report.ValueFingerprint {
		return fingerprint.Fingerprint(v).Short()
	}
	return v
}

// Sink receives alert events.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, e Event) error { return f(ctx, e) }

// LogSink writes events to a logger.
type LogSink struct {
	Logger *slog.Logger
}

// Send implements Sink.
func (s LogSink) Send(ctx context.Context, e Event) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	level := slog.LevelInfo
	if !e.Passed {
		level = slog.LevelError
	}
	l.Log(ctx, level, "sentinel alert", "passed", e.Passed, "summary", e.Summary())
	return nil
}

// Multi fans an event out to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, e Event) error {
		var errs []error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Send(ctx, e); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
