package sentinel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/sentinel/report"
)

// Logger wraps slog.Logger with sentinel-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewJSONLoggerTo(os.Stderr, level)
}

// NewJSONLoggerTo creates a JSON Logger writing to w.
func NewJSONLoggerTo(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewTextLoggerTo(os.Stderr, level)
}

// NewTextLoggerTo creates a text Logger writing to w.
func NewTextLoggerTo(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// ParseLevel parses "debug", "info", "warn" or "error".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// WithVerifier adds a verifier field to the logger.
func (l *Logger) WithVerifier(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("verifier", name),
	}
}

// LogStage logs the outcome of an integrity stage.
func (l *Logger) LogStage(ctx context.Context, stage string, status report.Status, elapsed time.Duration) {
	switch status {
	case report.StatusFail:
		l.ErrorContext(ctx, "stage failed", "stage", stage, "elapsed", elapsed)
	case report.StatusSkip:
		l.WarnContext(ctx, "stage skipped", "stage", stage, "elapsed", elapsed)
	default:
		l.DebugContext(ctx, "stage passed", "stage", stage, "elapsed", elapsed)
	}
}

// LogDrift logs the score of one entity.
func (l *Logger) LogDrift(ctx context.Context, entity string, score, threshold float64) {
	if score < threshold {
		l.WarnContext(ctx, "entity below threshold",
			"entity", entity,
			"score", score,
			"threshold", threshold,
		)
	} else {
		l.DebugContext(ctx, "entity scored",
			"entity", entity,
			"score", score,
		)
	}
}

// LogRun logs the outcome of a verifier run.
func (l *Logger) LogRun(ctx context.Context, r report.Result) {
	if r.Passed {
		l.InfoContext(ctx, "verification passed",
			"verifier", r.Verifier,
			"duration", r.Duration,
		)
	} else {
		l.ErrorContext(ctx, "verification failed",
			"verifier", r.Verifier,
			"failures", len(r.Failures()),
			"critical", len(r.Critical),
			"duration", r.Duration,
		)
	}
}

// LogAlert logs an alert delivery.
func (l *Logger) LogAlert(ctx context.Context, err error) {
	if err != nil {
		l.WarnContext(ctx, "alert delivery failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "alert delivered")
	}
}
