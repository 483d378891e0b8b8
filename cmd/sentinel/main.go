// Command sentinel verifies curriculum artifacts against a trusted manifest
// and checks embeddings for semantic drift.
//
// Usage:
//
//	sentinel integrity [flags]   fingerprint + remote count checks
//	sentinel drift [flags]       embedding drift against the golden snapshot
//	sentinel run [flags]         both checks
//	sentinel version
//
// Exit codes: 0 pass (or disabled), 1 violation, 2 configuration error,
// 10 internal error.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/sentinel"
)

const (
	exitPass          = 0
	exitConfiguration = 2
	exitInternal      = 10
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitPass
	}

	var verr *sentinel.VerificationError
	if errors.As(err, &verr) {
		return verr.ExitCode()
	}

	var cerr *configError
	if errors.As(err, &cerr) {
		writef(stderr, "sentinel: %v\n", err)
		return exitConfiguration
	}

	writef(stderr, "sentinel: %v\n", err)
	if a.usageErr {
		return exitConfiguration
	}
	return exitInternal
}

// configError marks failures to assemble the suite from configuration.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func configErrorf(format string, args ...any) error {
	return &configError{err: fmt.Errorf(format, args...)}
}

func writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
