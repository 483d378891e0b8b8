// Package wrangler counts records in a Cloudflare D1 database by shelling
// out to the wrangler CLI:
//
//	npx wrangler d1 execute <database> --command "<query>" --json
//
// The CLI prints a JSON array of statement results; the count is read from
// the first row of the first statement.
package wrangler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/hupe1980/sentinel/codec"
	"github.com/hupe1980/sentinel/oracle"
)

const (
	// DefaultDatabase is the D1 database holding the curriculum.
	DefaultDatabase = "tactical-curriculum-db"
	// DefaultQuery counts the live lessons.
	DefaultQuery = "SELECT COUNT(*) as count FROM lessons"
	// DefaultColumn is the result column read as the count.
	DefaultColumn = "count"
)

// CommandRunner abstracts command execution.
type CommandRunner interface {
	// Run executes argv and returns its standard output.
	Run(ctx context.Context, argv []string, env map[string]string) (string, error)
}

// OSRunner executes commands on the host.
type OSRunner struct{}

// Run executes argv with merged environment variables. Standard error is
// only used to annotate failures.
func (OSRunner) Run(ctx context.Context, argv []string, env map[string]string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty argv")
	}
	// #nosec G204 -- argv comes from operator configuration.
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if len(env) != 0 {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		merged := cmd.Environ()
		for _, k := range keys {
			merged = append(merged, fmt.Sprintf("%s=%s", k, env[k]))
		}
		cmd.Env = merged
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.String(), fmt.Errorf("run %q failed: %w: %s", argv, err, msg)
		}
		return stdout.String(), fmt.Errorf("run %q failed: %w", argv, err)
	}
	return stdout.String(), nil
}

// Options configures an Oracle.
type Options struct {
	// Command is the launcher prefix. Defaults to ["npx", "wrangler"].
	Command  []string
	Database string
	Query    string
	Column   string
	// Remote queries the deployed database instead of the local replica.
	Remote bool
	Env    map[string]string
	Runner CommandRunner
	Codec  codec.Codec
}

// Oracle implements oracle.CountOracle on top of the wrangler CLI.
type Oracle struct {
	opts Options
}

// New creates a wrangler oracle.
func New(optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Command:  []string{"npx", "wrangler"},
		Database: DefaultDatabase,
		Query:    DefaultQuery,
		Column:   DefaultColumn,
		Runner:   OSRunner{},
		Codec:    codec.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{opts: opts}
}

// Argv returns the command line the oracle runs.
func (o *Oracle) Argv() []string {
	argv := append([]string{}, o.opts.Command...)
	argv = append(argv, "d1", "execute", o.opts.Database, "--command", o.opts.Query, "--json")
	if o.opts.Remote {
		argv = append(argv, "--remote")
	}
	return argv
}

// Count implements oracle.CountOracle.
func (o *Oracle) Count(ctx context.Context) (int64, error) {
	out, err := o.opts.Runner.Run(ctx, o.Argv(), o.opts.Env)
	if err != nil {
		return 0, oracle.Unavailablef("wrangler: %v", err)
	}
	return ParseCount(o.opts.Codec, []byte(out), o.opts.Column)
}

type statement struct {
	Results []map[string]any `json:"results"`
	Success *bool            `json:"success"`
}

// ParseCount extracts the count from wrangler's --json output.
func ParseCount(c codec.Codec, out []byte, column string) (int64, error) {
	if c == nil {
		c = codec.Default
	}
	// Wrangler may print update notices ahead of the JSON document.
	if i := bytes.IndexByte(out, '['); i > 0 {
		out = out[i:]
	}

	var stmts []statement
	if err := c.Unmarshal(out, &stmts); err != nil {
		return 0, oracle.Unavailablef("wrangler: decode output: %v", err)
	}
	if len(stmts) == 0 || len(stmts[0].Results) == 0 {
		return 0, oracle.Unavailablef("wrangler: empty result")
	}
	if s := stmts[0].Success; s != nil && !*s {
		return 0, oracle.Unavailablef("wrangler: statement failed")
	}

	n, err := oracle.RowCount(stmts[0].Results[0], column)
	if err != nil {
		return 0, fmt.Errorf("wrangler: %w", err)
	}
	return n, nil
}
