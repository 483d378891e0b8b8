package main

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/hupe1980/sentinel"
	"github.com/hupe1980/sentinel/alert"
	"github.com/hupe1980/sentinel/codec"
	"github.com/hupe1980/sentinel/config"
	"github.com/hupe1980/sentinel/promcollector"
	"github.com/hupe1980/sentinel/report"
	"github.com/hupe1980/sentinel/resource"
)

type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	envFile    string
	format     string

	// Flag overrides; zero values leave the configuration untouched.
	manifest   string
	source     string
	embeddings string
	baseline   string
	current    string
	oracleKind string
	logLevel   string
	threshold  float64
	disabled   bool

	usageErr bool
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:     stdout,
		stderr:     stderr,
		configPath: config.DefaultPath,
		envFile:    ".env",
		format:     "text",
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sentinel",
		Short:         "Integrity and drift monitor for the curriculum pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := report.RendererByName(a.format); !ok {
				a.usageErr = true
				return fmt.Errorf("invalid --format %q (valid: text, json)", a.format)
			}
			return nil
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		a.usageErr = true
		return err
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", a.configPath, "configuration file")
	pf.StringVar(&a.envFile, "env-file", a.envFile, ".env file loaded before environment overrides")
	pf.StringVarP(&a.format, "format", "f", a.format, "output format: text or json")
	pf.StringVar(&a.manifest, "manifest", "", "manifest path")
	pf.StringVar(&a.source, "source", "", "source artifact path")
	pf.StringVar(&a.embeddings, "embeddings", "", "embeddings artifact path")
	pf.StringVar(&a.baseline, "baseline", "", "golden snapshot path")
	pf.StringVar(&a.current, "current", "", "current embeddings path")
	pf.StringVar(&a.oracleKind, "oracle", "", "remote count oracle: none, wrangler, d1, sqlite, postgres, dynamodb")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.Float64Var(&a.threshold, "threshold", 0, "minimum drift similarity (default from config, 0.85)")
	pf.BoolVar(&a.disabled, "disable", false, "kill switch: skip every check and exit 0")

	root.AddCommand(
		a.checkCmd("integrity", "Verify source and embeddings fingerprints and the remote record count", sentinel.CheckIntegrity),
		a.checkCmd("drift", "Verify embeddings have not drifted from the golden snapshot", sentinel.CheckDrift),
		a.checkCmd("run", "Run all checks", sentinel.AllChecks...),
		a.versionCmd(),
	)
	return root
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			writef(a.stdout, "sentinel %s\n", version)
		},
	}
}

func (a *app) checkCmd(use, short string, checks ...sentinel.Check) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runChecks(cmd, checks)
		},
	}
}

func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return nil, &configError{err: err}
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, &configError{err: err}
	}

	flags := cmd.Flags()
	set := func(name, v string, dst *string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("manifest", a.manifest, &cfg.Integrity.Manifest)
	set("source", a.source, &cfg.Integrity.Source)
	set("embeddings", a.embeddings, &cfg.Integrity.Embeddings)
	set("baseline", a.baseline, &cfg.Drift.Baseline)
	set("current", a.current, &cfg.Drift.Current)
	set("oracle", a.oracleKind, &cfg.Oracle.Kind)
	set("log-level", a.logLevel, &cfg.Log.Level)
	if flags.Changed("threshold") {
		cfg.Drift.Threshold = a.threshold
	}
	if flags.Changed("disable") && a.disabled {
		cfg.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, &configError{err: fmt.Errorf("invalid configuration: %w", err)}
	}
	return cfg, nil
}

func (a *app) runChecks(cmd *cobra.Command, checks []sentinel.Check) error {
	ctx := cmd.Context()

	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, a.stderr)
	if err != nil {
		return &configError{err: err}
	}

	suite, closeFn, metrics, err := a.buildSuite(ctx, cfg, logger, checks)
	if err != nil {
		return err
	}
	defer closeFn()

	out := suite.Run(ctx, checks...)

	renderer, _ := report.RendererByName(a.format)
	if err := renderer.Render(a.stdout, out.Results...); err != nil {
		return err
	}

	if metrics != nil && cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
		}
	}

	return out.Err()
}

func (a *app) buildSuite(ctx context.Context, cfg *config.Config, logger *sentinel.Logger, checks []sentinel.Check) (*sentinel.Suite, func(), *promcollector.Collector, error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	c, ok := codec.ByName(cfg.Codec)
	if !ok {
		return nil, nil, nil, configErrorf("unknown codec %q", cfg.Codec)
	}

	store, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []sentinel.Option{
		sentinel.WithEnabled(cfg.Enabled),
		sentinel.WithCodec(c),
		sentinel.WithLogger(logger),
		sentinel.WithManifest(cfg.Integrity.Manifest, cfg.Integrity.CountKey),
		sentinel.WithArtifacts(cfg.Integrity.Source, cfg.Integrity.Embeddings),
		sentinel.WithSnapshots(cfg.Drift.Baseline, cfg.Drift.Current),
		sentinel.WithThreshold(cfg.Drift.Threshold),
		sentinel.WithResourceController(resource.NewController(resource.Config{
			MaxConcurrentChecks: cfg.MaxConcurrentChecks,
			IOLimitBytesPerSec:  cfg.IOLimitBytesPerSec,
		})),
	}

	// Only the integrity check queries the oracle; a drift-only run must not
	// depend on its credentials or reachability.
	if cfg.Enabled && slices.Contains(checks, sentinel.CheckIntegrity) {
		o, closeOracle, err := buildOracle(ctx, cfg.Oracle)
		if err != nil {
			return nil, nil, nil, err
		}
		if closeOracle != nil {
			closers = append(closers, closeOracle)
		}
		opts = append(opts, sentinel.WithOracle(o, cfg.GetOracleTimeout()))
	}

	sinks := []alert.Sink{alert.LogSink{Logger: logger.Logger}}
	if cfg.Alert.SlackWebhookURL != "" {
		var slackOpts []alert.SlackOption
		if cfg.Alert.NotifyOnPass {
			slackOpts = append(slackOpts, alert.WithAlwaysNotify())
		}
		sinks = append(sinks, alert.NewSlackSink(cfg.Alert.SlackWebhookURL, slackOpts...))
	}
	opts = append(opts, sentinel.WithAlertSink(alert.Multi(sinks...)))

	var metrics *promcollector.Collector
	if cfg.Metrics.Textfile != "" {
		metrics = promcollector.New()
		opts = append(opts, sentinel.WithMetricsCollector(metrics))
	}

	suite, err := sentinel.New(store, opts...)
	if err != nil {
		closeAll()
		return nil, nil, nil, &configError{err: err}
	}
	return suite, closeAll, metrics, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*sentinel.Logger, error) {
	level, err := sentinel.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Format == "json" {
		return sentinel.NewJSONLoggerTo(w, level), nil
	}
	return sentinel.NewTextLoggerTo(w, level), nil
}
