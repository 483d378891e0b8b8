// Package config loads Sentinel's configuration.
//
// Values are layered, later sources winning: built-in defaults, the YAML
// file, a .env file, SENTINEL_* environment variables, and finally CLI flags
// (applied by the caller). Variables already present in the environment are
// never overwritten by the .env file.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "sentinel.yaml"

// Config is the complete Sentinel configuration.
type Config struct {
	// Enabled is the kill switch. When false every check is skipped.
	Enabled bool   `yaml:"enabled"`
	Codec   string `yaml:"codec"`

	Integrity IntegrityConfig `yaml:"integrity"`
	Drift     DriftConfig     `yaml:"drift"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Storage   StorageConfig   `yaml:"storage"`

	MaxConcurrentChecks int64 `yaml:"max_concurrent_checks"`
	IOLimitBytesPerSec  int64 `yaml:"io_limit_bytes_per_sec"`

	Alert   AlertConfig   `yaml:"alert"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// IntegrityConfig locates the manifest and the fingerprinted artifacts.
type IntegrityConfig struct {
	Manifest   string `yaml:"manifest"`
	Source     string `yaml:"source"`
	Embeddings string `yaml:"embeddings"`
	CountKey   string `yaml:"count_key"`
}

// DriftConfig locates the snapshots and sets the threshold.
type DriftConfig struct {
	Baseline  string  `yaml:"baseline"`
	Current   string  `yaml:"current"`
	Threshold float64 `yaml:"threshold"`
}

// OracleConfig selects and configures the remote count oracle.
type OracleConfig struct {
	// Kind is one of none, wrangler, d1, sqlite, postgres, dynamodb.
	Kind    string `yaml:"kind"`
	Timeout string `yaml:"timeout"`

	Wrangler WranglerConfig `yaml:"wrangler"`
	D1       D1Config       `yaml:"d1"`
	SQLite   SQLConfig      `yaml:"sqlite"`
	Postgres SQLConfig      `yaml:"postgres"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
}

// WranglerConfig configures the wrangler CLI oracle.
type WranglerConfig struct {
	Command  []string `yaml:"command"`
	Database string   `yaml:"database"`
	Query    string   `yaml:"query"`
	Column   string   `yaml:"column"`
	Remote   bool     `yaml:"remote"`
}

// D1Config configures the D1 HTTP oracle.
type D1Config struct {
	BaseURL    string `yaml:"base_url"`
	AccountID  string `yaml:"account_id"`
	DatabaseID string `yaml:"database_id"`
	APIToken   string `yaml:"api_token"`
	Query      string `yaml:"query"`
}

// SQLConfig configures a SQL oracle. DSN is a file path for SQLite.
type SQLConfig struct {
	DSN   string `yaml:"dsn"`
	Query string `yaml:"query"`
}

// DynamoDBConfig configures the DynamoDB oracle.
type DynamoDBConfig struct {
	Table    string `yaml:"table"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Filter   string `yaml:"filter"`
}

// StorageConfig selects where artifacts, manifests and snapshots are read from.
type StorageConfig struct {
	// Kind is one of local, minio, s3.
	Kind      string `yaml:"kind"`
	Root      string `yaml:"root"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// AlertConfig configures alert delivery.
type AlertConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	NotifyOnPass    bool   `yaml:"notify_on_pass"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	// Textfile is written after each run, for node_exporter.
	Textfile string `yaml:"textfile"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Valid kinds.
var (
	OracleKinds  = []string{"none", "wrangler", "d1", "sqlite", "postgres", "dynamodb"}
	StorageKinds = []string{"local", "minio", "s3"}
	LogFormats   = []string{"text", "json"}
	LogLevels    = []string{"debug", "info", "warn", "error"}
	Codecs       = []string{"go-json", "json"}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Codec:   "go-json",

		Integrity: IntegrityConfig{
			Manifest:   "agents/sentinel/manifest.json",
			Source:     "src/data/curriculum.ts",
			Embeddings: "backend/data/embeddings/lesson_vectors.json",
			CountKey:   "expected_count",
		},

		Drift: DriftConfig{
			Baseline:  "backups/vectors_snapshot_v1.0.json",
			Current:   "backend/data/embeddings/lesson_vectors.json",
			Threshold: 0.85,
		},

		Oracle: OracleConfig{
			Kind:    "none",
			Timeout: "15s",
			Wrangler: WranglerConfig{
				Command:  []string{"npx", "wrangler"},
				Database: "tactical-curriculum-db",
				Query:    "SELECT COUNT(*) as count FROM lessons",
				Column:   "count",
			},
		},

		Storage: StorageConfig{
			Kind:   "local",
			Root:   ".",
			UseSSL: true,
		},

		MaxConcurrentChecks: 1,

		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads variables from a .env file into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv applies SENTINEL_* overrides read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("SENTINEL_MANIFEST", &c.Integrity.Manifest)
	str("SENTINEL_SOURCE", &c.Integrity.Source)
	str("SENTINEL_EMBEDDINGS", &c.Integrity.Embeddings)
	str("SENTINEL_COUNT_KEY", &c.Integrity.CountKey)
	str("SENTINEL_BASELINE", &c.Drift.Baseline)
	str("SENTINEL_CURRENT", &c.Drift.Current)
	str("SENTINEL_CODEC", &c.Codec)

	str("SENTINEL_ORACLE", &c.Oracle.Kind)
	str("SENTINEL_ORACLE_TIMEOUT", &c.Oracle.Timeout)
	str("SENTINEL_D1_DATABASE", &c.Oracle.Wrangler.Database)
	str("SENTINEL_D1_DATABASE_ID", &c.Oracle.D1.DatabaseID)
	str("CLOUDFLARE_ACCOUNT_ID", &c.Oracle.D1.AccountID)
	str("CLOUDFLARE_API_TOKEN", &c.Oracle.D1.APIToken)
	str("SENTINEL_SQLITE_PATH", &c.Oracle.SQLite.DSN)
	str("SENTINEL_POSTGRES_DSN", &c.Oracle.Postgres.DSN)
	str("SENTINEL_DYNAMODB_TABLE", &c.Oracle.DynamoDB.Table)

	str("SENTINEL_STORAGE", &c.Storage.Kind)
	str("SENTINEL_STORAGE_ROOT", &c.Storage.Root)
	str("SENTINEL_BUCKET", &c.Storage.Bucket)
	str("SENTINEL_PREFIX", &c.Storage.Prefix)
	str("SENTINEL_ENDPOINT", &c.Storage.Endpoint)
	str("SENTINEL_ACCESS_KEY", &c.Storage.AccessKey)
	str("SENTINEL_SECRET_KEY", &c.Storage.SecretKey)

	str("SLACK_WEBHOOK_URL", &c.Alert.SlackWebhookURL)
	str("SENTINEL_SLACK_WEBHOOK_URL", &c.Alert.SlackWebhookURL)
	str("SENTINEL_METRICS_TEXTFILE", &c.Metrics.Textfile)
	str("SENTINEL_LOG_LEVEL", &c.Log.Level)
	str("SENTINEL_LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("SENTINEL_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SENTINEL_ENABLED: %w", err)
		}
		c.Enabled = b
	}
	if v, ok := lookup("SENTINEL_THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SENTINEL_THRESHOLD: %w", err)
		}
		c.Drift.Threshold = f
	}
	if v, ok := lookup("SENTINEL_IO_LIMIT"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SENTINEL_IO_LIMIT: %w", err)
		}
		c.IOLimitBytesPerSec = n
	}

	return nil
}

// GetOracleTimeout returns the oracle timeout as a duration.
func (c *Config) GetOracleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Oracle.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	required := map[string]string{
		"integrity.manifest":   c.Integrity.Manifest,
		"integrity.source":     c.Integrity.Source,
		"integrity.embeddings": c.Integrity.Embeddings,
		"integrity.count_key":  c.Integrity.CountKey,
		"drift.baseline":       c.Drift.Baseline,
		"drift.current":        c.Drift.Current,
	}
	keys := make([]string, 0, len(required))
	for k := range required {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if strings.TrimSpace(required[k]) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", k))
		}
	}

	if math.IsNaN(c.Drift.Threshold) || c.Drift.Threshold < -1 || c.Drift.Threshold > 1 {
		errs = append(errs, fmt.Errorf("drift.threshold must be within [-1, 1], got %v", c.Drift.Threshold))
	}

	errs = append(errs, oneOf("oracle.kind", c.Oracle.Kind, OracleKinds))
	errs = append(errs, oneOf("storage.kind", c.Storage.Kind, StorageKinds))
	errs = append(errs, oneOf("log.format", c.Log.Format, LogFormats))
	errs = append(errs, oneOf("log.level", strings.ToLower(c.Log.Level), LogLevels))
	errs = append(errs, oneOf("codec", c.Codec, Codecs))

	if d, err := time.ParseDuration(c.Oracle.Timeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("oracle.timeout must be a positive duration, got %q", c.Oracle.Timeout))
	}

	switch c.Oracle.Kind {
	case "wrangler":
		if len(c.Oracle.Wrangler.Command) == 0 || c.Oracle.Wrangler.Database == "" {
			errs = append(errs, errors.New("oracle.wrangler requires command and database"))
		}
	case "d1":
		d1 := c.Oracle.D1
		if d1.AccountID == "" || d1.DatabaseID == "" || d1.APIToken == "" {
			errs = append(errs, errors.New("oracle.d1 requires account_id, database_id and api_token"))
		}
	case "sqlite":
		if c.Oracle.SQLite.DSN == "" {
			errs = append(errs, errors.New("oracle.sqlite requires dsn"))
		}
	case "postgres":
		if c.Oracle.Postgres.DSN == "" {
			errs = append(errs, errors.New("oracle.postgres requires dsn"))
		}
	case "dynamodb":
		if c.Oracle.DynamoDB.Table == "" {
			errs = append(errs, errors.New("oracle.dynamodb requires table"))
		}
	}

	switch c.Storage.Kind {
	case "minio":
		if c.Storage.Bucket == "" || c.Storage.Endpoint == "" {
			errs = append(errs, errors.New("storage.minio requires bucket and endpoint"))
		}
	case "s3":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.s3 requires bucket"))
		}
	}

	if c.IOLimitBytesPerSec < 0 {
		errs = append(errs, errors.New("io_limit_bytes_per_sec must not be negative"))
	}

	return errors.Join(errs...)
}

func oneOf(field, v string, valid []string) error {
	if slices.Contains(valid, v) {
		return nil
	}
	return fmt.Errorf("invalid %s: %q (valid: %v)", field, v, valid)
}
