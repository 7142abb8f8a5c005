// Package config loads process configuration from defaults, an optional
// YAML file and BUDGENUDGE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dvloznov/budgenudge/internal/domain"
)

const (
	// EnvPrefix prefixes every environment key, e.g. BUDGENUDGE_ADDR.
	EnvPrefix = "BUDGENUDGE_"

	// FileEnv names the variable holding an optional YAML config path.
	FileEnv = "BUDGENUDGE_CONFIG"
)

// Dedupe backends.
const (
	DedupePostgres = "postgres"
	DedupeRedis    = "redis"
	DedupeMemory   = "memory"
)

// ErrInvalidConfig is wrapped by validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// Config contains process configuration.
type Config struct {
	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr     string `koanf:"addr"`
	LogLevel string `koanf:"log_level"`
	// LogFormat is console or json.
	LogFormat string `koanf:"log_format"`

	DatabaseURL string `koanf:"database_url"`
	DBMaxConns  int    `koanf:"db_max_conns"`

	// JWTSecret verifies Supabase access tokens (HS256).
	JWTSecret string `koanf:"jwt_secret"`
	// WebhookSecret is the shared secret expected on webhook requests.
	WebhookSecret string `koanf:"webhook_secret"`
	// CORSOrigins is a comma-separated list in the environment.
	CORSOrigins []string `koanf:"cors_origins"`

	// DedupeBackend is one of postgres, redis or memory.
	DedupeBackend string `koanf:"dedupe_backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	GCPProject      string `koanf:"gcp_project"`
	BigQueryDataset string `koanf:"bigquery_dataset"`
	ArchiveBucket   string `koanf:"archive_bucket"`

	GeminiModel      string `koanf:"gemini_model"`
	AITaggingEnabled bool   `koanf:"ai_tagging_enabled"`

	NotionToken     string `koanf:"notion_token"`
	NotionBillsDBID string `koanf:"notion_bills_db_id"`

	QueueSize   int `koanf:"queue_size"`
	WorkerCount int `koanf:"worker_count"`
	// JobRetention is how long finished jobs stay visible on /api/jobs.
	JobRetention time.Duration `koanf:"job_retention"`

	SMSDryRun       bool   `koanf:"sms_dry_run"`
	DefaultTimezone string `koanf:"default_timezone"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		Addr:            ":8080",
		LogLevel:        "info",
		LogFormat:       "console",
		CORSOrigins:     []string{"*"},
		DBMaxConns:      10,
		DedupeBackend:   DedupePostgres,
		RedisAddr:       "localhost:6379",
		BigQueryDataset: "budgenudge",
		GeminiModel:     "gemini-2.5-flash",
		QueueSize:       1000,
		WorkerCount:     5,
		JobRetention:    24 * time.Hour,
		SMSDryRun:       true,
		DefaultTimezone: domain.DefaultTimezone,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load builds a Config by layering, from low to high precedence:
//  1. defaults (New)
//  2. YAML file named by BUDGENUDGE_CONFIG, if set
//  3. environment variables with the BUDGENUDGE_ prefix
//
// A .env file in the working directory is loaded into the environment first
// when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Load: .env: %w", err)
	}
	return LoadFrom(os.Getenv(FileEnv))
}

// LoadFrom is Load without the .env step, reading the YAML file at path
// when path is not empty.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("LoadFrom: file %s: %w", path, err)
		}
	}

	// BUDGENUDGE_QUEUE_SIZE -> queue_size; underscores are kept to match
	// the flat koanf tags. List keys are comma-separated.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("LoadFrom: env: %w", err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("LoadFrom: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var listKeys = map[string]bool{"cors_origins": true}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks settings that every binary depends on.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.DedupeBackend {
	case DedupePostgres, DedupeMemory:
	case DedupeRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr is required for the redis dedupe backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown dedupe_backend %q", ErrInvalidConfig, c.DedupeBackend)
	}
	if c.WorkerCount <= 0 || c.QueueSize <= 0 {
		return fmt.Errorf("%w: worker_count and queue_size must be positive", ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("%w: default_timezone: %v", ErrInvalidConfig, err)
	}
	return nil
}

// RequireDatabase reports a missing database URL.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: database_url is required", ErrInvalidConfig)
	}
	return nil
}

// WarehouseEnabled reports whether BigQuery export is configured.
func (c *Config) WarehouseEnabled() bool {
	return c.GCPProject != "" && c.BigQueryDataset != ""
}

// NotionEnabled reports whether the Notion bills board is configured.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionBillsDBID != ""
}
