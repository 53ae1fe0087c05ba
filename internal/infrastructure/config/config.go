package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config is the full runner configuration. Values are layered: struct
// defaults, optional YAML file, then IAMCOMP_-prefixed environment
// variables (IAMCOMP_DATABASE_URL -> database.url).
type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Runner    RunnerConfig    `koanf:"runner"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// RunnerConfig drives the periodic evaluation loop.
type RunnerConfig struct {
	CycleInterval   time.Duration `koanf:"cycle_interval"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// PipelineConfig carries the per-service tunables.
type PipelineConfig struct {
	PredicateTimeout     time.Duration `koanf:"predicate_timeout"`
	MaxConcurrentTenants int           `koanf:"max_concurrent_tenants"`
	ConfigStoreRate      float64       `koanf:"config_store_rate"`
	ConfigStoreBurst     int           `koanf:"config_store_burst"`
	RunLockTTL           time.Duration `koanf:"run_lock_ttl"`
	ScoreCacheTTL        time.Duration `koanf:"score_cache_ttl"`
	DefaultCurrency      string        `koanf:"default_currency"`
	HistoryMonths        int           `koanf:"history_months"`
}

type TelemetryConfig struct {
	OTLPEndpoint   string  `koanf:"otlp_endpoint"`
	TraceSampling  float64 `koanf:"trace_sampling"`
	ServiceName    string  `koanf:"service_name"`
	MetricsEnabled bool    `koanf:"metrics_enabled"`
}

// Load builds the configuration from defaults, the optional YAML file at
// path (ignored when empty or missing) and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL: "localhost:6379",
		},
		Runner: RunnerConfig{
			CycleInterval:   15 * time.Minute,
			MetricsAddr:     ":9090",
			ShutdownTimeout: 30 * time.Second,
		},
		Pipeline: PipelineConfig{
			PredicateTimeout:     5 * time.Second,
			MaxConcurrentTenants: 8,
			ConfigStoreRate:      200,
			ConfigStoreBurst:     50,
			RunLockTTL:           2 * time.Minute,
			ScoreCacheTTL:        time.Hour,
			DefaultCurrency:      "EUR",
			HistoryMonths:        24,
		},
		Telemetry: TelemetryConfig{
			TraceSampling:  0.1,
			ServiceName:    "iam-compliance",
			MetricsEnabled: true,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("IAMCOMP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "IAMCOMP_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Runner.CycleInterval <= 0 {
		return fmt.Errorf("runner.cycle_interval must be positive")
	}
	if c.Pipeline.MaxConcurrentTenants < 1 {
		return fmt.Errorf("pipeline.max_concurrent_tenants must be at least 1")
	}
	return nil
}
