// Package config loads the service configuration. Sources are applied in
// order, later ones winning: built-in defaults, an optional YAML file, an
// optional .env file, then OFICINA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OFICINA_"

type Config struct {
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
	Storage StorageConfig `yaml:"storage" envPrefix:"STORAGE_"`
	Jobs    JobsConfig    `yaml:"jobs" envPrefix:"JOBS_"`
	Notify  NotifyConfig  `yaml:"notify" envPrefix:"NOTIFY_"`
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// StorageConfig selects the backend. Driver is "memory" or "sqlite"; the
// memory driver persists JSON files under DataDir when it is set.
type StorageConfig struct {
	Driver  string `yaml:"driver" env:"DRIVER"`
	DSN     string `yaml:"dsn" env:"DSN"`
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`
}

type JobsConfig struct {
	Enabled        bool          `yaml:"enabled" env:"ENABLED"`
	LowStockCron   string        `yaml:"low_stock_cron" env:"LOW_STOCK_CRON"`
	StaleOrderCron string        `yaml:"stale_order_cron" env:"STALE_ORDER_CRON"`
	StaleAfter     time.Duration `yaml:"stale_after" env:"STALE_AFTER"`
}

type NotifyConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url" env:"SLACK_WEBHOOK_URL"`
	SlackChannel    string `yaml:"slack_channel" env:"SLACK_CHANNEL"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:     LogConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{Driver: "memory"},
		Jobs: JobsConfig{
			Enabled:        true,
			LowStockCron:   "0 7 * * *",
			StaleOrderCron: "0 */4 * * *",
			StaleAfter:     48 * time.Hour,
		},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

// Load builds the configuration. Either path may be empty; a missing file
// is not an error.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env %s: %w", envFile, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Jobs.Enabled {
		g := gronx.New()
		for name, expr := range map[string]string{
			"jobs.low_stock_cron":   c.Jobs.LowStockCron,
			"jobs.stale_order_cron": c.Jobs.StaleOrderCron,
		} {
			if !g.IsValid(expr) {
				return fmt.Errorf("%s: invalid cron expression %q", name, expr)
			}
		}
		if c.Jobs.StaleAfter <= 0 {
			return errors.New("jobs.stale_after must be positive")
		}
	}
	return nil
}
