package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 48*time.Hour, cfg.Jobs.StaleAfter)
}

func TestPrecedence(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "oficina.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
log:
  level: debug
storage:
  driver: sqlite
  dsn: file:from-yaml.db
jobs:
  stale_after: 24h
`), 0o644))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("OFICINA_LOG_FORMAT=json\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("OFICINA_LOG_FORMAT") })
	t.Setenv("OFICINA_STORAGE_DSN", "file:from-env.db")

	cfg, err := Load(yamlPath, envPath)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "file:from-env.db", cfg.Storage.DSN)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.StaleAfter)
}

func TestMissingFilesAreIgnored(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "nope.yaml"), filepath.Join(dir, "nope.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"sqlite without dsn", func(c *Config) { c.Storage.Driver = "sqlite" }},
		{"bad cron", func(c *Config) { c.Jobs.LowStockCron = "every day" }},
		{"zero stale window", func(c *Config) { c.Jobs.StaleAfter = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
