package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

meta:
  base_url: "https://graph.example.com"
  api_version: "v19.0"
  timeout_seconds: 45
  batch_size: 35

thresholds:
  min_spend: 5000
  winner_threshold: 1.5

polling:
  sync_interval_seconds: 3600
  default_date_preset: "last_30d"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://graph.example.com", cfg.Meta.BaseURL)
	assert.Equal(t, "v19.0", cfg.Meta.APIVersion)
	assert.Equal(t, 45, cfg.Meta.TimeoutSeconds)
	assert.Equal(t, 35, cfg.Meta.BatchSize)
	assert.Equal(t, 5000.0, cfg.Thresholds.MinSpend)
	assert.Equal(t, 1.5, cfg.Thresholds.WinnerThreshold)
	assert.Equal(t, "last_30d", cfg.Polling.DefaultDatePreset)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 8081\n"), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://graph.facebook.com", cfg.Meta.BaseURL)
	assert.Equal(t, "v18.0", cfg.Meta.APIVersion)
	assert.Equal(t, 20, cfg.Meta.BatchSize)
	assert.Equal(t, 3, cfg.Meta.MaxRetries)
	assert.Equal(t, 900, cfg.Meta.MaxBackoffSeconds)
	assert.Equal(t, 3000.0, cfg.Thresholds.MinSpend)
	assert.Equal(t, 2, cfg.Thresholds.MinPurchases)
	assert.Equal(t, 1.2, cfg.Thresholds.WinnerThreshold)
	assert.Equal(t, 0.9, cfg.Thresholds.LoserThreshold)
	assert.Equal(t, -0.05, cfg.Thresholds.DecliningSlope)
	assert.Equal(t, 25, cfg.Thresholds.MaxScalePct)
	assert.Equal(t, 48, cfg.Thresholds.ScaleCooldownHours)
	assert.Equal(t, 15, cfg.Thresholds.CustomMaxScalePct)
	assert.Equal(t, "last_7d", cfg.Polling.DefaultDatePreset)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 8081\n"), 0644))

	t.Setenv("META_BASE_URL", "https://graph.override.test")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/pilot")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://graph.override.test", cfg.Meta.BaseURL)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.True(t, cfg.OpenAI.Enabled)
	assert.Equal(t, "postgres://u:p@localhost/pilot", cfg.Storage.DatabaseURL)
}

func TestDurationHelpers(t *testing.T) {
	cfg := MetaConfig{TimeoutSeconds: 45, MaxBackoffSeconds: 600, UsageHalfLifeSeconds: 120}
	assert.Equal(t, "45s", cfg.Timeout().String())
	assert.Equal(t, "10m0s", cfg.MaxBackoff().String())
	assert.Equal(t, "2m0s", cfg.UsageHalfLife().String())

	th := ThresholdConfig{ScaleCooldownHours: 48}
	assert.Equal(t, "48h0m0s", th.ScaleCooldown().String())
}
