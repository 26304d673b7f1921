package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, "zacharie-agent.db", cfg.Agent.StorePath)
	require.Equal(t, "/api/fei/user/me", cfg.Agent.FichesTarget)
	require.Equal(t, 5*time.Minute, cfg.Agent.SyncInterval)
	require.Equal(t, "http://localhost:3000", cfg.API.BaseURL)
	require.Equal(t, 15*time.Second, cfg.API.Timeout)
	require.Equal(t, "127.0.0.1:8096", cfg.Server.Address)
	require.Equal(t, 50, cfg.Database.MaxOpenConns)
	require.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	require.Equal(t, "localhost", cfg.Redis.Host)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, "push-notifications", cfg.ServiceBus.PushQueue)
	require.Equal(t, time.Second, cfg.Notify.Interval)
	require.Equal(t, "ne-pas-repondre@zacharie.beta.gouv.fr", cfg.Notify.EmailFrom)
	require.Equal(t, "Zacharie Custody", cfg.Tracing.AppName)
	require.False(t, cfg.Tracing.Enabled)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("ZACHARIE_AGENT_STORE_PATH", "/var/lib/zacharie/device.db")
	t.Setenv("ZACHARIE_API_BASE_URL", "https://zacharie.beta.gouv.fr")
	t.Setenv("ZACHARIE_NOTIFY_INTERVAL", "2s")
	t.Setenv("ZACHARIE_REDIS_ENABLED", "false")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "/var/lib/zacharie/device.db", cfg.Agent.StorePath)
	require.Equal(t, "https://zacharie.beta.gouv.fr", cfg.API.BaseURL)
	require.Equal(t, 2*time.Second, cfg.Notify.Interval)
	require.False(t, cfg.Redis.Enabled)
}

func TestConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
environment: production
logging:
  level: warn
agent:
  store_path: /data/device.db
  sync_interval: 10m
api:
  base_url: https://zacharie.beta.gouv.fr
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, "production", cfg.Environment)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, "/data/device.db", cfg.Agent.StorePath)
	require.Equal(t, 10*time.Minute, cfg.Agent.SyncInterval)
	require.Equal(t, "https://zacharie.beta.gouv.fr", cfg.API.BaseURL)
	// Untouched sections keep their defaults
	require.Equal(t, "/api/fei/user/me", cfg.Agent.FichesTarget)
	require.Equal(t, 15*time.Second, cfg.API.Timeout)
}
