package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  tracking_port: 9091
  allowed_origins: ["https://console.phishintel.example"]

database:
  url: "postgres://localhost/phishintel?sslmode=disable"
  max_open_conns: 10

redis:
  addr: "localhost:6379"

tracking:
  public_base_url: "https://decoy.phishintel.example"
  sign_in_path: "/sign-in"
  token_length: 16

dispatch:
  lock_ttl_seconds: 120
  max_token_retries: 3

smtp:
  timeout_seconds: 10
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 9091, cfg.Server.TrackingPort)
	assert.Equal(t, []string{"https://console.phishintel.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres://localhost/phishintel?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "https://decoy.phishintel.example", cfg.Tracking.PublicBaseURL)
	assert.Equal(t, 16, cfg.Tracking.TokenLength)
	assert.Equal(t, 2*time.Minute, cfg.Dispatch.LockTTL())
	assert.Equal(t, 3, cfg.Dispatch.MaxTokenRetries)
	assert.Equal(t, 10*time.Second, cfg.SMTP.SendTimeout())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8081, cfg.Server.TrackingPort)
	assert.Equal(t, "/sign-in", cfg.Tracking.SignInPath)
	assert.Equal(t, 12, cfg.Tracking.TokenLength)
	assert.Equal(t, 5, cfg.Dispatch.MaxTokenRetries)
	assert.Equal(t, 10*time.Minute, cfg.Dispatch.LockTTL())
	assert.Equal(t, 30*time.Second, cfg.SMTP.SendTimeout())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host/phishintel")
	t.Setenv("PUBLIC_BASE_URL", "https://env.decoy.example")
	t.Setenv("PORT", "7070")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-host/phishintel", cfg.Database.URL)
	assert.Equal(t, "https://env.decoy.example", cfg.Tracking.PublicBaseURL)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}
