package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err, "an explicit path must exist")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pricewatch", cfg.App.Name)
	assert.Equal(t, "https://api2.prices.tf", cfg.Pricer.APIURL)
	assert.Equal(t, "wss://ws.prices.tf", cfg.Pricer.WebSocketURL)
	assert.Equal(t, 100, cfg.Pricer.PageLimit)
	assert.Equal(t, 200*time.Millisecond, cfg.Pricer.PageDelay)
	assert.Equal(t, 5, cfg.Pricer.MaxSnapshotAttempts)
	assert.Equal(t, 10*time.Second, cfg.Pricer.ServerErrorDelay)
	assert.Equal(t, time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, 3, cfg.Monitor.IdleThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.Cooldown)
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, 8081, cfg.Health.Port)
	assert.False(t, cfg.Discord.Enabled)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, 720*time.Hour, cfg.History.Retention)
	assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  log_level: debug
pricer:
  api_url: http://localhost:9000
  page_limit: 50
monitor:
  idle_threshold: 7
web:
  port: 3000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "http://localhost:9000", cfg.Pricer.APIURL)
	assert.Equal(t, 50, cfg.Pricer.PageLimit)
	assert.Equal(t, 7, cfg.Monitor.IdleThreshold)
	assert.Equal(t, 3000, cfg.Web.Port)
	// Unrelated defaults survive a partial file.
	assert.Equal(t, "wss://ws.prices.tf", cfg.Pricer.WebSocketURL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PW_PRICER_API_URL", "http://env-wins:1234")
	t.Setenv("PW_WEB_PORT", "4000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://env-wins:1234", cfg.Pricer.APIURL)
	assert.Equal(t, 4000, cfg.Web.Port)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api url", func(c *Config) { c.Pricer.APIURL = "" }},
		{"missing ws url", func(c *Config) { c.Pricer.WebSocketURL = "" }},
		{"zero page limit", func(c *Config) { c.Pricer.PageLimit = 0 }},
		{"zero snapshot attempts", func(c *Config) { c.Pricer.MaxSnapshotAttempts = 0 }},
		{"zero idle threshold", func(c *Config) { c.Monitor.IdleThreshold = 0 }},
		{"port out of range", func(c *Config) { c.Web.Port = 70000 }},
		{"discord enabled without targets", func(c *Config) { c.Discord.Enabled = true }},
		{"history enabled without path", func(c *Config) {
			c.History.Enabled = true
			c.History.Path = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestTelemetryConfig_OTLPHeadersMap(t *testing.T) {
	c := TelemetryConfig{OTLPHeaders: "authorization=Bearer abc, x-tenant = prod"}
	headers := c.OTLPHeadersMap()
	assert.Equal(t, "Bearer abc", headers["authorization"])
	assert.Equal(t, "prod", headers["x-tenant"])

	var empty TelemetryConfig
	assert.Empty(t, empty.OTLPHeadersMap())
}
