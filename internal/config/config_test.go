package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Empty(t, cfg.AWS.AccessKeyID)
	assert.Equal(t, "code_explorer.lambda_handler", cfg.Handler.Name)
	assert.Equal(t, "MONTHLY", cfg.Costs.Granularity)
	assert.Equal(t, "UnblendedCost", cfg.Costs.Metric)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "/tmp/code-explorer-cache.db", cfg.Cache.DSN)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 10*time.Minute, cfg.Cache.PurgeInterval)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
log:
  level: "debug"
  format: "text"

aws:
  region: "eu-west-1"

costs:
  granularity: daily
  metric: BlendedCost

cache:
  enabled: true
  dsn: "/tmp/test-cache.db"
  ttl: 15m

server:
  port: 9100
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := Load(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "DAILY", cfg.Costs.Granularity)
	assert.Equal(t, "BlendedCost", cfg.Costs.Metric)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "/tmp/test-cache.db", cfg.Cache.DSN)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("CODE_EXPLORER_LOG_LEVEL", "warn")
	t.Setenv("CODE_EXPLORER_AWS_REGION", "us-west-2")
	t.Setenv("CODE_EXPLORER_AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("CODE_EXPLORER_AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("CODE_EXPLORER_HANDLER_NAME", "reports.handle")
	t.Setenv("CODE_EXPLORER_CACHE_ENABLED", "true")
	t.Setenv("CODE_EXPLORER_CACHE_TTL", "5m")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "us-west-2", cfg.AWS.Region)
	assert.Equal(t, "AKIDEXAMPLE", cfg.AWS.AccessKeyID)
	assert.Equal(t, "secret", cfg.AWS.SecretAccessKey)
	assert.Equal(t, "reports.handle", cfg.Handler.Name)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestLoad_FileNotFound_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "MONTHLY", cfg.Costs.Granularity)
}

func TestLoad_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	_, err := Load(tmpFile)
	assert.Error(t, err)
}

func TestLoad_InvalidGranularity(t *testing.T) {
	clearEnv(t)
	t.Setenv("CODE_EXPLORER_COSTS_GRANULARITY", "WEEKLY")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEEKLY")
}

func TestLoad_InvalidHandlerName(t *testing.T) {
	clearEnv(t)
	t.Setenv("CODE_EXPLORER_HANDLER_NAME", "lambda_handler")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler.name")
}

// =============================================================================
// Config Validation Tests
// =============================================================================

func validConfig() *Config {
	return &Config{
		Handler: HandlerConfig{Name: "code_explorer.lambda_handler"},
		Costs:   CostsConfig{Granularity: "MONTHLY", Metric: "UnblendedCost"},
		Cache:   CacheConfig{DSN: "/tmp/cache.db", TTL: time.Hour},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty metric", func(c *Config) { c.Costs.Metric = " " }, "costs.metric"},
		{"half static credentials", func(c *Config) { c.AWS.AccessKeyID = "AKID" }, "must be set together"},
		{"cache without dsn", func(c *Config) { c.Cache.Enabled = true; c.Cache.DSN = "" }, "cache.dsn"},
		{"cache zero ttl", func(c *Config) { c.Cache.Enabled = true; c.Cache.TTL = 0 }, "cache.ttl"},
		{"disabled cache ignores ttl", func(c *Config) { c.Cache.TTL = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	assert.Equal(t, "localhost:8080", ServerConfig{Host: "localhost", Port: 8080}.Address())
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("report rendered", "rows", 3)

	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"rows":3`)
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "text"}, &buf)

	logger.Info("report rendered")

	assert.Contains(t, buf.String(), "msg=\"report rendered\"")
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "invalid", Format: "json"}, &buf)

	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupLogger(t *testing.T) {
	assert.NotNil(t, SetupLogger(&Config{Log: LogConfig{Level: "debug", Format: "text"}}))
}

// =============================================================================
// Test Helpers
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, EnvPrefix+"_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}
