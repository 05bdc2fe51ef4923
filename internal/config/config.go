// Package config loads code-explorer configuration and builds its logger.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/artpar/code-explorer/internal/core/artifact"
)

// EnvPrefix prefixes every environment override, e.g. CODE_EXPLORER_LOG_LEVEL.
const EnvPrefix = "CODE_EXPLORER"

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	AWS     AWSConfig     `mapstructure:"aws"`
	Handler HandlerConfig `mapstructure:"handler"`
	Costs   CostsConfig   `mapstructure:"costs"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Server  ServerConfig  `mapstructure:"server"`
	Docker  DockerConfig  `mapstructure:"docker"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AWSConfig holds AWS client configuration.
type AWSConfig struct {
	// Region is the Cost Explorer API region. Cost Explorer is served from us-east-1.
	Region string `mapstructure:"region"`

	// AccessKeyID and SecretAccessKey select static credentials.
	// When empty, the default credential chain is used (the Lambda execution role).
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
}

// HandlerConfig holds the invocation entry point configuration.
type HandlerConfig struct {
	// Name is the handler symbol resolved when _HANDLER is not set.
	Name string `mapstructure:"name"`
}

// CostsConfig holds Cost Explorer query configuration.
type CostsConfig struct {
	// Granularity is DAILY, MONTHLY or HOURLY.
	Granularity string `mapstructure:"granularity"`

	// Metric is the cost metric reported, e.g. UnblendedCost.
	Metric string `mapstructure:"metric"`
}

// CacheConfig holds result cache configuration.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	DSN     string        `mapstructure:"dsn"`
	TTL     time.Duration `mapstructure:"ttl"`

	// PurgeInterval is how often long-running processes drop expired entries.
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

// ServerConfig holds the local development server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DockerConfig holds Docker client configuration for image builds.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// =============================================================================
// Config Loading
// =============================================================================

var validGranularities = []string{"DAILY", "MONTHLY", "HOURLY"}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("aws.session_token", "")
	v.SetDefault("handler.name", artifact.DefaultEntryPoint)
	v.SetDefault("costs.granularity", "MONTHLY")
	v.SetDefault("costs.metric", "UnblendedCost")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.dsn", "/tmp/code-explorer-cache.db") // /tmp survives warm invocations
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.purge_interval", "10m")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 9000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("docker.host", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only a file that exists but does not parse is an error
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Costs.Granularity = strings.ToUpper(strings.TrimSpace(cfg.Costs.Granularity))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail on the first invocation.
func (c *Config) Validate() error {
	if err := artifact.ValidateEntryPoint(c.Handler.Name); err != nil {
		return fmt.Errorf("handler.name: %w", err)
	}

	valid := false
	for _, g := range validGranularities {
		if c.Costs.Granularity == g {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("costs.granularity %q must be one of %s", c.Costs.Granularity, strings.Join(validGranularities, ", "))
	}

	if strings.TrimSpace(c.Costs.Metric) == "" {
		return fmt.Errorf("costs.metric is required")
	}

	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		return fmt.Errorf("aws.access_key_id and aws.secret_access_key must be set together")
	}

	if c.Cache.Enabled {
		if c.Cache.DSN == "" {
			return fmt.Errorf("cache.dsn is required when the cache is enabled")
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
		}
	}

	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format writing
// to stdout, which the Lambda platform forwards to CloudWatch Logs.
func SetupLogger(cfg *Config) *slog.Logger {
	return NewLogger(cfg.Log, os.Stdout)
}

// NewLogger creates a logger writing to w.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
