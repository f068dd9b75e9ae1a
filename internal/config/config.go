// Package config provides configuration management for the paper analysis service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the paper analysis service tooling.
type Config struct {
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Webhook contains n8n webhook client settings.
	Webhook WebhookConfig `mapstructure:"webhook"`
	// Diagnostics contains diagnostic run settings.
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host" validate:"required"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port" validate:"gt=0,lte=65535"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name" validate:"required"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	// Default is "require" for production security. Use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode" validate:"oneof=disable require verify-ca verify-full"`
	// MaxConns is the maximum number of connections in the pool (default: 10).
	MaxConns int32 `mapstructure:"max_conns" validate:"gt=0"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns int32 `mapstructure:"min_conns" validate:"gte=0"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// StatementCacheCapacity is the size of the prepared statement cache.
	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// WebhookConfig holds n8n webhook client settings.
type WebhookConfig struct {
	// BaseURL is the n8n instance base URL (e.g. "https://n8n.example.com").
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	// KeywordPath is the webhook path for keyword extraction.
	KeywordPath string `mapstructure:"keyword_path"`
	// ClassificationPath is the webhook path for OD/CD sentence classification.
	ClassificationPath string `mapstructure:"classification_path"`
	// AuthToken is the webhook auth header value (loaded from PAPERLYZER_WEBHOOK_AUTH_TOKEN).
	AuthToken string `mapstructure:"-"`
	// Timeout is the timeout for webhook calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second to the n8n instance.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	// RateBurst is the burst size for the rate limiter.
	RateBurst int `mapstructure:"rate_burst" validate:"gte=0"`
}

// DiagnosticsConfig holds diagnostic run settings.
type DiagnosticsConfig struct {
	// Repair enables the single corrective write for sentence-flag drift.
	// When false all checks are read-only and drift is reported only.
	Repair bool `mapstructure:"repair"`
	// StuckThreshold is how long a processing_queue entry may stay in
	// "processing" before it is reported as stuck.
	StuckThreshold time.Duration `mapstructure:"stuck_threshold"`
	// ListenAddr is the address for the optional report/metrics HTTP listener.
	ListenAddr string `mapstructure:"listen_addr"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// KeywordURL returns the full keyword webhook URL, or "" when unconfigured.
func (c *WebhookConfig) KeywordURL() string {
	return joinWebhookURL(c.BaseURL, c.KeywordPath)
}

// ClassificationURL returns the full classification webhook URL, or "" when unconfigured.
func (c *WebhookConfig) ClassificationURL() string {
	return joinWebhookURL(c.BaseURL, c.ClassificationPath)
}

func joinWebhookURL(base, path string) string {
	if base == "" || path == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("PAPERLYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paperlyzer")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets are loaded exclusively from environment variables.
	// The field uses mapstructure:"-" to prevent loading from config files.
	cfg.Webhook.AuthToken = os.Getenv("PAPERLYZER_WEBHOOK_AUTH_TOKEN")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "paperlyzer")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "paperlyzer")
	// Default to "require" for production security. Use PAPERLYZER_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.statement_cache_capacity", 512)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Webhook defaults. The base URL is deployment-specific and has no
	// default; the paths match the n8n workflow webhook nodes.
	v.SetDefault("webhook.base_url", "")
	v.SetDefault("webhook.keyword_path", "webhook/extract-keywords")
	v.SetDefault("webhook.classification_path", "webhook/classify-definitions")
	v.SetDefault("webhook.timeout", "30s")
	v.SetDefault("webhook.rate_limit", 5.0)
	v.SetDefault("webhook.rate_burst", 5)

	// Diagnostics defaults
	v.SetDefault("diagnostics.repair", true)
	v.SetDefault("diagnostics.stuck_threshold", "30m")
	v.SetDefault("diagnostics.listen_addr", "127.0.0.1:9090")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("config validation setup: %w", err)
		}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config field %s: failed %q", fe.Namespace(), fe.Tag())
		}
		return err
	}

	// Cross-field checks the validator tags cannot express.
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}
