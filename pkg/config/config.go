package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gatherly/gatherly/pkg/observability"
	"github.com/gatherly/gatherly/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`

	// Webhook delivery configuration
	Webhooks WebhookConfig `yaml:"webhooks"`

	// Janitor configuration
	Janitor JanitorConfig `yaml:"janitor"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	// Maximum accepted request body, in bytes. Media uploads are the
	// largest legitimate payloads.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel     observability.LogLevel `yaml:"-"`
	LogLevelName string                 `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// WebhookConfig holds outbound webhook delivery settings
type WebhookConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	MaxRetries      int           `yaml:"max_retries"`
}

// JanitorConfig holds settings for the background cleanup binary
type JanitorConfig struct {
	Schedule string        `yaml:"schedule"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
	PurgeAge time.Duration `yaml:"purge_age"`
}

// LoadConfig loads configuration from an optional YAML file and the
// environment. Environment variables win over file values so a
// deployment can override a baked-in config.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        defaultServerConfig(),
		Storage:       storage.DefaultConfig(),
		Observability: defaultObservabilityConfig(),
		Webhooks:      defaultWebhookConfig(),
		Janitor:       defaultJanitorConfig(),
	}

	if path := os.Getenv("GATHERLY_CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.Observability.LogLevelName != "" {
		cfg.Observability.LogLevel = parseLogLevel(cfg.Observability.LogLevelName)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            "8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		HealthPort:      "9090",
		MaxBodyBytes:    64 << 20,
	}
}

func defaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.InfoLevel,
		LogLevelName:       "info",
		MetricsEnabled:     true,
		OTelEnabled:        false,
		OTelEndpoint:       "localhost:4317",
		OTelServiceName:    "gatherly-api",
		OTelServiceVersion: "1.0.0",
		OTelInsecure:       true,
	}
}

func defaultWebhookConfig() WebhookConfig {
	return WebhookConfig{
		Enabled:         true,
		DeliveryTimeout: 10 * time.Second,
		MaxRetries:      3,
	}
}

func defaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Schedule: "@hourly",
		LockTTL:  10 * time.Minute,
		PurgeAge: 30 * 24 * time.Hour,
	}
}

// applyEnv overlays GATHERLY_* environment variables on top of cfg.
func applyEnv(cfg *Config) {
	// Server
	setString(&cfg.Server.Host, "GATHERLY_HOST")
	setString(&cfg.Server.Port, "GATHERLY_PORT")
	setString(&cfg.Server.HealthPort, "GATHERLY_HEALTH_PORT")
	setDuration(&cfg.Server.ReadTimeout, "GATHERLY_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "GATHERLY_WRITE_TIMEOUT")
	setDuration(&cfg.Server.IdleTimeout, "GATHERLY_IDLE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "GATHERLY_SHUTDOWN_TIMEOUT")
	setInt64(&cfg.Server.MaxBodyBytes, "GATHERLY_MAX_BODY_BYTES")

	// Postgres
	setString(&cfg.Storage.PostgresURL, "GATHERLY_POSTGRES_URL")
	if replicas := os.Getenv("GATHERLY_POSTGRES_REPLICA_URLS"); replicas != "" {
		cfg.Storage.PostgresReplicaURLs = strings.Split(replicas, ",")
	}
	setInt(&cfg.Storage.PostgresMaxConns, "GATHERLY_POSTGRES_MAX_CONNS")
	setInt(&cfg.Storage.PostgresMinConns, "GATHERLY_POSTGRES_MIN_CONNS")
	setDuration(&cfg.Storage.PostgresTimeout, "GATHERLY_POSTGRES_TIMEOUT")

	// S3
	setString(&cfg.Storage.S3Endpoint, "GATHERLY_S3_ENDPOINT")
	setString(&cfg.Storage.S3Region, "GATHERLY_S3_REGION")
	setString(&cfg.Storage.S3Bucket, "GATHERLY_S3_BUCKET")
	setString(&cfg.Storage.S3AccessKey, "GATHERLY_S3_ACCESS_KEY")
	setString(&cfg.Storage.S3SecretKey, "GATHERLY_S3_SECRET_KEY")
	setString(&cfg.Storage.S3PublicURL, "GATHERLY_S3_PUBLIC_URL")
	setBool(&cfg.Storage.S3UsePathStyle, "GATHERLY_S3_USE_PATH_STYLE")

	// Redis
	setString(&cfg.Storage.RedisURL, "GATHERLY_REDIS_URL")
	setString(&cfg.Storage.RedisPassword, "GATHERLY_REDIS_PASSWORD")
	setInt(&cfg.Storage.RedisDB, "GATHERLY_REDIS_DB")
	setInt(&cfg.Storage.RedisMaxRetries, "GATHERLY_REDIS_MAX_RETRIES")
	setInt(&cfg.Storage.RedisPoolSize, "GATHERLY_REDIS_POOL_SIZE")

	// Cache
	setBool(&cfg.Storage.CacheEnabled, "GATHERLY_CACHE_ENABLED")
	setInt(&cfg.Storage.UserCacheSize, "GATHERLY_USER_CACHE_SIZE")

	// Observability
	setString(&cfg.Observability.LogLevelName, "GATHERLY_LOG_LEVEL")
	setBool(&cfg.Observability.MetricsEnabled, "GATHERLY_METRICS_ENABLED")
	setBool(&cfg.Observability.OTelEnabled, "GATHERLY_OTEL_ENABLED")
	setString(&cfg.Observability.OTelEndpoint, "GATHERLY_OTEL_ENDPOINT")
	setString(&cfg.Observability.OTelServiceName, "GATHERLY_OTEL_SERVICE_NAME")
	setString(&cfg.Observability.OTelServiceVersion, "GATHERLY_OTEL_SERVICE_VERSION")
	setBool(&cfg.Observability.OTelInsecure, "GATHERLY_OTEL_INSECURE")

	// Webhooks
	setBool(&cfg.Webhooks.Enabled, "GATHERLY_WEBHOOKS_ENABLED")
	setDuration(&cfg.Webhooks.DeliveryTimeout, "GATHERLY_WEBHOOK_DELIVERY_TIMEOUT")
	setInt(&cfg.Webhooks.MaxRetries, "GATHERLY_WEBHOOK_MAX_RETRIES")

	// Janitor
	setString(&cfg.Janitor.Schedule, "GATHERLY_JANITOR_SCHEDULE")
	setDuration(&cfg.Janitor.LockTTL, "GATHERLY_JANITOR_LOCK_TTL")
	setDuration(&cfg.Janitor.PurgeAge, "GATHERLY_JANITOR_PURGE_AGE")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.S3Bucket == "" {
		return fmt.Errorf("S3 bucket is required for media storage")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	if c.Webhooks.MaxRetries < 0 {
		return fmt.Errorf("webhook max retries must not be negative")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = strings.ToLower(value) == "true" || value == "1"
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			*dst = intVal
		}
	}
}

func setInt64(dst *int64, key string) {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			*dst = intVal
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			*dst = duration
		}
	}
}
