package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fleetgrid/fleetgrid/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Auth configuration
	Auth AuthConfig

	// Audit configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration. Redis is optional: when URL is
// empty the API falls back to in-memory rate limiting and caching.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// AuthConfig holds token and rate limit configuration
type AuthConfig struct {
	// TokenCleanupInterval controls how often expired tokens are purged.
	TokenCleanupInterval time.Duration

	// Rate limits, requests per minute
	RateLimitAnonymous int
	RateLimitUser      int
	RateLimitBot       int
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	// RetentionDays is how long audit events are kept before cleanup.
	RetentionDays int

	// CleanupSchedule is a cron expression for the retention job.
	CleanupSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("FLEETGRID_HOST", "0.0.0.0"),
		Port:            getEnv("FLEETGRID_PORT", "8080"),
		ReadTimeout:     getEnvDuration("FLEETGRID_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("FLEETGRID_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("FLEETGRID_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("FLEETGRID_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("FLEETGRID_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads PostgreSQL configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("FLEETGRID_POSTGRES_URL", ""),
		MaxOpenConns:    getEnvInt("FLEETGRID_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("FLEETGRID_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("FLEETGRID_POSTGRES_CONN_LIFETIME", 5*time.Minute),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("FLEETGRID_REDIS_URL", ""),
		Password:   getEnv("FLEETGRID_REDIS_PASSWORD", ""),
		DB:         getEnvInt("FLEETGRID_REDIS_DB", 0),
		MaxRetries: getEnvInt("FLEETGRID_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("FLEETGRID_REDIS_POOL_SIZE", 10),
	}
}

// loadAuthConfig loads auth configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		TokenCleanupInterval: getEnvDuration("FLEETGRID_TOKEN_CLEANUP_INTERVAL", 1*time.Hour),
		RateLimitAnonymous:   getEnvInt("FLEETGRID_RATE_LIMIT_ANONYMOUS", 100),
		RateLimitUser:        getEnvInt("FLEETGRID_RATE_LIMIT_USER", 1000),
		RateLimitBot:         getEnvInt("FLEETGRID_RATE_LIMIT_BOT", 5000),
	}
}

// loadAuditConfig loads audit configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		RetentionDays:   getEnvInt("FLEETGRID_AUDIT_RETENTION_DAYS", 90),
		CleanupSchedule: getEnv("FLEETGRID_AUDIT_CLEANUP_SCHEDULE", "0 3 * * *"),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	cfg := ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("FLEETGRID_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("FLEETGRID_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("FLEETGRID_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("FLEETGRID_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("FLEETGRID_OTEL_SERVICE_NAME", "fleetgrid-api"),
		OTelServiceVersion: getEnv("FLEETGRID_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("FLEETGRID_OTEL_INSECURE", true),
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("postgres max connections must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("postgres idle connections cannot exceed max connections")
	}

	// Validate auth config
	if c.Auth.RateLimitAnonymous <= 0 || c.Auth.RateLimitUser <= 0 || c.Auth.RateLimitBot <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	// Validate audit config
	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention days must be positive")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
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

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
