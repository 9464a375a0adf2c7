// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	FLEETGRID_HOST="0.0.0.0"
//	FLEETGRID_PORT="8080"
//	FLEETGRID_HEALTH_PORT="9090"
//	FLEETGRID_READ_TIMEOUT="15s"
//	FLEETGRID_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	FLEETGRID_POSTGRES_URL="postgres://localhost/fleetgrid"
//	FLEETGRID_POSTGRES_MAX_CONNS="25"
//	FLEETGRID_POSTGRES_IDLE_CONNS="5"
//	FLEETGRID_POSTGRES_CONN_LIFETIME="5m"
//
// Redis settings (optional, used for distributed rate limiting):
//
//	FLEETGRID_REDIS_URL="redis://localhost:6379"
//	FLEETGRID_REDIS_POOL_SIZE="10"
//
// Auth settings:
//
//	FLEETGRID_TOKEN_CLEANUP_INTERVAL="1h"
//	FLEETGRID_RATE_LIMIT_ANONYMOUS="100"
//	FLEETGRID_RATE_LIMIT_USER="1000"
//	FLEETGRID_RATE_LIMIT_BOT="5000"
//
// Audit settings:
//
//	FLEETGRID_AUDIT_RETENTION_DAYS="90"
//	FLEETGRID_AUDIT_CLEANUP_SCHEDULE="0 3 * * *"
//
// Observability settings:
//
//	FLEETGRID_LOG_LEVEL="info"  # debug, info, warn, error
//	FLEETGRID_METRICS_ENABLED="true"
//	FLEETGRID_OTEL_ENABLED="true"
//	FLEETGRID_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %v\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/observability: Uses observability configuration
//   - pkg/middleware: Uses rate limit configuration
package config
