// Package observability carries the operational plumbing: structured JSON
// logging, Prometheus metrics, health probes, OpenTelemetry export, and
// graceful shutdown.
//
// # Logging
//
// Loggers wrap log/slog and emit one JSON object per line. Fields chain:
//
//	logger := observability.NewLogger(observability.InfoLevel, nil)
//	logger.WithField("org_id", orgID).WithError(err).Error("membership update failed")
//
// # Metrics
//
// NewMetrics registers every collector on the given registry, so tests can
// use private registries without collisions:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.AuthzDecisionsTotal.WithLabelValues("org_manage", "deny").Inc()
//
// HTTPMetricsMiddleware records request counts, durations, and sizes for
// every route, and RegisterMetricsEndpoint exposes /metrics on the health
// listener.
//
// # Health probes
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(healthMux, checker)
//
// Liveness always answers 200. Readiness answers 503 when PostgreSQL is
// unreachable; a missing Redis only degrades the report, since the API
// runs without it.
//
// # Tracing
//
// InitOTel installs OTLP/gRPC trace and metric providers when enabled and
// returns them for shutdown:
//
//	providers, err := observability.InitOTel(ctx, otelCfg, logger)
//	...
//	observability.ShutdownOTel(ctx, providers, logger)
//
// # Shutdown
//
// ShutdownManager waits for SIGINT/SIGTERM, drains the HTTP server, then
// runs registered cleanup functions concurrently under one deadline.
package observability
