package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/fleetgrid/fleetgrid/pkg/api"
	"github.com/fleetgrid/fleetgrid/pkg/audit"
	"github.com/fleetgrid/fleetgrid/pkg/auth"
	"github.com/fleetgrid/fleetgrid/pkg/authz"
	"github.com/fleetgrid/fleetgrid/pkg/config"
	"github.com/fleetgrid/fleetgrid/pkg/groups"
	"github.com/fleetgrid/fleetgrid/pkg/httputil"
	"github.com/fleetgrid/fleetgrid/pkg/middleware"
	"github.com/fleetgrid/fleetgrid/pkg/observability"
	"github.com/fleetgrid/fleetgrid/pkg/orgs"
	"github.com/fleetgrid/fleetgrid/pkg/platform"
)

const (
	authzCacheSize = 10000
	authzCacheTTL  = 30 * time.Second

	// Role grants and membership changes are tiny JSON objects; 1 MiB
	// leaves generous headroom.
	maxRequestBytes = 1 << 20
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := runMigrations(ctx, db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations applied")

	redisClient, err := openRedis(ctx, cfg.Redis, logger)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	auditLogger, err := audit.NewDBLogger(db, logger)
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}
	defer auditLogger.Close()

	cache := authz.NewCache(authzCacheSize, authzCacheTTL, redisClient)
	catalog, err := loadCatalog(logger)
	if err != nil {
		log.Fatalf("Failed to load permission catalog: %v", err)
	}

	tokenManager := auth.NewTokenManager(db, logger)
	userStore := auth.NewUserStore(db)
	platformSvc := platform.NewService(db, cache, auditLogger, logger)
	orgSvc := orgs.NewPostgresService(db, catalog, cache, auditLogger, logger)
	groupSvc := groups.NewService(db, cache)

	server := api.NewServer(api.Deps{
		Users:     userStore,
		Tokens:    tokenManager,
		Platform:  platformSvc,
		Orgs:      orgSvc,
		Groups:    groupSvc,
		Auth:      middleware.NewAuthMiddleware(tokenManager, auditLogger, false),
		Audit:     auditLogger,
		Metrics:   metrics,
		Logger:    logger,
		RateLimit: rateLimiter(cfg, redisClient, logger),
	})

	handler := buildHandler(server, cfg, metrics)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	cronRunner := cron.New()
	if _, err := audit.ScheduleCleanup(cronRunner, cfg.Audit.CleanupSchedule, auditLogger,
		audit.RetentionPolicy{RetentionDays: cfg.Audit.RetentionDays}, logger); err != nil {
		log.Fatalf("Failed to schedule audit cleanup: %v", err)
	}
	cronRunner.Start()

	go runTokenCleanup(ctx, tokenManager, cfg.Auth.TokenCleanupInterval, logger)

	g := new(errgroup.Group)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		stop() // ends the token cleanup loop
		<-cronRunner.Stop().Done()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		return observability.ShutdownOTel(shutdownCtx, otelProviders, logger)
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Graceful shutdown incomplete")
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	logger.Info("Shutdown complete")
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// runMigrations applies every scope's migrations. Auth runs first; the other
// tables reference users(id).
func runMigrations(ctx context.Context, db *sql.DB) error {
	for _, run := range []func(context.Context, *sql.DB) error{
		auth.RunMigrations,
		orgs.RunMigrations,
		platform.RunMigrations,
		groups.RunMigrations,
		audit.RunMigrations,
	} {
		if err := run(ctx, db); err != nil {
			return err
		}
	}
	return nil
}

// openRedis connects when a URL is configured. Redis is optional; without it
// the API uses in-memory rate limiting and caching.
func openRedis(ctx context.Context, cfg config.RedisConfig, logger *observability.Logger) (*redis.Client, error) {
	if cfg.URL == "" {
		logger.Info("Redis not configured, using in-memory rate limiting and caching")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.MaxRetries = cfg.MaxRetries
	opts.PoolSize = cfg.PoolSize

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// loadCatalog reads the permission catalog from FLEETGRID_PERMISSION_CATALOG
// when set, and falls back to the builtin catalog.
func loadCatalog(logger *observability.Logger) (*authz.Catalog, error) {
	path := os.Getenv("FLEETGRID_PERMISSION_CATALOG")
	if path == "" {
		return authz.DefaultCatalog(), nil
	}
	catalog, err := authz.LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	logger.WithField("path", path).Info("Loaded permission catalog")
	return catalog, nil
}

// rateLimiter picks Redis-backed limiting when Redis is available so limits
// hold across replicas, and falls back to in-memory buckets.
func rateLimiter(cfg *config.Config, redisClient *redis.Client, logger *observability.Logger) func(http.Handler) http.Handler {
	tiers := middleware.RateLimitTiers{
		Anonymous: cfg.Auth.RateLimitAnonymous,
		User:      cfg.Auth.RateLimitUser,
		Bot:       cfg.Auth.RateLimitBot,
	}
	if redisClient != nil {
		return middleware.NewDistributedRateLimitMiddlewareWithTiers(redisClient, tiers, logger).Handler
	}
	return middleware.NewRateLimitMiddlewareWithTiers(tiers).Handler
}

func buildHandler(server *api.Server, cfg *config.Config, metrics *observability.Metrics) http.Handler {
	var handler http.Handler = server
	handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware,
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(maxRequestBytes),
		observability.HTTPMetricsMiddleware(metrics),
	)(handler)
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "fleetgrid-api")
	}
	return handler
}

func runTokenCleanup(ctx context.Context, tm *auth.TokenManager, interval time.Duration, logger *observability.Logger) {
	defer observability.RecoverPanic(logger, "token cleanup loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tm.CleanupExpiredTokens(ctx)
			if err != nil {
				logger.WithError(err).Error("Expired token cleanup failed")
				continue
			}
			if n > 0 {
				logger.WithField("removed", n).Info("Expired tokens removed")
			}
		}
	}
}
