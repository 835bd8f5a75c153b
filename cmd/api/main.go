package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/seoforge/seoforge-backend/internal/api/rest"
	"github.com/seoforge/seoforge-backend/internal/infrastructure/cache"
	"github.com/seoforge/seoforge-backend/internal/infrastructure/config"
	"github.com/seoforge/seoforge-backend/internal/infrastructure/telemetry"
	"github.com/seoforge/seoforge-backend/internal/metrics"
	exportsvc "github.com/seoforge/seoforge-backend/internal/service/export"
	securitysvc "github.com/seoforge/seoforge-backend/internal/service/security"
)

const (
	exportOperation = "export"

	// janitorInterval paces stale-alert resolution and retention pruning.
	janitorInterval = 5 * time.Minute
)

func main() {
	var configPath = flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promReg := prometheus.NewRegistry()
	reg := metrics.NewRegistry(promReg)

	security, err := securitysvc.NewService(securitysvc.Config{
		AlertCooldown:    cfg.Security.AlertCooldown,
		AutoResolveAfter: cfg.Security.AutoResolveAfter,
		AlertRetention:   cfg.Security.AlertRetention,
	}, logger, reg, securitysvc.NewLogNotifier(logger))
	if err != nil {
		return err
	}
	security.StartJanitor(ctx, janitorInterval)

	store, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	secure, err := cache.NewSecureCache(store, cacheSecret(cfg, logger), cfg.Cache.DefaultTTL, logger, reg, security)
	if err != nil {
		return err
	}

	limiter := cache.NewRateLimiter(logger, reg, security)
	limiter.Configure(exportOperation, cfg.RateLimit.ExportLimit, cfg.RateLimit.ExportWindow)
	limiter.StartCleanup(ctx, cfg.RateLimit.CleanupPeriod)

	exports, err := exportsvc.NewManager(
		exportsvc.NewFileSink(cfg.Export.OutputDir),
		logger,
		reg,
		exportsvc.WithBatchDelay(cfg.Export.BatchDelay),
	)
	if err != nil {
		return err
	}

	server, err := rest.NewServer(&cfg.Server, logger, security, exports, secure, limiter, promReg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// cacheSecret returns the configured cache secret, substituting a fixed
// development secret when none is set. Production rejects the empty
// secret at config validation, so the fallback never reaches it.
func cacheSecret(cfg *config.Config, logger *zap.Logger) string {
	if cfg.Cache.Secret != "" {
		return cfg.Cache.Secret
	}
	logger.Warn("cache.secret not configured, using insecure development secret")
	return "seoforge-dev-secret"
}

// buildStore connects to Redis when a URL is configured, otherwise falls
// back to the in-memory store so development works without a broker.
func buildStore(cfg *config.Config, logger *zap.Logger) (cache.Store, error) {
	if cfg.Redis.URL == "" {
		logger.Warn("no redis url configured, using in-memory cache store")
		return cache.NewMemoryStore(), nil
	}
	return cache.NewRedisStore(&cfg.Redis, logger)
}
