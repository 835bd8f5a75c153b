package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seoforge/seoforge-backend/internal/infrastructure/cache"
	"github.com/seoforge/seoforge-backend/internal/infrastructure/config"
	exportsvc "github.com/seoforge/seoforge-backend/internal/service/export"
	securitysvc "github.com/seoforge/seoforge-backend/internal/service/security"
)

// exportOperation is the rate-limited operation ID for export endpoints.
const exportOperation = "export"

// Server wires the HTTP surface over the core services.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger

	security *securitysvc.Service
	exports  *exportsvc.Manager
	secure   *cache.SecureCache
	limiter  *cache.RateLimiter
}

// NewServer builds the HTTP server and its routes.
func NewServer(
	cfg *config.ServerConfig,
	logger *zap.Logger,
	security *securitysvc.Service,
	exports *exportsvc.Manager,
	secure *cache.SecureCache,
	limiter *cache.RateLimiter,
	gatherer prometheus.Gatherer,
) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	s := &Server{
		logger:   logger,
		security: security,
		exports:  exports,
		secure:   secure,
		limiter:  limiter,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/v1/security/metrics", s.handleSecurityMetrics)
	mux.HandleFunc("GET /api/v1/security/alerts", s.handleListAlerts)
	mux.HandleFunc("POST /api/v1/security/alerts/{id}/resolve", s.handleResolveAlert)
	mux.HandleFunc("GET /api/v1/security/report", s.handleSecurityReport)

	mux.HandleFunc("POST /api/v1/exports", s.handleExport)
	mux.HandleFunc("POST /api/v1/exports/batch", s.handleBatchExport)

	mux.HandleFunc("PUT /api/v1/cache/{key}", s.handleCachePut)
	mux.HandleFunc("GET /api/v1/cache/{key}", s.handleCacheGet)
	mux.HandleFunc("DELETE /api/v1/cache/{key}", s.handleCacheDelete)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withLogging(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start blocks serving HTTP until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the full middleware-wrapped handler; used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withLogging logs each request with latency and status.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("latency", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
