package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all application metrics. Constructed against an explicit
// registerer so tests can use isolated registries.
type Registry struct {
	// Security metrics
	SecurityEvents   *prometheus.CounterVec
	AlertsTriggered  *prometheus.CounterVec
	AlertsResolved   prometheus.Counter
	SecurityScore    prometheus.Gauge
	RateLimitDenials *prometheus.CounterVec

	// Cache metrics
	CacheHits              prometheus.Counter
	CacheMisses            prometheus.Counter
	CacheExpirations       prometheus.Counter
	CacheIntegrityFailures prometheus.Counter

	// Export metrics
	ExportsTotal   *prometheus.CounterVec
	ExportDuration *prometheus.HistogramVec
}

// NewRegistry registers all metrics with the given registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		SecurityEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "seoforge",
				Subsystem: "security",
				Name:      "events_total",
				Help:      "Total number of security events logged",
			},
			[]string{"kind", "severity"},
		),
		AlertsTriggered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "seoforge",
				Subsystem: "security",
				Name:      "alerts_triggered_total",
				Help:      "Total number of security alerts raised",
			},
			[]string{"type", "severity"},
		),
		AlertsResolved: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "seoforge",
				Subsystem: "security",
				Name:      "alerts_resolved_total",
				Help:      "Total number of security alerts resolved",
			},
		),
		SecurityScore: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "seoforge",
				Subsystem: "security",
				Name:      "score",
				Help:      "Current trailing-24h security score (0-100)",
			},
		),
		RateLimitDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "seoforge",
				Subsystem: "ratelimit",
				Name:      "denials_total",
				Help:      "Requests denied by the rate limiter",
			},
			[]string{"operation"},
		),
		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "seoforge",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Secure cache reads that returned a payload",
			},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "seoforge",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Secure cache reads that found no entry",
			},
		),
		CacheExpirations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "seoforge",
				Subsystem: "cache",
				Name:      "expirations_total",
				Help:      "Entries purged because their TTL had elapsed",
			},
		),
		CacheIntegrityFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "seoforge",
				Subsystem: "cache",
				Name:      "integrity_failures_total",
				Help:      "Entries purged because the integrity digest did not match",
			},
		),
		ExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "seoforge",
				Subsystem: "export",
				Name:      "total",
				Help:      "Export operations by format and status",
			},
			[]string{"format", "status"},
		),
		ExportDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "seoforge",
				Subsystem: "export",
				Name:      "duration_seconds",
				Help:      "Export duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"format"},
		),
	}
}
