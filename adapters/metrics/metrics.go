// Package metrics provides Prometheus metrics collection for TokenGate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for TokenGate.
type Collector struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Access check metrics
	ChecksTotal   *prometheus.CounterVec
	CheckDuration prometheus.Histogram

	// Rate cache metrics
	RateCacheHits   prometheus.Counter
	RateCacheMisses prometheus.Counter

	// Upstream fetch metrics
	PricingFetches  *prometheus.CounterVec
	CurrencyFetches *prometheus.CounterVec

	// Snapshot persistence metrics
	SnapshotsPersisted prometheus.Counter
	PersistFailures    prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tokengate",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tokengate",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tokengate",
				Name:      "checks_total",
				Help:      "Total number of subscription access checks",
			},
			[]string{"outcome", "reason"},
		),
		CheckDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "tokengate",
				Name:      "check_duration_seconds",
				Help:      "Access check duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		RateCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tokengate",
				Name:      "rate_cache_hits_total",
				Help:      "Total number of price table cache hits",
			},
		),
		RateCacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tokengate",
				Name:      "rate_cache_misses_total",
				Help:      "Total number of price table cache misses",
			},
		),
		PricingFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tokengate",
				Name:      "pricing_fetches_total",
				Help:      "Total number of upstream price table fetches",
			},
			[]string{"status"},
		),
		CurrencyFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tokengate",
				Name:      "currency_fetches_total",
				Help:      "Total number of upstream currency rate fetches",
			},
			[]string{"status"},
		),
		SnapshotsPersisted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tokengate",
				Name:      "snapshots_persisted_total",
				Help:      "Total number of usage snapshots written",
			},
		),
		PersistFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tokengate",
				Name:      "persist_failures_total",
				Help:      "Total number of failed snapshot writes",
			},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tokengate",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tokengate",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tokengate",
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}
