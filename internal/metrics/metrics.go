// Package metrics holds the Prometheus instrumentation for the client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the client pipeline.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	GuardRejections *prometheus.CounterVec
	CSRFRetries     prometheus.Counter
	CacheHits       prometheus.Counter
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "armor",
				Name:      "requests_total",
				Help:      "Total requests processed by the pipeline",
			},
			[]string{"method", "outcome"}, // outcome=ok or an error kind
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "armor",
				Name:      "request_duration_seconds",
				Help:      "End-to-end request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		GuardRejections: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "armor",
				Name:      "guard_rejections_total",
				Help:      "Requests rejected by a guard stage before dispatch",
			},
			[]string{"stage"}, // stage=api_key/size/rate_limit/sanitize
		),
		CSRFRetries: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "armor",
				Name:      "csrf_retries_total",
				Help:      "Automatic retries after a CSRF token rejection",
			},
		),
		CacheHits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "armor",
				Name:      "cache_hits_total",
				Help:      "GET requests served from the response cache",
			},
		),
	}
}
