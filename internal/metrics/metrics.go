// Package metrics exposes prometheus instruments for the decomposition
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DecomposeTotal     *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	GenerationRetries  prometheus.Counter
	BreakerOpen        prometheus.Gauge
}

// New registers the instruments on reg. Tests pass their own registry to
// stay isolated from the default one.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DecomposeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskforge_decompose_total",
			Help: "Decomposition requests by result.",
		}, []string{"result"}),
		GenerationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskforge_generation_duration_seconds",
			Help:    "Wall time of external generation calls, retries included.",
			Buckets: prometheus.DefBuckets,
		}),
		GenerationRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskforge_generation_retries_total",
			Help: "Individual retried attempts against the generation endpoint.",
		}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taskforge_generation_breaker_open",
			Help: "1 while the generation circuit breaker is open.",
		}),
	}
}

func Default() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
