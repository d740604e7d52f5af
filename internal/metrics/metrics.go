// Package metrics provides Prometheus metrics collection for the featurizer and
// the wrapped models. Metrics are exposed via the Prometheus endpoint of the
// serve command.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Feature engineering metrics
	FeatureTransforms   prometheus.Counter   // Total number of featurizer transforms
	FeatureErrors       prometheus.Counter   // Total number of fit/transform failures
	FeatureCalcDuration prometheus.Histogram // Duration of featurizer transforms
	FeatureRows         prometheus.Counter   // Total number of rows featurized

	// ML and prediction metrics
	MLPredictions prometheus.Counter   // Total number of predict calls
	MLFailures    prometheus.Counter   // Total number of failed predict calls
	MLLatency     prometheus.Histogram // Prediction latency in seconds
	MLTimeouts    prometheus.Counter   // Total number of backend timeouts

	// Server metrics
	Requests *prometheus.CounterVec // HTTP requests by endpoint and status code
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics on a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		FeatureTransforms: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_transforms_total",
			Help: "Total number of featurizer transforms",
		}),
		FeatureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_errors_total",
			Help: "Total number of feature calculation errors",
		}),
		FeatureCalcDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "feature_calc_duration_seconds",
			Help:    "Duration of featurizer transforms in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		FeatureRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_rows_total",
			Help: "Total number of rows featurized",
		}),
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of ML predictions made",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of ML prediction failures",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "ML prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		MLTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_timeouts_total",
			Help: "Total number of ML prediction timeouts",
		}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status code",
		}, []string{"endpoint", "code"}),
	}
}
