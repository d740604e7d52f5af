package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCounter is the counter interface handed to other packages.
type MetricsCounter interface {
	Inc()
}

// MetricsWrapper adapts Metrics to the tracker interfaces of the features and
// ml packages.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) FeatureErrorsInc() { w.m.FeatureErrors.Inc() }

func (w *MetricsWrapper) FeatureCalcDuration(d time.Duration) {
	w.m.FeatureTransforms.Inc()
	w.m.FeatureCalcDuration.Observe(d.Seconds())
}

func (w *MetricsWrapper) FeatureSampleCount(n int) { w.m.FeatureRows.Add(float64(n)) }

func (w *MetricsWrapper) MLPredictionsInc() { w.m.MLPredictions.Inc() }

func (w *MetricsWrapper) MLFailuresInc() { w.m.MLFailures.Inc() }

func (w *MetricsWrapper) MLLatencyObserve(v float64) { w.m.MLLatency.Observe(v) }

func (w *MetricsWrapper) MLTimeoutsInc() { w.m.MLTimeouts.Inc() }

// Requests returns the request counter for endpoint and status code.
func (w *MetricsWrapper) Requests(endpoint string, code int) MetricsCounter {
	return &CounterWrapper{w.m.Requests.WithLabelValues(endpoint, strconv.Itoa(code))}
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}
