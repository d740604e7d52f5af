package ml

import (
	"context"
	"errors"
	"time"

	"gonum.org/v1/gonum/mat"
)

// MetricsInterface defines metrics methods needed by instrumented models
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLTimeoutsInc()
}

// Instrument reports every call on m to metrics. The result is a Classifier
// exactly when m is one.
func Instrument(m Model, metrics MetricsInterface) Model {
	base := &instrumented{inner: m, metrics: metrics}
	if c, ok := m.(Classifier); ok {
		return &instrumentedClassifier{instrumented: base, inner: c}
	}
	return base
}

type instrumented struct {
	inner   Model
	metrics MetricsInterface
}

func (m *instrumented) Predict(X *mat.Dense) ([]float64, error) {
	start := time.Now()
	out, err := m.inner.Predict(X)
	m.observe(start, err)
	return out, err
}

// score counts one prediction however many outputs the call returns.
func (m *instrumented) score(ctx context.Context, X *mat.Dense) ([]float64, *mat.Dense, error) {
	start := time.Now()
	pred, proba, err := Score(ctx, m.inner, X)
	m.observe(start, err)
	return pred, proba, err
}

func (m *instrumented) observe(start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	m.metrics.MLLatencyObserve(time.Since(start).Seconds())
	m.metrics.MLPredictionsInc()
	if err != nil {
		m.metrics.MLFailuresInc()
		if errors.Is(err, ErrTimeout) {
			m.metrics.MLTimeoutsInc()
		}
	}
}

type instrumentedClassifier struct {
	*instrumented
	inner Classifier
}

func (m *instrumentedClassifier) PredictProba(X *mat.Dense) (*mat.Dense, error) {
	start := time.Now()
	out, err := m.inner.PredictProba(X)
	m.observe(start, err)
	return out, err
}
