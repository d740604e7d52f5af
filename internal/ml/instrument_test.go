package ml

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type failingModel struct{ err error }

func (f failingModel) Predict(*mat.Dense) ([]float64, error) { return nil, f.err }

func TestInstrument_CountsPredictions(t *testing.T) {
	t.Parallel()
	metrics := &MockMetrics{}
	m := Instrument(&sumEstimator{}, metrics)

	_, isClassifier := m.(Classifier)
	assert.False(t, isClassifier)

	_, err := m.Predict(features3x2())
	require.NoError(t, err)
	_, err = m.Predict(features3x2())
	require.NoError(t, err)

	assert.Equal(t, 2, metrics.predictions)
	assert.Zero(t, metrics.failures)
	assert.GreaterOrEqual(t, metrics.latencySum, 0.0)
}

func TestInstrument_PreservesClassifier(t *testing.T) {
	t.Parallel()
	metrics := &MockMetrics{}
	wrapped, err := WrapModel(thresholdClassifier{}, nil, TaskAuto)
	require.NoError(t, err)

	m := Instrument(wrapped, metrics)
	c, ok := m.(Classifier)
	require.True(t, ok)
	assert.Equal(t, TaskClassification, TaskOf(m))

	_, err = c.PredictProba(features3x2())
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.predictions)
}

func TestInstrument_Failures(t *testing.T) {
	t.Parallel()
	metrics := &MockMetrics{}

	_, err := Instrument(failingModel{err: errors.New("broken")}, metrics).Predict(features3x2())
	require.Error(t, err)
	_, err = Instrument(failingModel{err: fmt.Errorf("%w after 1s", ErrTimeout)}, metrics).Predict(features3x2())
	require.ErrorIs(t, err, ErrTimeout)

	assert.Equal(t, 2, metrics.predictions)
	assert.Equal(t, 2, metrics.failures)
	assert.Equal(t, 1, metrics.timeouts)
}

func TestInstrument_NilMetrics(t *testing.T) {
	t.Parallel()
	pred, err := Instrument(&sumEstimator{}, nil).Predict(features3x2())
	require.NoError(t, err)
	assert.Len(t, pred, 3)
}
