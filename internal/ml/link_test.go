package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestProbabilities(t *testing.T) {
	t.Parallel()

	t.Run("unit column is the positive class", func(t *testing.T) {
		p, err := probabilities(mat.NewDense(2, 1, []float64{0.25, 1}))
		require.NoError(t, err)
		assert.Equal(t, []float64{0.75, 0.25}, p.RawRowView(0))
		assert.Equal(t, []float64{0, 1}, p.RawRowView(1))
	})

	t.Run("distributions pass through", func(t *testing.T) {
		in := mat.NewDense(1, 3, []float64{0.2, 0.3, 0.5})
		p, err := probabilities(in)
		require.NoError(t, err)
		assert.True(t, mat.Equal(in, p))
		p.Set(0, 0, 9)
		assert.Equal(t, 0.2, in.At(0, 0), "result must not alias the input")
	})

	t.Run("logits are normalized", func(t *testing.T) {
		p, err := probabilities(mat.NewDense(1, 2, []float64{1000, 1000}))
		require.NoError(t, err)
		assert.InDelta(t, 0.5, p.At(0, 0), 1e-12)
		assert.InDelta(t, 0.5, p.At(0, 1), 1e-12)
	})
}

func TestArgmax_TiesGoToLowestIndex(t *testing.T) {
	t.Parallel()
	m := mat.NewDense(2, 3, []float64{
		0.4, 0.4, 0.2,
		0.1, 0.2, 0.7,
	})
	assert.Equal(t, []float64{0, 2}, argmax(m))
}
