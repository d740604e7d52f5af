package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// distributionTolerance is how far a row sum may drift from 1 and still be
// read as probabilities.
const distributionTolerance = 1e-4

// sigmoid converts a score to a probability
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// probabilities turns raw network outputs into class probabilities. A single
// output column is the positive class; values outside [0, 1] are logits. With
// several columns, rows that already form distributions pass through and
// anything else goes through softmax.
func probabilities(out *mat.Dense) (*mat.Dense, error) {
	r, c := out.Dims()
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrBadOutput)
	}

	if c == 1 {
		logits := !isUnitInterval(out)
		proba := mat.NewDense(r, 2, nil)
		for i := 0; i < r; i++ {
			p := out.At(i, 0)
			if logits {
				p = sigmoid(p)
			}
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
		}
		return proba, nil
	}

	if isUnitInterval(out) && rowsSumToOne(out) {
		return mat.DenseCopyOf(out), nil
	}

	proba := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		softmax(proba.RawRowView(i), out.RawRowView(i))
	}
	return proba, nil
}

func isUnitInterval(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v < 0 || v > 1 || math.IsNaN(v) {
				return false
			}
		}
	}
	return true
}

func rowsSumToOne(m *mat.Dense) bool {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		var sum float64
		for _, v := range m.RawRowView(i) {
			sum += v
		}
		if math.Abs(sum-1) > distributionTolerance {
			return false
		}
	}
	return true
}

// softmax writes the softmax of src into dst, shifted by the row maximum for
// numerical stability.
func softmax(dst, src []float64) {
	maxV := math.Inf(-1)
	for _, v := range src {
		maxV = math.Max(maxV, v)
	}
	var sum float64
	for j, v := range src {
		dst[j] = math.Exp(v - maxV)
		sum += dst[j]
	}
	for j := range dst {
		dst[j] /= sum
	}
}

// argmax returns the index of the largest value of every row; ties go to the
// lowest index.
func argmax(m *mat.Dense) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		out[i] = float64(best)
	}
	return out
}

func firstColumn(m *mat.Dense) ([]float64, error) {
	if _, c := m.Dims(); c < 1 {
		return nil, fmt.Errorf("%w: no output columns", ErrBadOutput)
	}
	return mat.Col(nil, 0, m), nil
}
