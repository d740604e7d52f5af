package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Array is an unlabeled homogeneous numeric matrix.
type Array struct {
	*mat.Dense
}

// NewArray wraps m. m must not be nil.
func NewArray(m *mat.Dense) *Array { return &Array{Dense: m} }

func (a *Array) isDataset() {}

// Promote names the array's columns positionally and returns them as a table
// of numeric columns. The array is copied.
func (a *Array) Promote(names []string) (*Table, error) {
	r, c := a.Dims()
	if len(names) != c {
		return nil, fmt.Errorf("%w: %d feature names for %d columns", ErrShape, len(names), c)
	}
	cols := make([]Column, c)
	for j := 0; j < c; j++ {
		vals := make([]float64, r)
		mat.Col(vals, j, a.Dense)
		cols[j] = NumericColumn(names[j], vals...)
	}
	return NewTable(cols...)
}

// Sparse is a compressed sparse row matrix. Sparse data is treated as opaque
// and never carries timestamps.
type Sparse struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
}

// NewSparse builds a CSR matrix. indptr has rows+1 entries; indices and data
// hold the column index and value of each stored element.
func NewSparse(rows, cols int, indptr, indices []int, data []float64) (*Sparse, error) {
	if len(indptr) != rows+1 {
		return nil, fmt.Errorf("%w: indptr has %d entries for %d rows", ErrShape, len(indptr), rows)
	}
	if len(indices) != len(data) || indptr[rows] != len(data) {
		return nil, fmt.Errorf("%w: %d indices, %d values, indptr end %d", ErrShape, len(indices), len(data), indptr[rows])
	}
	for _, j := range indices {
		if j < 0 || j >= cols {
			return nil, fmt.Errorf("%w: column index %d out of range", ErrShape, j)
		}
	}
	return &Sparse{rows: rows, cols: cols, indptr: indptr, indices: indices, data: data}, nil
}

func (s *Sparse) isDataset() {}

// Dims implements mat.Matrix.
func (s *Sparse) Dims() (r, c int) { return s.rows, s.cols }

// At implements mat.Matrix.
func (s *Sparse) At(i, j int) float64 {
	if i < 0 || i >= s.rows || j < 0 || j >= s.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	for k := s.indptr[i]; k < s.indptr[i+1]; k++ {
		if s.indices[k] == j {
			return s.data[k]
		}
	}
	return 0
}

// T implements mat.Matrix.
func (s *Sparse) T() mat.Matrix { return mat.Transpose{Matrix: s} }

// Summary is a pre-summarized dense background set, e.g. cluster centroids with
// their weights. Summaries are always numeric.
type Summary struct {
	Data       *mat.Dense
	Weights    []float64
	GroupNames []string
}

// NewSummary validates that there is one weight per row.
func NewSummary(data *mat.Dense, weights []float64, groupNames []string) (*Summary, error) {
	r, c := data.Dims()
	if len(weights) != r {
		return nil, fmt.Errorf("%w: %d weights for %d rows", ErrShape, len(weights), r)
	}
	if groupNames != nil && len(groupNames) != c {
		return nil, fmt.Errorf("%w: %d group names for %d columns", ErrShape, len(groupNames), c)
	}
	return &Summary{Data: data, Weights: weights, GroupNames: groupNames}, nil
}

func (s *Summary) isDataset() {}

// Dims returns the dimensions of the summarized rows.
func (s *Summary) Dims() (r, c int) { return s.Data.Dims() }
