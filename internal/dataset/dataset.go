// Package dataset defines the tabular values that flow through the featurizers
// and model wrappers. A Dataset is one of four variants chosen by the caller:
// a labeled Table, an unlabeled numeric Array, an opaque Sparse matrix or a
// pre-summarized dense Summary. Only tables can carry timestamps.
package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotNumeric       = errors.New("dataset: column is not numeric")
	ErrEmpty            = errors.New("dataset: no rows or columns")
	ErrShape            = errors.New("dataset: shape mismatch")
	ErrNotTabular       = errors.New("dataset: variant cannot be viewed as a table")
	ErrDuplicateColumn  = errors.New("dataset: duplicate column name")
	ErrMissingTimestamp = errors.New("dataset: missing timestamp")
)

// Dataset is implemented by *Table, *Array, *Sparse and *Summary only.
type Dataset interface {
	// Dims returns the number of rows and columns.
	Dims() (r, c int)
	isDataset()
}

// AsTable materializes ds as a labeled table. Arrays are promoted using names
// positionally; tables are returned as-is.
func AsTable(ds Dataset, names []string) (*Table, error) {
	switch d := ds.(type) {
	case *Table:
		return d, nil
	case *Array:
		return d.Promote(names)
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotTabular, ds)
	}
}

// ToDense returns the numeric values of ds. The result may share storage with ds.
func ToDense(ds Dataset) (*mat.Dense, error) {
	switch d := ds.(type) {
	case *Table:
		return d.Dense()
	case *Array:
		return d.Dense, nil
	case *Sparse:
		r, c := d.Dims()
		if r == 0 || c == 0 {
			return nil, ErrEmpty
		}
		return mat.DenseCopyOf(d), nil
	case *Summary:
		return d.Data, nil
	case nil:
		return nil, ErrEmpty
	default:
		return nil, fmt.Errorf("dataset: unsupported variant %T", ds)
	}
}
