package dataset

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cols    []Column
		wantErr error
	}{
		{"empty", nil, nil},
		{"numeric", []Column{NumericColumn("a", 1, 2), NumericColumn("b", 3, 4)}, nil},
		{"duplicate", []Column{NumericColumn("a", 1), NumericColumn("a", 2)}, ErrDuplicateColumn},
		{"ragged", []Column{NumericColumn("a", 1, 2), NumericColumn("b", 3)}, ErrShape},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTable(tc.cols...)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestTable_CloneIsIndependent(t *testing.T) {
	t.Parallel()
	ts := time.Date(2021, 3, 15, 13, 45, 30, 0, time.UTC)
	tbl, err := NewTable(NumericColumn("x", 1, 2), DatetimeColumn("when", ts, ts))
	require.NoError(t, err)

	cp := tbl.Clone()
	require.NoError(t, cp.SetNumeric(1, []float64{0, 0}))
	require.NoError(t, cp.AppendNumeric("extra", []float64{7, 8}))
	cp.Columns()[0].Floats[0] = 99

	assert.Equal(t, Datetime, tbl.Column("when").Kind)
	assert.Equal(t, 1.0, tbl.Column("x").Floats[0])
	_, c := tbl.Dims()
	assert.Equal(t, 2, c)
	assert.Equal(t, []string{"x", "when", "extra"}, cp.Names())
	assert.Equal(t, 1, cp.Index("when"))
	assert.Equal(t, -1, cp.Index("missing"))
}

func TestTable_PutNumeric(t *testing.T) {
	t.Parallel()
	tbl, err := NewTable(NumericColumn("x", 1, 2), StringColumn("x_year", "a", "b"))
	require.NoError(t, err)

	require.NoError(t, tbl.PutNumeric("x_year", []float64{2020, 2021}))
	require.NoError(t, tbl.PutNumeric("x_month", []float64{1, 2}))

	assert.Equal(t, []string{"x", "x_year", "x_month"}, tbl.Names())
	assert.Equal(t, Numeric, tbl.Column("x_year").Kind)
	assert.Equal(t, []float64{2020, 2021}, tbl.Column("x_year").Floats)
	assert.ErrorIs(t, tbl.PutNumeric("x_day", []float64{1}), ErrShape)
}

func TestTable_Dense(t *testing.T) {
	t.Parallel()
	tbl, err := NewTable(NumericColumn("a", 1, 2), NumericColumn("b", 3, 4))
	require.NoError(t, err)

	m, err := tbl.Dense()
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, mat.NewDense(2, 2, []float64{1, 3, 2, 4})))

	withTime, err := NewTable(NumericColumn("a", 1), DatetimeColumn("t", time.Now()))
	require.NoError(t, err)
	_, err = withTime.Dense()
	assert.ErrorIs(t, err, ErrNotNumeric)

	empty, err := NewTable()
	require.NoError(t, err)
	_, err = empty.Dense()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestArray_Promote(t *testing.T) {
	t.Parallel()
	arr := NewArray(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}))

	tbl, err := arr.Promote([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5}, tbl.Column("b").Floats)
	for _, c := range tbl.Columns() {
		assert.Equal(t, Numeric, c.Kind)
	}

	_, err = arr.Promote([]string{"a"})
	assert.ErrorIs(t, err, ErrShape)
}

func TestAsTable(t *testing.T) {
	t.Parallel()
	tbl, err := NewTable(NumericColumn("a", 1))
	require.NoError(t, err)

	got, err := AsTable(tbl, nil)
	require.NoError(t, err)
	assert.Same(t, tbl, got)

	sp, err := NewSparse(1, 1, []int{0, 0}, nil, nil)
	require.NoError(t, err)
	_, err = AsTable(sp, []string{"a"})
	assert.True(t, errors.Is(err, ErrNotTabular))
}

func TestSparse(t *testing.T) {
	t.Parallel()
	// [[0 2 0]
	//  [1 0 3]]
	sp, err := NewSparse(2, 3, []int{0, 1, 3}, []int{1, 0, 2}, []float64{2, 1, 3})
	require.NoError(t, err)
	assert.Equal(t, 2.0, sp.At(0, 1))
	assert.Equal(t, 0.0, sp.At(0, 0))
	assert.Equal(t, 3.0, sp.At(1, 2))

	d, err := ToDense(sp)
	require.NoError(t, err)
	assert.True(t, mat.Equal(d, mat.NewDense(2, 3, []float64{0, 2, 0, 1, 0, 3})))

	_, err = NewSparse(2, 3, []int{0, 1}, nil, nil)
	assert.ErrorIs(t, err, ErrShape)
	_, err = NewSparse(1, 2, []int{0, 1}, []int{5}, []float64{1})
	assert.ErrorIs(t, err, ErrShape)
}

func TestNewSummary(t *testing.T) {
	t.Parallel()
	data := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	s, err := NewSummary(data, []float64{0.5, 0.5}, nil)
	require.NoError(t, err)
	r, c := s.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)

	_, err = NewSummary(data, []float64{1}, nil)
	assert.ErrorIs(t, err, ErrShape)
}

func TestCalendar(t *testing.T) {
	t.Parallel()
	ts := time.Date(2021, 3, 15, 13, 45, 30, 0, time.UTC)
	parts, err := Calendar(ts)
	require.NoError(t, err)
	assert.Equal(t, CalendarParts{Year: 2021, Month: 3, Day: 15, Hour: 13, Minute: 45, Second: 30}, parts)

	_, err = Calendar(time.Time{})
	assert.ErrorIs(t, err, ErrMissingTimestamp)

	assert.Equal(t, 0.0, EpochSeconds(time.Unix(0, 0)))
	assert.Equal(t, 1.5, EpochSeconds(time.Unix(1, 500_000_000)))
}
