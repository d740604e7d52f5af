package dataset

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ColumnKind is the element type of a table column.
type ColumnKind int

const (
	Numeric ColumnKind = iota
	Datetime
	String
)

func (k ColumnKind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Datetime:
		return "datetime"
	case String:
		return "string"
	default:
		return fmt.Sprintf("ColumnKind(%d)", int(k))
	}
}

// ParseColumnKind is the inverse of ColumnKind.String.
func ParseColumnKind(s string) (ColumnKind, error) {
	switch s {
	case "numeric":
		return Numeric, nil
	case "datetime":
		return Datetime, nil
	case "string":
		return String, nil
	default:
		return 0, fmt.Errorf("unknown column kind %q", s)
	}
}

// Column is a named, typed column. Exactly one of Floats, Times or Strings is
// populated according to Kind. A zero time.Time marks a missing timestamp.
type Column struct {
	Name    string
	Kind    ColumnKind
	Floats  []float64
	Times   []time.Time
	Strings []string
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	switch c.Kind {
	case Datetime:
		return len(c.Times)
	case String:
		return len(c.Strings)
	default:
		return len(c.Floats)
	}
}

func (c *Column) clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Floats != nil {
		out.Floats = append([]float64(nil), c.Floats...)
	}
	if c.Times != nil {
		out.Times = append([]time.Time(nil), c.Times...)
	}
	if c.Strings != nil {
		out.Strings = append([]string(nil), c.Strings...)
	}
	return out
}

// NumericColumn is a convenience constructor.
func NumericColumn(name string, values ...float64) Column {
	return Column{Name: name, Kind: Numeric, Floats: values}
}

// DatetimeColumn is a convenience constructor.
func DatetimeColumn(name string, values ...time.Time) Column {
	return Column{Name: name, Kind: Datetime, Times: values}
}

// StringColumn is a convenience constructor.
func StringColumn(name string, values ...string) Column {
	return Column{Name: name, Kind: String, Strings: values}
}

// Table is an ordered list of columns addressed by name or by position.
// Positions are stable: replacing a column keeps its slot.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewTable builds a table from cols. Names must be unique and all columns must
// have the same length.
func NewTable(cols ...Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i := range cols {
		c := cols[i]
		if i == 0 {
			t.rows = c.Len()
		}
		if err := t.add(&c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) add(c *Column) error {
	if _, ok := t.index[c.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
	}
	if c.Len() != t.rows {
		return fmt.Errorf("%w: column %q has %d rows, table has %d", ErrShape, c.Name, c.Len(), t.rows)
	}
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

func (t *Table) isDataset() {}

// Dims returns the number of rows and columns.
func (t *Table) Dims() (r, c int) { return t.rows, len(t.columns) }

// Names returns the column names in positional order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the column descriptors in positional order. The descriptors
// are shared with the table.
func (t *Table) Columns() []*Column { return t.columns }

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	if i, ok := t.index[name]; ok {
		return t.columns[i]
	}
	return nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		columns: make([]*Column, len(t.columns)),
		index:   make(map[string]int, len(t.index)),
		rows:    t.rows,
	}
	for i, c := range t.columns {
		out.columns[i] = c.clone()
		out.index[c.Name] = i
	}
	return out
}

// SetNumeric replaces the column at position idx with numeric values, keeping
// its name and position.
func (t *Table) SetNumeric(idx int, values []float64) error {
	if idx < 0 || idx >= len(t.columns) {
		return fmt.Errorf("%w: column index %d out of range", ErrShape, idx)
	}
	if len(values) != t.rows {
		return fmt.Errorf("%w: %d values for %d rows", ErrShape, len(values), t.rows)
	}
	t.columns[idx] = &Column{Name: t.columns[idx].Name, Kind: Numeric, Floats: values}
	return nil
}

// AppendNumeric adds a numeric column after all existing columns.
func (t *Table) AppendNumeric(name string, values []float64) error {
	if len(t.columns) == 0 {
		t.rows = len(values)
	}
	return t.add(&Column{Name: name, Kind: Numeric, Floats: values})
}

// PutNumeric overwrites the column called name in place, or appends it when
// the table has no such column.
func (t *Table) PutNumeric(name string, values []float64) error {
	if i, ok := t.index[name]; ok {
		return t.SetNumeric(i, values)
	}
	return t.AppendNumeric(name, values)
}

// Dense returns the table's values as a row-major numeric matrix. Every column
// must be numeric.
func (t *Table) Dense() (*mat.Dense, error) {
	r, c := t.Dims()
	if r == 0 || c == 0 {
		return nil, ErrEmpty
	}
	data := make([]float64, r*c)
	for j, col := range t.columns {
		if col.Kind != Numeric {
			return nil, fmt.Errorf("%w: %q is %s", ErrNotNumeric, col.Name, col.Kind)
		}
		for i, v := range col.Floats {
			data[i*c+j] = v
		}
	}
	return mat.NewDense(r, c, data), nil
}
