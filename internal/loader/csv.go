// Package loader reads and writes tabular datasets as CSV.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"ml-wrappers/internal/dataset"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// DefaultLayouts are tried in order when detecting datetime cells.
var DefaultLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Options controls type detection.
type Options struct {
	// Layouts are the accepted timestamp layouts; DefaultLayouts when empty.
	Layouts []string
}

func (o Options) layouts() []string {
	if len(o.Layouts) == 0 {
		return DefaultLayouts
	}
	return o.Layouts
}

// LoadCSV reads the CSV file at path.
func LoadCSV(path string, opts Options) (*dataset.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	table, err := ReadCSV(file, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ReadCSV reads a header row followed by data rows.
func ReadCSV(r io.Reader, opts Options) (*dataset.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", len(records)+1, err)
		}
		records = append(records, record)
	}

	return ParseRecords(header, records, opts)
}

// ParseRecords types each column of records. A column whose non-empty cells all
// parse as floats is numeric, one whose non-empty cells all parse with a layout
// is a datetime column, anything else is a string column.
func ParseRecords(header []string, records [][]string, opts Options) (*dataset.Table, error) {
	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", dataset.ErrShape, i+1, len(rec), len(header))
		}
	}

	cols := make([]dataset.Column, len(header))
	for j, name := range header {
		cells := make([]string, len(records))
		for i, rec := range records {
			cells[i] = strings.TrimSpace(rec[j])
		}
		cols[j] = parseColumn(strings.TrimSpace(name), cells, opts.layouts())
	}

	table, err := dataset.NewTable(cols...)
	if err != nil {
		return nil, err
	}

	rows, _ := table.Dims()
	log.Debug().Int("rows", rows).Strs("columns", table.Names()).Msg("Parsed records")
	return table, nil
}

func parseColumn(name string, cells []string, layouts []string) dataset.Column {
	if floats, ok := parseFloats(cells); ok {
		return dataset.NumericColumn(name, floats...)
	}
	if times, ok := parseTimes(cells, layouts); ok {
		return dataset.DatetimeColumn(name, times...)
	}
	return dataset.StringColumn(name, cells...)
}

func parseFloats(cells []string) ([]float64, bool) {
	out := make([]float64, len(cells))
	for i, s := range cells {
		if s == "" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// parseTimes requires at least one present value; an all-empty column is numeric.
func parseTimes(cells []string, layouts []string) ([]time.Time, bool) {
	out := make([]time.Time, len(cells))
	present := 0
	for i, s := range cells {
		if s == "" {
			continue
		}
		t, ok := parseTime(s, layouts)
		if !ok {
			return nil, false
		}
		out[i] = t
		present++
	}
	return out, present > 0
}

func parseTime(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// WriteCSV writes header followed by the rows of m.
func WriteCSV(w io.Writer, header []string, m mat.Matrix) error {
	rows, cols := m.Dims()
	if len(header) != cols {
		return fmt.Errorf("%w: %d header names for %d columns", dataset.ErrShape, len(header), cols)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Split deterministically partitions the rows of t into train and test tables.
// testFraction must be in [0, 1).
func Split(t *dataset.Table, testFraction float64, seed int64) (train, test *dataset.Table, err error) {
	if testFraction < 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in [0, 1), got %f", testFraction)
	}
	rows, _ := t.Dims()
	perm := rand.New(rand.NewSource(seed)).Perm(rows)
	nTest := int(math.Round(float64(rows) * testFraction))

	if test, err = selectRows(t, perm[:nTest]); err != nil {
		return nil, nil, err
	}
	if train, err = selectRows(t, perm[nTest:]); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func selectRows(t *dataset.Table, idx []int) (*dataset.Table, error) {
	cols := make([]dataset.Column, 0, len(t.Columns()))
	for _, c := range t.Columns() {
		out := dataset.Column{Name: c.Name, Kind: c.Kind}
		for _, i := range idx {
			switch c.Kind {
			case dataset.Datetime:
				out.Times = append(out.Times, c.Times[i])
			case dataset.String:
				out.Strings = append(out.Strings, c.Strings[i])
			default:
				out.Floats = append(out.Floats, c.Floats[i])
			}
		}
		cols = append(cols, out)
	}
	return dataset.NewTable(cols...)
}
