// Package features holds fit/transform feature engineering steps over datasets.
package features

import (
	"fmt"
	"math"
	"time"

	"ml-wrappers/internal/dataset"

	"github.com/rs/zerolog/log"
)

// Suffixes of the calendar columns derived from each timestamp column, in
// the order they are appended.
var CalendarSuffixes = []string{"_year", "_month", "_day", "_hour", "_minute", "_second"}

// MetricsTracker receives feature calculation telemetry.
type MetricsTracker interface {
	FeatureErrorsInc()
	FeatureCalcDuration(time.Duration)
	FeatureSampleCount(int)
}

// TimestampFeaturizer converts datetime columns to numeric features. Fit
// records which columns are datetimes and the minimum epoch seconds of each;
// Transform replaces every such column with its offset from that minimum and
// appends six calendar component columns per time column.
//
// A featurizer is meant for one caller at a time: Fit, then Transform.
type TimestampFeaturizer struct {
	features     []string
	timeColumns  []string
	minPerColumn []float64
	metrics      MetricsTracker
}

// NewTimestampFeaturizer creates a featurizer. features names the columns of
// unlabeled arrays passed to Fit and Transform.
func NewTimestampFeaturizer(features []string) *TimestampFeaturizer {
	return NewTimestampFeaturizerWithMetrics(features, nil)
}

// NewTimestampFeaturizerWithMetrics is NewTimestampFeaturizer reporting errors,
// durations and sample counts to metrics, which may be nil.
func NewTimestampFeaturizerWithMetrics(features []string, metrics MetricsTracker) *TimestampFeaturizer {
	return &TimestampFeaturizer{
		features: append([]string(nil), features...),
		metrics:  metrics,
	}
}

// TimeColumns returns the datetime columns found by the last Fit.
func (f *TimestampFeaturizer) TimeColumns() []string {
	return append([]string(nil), f.timeColumns...)
}

// Minimums returns the fit-time minimum epoch seconds, aligned with TimeColumns.
func (f *TimestampFeaturizer) Minimums() []float64 {
	return append([]float64(nil), f.minPerColumn...)
}

// Fit learns the time columns of ds and their minimum timestamps, replacing
// any state from a previous Fit. Sparse and summarized data never hold
// timestamps, so fitting on them leaves no time columns.
func (f *TimestampFeaturizer) Fit(ds dataset.Dataset) error {
	f.timeColumns = nil
	f.minPerColumn = nil

	switch ds.(type) {
	case *dataset.Sparse, *dataset.Summary:
		return nil
	}

	table, err := dataset.AsTable(ds, f.features)
	if err != nil {
		f.errorInc()
		return fmt.Errorf("fit timestamp featurizer: %w", err)
	}

	for _, col := range table.Columns() {
		if col.Kind != dataset.Datetime {
			continue
		}
		f.timeColumns = append(f.timeColumns, col.Name)
		f.minPerColumn = append(f.minPerColumn, minEpochSeconds(col.Times))
	}

	log.Debug().
		Strs("time_columns", f.timeColumns).
		Floats64("min_epoch_seconds", f.minPerColumn).
		Msg("Fitted timestamp featurizer")
	return nil
}

// minEpochSeconds skips missing timestamps; a column with none present yields NaN.
func minEpochSeconds(times []time.Time) float64 {
	m := math.NaN()
	for _, t := range times {
		if t.IsZero() {
			continue
		}
		if s := dataset.EpochSeconds(t); math.IsNaN(m) || s < m {
			m = s
		}
	}
	return m
}

// Transform returns ds unchanged when no time columns were fitted. Otherwise it
// featurizes a copy of ds and returns the values as a plain numeric array whose
// columns are OutputNames(original names). Offsets below the fitted minimum
// are negative and are not clamped.
func (f *TimestampFeaturizer) Transform(ds dataset.Dataset) (dataset.Dataset, error) {
	if len(f.timeColumns) == 0 {
		return ds, nil
	}

	start := time.Now()
	defer func() {
		if f.metrics != nil {
			f.metrics.FeatureCalcDuration(time.Since(start))
		}
	}()

	table, err := dataset.AsTable(ds, f.features)
	if err != nil {
		f.errorInc()
		return nil, fmt.Errorf("transform timestamps: %w", err)
	}
	table = table.Clone()

	for idx, name := range f.timeColumns {
		if err := f.featurizeColumn(table, idx, name); err != nil {
			f.errorInc()
			return nil, fmt.Errorf("transform timestamps: %w", err)
		}
	}

	values, err := table.Dense()
	if err != nil {
		f.errorInc()
		return nil, fmt.Errorf("transform timestamps: %w", err)
	}
	if f.metrics != nil {
		rows, _ := table.Dims()
		f.metrics.FeatureSampleCount(rows)
	}
	return dataset.NewArray(values), nil
}

func (f *TimestampFeaturizer) featurizeColumn(table *dataset.Table, idx int, name string) error {
	pos := table.Index(name)
	if pos < 0 {
		return fmt.Errorf("time column %q not found", name)
	}
	col := table.Columns()[pos]
	if col.Kind != dataset.Datetime {
		return fmt.Errorf("time column %q is %s: %w", name, col.Kind, dataset.ErrNotNumeric)
	}

	n := len(col.Times)
	parts := make([][]float64, len(CalendarSuffixes))
	for i := range parts {
		parts[i] = make([]float64, n)
	}
	offsets := make([]float64, n)
	below := 0

	for row, t := range col.Times {
		c, err := dataset.Calendar(t)
		if err != nil {
			return fmt.Errorf("column %q row %d: %w", name, row, err)
		}
		parts[0][row] = float64(c.Year)
		parts[1][row] = float64(c.Month)
		parts[2][row] = float64(c.Day)
		parts[3][row] = float64(c.Hour)
		parts[4][row] = float64(c.Minute)
		parts[5][row] = float64(c.Second)
		offsets[row] = dataset.EpochSeconds(t) - f.minPerColumn[idx]
		if offsets[row] < 0 {
			below++
		}
	}
	if below > 0 {
		log.Warn().
			Str("column", name).
			Int("rows", below).
			Msg("Timestamps precede the fitted minimum; offsets are negative")
	}

	// A column already carrying a calendar name is overwritten where it stands.
	for i, suffix := range CalendarSuffixes {
		if err := table.PutNumeric(name+suffix, parts[i]); err != nil {
			return err
		}
	}
	// The offset keeps the original slot so untouched columns stay in place.
	return table.SetNumeric(pos, offsets)
}

// FitTransform fits on ds and transforms it.
func (f *TimestampFeaturizer) FitTransform(ds dataset.Dataset) (dataset.Dataset, error) {
	if err := f.Fit(ds); err != nil {
		return nil, err
	}
	return f.Transform(ds)
}

// OutputNames labels the columns Transform produces for an input with the given
// column names. Calendar names already present in input keep their position.
func (f *TimestampFeaturizer) OutputNames(input []string) []string {
	out := append([]string(nil), input...)
	seen := make(map[string]bool, len(input))
	for _, name := range input {
		seen[name] = true
	}
	for _, name := range f.timeColumns {
		for _, suffix := range CalendarSuffixes {
			if !seen[name+suffix] {
				seen[name+suffix] = true
				out = append(out, name+suffix)
			}
		}
	}
	return out
}

func (f *TimestampFeaturizer) errorInc() {
	if f.metrics != nil {
		f.metrics.FeatureErrorsInc()
	}
}
