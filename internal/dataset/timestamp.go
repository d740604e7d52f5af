package dataset

import "time"

// EpochSeconds returns t as fractional seconds since the Unix epoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// CalendarParts holds the calendar components of a timestamp in its own location.
type CalendarParts struct {
	Year, Month, Day, Hour, Minute, Second int
}

// Calendar decomposes t. A zero time is a missing value and fails.
func Calendar(t time.Time) (CalendarParts, error) {
	if t.IsZero() {
		return CalendarParts{}, ErrMissingTimestamp
	}
	return CalendarParts{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}, nil
}
