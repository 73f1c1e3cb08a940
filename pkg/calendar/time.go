package calendar

import (
	"errors"
	"strings"
	"time"
)

// TimeLayout is the canonical form of every stored start and end time.
// Times with a sub-second part use TimeLayoutMicro instead.
const (
	TimeLayout      = "2006-01-02T15:04:05"
	TimeLayoutMicro = "2006-01-02T15:04:05.000000"
)

// Naive inputs. Fractional seconds are accepted after the seconds field by time.Parse.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var errInvalidTime = errors.New("invalid datetime")

// ParseTime parses a user supplied date-time into a naive wall-clock time.
// Values carrying an offset are moved into the local zone before the offset is dropped.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errInvalidTime
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return Naive(t.In(time.Local)).Truncate(time.Microsecond), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Truncate(time.Microsecond), nil
		}
	}
	return time.Time{}, errInvalidTime
}

// Naive returns the wall clock of t as a UTC-located time, so that naive
// timestamps and "now" can be compared without zone arithmetic.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// FormatTime renders t in the canonical form, with microseconds only when
// t has a sub-second part.
func FormatTime(t time.Time) string {
	if t.Nanosecond() != 0 {
		return t.Format(TimeLayoutMicro)
	}
	return t.Format(TimeLayout)
}
