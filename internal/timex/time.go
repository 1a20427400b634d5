// Package timex converts between the time units used on the wire:
// 10-minute interval numbers, unix-hour bucket ids and ISO day keys.
// All conversions are UTC.
package timex

import (
	"fmt"
	"time"
)

const (
	// SecondsPerInterval is the length of one trace-warning interval.
	SecondsPerInterval = 600

	dayKeyLayout = "2006-01-02"
)

// UnixHour returns the hour-bucket id for t (hours since the Unix epoch).
func UnixHour(t time.Time) int64 {
	return t.Unix() / 3600
}

// IntervalStart returns the unix timestamp (seconds) at which the given
// 10-minute interval number begins.
func IntervalStart(n uint32) int64 {
	return int64(n) * SecondsPerInterval
}

// IntervalNumber returns the 10-minute interval number containing t.
func IntervalNumber(t time.Time) uint32 {
	return uint32(t.Unix() / SecondsPerInterval)
}

// DayKey formats t as an ISO date string, the identifier used by the
// day-package endpoints.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayKeyLayout)
}

// ParseDayKey parses an ISO date string back into a UTC midnight timestamp.
func ParseDayKey(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dayKeyLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", s, err)
	}
	return t, nil
}
