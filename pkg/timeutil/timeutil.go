// Package timeutil provides calendar helpers for reward scheduling.
// Daily rewards roll over at local midnight of the configured location.
package timeutil

import (
	"time"
)

// DayLayout is the layout used for calendar-day keys.
const DayLayout = "2006-01-02"

// Clock returns the current time. Services take a Clock so tests can pin it.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// LoadLocation resolves a timezone name, falling back to UTC on error or empty input.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayKey formats the calendar day of t in loc, e.g. "2026-10-17".
func DayKey(t time.Time, loc *time.Location) string {
	return StartOfDay(t, loc).Format(DayLayout)
}

// ParseDayKey parses a key produced by DayKey back into local midnight.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DayLayout, key, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DayKey(a, loc) == DayKey(b, loc)
}
