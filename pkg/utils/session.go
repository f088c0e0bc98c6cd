// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"time"
)

// Time-of-day values are 4-digit zero-padded "HHMM" strings in the
// exchange's local session time. They compare correctly both
// lexicographically and chronologically.

// ValidClock reports whether s is a well-formed "HHMM" time-of-day label.
func ValidClock(s string) bool {
	_, err := ClockMinutes(s)
	return err == nil
}

// ClockMinutes converts an "HHMM" label to minutes since midnight.
func ClockMinutes(s string) (int, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("invalid time-of-day %q: want HHMM", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%2d%2d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time-of-day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time-of-day %q: out of range", s)
	}
	return h*60 + m, nil
}

// MinutesBetween returns the signed number of minutes from one "HHMM"
// label to another.
func MinutesBetween(from, to string) (int, error) {
	a, err := ClockMinutes(from)
	if err != nil {
		return 0, err
	}
	b, err := ClockMinutes(to)
	if err != nil {
		return 0, err
	}
	return b - a, nil
}

// ValidDate reports whether s is a well-formed "2006-01-02" calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// IsMarketHours reports whether now falls inside the Mon-Fri session
// window [open, close] in the given timezone. Returns true when the
// timezone cannot be loaded so that a misconfigured host does not block
// paper runs.
func IsMarketHours(now time.Time, tz, open, close string) bool {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return true
	}
	local := now.In(loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	clock := fmt.Sprintf("%02d%02d", local.Hour(), local.Minute())
	return open <= clock && clock <= close
}
