// Package timeparse decodes the two wire formats the ICPC event feed uses
// for time: RFC3339 absolute timestamps and "[-]H+:MM:SS[.fraction]"
// relative durations.
package timeparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InvalidDatetime is returned when a timestamp field cannot be parsed as RFC3339.
var InvalidDatetime = fmt.Errorf("invalid datetime")

// InvalidDuration is returned when a duration field does not match the
// "[-]H+:MM:SS[.fraction]" shape.
var InvalidDuration = fmt.Errorf("invalid duration")

// ParseTime parses an RFC3339 timestamp with offset. The offset is
// preserved on the returned time.Time but is never significant to
// ordering: callers compare instants, never offsets.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", InvalidDatetime, s, err)
	}
	return t, nil
}

// ParseDuration parses a contest-feed duration string: an optional
// leading '-', then "H+:MM:SS" with an optional fractional-seconds
// suffix. Fractional seconds are truncated toward zero.
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", InvalidDuration, orig)
	}

	// strconv alone would also accept a sign ("+1"), so every field is
	// checked to be plain digits, with MM and SS exactly two of them.
	digits := func(f string) bool {
		return f != "" && strings.Trim(f, "0123456789") == ""
	}
	if !digits(parts[0]) || len(parts[1]) != 2 || !digits(parts[1]) {
		return 0, fmt.Errorf("%w: %q", InvalidDuration, orig)
	}

	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("%w: %q", InvalidDuration, orig)
	}

	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", InvalidDuration, orig)
	}

	secField := parts[2]
	secWhole := secField
	if dot := strings.IndexByte(secField, '.'); dot >= 0 {
		secWhole = secField[:dot]
		// Fractional part is truncated toward zero: simply dropped.
		if !digits(secField[dot+1:]) {
			return 0, fmt.Errorf("%w: %q", InvalidDuration, orig)
		}
	}
	if len(secWhole) != 2 || !digits(secWhole) {
		return 0, fmt.Errorf("%w: %q", InvalidDuration, orig)
	}
	seconds, err := strconv.ParseInt(secWhole, 10, 64)
	if err != nil || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("%w: %q", InvalidDuration, orig)
	}

	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second
	if neg {
		total = -total
	}
	return total, nil
}

// FormatDuration renders d as "[-]H:MM:SS", the inverse of ParseDuration
// for integer-second durations.
func FormatDuration(d time.Duration) string {
	neg := d < 0
	if neg {
		d = -d
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%d:%02d:%02d", sign, hours, minutes, seconds)
}
