// Package timeparsing resolves the date expressions accepted on the command
// line: compact offsets (-1d, +2w), absolute dates (2025-09-17, RFC3339) and
// natural language (yesterday, last friday, 3 days ago).
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// compactDurationRe matches [+-]?(\d+)([hdwmy]), e.g. -1d, +2w, 3m.
var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// ParseCompactDuration applies a compact offset to now. Units are hours,
// days, weeks, months and years; a missing sign means forward.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	m := compactDurationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount: %q", m[2])
	}
	if m[1] == "-" {
		n = -n
	}
	return applyDuration(now, n, m[3]), nil
}

func applyDuration(base time.Time, n int, unit string) time.Time {
	switch unit {
	case "h":
		return base.Add(time.Duration(n) * time.Hour)
	case "d":
		return base.AddDate(0, 0, n)
	case "w":
		return base.AddDate(0, 0, 7*n)
	case "m":
		return base.AddDate(0, n, 0)
	case "y":
		return base.AddDate(n, 0, 0)
	}
	return base
}

// IsCompactDuration reports whether s uses compact offset syntax.
func IsCompactDuration(s string) bool {
	return compactDurationRe.MatchString(strings.TrimSpace(s))
}

// ParseRelativeTime tries each layer in order: compact offset, date-only
// (midnight in now's location), RFC3339, then natural language.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}
	if t, err := ParseCompactDuration(s, now); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := ParseNaturalLanguage(s, now); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date or time", s)
}
