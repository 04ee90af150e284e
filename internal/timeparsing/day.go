package timeparsing

import (
	"fmt"
	"strings"
	"time"
)

// ParseDay resolves a work-log day expression to midnight UTC of the named
// calendar day. The empty string and "today" mean now's date. Anything
// ParseRelativeTime accepts is allowed; only its calendar date is kept,
// read in whatever offset the expression carried.
func ParseDay(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	var t time.Time
	switch strings.ToLower(s) {
	case "", "today":
		t = now
	default:
		var err error
		t, err = ParseRelativeTime(s, now)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day %q: use YYYY-MM-DD, -1d, yesterday or similar", s)
		}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
