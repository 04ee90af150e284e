// Package worklog filters, sums and proportionally rescales Jira worklog
// entries, and applies the resulting changes back to Jira.
package worklog

import (
	"strings"
	"time"

	"github.com/worklog-tools/jwl/internal/jira"
)

// DayLayout is the calendar-date layout accepted for query dates.
const DayLayout = "2006-01-02"

// ValidationError is the error returned for malformed caller input.
type ValidationError = jira.ValidationError

// Result is the aggregation of one author's entries on one calendar day.
type Result struct {
	AuthorID     string
	Day          time.Time
	Entries      []jira.Entry
	TotalSeconds int
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	d, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Value: s, Message: "expected YYYY-MM-DD"}
	}
	return d, nil
}

// MatchesDay reports whether the entry started on day. The comparison uses
// the calendar date written in the raw timestamp: the offset is dropped, not
// applied, so an entry logged at 23:50+0900 belongs to that date even when
// it falls on the previous day in UTC.
func MatchesDay(e jira.Entry, day time.Time) bool {
	t, err := e.StartTime()
	if err != nil {
		return false
	}
	y, m, d := t.Date()
	wy, wm, wd := day.Date()
	return y == wy && m == wm && d == wd
}

// Filter keeps the entries written by authorID that started on day, in
// input order. Entries with an unparseable start are dropped.
func Filter(entries []jira.Entry, authorID string, day time.Time) []jira.Entry {
	var kept []jira.Entry
	for _, e := range entries {
		if e.Author.AccountID != authorID {
			continue
		}
		if !MatchesDay(e, day) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// Aggregate filters entries and sums the durations of those kept.
func Aggregate(entries []jira.Entry, authorID string, day time.Time) Result {
	kept := Filter(entries, authorID, day)
	return Result{
		AuthorID:     authorID,
		Day:          day,
		Entries:      kept,
		TotalSeconds: TotalSeconds(kept),
	}
}

// TotalSeconds sums TimeSpentSeconds over entries.
func TotalSeconds(entries []jira.Entry) int {
	total := 0
	for _, e := range entries {
		total += e.TimeSpentSeconds
	}
	return total
}
