package worklog

import (
	"errors"
	"testing"
	"time"

	"github.com/worklog-tools/jwl/internal/jira"
	"github.com/worklog-tools/jwl/internal/testutil"
)

func entry(key, id, author, started string, seconds int) jira.Entry {
	return jira.Entry{IssueKey: key, Worklog: testutil.MakeWorklog(id, author, started, seconds, "")}
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDay(s)
	if err != nil {
		t.Fatalf("ParseDay(%q) error = %v", s, err)
	}
	return d
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay(" 2025-09-17 ")
	if err != nil {
		t.Fatalf("ParseDay() error = %v", err)
	}
	if d.Year() != 2025 || d.Month() != time.September || d.Day() != 17 {
		t.Errorf("ParseDay() = %v", d)
	}

	for _, bad := range []string{"", "17.09.2025", "2025-13-01", "2025-09-17T10:00"} {
		_, err := ParseDay(bad)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("ParseDay(%q) error = %v, want *ValidationError", bad, err)
		}
	}
}

func TestMatchesDayUsesRawCalendarDate(t *testing.T) {
	day := mustDay(t, "2025-09-17")
	tests := []struct {
		started string
		want    bool
	}{
		// Matched by the written date, not the UTC date.
		{"2025-09-17T23:50:00.000+0900", true},
		{"2025-09-17T00:10:00.000-0500", true},
		// 16:00 on the 17th in UTC, but written as the 18th.
		{"2025-09-18T01:00:00.000+0900", false},
		{"2025-09-16T23:59:59.000+0000", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		e := entry("A-1", "1", "acc", tt.started, 60)
		if got := MatchesDay(e, day); got != tt.want {
			t.Errorf("MatchesDay(%s) = %v, want %v", tt.started, got, tt.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	entries := []jira.Entry{
		entry("A-1", "1", "me", "2025-09-17T09:00:00.000+0900", 3600),
		entry("A-1", "2", "other", "2025-09-17T10:00:00.000+0900", 7200),
		entry("B-2", "3", "me", "2025-09-17T23:50:00.000+0900", 1800),
		entry("B-2", "4", "me", "2025-09-16T12:00:00.000+0900", 900),
		entry("B-2", "5", "me", "not-a-date", 600),
	}

	res := Aggregate(entries, "me", mustDay(t, "2025-09-17"))

	if res.TotalSeconds != 5400 {
		t.Errorf("TotalSeconds = %d, want 5400", res.TotalSeconds)
	}
	if len(res.Entries) != 2 || res.Entries[0].ID != "1" || res.Entries[1].ID != "3" {
		t.Errorf("kept entries = %+v, want ids 1 and 3", res.Entries)
	}
	if res.AuthorID != "me" {
		t.Errorf("AuthorID = %q", res.AuthorID)
	}
}

func TestAggregateEmpty(t *testing.T) {
	res := Aggregate(nil, "me", mustDay(t, "2025-09-17"))
	if res.TotalSeconds != 0 || len(res.Entries) != 0 {
		t.Errorf("Aggregate(nil) = %+v", res)
	}
}
