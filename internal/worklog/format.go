package worklog

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/worklog-tools/jwl/internal/jira"
)

// RowStartedLayout formats Row.Started.
const RowStartedLayout = "2006-01-02 15:04"

// Row is the export view of one entry. Field names are stable.
type Row struct {
	IssueKey string `json:"issue_key"`
	Project  string `json:"project,omitempty"`
	Summary  string `json:"summary,omitempty"`
	EntryID  string `json:"entry_id"`
	Started  string `json:"started"`
	Duration string `json:"duration"`
	Author   string `json:"author"`
	Comment  string `json:"comment"`
}

// ToRow builds the export row for e. An unparseable start is passed through
// verbatim.
func ToRow(e jira.Entry) Row {
	started := e.Started
	if t, err := e.StartTime(); err == nil {
		started = t.Format(RowStartedLayout)
	}
	return Row{
		IssueKey: e.IssueKey,
		Project:  e.Project,
		Summary:  e.Summary,
		EntryID:  e.ID,
		Started:  started,
		Duration: FormatDuration(e.TimeSpentSeconds),
		Author:   e.Author.DisplayName,
		Comment:  e.CommentText(),
	}
}

// Rows converts entries to rows, preserving order.
func Rows(entries []jira.Entry) []Row {
	rows := make([]Row, len(entries))
	for i, e := range entries {
		rows[i] = ToRow(e)
	}
	return rows
}

// FormatSeconds renders seconds as H:MM:SS.
func FormatSeconds(seconds int) string {
	sign := ""
	if seconds < 0 {
		sign, seconds = "-", -seconds
	}
	return fmt.Sprintf("%s%d:%02d:%02d", sign, seconds/3600, seconds%3600/60, seconds%60)
}

// FormatDuration renders seconds as H:MM, dropping leftover seconds.
func FormatDuration(seconds int) string {
	sign := ""
	if seconds < 0 {
		sign, seconds = "-", -seconds
	}
	return fmt.Sprintf("%s%d:%02d", sign, seconds/3600, seconds%3600/60)
}

// FormatJira renders seconds the way Jira writes timeSpent, e.g. "1h 30m".
func FormatJira(seconds int) string {
	if seconds <= 0 {
		return "0m"
	}
	h, m := seconds/3600, seconds%3600/60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

var (
	clockRe    = regexp.MustCompile(`^(\d+):([0-5]\d)(?::([0-5]\d))?$`)
	durationRe = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)
)

// ParseDuration parses a duration as typed by a user: Jira style ("1h 30m",
// "45m", "2h"), clock style ("1:30", "0:45:10"), or a bare number of
// seconds.
func ParseDuration(s string) (int, error) {
	in := strings.ToLower(strings.Join(strings.Fields(s), ""))
	invalid := &ValidationError{Field: "duration", Value: s, Message: `expected e.g. "1h30m", "1:30" or seconds`}
	if in == "" {
		return 0, invalid
	}

	if n, err := strconv.Atoi(in); err == nil {
		if n < 0 {
			return 0, invalid
		}
		return n, nil
	}

	m := clockRe.FindStringSubmatch(in)
	if m == nil {
		m = durationRe.FindStringSubmatch(in)
	}
	if m == nil {
		return 0, invalid
	}
	n, err := sumUnits(m[1], m[2], m[3])
	if err != nil {
		return 0, invalid
	}
	return n, nil
}

// sumUnits adds hours, minutes and seconds given as digit strings. Empty
// parts count as zero.
func sumUnits(h, m, s string) (int, error) {
	total := 0
	for _, part := range []struct {
		digits string
		unit   int
	}{{h, 3600}, {m, 60}, {s, 1}} {
		if part.digits == "" {
			continue
		}
		n, err := strconv.Atoi(part.digits)
		if err != nil {
			return 0, err
		}
		if n > (math.MaxInt-total)/part.unit {
			return 0, fmt.Errorf("duration %s overflows", part.digits)
		}
		total += n * part.unit
	}
	return total, nil
}
