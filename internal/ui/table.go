package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/worklog-tools/jwl/internal/worklog"
)

const summaryWidth = 30

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(MutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// RenderEntries renders the result of a query as a table followed by the
// day's total.
func RenderEntries(res worklog.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", RenderHeader("Worklogs"), RenderMuted(res.Day.Format(worklog.DayLayout)))
	if len(res.Entries) == 0 {
		b.WriteString(RenderMuted("No worklogs found."))
		b.WriteString("\n")
		return b.String()
	}

	t := newTable("Issue", "Summary", "ID", "Started", "Time", "Comment")
	for _, r := range worklog.Rows(res.Entries) {
		t.Row(r.IssueKey, TruncateSimple(r.Summary, summaryWidth), r.EntryID, r.Started, r.Duration,
			TruncateSimple(OneLine(r.Comment), DefaultCommentWidth))
	}
	b.WriteString(t.String())
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s (%d entries)\n",
		TotalStyle.Render("Total:"), worklog.FormatSeconds(res.TotalSeconds), len(res.Entries))
	return b.String()
}

// RenderPlan renders each planned change with old and new durations.
// Unchanged entries are shown muted.
func RenderPlan(p *worklog.Plan) string {
	var b strings.Builder
	t := newTable("Issue", "ID", "Before", "After", "Delta")
	for _, it := range p.Items {
		delta := it.NewSeconds - it.OldSeconds
		d := worklog.FormatSeconds(delta)
		if delta > 0 {
			d = "+" + d
		}
		if !it.Changed() {
			d = RenderMuted("unchanged")
		}
		t.Row(it.Entry.IssueKey, it.Entry.ID,
			worklog.FormatSeconds(it.OldSeconds), worklog.FormatSeconds(it.NewSeconds), d)
	}
	b.WriteString(t.String())
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s %s %s (factor %s)\n",
		TotalStyle.Render("Total:"),
		worklog.FormatSeconds(p.Original), Arrow, worklog.FormatSeconds(p.NewTotal()),
		p.Factor.FloatString(4))
	if short := p.Target - p.NewTotal(); short > 0 {
		fmt.Fprintf(&b, "%s %ds short of target from rounding down\n", RenderWarnIcon(), short)
	}
	return b.String()
}
