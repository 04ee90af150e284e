package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/worklog-tools/jwl/internal/debug"
	"github.com/worklog-tools/jwl/internal/jira"
	"github.com/worklog-tools/jwl/internal/telemetry"
	"github.com/worklog-tools/jwl/internal/timeparsing"
	"github.com/worklog-tools/jwl/internal/ui"
	"github.com/worklog-tools/jwl/internal/worklog"
)

var editCmd = &cobra.Command{
	Use:     "edit ISSUE WORKLOG-ID",
	Short:   "Change the duration, comment or start of one worklog",
	GroupID: "worklogs",
	Args:    cobra.ExactArgs(2),
	Long: `Change fields of one worklog. Only the fields given are sent; Jira keeps
the others. ISSUE may be a key (PROJ-123) or a browse URL of the configured
instance.`,
	Example: `  jwl edit PROJ-123 10042 --time 1h30m
  jwl edit PROJ-123 10042 --comment "Code review" --started "yesterday at 9am"`,
	RunE: runEdit,
}

func init() {
	editCmd.Flags().String("time", "", "New duration: 1h30m, 1:30 or seconds")
	editCmd.Flags().Int("seconds", 0, "New duration in seconds")
	editCmd.Flags().String("comment", "", "New comment (plain text)")
	editCmd.Flags().String("started", "", "New start: RFC3339, YYYY-MM-DD or e.g. \"today at 9am\"")
	editCmd.MarkFlagsMutuallyExclusive("time", "seconds")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	upd, err := buildUpdate(cmd)
	if err != nil {
		return err
	}
	if upd.IsEmpty() {
		return &jira.ValidationError{Field: "update", Message: "nothing to change: pass --time, --seconds, --comment or --started"}
	}
	issueKey, err := jira.ResolveIssueKey(args[0], cfg.Jira.URL)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(args[1])
	if id == "" {
		return &jira.ValidationError{Field: "worklog", Message: "id is required"}
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	ref := issueKey + "/" + id
	updated, err := telemetry.WrapDispatcher(client).UpdateWorklog(rootCtx, issueKey, id, upd)
	if err != nil {
		debug.LogEvent("edit", ref, "failed: "+err.Error())
		return err
	}
	debug.LogEvent("edit", ref, strings.Join(upd.Fields(), ","))
	if updated == nil {
		updated = &jira.Entry{IssueKey: issueKey, Worklog: jira.Worklog{ID: id}}
	}

	if jsonOutput {
		outputJSON(worklog.ToRow(*updated))
		return nil
	}
	row := worklog.ToRow(*updated)
	printf("%s Updated %s: %s started %s\n", ui.RenderPassIcon(), ref, row.Duration, row.Started)
	if upd.Comment != nil {
		printf("  %s\n", ui.RenderMuted(ui.TruncateSimple(ui.OneLine(row.Comment), ui.DefaultCommentWidth)))
	}
	return nil
}

// buildUpdate collects the fields given on the command line.
func buildUpdate(cmd *cobra.Command) (jira.Update, error) {
	var upd jira.Update
	flags := cmd.Flags()
	switch {
	case flags.Changed("time"):
		s, _ := flags.GetString("time")
		seconds, err := worklog.ParseDuration(s)
		if err != nil {
			return upd, err
		}
		upd.TimeSpentSeconds = &seconds
	case flags.Changed("seconds"):
		seconds, _ := flags.GetInt("seconds")
		if err := worklog.ValidateTarget(seconds); err != nil {
			return upd, err
		}
		upd.TimeSpentSeconds = &seconds
	}
	if flags.Changed("comment") {
		c, _ := flags.GetString("comment")
		upd.Comment = &c
	}
	if flags.Changed("started") {
		s, _ := flags.GetString("started")
		t, err := timeparsing.ParseRelativeTime(s, now())
		if err != nil {
			return upd, &jira.ValidationError{Field: "started", Value: s, Message: "not a recognizable time"}
		}
		upd.Started = &t
	}
	return upd, nil
}
