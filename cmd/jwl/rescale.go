package main

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/worklog-tools/jwl/internal/debug"
	"github.com/worklog-tools/jwl/internal/jira"
	"github.com/worklog-tools/jwl/internal/session"
	"github.com/worklog-tools/jwl/internal/ui"
	"github.com/worklog-tools/jwl/internal/worklog"
)

// planItemJSON is the --json shape of one rescaled entry.
type planItemJSON struct {
	IssueKey   string `json:"issue_key"`
	EntryID    string `json:"entry_id"`
	OldSeconds int    `json:"old_seconds"`
	NewSeconds int    `json:"new_seconds"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

type rescaleJSON struct {
	Date     string         `json:"date"`
	Original int            `json:"original_seconds"`
	Target   int            `json:"target_seconds"`
	NewTotal int            `json:"new_total_seconds"`
	Factor   string         `json:"factor"`
	DryRun   bool           `json:"dry_run"`
	Items    []planItemJSON `json:"items"`
}

var rescaleCmd = &cobra.Command{
	Use:     "rescale",
	Short:   "Scale one day's worklogs proportionally to a new total",
	GroupID: "worklogs",
	Args:    cobra.NoArgs,
	Long: `Scale every worklog of the day by the same factor so they add up to the
target. Each new duration is rounded down to the second, so the new total can
fall a few seconds short of the target. A target of 0, or a day with nothing
logged, leaves every entry unchanged.`,
	Example: `  jwl rescale --hours 8 --dry-run
  jwl rescale --date yesterday --target 7h30m --yes`,
	RunE: runRescale,
}

func init() {
	rescaleCmd.Flags().String("date", "", "Day to rescale (default today)")
	rescaleCmd.Flags().String("author", "", "Account id or email (default: the configured account)")
	rescaleCmd.Flags().Float64("hours", 0, "Target total in hours")
	rescaleCmd.Flags().String("target", "", "Target total: 7h30m, 7:30 or seconds")
	rescaleCmd.Flags().Bool("dry-run", false, "Show the plan without updating Jira")
	rescaleCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	rescaleCmd.MarkFlagsMutuallyExclusive("hours", "target")
	rootCmd.AddCommand(rescaleCmd)
}

func runRescale(cmd *cobra.Command, args []string) error {
	date, _ := cmd.Flags().GetString("date")
	author, _ := cmd.Flags().GetString("author")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	yes, _ := cmd.Flags().GetBool("yes")

	day, err := resolveDay(date)
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	authorID, err := resolveAuthor(rootCtx, client, author)
	if err != nil {
		return err
	}
	sess := newSession(client)
	if err := loadDay(rootCtx, sess, authorID, day); err != nil {
		return err
	}

	target, err := targetSeconds(cmd, sess.Result().TotalSeconds)
	if err != nil {
		return err
	}
	preview, err := worklog.Redistribute(sess.Result(), target)
	if err != nil {
		return err
	}
	if !jsonOutput {
		printf("%s\n", ui.RenderPlan(preview))
	}
	if dryRun || len(preview.Changes()) == 0 {
		if len(preview.Changes()) == 0 {
			printf("Nothing to change.\n")
		}
		if jsonOutput {
			outputJSON(planJSON(day.Format(worklog.DayLayout), preview, nil, dryRun))
		}
		return nil
	}

	if !yes {
		ok, err := confirmRescale(len(preview.Changes()))
		if err != nil {
			return err
		}
		if !ok {
			printf("Cancelled.\n")
			return nil
		}
	}

	plan, err := sess.StartRescale(rootCtx, target)
	if err != nil {
		return err
	}
	events, err := sess.Wait(rootCtx)
	if err != nil {
		return err
	}

	failures := reportEdits(events, "rescale")
	if jsonOutput {
		outputJSON(planJSON(day.Format(worklog.DayLayout), plan, events, false))
	} else {
		printf("%s Updated %d of %d worklogs. Day total is now %s.\n",
			ui.RenderPassIcon(), len(plan.Changes())-len(failures), len(plan.Changes()),
			worklog.FormatSeconds(sess.Result().TotalSeconds))
	}
	if len(failures) > 0 {
		return &worklog.PartialUpdateError{Attempted: len(plan.Changes()), Failures: failures}
	}
	return nil
}

// targetSeconds reads --hours or --target, or prompts for a target when
// attached to a terminal.
func targetSeconds(cmd *cobra.Command, current int) (int, error) {
	if cmd.Flags().Changed("hours") {
		h, _ := cmd.Flags().GetFloat64("hours")
		if h < 0 || math.IsNaN(h) || math.IsInf(h, 0) {
			return 0, &jira.ValidationError{Field: "hours", Value: fmt.Sprint(h), Message: "must be zero or positive"}
		}
		return int(math.Round(h * 3600)), nil
	}
	if s, _ := cmd.Flags().GetString("target"); s != "" {
		return worklog.ParseDuration(s)
	}
	if !interactive() {
		return 0, &jira.ValidationError{Field: "target", Message: "required: pass --hours or --target"}
	}
	return promptTarget(current)
}

func interactive() bool {
	return !jsonOutput && term.IsTerminal(int(os.Stdin.Fd())) && ui.IsTerminal()
}

func promptTarget(current int) (int, error) {
	input := worklog.FormatJira(current)
	err := huh.NewInput().
		Title("New total for the day").
		Description("Currently " + worklog.FormatJira(current) + ". Use 7h30m, 7:30 or seconds.").
		Value(&input).
		Validate(func(s string) error {
			_, err := worklog.ParseDuration(s)
			return err
		}).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return 0, errors.New("cancelled")
		}
		return 0, err
	}
	return worklog.ParseDuration(input)
}

func confirmRescale(n int) (bool, error) {
	if !interactive() {
		return false, &jira.ValidationError{Field: "yes", Message: "confirmation needed: pass --yes when not on a terminal"}
	}
	ok := false
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Update %d worklogs in Jira?", n)).
		Affirmative("Update").
		Negative("Cancel").
		Value(&ok).
		Run()
	if err != nil && !errors.Is(err, huh.ErrUserAborted) {
		return false, err
	}
	return ok, nil
}

// reportEdits logs every drained edit event and warns once per failed
// entry. It returns the failures.
func reportEdits(events []session.Event, op string) []*jira.UpdateError {
	var failures []*jira.UpdateError
	for _, ev := range events {
		ref := ev.IssueKey + "/" + ev.EntryID
		switch ev.Kind {
		case session.EditConfirmed:
			debug.LogEvent(op, ref, "ok")
		case session.EditFailed:
			debug.LogEvent(op, ref, "failed: "+ev.Err.Error())
			WarnError("%s: %v", ref, ev.Err)
			var ue *jira.UpdateError
			if !errors.As(ev.Err, &ue) {
				ue = &jira.UpdateError{IssueKey: ev.IssueKey, EntryID: ev.EntryID, Err: ev.Err}
			}
			failures = append(failures, ue)
		}
	}
	return failures
}

func planJSON(date string, plan *worklog.Plan, events []session.Event, dryRun bool) rescaleJSON {
	failed := make(map[string]string)
	for _, ev := range events {
		if ev.Kind == session.EditFailed {
			failed[ev.IssueKey+"/"+ev.EntryID] = ev.Err.Error()
		}
	}
	out := rescaleJSON{
		Date:     date,
		Original: plan.Original,
		Target:   plan.Target,
		NewTotal: plan.NewTotal(),
		Factor:   plan.Factor.RatString(),
		DryRun:   dryRun,
		Items:    make([]planItemJSON, 0, len(plan.Items)),
	}
	for _, it := range plan.Items {
		item := planItemJSON{
			IssueKey:   it.Entry.IssueKey,
			EntryID:    it.Entry.ID,
			OldSeconds: it.OldSeconds,
			NewSeconds: it.NewSeconds,
			Status:     "updated",
		}
		switch msg, ok := failed[it.Entry.IssueKey+"/"+it.Entry.ID]; {
		case !it.Changed():
			item.Status = "unchanged"
		case dryRun || events == nil:
			item.Status = "planned"
		case ok:
			item.Status, item.Error = "failed", msg
		}
		out.Items = append(out.Items, item)
	}
	return out
}
