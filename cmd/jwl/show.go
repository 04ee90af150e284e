package main

import (
	"github.com/spf13/cobra"

	"github.com/worklog-tools/jwl/internal/ui"
	"github.com/worklog-tools/jwl/internal/worklog"
)

// dayJSON is the --json shape of one author's day.
type dayJSON struct {
	Author       string        `json:"author"`
	Date         string        `json:"date"`
	TotalSeconds int           `json:"total_seconds"`
	Total        string        `json:"total"`
	Entries      []worklog.Row `json:"entries"`
}

func toDayJSON(res worklog.Result) dayJSON {
	return dayJSON{
		Author:       res.AuthorID,
		Date:         res.Day.Format(worklog.DayLayout),
		TotalSeconds: res.TotalSeconds,
		Total:        worklog.FormatSeconds(res.TotalSeconds),
		Entries:      worklog.Rows(res.Entries),
	}
}

var showCmd = &cobra.Command{
	Use:     "show",
	Short:   "Show one day's worklogs and their total",
	GroupID: "worklogs",
	Args:    cobra.NoArgs,
	Example: `  jwl show                      # today, current account
  jwl show --date yesterday
  jwl show --date 2025-09-17 --author someone@example.com --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		author, _ := cmd.Flags().GetString("author")
		noPager, _ := cmd.Flags().GetBool("no-pager")

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
		res := sess.Result()
		if jsonOutput {
			outputJSON(toDayJSON(res))
			return nil
		}
		if quietFlag {
			return nil
		}
		return ui.ToPager(stdout, ui.RenderEntries(res), ui.PagerOptions{NoPager: noPager})
	},
}

func init() {
	showCmd.Flags().String("date", "", "Day to show: YYYY-MM-DD, today, yesterday, -1d, \"last friday\" (default today)")
	showCmd.Flags().String("author", "", "Account id or email (default: the configured account)")
	showCmd.Flags().Bool("no-pager", false, "Do not page long output")
	rootCmd.AddCommand(showCmd)
}
