package main

import (
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Short:   "Show the Jira account behind the configured credentials",
	GroupID: "setup",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		u, err := currentUser(rootCtx, client)
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(u)
			return nil
		}
		printf("%s (%s)\n", u.DisplayName, u.AccountID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
