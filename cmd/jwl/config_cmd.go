package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/worklog-tools/jwl/internal/config"
	"github.com/worklog-tools/jwl/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show or change configuration",
	GroupID: "setup",
	Long: `Show or change jwl configuration.

Values come from the config file, then environment variables:
  JWL_JIRA_URL, JWL_JIRA_EMAIL, JWL_JIRA_API_TOKEN
  (JIRA_URL, JIRA_USERNAME and JIRA_API_TOKEN are also accepted)

Examples:
  jwl config set jira.url "https://company.atlassian.net"
  jwl config set jira.email "me@company.com"
  jwl config set jira.api_token "YOUR_TOKEN"
  jwl config list`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List effective configuration values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vals, err := config.Values(configFile)
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(vals)
			return nil
		}
		keys := make([]string, 0, len(vals))
		for k := range vals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := vals[k]
			if v == "" {
				v = ui.RenderMuted("(not set)")
			}
			fmt.Fprintf(stdout, "%-26s %s\n", k, v)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Write a value to the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if err := config.SetValue(path, args[0], args[1]); err != nil {
			return err
		}
		shown := args[1]
		if k := config.LookupKey(args[0]); k != nil && k.Secret {
			shown = config.Mask(shown)
		}
		if jsonOutput {
			outputJSON(map[string]string{"key": args[0], "value": shown, "file": path})
			return nil
		}
		printf("%s Set %s = %s in %s\n", ui.RenderPassIcon(), args[0], shown, path)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Describe every configuration key",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, k := range config.Keys {
			fmt.Fprintf(stdout, "%s\n  %s\n", ui.RenderAccent(k.Key), k.Description)
			if len(k.EnvVars) > 0 {
				fmt.Fprintf(stdout, "  %s %v\n", ui.RenderMuted("env:"), k.EnvVars)
			}
		}
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(stdout, configPath())
	},
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	return config.DefaultPath()
}

func init() {
	configCmd.AddCommand(configListCmd, configSetCmd, configKeysCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
