package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	// Version is overridden by ldflags at build time.
	Version = "0.1.0"
	// Build can be set via ldflags at compile time.
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print version information",
	GroupID: "setup",
	Run: func(cmd *cobra.Command, args []string) {
		commit := resolveCommitHash()
		if jsonOutput {
			outputJSON(map[string]string{"version": Version, "build": Build, "commit": commit})
			return
		}
		if commit != "" {
			fmt.Fprintf(stdout, "jwl version %s (%s: %s)\n", Version, Build, commit)
			return
		}
		fmt.Fprintf(stdout, "jwl version %s (%s)\n", Version, Build)
	},
}

func resolveCommitHash() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return s.Value[:12]
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
