package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/worklog-tools/jwl/internal/config"
	"github.com/worklog-tools/jwl/internal/debug"
	"github.com/worklog-tools/jwl/internal/telemetry"
	"github.com/worklog-tools/jwl/internal/ui"
)

var (
	configFile  string
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool
	noColorFlag bool

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	cfg    config.Config
	logger = slog.New(slog.DiscardHandler)

	// stdout receives command output; tests replace it.
	stdout io.Writer = os.Stdout
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: $XDG_CONFIG_HOME/jwl/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")

	rootCmd.AddGroup(&cobra.Group{ID: "worklogs", Title: "Working With Worklogs:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Configuration:"})
}

var rootCmd = &cobra.Command{
	Use:   "jwl",
	Short: "jwl - Jira worklog viewer and rescaler",
	Long: `Show one person's Jira worklogs for a day, edit them, and rescale the
day's entries proportionally to a new total.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupSignalContext()
		applyVerbosityFlags()
		ui.InitColor(noColorFlag)
		logger = debug.NewLogger(os.Stderr)

		if !needsConfig(cmd) {
			return nil
		}
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return err
		}
		debug.Logf("config: %s\n", cfg.File)
		debug.SetEventLog(eventLogPath())

		tcfg := telemetry.Config{Enabled: cfg.Telemetry.Enabled, MetricsEndpoint: cfg.Telemetry.MetricsEndpoint}
		if err := telemetry.Init(rootCtx, tcfg, "jwl", Version); err != nil {
			WarnError("telemetry disabled: %v", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyVerbosityFlags propagates --verbose and --quiet to the debug package
// before any logger is built.
func applyVerbosityFlags() {
	debug.SetVerbose(verboseFlag)
	debug.SetQuiet(quietFlag)
}

// needsConfig is false for commands that must work with a broken or
// missing config file.
func needsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "config", "version", "help", "completion":
			return false
		}
	}
	return true
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	telemetry.Shutdown(ctx)
	if rootCancel != nil {
		rootCancel()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		shutdown()
		if jsonOutput {
			outputJSONError(err, errorCode(err))
		}
		fmt.Fprintln(os.Stderr, describeError(err))
		if hint := errorHint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
