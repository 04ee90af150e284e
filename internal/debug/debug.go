// Package debug holds process-wide output switches: JWL_DEBUG / --verbose
// tracing, --quiet, the slog logger handed to components, and the local
// audit log of worklog edits.
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/worklog-tools/jwl/internal/lockfile"
)

var (
	enabled     = os.Getenv("JWL_DEBUG") != ""
	verboseMode = false
	quietMode   = false

	logMutex     sync.Mutex
	eventLogPath string
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// PrintNormal prints output unless quiet mode is enabled
// Use this for normal informational output that should be suppressed in quiet mode
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}

// PrintlnNormal prints a line unless quiet mode is enabled
func PrintlnNormal(args ...interface{}) {
	if !quietMode {
		fmt.Println(args...)
	}
}

// Level is the slog level implied by the current switches.
func Level() slog.Level {
	switch {
	case Enabled():
		return slog.LevelDebug
	case quietMode:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// NewLogger returns a text logger writing to w at Level().
func NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level()}))
}

// SetEventLog sets the file LogEvent appends to. Empty disables it.
func SetEventLog(path string) {
	logMutex.Lock()
	defer logMutex.Unlock()
	eventLogPath = path
}

// LogEvent appends one line to the event log.
// Format: TIMESTAMP|EVENT_CODE|ENTRY|DETAILS
func LogEvent(eventCode, entry, details string) {
	logMutex.Lock()
	defer logMutex.Unlock()
	if eventLogPath == "" {
		return
	}
	if entry == "" {
		entry = "none"
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s|%s|%s|%s\n", timestamp, eventCode, entry, details)

	// Logging must never interrupt an edit, so every failure is dropped.
	_ = os.MkdirAll(filepath.Dir(eventLogPath), 0o700)
	_ = lockfile.With(eventLogPath, time.Second, func() error {
		file, err := os.OpenFile(eventLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = file.WriteString(line)
		return err
	})
}
