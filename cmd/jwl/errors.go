package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/worklog-tools/jwl/internal/jira"
	"github.com/worklog-tools/jwl/internal/worklog"
)

// FatalError writes an error message to stderr and exits with code 1.
// Use this for errors that prevent the command from completing.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// WarnError writes a warning message to stderr and returns. Use this for
// per-entry failures of a batch and for optional steps such as caching.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

// describeError renders the single line printed for a failed command.
func describeError(err error) string {
	var partial *worklog.PartialUpdateError
	if errors.As(err, &partial) {
		return fmt.Sprintf("Error: %d of %d worklog updates failed", len(partial.Failures), partial.Attempted)
	}
	return "Error: " + err.Error()
}

// errorCode classifies err for JSON output.
func errorCode(err error) string {
	var (
		partial    *worklog.PartialUpdateError
		validation *jira.ValidationError
	)
	switch {
	case errors.As(err, &partial):
		return "partial_update"
	case jira.IsAuthError(err):
		return "auth"
	case errors.As(err, &validation):
		return "invalid_input"
	case jira.IsTransportError(err):
		return "transport"
	default:
		return ""
	}
}

func errorHint(err error) string {
	var validation *jira.ValidationError
	switch {
	case jira.IsAuthError(err):
		return "check jira.email and jira.api_token ('jwl config list')"
	case errors.As(err, &validation) && (validation.Field == "jira.url" || validation.Field == "jira.api_token"):
		return "run 'jwl config set " + validation.Field + " <value>' or set the environment variable"
	default:
		return ""
	}
}
