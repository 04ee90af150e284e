package jira

import (
	"errors"
	"fmt"
	"strings"
)

// maxErrorBody caps how much of a response body is kept on an error.
const maxErrorBody = 512

// ErrNotConfigured is returned when the client is missing a base URL or token.
var ErrNotConfigured = errors.New("jira client not configured")

// AuthError is returned when Jira rejects the credentials (401/403).
type AuthError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("jira rejected credentials: %s %s returned %d", e.Method, e.Path, e.StatusCode)
}

// TransportError covers network failures, timeouts and unexpected statuses.
// StatusCode is 0 when no response was received.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s %s: jira API returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: jira API returned %d", e.Method, e.Path, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError reports caller-supplied input rejected before any request
// is sent.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UpdateError carries enough context about a failed worklog update for a
// caller to revert its optimistic local copy. None of Fields were applied.
type UpdateError struct {
	IssueKey string
	EntryID  string
	Fields   []string
	Err      error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update worklog %s on %s (%s): %v",
		e.EntryID, e.IssueKey, strings.Join(e.Fields, ","), e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
