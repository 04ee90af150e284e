package jira

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var issueKeyRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-[0-9]+$`)

// IsJiraExternalRef checks if a URL is a browse URL of the configured Jira instance.
// It validates both the URL structure (/browse/PROJECT-123) and optionally the host.
func IsJiraExternalRef(externalRef, jiraURL string) bool {
	if !strings.Contains(externalRef, "/browse/") {
		return false
	}

	if jiraURL != "" {
		jiraURL = strings.TrimSuffix(jiraURL, "/")
		if !strings.HasPrefix(externalRef, jiraURL) {
			return false
		}
	}

	return true
}

// ExtractJiraKey extracts the Jira issue key from a browse URL.
// For example, "https://company.atlassian.net/browse/PROJ-123" returns "PROJ-123".
func ExtractJiraKey(externalRef string) string {
	idx := strings.LastIndex(externalRef, "/browse/")
	if idx == -1 {
		return ""
	}
	key := externalRef[idx+len("/browse/"):]
	if i := strings.IndexAny(key, "?#/"); i >= 0 {
		key = key[:i]
	}
	return key
}

// ResolveIssueKey accepts either an issue key ("proj-12" is upper-cased) or
// a browse URL of the configured instance and returns the issue key.
func ResolveIssueKey(arg, jiraURL string) (string, error) {
	arg = strings.TrimSpace(arg)
	key := arg
	if strings.Contains(arg, "://") {
		if !IsJiraExternalRef(arg, jiraURL) {
			return "", &ValidationError{Field: "issue", Value: arg, Message: "not a browse URL of " + jiraURL}
		}
		key = ExtractJiraKey(arg)
	}
	key = strings.ToUpper(key)
	if !issueKeyRe.MatchString(key) {
		return "", &ValidationError{Field: "issue", Value: arg, Message: "expected a key like PROJ-123"}
	}
	return key, nil
}

// ParseTimestamp parses Jira's timestamp format into a time.Time.
// Jira uses ISO 8601 with timezone: 2024-01-15T10:30:00.000+0000 or 2024-01-15T10:30:00.000Z
// The result keeps the timestamp's own offset.
func ParseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	formats := []string{
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %s", ts)
}
