package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Key describes one configuration key.
type Key struct {
	Key         string   // dotted name, e.g. "jira.url"
	Description string   // human-readable description
	EnvVars     []string // env vars checked in order; first match wins
	Secret      bool     // value is masked when displayed
	Default     string   // default value (empty = no default)
	Validate    func(string) error
}

// Keys lists every configuration key jwl understands.
var Keys = []Key{
	{
		Key:         "jira.url",
		Description: "Jira base URL, e.g. https://company.atlassian.net",
		EnvVars:     []string{"JWL_JIRA_URL", "JIRA_URL"},
		Validate:    validateURL,
	},
	{
		Key:         "jira.email",
		Description: "Account email for basic auth (empty = bearer token)",
		EnvVars:     []string{"JWL_JIRA_EMAIL", "JIRA_USERNAME"},
	},
	{
		Key:         "jira.api_token",
		Description: "Jira API token or personal access token",
		EnvVars:     []string{"JWL_JIRA_API_TOKEN", "JIRA_API_TOKEN"},
		Secret:      true,
	},
	{
		Key:         "jira.timeout",
		Description: "Per-request timeout",
		EnvVars:     []string{"JWL_JIRA_TIMEOUT"},
		Default:     "30s",
		Validate:    validateDuration,
	},
	{
		Key:         "fetch.workers",
		Description: "Issues fetched concurrently",
		EnvVars:     []string{"JWL_FETCH_WORKERS"},
		Default:     "4",
		Validate:    validatePositiveInt,
	},
	{
		Key:         "fetch.search_page_size",
		Description: "Issues requested per search page (max 100)",
		EnvVars:     []string{"JWL_FETCH_SEARCH_PAGE_SIZE"},
		Default:     "100",
		Validate:    validatePositiveInt,
	},
	{
		Key:         "fetch.worklog_page_size",
		Description: "Worklogs requested per page (max 5000)",
		EnvVars:     []string{"JWL_FETCH_WORKLOG_PAGE_SIZE"},
		Default:     "1000",
		Validate:    validatePositiveInt,
	},
	{
		Key:         "fetch.retry_attempts",
		Description: "Retries of a failed search or worklog page",
		EnvVars:     []string{"JWL_FETCH_RETRY_ATTEMPTS"},
		Default:     "3",
		Validate:    validateNonNegativeInt,
	},
	{
		Key:         "fetch.retry_interval",
		Description: "Initial backoff between retries",
		EnvVars:     []string{"JWL_FETCH_RETRY_INTERVAL"},
		Default:     "500ms",
		Validate:    validateDuration,
	},
	{
		Key:         "update.workers",
		Description: "Worklog updates sent concurrently",
		EnvVars:     []string{"JWL_UPDATE_WORKERS"},
		Default:     "4",
		Validate:    validatePositiveInt,
	},
	{
		Key:         "update.serialize_edits",
		Description: "Run edits of the same worklog one at a time",
		EnvVars:     []string{"JWL_UPDATE_SERIALIZE_EDITS"},
		Default:     "false",
		Validate:    validateBool,
	},
	{
		Key:         "telemetry.enabled",
		Description: "Record request spans and metrics",
		EnvVars:     []string{"JWL_OTEL_ENABLED"},
		Default:     "false",
		Validate:    validateBool,
	},
	{
		Key:         "telemetry.metrics_endpoint",
		Description: "OTLP/HTTP metrics endpoint (empty = stdout)",
		EnvVars:     []string{"JWL_OTEL_METRICS_URL"},
	},
}

// LookupKey returns the definition of key, or nil.
func LookupKey(key string) *Key {
	for i := range Keys {
		if Keys[i].Key == key {
			return &Keys[i]
		}
	}
	return nil
}

// ValidateKey checks that key is known and value acceptable for it.
func ValidateKey(key, value string) error {
	k := LookupKey(key)
	if k == nil {
		return fmt.Errorf("unknown config key %q", key)
	}
	if k.Validate == nil || value == "" {
		return nil
	}
	if err := k.Validate(value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// Mask hides all but the last four characters of a secret.
func Mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

func validateURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("invalid URL %q (expected http(s)://host)", value)
	}
	return nil
}

func validateDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", value)
	}
	return nil
}

func validatePositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return fmt.Errorf("invalid value %q (expected a positive integer)", value)
	}
	return nil
}

func validateNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid value %q (expected 0 or more)", value)
	}
	return nil
}

func validateBool(value string) error {
	switch strings.ToLower(value) {
	case "true", "false", "1", "0", "yes", "no":
		return nil
	default:
		return fmt.Errorf("invalid boolean %q", value)
	}
}
