// Package config loads jwl settings from a YAML file and the environment
// into an explicit Config value. There is no package-level state: every
// Load builds its own viper instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/worklog-tools/jwl/internal/jira"
	"github.com/worklog-tools/jwl/internal/worklog"
)

const appName = "jwl"

// Jira holds the connection settings.
type Jira struct {
	URL      string
	Email    string
	APIToken string
	Timeout  time.Duration
}

// Fetch holds search and worklog retrieval settings.
type Fetch struct {
	Workers         int
	SearchPageSize  int
	WorklogPageSize int
	RetryAttempts   int
	RetryInterval   time.Duration
}

// Update holds worklog update settings.
type Update struct {
	Workers        int
	SerializeEdits bool
}

// Telemetry holds OpenTelemetry settings.
type Telemetry struct {
	Enabled         bool
	MetricsEndpoint string
}

// Config is the effective configuration. It is built once and passed to
// the components that need it.
type Config struct {
	Jira      Jira
	Fetch     Fetch
	Update    Update
	Telemetry Telemetry

	// File is the config file that was read, or "" if none.
	File string
}

// DefaultPath returns $XDG_CONFIG_HOME/jwl/config.yaml, falling back to
// ~/.config/jwl/config.yaml.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appName, "config.yaml")
}

// Load reads the config file at path (DefaultPath when empty) and applies
// environment overrides. A missing file is only an error when path was
// given explicitly.
func Load(path string) (Config, error) {
	v, file, err := newViper(path)
	if err != nil {
		return Config{}, err
	}

	for _, k := range Keys {
		if err := ValidateKey(k.Key, v.GetString(k.Key)); err != nil {
			return Config{}, err
		}
	}

	return Config{
		Jira: Jira{
			URL:      v.GetString("jira.url"),
			Email:    v.GetString("jira.email"),
			APIToken: v.GetString("jira.api_token"),
			Timeout:  v.GetDuration("jira.timeout"),
		},
		Fetch: Fetch{
			Workers:         v.GetInt("fetch.workers"),
			SearchPageSize:  v.GetInt("fetch.search_page_size"),
			WorklogPageSize: v.GetInt("fetch.worklog_page_size"),
			RetryAttempts:   v.GetInt("fetch.retry_attempts"),
			RetryInterval:   v.GetDuration("fetch.retry_interval"),
		},
		Update: Update{
			Workers:        v.GetInt("update.workers"),
			SerializeEdits: v.GetBool("update.serialize_edits"),
		},
		Telemetry: Telemetry{
			Enabled:         v.GetBool("telemetry.enabled"),
			MetricsEndpoint: v.GetString("telemetry.metrics_endpoint"),
		},
		File: file,
	}, nil
}

// Values returns the effective string value of every known key, for
// display. Secrets are masked.
func Values(path string) (map[string]string, error) {
	v, _, err := newViper(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(Keys))
	for _, k := range Keys {
		val := v.GetString(k.Key)
		if k.Secret && val != "" {
			val = Mask(val)
		}
		out[k.Key] = val
	}
	return out, nil
}

func newViper(path string) (*viper.Viper, string, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	for _, k := range Keys {
		if k.Default != "" {
			v.SetDefault(k.Key, k.Default)
		}
		args := append([]string{k.Key}, k.EnvVars...)
		if err := v.BindEnv(args...); err != nil {
			return nil, "", fmt.Errorf("bind env for %s: %w", k.Key, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path == "" {
		return v, "", nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return v, "", nil
		}
		return nil, "", fmt.Errorf("config file %s: %w", path, err)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, "", fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return v, path, nil
}

// Validate reports missing connection settings.
func (c Config) Validate() error {
	if c.Jira.URL == "" {
		return &jira.ValidationError{Field: "jira.url", Message: "not set (config file, JWL_JIRA_URL or JIRA_URL)"}
	}
	if c.Jira.APIToken == "" {
		return &jira.ValidationError{Field: "jira.api_token", Message: "not set (config file, JWL_JIRA_API_TOKEN or JIRA_API_TOKEN)"}
	}
	return nil
}

// JiraOptions returns the client options for this configuration.
func (c Config) JiraOptions() jira.Options {
	return jira.Options{
		URL:      c.Jira.URL,
		Email:    c.Jira.Email,
		APIToken: c.Jira.APIToken,
		Timeout:  c.Jira.Timeout,
	}
}

// RetryPolicy returns the fetch retry policy for this configuration.
func (c Config) RetryPolicy() worklog.RetryPolicy {
	p := worklog.DefaultRetryPolicy
	p.MaxRetries = uint64(c.Fetch.RetryAttempts)
	if c.Fetch.RetryInterval > 0 {
		p.InitialInterval = c.Fetch.RetryInterval
	}
	return p
}
