package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/worklog-tools/jwl/internal/lockfile"
)

// State is data jwl remembers between runs. It is a cache: losing it only
// costs an extra request.
type State struct {
	// JiraURL is the instance the cached account belongs to.
	JiraURL     string `yaml:"jira_url,omitempty"`
	AccountID   string `yaml:"account_id,omitempty"`
	DisplayName string `yaml:"display_name,omitempty"`
}

// AccountFor returns the cached account id if it was recorded for jiraURL.
func (s *State) AccountFor(jiraURL string) string {
	if s == nil || s.JiraURL != jiraURL {
		return ""
	}
	return s.AccountID
}

// DefaultStatePath returns $XDG_STATE_HOME/jwl/state.yaml, falling back to
// ~/.local/state/jwl/state.yaml.
func DefaultStatePath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, appName, "state.yaml")
}

// LoadState reads the state file. A missing or unreadable file yields an
// empty State.
func LoadState(path string) *State {
	data, err := os.ReadFile(path) // #nosec G304 - state path from caller
	if err != nil {
		return &State{}
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return &State{}
	}
	return &st
}

// SaveState writes st to path, creating parent directories.
func SaveState(path string, st *State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	// Concurrent jwl processes share the temp file name.
	return lockfile.With(path, 2*time.Second, func() error {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			return fmt.Errorf("failed to write state: %w", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("failed to replace state: %w", err)
		}
		return nil
	})
}
