package main

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/worklog-tools/jwl/internal/config"
	"github.com/worklog-tools/jwl/internal/debug"
	"github.com/worklog-tools/jwl/internal/jira"
	"github.com/worklog-tools/jwl/internal/session"
	"github.com/worklog-tools/jwl/internal/telemetry"
	"github.com/worklog-tools/jwl/internal/timeparsing"
	"github.com/worklog-tools/jwl/internal/worklog"
)

// statePath and now are variables so tests can pin them.
var (
	statePath = config.DefaultStatePath
	now       = time.Now
)

// eventLogPath is the local audit log of worklog edits, next to the state
// file.
func eventLogPath() string {
	p := statePath()
	if p == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(p), "events.log")
}

// newClient builds the Jira client from the loaded configuration.
func newClient() (*jira.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := cfg.JiraOptions()
	opts.UserAgent = "jwl/" + Version
	client := jira.NewClient(opts).WithLogger(logger)
	client.HTTPClient.Transport = telemetry.WrapTransport(http.DefaultTransport)
	return client, nil
}

func newFetcher(client *jira.Client) *worklog.Fetcher {
	return &worklog.Fetcher{
		Source:         client,
		SearchPageSize: cfg.Fetch.SearchPageSize,
		WorklogPage:    cfg.Fetch.WorklogPageSize,
		Workers:        cfg.Fetch.Workers,
		Retry:          cfg.RetryPolicy(),
		Logger:         logger,
	}
}

func newSession(client *jira.Client) *session.Session {
	return session.New(session.Options{
		Querier:        newFetcher(client),
		Dispatcher:     telemetry.WrapDispatcher(client),
		SerializeEdits: cfg.Update.SerializeEdits,
		Workers:        cfg.Update.Workers,
		Logger:         logger,
	})
}

// resolveDay parses a --date value.
func resolveDay(s string) (time.Time, error) {
	day, err := timeparsing.ParseDay(s, now())
	if err != nil {
		return time.Time{}, &jira.ValidationError{Field: "date", Value: s, Message: "use YYYY-MM-DD, today, yesterday, -1d or e.g. \"last friday\""}
	}
	return day, nil
}

// resolveAuthor returns the account id to query. An explicit value
// containing "@" is looked up as an email; any other explicit value is used
// as an account id. Without one the cached or current account is used.
func resolveAuthor(ctx context.Context, client *jira.Client, explicit string) (string, error) {
	explicit = strings.TrimSpace(explicit)
	if strings.Contains(explicit, "@") {
		u, err := client.FindUser(ctx, explicit)
		if err != nil {
			return "", err
		}
		if u == nil {
			return "", &jira.ValidationError{Field: "author", Value: explicit, Message: "no Jira user matches"}
		}
		return u.AccountID, nil
	}
	if explicit != "" {
		return explicit, nil
	}
	if id := config.LoadState(statePath()).AccountFor(cfg.Jira.URL); id != "" {
		debug.Logf("using cached account %s\n", id)
		return id, nil
	}
	u, err := currentUser(ctx, client)
	if err != nil {
		return "", err
	}
	return u.AccountID, nil
}

// currentUser asks Jira who the credentials belong to and caches the answer.
func currentUser(ctx context.Context, client *jira.Client) (*jira.User, error) {
	u, err := client.Myself(ctx)
	if err != nil {
		return nil, err
	}
	st := &config.State{JiraURL: cfg.Jira.URL, AccountID: u.AccountID, DisplayName: u.DisplayName}
	if err := config.SaveState(statePath(), st); err != nil {
		WarnError("failed to cache account: %v", err)
	}
	return u, nil
}

// loadDay fetches authorID's entries for day into s and waits for them.
func loadDay(ctx context.Context, s *session.Session, authorID string, day time.Time) error {
	if err := s.StartFetch(ctx, authorID, day); err != nil {
		return err
	}
	events, err := s.Wait(ctx)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Kind == session.FetchFailed {
			return ev.Err
		}
	}
	return nil
}
