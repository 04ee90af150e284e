package worklog

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/worklog-tools/jwl/internal/jira"
)

// Source is the read side of the Jira client.
type Source interface {
	SearchIssues(ctx context.Context, jql string, pageSize int) ([]jira.IssueRef, error)
	Worklogs(ctx context.Context, issueKey string, pageSize int) iter.Seq2[jira.Entry, error]
}

var _ Source = (*jira.Client)(nil)

// RetryPolicy controls retries of transport failures during search and
// fetch. Authentication and validation errors are never retried. The zero
// value does not retry.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy retries a failed page up to three times.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxElapsed:      30 * time.Second,
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	// BackOff implementations are stateful; always build a fresh one.
	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	bo.MaxElapsedTime = p.MaxElapsed
	return backoff.WithContext(backoff.WithMaxRetries(bo, p.MaxRetries), ctx)
}

// Fetcher runs the search-then-fetch pipeline for one author and day.
type Fetcher struct {
	Source         Source
	SearchPageSize int
	WorklogPage    int
	Workers        int
	Retry          RetryPolicy
	Logger         *slog.Logger
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.Logger
}

// withRetry runs op, retrying only transport failures.
func (f *Fetcher) withRetry(ctx context.Context, what string, op func() error) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !jira.IsTransportError(err) {
			return backoff.Permanent(err)
		}
		f.logger().Debug("retrying after transport error", "op", what, "attempt", attempt, "error", err)
		return err
	}, f.Retry.backOff(ctx))
}

// Fetch returns every worklog on every issue where authorID logged time on
// day, grouped by issue in sorted key order. Entries are not yet filtered:
// issues matched by the search also carry other authors' and other days'
// worklogs. Any search or fetch failure aborts the whole query and no
// partial result is returned.
func (f *Fetcher) Fetch(ctx context.Context, authorID string, day time.Time) ([]jira.Entry, error) {
	if authorID == "" {
		return nil, &ValidationError{Field: "author", Message: "account id is required"}
	}

	jql := jira.WorklogJQL(authorID, day)
	var issues []jira.IssueRef
	err := f.withRetry(ctx, "search", func() error {
		var err error
		issues, err = f.Source.SearchIssues(ctx, jql, f.SearchPageSize)
		return err
	})
	if err != nil {
		return nil, err
	}
	f.logger().Debug("issues with worklogs", "count", len(issues), "day", day.Format(DayLayout))

	workers := f.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	perIssue := make([][]jira.Entry, len(issues))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, issue := range issues {
		g.Go(func() error {
			return f.withRetry(gctx, "worklogs "+issue.Key, func() error {
				entries, err := collect(f.Source.Worklogs(gctx, issue.Key, f.WorklogPage))
				for j := range entries {
					entries[j].Summary = issue.Summary()
					entries[j].Project = issue.ProjectName()
				}
				perIssue[i] = entries
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []jira.Entry
	seen := make(map[string]struct{})
	for _, entries := range perIssue {
		for _, e := range entries {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			all = append(all, e)
		}
	}
	return all, nil
}

// Query fetches and aggregates authorID's entries for day.
func (f *Fetcher) Query(ctx context.Context, authorID string, day time.Time) (Result, error) {
	entries, err := f.Fetch(ctx, authorID, day)
	if err != nil {
		return Result{}, fmt.Errorf("query worklogs for %s: %w", day.Format(DayLayout), err)
	}
	return Aggregate(entries, authorID, day), nil
}

func collect(seq iter.Seq2[jira.Entry, error]) ([]jira.Entry, error) {
	var out []jira.Entry
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
