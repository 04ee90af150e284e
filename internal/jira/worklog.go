package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
)

// Worklogs returns a lazy sequence over every worklog of issueKey using
// offset pagination. Each range over the sequence starts again from offset
// 0. Iteration stops once the offset reaches the reported total or a page
// comes back empty, so a stale or zero total cannot cause an endless loop.
// A request error is yielded once and ends the sequence.
func (c *Client) Worklogs(ctx context.Context, issueKey string, pageSize int) iter.Seq2[Entry, error] {
	pageSize = clampPageSize(pageSize, MaxWorklogPageSize)
	path := fmt.Sprintf("/issue/%s/worklog", url.PathEscape(issueKey))

	return func(yield func(Entry, error) bool) {
		if issueKey == "" {
			yield(Entry{}, &ValidationError{Field: "issue key", Message: "must not be empty"})
			return
		}

		offset := 0
		for {
			query := url.Values{
				"startAt":    {strconv.Itoa(offset)},
				"maxResults": {strconv.Itoa(pageSize)},
			}
			body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
			if err != nil {
				yield(Entry{}, fmt.Errorf("fetch worklogs for %s at offset %d: %w", issueKey, offset, err))
				return
			}

			var page WorklogPage
			if err := json.Unmarshal(body, &page); err != nil {
				yield(Entry{}, fmt.Errorf("parse worklogs for %s: %w", issueKey, err))
				return
			}

			for _, w := range page.Worklogs {
				if !yield(Entry{IssueKey: issueKey, Worklog: w}, nil) {
					return
				}
			}

			offset += len(page.Worklogs)
			if len(page.Worklogs) == 0 || offset >= page.Total {
				return
			}
		}
	}
}

// CollectWorklogs drains Worklogs into a slice, failing on the first error.
func (c *Client) CollectWorklogs(ctx context.Context, issueKey string, pageSize int) ([]Entry, error) {
	var entries []Entry
	for e, err := range c.Worklogs(ctx, issueKey, pageSize) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
