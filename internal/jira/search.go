package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// SearchIssueKeys runs a JQL query and returns the sorted, de-duplicated set
// of matching issue keys. It follows nextPageToken until Jira stops
// returning one. An empty first page is a normal, empty result.
func (c *Client) SearchIssueKeys(ctx context.Context, jql string, pageSize int) ([]string, error) {
	issues, err := c.search(ctx, jql, pageSize, []string{"key"})
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(issues))
	for i, issue := range issues {
		keys[i] = issue.Key
	}
	return keys, nil
}

// SearchIssues is SearchIssueKeys with each issue's summary and project.
func (c *Client) SearchIssues(ctx context.Context, jql string, pageSize int) ([]IssueRef, error) {
	return c.search(ctx, jql, pageSize, []string{"summary", "project"})
}

func (c *Client) search(ctx context.Context, jql string, pageSize int, fields []string) ([]IssueRef, error) {
	if strings.TrimSpace(jql) == "" {
		return nil, &ValidationError{Field: "jql", Message: "must not be empty"}
	}
	pageSize = clampPageSize(pageSize, MaxPageSize)

	seen := make(map[string]IssueRef)
	tokens := make(map[string]struct{})
	token := ""

	for page := 1; ; page++ {
		req := SearchRequest{
			JQL:           jql,
			Fields:        fields,
			MaxResults:    pageSize,
			NextPageToken: token,
		}

		body, err := c.doRequest(ctx, http.MethodPost, "/search/jql", nil, req)
		if err != nil {
			return nil, fmt.Errorf("search issues (page %d): %w", page, err)
		}

		var resp SearchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parse search response: %w", err)
		}

		for _, issue := range resp.Issues {
			if issue.Key != "" {
				seen[issue.Key] = issue
			}
		}

		if resp.NextPageToken == "" {
			break
		}
		// A token we have already followed would loop forever.
		if _, dup := tokens[resp.NextPageToken]; dup {
			c.Logger.Warn("jira returned a repeated page token, stopping search", "page", page)
			break
		}
		tokens[resp.NextPageToken] = struct{}{}
		token = resp.NextPageToken
	}

	issues := make([]IssueRef, 0, len(seen))
	for _, issue := range seen {
		issues = append(issues, issue)
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].Key < issues[j].Key })
	return issues, nil
}

// WorklogJQL builds the query selecting issues with worklogs by accountID on day.
func WorklogJQL(accountID string, day time.Time) string {
	d := day.Format("2006-01-02")
	return fmt.Sprintf("worklogAuthor = %q AND worklogDate >= %q AND worklogDate <= %q",
		accountID, d, d)
}

func clampPageSize(n, max int) int {
	if n <= 0 || n > max {
		return max
	}
	return n
}
