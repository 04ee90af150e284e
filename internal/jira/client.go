package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Options holds everything needed to construct a Client. It is built once
// from configuration and passed in explicitly.
type Options struct {
	URL       string // e.g. https://company.atlassian.net
	Email     string // principal; empty means bearer auth with a PAT
	APIToken  string
	Timeout   time.Duration
	UserAgent string
}

// Client provides authenticated HTTP access to a Jira instance.
// It performs no retries; retry policy belongs to callers.
type Client struct {
	URL        string
	Email      string
	APIToken   string
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a new Jira client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "jwl/1.0"
	}
	return &Client{
		URL:       strings.TrimSuffix(opts.URL, "/"),
		Email:     opts.Email,
		APIToken:  opts.APIToken,
		UserAgent: ua,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithHTTPClient replaces the underlying HTTP client, keeping its timeout
// responsibility with the caller.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.HTTPClient = hc
	return c
}

// WithLogger sets the logger used for request tracing.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	if l != nil {
		c.Logger = l
	}
	return c
}

// Myself returns the account behind the client's credentials.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/myself", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}
	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("parse current user: %w", err)
	}
	return &u, nil
}

// FindUser searches users by email or name and returns the first match,
// or nil when nothing matches.
func (c *Client) FindUser(ctx context.Context, query string) (*User, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Field: "query", Message: "must not be empty"}
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/user/search", url.Values{"query": {query}}, nil)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	var users []User
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("parse user search: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// BuildIssueURL returns the browse URL for an issue key.
func (c *Client) BuildIssueURL(key string) string {
	return fmt.Sprintf("%s/browse/%s", c.URL, key)
}

// doRequest executes an authenticated request against the REST v3 API and
// returns the response body. path is relative to /rest/api/3.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload interface{}) ([]byte, error) {
	if c.URL == "" || c.APIToken == "" {
		return nil, ErrNotConfigured
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	apiURL := c.URL + apiPrefix + path
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)

	c.Logger.Debug("jira request", "method", method, "path", path)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	c.Logger.Debug("jira response", "method", method, "path", path, "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: truncateBody(respBody)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(respBody),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return respBody, nil
}

// setAuth sets the appropriate authentication header on the request.
// Cloud uses basic auth with email:token; Server/DC PATs use bearer.
func (c *Client) setAuth(req *http.Request) {
	if c.Email != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Email + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}
