// Package testutil provides a mock Jira server for package tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/worklog-tools/jwl/internal/jira"
)

// RecordedRequest stores information about a request made to the mock server.
type RecordedRequest struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
	Body    []byte
}

// MockJira serves the subset of the Jira REST v3 API used by jwl:
// /myself, /user/search, /search/jql, and issue worklog GET/PUT.
type MockJira struct {
	Server *httptest.Server
	mu     sync.Mutex

	requests []RecordedRequest

	Me        jira.User
	Users     []jira.User
	IssueKeys []string                  // returned by search, in order, duplicates allowed
	Worklogs  map[string][]jira.Worklog // issue key -> worklogs
	// Issues holds the fields search returns when summary is requested.
	Issues map[string]jira.IssueFields

	// TotalOverride replaces the reported worklog total when >= 0.
	TotalOverride int
	// RepeatToken makes search always return the same continuation token.
	RepeatToken bool

	authError     bool
	serverError   bool
	failUpdates   map[string]int // worklog id -> status
	updateDelayCh chan struct{}
}

// NewMockJira creates and starts a mock Jira server.
func NewMockJira() *MockJira {
	m := &MockJira{
		Me:            jira.User{AccountID: "acc-me", DisplayName: "Me"},
		Worklogs:      make(map[string][]jira.Worklog),
		Issues:        make(map[string]jira.IssueFields),
		TotalOverride: -1,
		failUpdates:   make(map[string]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handleRequest))
	return m
}

// URL returns the mock server URL.
func (m *MockJira) URL() string {
	return m.Server.URL
}

// Close shuts down the mock server.
func (m *MockJira) Close() {
	m.Server.Close()
}

// Client returns a jira.Client pointed at the mock server.
func (m *MockJira) Client() *jira.Client {
	return jira.NewClient(jira.Options{URL: m.URL(), Email: "me@example.com", APIToken: "token"})
}

// SetAuthError makes every request fail with 401.
func (m *MockJira) SetAuthError(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authError = enabled
}

// SetServerError makes every request fail with 500.
func (m *MockJira) SetServerError(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serverError = enabled
}

// FailUpdate makes PUTs to worklogID fail with status.
func (m *MockJira) FailUpdate(worklogID string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUpdates[worklogID] = status
}

// HoldUpdates blocks every PUT until the returned release func is called.
func (m *MockJira) HoldUpdates() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.updateDelayCh = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// AddWorklog appends a worklog to issueKey, registering the key for search.
func (m *MockJira) AddWorklog(issueKey string, w jira.Worklog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Worklogs[issueKey]; !ok {
		m.IssueKeys = append(m.IssueKeys, issueKey)
	}
	m.Worklogs[issueKey] = append(m.Worklogs[issueKey], w)
}

// SetIssue records the summary and project search reports for issueKey.
func (m *MockJira) SetIssue(issueKey, summary, projectKey, projectName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Issues[issueKey] = jira.IssueFields{Summary: summary, Project: &jira.Project{Key: projectKey, Name: projectName}}
}

// Worklog returns the current server-side copy of a worklog.
func (m *MockJira) Worklog(issueKey, id string) (jira.Worklog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.Worklogs[issueKey] {
		if w.ID == id {
			return w, true
		}
	}
	return jira.Worklog{}, false
}

// Requests returns all recorded requests.
func (m *MockJira) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of recorded requests matching method and
// path prefix.
func (m *MockJira) RequestCount(method, pathPrefix string) int {
	n := 0
	for _, r := range m.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			n++
		}
	}
	return n
}

func (m *MockJira) handleRequest(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Headers: r.Header.Clone(),
		Body:    body,
	})
	authError, serverError := m.authError, m.serverError
	m.mu.Unlock()

	if authError {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]string{"error": "Unauthorized"})
		return
	}
	if serverError {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]string{"error": "Internal server error"})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/rest/api/3")
	switch {
	case path == "/myself" && r.Method == http.MethodGet:
		writeJSON(w, m.Me)
	case path == "/user/search" && r.Method == http.MethodGet:
		m.handleUserSearch(w, r)
	case path == "/search/jql" && r.Method == http.MethodPost:
		m.handleSearch(w, body)
	case strings.HasPrefix(path, "/issue/") && strings.HasSuffix(path, "/worklog") && r.Method == http.MethodGet:
		m.handleWorklogs(w, r, strings.TrimSuffix(strings.TrimPrefix(path, "/issue/"), "/worklog"))
	case strings.HasPrefix(path, "/issue/") && strings.Contains(path, "/worklog/") && r.Method == http.MethodPut:
		parts := strings.Split(strings.TrimPrefix(path, "/issue/"), "/worklog/")
		m.handleUpdate(w, parts[0], parts[1], body)
	default:
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]string{"error": "Not found"})
	}
}

func (m *MockJira) handleUserSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("query"))
	m.mu.Lock()
	defer m.mu.Unlock()
	matches := []jira.User{}
	for _, u := range m.Users {
		if strings.Contains(strings.ToLower(u.EmailAddress), q) || strings.Contains(strings.ToLower(u.DisplayName), q) {
			matches = append(matches, u)
		}
	}
	writeJSON(w, matches)
}

// handleSearch pages through IssueKeys. The continuation token is the
// decimal offset of the next page.
func (m *MockJira) handleSearch(w http.ResponseWriter, body []byte) {
	var req jira.SearchRequest
	if err := json.Unmarshal(body, &req); err != nil || req.JQL == "" {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"error": "bad search request"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	offset, _ := strconv.Atoi(req.NextPageToken)
	size := req.MaxResults
	if size <= 0 {
		size = 50
	}
	end := offset + size
	if end > len(m.IssueKeys) {
		end = len(m.IssueKeys)
	}

	resp := jira.SearchResponse{Issues: []jira.IssueRef{}}
	if offset < len(m.IssueKeys) {
		for _, k := range m.IssueKeys[offset:end] {
			ref := jira.IssueRef{Key: k}
			if f, ok := m.Issues[k]; ok && slices.Contains(req.Fields, "summary") {
				ref.Fields = &f
			}
			resp.Issues = append(resp.Issues, ref)
		}
	}
	switch {
	case m.RepeatToken:
		resp.NextPageToken = "same"
	case end < len(m.IssueKeys):
		resp.NextPageToken = strconv.Itoa(end)
	default:
		resp.IsLast = true
	}
	writeJSON(w, resp)
}

func (m *MockJira) handleWorklogs(w http.ResponseWriter, r *http.Request, key string) {
	startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
	maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))

	m.mu.Lock()
	defer m.mu.Unlock()

	all, ok := m.Worklogs[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]string{"error": "Issue does not exist"})
		return
	}
	if maxResults <= 0 {
		maxResults = len(all)
	}
	end := startAt + maxResults
	if end > len(all) {
		end = len(all)
	}
	page := []jira.Worklog{}
	if startAt < len(all) {
		page = append(page, all[startAt:end]...)
	}
	total := len(all)
	if m.TotalOverride >= 0 {
		total = m.TotalOverride
	}
	writeJSON(w, jira.WorklogPage{StartAt: startAt, MaxResults: maxResults, Total: total, Worklogs: page})
}

func (m *MockJira) handleUpdate(w http.ResponseWriter, key, id string, body []byte) {
	m.mu.Lock()
	hold := m.updateDelayCh
	status, fail := m.failUpdates[id]
	m.mu.Unlock()

	if hold != nil {
		<-hold
	}
	if fail {
		w.WriteHeader(status)
		writeJSON(w, map[string]string{"error": "update rejected"})
		return
	}

	var req struct {
		TimeSpentSeconds *int            `json:"timeSpentSeconds"`
		Comment          json.RawMessage `json:"comment"`
		Started          *string         `json:"started"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"error": "bad body"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, wl := range m.Worklogs[key] {
		if wl.ID != id {
			continue
		}
		if req.TimeSpentSeconds != nil {
			wl.TimeSpentSeconds = *req.TimeSpentSeconds
			wl.TimeSpent = strconv.Itoa(wl.TimeSpentSeconds/60) + "m"
		}
		if len(req.Comment) > 0 {
			wl.Comment = req.Comment
		}
		if req.Started != nil {
			wl.Started = *req.Started
		}
		m.Worklogs[key][i] = wl
		writeJSON(w, wl)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	writeJSON(w, map[string]string{"error": "Worklog not found"})
}

// MakeWorklog creates a test worklog with a plain string comment.
func MakeWorklog(id, accountID, started string, seconds int, comment string) jira.Worklog {
	c, _ := json.Marshal(comment)
	return jira.Worklog{
		ID:               id,
		Author:           jira.User{AccountID: accountID, DisplayName: "User " + accountID},
		Started:          started,
		TimeSpentSeconds: seconds,
		TimeSpent:        strconv.Itoa(seconds/60) + "m",
		Comment:          c,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
