// Package jira provides the authenticated Jira REST client, paginated
// search and worklog retrieval, comment extraction and worklog updates.
package jira

import (
	"encoding/json"
	"time"
)

// API constants
const (
	DefaultTimeout = 30 * time.Second
	MaxPageSize    = 100

	// MaxWorklogPageSize is the largest maxResults the worklog endpoint honors.
	MaxWorklogPageSize = 5000

	apiPrefix = "/rest/api/3"
)

// User represents a Jira user.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// Worklog is a worklog entry as returned by the REST API.
type Worklog struct {
	ID               string          `json:"id"`
	IssueID          string          `json:"issueId,omitempty"`
	Author           User            `json:"author"`
	Started          string          `json:"started"`
	TimeSpent        string          `json:"timeSpent"`
	TimeSpentSeconds int             `json:"timeSpentSeconds"`
	Comment          json.RawMessage `json:"comment,omitempty"` // ADF document or plain string
}

// Entry is a worklog bound to the issue it was fetched from. Summary and
// Project are filled from the search result when known.
type Entry struct {
	IssueKey string
	Summary  string
	Project  string
	Worklog
}

// CommentText returns the entry's comment as plain text.
func (e Entry) CommentText() string {
	return ExtractComment(e.Comment)
}

// StartTime parses the entry's start timestamp.
func (e Entry) StartTime() (time.Time, error) {
	return ParseTimestamp(e.Started)
}

// WorklogPage is the response of GET /issue/{key}/worklog.
type WorklogPage struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Worklogs   []Worklog `json:"worklogs"`
}

// SearchRequest is the body of POST /search/jql.
type SearchRequest struct {
	JQL           string   `json:"jql"`
	Fields        []string `json:"fields"`
	MaxResults    int      `json:"maxResults"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

// SearchResponse is the token-paginated response of POST /search/jql.
type SearchResponse struct {
	Issues        []IssueRef `json:"issues"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
	IsLast        bool       `json:"isLast,omitempty"`
}

// IssueRef is the minimal issue representation returned by search.
type IssueRef struct {
	ID     string       `json:"id,omitempty"`
	Key    string       `json:"key"`
	Fields *IssueFields `json:"fields,omitempty"`
}

// IssueFields holds the issue fields requested by SearchIssues.
type IssueFields struct {
	Summary string   `json:"summary,omitempty"`
	Project *Project `json:"project,omitempty"`
}

// Project is the project an issue belongs to.
type Project struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Summary returns the issue summary, or "" when it was not requested.
func (r IssueRef) Summary() string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields.Summary
}

// ProjectName returns the project name, or "" when it was not requested.
func (r IssueRef) ProjectName() string {
	if r.Fields == nil || r.Fields.Project == nil {
		return ""
	}
	return r.Fields.Project.Name
}

// worklogUpdateRequest is the partial body of PUT /issue/{key}/worklog/{id}.
// Every field is optional; omitted fields are left untouched by Jira.
type worklogUpdateRequest struct {
	TimeSpentSeconds *int         `json:"timeSpentSeconds,omitempty"`
	Comment          *ADFDocument `json:"comment,omitempty"`
	Started          *string      `json:"started,omitempty"`
}

// ADFDocument represents an Atlassian Document Format document.
type ADFDocument struct {
	Version int       `json:"version"`
	Type    string    `json:"type"`
	Content []ADFNode `json:"content"`
}

// ADFNode is the wire shape of one node in an ADF document.
type ADFNode struct {
	Type    string                 `json:"type"`
	Text    string                 `json:"text,omitempty"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
	Content []ADFNode              `json:"content,omitempty"`
}
