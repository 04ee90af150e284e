package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// StartedLayout is the timestamp layout Jira expects for "started".
const StartedLayout = "2006-01-02T15:04:05.000-0700"

// Update is a field-level change to one worklog. Nil fields are not sent.
type Update struct {
	TimeSpentSeconds *int
	Comment          *string
	Started          *time.Time
}

// Fields names the fields the update carries, in wire order.
func (u Update) Fields() []string {
	var fields []string
	if u.TimeSpentSeconds != nil {
		fields = append(fields, "timeSpentSeconds")
	}
	if u.Comment != nil {
		fields = append(fields, "comment")
	}
	if u.Started != nil {
		fields = append(fields, "started")
	}
	return fields
}

// IsEmpty reports whether the update carries no fields.
func (u Update) IsEmpty() bool {
	return u.TimeSpentSeconds == nil && u.Comment == nil && u.Started == nil
}

// Dispatcher applies a single worklog update. *Client implements it.
type Dispatcher interface {
	UpdateWorklog(ctx context.Context, issueKey, worklogID string, upd Update) (*Entry, error)
}

var _ Dispatcher = (*Client)(nil)

// UpdateWorklog sends every supplied field of upd in one PUT. Omitted
// fields are left out of the payload so Jira keeps their current values.
// On failure the returned error is an *UpdateError and none of the fields
// should be considered applied.
func (c *Client) UpdateWorklog(ctx context.Context, issueKey, worklogID string, upd Update) (*Entry, error) {
	fields := upd.Fields()
	fail := func(err error) error {
		return &UpdateError{IssueKey: issueKey, EntryID: worklogID, Fields: fields, Err: err}
	}

	if issueKey == "" || worklogID == "" {
		return nil, fail(&ValidationError{Field: "worklog", Message: "issue key and worklog id are required"})
	}
	if upd.IsEmpty() {
		return nil, fail(&ValidationError{Field: "update", Message: "no fields to change"})
	}

	req := worklogUpdateRequest{TimeSpentSeconds: upd.TimeSpentSeconds}
	if upd.TimeSpentSeconds != nil && *upd.TimeSpentSeconds < 0 {
		return nil, fail(&ValidationError{Field: "timeSpentSeconds", Value: fmt.Sprint(*upd.TimeSpentSeconds), Message: "must not be negative"})
	}
	if upd.Comment != nil {
		req.Comment = PlainTextToADF(*upd.Comment)
	}
	if upd.Started != nil {
		s := upd.Started.Format(StartedLayout)
		req.Started = &s
	}

	path := fmt.Sprintf("/issue/%s/worklog/%s", url.PathEscape(issueKey), url.PathEscape(worklogID))
	body, err := c.doRequest(ctx, http.MethodPut, path, nil, req)
	if err != nil {
		return nil, fail(err)
	}

	// The PUT succeeded; an unreadable body must not look like a failure.
	updated := Entry{IssueKey: issueKey}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &updated.Worklog); err != nil {
			c.Logger.Warn("unreadable worklog update response", "issue", issueKey, "worklog", worklogID, "error", err)
			updated.Worklog = Worklog{}
		}
	}
	if updated.ID == "" {
		updated.ID = worklogID
	}
	return &updated, nil
}
