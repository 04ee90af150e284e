package jira_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worklog-tools/jwl/internal/jira"
	"github.com/worklog-tools/jwl/internal/testutil"
)

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func newUpdateMock(t *testing.T) *testutil.MockJira {
	t.Helper()
	mock := testutil.NewMockJira()
	t.Cleanup(mock.Close)
	mock.AddWorklog("PROJ-1", testutil.MakeWorklog("10", "acc-me", "2025-09-17T09:00:00.000+0900", 3600, "old"))
	return mock
}

func lastPutBody(t *testing.T, mock *testutil.MockJira) map[string]json.RawMessage {
	t.Helper()
	var body map[string]json.RawMessage
	reqs := mock.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == http.MethodPut {
			require.NoError(t, json.Unmarshal(reqs[i].Body, &body))
			return body
		}
	}
	t.Fatal("no PUT recorded")
	return nil
}

func TestUpdateWorklogSendsOnlySuppliedFields(t *testing.T) {
	mock := newUpdateMock(t)

	entry, err := mock.Client().UpdateWorklog(context.Background(), "PROJ-1", "10", jira.Update{TimeSpentSeconds: intPtr(5400)})
	require.NoError(t, err)
	assert.Equal(t, 5400, entry.TimeSpentSeconds)
	assert.Equal(t, "PROJ-1", entry.IssueKey)

	body := lastPutBody(t, mock)
	assert.Contains(t, body, "timeSpentSeconds")
	assert.NotContains(t, body, "comment")
	assert.NotContains(t, body, "started")

	stored, ok := mock.Worklog("PROJ-1", "10")
	require.True(t, ok)
	assert.Equal(t, 5400, stored.TimeSpentSeconds)
	assert.Equal(t, "old", jira.ExtractComment(stored.Comment), "comment must be untouched")
}

func TestUpdateWorklogCommentAsRichText(t *testing.T) {
	mock := newUpdateMock(t)

	_, err := mock.Client().UpdateWorklog(context.Background(), "PROJ-1", "10", jira.Update{Comment: strPtr("reviewed PR")})
	require.NoError(t, err)

	body := lastPutBody(t, mock)
	var doc jira.ADFDocument
	require.NoError(t, json.Unmarshal(body["comment"], &doc))
	assert.Equal(t, "doc", doc.Type)
	assert.Equal(t, "reviewed PR", jira.ExtractComment(body["comment"]))
	assert.NotContains(t, body, "timeSpentSeconds")
}

func TestUpdateWorklogAllFieldsInOneRequest(t *testing.T) {
	mock := newUpdateMock(t)
	started := time.Date(2025, 9, 17, 8, 30, 0, 0, time.FixedZone("", 9*3600))

	_, err := mock.Client().UpdateWorklog(context.Background(), "PROJ-1", "10", jira.Update{
		TimeSpentSeconds: intPtr(60),
		Comment:          strPtr("x"),
		Started:          timePtr(started),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, mock.RequestCount(http.MethodPut, "/rest/api/3/issue/PROJ-1/worklog/10"))

	body := lastPutBody(t, mock)
	var s string
	require.NoError(t, json.Unmarshal(body["started"], &s))
	assert.Equal(t, "2025-09-17T08:30:00.000+0900", s)
}

func TestUpdateWorklogValidationSendsNothing(t *testing.T) {
	mock := newUpdateMock(t)
	client := mock.Client()

	cases := map[string]struct {
		key, id string
		upd     jira.Update
	}{
		"empty update":     {"PROJ-1", "10", jira.Update{}},
		"negative seconds": {"PROJ-1", "10", jira.Update{TimeSpentSeconds: intPtr(-1)}},
		"missing id":       {"PROJ-1", "", jira.Update{TimeSpentSeconds: intPtr(1)}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := client.UpdateWorklog(context.Background(), tc.key, tc.id, tc.upd)
			var ue *jira.UpdateError
			require.True(t, errors.As(err, &ue), "want *UpdateError, got %v", err)
			var ve *jira.ValidationError
			assert.True(t, errors.As(err, &ve), "want wrapped *ValidationError, got %v", err)
		})
	}
	assert.Zero(t, mock.RequestCount(http.MethodPut, "/"))
}

func TestUpdateWorklogFailureIsUpdateError(t *testing.T) {
	mock := newUpdateMock(t)
	mock.FailUpdate("10", http.StatusBadRequest)

	_, err := mock.Client().UpdateWorklog(context.Background(), "PROJ-1", "10", jira.Update{TimeSpentSeconds: intPtr(1), Comment: strPtr("c")})
	var ue *jira.UpdateError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "PROJ-1", ue.IssueKey)
	assert.Equal(t, "10", ue.EntryID)
	assert.Equal(t, []string{"timeSpentSeconds", "comment"}, ue.Fields)
	assert.True(t, jira.IsTransportError(err), "400 from Jira stays a transport error")

	stored, _ := mock.Worklog("PROJ-1", "10")
	assert.Equal(t, 3600, stored.TimeSpentSeconds)
}

func TestUpdateWorklogAuthFailure(t *testing.T) {
	mock := newUpdateMock(t)
	mock.SetAuthError(true)

	_, err := mock.Client().UpdateWorklog(context.Background(), "PROJ-1", "10", jira.Update{TimeSpentSeconds: intPtr(1)})
	assert.True(t, jira.IsAuthError(err))
}

func TestUpdateFields(t *testing.T) {
	assert.True(t, jira.Update{}.IsEmpty())
	assert.Nil(t, jira.Update{}.Fields())
	assert.Equal(t, []string{"started"}, jira.Update{Started: timePtr(time.Now())}.Fields())
}
