package jira_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/worklog-tools/jwl/internal/jira"
	"github.com/worklog-tools/jwl/internal/testutil"
)

func TestSearchIssueKeysPaginationMatchesSinglePage(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()
	for i := 1; i <= 23; i++ {
		mock.IssueKeys = append(mock.IssueKeys, fmt.Sprintf("PROJ-%d", i))
	}
	client := mock.Client()
	ctx := context.Background()

	paged, err := client.SearchIssueKeys(ctx, "project = PROJ", 5)
	if err != nil {
		t.Fatalf("SearchIssueKeys(page 5) error = %v", err)
	}
	single, err := client.SearchIssueKeys(ctx, "project = PROJ", 100)
	if err != nil {
		t.Fatalf("SearchIssueKeys(page 100) error = %v", err)
	}

	if !reflect.DeepEqual(paged, single) {
		t.Errorf("paged = %v, single = %v", paged, single)
	}
	if len(paged) != 23 {
		t.Errorf("got %d keys, want 23", len(paged))
	}
	if n := mock.RequestCount(http.MethodPost, "/rest/api/3/search/jql"); n != 5+1 {
		t.Errorf("made %d search requests, want 6", n)
	}
}

func TestSearchIssueKeysDedupesAndSorts(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()
	mock.IssueKeys = []string{"B-2", "A-1", "B-2", "C-3", "A-1"}

	client := mock.Client()
	first, err := client.SearchIssueKeys(context.Background(), "x = y", 2)
	if err != nil {
		t.Fatalf("SearchIssueKeys() error = %v", err)
	}
	want := []string{"A-1", "B-2", "C-3"}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("SearchIssueKeys() = %v, want %v", first, want)
	}

	second, err := client.SearchIssueKeys(context.Background(), "x = y", 2)
	if err != nil {
		t.Fatalf("second SearchIssueKeys() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated search differs: %v vs %v", first, second)
	}
}

func TestSearchIssueKeysEmpty(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()

	keys, err := mock.Client().SearchIssueKeys(context.Background(), "x = y", 50)
	if err != nil {
		t.Fatalf("SearchIssueKeys() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("SearchIssueKeys() = %v, want empty", keys)
	}
}

func TestSearchIssueKeysStopsOnRepeatedToken(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()
	mock.IssueKeys = []string{"A-1", "A-2"}
	mock.RepeatToken = true

	keys, err := mock.Client().SearchIssueKeys(context.Background(), "x = y", 1)
	if err != nil {
		t.Fatalf("SearchIssueKeys() error = %v", err)
	}
	if len(keys) == 0 {
		t.Error("expected keys from the pages fetched before the loop was detected")
	}
	if n := mock.RequestCount(http.MethodPost, "/rest/api/3/search/jql"); n != 2 {
		t.Errorf("made %d requests, want 2", n)
	}
}

func TestSearchIssueKeysSendsTokenAndFields(t *testing.T) {
	var bodies []jira.SearchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jira.SearchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		bodies = append(bodies, req)
		if req.NextPageToken == "" {
			_, _ = w.Write([]byte(`{"issues":[{"key":"K-1"}],"nextPageToken":"tok-2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"issues":[{"key":"K-2"}]}`))
	}))
	defer server.Close()

	c := jira.NewClient(jira.Options{URL: server.URL, Email: "a", APIToken: "b"})
	keys, err := c.SearchIssueKeys(context.Background(), "project = K", 0)
	if err != nil {
		t.Fatalf("SearchIssueKeys() error = %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"K-1", "K-2"}) {
		t.Errorf("keys = %v", keys)
	}
	if len(bodies) != 2 {
		t.Fatalf("got %d requests, want 2", len(bodies))
	}
	if bodies[1].NextPageToken != "tok-2" {
		t.Errorf("second request token = %q, want tok-2", bodies[1].NextPageToken)
	}
	if bodies[0].MaxResults != jira.MaxPageSize {
		t.Errorf("maxResults = %d, want clamped default %d", bodies[0].MaxResults, jira.MaxPageSize)
	}
	if !reflect.DeepEqual(bodies[0].Fields, []string{"key"}) {
		t.Errorf("fields = %v, want [key]", bodies[0].Fields)
	}
}

func TestSearchIssuesReturnsSummaryAndProject(t *testing.T) {
	mock := testutil.NewMockJira()
	defer mock.Close()
	mock.AddWorklog("PROJ-2", testutil.MakeWorklog("20", "me", "2025-09-17T09:00:00.000+0900", 60, ""))
	mock.AddWorklog("PROJ-1", testutil.MakeWorklog("10", "me", "2025-09-17T09:00:00.000+0900", 60, ""))
	mock.SetIssue("PROJ-1", "Login page", "PROJ", "Project One")

	issues, err := mock.Client().SearchIssues(context.Background(), "x = y", 1)
	if err != nil {
		t.Fatalf("SearchIssues() error = %v", err)
	}
	if len(issues) != 2 || issues[0].Key != "PROJ-1" || issues[1].Key != "PROJ-2" {
		t.Fatalf("SearchIssues() = %+v, want PROJ-1, PROJ-2", issues)
	}
	if got := issues[0].Summary(); got != "Login page" {
		t.Errorf("Summary() = %q, want %q", got, "Login page")
	}
	if got := issues[0].ProjectName(); got != "Project One" {
		t.Errorf("ProjectName() = %q, want %q", got, "Project One")
	}
	if issues[1].Summary() != "" || issues[1].ProjectName() != "" {
		t.Errorf("issue without fields = %+v", issues[1])
	}

	var req jira.SearchRequest
	if err := json.Unmarshal(mock.Requests()[0].Body, &req); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(req.Fields, []string{"summary", "project"}) {
		t.Errorf("fields = %v, want [summary project]", req.Fields)
	}
}

func TestSearchIssueKeysAbortsOnError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"issues":[{"key":"K-1"}],"nextPageToken":"n"}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := jira.NewClient(jira.Options{URL: server.URL, Email: "a", APIToken: "b"})
	keys, err := c.SearchIssueKeys(context.Background(), "x = y", 10)
	if !jira.IsTransportError(err) {
		t.Fatalf("error = %v, want transport error", err)
	}
	if keys != nil {
		t.Errorf("keys = %v, want no partial result", keys)
	}
}

func TestWorklogJQL(t *testing.T) {
	day := time.Date(2025, 9, 17, 0, 0, 0, 0, time.UTC)
	got := jira.WorklogJQL("557058:abc", day)
	want := `worklogAuthor = "557058:abc" AND worklogDate >= "2025-09-17" AND worklogDate <= "2025-09-17"`
	if got != want {
		t.Errorf("WorklogJQL() = %s, want %s", got, want)
	}
}
