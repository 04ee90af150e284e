package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worklog-tools/jwl/internal/jira"
	"github.com/worklog-tools/jwl/internal/testutil"
	"github.com/worklog-tools/jwl/internal/worklog"
)

var day = time.Date(2025, 9, 17, 0, 0, 0, 0, time.UTC)

func newMock(t *testing.T) *testutil.MockJira {
	t.Helper()
	mock := testutil.NewMockJira()
	t.Cleanup(mock.Close)
	for _, id := range []string{"1", "2", "3"} {
		mock.AddWorklog("PROJ-1", testutil.MakeWorklog(id, "me", "2025-09-17T09:00:00.000+0900", 1800, "c"+id))
	}
	return mock
}

func newSession(mock *testutil.MockJira, serialize bool) *Session {
	client := mock.Client()
	return New(Options{
		Querier:        &worklog.Fetcher{Source: client},
		Dispatcher:     client,
		SerializeEdits: serialize,
	})
}

func wait(t *testing.T, s *Session) []Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := s.Wait(ctx)
	require.NoError(t, err)
	return events
}

func load(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.StartFetch(context.Background(), "me", day))
	events := wait(t, s)
	require.Len(t, events, 1)
	require.Equal(t, FetchCompleted, events[0].Kind, "fetch error: %v", events[0].Err)
}

// drainUntil drains on the owner goroutine until cond holds.
func drainUntil(t *testing.T, s *Session, cond func() bool) []Event {
	t.Helper()
	var events []Event
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		events = append(events, s.Drain()...)
		time.Sleep(5 * time.Millisecond)
	}
	return events
}

func TestFetchLoadsResult(t *testing.T) {
	s := newSession(newMock(t), false)
	assert.False(t, s.Loaded())

	load(t, s)

	assert.True(t, s.Loaded())
	assert.False(t, s.Fetching())
	res := s.Result()
	assert.Equal(t, 5400, res.TotalSeconds)
	assert.Len(t, res.Entries, 3)
}

func TestOverlappingFetchRejected(t *testing.T) {
	s := newSession(newMock(t), false)

	require.NoError(t, s.StartFetch(context.Background(), "me", day))
	assert.ErrorIs(t, s.StartFetch(context.Background(), "me", day), ErrFetchInFlight)
	assert.Equal(t, 1, s.Pending(), "rejected fetch must not be queued")

	wait(t, s)
	assert.NoError(t, s.StartFetch(context.Background(), "me", day))
	wait(t, s)
}

func TestFetchFailureKeepsPreviousEntries(t *testing.T) {
	mock := newMock(t)
	s := newSession(mock, false)
	load(t, s)

	mock.SetServerError(true)
	require.NoError(t, s.StartFetch(context.Background(), "me", day))
	events := wait(t, s)

	require.Len(t, events, 1)
	assert.Equal(t, FetchFailed, events[0].Kind)
	assert.True(t, jira.IsTransportError(events[0].Err))
	assert.Len(t, s.Result().Entries, 3)
}

func TestWorkersIgnoreCallerCancellation(t *testing.T) {
	s := newSession(newMock(t), false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.StartFetch(ctx, "me", day))
	events := wait(t, s)
	require.Len(t, events, 1)
	assert.Equal(t, FetchCompleted, events[0].Kind)
}

func TestEditIsOptimisticThenConfirmed(t *testing.T) {
	mock := newMock(t)
	s := newSession(mock, false)
	load(t, s)

	release := mock.HoldUpdates()
	seconds := 4200
	require.NoError(t, s.StartEdit(context.Background(), "PROJ-1", "2", jira.Update{TimeSpentSeconds: &seconds}))

	e, ok := s.Entry("PROJ-1", "2")
	require.True(t, ok)
	assert.Equal(t, 4200, e.TimeSpentSeconds, "local copy updated before the response")
	assert.Equal(t, 7800, s.Result().TotalSeconds)

	release()
	events := wait(t, s)
	require.Len(t, events, 1)
	assert.Equal(t, EditConfirmed, events[0].Kind)
	assert.False(t, events[0].Stale)

	e, _ = s.Entry("PROJ-1", "2")
	assert.Equal(t, 4200, e.TimeSpentSeconds)
	w, _ := mock.Worklog("PROJ-1", "2")
	assert.Equal(t, 4200, w.TimeSpentSeconds)
}

func TestEditFailureRollsBackOnlyEditedField(t *testing.T) {
	mock := newMock(t)
	s := newSession(mock, false)
	load(t, s)
	mock.FailUpdate("1", http.StatusBadRequest)

	comment := "rewritten"
	require.NoError(t, s.StartEdit(context.Background(), "PROJ-1", "1", jira.Update{Comment: &comment}))
	e, _ := s.Entry("PROJ-1", "1")
	assert.Equal(t, "rewritten", e.CommentText())

	events := wait(t, s)
	require.Len(t, events, 1)
	assert.Equal(t, EditFailed, events[0].Kind)
	var ue *jira.UpdateError
	require.True(t, errors.As(events[0].Err, &ue))
	assert.Equal(t, "1", ue.EntryID)
	assert.Equal(t, []string{"comment"}, ue.Fields)

	e, _ = s.Entry("PROJ-1", "1")
	assert.Equal(t, "c1", e.CommentText())
	assert.Equal(t, 1800, e.TimeSpentSeconds)
}

func TestRescaleWithMiddleFailure(t *testing.T) {
	mock := newMock(t)
	s := newSession(mock, false)
	load(t, s)
	mock.FailUpdate("2", http.StatusBadGateway)

	plan, err := s.StartRescale(context.Background(), 10800)
	require.NoError(t, err)
	assert.Len(t, plan.Changes(), 3)

	events := wait(t, s)
	require.Len(t, events, 3)
	failed := 0
	for _, ev := range events {
		if ev.Kind == EditFailed {
			failed++
			assert.Equal(t, "2", ev.EntryID)
			assert.True(t, jira.IsTransportError(ev.Err))
		}
	}
	assert.Equal(t, 1, failed)

	for id, want := range map[string]int{"1": 3600, "2": 1800, "3": 3600} {
		e, _ := s.Entry("PROJ-1", id)
		assert.Equal(t, want, e.TimeSpentSeconds, "entry %s", id)
	}
	assert.Equal(t, 9000, s.Result().TotalSeconds)
}

func TestRescaleZeroTargetChangesNothing(t *testing.T) {
	mock := newMock(t)
	s := newSession(mock, false)
	load(t, s)

	plan, err := s.StartRescale(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, plan.Changes())
	assert.Zero(t, s.Pending())
	assert.Zero(t, mock.RequestCount(http.MethodPut, "/"))
}

func TestEditValidation(t *testing.T) {
	mock := newMock(t)
	s := newSession(mock, false)
	seconds := 60

	assert.ErrorIs(t, s.StartEdit(context.Background(), "PROJ-1", "1", jira.Update{TimeSpentSeconds: &seconds}), ErrNoQuery)
	_, err := s.StartRescale(context.Background(), 60)
	assert.ErrorIs(t, err, ErrNoQuery)

	load(t, s)
	var ve *jira.ValidationError
	assert.True(t, errors.As(s.StartEdit(context.Background(), "PROJ-1", "99", jira.Update{TimeSpentSeconds: &seconds}), &ve))
	assert.True(t, errors.As(s.StartEdit(context.Background(), "PROJ-1", "1", jira.Update{}), &ve))
	negative := -1
	assert.True(t, errors.As(s.StartEdit(context.Background(), "PROJ-1", "1", jira.Update{TimeSpentSeconds: &negative}), &ve))
	assert.Zero(t, s.Pending())
}

func TestEditResultAfterRefetchIsStale(t *testing.T) {
	mock := newMock(t)
	s := newSession(mock, false)
	load(t, s)

	release := mock.HoldUpdates()
	seconds := 60
	require.NoError(t, s.StartEdit(context.Background(), "PROJ-1", "3", jira.Update{TimeSpentSeconds: &seconds}))
	require.NoError(t, s.StartFetch(context.Background(), "me", day))
	drainUntil(t, s, func() bool { return !s.Fetching() })

	// The refetch saw the server value, not the optimistic one.
	e, _ := s.Entry("PROJ-1", "3")
	assert.Equal(t, 1800, e.TimeSpentSeconds)

	release()
	events := wait(t, s)
	require.Len(t, events, 1)
	assert.Equal(t, EditConfirmed, events[0].Kind)
	assert.True(t, events[0].Stale)
	e, _ = s.Entry("PROJ-1", "3")
	assert.Equal(t, 1800, e.TimeSpentSeconds, "stale results are not applied")
}

func TestSerializeEditsRunsSameEntryOneAtATime(t *testing.T) {
	d := &concurrencyProbe{delay: 20 * time.Millisecond}
	mock := newMock(t)
	s := New(Options{
		Querier:        &worklog.Fetcher{Source: mock.Client()},
		Dispatcher:     d,
		SerializeEdits: true,
	})
	load(t, s)

	for i := 0; i < 4; i++ {
		seconds := 100 + i
		require.NoError(t, s.StartEdit(context.Background(), "PROJ-1", "1", jira.Update{TimeSpentSeconds: &seconds}))
	}
	wait(t, s)
	assert.EqualValues(t, 1, d.max.Load())
}

func TestRescaleHonorsWorkerLimit(t *testing.T) {
	d := &concurrencyProbe{delay: 20 * time.Millisecond}
	mock := newMock(t)
	s := New(Options{
		Querier:    &worklog.Fetcher{Source: mock.Client()},
		Dispatcher: d,
		Workers:    1,
	})
	load(t, s)

	plan, err := s.StartRescale(context.Background(), 3600)
	require.NoError(t, err)
	require.Len(t, plan.Changes(), 3)
	assert.Equal(t, 3, s.Pending())

	events := wait(t, s)
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, EditConfirmed, ev.Kind)
	}
	assert.EqualValues(t, 1, d.max.Load())
	assert.Equal(t, 3600, s.Result().TotalSeconds)
}

// concurrencyProbe records the highest number of concurrent updates.
type concurrencyProbe struct {
	delay   time.Duration
	mu      sync.Mutex
	current int
	max     atomic.Int32
}

func (p *concurrencyProbe) UpdateWorklog(_ context.Context, issueKey, id string, upd jira.Update) (*jira.Entry, error) {
	p.mu.Lock()
	p.current++
	if int32(p.current) > p.max.Load() {
		p.max.Store(int32(p.current))
	}
	p.mu.Unlock()

	time.Sleep(p.delay)

	p.mu.Lock()
	p.current--
	p.mu.Unlock()
	return &jira.Entry{IssueKey: issueKey, Worklog: jira.Worklog{ID: id}}, nil
}
