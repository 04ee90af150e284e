package session

import (
	"context"
	"sync"

	"github.com/worklog-tools/jwl/internal/jira"
	"github.com/worklog-tools/jwl/internal/worklog"
)

// EventKind classifies a drained worker result.
type EventKind int

const (
	// FetchCompleted means the entries were replaced by a new result.
	FetchCompleted EventKind = iota
	// FetchFailed means the query was aborted; the previous entries remain.
	FetchFailed
	// EditConfirmed means Jira accepted an edit.
	EditConfirmed
	// EditFailed means an edit was rejected and the local value reverted.
	EditFailed
)

func (k EventKind) String() string {
	switch k {
	case FetchCompleted:
		return "fetch completed"
	case FetchFailed:
		return "fetch failed"
	case EditConfirmed:
		return "edit confirmed"
	case EditFailed:
		return "edit failed"
	default:
		return "unknown"
	}
}

// Event reports one drained worker result.
type Event struct {
	Kind     EventKind
	IssueKey string
	EntryID  string
	// Stale is set for edit results that belong to entries replaced by a
	// later fetch; they are reported but not applied.
	Stale bool
	Err   error
}

type message interface {
	applyTo(s *Session) Event
}

type fetchDone struct {
	result worklog.Result
	err    error
}

func (m fetchDone) applyTo(s *Session) Event {
	s.fetching = false
	if m.err != nil {
		s.logger.Warn("fetch failed", "error", m.err)
		return Event{Kind: FetchFailed, Err: m.err}
	}
	s.result = m.result
	s.loaded = true
	s.generation++
	s.logger.Debug("fetch completed", "entries", len(m.result.Entries), "total", m.result.TotalSeconds)
	return Event{Kind: FetchCompleted}
}

type editDone struct {
	generation int
	issueKey   string
	entryID    string
	upd        jira.Update
	prev       jira.Entry
	updated    *jira.Entry
	err        error
}

func (m editDone) applyTo(s *Session) Event {
	ev := Event{Kind: EditConfirmed, IssueKey: m.issueKey, EntryID: m.entryID, Err: m.err}
	if m.err != nil {
		ev.Kind = EditFailed
		s.logger.Warn("worklog edit failed", "issue", m.issueKey, "worklog", m.entryID, "error", m.err)
	}
	if m.generation != s.generation {
		ev.Stale = true
		return ev
	}
	i := s.index(m.issueKey, m.entryID)
	if i < 0 {
		ev.Stale = true
		return ev
	}
	if m.err != nil {
		s.result.Entries[i] = restore(s.result.Entries[i], m.prev, m.upd)
	} else {
		s.result.Entries[i] = confirm(s.result.Entries[i], m.updated, m.upd)
	}
	return ev
}

// lockedDispatcher runs updates of the same entry one at a time.
type lockedDispatcher struct {
	inner jira.Dispatcher
	locks *entryLocks
}

func (d *lockedDispatcher) UpdateWorklog(ctx context.Context, issueKey, worklogID string, upd jira.Update) (*jira.Entry, error) {
	unlock := d.locks.lock(issueKey + "/" + worklogID)
	defer unlock()
	return d.inner.UpdateWorklog(ctx, issueKey, worklogID, upd)
}

// entryLocks hands out one mutex per entry key.
type entryLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newEntryLocks() *entryLocks {
	return &entryLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *entryLocks) lock(key string) (unlock func()) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
