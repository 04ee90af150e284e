// Package session holds the entries of one query and runs fetches and edits
// on background workers.
//
// A Session has a single owner goroutine. Only the owner calls its methods;
// workers never touch session state and instead post messages on a channel
// that the owner consumes in Drain or Wait. Workers run to completion: they
// are detached from the caller's context and cannot be cancelled.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/worklog-tools/jwl/internal/jira"
	"github.com/worklog-tools/jwl/internal/worklog"
)

// ErrFetchInFlight is returned by StartFetch while a previous fetch has not
// been drained.
var ErrFetchInFlight = errors.New("a fetch is already in progress")

// ErrNoQuery is returned when an edit or rescale is requested before any
// fetch completed.
var ErrNoQuery = errors.New("no entries loaded")

// Querier produces the aggregated entries for one author and day.
// *worklog.Fetcher implements it.
type Querier interface {
	Query(ctx context.Context, authorID string, day time.Time) (worklog.Result, error)
}

var _ Querier = (*worklog.Fetcher)(nil)

// Options configures a Session.
type Options struct {
	Querier    Querier
	Dispatcher jira.Dispatcher
	// SerializeEdits makes workers editing the same entry run one at a time.
	// Off by default: concurrent edits of one entry race and the last
	// response to arrive wins locally.
	SerializeEdits bool
	// Workers bounds the requests in flight for one rescale batch.
	Workers int
	// Buffer is the capacity of the result channel.
	Buffer int
	Logger *slog.Logger
}

// Session is the owner-side state of one query screen.
type Session struct {
	querier    Querier
	dispatcher jira.Dispatcher
	workers    int
	logger     *slog.Logger

	results chan message

	// Owner-only state below.
	result     worklog.Result
	loaded     bool
	generation int
	fetching   bool
	pending    int
}

// New creates a Session.
func New(opts Options) *Session {
	buf := opts.Buffer
	if buf <= 0 {
		buf = 64
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Session{
		querier:    opts.Querier,
		dispatcher: opts.Dispatcher,
		workers:    opts.Workers,
		logger:     logger,
		results:    make(chan message, buf),
	}
	if opts.SerializeEdits {
		s.dispatcher = &lockedDispatcher{inner: opts.Dispatcher, locks: newEntryLocks()}
	}
	return s
}

// Fetching reports whether a fetch has started and not yet been drained.
func (s *Session) Fetching() bool { return s.fetching }

// Pending returns the number of workers whose result has not been drained.
func (s *Session) Pending() int { return s.pending }

// Loaded reports whether a fetch has completed successfully.
func (s *Session) Loaded() bool { return s.loaded }

// Result returns a copy of the current aggregation with the total
// recomputed from the local, possibly optimistic, entries.
func (s *Session) Result() worklog.Result {
	res := s.result
	res.Entries = append([]jira.Entry(nil), s.result.Entries...)
	res.TotalSeconds = worklog.TotalSeconds(res.Entries)
	return res
}

// Entry returns the local copy of one entry.
func (s *Session) Entry(issueKey, entryID string) (jira.Entry, bool) {
	if i := s.index(issueKey, entryID); i >= 0 {
		return s.result.Entries[i], true
	}
	return jira.Entry{}, false
}

func (s *Session) index(issueKey, entryID string) int {
	for i, e := range s.result.Entries {
		if e.IssueKey == issueKey && e.ID == entryID {
			return i
		}
	}
	return -1
}

// StartFetch queries authorID's entries for day on a background worker.
// The result replaces the current entries when drained.
func (s *Session) StartFetch(ctx context.Context, authorID string, day time.Time) error {
	if s.fetching {
		return ErrFetchInFlight
	}
	if authorID == "" {
		return &jira.ValidationError{Field: "author", Message: "account id is required"}
	}
	s.fetching = true
	s.pending++

	ctx = context.WithoutCancel(ctx)
	go func() {
		res, err := s.querier.Query(ctx, authorID, day)
		s.results <- fetchDone{result: res, err: err}
	}()
	return nil
}

// StartEdit applies upd to the local copy of an entry immediately and sends
// it to Jira on a background worker. When the result is drained a failure
// restores the edited fields to their values before this edit.
func (s *Session) StartEdit(ctx context.Context, issueKey, entryID string, upd jira.Update) error {
	if !s.loaded {
		return ErrNoQuery
	}
	msg, err := s.beginEdit(issueKey, entryID, upd)
	if err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		msg.updated, msg.err = s.dispatcher.UpdateWorklog(ctx, issueKey, entryID, upd)
		s.results <- msg
	}()
	return nil
}

// beginEdit validates upd against the loaded entry, applies it locally and
// counts it as pending.
func (s *Session) beginEdit(issueKey, entryID string, upd jira.Update) (editDone, error) {
	if upd.IsEmpty() {
		return editDone{}, &jira.ValidationError{Field: "update", Message: "no fields to change"}
	}
	if upd.TimeSpentSeconds != nil {
		if err := worklog.ValidateTarget(*upd.TimeSpentSeconds); err != nil {
			return editDone{}, err
		}
	}
	i := s.index(issueKey, entryID)
	if i < 0 {
		return editDone{}, &jira.ValidationError{Field: "entry", Value: issueKey + "/" + entryID, Message: "not in the current result"}
	}

	prev := s.result.Entries[i]
	s.result.Entries[i] = applyLocal(prev, upd)
	s.pending++
	return editDone{generation: s.generation, issueKey: issueKey, entryID: entryID, upd: upd, prev: prev}, nil
}

// StartRescale redistributes the current entries to target seconds. Every
// changed entry is updated locally at once; the batch is sent by one
// background worker with at most Options.Workers requests in flight, and
// each entry's result is drained as its own event. It returns the plan.
func (s *Session) StartRescale(ctx context.Context, target int) (*worklog.Plan, error) {
	if !s.loaded {
		return nil, ErrNoQuery
	}
	plan, err := worklog.Redistribute(s.Result(), target)
	if err != nil {
		return nil, err
	}
	changes := plan.Changes()
	if len(changes) == 0 {
		return plan, nil
	}

	msgs := make([]editDone, len(changes))
	for i, item := range changes {
		seconds := item.NewSeconds
		msgs[i], err = s.beginEdit(item.Entry.IssueKey, item.Entry.ID, jira.Update{TimeSpentSeconds: &seconds})
		if err != nil {
			s.undo(msgs[:i])
			return plan, err
		}
	}

	applier := &worklog.Applier{Dispatcher: s.dispatcher, Workers: s.workers, Logger: s.logger}
	ctx = context.WithoutCancel(ctx)
	go func() {
		// Per-entry failures are carried by the outcomes.
		outcomes, _ := applier.Apply(ctx, plan)
		for i, o := range outcomes {
			msgs[i].updated, msgs[i].err = o.Updated, o.Err
			s.results <- msgs[i]
		}
	}()
	return plan, nil
}

// undo reverts edits started by beginEdit that were never dispatched.
func (s *Session) undo(msgs []editDone) {
	for _, m := range msgs {
		if i := s.index(m.issueKey, m.entryID); i >= 0 {
			s.result.Entries[i] = restore(s.result.Entries[i], m.prev, m.upd)
		}
		s.pending--
	}
}

// Drain applies every worker result that is ready without blocking and
// returns the corresponding events in arrival order.
func (s *Session) Drain() []Event {
	var events []Event
	for {
		select {
		case msg := <-s.results:
			events = append(events, s.apply(msg))
		default:
			return events
		}
	}
}

// Wait blocks until every started worker has been drained or ctx is done.
func (s *Session) Wait(ctx context.Context) ([]Event, error) {
	var events []Event
	for s.pending > 0 {
		select {
		case msg := <-s.results:
			events = append(events, s.apply(msg))
		case <-ctx.Done():
			return events, ctx.Err()
		}
	}
	return events, nil
}

func (s *Session) apply(msg message) Event {
	s.pending--
	return msg.applyTo(s)
}

// applyLocal returns e with upd's fields applied.
func applyLocal(e jira.Entry, upd jira.Update) jira.Entry {
	if upd.TimeSpentSeconds != nil {
		e.TimeSpentSeconds = *upd.TimeSpentSeconds
		e.TimeSpent = worklog.FormatJira(*upd.TimeSpentSeconds)
	}
	if upd.Comment != nil {
		if raw, err := json.Marshal(jira.PlainTextToADF(*upd.Comment)); err == nil {
			e.Comment = raw
		}
	}
	if upd.Started != nil {
		e.Started = upd.Started.Format(jira.StartedLayout)
	}
	return e
}

// restore copies the fields named by upd from prev into e.
func restore(e, prev jira.Entry, upd jira.Update) jira.Entry {
	if upd.TimeSpentSeconds != nil {
		e.TimeSpentSeconds = prev.TimeSpentSeconds
		e.TimeSpent = prev.TimeSpent
	}
	if upd.Comment != nil {
		e.Comment = prev.Comment
	}
	if upd.Started != nil {
		e.Started = prev.Started
	}
	return e
}

// confirm copies the fields named by upd from the server's copy into e.
func confirm(e jira.Entry, server *jira.Entry, upd jira.Update) jira.Entry {
	if server == nil || server.Started == "" {
		// No usable body; keep the optimistic values.
		return e
	}
	if upd.TimeSpentSeconds != nil {
		e.TimeSpentSeconds = server.TimeSpentSeconds
		if server.TimeSpent != "" {
			e.TimeSpent = server.TimeSpent
		}
	}
	if upd.Comment != nil && len(server.Comment) > 0 {
		e.Comment = server.Comment
	}
	if upd.Started != nil {
		e.Started = server.Started
	}
	return e
}
