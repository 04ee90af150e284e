package worklog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/worklog-tools/jwl/internal/jira"
)

// DefaultWorkers bounds concurrent requests when no limit is configured.
const DefaultWorkers = 4

// Outcome is the result of applying one plan item.
type Outcome struct {
	Item    PlanItem
	Updated *jira.Entry // nil on failure
	Err     error
}

// PartialUpdateError reports the entries of a batch whose update failed.
// Entries not listed were updated.
type PartialUpdateError struct {
	Attempted int
	Failures  []*jira.UpdateError
}

func (e *PartialUpdateError) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.IssueKey + "/" + f.EntryID
	}
	return fmt.Sprintf("%d of %d worklog updates failed: %s",
		len(e.Failures), e.Attempted, strings.Join(ids, ", "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *PartialUpdateError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Applier dispatches the changes of a Plan.
type Applier struct {
	Dispatcher jira.Dispatcher
	Workers    int
	Logger     *slog.Logger
}

// ApplyPlan sends one update per changed item of plan using a default
// Applier. See Applier.Apply.
func ApplyPlan(ctx context.Context, d jira.Dispatcher, plan *Plan) ([]Outcome, error) {
	return (&Applier{Dispatcher: d}).Apply(ctx, plan)
}

// Apply sends one update per changed item of plan. Every item is attempted:
// a failure is recorded against its entry and does not stop the others.
// Outcomes are returned in plan order. When any update failed the error is
// a *PartialUpdateError.
func (a *Applier) Apply(ctx context.Context, plan *Plan) ([]Outcome, error) {
	changes := plan.Changes()
	outcomes := make([]Outcome, len(changes))
	if len(changes) == 0 {
		return outcomes, nil
	}

	logger := a.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := a.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	// Plain Group, not WithContext: one failure must not cancel the rest.
	var g errgroup.Group
	g.SetLimit(workers)
	for i, item := range changes {
		g.Go(func() error {
			seconds := item.NewSeconds
			updated, err := a.Dispatcher.UpdateWorklog(ctx, item.Entry.IssueKey, item.Entry.ID,
				jira.Update{TimeSpentSeconds: &seconds})
			outcomes[i] = Outcome{Item: item, Updated: updated, Err: err}
			if err != nil {
				logger.Warn("worklog update failed", "issue", item.Entry.IssueKey, "worklog", item.Entry.ID, "error", err)
			} else {
				logger.Debug("worklog updated", "issue", item.Entry.IssueKey, "worklog", item.Entry.ID,
					"from", item.OldSeconds, "to", seconds)
			}
			return nil
		})
	}
	_ = g.Wait()

	var failures []*jira.UpdateError
	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		var ue *jira.UpdateError
		if !errors.As(o.Err, &ue) {
			ue = &jira.UpdateError{
				IssueKey: o.Item.Entry.IssueKey,
				EntryID:  o.Item.Entry.ID,
				Fields:   []string{"timeSpentSeconds"},
				Err:      o.Err,
			}
		}
		failures = append(failures, ue)
	}
	if len(failures) > 0 {
		return outcomes, &PartialUpdateError{Attempted: len(changes), Failures: failures}
	}
	return outcomes, nil
}
