package worklog

import (
	"fmt"
	"math/big"

	"github.com/worklog-tools/jwl/internal/jira"
)

// PlanItem is one entry's duration before and after redistribution.
type PlanItem struct {
	Entry      jira.Entry
	OldSeconds int
	NewSeconds int
}

// Changed reports whether applying the item would modify the entry.
func (p PlanItem) Changed() bool {
	return p.OldSeconds != p.NewSeconds
}

// Plan scales every entry of a Result by Factor. Each new value is floored
// independently, so NewTotal may fall a few seconds short of Target. The
// shortfall is left as is.
type Plan struct {
	Original int
	Target   int
	Factor   *big.Rat
	Items    []PlanItem
}

// Changes returns the items whose duration differs from the original.
func (p *Plan) Changes() []PlanItem {
	var out []PlanItem
	for _, it := range p.Items {
		if it.Changed() {
			out = append(out, it)
		}
	}
	return out
}

// NewTotal sums the planned durations.
func (p *Plan) NewTotal() int {
	total := 0
	for _, it := range p.Items {
		total += it.NewSeconds
	}
	return total
}

// ValidateTarget rejects a negative target total.
func ValidateTarget(seconds int) error {
	if seconds < 0 {
		return &ValidationError{Field: "target", Value: fmt.Sprint(seconds), Message: "must not be negative"}
	}
	return nil
}

// ScaleFactor returns target/original as an exact rational, or 1 when
// either side is zero.
func ScaleFactor(original, target int) *big.Rat {
	if original == 0 || target == 0 {
		return big.NewRat(1, 1)
	}
	return big.NewRat(int64(target), int64(original))
}

// Redistribute plans new durations for res so they sum to roughly target.
func Redistribute(res Result, target int) (*Plan, error) {
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}

	f := ScaleFactor(res.TotalSeconds, target)
	plan := &Plan{
		Original: res.TotalSeconds,
		Target:   target,
		Factor:   f,
		Items:    make([]PlanItem, 0, len(res.Entries)),
	}
	for _, e := range res.Entries {
		plan.Items = append(plan.Items, PlanItem{
			Entry:      e,
			OldSeconds: e.TimeSpentSeconds,
			NewSeconds: scaleFloor(e.TimeSpentSeconds, f),
		})
	}
	return plan, nil
}

// scaleFloor returns floor(n * f) for non-negative n and positive f.
func scaleFloor(n int, f *big.Rat) int {
	num := new(big.Int).Mul(big.NewInt(int64(n)), f.Num())
	return int(num.Div(num, f.Denom()).Int64())
}
