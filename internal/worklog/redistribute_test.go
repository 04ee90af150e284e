package worklog

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worklog-tools/jwl/internal/jira"
)

func resultOf(seconds ...int) Result {
	var entries []jira.Entry
	for i, s := range seconds {
		entries = append(entries, entry("A-1", string(rune('a'+i)), "me", "2025-09-17T09:00:00.000+0000", s))
	}
	return Result{AuthorID: "me", Entries: entries, TotalSeconds: TotalSeconds(entries)}
}

func newSeconds(p *Plan) []int {
	out := make([]int, len(p.Items))
	for i, it := range p.Items {
		out[i] = it.NewSeconds
	}
	return out
}

func TestRedistributeScalesUp(t *testing.T) {
	plan, err := Redistribute(resultOf(3600, 1800), 7200)
	require.NoError(t, err)

	assert.Equal(t, 0, plan.Factor.Cmp(big.NewRat(4, 3)), "factor = %s, want 4/3", plan.Factor)
	assert.Equal(t, []int{4800, 2400}, newSeconds(plan))
	assert.Equal(t, 7200, plan.NewTotal())
	assert.Len(t, plan.Changes(), 2)
}

func TestRedistributeZeroTargetKeepsValues(t *testing.T) {
	plan, err := Redistribute(resultOf(3600, 1800), 0)
	require.NoError(t, err)

	assert.Equal(t, 0, plan.Factor.Cmp(big.NewRat(1, 1)))
	assert.Equal(t, []int{3600, 1800}, newSeconds(plan))
	assert.Empty(t, plan.Changes())
}

func TestRedistributeZeroOriginal(t *testing.T) {
	plan, err := Redistribute(resultOf(0, 0), 3600)
	require.NoError(t, err)

	assert.Equal(t, 0, plan.Factor.Cmp(big.NewRat(1, 1)))
	assert.Equal(t, []int{0, 0}, newSeconds(plan))
	assert.Empty(t, plan.Changes())
}

func TestRedistributeFloorsWithoutCorrection(t *testing.T) {
	plan, err := Redistribute(resultOf(1000, 1000, 1000), 2000)
	require.NoError(t, err)

	assert.Equal(t, []int{666, 666, 666}, newSeconds(plan))
	assert.Equal(t, 1998, plan.NewTotal(), "residual must not be redistributed")
}

func TestRedistributeExactForLargeValues(t *testing.T) {
	// 7/3 is not representable as a float; floor(3 * 7/3) must be exactly 7.
	plan, err := Redistribute(resultOf(3), 7)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, newSeconds(plan))

	plan, err = Redistribute(resultOf(86399, 1), 172800)
	require.NoError(t, err)
	assert.Equal(t, []int{172798, 2}, newSeconds(plan))
}

func TestRedistributeSameTarget(t *testing.T) {
	plan, err := Redistribute(resultOf(3600, 1800), 5400)
	require.NoError(t, err)
	assert.Empty(t, plan.Changes())
}

func TestRedistributeNegativeTarget(t *testing.T) {
	_, err := Redistribute(resultOf(3600), -1)
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve), "error = %v, want *ValidationError", err)
}

func TestScaleFactor(t *testing.T) {
	assert.Equal(t, "1/2", ScaleFactor(7200, 3600).RatString())
	assert.Equal(t, "1", ScaleFactor(0, 3600).RatString())
	assert.Equal(t, "1", ScaleFactor(3600, 0).RatString())
}
