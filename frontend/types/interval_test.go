package types_test

import (
	"math/big"
	"testing"

	"github.com/cottand/typecore/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cmpInt(op types.CmpOp, i int64) types.Predicate {
	return types.Cmp("I", op, types.IntValue(i))
}

func mustIntervals(t *testing.T, discrete bool, preds ...types.Predicate) *types.IntervalSet {
	t.Helper()
	s, ok := types.IntervalSetOf(preds, "I", discrete)
	require.True(t, ok, "expected %v to be in the interval fragment", preds)
	return s
}

func TestIntervalSetOf(t *testing.T) {
	cases := map[string]struct {
		preds    []types.Predicate
		discrete bool
		expected string
	}{
		"upper bound":      {[]types.Predicate{cmpInt(types.OpLe, 5)}, true, "(-inf, 5]"},
		"strict discrete":  {[]types.Predicate{cmpInt(types.OpLt, 5)}, true, "(-inf, 4]"},
		"strict rational":  {[]types.Predicate{cmpInt(types.OpLt, 5)}, false, "(-inf, 5)"},
		"range":            {[]types.Predicate{cmpInt(types.OpGe, 0), cmpInt(types.OpLe, 10)}, true, "[0, 10]"},
		"not equal":        {[]types.Predicate{cmpInt(types.OpNe, 0)}, true, "(-inf, -1] u [1, +inf)"},
		"empty":            {[]types.Predicate{cmpInt(types.OpGt, 3), cmpInt(types.OpLt, 4)}, true, "{}"},
		"disjunction":      {[]types.Predicate{types.OrPreds(cmpInt(types.OpEq, 1), cmpInt(types.OpEq, 2))}, true, "[1, 2]"},
		"negation":         {[]types.Predicate{&types.PredNot{Inner: cmpInt(types.OpLt, 0)}}, true, "[0, +inf)"},
		"gap in rationals": {[]types.Predicate{types.OrPreds(cmpInt(types.OpEq, 1), cmpInt(types.OpEq, 2))}, false, "[1, 1] u [2, 2]"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.expected, mustIntervals(t, c.discrete, c.preds...).String())
		})
	}
}

func TestIntervalSetOfRejectsOutsideFragment(t *testing.T) {
	cases := map[string]types.Predicate{
		"float":    types.Cmp("I", types.OpLe, types.FloatValue(1.5)),
		"string":   types.Cmp("I", types.OpEq, types.StrValue("a")),
		"symbolic": &types.Compare{Subject: "I", Op: types.OpLe, Rhs: types.SymOperand{Text: "N"}},
		"other":    types.Cmp("J", types.OpLe, types.IntValue(1)),
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := types.IntervalSetOf([]types.Predicate{p}, "I", true)
			assert.False(t, ok)
		})
	}
}

func TestIntervalSubset(t *testing.T) {
	le5 := mustIntervals(t, true, cmpInt(types.OpLe, 5))
	le10 := mustIntervals(t, true, cmpInt(types.OpLe, 10))
	assert.True(t, le5.SubsetOf(le10))
	assert.False(t, le10.SubsetOf(le5))

	// over the integers, I < 6 and I <= 5 are the same set
	lt6 := mustIntervals(t, true, cmpInt(types.OpLt, 6))
	assert.True(t, lt6.SubsetOf(le5))
	assert.True(t, le5.SubsetOf(lt6))

	// but not over the rationals
	lt6r := mustIntervals(t, false, cmpInt(types.OpLt, 6))
	le5r := mustIntervals(t, false, cmpInt(types.OpLe, 5))
	assert.False(t, lt6r.SubsetOf(le5r))
}

func TestIntervalDifferenceNamesMissingRegion(t *testing.T) {
	nat := mustIntervals(t, true, cmpInt(types.OpGe, 0))
	covered := mustIntervals(t, true, types.OrPreds(cmpInt(types.OpEq, 0), cmpInt(types.OpEq, 1)))

	missing := nat.Difference(covered)
	assert.False(t, missing.IsEmpty())
	assert.Equal(t, "I >= 2", missing.ToPredicate("I").String())

	domain := mustIntervals(t, true, cmpInt(types.OpGe, 0), cmpInt(types.OpLe, 1))
	assert.True(t, domain.Difference(covered).IsEmpty())
}

func TestIntervalExactRationals(t *testing.T) {
	third := types.RatioValue(big.NewRat(1, 3))
	s, ok := types.IntervalSetOf([]types.Predicate{types.Cmp("I", types.OpLe, third)}, "I", false)
	require.True(t, ok)
	assert.True(t, s.Contains(types.RatioValue(big.NewRat(1, 3))))
	assert.False(t, s.Contains(types.RatioValue(big.NewRat(333334, 1000000))))

	// discretising 1/3 rounds the bound down to 0
	d, ok := types.IntervalSetOf([]types.Predicate{types.Cmp("I", types.OpLe, third)}, "I", true)
	require.True(t, ok)
	assert.Equal(t, "(-inf, 0]", d.String())
	assert.False(t, d.Contains(third))
}

func TestIntervalNegativeBounds(t *testing.T) {
	s := mustIntervals(t, true, types.Cmp("I", types.OpGt, types.RatioValue(big.NewRat(-5, 2))))
	assert.Equal(t, "[-2, +inf)", s.String())
}
