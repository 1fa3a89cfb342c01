package rtcheck_test

import (
	"testing"

	"github.com/cottand/typecore/frontend/rtcheck"
	"github.com/cottand/typecore/frontend/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	lessThan10 := types.MustRefinement(types.IntType, "I", types.Cmp("I", types.OpLt, types.IntValue(10)))
	cases := map[string]struct {
		value types.Value
		typ   types.Type
		want  bool
	}{
		"int in int":           {types.IntValue(3), types.IntType, true},
		"int in ratio":         {types.IntValue(3), types.RatioType, true},
		"int in float":         {types.IntValue(3), types.FloatType, true},
		"float not in int":     {types.FloatValue(3), types.IntType, false},
		"natural":              {types.IntValue(0), types.NatType, true},
		"negative":             {types.IntValue(-1), types.NatType, false},
		"refined":              {types.IntValue(9), lessThan10, true},
		"refined out of range": {types.IntValue(10), lessThan10, false},
		"refined wrong base":   {types.StrValue("a"), lessThan10, false},
		"enum":                 {types.StrValue("b"), &types.Enum{Values: []types.Value{types.StrValue("a"), types.StrValue("b")}}, true},
		"not in enum":          {types.StrValue("c"), &types.Enum{Values: []types.Value{types.StrValue("a"), types.StrValue("b")}}, false},
		"interval":             {types.IntValue(5), &types.Interval{Lo: types.IntValue(1), Hi: types.IntValue(5)}, true},
		"open interval":        {types.IntValue(5), &types.Interval{Lo: types.IntValue(1), Hi: types.IntValue(5), OpenHi: true}, false},
		"or":                   {types.StrValue("a"), &types.Or{Lhs: types.IntType, Rhs: types.StrType}, true},
		"and":                  {types.IntValue(5), &types.And{Lhs: types.NatType, Rhs: lessThan10}, true},
		"not":                  {types.IntValue(-5), &types.Not{Inner: types.NatType}, true},
		"anything":             {types.NoneValue(), types.ObjType, true},
		"nothing":              {types.NoneValue(), types.NeverType, false},
		"type value":           {types.TypeValue(types.IntType), types.TypeType, true},
		"functions are opaque": {types.IntValue(1), &types.Function{Return: types.IntType}, false},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.want, rtcheck.Check(c.value, c.typ))
		})
	}
}

func TestAssert(t *testing.T) {
	assert.NoError(t, rtcheck.Assert(types.IntValue(1), types.NatType))
	assert.True(t, errors.Is(rtcheck.Assert(types.IntValue(-1), types.NatType), rtcheck.ErrAssertion))

	symbolic := types.MustRefinement(types.IntType, "I", &types.Compare{Subject: "I", Op: types.OpLe, Rhs: types.SymOperand{Text: "N"}})
	assert.True(t, errors.Is(rtcheck.Assert(types.IntValue(1), symbolic), rtcheck.ErrUncheckable))
}
