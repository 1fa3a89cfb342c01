package subtype_test

import (
	"slices"
	"testing"

	"github.com/cottand/typecore/frontend/subtype"
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/internal/config"
	"github.com/cottand/typecore/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// classes is a small nominal lattice on top of the built-ins, for tests that need
// user classes, attributes and trait implementations
type classes struct {
	subtype.Builtins
	supers map[string][]string
	impls  map[string][]string
	attrs  map[string]*types.Record
}

func (c classes) SubclassOf(sub, super string) bool {
	return subtype.Reachable(sub, super, func(name string) []string {
		return append(slices.Clone(c.supers[name]), subtype.BuiltinSupers(name)...)
	})
}

func (c classes) Implements(_ subtype.Checker, t types.Type, trait *types.TraitRef) bool {
	p, ok := t.(*types.Primitive)
	return ok && slices.Contains(c.impls[p.Name], trait.Name)
}

func (c classes) AttrsOf(t types.Type) (*types.Record, bool) {
	p, ok := t.(*types.Primitive)
	if !ok {
		return nil, false
	}
	r, ok := c.attrs[p.Name]
	return r, ok
}

var point = &types.Primitive{Name: "Point"}

func newEngine() *subtype.Engine {
	return subtype.New(classes{
		supers: map[string][]string{"Point": {types.ObjName}},
		impls:  map[string][]string{"Point": {"Show"}},
		attrs: map[string]*types.Record{"Point": types.NewRecord(
			types.Field{Name: "x", Type: types.IntType},
			types.Field{Name: "y", Type: types.IntType},
		)},
	}, config.Default(), nil)
}

func upTo(i int64) types.Type {
	return types.MustRefinement(types.IntType, "I", types.Cmp("I", types.OpLe, types.IntValue(i)))
}

func enum(vs ...int64) types.Type {
	values := make([]types.Value, len(vs))
	for i, v := range vs {
		values[i] = types.IntValue(v)
	}
	return &types.Enum{Values: values}
}

func interval(lo, hi int64) types.Type {
	return &types.Interval{Lo: types.IntValue(lo), Hi: types.IntValue(hi)}
}

func fn(ret types.Type, params ...types.Param) *types.Function {
	return &types.Function{Params: params, Return: ret}
}

func param(name string, t types.Type) types.Param {
	return types.Param{Name: name, Type: t}
}

func sampleTypes() []types.Type {
	return []types.Type{
		types.NeverType, types.NatType, types.IntType, types.RatioType, types.FloatType,
		types.ObjType, types.BoolType, types.StrType,
		enum(0, 1), interval(0, 1), upTo(5), upTo(10),
		&types.Enum{Values: []types.Value{types.BoolValue(true)}},
		&types.Or{Lhs: types.IntType, Rhs: types.StrType},
		types.NewRecord(types.Field{Name: "x", Type: types.IntType}),
		point,
		fn(types.IntType, param("", types.NatType)),
	}
}

func TestReflexivity(t *testing.T) {
	e := newEngine()
	for _, typ := range sampleTypes() {
		t.Run(typ.String(), func(t *testing.T) {
			assert.True(t, e.IsSubtype(typ, typ))
		})
	}
}

func TestTransitivity(t *testing.T) {
	e := newEngine()
	ts := sampleTypes()
	for _, a := range ts {
		for _, b := range ts {
			if !e.IsSubtype(a, b) {
				continue
			}
			for _, c := range ts {
				if e.IsSubtype(b, c) {
					assert.True(t, e.IsSubtype(a, c), "%s <: %s <: %s", a, b, c)
				}
			}
		}
	}
}

func TestIsSubtype(t *testing.T) {
	floatUpTo := func(f float64) types.Type {
		return types.MustRefinement(types.FloatType, "F", types.Cmp("F", types.OpLe, types.FloatValue(f)))
	}
	strs := func(ss ...string) types.Type {
		values := make([]types.Value, len(ss))
		for i, s := range ss {
			values[i] = types.StrValue(s)
		}
		return &types.Enum{Values: values}
	}
	bounded := types.MustRefinement(types.IntType, "J", types.Cmp("J", types.OpLe, types.IntValue(5)), types.Cmp("J", types.OpGe, types.IntValue(0)))
	symbolic := types.MustRefinement(types.IntType, "I", &types.Compare{Subject: "I", Op: types.OpLe, Rhs: types.SymOperand{Text: "N"}})

	cases := map[string]struct {
		sub, super types.Type
		expected   bool
	}{
		"interval entailment":        {upTo(5), upTo(10), true},
		"interval entailment wrong":  {upTo(10), upTo(5), false},
		"nat under int":              {types.NatType, types.IntType, true},
		"int not under nat":          {types.IntType, types.NatType, false},
		"nat under float":            {types.NatType, types.FloatType, true},
		"non negative is nat":        {types.MustRefinement(types.IntType, "I", types.Cmp("I", types.OpGe, types.IntValue(0))), types.NatType, true},
		"enum under nat":             {enum(0, 1), types.NatType, true},
		"enum under interval":        {enum(0, 1), interval(0, 1), true},
		"interval under enum":        {interval(0, 1), enum(0, 1), true},
		"interval not under enum":    {interval(0, 2), enum(0, 1), false},
		"enum under its base":        {enum(3, 4), types.IntType, true},
		"enum under upper bound":     {enum(3, 4), upTo(4), true},
		"singleton":                  {types.Singleton(types.IntValue(3)), upTo(5), true},
		"singleton outside":          {types.Singleton(types.IntValue(6)), upTo(5), false},
		"int not under refinement":   {types.IntType, upTo(5), false},
		"int not under enum":         {types.IntType, enum(0, 1), false},
		"dropping a conjunct":        {bounded, upTo(5), true},
		"adding a conjunct":          {upTo(5), bounded, false},
		"nat split across or":        {types.NatType, &types.Or{Lhs: enum(0), Rhs: types.MustRefinement(types.IntType, "I", types.Cmp("I", types.OpGe, types.IntValue(1)))}, true},
		"nat not covered by or":      {types.NatType, &types.Or{Lhs: enum(0), Rhs: types.MustRefinement(types.IntType, "I", types.Cmp("I", types.OpGe, types.IntValue(2)))}, false},
		"empty refinement is bottom": {types.MustRefinement(types.IntType, "I", types.Cmp("I", types.OpGt, types.IntValue(1)), types.Cmp("I", types.OpLt, types.IntValue(1))), types.StrType, true},
		"bool as enumeration":        {types.BoolType, &types.Enum{Values: []types.Value{types.BoolValue(false), types.BoolValue(true)}}, true},
		"string literals":            {strs("a", "b"), strs("a", "b", "c"), true},
		"string literals missing":    {strs("a", "d"), strs("a", "b", "c"), false},
		"string cofinite":            {strs("a"), types.MustRefinement(types.StrType, "S", types.Cmp("S", types.OpNe, types.StrValue("b"))), true},
		"float never entails":        {floatUpTo(5), floatUpTo(10), false},
		"float identity":             {floatUpTo(5), floatUpTo(5), true},
		"symbolic identity":          {symbolic, symbolic, true},
		"symbolic never entails":     {symbolic, upTo(10), false},
		"never is bottom":            {types.NeverType, upTo(0), true},
		"obj is top":                 {fn(types.IntType), types.ObjType, true},
		"unrelated classes":          {types.StrType, types.IntType, false},
		"or on the left":             {&types.Or{Lhs: types.NatType, Rhs: enum(-1)}, types.IntType, true},
		"and on the right":           {enum(1), &types.And{Lhs: types.NatType, Rhs: upTo(3)}, true},
		"disjoint from complement":   {types.StrType, &types.Not{Inner: types.IntType}, true},
		"overlaps complement":        {types.NatType, &types.Not{Inner: enum(0)}, false},
		"class not under int":        {point, types.IntType, false},
		"trait by implementation":    {point, &types.TraitRef{Name: "Show"}, true},
		"trait not implemented":      {types.IntType, &types.TraitRef{Name: "Show"}, false},
		"bounded variable":           {&types.TypeVar{ID: 7, Bound: types.NatType}, types.IntType, true},
		"free variable":              {&types.TypeVar{ID: 7}, types.IntType, false},
		"invariant poly":             {&types.Poly{Name: "Array", Args: []types.Type{types.NatType}}, &types.Poly{Name: "Array", Args: []types.Type{types.IntType}}, false},
		"equal poly":                 {&types.Poly{Name: "Array", Args: []types.Type{types.IntType, &types.Const{Value: types.IntValue(3)}}}, &types.Poly{Name: "Array", Args: []types.Type{types.IntType, &types.Const{Value: types.IntValue(3)}}}, true},
	}
	e := newEngine()
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.expected, e.IsSubtype(c.sub, c.super))
		})
	}
}

func TestFunctionSubtyping(t *testing.T) {
	cases := map[string]struct {
		sub, super *types.Function
		expected   bool
	}{
		"contravariant params":  {fn(types.NatType, param("", types.IntType)), fn(types.IntType, param("", types.NatType)), true},
		"covariant return":      {fn(types.IntType, param("", types.NatType)), fn(types.NatType, param("", types.IntType)), false},
		"same names":            {fn(types.IntType, param("x", types.IntType)), fn(types.IntType, param("x", types.IntType)), true},
		"different names":       {fn(types.IntType, param("x", types.IntType)), fn(types.IntType, param("y", types.IntType)), false},
		"unnamed ignores names": {fn(types.IntType, param("x", types.IntType)), fn(types.IntType, param("", types.IntType)), true},
		"missing param":         {fn(types.IntType), fn(types.IntType, param("", types.IntType)), false},
		"extra param with default": {
			fn(types.IntType, param("x", types.IntType), types.Param{Name: "y", Type: types.IntType, HasDefault: true}),
			fn(types.IntType, param("x", types.IntType)),
			true,
		},
		"extra required param": {fn(types.IntType, param("x", types.IntType), param("y", types.IntType)), fn(types.IntType, param("x", types.IntType)), false},
		"extra keyword with default": {
			&types.Function{Params: []types.Param{param("x", types.IntType)}, KwParams: []types.Param{{Name: "base", Type: types.NatType, HasDefault: true}}, Return: types.IntType},
			fn(types.IntType, param("x", types.IntType)),
			true,
		},
		"keyword by name": {
			&types.Function{KwParams: []types.Param{{Name: "base", Type: types.IntType}}, Return: types.IntType},
			&types.Function{KwParams: []types.Param{{Name: "base", Type: types.NatType}}, Return: types.IntType},
			true,
		},
	}
	e := newEngine()
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.expected, e.IsSubtype(c.sub, c.super))
		})
	}
}

func TestRecordSubtyping(t *testing.T) {
	rec := func(fields ...types.Field) *types.Record { return types.NewRecord(fields...) }
	cases := map[string]struct {
		sub, super types.Type
		expected   bool
	}{
		"width":          {rec(types.Field{Name: "a", Type: types.IntType}, types.Field{Name: "b", Type: types.StrType}), rec(types.Field{Name: "a", Type: types.IntType}), true},
		"depth":          {rec(types.Field{Name: "a", Type: types.NatType}), rec(types.Field{Name: "a", Type: types.IntType}), true},
		"depth wrong":    {rec(types.Field{Name: "a", Type: types.IntType}), rec(types.Field{Name: "a", Type: types.NatType}), false},
		"missing field":  {rec(), rec(types.Field{Name: "a", Type: types.IntType}), false},
		"class attrs":    {point, rec(types.Field{Name: "x", Type: types.IntType}), true},
		"class attrs no": {point, rec(types.Field{Name: "z", Type: types.IntType}), false},
	}
	e := newEngine()
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.expected, e.IsSubtype(c.sub, c.super))
		})
	}
}

func TestDepthLimitAnswersNegatively(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	opts := config.Default()
	opts.SubtypeDepth = 2
	e := subtype.New(subtype.Builtins{}, opts, m)

	nested := func(inner types.Type) types.Type {
		for range 4 {
			inner = fn(inner, param("", types.IntType))
		}
		return inner
	}
	assert.False(t, e.IsSubtype(nested(types.NatType), nested(types.IntType)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubtypeDepthExceeded))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubtypeQueries.WithLabelValues("false")))
}
