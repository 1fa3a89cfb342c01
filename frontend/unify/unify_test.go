package unify_test

import (
	"testing"

	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/subtype"
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/frontend/unify"
	"github.com/cottand/typecore/internal/config"
	"github.com/cottand/typecore/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type showable struct{ subtype.Builtins }

func (showable) Implements(_ subtype.Checker, t types.Type, trait *types.TraitRef) bool {
	return trait.Name == "Show" && types.IsPrimitive(t, types.StrType.Name)
}

func engine() *subtype.Engine {
	return subtype.New(showable{}, config.Default(), nil)
}

var fresh = types.NewFresher()

func fn(ret types.Type, params ...types.Param) *types.Function {
	return &types.Function{Params: params, Return: ret}
}

func named(name string, t types.Type) types.Param { return types.Param{Name: name, Type: t} }

func enum(vs ...int64) types.Type {
	values := make([]types.Value, len(vs))
	for i, v := range vs {
		values[i] = types.IntValue(v)
	}
	return &types.Enum{Values: values}
}

func upTo(i int64) types.Type {
	return types.MustRefinement(types.IntType, "I", types.Cmp("I", types.OpLe, types.IntValue(i)))
}

func list(t types.Type) types.Type { return &types.Poly{Name: "List", Args: []types.Type{t}} }

func TestUnifySoundness(t *testing.T) {
	a := fresh.Fresh("a")
	subst, err := unify.Unify(engine(), a, types.IntType)
	require.NoError(t, err)
	assert.Equal(t, types.IntType, subst.Apply(a))

	_, err = unify.Unify(engine(), types.IntType, types.StrType)
	assert.Equal(t, ilerr.TypeMismatch, ilerr.CodeOf(err))
}

func TestUnify(t *testing.T) {
	a, b := fresh.Fresh("a"), fresh.Fresh("b")
	cases := map[string]struct {
		lhs, rhs types.Type
		code     ilerr.ErrCode
	}{
		"same primitive":        {types.IntType, types.IntType, ilerr.None},
		"different primitives":  {types.IntType, types.StrType, ilerr.TypeMismatch},
		"nat is not int":        {types.NatType, types.IntType, ilerr.TypeMismatch},
		"occurs check":          {a, fn(types.IntType, named("", a)), ilerr.InfiniteType},
		"variables":             {list(a), list(b), ilerr.None},
		"param names differ":    {fn(types.IntType, named("x", types.IntType), named("y", types.IntType)), fn(types.IntType, named("a", types.IntType), named("b", types.IntType)), ilerr.ParameterNameMismatch},
		"unnamed ignores names": {fn(types.IntType, named("", types.IntType), named("", types.IntType)), fn(types.IntType, named("a", types.IntType), named("b", types.IntType)), ilerr.None},
		"arity":                 {fn(types.IntType, named("", types.IntType)), fn(types.IntType), ilerr.TypeMismatch},
		"records with extra field": {
			types.NewRecord(types.Field{Name: "a", Type: types.IntType}),
			types.NewRecord(types.Field{Name: "a", Type: types.IntType}, types.Field{Name: "b", Type: types.IntType}),
			ilerr.TypeMismatch,
		},
		"enum and refinement": {enum(1, 2), types.MustRefinement(types.IntType, "I", types.OrPreds(types.Cmp("I", types.OpEq, types.IntValue(1)), types.Cmp("I", types.OpEq, types.IntValue(2)))), ilerr.None},
		"enum and interval":   {enum(0, 1), &types.Interval{Lo: types.IntValue(0), Hi: types.IntValue(1)}, ilerr.None},
		"refinements differ":  {upTo(5), upTo(10), ilerr.TypeMismatch},
		"nat as refinement":   {types.NatType, types.MustRefinement(types.IntType, "I", types.Cmp("I", types.OpGe, types.IntValue(0))), ilerr.None},
		"poly arity":          {&types.Poly{Name: "Array", Args: []types.Type{types.IntType}}, &types.Poly{Name: "Array", Args: []types.Type{types.IntType, &types.Const{Value: types.IntValue(1)}}}, ilerr.TypeMismatch},
		"dependent length":    {&types.Poly{Name: "Array", Args: []types.Type{types.IntType, b}}, &types.Poly{Name: "Array", Args: []types.Type{types.IntType, &types.Const{Value: types.IntValue(3)}}}, ilerr.None},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := unify.Unify(engine(), c.lhs, c.rhs)
			assert.Equal(t, c.code, ilerr.CodeOf(err), "error: %v", err)
		})
	}
}

func TestConstrain(t *testing.T) {
	a := fresh.Fresh("a")
	cases := map[string]struct {
		sub, super types.Type
		code       ilerr.ErrCode
	}{
		"nat under int":       {types.NatType, types.IntType, ilerr.None},
		"int under nat":       {types.IntType, types.NatType, ilerr.TypeMismatch},
		"interval entailment": {upTo(5), upTo(10), ilerr.None},
		"interval too wide":   {upTo(10), upTo(5), ilerr.TypeMismatch},
		"width subsumption": {
			types.NewRecord(types.Field{Name: "a", Type: types.NatType}, types.Field{Name: "b", Type: types.IntType}),
			types.NewRecord(types.Field{Name: "a", Type: types.IntType}),
			ilerr.None,
		},
		"missing field": {
			types.NewRecord(types.Field{Name: "b", Type: types.IntType}),
			types.NewRecord(types.Field{Name: "a", Type: types.IntType}),
			ilerr.TypeMismatch,
		},
		"contravariant params": {fn(types.NatType, named("x", types.IntType)), fn(types.IntType, named("x", types.NatType)), ilerr.None},
		"named params differ":  {fn(types.IntType, named("a", types.IntType)), fn(types.IntType, named("x", types.IntType)), ilerr.ParameterNameMismatch},
		"or alternative":       {types.NatType, &types.Or{Lhs: types.StrType, Rhs: types.IntType}, ilerr.None},
		"or split":             {types.NatType, &types.Or{Lhs: enum(0), Rhs: types.MustRefinement(types.IntType, "I", types.Cmp("I", types.OpGe, types.IntValue(1)))}, ilerr.None},
		"or none":              {types.FloatType, &types.Or{Lhs: types.StrType, Rhs: types.IntType}, ilerr.TypeMismatch},
		"trait":                {types.StrType, &types.TraitRef{Name: "Show"}, ilerr.None},
		"trait missing":        {types.IntType, &types.TraitRef{Name: "Show"}, ilerr.NotImplemented},
		"singleton argument":   {types.Singleton(types.IntValue(3)), types.NatType, ilerr.None},
		"variable":             {types.NatType, a, ilerr.None},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := unify.Constrain(engine(), c.sub, c.super)
			assert.Equal(t, c.code, ilerr.CodeOf(err), "error: %v", err)
		})
	}
}

func TestOrAlternativesDoNotLeak(t *testing.T) {
	a := fresh.Fresh("a")
	u := unify.New(engine(), config.Default(), nil)
	require.NoError(t, u.Constrain(list(a), &types.Or{Lhs: list(types.StrType), Rhs: types.IntType}))
	assert.Equal(t, list(types.StrType).String(), u.Apply(list(a)).String())

	b := fresh.Fresh("b")
	super := &types.Or{
		Lhs: &types.Poly{Name: "Pair", Args: []types.Type{types.StrType, types.StrType}},
		Rhs: &types.Poly{Name: "Pair", Args: []types.Type{types.IntType, types.IntType}},
	}
	require.NoError(t, u.Constrain(&types.Poly{Name: "Pair", Args: []types.Type{b, types.IntType}}, super))
	assert.Equal(t, types.IntType, u.Apply(b))
}

func TestFailedConstraintLeavesSubstitution(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	a := fresh.Fresh("a")
	u := unify.New(engine(), config.Default(), m)

	err := u.Unify(
		&types.Poly{Name: "Pair", Args: []types.Type{a, types.IntType}},
		&types.Poly{Name: "Pair", Args: []types.Type{types.StrType, types.StrType}},
	)
	require.Error(t, err)
	assert.Equal(t, a, u.Apply(a))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UnifyFailures.WithLabelValues(ilerr.TypeMismatch.String())))
}

func TestBoundedVariables(t *testing.T) {
	nat := fresh.FreshBounded("n", types.NatType)
	u := unify.New(engine(), config.Default(), nil)
	assert.Equal(t, ilerr.TypeMismatch, ilerr.CodeOf(u.Unify(nat, types.StrType)))
	require.NoError(t, u.Unify(nat, enum(0, 1)))

	loose, tight := fresh.FreshBounded("i", types.IntType), fresh.FreshBounded("n", types.NatType)
	require.NoError(t, u.Unify(loose, tight))
	assert.Equal(t, tight, u.Apply(loose))
}

func TestTraitObligationsAreDeferred(t *testing.T) {
	a, b := fresh.Fresh("a"), fresh.Fresh("b")
	show := &types.TraitRef{Name: "Show"}
	u := unify.New(engine(), config.Default(), nil)

	require.NoError(t, u.Constrain(a, show))
	require.NoError(t, u.Constrain(b, show))
	assert.Len(t, u.Pending(), 2)

	require.NoError(t, u.Unify(a, types.StrType))
	require.NoError(t, u.Discharge())
	assert.Equal(t, []unify.Obligation{{Sub: b, Super: show}}, u.Pending())

	require.NoError(t, u.Unify(b, types.IntType))
	assert.Equal(t, ilerr.NotImplemented, ilerr.CodeOf(u.Discharge()))
}
