package types_test

import (
	"testing"

	"github.com/cottand/typecore/frontend/types"
	"github.com/hashicorp/go-set/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstApply(t *testing.T) {
	fresh := types.NewFresher()
	a, b := fresh.Fresh("a"), fresh.Fresh("b")
	fn := &types.Function{Params: []types.Param{{Name: "x", Type: a}}, Return: b}

	s := types.Subst{a.ID: b, b.ID: types.IntType}
	applied := s.Apply(fn)
	expected := &types.Function{Params: []types.Param{{Name: "x", Type: types.IntType}}, Return: types.IntType}
	assert.True(t, types.Equal(expected, applied), "got %s", applied)

	// the original is untouched
	assert.True(t, types.Equal(a, fn.Params[0].Type))
}

func TestSubstCompose(t *testing.T) {
	fresh := types.NewFresher()
	a, b := fresh.Fresh("a"), fresh.Fresh("b")
	first := types.Subst{a.ID: &types.Poly{Name: "Array", Args: []types.Type{b}}}
	second := types.Subst{b.ID: types.StrType}

	composed := first.Compose(second)
	got := composed.Apply(a)
	assert.Equal(t, "Array(Str)", got.String())
}

func TestFreeVarsAndOccurs(t *testing.T) {
	fresh := types.NewFresher()
	a, b := fresh.Fresh("a"), fresh.Fresh("b")
	fn := &types.Function{Params: []types.Param{{Type: a}, {Type: types.Self}}, Return: &types.Poly{Name: "Array", Args: []types.Type{b}}}

	free := types.FreeVars(fn)
	assert.True(t, free.Contains(a.ID))
	assert.True(t, free.Contains(b.ID))
	assert.False(t, free.Contains(types.SelfID), "Self is a placeholder, never a free variable")
	assert.Equal(t, 2, free.Size())

	assert.True(t, types.Occurs(b.ID, fn))
	assert.False(t, types.Occurs(fresh.Fresh("c").ID, fn))
	assert.True(t, types.MentionsSelf(fn))
}

func TestGeneralizeAndInstantiate(t *testing.T) {
	fresh := types.NewFresher()
	a, env := fresh.Fresh("a"), fresh.Fresh("env")
	identity := &types.Function{Params: []types.Param{{Type: a}, {Type: env}}, Return: a}

	scheme := types.Generalize(identity, set.From([]types.TypeVarID{env.ID}))
	require.Len(t, scheme.Vars, 1)
	assert.Equal(t, a.ID, scheme.Vars[0].ID)

	first := scheme.Instantiate(fresh).(*types.Function)
	second := scheme.Instantiate(fresh).(*types.Function)
	assert.False(t, types.Equal(first, second), "each instantiation gets its own variables")
	assert.True(t, types.Equal(first.Params[0].Type, first.Return))
	assert.True(t, types.Equal(env, first.Params[1].Type), "variables free in the environment are not quantified")
}
