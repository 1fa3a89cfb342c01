package symbols_test

import (
	"testing"

	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/symbols"
	"github.com/cottand/typecore/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(name string, t types.Type) *symbols.Binding {
	return &symbols.Binding{Name: name, Kind: symbols.KindValue, Scheme: types.Mono(t)}
}

func TestResolve(t *testing.T) {
	global := symbols.New()
	global.Define(value("x", types.IntType))
	local := global.Child()
	local.Define(value("y", types.StrType))
	local.Define(value("x", types.BoolType))

	cases := map[string]struct {
		table *symbols.Table
		name  string
		want  types.Type
	}{
		"local":             {local, "y", types.StrType},
		"shadowed":          {local, "x", types.BoolType},
		"outer":             {global, "x", types.IntType},
		"inner is not seen": {global, "y", nil},
		"unknown":           {local, "z", nil},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			b, err := c.table.Resolve(c.name)
			if c.want == nil {
				assert.Equal(t, ilerr.NameNotFound, ilerr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, b.Scheme.Body)
		})
	}
}

func TestDeletionCascades(t *testing.T) {
	table := symbols.New()
	table.Define(value("a", types.IntType))
	table.Define(value("b", types.IntType))
	table.Define(value("c", types.IntType))
	table.Define(value("unrelated", types.IntType))
	table.DependOn("b", "a")
	table.DependOn("c", "b")

	assert.Equal(t, []string{"b", "c"}, table.Dependents("a"))
	assert.Equal(t, []string{"a"}, table.DependenciesOf("b"))

	invalidated, err := table.Delete("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, invalidated)

	for _, name := range []string{"a", "b", "c"} {
		_, err := table.Resolve(name)
		assert.Equal(t, ilerr.NameNotFound, ilerr.CodeOf(err), name)
	}
	_, err = table.Resolve("unrelated")
	assert.NoError(t, err)
	assert.True(t, table.Defines("b"))
	assert.False(t, table.Defines("a"))

	_, err = table.Delete("a")
	assert.Equal(t, ilerr.NameNotFound, ilerr.CodeOf(err))

	// checking b again defines it anew
	table.Define(value("b", types.IntType))
	_, err = table.Resolve("b")
	assert.NoError(t, err)
}

func TestRedefinitionInvalidatesDependents(t *testing.T) {
	table := symbols.New()
	table.Define(value("a", types.IntType))
	table.Define(value("b", types.IntType))
	table.DependOn("b", "a")

	invalidated := table.Define(value("a", types.StrType))
	assert.Equal(t, []string{"b"}, invalidated)
	b, ok := table.Lookup("b")
	assert.False(t, ok)
	assert.Nil(t, b)
}

func TestFreeVars(t *testing.T) {
	fresh := types.NewFresher()
	bound, free := fresh.Fresh("a"), fresh.Fresh("b")
	table := symbols.New()
	table.Define(&symbols.Binding{Name: "id", Scheme: &types.Scheme{Vars: []*types.TypeVar{bound}, Body: &types.Function{
		Params: []types.Param{{Type: bound}},
		Return: bound,
	}}})
	table.Child().Define(value("unused", free))
	inner := table.Child()
	inner.Define(value("x", free))

	assert.True(t, inner.FreeVars().Contains(free.ID))
	assert.False(t, inner.FreeVars().Contains(bound.ID))
	assert.False(t, table.FreeVars().Contains(free.ID))
}
