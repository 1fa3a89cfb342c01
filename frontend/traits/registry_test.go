package traits_test

import (
	"testing"

	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/traits"
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/internal/config"
	"github.com/cottand/typecore/internal/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var point = &types.Primitive{Name: "Point"}

func method(params []types.Type, ret types.Type) *types.Function {
	f := &types.Function{Return: ret}
	for _, p := range params {
		f.Params = append(f.Params, types.Param{Type: p})
	}
	return f
}

// registry declares a Point class with a show method, and two traits requiring
// exactly that method: Show is structural, Display is not
func registry(t *testing.T, m *metrics.Metrics) *traits.Registry {
	r := traits.New(config.Default(), m)
	showReq := map[string]types.Type{"show": method([]types.Type{types.Self}, types.StrType)}
	show := traits.NewTrait("Show", nil, showReq)
	show.Structural = true
	require.NoError(t, r.DeclareTrait(show))
	require.NoError(t, r.DeclareTrait(traits.NewTrait("Display", nil, showReq)))
	require.NoError(t, r.DeclareClass(&traits.Class{
		Name: "Point",
		Attrs: types.NewRecord(
			types.Field{Name: "x", Type: types.IntType},
			types.Field{Name: "y", Type: types.IntType},
			types.Field{Name: "show", Type: method([]types.Type{types.Self}, types.StrType)},
		),
	}))
	return r
}

func TestDeclarationsShareANamespace(t *testing.T) {
	r := registry(t, nil)
	cases := map[string]error{
		"trait twice":            r.DeclareTrait(traits.NewTrait("Show", nil, nil)),
		"trait named as a class": r.DeclareTrait(traits.NewTrait("Point", nil, nil)),
		"class named as a trait": r.DeclareClass(&traits.Class{Name: "Display"}),
		"built-in class":         r.DeclareClass(&traits.Class{Name: "Int"}),
	}
	for name, err := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, ilerr.DuplicateTraitName, ilerr.CodeOf(err))
		})
	}
	assert.Equal(t, ilerr.NameNotFound, ilerr.CodeOf(r.DeclareClass(&traits.Class{Name: "Pixel", Supers: []string{"Nope"}})))
}

func TestStructuralVersusNominalResolution(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := registry(t, m)

	impl, err := r.Resolve(point, &types.TraitRef{Name: "Show"})
	require.NoError(t, err)
	assert.True(t, impl.Synthesized)
	assert.True(t, types.Equal(method([]types.Type{point}, types.StrType), impl.Bindings["show"].Type))

	_, err = r.Resolve(point, &types.TraitRef{Name: "Display"})
	assert.Equal(t, ilerr.NotImplemented, ilerr.CodeOf(err))

	assert.True(t, r.Engine().IsSubtype(point, &types.TraitRef{Name: "Show"}))
	assert.False(t, r.Engine().IsSubtype(point, &types.TraitRef{Name: "Display"}))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TraitResolutions.WithLabelValues(metrics.ResolutionSynthesized)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TraitResolutions.WithLabelValues(metrics.ResolutionMissing)))

	require.NoError(t, r.RegisterImpl(&traits.Impl{
		Target:   point,
		Trait:    &types.TraitRef{Name: "Display"},
		Bindings: map[string]traits.Binding{"show": {Type: method([]types.Type{point}, types.StrType)}},
	}))
	impl, err = r.Resolve(point, &types.TraitRef{Name: "Display"})
	require.NoError(t, err)
	assert.False(t, impl.Synthesized)
}

func TestStructuralResolutionOfRecords(t *testing.T) {
	r := registry(t, nil)
	rec := types.NewRecord(types.Field{Name: "show", Type: method([]types.Type{types.ObjType}, types.StrType)})
	impl, err := r.Resolve(rec, &types.TraitRef{Name: "Show"})
	require.NoError(t, err)
	assert.True(t, impl.Synthesized)

	_, err = r.Resolve(types.NewRecord(types.Field{Name: "show", Type: types.StrType}), &types.TraitRef{Name: "Show"})
	assert.Equal(t, ilerr.NotImplemented, ilerr.CodeOf(err))
}

func TestRegisterImpl(t *testing.T) {
	r := registry(t, nil)
	err := r.RegisterImpl(&traits.Impl{
		Target:   types.IntType,
		Trait:    &types.TraitRef{Name: "Display"},
		Bindings: map[string]traits.Binding{},
	})
	var incomplete ilerr.NewIncompleteImplementation
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []string{"show"}, incomplete.Missing)

	err = r.RegisterImpl(&traits.Impl{
		Target:   types.IntType,
		Trait:    &types.TraitRef{Name: "Display"},
		Bindings: map[string]traits.Binding{"show": {Type: method([]types.Type{types.StrType}, types.StrType)}},
	})
	require.True(t, errors.As(err, &incomplete))
	require.Len(t, incomplete.Mismatched, 1)
	assert.Equal(t, "show", incomplete.Mismatched[0].Attr)

	// a wider parameter is fine, Self is substituted with Int
	require.NoError(t, r.RegisterImpl(&traits.Impl{
		Target:   types.IntType,
		Trait:    &types.TraitRef{Name: "Display"},
		Bindings: map[string]traits.Binding{"show": {Type: method([]types.Type{types.ObjType}, types.StrType)}},
	}))

	err = r.RegisterImpl(&traits.Impl{Target: types.IntType, Trait: &types.TraitRef{Name: "Add"}})
	assert.Equal(t, ilerr.TypeMismatch, ilerr.CodeOf(err))
}

func TestAmbiguousAttribute(t *testing.T) {
	r := registry(t, nil)
	require.NoError(t, r.RegisterImpl(&traits.Impl{
		Target: point,
		Trait:  &types.TraitRef{Name: "Add", Args: []types.Type{point}},
		Bindings: map[string]traits.Binding{
			"Output":  {Type: types.TypeType, Value: point},
			"__add__": {Type: method([]types.Type{point, point}, point)},
		},
	}))
	require.NoError(t, r.RegisterImpl(&traits.Impl{
		Target: point,
		Trait:  &types.TraitRef{Name: "Mul", Args: []types.Type{types.IntType}},
		Bindings: map[string]traits.Binding{
			"Output":  {Type: types.TypeType, Value: types.IntType},
			"__mul__": {Type: method([]types.Type{point, types.IntType}, types.IntType)},
		},
	}))

	_, _, err := r.LookupAttr(point, "Output", nil)
	var ambiguous ilerr.NewAmbiguousAttribute
	require.True(t, errors.As(err, &ambiguous))
	assert.Len(t, ambiguous.Candidates, 2)

	typ, impl, err := r.LookupAttr(point, "Output", &types.TraitRef{Name: "Add", Args: []types.Type{point}})
	require.NoError(t, err)
	assert.Equal(t, "Add(Point)", impl.Trait.String())
	assert.True(t, types.Equal(types.Singleton(types.TypeValue(point)), typ))

	typ, _, err = r.LookupAttr(point, "Output", &types.TraitRef{Name: "Mul", Args: []types.Type{types.IntType}})
	require.NoError(t, err)
	assert.True(t, types.Equal(types.Singleton(types.TypeValue(types.IntType)), typ))

	// unambiguous attributes need no qualifier, and class attributes come first
	_, impl, err = r.LookupAttr(point, "__add__", nil)
	require.NoError(t, err)
	assert.Equal(t, "Add", impl.Trait.Name)
	typ, impl, err = r.LookupAttr(point, "x", nil)
	require.NoError(t, err)
	assert.Nil(t, impl)
	assert.Equal(t, types.IntType, typ)

	_, _, err = r.LookupAttr(point, "z", nil)
	assert.Equal(t, ilerr.NameNotFound, ilerr.CodeOf(err))
}

func TestOperatorImplementations(t *testing.T) {
	r := traits.New(config.Default(), nil)
	add := func(rhs types.Type) *types.TraitRef { return &types.TraitRef{Name: "Add", Args: []types.Type{rhs}} }
	cases := map[string]struct {
		target types.Type
		trait  *types.TraitRef
		output types.Type
	}{
		"int plus int":     {types.IntType, add(types.IntType), types.IntType},
		"nat plus nat":     {types.NatType, add(types.NatType), types.NatType},
		"nat plus int":     {types.NatType, add(types.IntType), types.IntType},
		"int plus nat":     {types.IntType, add(types.NatType), types.IntType},
		"int plus float":   {types.IntType, add(types.FloatType), types.FloatType},
		"int plus ratio":   {types.IntType, add(types.RatioType), types.RatioType},
		"refined int":      {types.MustRefinement(types.IntType, "I", types.Cmp("I", types.OpLe, types.IntValue(5))), add(types.IntType), types.IntType},
		"string concat":    {types.StrType, add(types.StrType), types.StrType},
		"nat minus nat":    {types.NatType, &types.TraitRef{Name: "Sub", Args: []types.Type{types.NatType}}, types.IntType},
		"int divided":      {types.IntType, &types.TraitRef{Name: "Div", Args: []types.Type{types.IntType}}, types.RatioType},
		"str is not added": {types.StrType, add(types.IntType), nil},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			impl, err := r.Resolve(c.target, c.trait)
			if c.output == nil {
				assert.Equal(t, ilerr.NotImplemented, ilerr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			output, ok := impl.Assoc("Output")
			require.True(t, ok)
			assert.Equal(t, c.output, output)
		})
	}
	assert.True(t, r.Engine().IsSubtype(types.NatType, &types.TraitRef{Name: "Ord"}))
	assert.True(t, r.Engine().IsSubtype(&types.TraitRef{Name: "Ord"}, &types.TraitRef{Name: "Eq"}))
	assert.False(t, r.Engine().IsSubtype(&types.TraitRef{Name: "Eq"}, &types.TraitRef{Name: "Ord"}))
}

func TestGenericImplementation(t *testing.T) {
	r := traits.New(config.Default(), nil)
	elem := r.NewParam("T")
	array := func(t types.Type) types.Type { return &types.Poly{Name: "Array", Args: []types.Type{t}} }
	require.NoError(t, r.RegisterImpl(&traits.Impl{
		Params:   []*types.TypeVar{elem},
		Target:   array(elem),
		Trait:    &types.TraitRef{Name: "Eq"},
		Bindings: map[string]traits.Binding{"__eq__": {Type: method([]types.Type{array(elem), array(elem)}, types.BoolType)}},
	}))
	impl, err := r.Resolve(array(types.StrType), &types.TraitRef{Name: "Eq"})
	require.NoError(t, err)
	assert.Equal(t, "(Array(Str), Array(Str)) -> Bool", impl.Bindings["__eq__"].Type.String())

	_, err = r.Resolve(&types.Poly{Name: "List", Args: []types.Type{types.StrType}}, &types.TraitRef{Name: "Eq"})
	assert.Equal(t, ilerr.NotImplemented, ilerr.CodeOf(err))
}
