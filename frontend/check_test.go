package frontend_test

import (
	"context"
	"go/token"
	"testing"

	"github.com/cottand/typecore/frontend"
	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/traits"
	"github.com/cottand/typecore/internal/config"
	"github.com/cottand/typecore/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(text string) ast.Expr { return &ast.Literal{Kind: ast.LitInt, Text: text} }
func ident(name string) ast.Expr {
	return &ast.Ident{Name: name}
}
func bin(op token.Token, l, r ast.Expr) ast.Expr { return &ast.BinOp{Op: op, Lhs: l, Rhs: r} }
func value(name string, ann ast.TypeExpr, e ast.Expr) *ast.Declaration {
	return &ast.Declaration{Name: name, TypeAnn: ann, Value: e}
}

func module(name string, decls ...ast.Decl) *ast.Module {
	return &ast.Module{Name: name, Decls: decls}
}

func env(name string) *frontend.Env {
	return frontend.NewEnv(name, traits.New(config.Default(), nil), config.Default(), nil)
}

// sized declares
//
//	trait Size: size: (Self) -> Nat
//	Str impls Size: size = fn s -> 3
func sized() []ast.Decl {
	return []ast.Decl{
		&ast.TraitDecl{Name: "Size", Required: []*ast.AttrDecl{{
			Name: "size",
			Type: &ast.TFunc{Params: []ast.TParam{{Type: &ast.TName{Name: "Self"}}}, Return: &ast.TName{Name: "Nat"}},
		}}},
		&ast.ImplDecl{
			Target: &ast.TName{Name: "Str"},
			Trait:  &ast.TName{Name: "Size"},
			Bindings: []*ast.ImplBinding{{
				Name:  "size",
				Value: &ast.Lambda{Params: []*ast.Param{{Name: "s"}}, Body: num("3")},
			}},
		},
	}
}

func size() *ast.Declaration {
	method := &ast.Attr{Receiver: &ast.Literal{Kind: ast.LitStr, Text: `"ab"`}, Name: "size"}
	return value("n", nil, &ast.Call{Func: method})
}

func TestFailuresAreIndependent(t *testing.T) {
	m := module("main",
		value("bad", &ast.TName{Name: "Nat"}, bin(token.SUB, num("2"), num("3"))),
		value("ok", nil, num("1")),
		value("dependent", nil, bin(token.ADD, ident("bad"), num("1"))),
	)
	res := frontend.CheckModule(context.Background(), m, env("main"))

	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, []ilerr.ErrCode{ilerr.TypeMismatch}, res.Errors.Codes())
	for name, failed := range map[string]bool{"bad": true, "ok": false, "dependent": false} {
		o, ok := res.Outcome(name)
		require.True(t, ok, name)
		assert.Equal(t, failed, o.Failed(), name)
	}
}

func TestDeletionCascade(t *testing.T) {
	m := module("main",
		value("a", nil, num("1")),
		value("b", nil, bin(token.ADD, ident("a"), num("1"))),
		value("c", nil, bin(token.MUL, ident("b"), num("2"))),
		value("unrelated", nil, num("3")),
	)
	e := env("main")
	res := frontend.CheckModule(context.Background(), m, e)
	require.False(t, res.Failed(), "%v", res.Errors)

	invalidated, err := e.Delete("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, invalidated)

	res, err = e.Check(context.Background(), m.Decls)
	require.NoError(t, err)
	assert.Len(t, res.Outcomes, 3)
	assert.Equal(t, []ilerr.ErrCode{ilerr.NameNotFound, ilerr.NameNotFound}, res.Errors.Codes())
	o, ok := res.Outcome("unrelated")
	require.True(t, ok)
	assert.False(t, o.Failed())

	_, err = e.Delete("a")
	assert.Equal(t, ilerr.NameNotFound, ilerr.CodeOf(err))
}

func TestDeletingATraitRemovesItsImplementations(t *testing.T) {
	m := module("main", append(sized(), size())...)
	e := env("main")
	res := frontend.CheckModule(context.Background(), m, e)
	require.False(t, res.Failed(), "%v", res.Errors)

	invalidated, err := e.Delete("Size")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Str impls Size", "n"}, invalidated)
	_, declared := e.Registry.Trait("Size")
	assert.False(t, declared)

	res, err = e.Check(context.Background(), m.Decls)
	require.NoError(t, err)
	assert.Equal(t, []ilerr.ErrCode{ilerr.NameNotFound}, res.Errors.Codes())
}

func TestCheckModules(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	base := traits.New(config.Default(), m)
	modules := []*ast.Module{
		module("lib", sized()...),
		module("app", size()),
	}

	results, err := frontend.CheckModules(context.Background(), modules, base, config.Default(), m)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.False(t, res.Failed(), "%s: %v", res.Module, res.Errors)
	}
	assert.NotEqual(t, results[0].Unit, results[1].Unit)
	assert.True(t, base.Frozen())

	o, ok := results[1].Outcome("n")
	require.True(t, ok)
	assert.Equal(t, "Nat", o.Scheme.String())

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Declarations.WithLabelValues(metrics.OutcomeOK)))
	count, err := testutil.GatherAndCount(reg, "typecore_driver_module_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCancelledCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := frontend.CheckModule(ctx, module("main", value("a", nil, num("1"))), env("main"))
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Errors.Errors()[0], context.Canceled)
}
