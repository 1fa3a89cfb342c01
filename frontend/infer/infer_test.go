package infer_test

import (
	"go/token"
	"testing"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/infer"
	"github.com/cottand/typecore/frontend/symbols"
	"github.com/cottand/typecore/frontend/traits"
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(text string) ast.Expr { return &ast.Literal{Kind: ast.LitInt, Text: text} }
func str(text string) ast.Expr { return &ast.Literal{Kind: ast.LitStr, Text: `"` + text + `"`} }
func ident(name string) ast.Expr {
	return &ast.Ident{Name: name}
}
func bin(op token.Token, l, r ast.Expr) ast.Expr { return &ast.BinOp{Op: op, Lhs: l, Rhs: r} }
func call(f ast.Expr, args ...ast.Expr) ast.Expr {
	return &ast.Call{Func: f, Args: args}
}
func name(n string) ast.TypeExpr { return &ast.TName{Name: n} }
func fn(ret ast.TypeExpr, params ...ast.TParam) ast.TypeExpr {
	return &ast.TFunc{Params: params, Return: ret}
}
func lambda(body ast.Expr, params ...string) *ast.Lambda {
	l := &ast.Lambda{Body: body}
	for _, p := range params {
		l.Params = append(l.Params, &ast.Param{Name: p})
	}
	return l
}
func value(n string, ann ast.TypeExpr, e ast.Expr) *ast.Declaration {
	return &ast.Declaration{Name: n, TypeAnn: ann, Value: e}
}
func lit(text string) ast.Pattern {
	return &ast.LitPattern{Literal: &ast.Literal{Kind: ast.LitInt, Text: text}}
}
func arm(body ast.Expr, patterns ...ast.Pattern) *ast.Arm {
	return &ast.Arm{Patterns: patterns, Body: body}
}

func checker(t *testing.T, decls ...ast.Decl) *infer.Checker {
	t.Helper()
	c := infer.New("test", traits.New(config.Default(), nil), symbols.New(), config.Default(), nil)
	errs := c.Declare(decls)
	require.False(t, errs.HasError(), "%v", errs)
	return c
}

func TestDeclarations(t *testing.T) {
	cases := map[string]struct {
		ann      ast.TypeExpr
		value    ast.Expr
		expected string
		errs     []ilerr.ErrCode
	}{
		"int literal":          {nil, num("1"), "Int", nil},
		"str literal":          {nil, str("a"), "Str", nil},
		"nat by value":         {name("Nat"), num("5"), "Nat", nil},
		"nat by constant sum":  {name("Nat"), bin(token.ADD, num("2"), num("3")), "Nat", nil},
		"negative is not nat":  {name("Nat"), bin(token.SUB, num("2"), num("3")), "", []ilerr.ErrCode{ilerr.TypeMismatch}},
		"int division":         {nil, bin(token.QUO, num("1"), num("2")), "Ratio", nil},
		"nat in an interval":   {&ast.TInterval{Lo: num("0"), Hi: num("9")}, num("7"), "", nil},
		"out of the interval":  {&ast.TInterval{Lo: num("0"), Hi: num("9")}, num("10"), "", []ilerr.ErrCode{ilerr.TypeMismatch}},
		"comparison":           {nil, bin(token.LSS, num("1"), num("2")), "Bool", nil},
		"unrelated comparison": {nil, bin(token.EQL, num("1"), str("a")), "", []ilerr.ErrCode{ilerr.TypeMismatch}},
		"str concatenation":    {nil, bin(token.ADD, str("a"), str("b")), "Str", nil},
		"str has no product":   {nil, bin(token.MUL, str("a"), str("b")), "", []ilerr.ErrCode{ilerr.NotImplemented}},
		"unknown name":         {nil, ident("nope"), "", []ilerr.ErrCode{ilerr.NameNotFound}},
		"unary minus of nat":   {nil, &ast.UnaryOp{Op: token.SUB, Operand: num("1")}, "Int", nil},
		"array literal":        {nil, &ast.ArrayLit{Elems: []ast.Expr{num("1"), num("2")}}, "Array(Int, {X: Int | X == 2})", nil},
	}
	for n, c := range cases {
		t.Run(n, func(t *testing.T) {
			d := value("x", c.ann, c.value)
			o := checker(t, d).Declaration(d)
			if len(c.errs) > 0 {
				require.True(t, o.Failed())
				assert.Equal(t, c.errs, o.Errors.Codes())
				return
			}
			require.False(t, o.Failed(), "%v", o.Errors)
			if c.expected != "" {
				assert.Equal(t, c.expected, o.Scheme.String())
			}
		})
	}
}

func TestParameterNames(t *testing.T) {
	identity := func() ast.Expr { return lambda(ident("y"), "y") }
	cases := map[string]struct {
		ann  ast.TypeExpr
		errs []ilerr.ErrCode
	}{
		"unnamed annotation": {fn(name("Int"), ast.TParam{Type: name("Int")}), nil},
		"same name":          {fn(name("Int"), ast.TParam{Name: "y", Type: name("Int")}), nil},
		"other name":         {fn(name("Int"), ast.TParam{Name: "x", Type: name("Int")}), []ilerr.ErrCode{ilerr.ParameterNameMismatch}},
	}
	for n, c := range cases {
		t.Run(n, func(t *testing.T) {
			d := value("f", c.ann, identity())
			o := checker(t, d).Declaration(d)
			if c.errs == nil {
				assert.False(t, o.Failed(), "%v", o.Errors)
				return
			}
			assert.Equal(t, c.errs, o.Errors.Codes())
		})
	}
}

func TestExhaustiveness(t *testing.T) {
	zeroOne := func() *ast.PatternFunc {
		return &ast.PatternFunc{Arms: []*ast.Arm{arm(num("1"), lit("0")), arm(num("2"), lit("1"))}}
	}
	cases := map[string]struct {
		domain     ast.TypeExpr
		exhaustive bool
	}{
		"nat":      {name("Nat"), false},
		"enum":     {&ast.TEnum{Values: []ast.Expr{num("0"), num("1")}}, true},
		"interval": {&ast.TInterval{Lo: num("0"), Hi: num("1")}, true},
		"int":      {name("Int"), false},
	}
	for n, c := range cases {
		t.Run(n, func(t *testing.T) {
			f := zeroOne()
			d := value("f", fn(name("Int"), ast.TParam{Type: c.domain}), f)
			o := checker(t, d).Declaration(d)
			if !c.exhaustive {
				assert.Equal(t, []ilerr.ErrCode{ilerr.NonExhaustivePattern}, o.Errors.Codes())
				assert.Nil(t, f.Proof)
				return
			}
			require.False(t, o.Failed(), "%v", o.Errors)
			require.NotNil(t, f.Proof)
			assert.Len(t, f.Proof.Regions, 2)
		})
	}

	t.Run("wildcard covers the rest", func(t *testing.T) {
		f := &ast.PatternFunc{Arms: []*ast.Arm{arm(num("1"), lit("0")), arm(num("2"), &ast.WildcardPattern{})}}
		d := value("f", fn(name("Int"), ast.TParam{Type: name("Nat")}), f)
		o := checker(t, d).Declaration(d)
		require.False(t, o.Failed(), "%v", o.Errors)
		require.NotNil(t, f.Proof)
		assert.True(t, types.Equal(types.NatType, f.Proof.Regions[1][0]))
	})
}

func TestExhaustivenessOfArguments(t *testing.T) {
	// apply = f x -> f(x)
	apply := value("apply", nil, lambda(call(ident("f"), ident("x")), "f", "x"))
	cases := map[string]struct {
		last  ast.Pattern
		codes []ilerr.ErrCode
	}{
		"literals do not cover the argument": {lit("1"), []ilerr.ErrCode{ilerr.NonExhaustivePattern}},
		"wildcard covers the argument":       {&ast.WildcardPattern{}, nil},
	}
	for n, c := range cases {
		t.Run(n, func(t *testing.T) {
			f := &ast.PatternFunc{Arms: []*ast.Arm{arm(num("1"), lit("0")), arm(num("2"), c.last)}}
			use := value("use", nil, call(ident("apply"), f, num("5")))
			chk := checker(t, apply, use)
			require.False(t, chk.Declaration(apply).Failed())

			o := chk.Declaration(use)
			if c.codes != nil {
				assert.Equal(t, c.codes, o.Errors.Codes())
				assert.Nil(t, f.Proof)
				return
			}
			require.False(t, o.Failed(), "%v", o.Errors)
			require.NotNil(t, f.Proof)
			assert.True(t, closedDomain(f.Proof.Domain), "%s", f.Proof.Domain)
		})
	}
}

func closedDomain(t types.Type) bool {
	return types.FreeVars(t).Size() == 0
}

func TestArmErrorsAreAggregated(t *testing.T) {
	f := &ast.PatternFunc{Arms: []*ast.Arm{
		arm(num("1"), lit("0")),
		arm(num("2"), lit("1")),
		arm(str("many"), &ast.WildcardPattern{}),
	}}
	d := value("f", fn(name("Str"), ast.TParam{Type: name("Nat")}), f)
	o := checker(t, d).Declaration(d)
	assert.Equal(t, []ilerr.ErrCode{ilerr.TypeMismatch, ilerr.TypeMismatch}, o.Errors.Codes())
}

func TestOperatorImplementations(t *testing.T) {
	sum := bin(token.ADD, num("1"), num("2")).(*ast.BinOp)
	d := value("x", nil, sum)
	o := checker(t, d).Declaration(d)
	require.False(t, o.Failed(), "%v", o.Errors)

	impl, ok := sum.Impl.(*traits.Impl)
	require.True(t, ok)
	assert.Equal(t, "Add(Int)", impl.Trait.String())
	assert.True(t, types.Equal(types.IntType, sum.Type()))
}

func TestGenericOperators(t *testing.T) {
	eq := value("eq", nil, lambda(bin(token.EQL, ident("a"), ident("b")), "a", "b"))
	c := checker(t, eq)
	o := c.Declaration(eq)
	require.False(t, o.Failed(), "%v", o.Errors)
	require.Len(t, o.Scheme.Vars, 1)
	assert.Contains(t, o.Scheme.String(), "<: Eq")

	id := value("id", nil, lambda(ident("x"), "x"))
	c = checker(t, id)
	o = c.Declaration(id)
	require.False(t, o.Failed(), "%v", o.Errors)
	assert.Len(t, o.Scheme.Vars, 1)
}

func TestAmbiguousAttribute(t *testing.T) {
	ambiguous := value("a", nil, &ast.Attr{Receiver: num("1"), Name: "Output"})
	qualified := value("q", nil, &ast.Attr{
		Receiver:  num("1"),
		Name:      "Output",
		Qualifier: &ast.TApp{Name: "Add", Args: []ast.TypeExpr{name("Int")}},
	})
	c := checker(t, ambiguous, qualified)

	assert.Equal(t, []ilerr.ErrCode{ilerr.AmbiguousAttribute}, c.Declaration(ambiguous).Errors.Codes())

	o := c.Declaration(qualified)
	require.False(t, o.Failed(), "%v", o.Errors)
	assert.True(t, types.Equal(types.Singleton(types.TypeValue(types.IntType)), o.Scheme.Body))
}

func TestAssert(t *testing.T) {
	proven := &ast.Assert{Value: num("5"), Against: name("Nat")}
	deferred := &ast.Assert{Value: ident("x"), Against: name("Nat")}
	static := value("s", nil, proven)
	dynamic := value("d", nil, &ast.Lambda{
		Params: []*ast.Param{{Name: "x", TypeAnn: name("Int")}},
		Body:   deferred,
	})
	c := checker(t, static, dynamic)

	require.False(t, c.Declaration(static).Failed())
	require.False(t, c.Declaration(dynamic).Failed())
	assert.False(t, proven.NeedsRuntimeCheck)
	assert.True(t, deferred.NeedsRuntimeCheck)
}

func TestUnannotatedRecursion(t *testing.T) {
	fact := func() *ast.PatternFunc {
		return &ast.PatternFunc{Arms: []*ast.Arm{
			arm(num("1"), lit("0")),
			arm(bin(token.MUL, ident("n"), call(ident("fact"), bin(token.SUB, ident("n"), num("1")))), &ast.VarPattern{Name: "n"}),
		}}
	}

	d := value("fact", nil, fact())
	o := checker(t, d).Declaration(d)
	require.False(t, o.Failed(), "%v", o.Errors)
	assert.Equal(t, "(Int) -> Int", o.Scheme.String())
	assert.Equal(t, []ilerr.ErrCode{ilerr.UnannotatedRecursion}, o.Warnings.Codes())

	annotated := value("fact", fn(name("Int"), ast.TParam{Type: name("Int")}), fact())
	o = checker(t, annotated).Declaration(annotated)
	require.False(t, o.Failed(), "%v", o.Errors)
	assert.False(t, o.Warnings.HasError())
}

func TestFailedDependency(t *testing.T) {
	bad := value("bad", name("Nat"), bin(token.SUB, num("2"), num("3")))
	good := value("good", nil, bin(token.ADD, ident("bad"), num("1")))
	c := checker(t, bad, good)

	o := c.Declaration(good)
	require.False(t, o.Failed(), "%v", o.Errors)
	assert.Equal(t, "Int", o.Scheme.String())

	o, ok := c.Outcome("bad")
	require.True(t, ok)
	assert.True(t, o.Failed())
	assert.Contains(t, c.Names().DependenciesOf("good"), "bad")
}

// size is
//
//	trait Size: size: (Self) -> Nat
var size = &ast.TraitDecl{Name: "Size", Required: []*ast.AttrDecl{
	{Name: "size", Type: fn(name("Nat"), ast.TParam{Type: name("Self")})},
}}

func TestTraitsAndImplementations(t *testing.T) {
	strSize := &ast.ImplDecl{
		Target:   name("Str"),
		Trait:    name("Size"),
		Bindings: []*ast.ImplBinding{{Name: "size", Value: lambda(num("3"), "s")}},
	}
	method := &ast.Attr{Receiver: str("ab"), Name: "size"}
	use := value("n", nil, call(method))
	c := checker(t, size, strSize, use)

	o := c.Declaration(use)
	require.False(t, o.Failed(), "%v", o.Errors)
	assert.Equal(t, "Nat", o.Scheme.String())
	impl, ok := method.Impl.(*traits.Impl)
	require.True(t, ok)
	assert.Equal(t, "Size", impl.Trait.Name)

	incomplete := &ast.ImplDecl{Target: name("Int"), Trait: name("Size")}
	c = infer.New("test", traits.New(config.Default(), nil), symbols.New(), config.Default(), nil)
	errs := c.Declare([]ast.Decl{size, incomplete})
	assert.Equal(t, []ilerr.ErrCode{ilerr.IncompleteImplementation}, errs.Codes())
}

func TestStructuralVersusNominal(t *testing.T) {
	box := &ast.ClassDecl{Name: "Box", Attrs: []*ast.AttrDecl{
		{Name: "size", Type: fn(name("Nat"), ast.TParam{Type: name("Self")})},
	}}
	sized := &ast.TraitDecl{Name: "Sized", Structural: true, Required: size.Required}
	c := checker(t, box, size, sized)
	target := &types.Primitive{Name: "Box"}

	impl, err := c.Registry().Resolve(target, &types.TraitRef{Name: "Sized"})
	require.NoError(t, err)
	assert.True(t, impl.Synthesized)

	_, err = c.Registry().Resolve(target, &types.TraitRef{Name: "Size"})
	assert.Equal(t, ilerr.NotImplemented, ilerr.CodeOf(err))
}

func TestDuplicateTrait(t *testing.T) {
	c := infer.New("test", traits.New(config.Default(), nil), symbols.New(), config.Default(), nil)
	errs := c.Declare([]ast.Decl{&ast.TraitDecl{Name: "Eq"}})
	assert.Equal(t, []ilerr.ErrCode{ilerr.DuplicateTraitName}, errs.Codes())
}

func TestExpr(t *testing.T) {
	ten := value("ten", nil, num("10"))
	c := checker(t, ten)
	require.False(t, c.Declaration(ten).Failed())

	typ, err := c.Expr(bin(token.MUL, ident("ten"), num("2")))
	require.NoError(t, err)
	assert.True(t, types.Equal(types.IntType, typ))

	_, err = c.Expr(call(ident("ten"), num("1")))
	assert.Equal(t, ilerr.TypeMismatch, ilerr.CodeOf(err))
}
