package consteval_test

import (
	"go/token"
	"math/big"
	"testing"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/consteval"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/symbols"
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/internal/config"
	"github.com/cottand/typecore/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(text string) ast.Expr { return &ast.Literal{Kind: ast.LitInt, Text: text} }
func str(text string) ast.Expr { return &ast.Literal{Kind: ast.LitStr, Text: `"` + text + `"`} }
func ident(name string) ast.Expr {
	return &ast.Ident{Name: name}
}
func bin(op token.Token, l, r ast.Expr) ast.Expr { return &ast.BinOp{Op: op, Lhs: l, Rhs: r} }
func call(f string, args ...ast.Expr) ast.Expr {
	return &ast.Call{Func: ident(f), Args: args}
}

// table declares
//
//	const ten = 10
//	const double = fn x -> x * 2
//	const fact = fn 0 -> 1; n -> n * fact(n - 1)
//	const loop = fn x -> loop(x)
//	const xs = [1, 2, 3]
//	extern now: () -> Int
//	value = 3
func table() *symbols.Table {
	t := symbols.New()
	t.Define(&symbols.Binding{Name: "ten", Kind: symbols.KindConst, Value: num("10")})
	t.Define(&symbols.Binding{Name: "double", Kind: symbols.KindConst, Value: &ast.Lambda{
		Params: []*ast.Param{{Name: "x"}},
		Body:   bin(token.MUL, ident("x"), num("2")),
	}})
	t.Define(&symbols.Binding{Name: "fact", Kind: symbols.KindConst, Value: &ast.PatternFunc{Arms: []*ast.Arm{
		{Patterns: []ast.Pattern{&ast.LitPattern{Literal: &ast.Literal{Kind: ast.LitInt, Text: "0"}}}, Body: num("1")},
		{Patterns: []ast.Pattern{&ast.VarPattern{Name: "n"}}, Body: bin(token.MUL, ident("n"), call("fact", bin(token.SUB, ident("n"), num("1"))))},
	}}})
	t.Define(&symbols.Binding{Name: "loop", Kind: symbols.KindConst, Value: &ast.Lambda{
		Params: []*ast.Param{{Name: "x"}},
		Body:   call("loop", ident("x")),
	}})
	t.Define(&symbols.Binding{Name: "xs", Kind: symbols.KindConst, Value: &ast.ArrayLit{Elems: []ast.Expr{num("1"), num("2"), num("3")}}})
	t.Define(&symbols.Binding{Name: "now", Kind: symbols.KindExtern})
	t.Define(&symbols.Binding{Name: "value", Kind: symbols.KindValue, Value: num("3")})
	return t
}

func TestEval(t *testing.T) {
	e := consteval.New(table(), config.Default(), nil)
	cases := map[string]struct {
		expr ast.Expr
		want types.Value
	}{
		"literal":            {num("1_000"), types.IntValue(1000)},
		"string":             {str("ab"), types.StrValue("ab")},
		"arithmetic":         {bin(token.ADD, num("1"), bin(token.MUL, num("2"), num("3"))), types.IntValue(7)},
		"exact division":     {bin(token.QUO, num("6"), num("3")), types.RatioValue(big.NewRat(2, 1))},
		"concatenation":      {bin(token.ADD, str("a"), str("b")), types.StrValue("ab")},
		"comparison":         {bin(token.LSS, num("1"), ident("ten")), types.BoolValue(true)},
		"short circuit":      {bin(token.LOR, &ast.Literal{Kind: ast.LitBool, Text: "True"}, call("now")), types.BoolValue(true)},
		"negation":           {&ast.UnaryOp{Op: token.SUB, Operand: ident("ten")}, types.IntValue(-10)},
		"constant name":      {ident("ten"), types.IntValue(10)},
		"constant function":  {call("double", ident("ten")), types.IntValue(20)},
		"recursive function": {call("fact", num("5")), types.IntValue(120)},
		"array length":       {call("len", ident("xs")), types.IntValue(3)},
		"if":                 {&ast.If{Cond: bin(token.EQL, ident("ten"), num("10")), Then: str("yes"), Else: str("no")}, types.StrValue("yes")},
		"block": {&ast.Block{
			Decls:  []*ast.Declaration{{Name: "y", Value: call("double", num("4"))}},
			Result: bin(token.SUB, ident("y"), num("1")),
		}, types.IntValue(7)},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := e.Eval(c.expr)
			require.NoError(t, err)
			assert.True(t, types.ValueEqual(c.want, v), "got %v", v)
			assert.Equal(t, c.want.Kind, v.Kind)
		})
	}

	v, err := e.Eval(bin(token.QUO, num("1"), num("3")))
	require.NoError(t, err)
	assert.Equal(t, types.KindRatio, v.Kind)
	assert.Equal(t, "1/3", v.String())
}

func TestNotConstantComputable(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := consteval.New(table(), config.Default(), m)
	cases := map[string]ast.Expr{
		"external function":  call("now"),
		"plain value":        ident("value"),
		"division by zero":   bin(token.QUO, num("1"), num("0")),
		"mismatched operand": bin(token.ADD, num("1"), str("a")),
		"lambda":             &ast.Lambda{Body: num("1")},
		"endless recursion":  call("loop", num("1")),
		"unknown length":     call("len", ident("ten")),
	}
	for name, expr := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.Eval(expr)
			assert.Equal(t, ilerr.NotConstantComputable, ilerr.CodeOf(err), "%v", err)
		})
	}
	_, err := e.Eval(ident("missing"))
	assert.Equal(t, ilerr.NameNotFound, ilerr.CodeOf(err))

	assert.Equal(t, float64(len(cases)+1), testutil.ToFloat64(m.ConstEvaluations.WithLabelValues(metrics.OutcomeFailed)))
}

func TestTypeConstruction(t *testing.T) {
	e := consteval.New(table(), config.Default(), nil)
	v, err := e.Eval(call("Array", ident("Int"), ident("ten")))
	require.NoError(t, err)
	arr, ok := v.TypeOf()
	require.True(t, ok)
	assert.Equal(t, "Array", arr.(*types.Poly).Name)
	n, ok := consteval.ArrayLength(arr)
	require.True(t, ok)
	assert.True(t, types.ValueEqual(types.IntValue(10), n))
}
