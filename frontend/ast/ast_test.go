package ast_test

import (
	"bytes"
	"go/token"
	"log/slog"
	"testing"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/stretchr/testify/assert"
)

func intLit(text string) *ast.Literal {
	return &ast.Literal{Kind: ast.LitInt, Text: text}
}

func TestExprString(t *testing.T) {
	cases := map[string]ast.Expr{
		"(1 + x)": &ast.BinOp{Op: token.ADD, Lhs: intLit("1"), Rhs: &ast.Ident{Name: "x"}},
		"f(1, y := 2)": &ast.Call{
			Func:   &ast.Ident{Name: "f"},
			Args:   []ast.Expr{intLit("1")},
			KwArgs: []ast.KwArg{{Name: "y", Value: intLit("2")}},
		},
		"p.(Add(Int)).Output": &ast.Attr{
			Receiver:  &ast.Ident{Name: "p"},
			Name:      "Output",
			Qualifier: &ast.TApp{Name: "Add", Args: []ast.TypeExpr{&ast.TName{Name: "Int"}}},
		},
		"0 -> 1; _: Nat -> 2": &ast.PatternFunc{Arms: []*ast.Arm{
			{Patterns: []ast.Pattern{&ast.LitPattern{Literal: intLit("0")}}, Body: intLit("1")},
			{Patterns: []ast.Pattern{&ast.WildcardPattern{TypeAnn: &ast.TName{Name: "Nat"}}}, Body: intLit("2")},
		}},
		"assert x in {I: Int | I <= 5}": &ast.Assert{
			Value: &ast.Ident{Name: "x"},
			Against: &ast.TRefinement{Var: "I", Base: &ast.TName{Name: "Int"}, Preds: []ast.PredExpr{
				&ast.PCompare{Lhs: &ast.Ident{Name: "I"}, Op: token.LEQ, Rhs: intLit("5")},
			}},
		},
	}
	for expected, expr := range cases {
		t.Run(expected, func(t *testing.T) {
			assert.Equal(t, expected, ast.ExprString(expr))
		})
	}
}

func TestTypeExprString(t *testing.T) {
	fn := &ast.TFunc{
		Params:   []ast.TParam{{Name: "x", Type: &ast.TName{Name: "Int"}}},
		KwParams: []ast.TParam{{Name: "base", Type: &ast.TName{Name: "Nat"}, HasDefault: true}},
		Return:   &ast.TInterval{Lo: intLit("0"), Hi: intLit("10"), OpenHi: true},
	}
	assert.Equal(t, "(x: Int, *, base: Nat := _) -> 0..<10", ast.TypeExprString(fn))
}

func TestHashIsStructural(t *testing.T) {
	a := &ast.BinOp{Range: ast.Span(1, 5), Op: token.ADD, Lhs: intLit("1"), Rhs: intLit("2")}
	b := &ast.BinOp{Range: ast.Span(1, 5), Op: token.ADD, Lhs: intLit("1"), Rhs: intLit("2")}
	c := &ast.BinOp{Range: ast.Span(1, 5), Op: token.SUB, Lhs: intLit("1"), Rhs: intLit("2")}
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())

	moved := &ast.BinOp{Range: ast.Span(2, 6), Op: token.ADD, Lhs: intLit("1"), Rhs: intLit("2")}
	assert.NotEqual(t, a.Hash(), moved.Hash(), "position is part of a node's identity")
}

func TestExprHandlerRendersNodes(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := ast.ExprLogger(slog.New(slog.NewTextHandler(buf, nil)))

	expr := &ast.BinOp{Op: token.MUL, Lhs: intLit("2"), Rhs: &ast.Ident{Name: "n"}}
	logger.Info("checking", "expr", expr)
	assert.Contains(t, buf.String(), `expr="(2 * n)"`)
}
