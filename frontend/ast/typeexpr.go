package ast

import (
	"go/token"
)

// TypeExpr is a type as written in the source. Inference lowers it into a types.Type
type TypeExpr interface {
	Node
	typeExprNode()
}

var (
	_ TypeExpr = (*TName)(nil)
	_ TypeExpr = (*TApp)(nil)
	_ TypeExpr = (*TFunc)(nil)
	_ TypeExpr = (*TRecord)(nil)
	_ TypeExpr = (*TRefinement)(nil)
	_ TypeExpr = (*TEnum)(nil)
	_ TypeExpr = (*TInterval)(nil)
	_ TypeExpr = (*TOr)(nil)
	_ TypeExpr = (*TAnd)(nil)
	_ TypeExpr = (*TNot)(nil)
	_ TypeExpr = (*TValue)(nil)
)

// TName is a named type: a class, a trait, a type parameter or Self
type TName struct {
	Range
	Name string
}

func (*TName) typeExprNode() {}
func (t *TName) Hash() uint64 {
	return newHasher("TName").str(t.Name).u64(t.Range.Hash()).sum()
}

// TApp applies a generic type or trait to arguments, as in Array(Int, 3) or Add(Int)
type TApp struct {
	Range
	Name string
	Args []TypeExpr
}

func (*TApp) typeExprNode() {}
func (t *TApp) Hash() uint64 {
	h := newHasher("TApp").str(t.Name).u64(t.Range.Hash())
	for _, a := range t.Args {
		h.node(a)
	}
	return h.sum()
}

// TParam is a parameter of a function type. Name is empty in the unnamed form (Int, Int) -> Int
type TParam struct {
	Name       string
	Type       TypeExpr
	HasDefault bool
}

type TFunc struct {
	Range
	Params   []TParam
	KwParams []TParam
	Return   TypeExpr
}

func (*TFunc) typeExprNode() {}
func (t *TFunc) Hash() uint64 {
	h := newHasher("TFunc").u64(t.Range.Hash())
	for _, p := range t.Params {
		h.str(p.Name).node(p.Type).bool(p.HasDefault)
	}
	h.u64(0)
	for _, p := range t.KwParams {
		h.str(p.Name).node(p.Type).bool(p.HasDefault)
	}
	return h.node(t.Return).sum()
}

type TField struct {
	Name string
	Type TypeExpr
}

type TRecord struct {
	Range
	Fields []TField
}

func (*TRecord) typeExprNode() {}
func (t *TRecord) Hash() uint64 {
	h := newHasher("TRecord").u64(t.Range.Hash())
	for _, f := range t.Fields {
		h.str(f.Name).node(f.Type)
	}
	return h.sum()
}

// TRefinement is {Var: Base | Preds...}
type TRefinement struct {
	Range
	Var   string
	Base  TypeExpr
	Preds []PredExpr
}

func (*TRefinement) typeExprNode() {}
func (t *TRefinement) Hash() uint64 {
	h := newHasher("TRefinement").str(t.Var).u64(t.Range.Hash()).node(t.Base)
	for _, p := range t.Preds {
		h.node(p)
	}
	return h.sum()
}

// TEnum is {a, b, ...}; each value must be constant-computable
type TEnum struct {
	Range
	Values []Expr
}

func (*TEnum) typeExprNode() {}
func (t *TEnum) Hash() uint64 {
	h := newHasher("TEnum").u64(t.Range.Hash())
	for _, v := range t.Values {
		h.node(v)
	}
	return h.sum()
}

// TInterval is Lo..Hi, or Lo..<Hi
type TInterval struct {
	Range
	Lo, Hi Expr
	OpenHi bool
}

func (*TInterval) typeExprNode() {}
func (t *TInterval) Hash() uint64 {
	return newHasher("TInterval").u64(t.Range.Hash()).node(t.Lo).node(t.Hi).bool(t.OpenHi).sum()
}

type TOr struct {
	Range
	Lhs, Rhs TypeExpr
}

func (*TOr) typeExprNode() {}
func (t *TOr) Hash() uint64 {
	return newHasher("TOr").u64(t.Range.Hash()).node(t.Lhs).node(t.Rhs).sum()
}

type TAnd struct {
	Range
	Lhs, Rhs TypeExpr
}

func (*TAnd) typeExprNode() {}
func (t *TAnd) Hash() uint64 {
	return newHasher("TAnd").u64(t.Range.Hash()).node(t.Lhs).node(t.Rhs).sum()
}

type TNot struct {
	Range
	Inner TypeExpr
}

func (*TNot) typeExprNode() {}
func (t *TNot) Hash() uint64 {
	return newHasher("TNot").u64(t.Range.Hash()).node(t.Inner).sum()
}

// TValue is a constant expression in type-argument position, like the N + 1 in Array(Int, N + 1)
type TValue struct {
	Range
	Value Expr
}

func (*TValue) typeExprNode() {}
func (t *TValue) Hash() uint64 {
	return newHasher("TValue").u64(t.Range.Hash()).node(t.Value).sum()
}

// PredExpr is a refinement predicate as written in the source
type PredExpr interface {
	Node
	predExprNode()
}

var (
	_ PredExpr = (*PCompare)(nil)
	_ PredExpr = (*PAnd)(nil)
	_ PredExpr = (*POr)(nil)
	_ PredExpr = (*PNot)(nil)
)

// PCompare is Lhs Op Rhs, where Op is one of == != < <= > >=
type PCompare struct {
	Range
	Lhs Expr
	Op  token.Token
	Rhs Expr
}

func (*PCompare) predExprNode() {}
func (p *PCompare) Hash() uint64 {
	return newHasher("PCompare").u64(p.Range.Hash()).node(p.Lhs).str(p.Op.String()).node(p.Rhs).sum()
}

type PAnd struct {
	Range
	Lhs, Rhs PredExpr
}

func (*PAnd) predExprNode() {}
func (p *PAnd) Hash() uint64 {
	return newHasher("PAnd").u64(p.Range.Hash()).node(p.Lhs).node(p.Rhs).sum()
}

type POr struct {
	Range
	Lhs, Rhs PredExpr
}

func (*POr) predExprNode() {}
func (p *POr) Hash() uint64 {
	return newHasher("POr").u64(p.Range.Hash()).node(p.Lhs).node(p.Rhs).sum()
}

type PNot struct {
	Range
	Inner PredExpr
}

func (*PNot) predExprNode() {}
func (p *PNot) Hash() uint64 {
	return newHasher("PNot").u64(p.Range.Hash()).node(p.Inner).sum()
}
