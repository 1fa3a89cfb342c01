package ast

import (
	"go/token"
)

var (
	_ Expr = (*Literal)(nil)
	_ Expr = (*Ident)(nil)
	_ Expr = (*Call)(nil)
	_ Expr = (*Attr)(nil)
	_ Expr = (*BinOp)(nil)
	_ Expr = (*UnaryOp)(nil)
	_ Expr = (*Lambda)(nil)
	_ Expr = (*PatternFunc)(nil)
	_ Expr = (*If)(nil)
	_ Expr = (*Block)(nil)
	_ Expr = (*ArrayLit)(nil)
	_ Expr = (*RecordLit)(nil)
	_ Expr = (*Assert)(nil)
	_ Expr = (*TypeLit)(nil)
)

type LitKind uint8

const (
	_ LitKind = iota
	LitInt
	LitFloat
	LitStr
	LitBool
	LitNone
)

// Literal represents a literal value; Text is its source syntax
type Literal struct {
	Range
	Typed
	Kind LitKind
	Text string
}

func (*Literal) exprNode() {}
func (e *Literal) Hash() uint64 {
	return newHasher("Literal").int(int(e.Kind)).str(e.Text).u64(e.Range.Hash()).sum()
}

// Ident references a binding by name
type Ident struct {
	Range
	Typed
	Name string
}

func (*Ident) exprNode() {}
func (e *Ident) Hash() uint64 {
	return newHasher("Ident").str(e.Name).u64(e.Range.Hash()).sum()
}

type KwArg struct {
	Range
	Name  string
	Value Expr
}

// Call is Func(Args..., KwArgs...)
type Call struct {
	Range
	Typed
	Func   Expr
	Args   []Expr
	KwArgs []KwArg
}

func (*Call) exprNode() {}
func (e *Call) Hash() uint64 {
	h := newHasher("Call").u64(e.Range.Hash()).node(e.Func)
	for _, a := range e.Args {
		h.node(a)
	}
	for _, kw := range e.KwArgs {
		h.str(kw.Name).node(kw.Value)
	}
	return h.sum()
}

// Attr is Receiver.Name, optionally narrowed by a trait qualifier as in
// Receiver.(Add(Int)).Name
type Attr struct {
	Range
	Typed
	Receiver  Expr
	Name      string
	Qualifier TypeExpr
	// Impl is set by inference when the attribute came from a trait implementation
	Impl ImplRef
}

func (*Attr) exprNode() {}
func (e *Attr) Hash() uint64 {
	return newHasher("Attr").u64(e.Range.Hash()).node(e.Receiver).str(e.Name).node(e.Qualifier).sum()
}

// BinOp is an operator application. Operators resolve to traits, such as + to Add
type BinOp struct {
	Range
	Typed
	Op       token.Token
	Lhs, Rhs Expr
	// Impl is set by inference to the implementation the operator dispatches to
	Impl ImplRef
}

func (*BinOp) exprNode() {}
func (e *BinOp) Hash() uint64 {
	return newHasher("BinOp").str(e.Op.String()).u64(e.Range.Hash()).node(e.Lhs).node(e.Rhs).sum()
}

type UnaryOp struct {
	Range
	Typed
	Op      token.Token
	Operand Expr
	Impl    ImplRef
}

func (*UnaryOp) exprNode() {}
func (e *UnaryOp) Hash() uint64 {
	return newHasher("UnaryOp").str(e.Op.String()).u64(e.Range.Hash()).node(e.Operand).sum()
}

// Param is a lambda parameter. KwOnly parameters can only be passed by name
type Param struct {
	Range
	Name    string
	TypeAnn TypeExpr
	Default Expr
	KwOnly  bool
}

func (p *Param) Hash() uint64 {
	return newHasher("Param").str(p.Name).node(p.TypeAnn).node(p.Default).bool(p.KwOnly).sum()
}

// Lambda is an anonymous function with named parameters
type Lambda struct {
	Range
	Typed
	Params []*Param
	Return TypeExpr
	Body   Expr
}

func (*Lambda) exprNode() {}
func (e *Lambda) Hash() uint64 {
	h := newHasher("Lambda").u64(e.Range.Hash())
	for _, p := range e.Params {
		h.node(p)
	}
	return h.node(e.Return).node(e.Body).sum()
}

// Arm is one clause of a PatternFunc
type Arm struct {
	Range
	Patterns []Pattern
	Body     Expr
}

func (a *Arm) Hash() uint64 {
	h := newHasher("Arm").u64(a.Range.Hash())
	for _, p := range a.Patterns {
		h.node(p)
	}
	return h.node(a.Body).sum()
}

// PatternFunc is a function defined by several arms, each matching its arguments
// against patterns, as in
//
//	f 0 = ...
//	f 1 = ...
type PatternFunc struct {
	Range
	Typed
	Arms []*Arm
	// Proof is set by inference once the arms are known to cover the domain
	Proof *Proof
}

func (*PatternFunc) exprNode() {}
func (e *PatternFunc) Hash() uint64 {
	h := newHasher("PatternFunc").u64(e.Range.Hash())
	for _, a := range e.Arms {
		h.node(a)
	}
	return h.sum()
}

type If struct {
	Range
	Typed
	Cond, Then, Else Expr
}

func (*If) exprNode() {}
func (e *If) Hash() uint64 {
	return newHasher("If").u64(e.Range.Hash()).node(e.Cond).node(e.Then).node(e.Else).sum()
}

// Block evaluates local declarations in order, then Result
type Block struct {
	Range
	Typed
	Decls  []*Declaration
	Result Expr
}

func (*Block) exprNode() {}
func (e *Block) Hash() uint64 {
	h := newHasher("Block").u64(e.Range.Hash())
	for _, d := range e.Decls {
		h.node(d)
	}
	return h.node(e.Result).sum()
}

type ArrayLit struct {
	Range
	Typed
	Elems []Expr
}

func (*ArrayLit) exprNode() {}
func (e *ArrayLit) Hash() uint64 {
	h := newHasher("ArrayLit").u64(e.Range.Hash())
	for _, el := range e.Elems {
		h.node(el)
	}
	return h.sum()
}

type RecordField struct {
	Name  string
	Value Expr
}

type RecordLit struct {
	Range
	Typed
	Fields []RecordField
}

func (*RecordLit) exprNode() {}
func (e *RecordLit) Hash() uint64 {
	h := newHasher("RecordLit").u64(e.Range.Hash())
	for _, f := range e.Fields {
		h.str(f.Name).node(f.Value)
	}
	return h.sum()
}

// Assert is `assert Value in Against`.
//
// It never fails compilation by itself: when inference cannot prove membership it
// sets NeedsRuntimeCheck, and the check happens when the program runs
type Assert struct {
	Range
	Typed
	Value             Expr
	Against           TypeExpr
	NeedsRuntimeCheck bool
}

func (*Assert) exprNode() {}
func (e *Assert) Hash() uint64 {
	return newHasher("Assert").u64(e.Range.Hash()).node(e.Value).node(e.Against).sum()
}

// TypeLit is a type used in expression position, for example as an argument
// to a type-construction call
type TypeLit struct {
	Range
	Typed
	TypeExpr TypeExpr
}

func (*TypeLit) exprNode() {}
func (e *TypeLit) Hash() uint64 {
	return newHasher("TypeLit").u64(e.Range.Hash()).node(e.TypeExpr).sum()
}
