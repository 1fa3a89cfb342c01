// Package ast is the tree this checker consumes from the parser, and annotates
// in place for the code generator.
package ast

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cottand/typecore/frontend/types"
)

// Node is the base interface for all AST nodes.
type Node interface {
	Positioner
	Hash() uint64
}

// Expr is the interface for all expression nodes in the AST.
type Expr interface {
	Node
	// Type is the finalised type of this expression, nil until inference succeeded
	Type() types.Type
	SetType(types.Type)
	exprNode()
}

// Decl is the interface for top-level declarations
type Decl interface {
	Node
	DeclName() string
	declNode()
}

// Typed is embedded by every expression to carry its inferred type
type Typed struct {
	T types.Type
}

func (t *Typed) Type() types.Type       { return t.T }
func (t *Typed) SetType(typ types.Type) { t.T = typ }

// ImplRef points at the trait implementation resolved for a call site.
// It is implemented by the trait registry's Impl records
type ImplRef interface {
	ImplID() string
	String() string
}

// Proof records that the arms of a PatternFunc cover Domain
type Proof struct {
	Domain types.Type
	// Regions holds, per arm, the region of the domain its patterns match
	Regions [][]types.Type
}

type hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func newHasher(tag string) *hasher {
	h := &hasher{d: xxhash.New()}
	_, _ = h.d.WriteString(tag)
	return h
}

func (h *hasher) u64(v uint64) *hasher {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.d.Write(h.buf[:])
	return h
}

func (h *hasher) int(v int) *hasher { return h.u64(uint64(v)) }

func (h *hasher) str(s string) *hasher {
	_, _ = h.d.WriteString(s)
	return h.u64(uint64(len(s)))
}

func (h *hasher) bool(b bool) *hasher {
	if b {
		return h.u64(1)
	}
	return h.u64(0)
}

// node hashes n, or a marker when it is absent
func (h *hasher) node(n Node) *hasher {
	if n == nil {
		return h.u64(0)
	}
	return h.u64(n.Hash())
}

func (h *hasher) sum() uint64 { return h.d.Sum64() }

// Module is one compilation unit
type Module struct {
	Range
	Name  string
	Decls []Decl
}

func (m *Module) Hash() uint64 {
	h := newHasher("Module").str(m.Name).u64(m.Range.Hash())
	for _, d := range m.Decls {
		h.node(d)
	}
	return h.sum()
}

// Declaration binds Name to Value, optionally checked against TypeAnn
type Declaration struct {
	Range
	Name    string
	TypeAnn TypeExpr
	// Value may be nil for an external declaration, which only has a TypeAnn
	Value Expr
	// Const marks a declaration as constant-computable
	Const bool
	// Extern marks a declaration imported from outside, whose body is not available
	Extern bool
}

func (d *Declaration) DeclName() string { return d.Name }
func (*Declaration) declNode()          {}
func (d *Declaration) Hash() uint64 {
	h := newHasher("Declaration").str(d.Name).u64(d.Range.Hash()).bool(d.Const).bool(d.Extern)
	if d.TypeAnn != nil {
		h.node(d.TypeAnn)
	}
	if d.Value != nil {
		h.node(d.Value)
	}
	return h.sum()
}

// AttrDecl is a named attribute signature, in a trait or a class
type AttrDecl struct {
	Range
	Name     string
	Type     TypeExpr
	Override bool
}

func (a *AttrDecl) Hash() uint64 {
	return newHasher("AttrDecl").str(a.Name).node(a.Type).bool(a.Override).sum()
}

// TraitDecl declares a trait. When Includes is not empty it is a subsumption:
// the trait requires everything its includes require, minus what its excludes require
type TraitDecl struct {
	Range
	Name       string
	Params     []string
	Required   []*AttrDecl
	Structural bool
	Includes   []TypeExpr
	Excludes   []TypeExpr
}

func (d *TraitDecl) DeclName() string { return d.Name }
func (*TraitDecl) declNode()          {}
func (d *TraitDecl) Hash() uint64 {
	h := newHasher("TraitDecl").str(d.Name).u64(d.Range.Hash()).bool(d.Structural)
	for _, p := range d.Params {
		h.str(p)
	}
	for _, r := range d.Required {
		h.node(r)
	}
	for _, i := range d.Includes {
		h.node(i)
	}
	h.u64(0)
	for _, e := range d.Excludes {
		h.node(e)
	}
	return h.sum()
}

// ClassDecl declares a nominal class and its attributes
type ClassDecl struct {
	Range
	Name   string
	Supers []string
	Attrs  []*AttrDecl
}

func (d *ClassDecl) DeclName() string { return d.Name }
func (*ClassDecl) declNode()          {}
func (d *ClassDecl) Hash() uint64 {
	h := newHasher("ClassDecl").str(d.Name).u64(d.Range.Hash())
	for _, s := range d.Supers {
		h.str(s)
	}
	for _, a := range d.Attrs {
		h.node(a)
	}
	return h.sum()
}

// ImplBinding defines one attribute of an implementation.
// Type-valued attributes such as Output set TypeValue, methods set Value
type ImplBinding struct {
	Range
	Name      string
	TypeAnn   TypeExpr
	Value     Expr
	TypeValue TypeExpr
}

func (b *ImplBinding) Hash() uint64 {
	h := newHasher("ImplBinding").str(b.Name)
	if b.TypeAnn != nil {
		h.node(b.TypeAnn)
	}
	if b.Value != nil {
		h.node(b.Value)
	}
	if b.TypeValue != nil {
		h.node(b.TypeValue)
	}
	return h.sum()
}

// ImplDecl declares that Target implements Trait
type ImplDecl struct {
	Range
	// Params are type parameters the target and trait may mention, as in |T| Array(T) impls Eq
	Params   []string
	Target   TypeExpr
	Trait    TypeExpr
	Bindings []*ImplBinding
}

func (d *ImplDecl) DeclName() string {
	return TypeExprString(d.Target) + " impls " + TypeExprString(d.Trait)
}
func (*ImplDecl) declNode() {}
func (d *ImplDecl) Hash() uint64 {
	h := newHasher("ImplDecl").u64(d.Range.Hash()).node(d.Target).node(d.Trait)
	for _, p := range d.Params {
		h.str(p)
	}
	for _, b := range d.Bindings {
		h.node(b)
	}
	return h.sum()
}
