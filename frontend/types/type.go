// Package types is the data model of the type checker: types, compile-time
// values, refinement predicates and substitutions.
//
// Every other frontend component operates on the canonical form produced by
// Canonicalize, where enumeration and interval sugar is expressed as a Refinement.
package types

import (
	"encoding/binary"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cottand/typecore/util"
)

// Type is a sealed tagged variant; see the var block below for its members
type Type interface {
	fmt.Stringer
	Hash() uint64
	// Children yields the direct type components of this type
	Children() iter.Seq[Type]
	doMap(f func(Type) Type) Type
	isType()
}

var (
	_ Type = (*Primitive)(nil)
	_ Type = (*Function)(nil)
	_ Type = (*Record)(nil)
	_ Type = (*Refinement)(nil)
	_ Type = (*Poly)(nil)
	_ Type = (*TypeVar)(nil)
	_ Type = (*TraitRef)(nil)
	_ Type = (*And)(nil)
	_ Type = (*Or)(nil)
	_ Type = (*Not)(nil)
	_ Type = (*Const)(nil)
	_ Type = (*Enum)(nil)
	_ Type = (*Interval)(nil)
)

var emptyChildren iter.Seq[Type] = func(func(Type) bool) {}

func hashOf(tag string, parts ...uint64) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(tag)
	var buf [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(buf[:], p)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

func hashString(s string) uint64 { return xxhash.Sum64String(s) }

func hashAll(ts []Type) []uint64 {
	hs := make([]uint64, len(ts))
	for i, t := range ts {
		hs[i] = t.Hash()
	}
	return hs
}

// Primitive is a nominal atomic type, or a user-declared class
type Primitive struct {
	Name string
}

func (*Primitive) isType()                      {}
func (t *Primitive) String() string             { return t.Name }
func (t *Primitive) Hash() uint64               { return hashOf("Primitive", hashString(t.Name)) }
func (t *Primitive) Children() iter.Seq[Type]   { return emptyChildren }
func (t *Primitive) doMap(func(Type) Type) Type { return t }

// IsMutable follows the naming convention where mutable classes end in '!'
func (t *Primitive) IsMutable() bool { return strings.HasSuffix(t.Name, "!") }

type Param struct {
	// Name may be empty for positional-only parameters
	Name       string
	Type       Type
	HasDefault bool
}

func (p Param) String() string {
	s := p.Type.String()
	if p.Name != "" {
		s = p.Name + ": " + s
	}
	if p.HasDefault {
		s += " := _"
	}
	return s
}

type Function struct {
	Params   []Param
	KwParams []Param
	Return   Type
}

func (*Function) isType() {}

// IsUnnamed reports whether this function type uses the positional, unnamed-tuple form,
// in which case parameter names are never compared
func (t *Function) IsUnnamed() bool {
	for _, p := range t.Params {
		if p.Name != "" {
			return false
		}
	}
	return true
}

// Required is the number of positional parameters without a default
func (t *Function) Required() int {
	n := 0
	for _, p := range t.Params {
		if !p.HasDefault {
			n++
		}
	}
	return n
}

func (t *Function) String() string {
	parts := make([]string, 0, len(t.Params)+len(t.KwParams))
	for _, p := range t.Params {
		parts = append(parts, p.String())
	}
	if len(t.KwParams) > 0 {
		parts = append(parts, "*")
		for _, p := range t.KwParams {
			parts = append(parts, p.String())
		}
	}
	return "(" + strings.Join(parts, ", ") + ") -> " + t.Return.String()
}

func (t *Function) Hash() uint64 {
	parts := []uint64{t.Return.Hash()}
	for _, p := range t.Params {
		parts = append(parts, hashString(p.Name), p.Type.Hash())
	}
	parts = append(parts, 0)
	for _, p := range t.KwParams {
		parts = append(parts, hashString(p.Name), p.Type.Hash())
	}
	return hashOf("Function", parts...)
}

func (t *Function) Children() iter.Seq[Type] {
	return func(yield func(Type) bool) {
		for _, p := range t.Params {
			if !yield(p.Type) {
				return
			}
		}
		for _, p := range t.KwParams {
			if !yield(p.Type) {
				return
			}
		}
		yield(t.Return)
	}
}

func mapParams(ps []Param, f func(Type) Type) []Param {
	if ps == nil {
		return nil
	}
	mapped := make([]Param, len(ps))
	for i, p := range ps {
		p.Type = f(p.Type)
		mapped[i] = p
	}
	return mapped
}

func (t *Function) doMap(f func(Type) Type) Type {
	return &Function{
		Params:   mapParams(t.Params, f),
		KwParams: mapParams(t.KwParams, f),
		Return:   f(t.Return),
	}
}

type Field struct {
	Name string
	Type Type
}

// Record is a structural type. Fields are always sorted by name, use NewRecord to build one
type Record struct {
	Fields []Field
}

func NewRecord(fields ...Field) *Record {
	sorted := slices.Clone(fields)
	slices.SortFunc(sorted, func(a, b Field) int { return strings.Compare(a.Name, b.Name) })
	return &Record{Fields: sorted}
}

func (*Record) isType() {}

func (t *Record) Field(name string) (Type, bool) {
	i, found := slices.BinarySearchFunc(t.Fields, name, func(f Field, n string) int { return strings.Compare(f.Name, n) })
	if !found {
		return nil, false
	}
	return t.Fields[i].Type, true
}

func (t *Record) String() string {
	if len(t.Fields) == 0 {
		return "{=}"
	}
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.Name + " = " + f.Type.String()
	}
	return "{" + strings.Join(parts, "; ") + "}"
}

func (t *Record) Hash() uint64 {
	parts := make([]uint64, 0, 2*len(t.Fields))
	for _, f := range t.Fields {
		parts = append(parts, hashString(f.Name), f.Type.Hash())
	}
	return hashOf("Record", parts...)
}

func (t *Record) Children() iter.Seq[Type] {
	return func(yield func(Type) bool) {
		for _, f := range t.Fields {
			if !yield(f.Type) {
				return
			}
		}
	}
}

func (t *Record) doMap(f func(Type) Type) Type {
	fields := make([]Field, len(t.Fields))
	for i, field := range t.Fields {
		fields[i] = Field{Name: field.Name, Type: f(field.Type)}
	}
	return &Record{Fields: fields}
}

// Refinement is {Var: Base | Preds...}, where Preds is a conjunction
type Refinement struct {
	Base  Type
	Var   string
	Preds []Predicate
}

func (*Refinement) isType() {}

func (t *Refinement) String() string {
	if len(t.Preds) == 0 {
		return "{" + t.Var + ": " + t.Base.String() + "}"
	}
	return "{" + t.Var + ": " + t.Base.String() + " | " + util.JoinString(t.Preds, " and ") + "}"
}

// Hash does not depend on the name of the bound variable
func (t *Refinement) Hash() uint64 {
	parts := []uint64{t.Base.Hash()}
	for _, p := range t.Preds {
		parts = append(parts, RenameSubject(p, t.Var, "_").Hash())
	}
	return hashOf("Refinement", parts...)
}

func (t *Refinement) Children() iter.Seq[Type] {
	return func(yield func(Type) bool) { yield(t.Base) }
}

func (t *Refinement) doMap(f func(Type) Type) Type {
	return &Refinement{Base: f(t.Base), Var: t.Var, Preds: t.Preds}
}

// Poly is an instantiated generic type, such as Array(Int, 3)
type Poly struct {
	Name string
	Args []Type
}

func (*Poly) isType() {}
func (t *Poly) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	return t.Name + "(" + util.JoinString(t.Args, ", ") + ")"
}
func (t *Poly) Hash() uint64 {
	return hashOf("Poly", append([]uint64{hashString(t.Name)}, hashAll(t.Args)...)...)
}
func (t *Poly) Children() iter.Seq[Type] { return slices.Values(t.Args) }
func (t *Poly) doMap(f func(Type) Type) Type {
	return &Poly{Name: t.Name, Args: mapTypes(t.Args, f)}
}

func mapTypes(ts []Type, f func(Type) Type) []Type {
	if ts == nil {
		return nil
	}
	mapped := make([]Type, len(ts))
	for i, t := range ts {
		mapped[i] = f(t)
	}
	return mapped
}

type TypeVarID = uint64

// SelfID is reserved for Self, every Fresher starts after it
const SelfID TypeVarID = 0

// TypeVar is free during inference. Identity is the ID, never the bound
type TypeVar struct {
	ID   TypeVarID
	Name string
	// Bound is an optional upper bound, for example a trait the variable must implement
	Bound Type
}

// Self is the placeholder for the implementing type inside trait declarations.
// It is only ever resolved by substitution against a concrete target.
var Self = &TypeVar{ID: SelfID, Name: "Self"}

func (*TypeVar) isType() {}
func (t *TypeVar) String() string {
	if t.ID == SelfID {
		return "Self"
	}
	name := t.Name
	if name == "" {
		name = "T"
	}
	return fmt.Sprintf("?%s%d", name, t.ID)
}
func (t *TypeVar) Hash() uint64             { return hashOf("TypeVar", t.ID) }
func (t *TypeVar) Children() iter.Seq[Type] { return emptyChildren }
func (t *TypeVar) doMap(func(Type) Type) Type {
	return t
}

// TraitRef names a declared (or instant) trait applied to type arguments, such as Add(Int)
type TraitRef struct {
	Name string
	Args []Type
}

func (*TraitRef) isType() {}
func (t *TraitRef) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	return t.Name + "(" + util.JoinString(t.Args, ", ") + ")"
}
func (t *TraitRef) Hash() uint64 {
	return hashOf("TraitRef", append([]uint64{hashString(t.Name)}, hashAll(t.Args)...)...)
}
func (t *TraitRef) Children() iter.Seq[Type] { return slices.Values(t.Args) }
func (t *TraitRef) doMap(f func(Type) Type) Type {
	return &TraitRef{Name: t.Name, Args: mapTypes(t.Args, f)}
}

type And struct{ Lhs, Rhs Type }

func (*And) isType()          {}
func (t *And) String() string { return "(" + t.Lhs.String() + " and " + t.Rhs.String() + ")" }
func (t *And) Hash() uint64   { return hashOf("And", t.Lhs.Hash(), t.Rhs.Hash()) }
func (t *And) Children() iter.Seq[Type] {
	return slices.Values([]Type{t.Lhs, t.Rhs})
}
func (t *And) doMap(f func(Type) Type) Type { return &And{Lhs: f(t.Lhs), Rhs: f(t.Rhs)} }

type Or struct{ Lhs, Rhs Type }

func (*Or) isType()          {}
func (t *Or) String() string { return "(" + t.Lhs.String() + " or " + t.Rhs.String() + ")" }
func (t *Or) Hash() uint64   { return hashOf("Or", t.Lhs.Hash(), t.Rhs.Hash()) }
func (t *Or) Children() iter.Seq[Type] {
	return slices.Values([]Type{t.Lhs, t.Rhs})
}
func (t *Or) doMap(f func(Type) Type) Type { return &Or{Lhs: f(t.Lhs), Rhs: f(t.Rhs)} }

type Not struct{ Inner Type }

func (*Not) isType()                        {}
func (t *Not) String() string               { return "not " + t.Inner.String() }
func (t *Not) Hash() uint64                 { return hashOf("Not", t.Inner.Hash()) }
func (t *Not) Children() iter.Seq[Type]     { return slices.Values([]Type{t.Inner}) }
func (t *Not) doMap(f func(Type) Type) Type { return &Not{Inner: f(t.Inner)} }

// Const is a value in type-argument position, like the 3 in Array(Int, 3)
type Const struct {
	Value Value
}

func (*Const) isType()                      {}
func (t *Const) String() string             { return t.Value.String() }
func (t *Const) Hash() uint64               { return hashOf("Const", t.Value.Hash()) }
func (t *Const) Children() iter.Seq[Type]   { return emptyChildren }
func (t *Const) doMap(func(Type) Type) Type { return t }

// Enum is the surface syntax {a, b, ...}. Canonicalize turns it into a Refinement
type Enum struct {
	Values []Value
}

func (*Enum) isType() {}
func (t *Enum) String() string {
	parts := make([]string, len(t.Values))
	for i, v := range t.Values {
		parts[i] = v.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (t *Enum) Hash() uint64 {
	parts := make([]uint64, len(t.Values))
	for i, v := range t.Values {
		parts[i] = v.Hash()
	}
	return hashOf("Enum", parts...)
}
func (t *Enum) Children() iter.Seq[Type]   { return emptyChildren }
func (t *Enum) doMap(func(Type) Type) Type { return t }

// Interval is the surface syntax a..b, or a..<b when OpenHi is set.
// Canonicalize turns it into a Refinement
type Interval struct {
	Lo, Hi Value
	OpenHi bool
}

func (*Interval) isType() {}
func (t *Interval) String() string {
	if t.OpenHi {
		return t.Lo.String() + "..<" + t.Hi.String()
	}
	return t.Lo.String() + ".." + t.Hi.String()
}
func (t *Interval) Hash() uint64 {
	open := uint64(0)
	if t.OpenHi {
		open = 1
	}
	return hashOf("Interval", t.Lo.Hash(), t.Hi.Hash(), open)
}
func (t *Interval) Children() iter.Seq[Type]   { return emptyChildren }
func (t *Interval) doMap(func(Type) Type) Type { return t }

// MapChildren rebuilds t with f applied to each of its direct children
func MapChildren(t Type, f func(Type) Type) Type {
	return t.doMap(f)
}
