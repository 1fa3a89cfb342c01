// Package traits holds the declared traits, classes and implementations of a program,
// and resolves which implementation satisfies a trait bound.
//
// A Registry is written by a single goroutine while declarations are collected, and
// only read once it is frozen. Several frozen registries are combined with Merged.
package traits

import (
	"fmt"
	"slices"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/typecore/frontend/types"
)

// Trait is a set of required attributes. Requirement types may mention types.Self,
// the trait Params, and the Assoc variables of type-valued attributes such as Output.
//
// The Required map is never modified once the trait exists: combinators such as And
// and Replace return new traits
type Trait struct {
	Name       string
	Params     []*types.TypeVar
	Required   *immutable.SortedMap[string, types.Type]
	Structural bool
	// Instant traits are the result of a combinator rather than a declaration
	Instant bool
	Supers  []*types.TraitRef
	// Assoc are the type-valued attributes, as variables named after the attribute
	Assoc []*types.TypeVar
	// Of is the bound an instant trait stands for, like A and B. Nil for declared traits
	Of types.Type
	// Owner is the declaration that introduced this trait, empty for built-ins
	Owner string
}

// NewTrait builds a trait from a plain map of requirements
func NewTrait(name string, params []*types.TypeVar, required map[string]types.Type) *Trait {
	return &Trait{Name: name, Params: params, Required: sortedRequirements(required)}
}

func sortedRequirements(required map[string]types.Type) *immutable.SortedMap[string, types.Type] {
	b := immutable.NewSortedMapBuilder[string, types.Type](immutable.NewComparer(""))
	for attr, t := range required {
		b.Set(attr, t)
	}
	return b.Map()
}

// Requirement is the declared type of attr, with Self and parameters left in place
func (t *Trait) Requirement(attr string) (types.Type, bool) {
	if t.Required == nil {
		return nil, false
	}
	return t.Required.Get(attr)
}

func (t *Trait) requirements() *immutable.SortedMap[string, types.Type] {
	if t.Required == nil {
		return sortedRequirements(nil)
	}
	return t.Required
}

// Attrs lists the required attributes in order
func (t *Trait) Attrs() []string {
	if t.Required == nil {
		return nil
	}
	attrs := make([]string, 0, t.Required.Len())
	for itr := t.Required.Iterator(); !itr.Done(); {
		attr, _, _ := itr.Next()
		attrs = append(attrs, attr)
	}
	return attrs
}

func (t *Trait) assocVar(attr string) (*types.TypeVar, bool) {
	i := slices.IndexFunc(t.Assoc, func(v *types.TypeVar) bool { return v.Name == attr })
	if i < 0 {
		return nil, false
	}
	return t.Assoc[i], true
}

// IsAssoc reports whether attr is a type-valued attribute
func (t *Trait) IsAssoc(attr string) bool {
	_, ok := t.assocVar(attr)
	return ok
}

// Ref applies the trait to args
func (t *Trait) Ref(args ...types.Type) *types.TraitRef {
	return &types.TraitRef{Name: t.Name, Args: args}
}

// bound is what a combinator refers to when it mentions t
func (t *Trait) bound() types.Type {
	if t.Of != nil {
		return t.Of
	}
	args := make([]types.Type, len(t.Params))
	for i, p := range t.Params {
		args[i] = p
	}
	return t.Ref(args...)
}

// instantiation maps Self to target, each parameter to its argument and each
// associated type to its binding. Parameters without an argument stay free
func (t *Trait) instantiation(target types.Type, ref *types.TraitRef, assoc map[string]types.Type) types.Subst {
	subst := make(types.Subst)
	if target != types.Type(types.Self) {
		subst[types.SelfID] = target
	}
	if len(ref.Args) == len(t.Params) {
		for i, p := range t.Params {
			subst[p.ID] = ref.Args[i]
		}
	}
	for _, v := range t.Assoc {
		if a, ok := assoc[v.Name]; ok {
			subst[v.ID] = a
		}
	}
	return subst
}

func (t *Trait) String() string {
	var sb strings.Builder
	sb.WriteString(t.Name)
	if len(t.Params) > 0 {
		sb.WriteString("(")
		for i, p := range t.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Name)
		}
		sb.WriteString(")")
	}
	sb.WriteString(" {")
	for i, attr := range t.Attrs() {
		if i > 0 {
			sb.WriteString(", ")
		}
		req, _ := t.Requirement(attr)
		fmt.Fprintf(&sb, "%s: %v", attr, req)
	}
	sb.WriteString("}")
	return sb.String()
}

// Class is a nominal type with attributes
type Class struct {
	Name   string
	Supers []string
	Attrs  *types.Record
	Owner  string
}

// Binding is the definition an implementation gives to one attribute
type Binding struct {
	Type types.Type
	// Value is the type bound to a type-valued attribute, such as Output := Int
	Value types.Type
}

// AttrType is what accessing the attribute evaluates to: the singleton of the bound
// type for type-valued attributes, the binding type otherwise
func (b Binding) AttrType() types.Type {
	if b.Value != nil {
		return types.Singleton(types.TypeValue(b.Value))
	}
	return b.Type
}

// Impl records that Target implements Trait
type Impl struct {
	ID string
	// Params are the variables of a generic implementation, as the T of |T| Array(T) impls Eq
	Params   []*types.TypeVar
	Target   types.Type
	Trait    *types.TraitRef
	Bindings map[string]Binding
	// Owner is the declaration whose deletion removes this implementation
	Owner string
	// Synthesized implementations were never declared: a structural trait was satisfied
	// by the attributes of the target, which the bindings point at
	Synthesized bool
}

func (i *Impl) ImplID() string { return i.ID }

func (i *Impl) String() string {
	s := fmt.Sprintf("%v impls %v", i.Target, i.Trait)
	if i.Synthesized {
		s += " (structural)"
	}
	return s
}

// Assoc returns the type bound to a type-valued attribute
func (i *Impl) Assoc(attr string) (types.Type, bool) {
	b, ok := i.Bindings[attr]
	if !ok || b.Value == nil {
		return nil, false
	}
	return b.Value, true
}

func (i *Impl) assocs() map[string]types.Type {
	out := make(map[string]types.Type)
	for attr, b := range i.Bindings {
		if b.Value != nil {
			out[attr] = b.Value
		}
	}
	return out
}

// specialize applies subst to every type of the implementation
func (i *Impl) specialize(subst types.Subst) *Impl {
	bindings := make(map[string]Binding, len(i.Bindings))
	for attr, b := range i.Bindings {
		bindings[attr] = Binding{Type: subst.Apply(b.Type), Value: subst.Apply(b.Value)}
	}
	return &Impl{
		ID:          i.ID,
		Target:      subst.Apply(i.Target),
		Trait:       subst.Apply(i.Trait).(*types.TraitRef),
		Bindings:    bindings,
		Owner:       i.Owner,
		Synthesized: i.Synthesized,
	}
}
