package traits

import (
	"fmt"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/types"
)

// Redeclaration is an attribute a subsuming trait declares itself.
// Override marks it as narrowing an inherited requirement
type Redeclaration struct {
	Type     types.Type
	Override bool
}

// Subsume derives a trait requiring everything includes require, minus the requirements
// of excludes, plus its own redeclarations.
//
// A redeclaration of an inherited attribute must be marked as an override, and its type
// must be a subtype of the inherited one
func (r *Registry) Subsume(name string, includes, excludes []*types.TraitRef, redeclared map[string]Redeclaration) (*Trait, error) {
	required := immutable.NewSortedMap[string, types.Type](immutable.NewComparer(""))
	structural := len(includes) > 0
	var assoc []*types.TypeVar
	for _, inc := range includes {
		base, ok := r.Trait(inc.Name)
		if !ok {
			return nil, ilerr.New(ilerr.NewNameNotFound{Name: inc.Name, Reason: "not a trait"})
		}
		structural = structural && base.Structural
		assoc = append(assoc, base.Assoc...)
		subst := base.instantiation(types.Self, inc, nil)
		for _, attr := range base.Attrs() {
			t, _ := base.Requirement(attr)
			t = subst.Apply(t)
			if prev, ok := required.Get(attr); ok && !types.Equal(prev, t) {
				t = &types.And{Lhs: prev, Rhs: t}
			}
			required = required.Set(attr, t)
		}
	}
	for _, exc := range excludes {
		base, ok := r.Trait(exc.Name)
		if !ok {
			return nil, ilerr.New(ilerr.NewNameNotFound{Name: exc.Name, Reason: "not a trait"})
		}
		for _, attr := range base.Attrs() {
			required = required.Delete(attr)
		}
	}
	for attr, re := range redeclared {
		base, inherited := required.Get(attr)
		switch {
		case inherited && !re.Override && !types.Equal(base, re.Type):
			return nil, ilerr.New(ilerr.NewInvalidOverride{Trait: name, Attr: attr, Base: base, Override: re.Type,
				Reason: "it is inherited, mark the redeclaration as an override"})
		case inherited && re.Override && !r.engine.IsSubtype(re.Type, base):
			return nil, ilerr.New(ilerr.NewInvalidOverride{Trait: name, Attr: attr, Base: base, Override: re.Type,
				Reason: "an override must be a subtype of the inherited declaration"})
		case !inherited && re.Override:
			return nil, ilerr.New(ilerr.NewInvalidOverride{Trait: name, Attr: attr, Override: re.Type,
				Reason: "there is no inherited declaration to override"})
		}
		required = required.Set(attr, re.Type)
	}
	// excluding requirements breaks the implication towards the included traits
	var supers []*types.TraitRef
	if len(excludes) == 0 {
		supers = includes
	}
	return &Trait{
		Name:       name,
		Required:   required,
		Structural: structural,
		Supers:     supers,
		Assoc:      assoc,
	}, nil
}

// And is the trait of types implementing both a and b
func And(a, b *Trait) *Trait {
	required := a.requirements()
	for _, attr := range b.Attrs() {
		t, _ := b.Requirement(attr)
		if prev, ok := required.Get(attr); ok && !types.Equal(prev, t) {
			t = &types.And{Lhs: prev, Rhs: t}
		}
		required = required.Set(attr, t)
	}
	return &Trait{
		Name:       fmt.Sprintf("(%s and %s)", a.Name, b.Name),
		Params:     append(append([]*types.TypeVar(nil), a.Params...), b.Params...),
		Required:   required,
		Structural: a.Structural && b.Structural,
		Instant:    true,
		Assoc:      append(append([]*types.TypeVar(nil), a.Assoc...), b.Assoc...),
		Of:         &types.And{Lhs: a.bound(), Rhs: b.bound()},
	}
}

// Or is the trait of types implementing a or b. Only the attributes both require
// are known to exist
func Or(a, b *Trait) *Trait {
	required := sortedRequirements(nil)
	for _, attr := range a.Attrs() {
		ta, _ := a.Requirement(attr)
		tb, ok := b.Requirement(attr)
		if !ok {
			continue
		}
		t := ta
		if !types.Equal(ta, tb) {
			t = &types.Or{Lhs: ta, Rhs: tb}
		}
		required = required.Set(attr, t)
	}
	return &Trait{
		Name:     fmt.Sprintf("(%s or %s)", a.Name, b.Name),
		Params:   append(append([]*types.TypeVar(nil), a.Params...), b.Params...),
		Required: required,
		Instant:  true,
		Of:       &types.Or{Lhs: a.bound(), Rhs: b.bound()},
	}
}

// Not is the trait of types that do not implement t. It requires nothing
func Not(t *Trait) *Trait {
	return &Trait{
		Name:     fmt.Sprintf("not %s", t.Name),
		Params:   t.Params,
		Required: sortedRequirements(nil),
		Instant:  true,
		Of:       &types.Not{Inner: t.bound()},
	}
}

// Replace is t with attr required to have type typ instead
func Replace(t *Trait, attr string, typ types.Type) *Trait {
	return &Trait{
		Name:       fmt.Sprintf("%s[%s := %v]", t.Name, attr, typ),
		Params:     t.Params,
		Required:   t.requirements().Set(attr, typ),
		Structural: t.Structural,
		Instant:    true,
		Supers:     t.Supers,
		Assoc:      t.Assoc,
	}
}
