package traits

import (
	"fmt"
	"slices"

	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/subtype"
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/frontend/unify"
	"github.com/cottand/typecore/internal/metrics"
)

// Resolve finds the implementation of trait for target.
//
// Registered implementations are tried first, from target up through its superclasses.
// Structural traits then accept any target whose attributes satisfy their requirements,
// with a synthesized implementation pointing at those attributes
func (r *Registry) Resolve(target types.Type, trait *types.TraitRef) (*Impl, error) {
	impl, kind := r.resolve(r.engine, target, trait)
	r.metrics.TraitResolutions.WithLabelValues(kind).Inc()
	if impl == nil {
		return nil, ilerr.New(ilerr.NewNotImplemented{Target: target, Trait: trait})
	}
	r.logger.Debug("resolved implementation", "target", target, "trait", trait, "impl", impl.String())
	return impl, nil
}

func (r *Registry) resolve(c subtype.Checker, target types.Type, ref *types.TraitRef) (*Impl, string) {
	trait, ok := r.Trait(ref.Name)
	if !ok {
		return nil, metrics.ResolutionMissing
	}
	target = resolutionTarget(target)
	if _, ok := target.(*types.TypeVar); ok {
		return nil, metrics.ResolutionMissing
	}
	impls := r.implsOf(ref.Name)
	for _, candidate := range r.lineage(target) {
		for _, impl := range impls {
			if matched, ok := r.match(impl, candidate, ref); ok {
				return matched, metrics.ResolutionRegistered
			}
		}
	}
	if trait.Of != nil {
		of := trait.instantiation(target, ref, nil).Apply(trait.Of)
		// implementations are closed once declarations are collected, so a concrete
		// target without one does not implement the trait
		holds := false
		if not, ok := of.(*types.Not); ok {
			holds = !c.IsSubtype(target, not.Inner)
		} else {
			holds = c.IsSubtype(target, of)
		}
		if holds {
			return r.synthesizeFromRequirements(target, trait, ref), metrics.ResolutionSynthesized
		}
		return nil, metrics.ResolutionMissing
	}
	if trait.Structural || trait.Instant {
		if impl, ok := r.synthesize(c, target, trait, ref); ok {
			return impl, metrics.ResolutionSynthesized
		}
	}
	return nil, metrics.ResolutionMissing
}

// resolutionTarget is the type whose implementations apply to t: refinements
// use the implementations of their base
func resolutionTarget(t types.Type) types.Type {
	t = types.Canonicalize(t)
	if ref, ok := t.(*types.Refinement); ok {
		if view, ok := types.RefinementView(ref); ok {
			return view.Base
		}
	}
	return t
}

// lineage is t followed by its superclasses, nearest first
func (r *Registry) lineage(t types.Type) []types.Type {
	p, ok := t.(*types.Primitive)
	if !ok {
		return []types.Type{t}
	}
	out := []types.Type{t}
	seen := map[string]bool{p.Name: true}
	queue := []string{p.Name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, super := range r.supersOf(current) {
			if !seen[super] {
				seen[super] = true
				queue = append(queue, super)
				out = append(out, &types.Primitive{Name: super})
			}
		}
	}
	return out
}

func (r *Registry) supersOf(name string) []string {
	if c, ok := r.Class(name); ok {
		return c.Supers
	}
	return subtype.BuiltinSupers(name)
}

// match reports whether impl applies to target and to the requested trait arguments.
// A reference without arguments matches any instantiation.
// The returned implementation is specialised to target
func (r *Registry) match(impl *Impl, target types.Type, ref *types.TraitRef) (*Impl, bool) {
	fresh := make(types.Subst, len(impl.Params))
	for _, p := range impl.Params {
		fresh[p.ID] = r.fresh.FreshBounded(p.Name, p.Bound)
	}
	implTarget, implTrait := fresh.Apply(impl.Target), fresh.Apply(impl.Trait).(*types.TraitRef)

	u := unify.New(r.engine, r.opts, r.quiet)
	if u.Unify(implTarget, target) != nil {
		return nil, false
	}
	if len(ref.Args) > 0 {
		if len(ref.Args) != len(implTrait.Args) {
			return nil, false
		}
		// the implementation accepts any subtype of its arguments
		for i := range ref.Args {
			if u.Constrain(ref.Args[i], implTrait.Args[i]) != nil {
				return nil, false
			}
		}
	}
	return impl.specialize(fresh.Compose(u.Subst())), true
}

// synthesize checks target's own attributes against the requirements of trait
func (r *Registry) synthesize(c subtype.Checker, target types.Type, trait *Trait, ref *types.TraitRef) (*Impl, bool) {
	attrs, ok := r.attrsOf(target)
	if !ok {
		return nil, false
	}
	assoc := make(map[string]types.Type)
	for _, v := range trait.Assoc {
		t, ok := attrs.Field(v.Name)
		if !ok {
			return nil, false
		}
		value, ok := typeValueOf(t)
		if !ok {
			return nil, false
		}
		assoc[v.Name] = value
	}
	subst := trait.instantiation(target, ref, assoc)
	bindings := make(map[string]Binding, len(trait.Attrs()))
	for _, attr := range trait.Attrs() {
		t, ok := attrs.Field(attr)
		if !ok {
			return nil, false
		}
		if value, ok := assoc[attr]; ok {
			bindings[attr] = Binding{Type: types.TypeType, Value: value}
			continue
		}
		required, _ := trait.Requirement(attr)
		if !c.IsSubtype(t, subst.Apply(required)) {
			return nil, false
		}
		bindings[attr] = Binding{Type: t}
	}
	return &Impl{
		ID:          fmt.Sprintf("structural:%v:%v", target, ref),
		Target:      target,
		Trait:       ref,
		Bindings:    bindings,
		Synthesized: true,
	}, true
}

// synthesizeFromRequirements binds every attribute to its required type, for
// combinations of traits that are already known to hold
func (r *Registry) synthesizeFromRequirements(target types.Type, trait *Trait, ref *types.TraitRef) *Impl {
	subst := trait.instantiation(target, ref, nil)
	bindings := make(map[string]Binding, len(trait.Attrs()))
	for _, attr := range trait.Attrs() {
		required, _ := trait.Requirement(attr)
		bindings[attr] = Binding{Type: subst.Apply(required)}
	}
	return &Impl{
		ID:          fmt.Sprintf("structural:%v:%v", target, ref),
		Target:      target,
		Trait:       ref,
		Bindings:    bindings,
		Synthesized: true,
	}
}

// typeValueOf reads the type out of the singleton type of a type-valued attribute
func typeValueOf(t types.Type) (types.Type, bool) {
	ref, ok := types.Canonicalize(t).(*types.Refinement)
	if !ok {
		return nil, false
	}
	values, ok := types.EnumValues(ref)
	if !ok || len(values) != 1 {
		return nil, false
	}
	return values[0].TypeOf()
}

// attrsOf is the attribute set of a class, or the fields of a record
func (r *Registry) attrsOf(t types.Type) (*types.Record, bool) {
	if rec, ok := t.(*types.Record); ok {
		return rec, true
	}
	return r.AttrsOf(t)
}

func (r *Registry) SubclassOf(sub, super string) bool {
	return subtype.Reachable(sub, super, r.supersOf)
}

func (r *Registry) Implements(c subtype.Checker, t types.Type, trait *types.TraitRef) bool {
	impl, _ := r.resolve(c, t, trait)
	return impl != nil
}

// TraitImplies holds when every implementor of sub implements super: sub declares
// super among its supertraits, or super is structural and sub requires at least as much
func (r *Registry) TraitImplies(c subtype.Checker, sub, super *types.TraitRef) bool {
	if types.Equal(sub, super) {
		return true
	}
	subTrait, ok := r.Trait(sub.Name)
	if !ok {
		return false
	}
	superTrait, ok := r.Trait(super.Name)
	if !ok {
		return false
	}
	subInst := subTrait.instantiation(types.Self, sub, nil)
	if subTrait.Of != nil {
		return c.IsSubtype(subInst.Apply(subTrait.Of), super)
	}
	for _, s := range subTrait.Supers {
		if c.IsSubtype(subInst.Apply(s), super) {
			return true
		}
	}
	if superTrait.Of != nil {
		return c.IsSubtype(sub, superTrait.instantiation(types.Self, super, nil).Apply(superTrait.Of))
	}
	if !superTrait.Structural {
		return false
	}
	superInst := superTrait.instantiation(types.Self, super, nil)
	for _, attr := range superTrait.Attrs() {
		want, _ := superTrait.Requirement(attr)
		have, ok := subTrait.Requirement(attr)
		if !ok || !c.IsSubtype(subInst.Apply(have), superInst.Apply(want)) {
			return false
		}
	}
	return true
}

// AttrsOf collects the attributes of a class and of its superclasses. Those declared
// nearer to the class win
func (r *Registry) AttrsOf(t types.Type) (*types.Record, bool) {
	t = resolutionTarget(t)
	var name string
	switch t := t.(type) {
	case *types.Primitive:
		name = t.Name
	case *types.Poly:
		name = t.Name
	default:
		return nil, false
	}
	if _, ok := r.Class(name); !ok {
		return nil, false
	}
	self := types.Subst{types.SelfID: t}
	var fields []types.Field
	seen := make(map[string]bool)
	for _, ancestor := range r.lineage(&types.Primitive{Name: name}) {
		c, ok := r.Class(ancestor.(*types.Primitive).Name)
		if !ok {
			continue
		}
		for _, f := range c.Attrs.Fields {
			if !seen[f.Name] {
				seen[f.Name] = true
				fields = append(fields, types.Field{Name: f.Name, Type: self.Apply(f.Type)})
			}
		}
	}
	return types.NewRecord(fields...), true
}

// LookupAttr finds the type of target.attr.
//
// Attributes of the class itself come first. Otherwise the implementations of target
// that bind attr are candidates, the nearest class in the lineage first; several
// distinct trait instantiations are ambiguous unless qualifier picks one of them
func (r *Registry) LookupAttr(target types.Type, attr string, qualifier *types.TraitRef) (types.Type, *Impl, error) {
	if qualifier != nil {
		return r.lookupQualified(target, attr, qualifier)
	}
	if attrs, ok := r.attrsOf(resolutionTarget(target)); ok {
		if t, ok := attrs.Field(attr); ok {
			return t, nil, nil
		}
	}
	candidates := r.binding(target, attr)
	switch len(candidates) {
	case 0:
		return nil, nil, ilerr.New(ilerr.NewNameNotFound{Name: attr, Reason: fmt.Sprintf("'%v' has no such attribute", target)})
	case 1:
		return candidates[0].Bindings[attr].AttrType(), candidates[0], nil
	}
	refs := make([]*types.TraitRef, len(candidates))
	for i, impl := range candidates {
		refs[i] = impl.Trait
	}
	return nil, nil, ilerr.New(ilerr.NewAmbiguousAttribute{Target: target, Attr: attr, Candidates: refs})
}

func (r *Registry) lookupQualified(target types.Type, attr string, qualifier *types.TraitRef) (types.Type, *Impl, error) {
	for _, impl := range r.binding(target, attr) {
		if types.Equal(impl.Trait, qualifier) {
			return impl.Bindings[attr].AttrType(), impl, nil
		}
	}
	impl, err := r.Resolve(target, qualifier)
	if err != nil {
		return nil, nil, err
	}
	b, ok := impl.Bindings[attr]
	if !ok {
		return nil, nil, ilerr.New(ilerr.NewNameNotFound{Name: attr, Reason: fmt.Sprintf("'%v' does not define it", qualifier)})
	}
	return b.AttrType(), impl, nil
}

// binding lists the implementations of target that bind attr, one per distinct
// trait instantiation, from the nearest class in the lineage that has any
func (r *Registry) binding(target types.Type, attr string) []*Impl {
	target = resolutionTarget(target)
	if _, ok := target.(*types.TypeVar); ok {
		return nil
	}
	names := r.traitNames()
	for _, candidate := range r.lineage(target) {
		var found []*Impl
		for _, name := range names {
			for _, impl := range r.implsOf(name) {
				if _, binds := impl.Bindings[attr]; !binds {
					continue
				}
				matched, ok := r.match(impl, candidate, &types.TraitRef{Name: name})
				if !ok {
					continue
				}
				if !slices.ContainsFunc(found, func(f *Impl) bool { return types.Equal(f.Trait, matched.Trait) }) {
					found = append(found, matched)
				}
			}
		}
		if len(found) > 0 {
			return found
		}
	}
	return nil
}
