package unify

import (
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/types"
)

// constrain solves sub <: super
func (s *solver) constrain(sub, super types.Type) error {
	if err := s.spend(super, sub); err != nil {
		return err
	}
	sub, super = s.subst.Apply(sub), s.subst.Apply(super)
	if types.Equal(sub, super) || types.IsPrimitive(super, types.ObjName) || types.IsPrimitive(sub, types.NeverName) {
		return nil
	}

	if sv, ok := asVar(sub); ok {
		if trait, ok := super.(*types.TraitRef); ok {
			if sv.Bound != nil && closed(sv.Bound) && s.engine.IsSubtype(sv.Bound, trait) {
				return nil
			}
			s.pending = append(s.pending, Obligation{Sub: sub, Super: super})
			return nil
		}
		return s.bind(sv, super)
	}
	if tv, ok := asVar(super); ok {
		return s.bind(tv, sub)
	}

	// unions and intersections
	if or, ok := sub.(*types.Or); ok {
		if err := s.constrain(or.Lhs, super); err != nil {
			return err
		}
		return s.constrain(or.Rhs, super)
	}
	if and, ok := super.(*types.And); ok {
		if err := s.constrain(sub, and.Lhs); err != nil {
			return err
		}
		return s.constrain(sub, and.Rhs)
	}
	if or, ok := super.(*types.Or); ok {
		return s.firstOf(sub, super, func(alt *solver, t types.Type) error { return alt.constrain(sub, t) }, or.Lhs, or.Rhs)
	}
	if and, ok := sub.(*types.And); ok {
		return s.firstOf(sub, super, func(alt *solver, t types.Type) error { return alt.constrain(t, super) }, and.Lhs, and.Rhs)
	}

	switch super := super.(type) {
	case *types.Function:
		if sub, ok := sub.(*types.Function); ok {
			return s.constrainFunctions(sub, super)
		}
	case *types.Record:
		return s.constrainRecord(sub, super)
	case *types.Poly:
		if sub, ok := sub.(*types.Poly); ok && sub.Name == super.Name {
			return s.unifyAll(super, sub, super.Args, sub.Args)
		}
	case *types.TraitRef:
		return s.implements(sub, super)
	case *types.Refinement:
		return s.refines(sub, super)
	}
	if r, ok := sub.(*types.Refinement); ok && !closed(r.Base) {
		return s.constrain(r.Base, super)
	}
	return s.decide(sub, super)
}

// decide hands a constraint over closed types to the subtype engine
func (s *solver) decide(sub, super types.Type) error {
	if closed(sub, super) && s.engine.IsSubtype(sub, super) {
		return nil
	}
	return mismatch(super, sub, "")
}

// firstOf tries each alternative with its own copy of the substitution, and keeps
// the first that succeeds
func (s *solver) firstOf(sub, super types.Type, try func(*solver, types.Type) error, alternatives ...types.Type) error {
	for _, alt := range alternatives {
		attempt := s.fork()
		if err := try(attempt, alt); err == nil {
			s.adopt(attempt)
			return nil
		}
	}
	// a closed type may still be covered by several alternatives together
	return s.decide(sub, super)
}

func (s *solver) implements(sub types.Type, trait *types.TraitRef) error {
	if !closed(sub, trait) {
		s.pending = append(s.pending, Obligation{Sub: sub, Super: trait})
		return nil
	}
	if s.engine.IsSubtype(sub, trait) {
		return nil
	}
	return ilerr.New(ilerr.NewNotImplemented{Target: sub, Trait: trait})
}

// refines solves sub <: {X: Base | Preds}: bases first, and predicates once both sides
// are closed
func (s *solver) refines(sub types.Type, super *types.Refinement) error {
	subBase := sub
	if r, ok := sub.(*types.Refinement); ok {
		subBase = r.Base
	}
	if !closed(subBase, super.Base) {
		if err := s.constrain(subBase, super.Base); err != nil {
			return mismatch(super, sub, "refined types differ")
		}
	}
	sub, superT := s.subst.Apply(sub), s.subst.Apply(super)
	if !closed(sub, superT) {
		s.pending = append(s.pending, Obligation{Sub: sub, Super: superT})
		return nil
	}
	return s.decide(sub, superT)
}

// constrainRecord is width and depth subsumption against a record bound.
// Classes take part through their attributes
func (s *solver) constrainRecord(sub types.Type, super *types.Record) error {
	var fields *types.Record
	switch sub := sub.(type) {
	case *types.Record:
		fields = sub
	default:
		attrs, ok := s.engine.Nominal().AttrsOf(sub)
		if !ok {
			return mismatch(super, sub, "it has no attributes")
		}
		fields = attrs
	}
	for _, f := range super.Fields {
		t, ok := fields.Field(f.Name)
		if !ok {
			return mismatch(super, sub, "missing field '%s'", f.Name)
		}
		if err := s.constrain(t, f.Type); err != nil {
			return err
		}
	}
	return nil
}

// constrainFunctions checks that sub accepts every call super accepts: contravariant
// parameters, covariant return, keyword parameters by name
func (s *solver) constrainFunctions(sub, super *types.Function) error {
	if len(sub.Params) < len(super.Params) || sub.Required() > super.Required() {
		return mismatch(super, sub, "expected %d positional parameters, found %d", len(super.Params), len(sub.Params))
	}
	named := !sub.IsUnnamed() && !super.IsUnnamed()
	for i, p := range super.Params {
		sp := sub.Params[i]
		if named && sp.Name != p.Name {
			return ilerr.New(ilerr.NewParameterNameMismatch{Index: i, Expected: p.Name, Actual: sp.Name})
		}
		if p.HasDefault && !sp.HasDefault {
			return mismatch(super, sub, "parameter %d must have a default", i)
		}
		if err := s.constrain(p.Type, sp.Type); err != nil {
			return err
		}
	}
	for _, extra := range sub.Params[len(super.Params):] {
		if !extra.HasDefault {
			return mismatch(super, sub, "extra parameter '%s' has no default", extra.Name)
		}
	}
	for _, p := range super.KwParams {
		sp, ok := keywordParam(sub, p.Name)
		if !ok {
			return mismatch(super, sub, "missing keyword parameter '%s'", p.Name)
		}
		if err := s.constrain(p.Type, sp.Type); err != nil {
			return err
		}
	}
	for _, sp := range sub.KwParams {
		if _, ok := keywordParam(super, sp.Name); !ok && !sp.HasDefault {
			return mismatch(super, sub, "extra keyword parameter '%s' has no default", sp.Name)
		}
	}
	return s.constrain(sub.Return, super.Return)
}
