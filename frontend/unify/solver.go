package unify

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/subtype"
	"github.com/cottand/typecore/frontend/types"
)

// solver is the working state of one Unify or Constrain call
type solver struct {
	subst   types.Subst
	pending []Obligation
	engine  *subtype.Engine
	fuel    int
}

func (s *solver) fork() *solver {
	return &solver{
		subst:   s.subst.Clone(),
		pending: slices.Clone(s.pending),
		engine:  s.engine,
		fuel:    s.fuel,
	}
}

func (s *solver) adopt(other *solver) {
	s.subst, s.pending, s.fuel = other.subst, other.pending, other.fuel
}

func mismatch(expected, actual types.Type, reason string, args ...any) error {
	return ilerr.New(ilerr.NewTypeMismatch{Expected: expected, Actual: actual, Reason: fmt.Sprintf(reason, args...)})
}

func (s *solver) spend(expected, actual types.Type) error {
	s.fuel--
	if s.fuel < 0 {
		return mismatch(expected, actual, "constraint is too large to solve")
	}
	return nil
}

func closed(ts ...types.Type) bool {
	return types.FreeVars(ts...).Size() == 0
}

func asVar(t types.Type) (*types.TypeVar, bool) {
	tv, ok := t.(*types.TypeVar)
	if !ok || tv.ID == types.SelfID {
		return nil, false
	}
	return tv, true
}

// unify solves a == b, where a is the expected type
func (s *solver) unify(a, b types.Type) error {
	if err := s.spend(a, b); err != nil {
		return err
	}
	a, b = s.subst.Apply(a), s.subst.Apply(b)
	if types.Equal(a, b) {
		return nil
	}
	if av, ok := asVar(a); ok {
		return s.bind(av, b)
	}
	if bv, ok := asVar(b); ok {
		return s.bind(bv, a)
	}

	switch a := a.(type) {
	case *types.Function:
		if b, ok := b.(*types.Function); ok {
			return s.unifyFunctions(a, b)
		}
	case *types.Record:
		if b, ok := b.(*types.Record); ok {
			return s.unifyRecords(a, b)
		}
	case *types.Poly:
		if b, ok := b.(*types.Poly); ok && a.Name == b.Name {
			return s.unifyAll(a, b, a.Args, b.Args)
		}
	case *types.TraitRef:
		if b, ok := b.(*types.TraitRef); ok && a.Name == b.Name {
			return s.unifyAll(a, b, a.Args, b.Args)
		}
	case *types.Or:
		if b, ok := b.(*types.Or); ok && s.pairwise(a, b, a.Lhs, a.Rhs, b.Lhs, b.Rhs) {
			return nil
		}
	case *types.And:
		if b, ok := b.(*types.And); ok && s.pairwise(a, b, a.Lhs, a.Rhs, b.Lhs, b.Rhs) {
			return nil
		}
	case *types.Not:
		if b, ok := b.(*types.Not); ok {
			return s.unify(a.Inner, b.Inner)
		}
	case *types.Refinement:
		if b, ok := b.(*types.Refinement); ok {
			if err := s.unify(a.Base, b.Base); err != nil {
				return mismatch(a, b, "refined types differ")
			}
			return s.equivalent(a, b)
		}
	}
	return s.equivalent(a, b)
}

// equivalent asks the subtype engine whether two closed types are mutual subtypes,
// which relates a refinement to its sugar-free spelling, or Nat to {I: Int | I >= 0}
func (s *solver) equivalent(a, b types.Type) error {
	a, b = s.subst.Apply(a), s.subst.Apply(b)
	if !closed(a, b) {
		if isRefinement(a) || isRefinement(b) {
			s.pending = append(s.pending, Obligation{Sub: a, Super: b}, Obligation{Sub: b, Super: a})
			return nil
		}
		return mismatch(a, b, "")
	}
	if s.engine.Equivalent(a, b) {
		return nil
	}
	return mismatch(a, b, "")
}

// pairwise unifies the operands of two combinators in order, keeping the result only
// when both pairs unify; otherwise the combinators may still be equivalent as sets
func (s *solver) pairwise(a, b, aLhs, aRhs, bLhs, bRhs types.Type) bool {
	attempt := s.fork()
	if attempt.unifyAll(a, b, []types.Type{aLhs, aRhs}, []types.Type{bLhs, bRhs}) != nil {
		return false
	}
	s.adopt(attempt)
	return true
}

func isRefinement(t types.Type) bool {
	_, ok := t.(*types.Refinement)
	return ok
}

func (s *solver) unifyAll(a, b types.Type, as, bs []types.Type) error {
	if len(as) != len(bs) {
		return mismatch(a, b, "expected %d type arguments, found %d", len(as), len(bs))
	}
	for i := range as {
		if err := s.unify(as[i], bs[i]); err != nil {
			return err
		}
	}
	return nil
}

// bind solves v == t
func (s *solver) bind(v *types.TypeVar, t types.Type) error {
	if tv, ok := t.(*types.TypeVar); ok {
		return s.bindVars(v, tv)
	}
	if types.Occurs(v.ID, t) {
		return ilerr.New(ilerr.NewInfiniteType{Var: v, Type: t})
	}
	if v.Bound != nil {
		if err := s.constrain(t, v.Bound); err != nil {
			return err
		}
	}
	s.subst[v.ID] = t
	return nil
}

// bindVars keeps whichever of the two variables has the tighter bound
func (s *solver) bindVars(v, other *types.TypeVar) error {
	if other.ID == v.ID {
		return nil
	}
	_, otherFree := asVar(other)
	switch {
	case v.Bound == nil:
		s.subst[v.ID] = other
	case otherFree && other.Bound == nil:
		s.subst[other.ID] = v
	case other.Bound != nil && s.engine.IsSubtype(s.subst.Apply(other.Bound), s.subst.Apply(v.Bound)):
		s.subst[v.ID] = other
	case otherFree && other.Bound != nil && s.engine.IsSubtype(s.subst.Apply(v.Bound), s.subst.Apply(other.Bound)):
		s.subst[other.ID] = v
	default:
		return mismatch(v, other, "bounds '%v' and '%v' are unrelated", v.Bound, other.Bound)
	}
	return nil
}

func (s *solver) unifyFunctions(a, b *types.Function) error {
	if len(a.Params) != len(b.Params) || len(a.KwParams) != len(b.KwParams) {
		return mismatch(a, b, "expected %d parameters, found %d", len(a.Params)+len(a.KwParams), len(b.Params)+len(b.KwParams))
	}
	named := !a.IsUnnamed() && !b.IsUnnamed()
	for i := range a.Params {
		if named && a.Params[i].Name != b.Params[i].Name {
			return ilerr.New(ilerr.NewParameterNameMismatch{Index: i, Expected: a.Params[i].Name, Actual: b.Params[i].Name})
		}
		if err := s.unify(a.Params[i].Type, b.Params[i].Type); err != nil {
			return err
		}
	}
	for _, ap := range a.KwParams {
		bp, ok := keywordParam(b, ap.Name)
		if !ok {
			return mismatch(a, b, "missing keyword parameter '%s'", ap.Name)
		}
		if err := s.unify(ap.Type, bp.Type); err != nil {
			return err
		}
	}
	return s.unify(a.Return, b.Return)
}

func keywordParam(f *types.Function, name string) (types.Param, bool) {
	i := slices.IndexFunc(f.KwParams, func(p types.Param) bool { return p.Name == name })
	if i < 0 {
		return types.Param{}, false
	}
	return f.KwParams[i], true
}

func fieldNames(r *types.Record) []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

func (s *solver) unifyRecords(a, b *types.Record) error {
	if !slices.Equal(fieldNames(a), fieldNames(b)) {
		return mismatch(a, b, "fields {%s} and {%s} differ", strings.Join(fieldNames(a), ", "), strings.Join(fieldNames(b), ", "))
	}
	for i := range a.Fields {
		if err := s.unify(a.Fields[i].Type, b.Fields[i].Type); err != nil {
			return err
		}
	}
	return nil
}
