package subtype

import (
	"github.com/cottand/typecore/frontend/types"
)

// enumerationLimit bounds how many integers of a bounded interval are listed
// when comparing it against an enumeration
const enumerationLimit = 256

// refines decides {sub.Var: sub.Base | sub.Preds} <: {super.Var: super.Base | super.Preds}
// for two flattened refinement views. The rules are tried in order, and anything they
// cannot prove is not a subtype:
//
//  1. every conjunct of super appears in sub, up to renaming of the bound variable
//  2. both are sets of exact numbers, compared as unions of intervals
//  3. both are finite or cofinite sets of literals
//  4. sub is a finite set of literals, each of which satisfies super
func (q *query) refines(sub, super *types.Refinement) bool {
	if q.isEmptyRefinement(sub) {
		return true
	}
	if !q.isSubtype(sub.Base, super.Base) {
		return false
	}
	if len(super.Preds) == 0 {
		return true
	}
	if types.ContainsConjuncts(sub.Preds, sub.Var, super.Preds, super.Var) {
		return true
	}
	if isApproximate(sub) || isApproximate(super) {
		return false
	}

	if types.IsExactNumeric(sub.Base) {
		discrete := types.IsDiscrete(sub.Base)
		subSet, subOk := types.IntervalSetOf(sub.Preds, sub.Var, discrete)
		superSet, superOk := types.IntervalSetOf(super.Preds, super.Var, discrete)
		if subOk && superOk {
			return subSet.SubsetOf(superSet)
		}
		if subOk {
			if values, ok := subSet.Enumerate(enumerationLimit); ok {
				return satisfiesAll(values, super)
			}
		}
	}

	subLits, subOk := types.LiteralSetOf(sub.Preds, sub.Var)
	superLits, superOk := types.LiteralSetOf(super.Preds, super.Var)
	if subOk && superOk {
		return subLits.SubsetOf(superLits)
	}
	if subOk && !subLits.IsCofinite() {
		return satisfiesAll(subLits.Values(), super)
	}
	return false
}

func isApproximate(r *types.Refinement) bool {
	return types.IsPrimitive(r.Base, types.FloatName) || types.MentionsFloat(r.Preds...)
}

// satisfiesAll evaluates super's predicates on each value. Predicates that cannot be
// evaluated, for example over symbolic operands, are not satisfied
func satisfiesAll(values []types.Value, super *types.Refinement) bool {
	for _, v := range values {
		for _, p := range super.Preds {
			ok, err := types.EvalPredicate(p, super.Var, v)
			if err != nil || !ok {
				return false
			}
		}
	}
	return true
}

// isEmptyRefinement reports whether r provably has no members
func (q *query) isEmptyRefinement(r *types.Refinement) bool {
	for _, p := range r.Preds {
		if b, ok := p.(types.PredBool); ok && !b.Value {
			return true
		}
	}
	if isApproximate(r) {
		return false
	}
	if types.IsExactNumeric(r.Base) {
		if s, ok := types.IntervalSetOf(r.Preds, r.Var, types.IsDiscrete(r.Base)); ok {
			return s.IsEmpty()
		}
	}
	if s, ok := types.LiteralSetOf(r.Preds, r.Var); ok {
		return s.IsEmpty()
	}
	return false
}
