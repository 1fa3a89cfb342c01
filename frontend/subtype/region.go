package subtype

import (
	"github.com/cottand/typecore/frontend/types"
)

// regionVar names the bound variable of regions built by the engine
const regionVar = "X"

// IsEmpty reports whether t provably has no values. Types it cannot decide are not empty
func (e *Engine) IsEmpty(t types.Type) bool {
	return e.newQuery().isEmpty(types.Canonicalize(t))
}

// Intersect returns the values in both a and b. ok is false when the intersection
// is not representable, in which case the returned type is And(a, b)
func (e *Engine) Intersect(a, b types.Type) (types.Type, bool) {
	return e.newQuery().intersect(types.Canonicalize(a), types.Canonicalize(b))
}

// Difference returns the values of a that are not in b. When the difference is not
// representable, exact is false and the result over-approximates it
func (e *Engine) Difference(a, b types.Type) (rest types.Type, exact bool) {
	return e.newQuery().difference(types.Canonicalize(a), types.Canonicalize(b))
}

// Disjoint reports whether a and b provably share no value
func (e *Engine) Disjoint(a, b types.Type) bool {
	return e.newQuery().disjoint(types.Canonicalize(a), types.Canonicalize(b))
}

// Missing returns the part of domain that no type of cover reaches, or Never when cover
// is exhaustive. Regions that cannot be subtracted exactly are kept, so a non-Never answer
// may be larger than the true gap but a Never answer is always a proof
func (e *Engine) Missing(domain types.Type, cover ...types.Type) types.Type {
	q := e.newQuery()
	rest := types.Canonicalize(domain)
	for _, c := range cover {
		if q.isEmpty(rest) {
			break
		}
		rest, _ = q.difference(rest, types.Canonicalize(c))
	}
	if q.isEmpty(rest) {
		return types.NeverType
	}
	return rest
}

func (q *query) isEmpty(t types.Type) bool {
	switch t := t.(type) {
	case *types.Primitive:
		return t.Name == types.NeverName
	case *types.Refinement:
		view, ok := types.RefinementView(t)
		return ok && q.isEmptyRefinement(view)
	case *types.Or:
		return q.isEmpty(t.Lhs) && q.isEmpty(t.Rhs)
	case *types.And:
		inter, ok := q.intersect(t.Lhs, t.Rhs)
		return ok && q.isEmpty(inter)
	}
	return false
}

func (q *query) intersect(a, b types.Type) (types.Type, bool) {
	switch {
	case q.isSubtype(a, b):
		return a, true
	case q.isSubtype(b, a):
		return b, true
	}
	if or, ok := a.(*types.Or); ok {
		return q.intersectOr(or, b)
	}
	if or, ok := b.(*types.Or); ok {
		return q.intersectOr(or, a)
	}
	ra, aOk := types.RefinementView(a)
	rb, bOk := types.RefinementView(b)
	if aOk && bOk {
		base, ok := q.meet(ra.Base, rb.Base)
		if !ok {
			return &types.And{Lhs: a, Rhs: b}, false
		}
		if types.IsPrimitive(base, types.NeverName) {
			return types.NeverType, true
		}
		preds := append(renamed(ra), renamed(rb)...)
		return q.simplify(&types.Refinement{Base: base, Var: regionVar, Preds: types.Conjuncts(preds...)}), true
	}
	if q.unrelatedClasses(a, b) {
		return types.NeverType, true
	}
	return &types.And{Lhs: a, Rhs: b}, false
}

func (q *query) intersectOr(or *types.Or, other types.Type) (types.Type, bool) {
	l, lOk := q.intersect(or.Lhs, other)
	r, rOk := q.intersect(or.Rhs, other)
	return q.union(l, r), lOk && rOk
}

func (q *query) union(a, b types.Type) types.Type {
	switch {
	case q.isEmpty(a):
		return b
	case q.isEmpty(b):
		return a
	}
	return types.Canonicalize(&types.Or{Lhs: a, Rhs: b})
}

// meet is the greatest common base of two refinement bases, Never when the bases are
// unrelated classes
func (q *query) meet(a, b types.Type) (types.Type, bool) {
	switch {
	case q.isSubtype(a, b):
		return a, true
	case q.isSubtype(b, a):
		return b, true
	case q.unrelatedClasses(a, b):
		return types.NeverType, true
	}
	return nil, false
}

// unrelatedClasses reports whether a and b are classes neither of which is under the other,
// which never share a value
func (q *query) unrelatedClasses(a, b types.Type) bool {
	pa, aOk := rootClass(a)
	pb, bOk := rootClass(b)
	if !aOk || !bOk {
		return false
	}
	return !q.e.nominal.SubclassOf(pa.Name, pb.Name) && !q.e.nominal.SubclassOf(pb.Name, pa.Name)
}

func rootClass(t types.Type) (*types.Primitive, bool) {
	if r, ok := types.RefinementView(t); ok {
		t = r.Base
	}
	p, ok := t.(*types.Primitive)
	return p, ok
}

func (q *query) difference(a, b types.Type) (types.Type, bool) {
	if q.isSubtype(a, b) {
		return types.NeverType, true
	}
	if or, ok := a.(*types.Or); ok {
		l, lOk := q.difference(or.Lhs, b)
		r, rOk := q.difference(or.Rhs, b)
		return q.union(l, r), lOk && rOk
	}
	if or, ok := b.(*types.Or); ok {
		rest, lOk := q.difference(a, or.Lhs)
		rest, rOk := q.difference(rest, or.Rhs)
		return rest, lOk && rOk
	}
	if q.disjoint(a, b) {
		return a, true
	}
	ra, aOk := types.RefinementView(a)
	rb, bOk := types.RefinementView(b)
	if !aOk || !bOk || !q.isSubtype(ra.Base, rb.Base) {
		return a, false
	}
	excluded := types.AndPreds(renamed(rb)...)
	preds := append(renamed(ra), &types.PredNot{Inner: excluded})
	return q.simplify(&types.Refinement{Base: ra.Base, Var: regionVar, Preds: types.Conjuncts(preds...)}), true
}

func (q *query) disjoint(a, b types.Type) bool {
	if q.unrelatedClasses(a, b) {
		return true
	}
	inter, ok := q.intersect(a, b)
	return ok && q.isEmpty(inter)
}

func renamed(r *types.Refinement) []types.Predicate {
	out := make([]types.Predicate, len(r.Preds))
	for i, p := range r.Preds {
		out[i] = types.RenameSubject(p, r.Var, regionVar)
	}
	return out
}

// simplify rewrites a region in the smallest form the normal forms give it: Never when
// empty, the bare base when unconstrained, a union of intervals or an enumeration otherwise
func (q *query) simplify(r *types.Refinement) types.Type {
	if q.isEmptyRefinement(r) {
		return types.NeverType
	}
	if isApproximate(r) {
		return types.Canonicalize(r)
	}
	if types.IsExactNumeric(r.Base) {
		if s, ok := types.IntervalSetOf(r.Preds, r.Var, types.IsDiscrete(r.Base)); ok {
			if s.IsFull() {
				return r.Base
			}
			return &types.Refinement{Base: r.Base, Var: r.Var, Preds: types.Conjuncts(s.ToPredicate(r.Var))}
		}
	}
	if s, ok := types.LiteralSetOf(r.Preds, r.Var); ok && !s.IsCofinite() {
		return types.Canonicalize(&types.Enum{Values: s.Values()})
	}
	return types.Canonicalize(r)
}
