package types

import (
	"slices"
)

// Canonicalize desugars enumerations and intervals into refinements, flattens
// directly nested refinements and normalises disjunctions of equalities, recursively.
//
//	{1, 2}   =>  {X: Int | X == 1 or X == 2}
//	1..10    =>  {X: Int | X >= 1 and X <= 10}
//	1..<10   =>  {X: Int | X >= 1 and X < 10}
func Canonicalize(t Type) Type {
	switch t := t.(type) {
	case *Enum:
		return canonicalEnum(t)
	case *Interval:
		return canonicalInterval(t)
	case *Refinement:
		return canonicalRefinement(t)
	case *Or:
		return canonicalOr(Canonicalize(t.Lhs), Canonicalize(t.Rhs))
	case *And:
		return canonicalAnd(Canonicalize(t.Lhs), Canonicalize(t.Rhs))
	default:
		return MapChildren(t, Canonicalize)
	}
}

const sugarVar = "X"

// literalBase is the type of a set of literals: their common type, widened along
// Int <: Ratio and Int <: Float, or Obj when they share none
func literalBase(vs ...Value) Type {
	if len(vs) == 0 {
		return NeverType
	}
	kind := vs[0].Kind
	for _, v := range vs[1:] {
		switch {
		case v.Kind == kind:
		case kind == KindInt && (v.Kind == KindRatio || v.Kind == KindFloat):
			kind = v.Kind
		case v.Kind == KindInt && (kind == KindRatio || kind == KindFloat):
		default:
			return ObjType
		}
	}
	return Value{Kind: kind}.Typeof()
}

func canonicalEnum(t *Enum) Type {
	if len(t.Values) == 0 {
		return NeverType
	}
	eqs := make([]Predicate, len(t.Values))
	for i, v := range t.Values {
		eqs[i] = Cmp(sugarVar, OpEq, v)
	}
	return &Refinement{
		Base:  literalBase(t.Values...),
		Var:   sugarVar,
		Preds: []Predicate{normaliseDisjunction(OrPreds(eqs...))},
	}
}

func canonicalInterval(t *Interval) Type {
	hiOp := OpLe
	if t.OpenHi {
		hiOp = OpLt
	}
	return &Refinement{
		Base: literalBase(t.Lo, t.Hi),
		Var:  sugarVar,
		Preds: []Predicate{
			Cmp(sugarVar, OpGe, t.Lo),
			Cmp(sugarVar, hiOp, t.Hi),
		},
	}
}

func canonicalRefinement(t *Refinement) Type {
	base := Canonicalize(t.Base)
	preds := make([]Predicate, 0, len(t.Preds))
	if inner, ok := base.(*Refinement); ok {
		for _, p := range inner.Preds {
			preds = append(preds, RenameSubject(p, inner.Var, t.Var))
		}
		base = inner.Base
	}
	preds = append(preds, t.Preds...)
	conj := Conjuncts(preds...)
	for i, p := range conj {
		conj[i] = normaliseDisjunction(p)
	}
	return &Refinement{Base: base, Var: t.Var, Preds: dedupePreds(conj)}
}

// canonicalOr merges the union of two refinements over the same base into one refinement
// with a disjunctive predicate, and absorbs a refinement into its own base
func canonicalOr(lhs, rhs Type) Type {
	if Equal(lhs, rhs) {
		return lhs
	}
	lr, lok := lhs.(*Refinement)
	rr, rok := rhs.(*Refinement)
	switch {
	case lok && rok && Equal(lr.Base, rr.Base):
		if len(lr.Preds) == 0 || len(rr.Preds) == 0 {
			return lr.Base
		}
		rPreds := renameAll(rr.Preds, rr.Var, lr.Var)
		merged := OrPreds(AndPreds(lr.Preds...), AndPreds(rPreds...))
		return &Refinement{Base: lr.Base, Var: lr.Var, Preds: []Predicate{normaliseDisjunction(merged)}}
	case rok && Equal(lhs, rr.Base):
		return lhs
	case lok && Equal(rhs, lr.Base):
		return rhs
	}
	return &Or{Lhs: lhs, Rhs: rhs}
}

// canonicalAnd merges the intersection of two refinements over the same base
func canonicalAnd(lhs, rhs Type) Type {
	if Equal(lhs, rhs) {
		return lhs
	}
	lr, lok := lhs.(*Refinement)
	rr, rok := rhs.(*Refinement)
	switch {
	case lok && rok && Equal(lr.Base, rr.Base):
		preds := append(slices.Clone(lr.Preds), renameAll(rr.Preds, rr.Var, lr.Var)...)
		return &Refinement{Base: lr.Base, Var: lr.Var, Preds: dedupePreds(Conjuncts(preds...))}
	case rok && Equal(lhs, rr.Base):
		return rhs
	case lok && Equal(rhs, lr.Base):
		return lhs
	}
	return &And{Lhs: lhs, Rhs: rhs}
}

// normaliseDisjunction sorts and deduplicates a disjunction of equalities against constants,
// so that {2, 1, 2} and {1, 2} produce the same predicate
func normaliseDisjunction(p Predicate) Predicate {
	if _, ok := p.(*PredOr); !ok {
		return p
	}
	disj := Disjuncts(p)
	subject := ""
	values := make([]Value, 0, len(disj))
	for _, d := range disj {
		cmp, ok := d.(*Compare)
		if !ok || cmp.Op != OpEq {
			return OrPreds(dedupePreds(disj)...)
		}
		c, ok := cmp.Rhs.(ConstOperand)
		if !ok || (subject != "" && subject != cmp.Subject) {
			return OrPreds(dedupePreds(disj)...)
		}
		subject = cmp.Subject
		values = append(values, c.Value)
	}
	slices.SortFunc(values, orderForDisplay)
	values = slices.CompactFunc(values, ValueEqual)
	eqs := make([]Predicate, len(values))
	for i, v := range values {
		eqs[i] = Cmp(subject, OpEq, v)
	}
	return OrPreds(eqs...)
}

// EnumValues returns the literals of a refinement whose predicate is exactly a
// disjunction of equalities, such as the canonical form of {1, 2}
func EnumValues(r *Refinement) ([]Value, bool) {
	if len(r.Preds) != 1 {
		return nil, false
	}
	var values []Value
	for _, d := range Disjuncts(r.Preds[0]) {
		cmp, ok := d.(*Compare)
		if !ok || cmp.Op != OpEq || cmp.Subject != r.Var {
			return nil, false
		}
		c, ok := cmp.Rhs.(ConstOperand)
		if !ok {
			return nil, false
		}
		values = append(values, c.Value)
	}
	return values, true
}

// Singleton is the refinement containing exactly v, the type of a constant-computable argument
func Singleton(v Value) *Refinement {
	return &Refinement{Base: v.Typeof(), Var: sugarVar, Preds: []Predicate{Cmp(sugarVar, OpEq, v)}}
}
