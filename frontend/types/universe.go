package types

import (
	"github.com/pkg/errors"
)

const (
	ObjName   = "Obj"
	NeverName = "Never"
	IntName   = "Int"
	NatName   = "Nat"
	RatioName = "Ratio"
	FloatName = "Float"
	StrName   = "Str"
	BoolName  = "Bool"
	NoneName  = "NoneType"
	TypeName  = "Type"
)

// built-in primitives. The nominal lattice between them lives in the trait registry
var (
	ObjType   = &Primitive{Name: ObjName}
	NeverType = &Primitive{Name: NeverName}
	IntType   = &Primitive{Name: IntName}
	NatType   = &Primitive{Name: NatName}
	RatioType = &Primitive{Name: RatioName}
	FloatType = &Primitive{Name: FloatName}
	StrType   = &Primitive{Name: StrName}
	BoolType  = &Primitive{Name: BoolName}
	NoneType  = &Primitive{Name: NoneName}
	TypeType  = &Primitive{Name: TypeName}
)

var ErrInvalidRefinementBase = errors.New("refinement base must be a value type")

func IsPrimitive(t Type, name string) bool {
	p, ok := t.(*Primitive)
	return ok && p.Name == name
}

// IsValueType reports whether t may be the base of a refinement:
// functions, mutable types and trait bounds are never value types
func IsValueType(t Type) bool {
	switch t := t.(type) {
	case *Primitive:
		return !t.IsMutable()
	case *Refinement:
		return IsValueType(t.Base)
	case *Enum, *Interval, *Const:
		return true
	case *Poly:
		if (&Primitive{Name: t.Name}).IsMutable() {
			return false
		}
		for _, arg := range t.Args {
			if !IsValueType(arg) {
				return false
			}
		}
		return true
	case *Record:
		for _, f := range t.Fields {
			if !IsValueType(f.Type) {
				return false
			}
		}
		return true
	case *Or:
		return IsValueType(t.Lhs) && IsValueType(t.Rhs)
	case *And:
		return IsValueType(t.Lhs) && IsValueType(t.Rhs)
	case *TypeVar:
		return t.Bound == nil || IsValueType(t.Bound)
	default:
		return false
	}
}

// NewRefinement builds {v: base | preds...}, checking that base is a value type and that
// every comparison is about v
func NewRefinement(base Type, v string, preds ...Predicate) (*Refinement, error) {
	if !IsValueType(base) {
		return nil, errors.Wrapf(ErrInvalidRefinementBase, "cannot refine %s", base)
	}
	if v == "" {
		return nil, errors.Wrap(ErrNonCanonicalPredicate, "refinement has no bound variable")
	}
	conj := Conjuncts(preds...)
	for _, p := range conj {
		if subject, ok := foreignSubject(p, v); ok {
			return nil, errors.Wrapf(ErrNonCanonicalPredicate, "predicate '%s' is about '%s', not '%s'", p, subject, v)
		}
	}
	return &Refinement{Base: base, Var: v, Preds: conj}, nil
}

func foreignSubject(p Predicate, v string) (string, bool) {
	switch p := p.(type) {
	case *Compare:
		return p.Subject, p.Subject != v
	case *PredAnd:
		if s, ok := foreignSubject(p.Lhs, v); ok {
			return s, ok
		}
		return foreignSubject(p.Rhs, v)
	case *PredOr:
		if s, ok := foreignSubject(p.Lhs, v); ok {
			return s, ok
		}
		return foreignSubject(p.Rhs, v)
	case *PredNot:
		return foreignSubject(p.Inner, v)
	default:
		return "", false
	}
}

// MustRefinement is NewRefinement for built-in and test types that are known to be valid
func MustRefinement(base Type, v string, preds ...Predicate) *Refinement {
	r, err := NewRefinement(base, v, preds...)
	if err != nil {
		panic(err)
	}
	return r
}

// NatRefinement is the refinement view of Nat
func NatRefinement(v string) *Refinement {
	return &Refinement{Base: IntType, Var: v, Preds: []Predicate{Cmp(v, OpGe, IntValue(0))}}
}

// BoolRefinement is the refinement view of Bool, the enumeration of its two values
func BoolRefinement(v string) *Refinement {
	return &Refinement{Base: BoolType, Var: v, Preds: []Predicate{
		OrPreds(Cmp(v, OpEq, BoolValue(false)), Cmp(v, OpEq, BoolValue(true))),
	}}
}

// RefinementView returns t as a refinement over its root base type, with every
// nested refinement flattened into a single conjunction.
// Value primitives are viewed as refinements with no predicates, Nat as {I: Int | I >= 0}
// and Bool as the enumeration {False, True}.
// ok is false when t has no refinement view, for example a function
func RefinementView(t Type) (*Refinement, bool) {
	t = Canonicalize(t)
	switch t := t.(type) {
	case *Refinement:
		inner, ok := RefinementView(t.Base)
		if !ok {
			return nil, false
		}
		preds := make([]Predicate, 0, len(inner.Preds)+len(t.Preds))
		for _, p := range inner.Preds {
			preds = append(preds, RenameSubject(p, inner.Var, t.Var))
		}
		preds = append(preds, t.Preds...)
		return &Refinement{Base: inner.Base, Var: t.Var, Preds: Conjuncts(preds...)}, true
	case *Primitive:
		switch {
		case t.Name == NatName:
			return NatRefinement("_"), true
		case t.Name == BoolName:
			return BoolRefinement("_"), true
		case t.Name == NeverName:
			return nil, false
		case IsValueType(t):
			return &Refinement{Base: t, Var: "_"}, true
		default:
			return nil, false
		}
	case *Poly, *Record:
		if !IsValueType(t) {
			return nil, false
		}
		return &Refinement{Base: t, Var: "_"}, true
	default:
		return nil, false
	}
}

// IsExactNumeric reports whether t is rooted in one of the exact number types,
// the only bases over which interval reasoning applies
func IsExactNumeric(t Type) bool {
	p, ok := t.(*Primitive)
	if !ok {
		return false
	}
	return p.Name == IntName || p.Name == NatName || p.Name == RatioName
}

// IsDiscrete reports whether values of t are integers
func IsDiscrete(t Type) bool {
	return IsPrimitive(t, IntName) || IsPrimitive(t, NatName)
}
