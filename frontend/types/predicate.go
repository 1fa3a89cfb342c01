package types

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNonCanonicalPredicate is returned when a predicate's left-hand side is not the
	// bound variable, or when its right-hand side mentions the bound variable
	ErrNonCanonicalPredicate = errors.New("predicate is not in canonical form")
	// ErrSymbolicPredicate is returned when a predicate cannot be evaluated because it compares against a name
	ErrSymbolicPredicate = errors.New("predicate compares against a symbolic operand")
)

type CmpOp uint8

const (
	_ CmpOp = iota
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op CmpOp) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return "?"
	}
}

// Operand is the right-hand side of a comparison
type Operand interface {
	fmt.Stringer
	Hash() uint64
	isOperand()
}

type ConstOperand struct{ Value Value }

// SymOperand is a bound-variable-free expression that is not a known constant,
// such as a type parameter N. It is only ever compared syntactically
type SymOperand struct{ Text string }

func (ConstOperand) isOperand()       {}
func (o ConstOperand) String() string { return o.Value.String() }
func (o ConstOperand) Hash() uint64   { return hashOf("ConstOperand", o.Value.Hash()) }
func (SymOperand) isOperand()         {}
func (o SymOperand) String() string   { return o.Text }
func (o SymOperand) Hash() uint64     { return hashOf("SymOperand", hashString(o.Text)) }

func operandEqual(a, b Operand) bool {
	switch a := a.(type) {
	case ConstOperand:
		b, ok := b.(ConstOperand)
		return ok && ValueEqual(a.Value, b.Value)
	case SymOperand:
		b, ok := b.(SymOperand)
		return ok && a.Text == b.Text
	default:
		return false
	}
}

type Predicate interface {
	fmt.Stringer
	Hash() uint64
	isPredicate()
}

var (
	_ Predicate = (*Compare)(nil)
	_ Predicate = (*PredAnd)(nil)
	_ Predicate = (*PredOr)(nil)
	_ Predicate = (*PredNot)(nil)
	_ Predicate = PredBool{}
)

// Compare is Subject Op Rhs, for example I <= 10
type Compare struct {
	Subject string
	Op      CmpOp
	Rhs     Operand
}

type PredAnd struct{ Lhs, Rhs Predicate }
type PredOr struct{ Lhs, Rhs Predicate }
type PredNot struct{ Inner Predicate }
type PredBool struct{ Value bool }

var (
	PredTrue  = PredBool{Value: true}
	PredFalse = PredBool{Value: false}
)

func (*Compare) isPredicate() {}
func (p *Compare) String() string {
	return p.Subject + " " + p.Op.String() + " " + p.Rhs.String()
}
func (p *Compare) Hash() uint64 {
	return hashOf("Compare", hashString(p.Subject), uint64(p.Op), p.Rhs.Hash())
}

func (*PredAnd) isPredicate()     {}
func (p *PredAnd) String() string { return "(" + p.Lhs.String() + " and " + p.Rhs.String() + ")" }
func (p *PredAnd) Hash() uint64   { return hashOf("PredAnd", p.Lhs.Hash(), p.Rhs.Hash()) }
func (*PredOr) isPredicate()      {}
func (p *PredOr) String() string  { return "(" + p.Lhs.String() + " or " + p.Rhs.String() + ")" }
func (p *PredOr) Hash() uint64    { return hashOf("PredOr", p.Lhs.Hash(), p.Rhs.Hash()) }
func (*PredNot) isPredicate()     {}
func (p *PredNot) String() string { return "not (" + p.Inner.String() + ")" }
func (p *PredNot) Hash() uint64   { return hashOf("PredNot", p.Inner.Hash()) }
func (PredBool) isPredicate()     {}
func (p PredBool) String() string {
	if p.Value {
		return "True"
	}
	return "False"
}
func (p PredBool) Hash() uint64 {
	if p.Value {
		return hashOf("PredTrue")
	}
	return hashOf("PredFalse")
}

// Cmp builds a comparison against a constant
func Cmp(subject string, op CmpOp, v Value) *Compare {
	return &Compare{Subject: subject, Op: op, Rhs: ConstOperand{Value: v}}
}

func AndPreds(preds ...Predicate) Predicate {
	if len(preds) == 0 {
		return PredTrue
	}
	acc := preds[0]
	for _, p := range preds[1:] {
		acc = &PredAnd{Lhs: acc, Rhs: p}
	}
	return acc
}

func OrPreds(preds ...Predicate) Predicate {
	if len(preds) == 0 {
		return PredFalse
	}
	acc := preds[0]
	for _, p := range preds[1:] {
		acc = &PredOr{Lhs: acc, Rhs: p}
	}
	return acc
}

// PredTerm is one side of a comparison as it appears in source, before validation
type PredTerm interface{ isPredTerm() }

// TermName is a plain identifier
type TermName struct{ Name string }

// TermConst is an expression already evaluated to a constant
type TermConst struct{ Value Value }

// TermExpr is any other expression; Mentions lists the names it refers to
type TermExpr struct {
	Text     string
	Mentions []string
}

func (TermName) isPredTerm()  {}
func (TermConst) isPredTerm() {}
func (TermExpr) isPredTerm()  {}

// NewCompare validates that lhs is exactly the bound variable and that rhs does not mention it.
// Predicates outside this form are rejected here rather than solved later
func NewCompare(boundVar string, lhs PredTerm, op CmpOp, rhs PredTerm) (*Compare, error) {
	name, ok := lhs.(TermName)
	if !ok || name.Name != boundVar {
		return nil, errors.Wrapf(ErrNonCanonicalPredicate, "left-hand side of '%s' must be '%s'", op, boundVar)
	}
	switch rhs := rhs.(type) {
	case TermConst:
		return &Compare{Subject: boundVar, Op: op, Rhs: ConstOperand{Value: rhs.Value}}, nil
	case TermName:
		if rhs.Name == boundVar {
			return nil, errors.Wrapf(ErrNonCanonicalPredicate, "'%s' compared against itself", boundVar)
		}
		return &Compare{Subject: boundVar, Op: op, Rhs: SymOperand{Text: rhs.Name}}, nil
	case TermExpr:
		for _, m := range rhs.Mentions {
			if m == boundVar {
				return nil, errors.Wrapf(ErrNonCanonicalPredicate, "right-hand side '%s' mentions '%s'", rhs.Text, boundVar)
			}
		}
		return &Compare{Subject: boundVar, Op: op, Rhs: SymOperand{Text: rhs.Text}}, nil
	default:
		return nil, errors.Wrapf(ErrNonCanonicalPredicate, "unsupported operand %T", rhs)
	}
}

// RenameSubject replaces every comparison subject from with to
func RenameSubject(p Predicate, from, to string) Predicate {
	if from == to {
		return p
	}
	switch p := p.(type) {
	case *Compare:
		if p.Subject != from {
			return p
		}
		return &Compare{Subject: to, Op: p.Op, Rhs: p.Rhs}
	case *PredAnd:
		return &PredAnd{Lhs: RenameSubject(p.Lhs, from, to), Rhs: RenameSubject(p.Rhs, from, to)}
	case *PredOr:
		return &PredOr{Lhs: RenameSubject(p.Lhs, from, to), Rhs: RenameSubject(p.Rhs, from, to)}
	case *PredNot:
		return &PredNot{Inner: RenameSubject(p.Inner, from, to)}
	default:
		return p
	}
}

func PredicatesEqual(a, b Predicate) bool {
	switch a := a.(type) {
	case *Compare:
		b, ok := b.(*Compare)
		return ok && a.Subject == b.Subject && a.Op == b.Op && operandEqual(a.Rhs, b.Rhs)
	case *PredAnd:
		b, ok := b.(*PredAnd)
		return ok && PredicatesEqual(a.Lhs, b.Lhs) && PredicatesEqual(a.Rhs, b.Rhs)
	case *PredOr:
		b, ok := b.(*PredOr)
		return ok && PredicatesEqual(a.Lhs, b.Lhs) && PredicatesEqual(a.Rhs, b.Rhs)
	case *PredNot:
		b, ok := b.(*PredNot)
		return ok && PredicatesEqual(a.Inner, b.Inner)
	case PredBool:
		b, ok := b.(PredBool)
		return ok && a.Value == b.Value
	default:
		return false
	}
}

// Conjuncts flattens nested PredAnd into a list
func Conjuncts(preds ...Predicate) []Predicate {
	var out []Predicate
	for _, p := range preds {
		if and, ok := p.(*PredAnd); ok {
			out = append(out, Conjuncts(and.Lhs, and.Rhs)...)
			continue
		}
		if b, ok := p.(PredBool); ok && b.Value {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Disjuncts flattens nested PredOr into a list
func Disjuncts(p Predicate) []Predicate {
	if or, ok := p.(*PredOr); ok {
		return append(Disjuncts(or.Lhs), Disjuncts(or.Rhs)...)
	}
	return []Predicate{p}
}

// EvalPredicate decides p for subject = v.
//
// It is the one piece shared between compile-time proofs and runtime checks
func EvalPredicate(p Predicate, subject string, v Value) (bool, error) {
	switch p := p.(type) {
	case PredBool:
		return p.Value, nil
	case *PredNot:
		inner, err := EvalPredicate(p.Inner, subject, v)
		return !inner, err
	case *PredAnd:
		l, err := EvalPredicate(p.Lhs, subject, v)
		if err != nil || !l {
			return false, err
		}
		return EvalPredicate(p.Rhs, subject, v)
	case *PredOr:
		l, err := EvalPredicate(p.Lhs, subject, v)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return EvalPredicate(p.Rhs, subject, v)
	case *Compare:
		if p.Subject != subject {
			return false, errors.Errorf("predicate '%s' is not about '%s'", p, subject)
		}
		rhs, ok := p.Rhs.(ConstOperand)
		if !ok {
			return false, errors.Wrapf(ErrSymbolicPredicate, "cannot evaluate '%s'", p)
		}
		return compareOp(p.Op, v, rhs.Value)
	default:
		return false, errors.Errorf("unknown predicate %T", p)
	}
}

func compareOp(op CmpOp, lhs, rhs Value) (bool, error) {
	switch op {
	case OpEq:
		return ValueEqual(lhs, rhs), nil
	case OpNe:
		return !ValueEqual(lhs, rhs), nil
	}
	order, ok := CompareValues(lhs, rhs)
	if !ok {
		return false, errors.Errorf("values %s and %s are not ordered", lhs, rhs)
	}
	switch op {
	case OpLt:
		return order < 0, nil
	case OpLe:
		return order <= 0, nil
	case OpGt:
		return order > 0, nil
	case OpGe:
		return order >= 0, nil
	default:
		return false, errors.Errorf("unknown comparison %v", op)
	}
}

// MentionsFloat reports whether any constant in p is approximate
func MentionsFloat(preds ...Predicate) bool {
	for _, p := range preds {
		switch p := p.(type) {
		case *Compare:
			if c, ok := p.Rhs.(ConstOperand); ok && c.Value.Kind == KindFloat {
				return true
			}
		case *PredAnd:
			if MentionsFloat(p.Lhs, p.Rhs) {
				return true
			}
		case *PredOr:
			if MentionsFloat(p.Lhs, p.Rhs) {
				return true
			}
		case *PredNot:
			if MentionsFloat(p.Inner) {
				return true
			}
		}
	}
	return false
}
