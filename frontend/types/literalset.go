package types

import (
	"maps"
	"slices"
	"sort"

	"github.com/xtgo/set"
)

// LiteralSet is a finite set of literals, or the cofinite set of everything except them.
// Keys are kept sorted and unique so that xtgo/set algorithms apply directly
type LiteralSet struct {
	keys     []string
	values   map[string]Value
	cofinite bool
}

func newLiteralSet(cofinite bool, vs ...Value) *LiteralSet {
	s := &LiteralSet{values: make(map[string]Value, len(vs)), cofinite: cofinite}
	for _, v := range vs {
		k := v.key()
		s.values[k] = v
		s.keys = append(s.keys, k)
	}
	sort.Strings(s.keys)
	s.keys = s.keys[:set.Uniq(sort.StringSlice(s.keys))]
	return s
}

func FiniteLiteralSet(vs ...Value) *LiteralSet   { return newLiteralSet(false, vs...) }
func CofiniteLiteralSet(vs ...Value) *LiteralSet { return newLiteralSet(true, vs...) }

// LiteralSetOf interprets the conjunction preds about subject as equalities and
// inequalities against literals. Ordering comparisons are outside this fragment
func LiteralSetOf(preds []Predicate, subject string) (*LiteralSet, bool) {
	acc := CofiniteLiteralSet()
	for _, p := range preds {
		s, ok := literalSetOfPred(p, subject)
		if !ok {
			return nil, false
		}
		acc = acc.Intersect(s)
	}
	return acc, true
}

func literalSetOfPred(p Predicate, subject string) (*LiteralSet, bool) {
	switch p := p.(type) {
	case PredBool:
		return newLiteralSet(p.Value), true
	case *PredAnd:
		l, ok := literalSetOfPred(p.Lhs, subject)
		if !ok {
			return nil, false
		}
		r, ok := literalSetOfPred(p.Rhs, subject)
		if !ok {
			return nil, false
		}
		return l.Intersect(r), true
	case *PredOr:
		l, ok := literalSetOfPred(p.Lhs, subject)
		if !ok {
			return nil, false
		}
		r, ok := literalSetOfPred(p.Rhs, subject)
		if !ok {
			return nil, false
		}
		return l.Union(r), true
	case *PredNot:
		inner, ok := literalSetOfPred(p.Inner, subject)
		if !ok {
			return nil, false
		}
		return inner.Complement(), true
	case *Compare:
		c, ok := p.Rhs.(ConstOperand)
		if !ok || p.Subject != subject {
			return nil, false
		}
		switch p.Op {
		case OpEq:
			return FiniteLiteralSet(c.Value), true
		case OpNe:
			return CofiniteLiteralSet(c.Value), true
		default:
			return nil, false
		}
	default:
		return nil, false
	}
}

type setOp func(data sort.Interface, pivot int) int

func (s *LiteralSet) combine(other *LiteralSet, op setOp, cofinite bool) *LiteralSet {
	data := make(sort.StringSlice, 0, len(s.keys)+len(other.keys))
	data = append(data, s.keys...)
	data = append(data, other.keys...)
	size := op(data, len(s.keys))
	values := maps.Clone(s.values)
	maps.Copy(values, other.values)
	keys := slices.Clone(data[:size])
	for k := range values {
		if _, found := slices.BinarySearch(keys, k); !found {
			delete(values, k)
		}
	}
	return &LiteralSet{keys: keys, values: values, cofinite: cofinite}
}

func (s *LiteralSet) Intersect(other *LiteralSet) *LiteralSet {
	switch {
	case !s.cofinite && !other.cofinite:
		return s.combine(other, set.Inter, false)
	case !s.cofinite && other.cofinite:
		return s.combine(other, set.Diff, false)
	case s.cofinite && !other.cofinite:
		return other.combine(s, set.Diff, false)
	default:
		return s.combine(other, set.Union, true)
	}
}

func (s *LiteralSet) Union(other *LiteralSet) *LiteralSet {
	switch {
	case !s.cofinite && !other.cofinite:
		return s.combine(other, set.Union, false)
	case !s.cofinite && other.cofinite:
		return other.combine(s, set.Diff, true)
	case s.cofinite && !other.cofinite:
		return s.combine(other, set.Diff, true)
	default:
		return s.combine(other, set.Inter, true)
	}
}

func (s *LiteralSet) Complement() *LiteralSet {
	return &LiteralSet{keys: s.keys, values: s.values, cofinite: !s.cofinite}
}

func (s *LiteralSet) SubsetOf(other *LiteralSet) bool {
	data := make(sort.StringSlice, 0, len(s.keys)+len(other.keys))
	data = append(data, s.keys...)
	data = append(data, other.keys...)
	switch {
	case !s.cofinite && !other.cofinite:
		return set.IsSub(data, len(s.keys))
	case !s.cofinite && other.cofinite:
		return !set.IsInter(data, len(s.keys))
	case s.cofinite && !other.cofinite:
		return false
	default:
		// everything but A is inside everything but B exactly when B is a subset of A
		data = append(append(data[:0], other.keys...), s.keys...)
		return set.IsSub(data, len(other.keys))
	}
}

func (s *LiteralSet) IsEmpty() bool {
	return !s.cofinite && len(s.keys) == 0
}

func (s *LiteralSet) IsCofinite() bool {
	return s.cofinite
}

// Values returns the listed literals in display order: the members of a finite set,
// or the excluded literals of a cofinite one
func (s *LiteralSet) Values() []Value {
	out := make([]Value, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.values[k])
	}
	slices.SortFunc(out, orderForDisplay)
	return out
}

func (s *LiteralSet) Contains(v Value) bool {
	_, found := slices.BinarySearch(s.keys, v.key())
	return found != s.cofinite
}

// ToPredicate renders s as a predicate about subject
func (s *LiteralSet) ToPredicate(subject string) Predicate {
	vs := s.Values()
	preds := make([]Predicate, len(vs))
	if s.cofinite {
		for i, v := range vs {
			preds[i] = Cmp(subject, OpNe, v)
		}
		return AndPreds(preds...)
	}
	for i, v := range vs {
		preds[i] = Cmp(subject, OpEq, v)
	}
	return OrPreds(preds...)
}
