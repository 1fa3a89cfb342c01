package types

import (
	"math/big"
	"slices"
	"strings"
)

// span is one interval of an IntervalSet. A nil bound is infinite
type span struct {
	lo, hi         *big.Rat
	loOpen, hiOpen bool
}

// IntervalSet is a union of disjoint, sorted intervals over exact rationals.
// A discrete set only ever contains integers, and keeps its spans closed with integer bounds
type IntervalSet struct {
	spans    []span
	discrete bool
}

func FullIntervalSet(discrete bool) *IntervalSet {
	return &IntervalSet{spans: []span{{}}, discrete: discrete}
}

func EmptyIntervalSet(discrete bool) *IntervalSet {
	return &IntervalSet{discrete: discrete}
}

// IntervalSetOf interprets the conjunction preds about subject as a set of numbers.
// ok is false as soon as one predicate falls outside the interval fragment, for example
// a comparison against a Float, a string or a symbolic operand
func IntervalSetOf(preds []Predicate, subject string, discrete bool) (*IntervalSet, bool) {
	acc := FullIntervalSet(discrete)
	for _, p := range preds {
		s, ok := intervalSetOfPred(p, subject, discrete)
		if !ok {
			return nil, false
		}
		acc = acc.Intersect(s)
	}
	return acc, true
}

func intervalSetOfPred(p Predicate, subject string, discrete bool) (*IntervalSet, bool) {
	switch p := p.(type) {
	case PredBool:
		if p.Value {
			return FullIntervalSet(discrete), true
		}
		return EmptyIntervalSet(discrete), true
	case *PredAnd:
		l, ok := intervalSetOfPred(p.Lhs, subject, discrete)
		if !ok {
			return nil, false
		}
		r, ok := intervalSetOfPred(p.Rhs, subject, discrete)
		if !ok {
			return nil, false
		}
		return l.Intersect(r), true
	case *PredOr:
		l, ok := intervalSetOfPred(p.Lhs, subject, discrete)
		if !ok {
			return nil, false
		}
		r, ok := intervalSetOfPred(p.Rhs, subject, discrete)
		if !ok {
			return nil, false
		}
		return l.Union(r), true
	case *PredNot:
		inner, ok := intervalSetOfPred(p.Inner, subject, discrete)
		if !ok {
			return nil, false
		}
		return inner.Complement(), true
	case *Compare:
		if p.Subject != subject {
			return nil, false
		}
		c, ok := p.Rhs.(ConstOperand)
		if !ok {
			return nil, false
		}
		r, ok := c.Value.Rat()
		if !ok {
			return nil, false
		}
		return fromCompare(p.Op, r, discrete), true
	default:
		return nil, false
	}
}

func fromCompare(op CmpOp, c *big.Rat, discrete bool) *IntervalSet {
	var s span
	switch op {
	case OpEq:
		s = span{lo: c, hi: c}
	case OpNe:
		return (&IntervalSet{spans: []span{{lo: c, hi: c}}, discrete: discrete}).normalise().Complement()
	case OpLt:
		s = span{hi: c, hiOpen: true}
	case OpLe:
		s = span{hi: c}
	case OpGt:
		s = span{lo: c, loOpen: true}
	case OpGe:
		s = span{lo: c}
	}
	return (&IntervalSet{spans: []span{s}, discrete: discrete}).normalise()
}

func floorRat(r *big.Rat) *big.Rat {
	// Euclidean division rounds towards negative infinity for a positive divisor,
	// and a big.Rat denominator is always positive
	q := new(big.Int).Div(r.Num(), r.Denom())
	return new(big.Rat).SetInt(q)
}

func ceilRat(r *big.Rat) *big.Rat {
	neg := new(big.Rat).Neg(r)
	return new(big.Rat).Neg(floorRat(neg))
}

var ratOne = big.NewRat(1, 1)

// discretise closes a span on the integers it contains
func (s span) discretise() span {
	out := span{}
	if s.lo != nil {
		if s.loOpen {
			out.lo = new(big.Rat).Add(floorRat(s.lo), ratOne)
		} else {
			out.lo = ceilRat(s.lo)
		}
	}
	if s.hi != nil {
		if s.hiOpen {
			out.hi = new(big.Rat).Sub(ceilRat(s.hi), ratOne)
		} else {
			out.hi = floorRat(s.hi)
		}
	}
	return out
}

func (s span) isEmpty() bool {
	if s.lo == nil || s.hi == nil {
		return false
	}
	c := s.lo.Cmp(s.hi)
	return c > 0 || (c == 0 && (s.loOpen || s.hiOpen))
}

// compareLo orders two lower bounds, where nil is negative infinity
// and an open bound starts after a closed one at the same point
func compareLo(a *big.Rat, aOpen bool, b *big.Rat, bOpen bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c := a.Cmp(b); c != 0 {
		return c
	}
	switch {
	case aOpen == bOpen:
		return 0
	case aOpen:
		return 1
	default:
		return -1
	}
}

// compareHi orders two upper bounds, where nil is positive infinity
// and an open bound ends before a closed one at the same point
func compareHi(a *big.Rat, aOpen bool, b *big.Rat, bOpen bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if c := a.Cmp(b); c != 0 {
		return c
	}
	switch {
	case aOpen == bOpen:
		return 0
	case aOpen:
		return -1
	default:
		return 1
	}
}

func intersectSpans(a, b span) span {
	out := a
	if compareLo(b.lo, b.loOpen, a.lo, a.loOpen) > 0 {
		out.lo, out.loOpen = b.lo, b.loOpen
	}
	if compareHi(b.hi, b.hiOpen, a.hi, a.hiOpen) < 0 {
		out.hi, out.hiOpen = b.hi, b.hiOpen
	}
	return out
}

// normalise discretises, drops empty spans, sorts and merges overlapping spans
func (s *IntervalSet) normalise() *IntervalSet {
	spans := make([]span, 0, len(s.spans))
	for _, sp := range s.spans {
		if s.discrete {
			sp = sp.discretise()
		}
		if !sp.isEmpty() {
			spans = append(spans, sp)
		}
	}
	slices.SortFunc(spans, func(a, b span) int { return compareLo(a.lo, a.loOpen, b.lo, b.loOpen) })
	merged := spans[:0]
	for _, sp := range spans {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if overlapsOrTouches(*last, sp, s.discrete) {
				if compareHi(sp.hi, sp.hiOpen, last.hi, last.hiOpen) > 0 {
					last.hi, last.hiOpen = sp.hi, sp.hiOpen
				}
				continue
			}
		}
		merged = append(merged, sp)
	}
	return &IntervalSet{spans: merged, discrete: s.discrete}
}

// overlapsOrTouches assumes a starts no later than b
func overlapsOrTouches(a, b span, discrete bool) bool {
	if a.hi == nil || b.lo == nil {
		return true
	}
	c := b.lo.Cmp(a.hi)
	switch {
	case c < 0:
		return true
	case c == 0:
		return !(a.hiOpen && b.loOpen)
	case discrete:
		// [1, 2] and [3, 4] are the same integers as [1, 4]
		return new(big.Rat).Sub(b.lo, a.hi).Cmp(ratOne) == 0
	default:
		return false
	}
}

func (s *IntervalSet) IsEmpty() bool {
	return len(s.spans) == 0
}

func (s *IntervalSet) IsFull() bool {
	return len(s.spans) == 1 && s.spans[0].lo == nil && s.spans[0].hi == nil
}

func (s *IntervalSet) Intersect(other *IntervalSet) *IntervalSet {
	var spans []span
	for _, a := range s.spans {
		for _, b := range other.spans {
			if sp := intersectSpans(a, b); !sp.isEmpty() {
				spans = append(spans, sp)
			}
		}
	}
	return (&IntervalSet{spans: spans, discrete: s.discrete || other.discrete}).normalise()
}

// Complement returns every number, or integer when discrete, not in s
func (s *IntervalSet) Complement() *IntervalSet {
	var gaps []span
	var lo *big.Rat
	loOpen := false
	atStart := true
	for _, sp := range s.spans {
		if sp.lo != nil {
			gap := span{lo: lo, loOpen: loOpen, hi: sp.lo, hiOpen: !sp.loOpen}
			if atStart {
				gap.lo, gap.loOpen = nil, false
			}
			gaps = append(gaps, gap)
		}
		atStart = false
		if sp.hi == nil {
			return (&IntervalSet{spans: gaps, discrete: s.discrete}).normalise()
		}
		lo, loOpen = sp.hi, !sp.hiOpen
	}
	if atStart {
		return FullIntervalSet(s.discrete)
	}
	gaps = append(gaps, span{lo: lo, loOpen: loOpen})
	return (&IntervalSet{spans: gaps, discrete: s.discrete}).normalise()
}

func (s *IntervalSet) Union(other *IntervalSet) *IntervalSet {
	return (&IntervalSet{spans: append(slices.Clone(s.spans), other.spans...), discrete: s.discrete || other.discrete}).normalise()
}

// Difference returns the members of s that are not in other
func (s *IntervalSet) Difference(other *IntervalSet) *IntervalSet {
	return s.Intersect(other.Complement())
}

func (s *IntervalSet) SubsetOf(other *IntervalSet) bool {
	return s.Difference(other).IsEmpty()
}

func (s *IntervalSet) Contains(v Value) bool {
	r, ok := v.Rat()
	if !ok {
		return false
	}
	if s.discrete && !r.IsInt() {
		return false
	}
	point := span{lo: r, hi: r}
	for _, sp := range s.spans {
		if !intersectSpans(sp, point).isEmpty() {
			return true
		}
	}
	return false
}

// Enumerate lists the integers of a bounded discrete set, as long as there are at most limit of them
func (s *IntervalSet) Enumerate(limit int) ([]Value, bool) {
	if !s.discrete {
		return nil, false
	}
	var vs []Value
	for _, sp := range s.spans {
		if sp.lo == nil || sp.hi == nil {
			return nil, false
		}
		for i := new(big.Int).Set(sp.lo.Num()); i.Cmp(sp.hi.Num()) <= 0; i.Add(i, big.NewInt(1)) {
			if len(vs) == limit {
				return nil, false
			}
			vs = append(vs, BigIntValue(i))
		}
	}
	return vs, true
}

func ratValue(r *big.Rat) Value {
	if r.IsInt() {
		return BigIntValue(r.Num())
	}
	return RatioValue(r)
}

// ToPredicate renders s as a predicate about subject, used to name uncovered regions
func (s *IntervalSet) ToPredicate(subject string) Predicate {
	if s.IsEmpty() {
		return PredFalse
	}
	if s.IsFull() {
		return PredTrue
	}
	disj := make([]Predicate, 0, len(s.spans))
	for _, sp := range s.spans {
		if sp.lo != nil && sp.hi != nil && sp.lo.Cmp(sp.hi) == 0 {
			disj = append(disj, Cmp(subject, OpEq, ratValue(sp.lo)))
			continue
		}
		var conj []Predicate
		if sp.lo != nil {
			op := OpGe
			if sp.loOpen {
				op = OpGt
			}
			conj = append(conj, Cmp(subject, op, ratValue(sp.lo)))
		}
		if sp.hi != nil {
			op := OpLe
			if sp.hiOpen {
				op = OpLt
			}
			conj = append(conj, Cmp(subject, op, ratValue(sp.hi)))
		}
		disj = append(disj, AndPreds(conj...))
	}
	return OrPreds(disj...)
}

func (s *IntervalSet) String() string {
	if s.IsEmpty() {
		return "{}"
	}
	parts := make([]string, len(s.spans))
	for i, sp := range s.spans {
		sb := strings.Builder{}
		if sp.lo == nil || sp.loOpen {
			sb.WriteString("(")
		} else {
			sb.WriteString("[")
		}
		if sp.lo == nil {
			sb.WriteString("-inf")
		} else {
			sb.WriteString(sp.lo.RatString())
		}
		sb.WriteString(", ")
		if sp.hi == nil {
			sb.WriteString("+inf")
		} else {
			sb.WriteString(sp.hi.RatString())
		}
		if sp.hi == nil || sp.hiOpen {
			sb.WriteString(")")
		} else {
			sb.WriteString("]")
		}
		parts[i] = sb.String()
	}
	return strings.Join(parts, " u ")
}
