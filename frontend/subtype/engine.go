// Package subtype decides A <: B over every shape of type, including refinement
// types, for which it implements a deliberately small entailment procedure.
//
// Answers are total: queries that recurse deeper than the configured limit are answered
// negatively, and cycles through nominal attributes are cut by a co-inductive
// assumption set owned by each query.
package subtype

import (
	"context"
	"log/slog"

	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/internal/config"
	"github.com/cottand/typecore/internal/log"
	"github.com/cottand/typecore/internal/metrics"
	"github.com/hashicorp/go-set/v3"
)

// Engine holds no mutable state, and may be shared between goroutines as long as
// its Nominal may be read concurrently, as a frozen trait registry can
type Engine struct {
	nominal  Nominal
	maxDepth int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

var _ Checker = (*Engine)(nil)

func New(nominal Nominal, opts config.Options, m *metrics.Metrics) *Engine {
	if m == nil {
		m = metrics.Discard()
	}
	return &Engine{
		nominal:  nominal,
		maxDepth: opts.SubtypeDepth,
		logger:   log.Section(log.SectionSubtype),
		metrics:  m,
	}
}

// WithNominal returns an engine with the same limits over a different lattice
func (e *Engine) WithNominal(nominal Nominal) *Engine {
	copied := *e
	copied.nominal = nominal
	return &copied
}

func (e *Engine) Nominal() Nominal { return e.nominal }

func (e *Engine) IsSubtype(sub, super types.Type) bool {
	q := e.newQuery()
	result := q.isSubtype(types.Canonicalize(sub), types.Canonicalize(super))
	q.done(result)
	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		e.logger.Debug("subtype query", "sub", sub, "super", super, "result", result, "depthExceeded", q.exceeded)
	}
	return result
}

// Equivalent reports whether a and b are mutual subtypes
func (e *Engine) Equivalent(a, b types.Type) bool {
	return types.Equal(types.Canonicalize(a), types.Canonicalize(b)) || e.IsSubtype(a, b) && e.IsSubtype(b, a)
}

type pair struct {
	sub, super types.Type
}

func (p pair) Hash() uint64 {
	return p.sub.Hash()*31 ^ p.super.Hash()
}

// query is the state of one top-level IsSubtype call
type query struct {
	e        *Engine
	assumed  *set.HashSet[pair, uint64]
	depth    int
	exceeded bool
}

func (e *Engine) newQuery() *query {
	return &query{e: e, assumed: set.NewHashSet[pair, uint64](4)}
}

func (q *query) done(result bool) {
	label := "false"
	if result {
		label = "true"
	}
	q.e.metrics.SubtypeQueries.WithLabelValues(label).Inc()
	if q.exceeded {
		q.e.metrics.SubtypeDepthExceeded.Inc()
	}
}

// IsSubtype lets a Nominal ask nested questions within this query
func (q *query) IsSubtype(sub, super types.Type) bool {
	return q.isSubtype(types.Canonicalize(sub), types.Canonicalize(super))
}

func (q *query) isSubtype(sub, super types.Type) bool {
	if types.Equal(sub, super) {
		return true
	}
	if q.depth >= q.e.maxDepth {
		q.exceeded = true
		return false
	}
	q.depth++
	defer func() { q.depth-- }()

	if !recursesNominally(super) {
		return q.rec(sub, super)
	}
	p := pair{sub, super}
	if q.assumed.Contains(p) {
		return true
	}
	q.assumed.Insert(p)
	result := q.rec(sub, super)
	if !result {
		q.assumed.Remove(p)
	}
	return result
}

// recursesNominally reports whether proving something <: t may need the same question
// again, through the attributes of a class or the requirements of a trait
func recursesNominally(t types.Type) bool {
	switch t.(type) {
	case *types.TraitRef, *types.Record:
		return true
	}
	return false
}

func (q *query) rec(sub, super types.Type) bool {
	// extremes
	switch {
	case types.IsPrimitive(sub, types.NeverName), types.IsPrimitive(super, types.ObjName):
		return true
	case types.IsPrimitive(super, types.NeverName):
		return q.isEmpty(sub)
	}

	// type variables are only related to themselves, or through their bound
	if tv, ok := sub.(*types.TypeVar); ok {
		return tv.Bound != nil && q.isSubtype(tv.Bound, super)
	}
	if _, ok := super.(*types.TypeVar); ok {
		return false
	}

	// unions and intersections
	if or, ok := sub.(*types.Or); ok {
		return q.isSubtype(or.Lhs, super) && q.isSubtype(or.Rhs, super)
	}
	if and, ok := super.(*types.And); ok {
		return q.isSubtype(sub, and.Lhs) && q.isSubtype(sub, and.Rhs)
	}
	if or, ok := super.(*types.Or); ok {
		if q.isSubtype(sub, or.Lhs) || q.isSubtype(sub, or.Rhs) {
			return true
		}
		// a refinement may be split across both alternatives, as in Nat <: {0} or {X: Int | X >= 1}
		rest, _ := q.difference(sub, or.Lhs)
		rest, _ = q.difference(rest, or.Rhs)
		return q.isEmpty(rest)
	}
	if and, ok := sub.(*types.And); ok {
		if q.isSubtype(and.Lhs, super) || q.isSubtype(and.Rhs, super) {
			return true
		}
		inter, ok := q.intersect(and.Lhs, and.Rhs)
		return ok && !isAnd(inter) && q.isSubtype(inter, super)
	}

	// complements
	if not, ok := super.(*types.Not); ok {
		return q.disjoint(sub, not.Inner)
	}
	if not, ok := sub.(*types.Not); ok {
		superNot, ok := super.(*types.Not)
		return ok && q.isSubtype(superNot.Inner, not.Inner)
	}

	// refinements, and primitives whose view carries predicates such as Nat
	if rSuper, ok := predicatedView(super); ok {
		rSub, ok := types.RefinementView(sub)
		if !ok {
			return false
		}
		return q.refines(rSub, rSuper)
	}
	if r, ok := sub.(*types.Refinement); ok {
		view, ok := types.RefinementView(r)
		if !ok {
			return false
		}
		return q.isEmptyRefinement(view) || q.isSubtype(view.Base, super)
	}

	switch sub := sub.(type) {
	case *types.Primitive:
		switch super := super.(type) {
		case *types.Primitive:
			return q.e.nominal.SubclassOf(sub.Name, super.Name)
		case *types.Record:
			return q.hasAttrs(sub, super)
		case *types.TraitRef:
			return q.e.nominal.Implements(q, sub, super)
		}
		return false
	case *types.Function:
		switch super := super.(type) {
		case *types.Function:
			return q.function(sub, super)
		case *types.TraitRef:
			return q.e.nominal.Implements(q, sub, super)
		}
		return false
	case *types.Record:
		switch super := super.(type) {
		case *types.Record:
			return q.record(sub, super)
		case *types.TraitRef:
			return q.e.nominal.Implements(q, sub, super)
		}
		return false
	case *types.Poly:
		switch super := super.(type) {
		case *types.Poly:
			return q.poly(sub, super)
		case *types.Record:
			return q.hasAttrs(sub, super)
		case *types.TraitRef:
			return q.e.nominal.Implements(q, sub, super)
		}
		return false
	case *types.TraitRef:
		super, ok := super.(*types.TraitRef)
		return ok && q.e.nominal.TraitImplies(q, sub, super)
	case *types.Const:
		super, ok := super.(*types.Const)
		return ok && types.ValueEqual(sub.Value, super.Value)
	}
	return false
}

func isAnd(t types.Type) bool {
	_, ok := t.(*types.And)
	return ok
}

// predicatedView returns the refinement view of t when t constrains its base
func predicatedView(t types.Type) (*types.Refinement, bool) {
	switch t.(type) {
	case *types.Refinement, *types.Primitive:
		r, ok := types.RefinementView(t)
		if !ok || len(r.Preds) == 0 {
			return nil, false
		}
		return r, true
	}
	return nil, false
}

func (q *query) hasAttrs(t types.Type, super *types.Record) bool {
	attrs, ok := q.e.nominal.AttrsOf(t)
	if !ok {
		return len(super.Fields) == 0
	}
	return q.record(types.Canonicalize(attrs).(*types.Record), super)
}

// record is width and depth subtyping: sub may have more fields, and each field
// super requires must be a subtype of the required type
func (q *query) record(sub, super *types.Record) bool {
	for _, f := range super.Fields {
		t, ok := sub.Field(f.Name)
		if !ok || !q.isSubtype(t, f.Type) {
			return false
		}
	}
	return true
}

// function is contravariant in parameters and covariant in the return type.
// sub must accept every call super accepts: positional arguments up to super's arity,
// and super's keyword arguments by name
func (q *query) function(sub, super *types.Function) bool {
	if len(sub.Params) < len(super.Params) || sub.Required() > super.Required() {
		return false
	}
	named := !sub.IsUnnamed() && !super.IsUnnamed()
	for i, p := range super.Params {
		sp := sub.Params[i]
		if named && sp.Name != p.Name {
			return false
		}
		if p.HasDefault && !sp.HasDefault {
			return false
		}
		if !q.isSubtype(p.Type, sp.Type) {
			return false
		}
	}
	for _, p := range super.KwParams {
		sp, ok := findParam(sub, p.Name)
		if !ok || (p.HasDefault && !sp.HasDefault) || !q.isSubtype(p.Type, sp.Type) {
			return false
		}
	}
	for _, sp := range sub.KwParams {
		if _, ok := findParam(super, sp.Name); !ok && !sp.HasDefault {
			return false
		}
	}
	return q.isSubtype(sub.Return, super.Return)
}

func findParam(f *types.Function, name string) (types.Param, bool) {
	for _, p := range f.KwParams {
		if p.Name == name {
			return p, true
		}
	}
	for _, p := range f.Params {
		if p.Name == name {
			return p, true
		}
	}
	return types.Param{}, false
}

// poly arguments are invariant
func (q *query) poly(sub, super *types.Poly) bool {
	if sub.Name != super.Name || len(sub.Args) != len(super.Args) {
		return false
	}
	for i := range sub.Args {
		if !q.isSubtype(sub.Args[i], super.Args[i]) || !q.isSubtype(super.Args[i], sub.Args[i]) {
			return false
		}
	}
	return true
}
