// Package unify solves equality and subtype constraints between types, producing
// substitutions for free type variables.
//
// Predicates of refinement types are never solved here: once the bases agree, their
// compatibility is a question for the subtype engine.
package unify

import (
	"log/slog"

	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/subtype"
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/internal/config"
	"github.com/cottand/typecore/internal/log"
	"github.com/cottand/typecore/internal/metrics"
)

// Obligation is a constraint that could not be decided yet because it mentions
// unresolved type variables, such as ?a <: Add(Int)
type Obligation struct {
	Sub, Super types.Type
}

// Unifier owns the substitution of one inference attempt.
// A failed Unify or Constrain leaves the substitution as it was before the call
type Unifier struct {
	subst   types.Subst
	pending []Obligation
	engine  *subtype.Engine
	fuel    int
	maxFuel int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(engine *subtype.Engine, opts config.Options, m *metrics.Metrics) *Unifier {
	if m == nil {
		m = metrics.Discard()
	}
	return &Unifier{
		subst:   make(types.Subst),
		engine:  engine,
		maxFuel: opts.UnifyFuel,
		logger:  log.Section(log.SectionUnify),
		metrics: m,
	}
}

// Unify is a one-shot equality constraint with a fresh substitution
func Unify(engine *subtype.Engine, a, b types.Type) (types.Subst, error) {
	u := New(engine, config.Default(), nil)
	if err := u.Unify(a, b); err != nil {
		return nil, err
	}
	return u.Subst(), nil
}

// Constrain is a one-shot subtype constraint with a fresh substitution
func Constrain(engine *subtype.Engine, sub, super types.Type) (types.Subst, error) {
	u := New(engine, config.Default(), nil)
	if err := u.Constrain(sub, super); err != nil {
		return nil, err
	}
	return u.Subst(), nil
}

func (u *Unifier) Subst() types.Subst { return u.subst.Clone() }

func (u *Unifier) Apply(t types.Type) types.Type { return u.subst.Apply(t) }

func (u *Unifier) Engine() *subtype.Engine { return u.engine }

// Clone returns an independent unifier starting from the same substitution
func (u *Unifier) Clone() *Unifier {
	copied := *u
	copied.subst = u.subst.Clone()
	copied.pending = append([]Obligation(nil), u.pending...)
	return &copied
}

// Pending returns the obligations still waiting on type variables, with the
// current substitution applied
func (u *Unifier) Pending() []Obligation {
	out := make([]Obligation, len(u.pending))
	for i, o := range u.pending {
		out[i] = Obligation{Sub: u.Apply(o.Sub), Super: u.Apply(o.Super)}
	}
	return out
}

// Unify makes a and b equal
func (u *Unifier) Unify(a, b types.Type) error {
	return u.transaction(func(s *solver) error { return s.unify(a, b) })
}

// Constrain makes sub a subtype of super
func (u *Unifier) Constrain(sub, super types.Type) error {
	return u.transaction(func(s *solver) error { return s.constrain(sub, super) })
}

// Discharge re-checks pending obligations whose variables have since been resolved.
// Those still mentioning free variables stay pending
func (u *Unifier) Discharge() error {
	pending := u.pending
	u.pending = nil
	for i, o := range pending {
		sub, super := u.Apply(o.Sub), u.Apply(o.Super)
		if types.FreeVars(sub, super).Size() > 0 {
			u.pending = append(u.pending, o)
			continue
		}
		if err := u.Constrain(sub, super); err != nil {
			u.pending = append(u.pending, pending[i+1:]...)
			return err
		}
	}
	return nil
}

func (u *Unifier) transaction(body func(*solver) error) error {
	s := &solver{
		subst:   u.subst.Clone(),
		pending: append([]Obligation(nil), u.pending...),
		engine:  u.engine,
		fuel:    u.maxFuel,
	}
	err := body(s)
	if err != nil {
		code := ilerr.CodeOf(err)
		u.metrics.UnifyFailures.WithLabelValues(code.String()).Inc()
		u.logger.Debug("constraint failed", "error", err)
		return err
	}
	u.subst = s.subst
	u.pending = s.pending
	return nil
}
