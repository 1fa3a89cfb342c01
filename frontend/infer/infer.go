// Package infer walks declarations bottom-up, synthesising a type for every expression
// and checking it against annotations, trait bounds and pattern domains.
//
// A Checker owns the type variables of one module. Each declaration is checked by an
// attempt with its own unifier, so a failure never leaks into another declaration.
// Only on success are types and resolved implementations written back into the AST.
package infer

import (
	"log/slog"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/consteval"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/symbols"
	"github.com/cottand/typecore/frontend/traits"
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/internal/config"
	"github.com/cottand/typecore/internal/log"
	"github.com/cottand/typecore/internal/metrics"
	"github.com/cottand/typecore/util"
	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"
)

// Outcome is the result of checking one declaration
type Outcome struct {
	Name   string
	Scheme *types.Scheme
	Errors *ilerr.Errors
	// Warnings never fail a declaration
	Warnings *ilerr.Errors
}

func (o *Outcome) Failed() bool { return o.Errors.HasError() }

func (o *Outcome) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("name", o.Name)}
	if o.Scheme != nil {
		attrs = append(attrs, slog.String("type", o.Scheme.String()))
	}
	if o.Failed() {
		attrs = append(attrs, slog.Any("errors", o.Errors))
	}
	return slog.GroupValue(attrs...)
}

type Checker struct {
	module   string
	registry *traits.Registry
	names    *symbols.Table
	fresh    *types.Fresher
	consts   *consteval.Evaluator
	opts     config.Options
	logger   *slog.Logger
	metrics  *metrics.Metrics

	outcomes map[string]*Outcome
	// inProgress are the declarations being checked, innermost last
	inProgress  util.Stack[string]
	provisional map[string]types.Type
	recursive   util.MSet[string]
}

func New(module string, registry *traits.Registry, names *symbols.Table, opts config.Options, m *metrics.Metrics) *Checker {
	if m == nil {
		m = metrics.Discard()
	}
	c := &Checker{
		module:      module,
		registry:    registry,
		names:       names,
		fresh:       types.NewFresher(),
		opts:        opts,
		logger:      log.Section(log.SectionInference).With("module", module),
		metrics:     m,
		outcomes:    make(map[string]*Outcome),
		provisional: make(map[string]types.Type),
		recursive:   util.NewEmptySet[string](),
	}
	c.consts = consteval.New(names, opts, m).WithTypes(c.LowerType)
	return c
}

func (c *Checker) Registry() *traits.Registry { return c.registry }
func (c *Checker) Names() *symbols.Table      { return c.names }

// UseRegistry makes later declarations resolve against r, as when the registries of
// several modules are merged once all of them are declared
func (c *Checker) UseRegistry(r *traits.Registry) { c.registry = r }

// Outcome returns the result of a declaration checked so far
func (c *Checker) Outcome(name string) (*Outcome, bool) {
	o, ok := c.outcomes[name]
	return o, ok
}

// Forget drops the outcomes of names, so that they are checked again
func (c *Checker) Forget(names ...string) {
	for _, name := range names {
		delete(c.outcomes, name)
		c.recursive.Remove(name)
	}
}

// Declaration checks d once, and returns the same outcome afterwards.
// Its resolved type is stored in the symbol table when it succeeds
func (c *Checker) Declaration(d *ast.Declaration) *Outcome {
	if o, ok := c.outcomes[d.Name]; ok {
		return o
	}
	o := c.declaration(d)
	c.record(o)
	if b, ok := c.names.Lookup(d.Name); ok && !o.Failed() {
		b.Scheme = o.Scheme
	}
	return o
}

func (c *Checker) record(o *Outcome) {
	c.outcomes[o.Name] = o
	var err error
	if o.Failed() {
		err = o.Errors
	}
	c.metrics.Declarations.WithLabelValues(metrics.Outcome(err)).Inc()
	if o.Failed() {
		c.logger.Debug("declaration failed", "outcome", o)
		return
	}
	c.logger.Debug("declaration checked", "outcome", o)
}

func (c *Checker) declaration(d *ast.Declaration) *Outcome {
	o := &Outcome{Name: d.Name}
	var ann types.Type
	if d.TypeAnn != nil {
		t, err := c.LowerType(d.TypeAnn)
		if err != nil {
			o.Errors = o.Errors.With(ilerr.At(err, d.TypeAnn))
			return o
		}
		ann = t
	}
	if d.Extern || d.Value == nil {
		if ann == nil {
			o.Errors = o.Errors.With(ilerr.At(errors.Errorf("external '%s' needs a type annotation", d.Name), d))
			return o
		}
		o.Scheme = types.Generalize(ann, set.New[types.TypeVarID](0))
		return o
	}
	if d.Const && !isFunction(d.Value) {
		if _, err := c.consts.Eval(d.Value); err != nil {
			o.Errors = o.Errors.With(ilerr.At(err, d.Value))
			return o
		}
	}

	self := ann
	if self == nil {
		self = c.fresh.Fresh(d.Name)
	}
	c.logger.Debug("checking declaration", "name", d.Name, "within", c.inProgress.Items())
	c.inProgress.Push(d.Name)
	c.provisional[d.Name] = self
	defer func() {
		c.inProgress.Pop()
		delete(c.provisional, d.Name)
	}()

	a := c.newAttempt(d.Name)
	root := newScope(nil)
	t, err := a.check(d.Value, root, ann)
	if err == nil {
		if ann != nil {
			err = a.subsume(d.Value, root, t, ann)
		} else {
			err = ilerr.At(a.u.Unify(self, t), d.Value)
		}
	}
	if err == nil {
		err = a.finish()
	}
	if err != nil {
		o.Errors = batch(err, d.Value)
		return o
	}

	final := a.u.Apply(t)
	if ann != nil {
		final = ann
	}
	o.Scheme = types.Generalize(final, c.envFree(a, root))
	a.annotate()

	if ann == nil && c.recursive.Contains(d.Name) && c.opts.WarnUnannotatedRecursion {
		o.Warnings = o.Warnings.With(ilerr.At(ilerr.New(ilerr.NewUnannotatedRecursion{Name: d.Name, Inferred: final}), d))
		c.logger.Warn("unannotated recursion", "name", d.Name, "type", final)
	}
	return o
}

// Expr infers a standalone expression, as for a query against the declarations
// already checked
func (c *Checker) Expr(e ast.Expr) (types.Type, error) {
	return c.expression("", e, nil)
}

func (c *Checker) expression(owner string, e ast.Expr, expected types.Type) (types.Type, error) {
	a := c.newAttempt(owner)
	root := newScope(nil)
	t, err := a.check(e, root, expected)
	if err == nil && expected != nil {
		err = a.subsume(e, root, t, expected)
	}
	if err == nil {
		err = a.finish()
	}
	if err != nil {
		return nil, batch(err, e)
	}
	a.annotate()
	if expected != nil {
		return expected, nil
	}
	return a.u.Apply(t), nil
}

// envFree are the variables a generalisation must leave alone: those of the symbol
// table, of the enclosing scopes and of the other declarations still being checked
func (c *Checker) envFree(a *attempt, sc *scope) *set.Set[types.TypeVarID] {
	free := c.names.FreeVars()
	free.InsertSet(sc.freeVars(a.u))
	for name, t := range c.provisional {
		if name != a.owner {
			free.InsertSet(types.FreeVars(a.u.Apply(t)))
		}
	}
	return free
}

// batch turns err into the errors of a declaration, positioned at pos when it has
// no position of its own
func batch(err error, pos ast.Positioner) *ilerr.Errors {
	var errs *ilerr.Errors
	if errors.As(err, &errs) {
		return errs
	}
	return (*ilerr.Errors)(nil).With(ilerr.At(err, pos))
}

func isFunction(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Lambda, *ast.PatternFunc:
		return true
	}
	return false
}
