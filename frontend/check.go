// Package frontend checks whole modules. Traits, classes and implementations are
// declared first, then every declaration is inferred on its own so that one failure
// never hides the errors of the declarations that do not depend on it.
package frontend

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/infer"
	"github.com/cottand/typecore/frontend/symbols"
	"github.com/cottand/typecore/frontend/traits"
	"github.com/cottand/typecore/internal/config"
	"github.com/cottand/typecore/internal/log"
	"github.com/cottand/typecore/internal/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Env is everything one module is checked with. It is not safe for concurrent use
type Env struct {
	Module string
	// Unit identifies one checking of the module in logs
	Unit     uuid.UUID
	Names    *symbols.Table
	Registry *traits.Registry
	Checker  *infer.Checker

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEnv prepares module to be checked against registry, which receives the
// module's own traits, classes and implementations
func NewEnv(module string, registry *traits.Registry, opts config.Options, m *metrics.Metrics) *Env {
	if m == nil {
		m = metrics.Discard()
	}
	names := symbols.New()
	unit := uuid.New()
	return &Env{
		Module:   module,
		Unit:     unit,
		Names:    names,
		Registry: registry,
		Checker:  infer.New(module, registry, names, opts, m),
		metrics:  m,
		logger:   log.Section(log.SectionDriver).With("module", module, "unit", unit.String()),
	}
}

// Result is the union of the outcomes of a module's declarations
type Result struct {
	Module string
	Unit   uuid.UUID
	// Env is what the module was checked with, for queries against it
	Env *Env
	// Outcomes follow the order of the declarations
	Outcomes []*infer.Outcome
	Errors   *ilerr.Errors
	Warnings *ilerr.Errors
}

func (r *Result) Failed() bool { return r.Errors.HasError() }

func (r *Result) Outcome(name string) (*infer.Outcome, bool) {
	i := slices.IndexFunc(r.Outcomes, func(o *infer.Outcome) bool { return o.Name == name })
	if i < 0 {
		return nil, false
	}
	return r.Outcomes[i], true
}

func (r *Result) add(o *infer.Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Errors = r.Errors.With(o.Errors.Errors()...)
	r.Warnings = r.Warnings.With(o.Warnings.Errors()...)
}

// Declare registers the traits, classes and implementations of m, and binds all
// of its names
func (e *Env) Declare(m *ast.Module) *ilerr.Errors {
	errs := e.Checker.Declare(m.Decls)
	e.logger.Debug("declared module", "declarations", len(m.Decls), "failed", len(errs.Errors()))
	return errs
}

// Check infers every declaration of decls that is still bound. Declarations that
// were deleted are skipped, their dependents report the missing name
func (e *Env) Check(ctx context.Context, decls []ast.Decl) (*Result, error) {
	start := time.Now()
	defer func() { e.metrics.ModuleDuration.Observe(time.Since(start).Seconds()) }()

	res := &Result{Module: e.Module, Unit: e.Unit, Env: e}
	for _, d := range decls {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !e.Names.Defines(d.DeclName()) {
			continue
		}
		if d, ok := d.(*ast.Declaration); ok {
			res.add(e.Checker.Declaration(d))
			continue
		}
		// the rest was checked by Declare, which only keeps failures
		if o, ok := e.Checker.Outcome(d.DeclName()); ok {
			res.add(o)
		}
	}
	if res.Failed() {
		e.logger.Info("module has errors", "errors", res.Errors, "elapsed", time.Since(start))
	} else {
		e.logger.Debug("module checked", "declarations", len(res.Outcomes), "elapsed", time.Since(start))
	}
	return res, nil
}

// Delete removes name from the module, with the declarations owned by it and by
// every declaration depending on it. It returns those dependents, which are
// checked again by the next Check
func (e *Env) Delete(name string) ([]string, error) {
	invalidated, err := e.Names.Delete(name)
	if err != nil {
		return nil, err
	}
	owners := append([]string{name}, invalidated...)
	removed, err := e.Registry.RemoveOwnedBy(owners...)
	if err != nil {
		return nil, errors.Wrapf(err, "could not delete '%s'", name)
	}
	e.Checker.Forget(owners...)
	e.logger.Debug("deleted", "name", name, "invalidated", invalidated, "impls", len(removed))
	return invalidated, nil
}

// CheckModule declares and then checks every declaration of m in env
func CheckModule(ctx context.Context, m *ast.Module, env *Env) *Result {
	env.Declare(m)
	res, err := env.Check(ctx, m.Decls)
	if err != nil {
		res.Errors = res.Errors.With(ilerr.At(errors.Wrapf(err, "checking %s", m.Name), m))
	}
	return res
}

// CheckModules checks modules in parallel.
//
// Each module first declares its traits, classes and implementations into its own
// child of base, one module at a time. The registries are then frozen, and every
// module resolves against a read-only view of all of them, so that a module may use
// the implementations of another
func CheckModules(ctx context.Context, modules []*ast.Module, base *traits.Registry, opts config.Options, m *metrics.Metrics) ([]*Result, error) {
	if m == nil {
		m = metrics.Discard()
	}
	logger := log.Section(log.SectionDriver)
	base.Freeze()

	envs := make([]*Env, len(modules))
	regs := make([]*traits.Registry, len(modules))
	for i, mod := range modules {
		regs[i] = base.Child()
		envs[i] = NewEnv(mod.Name, regs[i], opts, m)
		envs[i].Declare(mod)
	}
	merged := base
	if len(regs) > 0 {
		for _, r := range regs {
			r.Freeze()
		}
		merged = traits.Merged(regs...)
	}
	for _, env := range envs {
		env.Registry = merged
		env.Checker.UseRegistry(merged)
	}

	results := make([]*Result, len(modules))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i, mod := range modules {
		g.Go(func() error {
			res, err := envs[i].Check(ctx, mod.Decls)
			results[i] = res
			return errors.Wrapf(err, "checking %s", mod.Name)
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	logger.Debug("checked modules", "modules", len(modules))
	return results, nil
}
