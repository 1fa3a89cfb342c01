package traits

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/subtype"
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/internal/config"
	"github.com/cottand/typecore/internal/log"
	"github.com/cottand/typecore/internal/metrics"
	"github.com/pkg/errors"
)

// ErrFrozen is returned by every mutation of a frozen registry
var ErrFrozen = errors.New("registry is frozen")

// declarationVars is where the IDs of trait and implementation parameters start,
// far above the variables handed out during inference
const declarationVars types.TypeVarID = 1 << 48

// Registry owns every trait, class and implementation visible to a module.
// Lookups fall back to the parents, which are never written through
type Registry struct {
	traits  map[string]*Trait
	classes map[string]*Class
	impls   map[string][]*Impl
	parents []*Registry
	frozen  bool

	fresh   *types.Fresher
	engine  *subtype.Engine
	opts    config.Options
	logger  *slog.Logger
	metrics *metrics.Metrics
	// quiet collects the failed unifications made while matching implementations
	quiet *metrics.Metrics
}

var _ subtype.Nominal = (*Registry)(nil)

// NewEmpty returns a registry that only knows the built-in classes
func NewEmpty(opts config.Options, m *metrics.Metrics) *Registry {
	if m == nil {
		m = metrics.Discard()
	}
	return newRegistry(opts, m, metrics.Discard(), types.NewFresherFrom(declarationVars))
}

// New returns a registry with the built-in classes and operator traits
func New(opts config.Options, m *metrics.Metrics) *Registry {
	r := NewEmpty(opts, m)
	declareBuiltins(r)
	return r
}

func newRegistry(opts config.Options, m, quiet *metrics.Metrics, fresh *types.Fresher, parents ...*Registry) *Registry {
	r := &Registry{
		traits:  make(map[string]*Trait),
		classes: make(map[string]*Class),
		impls:   make(map[string][]*Impl),
		parents: parents,
		fresh:   fresh,
		opts:    opts,
		logger:  log.Section(log.SectionTraits),
		metrics: m,
		quiet:   quiet,
	}
	r.engine = subtype.New(r, opts, m)
	return r
}

// Engine decides subtyping against the classes and traits of this registry
func (r *Registry) Engine() *subtype.Engine { return r.engine }

// NewParam returns a variable for a trait or implementation parameter
func (r *Registry) NewParam(name string) *types.TypeVar { return r.fresh.Fresh(name) }

func (r *Registry) Freeze()      { r.frozen = true }
func (r *Registry) Frozen() bool { return r.frozen }

// Child returns an empty writable registry on top of r
func (r *Registry) Child() *Registry {
	return newRegistry(r.opts, r.metrics, r.quiet, r.fresh, r)
}

// Snapshot returns a writable copy of r. Traits and implementations are shared,
// they are never modified once registered
func (r *Registry) Snapshot() *Registry {
	s := newRegistry(r.opts, r.metrics, r.quiet, r.fresh, r.parents...)
	s.traits = maps.Clone(r.traits)
	s.classes = maps.Clone(r.classes)
	for name, impls := range r.impls {
		s.impls[name] = slices.Clone(impls)
	}
	return s
}

// Merged is a read-only view over regs, for resolving across modules
func Merged(regs ...*Registry) *Registry {
	if len(regs) == 0 {
		return NewEmpty(config.Default(), nil)
	}
	first := regs[0]
	m := newRegistry(first.opts, first.metrics, first.quiet, first.fresh, regs...)
	m.frozen = true
	return m
}

// each visits r and then its ancestors, each registry once
func (r *Registry) each(visit func(*Registry) bool) {
	seen := make(map[*Registry]bool)
	var walk func(*Registry) bool
	walk = func(reg *Registry) bool {
		if seen[reg] {
			return true
		}
		seen[reg] = true
		if !visit(reg) {
			return false
		}
		for _, p := range reg.parents {
			if !walk(p) {
				return false
			}
		}
		return true
	}
	walk(r)
}

func (r *Registry) Trait(name string) (t *Trait, found bool) {
	r.each(func(reg *Registry) bool {
		t, found = reg.traits[name]
		return !found
	})
	return t, found
}

func (r *Registry) Class(name string) (c *Class, found bool) {
	r.each(func(reg *Registry) bool {
		c, found = reg.classes[name]
		return !found
	})
	return c, found
}

func (r *Registry) implsOf(trait string) []*Impl {
	var all []*Impl
	r.each(func(reg *Registry) bool {
		all = append(all, reg.impls[trait]...)
		return true
	})
	return all
}

// traitNames lists every trait with implementations, in order
func (r *Registry) traitNames() []string {
	names := make(map[string]bool)
	r.each(func(reg *Registry) bool {
		for name := range reg.impls {
			names[name] = true
		}
		return true
	})
	return slices.Sorted(maps.Keys(names))
}

// IsDeclared reports whether name is taken by a trait or a class. Both share one namespace
func (r *Registry) IsDeclared(name string) bool {
	if subtype.IsBuiltinClass(name) {
		return true
	}
	_, isTrait := r.Trait(name)
	_, isClass := r.Class(name)
	return isTrait || isClass
}

func (r *Registry) DeclareTrait(t *Trait) error {
	if r.frozen {
		return errors.Wrapf(ErrFrozen, "cannot declare trait %s", t.Name)
	}
	if r.IsDeclared(t.Name) {
		return ilerr.New(ilerr.NewDuplicateTraitName{Name: t.Name})
	}
	if t.Required == nil {
		t.Required = sortedRequirements(nil)
	}
	r.traits[t.Name] = t
	r.logger.Debug("declared trait", "trait", t)
	return nil
}

func (r *Registry) DeclareClass(c *Class) error {
	if r.frozen {
		return errors.Wrapf(ErrFrozen, "cannot declare class %s", c.Name)
	}
	if r.IsDeclared(c.Name) {
		return ilerr.New(ilerr.NewDuplicateTraitName{Name: c.Name})
	}
	for _, super := range c.Supers {
		if _, ok := r.Class(super); !ok && !subtype.IsBuiltinClass(super) {
			return ilerr.New(ilerr.NewNameNotFound{Name: super, Reason: fmt.Sprintf("superclass of %s is not a class", c.Name)})
		}
	}
	if c.Attrs == nil {
		c.Attrs = types.NewRecord()
	}
	r.classes[c.Name] = c
	r.logger.Debug("declared class", "class", c.Name)
	return nil
}

// RegisterImpl checks that impl binds every attribute its trait requires, with a
// subtype of the required type once Self and the trait parameters are substituted
func (r *Registry) RegisterImpl(impl *Impl) error {
	if r.frozen {
		return errors.Wrapf(ErrFrozen, "cannot register %v", impl)
	}
	trait, ok := r.Trait(impl.Trait.Name)
	if !ok {
		return ilerr.New(ilerr.NewNameNotFound{Name: impl.Trait.Name, Reason: "not a trait"})
	}
	if len(impl.Trait.Args) != len(trait.Params) {
		return ilerr.New(ilerr.NewTypeMismatch{
			Expected: trait.bound(),
			Actual:   impl.Trait,
			Reason:   fmt.Sprintf("expected %d type arguments, found %d", len(trait.Params), len(impl.Trait.Args)),
		})
	}
	if err := r.conforms(impl, trait); err != nil {
		return err
	}
	if impl.ID == "" {
		impl.ID = fmt.Sprintf("impl%d", r.fresh.Fresh("").ID-declarationVars)
	}
	r.impls[trait.Name] = append(r.impls[trait.Name], impl)
	r.logger.Debug("registered implementation", "impl", impl.String(), "id", impl.ID)
	return nil
}

func (r *Registry) conforms(impl *Impl, trait *Trait) error {
	subst := trait.instantiation(impl.Target, impl.Trait, impl.assocs())
	var missing []string
	var mismatched []ilerr.AttrMismatch
	for _, attr := range trait.Attrs() {
		required, _ := trait.Requirement(attr)
		b, ok := impl.Bindings[attr]
		switch {
		case !ok:
			missing = append(missing, attr)
		case trait.IsAssoc(attr):
			if b.Value == nil {
				mismatched = append(mismatched, ilerr.AttrMismatch{Attr: attr, Required: required, Actual: b.Type})
			}
		case !r.engine.IsSubtype(b.Type, subst.Apply(required)):
			mismatched = append(mismatched, ilerr.AttrMismatch{Attr: attr, Required: subst.Apply(required), Actual: b.Type})
		}
	}
	if len(missing) == 0 && len(mismatched) == 0 {
		return nil
	}
	return ilerr.New(ilerr.NewIncompleteImplementation{
		Target:     impl.Target,
		Trait:      impl.Trait,
		Missing:    missing,
		Mismatched: mismatched,
	})
}

// RemoveOwnedBy drops the traits, classes and implementations declared by any of
// owners, and returns the implementations it removed
func (r *Registry) RemoveOwnedBy(owners ...string) ([]*Impl, error) {
	if r.frozen {
		return nil, errors.Wrap(ErrFrozen, "cannot remove declarations")
	}
	owned := func(owner string) bool { return owner != "" && slices.Contains(owners, owner) }
	var removed []*Impl
	for name, impls := range r.impls {
		kept := impls[:0:0]
		for _, impl := range impls {
			if owned(impl.Owner) {
				removed = append(removed, impl)
				continue
			}
			kept = append(kept, impl)
		}
		r.impls[name] = kept
	}
	maps.DeleteFunc(r.traits, func(_ string, t *Trait) bool { return owned(t.Owner) })
	maps.DeleteFunc(r.classes, func(_ string, c *Class) bool { return owned(c.Owner) })
	if len(removed) > 0 {
		r.logger.Debug("removed implementations", "owners", owners, "count", len(removed))
	}
	return removed, nil
}
