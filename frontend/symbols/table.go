// Package symbols resolves names to their declarations, and tracks which
// declarations depend on which so that deleting one invalidates its dependents.
package symbols

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/internal/log"
	"github.com/hashicorp/go-set/v3"
)

type Kind uint8

const (
	KindValue Kind = iota
	// KindConst is a constant-computable declaration
	KindConst
	// KindExtern is declared outside the program: only its type is known
	KindExtern
	KindTrait
	KindClass
	KindImpl
	// KindLocal is a parameter or a block-local name
	KindLocal
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindConst:
		return "const"
	case KindExtern:
		return "extern"
	case KindTrait:
		return "trait"
	case KindClass:
		return "class"
	case KindImpl:
		return "impl"
	case KindLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Binding is what a name resolves to
type Binding struct {
	Name string
	Kind Kind
	// Scheme is the resolved type, nil until the declaration is checked
	Scheme *types.Scheme
	// Decl is the defining node, nil for locals and built-ins
	Decl ast.Node
	// Value is the declaration body, for constant evaluation
	Value ast.Expr
	// Module is the compilation unit that declared the binding
	Module string

	// invalidated is set when a binding this one depends on was deleted
	invalidated string
}

// Valid reports whether the binding still resolves
func (b *Binding) Valid() bool { return b.invalidated == "" }

func (b *Binding) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("name", b.Name), slog.String("kind", b.Kind.String())}
	if b.Scheme != nil {
		attrs = append(attrs, slog.String("type", b.Scheme.String()))
	}
	if !b.Valid() {
		attrs = append(attrs, slog.String("invalidated", b.invalidated))
	}
	return slog.GroupValue(attrs...)
}

// Resolver is what inference needs from the name-resolution layer
type Resolver interface {
	Resolve(name string) (*Binding, error)
}

// Table is one scope of bindings. Lookups fall back to the parent scope.
// Dependencies are only tracked between bindings of the same table
type Table struct {
	parent   *Table
	bindings map[string]*Binding
	// deps maps a name to the names it depends on, rdeps the other way round
	deps   map[string]*set.Set[string]
	rdeps  map[string]*set.Set[string]
	logger *slog.Logger
}

var _ Resolver = (*Table)(nil)

func New() *Table {
	return &Table{
		bindings: make(map[string]*Binding),
		deps:     make(map[string]*set.Set[string]),
		rdeps:    make(map[string]*set.Set[string]),
		logger:   log.Section(log.SectionSymbols),
	}
}

// Child returns a nested scope, as for a block or the parameters of a function
func (t *Table) Child() *Table {
	c := New()
	c.parent = t
	c.logger = t.logger
	return c
}

func (t *Table) Parent() *Table { return t.parent }

// Define binds b.Name in this scope, shadowing any outer binding. Redefining a name
// of this scope replaces it, and invalidates what depended on the old definition
func (t *Table) Define(b *Binding) []string {
	var invalidated []string
	if _, ok := t.bindings[b.Name]; ok {
		invalidated = t.invalidateDependents(b.Name, fmt.Sprintf("'%s' was redefined", b.Name))
		t.forgetDeps(b.Name)
	}
	t.bindings[b.Name] = b
	t.logger.Debug("defined", "binding", b)
	return invalidated
}

// Resolve finds name in this scope or an enclosing one
func (t *Table) Resolve(name string) (*Binding, error) {
	for scope := t; scope != nil; scope = scope.parent {
		b, ok := scope.bindings[name]
		if !ok {
			continue
		}
		if !b.Valid() {
			return nil, ilerr.New(ilerr.NewNameNotFound{Name: name, Reason: b.invalidated})
		}
		return b, nil
	}
	return nil, ilerr.New(ilerr.NewNameNotFound{Name: name})
}

// Lookup is Resolve for callers that do not need an error
func (t *Table) Lookup(name string) (*Binding, bool) {
	b, err := t.Resolve(name)
	return b, err == nil
}

// Defines reports whether this scope binds name, even if the binding no longer resolves
func (t *Table) Defines(name string) bool {
	_, ok := t.bindings[name]
	return ok
}

// DependOn records that name uses dep, so that deleting dep invalidates name
func (t *Table) DependOn(name, dep string) {
	if name == dep {
		return
	}
	if _, ok := t.deps[name]; !ok {
		t.deps[name] = set.New[string](1)
	}
	if _, ok := t.rdeps[dep]; !ok {
		t.rdeps[dep] = set.New[string](1)
	}
	t.deps[name].Insert(dep)
	t.rdeps[dep].Insert(name)
}

// DependenciesOf lists the names name depends on directly, in order
func (t *Table) DependenciesOf(name string) []string {
	deps, ok := t.deps[name]
	if !ok {
		return nil
	}
	out := deps.Slice()
	slices.Sort(out)
	return out
}

// Dependents lists every name that depends on name, transitively, in order
func (t *Table) Dependents(name string) []string {
	seen := set.New[string](0)
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		rdeps, ok := t.rdeps[current]
		if !ok {
			continue
		}
		for dependent := range rdeps.Items() {
			if dependent != name && seen.Insert(dependent) {
				queue = append(queue, dependent)
			}
		}
	}
	out := seen.Slice()
	slices.Sort(out)
	return out
}

// Delete removes name from this scope. Every binding depending on it, transitively,
// stays in the table but no longer resolves. Delete returns those bindings' names
func (t *Table) Delete(name string) ([]string, error) {
	if _, ok := t.bindings[name]; !ok {
		return nil, ilerr.New(ilerr.NewNameNotFound{Name: name, Reason: "cannot delete it"})
	}
	invalidated := t.invalidateDependents(name, fmt.Sprintf("it depends on '%s', which was deleted", name))
	delete(t.bindings, name)
	t.forgetDeps(name)
	t.logger.Debug("deleted", "name", name, "invalidated", invalidated)
	return invalidated, nil
}

func (t *Table) invalidateDependents(name, reason string) []string {
	dependents := t.Dependents(name)
	for _, d := range dependents {
		if b, ok := t.bindings[d]; ok {
			b.Scheme = nil
			b.invalidated = reason
		}
	}
	return dependents
}

// forgetDeps drops the edges out of name. Edges into name are kept, so that a later
// definition of name is still known to be depended upon
func (t *Table) forgetDeps(name string) {
	deps, ok := t.deps[name]
	if !ok {
		return
	}
	for dep := range deps.Items() {
		if r, ok := t.rdeps[dep]; ok {
			r.Remove(name)
		}
	}
	delete(t.deps, name)
}

// Names lists the bindings of this scope, in order
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.bindings))
	for name := range t.bindings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// FreeVars are the type variables free in the resolved bindings of every enclosing
// scope. They must not be generalised
func (t *Table) FreeVars() *set.Set[types.TypeVarID] {
	free := set.New[types.TypeVarID](0)
	for scope := t; scope != nil; scope = scope.parent {
		for _, b := range scope.bindings {
			if b.Scheme == nil {
				continue
			}
			vars := types.FreeVars(b.Scheme.Body)
			for _, v := range b.Scheme.Vars {
				vars.Remove(v.ID)
			}
			free.InsertSet(vars)
		}
	}
	return free
}
