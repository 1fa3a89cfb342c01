package types

import (
	"maps"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/hashicorp/go-set/v3"
)

// Subst maps type variables to the types they were solved to.
// A Subst belongs to one inference attempt; callers Clone it to backtrack
type Subst map[TypeVarID]Type

func (s Subst) Lookup(id TypeVarID) (Type, bool) {
	t, ok := s[id]
	return t, ok
}

// Apply replaces every solved type variable in t, transitively
func (s Subst) Apply(t Type) Type {
	if len(s) == 0 || t == nil {
		return t
	}
	return s.apply(t, 0)
}

// substitutions are acyclic thanks to the occurs check, this only guards against misuse
const maxApplyDepth = 1000

func (s Subst) apply(t Type, depth int) Type {
	if depth > maxApplyDepth {
		return t
	}
	if v, ok := t.(*TypeVar); ok {
		if solved, ok := s[v.ID]; ok {
			return s.apply(solved, depth+1)
		}
		if v.Bound != nil {
			return &TypeVar{ID: v.ID, Name: v.Name, Bound: s.apply(v.Bound, depth+1)}
		}
		return v
	}
	return MapChildren(t, func(child Type) Type { return s.apply(child, depth+1) })
}

func (s Subst) Clone() Subst {
	return maps.Clone(s)
}

// Compose returns the substitution that applies s and then next
func (s Subst) Compose(next Subst) Subst {
	out := make(Subst, len(s)+len(next))
	for id, t := range s {
		out[id] = next.Apply(t)
	}
	for id, t := range next {
		if _, ok := out[id]; !ok {
			out[id] = t
		}
	}
	return out
}

func (s Subst) String() string {
	ids := slices.Sorted(maps.Keys(s))
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = (&TypeVar{ID: id}).String() + " := " + s[id].String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FreeVars collects the type variables in ts. Self is never free, it is only a placeholder
func FreeVars(ts ...Type) *set.Set[TypeVarID] {
	vars := set.New[TypeVarID](0)
	for _, t := range ts {
		collectFreeVars(t, vars)
	}
	return vars
}

func collectFreeVars(t Type, into *set.Set[TypeVarID]) {
	if t == nil {
		return
	}
	if v, ok := t.(*TypeVar); ok {
		if v.ID != SelfID {
			into.Insert(v.ID)
		}
		if v.Bound != nil {
			collectFreeVars(v.Bound, into)
		}
		return
	}
	for child := range t.Children() {
		collectFreeVars(child, into)
	}
}

// Occurs reports whether the variable id appears anywhere inside t
func Occurs(id TypeVarID, t Type) bool {
	if v, ok := t.(*TypeVar); ok {
		return v.ID == id || (v.Bound != nil && Occurs(id, v.Bound))
	}
	for child := range t.Children() {
		if Occurs(id, child) {
			return true
		}
	}
	return false
}

// MentionsSelf reports whether Self appears inside t
func MentionsSelf(t Type) bool {
	return Occurs(SelfID, t)
}

// Fresher hands out type variable IDs. It is safe for concurrent use,
// although each module checker normally owns its own
type Fresher struct {
	last atomic.Uint64
}

func NewFresher() *Fresher {
	return &Fresher{}
}

// NewFresherFrom hands out IDs above start, keeping declaration variables apart
// from the variables of inference
func NewFresherFrom(start TypeVarID) *Fresher {
	f := &Fresher{}
	f.last.Store(start)
	return f
}

// Last is the most recent ID handed out. Every later variable has a larger ID
func (f *Fresher) Last() TypeVarID { return f.last.Load() }

func (f *Fresher) Fresh(name string) *TypeVar {
	return &TypeVar{ID: f.last.Add(1), Name: name}
}

func (f *Fresher) FreshBounded(name string, bound Type) *TypeVar {
	return &TypeVar{ID: f.last.Add(1), Name: name, Bound: bound}
}

// Scheme is a generalised type: Body with Vars universally quantified
type Scheme struct {
	Vars []*TypeVar
	Body Type
}

func Mono(t Type) *Scheme {
	return &Scheme{Body: t}
}

func (s *Scheme) String() string {
	if len(s.Vars) == 0 {
		return s.Body.String()
	}
	names := make([]string, len(s.Vars))
	for i, v := range s.Vars {
		names[i] = v.String()
		if v.Bound != nil {
			names[i] += " <: " + v.Bound.String()
		}
	}
	return "|" + strings.Join(names, ", ") + "| " + s.Body.String()
}

// Instantiate replaces every quantified variable with a fresh one
func (s *Scheme) Instantiate(fresh *Fresher) Type {
	if len(s.Vars) == 0 {
		return s.Body
	}
	sub := make(Subst, len(s.Vars))
	for _, v := range s.Vars {
		sub[v.ID] = fresh.FreshBounded(v.Name, v.Bound)
	}
	for id, t := range sub {
		if tv := t.(*TypeVar); tv.Bound != nil {
			sub[id] = &TypeVar{ID: tv.ID, Name: tv.Name, Bound: sub.Apply(tv.Bound)}
		}
	}
	return sub.Apply(s.Body)
}

// Generalize quantifies the variables of t that are not free in the environment.
// Escaping variables thus become new parameters of the declaration
func Generalize(t Type, envFree *set.Set[TypeVarID]) *Scheme {
	var vars []*TypeVar
	seen := set.New[TypeVarID](0)
	var walk func(Type)
	walk = func(t Type) {
		if v, ok := t.(*TypeVar); ok {
			if v.ID != SelfID && !envFree.Contains(v.ID) && seen.Insert(v.ID) {
				vars = append(vars, v)
			}
			if v.Bound != nil {
				walk(v.Bound)
			}
			return
		}
		for child := range t.Children() {
			walk(child)
		}
	}
	walk(t)
	return &Scheme{Vars: vars, Body: t}
}
