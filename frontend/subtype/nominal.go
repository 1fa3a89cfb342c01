package subtype

import (
	"github.com/cottand/typecore/frontend/types"
)

// Checker answers nested subtype questions. Implementations of Nominal receive the
// Checker of the query in progress, so that nested questions share its assumptions
type Checker interface {
	IsSubtype(sub, super types.Type) bool
}

// Nominal is the declared part of the lattice: classes, traits and implementations.
// The trait registry is the production implementation
type Nominal interface {
	// SubclassOf reports whether class sub is declared, transitively, under super
	SubclassOf(sub, super string) bool
	// Implements reports whether t satisfies the trait bound, either through a
	// registered implementation or structurally
	Implements(c Checker, t types.Type, trait *types.TraitRef) bool
	// TraitImplies reports whether every implementor of sub also implements super
	TraitImplies(c Checker, sub, super *types.TraitRef) bool
	// AttrsOf returns the attributes of a nominal type as a record
	AttrsOf(t types.Type) (*types.Record, bool)
}

var builtinSupers = map[string][]string{
	types.NatName:   {types.IntName},
	types.IntName:   {types.RatioName, types.FloatName},
	types.RatioName: {types.ObjName},
	types.FloatName: {types.ObjName},
	types.StrName:   {types.ObjName},
	types.BoolName:  {types.ObjName},
	types.NoneName:  {types.ObjName},
	types.TypeName:  {types.ObjName},
}

// BuiltinSupers returns the direct superclasses of a built-in class
func BuiltinSupers(name string) []string {
	return builtinSupers[name]
}

func IsBuiltinClass(name string) bool {
	_, ok := builtinSupers[name]
	return ok || name == types.ObjName || name == types.NeverName
}

// Builtins is the lattice of the built-in classes alone, with no traits
type Builtins struct{}

var _ Nominal = Builtins{}

func (Builtins) SubclassOf(sub, super string) bool {
	return Reachable(sub, super, BuiltinSupers)
}

func (Builtins) Implements(Checker, types.Type, *types.TraitRef) bool { return false }

func (Builtins) TraitImplies(_ Checker, sub, super *types.TraitRef) bool {
	return types.Equal(sub, super)
}

func (Builtins) AttrsOf(types.Type) (*types.Record, bool) { return nil, false }

// Reachable walks supers breadth-first from sub, looking for super.
// Every class is under Obj and Never is under every class
func Reachable(sub, super string, supers func(string) []string) bool {
	if sub == super || super == types.ObjName || sub == types.NeverName {
		return true
	}
	seen := map[string]bool{sub: true}
	queue := []string{sub}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, s := range supers(current) {
			if s == super {
				return true
			}
			if !seen[s] {
				seen[s] = true
				queue = append(queue, s)
			}
		}
	}
	return false
}
