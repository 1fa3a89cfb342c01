package infer

import (
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/frontend/unify"
	"github.com/hashicorp/go-set/v3"
)

// scope binds the parameters, pattern variables and block declarations visible to
// an expression. Names it does not bind resolve through the symbol table
type scope struct {
	vars   map[string]*types.Scheme
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]*types.Scheme), parent: parent}
}

func (s *scope) child() *scope { return newScope(s) }

func (s *scope) bind(name string, scheme *types.Scheme) {
	if name == "" || name == "_" {
		return
	}
	s.vars[name] = scheme
}

func (s *scope) lookup(name string) (*types.Scheme, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if t, ok := sc.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// freeVars are the variables of every enclosing binding, after u's substitution
func (s *scope) freeVars(u *unify.Unifier) *set.Set[types.TypeVarID] {
	free := set.New[types.TypeVarID](0)
	for sc := s; sc != nil; sc = sc.parent {
		for _, scheme := range sc.vars {
			vars := types.FreeVars(u.Apply(scheme.Body))
			for _, v := range scheme.Vars {
				vars.Remove(v.ID)
			}
			free.InsertSet(vars)
		}
	}
	return free
}
