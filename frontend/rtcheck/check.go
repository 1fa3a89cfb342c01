// Package rtcheck decides at run time whether a value belongs to a type, for
// assertions that could not be proven while checking.
//
// It shares nothing with the subtyping engine but the predicate evaluator: a proof
// is strict, a runtime check only looks at the one value it is given.
package rtcheck

import (
	"github.com/cottand/typecore/frontend/subtype"
	"github.com/cottand/typecore/frontend/types"
	"github.com/pkg/errors"
)

var (
	// ErrAssertion is returned by Assert for a value outside the asserted type
	ErrAssertion = errors.New("assertion failed")
	// ErrUncheckable is returned for types that have no runtime representation to test
	ErrUncheckable = errors.New("type cannot be checked at run time")
)

// Check reports whether v belongs to t. Types that cannot be checked are never satisfied
func Check(v types.Value, t types.Type) bool {
	ok, err := member(v, types.Canonicalize(t))
	return err == nil && ok
}

// Assert is Check with an explanation when it fails
func Assert(v types.Value, t types.Type) error {
	ok, err := member(v, types.Canonicalize(t))
	if err != nil {
		return errors.Wrapf(err, "asserting %v in %v", v, t)
	}
	if !ok {
		return errors.Wrapf(ErrAssertion, "%v is not in %v", v, t)
	}
	return nil
}

func member(v types.Value, t types.Type) (bool, error) {
	if !v.IsValid() {
		return false, errors.Wrap(ErrUncheckable, "invalid value")
	}
	switch t := t.(type) {
	case *types.Primitive:
		switch t.Name {
		case types.ObjName:
			return true, nil
		case types.NeverName:
			return false, nil
		case types.NatName:
			return member(v, types.NatRefinement("_"))
		}
		class, ok := v.Typeof().(*types.Primitive)
		if !ok {
			return false, nil
		}
		return subtype.Reachable(class.Name, t.Name, subtype.BuiltinSupers), nil
	case *types.Refinement:
		ok, err := member(v, t.Base)
		if err != nil || !ok {
			return false, err
		}
		for _, p := range t.Preds {
			holds, err := types.EvalPredicate(p, t.Var, v)
			if err != nil {
				return false, errors.Wrap(ErrUncheckable, err.Error())
			}
			if !holds {
				return false, nil
			}
		}
		return true, nil
	case *types.Const:
		return types.ValueEqual(v, t.Value), nil
	case *types.Or:
		l, err := member(v, t.Lhs)
		if err == nil && l {
			return true, nil
		}
		r, rErr := member(v, t.Rhs)
		if rErr == nil && r {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return false, rErr
	case *types.And:
		l, err := member(v, t.Lhs)
		if err != nil || !l {
			return false, err
		}
		return member(v, t.Rhs)
	case *types.Not:
		inner, err := member(v, t.Inner)
		return !inner, err
	case *types.TypeVar:
		if t.Bound == nil {
			return true, nil
		}
		return member(v, t.Bound)
	}
	return false, errors.Wrapf(ErrUncheckable, "%v", t)
}
