package infer

import (
	"go/token"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/traits"
	"github.com/cottand/typecore/frontend/types"
)

// deferredOp is an operator whose operands were both unknown when it was met
type deferredOp struct {
	node *ast.BinOp
	op   traits.Operator
	lhs  types.Type
	rhs  types.Type
	out  types.Type
}

func (a *attempt) binOp(e *ast.BinOp, sc *scope) (types.Type, error) {
	lhs, err := a.infer(e.Lhs, sc)
	if err != nil {
		return nil, err
	}
	rhs, err := a.infer(e.Rhs, sc)
	if err != nil {
		return nil, err
	}
	if e.Op == token.LAND || e.Op == token.LOR {
		if err := a.u.Constrain(lhs, types.BoolType); err != nil {
			return nil, ilerr.At(err, e.Lhs)
		}
		if err := a.u.Constrain(rhs, types.BoolType); err != nil {
			return nil, ilerr.At(err, e.Rhs)
		}
		return types.BoolType, nil
	}
	op, ok := traits.OperatorFor(e.Op)
	if !ok {
		return nil, mismatch(e, types.ObjType, types.ObjType, "'%s' is not an operator", e.Op)
	}

	l, r := valueBase(a.u.Apply(lhs)), valueBase(a.u.Apply(rhs))
	lOpen, rOpen := !closed(l), !closed(r)
	switch {
	case lOpen && rOpen:
		d := &deferredOp{node: e, op: op, lhs: lhs, rhs: rhs, out: types.BoolType}
		if !op.Comparison {
			d.out = a.fresh.Fresh("out")
		}
		a.deferred = append(a.deferred, d)
		return d.out, nil
	case lOpen:
		// an unknown operand takes the type of the other
		if err := a.u.Unify(l, r); err != nil {
			return nil, ilerr.At(err, e.Lhs)
		}
	case rOpen:
		if err := a.u.Unify(r, l); err != nil {
			return nil, ilerr.At(err, e.Rhs)
		}
	}
	return a.resolveOp(e, op, lhs, rhs)
}

// resolveOp finds the implementation of op for closed operands
func (a *attempt) resolveOp(e *ast.BinOp, op traits.Operator, lhs, rhs types.Type) (types.Type, error) {
	l, r := valueBase(a.u.Apply(lhs)), valueBase(a.u.Apply(rhs))
	engine := a.u.Engine()
	if op.Comparison {
		if !engine.IsSubtype(l, r) && !engine.IsSubtype(r, l) {
			return nil, mismatch(e.Rhs, l, r, "'%s' compares unrelated types", e.Op)
		}
		ref := &types.TraitRef{Name: op.Trait}
		impl, err := a.registry.Resolve(l, ref)
		if err != nil {
			var rerr error
			if impl, rerr = a.registry.Resolve(r, ref); rerr != nil {
				return nil, ilerr.At(err, e)
			}
		}
		a.usesImpl(impl)
		a.recordImpl(func() { e.Impl = impl })
		return types.BoolType, nil
	}

	impl, err := a.registry.Resolve(l, &types.TraitRef{Name: op.Trait, Args: []types.Type{r}})
	if err != nil && engine.IsSubtype(r, l) {
		// a narrower right operand, as Int + Nat, uses the implementation of the wider
		impl, err = a.registry.Resolve(l, &types.TraitRef{Name: op.Trait, Args: []types.Type{l}})
	}
	if err != nil {
		return nil, ilerr.At(err, e)
	}
	out, ok := impl.Assoc("Output")
	if !ok {
		return nil, mismatch(e, l, r, "'%v' does not bind Output", impl)
	}
	a.usesImpl(impl)
	a.recordImpl(func() { e.Impl = impl })
	return out, nil
}

func (a *attempt) recordImpl(set func()) {
	a.impls = append(a.impls, set)
}

// usesImpl makes the declaration being checked depend on the one that declared impl
func (a *attempt) usesImpl(impl *traits.Impl) {
	if a.owner != "" && impl.Owner != "" {
		a.names.DependOn(a.owner, impl.Owner)
	}
}

// settle resolves a deferred operator. Operands still unknown at the end of the
// declaration become bounded by the operator trait, as in |T <: Add(T)| (T, T) -> ?
func (a *attempt) settle(d *deferredOp) error {
	l, r := valueBase(a.u.Apply(d.lhs)), valueBase(a.u.Apply(d.rhs))
	lOpen, rOpen := !closed(l), !closed(r)
	switch {
	case lOpen && rOpen:
		if d.op.Comparison {
			if err := a.u.Unify(l, r); err != nil {
				return ilerr.At(err, d.node)
			}
			return ilerr.At(a.u.Constrain(l, &types.TraitRef{Name: d.op.Trait}), d.node)
		}
		return ilerr.At(a.u.Constrain(l, &types.TraitRef{Name: d.op.Trait, Args: []types.Type{r}}), d.node)
	case lOpen:
		if err := a.u.Unify(l, r); err != nil {
			return ilerr.At(err, d.node.Lhs)
		}
	case rOpen:
		if err := a.u.Unify(r, l); err != nil {
			return ilerr.At(err, d.node.Rhs)
		}
	}
	out, err := a.resolveOp(d.node, d.op, d.lhs, d.rhs)
	if err != nil {
		return err
	}
	return ilerr.At(a.u.Unify(d.out, out), d.node)
}

func (a *attempt) attr(e *ast.Attr, sc *scope) (types.Type, error) {
	recv, err := a.infer(e.Receiver, sc)
	if err != nil {
		return nil, err
	}
	recv = a.u.Apply(recv)
	if e.Qualifier == nil {
		switch r := recv.(type) {
		case *types.Record:
			if t, ok := r.Field(e.Name); ok {
				return t, nil
			}
			return nil, ilerr.At(ilerr.New(ilerr.NewNameNotFound{Name: e.Name, Reason: "the record has no such field"}), e)
		case *types.TypeVar:
			if r.Bound == nil {
				field := a.fresh.Fresh(e.Name)
				if err := a.u.Constrain(r, types.NewRecord(types.Field{Name: e.Name, Type: field})); err != nil {
					return nil, ilerr.At(err, e)
				}
				return field, nil
			}
		}
	}

	var qualifier *types.TraitRef
	if e.Qualifier != nil {
		q, err := a.LowerType(e.Qualifier)
		if err != nil {
			return nil, ilerr.At(err, e.Qualifier)
		}
		ref, ok := q.(*types.TraitRef)
		if !ok {
			return nil, mismatch(e.Qualifier, &types.TraitRef{Name: "Trait"}, q, "a qualifier must be a trait")
		}
		qualifier = ref
	}

	target := valueBase(recv)
	if v, ok := target.(*types.TypeVar); ok && v.Bound != nil {
		target = v.Bound
	}
	t, impl, err := a.registry.LookupAttr(target, e.Name, qualifier)
	if err != nil {
		return nil, ilerr.At(err, e)
	}
	if impl == nil {
		return t, nil
	}
	if len(impl.Params) > 0 {
		t = (&types.Scheme{Vars: impl.Params, Body: t}).Instantiate(a.fresh)
	}
	a.usesImpl(impl)
	a.recordImpl(func() { e.Impl = impl })
	// a method receives its receiver as the first argument
	if fn, ok := t.(*types.Function); ok && len(fn.Params) > 0 && a.u.Engine().IsSubtype(target, fn.Params[0].Type) {
		return &types.Function{Params: fn.Params[1:], KwParams: fn.KwParams, Return: fn.Return}, nil
	}
	return t, nil
}
