package infer

import (
	"strconv"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/consteval"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/types"
)

func (a *attempt) call(e *ast.Call, sc *scope) (types.Type, error) {
	if id, ok := e.Func.(*ast.Ident); ok {
		if _, local := sc.lookup(id.Name); !local {
			if a.isTypeConstructor(id.Name) {
				// Array(Int, 3) is a type, computed at compile time
				v, err := a.consts.Eval(e)
				if err != nil {
					return nil, ilerr.At(err, e)
				}
				return types.Singleton(v), nil
			}
			if _, declared := a.names.Lookup(id.Name); !declared && id.Name == "len" {
				return a.length(e, sc)
			}
		}
	}

	callee, err := a.infer(e.Func, sc)
	if err != nil {
		return nil, err
	}
	switch fn := a.u.Apply(callee).(type) {
	case *types.Function:
		return a.apply(e, sc, fn)
	case *types.TypeVar:
		// the callee is only known by how it is called
		shape := &types.Function{Return: a.fresh.Fresh("ret")}
		for _, arg := range e.Args {
			t, err := a.infer(arg, sc)
			if err != nil {
				return nil, err
			}
			shape.Params = append(shape.Params, types.Param{Type: t})
		}
		for _, kw := range e.KwArgs {
			t, err := a.infer(kw.Value, sc)
			if err != nil {
				return nil, err
			}
			shape.KwParams = append(shape.KwParams, types.Param{Name: kw.Name, Type: t})
		}
		if err := a.u.Unify(fn, shape); err != nil {
			return nil, ilerr.At(err, e)
		}
		return shape.Return, nil
	default:
		return nil, mismatch(e.Func, &types.Function{Return: types.ObjType}, fn, "'%s' cannot be called", ast.ExprString(e.Func))
	}
}

func (a *attempt) isTypeConstructor(name string) bool {
	if typeConstructors[name] {
		return true
	}
	_, isClass := a.registry.Class(name)
	return isClass
}

// apply matches the arguments of e against fn: positionally, then by name, and
// finally with the defaults of the parameters left
func (a *attempt) apply(e *ast.Call, sc *scope, fn *types.Function) (types.Type, error) {
	if len(e.Args) > len(fn.Params) {
		return nil, mismatch(e, fn, shapeOf(e), "expected at most %d positional arguments, found %d", len(fn.Params), len(e.Args))
	}
	filled := make([]bool, len(fn.Params))
	for i, arg := range e.Args {
		if err := a.argument(arg, sc, fn.Params[i].Type); err != nil {
			return nil, err
		}
		filled[i] = true
	}
	kwFilled := make([]bool, len(fn.KwParams))
	for _, kw := range e.KwArgs {
		target, done := a.keyword(fn, kw.Name, filled, kwFilled)
		if target == nil {
			return nil, mismatch(kw, fn, shapeOf(e), "no parameter named '%s'", kw.Name)
		}
		if done {
			return nil, mismatch(kw, fn, shapeOf(e), "'%s' is passed twice", kw.Name)
		}
		if err := a.argument(kw.Value, sc, target.Type); err != nil {
			return nil, err
		}
	}
	for i, p := range fn.Params {
		if !filled[i] && !p.HasDefault {
			return nil, mismatch(e, fn, shapeOf(e), "missing argument %s", paramName(p, i))
		}
	}
	for i, p := range fn.KwParams {
		if !kwFilled[i] && !p.HasDefault {
			return nil, mismatch(e, fn, shapeOf(e), "missing keyword argument '%s'", p.Name)
		}
	}
	return fn.Return, nil
}

// keyword finds the parameter a keyword argument fills, and marks it. done reports
// whether it was already filled
func (a *attempt) keyword(fn *types.Function, name string, filled, kwFilled []bool) (p *types.Param, done bool) {
	for i := range fn.Params {
		if fn.Params[i].Name == name && name != "" {
			done, filled[i] = filled[i], true
			return &fn.Params[i], done
		}
	}
	for i := range fn.KwParams {
		if fn.KwParams[i].Name == name {
			done, kwFilled[i] = kwFilled[i], true
			return &fn.KwParams[i], done
		}
	}
	return nil, false
}

func paramName(p types.Param, i int) string {
	if p.Name != "" {
		return "'" + p.Name + "'"
	}
	return "#" + strconv.Itoa(i+1)
}

// argument checks one argument against its parameter
func (a *attempt) argument(arg ast.Expr, sc *scope, param types.Type) error {
	t, err := a.check(arg, sc, param)
	if err != nil {
		return err
	}
	return a.subsume(arg, sc, t, param)
}

// length types len(xs). It is exact when the size of xs is known
func (a *attempt) length(e *ast.Call, sc *scope) (types.Type, error) {
	if len(e.Args) != 1 || len(e.KwArgs) > 0 {
		return nil, mismatch(e, builtins["len"], shapeOf(e), "len takes one argument")
	}
	t, err := a.infer(e.Args[0], sc)
	if err != nil {
		return nil, err
	}
	if n, ok := consteval.ArrayLength(a.u.Apply(t)); ok {
		return types.Singleton(n), nil
	}
	return types.NatType, nil
}

// shapeOf is the function type a call site asks for, before its arguments are known
func shapeOf(e *ast.Call) *types.Function {
	shape := &types.Function{Return: types.ObjType}
	for range e.Args {
		shape.Params = append(shape.Params, types.Param{Type: types.ObjType})
	}
	for _, kw := range e.KwArgs {
		shape.KwParams = append(shape.KwParams, types.Param{Name: kw.Name, Type: types.ObjType})
	}
	return shape
}
