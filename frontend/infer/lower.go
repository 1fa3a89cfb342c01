package infer

import (
	"fmt"
	"go/token"
	"maps"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/subtype"
	"github.com/cottand/typecore/frontend/symbols"
	"github.com/cottand/typecore/frontend/types"
	"github.com/pkg/errors"
)

// typeConstructors are the generic built-in types, as the Array of Array(Int, 3)
var typeConstructors = map[string]bool{"Array": true, "List": true, "Set": true, "Dict": true}

// typeParams are the names a type expression may use for variables, such as the
// parameters of a trait or of a generic implementation
type typeParams map[string]types.Type

func (p typeParams) with(name string, t types.Type) typeParams {
	c := maps.Clone(p)
	if c == nil {
		c = make(typeParams)
	}
	c[name] = t
	return c
}

// LowerType turns a type annotation into a type
func (c *Checker) LowerType(te ast.TypeExpr) (types.Type, error) {
	return c.lower(te, nil)
}

func (c *Checker) lower(te ast.TypeExpr, params typeParams) (types.Type, error) {
	switch te := te.(type) {
	case *ast.TName:
		return c.lowerName(te, params)
	case *ast.TApp:
		return c.lowerApp(te, params)
	case *ast.TFunc:
		fn := &types.Function{}
		for _, p := range te.Params {
			t, err := c.lower(p.Type, params)
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, types.Param{Name: p.Name, Type: t, HasDefault: p.HasDefault})
		}
		for _, p := range te.KwParams {
			t, err := c.lower(p.Type, params)
			if err != nil {
				return nil, err
			}
			fn.KwParams = append(fn.KwParams, types.Param{Name: p.Name, Type: t, HasDefault: p.HasDefault})
		}
		ret, err := c.lower(te.Return, params)
		if err != nil {
			return nil, err
		}
		fn.Return = ret
		return fn, nil
	case *ast.TRecord:
		fields := make([]types.Field, 0, len(te.Fields))
		for _, f := range te.Fields {
			t, err := c.lower(f.Type, params)
			if err != nil {
				return nil, err
			}
			fields = append(fields, types.Field{Name: f.Name, Type: t})
		}
		return types.NewRecord(fields...), nil
	case *ast.TRefinement:
		return c.lowerRefinement(te, params)
	case *ast.TEnum:
		values := make([]types.Value, 0, len(te.Values))
		for _, e := range te.Values {
			v, err := c.consts.Eval(e)
			if err != nil {
				return nil, ilerr.At(err, e)
			}
			values = append(values, v)
		}
		return &types.Enum{Values: values}, nil
	case *ast.TInterval:
		lo, err := c.consts.Eval(te.Lo)
		if err != nil {
			return nil, ilerr.At(err, te.Lo)
		}
		hi, err := c.consts.Eval(te.Hi)
		if err != nil {
			return nil, ilerr.At(err, te.Hi)
		}
		return &types.Interval{Lo: lo, Hi: hi, OpenHi: te.OpenHi}, nil
	case *ast.TOr:
		lhs, rhs, err := c.lowerPair(te.Lhs, te.Rhs, params)
		if err != nil {
			return nil, err
		}
		return &types.Or{Lhs: lhs, Rhs: rhs}, nil
	case *ast.TAnd:
		lhs, rhs, err := c.lowerPair(te.Lhs, te.Rhs, params)
		if err != nil {
			return nil, err
		}
		return &types.And{Lhs: lhs, Rhs: rhs}, nil
	case *ast.TNot:
		inner, err := c.lower(te.Inner, params)
		if err != nil {
			return nil, err
		}
		return &types.Not{Inner: inner}, nil
	case *ast.TValue:
		v, err := c.consts.Eval(te.Value)
		if err != nil {
			return nil, ilerr.At(err, te)
		}
		if t, ok := v.TypeOf(); ok {
			return t, nil
		}
		return types.Singleton(v), nil
	case nil:
		return nil, errors.New("missing type")
	}
	return nil, ilerr.At(errors.Errorf("unsupported type expression %T", te), te)
}

func (c *Checker) lowerPair(l, r ast.TypeExpr, params typeParams) (types.Type, types.Type, error) {
	lhs, err := c.lower(l, params)
	if err != nil {
		return nil, nil, err
	}
	rhs, err := c.lower(r, params)
	if err != nil {
		return nil, nil, err
	}
	return lhs, rhs, nil
}

func (c *Checker) lowerName(te *ast.TName, params typeParams) (types.Type, error) {
	if t, ok := params[te.Name]; ok {
		return t, nil
	}
	switch {
	case te.Name == "Self":
		return types.Self, nil
	case subtype.IsBuiltinClass(te.Name):
		return &types.Primitive{Name: te.Name}, nil
	case typeConstructors[te.Name]:
		return &types.Poly{Name: te.Name}, nil
	}
	if _, ok := c.registry.Class(te.Name); ok {
		return &types.Primitive{Name: te.Name}, nil
	}
	if trait, ok := c.registry.Trait(te.Name); ok {
		if len(trait.Params) > 0 {
			return nil, ilerr.At(ilerr.New(ilerr.NewTypeMismatch{
				Expected: trait.Ref(),
				Actual:   trait.Ref(),
				Reason:   fmt.Sprintf("'%s' takes %d type arguments", te.Name, len(trait.Params)),
			}), te)
		}
		return trait.Ref(), nil
	}
	// a constant may name a type, as in `const Small = 0..10`
	if b, err := c.names.Resolve(te.Name); err == nil && b.Kind == symbols.KindConst {
		v, err := c.consts.Eval(&ast.Ident{Range: te.Range, Name: te.Name})
		if err != nil {
			return nil, ilerr.At(err, te)
		}
		if t, ok := v.TypeOf(); ok {
			return t, nil
		}
		return types.Singleton(v), nil
	}
	return nil, ilerr.At(ilerr.New(ilerr.NewNameNotFound{Name: te.Name, Reason: "not a type"}), te)
}

func (c *Checker) lowerApp(te *ast.TApp, params typeParams) (types.Type, error) {
	args := make([]types.Type, 0, len(te.Args))
	for _, a := range te.Args {
		t, err := c.lower(a, params)
		if err != nil {
			return nil, err
		}
		args = append(args, t)
	}
	if trait, ok := c.registry.Trait(te.Name); ok {
		ref := &types.TraitRef{Name: te.Name, Args: args}
		if len(args) != len(trait.Params) {
			return nil, ilerr.At(ilerr.New(ilerr.NewTypeMismatch{
				Expected: trait.Ref(),
				Actual:   ref,
				Reason:   fmt.Sprintf("'%s' takes %d type arguments, found %d", te.Name, len(trait.Params), len(args)),
			}), te)
		}
		return ref, nil
	}
	_, isClass := c.registry.Class(te.Name)
	if !typeConstructors[te.Name] && !isClass {
		return nil, ilerr.At(ilerr.New(ilerr.NewNameNotFound{Name: te.Name, Reason: "not a generic type"}), te)
	}
	return &types.Poly{Name: te.Name, Args: args}, nil
}

var cmpOps = map[token.Token]types.CmpOp{
	token.EQL: types.OpEq,
	token.NEQ: types.OpNe,
	token.LSS: types.OpLt,
	token.LEQ: types.OpLe,
	token.GTR: types.OpGt,
	token.GEQ: types.OpGe,
}

func (c *Checker) lowerRefinement(te *ast.TRefinement, params typeParams) (types.Type, error) {
	base, err := c.lower(te.Base, params)
	if err != nil {
		return nil, err
	}
	preds := make([]types.Predicate, 0, len(te.Preds))
	for _, p := range te.Preds {
		pred, err := c.lowerPred(p, te.Var)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	r, err := types.NewRefinement(base, te.Var, preds...)
	if err != nil {
		return nil, ilerr.At(ilerr.New(ilerr.NewNonCanonicalPredicate{Reason: err.Error()}), te)
	}
	return r, nil
}

func (c *Checker) lowerPred(p ast.PredExpr, boundVar string) (types.Predicate, error) {
	switch p := p.(type) {
	case *ast.PCompare:
		op, ok := cmpOps[p.Op]
		if !ok {
			return nil, ilerr.At(ilerr.New(ilerr.NewNonCanonicalPredicate{Reason: fmt.Sprintf("'%s' is not a comparison", p.Op)}), p)
		}
		cmp, err := types.NewCompare(boundVar, c.predTerm(p.Lhs, boundVar), op, c.predTerm(p.Rhs, boundVar))
		if err != nil {
			return nil, ilerr.At(ilerr.New(ilerr.NewNonCanonicalPredicate{Reason: err.Error()}), p)
		}
		return cmp, nil
	case *ast.PAnd:
		lhs, rhs, err := c.lowerPredPair(p.Lhs, p.Rhs, boundVar)
		if err != nil {
			return nil, err
		}
		return &types.PredAnd{Lhs: lhs, Rhs: rhs}, nil
	case *ast.POr:
		lhs, rhs, err := c.lowerPredPair(p.Lhs, p.Rhs, boundVar)
		if err != nil {
			return nil, err
		}
		return &types.PredOr{Lhs: lhs, Rhs: rhs}, nil
	case *ast.PNot:
		inner, err := c.lowerPred(p.Inner, boundVar)
		if err != nil {
			return nil, err
		}
		return &types.PredNot{Inner: inner}, nil
	}
	return nil, ilerr.At(ilerr.New(ilerr.NewNonCanonicalPredicate{Reason: fmt.Sprintf("unsupported predicate %T", p)}), p)
}

func (c *Checker) lowerPredPair(l, r ast.PredExpr, boundVar string) (types.Predicate, types.Predicate, error) {
	lhs, err := c.lowerPred(l, boundVar)
	if err != nil {
		return nil, nil, err
	}
	rhs, err := c.lowerPred(r, boundVar)
	if err != nil {
		return nil, nil, err
	}
	return lhs, rhs, nil
}

// predTerm classifies one side of a comparison: the bound variable, a constant, or
// an expression the checker keeps symbolic
func (c *Checker) predTerm(e ast.Expr, boundVar string) types.PredTerm {
	if id, ok := e.(*ast.Ident); ok && id.Name == boundVar {
		return types.TermName{Name: id.Name}
	}
	mentions := identNames(e)
	if !contains(mentions, boundVar) {
		if v, err := c.consts.Eval(e); err == nil {
			return types.TermConst{Value: v}
		}
	}
	if id, ok := e.(*ast.Ident); ok {
		return types.TermName{Name: id.Name}
	}
	return types.TermExpr{Text: ast.ExprString(e), Mentions: mentions}
}

// typeNames lists the declared names a type expression refers to
func typeNames(te ast.TypeExpr) []string {
	var names []string
	var walk func(ast.TypeExpr)
	walk = func(te ast.TypeExpr) {
		switch te := te.(type) {
		case *ast.TName:
			names = append(names, te.Name)
		case *ast.TApp:
			names = append(names, te.Name)
			for _, a := range te.Args {
				walk(a)
			}
		case *ast.TFunc:
			for _, p := range te.Params {
				walk(p.Type)
			}
			for _, p := range te.KwParams {
				walk(p.Type)
			}
			walk(te.Return)
		case *ast.TRecord:
			for _, f := range te.Fields {
				walk(f.Type)
			}
		case *ast.TRefinement:
			walk(te.Base)
		case *ast.TOr:
			walk(te.Lhs)
			walk(te.Rhs)
		case *ast.TAnd:
			walk(te.Lhs)
			walk(te.Rhs)
		case *ast.TNot:
			walk(te.Inner)
		}
	}
	walk(te)
	return names
}
