package infer

import (
	"fmt"
	"go/token"
	"maps"
	"slices"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/consteval"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/rtcheck"
	"github.com/cottand/typecore/frontend/subtype"
	"github.com/cottand/typecore/frontend/symbols"
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/frontend/unify"
	"github.com/pkg/errors"
)

type typedNode struct {
	node ast.Expr
	t    types.Type
}

// attempt checks one declaration. Nothing is written to the AST until annotate
type attempt struct {
	*Checker
	owner    string
	u        *unify.Unifier
	deferred []*deferredOp
	// coverage waits for the domains of pattern functions to be solved
	coverage []*coverage
	typed    []typedNode
	// impls write resolved implementations back into the tree
	impls []func()
}

func (c *Checker) newAttempt(owner string) *attempt {
	return &attempt{Checker: c, owner: owner, u: unify.New(c.registry.Engine(), c.opts, c.metrics)}
}

// fork starts an attempt for a pattern arm, whose failure must not affect its siblings
func (a *attempt) fork() *attempt {
	return &attempt{Checker: a.Checker, owner: a.owner, u: a.u.Clone()}
}

// merge adopts what arm learnt into a
func (a *attempt) merge(arm *attempt) error {
	parent, learnt := a.u.Subst(), arm.u.Subst()
	for _, id := range slices.Sorted(maps.Keys(learnt)) {
		if _, ok := parent[id]; ok {
			continue
		}
		if err := a.u.Unify(&types.TypeVar{ID: id}, learnt[id]); err != nil {
			return err
		}
	}
	known := len(a.u.Pending())
	for _, o := range arm.u.Pending()[min(known, len(arm.u.Pending())):] {
		if err := a.u.Constrain(o.Sub, o.Super); err != nil {
			return err
		}
	}
	a.deferred = append(a.deferred, arm.deferred...)
	a.coverage = append(a.coverage, arm.coverage...)
	a.typed = append(a.typed, arm.typed...)
	a.impls = append(a.impls, arm.impls...)
	return nil
}

func (a *attempt) infer(e ast.Expr, sc *scope) (types.Type, error) {
	return a.check(e, sc, nil)
}

// check infers e. expected only guides parameters that are not annotated; the
// caller is responsible for subsuming the result
func (a *attempt) check(e ast.Expr, sc *scope, expected types.Type) (types.Type, error) {
	if expected != nil {
		expected = a.u.Apply(expected)
	}
	t, err := a.synth(e, sc, expected)
	if err != nil {
		return nil, err
	}
	a.typed = append(a.typed, typedNode{node: e, t: t})
	return t, nil
}

func (a *attempt) synth(e ast.Expr, sc *scope, expected types.Type) (types.Type, error) {
	switch e := e.(type) {
	case *ast.Literal:
		v, err := consteval.LiteralValue(e)
		if err != nil {
			return nil, ilerr.At(err, e)
		}
		return v.Typeof(), nil
	case *ast.Ident:
		return a.ident(e, sc)
	case *ast.Call:
		return a.call(e, sc)
	case *ast.Attr:
		return a.attr(e, sc)
	case *ast.BinOp:
		return a.binOp(e, sc)
	case *ast.UnaryOp:
		return a.unaryOp(e, sc)
	case *ast.Lambda:
		return a.lambda(e, sc, expected)
	case *ast.PatternFunc:
		return a.patternFunc(e, sc, expected)
	case *ast.If:
		return a.ifExpr(e, sc, expected)
	case *ast.Block:
		return a.block(e, sc, expected)
	case *ast.ArrayLit:
		return a.array(e, sc)
	case *ast.RecordLit:
		fields := make([]types.Field, 0, len(e.Fields))
		for _, f := range e.Fields {
			t, err := a.infer(f.Value, sc)
			if err != nil {
				return nil, err
			}
			fields = append(fields, types.Field{Name: f.Name, Type: t})
		}
		return types.NewRecord(fields...), nil
	case *ast.Assert:
		return a.assert(e, sc)
	case *ast.TypeLit:
		t, err := a.LowerType(e.TypeExpr)
		if err != nil {
			return nil, err
		}
		return types.Singleton(types.TypeValue(t)), nil
	case nil:
		return nil, errors.New("missing expression")
	}
	return nil, ilerr.At(errors.Errorf("unsupported expression %T", e), e)
}

// subsume checks that e, of type t, fits expected. Constant expressions are checked
// by value, so that 5 fits Nat even though the literal is an Int
func (a *attempt) subsume(e ast.Expr, sc *scope, t, expected types.Type) error {
	expected = a.u.Apply(expected)
	if closed(expected) {
		if v, ok := a.constant(e, sc); ok && a.u.Engine().IsSubtype(types.Singleton(v), expected) {
			return nil
		}
	}
	return ilerr.At(a.u.Constrain(t, expected), e)
}

// constant evaluates e when it can only mean one value
func (a *attempt) constant(e ast.Expr, sc *scope) (types.Value, bool) {
	if !constantCandidate(e, sc) {
		return types.Value{}, false
	}
	v, err := a.consts.Eval(e)
	return v, err == nil
}

func constantCandidate(e ast.Expr, sc *scope) bool {
	switch e := e.(type) {
	case *ast.Literal, *ast.TypeLit:
		return true
	case *ast.Ident:
		_, local := sc.lookup(e.Name)
		return !local
	case *ast.BinOp:
		return constantCandidate(e.Lhs, sc) && constantCandidate(e.Rhs, sc)
	case *ast.UnaryOp:
		return constantCandidate(e.Operand, sc)
	case *ast.If:
		return constantCandidate(e.Cond, sc) && constantCandidate(e.Then, sc) && e.Else != nil && constantCandidate(e.Else, sc)
	case *ast.Call:
		if !constantCandidate(e.Func, sc) {
			return false
		}
		for _, arg := range e.Args {
			if !constantCandidate(arg, sc) {
				return false
			}
		}
		for _, kw := range e.KwArgs {
			if !constantCandidate(kw.Value, sc) {
				return false
			}
		}
		return true
	}
	return false
}

// finish settles the operators whose operands were never resolved, then the trait
// obligations that waited on them, and the coverage of pattern functions whose
// domain is only known now
func (a *attempt) finish() error {
	for _, op := range a.deferred {
		if err := a.settle(op); err != nil {
			return err
		}
	}
	a.deferred = nil
	if err := a.u.Discharge(); err != nil {
		return err
	}
	for _, c := range a.coverage {
		if err := a.cover(c.node, c.domain, c.regions, true); err != nil {
			return err
		}
	}
	a.coverage = nil
	return a.boundPending()
}

// boundPending turns the obligations left on free variables into bounds, so that
// generalisation keeps them as in |T <: Eq| (T, T) -> Bool
func (a *attempt) boundPending() error {
	bounds := make(map[types.TypeVarID]types.Type)
	var order []types.TypeVarID
	for _, o := range a.u.Pending() {
		v, ok := o.Sub.(*types.TypeVar)
		if !ok {
			continue
		}
		if _, ok := o.Super.(*types.TraitRef); !ok {
			continue
		}
		prev, seen := bounds[v.ID]
		switch {
		case !seen && v.Bound == nil:
			bounds[v.ID] = o.Super
			order = append(order, v.ID)
		case !seen:
			bounds[v.ID] = &types.And{Lhs: v.Bound, Rhs: o.Super}
			order = append(order, v.ID)
		default:
			bounds[v.ID] = &types.And{Lhs: prev, Rhs: o.Super}
		}
	}
	for _, id := range order {
		v := &types.TypeVar{ID: id}
		if applied, ok := a.u.Apply(v).(*types.TypeVar); ok {
			v = applied
		}
		if err := a.u.Unify(v, a.fresh.FreshBounded(v.Name, bounds[id])); err != nil {
			return err
		}
	}
	return nil
}

// annotate writes the solved types into the tree
func (a *attempt) annotate() {
	for _, n := range a.typed {
		n.node.SetType(a.u.Apply(n.t))
	}
	for _, set := range a.impls {
		set()
	}
}

func closed(t types.Type) bool {
	return types.FreeVars(t).Size() == 0
}

func mismatch(at ast.Positioner, expected, actual types.Type, format string, args ...any) error {
	return ilerr.At(ilerr.New(ilerr.NewTypeMismatch{Expected: expected, Actual: actual, Reason: fmt.Sprintf(format, args...)}), at)
}

// builtins are the values every module can use without declaring them
var builtins = map[string]types.Type{
	"print": &types.Function{Params: []types.Param{{Type: types.ObjType}}, Return: types.NoneType},
	"len":   &types.Function{Params: []types.Param{{Type: types.ObjType}}, Return: types.NatType},
}

func (a *attempt) ident(e *ast.Ident, sc *scope) (types.Type, error) {
	if s, ok := sc.lookup(e.Name); ok {
		return s.Instantiate(a.fresh), nil
	}
	b, err := a.names.Resolve(e.Name)
	if err != nil {
		if t, ok := builtins[e.Name]; ok {
			return t, nil
		}
		if t, ok := builtinTypeValue(e.Name); ok {
			return t, nil
		}
		return nil, ilerr.At(err, e)
	}
	if a.owner != "" {
		a.names.DependOn(a.owner, e.Name)
	}
	switch b.Kind {
	case symbols.KindClass:
		return types.Singleton(types.TypeValue(&types.Primitive{Name: b.Name})), nil
	case symbols.KindTrait:
		return types.Singleton(types.TypeValue(&types.TraitRef{Name: b.Name})), nil
	case symbols.KindImpl:
		return nil, ilerr.At(ilerr.New(ilerr.NewNameNotFound{Name: e.Name, Reason: "an implementation is not a value"}), e)
	}
	if t, ok := a.provisional[b.Name]; ok {
		a.recursive.Add(b.Name)
		return t, nil
	}
	if b.Scheme != nil {
		return b.Scheme.Instantiate(a.fresh), nil
	}
	if d, ok := b.Decl.(*ast.Declaration); ok {
		o := a.Declaration(d)
		if o.Failed() {
			// the failure is reported on d, dependents still report their own errors
			return a.fresh.Fresh(b.Name), nil
		}
		return o.Scheme.Instantiate(a.fresh), nil
	}
	return nil, ilerr.At(ilerr.New(ilerr.NewNameNotFound{Name: e.Name, Reason: "it has no type"}), e)
}

func builtinTypeValue(name string) (types.Type, bool) {
	if subtype.IsBuiltinClass(name) || typeConstructors[name] {
		return types.Singleton(types.TypeValue(&types.Primitive{Name: name})), true
	}
	return nil, false
}

func (a *attempt) ifExpr(e *ast.If, sc *scope, expected types.Type) (types.Type, error) {
	cond, err := a.infer(e.Cond, sc)
	if err != nil {
		return nil, err
	}
	if err := a.u.Constrain(cond, types.BoolType); err != nil {
		return nil, ilerr.At(err, e.Cond)
	}
	then, err := a.check(e.Then, sc, expected)
	if err != nil {
		return nil, err
	}
	if e.Else == nil {
		return a.join(e, then, types.NoneType)
	}
	els, err := a.check(e.Else, sc, expected)
	if err != nil {
		return nil, err
	}
	return a.join(e, then, els)
}

func (a *attempt) block(e *ast.Block, sc *scope, expected types.Type) (types.Type, error) {
	local := sc.child()
	for _, d := range e.Decls {
		if d.Value == nil {
			return nil, ilerr.At(errors.Errorf("local '%s' has no value", d.Name), d)
		}
		var ann types.Type
		if d.TypeAnn != nil {
			t, err := a.LowerType(d.TypeAnn)
			if err != nil {
				return nil, ilerr.At(err, d.TypeAnn)
			}
			ann = t
		}
		self := ann
		if self == nil {
			self = a.fresh.Fresh(d.Name)
		}
		// functions may call themselves
		inner := local
		if isFunction(d.Value) {
			inner = local.child()
			inner.bind(d.Name, types.Mono(self))
		}
		t, err := a.check(d.Value, inner, ann)
		if err != nil {
			return nil, err
		}
		if ann != nil {
			err = a.subsume(d.Value, inner, t, ann)
		} else {
			err = ilerr.At(a.u.Unify(self, t), d.Value)
		}
		if err != nil {
			return nil, err
		}
		scheme := types.Mono(a.u.Apply(self))
		if isFunction(d.Value) && ann == nil {
			scheme = types.Generalize(scheme.Body, a.envFree(a, local))
		}
		local.bind(d.Name, scheme)
	}
	if e.Result == nil {
		return types.NoneType, nil
	}
	return a.check(e.Result, local, expected)
}

func (a *attempt) array(e *ast.ArrayLit, sc *scope) (types.Type, error) {
	elems := make([]types.Type, 0, len(e.Elems))
	for _, el := range e.Elems {
		t, err := a.infer(el, sc)
		if err != nil {
			return nil, err
		}
		elems = append(elems, t)
	}
	var elem types.Type = a.fresh.Fresh("elem")
	if len(elems) > 0 {
		joined, err := a.join(e, elems...)
		if err != nil {
			return nil, err
		}
		elem = joined
	}
	return &types.Poly{Name: "Array", Args: []types.Type{elem, types.Singleton(types.IntValue(int64(len(e.Elems))))}}, nil
}

// assert proves membership statically when it can. Otherwise the check is left to
// run time, which is never an error here
func (a *attempt) assert(e *ast.Assert, sc *scope) (types.Type, error) {
	vt, err := a.infer(e.Value, sc)
	if err != nil {
		return nil, err
	}
	against, err := a.LowerType(e.Against)
	if err != nil {
		return nil, ilerr.At(err, e.Against)
	}
	proven := false
	if v, ok := a.constant(e.Value, sc); ok {
		proven = rtcheck.Check(v, against)
	} else if applied := a.u.Apply(vt); closed(applied) && closed(against) {
		proven = a.u.Engine().IsSubtype(applied, against)
	}
	a.impls = append(a.impls, func() { e.NeedsRuntimeCheck = !proven })
	if !proven {
		a.logger.Debug("assertion left to run time", "expr", ast.Slog(e), "type", against)
	}
	return types.NoneType, nil
}

func (a *attempt) unaryOp(e *ast.UnaryOp, sc *scope) (types.Type, error) {
	t, err := a.infer(e.Operand, sc)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case token.NOT:
		if err := a.u.Constrain(t, types.BoolType); err != nil {
			return nil, ilerr.At(err, e.Operand)
		}
		return types.BoolType, nil
	case token.SUB:
		base := valueBase(a.u.Apply(t))
		if v, ok := base.(*types.TypeVar); ok {
			if err := a.u.Unify(v, types.IntType); err != nil {
				return nil, ilerr.At(err, e.Operand)
			}
			return types.IntType, nil
		}
		p, ok := base.(*types.Primitive)
		if !ok {
			return nil, mismatch(e.Operand, types.IntType, base, "'-' needs a number")
		}
		switch p.Name {
		case types.NatName:
			return types.IntType, nil
		case types.IntName, types.RatioName, types.FloatName:
			return p, nil
		}
		return nil, mismatch(e.Operand, types.IntType, base, "'-' needs a number")
	}
	return nil, ilerr.At(errors.Errorf("unsupported operator '%s'", e.Op), e)
}

// valueBase strips refinements, so that {I: Int | I < 10} resolves traits as Int
func valueBase(t types.Type) types.Type {
	if r, ok := types.Canonicalize(t).(*types.Refinement); ok {
		return r.Base
	}
	return t
}

func (a *attempt) lambda(e *ast.Lambda, sc *scope, expected types.Type) (types.Type, error) {
	exp, _ := expected.(*types.Function)
	fn := &types.Function{}
	body := sc.child()
	positional := 0
	for _, p := range e.Params {
		var pt types.Type
		switch {
		case p.TypeAnn != nil:
			t, err := a.LowerType(p.TypeAnn)
			if err != nil {
				return nil, ilerr.At(err, p.TypeAnn)
			}
			pt = t
		case exp != nil && !p.KwOnly && positional < len(exp.Params):
			pt = exp.Params[positional].Type
		case exp != nil && p.KwOnly:
			if kw, ok := findParam(exp.KwParams, p.Name); ok {
				pt = kw.Type
			}
		}
		if pt == nil {
			pt = a.fresh.Fresh(p.Name)
		}
		if p.Default != nil {
			dt, err := a.check(p.Default, sc, pt)
			if err != nil {
				return nil, err
			}
			if err := a.subsume(p.Default, sc, dt, pt); err != nil {
				return nil, err
			}
		}
		param := types.Param{Name: p.Name, Type: pt, HasDefault: p.Default != nil}
		if p.KwOnly {
			fn.KwParams = append(fn.KwParams, param)
		} else {
			fn.Params = append(fn.Params, param)
			positional++
		}
		body.bind(p.Name, types.Mono(pt))
	}

	var ret types.Type
	if e.Return != nil {
		t, err := a.LowerType(e.Return)
		if err != nil {
			return nil, ilerr.At(err, e.Return)
		}
		ret = t
	} else if exp != nil {
		ret = exp.Return
	}
	t, err := a.check(e.Body, body, ret)
	if err != nil {
		return nil, err
	}
	if ret != nil {
		if err := a.subsume(e.Body, body, t, ret); err != nil {
			return nil, err
		}
		fn.Return = ret
	} else {
		fn.Return = t
	}
	return fn, nil
}

func findParam(ps []types.Param, name string) (types.Param, bool) {
	for _, p := range ps {
		if p.Name != "" && p.Name == name {
			return p, true
		}
	}
	return types.Param{}, false
}

// join is the least type of ts that this checker can name: unrelated closed types
// become a union, open types are made equal
func (a *attempt) join(at ast.Positioner, ts ...types.Type) (types.Type, error) {
	var out types.Type
	for _, t := range ts {
		t = a.u.Apply(t)
		if out == nil {
			out = t
			continue
		}
		if !closed(out) || !closed(t) {
			if err := a.u.Unify(out, t); err != nil {
				return nil, ilerr.At(err, at)
			}
			out = a.u.Apply(out)
			continue
		}
		engine := a.u.Engine()
		switch {
		case engine.IsSubtype(t, out):
		case engine.IsSubtype(out, t):
			out = t
		default:
			out = &types.Or{Lhs: out, Rhs: t}
		}
	}
	return out, nil
}

// identNames lists the names e mentions
func identNames(e ast.Expr) []string {
	var names []string
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		switch e := e.(type) {
		case *ast.Ident:
			names = append(names, e.Name)
		case *ast.BinOp:
			walk(e.Lhs)
			walk(e.Rhs)
		case *ast.UnaryOp:
			walk(e.Operand)
		case *ast.Call:
			walk(e.Func)
			for _, arg := range e.Args {
				walk(arg)
			}
			for _, kw := range e.KwArgs {
				walk(kw.Value)
			}
		case *ast.Attr:
			walk(e.Receiver)
		case *ast.If:
			walk(e.Cond)
			walk(e.Then)
			if e.Else != nil {
				walk(e.Else)
			}
		case *ast.ArrayLit:
			for _, el := range e.Elems {
				walk(el)
			}
		case *ast.RecordLit:
			for _, f := range e.Fields {
				walk(f.Value)
			}
		}
	}
	walk(e)
	return names
}

func contains(names []string, name string) bool {
	return slices.Contains(names, name)
}
