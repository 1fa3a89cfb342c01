// Package consteval evaluates the constant-computable subset of expressions at
// compile time, for refinement predicates and dependent array lengths.
package consteval

import (
	"fmt"
	"go/token"
	"log/slog"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/subtype"
	"github.com/cottand/typecore/frontend/symbols"
	"github.com/cottand/typecore/frontend/types"
	"github.com/cottand/typecore/internal/config"
	"github.com/cottand/typecore/internal/log"
	"github.com/cottand/typecore/internal/metrics"
)

// typeConstructors are the generic built-in types a call can construct, as Array(Int, 3)
var typeConstructors = map[string]bool{"Array": true, "List": true, "Set": true, "Dict": true}

// TypeLowering turns a type annotation into a type, for type-construction expressions
type TypeLowering func(ast.TypeExpr) (types.Type, error)

// Evaluator computes constants. Names resolve through the symbol table, and only
// declarations marked constant may be evaluated
type Evaluator struct {
	names symbols.Resolver
	types TypeLowering
	fuel  int

	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(names symbols.Resolver, opts config.Options, m *metrics.Metrics) *Evaluator {
	if m == nil {
		m = metrics.Discard()
	}
	return &Evaluator{
		names:   names,
		fuel:    opts.ConstEvalFuel,
		logger:  log.Section(log.SectionConstEval),
		metrics: m,
	}
}

// WithTypes returns an evaluator that can evaluate type literals
func (e *Evaluator) WithTypes(lower TypeLowering) *Evaluator {
	c := *e
	c.types = lower
	return &c
}

// WithNames returns an evaluator resolving names in another scope
func (e *Evaluator) WithNames(names symbols.Resolver) *Evaluator {
	c := *e
	c.names = names
	return &c
}

// Eval computes expr, or fails with NotConstantComputable
func (e *Evaluator) Eval(expr ast.Expr) (types.Value, error) {
	r := &run{Evaluator: e, fuel: e.fuel}
	v, err := r.eval(expr, nil)
	e.metrics.ConstEvaluations.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		e.logger.Debug("not constant", "expr", ast.Slog(expr), "reason", err)
		return types.Value{}, err
	}
	e.logger.Debug("evaluated", "expr", ast.Slog(expr), "value", v)
	return v, nil
}

// IsConstant reports whether expr can be computed at compile time
func (e *Evaluator) IsConstant(expr ast.Expr) bool {
	r := &run{Evaluator: e, fuel: e.fuel}
	_, err := r.eval(expr, nil)
	return err == nil
}

// frame holds the values of parameters and block-local declarations
type frame struct {
	parent *frame
	values map[string]types.Value
}

func (f *frame) lookup(name string) (types.Value, bool) {
	for ; f != nil; f = f.parent {
		if v, ok := f.values[name]; ok {
			return v, true
		}
	}
	return types.Value{}, false
}

func (f *frame) child() *frame {
	return &frame{parent: f, values: make(map[string]types.Value)}
}

// run is one evaluation, with its own fuel
type run struct {
	*Evaluator
	fuel int
}

func notConstant(at ast.Positioner, format string, args ...any) error {
	return ilerr.At(ilerr.New(ilerr.NewNotConstantComputable{Reason: fmt.Sprintf(format, args...)}), at)
}

func (r *run) spend(at ast.Positioner) error {
	if r.fuel <= 0 {
		return notConstant(at, "evaluation did not finish within %d steps", r.Evaluator.fuel)
	}
	r.fuel--
	return nil
}

func (r *run) eval(expr ast.Expr, env *frame) (types.Value, error) {
	switch expr := expr.(type) {
	case *ast.Literal:
		v, err := LiteralValue(expr)
		if err != nil {
			return types.Value{}, notConstant(expr, "%v", err)
		}
		return v, nil
	case *ast.Ident:
		return r.ident(expr, env)
	case *ast.BinOp:
		return r.binOp(expr, env)
	case *ast.UnaryOp:
		v, err := r.eval(expr.Operand, env)
		if err != nil {
			return types.Value{}, err
		}
		switch expr.Op {
		case token.SUB:
			if v, err = negate(v); err != nil {
				return types.Value{}, notConstant(expr, "%v", err)
			}
			return v, nil
		case token.NOT:
			b, ok := v.Bool()
			if !ok {
				return types.Value{}, notConstant(expr, "'not' of %s", v.Kind)
			}
			return types.BoolValue(!b), nil
		}
		return types.Value{}, notConstant(expr, "unsupported operator '%s'", expr.Op)
	case *ast.If:
		cond, err := r.eval(expr.Cond, env)
		if err != nil {
			return types.Value{}, err
		}
		b, ok := cond.Bool()
		if !ok {
			return types.Value{}, notConstant(expr.Cond, "condition is a %s", cond.Kind)
		}
		if b {
			return r.eval(expr.Then, env)
		}
		return r.eval(expr.Else, env)
	case *ast.Block:
		local := env.child()
		for _, d := range expr.Decls {
			if d.Value == nil {
				return types.Value{}, notConstant(d, "'%s' has no value", d.Name)
			}
			v, err := r.eval(d.Value, local)
			if err != nil {
				return types.Value{}, err
			}
			local.values[d.Name] = v
		}
		return r.eval(expr.Result, local)
	case *ast.Call:
		return r.call(expr, env)
	case *ast.TypeLit:
		if r.types == nil {
			return types.Value{}, notConstant(expr, "types cannot be evaluated here")
		}
		t, err := r.types(expr.TypeExpr)
		if err != nil {
			return types.Value{}, err
		}
		return types.TypeValue(t), nil
	case nil:
		return types.Value{}, notConstant(nil, "missing expression")
	}
	return types.Value{}, notConstant(expr, "'%s' is not constant-computable", ast.ExprString(expr))
}

func (r *run) ident(expr *ast.Ident, env *frame) (types.Value, error) {
	if v, ok := env.lookup(expr.Name); ok {
		return v, nil
	}
	b, err := r.names.Resolve(expr.Name)
	if err != nil {
		if t, ok := builtinType(expr.Name); ok {
			return types.TypeValue(t), nil
		}
		return types.Value{}, ilerr.At(err, expr)
	}
	switch b.Kind {
	case symbols.KindConst:
		if b.Value == nil {
			return types.Value{}, notConstant(expr, "'%s' has no body", expr.Name)
		}
		if err := r.spend(expr); err != nil {
			return types.Value{}, err
		}
		return r.eval(b.Value, nil)
	case symbols.KindClass:
		return types.TypeValue(&types.Primitive{Name: b.Name}), nil
	case symbols.KindExtern:
		return types.Value{}, notConstant(expr, "'%s' is external and not marked constant", expr.Name)
	}
	return types.Value{}, notConstant(expr, "'%s' is not a constant", expr.Name)
}

func builtinType(name string) (types.Type, bool) {
	if subtype.IsBuiltinClass(name) || typeConstructors[name] {
		return &types.Primitive{Name: name}, true
	}
	return nil, false
}

func (r *run) binOp(expr *ast.BinOp, env *frame) (types.Value, error) {
	lhs, err := r.eval(expr.Lhs, env)
	if err != nil {
		return types.Value{}, err
	}
	// and, or short-circuit
	if expr.Op == token.LAND || expr.Op == token.LOR {
		l, ok := lhs.Bool()
		if !ok {
			return types.Value{}, notConstant(expr.Lhs, "operand of '%s' is a %s", expr.Op, lhs.Kind)
		}
		if l == (expr.Op == token.LOR) {
			return lhs, nil
		}
		rhs, err := r.eval(expr.Rhs, env)
		if err != nil {
			return types.Value{}, err
		}
		if _, ok := rhs.Bool(); !ok {
			return types.Value{}, notConstant(expr.Rhs, "operand of '%s' is a %s", expr.Op, rhs.Kind)
		}
		return rhs, nil
	}
	rhs, err := r.eval(expr.Rhs, env)
	if err != nil {
		return types.Value{}, err
	}
	var v types.Value
	if isComparison(expr.Op) {
		v, err = Compare(expr.Op, lhs, rhs)
	} else {
		v, err = Arithmetic(expr.Op, lhs, rhs)
	}
	if err != nil {
		return types.Value{}, notConstant(expr, "%v", err)
	}
	return v, nil
}

func (r *run) call(expr *ast.Call, env *frame) (types.Value, error) {
	if err := r.spend(expr); err != nil {
		return types.Value{}, err
	}
	if id, ok := expr.Func.(*ast.Ident); ok && id.Name == "len" {
		return r.length(expr, env)
	}
	if id, ok := expr.Func.(*ast.Ident); ok {
		if _, local := env.lookup(id.Name); !local {
			if b, err := r.names.Resolve(id.Name); err == nil && b.Kind == symbols.KindConst {
				return r.apply(expr, b, env)
			}
		}
	}
	callee, err := r.eval(expr.Func, env)
	if err != nil {
		return types.Value{}, err
	}
	ctor, ok := callee.TypeOf()
	if !ok {
		return types.Value{}, notConstant(expr.Func, "%s cannot be called", callee.Kind)
	}
	return r.construct(expr, ctor, env)
}

// construct applies a type constructor. Type arguments stay types, others become singletons
func (r *run) construct(expr *ast.Call, ctor types.Type, env *frame) (types.Value, error) {
	p, ok := ctor.(*types.Primitive)
	if !ok {
		return types.Value{}, notConstant(expr.Func, "'%v' is not a type constructor", ctor)
	}
	args := make([]types.Type, len(expr.Args))
	for i, a := range expr.Args {
		v, err := r.eval(a, env)
		if err != nil {
			return types.Value{}, err
		}
		if t, ok := v.TypeOf(); ok {
			args[i] = t
		} else {
			args[i] = types.Singleton(v)
		}
	}
	return types.TypeValue(&types.Poly{Name: p.Name, Args: args}), nil
}

// length answers len(xs) for arrays whose size is known
func (r *run) length(expr *ast.Call, env *frame) (types.Value, error) {
	if len(expr.Args) != 1 {
		return types.Value{}, notConstant(expr, "len takes one argument")
	}
	arg := expr.Args[0]
	for {
		id, ok := arg.(*ast.Ident)
		if !ok {
			break
		}
		b, err := r.names.Resolve(id.Name)
		if err != nil || b.Kind != symbols.KindConst || b.Value == nil {
			break
		}
		arg = b.Value
	}
	if arr, ok := arg.(*ast.ArrayLit); ok {
		return types.IntValue(int64(len(arr.Elems))), nil
	}
	// an argument typed as a sized array
	if t := arg.Type(); t != nil {
		if n, ok := ArrayLength(t); ok {
			return n, nil
		}
	}
	return types.Value{}, notConstant(expr, "the length of '%s' is not known", ast.ExprString(arg))
}

// ArrayLength reads N out of Array(T, N) when N is a singleton
func ArrayLength(t types.Type) (types.Value, bool) {
	p, ok := t.(*types.Poly)
	if !ok || p.Name != "Array" || len(p.Args) != 2 {
		return types.Value{}, false
	}
	ref, ok := types.Canonicalize(p.Args[1]).(*types.Refinement)
	if !ok {
		return types.Value{}, false
	}
	values, ok := types.EnumValues(ref)
	if !ok || len(values) != 1 {
		return types.Value{}, false
	}
	return values[0], true
}

// apply calls a constant function with constant arguments
func (r *run) apply(expr *ast.Call, b *symbols.Binding, env *frame) (types.Value, error) {
	args := make([]types.Value, len(expr.Args))
	for i, a := range expr.Args {
		v, err := r.eval(a, env)
		if err != nil {
			return types.Value{}, err
		}
		args[i] = v
	}
	kwargs := make(map[string]types.Value, len(expr.KwArgs))
	for _, kw := range expr.KwArgs {
		v, err := r.eval(kw.Value, env)
		if err != nil {
			return types.Value{}, err
		}
		kwargs[kw.Name] = v
	}
	switch fn := b.Value.(type) {
	case *ast.Lambda:
		return r.applyLambda(expr, fn, args, kwargs)
	case *ast.PatternFunc:
		if len(kwargs) > 0 {
			return types.Value{}, notConstant(expr, "pattern functions take no keyword arguments")
		}
		return r.applyArms(expr, fn, args)
	}
	return types.Value{}, notConstant(expr, "'%s' is not a function", b.Name)
}

func (r *run) applyLambda(expr *ast.Call, fn *ast.Lambda, args []types.Value, kwargs map[string]types.Value) (types.Value, error) {
	// parameters are evaluated in a fresh frame: constant functions do not close over locals
	local := (*frame)(nil).child()
	i := 0
	for _, p := range fn.Params {
		switch {
		case !p.KwOnly && i < len(args):
			local.values[p.Name] = args[i]
			i++
		case kwargs[p.Name].IsValid():
			local.values[p.Name] = kwargs[p.Name]
		case p.Default != nil:
			v, err := r.eval(p.Default, local)
			if err != nil {
				return types.Value{}, err
			}
			local.values[p.Name] = v
		default:
			return types.Value{}, notConstant(expr, "missing argument '%s'", p.Name)
		}
	}
	if i < len(args) {
		return types.Value{}, notConstant(expr, "too many arguments")
	}
	return r.eval(fn.Body, local)
}

func (r *run) applyArms(expr *ast.Call, fn *ast.PatternFunc, args []types.Value) (types.Value, error) {
	for _, arm := range fn.Arms {
		if len(arm.Patterns) != len(args) {
			continue
		}
		local, ok, err := r.matchArm(arm, args)
		if err != nil {
			return types.Value{}, err
		}
		if ok {
			return r.eval(arm.Body, local)
		}
	}
	return types.Value{}, notConstant(expr, "no arm matches the arguments")
}

func (r *run) matchArm(arm *ast.Arm, args []types.Value) (*frame, bool, error) {
	local := (*frame)(nil).child()
	for i, p := range arm.Patterns {
		switch p := p.(type) {
		case *ast.LitPattern:
			want, err := LiteralValue(p.Literal)
			if err != nil {
				return nil, false, notConstant(p, "%v", err)
			}
			if !types.ValueEqual(want, args[i]) {
				return nil, false, nil
			}
		case *ast.VarPattern:
			if p.TypeAnn != nil {
				return nil, false, notConstant(p, "typed patterns are not evaluated at compile time")
			}
			local.values[p.Name] = args[i]
		case *ast.WildcardPattern:
			if p.TypeAnn != nil {
				return nil, false, notConstant(p, "typed patterns are not evaluated at compile time")
			}
		}
	}
	return local, true, nil
}
