package infer

import (
	"slices"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/consteval"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/types"
)

// patternFunc checks every arm on its own, so that the errors of several arms are
// reported together, then proves that the arms cover the domain
func (a *attempt) patternFunc(e *ast.PatternFunc, sc *scope, expected types.Type) (types.Type, error) {
	if len(e.Arms) == 0 {
		return nil, mismatch(e, &types.Function{Return: types.ObjType}, types.NeverType, "a pattern function needs at least one arm")
	}
	arity := len(e.Arms[0].Patterns)
	for _, arm := range e.Arms[1:] {
		if len(arm.Patterns) != arity {
			return nil, mismatch(arm, arityShape(arity), arityShape(len(arm.Patterns)),
				"every arm takes %d arguments, this one takes %d", arity, len(arm.Patterns))
		}
	}
	exp, _ := expected.(*types.Function)
	if exp != nil && len(exp.Params) != arity {
		return nil, mismatch(e, exp, arityShape(arity), "expected %d parameters, the arms take %d", len(exp.Params), arity)
	}

	regions := make([][]types.Type, len(e.Arms))
	for i, arm := range e.Arms {
		regions[i] = make([]types.Type, arity)
		for j, p := range arm.Patterns {
			r, err := a.region(p)
			if err != nil {
				return nil, err
			}
			regions[i][j] = r
		}
	}

	domain := make([]types.Type, arity)
	for j := range domain {
		if exp != nil {
			domain[j] = exp.Params[j].Type
			continue
		}
		var bases []types.Type
		for i := range e.Arms {
			if r := regions[i][j]; r != nil {
				bases = append(bases, valueBase(r))
			}
		}
		if len(bases) == 0 {
			domain[j] = a.fresh.Fresh("p")
			continue
		}
		d, err := a.join(e, bases...)
		if err != nil {
			return nil, err
		}
		domain[j] = d
	}

	if err := a.matchable(e, domain, regions); err != nil {
		return nil, err
	}

	var ret types.Type
	if exp != nil {
		ret = exp.Return
	}
	var errs *ilerr.Errors
	var results []types.Type
	for i, arm := range e.Arms {
		t, err := a.arm(arm, sc, domain, regions[i], ret)
		if err != nil {
			errs = errs.Merge(batch(err, arm))
			continue
		}
		results = append(results, t)
	}
	if errs.HasError() {
		return nil, errs
	}

	if err := a.cover(e, domain, regions, false); err != nil {
		return nil, err
	}

	if ret == nil {
		joined, err := a.join(e, results...)
		if err != nil {
			return nil, err
		}
		ret = joined
	}
	fn := &types.Function{Return: ret}
	for _, d := range domain {
		fn.Params = append(fn.Params, types.Param{Type: d})
	}
	a.recordImpl(func() {
		proof := &ast.Proof{Domain: a.u.Apply(tuple(domain))}
		for _, arm := range regions {
			covered := make([]types.Type, len(arm))
			for j, r := range arm {
				if r == nil {
					r = a.u.Apply(domain[j])
				}
				covered[j] = r
			}
			proof.Regions = append(proof.Regions, covered)
		}
		e.Proof = proof
	})
	return fn, nil
}

// region is the part of the domain a pattern matches, nil when it matches anything
func (a *attempt) region(p ast.Pattern) (types.Type, error) {
	var ann ast.TypeExpr
	switch p := p.(type) {
	case *ast.LitPattern:
		v, err := consteval.LiteralValue(p.Literal)
		if err != nil {
			return nil, ilerr.At(err, p)
		}
		return types.Singleton(v), nil
	case *ast.VarPattern:
		ann = p.TypeAnn
	case *ast.WildcardPattern:
		ann = p.TypeAnn
	}
	if ann == nil {
		return nil, nil
	}
	t, err := a.LowerType(ann)
	if err != nil {
		return nil, ilerr.At(err, ann)
	}
	return t, nil
}

// arm checks one arm in a fork of the attempt, and adopts what it learnt on success
func (a *attempt) arm(arm *ast.Arm, sc *scope, domain, regions []types.Type, ret types.Type) (types.Type, error) {
	f := a.fork()
	local := sc.child()
	for j, p := range arm.Patterns {
		var name string
		switch p := p.(type) {
		case *ast.VarPattern:
			name = p.Name
		case *ast.LitPattern:
			f.typed = append(f.typed, typedNode{node: p.Literal, t: regions[j]})
		}
		t := domain[j]
		if regions[j] != nil {
			t = regions[j]
		}
		local.bind(name, types.Mono(t))
	}
	t, err := f.check(arm.Body, local, ret)
	if err != nil {
		return nil, err
	}
	if ret != nil {
		if err := f.subsume(arm.Body, local, t, ret); err != nil {
			return nil, err
		}
	}
	if err := a.merge(f); err != nil {
		return nil, ilerr.At(err, arm.Body)
	}
	return t, nil
}

// coverage is a pattern function whose domain was still open when it was met
type coverage struct {
	node    *ast.PatternFunc
	domain  []types.Type
	regions [][]types.Type
}

// cover proves that every pattern can match and that the arms cover domain. While a
// position of the domain is open the proof waits for finish, which passes final: a
// domain that is open even then is not covered by refutable patterns
func (a *attempt) cover(e *ast.PatternFunc, domain []types.Type, regions [][]types.Type, final bool) error {
	for j := range domain {
		domain[j] = a.u.Apply(domain[j])
	}
	if err := a.matchable(e, domain, regions); err != nil {
		return err
	}
	for _, arm := range regions {
		if irrefutable(arm, -1) {
			return nil
		}
	}
	open := false
	for _, d := range domain {
		open = open || !closed(d)
	}
	if open && !final {
		if !slices.ContainsFunc(a.coverage, func(c *coverage) bool { return c.node == e }) {
			a.coverage = append(a.coverage, &coverage{node: e, domain: domain, regions: regions})
		}
		return nil
	}
	missing := slices.Clone(domain)
	if !open {
		var ok bool
		if missing, ok = a.missing(domain, regions); ok {
			return nil
		}
	}
	return ilerr.At(ilerr.New(ilerr.NewNonExhaustivePattern{Domain: tuple(domain), Missing: missing}), e)
}

// matchable rejects patterns outside the closed positions of domain
func (a *attempt) matchable(e *ast.PatternFunc, domain []types.Type, regions [][]types.Type) error {
	engine := a.u.Engine()
	for i, arm := range e.Arms {
		for j, p := range arm.Patterns {
			r := regions[i][j]
			if r == nil || !closed(domain[j]) {
				continue
			}
			if !engine.IsSubtype(r, domain[j]) {
				return mismatch(p, domain[j], r, "the pattern can never match")
			}
		}
	}
	return nil
}

// missing reports whether the arms cover the closed domain, and otherwise which part
// of it no arm matches. With several parameters only the cases decidable one position
// at a time are accepted
func (a *attempt) missing(domain []types.Type, regions [][]types.Type) ([]types.Type, bool) {
	engine := a.u.Engine()
	missing := make([]types.Type, len(domain))
	for j, d := range domain {
		var cover []types.Type
		for _, arm := range regions {
			if !irrefutable(arm, j) {
				continue
			}
			if arm[j] == nil {
				cover = append(cover, d)
			} else {
				cover = append(cover, arm[j])
			}
		}
		rest := engine.Missing(d, cover...)
		if engine.IsEmpty(rest) {
			return nil, true
		}
		missing[j] = rest
	}
	return missing, false
}

// irrefutable reports whether every pattern of arm but the one at except matches anything
func irrefutable(arm []types.Type, except int) bool {
	for j, r := range arm {
		if j != except && r != nil {
			return false
		}
	}
	return true
}

// tuple is the domain of a function of several parameters
func tuple(ts []types.Type) types.Type {
	if len(ts) == 1 {
		return ts[0]
	}
	return &types.Poly{Name: "Tuple", Args: ts}
}

func arityShape(n int) *types.Function {
	fn := &types.Function{Return: types.ObjType}
	for range n {
		fn.Params = append(fn.Params, types.Param{Type: types.ObjType})
	}
	return fn
}
