package cmd

import (
	"go/token"
	"os"
	"strconv"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/internal/config"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Fixture stands in for source files: it spells out the syntax tree of each module
// in YAML. Plain scalars are identifiers, quoted scalars are strings, and mappings
// with a single key build the other nodes, as in
//
//	modules:
//	  - name: main
//	    decls:
//	      - value: two
//	        type: Nat
//	        is: {bin: [1, +, 1]}
//	queries:
//	  - module: main
//	    expr: {bin: [two, /, 3]}
type Fixture struct {
	// Options override the configuration the fixture is checked with
	Options yaml.Node       `yaml:"options"`
	Modules []fixtureModule `yaml:"modules"`
	Queries []fixtureQuery  `yaml:"queries"`
}

type fixtureModule struct {
	Name  string      `yaml:"name"`
	Decls []yaml.Node `yaml:"decls"`
}

type fixtureQuery struct {
	Module string    `yaml:"module"`
	Expr   yaml.Node `yaml:"expr"`
}

// Query is an expression to infer once its module is checked
type Query struct {
	Module string
	Expr   ast.Expr
}

// LoadFixture reads the fixture at path, and applies its options over opts
func LoadFixture(path string, opts config.Options) ([]*ast.Module, []Query, config.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, opts, errors.Wrapf(err, "could not read fixture %s", path)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, opts, errors.Wrapf(err, "could not parse fixture %s", path)
	}
	if !f.Options.IsZero() {
		if err := f.Options.Decode(&opts); err != nil {
			return nil, nil, opts, errors.Wrap(err, "invalid options")
		}
		if err := opts.Validate(); err != nil {
			return nil, nil, opts, err
		}
	}

	modules := make([]*ast.Module, 0, len(f.Modules))
	for _, m := range f.Modules {
		mod := &ast.Module{Name: m.Name}
		for i := range m.Decls {
			d, err := decl(&m.Decls[i])
			if err != nil {
				return nil, nil, opts, errors.Wrapf(err, "in module %s", m.Name)
			}
			mod.Decls = append(mod.Decls, d)
		}
		modules = append(modules, mod)
	}
	queries := make([]Query, 0, len(f.Queries))
	for _, q := range f.Queries {
		e, err := expr(&q.Expr)
		if err != nil {
			return nil, nil, opts, errors.Wrapf(err, "in query on %s", q.Module)
		}
		queries = append(queries, Query{Module: q.Module, Expr: e})
	}
	return modules, queries, opts, nil
}

// span positions nodes by line, which is all a fixture can tell
func span(n *yaml.Node) ast.Range { return ast.Span(n.Line, n.Line) }

func errorAt(n *yaml.Node, format string, args ...any) error {
	return errors.Errorf("line %d: "+format, append([]any{n.Line}, args...)...)
}

// entries lists the keys of a mapping in order, with their values
func entries(n *yaml.Node) ([]string, map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, nil, errorAt(n, "expected a mapping")
	}
	keys := make([]string, 0, len(n.Content)/2)
	values := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i].Value
		keys = append(keys, k)
		values[k] = n.Content[i+1]
	}
	return keys, values, nil
}

// single reads the one-key mapping that tags a node
func single(n *yaml.Node) (string, *yaml.Node, error) {
	keys, values, err := entries(n)
	if err != nil {
		return "", nil, err
	}
	if len(keys) != 1 {
		return "", nil, errorAt(n, "expected a single key, found %v", keys)
	}
	return keys[0], values[keys[0]], nil
}

// items reads a list of at least lo items, and at most hi unless hi is negative
func items(n *yaml.Node, lo, hi int) ([]*yaml.Node, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, errorAt(n, "expected a list")
	}
	if len(n.Content) < lo || (hi >= 0 && len(n.Content) > hi) {
		return nil, errorAt(n, "expected %d to %d items, found %d", lo, hi, len(n.Content))
	}
	return n.Content, nil
}

func names(n *yaml.Node) ([]string, error) {
	if n == nil {
		return nil, nil
	}
	var out []string
	return out, errors.Wrapf(n.Decode(&out), "line %d", n.Line)
}

func flag(n *yaml.Node) (bool, error) {
	if n == nil {
		return false, nil
	}
	var b bool
	return b, errors.Wrapf(n.Decode(&b), "line %d", n.Line)
}

func decl(n *yaml.Node) (ast.Decl, error) {
	_, f, err := entries(n)
	if err != nil {
		return nil, err
	}
	switch {
	case f["value"] != nil:
		d := &ast.Declaration{Range: span(n), Name: f["value"].Value}
		if d.Const, err = flag(f["const"]); err != nil {
			return nil, err
		}
		if d.Extern, err = flag(f["extern"]); err != nil {
			return nil, err
		}
		if t := f["type"]; t != nil {
			if d.TypeAnn, err = typeExpr(t); err != nil {
				return nil, err
			}
		}
		if v := f["is"]; v != nil {
			if d.Value, err = expr(v); err != nil {
				return nil, err
			}
		}
		return d, nil
	case f["trait"] != nil:
		return trait(n, f)
	case f["class"] != nil:
		d := &ast.ClassDecl{Range: span(n), Name: f["class"].Value}
		if d.Supers, err = names(f["supers"]); err != nil {
			return nil, err
		}
		if a := f["attrs"]; a != nil {
			if d.Attrs, err = attrs(a, false); err != nil {
				return nil, err
			}
		}
		return d, nil
	case f["impl"] != nil:
		return impl(n, f)
	}
	return nil, errorAt(n, "a declaration needs one of value, trait, class or impl")
}

func trait(n *yaml.Node, f map[string]*yaml.Node) (*ast.TraitDecl, error) {
	d := &ast.TraitDecl{Range: span(n), Name: f["trait"].Value}
	var err error
	if d.Params, err = names(f["params"]); err != nil {
		return nil, err
	}
	if d.Structural, err = flag(f["structural"]); err != nil {
		return nil, err
	}
	for _, key := range []string{"requires", "overrides"} {
		if r := f[key]; r != nil {
			required, err := attrs(r, key == "overrides")
			if err != nil {
				return nil, err
			}
			d.Required = append(d.Required, required...)
		}
	}
	if d.Includes, err = typeList(f["includes"]); err != nil {
		return nil, err
	}
	if d.Excludes, err = typeList(f["excludes"]); err != nil {
		return nil, err
	}
	return d, nil
}

func impl(n *yaml.Node, f map[string]*yaml.Node) (*ast.ImplDecl, error) {
	d := &ast.ImplDecl{Range: span(n)}
	var err error
	if d.Trait, err = typeExpr(f["impl"]); err != nil {
		return nil, err
	}
	if f["for"] == nil {
		return nil, errorAt(n, "an impl needs a 'for' target")
	}
	if d.Target, err = typeExpr(f["for"]); err != nil {
		return nil, err
	}
	if d.Params, err = names(f["params"]); err != nil {
		return nil, err
	}
	if t := f["types"]; t != nil {
		keys, values, err := entries(t)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			te, err := typeExpr(values[k])
			if err != nil {
				return nil, err
			}
			d.Bindings = append(d.Bindings, &ast.ImplBinding{Range: span(values[k]), Name: k, TypeValue: te})
		}
	}
	if b := f["bind"]; b != nil {
		keys, values, err := entries(b)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			e, err := expr(values[k])
			if err != nil {
				return nil, err
			}
			d.Bindings = append(d.Bindings, &ast.ImplBinding{Range: span(values[k]), Name: k, Value: e})
		}
	}
	return d, nil
}

func attrs(n *yaml.Node, override bool) ([]*ast.AttrDecl, error) {
	keys, values, err := entries(n)
	if err != nil {
		return nil, err
	}
	out := make([]*ast.AttrDecl, 0, len(keys))
	for _, k := range keys {
		t, err := typeExpr(values[k])
		if err != nil {
			return nil, err
		}
		out = append(out, &ast.AttrDecl{Range: span(values[k]), Name: k, Type: t, Override: override})
	}
	return out, nil
}

var operators = map[string]token.Token{
	"+": token.ADD, "-": token.SUB, "*": token.MUL, "/": token.QUO,
	"==": token.EQL, "!=": token.NEQ, "<": token.LSS, "<=": token.LEQ, ">": token.GTR, ">=": token.GEQ,
	"and": token.LAND, "or": token.LOR,
}

func operator(n *yaml.Node) (token.Token, error) {
	op, ok := operators[n.Value]
	if !ok {
		return token.ILLEGAL, errorAt(n, "unknown operator %q", n.Value)
	}
	return op, nil
}

func expr(n *yaml.Node) (ast.Expr, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return scalar(n), nil
	case yaml.MappingNode:
	default:
		return nil, errorAt(n, "expected an expression")
	}
	key, v, err := single(n)
	if err != nil {
		return nil, err
	}
	rng := span(n)
	switch key {
	case "str":
		return &ast.Literal{Range: rng, Kind: ast.LitStr, Text: strconv.Quote(v.Value)}, nil
	case "bin":
		parts, err := items(v, 3, 3)
		if err != nil {
			return nil, err
		}
		op, err := operator(parts[1])
		if err != nil {
			return nil, err
		}
		lhs, err := expr(parts[0])
		if err != nil {
			return nil, err
		}
		rhs, err := expr(parts[2])
		if err != nil {
			return nil, err
		}
		return &ast.BinOp{Range: rng, Op: op, Lhs: lhs, Rhs: rhs}, nil
	case "neg", "not":
		operand, err := expr(v)
		if err != nil {
			return nil, err
		}
		op := token.SUB
		if key == "not" {
			op = token.NOT
		}
		return &ast.UnaryOp{Range: rng, Op: op, Operand: operand}, nil
	case "call":
		return callExpr(v)
	case "attr":
		_, f, err := entries(v)
		if err != nil {
			return nil, err
		}
		if f["of"] == nil || f["name"] == nil {
			return nil, errorAt(v, "an attribute needs 'of' and 'name'")
		}
		a := &ast.Attr{Range: rng, Name: f["name"].Value}
		if a.Receiver, err = expr(f["of"]); err != nil {
			return nil, err
		}
		if q := f["via"]; q != nil {
			if a.Qualifier, err = typeExpr(q); err != nil {
				return nil, err
			}
		}
		return a, nil
	case "fn":
		return lambda(v)
	case "match":
		return patternFunc(v)
	case "if":
		parts, err := items(v, 2, 3)
		if err != nil {
			return nil, err
		}
		es, err := exprs(parts)
		if err != nil {
			return nil, err
		}
		e := &ast.If{Range: rng, Cond: es[0], Then: es[1]}
		if len(es) == 3 {
			e.Else = es[2]
		}
		return e, nil
	case "let":
		return block(v)
	case "array":
		parts, err := items(v, 0, -1)
		if err != nil {
			return nil, err
		}
		es, err := exprs(parts)
		if err != nil {
			return nil, err
		}
		return &ast.ArrayLit{Range: rng, Elems: es}, nil
	case "record":
		keys, values, err := entries(v)
		if err != nil {
			return nil, err
		}
		r := &ast.RecordLit{Range: rng}
		for _, k := range keys {
			e, err := expr(values[k])
			if err != nil {
				return nil, err
			}
			r.Fields = append(r.Fields, ast.RecordField{Name: k, Value: e})
		}
		return r, nil
	case "assert":
		_, f, err := entries(v)
		if err != nil {
			return nil, err
		}
		if f["value"] == nil || f["in"] == nil {
			return nil, errorAt(v, "an assertion needs 'value' and 'in'")
		}
		a := &ast.Assert{Range: rng}
		if a.Value, err = expr(f["value"]); err != nil {
			return nil, err
		}
		if a.Against, err = typeExpr(f["in"]); err != nil {
			return nil, err
		}
		return a, nil
	case "type":
		t, err := typeExpr(v)
		if err != nil {
			return nil, err
		}
		return &ast.TypeLit{Range: rng, TypeExpr: t}, nil
	}
	return nil, errorAt(n, "unknown expression %q", key)
}

func scalar(n *yaml.Node) ast.Expr {
	rng := span(n)
	switch n.Tag {
	case "!!int":
		return &ast.Literal{Range: rng, Kind: ast.LitInt, Text: n.Value}
	case "!!float":
		return &ast.Literal{Range: rng, Kind: ast.LitFloat, Text: n.Value}
	case "!!bool":
		return &ast.Literal{Range: rng, Kind: ast.LitBool, Text: n.Value}
	case "!!null":
		return &ast.Literal{Range: rng, Kind: ast.LitNone, Text: "None"}
	}
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		return &ast.Literal{Range: rng, Kind: ast.LitStr, Text: strconv.Quote(n.Value)}
	}
	return &ast.Ident{Range: rng, Name: n.Value}
}

func exprs(ns []*yaml.Node) ([]ast.Expr, error) {
	out := make([]ast.Expr, 0, len(ns))
	for _, n := range ns {
		e, err := expr(n)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func callExpr(n *yaml.Node) (ast.Expr, error) {
	_, f, err := entries(n)
	if err != nil {
		return nil, err
	}
	if f["fn"] == nil {
		return nil, errorAt(n, "a call needs 'fn'")
	}
	c := &ast.Call{Range: span(n)}
	if c.Func, err = expr(f["fn"]); err != nil {
		return nil, err
	}
	if a := f["args"]; a != nil {
		parts, err := items(a, 0, -1)
		if err != nil {
			return nil, err
		}
		if c.Args, err = exprs(parts); err != nil {
			return nil, err
		}
	}
	if kw := f["kwargs"]; kw != nil {
		keys, values, err := entries(kw)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			e, err := expr(values[k])
			if err != nil {
				return nil, err
			}
			c.KwArgs = append(c.KwArgs, ast.KwArg{Range: span(values[k]), Name: k, Value: e})
		}
	}
	return c, nil
}

func lambda(n *yaml.Node) (ast.Expr, error) {
	_, f, err := entries(n)
	if err != nil {
		return nil, err
	}
	if f["body"] == nil {
		return nil, errorAt(n, "a function needs a 'body'")
	}
	l := &ast.Lambda{Range: span(n)}
	if ps := f["params"]; ps != nil {
		parts, err := items(ps, 0, -1)
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			param, err := lambdaParam(p)
			if err != nil {
				return nil, err
			}
			l.Params = append(l.Params, param)
		}
	}
	if r := f["ret"]; r != nil {
		if l.Return, err = typeExpr(r); err != nil {
			return nil, err
		}
	}
	if l.Body, err = expr(f["body"]); err != nil {
		return nil, err
	}
	return l, nil
}

func lambdaParam(n *yaml.Node) (*ast.Param, error) {
	if n.Kind == yaml.ScalarNode {
		return &ast.Param{Range: span(n), Name: n.Value}, nil
	}
	_, f, err := entries(n)
	if err != nil {
		return nil, err
	}
	if f["name"] == nil {
		return nil, errorAt(n, "a parameter needs a 'name'")
	}
	p := &ast.Param{Range: span(n), Name: f["name"].Value}
	if t := f["type"]; t != nil {
		if p.TypeAnn, err = typeExpr(t); err != nil {
			return nil, err
		}
	}
	if d := f["default"]; d != nil {
		if p.Default, err = expr(d); err != nil {
			return nil, err
		}
	}
	if p.KwOnly, err = flag(f["kw"]); err != nil {
		return nil, err
	}
	return p, nil
}

func patternFunc(n *yaml.Node) (ast.Expr, error) {
	arms, err := items(n, 1, -1)
	if err != nil {
		return nil, err
	}
	pf := &ast.PatternFunc{Range: span(n)}
	for _, a := range arms {
		_, f, err := entries(a)
		if err != nil {
			return nil, err
		}
		if f["on"] == nil || f["do"] == nil {
			return nil, errorAt(a, "an arm needs 'on' and 'do'")
		}
		ps, err := items(f["on"], 1, -1)
		if err != nil {
			return nil, err
		}
		arm := &ast.Arm{Range: span(a)}
		for _, p := range ps {
			pat, err := pattern(p)
			if err != nil {
				return nil, err
			}
			arm.Patterns = append(arm.Patterns, pat)
		}
		if arm.Body, err = expr(f["do"]); err != nil {
			return nil, err
		}
		pf.Arms = append(pf.Arms, arm)
	}
	return pf, nil
}

func pattern(n *yaml.Node) (ast.Pattern, error) {
	rng := span(n)
	if n.Kind == yaml.ScalarNode {
		switch e := scalar(n).(type) {
		case *ast.Literal:
			return &ast.LitPattern{Range: rng, Literal: e}, nil
		case *ast.Ident:
			if e.Name == "_" {
				return &ast.WildcardPattern{Range: rng}, nil
			}
			return &ast.VarPattern{Range: rng, Name: e.Name}, nil
		}
	}
	_, f, err := entries(n)
	if err != nil {
		return nil, err
	}
	if f["name"] == nil || f["type"] == nil {
		return nil, errorAt(n, "a typed pattern needs 'name' and 'type'")
	}
	t, err := typeExpr(f["type"])
	if err != nil {
		return nil, err
	}
	if f["name"].Value == "_" {
		return &ast.WildcardPattern{Range: rng, TypeAnn: t}, nil
	}
	return &ast.VarPattern{Range: rng, Name: f["name"].Value, TypeAnn: t}, nil
}

func block(n *yaml.Node) (ast.Expr, error) {
	_, f, err := entries(n)
	if err != nil {
		return nil, err
	}
	b := &ast.Block{Range: span(n)}
	if ds := f["decls"]; ds != nil {
		parts, err := items(ds, 0, -1)
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			d, err := decl(p)
			if err != nil {
				return nil, err
			}
			local, ok := d.(*ast.Declaration)
			if !ok {
				return nil, errorAt(p, "only values can be declared locally")
			}
			b.Decls = append(b.Decls, local)
		}
	}
	if r := f["in"]; r != nil {
		if b.Result, err = expr(r); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func typeList(n *yaml.Node) ([]ast.TypeExpr, error) {
	if n == nil {
		return nil, nil
	}
	parts, err := items(n, 0, -1)
	if err != nil {
		return nil, err
	}
	out := make([]ast.TypeExpr, 0, len(parts))
	for _, p := range parts {
		t, err := typeExpr(p)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func typeExpr(n *yaml.Node) (ast.TypeExpr, error) {
	rng := span(n)
	if n.Kind == yaml.ScalarNode {
		return &ast.TName{Range: rng, Name: n.Value}, nil
	}
	key, v, err := single(n)
	if err != nil {
		return nil, err
	}
	switch key {
	case "app":
		parts, err := items(v, 1, -1)
		if err != nil {
			return nil, err
		}
		app := &ast.TApp{Range: rng, Name: parts[0].Value}
		for _, p := range parts[1:] {
			arg, err := typeArg(p)
			if err != nil {
				return nil, err
			}
			app.Args = append(app.Args, arg)
		}
		return app, nil
	case "fn":
		return funcType(v)
	case "record":
		keys, values, err := entries(v)
		if err != nil {
			return nil, err
		}
		r := &ast.TRecord{Range: rng}
		for _, k := range keys {
			t, err := typeExpr(values[k])
			if err != nil {
				return nil, err
			}
			r.Fields = append(r.Fields, ast.TField{Name: k, Type: t})
		}
		return r, nil
	case "enum":
		parts, err := items(v, 1, -1)
		if err != nil {
			return nil, err
		}
		values, err := exprs(parts)
		if err != nil {
			return nil, err
		}
		return &ast.TEnum{Range: rng, Values: values}, nil
	case "interval", "until":
		parts, err := items(v, 2, 2)
		if err != nil {
			return nil, err
		}
		bounds, err := exprs(parts)
		if err != nil {
			return nil, err
		}
		return &ast.TInterval{Range: rng, Lo: bounds[0], Hi: bounds[1], OpenHi: key == "until"}, nil
	case "or", "and":
		ts, err := typeList(v)
		if err != nil {
			return nil, err
		}
		if len(ts) < 2 {
			return nil, errorAt(v, "'%s' needs at least two types", key)
		}
		out := ts[0]
		for _, t := range ts[1:] {
			if key == "or" {
				out = &ast.TOr{Range: rng, Lhs: out, Rhs: t}
			} else {
				out = &ast.TAnd{Range: rng, Lhs: out, Rhs: t}
			}
		}
		return out, nil
	case "not":
		inner, err := typeExpr(v)
		if err != nil {
			return nil, err
		}
		return &ast.TNot{Range: rng, Inner: inner}, nil
	case "refine":
		return refinement(v)
	}
	return nil, errorAt(n, "unknown type %q", key)
}

// typeArg is a type, or a constant as the length in Array(Int, 3)
func typeArg(n *yaml.Node) (ast.TypeExpr, error) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!int" {
		return &ast.TValue{Range: span(n), Value: scalar(n)}, nil
	}
	if n.Kind == yaml.MappingNode {
		if key, v, err := single(n); err == nil && key == "value" {
			e, err := expr(v)
			if err != nil {
				return nil, err
			}
			return &ast.TValue{Range: span(n), Value: e}, nil
		}
	}
	return typeExpr(n)
}

func funcType(n *yaml.Node) (ast.TypeExpr, error) {
	_, f, err := entries(n)
	if err != nil {
		return nil, err
	}
	if f["ret"] == nil {
		return nil, errorAt(n, "a function type needs 'ret'")
	}
	fn := &ast.TFunc{Range: span(n)}
	if fn.Params, err = typeParams(f["params"]); err != nil {
		return nil, err
	}
	if fn.KwParams, err = typeParams(f["kw"]); err != nil {
		return nil, err
	}
	if fn.Return, err = typeExpr(f["ret"]); err != nil {
		return nil, err
	}
	return fn, nil
}

// typeParams reads parameters either as bare types, in the unnamed form, or as
// mappings with a name
func typeParams(n *yaml.Node) ([]ast.TParam, error) {
	if n == nil {
		return nil, nil
	}
	parts, err := items(n, 0, -1)
	if err != nil {
		return nil, err
	}
	out := make([]ast.TParam, 0, len(parts))
	for _, p := range parts {
		_, f, err := entries(p)
		if err != nil || f["type"] == nil {
			t, err := typeExpr(p)
			if err != nil {
				return nil, err
			}
			out = append(out, ast.TParam{Type: t})
			continue
		}
		t, err := typeExpr(f["type"])
		if err != nil {
			return nil, err
		}
		param := ast.TParam{Type: t}
		if name := f["name"]; name != nil {
			param.Name = name.Value
		}
		if param.HasDefault, err = flag(f["default"]); err != nil {
			return nil, err
		}
		out = append(out, param)
	}
	return out, nil
}

func refinement(n *yaml.Node) (ast.TypeExpr, error) {
	_, f, err := entries(n)
	if err != nil {
		return nil, err
	}
	if f["var"] == nil || f["base"] == nil {
		return nil, errorAt(n, "a refinement needs 'var' and 'base'")
	}
	r := &ast.TRefinement{Range: span(n), Var: f["var"].Value}
	if r.Base, err = typeExpr(f["base"]); err != nil {
		return nil, err
	}
	if w := f["where"]; w != nil {
		parts, err := items(w, 1, -1)
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			pred, err := predicate(p)
			if err != nil {
				return nil, err
			}
			r.Preds = append(r.Preds, pred)
		}
	}
	return r, nil
}

// predicate is [lhs, op, rhs], or a mapping of and, or and not
func predicate(n *yaml.Node) (ast.PredExpr, error) {
	rng := span(n)
	if n.Kind == yaml.SequenceNode {
		parts, err := items(n, 3, 3)
		if err != nil {
			return nil, err
		}
		op, err := operator(parts[1])
		if err != nil {
			return nil, err
		}
		lhs, err := expr(parts[0])
		if err != nil {
			return nil, err
		}
		rhs, err := expr(parts[2])
		if err != nil {
			return nil, err
		}
		return &ast.PCompare{Range: rng, Lhs: lhs, Op: op, Rhs: rhs}, nil
	}
	key, v, err := single(n)
	if err != nil {
		return nil, err
	}
	if key == "not" {
		inner, err := predicate(v)
		if err != nil {
			return nil, err
		}
		return &ast.PNot{Range: rng, Inner: inner}, nil
	}
	parts, err := items(v, 2, 2)
	if err != nil {
		return nil, err
	}
	lhs, err := predicate(parts[0])
	if err != nil {
		return nil, err
	}
	rhs, err := predicate(parts[1])
	if err != nil {
		return nil, err
	}
	switch key {
	case "and":
		return &ast.PAnd{Range: rng, Lhs: lhs, Rhs: rhs}, nil
	case "or":
		return &ast.POr{Range: rng, Lhs: lhs, Rhs: rhs}, nil
	}
	return nil, errorAt(n, "unknown predicate %q", key)
}
