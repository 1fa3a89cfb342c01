package infer

import (
	"slices"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/symbols"
	"github.com/cottand/typecore/frontend/traits"
	"github.com/cottand/typecore/frontend/types"
	"github.com/pkg/errors"
)

// Declare binds every name of decls, and registers their classes, traits and
// implementations. Values are only checked later, by Declaration.
//
// Classes come first so that traits may mention them, and implementations last
func (c *Checker) Declare(decls []ast.Decl) *ilerr.Errors {
	var errs *ilerr.Errors
	for _, d := range decls {
		c.define(d)
	}

	classes := make(map[*ast.ClassDecl]*traits.Class)
	for _, d := range decls {
		if d, ok := d.(*ast.ClassDecl); ok {
			cls := &traits.Class{Name: d.Name, Supers: d.Supers, Owner: d.Name}
			if err := c.registry.DeclareClass(cls); err != nil {
				errs = errs.With(c.failed(d, err).Errors()...)
				continue
			}
			classes[d] = cls
		}
	}
	for _, d := range decls {
		if d, ok := d.(*ast.TraitDecl); ok {
			if err := c.declareTrait(d); err != nil {
				errs = errs.With(c.failed(d, err).Errors()...)
			}
		}
	}
	for _, d := range decls {
		d, ok := d.(*ast.ClassDecl)
		if !ok || classes[d] == nil {
			continue
		}
		attrs, err := c.classAttrs(d)
		if err != nil {
			errs = errs.With(c.failed(d, err).Errors()...)
			continue
		}
		classes[d].Attrs = attrs
	}
	for _, d := range decls {
		if d, ok := d.(*ast.ImplDecl); ok {
			if err := c.declareImpl(d); err != nil {
				errs = errs.With(c.failed(d, err).Errors()...)
			}
		}
	}
	return errs
}

func (c *Checker) define(d ast.Decl) {
	b := &symbols.Binding{Name: d.DeclName(), Decl: d, Module: c.module}
	switch d := d.(type) {
	case *ast.Declaration:
		b.Value = d.Value
		switch {
		case d.Extern:
			b.Kind = symbols.KindExtern
		case d.Const:
			b.Kind = symbols.KindConst
		default:
			b.Kind = symbols.KindValue
		}
		c.dependOnTypes(d.Name, d.TypeAnn)
	case *ast.TraitDecl:
		b.Kind = symbols.KindTrait
		for _, attr := range d.Required {
			c.dependOnTypes(d.Name, attr.Type)
		}
		for _, te := range slices.Concat(d.Includes, d.Excludes) {
			c.dependOnTypes(d.Name, te)
		}
	case *ast.ClassDecl:
		b.Kind = symbols.KindClass
		for _, s := range d.Supers {
			c.names.DependOn(d.Name, s)
		}
		for _, attr := range d.Attrs {
			c.dependOnTypes(d.Name, attr.Type)
		}
	case *ast.ImplDecl:
		b.Kind = symbols.KindImpl
		c.dependOnTypes(b.Name, d.Target)
		c.dependOnTypes(b.Name, d.Trait)
		for _, binding := range d.Bindings {
			c.dependOnTypes(b.Name, binding.TypeAnn)
			c.dependOnTypes(b.Name, binding.TypeValue)
		}
	}
	c.names.Define(b)
}

func (c *Checker) dependOnTypes(name string, te ast.TypeExpr) {
	if te == nil {
		return
	}
	for _, dep := range typeNames(te) {
		c.names.DependOn(name, dep)
	}
}

// failed records that d could not be declared
func (c *Checker) failed(d ast.Decl, err error) *ilerr.Errors {
	errs := batch(err, d)
	c.record(&Outcome{Name: d.DeclName(), Errors: errs})
	return errs
}

func isTypeAttr(attr *ast.AttrDecl) bool {
	n, ok := attr.Type.(*ast.TName)
	return ok && n.Name == types.TypeName
}

func (c *Checker) declareTrait(d *ast.TraitDecl) error {
	params := make(typeParams)
	vars := make([]*types.TypeVar, 0, len(d.Params))
	for _, p := range d.Params {
		v := c.registry.NewParam(p)
		params[p] = v
		vars = append(vars, v)
	}
	// type-valued attributes, as Output, may appear in the other requirements
	var assoc []*types.TypeVar
	for _, attr := range d.Required {
		if isTypeAttr(attr) {
			v := c.registry.NewParam(attr.Name)
			params[attr.Name] = v
			assoc = append(assoc, v)
		}
	}
	required := make(map[string]types.Type, len(d.Required))
	redeclared := make(map[string]traits.Redeclaration, len(d.Required))
	for _, attr := range d.Required {
		t := types.Type(types.TypeType)
		if !isTypeAttr(attr) {
			lowered, err := c.lower(attr.Type, params)
			if err != nil {
				return ilerr.At(err, attr)
			}
			t = lowered
		}
		required[attr.Name] = t
		redeclared[attr.Name] = traits.Redeclaration{Type: t, Override: attr.Override}
	}

	var trait *traits.Trait
	if len(d.Includes) > 0 || len(d.Excludes) > 0 {
		includes, err := c.traitRefs(d.Includes, params)
		if err != nil {
			return err
		}
		excludes, err := c.traitRefs(d.Excludes, params)
		if err != nil {
			return err
		}
		if trait, err = c.registry.Subsume(d.Name, includes, excludes, redeclared); err != nil {
			return ilerr.At(err, d)
		}
		trait.Params = vars
		trait.Assoc = append(trait.Assoc, assoc...)
	} else {
		trait = traits.NewTrait(d.Name, vars, required)
		trait.Assoc = assoc
	}
	trait.Structural = trait.Structural || d.Structural
	trait.Owner = d.Name
	return ilerr.At(c.registry.DeclareTrait(trait), d)
}

func (c *Checker) traitRefs(tes []ast.TypeExpr, params typeParams) ([]*types.TraitRef, error) {
	refs := make([]*types.TraitRef, 0, len(tes))
	for _, te := range tes {
		t, err := c.lower(te, params)
		if err != nil {
			return nil, ilerr.At(err, te)
		}
		ref, ok := t.(*types.TraitRef)
		if !ok {
			return nil, mismatch(te, &types.TraitRef{Name: "Trait"}, t, "only traits can be included or excluded")
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (c *Checker) classAttrs(d *ast.ClassDecl) (*types.Record, error) {
	params := typeParams{"Self": &types.Primitive{Name: d.Name}}
	fields := make([]types.Field, 0, len(d.Attrs))
	for _, attr := range d.Attrs {
		t, err := c.lower(attr.Type, params)
		if err != nil {
			return nil, ilerr.At(err, attr)
		}
		fields = append(fields, types.Field{Name: attr.Name, Type: t})
	}
	return types.NewRecord(fields...), nil
}

func (c *Checker) declareImpl(d *ast.ImplDecl) error {
	params := make(typeParams)
	vars := make([]*types.TypeVar, 0, len(d.Params))
	for _, p := range d.Params {
		v := c.registry.NewParam(p)
		params[p] = v
		vars = append(vars, v)
	}
	target, err := c.lower(d.Target, params)
	if err != nil {
		return ilerr.At(err, d.Target)
	}
	lowered, err := c.lower(d.Trait, params)
	if err != nil {
		return ilerr.At(err, d.Trait)
	}
	ref, ok := lowered.(*types.TraitRef)
	if !ok {
		return mismatch(d.Trait, &types.TraitRef{Name: "Trait"}, lowered, "only traits can be implemented")
	}
	trait, ok := c.registry.Trait(ref.Name)
	if !ok {
		return ilerr.At(ilerr.New(ilerr.NewNameNotFound{Name: ref.Name, Reason: "not a trait"}), d.Trait)
	}

	impl := &traits.Impl{
		Params:   vars,
		Target:   target,
		Trait:    ref,
		Bindings: make(map[string]traits.Binding, len(d.Bindings)),
		Owner:    d.DeclName(),
	}
	// requirements are read with Self as the target and the trait parameters as
	// the arguments of ref
	required := types.Subst{types.SelfID: target}
	if len(ref.Args) == len(trait.Params) {
		for i, p := range trait.Params {
			required[p.ID] = ref.Args[i]
		}
	}
	scope := params.with("Self", target)
	for _, b := range d.Bindings {
		if b.TypeValue == nil {
			continue
		}
		v, err := c.lower(b.TypeValue, scope)
		if err != nil {
			return ilerr.At(err, b.TypeValue)
		}
		impl.Bindings[b.Name] = traits.Binding{Type: types.TypeType, Value: v}
		for _, a := range trait.Assoc {
			if a.Name == b.Name {
				required[a.ID] = v
			}
		}
		scope = scope.with(b.Name, v)
	}

	var errs *ilerr.Errors
	for _, b := range d.Bindings {
		if b.TypeValue != nil {
			continue
		}
		var expected types.Type
		if b.TypeAnn != nil {
			t, err := c.lower(b.TypeAnn, scope)
			if err != nil {
				errs = errs.With(ilerr.At(err, b.TypeAnn))
				continue
			}
			expected = t
		} else if req, ok := trait.Requirement(b.Name); ok {
			if t := required.Apply(req); closed(t) {
				expected = t
			}
		}
		if b.Value == nil {
			if expected == nil {
				errs = errs.With(ilerr.At(errors.Errorf("'%s' needs a type or a value", b.Name), b))
				continue
			}
			impl.Bindings[b.Name] = traits.Binding{Type: expected}
			continue
		}
		t, err := c.expression(d.DeclName(), b.Value, expected)
		if err != nil {
			errs = errs.Merge(batch(err, b))
			continue
		}
		impl.Bindings[b.Name] = traits.Binding{Type: t}
	}
	if errs.HasError() {
		return errs
	}
	return ilerr.At(c.registry.RegisterImpl(impl), d)
}
