package traits

import (
	"go/token"

	"github.com/cottand/typecore/frontend/types"
)

// Operator is the trait an operator dispatches to, and the attribute it calls
type Operator struct {
	Trait  string
	Method string
	// Comparison operators always evaluate to Bool, others to the Output of their implementation
	Comparison bool
}

var operators = map[token.Token]Operator{
	token.ADD: {Trait: "Add", Method: "__add__"},
	token.SUB: {Trait: "Sub", Method: "__sub__"},
	token.MUL: {Trait: "Mul", Method: "__mul__"},
	token.QUO: {Trait: "Div", Method: "__div__"},
	token.EQL: {Trait: "Eq", Method: "__eq__", Comparison: true},
	token.NEQ: {Trait: "Eq", Method: "__eq__", Comparison: true},
	token.LSS: {Trait: "Ord", Method: "__lt__", Comparison: true},
	token.LEQ: {Trait: "Ord", Method: "__lt__", Comparison: true},
	token.GTR: {Trait: "Ord", Method: "__lt__", Comparison: true},
	token.GEQ: {Trait: "Ord", Method: "__lt__", Comparison: true},
}

func OperatorFor(op token.Token) (Operator, bool) {
	o, ok := operators[op]
	return o, ok
}

// arithmetic lists, per target, the right operand and result of each arithmetic trait
var arithmetic = []struct {
	target, rhs, output *types.Primitive
	traits              []string
}{
	{types.NatType, types.NatType, types.NatType, []string{"Add", "Mul"}},
	{types.NatType, types.NatType, types.IntType, []string{"Sub"}},
	{types.NatType, types.NatType, types.RatioType, []string{"Div"}},
	{types.IntType, types.IntType, types.IntType, []string{"Add", "Sub", "Mul"}},
	{types.IntType, types.IntType, types.RatioType, []string{"Div"}},
	{types.RatioType, types.RatioType, types.RatioType, []string{"Add", "Sub", "Mul", "Div"}},
	{types.FloatType, types.FloatType, types.FloatType, []string{"Add", "Sub", "Mul", "Div"}},
	{types.StrType, types.StrType, types.StrType, []string{"Add"}},
}

var equatable = []*types.Primitive{types.IntType, types.RatioType, types.FloatType, types.StrType, types.BoolType, types.NoneType}

var ordered = []*types.Primitive{types.IntType, types.RatioType, types.FloatType, types.StrType}

func binary(lhs, rhs, ret types.Type) *types.Function {
	return &types.Function{Params: []types.Param{{Type: lhs}, {Type: rhs}}, Return: ret}
}

func declareBuiltins(r *Registry) {
	for _, op := range []struct{ name, method string }{
		{"Add", "__add__"}, {"Sub", "__sub__"}, {"Mul", "__mul__"}, {"Div", "__div__"},
	} {
		rhs, output := r.NewParam("R"), r.NewParam("Output")
		t := NewTrait(op.name, []*types.TypeVar{rhs}, map[string]types.Type{
			"Output":  types.TypeType,
			op.method: binary(types.Self, rhs, output),
		})
		t.Assoc = []*types.TypeVar{output}
		mustDo(r.DeclareTrait(t))
	}
	mustDo(r.DeclareTrait(NewTrait("Eq", nil, map[string]types.Type{
		"__eq__": binary(types.Self, types.Self, types.BoolType),
	})))
	ord := NewTrait("Ord", nil, map[string]types.Type{
		"__lt__": binary(types.Self, types.Self, types.BoolType),
	})
	ord.Supers = []*types.TraitRef{{Name: "Eq"}}
	mustDo(r.DeclareTrait(ord))

	for _, a := range arithmetic {
		for _, name := range a.traits {
			op := operatorMethod(name)
			mustDo(r.RegisterImpl(&Impl{
				Target: a.target,
				Trait:  &types.TraitRef{Name: name, Args: []types.Type{a.rhs}},
				Bindings: map[string]Binding{
					"Output": {Type: types.TypeType, Value: a.output},
					op:       {Type: binary(a.target, a.rhs, a.output)},
				},
			}))
		}
	}
	for _, t := range equatable {
		mustDo(r.RegisterImpl(&Impl{
			Target:   t,
			Trait:    &types.TraitRef{Name: "Eq"},
			Bindings: map[string]Binding{"__eq__": {Type: binary(t, t, types.BoolType)}},
		}))
	}
	for _, t := range ordered {
		mustDo(r.RegisterImpl(&Impl{
			Target:   t,
			Trait:    &types.TraitRef{Name: "Ord"},
			Bindings: map[string]Binding{"__lt__": {Type: binary(t, t, types.BoolType)}},
		}))
	}
}

func operatorMethod(trait string) string {
	for _, o := range operators {
		if o.Trait == trait {
			return o.Method
		}
	}
	return ""
}

// built-in declarations are known to be valid
func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}
