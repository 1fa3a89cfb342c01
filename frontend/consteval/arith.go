package consteval

import (
	"go/token"
	"math/big"
	"strconv"

	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/types"
	"github.com/pkg/errors"
)

var errDivisionByZero = errors.New("division by zero")

// LiteralValue decodes the source syntax of a literal
func LiteralValue(lit *ast.Literal) (types.Value, error) {
	switch lit.Kind {
	case ast.LitInt, ast.LitFloat:
		return types.ParseNumber(lit.Text)
	case ast.LitStr:
		s, err := strconv.Unquote(lit.Text)
		if err != nil {
			// the parser may already have removed the quotes
			return types.StrValue(lit.Text), nil
		}
		return types.StrValue(s), nil
	case ast.LitBool:
		switch lit.Text {
		case "True", "true":
			return types.BoolValue(true), nil
		case "False", "false":
			return types.BoolValue(false), nil
		}
		return types.Value{}, errors.Errorf("invalid boolean literal %q", lit.Text)
	case ast.LitNone:
		return types.NoneValue(), nil
	}
	return types.Value{}, errors.Errorf("unknown literal kind %d", lit.Kind)
}

// exact builds a number from a rational, as an Int when it has no fractional part
// and the operation keeps integers closed
func exact(r *big.Rat, integral bool) types.Value {
	if integral && r.IsInt() {
		return types.BigIntValue(r.Num())
	}
	return types.RatioValue(r)
}

// Arithmetic applies +, -, * or / to two constants with the semantics of the
// built-in implementations: Int / Int is a Ratio, anything with a Float is a Float
func Arithmetic(op token.Token, lhs, rhs types.Value) (types.Value, error) {
	if op == token.ADD && lhs.Kind == types.KindStr && rhs.Kind == types.KindStr {
		l, _ := lhs.Str()
		r, _ := rhs.Str()
		return types.StrValue(l + r), nil
	}
	if !lhs.IsNumeric() || !rhs.IsNumeric() {
		return types.Value{}, errors.Errorf("'%s' is not defined for %s and %s", op, lhs.Kind, rhs.Kind)
	}
	if lhs.Kind == types.KindFloat || rhs.Kind == types.KindFloat {
		l, _ := lhs.Float()
		r, _ := rhs.Float()
		switch op {
		case token.ADD:
			return types.FloatValue(l + r), nil
		case token.SUB:
			return types.FloatValue(l - r), nil
		case token.MUL:
			return types.FloatValue(l * r), nil
		case token.QUO:
			if r == 0 {
				return types.Value{}, errDivisionByZero
			}
			return types.FloatValue(l / r), nil
		}
		return types.Value{}, errors.Errorf("unsupported operator '%s'", op)
	}
	l, _ := lhs.Rat()
	r, _ := rhs.Rat()
	integral := lhs.Kind == types.KindInt && rhs.Kind == types.KindInt
	switch op {
	case token.ADD:
		return exact(l.Add(l, r), integral), nil
	case token.SUB:
		return exact(l.Sub(l, r), integral), nil
	case token.MUL:
		return exact(l.Mul(l, r), integral), nil
	case token.QUO:
		if r.Sign() == 0 {
			return types.Value{}, errDivisionByZero
		}
		return types.RatioValue(l.Quo(l, r)), nil
	case token.REM:
		if !integral {
			return types.Value{}, errors.New("'%' needs integers")
		}
		if r.Sign() == 0 {
			return types.Value{}, errDivisionByZero
		}
		return types.BigIntValue(new(big.Int).Rem(l.Num(), r.Num())), nil
	}
	return types.Value{}, errors.Errorf("unsupported operator '%s'", op)
}

var comparisons = map[token.Token]types.CmpOp{
	token.EQL: types.OpEq,
	token.NEQ: types.OpNe,
	token.LSS: types.OpLt,
	token.LEQ: types.OpLe,
	token.GTR: types.OpGt,
	token.GEQ: types.OpGe,
}

// Compare evaluates a comparison operator, with the same semantics as a predicate
func Compare(op token.Token, lhs, rhs types.Value) (types.Value, error) {
	cmpOp, ok := comparisons[op]
	if !ok {
		return types.Value{}, errors.Errorf("'%s' is not a comparison", op)
	}
	holds, err := types.EvalPredicate(types.Cmp("_", cmpOp, rhs), "_", lhs)
	if err != nil {
		return types.Value{}, err
	}
	return types.BoolValue(holds), nil
}

func isComparison(op token.Token) bool {
	_, ok := comparisons[op]
	return ok
}

func negate(v types.Value) (types.Value, error) {
	switch v.Kind {
	case types.KindInt, types.KindRatio:
		r, _ := v.Rat()
		return exact(r.Neg(r), v.Kind == types.KindInt), nil
	case types.KindFloat:
		f, _ := v.Float()
		return types.FloatValue(-f), nil
	}
	return types.Value{}, errors.Errorf("cannot negate %s", v.Kind)
}
