package types

import (
	"cmp"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type ValueKind uint8

const (
	_ ValueKind = iota
	KindInt
	KindRatio
	// KindFloat values are approximate, and never take part in interval proofs
	KindFloat
	KindStr
	KindBool
	KindNone
	// KindType is a type used as a value, for example the argument of a type-construction call
	KindType
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindRatio:
		return "Ratio"
	case KindFloat:
		return "Float"
	case KindStr:
		return "Str"
	case KindBool:
		return "Bool"
	case KindNone:
		return "NoneType"
	case KindType:
		return "Type"
	default:
		return "invalid"
	}
}

// Value is a compile-time constant.
//
// Int and Ratio values are exact: they are stored as big.Rat so that interval
// proofs never suffer from rounding.
type Value struct {
	Kind ValueKind
	num  *big.Rat
	flt  float64
	str  string
	b    bool
	typ  Type
}

func IntValue(i int64) Value {
	return Value{Kind: KindInt, num: new(big.Rat).SetInt64(i)}
}

func BigIntValue(i *big.Int) Value {
	return Value{Kind: KindInt, num: new(big.Rat).SetInt(i)}
}

func RatioValue(r *big.Rat) Value {
	return Value{Kind: KindRatio, num: new(big.Rat).Set(r)}
}

func FloatValue(f float64) Value { return Value{Kind: KindFloat, flt: f} }
func StrValue(s string) Value    { return Value{Kind: KindStr, str: s} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, b: b} }
func NoneValue() Value           { return Value{Kind: KindNone} }
func TypeValue(t Type) Value     { return Value{Kind: KindType, typ: t} }

// ParseNumber reads the syntax of a numeric literal.
// Integers become Int values, anything with a decimal point or exponent becomes a Float
func ParseNumber(syntax string) (Value, error) {
	clean := strings.ReplaceAll(syntax, "_", "")
	if i, ok := new(big.Int).SetString(clean, 0); ok {
		return BigIntValue(i), nil
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return Value{}, errors.Wrapf(err, "invalid numeric literal %q", syntax)
	}
	return FloatValue(f), nil
}

// IsExact reports whether v is an Int or Ratio
func (v Value) IsExact() bool {
	return v.Kind == KindInt || v.Kind == KindRatio
}

func (v Value) IsNumeric() bool {
	return v.IsExact() || v.Kind == KindFloat
}

// Rat returns a copy of the exact numeric value of v
func (v Value) Rat() (*big.Rat, bool) {
	if !v.IsExact() {
		return nil, false
	}
	return new(big.Rat).Set(v.num), true
}

func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.flt, true
	case KindInt, KindRatio:
		f, _ := v.num.Float64()
		return f, true
	default:
		return 0, false
	}
}

func (v Value) Str() (string, bool)  { return v.str, v.Kind == KindStr }
func (v Value) Bool() (bool, bool)   { return v.b, v.Kind == KindBool }
func (v Value) TypeOf() (Type, bool) { return v.typ, v.Kind == KindType }
func (v Value) IsValid() bool        { return v.Kind != 0 }
func (v Value) intPart() (*big.Int, bool) {
	if v.Kind != KindInt {
		return nil, false
	}
	return new(big.Int).Set(v.num.Num()), true
}

// Int returns the value as an int64 when it is an Int that fits
func (v Value) Int() (int64, bool) {
	i, ok := v.intPart()
	if !ok || !i.IsInt64() {
		return 0, false
	}
	return i.Int64(), true
}

// Typeof is the primitive type a literal of this value has
func (v Value) Typeof() Type {
	switch v.Kind {
	case KindInt:
		return IntType
	case KindRatio:
		return RatioType
	case KindFloat:
		return FloatType
	case KindStr:
		return StrType
	case KindBool:
		return BoolType
	case KindNone:
		return NoneType
	case KindType:
		return TypeType
	default:
		return NeverType
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return v.num.Num().String()
	case KindRatio:
		return v.num.RatString()
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindStr:
		return strconv.Quote(v.str)
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindNone:
		return "None"
	case KindType:
		return v.typ.String()
	default:
		return "<invalid>"
	}
}

// key is a stable textual identity of the value, used for literal sets
func (v Value) key() string {
	switch v.Kind {
	case KindInt, KindRatio:
		return "n:" + v.num.RatString()
	case KindFloat:
		return "f:" + strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindStr:
		return "s:" + v.str
	case KindBool:
		return "b:" + strconv.FormatBool(v.b)
	case KindNone:
		return "none"
	case KindType:
		return "t:" + v.typ.String()
	default:
		return "?"
	}
}

func (v Value) Hash() uint64 {
	return hashOf("Value", hashString(v.key()))
}

// ValueEqual compares two values. Exact numbers are equal regardless of whether
// they are Int or Ratio, which follows Int <: Ratio
func ValueEqual(a, b Value) bool {
	if a.IsExact() && b.IsExact() {
		return a.num.Cmp(b.num) == 0
	}
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindType {
		return Equal(a.typ, b.typ)
	}
	return a.key() == b.key()
}

// CompareValues orders two values. ok is false when they are not comparable
func CompareValues(a, b Value) (order int, ok bool) {
	if a.IsExact() && b.IsExact() {
		return a.num.Cmp(b.num), true
	}
	if a.IsNumeric() && b.IsNumeric() {
		fa, _ := a.Float()
		fb, _ := b.Float()
		return cmp.Compare(fa, fb), true
	}
	if a.Kind == KindStr && b.Kind == KindStr {
		return strings.Compare(a.str, b.str), true
	}
	return 0, false
}

// orderForDisplay is a total order over values used when sorting enumerations
func orderForDisplay(a, b Value) int {
	if o, ok := CompareValues(a, b); ok {
		return o
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	return strings.Compare(a.key(), b.key())
}

func (v Value) GoString() string {
	return fmt.Sprintf("types.Value{%v %s}", v.Kind, v)
}
