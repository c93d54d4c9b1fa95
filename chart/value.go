package chart

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueType names the type of a variable or literal.  The chart
// syntax knows four concrete types; TypeNone marks the absence of a
// value, which is how a parameter says "I am a variable reference".
type ValueType string

const (
	TypeNone    ValueType = "none"
	TypeString  ValueType = "string"
	TypeInteger ValueType = "integer"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
)

// Concrete reports whether t is one of the four declarable types.
func (t ValueType) Concrete() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean:
		return true
	}
	return false
}

// Value is a typed scalar: the only kind of data a chart variable can
// hold.  On the wire a Value is a bare JSON/YAML scalar; the type is
// inferred when decoding and checked against declarations during
// validation.
type Value struct {
	Type ValueType `json:"-" yaml:"-"`
	Str  string    `json:"-" yaml:"-"`
	Int  int64     `json:"-" yaml:"-"`
	Num  float64   `json:"-" yaml:"-"`
	Bool bool      `json:"-" yaml:"-"`
}

// String makes a string Value.
func String(s string) Value { return Value{Type: TypeString, Str: s} }

// Integer makes an integer Value.
func Integer(i int64) Value { return Value{Type: TypeInteger, Int: i} }

// Number makes a number Value.
func Number(f float64) Value { return Value{Type: TypeNumber, Num: f} }

// Boolean makes a boolean Value.
func Boolean(b bool) Value { return Value{Type: TypeBoolean, Bool: b} }

// None is the absent Value.
var None = Value{Type: TypeNone}

// IsNone reports whether the Value is absent.  The zero Value counts.
func (v Value) IsNone() bool {
	return v.Type == TypeNone || v.Type == ""
}

func (v Value) numeric() bool {
	return v.Type == TypeInteger || v.Type == TypeNumber
}

func (v Value) float() float64 {
	if v.Type == TypeInteger {
		return float64(v.Int)
	}
	return v.Num
}

// ValueOf turns a decoded JSON/YAML scalar into a Value.  JSON gives
// us float64 for every number, so whole floats stay numbers here and
// only become integers when a declaration asks for one (see Coerce).
func ValueOf(x interface{}) (Value, error) {
	switch y := x.(type) {
	case nil:
		return None, nil
	case Value:
		return y, nil
	case string:
		return String(y), nil
	case bool:
		return Boolean(y), nil
	case int:
		return Integer(int64(y)), nil
	case int32:
		return Integer(int64(y)), nil
	case int64:
		return Integer(y), nil
	case float32:
		return Number(float64(y)), nil
	case float64:
		return Number(y), nil
	case json.Number:
		if i, err := y.Int64(); err == nil {
			return Integer(i), nil
		}
		f, err := y.Float64()
		if err != nil {
			return None, err
		}
		return Number(f), nil
	}
	return None, fmt.Errorf("cannot represent %T as a scalar value", x)
}

// Interface gives the native Go scalar for the Value (nil for none).
func (v Value) Interface() interface{} {
	switch v.Type {
	case TypeString:
		return v.Str
	case TypeInteger:
		return v.Int
	case TypeNumber:
		return v.Num
	case TypeBoolean:
		return v.Bool
	}
	return nil
}

// String renders the Value for logs and error messages.
func (v Value) String() string {
	switch v.Type {
	case TypeString:
		return v.Str
	case TypeInteger:
		return strconv.FormatInt(v.Int, 10)
	case TypeNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case TypeBoolean:
		return strconv.FormatBool(v.Bool)
	}
	return "none"
}

// Equal compares two Values.  Integers and numbers compare
// numerically with each other, so eq(n, 1) holds for an integer n set
// to 1 even though the literal 1 arrived as a JSON number.
func (v Value) Equal(w Value) bool {
	if v.IsNone() || w.IsNone() {
		return v.IsNone() && w.IsNone()
	}
	if v.numeric() && w.numeric() {
		if v.Type == TypeInteger && w.Type == TypeInteger {
			return v.Int == w.Int
		}
		return v.float() == w.float()
	}
	if v.Type != w.Type {
		return false
	}
	switch v.Type {
	case TypeString:
		return v.Str == w.Str
	case TypeBoolean:
		return v.Bool == w.Bool
	}
	return false
}

// Compare orders two Values: -1, 0, or 1.  Numerics order with each
// other and strings with strings; anything else is Incomparable.
func Compare(v, w Value) (int, error) {
	if v.numeric() && w.numeric() {
		if v.Type == TypeInteger && w.Type == TypeInteger {
			switch {
			case v.Int < w.Int:
				return -1, nil
			case w.Int < v.Int:
				return 1, nil
			}
			return 0, nil
		}
		a, b := v.float(), w.float()
		switch {
		case a < b:
			return -1, nil
		case b < a:
			return 1, nil
		}
		return 0, nil
	}
	if v.Type == TypeString && w.Type == TypeString {
		return strings.Compare(v.Str, w.Str), nil
	}
	return 0, &Incomparable{A: v.Type, B: w.Type}
}

// Coerce converts the Value to the given declared type.  A whole
// number coerces to integer (JSON cannot tell 1 from 1.0); an integer
// widens to number.  Everything else must already match.
func (v Value) Coerce(t ValueType) (Value, error) {
	if v.Type == t {
		return v, nil
	}
	switch t {
	case TypeInteger:
		if v.Type == TypeNumber && v.Num == math.Trunc(v.Num) {
			return Integer(int64(v.Num)), nil
		}
	case TypeNumber:
		if v.Type == TypeInteger {
			return Number(float64(v.Int)), nil
		}
	}
	return None, &TypeMismatch{Want: t, Got: v.Type}
}

// MarshalJSON writes the Value as a bare scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON reads a bare scalar into the Value.
func (v *Value) UnmarshalJSON(bs []byte) error {
	var x interface{}
	if err := json.Unmarshal(bs, &x); err != nil {
		return err
	}
	y, err := ValueOf(x)
	if err != nil {
		return err
	}
	*v = y
	return nil
}

// MarshalYAML writes the Value as a bare scalar.
func (v Value) MarshalYAML() (interface{}, error) {
	return v.Interface(), nil
}

// UnmarshalYAML reads a bare scalar into the Value.
func (v *Value) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var x interface{}
	if err := unmarshal(&x); err != nil {
		return err
	}
	y, err := ValueOf(x)
	if err != nil {
		return err
	}
	*v = y
	return nil
}
