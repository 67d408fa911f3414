package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Value is a sealed interface over the scalar and tuple values that flow
// between host and engine. Only Null, Bool, Int, Float, String and Tuple
// implement it.
type Value interface {
	irValue()
	String() string
}

// Null is the absent value.
type Null struct{}

func (Null) irValue() {}

func (Null) String() string { return "none" }

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

// Int is an integer value. All engine integer widths travel as int64 and
// are range-checked against the relation type on submission.
type Int int64

func (Int) irValue() {}

func (n Int) String() string { return strconv.FormatInt(int64(n), 10) }

// Float is a floating point value. NaN and infinities are never valid.
type Float float64

func (Float) irValue() {}

// String renders the float so that it always reads back as a Float.
func (f Float) String() string { return formatFloat(float64(f)) }

// String is a text value.
type String string

func (String) irValue() {}

func (s String) String() string { return strconv.Quote(string(s)) }

// Tuple is a fixed-arity sequence of values.
type Tuple []Value

func (Tuple) irValue() {}

// String renders the tuple as (v0, v1, ...). A 1-tuple keeps its trailing
// comma so it is never confused with a parenthesized scalar.
func (t Tuple) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range t {
		if i > 0 {
			b.WriteString(", ")
		}
		if v == nil {
			b.WriteString("none")
			continue
		}
		b.WriteString(v.String())
	}
	if len(t) == 1 {
		b.WriteByte(',')
	}
	b.WriteByte(')')
	return b.String()
}

// Clone returns a copy of the tuple. Nested tuples are copied too.
func (t Tuple) Clone() Tuple {
	if t == nil {
		return nil
	}
	out := make(Tuple, len(t))
	for i, v := range t {
		if inner, ok := v.(Tuple); ok {
			out[i] = inner.Clone()
			continue
		}
		out[i] = v
	}
	return out
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

// FromGo converts a host value into a Value. Slices and arrays become
// tuples; nil becomes Null.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", val)
		}
		return Int(val), nil
	case float32:
		return checkedFloat(float64(val))
	case float64:
		return checkedFloat(val)
	case []any:
		return tupleFromSlice(len(val), func(i int) any { return val[i] })
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return tupleFromSlice(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Pointer:
		if rv.IsNil() {
			return Null{}, nil
		}
		return FromGo(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("unsupported host value type %T", v)
}

func checkedFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v", f)
	}
	return Float(f), nil
}

func tupleFromSlice(n int, at func(int) any) (Value, error) {
	t := make(Tuple, n)
	for i := range n {
		elem, err := FromGo(at(i))
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		t[i] = elem
	}
	return t, nil
}

// ToGo converts a Value back to plain Go data: nil, bool, int64, float64,
// string, or []any for tuples.
func ToGo(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case String:
		return string(val)
	case Tuple:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}

// MarshalValue encodes v as JSON. Tuples become arrays and floats always
// carry a fraction or exponent so that UnmarshalValue returns a Float.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case Bool:
		return json.Marshal(bool(val))
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Float:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil, fmt.Errorf("non-finite float %v", float64(val))
		}
		return []byte(formatFloat(float64(val))), nil
	case String:
		return json.Marshal(string(val))
	case Tuple:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("tuple[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue decodes JSON into a Value. Numbers with a fraction or
// exponent decode as Float, all others as Int. Objects are rejected.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return convertJSON(raw)
}

func convertJSON(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			f, err := val.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid float %s: %w", s, err)
			}
			return Float(f), nil
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case []any:
		t := make(Tuple, len(val))
		for i, elem := range val {
			e, err := convertJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			t[i] = e
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported JSON value type: %T", v)
	}
}
