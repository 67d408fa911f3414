package compiler

import (
	"fmt"
	"math"
	"reflect"

	"github.com/roach88/tagbridge/internal/ir"
)

// Describe inspects a Go function once and returns its Callable form.
//
// Mapping rules:
//   - pointer parameters are optional with a nil default
//   - a Go variadic parameter is the variadic parameter
//   - the first result is the return type; a trailing error result is allowed
func Describe(name string, fn any) (Callable, error) {
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func {
		return Callable{}, ir.NewSignatureError(name, fmt.Sprintf("expected a func, got %T", fn))
	}
	if rv.IsNil() {
		return Callable{}, ir.NewSignatureError(name, "func is nil")
	}
	ft := rv.Type()

	c := Callable{Name: name}
	for i := range ft.NumIn() {
		in := ft.In(i)
		p := Param{Name: fmt.Sprintf("arg%d", i), Type: in}
		switch {
		case ft.IsVariadic() && i == ft.NumIn()-1:
			p.Variadic = true
			p.Type = in.Elem()
		case in.Kind() == reflect.Pointer:
			p.HasDefault = true
		}
		c.Params = append(c.Params, p)
	}

	outs := ft.NumOut()
	returnsErr := outs > 0 && ft.Out(outs-1) == errorType
	values := outs
	if returnsErr {
		values--
	}
	switch values {
	case 0:
	case 1:
		c.Return = ft.Out(0)
		c.HasReturn = true
	default:
		return Callable{}, ir.NewSignatureError(name, fmt.Sprintf("func returns %d values, want one value and an optional error", values))
	}

	c.Fn = reflectCall(name, rv, returnsErr, c.HasReturn)
	return c, nil
}

// reflectCall adapts a reflected func to ir.CallFunc. Missing trailing
// optional arguments are passed as nil pointers.
func reflectCall(name string, fn reflect.Value, returnsErr, hasValue bool) ir.CallFunc {
	ft := fn.Type()
	fixed := ft.NumIn()
	if ft.IsVariadic() {
		fixed--
	}

	return func(args []any) (any, error) {
		in := make([]reflect.Value, 0, len(args)+fixed)
		for i := range fixed {
			target := ft.In(i)
			if i >= len(args) {
				in = append(in, reflect.Zero(target))
				continue
			}
			v, err := coerce(args[i], target)
			if err != nil {
				return nil, fmt.Errorf("$%s: argument %d: %w", name, i, err)
			}
			in = append(in, v)
		}
		if ft.IsVariadic() {
			elem := ft.In(fixed).Elem()
			for i := fixed; i < len(args); i++ {
				v, err := coerce(args[i], elem)
				if err != nil {
					return nil, fmt.Errorf("$%s: argument %d: %w", name, i, err)
				}
				in = append(in, v)
			}
		}

		out := fn.Call(in)
		if returnsErr {
			if errVal := out[len(out)-1]; !errVal.IsNil() {
				return nil, errVal.Interface().(error)
			}
		}
		if !hasValue {
			return nil, nil
		}
		return out[0].Interface(), nil
	}
}

// coerce converts a host argument to the parameter type. A number only
// crosses numeric kinds when its value survives exactly; everything else
// must be assignable.
func coerce(arg any, target reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(target), nil
	}
	if v, ok := arg.(ir.Value); ok {
		arg = ir.ToGo(v)
		if arg == nil {
			return reflect.Zero(target), nil
		}
	}

	rv := reflect.ValueOf(arg)
	if target.Kind() == reflect.Pointer && rv.Kind() != reflect.Pointer {
		elem, err := coerce(arg, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}
	if rv.Type().AssignableTo(target) {
		v := reflect.New(target).Elem()
		v.Set(rv)
		return v, nil
	}
	if isNumeric(rv.Kind()) && isNumeric(target.Kind()) {
		return convertNumber(rv, target)
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, target)
}

// maxExactFloat bounds the integers a float64 represents exactly.
const maxExactFloat = 1 << 53

func convertNumber(rv reflect.Value, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	ok := false
	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		if n, ok = asInt64(rv); ok && !out.OverflowInt(n) {
			out.SetInt(n)
		} else {
			ok = false
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		var u uint64
		if u, ok = asUint64(rv); ok && !out.OverflowUint(u) {
			out.SetUint(u)
		} else {
			ok = false
		}
	case reflect.Float32, reflect.Float64:
		var f float64
		if f, ok = asFloat64(rv); ok && !out.OverflowFloat(f) {
			out.SetFloat(f)
		} else {
			ok = false
		}
	}
	if !ok {
		return reflect.Value{}, fmt.Errorf("%v (%s) does not fit %s", rv.Interface(), rv.Type(), target)
	}
	return out, nil
}

func asInt64(rv reflect.Value) (int64, bool) {
	switch {
	case rv.CanInt():
		return rv.Int(), true
	case rv.CanUint():
		u := rv.Uint()
		return int64(u), u <= math.MaxInt64
	case rv.CanFloat():
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func asUint64(rv reflect.Value) (uint64, bool) {
	switch {
	case rv.CanInt():
		n := rv.Int()
		return uint64(n), n >= 0
	case rv.CanUint():
		return rv.Uint(), true
	case rv.CanFloat():
		f := rv.Float()
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
			return 0, false
		}
		return uint64(f), true
	}
	return 0, false
}

func asFloat64(rv reflect.Value) (float64, bool) {
	switch {
	case rv.CanInt():
		n := rv.Int()
		return float64(n), n >= -maxExactFloat && n <= maxExactFloat
	case rv.CanUint():
		u := rv.Uint()
		return float64(u), u <= maxExactFloat
	case rv.CanFloat():
		return rv.Float(), true
	}
	return 0, false
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// FromFunc describes fn and resolves it in one step.
func FromFunc(name string, fn any, opts Options) (*ir.ForeignFunction, error) {
	c, err := Describe(name, fn)
	if err != nil {
		return nil, err
	}
	return Resolve(c, opts)
}
