package ir

import (
	"fmt"
	"slices"
	"strings"
)

// FunctionSignature is the fully resolved, generic-aware declaration of a
// foreign function. It is immutable once built by NewFunctionSignature.
//
// INVARIANTS:
//   - every Generic id indexes Generics()
//   - a Generic return type shares its id with some argument type
//   - the return type is never a Family
type FunctionSignature struct {
	name     string
	args     []Type
	optional []Type
	variadic Type
	ret      Type
	generics []Family
}

// NewFunctionSignature validates the signature invariants and returns an
// immutable signature. variadic may be nil.
func NewFunctionSignature(name string, args, optional []Type, variadic, ret Type, generics []Family) (*FunctionSignature, error) {
	if name == "" {
		return nil, NewSignatureError(name, "function name is empty")
	}
	if ret == nil {
		return nil, NewSignatureError(name, "return type is required")
	}
	if IsFamily(ret) {
		return nil, NewSignatureError(name, fmt.Sprintf("return type cannot be a type family (%s)", ret))
	}

	sig := &FunctionSignature{
		name:     name,
		args:     slices.Clone(args),
		optional: slices.Clone(optional),
		variadic: variadic,
		ret:      ret,
		generics: slices.Clone(generics),
	}

	for _, t := range sig.argumentTypes() {
		if t == nil {
			return nil, NewSignatureError(name, "argument type is nil")
		}
		if g, ok := t.(Generic); ok && (g.ID < 0 || g.ID >= len(sig.generics)) {
			return nil, NewSignatureError(name, fmt.Sprintf("generic T%d has no type parameter", g.ID))
		}
	}

	if g, ok := ret.(Generic); ok {
		if g.ID < 0 || g.ID >= len(sig.generics) {
			return nil, NewSignatureError(name, fmt.Sprintf("generic T%d has no type parameter", g.ID))
		}
		bound := false
		for _, t := range sig.argumentTypes() {
			if ag, ok := t.(Generic); ok && ag.ID == g.ID {
				bound = true
				break
			}
		}
		if !bound {
			return nil, NewSignatureError(name, "return generic type not bounded by any input argument")
		}
	}

	return sig, nil
}

// argumentTypes returns required, optional and variadic types in order.
func (s *FunctionSignature) argumentTypes() []Type {
	all := make([]Type, 0, len(s.args)+len(s.optional)+1)
	all = append(all, s.args...)
	all = append(all, s.optional...)
	if s.variadic != nil {
		all = append(all, s.variadic)
	}
	return all
}

// Name returns the function name without the $ sigil.
func (s *FunctionSignature) Name() string { return s.name }

// Args returns a copy of the required argument types.
func (s *FunctionSignature) Args() []Type { return slices.Clone(s.args) }

// OptionalArgs returns a copy of the optional argument types.
func (s *FunctionSignature) OptionalArgs() []Type { return slices.Clone(s.optional) }

// Variadic returns the variadic argument type, if any.
func (s *FunctionSignature) Variadic() (Type, bool) { return s.variadic, s.variadic != nil }

// Return returns the return type.
func (s *FunctionSignature) Return() Type { return s.ret }

// Generics returns a copy of the generic parameter families, indexed by id.
func (s *FunctionSignature) Generics() []Family { return slices.Clone(s.generics) }

// Arity returns the minimum and maximum number of accepted arguments.
// max is -1 when the signature is variadic.
func (s *FunctionSignature) Arity() (minArgs, maxArgs int) {
	minArgs = len(s.args)
	if s.variadic != nil {
		return minArgs, -1
	}
	return minArgs, len(s.args) + len(s.optional)
}

// String renders the signature in the backend's declaration grammar:
//
//	extern fn $name<T0: Family0, ...>(arg0, arg1, opt0?, ..., var...) -> Ret
func (s *FunctionSignature) String() string {
	var b strings.Builder
	b.WriteString("extern fn $")
	b.WriteString(s.name)

	if len(s.generics) > 0 {
		b.WriteByte('<')
		for i, f := range s.generics {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "T%d: %s", i, f.Name)
		}
		b.WriteByte('>')
	}

	parts := make([]string, 0, len(s.args)+len(s.optional)+1)
	for _, t := range s.args {
		parts = append(parts, t.String())
	}
	for _, t := range s.optional {
		parts = append(parts, t.String()+"?")
	}
	if s.variadic != nil {
		parts = append(parts, s.variadic.String()+"...")
	}

	b.WriteByte('(')
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(") -> ")
	b.WriteString(s.ret.String())
	return b.String()
}

// Equal reports whether two signatures are structurally identical.
func (s *FunctionSignature) Equal(o *FunctionSignature) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.String() == o.String()
}

// CallFunc is the host side of a foreign function. Arguments arrive exactly
// as the engine passed them.
type CallFunc func(args []any) (any, error)

// ForeignFunction binds a resolved signature to its host callable.
type ForeignFunction struct {
	sig             *FunctionSignature
	call            CallFunc
	suppressWarning bool
}

// NewForeignFunction binds sig to call.
func NewForeignFunction(sig *FunctionSignature, call CallFunc, suppressWarning bool) *ForeignFunction {
	return &ForeignFunction{sig: sig, call: call, suppressWarning: suppressWarning}
}

// Signature returns the resolved signature.
func (f *ForeignFunction) Signature() *FunctionSignature { return f.sig }

// Name returns the registered function name.
func (f *ForeignFunction) Name() string { return f.sig.Name() }

// SuppressWarning reports whether the backend should silence runtime
// warnings raised by this function.
func (f *ForeignFunction) SuppressWarning() bool { return f.suppressWarning }

// Call forwards args to the host callable unchanged.
func (f *ForeignFunction) Call(args ...any) (any, error) {
	minArgs, maxArgs := f.sig.Arity()
	if len(args) < minArgs || (maxArgs >= 0 && len(args) > maxArgs) {
		return nil, fmt.Errorf("$%s: got %d arguments, want %s", f.sig.Name(), len(args), arityString(minArgs, maxArgs))
	}
	if f.call == nil {
		return nil, fmt.Errorf("$%s: no host callable bound", f.sig.Name())
	}
	return f.call(args)
}

func arityString(minArgs, maxArgs int) string {
	switch {
	case maxArgs < 0:
		return fmt.Sprintf("at least %d", minArgs)
	case minArgs == maxArgs:
		return fmt.Sprintf("%d", minArgs)
	default:
		return fmt.Sprintf("%d to %d", minArgs, maxArgs)
	}
}
