package compiler

import (
	"fmt"

	"github.com/roach88/tagbridge/internal/ir"
)

// Param describes one host callable parameter.
type Param struct {
	Name string
	Type Annotation

	// HasDefault marks an optional parameter. Default must be nil.
	HasDefault bool
	Default    any

	// Variadic marks the rest parameter.
	Variadic bool
}

// Callable is the inspected declaration of a host function. Fn is invoked
// with the engine's arguments when the resolved function is called.
type Callable struct {
	Name      string
	Params    []Param
	Return    Annotation
	HasReturn bool
	Fn        ir.CallFunc
}

// Options override parts of the inspected declaration. A nil slice means
// "not supplied"; an empty non-nil slice means "explicitly none".
type Options struct {
	Name            string
	ArgTypes        []Annotation
	OptArgTypes     []Annotation
	VarArgType      Annotation
	ReturnType      Annotation
	SuppressWarning bool
}

// Resolve turns a callable and its overrides into a ForeignFunction whose
// signature satisfies every FunctionSignature invariant.
//
// Generic ids are renumbered densely in first-occurrence order over
// required, optional and variadic arguments, then the return type.
func Resolve(c Callable, opts Options) (*ir.ForeignFunction, error) {
	name := c.Name
	if opts.Name != "" {
		name = opts.Name
	}
	if name == "" {
		return nil, ir.NewSignatureError("", "function name is empty")
	}

	scope := newGenericScope(name)
	var (
		args     []ir.Type
		optional []ir.Type
		variadic ir.Type
		sawOpt   bool
		sawVar   bool
	)

	for i, p := range c.Params {
		if sawVar {
			return nil, ir.NewParamSignatureError(name, i, p.Name, "parameter follows the variadic parameter")
		}
		switch {
		case p.Variadic:
			sawVar = true
			if opts.VarArgType != nil {
				continue
			}
			if p.Type == nil {
				return nil, ir.NewParamSignatureError(name, i, p.Name, "variadic argument type annotation not provided")
			}
			t, err := scope.resolve(p.Type)
			if err != nil {
				return nil, err
			}
			variadic = t

		case p.HasDefault:
			sawOpt = true
			if opts.OptArgTypes != nil {
				continue
			}
			if p.Default != nil {
				return nil, ir.NewParamSignatureError(name, i, p.Name, "optional arguments need to have default nil")
			}
			t, err := scope.resolve(p.Type)
			if err != nil {
				return nil, err
			}
			optional = append(optional, t)

		default:
			if sawOpt {
				return nil, ir.NewParamSignatureError(name, i, p.Name, "required parameter follows an optional parameter")
			}
			if opts.ArgTypes != nil {
				continue
			}
			t, err := scope.resolve(p.Type)
			if err != nil {
				return nil, err
			}
			args = append(args, t)
		}
	}

	if opts.ArgTypes != nil {
		resolved, err := resolveAll(scope, opts.ArgTypes)
		if err != nil {
			return nil, err
		}
		args = resolved
	}
	if opts.OptArgTypes != nil {
		resolved, err := resolveAll(scope, opts.OptArgTypes)
		if err != nil {
			return nil, err
		}
		optional = resolved
	}
	if opts.VarArgType != nil {
		t, err := scope.resolve(opts.VarArgType)
		if err != nil {
			return nil, err
		}
		variadic = t
	}

	var ret ir.Type
	switch {
	case opts.ReturnType != nil:
		t, err := scope.resolve(opts.ReturnType)
		if err != nil {
			return nil, err
		}
		ret = t
	case c.HasReturn && c.Return != nil:
		t, err := scope.resolve(c.Return)
		if err != nil {
			return nil, err
		}
		ret = t
	default:
		return nil, ir.NewSignatureError(name, "return type annotation not provided")
	}

	if g, ok := ret.(ir.Generic); ok && !boundByArgs(g, args, optional, variadic) {
		return nil, ir.NewSignatureError(name, "return generic type not bounded by any input argument")
	}
	if ir.IsFamily(ret) {
		return nil, ir.NewSignatureError(name, fmt.Sprintf("return type cannot be a type family (%s)", ret))
	}

	generics := renumber(args, optional, &variadic, &ret)

	sig, err := ir.NewFunctionSignature(name, args, optional, variadic, ret, generics)
	if err != nil {
		return nil, err
	}
	return ir.NewForeignFunction(sig, c.Fn, opts.SuppressWarning), nil
}

func resolveAll(scope *genericScope, anns []Annotation) ([]ir.Type, error) {
	out := make([]ir.Type, 0, len(anns))
	for _, a := range anns {
		t, err := scope.resolve(a)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func boundByArgs(g ir.Generic, args, optional []ir.Type, variadic ir.Type) bool {
	for _, group := range [][]ir.Type{args, optional, {variadic}} {
		for _, t := range group {
			if ag, ok := t.(ir.Generic); ok && ag.ID == g.ID {
				return true
			}
		}
	}
	return false
}

// renumber rewrites provisional generic ids in place so they are dense and
// ordered by first occurrence. It returns the family list indexed by the
// new ids.
func renumber(args, optional []ir.Type, variadic, ret *ir.Type) []ir.Family {
	mapping := make(map[int]int)
	var families []ir.Family

	visit := func(t ir.Type) ir.Type {
		g, ok := t.(ir.Generic)
		if !ok {
			return t
		}
		id, seen := mapping[g.ID]
		if !seen {
			id = len(families)
			mapping[g.ID] = id
			families = append(families, g.Family)
		}
		return ir.Generic{ID: id, Family: g.Family}
	}

	for i := range args {
		args[i] = visit(args[i])
	}
	for i := range optional {
		optional[i] = visit(optional[i])
	}
	if *variadic != nil {
		*variadic = visit(*variadic)
	}
	*ret = visit(*ret)
	return families
}
