// Package compiler turns host-side declarations into resolved engine
// signatures. It covers annotation resolution, generic renumbering, the two
// declaration grammars the backend consumes, and CUE binding manifests.
package compiler

import (
	"fmt"
	"reflect"

	"github.com/roach88/tagbridge/internal/ir"
)

// Annotation is a host-side type annotation. Accepted forms are an ir.Type,
// a TypeParam, a type or family name string, a reflect.Type and a
// reflect.Kind.
type Annotation = any

// TypeParam declares a generic type parameter. Parameters with the same
// Label inside one Resolve call denote the same generic.
type TypeParam struct {
	Label  string
	Family ir.Family
}

// NewTypeParam builds a TypeParam from a family name. An empty family
// defaults to Any.
func NewTypeParam(label, family string) (TypeParam, error) {
	if family == "" {
		return TypeParam{Label: label, Family: ir.FamilyAny}, nil
	}
	f, ok := ir.LookupFamily(family)
	if !ok {
		return TypeParam{}, fmt.Errorf("unknown type family %q", family)
	}
	return TypeParam{Label: label, Family: f}, nil
}

// MustTypeParam is like NewTypeParam but panics on error.
func MustTypeParam(label, family string) TypeParam {
	p, err := NewTypeParam(label, family)
	if err != nil {
		panic(err)
	}
	return p
}

var errorType = reflect.TypeFor[error]()

// ResolveAnnotation maps a single annotation to an engine Type. Generic ids
// are returned as written; renumbering happens in Resolve.
func ResolveAnnotation(function string, a Annotation) (ir.Type, error) {
	s := newGenericScope(function)
	return s.resolve(a)
}

// genericScope allocates provisional generic ids for one Resolve call.
type genericScope struct {
	function string
	ids      map[string]int
	families map[int]ir.Family
}

func newGenericScope(function string) *genericScope {
	return &genericScope{
		function: function,
		ids:      make(map[string]int),
		families: make(map[int]ir.Family),
	}
}

func (s *genericScope) generic(key string, family ir.Family) (ir.Type, error) {
	id, ok := s.ids[key]
	if !ok {
		id = len(s.ids)
		s.ids[key] = id
		s.families[id] = family
	} else if s.families[id] != family {
		return nil, ir.NewSignatureError(s.function,
			fmt.Sprintf("generic %s used with families %s and %s", key, s.families[id].Name, family.Name))
	}
	return ir.Generic{ID: id, Family: family}, nil
}

func (s *genericScope) resolve(a Annotation) (ir.Type, error) {
	switch v := a.(type) {
	case nil:
		return nil, ir.NewTypeResolutionError(s.function, "<nil>")
	case ir.Generic:
		return s.generic(fmt.Sprintf("T%d", v.ID), v.Family)
	case ir.Type:
		return v, nil
	case TypeParam:
		if v.Family.Name == "" {
			v.Family = ir.FamilyAny
		}
		return s.generic("'"+v.Label, v.Family)
	case *TypeParam:
		if v == nil {
			return nil, ir.NewTypeResolutionError(s.function, "<nil>")
		}
		return s.resolve(*v)
	case string:
		return resolveName(s.function, v)
	case reflect.Type:
		return resolveReflect(s.function, v)
	case reflect.Kind:
		return resolveKind(s.function, v, v.String())
	default:
		return nil, ir.NewTypeResolutionError(s.function, a)
	}
}

func resolveName(function, name string) (ir.Type, error) {
	if f, ok := ir.LookupFamily(name); ok {
		return f, nil
	}
	if b, ok := ir.LookupBase(name); ok {
		return b, nil
	}
	return nil, ir.NewTypeResolutionError(function, name)
}

func resolveReflect(function string, t reflect.Type) (ir.Type, error) {
	if t == nil {
		return nil, ir.NewTypeResolutionError(function, "<nil>")
	}
	switch t.Kind() {
	case reflect.Pointer:
		return resolveReflect(function, t.Elem())
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return ir.FamilyAny, nil
		}
		return nil, ir.NewTypeResolutionError(function, t)
	}
	return resolveKind(function, t.Kind(), t.String())
}

func resolveKind(function string, k reflect.Kind, label string) (ir.Type, error) {
	switch k {
	case reflect.String:
		return ir.TypeString, nil
	case reflect.Bool:
		return ir.TypeBool, nil
	case reflect.Int:
		return ir.FamilyInteger, nil
	case reflect.Int8:
		return ir.Base{Name: "i8"}, nil
	case reflect.Int16:
		return ir.Base{Name: "i16"}, nil
	case reflect.Int32:
		return ir.TypeI32, nil
	case reflect.Int64:
		return ir.Base{Name: "i64"}, nil
	case reflect.Uint:
		return ir.FamilyUnsignedInteger, nil
	case reflect.Uint8:
		return ir.Base{Name: "u8"}, nil
	case reflect.Uint16:
		return ir.Base{Name: "u16"}, nil
	case reflect.Uint32:
		return ir.Base{Name: "u32"}, nil
	case reflect.Uint64:
		return ir.Base{Name: "u64"}, nil
	case reflect.Uintptr:
		return ir.TypeUsize, nil
	case reflect.Float32:
		return ir.TypeF32, nil
	case reflect.Float64:
		return ir.Base{Name: "f64"}, nil
	case reflect.Interface:
		return ir.FamilyAny, nil
	}
	return nil, ir.NewTypeResolutionError(function, label)
}
