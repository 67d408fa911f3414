package engine

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/roach88/tagbridge/internal/compiler"
	"github.com/roach88/tagbridge/internal/ir"
)

// HostType names the host-level field types AddRelation understands
// without an explicit engine type.
type HostType int

const (
	String HostType = iota + 1
	Integer
	Boolean
	Float
)

var hostTypes = map[HostType]ir.Base{
	String:  ir.TypeString,
	Integer: ir.TypeI32,
	Boolean: ir.TypeBool,
	Float:   ir.TypeF32,
}

func (h HostType) String() string {
	switch h {
	case String:
		return "String"
	case Integer:
		return "Integer"
	case Boolean:
		return "Boolean"
	case Float:
		return "Float"
	}
	return fmt.Sprintf("HostType(%d)", int(h))
}

// RelationOption configures AddRelation.
type RelationOption func(*relationOptions)

type relationOptions struct {
	mapping          *ir.InputMapping
	retainTopK       int
	nonProbabilistic bool
}

// WithInputMapping attaches an input mapping, validated as by
// SetInputMapping.
func WithInputMapping(m *ir.InputMapping) RelationOption {
	return func(o *relationOptions) { o.mapping = m }
}

// WithRetainTopK keeps only the k best-scored facts when mapping inputs.
func WithRetainTopK(k int) RelationOption {
	return func(o *relationOptions) { o.retainTopK = k }
}

// NonProbabilistic marks the relation's facts as untagged.
func NonProbabilistic() RelationOption {
	return func(o *relationOptions) { o.nonProbabilistic = true }
}

// AddRelation declares a relation and returns its canonical name.
//
// fields is either a single field type, which declares a singleton
// relation whose facts may be bare scalars, or a slice ([]any, []string,
// []HostType, []ir.Base, []reflect.Type) declaring an explicit tuple. A
// field type is a HostType, an ir.Base, an engine base-type name, a
// reflect.Type or a reflect.Kind.
//
// Redeclaring with the same field types is idempotent and re-applies the
// options; a conflicting redeclaration fails in the backend.
func (s *Session) AddRelation(ctx context.Context, name string, fields any, opts ...RelationOption) (string, error) {
	var o relationOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.retainTopK < 0 {
		return "", ir.NewConfigurationError(fmt.Sprintf("relation %s: retain_topk must be non-negative, got %d", name, o.retainTopK))
	}

	types, singleton, err := relationTypes(name, fields)
	if err != nil {
		return "", err
	}
	name = canonicalName(name)
	decl := compiler.FormatRelationDecl(name, types)
	if o.mapping != nil {
		if err := checkMapping(&ir.RelationShape{Name: name, Types: types}, o.mapping); err != nil {
			return "", err
		}
	}

	got, err := s.backend.DeclareRelation(ctx, decl)
	if err != nil {
		return "", fmt.Errorf("declare %s: %w", decl, err)
	}
	if got != name {
		return "", fmt.Errorf("declare %s: backend named the relation %q", decl, got)
	}

	sh, existed := s.shapes[name]
	if !existed {
		sh = &ir.RelationShape{Name: name}
		s.order = append(s.order, name)
	}
	sh.Decl = decl
	sh.Types = types
	sh.Singleton = singleton
	if o.nonProbabilistic {
		sh.NonProbabilistic = true
	}
	if o.retainTopK > 0 {
		sh.RetainTopK = o.retainTopK
	}
	if o.mapping != nil {
		sh.InputMapping = o.mapping.Clone()
	}
	s.shapes[name] = sh

	kwargs := map[string]ir.Value{}
	if o.mapping != nil {
		kwargs["input_mapping"] = ir.EncodeInputMapping(o.mapping)
	}
	if o.retainTopK > 0 {
		kwargs["retain_topk"] = ir.Int(o.retainTopK)
	}
	if o.nonProbabilistic {
		kwargs["non_probabilistic"] = ir.Bool(true)
	}
	if err := s.record(ctx, ir.MethodAddRelation, []ir.Value{ir.String(name), encodeFields(types, singleton)}, kwargs); err != nil {
		return "", err
	}

	s.logger.Debug("relation declared",
		zap.String("decl", decl),
		zap.Bool("singleton", singleton),
		zap.Bool("redeclared", existed),
	)
	return name, nil
}

// relationTypes maps AddRelation's fields argument to column types.
func relationTypes(relation string, fields any) ([]ir.Base, bool, error) {
	var list []any
	switch f := fields.(type) {
	case []any:
		list = f
	case []string:
		list = toAny(f)
	case []HostType:
		list = toAny(f)
	case []ir.Base:
		list = toAny(f)
	case []reflect.Type:
		list = toAny(f)
	default:
		b, err := fieldType(relation, fields)
		if err != nil {
			return nil, false, err
		}
		return []ir.Base{b}, true, nil
	}

	types := make([]ir.Base, len(list))
	for i, f := range list {
		b, err := fieldType(relation, f)
		if err != nil {
			return nil, false, err
		}
		types[i] = b
	}
	return types, false, nil
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func fieldType(relation string, f any) (ir.Base, error) {
	switch t := f.(type) {
	case HostType:
		if b, ok := hostTypes[t]; ok {
			return b, nil
		}
	case ir.Base:
		if b, ok := ir.LookupBase(t.Name); ok {
			return b, nil
		}
	case string:
		if b, ok := ir.LookupBase(t); ok {
			return b, nil
		}
	case reflect.Type:
		if t != nil {
			return kindType(relation, t.Kind(), f)
		}
	case reflect.Kind:
		return kindType(relation, t, f)
	}
	return ir.Base{}, ir.NewTypeResolutionError(relation, f)
}

// kindType maps Go kinds to column types. Unsized int follows the host
// integer mapping; everything else maps to its exact engine width.
func kindType(relation string, k reflect.Kind, orig any) (ir.Base, error) {
	names := map[reflect.Kind]string{
		reflect.String: "String", reflect.Bool: "bool",
		reflect.Int: "i32", reflect.Int8: "i8", reflect.Int16: "i16", reflect.Int32: "i32", reflect.Int64: "i64",
		reflect.Uint: "usize", reflect.Uint8: "u8", reflect.Uint16: "u16", reflect.Uint32: "u32", reflect.Uint64: "u64",
		reflect.Uintptr: "usize",
		reflect.Float32: "f32", reflect.Float64: "f64",
	}
	if n, ok := names[k]; ok {
		b, _ := ir.LookupBase(n)
		return b, nil
	}
	return ir.Base{}, ir.NewTypeResolutionError(relation, orig)
}

func encodeFields(types []ir.Base, singleton bool) ir.Value {
	if singleton {
		return ir.String(types[0].Name)
	}
	out := make(ir.Tuple, len(types))
	for i, t := range types {
		out[i] = ir.String(t.Name)
	}
	return out
}

func decodeFields(v ir.Value) (any, error) {
	switch f := v.(type) {
	case ir.String:
		return string(f), nil
	case ir.Tuple:
		out := make([]string, len(f))
		for i, item := range f {
			name, ok := item.(ir.String)
			if !ok {
				return nil, fmt.Errorf("fields[%d]: expected string, got %T", i, item)
			}
			out[i] = string(name)
		}
		return out, nil
	}
	return nil, fmt.Errorf("fields: expected string or tuple, got %T", v)
}

// SetNonProbabilistic marks name's facts as untagged (or tagged again).
func (s *Session) SetNonProbabilistic(ctx context.Context, name string, nonProbabilistic bool) error {
	sh, err := s.shape(name)
	if err != nil {
		return err
	}
	sh.NonProbabilistic = nonProbabilistic
	return s.record(ctx, ir.MethodSetNonProbabilistic, []ir.Value{ir.String(sh.Name), ir.Bool(nonProbabilistic)}, nil)
}

// SetInputMapping attaches m to name. Every candidate tuple must match the
// relation's column types. A nil mapping removes the current one.
func (s *Session) SetInputMapping(ctx context.Context, name string, m *ir.InputMapping) error {
	sh, err := s.shape(name)
	if err != nil {
		return err
	}
	if m != nil {
		if err := checkMapping(sh, m); err != nil {
			return err
		}
		if m.Disjunctive && !s.SupportsDisjunctions() {
			s.logger.Warn("disjunctive input mapping on a provenance without disjunctions",
				zap.String("relation", sh.Name))
		}
	}
	sh.InputMapping = m.Clone()
	return s.record(ctx, ir.MethodSetInputMapping, []ir.Value{ir.String(sh.Name), ir.EncodeInputMapping(m)}, nil)
}

func checkMapping(sh *ir.RelationShape, m *ir.InputMapping) error {
	if m.RetainK < 0 {
		return ir.NewConfigurationError(fmt.Sprintf("relation %s: retain_k must be non-negative, got %d", sh.Name, m.RetainK))
	}
	for i, t := range m.Tuples {
		if err := ir.CheckTuple(sh.Name, i, sh.Types, t); err != nil {
			return err
		}
	}
	return nil
}
