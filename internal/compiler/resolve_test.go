package compiler

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagbridge/internal/ir"
)

func TestResolveBasic(t *testing.T) {
	c := Callable{
		Name: "string_index_of",
		Params: []Param{
			{Name: "s1", Type: "String"},
			{Name: "s2", Type: "String"},
		},
		Return:    "usize",
		HasReturn: true,
	}
	ff, err := Resolve(c, Options{})
	require.NoError(t, err)
	assert.Equal(t, "extern fn $string_index_of(String, String) -> usize", ff.Signature().String())
}

func TestResolvePartitionsArguments(t *testing.T) {
	c := Callable{
		Name: "f",
		Params: []Param{
			{Name: "a", Type: ir.TypeI32},
			{Name: "b", Type: reflect.TypeFor[string]()},
			{Name: "c", Type: "f32", HasDefault: true},
			{Name: "rest", Type: ir.TypeBool, Variadic: true},
		},
		Return:    ir.TypeI32,
		HasReturn: true,
	}
	ff, err := Resolve(c, Options{})
	require.NoError(t, err)

	sig := ff.Signature()
	assert.Len(t, sig.Args(), 2)
	assert.Len(t, sig.OptionalArgs(), 1)
	v, ok := sig.Variadic()
	require.True(t, ok)
	assert.Equal(t, ir.TypeBool, v)
	assert.Equal(t, "extern fn $f(i32, String, f32?, bool...) -> i32", sig.String())
}

func TestResolveRenumbersGenerics(t *testing.T) {
	// Labels first appear in the order B, A in argument position.
	a := MustTypeParam("A", "Number")
	b := MustTypeParam("B", "Any")
	c := Callable{
		Name: "pick",
		Params: []Param{
			{Name: "x", Type: b},
			{Name: "y", Type: a},
			{Name: "z", Type: a},
		},
		Return:    a,
		HasReturn: true,
	}
	ff, err := Resolve(c, Options{})
	require.NoError(t, err)

	sig := ff.Signature()
	want := []ir.Type{
		ir.Generic{ID: 0, Family: ir.FamilyAny},
		ir.Generic{ID: 1, Family: ir.FamilyNumber},
		ir.Generic{ID: 1, Family: ir.FamilyNumber},
	}
	if diff := cmp.Diff(want, sig.Args()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]ir.Family{ir.FamilyAny, ir.FamilyNumber}, sig.Generics()); diff != "" {
		t.Errorf("generics mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "extern fn $pick<T0: Any, T1: Number>(T0, T1, T1) -> T1", sig.String())
}

func TestResolveRenumbersPreNumberedGenerics(t *testing.T) {
	g7 := ir.Generic{ID: 7, Family: ir.FamilyInteger}
	g3 := ir.Generic{ID: 3, Family: ir.FamilyFloat}
	c := Callable{
		Name:      "mix",
		Params:    []Param{{Type: g7}, {Type: g3}, {Type: g7}},
		Return:    g3,
		HasReturn: true,
	}
	ff, err := Resolve(c, Options{})
	require.NoError(t, err)
	assert.Equal(t, "extern fn $mix<T0: Integer, T1: Float>(T0, T1, T0) -> T1", ff.Signature().String())
}

func TestResolveGenericScopeIsPerCall(t *testing.T) {
	tp := MustTypeParam("T", "Any")
	c := Callable{Name: "id", Params: []Param{{Type: tp}}, Return: tp, HasReturn: true}

	first, err := Resolve(c, Options{})
	require.NoError(t, err)
	second, err := Resolve(c, Options{})
	require.NoError(t, err)

	assert.True(t, first.Signature().Equal(second.Signature()))
	assert.Equal(t, "extern fn $id<T0: Any>(T0) -> T0", second.Signature().String())
}

func TestResolveOverrides(t *testing.T) {
	c := Callable{
		Name: "orig",
		Params: []Param{
			{Name: "a", Type: "String"},
			{Name: "b", Type: "String", HasDefault: true, Default: "x"},
			{Name: "rest", Variadic: true},
		},
	}
	ff, err := Resolve(c, Options{
		Name:        "renamed",
		ArgTypes:    []Annotation{"i32", "i32"},
		OptArgTypes: []Annotation{},
		VarArgType:  "bool",
		ReturnType:  "u8",
	})
	require.NoError(t, err)
	assert.Equal(t, "extern fn $renamed(i32, i32, bool...) -> u8", ff.Signature().String())
}

func TestResolveErrors(t *testing.T) {
	tp := MustTypeParam("T", "Any")

	tests := []struct {
		name    string
		c       Callable
		opts    Options
		check   func(error) bool
		wantMsg string
	}{
		{
			name:  "unknown annotation",
			c:     Callable{Name: "f", Params: []Param{{Type: "complex"}}, Return: "i32", HasReturn: true},
			check: ir.IsTypeResolutionError,
		},
		{
			name:  "unsupported reflect kind",
			c:     Callable{Name: "f", Params: []Param{{Type: reflect.TypeFor[map[string]int]()}}, Return: "i32", HasReturn: true},
			check: ir.IsTypeResolutionError,
		},
		{
			name:    "optional default not nil",
			c:       Callable{Name: "f", Params: []Param{{Type: "i32", HasDefault: true, Default: 3}}, Return: "i32", HasReturn: true},
			check:   ir.IsSignatureError,
			wantMsg: "default nil",
		},
		{
			name:    "variadic without type",
			c:       Callable{Name: "f", Params: []Param{{Variadic: true}}, Return: "i32", HasReturn: true},
			check:   ir.IsSignatureError,
			wantMsg: "variadic argument type",
		},
		{
			name:    "missing return",
			c:       Callable{Name: "f", Params: []Param{{Type: "i32"}}},
			check:   ir.IsSignatureError,
			wantMsg: "return type annotation not provided",
		},
		{
			name:    "unbounded return generic",
			c:       Callable{Name: "f", Params: []Param{{Type: "i32"}}, Return: tp, HasReturn: true},
			check:   ir.IsSignatureError,
			wantMsg: "not bounded",
		},
		{
			name:    "family return",
			c:       Callable{Name: "f", Params: []Param{{Type: "i32"}}, Return: "Number", HasReturn: true},
			check:   ir.IsSignatureError,
			wantMsg: "type family",
		},
		{
			name: "second variadic",
			c: Callable{Name: "f", Params: []Param{
				{Type: "i32", Variadic: true},
				{Type: "i32", Variadic: true},
			}, Return: "i32", HasReturn: true},
			check:   ir.IsSignatureError,
			wantMsg: "follows the variadic",
		},
		{
			name: "required after optional",
			c: Callable{Name: "f", Params: []Param{
				{Type: "i32", HasDefault: true},
				{Type: "i32"},
			}, Return: "i32", HasReturn: true},
			check:   ir.IsSignatureError,
			wantMsg: "follows an optional",
		},
		{
			name: "inconsistent generic families",
			c: Callable{Name: "f", Params: []Param{
				{Type: MustTypeParam("T", "Integer")},
				{Type: MustTypeParam("T", "Float")},
			}, Return: "i32", HasReturn: true},
			check:   ir.IsSignatureError,
			wantMsg: "families",
		},
		{
			name:    "empty name",
			c:       Callable{Return: "i32", HasReturn: true},
			check:   ir.IsSignatureError,
			wantMsg: "name is empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.c, tt.opts)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestResolveAnnotation(t *testing.T) {
	tests := []struct {
		name string
		in   Annotation
		want ir.Type
	}{
		{"base name", "Symbol", ir.Base{Name: "Symbol"}},
		{"family name", "SignedInteger", ir.FamilySignedInteger},
		{"ir type", ir.TypeF32, ir.TypeF32},
		{"go string", reflect.TypeFor[string](), ir.TypeString},
		{"go int", reflect.TypeFor[int](), ir.FamilyInteger},
		{"go uint", reflect.TypeFor[uint](), ir.FamilyUnsignedInteger},
		{"go int16", reflect.TypeFor[int16](), ir.Base{Name: "i16"}},
		{"go float64", reflect.TypeFor[float64](), ir.Base{Name: "f64"}},
		{"go pointer", reflect.TypeFor[*uint8](), ir.Base{Name: "u8"}},
		{"go any", reflect.TypeFor[any](), ir.FamilyAny},
		{"kind", reflect.Bool, ir.TypeBool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAnnotation("f", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ResolveAnnotation("f", 42)
	assert.True(t, ir.IsTypeResolutionError(err))
	_, err = ResolveAnnotation("f", reflect.TypeFor[error]())
	assert.True(t, ir.IsTypeResolutionError(err))
}

func TestNewTypeParam(t *testing.T) {
	p, err := NewTypeParam("T", "")
	require.NoError(t, err)
	assert.Equal(t, ir.FamilyAny, p.Family)

	_, err = NewTypeParam("T", "Complex")
	assert.Error(t, err)
}
