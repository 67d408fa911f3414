package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagbridge/internal/ir"
)

const sampleManifest = `
relation: edge: {
	fields: ["i32", "i32"]
}
relation: name: {
	fields: "String"
	non_probabilistic: true
}
relation: digit: {
	fields: ["i32"]
	retain_topk: 3
}
function: max: {
	generics: {T: "Number"}
	args: ["T", "T"]
	return: "T"
}
function: fmt: {
	args: ["String"]
	optional: ["i32"]
	variadic: "Any"
	return: "String"
	suppress_warning: true
}
`

func TestCompileManifest(t *testing.T) {
	m, err := CompileManifestString(sampleManifest)
	require.NoError(t, err)

	require.Len(t, m.Relations, 3)
	assert.Equal(t, "edge", m.Relations[0].Name)
	assert.Equal(t, "edge(i32, i32)", m.Relations[0].Decl())
	assert.False(t, m.Relations[0].Singleton)

	assert.Equal(t, "name", m.Relations[1].Name)
	assert.True(t, m.Relations[1].Singleton)
	assert.True(t, m.Relations[1].NonProbabilistic)
	assert.Equal(t, []ir.Base{ir.TypeString}, m.Relations[1].Types)

	assert.Equal(t, 3, m.Relations[2].RetainTopK)

	require.Len(t, m.Functions, 2)
	assert.Equal(t, "extern fn $max<T0: Number>(T0, T0) -> T0", m.Functions[0].Signature.String())
	assert.Equal(t, "extern fn $fmt(String, i32?, Any...) -> String", m.Functions[1].Signature.String())
	assert.True(t, m.Functions[1].SuppressWarning)

	ff := m.Functions[0].Bind(func(args []any) (any, error) { return args[0], nil })
	got, err := ff.Call(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestCompileManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"missing fields", `relation: r: {}`, "fields is required"},
		{"unknown base", `relation: r: {fields: ["int"]}`, "unknown base type"},
		{"negative topk", `relation: r: {fields: "i32", retain_topk: -1}`, "non-negative"},
		{"bad family", `function: f: {generics: {T: "Complex"}, args: ["T"], return: "T"}`, "unknown type family"},
		{"family return", `function: f: {args: ["i32"], return: "Number"}`, "type family"},
		{"missing return", `function: f: {args: ["i32"]}`, "return type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileManifestString(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			var ce *CompileError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestCompileManifestCUEError(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`relation: r: {fields: "i32"} & {fields: "String"}`)
	_, err := CompileManifest(v)
	require.Error(t, err)
}

func TestLoadManifestDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "relations.cue"), []byte(`package bindings

relation: edge: fields: ["i32", "i32"]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "functions.cue"), []byte(`package bindings

function: neg: {args: ["i32"], return: "i32"}
`), 0o644))

	m, err := LoadManifestDir(dir)
	require.NoError(t, err)
	require.Len(t, m.Relations, 1)
	require.Len(t, m.Functions, 1)
	assert.Equal(t, "extern fn $neg(i32) -> i32", m.Functions[0].Signature.String())
}

func TestLoadManifestDirMissing(t *testing.T) {
	_, err := LoadManifestDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
