package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagbridge/internal/compiler"
	"github.com/roach88/tagbridge/internal/config"
	"github.com/roach88/tagbridge/internal/engine"
	"github.com/roach88/tagbridge/internal/ir"
)

func TestRegisterFunc(t *testing.T) {
	ctx := context.Background()
	s, mem := newSession(t, config.ProvenanceUnit)

	ff, err := s.RegisterFunc(ctx, "concat", func(a string, rest ...string) string {
		return a + strings.Join(rest, "")
	}, compiler.Options{})
	require.NoError(t, err)
	assert.Equal(t, "extern fn $concat(String, String...) -> String", ff.Signature().String())
	assert.Equal(t, []string{"extern fn $concat(String, String...) -> String"}, mem.Functions())

	got, err := mem.Invoke(ctx, "concat", "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	_, err = s.RegisterFunc(ctx, "concat", func(a string) string { return a }, compiler.Options{})
	require.Error(t, err)
	assert.True(t, ir.IsDuplicateNameError(err))

	registered, ok := s.Function("concat")
	require.True(t, ok)
	assert.Same(t, ff, registered)
}

func TestRegisterFunctionGeneric(t *testing.T) {
	ctx := context.Background()
	s, mem := newSession(t, config.ProvenanceUnit)

	num := compiler.MustTypeParam("N", "Number")
	ff, err := compiler.Resolve(compiler.Callable{
		Name:      "max",
		Params:    []compiler.Param{{Name: "a", Type: num}, {Name: "b", Type: num}},
		Return:    num,
		HasReturn: true,
		Fn: func(args []any) (any, error) {
			if args[0].(int) > args[1].(int) {
				return args[0], nil
			}
			return args[1], nil
		},
	}, compiler.Options{})
	require.NoError(t, err)
	require.NoError(t, s.RegisterFunction(ctx, ff))

	got, err := mem.Invoke(ctx, "max", 3, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, got)

	_, err = mem.Invoke(ctx, "max", 3)
	assert.Error(t, err, "arity is checked on call")
}

func TestApplyManifest(t *testing.T) {
	ctx := context.Background()
	s, mem := newSession(t, config.ProvenanceMinMaxProb)

	m, err := compiler.CompileManifestString(`
relation: edge: fields: ["i32", "i32"]
relation: digit: {
	fields: "i32"
	non_probabilistic: true
	retain_topk: 2
}
function: neg: {args: ["i32"], return: "i32"}
`)
	require.NoError(t, err)

	err = s.ApplyManifest(ctx, m, map[string]ir.CallFunc{
		"neg": func(args []any) (any, error) { return -args[0].(int32), nil },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"edge", "digit"}, s.DeclaredRelations())
	sh, ok := s.Shape("digit")
	require.True(t, ok)
	assert.True(t, sh.Singleton)
	assert.True(t, sh.NonProbabilistic)
	assert.Equal(t, 2, sh.RetainTopK)

	got, err := mem.Invoke(ctx, "neg", int32(4))
	require.NoError(t, err)
	assert.Equal(t, int32(-4), got)
}

func TestApplyManifestMissingImplementation(t *testing.T) {
	s, _ := newSession(t, config.ProvenanceUnit)
	m, err := compiler.CompileManifestString(`function: neg: {args: ["i32"], return: "i32"}`)
	require.NoError(t, err)

	err = s.ApplyManifest(context.Background(), m, nil)
	require.Error(t, err)
	assert.True(t, ir.IsSignatureError(err))
}

func TestAddRuleAndProgram(t *testing.T) {
	ctx := context.Background()
	s, mem := newSession(t, config.ProvenanceMinMaxProb)

	require.NoError(t, s.AddRule(ctx, `born_in(a, "china") :- speaks(a, "chinese")`, ir.Float(0.8)))
	require.NoError(t, s.AddProgram(ctx, "rel path(a, b) = edge(a, b)\nrel path(a, c) = path(a, b), edge(b, c)"))
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, 1, mem.Runs())
	assert.Len(t, mem.Rules(), 3)
	assert.Equal(t, ir.Float(0.8), mem.Rules()[0].Tag)
	assert.True(t, s.HasRelation("born_in"))
	assert.True(t, s.HasRelation("path"))

	err := s.AddRule(ctx, "no head here", nil)
	assert.Error(t, err)
	assert.Len(t, s.History(), 2)
}

func TestInputMapping(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t, config.ProvenanceMinMaxProb)

	mapping := &ir.InputMapping{Tuples: []ir.Tuple{{ir.Int(0)}, {ir.Int(1)}, {ir.Int(2)}, {ir.Int(3)}}, RetainK: 2}
	_, err := s.AddRelation(ctx, "digit", engine.Integer, engine.WithInputMapping(mapping))
	require.NoError(t, err)

	require.NoError(t, s.MapInput(ctx, "digit", []float64{0.1, 0.7, 0.05, 0.15}))
	got, err := s.Relation(ctx, "digit")
	require.NoError(t, err)
	assert.Equal(t, []string{"0.7::(1,)", "0.15::(3,)"}, rendered(got))
}

func TestInputMappingThresholdAndTopK(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t, config.ProvenanceMinMaxProb)
	_, err := s.AddRelation(ctx, "digit", engine.Integer, engine.WithRetainTopK(1))
	require.NoError(t, err)

	require.NoError(t, s.SetInputMapping(ctx, "digit", &ir.InputMapping{
		Tuples:          []ir.Tuple{{ir.Int(0)}, {ir.Int(1)}, {ir.Int(2)}},
		RetainThreshold: 0.2,
	}))
	require.NoError(t, s.MapInput(ctx, "digit", []float64{0.3, 0.1, 0.5}))

	got, err := s.Relation(ctx, "digit")
	require.NoError(t, err)
	assert.Equal(t, []string{"0.5::(2,)"}, rendered(got), "relation retain-topk applies when the mapping has none")
}

func TestInputMappingDisjunctive(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t, config.ProvenanceTopKProofs)
	_, err := s.AddRelation(ctx, "digit", engine.Integer, engine.WithInputMapping(&ir.InputMapping{
		Tuples:      []ir.Tuple{{ir.Int(0)}, {ir.Int(1)}},
		Disjunctive: true,
	}))
	require.NoError(t, err)

	require.NoError(t, s.MapInput(ctx, "digit", []float64{0.4, 0.6}))
	got, err := s.Relation(ctx, "digit")
	require.NoError(t, err)
	assert.Equal(t, []string{"(0.4, #0)::(0,)", "(0.6, #0)::(1,)"}, rendered(got))
}

func TestInputMappingErrors(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t, config.ProvenanceMinMaxProb)
	_, err := s.AddRelation(ctx, "edge", []string{"i32", "i32"})
	require.NoError(t, err)

	err = s.SetInputMapping(ctx, "edge", &ir.InputMapping{Tuples: []ir.Tuple{{ir.Int(0), ir.Int(1)}, {ir.Int(0)}}})
	require.Error(t, err)
	assert.True(t, ir.IsTupleShapeError(err))

	err = s.SetInputMapping(ctx, "ghost", &ir.InputMapping{})
	assert.True(t, ir.IsUnknownRelationError(err))

	err = s.MapInput(ctx, "edge", []float64{1})
	assert.True(t, ir.IsConfigurationError(err), "no mapping")

	require.NoError(t, s.SetInputMapping(ctx, "edge", &ir.InputMapping{Tuples: []ir.Tuple{{ir.Int(0), ir.Int(1)}}}))
	err = s.MapInput(ctx, "edge", []float64{0.5, 0.5})
	assert.True(t, ir.IsTupleShapeError(err), "score count must match")

	_, err = s.AddRelation(ctx, "bad", engine.Integer, engine.WithInputMapping(&ir.InputMapping{Tuples: []ir.Tuple{{ir.String("x")}}}))
	assert.True(t, ir.IsTupleShapeError(err))
	assert.False(t, s.HasRelation("bad"), "mapping is checked before declaring")
}
