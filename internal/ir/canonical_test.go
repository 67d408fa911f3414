package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"max int64", Int(math.MaxInt64), "9223372036854775807"},
		{"float", Float(0.9), "0.9"},
		{"whole float", Float(1), "1.0"},
		{"bool", Bool(true), "true"},
		{"null", Null{}, "null"},
		{"empty tuple", Tuple{}, "[]"},
		{"tuple", Tuple{Int(1), String("a")}, `[1,"a"]`},
		{"plain map", map[string]any{"a": 1}, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	result, err := MarshalCanonical(map[string]Value{
		"zebra": Int(1),
		"alpha": Int(2),
		"beta":  Int(3),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16KeyOrder(t *testing.T) {
	// U+FF61 precedes U+1F600 in UTF-8 byte order but follows it in
	// UTF-16 code units, where the high surrogate 0xD83D is smaller.
	result, err := MarshalCanonical(map[string]any{
		"\uFF61":     1,
		"\U0001F600": 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uFF61\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	result, err := MarshalCanonical(String("<a & b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalCanonicalLineSeparatorsLiteral(t *testing.T) {
	result, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))
}

func TestMarshalCanonicalControlCharacters(t *testing.T) {
	result, err := MarshalCanonical(String("a\nb\x01\\"))
	require.NoError(t, err)
	assert.Equal(t, `"a\nb\u0001\\"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed := "e\u0301"
	composed := "\u00e9"

	a, err := MarshalCanonical(String(decomposed))
	require.NoError(t, err)
	b, err := MarshalCanonical(String(composed))
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := MarshalCanonical(Float(math.NaN()))
	assert.Error(t, err)

	_, err = MarshalCanonical(struct{}{})
	assert.Error(t, err)

	_, err = MarshalCanonical(Tuple{Int(1), Float(math.Inf(-1))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array[1]")
}

func TestMarshalCanonicalAction(t *testing.T) {
	a := Action{
		Seq:    3,
		Method: MethodAddRelation,
		Args:   []Value{String("edge"), String("edge(i32, i32)")},
		Kwargs: map[string]Value{"non_probabilistic": Bool(true)},
	}
	result, err := MarshalCanonical(a)
	require.NoError(t, err)
	assert.Equal(t,
		`{"args":["edge","edge(i32, i32)"],"kwargs":{"non_probabilistic":true},"method":"add_relation","seq":3}`,
		string(result))
}
