package compiler

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagbridge/internal/ir"
)

func TestDescribeMapsGoFunc(t *testing.T) {
	fn := func(s string, sep *string, parts ...string) (int32, error) {
		return int32(len(parts)), nil
	}
	c, err := Describe("count", fn)
	require.NoError(t, err)
	require.Len(t, c.Params, 3)
	assert.False(t, c.Params[0].HasDefault)
	assert.True(t, c.Params[1].HasDefault)
	assert.True(t, c.Params[2].Variadic)
	assert.True(t, c.HasReturn)

	ff, err := Resolve(c, Options{})
	require.NoError(t, err)
	assert.Equal(t, "extern fn $count(String, String?, String...) -> i32", ff.Signature().String())
}

func TestDescribeRejects(t *testing.T) {
	_, err := Describe("x", 42)
	assert.True(t, ir.IsSignatureError(err))

	var nilFn func() int32
	_, err = Describe("x", nilFn)
	assert.True(t, ir.IsSignatureError(err))

	_, err = Describe("x", func() (int32, int32) { return 0, 0 })
	assert.True(t, ir.IsSignatureError(err))
}

func TestDescribeNoReturnFailsResolve(t *testing.T) {
	_, err := FromFunc("noop", func(int32) {}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "return type annotation not provided")

	ff, err := FromFunc("noop", func(int32) {}, Options{ReturnType: "bool"})
	require.NoError(t, err)
	got, err := ff.Call(int64(1))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFromFuncCallForwardsArguments(t *testing.T) {
	ff, err := FromFunc("join", func(sep string, parts ...string) string {
		return strings.Join(parts, sep)
	}, Options{})
	require.NoError(t, err)

	got, err := ff.Call("-", "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, "a-b-c", got)
}

func TestFromFuncCoercesNumbers(t *testing.T) {
	ff, err := FromFunc("add", func(a, b int32) int32 { return a + b }, Options{})
	require.NoError(t, err)

	got, err := ff.Call(int64(2), ir.Int(3))
	require.NoError(t, err)
	assert.Equal(t, int32(5), got)

	_, err = ff.Call("two", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argument 0")
}

func TestFromFuncRejectsLossyNumbers(t *testing.T) {
	i8, err := FromFunc("id8", func(x int8) int8 { return x }, Options{})
	require.NoError(t, err)
	i32, err := FromFunc("id32", func(x int32) int32 { return x }, Options{})
	require.NoError(t, err)
	u8, err := FromFunc("idu8", func(x uint8) uint8 { return x }, Options{})
	require.NoError(t, err)
	f32, err := FromFunc("idf32", func(x float32) float32 { return x }, Options{})
	require.NoError(t, err)
	f64, err := FromFunc("idf64", func(x float64) float64 { return x }, Options{})
	require.NoError(t, err)

	tests := []struct {
		name string
		ff   *ir.ForeignFunction
		arg  any
		want any
	}{
		{name: "int in range", ff: i8, arg: ir.Int(-128), want: int8(-128)},
		{name: "int overflows int8", ff: i8, arg: ir.Int(300)},
		{name: "fractional float to int", ff: i32, arg: ir.Float(3.9)},
		{name: "integral float to int", ff: i32, arg: ir.Float(4), want: int32(4)},
		{name: "float beyond int32", ff: i32, arg: 1e10},
		{name: "negative to uint", ff: u8, arg: -1},
		{name: "uint in range", ff: u8, arg: uint64(255), want: uint8(255)},
		{name: "float overflows float32", ff: f32, arg: 1e300},
		{name: "float fits float32", ff: f32, arg: ir.Float(0.5), want: float32(0.5)},
		{name: "int exact in float64", ff: f64, arg: int64(1 << 53), want: float64(1 << 53)},
		{name: "int inexact in float64", ff: f64, arg: int64(1<<53 + 1)},
		{name: "nan to int", ff: i32, arg: math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ff.Call(tt.arg)
			if tt.want == nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "does not fit")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromFuncOptionalArguments(t *testing.T) {
	ff, err := FromFunc("greet", func(name string, greeting *string) string {
		if greeting == nil {
			return "hello " + name
		}
		return *greeting + " " + name
	}, Options{})
	require.NoError(t, err)

	got, err := ff.Call("ada")
	require.NoError(t, err)
	assert.Equal(t, "hello ada", got)

	got, err = ff.Call("ada", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi ada", got)

	got, err = ff.Call("ada", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello ada", got)
}

func TestFromFuncPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	ff, err := FromFunc("fail", func(x int32) (int32, error) { return 0, boom }, Options{})
	require.NoError(t, err)

	_, err = ff.Call(1)
	assert.ErrorIs(t, err, boom)
}

func TestFromFuncGenericOverride(t *testing.T) {
	tp := MustTypeParam("T", "Number")
	ff, err := FromFunc("max", func(a, b float64) float64 {
		if a > b {
			return a
		}
		return b
	}, Options{ArgTypes: []Annotation{tp, tp}, ReturnType: tp})
	require.NoError(t, err)
	assert.Equal(t, "extern fn $max<T0: Number>(T0, T0) -> T0", ff.Signature().String())

	got, err := ff.Call(1.5, 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)
}
