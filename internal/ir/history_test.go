package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawFactsEncoding(t *testing.T) {
	facts := []RawFact{
		Fact(Int(3)),
		TaggedFact(Float(0.25), Int(0), Int(1)),
		TaggedFact(nil, String("x")),
	}
	enc := EncodeRawFacts(facts)
	require.Len(t, enc, 3)
	assert.Equal(t, Tuple{Bool(false), Null{}, Int(3)}, enc[0])

	got, err := DecodeRawFacts(enc)
	require.NoError(t, err)
	assert.Equal(t, facts[0], got[0])
	assert.Equal(t, facts[1], got[1])
	assert.True(t, got[2].Tagged)
	assert.True(t, IsNull(got[2].Tag))
}

func TestDecodeRawFactsRejectsMalformed(t *testing.T) {
	_, err := DecodeRawFacts(Int(1))
	assert.Error(t, err)

	_, err = DecodeRawFacts(Tuple{Tuple{Int(1), Null{}, Int(2)}})
	assert.Error(t, err)
}

func TestGroupsEncoding(t *testing.T) {
	assert.Equal(t, Null{}, EncodeGroups(nil))

	got, err := DecodeGroups(EncodeGroups(nil))
	require.NoError(t, err)
	assert.Nil(t, got)

	groups := [][]int{{0, 1}, {2}}
	got, err = DecodeGroups(EncodeGroups(groups))
	require.NoError(t, err)
	assert.Equal(t, groups, got)

	got, err = DecodeGroups(EncodeGroups([][]int{}))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestInputMappingEncoding(t *testing.T) {
	got, err := DecodeInputMapping(EncodeInputMapping(nil))
	require.NoError(t, err)
	assert.Nil(t, got)

	m := &InputMapping{Tuples: []Tuple{{Int(0), String("a")}}, RetainThreshold: 0.1}
	got, err = DecodeInputMapping(EncodeInputMapping(m))
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestActionClone(t *testing.T) {
	a := Action{Method: MethodAddFacts, Args: []Value{Tuple{Int(1)}}, Kwargs: map[string]Value{"k": Int(1)}}
	c := a.Clone()
	c.Args[0].(Tuple)[0] = Int(2)
	c.Kwargs["k"] = Int(9)

	assert.Equal(t, Int(1), a.Args[0].(Tuple)[0])
	assert.Equal(t, Int(1), a.Kwargs["k"])
	assert.Equal(t, Null{}, a.Arg(5))
	assert.Equal(t, Null{}, a.Kwarg("missing"))
}

func TestMethodValid(t *testing.T) {
	assert.True(t, MethodRegisterFunction.Valid())
	assert.True(t, MethodReserveGroupIDs.Valid())
	assert.False(t, Method("clone").Valid())
}
