package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagbridge/internal/ir"
)

type counter struct{ next int64 }

func (c *counter) Next() int64 {
	id := c.next
	c.next++
	return id
}

var (
	tagged        = Mode{RequiresTag: true}
	taggedDisj    = Mode{RequiresTag: true, SupportsDisjunctions: true}
	tagFree       = Mode{}
	tagFreeDisj   = Mode{SupportsDisjunctions: true}
	edgeShape     = &ir.RelationShape{Name: "edge", Types: []ir.Base{ir.TypeI32, ir.TypeI32}}
	digitShape    = &ir.RelationShape{Name: "digit", Types: []ir.Base{ir.TypeI32}, Singleton: true, NonProbabilistic: true}
	singletonProb = &ir.RelationShape{Name: "name", Types: []ir.Base{ir.TypeString}, Singleton: true}
)

func render(elems []ir.FactElement) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = e.String()
	}
	return out
}

func TestNonProbabilisticSingletonUnderTaggedMode(t *testing.T) {
	raw := []ir.RawFact{ir.Fact(ir.Int(0)), ir.Fact(ir.Int(1)), ir.Fact(ir.Int(2))}

	got, err := Normalize(digitShape, raw, nil, tagged, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"none::(0,)", "none::(1,)", "none::(2,)"}, render(got))
	for _, e := range got {
		assert.Equal(t, ir.NoTag{}, e.Tag)
	}
}

func TestNonProbabilisticDiscardsSubmittedTag(t *testing.T) {
	raw := []ir.RawFact{ir.TaggedFact(ir.Float(0.3), ir.Int(4))}
	got, err := Normalize(digitShape, raw, nil, tagged, nil)
	require.NoError(t, err)
	assert.Equal(t, ir.NoTag{}, got[0].Tag)
}

func TestDisjunctionGroupSharesOneID(t *testing.T) {
	raw := []ir.RawFact{
		ir.TaggedFact(ir.Float(0.9), ir.Int(0), ir.Int(1)),
		ir.TaggedFact(ir.Float(0.05), ir.Int(0), ir.Int(2)),
		ir.TaggedFact(ir.Float(0.05), ir.Int(0), ir.Int(3)),
	}
	alloc := &counter{next: 7}

	got, err := Normalize(edgeShape, raw, [][]int{{0, 1, 2}}, taggedDisj, alloc)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"(0.9, #7)::(0, 1)",
		"(0.05, #7)::(0, 2)",
		"(0.05, #7)::(0, 3)",
	}, render(got))
	assert.Equal(t, int64(8), alloc.next, "exactly one id allocated")
}

func TestDisjunctionPartition(t *testing.T) {
	raw := make([]ir.RawFact, 6)
	for i := range raw {
		raw[i] = ir.TaggedFact(ir.Float(0.5), ir.Int(int64(i)), ir.Int(0))
	}
	groups := [][]int{{4, 0}, {2}, {5, 1}}
	alloc := &counter{}

	got, err := Normalize(edgeShape, raw, groups, taggedDisj, alloc)
	require.NoError(t, err)
	require.Len(t, got, len(raw))

	ids := map[int64][]int{}
	for i, e := range got {
		dt, ok := e.Tag.(ir.DisjunctiveTag)
		require.True(t, ok, "every element is disjunctive")
		if gid, ok := dt.GroupID(); ok {
			ids[gid] = append(ids[gid], i)
		} else {
			assert.Equal(t, 3, i, "only index 3 is ungrouped")
		}
	}
	assert.Equal(t, map[int64][]int{0: {0, 4}, 1: {2}, 2: {1, 5}}, ids)
}

func TestTagFreeDisjunctions(t *testing.T) {
	raw := []ir.RawFact{ir.Fact(ir.Int(0), ir.Int(1)), ir.Fact(ir.Int(1), ir.Int(2))}
	got, err := Normalize(edgeShape, raw, [][]int{{1}}, tagFreeDisj, &counter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"(none, none)::(0, 1)", "(none, #0)::(1, 2)"}, render(got))
}

func TestTagFreeModeIgnoresTags(t *testing.T) {
	raw := []ir.RawFact{ir.TaggedFact(ir.Float(0.9), ir.Int(0), ir.Int(1))}
	got, err := Normalize(edgeShape, raw, nil, tagFree, nil)
	require.NoError(t, err)
	assert.Equal(t, ir.NoTag{}, got[0].Tag)
}

func TestDisjunctionsIgnoredWithoutSupport(t *testing.T) {
	alloc := &counter{}
	raw := []ir.RawFact{ir.TaggedFact(ir.Float(0.9), ir.Int(0), ir.Int(1))}
	got, err := Normalize(edgeShape, raw, [][]int{{0}, {7}}, tagged, alloc)
	require.NoError(t, err)
	assert.Equal(t, ir.ScalarTag{Value: ir.Float(0.9)}, got[0].Tag)
	assert.Equal(t, int64(0), alloc.next)
}

func TestSingletonWrappingIdempotent(t *testing.T) {
	raw := []ir.RawFact{
		ir.TaggedFact(ir.Float(1), ir.String("a")),
		{Tagged: true, Tag: ir.Float(1), Value: ir.Tuple{ir.String("b")}},
	}
	got, err := Normalize(singletonProb, raw, nil, tagged, nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Tuple{ir.String("a")}, got[0].Tuple)
	assert.Equal(t, ir.Tuple{ir.String("b")}, got[1].Tuple, "a 1-tuple is not nested")

	again, err := Normalize(singletonProb, []ir.RawFact{{Value: got[0].Tuple}}, nil, tagged, nil)
	require.NoError(t, err)
	assert.Equal(t, got[0].Tuple, again[0].Tuple)
}

func TestBareScalarOnTupleRelation(t *testing.T) {
	got, err := Normalize(edgeShape, []ir.RawFact{ir.Fact(ir.Int(1))}, nil, tagged, nil)
	require.NoError(t, err, "arity belongs to the backend")
	assert.Equal(t, ir.Tuple{ir.Int(1)}, got[0].Tuple)

	err = ir.CheckTuple(edgeShape.Name, 0, edgeShape.Types, got[0].Tuple)
	assert.True(t, ir.IsTupleShapeError(err))
}

func TestUntaggedFactUnderTaggedMode(t *testing.T) {
	raw := []ir.RawFact{ir.Fact(ir.Int(0), ir.Int(1))}

	got, err := Normalize(edgeShape, raw, nil, tagged, nil)
	require.NoError(t, err)
	assert.Equal(t, ir.NoTag{}, got[0].Tag)

	c := &counter{}
	got, err = Normalize(edgeShape, raw, nil, taggedDisj, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"(none, none)::(0, 1)"}, render(got))
	assert.Equal(t, int64(0), c.next)
}

func TestInvalidGroupsRejectedBeforeAllocation(t *testing.T) {
	raw := []ir.RawFact{ir.Fact(ir.Int(0), ir.Int(1)), ir.Fact(ir.Int(1), ir.Int(2))}

	tests := []struct {
		name   string
		groups [][]int
	}{
		{"out of range", [][]int{{0}, {2}}},
		{"negative", [][]int{{-1}}},
		{"overlap", [][]int{{0, 1}, {1}}},
		{"duplicate inside group", [][]int{{0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc := &counter{next: 3}
			_, err := Normalize(edgeShape, raw, tt.groups, tagFreeDisj, alloc)
			require.Error(t, err)
			assert.True(t, ir.IsDisjunctionError(err))
			assert.Equal(t, int64(3), alloc.next, "no ids consumed")
		})
	}
}

func TestNormalizeDoesNotAliasInput(t *testing.T) {
	in := ir.Tuple{ir.Int(0), ir.Int(1)}
	got, err := Normalize(edgeShape, []ir.RawFact{{Value: in}}, nil, tagFree, nil)
	require.NoError(t, err)
	in[0] = ir.Int(99)
	assert.Equal(t, ir.Int(0), got[0].Tuple[0])
}

func TestReserve(t *testing.T) {
	alloc := &counter{next: 10}
	r := Reserve(alloc, 3)
	assert.Equal(t, []int64{10, 11, 12}, r.IDs())
	assert.Equal(t, int64(13), alloc.next)

	assert.Equal(t, int64(10), r.Next())
	assert.Equal(t, int64(11), r.Next())
	assert.Equal(t, int64(12), r.Next())
	assert.Panics(t, func() { r.Next() })
}
