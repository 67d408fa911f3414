// Package normalize converts host fact submissions into the canonical
// tagged or disjunctive element form the backend consumes.
//
// Normalize is pure apart from drawing group ids from its Allocator. It
// never talks to the backend and never checks arity or column values; the
// backend owns that. The only errors it raises concern disjunctions.
package normalize

import (
	"fmt"

	"github.com/roach88/tagbridge/internal/ir"
)

// Allocator hands out fresh mutual-exclusion group ids.
type Allocator interface {
	Next() int64
}

// Mode carries the provenance capabilities that shape normalization.
type Mode struct {
	// RequiresTag is false for provenances that carry no per-fact tag.
	RequiresTag bool

	// SupportsDisjunctions enables mutual-exclusion groups.
	SupportsDisjunctions bool
}

// Normalize shapes raw into fact elements for the relation described by
// shape. groups lists disjunctions as indices into raw; it is ignored when
// the mode does not support disjunctions.
//
// Group ids are drawn from alloc in group order, only after every group has
// been validated, so a rejected batch never consumes ids.
func Normalize(shape *ir.RelationShape, raw []ir.RawFact, groups [][]int, mode Mode, alloc Allocator) ([]ir.FactElement, error) {
	if shape == nil {
		return nil, fmt.Errorf("normalize: nil relation shape")
	}

	tuples := make([]ir.Tuple, len(raw))
	for i, f := range raw {
		tuples[i] = wrapTuple(f.Value)
	}

	scalars := make([]ir.Value, len(raw))
	for i, f := range raw {
		scalars[i] = scalarTag(shape, mode, f)
	}

	out := make([]ir.FactElement, len(raw))
	if !mode.SupportsDisjunctions {
		for i := range raw {
			var tag ir.Tag = ir.NoTag{}
			if scalars[i] != nil {
				tag = ir.ScalarTag{Value: scalars[i]}
			}
			out[i] = ir.FactElement{Tag: tag, Tuple: tuples[i]}
		}
		return out, nil
	}

	if err := ValidateGroups(len(raw), groups); err != nil {
		return nil, err
	}
	if len(groups) > 0 && alloc == nil {
		return nil, fmt.Errorf("normalize: disjunctions require an allocator")
	}

	membership := make([]*int64, len(raw))
	for _, g := range groups {
		gid := alloc.Next()
		for _, idx := range g {
			membership[idx] = ir.GroupPtr(gid)
		}
	}
	for i := range raw {
		out[i] = ir.FactElement{
			Tag:   ir.DisjunctiveTag{Scalar: scalars[i], Group: membership[i]},
			Tuple: tuples[i],
		}
	}
	return out, nil
}

// ValidateGroups checks that every index is in range and that no index
// belongs to more than one group.
func ValidateGroups(n int, groups [][]int) error {
	owner := make(map[int]int)
	for gi, g := range groups {
		for _, idx := range g {
			if idx < 0 || idx >= n {
				return ir.NewDisjunctionError(idx, fmt.Sprintf("disjunction %d references fact %d, batch has %d facts", gi, idx, n))
			}
			if prev, dup := owner[idx]; dup {
				return ir.NewDisjunctionError(idx, fmt.Sprintf("fact %d appears in disjunctions %d and %d", idx, prev, gi))
			}
			owner[idx] = gi
		}
	}
	return nil
}

// wrapTuple applies singleton wrapping. It is idempotent: a value that is
// already a tuple is kept as is. A bare value always becomes a 1-tuple,
// even for wider relations, and the backend reports the arity.
func wrapTuple(v ir.Value) ir.Tuple {
	if t, ok := v.(ir.Tuple); ok {
		return t.Clone()
	}
	if v == nil {
		v = ir.Null{}
	}
	return ir.Tuple{v}
}

// scalarTag returns the user tag carried into the element, or nil for
// none. Tag-free provenances and non-probabilistic relations discard any
// submitted tag. An untagged fact is the host's explicit "no tag" and is
// kept as such under every provenance.
func scalarTag(shape *ir.RelationShape, mode Mode, f ir.RawFact) ir.Value {
	if !mode.RequiresTag || shape.NonProbabilistic || !f.Tagged {
		return nil
	}
	if ir.IsNull(f.Tag) {
		return nil
	}
	return f.Tag
}
