package ir

import "fmt"

// Tag is the provenance annotation attached to a fact element. It is a
// sealed interface: NoTag, ScalarTag or DisjunctiveTag.
type Tag interface {
	isTag()
	String() string
}

// NoTag marks an element submitted without any tag. Renders as "none".
type NoTag struct{}

func (NoTag) isTag() {}

func (NoTag) String() string { return "none" }

// ScalarTag carries a single user tag such as a probability.
type ScalarTag struct {
	Value Value
}

func (ScalarTag) isTag() {}

func (t ScalarTag) String() string {
	if IsNull(t.Value) {
		return "none"
	}
	return t.Value.String()
}

// DisjunctiveTag pairs an optional scalar tag with an optional
// mutual-exclusion group id. Elements sharing a Group are mutually
// exclusive.
type DisjunctiveTag struct {
	Scalar Value
	Group  *int64
}

func (DisjunctiveTag) isTag() {}

// GroupID returns the mutual-exclusion group and whether one is set.
func (t DisjunctiveTag) GroupID() (int64, bool) {
	if t.Group == nil {
		return 0, false
	}
	return *t.Group, true
}

func (t DisjunctiveTag) String() string {
	scalar := "none"
	if !IsNull(t.Scalar) {
		scalar = t.Scalar.String()
	}
	if t.Group == nil {
		return fmt.Sprintf("(%s, none)", scalar)
	}
	return fmt.Sprintf("(%s, #%d)", scalar, *t.Group)
}

// GroupPtr returns a pointer to a copy of id.
func GroupPtr(id int64) *int64 { return &id }

// FactElement is a normalized fact ready for backend submission.
type FactElement struct {
	Tag   Tag
	Tuple Tuple
}

// String renders the element as tag::(v0, v1, ...).
func (e FactElement) String() string {
	tag := "none"
	if e.Tag != nil {
		tag = e.Tag.String()
	}
	return tag + "::" + e.Tuple.String()
}

// RawFact is one host submission before normalization. Value is a Tuple,
// or a bare scalar for singleton relations. Tag is only meaningful when
// Tagged is set.
type RawFact struct {
	Tagged bool
	Tag    Value
	Value  Value
}

// Fact builds an untagged RawFact. A single value is left bare so that
// singleton relations can accept it; several values form a Tuple.
func Fact(vals ...Value) RawFact {
	return RawFact{Value: factValue(vals)}
}

// TaggedFact builds a RawFact carrying tag.
func TaggedFact(tag Value, vals ...Value) RawFact {
	return RawFact{Tagged: true, Tag: tag, Value: factValue(vals)}
}

func factValue(vals []Value) Value {
	if len(vals) == 1 {
		return vals[0]
	}
	return Tuple(vals)
}
