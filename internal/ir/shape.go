package ir

import (
	"fmt"
	"math"
	"slices"
	"unicode/utf8"
)

// RelationShape records what the session knows about a declared relation.
type RelationShape struct {
	Name             string
	Decl             string
	Types            []Base
	Singleton        bool
	NonProbabilistic bool
	RetainTopK       int
	InputMapping     *InputMapping
}

// Arity returns the number of columns.
func (s *RelationShape) Arity() int { return len(s.Types) }

// Clone returns a deep copy of the shape.
func (s *RelationShape) Clone() *RelationShape {
	if s == nil {
		return nil
	}
	c := *s
	c.Types = slices.Clone(s.Types)
	c.InputMapping = s.InputMapping.Clone()
	return &c
}

// InputMapping maps a vector of scores onto a fixed list of candidate
// tuples, one tuple per score position.
type InputMapping struct {
	Tuples []Tuple

	// Disjunctive puts every generated fact into one mutual-exclusion group.
	Disjunctive bool

	// RetainK keeps only the K highest scores. 0 keeps all.
	RetainK int

	// RetainThreshold drops scores below the threshold.
	RetainThreshold float64
}

// Clone returns a deep copy of the mapping.
func (m *InputMapping) Clone() *InputMapping {
	if m == nil {
		return nil
	}
	c := *m
	c.Tuples = make([]Tuple, len(m.Tuples))
	for i, t := range m.Tuples {
		c.Tuples[i] = t.Clone()
	}
	return &c
}

// intRange returns the inclusive bounds for an integer base type, clamped
// to what Int can hold. ok is false for non-integer types.
func intRange(name string) (lo, hi int64, ok bool) {
	switch name {
	case "i8":
		return math.MinInt8, math.MaxInt8, true
	case "i16":
		return math.MinInt16, math.MaxInt16, true
	case "i32":
		return math.MinInt32, math.MaxInt32, true
	case "i64", "isize", "i128":
		return math.MinInt64, math.MaxInt64, true
	case "u8":
		return 0, math.MaxUint8, true
	case "u16":
		return 0, math.MaxUint16, true
	case "u32":
		return 0, math.MaxUint32, true
	case "u64", "usize", "u128":
		return 0, math.MaxInt64, true
	}
	return 0, 0, false
}

// Accepts reports whether v is a valid value for base type t.
func Accepts(t Base, v Value) bool {
	if lo, hi, ok := intRange(t.Name); ok {
		n, isInt := v.(Int)
		if !isInt {
			return false
		}
		return int64(n) >= lo && int64(n) <= hi
	}

	switch t.Name {
	case "f32", "f64":
		f, ok := v.(Float)
		if !ok {
			return false
		}
		if t.Name == "f32" && math.Abs(float64(f)) > math.MaxFloat32 {
			return false
		}
		return true
	case "bool":
		_, ok := v.(Bool)
		return ok
	case "char":
		s, ok := v.(String)
		return ok && utf8.RuneCountInString(string(s)) == 1
	case "String", "Symbol", "DateTime", "Duration":
		_, ok := v.(String)
		return ok
	case "Entity":
		_, ok := v.(Int)
		return ok
	}
	return false
}

// CheckTuple validates a tuple against column types. The returned error is
// a TupleShapeError naming the offending column; callers set the relation
// name and element index.
func CheckTuple(relation string, index int, types []Base, t Tuple) error {
	if len(t) != len(types) {
		return NewTupleShapeError(relation, index,
			fmt.Sprintf("expected %d values, got %d", len(types), len(t)))
	}
	for i, ty := range types {
		if !Accepts(ty, t[i]) {
			got := "none"
			if t[i] != nil {
				got = t[i].String()
			}
			e := NewTupleShapeError(relation, index,
				fmt.Sprintf("column %d: %s is not a valid %s", i, got, ty.Name))
			e.Details = map[string]string{"column": fmt.Sprintf("%d", i), "type": ty.Name}
			return e
		}
	}
	return nil
}
