package ir

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Method names a replayable session operation.
type Method string

const (
	MethodAddRelation         Method = "add_relation"
	MethodAddFacts            Method = "add_facts"
	MethodAddRule             Method = "add_rule"
	MethodAddProgram          Method = "add_program"
	MethodRegisterFunction    Method = "register_function"
	MethodSetNonProbabilistic Method = "set_non_probabilistic"
	MethodSetInputMapping     Method = "set_input_mapping"

	// MethodReserveGroupIDs records group ids drawn by a call that left
	// no other entry: a rejected fact batch or a RunBatch.
	MethodReserveGroupIDs Method = "reserve_group_ids"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodAddRelation, MethodAddFacts, MethodAddRule, MethodAddProgram,
		MethodRegisterFunction, MethodSetNonProbabilistic, MethodSetInputMapping,
		MethodReserveGroupIDs:
		return true
	}
	return false
}

// Action is one entry of a session's replay log: the method that was
// invoked with its positional and keyword arguments, already lowered to
// Values.
type Action struct {
	Seq    int64
	Method Method
	Args   []Value
	Kwargs map[string]Value
}

// Clone returns a deep copy of the action.
func (a Action) Clone() Action {
	c := a
	c.Args = make([]Value, len(a.Args))
	for i, v := range a.Args {
		c.Args[i] = cloneValue(v)
	}
	if a.Kwargs != nil {
		c.Kwargs = make(map[string]Value, len(a.Kwargs))
		for k, v := range a.Kwargs {
			c.Kwargs[k] = cloneValue(v)
		}
	}
	return c
}

func cloneValue(v Value) Value {
	if t, ok := v.(Tuple); ok {
		return t.Clone()
	}
	return v
}

// Arg returns positional argument i, or Null when absent.
func (a Action) Arg(i int) Value {
	if i < 0 || i >= len(a.Args) || a.Args[i] == nil {
		return Null{}
	}
	return a.Args[i]
}

// Kwarg returns keyword argument k, or Null when absent.
func (a Action) Kwarg(k string) Value {
	if v, ok := a.Kwargs[k]; ok && v != nil {
		return v
	}
	return Null{}
}

type actionJSON struct {
	Seq    int64                      `json:"seq"`
	Method Method                     `json:"method"`
	Args   []json.RawMessage          `json:"args"`
	Kwargs map[string]json.RawMessage `json:"kwargs,omitempty"`
}

// MarshalJSON encodes the action in canonical form.
func (a Action) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(a)
}

// UnmarshalJSON decodes an action written by MarshalJSON.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw actionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Method.Valid() {
		return fmt.Errorf("unknown method %q", raw.Method)
	}
	out := Action{Seq: raw.Seq, Method: raw.Method, Args: make([]Value, len(raw.Args))}
	for i, r := range raw.Args {
		v, err := UnmarshalValue(r)
		if err != nil {
			return fmt.Errorf("args[%d]: %w", i, err)
		}
		out.Args[i] = v
	}
	if len(raw.Kwargs) > 0 {
		out.Kwargs = make(map[string]Value, len(raw.Kwargs))
		for k, r := range raw.Kwargs {
			v, err := UnmarshalValue(r)
			if err != nil {
				return fmt.Errorf("kwargs[%q]: %w", k, err)
			}
			out.Kwargs[k] = v
		}
	}
	*a = out
	return nil
}

// EncodeRawFacts lowers facts to a Tuple of (tagged, tag, value) triples.
func EncodeRawFacts(facts []RawFact) Tuple {
	out := make(Tuple, len(facts))
	for i, f := range facts {
		tag := Value(Null{})
		if f.Tagged && f.Tag != nil {
			tag = f.Tag
		}
		val := f.Value
		if val == nil {
			val = Null{}
		}
		out[i] = Tuple{Bool(f.Tagged), tag, cloneValue(val)}
	}
	return out
}

// DecodeRawFacts is the inverse of EncodeRawFacts.
func DecodeRawFacts(v Value) ([]RawFact, error) {
	list, ok := v.(Tuple)
	if !ok {
		return nil, fmt.Errorf("facts: expected tuple, got %T", v)
	}
	out := make([]RawFact, len(list))
	for i, item := range list {
		triple, ok := item.(Tuple)
		if !ok || len(triple) != 3 {
			return nil, fmt.Errorf("facts[%d]: expected (tagged, tag, value)", i)
		}
		tagged, ok := triple[0].(Bool)
		if !ok {
			return nil, fmt.Errorf("facts[%d]: tagged flag is %T", i, triple[0])
		}
		f := RawFact{Tagged: bool(tagged), Value: triple[2]}
		if f.Tagged {
			f.Tag = triple[1]
		}
		out[i] = f
	}
	return out, nil
}

// EncodeGroups lowers disjunction groups. nil encodes as Null so replay
// can tell "no disjunctions" from "zero groups".
func EncodeGroups(groups [][]int) Value {
	if groups == nil {
		return Null{}
	}
	out := make(Tuple, len(groups))
	for i, g := range groups {
		members := make(Tuple, len(g))
		for j, idx := range g {
			members[j] = Int(idx)
		}
		out[i] = members
	}
	return out
}

// DecodeGroups is the inverse of EncodeGroups.
func DecodeGroups(v Value) ([][]int, error) {
	if IsNull(v) {
		return nil, nil
	}
	list, ok := v.(Tuple)
	if !ok {
		return nil, fmt.Errorf("disjunctions: expected tuple, got %T", v)
	}
	out := make([][]int, len(list))
	for i, item := range list {
		members, ok := item.(Tuple)
		if !ok {
			return nil, fmt.Errorf("disjunctions[%d]: expected tuple", i)
		}
		out[i] = make([]int, len(members))
		for j, m := range members {
			n, ok := m.(Int)
			if !ok {
				return nil, fmt.Errorf("disjunctions[%d][%d]: expected int", i, j)
			}
			out[i][j] = int(n)
		}
	}
	return out, nil
}

// EncodeInputMapping lowers a mapping to (tuples, disjunctive, retain_k,
// retain_threshold). nil encodes as Null.
func EncodeInputMapping(m *InputMapping) Value {
	if m == nil {
		return Null{}
	}
	tuples := make(Tuple, len(m.Tuples))
	for i, t := range m.Tuples {
		tuples[i] = t.Clone()
	}
	return Tuple{tuples, Bool(m.Disjunctive), Int(m.RetainK), Float(m.RetainThreshold)}
}

// DecodeInputMapping is the inverse of EncodeInputMapping.
func DecodeInputMapping(v Value) (*InputMapping, error) {
	if IsNull(v) {
		return nil, nil
	}
	parts, ok := v.(Tuple)
	if !ok || len(parts) != 4 {
		return nil, fmt.Errorf("input mapping: expected 4-tuple")
	}
	tuples, ok := parts[0].(Tuple)
	if !ok {
		return nil, fmt.Errorf("input mapping: tuples is %T", parts[0])
	}
	m := &InputMapping{Tuples: make([]Tuple, len(tuples))}
	for i, t := range tuples {
		tt, ok := t.(Tuple)
		if !ok {
			return nil, fmt.Errorf("input mapping: tuples[%d] is %T", i, t)
		}
		m.Tuples[i] = slices.Clone(tt)
	}
	disj, ok := parts[1].(Bool)
	if !ok {
		return nil, fmt.Errorf("input mapping: disjunctive flag is %T", parts[1])
	}
	k, ok := parts[2].(Int)
	if !ok {
		return nil, fmt.Errorf("input mapping: retain_k is %T", parts[2])
	}
	m.Disjunctive = bool(disj)
	m.RetainK = int(k)
	switch thr := parts[3].(type) {
	case Float:
		m.RetainThreshold = float64(thr)
	case Int:
		m.RetainThreshold = float64(thr)
	default:
		return nil, fmt.Errorf("input mapping: retain_threshold is %T", parts[3])
	}
	return m, nil
}
