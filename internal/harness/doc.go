// Package harness runs conformance scenarios against a Session.
//
// A scenario is a YAML file that declares relations, submits facts, sets
// input mappings and registers functions through the same calls a host
// would make, then asserts on the resulting relations and replay log.
// Every scenario runs on a fresh backend.Memory with deterministic
// session ids, so two runs produce byte-identical snapshots.
//
// # Scenario Format
//
//	name: disjunctive_edges
//	description: "Mutually exclusive edges share one group id"
//	provenance: topkproofs
//	manifest: schema.cue        # optional, relative to the scenario file
//	steps:
//	  - op: add_relation
//	    relation: edge
//	    fields: [i32, i32]
//	  - op: add_facts
//	    relation: edge
//	    facts:
//	      - {tag: 0.9, tuple: [0, 1]}
//	      - {tag: 0.1, tuple: [0, 2]}
//	    disjunctions: [[0, 1]]
//	  - op: add_facts
//	    relation: ghost
//	    facts: [{tuple: [1]}]
//	    expect_error: UNKNOWN_RELATION
//	assertions:
//	  - type: relation_equals
//	    relation: edge
//	    facts: ["(0.9, #0)::(0, 1)", "(0.1, #0)::(0, 2)"]
//	  - type: next_group_id
//	    count: 1
//
// # Step Operations
//
//   - add_relation: relation, fields (a type name or a list), retain_topk, non_probabilistic
//   - add_facts: relation, facts, disjunctions
//   - set_non_probabilistic: relation, value
//   - set_input_mapping: relation, mapping
//   - map_input: relation, scores
//   - add_rule: rule, tag
//   - add_program: program
//   - register_function: function (a name from Builtins)
//   - run
//
// A step with expect_error must fail with that error code; any other step
// must succeed.
//
// # Assertion Types
//
//   - relation_equals: the relation renders exactly as facts, in order
//   - relation_contains: every listed fact is present
//   - relation_count: the relation holds count facts
//   - history_order: the listed methods appear in the replay log in order
//   - history_count: method appears count times in the replay log
//   - next_group_id: the next mutual-exclusion id is count
//   - declared: the declared relations are exactly relations, in order
package harness
