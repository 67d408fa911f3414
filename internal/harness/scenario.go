package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tagbridge/internal/config"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Provenance is the session provenance. Aliases are accepted.
	Provenance config.Provenance `yaml:"provenance"`

	// K overrides the top-k parameter. Zero keeps the default.
	K int `yaml:"k,omitempty"`

	// Manifest is an optional CUE relation/function manifest applied
	// before the steps. Resolved relative to the scenario file.
	Manifest string `yaml:"manifest,omitempty"`

	// SessionID is the prefix for deterministic session ids. Defaults to
	// the scenario name.
	SessionID string `yaml:"session_id,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one host call.
type Step struct {
	Op string `yaml:"op"`

	Relation string `yaml:"relation,omitempty"`

	// Fields is a type name (singleton) or a list of type names.
	Fields           any  `yaml:"fields,omitempty"`
	RetainTopK       int  `yaml:"retain_topk,omitempty"`
	NonProbabilistic bool `yaml:"non_probabilistic,omitempty"`

	Facts        []FactSpec `yaml:"facts,omitempty"`
	Disjunctions [][]int    `yaml:"disjunctions,omitempty"`

	Rule    string `yaml:"rule,omitempty"`
	Tag     any    `yaml:"tag,omitempty"`
	Program string `yaml:"program,omitempty"`

	// Value is the flag for set_non_probabilistic.
	Value *bool `yaml:"value,omitempty"`

	Mapping *MappingSpec `yaml:"mapping,omitempty"`
	Scores  []float64    `yaml:"scores,omitempty"`

	// Function names an entry of Builtins.
	Function string `yaml:"function,omitempty"`

	// ExpectError is the error code the step must fail with, e.g.
	// TUPLE_SHAPE. Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// FactSpec is one submitted fact. A present tag makes it a tagged fact.
type FactSpec struct {
	Tag   any `yaml:"tag,omitempty"`
	Tuple any `yaml:"tuple"`
}

// MappingSpec is an input mapping.
type MappingSpec struct {
	Tuples          []any   `yaml:"tuples"`
	Disjunctive     bool    `yaml:"disjunctive,omitempty"`
	RetainK         int     `yaml:"retain_k,omitempty"`
	RetainThreshold float64 `yaml:"retain_threshold,omitempty"`
}

// Step operations.
const (
	OpAddRelation         = "add_relation"
	OpAddFacts            = "add_facts"
	OpSetNonProbabilistic = "set_non_probabilistic"
	OpSetInputMapping     = "set_input_mapping"
	OpMapInput            = "map_input"
	OpAddRule             = "add_rule"
	OpAddProgram          = "add_program"
	OpRegisterFunction    = "register_function"
	OpRun                 = "run"
)

// Assertion validates the final state or the replay log.
type Assertion struct {
	Type string `yaml:"type"`

	Relation string   `yaml:"relation,omitempty"`
	Facts    []string `yaml:"facts,omitempty"`

	Method  string   `yaml:"method,omitempty"`
	Methods []string `yaml:"methods,omitempty"`

	Relations []string `yaml:"relations,omitempty"`

	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertRelationEquals   = "relation_equals"
	AssertRelationContains = "relation_contains"
	AssertRelationCount    = "relation_count"
	AssertHistoryOrder     = "history_order"
	AssertHistoryCount     = "history_count"
	AssertNextGroupID      = "next_group_id"
	AssertDeclared         = "declared"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, and the manifest path is resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Manifest != "" && !filepath.IsAbs(scenario.Manifest) {
		scenario.Manifest = filepath.Join(filepath.Dir(path), scenario.Manifest)
	}
	if scenario.Manifest != "" {
		if _, err := os.Stat(scenario.Manifest); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: manifest not found: %s", scenario.Manifest)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Provenance == "" {
		return fmt.Errorf("provenance is required")
	}
	if !s.Provenance.Known() {
		return fmt.Errorf("unknown provenance %q", s.Provenance)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s *Step) error {
	needRelation := func() error {
		if s.Relation == "" {
			return fmt.Errorf("steps[%d]: relation is required for %s", index, s.Op)
		}
		return nil
	}

	switch s.Op {
	case OpAddRelation:
		if err := needRelation(); err != nil {
			return err
		}
		if s.Fields == nil {
			return fmt.Errorf("steps[%d]: fields is required for %s", index, s.Op)
		}
	case OpAddFacts:
		return needRelation()
	case OpSetNonProbabilistic:
		if err := needRelation(); err != nil {
			return err
		}
		if s.Value == nil {
			return fmt.Errorf("steps[%d]: value is required for %s", index, s.Op)
		}
	case OpSetInputMapping:
		return needRelation()
	case OpMapInput:
		if err := needRelation(); err != nil {
			return err
		}
		if len(s.Scores) == 0 {
			return fmt.Errorf("steps[%d]: scores is required for %s", index, s.Op)
		}
	case OpAddRule:
		if s.Rule == "" {
			return fmt.Errorf("steps[%d]: rule is required for %s", index, s.Op)
		}
	case OpAddProgram:
		if s.Program == "" {
			return fmt.Errorf("steps[%d]: program is required for %s", index, s.Op)
		}
	case OpRegisterFunction:
		if _, ok := Builtins[s.Function]; !ok {
			return fmt.Errorf("steps[%d]: unknown builtin function %q", index, s.Function)
		}
	case OpRun:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertRelationEquals, AssertRelationContains, AssertRelationCount:
		if a.Relation == "" {
			return fmt.Errorf("assertions[%d]: relation is required for %s", index, a.Type)
		}
	case AssertHistoryOrder:
		if len(a.Methods) == 0 {
			return fmt.Errorf("assertions[%d]: methods list is required for history_order", index)
		}
	case AssertHistoryCount:
		if a.Method == "" {
			return fmt.Errorf("assertions[%d]: method is required for history_count", index)
		}
	case AssertNextGroupID, AssertDeclared:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
