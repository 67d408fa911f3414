package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tagbridge/internal/ir"
)

// Snapshot is the part of a Result compared against golden files.
type Snapshot struct {
	ScenarioName string
	Provenance   string
	Methods      []string
	Relations    map[string][]string
	NextGroupID  int64
}

// NewSnapshot captures result for scenario name.
func NewSnapshot(name string, result *Result) Snapshot {
	methods := make([]string, len(result.Trace))
	for i, event := range result.Trace {
		methods[i] = event.Method
	}
	return Snapshot{
		ScenarioName: name,
		Provenance:   result.Provenance,
		Methods:      methods,
		Relations:    result.State,
		NextGroupID:  result.NextGroupID,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s Snapshot) MarshalCanonical() ([]byte, error) {
	relations := make(map[string]any, len(s.Relations))
	for name, facts := range s.Relations {
		relations[name] = toAnySlice(facts)
	}
	return ir.MarshalCanonical(map[string]any{
		"scenario_name": s.ScenarioName,
		"provenance":    s.Provenance,
		"history":       toAnySlice(s.Methods),
		"relations":     relations,
		"next_group_id": s.NextGroupID,
	})
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(name, result).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
