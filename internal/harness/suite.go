package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// ScenarioNotFoundError is returned when a listed scenario file doesn't
// exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario file %q does not exist", e.Path)
}

// SuiteResult summarizes a run over several scenario files.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one failed scenario file.
type ScenarioFailure struct {
	Path  string `json:"path"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
}

// RunDir runs every *.yaml scenario in dir, in file name order.
func RunDir(ctx context.Context, dir string, opts ...Option) (*SuiteResult, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	slices.Sort(paths)
	return RunFiles(ctx, paths, opts...)
}

// RunFiles loads and runs each scenario file. A file that fails to load or
// run, or whose assertions fail, counts as a failure; RunFiles only
// returns an error when ctx is done.
func RunFiles(ctx context.Context, paths []string, opts ...Option) (*SuiteResult, error) {
	result := &SuiteResult{}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Total++

		fail := func(name, msg string) {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{Path: path, Name: name, Error: msg})
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			fail("", (&ScenarioNotFoundError{Path: path}).Error())
			continue
		}

		scenario, err := LoadScenario(path)
		if err != nil {
			fail("", fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}

		run, err := Run(ctx, scenario, opts...)
		if err != nil {
			fail(scenario.Name, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}

		if !run.Pass {
			fail(scenario.Name, fmt.Sprintf("scenario assertions failed: %v", run.Errors))
			continue
		}

		result.Passed++
	}

	return result, nil
}
