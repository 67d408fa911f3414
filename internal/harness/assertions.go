package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Method, event.Args)
	}

	return buf.String()
}

func relationFacts(result *Result, a Assertion) ([]string, error) {
	facts, ok := result.State[a.Relation]
	if !ok {
		return nil, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("relation %s", a.Relation),
			Actual:   "relation unknown to the backend",
			Trace:    result.Trace,
		}
	}
	return facts, nil
}

// assertRelationEquals checks the rendered relation, order included.
func assertRelationEquals(result *Result, a Assertion) error {
	facts, err := relationFacts(result, a)
	if err != nil {
		return err
	}
	if slices.Equal(facts, a.Facts) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s = %v", a.Relation, a.Facts),
		Actual:   fmt.Sprintf("%s = %v", a.Relation, facts),
		Trace:    result.Trace,
	}
}

// assertRelationContains checks that every listed fact is present.
func assertRelationContains(result *Result, a Assertion) error {
	facts, err := relationFacts(result, a)
	if err != nil {
		return err
	}
	for _, want := range a.Facts {
		if !slices.Contains(facts, want) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s contains %s", a.Relation, want),
				Actual:   fmt.Sprintf("%s = %v", a.Relation, facts),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func assertRelationCount(result *Result, a Assertion) error {
	facts, err := relationFacts(result, a)
	if err != nil {
		return err
	}
	if len(facts) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s holds %d facts", a.Relation, a.Count),
		Actual:   fmt.Sprintf("%d facts", len(facts)),
		Trace:    result.Trace,
	}
}

// assertHistoryOrder checks that methods appear in the replay log in the
// given order. Intervening actions are allowed and a method may repeat.
func assertHistoryOrder(result *Result, a Assertion) error {
	next := 0
	for _, event := range result.Trace {
		if next < len(a.Methods) && event.Method == a.Methods[next] {
			next++
		}
	}
	if next == len(a.Methods) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("methods in order: %v", a.Methods),
		Actual:   fmt.Sprintf("matched %v, missing %s", a.Methods[:next], a.Methods[next]),
		Trace:    result.Trace,
	}
}

func assertHistoryCount(result *Result, a Assertion) error {
	count := 0
	for _, event := range result.Trace {
		if event.Method == a.Method {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s recorded %d times", a.Method, a.Count),
		Actual:   fmt.Sprintf("recorded %d times", count),
		Trace:    result.Trace,
	}
}

func assertNextGroupID(result *Result, a Assertion) error {
	if result.NextGroupID == int64(a.Count) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("next group id %d", a.Count),
		Actual:   fmt.Sprintf("next group id %d", result.NextGroupID),
		Trace:    result.Trace,
	}
}

func assertDeclared(result *Result, a Assertion) error {
	if slices.Equal(result.Declared, a.Relations) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("declared %v", a.Relations),
		Actual:   fmt.Sprintf("declared %v", result.Declared),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions runs every assertion against result and returns the
// failure messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertRelationEquals:
			err = assertRelationEquals(result, a)
		case AssertRelationContains:
			err = assertRelationContains(result, a)
		case AssertRelationCount:
			err = assertRelationCount(result, a)
		case AssertHistoryOrder:
			err = assertHistoryOrder(result, a)
		case AssertHistoryCount:
			err = assertHistoryCount(result, a)
		case AssertNextGroupID:
			err = assertNextGroupID(result, a)
		case AssertDeclared:
			err = assertDeclared(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}
