package harness

import "github.com/roach88/tagbridge/internal/ir"

// TraceEvent is one replay-log action as seen by assertions.
type TraceEvent struct {
	Seq    int64               `json:"seq"`
	Method string              `json:"method"`
	Args   []ir.Value          `json:"args,omitempty"`
	Kwargs map[string]ir.Value `json:"kwargs,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	SessionID  string `json:"session_id"`
	Provenance string `json:"provenance"`

	// Trace is the session's replay log.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State maps every relation the backend knows to its rendered facts.
	State map[string][]string `json:"state"`

	// Declared lists relations declared through add_relation, in order.
	Declared []string `json:"declared"`

	NextGroupID int64  `json:"next_group_id"`
	Digest      string `json:"digest"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		State:    make(map[string][]string),
		Declared: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a replay-log action.
func (r *Result) AddTrace(a ir.Action) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    a.Seq,
		Method: string(a.Method),
		Args:   a.Args,
		Kwargs: a.Kwargs,
	})
}
