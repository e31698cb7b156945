package harness

import "fmt"

// Failure is one recorded mismatch or failed control call.
type Failure struct {
	Scenario string `json:"scenario"`
	Case     string `json:"case"`
	Step     int    `json:"step"`
	// Field is the compared progress field, or the failed call
	// ("simulate", "progress", "grace", "schema").
	Field    string `json:"field"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`
}

// String renders the failure on one line.
func (f Failure) String() string {
	s := fmt.Sprintf("FAIL %s/%s step %d: %s", f.Scenario, f.Case, f.Step, f.Field)
	if f.Expected != "" || f.Actual != "" {
		s += fmt.Sprintf(": got %s expected %s", f.Actual, f.Expected)
	}
	if f.Message != "" {
		s += ": " + f.Message
	}
	return s
}

// TraceEvent records one HTTP step in execution order.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Scenario string `json:"scenario"`
	Case     string `json:"case"`
	Action   string `json:"action"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
}

// ScenarioSummary counts the cases of one scenario.
type ScenarioSummary struct {
	Name     string `json:"name"`
	Cases    int    `json:"cases"`
	Failed   int    `json:"failed"`
	Failures int    `json:"failures"`
}

// Result is the outcome of a run.
type Result struct {
	// Pass is true when no failure was recorded.
	Pass bool `json:"pass"`

	Scenarios []ScenarioSummary `json:"scenarios"`

	// Failures accumulate across every scenario.
	Failures []Failure `json:"failures"`

	// Trace contains every control call and observation in order.
	Trace []TraceEvent `json:"trace"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Scenarios: []ScenarioSummary{},
		Failures:  []Failure{},
		Trace:     []TraceEvent{},
	}
}

// AddFailure records a failure and marks the result as failed.
func (r *Result) AddFailure(f Failure) {
	r.Failures = append(r.Failures, f)
	r.Pass = false
}

// FailureCount is the aggregate number of failures.
func (r *Result) FailureCount() int {
	return len(r.Failures)
}

// CaseCount sums cases over all scenarios.
func (r *Result) CaseCount() int {
	n := 0
	for _, s := range r.Scenarios {
		n += s.Cases
	}
	return n
}
