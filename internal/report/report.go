// Package report renders run results for people and machines.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/streakgate/internal/harness"
)

// Summary is the machine-readable outcome of a run.
type Summary struct {
	RunID        string                    `json:"run_id,omitempty"`
	Pass         bool                      `json:"pass"`
	Passed       int                       `json:"passed"`
	Failed       int                       `json:"failed"`
	Total        int                       `json:"total"`
	FailureCount int                       `json:"failure_count"`
	TraceDigest  string                    `json:"trace_digest,omitempty"`
	Scenarios    []harness.ScenarioSummary `json:"scenarios"`
	Failures     []harness.Failure         `json:"failures"`
}

// Summarize counts cases and collects failures from r.
func Summarize(runID string, r *harness.Result) Summary {
	s := Summary{
		RunID:        runID,
		Pass:         r.Pass,
		Total:        r.CaseCount(),
		FailureCount: r.FailureCount(),
		Scenarios:    r.Scenarios,
		Failures:     r.Failures,
	}
	for _, sc := range r.Scenarios {
		s.Failed += sc.Failed
	}
	s.Passed = s.Total - s.Failed
	if digest, err := TraceDigest(r); err == nil {
		s.TraceDigest = digest
	}
	return s
}

// WriteText renders a human-readable summary: one line per scenario, every
// failure beneath its scenario, and a closing count.
func WriteText(w io.Writer, s Summary) error {
	byScenario := make(map[string][]harness.Failure)
	for _, f := range s.Failures {
		byScenario[f.Scenario] = append(byScenario[f.Scenario], f)
	}

	var b strings.Builder
	for _, sc := range s.Scenarios {
		if sc.Failed == 0 {
			fmt.Fprintf(&b, "✓ %s (%d cases)\n", sc.Name, sc.Cases)
			continue
		}
		fmt.Fprintf(&b, "✗ %s (%d of %d cases failed)\n", sc.Name, sc.Failed, sc.Cases)
		for _, f := range byScenario[sc.Name] {
			fmt.Fprintf(&b, "    %s\n", indentContinuation(f.String(), "      "))
		}
	}

	fmt.Fprintf(&b, "\nTest Summary: %d passed, %d failed, %d total\n", s.Passed, s.Failed, s.Total)
	if s.FailureCount > 0 {
		fmt.Fprintf(&b, "Failures: %d\n", s.FailureCount)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func indentContinuation(s, prefix string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}
