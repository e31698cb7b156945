package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/roach88/streakgate/internal/store"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// WriteHistory renders stored runs as a table, newest first as given.
func WriteHistory(w io.Writer, runs []store.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED (UTC)\tRESULT\tCASES\tFAILURES\tSCENARIOS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID,
			r.StartedAt.UTC().Format(historyTimeLayout),
			passLabel(r.Pass),
			r.Cases,
			r.FailureCount,
			strings.Join(r.Scenarios, ","),
		)
	}
	return tw.Flush()
}

// WriteRun renders one stored run with its failures.
func WriteRun(w io.Writer, r store.Run) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:       %s\n", r.ID)
	fmt.Fprintf(&b, "Service:   %s\n", r.BaseURL)
	fmt.Fprintf(&b, "Started:   %s\n", r.StartedAt.UTC().Format(historyTimeLayout))
	fmt.Fprintf(&b, "Duration:  %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(&b, "Scenarios: %s\n", strings.Join(r.Scenarios, ", "))
	fmt.Fprintf(&b, "Result:    %s (%d of %d cases failed)\n", passLabel(r.Pass), r.FailedCases, r.Cases)
	if r.TraceDigest != "" {
		fmt.Fprintf(&b, "Trace:     %s\n", r.TraceDigest)
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "\nFailures (%d):\n", len(r.Failures))
		for _, f := range r.Failures {
			b.WriteString("  " + indentContinuation(f.String(), "    ") + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func passLabel(pass bool) string {
	if pass {
		return "pass"
	}
	return "FAIL"
}
