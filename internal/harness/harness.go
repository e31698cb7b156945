package harness

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/streakgate/internal/fixture"
	"github.com/roach88/streakgate/internal/rank"
	"github.com/roach88/streakgate/internal/session"
)

const graceDateLayout = "2006-01-02"

// Runner executes scenarios against an authenticated session.
//
// Execution is strictly sequential: one request completes before the next
// is issued, cases run in declaration order, and failures accumulate
// instead of aborting the run.
type Runner struct {
	ctrl   *fixture.Controller
	table  rank.Table
	logger *slog.Logger
	now    func() time.Time
	schema *jsonschema.Schema
	seq    int64
}

// Option configures a Runner.
type Option func(*Runner)

// WithTable sets the rank table used by oracle expectations.
func WithTable(t rank.Table) Option {
	return func(r *Runner) {
		if len(t) > 0 {
			r.table = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the clock grace dates are computed from.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSchema enables strict mode: every progress payload is validated
// against schema and each invalid payload is recorded as a failure.
func WithSchema(s *jsonschema.Schema) Option {
	return func(r *Runner) {
		r.schema = s
	}
}

// NewRunner creates a Runner that drives ctrl.
func NewRunner(ctrl *fixture.Controller, opts ...Option) *Runner {
	r := &Runner{
		ctrl:   ctrl,
		table:  rank.DefaultTable,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes scenarios in order and returns the accumulated result.
// The error is non-nil only when ctx ends before the run completes; the
// partial result is still returned.
func (r *Runner) Run(ctx context.Context, sess *session.Session, scenarios ...*Scenario) (*Result, error) {
	result := NewResult()
	r.seq = 0

	for _, sc := range scenarios {
		summary := ScenarioSummary{Name: sc.Name}
		r.logger.Info("scenario started", "scenario", sc.Name, "cases", len(sc.Cases))

		for _, c := range sc.Cases {
			if err := ctx.Err(); err != nil {
				result.Scenarios = append(result.Scenarios, summary)
				return result, fmt.Errorf("run interrupted in scenario %q: %w", sc.Name, err)
			}

			before := result.FailureCount()
			r.runCase(ctx, sess, sc.Name, c, result)

			summary.Cases++
			if added := result.FailureCount() - before; added > 0 {
				summary.Failed++
				summary.Failures += added
			}
		}

		result.Scenarios = append(result.Scenarios, summary)
		r.logger.Info("scenario finished",
			"scenario", sc.Name,
			"cases", summary.Cases,
			"failed_cases", summary.Failed,
			"failures", summary.Failures,
		)
	}

	return result, nil
}

// runCase executes the steps of c. A failed simulate or progress fetch
// ends the case; a failed grace application does not.
func (r *Runner) runCase(ctx context.Context, sess *session.Session, scenario string, c Case, result *Result) {
	captures := make(map[string]fixture.StreakState)

	fail := func(step int, f Failure) {
		f.Scenario, f.Case, f.Step = scenario, c.Name, step
		result.AddFailure(f)
		r.logger.Warn("check failed",
			"scenario", scenario,
			"case", c.Name,
			"step", step,
			"field", f.Field,
			"expected", f.Expected,
			"actual", f.Actual,
			"message", f.Message,
		)
	}

	for i, step := range c.Steps {
		n := i + 1

		switch step.Action {
		case ActionSimulate:
			resp, err := r.ctrl.SimulateStreak(ctx, sess, step.Streak, step.SkipOffsets)
			r.trace(result, scenario, c.Name, step.Action, resp.Status, simulateDetail(step))
			if err != nil {
				fail(n, Failure{Field: "simulate", Message: err.Error()})
				return
			}
			if resp.Status != http.StatusOK || !resp.Bool("success") {
				fail(n, Failure{Field: "simulate", Message: fmt.Sprintf("simulate-streak %d: status %d", step.Streak, resp.Status)})
				return
			}

		case ActionGrace:
			date := r.graceDate(step.GraceOffsetDays)
			resp, err := r.ctrl.ApplyGrace(ctx, sess, date)
			r.trace(result, scenario, c.Name, step.Action, resp.Status, "date="+date)
			if err != nil {
				fail(n, Failure{Field: "grace", Message: err.Error()})
				continue
			}
			if resp.Status != http.StatusOK {
				fail(n, Failure{Field: "grace", Message: fmt.Sprintf("grace for %s: status %d", date, resp.Status)})
			}

		case ActionCheck:
			state, resp, err := r.ctrl.Progress(ctx, sess)
			r.trace(result, scenario, c.Name, step.Action, resp.Status, "")
			if err != nil {
				fail(n, Failure{Field: "progress", Message: err.Error()})
				return
			}
			if resp.Status != http.StatusOK {
				fail(n, Failure{Field: "progress", Message: fmt.Sprintf("progress fetch: status %d", resp.Status)})
				return
			}

			if r.schema != nil {
				if err := r.schema.Validate(resp.Body); err != nil {
					fail(n, Failure{Field: "schema", Message: err.Error()})
				}
			}
			if step.Expect != nil {
				for _, m := range EvaluateExpect(step.Expect, r.table, state, captures) {
					fail(n, Failure{Field: m.Field, Expected: m.Expected, Actual: m.Actual, Message: m.Message})
				}
			}
			if step.Capture != "" {
				captures[step.Capture] = state
			}
		}
	}
}

// graceDate is the UTC calendar date offset days before now.
func (r *Runner) graceDate(offset int) string {
	if offset == 0 {
		offset = 1
	}
	return r.now().UTC().Add(-time.Duration(offset) * 24 * time.Hour).Format(graceDateLayout)
}

func (r *Runner) trace(result *Result, scenario, caseName, action string, status int, detail string) {
	r.seq++
	result.Trace = append(result.Trace, TraceEvent{
		Seq:      r.seq,
		Scenario: scenario,
		Case:     caseName,
		Action:   action,
		Status:   status,
		Detail:   detail,
	})
	r.logger.Debug("step",
		"seq", r.seq,
		"scenario", scenario,
		"case", caseName,
		"action", action,
		"status", status,
	)
}

func simulateDetail(step Step) string {
	if len(step.SkipOffsets) == 0 {
		return fmt.Sprintf("streak=%d", step.Streak)
	}
	return fmt.Sprintf("streak=%d skip=%v", step.Streak, step.SkipOffsets)
}
