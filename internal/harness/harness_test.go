package harness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streakgate/internal/fixture"
	"github.com/roach88/streakgate/internal/logging"
	"github.com/roach88/streakgate/internal/rank"
	"github.com/roach88/streakgate/internal/session"
	"github.com/roach88/streakgate/internal/testutil"
)

var runNow = time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC)

// newRunner starts fake, logs a user in and returns a runner bound to it.
func newRunner(t *testing.T, fake *testutil.FakeService, opts ...Option) (*Runner, *session.Session) {
	t.Helper()
	srv := fake.Start()
	t.Cleanup(srv.Close)

	client, err := session.New(srv.URL, session.WithLogger(logging.Discard()))
	require.NoError(t, err)
	sess, err := session.NewSession()
	require.NoError(t, err)

	ctrl := fixture.New(client, fixture.WithLogger(logging.Discard()))
	require.NoError(t, ctrl.Setup(context.Background(), sess, "rank-test@example.com", "pw"))

	base := []Option{WithLogger(logging.Discard()), WithClock(testutil.NewFixedClock(runNow).Now)}
	return NewRunner(ctrl, append(base, opts...)...), sess
}

func newFake() *testutil.FakeService {
	return testutil.NewFakeService(testutil.NewFixedClock(runNow).Now)
}

func TestRun_CompliantServicePasses(t *testing.T) {
	runner, sess := newRunner(t, newFake())

	result, err := runner.Run(context.Background(), sess, Sweep(rank.DefaultTable), Grace(rank.DefaultTable))
	require.NoError(t, err)

	assert.True(t, result.Pass, "failures: %v", result.Failures)
	assert.Empty(t, result.Failures)
	assert.Equal(t, []ScenarioSummary{
		{Name: ScenarioSweep, Cases: 65},
		{Name: ScenarioGrace, Cases: 1},
	}, result.Scenarios)
	assert.Equal(t, 66, result.CaseCount())

	require.Len(t, result.Trace, 65*2+4)
	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, 200, ev.Status)
	}
	assert.Equal(t, TraceEvent{Seq: 133, Scenario: ScenarioGrace, Case: "gap at offset 1", Action: ActionGrace, Status: 200, Detail: "date=2026-03-09"}, result.Trace[132])
}

func TestRun_ReusedRunnerRestartsTrace(t *testing.T) {
	runner, sess := newRunner(t, newFake())
	ctx := context.Background()

	first, err := runner.Run(ctx, sess, Grace(rank.DefaultTable))
	require.NoError(t, err)
	second, err := runner.Run(ctx, sess, Grace(rank.DefaultTable))
	require.NoError(t, err)

	require.NotEmpty(t, second.Trace)
	assert.Equal(t, int64(1), second.Trace[0].Seq)
	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_FieldMismatchesAccumulate(t *testing.T) {
	fake := newFake()
	fake.Tamper = func(p map[string]any) {
		switch p["streakCount"] {
		case 15:
			p["currentRank"] = "member"
		case 40:
			p["currentDay"] = 39
			p["nextRankInfo"] = nil
		}
	}
	runner, sess := newRunner(t, fake)

	result, err := runner.Run(context.Background(), sess, Sweep(rank.DefaultTable))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, []Failure{
		{Scenario: "sweep", Case: "streak 15", Step: 2, Field: FieldCurrentRank, Expected: "regular", Actual: "member"},
		{Scenario: "sweep", Case: "streak 40", Step: 2, Field: FieldCurrentDay, Expected: "40", Actual: "39"},
		{Scenario: "sweep", Case: "streak 40", Step: 2, Field: FieldNextRankInfo, Expected: "{nextRank: Final Week, daysNeeded: 17}", Actual: "null"},
	}, result.Failures)
	assert.Equal(t, []ScenarioSummary{{Name: ScenarioSweep, Cases: 65, Failed: 2, Failures: 3}}, result.Scenarios)
}

func TestRun_SimulateFailureSkipsCheck(t *testing.T) {
	fake := newFake()
	fake.SimulateFails = func(streak int) bool { return streak == 10 }
	runner, sess := newRunner(t, fake)

	result, err := runner.Run(context.Background(), sess, Sweep(rank.DefaultTable))
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	f := result.Failures[0]
	assert.Equal(t, "streak 10", f.Case)
	assert.Equal(t, "simulate", f.Field)
	assert.Contains(t, f.Message, "status 500")

	// the run continued past the failed case
	assert.Len(t, result.Trace, 65*2-1)
	assert.Equal(t, "streak 64", result.Trace[len(result.Trace)-1].Case)
}

func TestRun_GraceFailureContinuesCase(t *testing.T) {
	fake := newFake()
	fake.GraceFails = true
	runner, sess := newRunner(t, fake)

	result, err := runner.Run(context.Background(), sess, Grace(rank.DefaultTable))
	require.NoError(t, err)

	require.Len(t, result.Failures, 2)
	assert.Equal(t, "grace", result.Failures[0].Field)
	assert.Equal(t, 3, result.Failures[0].Step)
	assert.Equal(t, Failure{Scenario: "grace", Case: "gap at offset 1", Step: 4, Field: FieldStreakCount, Expected: "3", Actual: "1"}, result.Failures[1])
	assert.Len(t, result.Trace, 4)
}

func TestRun_GraceCountedAsCompletion(t *testing.T) {
	fake := newFake()
	fake.GraceCountsAsCompleted = true
	runner, sess := newRunner(t, fake)

	result, err := runner.Run(context.Background(), sess, Grace(rank.DefaultTable))
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, Failure{Scenario: "grace", Case: "gap at offset 1", Step: 4, Field: FieldTotalCompletedDays, Expected: "2", Actual: "3"}, result.Failures[0])
}

func TestRun_Idempotence(t *testing.T) {
	runner, sess := newRunner(t, newFake())

	result, err := runner.Run(context.Background(), sess, Idempotence(rank.DefaultTable))
	require.NoError(t, err)
	assert.True(t, result.Pass, "failures: %v", result.Failures)
	assert.Equal(t, 11, result.CaseCount())
}

func TestRun_IdempotenceDetectsDrift(t *testing.T) {
	fake := newFake()
	calls := 0
	fake.Tamper = func(p map[string]any) {
		calls++
		if p["streakCount"] == 4 && calls%2 == 0 {
			p["totalCompletedDays"] = 5
		}
	}
	runner, sess := newRunner(t, fake)

	s := &Scenario{
		Name:        "drift",
		Description: "second observation differs",
		Cases: []Case{{
			Name: "streak 4",
			Steps: []Step{
				{Action: ActionSimulate, Streak: 4},
				{Action: ActionCheck, Capture: "first"},
				{Action: ActionSimulate, Streak: 4},
				{Action: ActionCheck, Expect: &Expect{SameAs: "first"}},
			},
		}},
	}
	result, err := runner.Run(context.Background(), sess, s)
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "sameAs", result.Failures[0].Field)
	assert.Contains(t, result.Failures[0].Message, "TotalCompletedDays")
}

func TestRun_StrictModeSchemaFailure(t *testing.T) {
	fake := newFake()
	fake.Tamper = func(p map[string]any) {
		p["currentDay"] = -1
	}

	s := &Scenario{
		Name:        "strict",
		Description: "only streakCount is compared",
		Cases: []Case{{
			Name: "streak 2",
			Steps: []Step{
				{Action: ActionSimulate, Streak: 2},
				{Action: ActionCheck, Expect: &Expect{StreakCount: intPtr(2)}},
			},
		}},
	}

	lenient, sess := newRunner(t, fake)
	result, err := lenient.Run(context.Background(), sess, s)
	require.NoError(t, err)
	assert.True(t, result.Pass)

	schema, err := CompileProgressSchema(rank.DefaultTable)
	require.NoError(t, err)
	strict, sess := newRunner(t, fake, WithSchema(schema))
	result, err = strict.Run(context.Background(), sess, s)
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "schema", result.Failures[0].Field)
	assert.Contains(t, result.Failures[0].Message, "currentDay")
}

func TestRun_UnauthenticatedSessionFailsEveryCase(t *testing.T) {
	fake := newFake()
	runner, _ := newRunner(t, fake)

	anon, err := session.NewSession()
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), anon, Grace(rank.DefaultTable))
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "simulate", result.Failures[0].Field)
	assert.Contains(t, result.Failures[0].Message, "status 401")
}

func TestRun_CancelledContext(t *testing.T) {
	runner, sess := newRunner(t, newFake())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := runner.Run(ctx, sess, Sweep(rank.DefaultTable))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, result)
	assert.Empty(t, result.Trace)
	assert.Equal(t, []ScenarioSummary{{Name: ScenarioSweep}}, result.Scenarios)
}

func TestGraceDate(t *testing.T) {
	clock := testutil.NewFixedClock(time.Date(2026, 3, 1, 0, 30, 0, 0, time.FixedZone("EST", -5*3600)))
	r := NewRunner(nil, WithClock(clock.Now))

	// 00:30 EST is 05:30 UTC on the same day
	assert.Equal(t, "2026-02-28", r.graceDate(0))
	assert.Equal(t, "2026-02-28", r.graceDate(1))
	assert.Equal(t, "2026-02-27", r.graceDate(2))
}

func TestResult_AddFailure(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	assert.Equal(t, 0, r.FailureCount())

	r.AddFailure(Failure{Scenario: "s", Case: "c", Step: 1, Field: "streakCount", Expected: "1", Actual: "2"})
	assert.False(t, r.Pass)
	assert.Equal(t, 1, r.FailureCount())
	assert.Equal(t, "FAIL s/c step 1: streakCount: got 2 expected 1", r.Failures[0].String())
}

func TestFailure_StringWithMessage(t *testing.T) {
	f := Failure{Scenario: "sweep", Case: "streak 3", Step: 1, Field: "simulate", Message: "simulate-streak 3: status 500"}
	assert.Equal(t, "FAIL sweep/streak 3 step 1: simulate: simulate-streak 3: status 500", f.String())
}
