package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streakgate/internal/harness"
	"github.com/roach88/streakgate/internal/rank"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func failingResult() *harness.Result {
	r := harness.NewResult()
	r.Scenarios = []harness.ScenarioSummary{
		{Name: "sweep", Cases: 65, Failed: 1, Failures: 1},
		{Name: "grace", Cases: 1, Failed: 1, Failures: 2},
	}
	r.AddFailure(harness.Failure{Scenario: "sweep", Case: "streak 15", Step: 2, Field: "currentRank", Expected: "regular", Actual: "member"})
	r.AddFailure(harness.Failure{Scenario: "grace", Case: "gap at offset 1", Step: 3, Field: "grace", Message: "grace for 2026-03-09: status 500"})
	r.AddFailure(harness.Failure{Scenario: "grace", Case: "gap at offset 1", Step: 4, Field: "streakCount", Expected: "3", Actual: "1"})
	return r
}

func TestSummarize(t *testing.T) {
	s := Summarize("run-1", failingResult())

	assert.Equal(t, "run-1", s.RunID)
	assert.False(t, s.Pass)
	assert.Equal(t, 64, s.Passed)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 66, s.Total)
	assert.Equal(t, 3, s.FailureCount)
	assert.Len(t, s.TraceDigest, 64)
}

func TestWriteText_Failures(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Summarize("", failingResult())))
	newGoldie(t).Assert(t, "summary_failures", buf.Bytes())
}

func TestWriteText_Pass(t *testing.T) {
	r := harness.NewResult()
	r.Scenarios = []harness.ScenarioSummary{{Name: "sweep", Cases: 65}, {Name: "grace", Cases: 1}}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Summarize("", r)))
	newGoldie(t).Assert(t, "summary_pass", buf.Bytes())
}

func TestWriteText_IndentsMultilineMessages(t *testing.T) {
	r := harness.NewResult()
	r.Scenarios = []harness.ScenarioSummary{{Name: "idempotence", Cases: 1, Failed: 1, Failures: 1}}
	r.AddFailure(harness.Failure{Scenario: "idempotence", Case: "streak 4", Step: 4, Field: "sameAs", Message: "differs:\n-a\n+b"})

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Summarize("", r)))
	assert.Contains(t, buf.String(), "sameAs: differs:\n      -a\n      +b\n")
}

func TestSummary_JSON(t *testing.T) {
	raw, err := json.Marshal(Summarize("run-1", failingResult()))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, false, decoded["pass"])
	assert.Equal(t, float64(3), decoded["failure_count"])
	failures, ok := decoded["failures"].([]any)
	require.True(t, ok)
	assert.Equal(t, "currentRank", failures[0].(map[string]any)["field"])
}

func TestWriteOracle(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOracle(&buf, OracleRows(rank.DefaultTable, []int{0, 4, 64})))
	newGoldie(t).Assert(t, "oracle_table", buf.Bytes())
}

func TestOracleRows(t *testing.T) {
	rows := OracleRows(rank.DefaultTable, []int{57, 64})
	assert.Equal(t, []OracleRow{
		{Streak: 57, Rank: rank.FinalWeek, NextRankInfo: &rank.NextRankHint{NextRank: "Master", DaysNeeded: 7}},
		{Streak: 64, Rank: rank.Master},
	}, rows)
}

func traceResult() *harness.Result {
	r := harness.NewResult()
	r.Trace = []harness.TraceEvent{
		{Seq: 1, Scenario: "sweep", Case: "streak 0", Action: "simulate", Status: 200, Detail: "streak=0"},
		{Seq: 2, Scenario: "sweep", Case: "streak 0", Action: "check", Status: 200},
	}
	return r
}

func TestTraceSnapshot_Golden(t *testing.T) {
	data, err := MarshalCanonical(TraceSnapshot(traceResult()))
	require.NoError(t, err)
	newGoldie(t).Assert(t, "trace_snapshot", data)
}

func TestTraceDigest(t *testing.T) {
	a, err := TraceDigest(traceResult())
	require.NoError(t, err)
	b, err := TraceDigest(traceResult())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changed := traceResult()
	changed.Trace[1].Status = 500
	c, err := TraceDigest(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
