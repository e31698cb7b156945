package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/streakgate/internal/rank"
)

// Built-in scenario names.
const (
	ScenarioSweep       = "sweep"
	ScenarioGrace       = "grace"
	ScenarioIdempotence = "idempotence"
)

// DefaultScenarios run when no selection is given.
var DefaultScenarios = []string{ScenarioSweep, ScenarioGrace}

// BuiltinNames lists every built-in scenario.
func BuiltinNames() []string {
	return []string{ScenarioSweep, ScenarioGrace, ScenarioIdempotence}
}

// Builtin returns the named built-in scenario for table.
func Builtin(name string, table rank.Table) (*Scenario, error) {
	switch name {
	case ScenarioSweep:
		return Sweep(table), nil
	case ScenarioGrace:
		return Grace(table), nil
	case ScenarioIdempotence:
		return Idempotence(table), nil
	default:
		return nil, fmt.Errorf("unknown scenario %q (available: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
}

// Sweep injects every streak from 0 through the top threshold and checks
// each field of the resulting progress against the oracle.
func Sweep(table rank.Table) *Scenario {
	top := table.Max().Threshold
	s := &Scenario{
		Name:        ScenarioSweep,
		Description: fmt.Sprintf("every streak value 0..%d maps to the expected rank and hint", top),
		Cases:       make([]Case, 0, top+1),
	}
	for v := 0; v <= top; v++ {
		s.Cases = append(s.Cases, Case{
			Name: streakCaseName(v),
			Steps: []Step{
				{Action: ActionSimulate, Streak: v},
				{Action: ActionCheck, Expect: &Expect{
					StreakCount:        intPtr(v),
					TotalCompletedDays: intPtr(v),
					CurrentDay:         intPtr(v),
					Oracle:             true,
				}},
			},
		})
	}
	return s
}

// Grace opens a one-day gap in a three-day streak, then backfills it.
// The post-backfill total stays at the two real completions.
func Grace(table rank.Table) *Scenario {
	return &Scenario{
		Name:        ScenarioGrace,
		Description: "a grace backfill for yesterday restores a gapped streak",
		Cases: []Case{{
			Name: "gap at offset 1",
			Steps: []Step{
				{Action: ActionSimulate, Streak: 3, SkipOffsets: []int{1}},
				{Action: ActionCheck, Expect: &Expect{StreakCount: intPtr(1)}},
				{Action: ActionGrace, GraceOffsetDays: 1},
				{Action: ActionCheck, Expect: &Expect{
					StreakCount:        intPtr(3),
					CurrentRank:        table.RankFor(3).Name,
					TotalCompletedDays: intPtr(2),
				}},
			},
		}},
	}
}

// Idempotence simulates each tier boundary twice and requires identical
// observations.
func Idempotence(table rank.Table) *Scenario {
	s := &Scenario{
		Name:        ScenarioIdempotence,
		Description: "simulating the same streak twice yields the same progress",
	}
	for _, v := range boundaryValues(table) {
		s.Cases = append(s.Cases, Case{
			Name: streakCaseName(v),
			Steps: []Step{
				{Action: ActionSimulate, Streak: v},
				{Action: ActionCheck, Capture: "first", Expect: &Expect{StreakCount: intPtr(v), Oracle: true}},
				{Action: ActionSimulate, Streak: v},
				{Action: ActionCheck, Expect: &Expect{SameAs: "first"}},
			},
		})
	}
	return s
}

// boundaryValues returns 0 and every threshold with its predecessor.
func boundaryValues(table rank.Table) []int {
	seen := map[int]bool{0: true}
	for _, tier := range table {
		for _, v := range []int{tier.Threshold - 1, tier.Threshold} {
			if v >= 0 {
				seen[v] = true
			}
		}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func streakCaseName(v int) string {
	return fmt.Sprintf("streak %d", v)
}

func intPtr(v int) *int {
	return &v
}
