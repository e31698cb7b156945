package harness

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/streakgate/internal/fixture"
	"github.com/roach88/streakgate/internal/rank"
)

// Progress payload field names.
const (
	FieldStreakCount        = "streakCount"
	FieldTotalCompletedDays = "totalCompletedDays"
	FieldCurrentDay         = "currentDay"
	FieldCurrentRank        = "currentRank"
	FieldNextRankInfo       = "nextRankInfo"
)

// Mismatch is a single field that differs from its expectation.
type Mismatch struct {
	Field    string
	Expected string
	Actual   string
	Message  string
}

// EvaluateExpect compares got against every field set in exp and returns one
// Mismatch per differing field. The order is fixed: streakCount,
// currentRank, totalCompletedDays, currentDay, nextRankInfo, sameAs.
func EvaluateExpect(exp *Expect, table rank.Table, got fixture.StreakState, captures map[string]fixture.StreakState) []Mismatch {
	var out []Mismatch
	raw := got.Raw

	if exp.StreakCount != nil && !intEquals(got.StreakCount, *exp.StreakCount) {
		out = append(out, Mismatch{Field: FieldStreakCount, Expected: fmt.Sprint(*exp.StreakCount), Actual: rawValue(raw, FieldStreakCount)})
	}

	wantRank, wantHint, checkHint, wantNull := exp.CurrentRank, exp.NextRank, exp.NextRank != nil, exp.NextRankNull
	if exp.Oracle {
		wantRank = table.RankFor(*exp.StreakCount).Name
		if hint := table.NextRankHintFor(*exp.StreakCount); hint != nil {
			wantHint = &NextRankExpect{Name: hint.NextRank, DaysNeeded: hint.DaysNeeded}
			checkHint = true
		} else {
			wantNull = true
		}
	}

	if wantRank != "" && (got.CurrentRank == nil || *got.CurrentRank != wantRank) {
		out = append(out, Mismatch{Field: FieldCurrentRank, Expected: wantRank, Actual: rawValue(raw, FieldCurrentRank)})
	}
	if exp.TotalCompletedDays != nil && !intEquals(got.TotalCompletedDays, *exp.TotalCompletedDays) {
		out = append(out, Mismatch{Field: FieldTotalCompletedDays, Expected: fmt.Sprint(*exp.TotalCompletedDays), Actual: rawValue(raw, FieldTotalCompletedDays)})
	}
	if exp.CurrentDay != nil && !intEquals(got.CurrentDay, *exp.CurrentDay) {
		out = append(out, Mismatch{Field: FieldCurrentDay, Expected: fmt.Sprint(*exp.CurrentDay), Actual: rawValue(raw, FieldCurrentDay)})
	}

	switch {
	case wantNull:
		if got.NextRankInfo != nil {
			out = append(out, Mismatch{Field: FieldNextRankInfo, Expected: "null", Actual: rawValue(raw, FieldNextRankInfo)})
		}
	case checkHint:
		info := got.NextRankInfo
		if info == nil || info.NextRank != wantHint.Name || info.DaysNeeded != wantHint.DaysNeeded {
			out = append(out, Mismatch{
				Field:    FieldNextRankInfo,
				Expected: formatHint(wantHint.Name, wantHint.DaysNeeded),
				Actual:   rawValue(raw, FieldNextRankInfo),
			})
		}
	}

	if exp.SameAs != "" {
		if prev, ok := captures[exp.SameAs]; !ok {
			out = append(out, Mismatch{Field: "sameAs", Message: fmt.Sprintf("no capture named %q", exp.SameAs)})
		} else if diff := DiffStates(prev, got); diff != "" {
			out = append(out, Mismatch{Field: "sameAs", Message: fmt.Sprintf("differs from %q (-captured +observed):\n%s", exp.SameAs, diff)})
		}
	}

	return out
}

// DiffStates returns a go-cmp diff of the compared fields, or "" when equal.
func DiffStates(a, b fixture.StreakState) string {
	return cmp.Diff(a, b, cmpopts.IgnoreFields(fixture.StreakState{}, "Raw"))
}

func intEquals(got *int, want int) bool {
	return got != nil && *got == want
}

// rawValue renders the observed value as the service sent it.
func rawValue(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok {
		return "absent"
	}
	switch val := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return formatHint(fmt.Sprint(val["nextRank"]), val["daysNeeded"])
	default:
		return fmt.Sprint(val)
	}
}

func formatHint(name string, days any) string {
	return fmt.Sprintf("{nextRank: %s, daysNeeded: %v}", name, days)
}
