package fixture

import (
	"math"

	"github.com/roach88/streakgate/internal/rank"
)

// StreakState is the progress payload as observed. Fields the service left
// out, or sent with the wrong JSON type, are nil so they never compare equal
// to an expectation. Raw keeps the full body for diagnostics.
type StreakState struct {
	StreakCount        *int               `json:"streakCount"`
	TotalCompletedDays *int               `json:"totalCompletedDays"`
	CurrentDay         *int               `json:"currentDay"`
	CurrentRank        *string            `json:"currentRank"`
	NextRankInfo       *rank.NextRankHint `json:"nextRankInfo"`
	Raw                map[string]any     `json:"-"`
}

// ParseStreakState extracts the compared fields from a decoded body.
func ParseStreakState(body map[string]any) StreakState {
	state := StreakState{
		StreakCount:        intField(body, "streakCount"),
		TotalCompletedDays: intField(body, "totalCompletedDays"),
		CurrentDay:         intField(body, "currentDay"),
		CurrentRank:        stringField(body, "currentRank"),
		Raw:                body,
	}

	if info, ok := body["nextRankInfo"].(map[string]any); ok {
		hint := &rank.NextRankHint{}
		if name := stringField(info, "nextRank"); name != nil {
			hint.NextRank = *name
		}
		if days := intField(info, "daysNeeded"); days != nil {
			hint.DaysNeeded = *days
		}
		state.NextRankInfo = hint
	}
	return state
}

// intField returns body[key] when it is a whole JSON number.
func intField(body map[string]any, key string) *int {
	f, ok := body[key].(float64)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil
	}
	v := int(f)
	return &v
}

func stringField(body map[string]any, key string) *string {
	s, ok := body[key].(string)
	if !ok {
		return nil
	}
	return &s
}
