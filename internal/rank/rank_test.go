package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankFor_Boundaries(t *testing.T) {
	tests := []struct {
		streak int
		want   string
	}{
		{0, Guest},
		{3, Guest},
		{4, Member},
		{14, Member},
		{15, Regular},
		{30, Regular},
		{31, Veteran},
		{56, Veteran},
		{57, FinalWeek},
		{63, FinalWeek},
		{64, Master},
		{65, Master},
		{1000, Master},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RankFor(tt.streak).Name, "streak %d", tt.streak)
	}
}

func TestNextRankHintFor_Boundaries(t *testing.T) {
	tests := []struct {
		streak int
		want   *NextRankHint
	}{
		{0, &NextRankHint{NextRank: "Member", DaysNeeded: 4}},
		{3, &NextRankHint{NextRank: "Member", DaysNeeded: 1}},
		{4, &NextRankHint{NextRank: "Regular", DaysNeeded: 11}},
		{14, &NextRankHint{NextRank: "Regular", DaysNeeded: 1}},
		{15, &NextRankHint{NextRank: "Veteran", DaysNeeded: 16}},
		{30, &NextRankHint{NextRank: "Veteran", DaysNeeded: 1}},
		{31, &NextRankHint{NextRank: "Final Week", DaysNeeded: 26}},
		{56, &NextRankHint{NextRank: "Final Week", DaysNeeded: 1}},
		{57, &NextRankHint{NextRank: "Master", DaysNeeded: 7}},
		{63, &NextRankHint{NextRank: "Master", DaysNeeded: 1}},
		{64, nil},
		{200, nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NextRankHintFor(tt.streak), "streak %d", tt.streak)
	}
}

// linearRank is the plain cascade of comparisons the table lookup must agree with.
func linearRank(streak int) string {
	switch {
	case streak >= 64:
		return Master
	case streak >= 57:
		return FinalWeek
	case streak >= 31:
		return Veteran
	case streak >= 15:
		return Regular
	case streak >= 4:
		return Member
	default:
		return Guest
	}
}

func TestRankFor_MatchesCascadeOverFullRange(t *testing.T) {
	for s := 0; s <= 64; s++ {
		assert.Equal(t, linearRank(s), RankFor(s).Name, "streak %d", s)
	}
}

func TestNextRankHintFor_NonNullBelowMax(t *testing.T) {
	for s := 0; s <= 63; s++ {
		hint := NextRankHintFor(s)
		require.NotNil(t, hint, "streak %d", s)
		assert.Greater(t, hint.DaysNeeded, 0, "streak %d", s)

		current := RankFor(s)
		next := RankFor(s + hint.DaysNeeded)
		assert.NotEqual(t, current.Name, next.Name, "streak %d: hint must reach a new tier", s)
		assert.Equal(t, next.DisplayName, hint.NextRank, "streak %d", s)
		assert.Equal(t, current.Name, RankFor(s+hint.DaysNeeded-1).Name, "streak %d: one day short stays in tier", s)
	}
}

func TestNextRankHintFor_DecreasesWithinBand(t *testing.T) {
	for s := 1; s <= 63; s++ {
		if RankFor(s).Name != RankFor(s-1).Name {
			continue
		}
		prev := NextRankHintFor(s - 1)
		curr := NextRankHintFor(s)
		require.NotNil(t, prev)
		require.NotNil(t, curr)
		assert.Equal(t, prev.DaysNeeded-1, curr.DaysNeeded, "streak %d", s)
	}
}

func TestNegativeStreakClampsToLowestTier(t *testing.T) {
	assert.Equal(t, Guest, RankFor(-5).Name)
	assert.Equal(t, &NextRankHint{NextRank: "Member", DaysNeeded: 4}, NextRankHintFor(-5))
}

func TestTableHelpers(t *testing.T) {
	assert.Equal(t, Master, DefaultTable.Max().Name)
	assert.Equal(t, []string{Guest, Member, Regular, Veteran, FinalWeek, Master}, DefaultTable.Names())

	tier, ok := DefaultTable.Lookup(FinalWeek)
	require.True(t, ok)
	assert.Equal(t, 57, tier.Threshold)

	_, ok = DefaultTable.Lookup("legend")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultTable.Validate())

	tests := []struct {
		name    string
		table   Table
		wantErr string
	}{
		{"empty", Table{}, "empty"},
		{"nonzero start", Table{{Name: "a", DisplayName: "A", Threshold: 1}}, "threshold 0"},
		{"not increasing", Table{
			{Name: "a", DisplayName: "A", Threshold: 0},
			{Name: "b", DisplayName: "B", Threshold: 5},
			{Name: "c", DisplayName: "C", Threshold: 5},
		}, "must exceed"},
		{"duplicate", Table{
			{Name: "a", DisplayName: "A", Threshold: 0},
			{Name: "a", DisplayName: "B", Threshold: 5},
		}, "duplicate"},
		{"missing display", Table{{Name: "a", Threshold: 0}}, "display name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCustomTable(t *testing.T) {
	table := Table{
		{Name: "rookie", DisplayName: "Rookie", Threshold: 0},
		{Name: "pro", DisplayName: "Pro", Threshold: 10},
	}
	require.NoError(t, table.Validate())

	assert.Equal(t, "rookie", table.RankFor(9).Name)
	assert.Equal(t, "pro", table.RankFor(10).Name)
	assert.Equal(t, &NextRankHint{NextRank: "Pro", DaysNeeded: 3}, table.NextRankHintFor(7))
	assert.Nil(t, table.NextRankHintFor(10))
}
