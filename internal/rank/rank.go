// Package rank is the reference model for streak rank progression.
//
// A Table is an ordered list of tiers, each with the minimum streak that
// reaches it. Lookups are greatest-lower-bound searches over the thresholds,
// so the rank and the next-rank hint are both derived from the same table
// and can never disagree about where a boundary sits.
package rank

import (
	"fmt"
	"sort"
)

// Tier names as reported by the service in currentRank.
const (
	Guest     = "guest"
	Member    = "member"
	Regular   = "regular"
	Veteran   = "veteran"
	FinalWeek = "finalweek"
	Master    = "master"
)

// Tier is a named progression level reached at Threshold consecutive days.
type Tier struct {
	// Name is the machine name reported in currentRank (e.g. "finalweek").
	Name string `json:"name"`

	// DisplayName is the human name reported in nextRankInfo.nextRank (e.g. "Final Week").
	DisplayName string `json:"display"`

	// Threshold is the minimum streak that reaches this tier.
	Threshold int `json:"threshold"`
}

// NextRankHint tells how far a streak is from the next tier.
type NextRankHint struct {
	NextRank   string `json:"nextRank"`
	DaysNeeded int    `json:"daysNeeded"`
}

// Table is an ordered tier list, lowest threshold first.
type Table []Tier

// DefaultTable is the production tier table.
var DefaultTable = Table{
	{Name: Guest, DisplayName: "Guest", Threshold: 0},
	{Name: Member, DisplayName: "Member", Threshold: 4},
	{Name: Regular, DisplayName: "Regular", Threshold: 15},
	{Name: Veteran, DisplayName: "Veteran", Threshold: 31},
	{Name: FinalWeek, DisplayName: "Final Week", Threshold: 57},
	{Name: Master, DisplayName: "Master", Threshold: 64},
}

// RankFor returns the tier for streak using DefaultTable.
func RankFor(streak int) Tier {
	return DefaultTable.RankFor(streak)
}

// NextRankHintFor returns the next-rank hint for streak using DefaultTable.
func NextRankHintFor(streak int) *NextRankHint {
	return DefaultTable.NextRankHintFor(streak)
}

// RankFor returns the tier whose threshold is the greatest one not exceeding
// streak. Streaks below the lowest threshold map to the lowest tier.
func (t Table) RankFor(streak int) Tier {
	i := t.upperBound(streak)
	if i == 0 {
		return t[0]
	}
	return t[i-1]
}

// NextRankHintFor returns the next tier up and the days still needed to
// reach it, or nil when streak already sits in the top tier.
func (t Table) NextRankHintFor(streak int) *NextRankHint {
	if streak < t[0].Threshold {
		streak = t[0].Threshold
	}
	i := t.upperBound(streak)
	if i >= len(t) {
		return nil
	}
	return &NextRankHint{
		NextRank:   t[i].DisplayName,
		DaysNeeded: t[i].Threshold - streak,
	}
}

// upperBound returns the index of the first tier whose threshold exceeds streak.
func (t Table) upperBound(streak int) int {
	return sort.Search(len(t), func(i int) bool {
		return t[i].Threshold > streak
	})
}

// Max returns the top tier.
func (t Table) Max() Tier {
	return t[len(t)-1]
}

// Lookup finds a tier by machine name.
func (t Table) Lookup(name string) (Tier, bool) {
	for _, tier := range t {
		if tier.Name == name {
			return tier, true
		}
	}
	return Tier{}, false
}

// Names returns the machine names in table order.
func (t Table) Names() []string {
	names := make([]string, len(t))
	for i, tier := range t {
		names[i] = tier.Name
	}
	return names
}

// Validate checks that the table is usable as an oracle: non-empty, starting
// at threshold 0, strictly increasing, with unique non-empty names.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("rank table is empty")
	}
	if t[0].Threshold != 0 {
		return fmt.Errorf("lowest tier %q must start at threshold 0, got %d", t[0].Name, t[0].Threshold)
	}

	seen := make(map[string]bool, len(t))
	for i, tier := range t {
		if tier.Name == "" {
			return fmt.Errorf("tiers[%d]: name is required", i)
		}
		if tier.DisplayName == "" {
			return fmt.Errorf("tiers[%d]: display name is required", i)
		}
		if seen[tier.Name] {
			return fmt.Errorf("tiers[%d]: duplicate tier name %q", i, tier.Name)
		}
		seen[tier.Name] = true

		if i > 0 && tier.Threshold <= t[i-1].Threshold {
			return fmt.Errorf("tiers[%d]: threshold %d for %q must exceed %d for %q",
				i, tier.Threshold, tier.Name, t[i-1].Threshold, t[i-1].Name)
		}
	}
	return nil
}
