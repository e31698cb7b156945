package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/roach88/streakgate/internal/rank"
)

// OracleRow is the oracle's answer for one streak.
type OracleRow struct {
	Streak       int                `json:"streak"`
	Rank         string             `json:"rank"`
	NextRankInfo *rank.NextRankHint `json:"nextRankInfo"`
}

// OracleRows evaluates table at each streak.
func OracleRows(table rank.Table, streaks []int) []OracleRow {
	rows := make([]OracleRow, 0, len(streaks))
	for _, s := range streaks {
		rows = append(rows, OracleRow{
			Streak:       s,
			Rank:         table.RankFor(s).Name,
			NextRankInfo: table.NextRankHintFor(s),
		})
	}
	return rows
}

// WriteOracle renders rows as an aligned table.
func WriteOracle(w io.Writer, rows []OracleRow) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "STREAK\tRANK\tNEXT RANK\tDAYS NEEDED")
	for _, r := range rows {
		next, days := "-", "-"
		if r.NextRankInfo != nil {
			next = r.NextRankInfo.NextRank
			days = fmt.Sprint(r.NextRankInfo.DaysNeeded)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Streak, r.Rank, next, days)
	}
	return tw.Flush()
}
