package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/streakgate/internal/report"
)

// OracleOptions holds flags for the oracle command.
type OracleOptions struct {
	*RootOptions
	Ranks string
}

// NewOracleCommand creates the oracle command.
func NewOracleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OracleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "oracle [streak...]",
		Short: "Print the expected rank and next-rank hint",
		Long: `Print what the rank oracle expects for the given streak values, or for
every streak from 0 to the top threshold when none are given. Never
contacts the service.

Examples:
  streakgate oracle
  streakgate oracle 3 4 63 64
  streakgate oracle --ranks ./ranks.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOracle(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ranks, "ranks", "", "CUE rank table overriding the built-in tiers")

	return cmd
}

func runOracle(opts *OracleOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	table, err := loadTable(opts.Ranks)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeUsage, "failed to load rank table", err)
	}

	var streaks []int
	for _, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 0 {
			return f.Fail(ExitCommandError, ErrCodeUsage,
				fmt.Sprintf("invalid streak %q: must be a non-negative integer", arg), nil)
		}
		streaks = append(streaks, v)
	}
	if len(streaks) == 0 {
		for v := 0; v <= table.Max().Threshold; v++ {
			streaks = append(streaks, v)
		}
	}

	rows := report.OracleRows(table, streaks)
	if f.IsJSON() {
		return f.Success(rows)
	}
	return report.WriteOracle(cmd.OutOrStdout(), rows)
}
