package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/streakgate/internal/config"
	"github.com/roach88/streakgate/internal/report"
	"github.com/roach88/streakgate/internal/store"
)

// HistoryOptions holds flags for the history commands.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewHistoryCommand creates the history command and its show subcommand.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded by "streakgate run --db" (or RESULTS_DB), newest
first.

Examples:
  streakgate history --db ./streakgate.db
  streakgate history --limit 5 --format json
  streakgate history show 0192f0c4-5d0e-7a51-b2a8-3c1f7e9d2b40`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(opts, cmd)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite database path (overrides RESULTS_DB)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")

	show := &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show one recorded run with its failures",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(opts, args[0], cmd)
		},
	}
	cmd.AddCommand(show)

	return cmd
}

func runHistoryList(opts *HistoryOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openHistory(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open run history", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeStore, "failed to list runs", err)
	}

	if f.IsJSON() {
		return f.Success(runs)
	}
	return report.WriteHistory(cmd.OutOrStdout(), runs)
}

func runHistoryShow(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openHistory(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open run history", err)
	}
	defer st.Close()

	run, err := st.GetRun(cmd.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		return f.Fail(ExitCommandError, ErrCodeStore, "unknown run", err)
	}
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeStore, "failed to load run", err)
	}

	if f.IsJSON() {
		return f.Success(run)
	}
	return report.WriteRun(cmd.OutOrStdout(), run)
}

// openHistory opens an existing run database. The flag wins over RESULTS_DB;
// a missing file is an error rather than a new empty database.
func openHistory(path string) (*store.Store, error) {
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		path = cfg.ResultsDB
	}
	if path == "" {
		return nil, fmt.Errorf("no database: set --db or RESULTS_DB")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %s", path)
	}
	return store.Open(path)
}
