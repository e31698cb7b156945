package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/streakgate/internal/config"
	"github.com/roach88/streakgate/internal/fixture"
	"github.com/roach88/streakgate/internal/harness"
	"github.com/roach88/streakgate/internal/logging"
	"github.com/roach88/streakgate/internal/probe"
	"github.com/roach88/streakgate/internal/rank"
	"github.com/roach88/streakgate/internal/report"
	"github.com/roach88/streakgate/internal/session"
	"github.com/roach88/streakgate/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Scenarios     []string
	ScenarioFiles []string
	Ranks         string
	Strict        bool
	Database      string
	ReadyTimeout  time.Duration

	// IDGenerator overrides run id generation (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	IDGenerator store.IDGenerator

	// Now overrides the clock used for grace dates and run timestamps
	// (for testing). If nil, defaults to time.Now.
	Now func() time.Time
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run conformance scenarios against the service",
		Long: `Wait for the service to become ready, provision and log in the test
user, reset its state, then run the selected scenarios. Every mismatching
field is reported; the run never stops at the first failure.

Built-in scenarios: sweep (streak 0 through the top threshold), grace
(gap then backfill), idempotence (repeat injection at every boundary).

Exit codes:
  0 - All scenarios passed
  1 - A scenario failed, the service never became ready, or setup failed
  2 - Missing credentials or invalid flags

Examples:
  streakgate run
  streakgate run --scenarios sweep,grace,idempotence --strict
  streakgate run --scenario-file ./scenarios/gap.yaml
  streakgate run --ranks ./ranks.cue --db ./streakgate.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarness(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Scenarios, "scenarios", slices.Clone(harness.DefaultScenarios),
		"built-in scenarios to run ("+strings.Join(harness.BuiltinNames(), ", ")+")")
	cmd.Flags().StringArrayVar(&opts.ScenarioFiles, "scenario-file", nil,
		"YAML scenario file to run (repeatable); replaces the default built-ins unless --scenarios is given")
	cmd.Flags().StringVar(&opts.Ranks, "ranks", "", "CUE rank table overriding the built-in tiers")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "validate every progress payload against the JSON schema")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database (overrides RESULTS_DB)")
	cmd.Flags().DurationVar(&opts.ReadyTimeout, "ready-timeout", 0, "readiness timeout (overrides READY_TIMEOUT)")

	return cmd
}

func runHarness(opts *RunOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "configuration error", err)
	}
	if cmd.Flags().Changed("db") {
		cfg.ResultsDB = opts.Database
	}
	if cmd.Flags().Changed("ready-timeout") {
		cfg.ReadyTimeout = opts.ReadyTimeout
	}
	if err := cfg.Validate(); err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "configuration error", err)
	}
	if err := setupLogging(opts.RootOptions, cfg, cmd.ErrOrStderr()); err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "configuration error", err)
	}
	logger := logging.New("cli")

	table, err := loadTable(opts.Ranks)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeUsage, "failed to load rank table", err)
	}
	scenarios, err := resolveScenarios(opts, cmd, table)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScenario, "failed to load scenarios", err)
	}
	names := make([]string, len(scenarios))
	for i, sc := range scenarios {
		names[i] = sc.Name
		f.VerboseLog("Scenario %s: %d case(s)", sc.Name, len(sc.Cases))
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	idGen := opts.IDGenerator
	if idGen == nil {
		idGen = store.UUIDv7Generator{}
	}

	client, err := session.New(cfg.BaseURL,
		session.WithTimeout(cfg.RequestTimeout),
		session.WithLogger(logging.New("session")),
	)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "configuration error", err)
	}
	sess, err := session.NewSession()
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeSetup, "failed to create session", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger.Info("waiting for service", "base_url", cfg.BaseURL, "timeout", cfg.ReadyTimeout)
	prober := probe.New(client,
		probe.WithInterval(cfg.ReadyInterval),
		probe.WithLogger(logging.New("probe")),
	)
	if !prober.AwaitReady(ctx, cfg.ReadyTimeout) {
		if ctx.Err() != nil {
			return f.Fail(ExitFailure, ErrCodeNotReady, "interrupted while waiting for service", ctx.Err())
		}
		return f.Fail(ExitFailure, ErrCodeNotReady,
			fmt.Sprintf("service at %s not ready after %s", cfg.BaseURL, cfg.ReadyTimeout), nil)
	}

	ctrl := fixture.New(client,
		fixture.WithLogger(logging.New("fixture")),
		fixture.WithUserName(cfg.UserName),
	)
	if err := ctrl.Setup(ctx, sess, cfg.Email, cfg.Password); err != nil {
		return f.Fail(ExitFailure, ErrCodeSetup, "fixture setup failed", err)
	}

	runnerOpts := []harness.Option{
		harness.WithTable(table),
		harness.WithLogger(logging.New("harness")),
		harness.WithClock(now),
	}
	if opts.Strict {
		schema, err := harness.CompileProgressSchema(table)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeUsage, "failed to build progress schema", err)
		}
		runnerOpts = append(runnerOpts, harness.WithSchema(schema))
	}
	runner := harness.NewRunner(ctrl, runnerOpts...)

	started := now()
	result, runErr := runner.Run(ctx, sess, scenarios...)
	finished := now()

	summary := report.Summarize(idGen.Generate(), result)
	if runErr != nil {
		summary.Pass = false
	}

	var saveErr error
	if cfg.ResultsDB != "" {
		saveErr = saveRun(ctx, cfg.ResultsDB, store.Run{
			ID:          summary.RunID,
			StartedAt:   started,
			FinishedAt:  finished,
			BaseURL:     cfg.BaseURL,
			Scenarios:   names,
			Cases:       summary.Total,
			FailedCases: summary.Failed,
			Pass:        summary.Pass,
			TraceDigest: summary.TraceDigest,
			Failures:    summary.Failures,
		})
		if saveErr != nil {
			logger.Error("failed to record run", "db", cfg.ResultsDB, "error", saveErr)
		} else {
			logger.Info("run recorded", "db", cfg.ResultsDB, "run_id", summary.RunID)
		}
	}

	if f.IsJSON() {
		if err := f.Success(summary); err != nil {
			return err
		}
	} else if err := report.WriteText(cmd.OutOrStdout(), summary); err != nil {
		return err
	}

	// Scenario failures decide the exit code; a history write failure only
	// surfaces on its own when every scenario passed.
	switch {
	case runErr != nil:
		logger.Error("run interrupted", "error", runErr)
		return WrapExitError(ExitFailure, "run interrupted", runErr)
	case !summary.Pass:
		return NewExitError(ExitFailure, fmt.Sprintf("%d failure(s)", summary.FailureCount))
	case saveErr != nil:
		return WrapExitError(ExitCommandError, "failed to record run", saveErr)
	}
	return nil
}

// resolveScenarios builds the ordered scenario list: built-ins first, then
// files. Files replace the default built-ins unless --scenarios was set.
// Names must be unique since failures are reported per scenario name.
func resolveScenarios(opts *RunOptions, cmd *cobra.Command, table rank.Table) ([]*harness.Scenario, error) {
	names := opts.Scenarios
	if len(opts.ScenarioFiles) > 0 && !cmd.Flags().Changed("scenarios") {
		names = nil
	}

	var scenarios []*harness.Scenario
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		sc, err := harness.Builtin(name, table)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	for _, path := range opts.ScenarioFiles {
		sc, err := harness.LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		scenarios = append(scenarios, sc)
	}

	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios selected")
	}
	seen := make(map[string]bool, len(scenarios))
	for _, sc := range scenarios {
		if seen[sc.Name] {
			return nil, fmt.Errorf("duplicate scenario name %q", sc.Name)
		}
		seen[sc.Name] = true
	}
	return scenarios, nil
}

// loadTable returns the default tiers, or the CUE table at path.
func loadTable(path string) (rank.Table, error) {
	if path == "" {
		return rank.DefaultTable, nil
	}
	return rank.LoadFile(path)
}

// saveRun records run in the database at path. The write outlives ctx so an
// interrupted run is still recorded.
func saveRun(ctx context.Context, path string, run store.Run) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.SaveRun(context.WithoutCancel(ctx), run)
}
