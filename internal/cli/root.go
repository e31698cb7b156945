package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/streakgate/internal/config"
	"github.com/roach88/streakgate/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the streakgate CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "streakgate",
		Short: "Black-box conformance harness for streak and rank progression",
		Long: `streakgate drives a streak-tracking web service over HTTP, injects
synthetic streaks through its debug endpoints, and checks every progress
payload against an independent rank oracle.

Configuration is read from the environment (BASE_URL, TEST_EMAIL,
TEST_PASSWORD, READY_TIMEOUT, READY_INTERVAL, REQUEST_TIMEOUT, LOG_LEVEL,
LOG_FORMAT, RESULTS_DB). Flags override the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				f := &OutputFormatter{Format: "text", Writer: cmd.ErrOrStderr()}
				return f.Fail(ExitCommandError, ErrCodeUsage,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewOracleCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// setupLogging installs the process logger from cfg. --verbose forces debug.
// Logs go to w so that stdout carries only command output.
func setupLogging(opts *RootOptions, cfg *config.Config, w io.Writer) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: must be text or json", cfg.LogFormat)
	}
	logging.Init(level, cfg.LogFormat, w)
	return nil
}
