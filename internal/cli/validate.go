package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/streakgate/internal/harness"
)

// FileValidation is the validation outcome for one scenario file.
type FileValidation struct {
	Path     string `json:"path"`
	Valid    bool   `json:"valid"`
	Scenario string `json:"scenario,omitempty"`
	Cases    int    `json:"cases,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml...>",
		Short: "Validate scenario files without running them",
		Long: `Decode and validate YAML scenario files. Unknown fields, unknown
actions, negative streaks and references to missing captures are
reported per file. Every file is checked even when an earlier one fails.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(paths))}
	for _, path := range paths {
		fv := FileValidation{Path: path}
		sc, err := harness.LoadScenario(path)
		if err != nil {
			fv.Error = err.Error()
			result.Valid = false
		} else {
			fv.Valid = true
			fv.Scenario = sc.Name
			fv.Cases = len(sc.Cases)
		}
		f.VerboseLog("Validated %s", path)
		result.Files = append(result.Files, fv)
	}

	if f.IsJSON() {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, fv := range result.Files {
			if fv.Valid {
				fmt.Fprintf(w, "✓ %s (%s, %d cases)\n", fv.Path, fv.Scenario, fv.Cases)
			} else {
				fmt.Fprintf(w, "✗ %s\n    %s\n", fv.Path, fv.Error)
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "scenario validation failed")
	}
	return nil
}
