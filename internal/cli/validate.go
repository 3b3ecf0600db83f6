package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rete/internal/compiler"
	"github.com/roach88/rete/internal/demo"
	"github.com/roach88/rete/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	RuleSet  string                     `json:"rule_set"`
	Rules    int                        `json:"rules"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the rule set without building a network",
		Long: `Validate the demo rule set.

Performs structural checks (rule names, declarations, parameter references,
aggregators, filters) and static cycle analysis. Cycles are reported as
warnings and do not fail validation.

Exit codes:
  0 - Rule set is valid
  1 - Validation errors found`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, demo.RuleSet(), cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, rs ir.RuleSet, cmd *cobra.Command) error {
	result := ValidationResult{
		RuleSet:  rs.Name,
		Rules:    len(rs.Rules),
		Errors:   compiler.Validate(rs, nil),
		Warnings: compiler.AnalyzeCycles(rs),
	}
	result.Valid = len(result.Errors) == 0

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		if result.Valid {
			return writeOK(w, result)
		}
		first := result.Errors[0]
		if err := writeFailure(w, result, first.Code, first.Message); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return outputValidateText(w, result, opts.Verbose)
}

func outputValidateText(w io.Writer, result ValidationResult, verbose bool) error {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn.Message)
		if verbose {
			fmt.Fprintf(w, "  path: %v\n", warn.Path)
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w)
	}

	if result.Valid {
		fmt.Fprintf(w, "✓ Rule set %s valid (%d rules)\n", result.RuleSet, result.Rules)
		return nil
	}

	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, err := range result.Errors {
		fmt.Fprintf(w, "  %s: %s: %s\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
