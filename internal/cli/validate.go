package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelkit/modelkit/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <metamodel>",
		Short: "Validate a metamodel beyond shape checking",
		Long: `Compile a CUE metamodel and run the semantic validation pass.

Reports unknown types, invalid bounds, unpaired or double-containment
opposites, and inheritance cycles. Exit code 1 on findings, 2 when the
metamodel cannot be loaded at all.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	pkg, err := LoadMetamodel(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return commandError(formatter, loadErr.Code, loadErr.Message)
		}
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}

	formatter.VerboseLog("Validating package %s", pkg.Name)
	findings := compiler.Validate(pkg)

	if len(findings) == 0 {
		if formatter.Format == "json" {
			return formatter.Success(ValidationResult{Valid: true})
		}
		fmt.Fprintln(formatter.Writer, "✓ metamodel valid")
		return nil
	}

	if formatter.Format == "json" {
		if err := formatter.Success(ValidationResult{Valid: false, Errors: findings}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ validation failed")
		fmt.Fprintln(formatter.Writer)
		for _, f := range findings {
			fmt.Fprintf(formatter.Writer, "  [%s] %s: %s\n", f.Code, f.Field, f.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d finding(s)", len(findings)))
}
