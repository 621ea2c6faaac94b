package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/entrepo/internal/metadata"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Entities []SchemaSummary            `json:"entities,omitempty"`
	Errors   []metadata.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema-dir]",
		Short: "Validate CUE entity definitions",
		Long: `Compile the CUE entity definitions in a directory and run registry
validation: plain SQL identifiers, identifier and version fields, association
targets and inverse sides.

The directory defaults to schema_dir from the configuration.

Exit codes:
  0 - Schema valid
  1 - Compile or validation errors
  2 - Command error (directory missing, no CUE files, bad config)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if dir == "" {
		cfg, err := opts.loadConfig(cmd)
		if err != nil {
			return err
		}
		dir = cfg.SchemaDir
	}
	formatter.VerboseLog("Loading schema from %s", dir)

	reg, err := loadSchema(dir)
	if err != nil {
		var sErr *SchemaError
		if !errors.As(err, &sErr) {
			return WrapExitError(ExitCommandError, "failed to load schema", err)
		}
		switch sErr.Code {
		case ErrCodeInvalid:
			return outputValidationErrors(formatter, sErr.Validation)
		case ErrCodeLoadFailed:
			_ = formatter.Error(sErr.Code, sErr.Message, lineDetails(sErr.Line))
			return NewExitError(ExitFailure, sErr.Error())
		default:
			_ = formatter.Error(sErr.Code, sErr.Message, nil)
			return NewExitError(ExitCommandError, sErr.Error())
		}
	}

	entities := summarize(reg)
	formatter.VerboseLog("Compiled %d entity type(s)", len(entities))

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Entities: entities})
	}

	rows := make([][]any, len(entities))
	for i, e := range entities {
		rows[i] = []any{e.Entity, e.Table, strings.Join(e.Identifier, ", "), e.Fields, e.Associations, e.Version}
	}
	formatter.Table([]string{"entity", "table", "identifier", "fields", "associations", "version"}, rows)
	fmt.Fprintf(formatter.Writer, "✓ Schema valid (%d entities)\n", len(entities))
	return nil
}

func lineDetails(line int) any {
	if line == 0 {
		return nil
	}
	return map[string]int{"line": line}
}

// outputValidationErrors outputs every registry validation error.
func outputValidationErrors(formatter *OutputFormatter, errs []metadata.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s.%s: %s\n", err.Code, err.Entity, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
