// Package cli implements the entrepo command-line interface: schema
// validation, query planning, ad-hoc lookups against a configured database
// and scenario runs.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/entrepo/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Config is loaded on first use. Tests may set it directly.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the entrepo CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "entrepo",
		Short: "entrepo - entity repository toolkit",
		Long: `Query entities mapped to relational tables through a repository API.

Entity metadata is declared in CUE. Criteria are resolved against that
metadata before any SQL is generated, so only mapped columns ever reach
the database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (default: ./"+config.DefaultFile+")")

	// Configuration overrides, layered over file and environment
	pf.String("driver", "", "database driver (sqlite3|sqlite|pgx)")
	pf.String("dsn", "", "database connection string")
	pf.String("dialect", "", "SQL dialect (sqlite|postgres); defaults from the driver")
	pf.String("schema-dir", "", "directory of CUE entity definitions")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-format", "", "log format (text|json|pretty)")
	pf.Bool("query-log", false, "log every executed query")

	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return ValidFormats, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("driver", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return config.Drivers, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// loadConfig resolves configuration from defaults, file, environment and
// cmd's flags, once per invocation.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if o.Config != nil {
		return o.Config, nil
	}
	cfg, err := config.Load(o.ConfigFile, cmd.Flags())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	o.Config = cfg
	return cfg, nil
}

// newLogger builds the command logger. --verbose forces debug level.
func (o *RootOptions) newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	lc := cfg.Log
	if o.Verbose {
		lc.Level = "debug"
	}
	return lc.NewLogger(w)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
