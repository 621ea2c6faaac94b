package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/entrepo/internal/criteria"
	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/metadata"
	"github.com/roach88/entrepo/internal/ormerr"
	"github.com/roach88/entrepo/internal/planner"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	query queryFlags
}

// PlanParam is one positional parameter of a plan.
type PlanParam struct {
	Position int    `json:"position"`
	Type     string `json:"type"`
	Value    any    `json:"value"`
}

// PlanResult is the planned query for one search.
type PlanResult struct {
	Entity      string      `json:"entity"`
	Kind        string      `json:"kind"`
	Dialect     string      `json:"dialect"`
	SQL         string      `json:"sql"`
	Params      []PlanParam `json:"params"`
	Joins       []string    `json:"joins,omitempty"`
	Fingerprint string      `json:"fingerprint"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <Entity>",
		Short: "Print the SQL for a search without running it",
		Long: `Resolve criteria against the entity metadata and print the planned SQL
and its typed parameters. No database connection is made.

Examples:
  entrepo plan CmsUser --where status=dev --order username:DESC --limit 10
  entrepo plan CmsUser --where status=dev --where status=null
  entrepo plan CmsAddress --where user.username=romanb
  entrepo plan CmsUser --where status=dev --count --dialect postgres`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	opts.query.register(cmd)

	return cmd
}

func runPlan(opts *PlanOptions, entity string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	s, err := opts.query.parse(cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeBadArgument, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	dialect, err := planner.DialectByName(cfg.Dialect)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid dialect", err)
	}

	reg, err := loadSchemaOrFail(formatter, cfg.SchemaDir)
	if err != nil {
		return err
	}

	plan, err := planSearch(reg, dialect, entity, s)
	if err != nil {
		return outputQueryError(formatter, err)
	}

	result, err := newPlanResult(plan)
	if err != nil {
		return fmt.Errorf("failed to fingerprint plan: %w", err)
	}
	formatter.VerboseLog("Planned %s %s for %s dialect", result.Kind, result.Entity, result.Dialect)

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, result.SQL)
	if len(result.Params) == 0 {
		return nil
	}
	rows := make([][]any, len(result.Params))
	for i, p := range result.Params {
		rows[i] = []any{p.Position, p.Type, ir.Format(plan.Params[i].Value)}
	}
	formatter.Table([]string{"#", "type", "value"}, rows)
	return nil
}

// planSearch normalizes s against entity and plans a select or count.
func planSearch(reg *metadata.Registry, dialect planner.Dialect, entity string, s *search) (*planner.Plan, error) {
	et, err := reg.EntityType(entity)
	if err != nil {
		return nil, err
	}
	q, err := criteria.NewNormalizer(reg).Normalize(et, s.Criteria, s.Order, s.Page)
	if err != nil {
		return nil, err
	}
	p := planner.New(reg, planner.WithDialect(dialect))
	if s.Count {
		return p.Count(q)
	}
	return p.Select(q)
}

func newPlanResult(plan *planner.Plan) (*PlanResult, error) {
	fp, err := plan.Fingerprint()
	if err != nil {
		return nil, err
	}
	result := &PlanResult{
		Entity:      plan.Root,
		Kind:        string(plan.Kind),
		Dialect:     plan.Dialect().Name(),
		SQL:         plan.SQL,
		Params:      make([]PlanParam, len(plan.Params)),
		Fingerprint: fp,
	}
	for i, prm := range plan.Params {
		result.Params[i] = PlanParam{
			Position: i + 1,
			Type:     prm.Type.String(),
			Value:    ir.Native(prm.Value),
		}
	}
	for _, j := range plan.Joins {
		result.Joins = append(result.Joins, j.SQL())
	}
	return result, nil
}

// loadSchemaOrFail loads the schema, reporting failures through formatter.
func loadSchemaOrFail(formatter *OutputFormatter, dir string) (*metadata.Registry, error) {
	formatter.VerboseLog("Loading schema from %s", dir)
	reg, err := loadSchema(dir)
	if err == nil {
		return reg, nil
	}

	var sErr *SchemaError
	if errors.As(err, &sErr) {
		var details any
		if len(sErr.Validation) > 0 {
			msgs := make([]string, len(sErr.Validation))
			for i, v := range sErr.Validation {
				msgs[i] = v.Error()
			}
			details = msgs
		}
		_ = formatter.Error(sErr.Code, sErr.Message, details)
		return nil, NewExitError(ExitCommandError, sErr.Error())
	}
	return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
}

// outputQueryError reports a failed search under the repository's stable
// error code. Execution failures are command errors; rejected criteria are
// plain failures.
func outputQueryError(formatter *OutputFormatter, err error) error {
	code := string(ormerr.CodeOf(err))
	if code == "" {
		code = ErrCodeQuery
	}
	_ = formatter.Error(code, err.Error(), nil)
	if code == string(ormerr.CodeQueryExecutionFailed) {
		return WrapExitError(ExitCommandError, "query failed", err)
	}
	return WrapExitError(ExitFailure, code, err)
}
