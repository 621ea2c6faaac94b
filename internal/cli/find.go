package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/planner"
	"github.com/roach88/entrepo/internal/repository"
	"github.com/roach88/entrepo/internal/store"
	"github.com/roach88/entrepo/internal/uow"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	query queryFlags
}

// FindResult holds the entities or count returned by a search.
type FindResult struct {
	Entity   string           `json:"entity"`
	Count    *int64           `json:"count,omitempty"`
	Columns  []string         `json:"columns,omitempty"`
	Entities []map[string]any `json:"entities,omitempty"`
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <Entity>",
		Short: "Run a search against the configured database",
		Long: `Run findBy (or count with --count) against the configured database and
print the hydrated entities. Owning associations are shown by the
identifier of the referenced entity.

Exit codes:
  0 - Search ran
  1 - Search rejected (unknown field, bad orientation, bad operand, ...)
  2 - Command error (bad config, schema or database failure)

Examples:
  entrepo find CmsUser --where status=dev --order username
  entrepo find CmsUser --where status=null --format json
  entrepo find CmsArticle --where user=1 --count --dsn ./cms.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, args[0], cmd)
		},
	}

	opts.query.register(cmd)

	return cmd
}

func runFind(opts *FindOptions, entity string, cmd *cobra.Command) error {
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
	logger := opts.newLogger(cfg, formatter.GetErrWriter())

	reg, err := loadSchemaOrFail(formatter, cfg.SchemaDir)
	if err != nil {
		return err
	}

	logger.Debug("opening database", "driver", cfg.Database.Driver)
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN, store.WithLogger(logger))
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	mgrOpts := []repository.ManagerOption{repository.WithManagerLogger(logger)}
	if cfg.QueryLog {
		mgrOpts = append(mgrOpts, repository.WithQueryLog(slogQueryLog{logger: logger}))
	}
	mgr := repository.NewManager(reg, st, mgrOpts...)

	repo, err := mgr.Repository(entity)
	if err != nil {
		return outputQueryError(formatter, err)
	}

	ctx := cmd.Context()
	if s.Count {
		n, err := repo.Count(ctx, s.Criteria)
		if err != nil {
			return outputQueryError(formatter, err)
		}
		if formatter.Format == "json" {
			return formatter.Success(FindResult{Entity: entity, Count: &n})
		}
		return formatter.Success(n)
	}

	qopts := []repository.QueryOption{repository.WithOrder(s.Order)}
	if s.Page.Limit != nil {
		qopts = append(qopts, repository.Limit(*s.Page.Limit))
	}
	if s.Page.Offset != nil {
		qopts = append(qopts, repository.Offset(*s.Page.Offset))
	}
	entities, err := repo.FindBy(ctx, s.Criteria, qopts...)
	if err != nil {
		return outputQueryError(formatter, err)
	}
	formatter.VerboseLog("Found %d %s entit(ies)", len(entities), entity)

	mapping := repo.ResultMapping("t0")
	columns := mapping.Names()

	if formatter.Format == "json" {
		result := FindResult{Entity: entity, Columns: columns, Entities: make([]map[string]any, len(entities))}
		for i, e := range entities {
			obj := make(map[string]any, len(columns))
			for _, c := range mapping.Columns {
				obj[c.Name] = ir.Native(columnValue(e, c))
			}
			result.Entities[i] = obj
		}
		return formatter.Success(result)
	}

	rows := make([][]any, len(entities))
	for i, e := range entities {
		row := make([]any, len(mapping.Columns))
		for j, c := range mapping.Columns {
			row[j] = ir.Format(columnValue(e, c))
		}
		rows[i] = row
	}
	formatter.Table(columns, rows)
	return nil
}

// columnValue reads a selected column back from a hydrated entity: the
// field value, or the single identifier of an owning reference.
func columnValue(e *uow.Entity, c planner.ColumnMapping) ir.IRValue {
	if c.Kind == planner.ColumnField {
		v, ok := e.Get(c.Name)
		if !ok {
			return ir.IRNull{}
		}
		return v
	}
	ref := e.Ref(c.Name)
	if ref == nil {
		return ir.IRNull{}
	}
	ids := ref.IdentifierValues()
	if len(ids) != 1 {
		return ir.IRArray(ids)
	}
	return ids[0]
}

// slogQueryLog writes every executed plan to a logger.
type slogQueryLog struct {
	logger *slog.Logger
}

func (l slogQueryLog) LogQuery(entry store.QueryEntry) {
	params := make([]string, len(entry.Params))
	for i, p := range entry.Params {
		params[i] = ir.Format(p)
	}
	l.logger.Info("query",
		"entity", entry.Entity,
		"kind", entry.Kind,
		"sql", entry.SQL,
		"params", params,
		"types", entry.Types,
		"fingerprint", entry.Fingerprint,
	)
}
