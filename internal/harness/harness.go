package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/entrepo/internal/criteria"
	"github.com/roach88/entrepo/internal/metadata"
	"github.com/roach88/entrepo/internal/ormerr"
	"github.com/roach88/entrepo/internal/planner"
	"github.com/roach88/entrepo/internal/queryir"
	"github.com/roach88/entrepo/internal/repository"
	"github.com/roach88/entrepo/internal/store"
	"github.com/roach88/entrepo/internal/testutil"
	"github.com/roach88/entrepo/internal/uow"
)

// Harness is the scenario execution engine. One harness owns one
// in-memory database and one entity manager for a single scenario run.
type Harness struct {
	store  *store.Store
	reg    *metadata.Registry
	mgr    *repository.Manager
	log    *store.DebugStack
	saved  map[string][]*uow.Entity
	logger *slog.Logger
}

// outcome is what a step returned.
type outcome struct {
	entities []*uow.Entity
	single   bool // find, findOneBy: at most one entity
	count    int64
}

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger routes step and store logging to logger. Runs are silent by
// default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database:
//  1. Load and compile the CUE schema
//  2. Create tables and insert fixtures
//  3. Execute steps against one entity manager, checking expectations
//
// The returned error reports setup failures only; failed expectations are
// recorded in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	ctx := context.Background()
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger.With("scenario", scenario.Name)

	reg, err := metadata.LoadDir(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	st, err := store.OpenMemory(store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.CreateTables(ctx, reg); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	for i, f := range scenario.Fixtures {
		et, err := reg.EntityType(f.Entity)
		if err != nil {
			return nil, fmt.Errorf("fixtures[%d]: %w", i, err)
		}
		for j, row := range f.Rows {
			if err := st.Insert(ctx, et, row); err != nil {
				return nil, fmt.Errorf("fixtures[%d].rows[%d]: %w", i, j, err)
			}
		}
	}

	queryLog := store.NewDebugStack()
	h := &Harness{
		store: st,
		reg:   reg,
		mgr: repository.NewManager(reg, st,
			repository.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.UnitOfWork)),
			repository.WithQueryLog(queryLog),
			repository.WithManagerLogger(logger),
		),
		log:    queryLog,
		saved:  make(map[string][]*uow.Entity),
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		before := h.log.Len()
		out, stepErr := h.execute(ctx, step)
		queries := h.log.Queries()[before:]

		sr := StepResult{Index: i, Op: step.Op, Entity: step.Entity, Count: out.count, Queries: queries}
		if stepErr != nil {
			sr.Error = errorCode(stepErr)
		}
		result.Steps = append(result.Steps, sr)

		for _, msg := range checkStep(step, out, stepErr, len(queries), h.saved) {
			result.AddError(fmt.Sprintf("steps[%d] %s %s: %s", i, step.Op, step.Entity, msg))
		}
		if stepErr == nil && step.Save != "" {
			h.saved[step.Save] = out.entities
		}

		h.logger.Info("step completed",
			"step", i,
			"op", step.Op,
			"entity", step.Entity,
			"count", out.count,
			"queries", len(queries),
			"error", sr.Error,
		)
	}
	return result, nil
}

// execute runs one step against the manager.
func (h *Harness) execute(ctx context.Context, step Step) (outcome, error) {
	if step.Op == OpClear {
		h.mgr.Clear()
		return outcome{}, nil
	}

	repo, err := h.mgr.Repository(step.Entity)
	if err != nil {
		return outcome{}, err
	}

	switch step.Op {
	case OpFind:
		opts, err := findOptions(step)
		if err != nil {
			return outcome{}, err
		}
		e, err := repo.Find(ctx, step.ID, opts...)
		return singleOutcome(e), err

	case OpFindAll:
		items, err := repo.FindAll(ctx, queryOptions(step)...)
		return listOutcome(items), err

	case OpFindBy:
		m, err := h.criteria(step)
		if err != nil {
			return outcome{}, err
		}
		items, err := repo.FindBy(ctx, m, queryOptions(step)...)
		return listOutcome(items), err

	case OpFindOneBy:
		m, err := h.criteria(step)
		if err != nil {
			return outcome{}, err
		}
		e, err := repo.FindOneBy(ctx, m, queryOptions(step)...)
		return singleOutcome(e), err

	case OpCount:
		m, err := h.criteria(step)
		if err != nil {
			return outcome{}, err
		}
		n, err := repo.Count(ctx, m)
		return outcome{count: n}, err

	case OpMatching:
		c, err := h.matchingCriteria(step)
		if err != nil {
			return outcome{}, err
		}
		col, err := repo.Matching(c)
		if err != nil {
			return outcome{}, err
		}
		items, err := col.Items(ctx)
		return listOutcome(items), err

	case OpCall:
		args, err := h.callArgs(step.Args)
		if err != nil {
			return outcome{}, err
		}
		res, err := repo.Call(ctx, step.Method, args...)
		if err != nil {
			return outcome{}, err
		}
		switch res.Verb {
		case repository.VerbFindOneBy:
			return singleOutcome(res.Entity), nil
		case repository.VerbCountBy:
			return outcome{count: res.Count}, nil
		default:
			return listOutcome(res.Entities), nil
		}
	}
	return outcome{}, fmt.Errorf("unknown op %q", step.Op)
}

func singleOutcome(e *uow.Entity) outcome {
	if e == nil {
		return outcome{single: true}
	}
	return outcome{entities: []*uow.Entity{e}, single: true, count: 1}
}

func listOutcome(items []*uow.Entity) outcome {
	return outcome{entities: items, count: int64(len(items))}
}

// ref returns the single entity saved under label.
func (h *Harness) ref(label string) (*uow.Entity, error) {
	saved, ok := h.saved[label]
	if !ok {
		return nil, fmt.Errorf("unknown label %q", label)
	}
	if len(saved) != 1 {
		return nil, fmt.Errorf("label %q holds %d entities, want 1", label, len(saved))
	}
	return saved[0], nil
}

// criteria merges the step's criteria map with its refs.
func (h *Harness) criteria(step Step) (criteria.Map, error) {
	m := make(criteria.Map, len(step.Criteria)+len(step.Refs))
	for field, v := range step.Criteria {
		m[field] = v
	}
	for field, label := range step.Refs {
		e, err := h.ref(label)
		if err != nil {
			return nil, fmt.Errorf("refs.%s: %w", field, err)
		}
		m[field] = e
	}
	return m, nil
}

func (h *Harness) matchingCriteria(step Step) (queryir.Criteria, error) {
	c := queryir.NewCriteria()
	if step.Where != nil {
		expr, err := h.expression(*step.Where)
		if err != nil {
			return c, err
		}
		c = c.WithWhere(expr)
	}
	for _, o := range step.Order {
		c = c.OrderBy(o.Field, o.Dir)
	}
	if step.Offset != nil {
		c = c.SetFirstResult(*step.Offset)
	}
	if step.Limit != nil {
		c = c.SetMaxResults(*step.Limit)
	}
	return c, nil
}

// expression converts a where tree into a queryir expression.
func (h *Harness) expression(w Where) (queryir.Expression, error) {
	if len(w.And) > 0 || len(w.Or) > 0 {
		children := w.And
		if len(w.Or) > 0 {
			children = w.Or
		}
		exprs := make([]queryir.Expression, len(children))
		for i, child := range children {
			expr, err := h.expression(child)
			if err != nil {
				return nil, err
			}
			exprs[i] = expr
		}
		if len(w.Or) > 0 {
			return queryir.AnyOf(exprs...), nil
		}
		return queryir.AllOf(exprs...), nil
	}

	value := w.Value
	if w.Ref != "" {
		e, err := h.ref(w.Ref)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", w.Field, err)
		}
		value = e
	}
	return queryir.Comparison{Field: w.Field, Op: queryir.Operator(w.Op), Value: value}, nil
}

// callArgs converts YAML arguments for a dynamic shortcut. A {ref: label}
// map becomes the saved entity; any other map is an order map.
func (h *Harness) callArgs(raw []any) ([]any, error) {
	args := make([]any, len(raw))
	for i, arg := range raw {
		m, ok := arg.(map[string]any)
		if !ok {
			args[i] = arg
			continue
		}
		if label, ok := m["ref"].(string); ok && len(m) == 1 {
			e, err := h.ref(label)
			if err != nil {
				return nil, fmt.Errorf("args[%d]: %w", i, err)
			}
			args[i] = e
			continue
		}
		order := make(map[string]string, len(m))
		for field, dir := range m {
			s, ok := dir.(string)
			if !ok {
				return nil, fmt.Errorf("args[%d].%s: direction must be a string", i, field)
			}
			order[field] = s
		}
		args[i] = order
	}
	return args, nil
}

func findOptions(step Step) ([]repository.FindOption, error) {
	var opts []repository.FindOption
	if step.Lock != "" {
		mode, err := planner.ParseLockMode(step.Lock)
		if err != nil {
			return nil, err
		}
		opts = append(opts, repository.WithLockMode(mode))
	}
	if step.LockVersion != nil {
		opts = append(opts, repository.WithLockVersion(*step.LockVersion))
	}
	return opts, nil
}

func queryOptions(step Step) []repository.QueryOption {
	var opts []repository.QueryOption
	for _, o := range step.Order {
		opts = append(opts, repository.OrderBy(o.Field, o.Dir))
	}
	if step.Limit != nil {
		opts = append(opts, repository.Limit(*step.Limit))
	}
	if step.Offset != nil {
		opts = append(opts, repository.Offset(*step.Offset))
	}
	return opts
}

// errorCode returns the ormerr code of err, or its message when it has none.
func errorCode(err error) string {
	if code := ormerr.CodeOf(err); code != "" {
		return string(code)
	}
	return err.Error()
}
