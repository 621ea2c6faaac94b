package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a repository conformance scenario: a schema, the rows
// loaded before the first step, and a sequence of repository operations
// with their expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the directory holding the CUE entity definitions.
	// Relative paths are resolved against the scenario file location.
	Schema string `yaml:"schema"`

	// Fixtures are inserted in order before the first step.
	Fixtures []Fixture `yaml:"fixtures,omitempty"`

	// Steps run in order against one entity manager.
	Steps []Step `yaml:"steps"`

	// UnitOfWork is an optional fixed unit-of-work id. If empty, the
	// deterministic default of testutil.FixedIDGenerator is used.
	UnitOfWork string `yaml:"unit_of_work,omitempty"`
}

// Fixture is a batch of rows for one entity type. Row values are keyed by
// field or owning-association name; associations take the target's id.
type Fixture struct {
	Entity string           `yaml:"entity"`
	Rows   []map[string]any `yaml:"rows"`
}

// Step is one repository operation.
type Step struct {
	// Op selects the operation: find, findAll, findBy, findOneBy, count,
	// matching, call or clear.
	Op string `yaml:"op"`

	// Entity is the repository's entity type name.
	Entity string `yaml:"entity,omitempty"`

	// ID is the identifier for find: a scalar, or a map for composite keys.
	ID any `yaml:"id,omitempty"`

	// Lock is the lock mode name for find (see planner.ParseLockMode).
	Lock string `yaml:"lock,omitempty"`

	// LockVersion is the expected version for an optimistic find.
	LockVersion *int64 `yaml:"lock_version,omitempty"`

	// Criteria is the field-to-value map for findBy, findOneBy and count.
	Criteria map[string]any `yaml:"criteria,omitempty"`

	// Refs adds criteria entries whose value is the single entity saved
	// under the given label.
	Refs map[string]string `yaml:"refs,omitempty"`

	// Where is the expression tree for matching.
	Where *Where `yaml:"where,omitempty"`

	// Order, Limit and Offset apply to findBy, findOneBy and matching.
	Order  []OrderSpec `yaml:"order,omitempty"`
	Limit  *int        `yaml:"limit,omitempty"`
	Offset *int        `yaml:"offset,omitempty"`

	// Method and Args drive a dynamic shortcut such as findByStatus.
	Method string `yaml:"method,omitempty"`
	Args   []any  `yaml:"args,omitempty"`

	// Save stores the step's entities under a label for refs and same_as.
	Save string `yaml:"save,omitempty"`

	// Expect validates the outcome. If nil, the step must not fail.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Where is one node of a matching expression: either a comparison
// (field, op, value or ref) or a conjunction/disjunction of children.
type Where struct {
	Field string  `yaml:"field,omitempty"`
	Op    string  `yaml:"op,omitempty"`
	Value any     `yaml:"value,omitempty"`
	Ref   string  `yaml:"ref,omitempty"`
	And   []Where `yaml:"and,omitempty"`
	Or    []Where `yaml:"or,omitempty"`
}

// OrderSpec is one ORDER BY term.
type OrderSpec struct {
	Field string `yaml:"field"`
	Dir   string `yaml:"dir"`
}

// Expect holds the checks applied to a step's outcome. Every set check
// must hold.
type Expect struct {
	// Count is the number of returned entities, or the counted value for
	// count and countBy steps.
	Count *int64 `yaml:"count,omitempty"`

	// Field and Values compare one field across the returned entities,
	// in order. A single-entity step yields at most one value.
	Field  string `yaml:"field,omitempty"`
	Values []any  `yaml:"values,omitempty"`

	// Null expects a single-entity step to return nothing.
	Null bool `yaml:"null,omitempty"`

	// Error is the expected ormerr code, e.g. UNRECOGNIZED_FIELD.
	Error string `yaml:"error,omitempty"`

	// SameAs expects the returned entities to be the very instances saved
	// under the label, in order.
	SameAs string `yaml:"same_as,omitempty"`

	// Queries is the number of queries the step may issue.
	Queries *int `yaml:"queries,omitempty"`
}

// Step operation names.
const (
	OpFind      = "find"
	OpFindAll   = "findAll"
	OpFindBy    = "findBy"
	OpFindOneBy = "findOneBy"
	OpCount     = "count"
	OpMatching  = "matching"
	OpCall      = "call"
	OpClear     = "clear"
)

// LoadScenario reads and parses a scenario YAML file. The schema path is
// resolved against the file's directory. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative schema path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "expects:" vs "expect:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) && basePath != "" {
		scenario.Schema = filepath.Join(basePath, scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema directory not found: %s", s.Schema)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, f := range s.Fixtures {
		if f.Entity == "" {
			return fmt.Errorf("fixtures[%d]: entity is required", i)
		}
	}

	saved := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(step, saved); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Save != "" {
			saved[step.Save] = true
		}
	}
	return nil
}

// validateStep validates one step. saved holds the labels of earlier steps.
func validateStep(step Step, saved map[string]bool) error {
	switch step.Op {
	case OpClear:
		return nil
	case OpFind:
		if step.ID == nil {
			return fmt.Errorf("id is required for find")
		}
	case OpCall:
		if step.Method == "" {
			return fmt.Errorf("method is required for call")
		}
	case OpFindAll, OpFindBy, OpFindOneBy, OpCount, OpMatching:
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	if step.Entity == "" {
		return fmt.Errorf("entity is required for %s", step.Op)
	}

	for field, label := range step.Refs {
		if !saved[label] {
			return fmt.Errorf("refs.%s: unknown label %q", field, label)
		}
	}
	if step.Where != nil {
		if err := validateWhere(*step.Where, saved); err != nil {
			return fmt.Errorf("where: %w", err)
		}
	}
	for j, o := range step.Order {
		if o.Field == "" {
			return fmt.Errorf("order[%d]: field is required", j)
		}
	}
	if e := step.Expect; e != nil {
		if e.SameAs != "" && !saved[e.SameAs] {
			return fmt.Errorf("expect.same_as: unknown label %q", e.SameAs)
		}
		if len(e.Values) > 0 && e.Field == "" {
			return fmt.Errorf("expect.values requires expect.field")
		}
	}
	return nil
}

func validateWhere(w Where, saved map[string]bool) error {
	children := len(w.And) + len(w.Or)
	switch {
	case len(w.And) > 0 && len(w.Or) > 0:
		return fmt.Errorf("node has both and and or")
	case children > 0 && w.Field != "":
		return fmt.Errorf("node %q mixes a comparison with children", w.Field)
	case children == 0 && (w.Field == "" || w.Op == ""):
		return fmt.Errorf("comparison requires field and op")
	case w.Ref != "" && !saved[w.Ref]:
		return fmt.Errorf("%s: unknown label %q", w.Field, w.Ref)
	}
	for _, child := range append(append(w.And[:0:0], w.And...), w.Or...) {
		if err := validateWhere(child, saved); err != nil {
			return err
		}
	}
	return nil
}
