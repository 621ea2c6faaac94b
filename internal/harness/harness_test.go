package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"find_by_criteria", "matching", "dynamic_calls", "user_lookup"} {
		t.Run(name, func(t *testing.T) {
			scenario := loadScenario(t, name)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "failures: %v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.Len(t, result.Steps, len(scenario.Steps))
		})
	}
}

func intp(n int) *int       { return &n }
func int64p(n int64) *int64 { return &n }

func minimalScenario(steps ...Step) *Scenario {
	return &Scenario{
		Name:        "minimal",
		Description: "minimal scenario",
		Schema:      filepath.Join("testdata", "schema"),
		Fixtures: []Fixture{{
			Entity: "CmsUser",
			Rows: []map[string]any{
				{"id": 1, "name": "Roman", "username": "romanb", "status": "freak"},
				{"id": 2, "name": "Guilherme", "username": "gblanco", "status": "dev"},
			},
		}},
		Steps: steps,
	}
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	scenario := minimalScenario(
		Step{Op: OpFindBy, Entity: "CmsUser", Criteria: map[string]any{"status": "dev"},
			Expect: &Expect{Count: int64p(5)}},
		Step{Op: OpFindBy, Entity: "CmsUser", Criteria: map[string]any{"status": "dev"},
			Expect: &Expect{Field: "username", Values: []any{"romanb"}}},
		Step{Op: OpFindBy, Entity: "CmsUser", Criteria: map[string]any{"nope": 1},
			Expect: &Expect{Count: int64p(0)}},
		Step{Op: OpFindAll, Entity: "CmsUser",
			Expect: &Expect{Error: "UNRECOGNIZED_FIELD"}},
		Step{Op: OpFind, Entity: "CmsUser", ID: 1,
			Expect: &Expect{Null: true}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "expected count 5, got 1")
	assert.Contains(t, result.Errors[1], "expected username values [romanb]")
	assert.Contains(t, result.Errors[2], "unexpected error")
	assert.Contains(t, result.Errors[3], "expected error UNRECOGNIZED_FIELD, got success")
	assert.Contains(t, result.Errors[4], "expected no entity")

	assert.Equal(t, "UNRECOGNIZED_FIELD", result.Steps[2].Error)
	assert.Empty(t, result.Steps[2].Queries)
}

func TestRun_StepWithoutExpectMustSucceed(t *testing.T) {
	scenario := minimalScenario(Step{Op: OpFindBy, Entity: "Ghost"})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Equal(t, "UNKNOWN_ENTITY_TYPE", result.Steps[0].Error)
}

func TestRun_QueriesPerStep(t *testing.T) {
	scenario := minimalScenario(
		Step{Op: OpFind, Entity: "CmsUser", ID: 1, Save: "roman", Expect: &Expect{Queries: intp(1)}},
		Step{Op: OpFind, Entity: "CmsUser", ID: 1, Expect: &Expect{SameAs: "roman", Queries: intp(0)}},
		Step{Op: OpClear},
		Step{Op: OpFind, Entity: "CmsUser", ID: 1, Expect: &Expect{Queries: intp(1)}},
		Step{Op: OpFind, Entity: "CmsUser", ID: 1, Expect: &Expect{SameAs: "roman"}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1, "a cleared identity map hands out new instances")
	assert.Contains(t, result.Errors[0], `not the instance saved as "roman"`)
	assert.Len(t, result.Steps[0].Queries, 1)
	assert.Empty(t, result.Steps[1].Queries)
	assert.Len(t, result.Queries(), 2)
}

func TestRun_LockSteps(t *testing.T) {
	scenario := minimalScenario(
		Step{Op: OpFind, Entity: "CmsUser", ID: 1, Lock: "pessimistic_write",
			Expect: &Expect{Error: "TRANSACTION_REQUIRED", Queries: intp(0)}},
		Step{Op: OpFind, Entity: "CmsUser", ID: 1, Lock: "optimistic",
			Expect: &Expect{Error: "MISSING_VERSION_FIELD"}},
		Step{Op: OpFind, Entity: "CmsUser", ID: 1, Lock: "exclusive",
			Expect: &Expect{Error: `unknown lock mode "exclusive"`}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "failures: %v", result.Errors)
}

func TestRun_SetupFailures(t *testing.T) {
	t.Run("missing schema", func(t *testing.T) {
		scenario := minimalScenario()
		scenario.Schema = t.TempDir()
		_, err := Run(scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load schema")
	})

	t.Run("unknown fixture entity", func(t *testing.T) {
		scenario := minimalScenario()
		scenario.Fixtures = []Fixture{{Entity: "Ghost", Rows: []map[string]any{{"id": 1}}}}
		_, err := Run(scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fixtures[0]")
	})

	t.Run("bad fixture row", func(t *testing.T) {
		scenario := minimalScenario()
		scenario.Fixtures[0].Rows = append(scenario.Fixtures[0].Rows, map[string]any{"id": 3, "nickname": "x"})
		_, err := Run(scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fixtures[0].rows[2]")
	})
}
