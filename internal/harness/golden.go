package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/entrepo/internal/ir"
)

// QuerySnapshot captures the plans a scenario executed. Fingerprints are
// left out so the snapshot reads as SQL plus typed parameters.
type QuerySnapshot struct {
	ScenarioName string
	Steps        []StepResult
}

// toIR converts the snapshot for canonical JSON serialization.
func (s *QuerySnapshot) toIR() ir.IRObject {
	queries := ir.IRArray{}
	for _, step := range s.Steps {
		for _, q := range step.Queries {
			types := make(ir.IRArray, len(q.Types))
			for i, t := range q.Types {
				types[i] = ir.IRString(t)
			}
			queries = append(queries, ir.IRObject{
				"step":   ir.IRInt(step.Index),
				"entity": ir.IRString(q.Entity),
				"kind":   ir.IRString(q.Kind),
				"sql":    ir.IRString(q.SQL),
				"params": ir.IRArray(q.Params),
				"types":  types,
			})
		}
	}
	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"queries":       queries,
	}
}

// Marshal renders the snapshot as canonical JSON, the golden file format.
func (s *QuerySnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toIR())
}

// RunWithGolden executes a scenario and compares its query log against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if scenario execution fails. Expectation failures are
// reported on the result; golden mismatches fail t.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's query log against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := QuerySnapshot{ScenarioName: scenarioName, Steps: result.Steps}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
