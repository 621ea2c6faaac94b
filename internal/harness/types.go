package harness

import "github.com/roach88/entrepo/internal/store"

// StepResult is the observed outcome of one step.
type StepResult struct {
	Index  int    `json:"index"`
	Op     string `json:"op"`
	Entity string `json:"entity,omitempty"`

	// Count is the number of returned entities, or the counted value.
	Count int64 `json:"count"`

	// Error is the ormerr code of a failed step, or the message of an
	// error without a code.
	Error string `json:"error,omitempty"`

	// Queries are the plans executed while the step ran.
	Queries []store.QueryEntry `json:"queries"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation held.
	Pass bool `json:"pass"`

	// Steps holds one entry per executed step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Queries returns every executed plan across all steps, in order.
func (r *Result) Queries() []store.QueryEntry {
	var out []store.QueryEntry
	for _, s := range r.Steps {
		out = append(out, s.Queries...)
	}
	return out
}
