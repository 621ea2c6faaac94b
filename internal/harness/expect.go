package harness

import (
	"fmt"

	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/uow"
)

// checkStep evaluates a step's expectations and returns one message per
// failed check. A step without expectations must not fail.
func checkStep(step Step, out outcome, err error, queries int, saved map[string][]*uow.Entity) []string {
	e := step.Expect
	if e == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}

	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	if e.Queries != nil && queries != *e.Queries {
		fail("expected %d queries, got %d", *e.Queries, queries)
	}

	if e.Error != "" {
		switch {
		case err == nil:
			fail("expected error %s, got success", e.Error)
		case errorCode(err) != e.Error:
			fail("expected error %s, got %s (%v)", e.Error, errorCode(err), err)
		}
		return failures
	}
	if err != nil {
		fail("unexpected error: %v", err)
		return failures
	}

	if e.Count != nil && out.count != *e.Count {
		fail("expected count %d, got %d", *e.Count, out.count)
	}

	if e.Null {
		if !out.single {
			fail("null applies to find and findOneBy only")
		} else if len(out.entities) != 0 {
			fail("expected no entity, got %s", out.entities[0])
		}
	}

	if e.Field != "" {
		if msg := checkValues(out.entities, e.Field, e.Values); msg != "" {
			fail("%s", msg)
		}
	}

	if e.SameAs != "" {
		if msg := checkSameAs(out.entities, saved[e.SameAs], e.SameAs); msg != "" {
			fail("%s", msg)
		}
	}

	return failures
}

// checkValues compares field across entities against want, in order.
func checkValues(entities []*uow.Entity, field string, want []any) string {
	got := make([]ir.IRValue, len(entities))
	for i, ent := range entities {
		v, err := fieldValue(ent, field)
		if err != nil {
			return err.Error()
		}
		got[i] = v
	}

	if len(got) != len(want) {
		return fmt.Sprintf("expected %s values %v, got %s", field, want, formatValues(got))
	}
	for i, w := range want {
		wv, err := ir.FromGo(w)
		if err != nil {
			return fmt.Sprintf("values[%d]: %v", i, err)
		}
		if !ir.Equal(got[i], wv) {
			return fmt.Sprintf("expected %s values %v, got %s", field, want, formatValues(got))
		}
	}
	return ""
}

// fieldValue reads a scalar field, or the identifier of an owning
// reference (NULL when unset).
func fieldValue(e *uow.Entity, field string) (ir.IRValue, error) {
	if v, ok := e.Get(field); ok {
		return v, nil
	}
	a, ok := e.Type().Association(field)
	if !ok || !a.IsOwningSide() {
		return nil, fmt.Errorf("%s has no field or owning association %q", e.EntityTypeName(), field)
	}
	ref := e.Ref(field)
	if ref == nil {
		return ir.IRNull{}, nil
	}
	return ref.IdentifierValues()[0], nil
}

func formatValues(values []ir.IRValue) string {
	return ir.Format(ir.IRArray(values))
}

// checkSameAs verifies got holds the very instances in want, in order.
func checkSameAs(got, want []*uow.Entity, label string) string {
	if len(got) != len(want) {
		return fmt.Sprintf("expected the %d entities saved as %q, got %d", len(want), label, len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Sprintf("entity %d is %s, not the instance saved as %q", i, got[i], label)
		}
	}
	return ""
}
