// Package criteria turns caller-supplied search input into a resolved,
// typed predicate tree.
//
// Two inputs are accepted: a raw field/value Map plus an Order and Page (the
// findBy path), or a pre-built queryir.Criteria (the matching path). Both
// produce the same *Query, which is the only thing the planner consumes.
//
// Every field name, top-level or nested, is resolved through a
// metadata.Source before anything else happens. A name that does not
// resolve aborts the whole operation with ormerr.CodeUnrecognizedField, so
// caller text never reaches generated SQL.
//
// NULL handling follows SQL three-valued logic: a nil value means IS NULL,
// and a nil inside an IN list becomes a separate IS NULL disjunct because
// IN never matches NULL:
//
//	{"status": []any{"dev", nil}}  =>  (status IN (?) OR status IS NULL)
package criteria
