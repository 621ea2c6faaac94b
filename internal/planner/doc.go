// Package planner compiles normalized criteria into parameterized SQL plans.
//
// Planning is pure and deterministic: the same *criteria.Query always yields
// a byte-identical Plan (same SQL, same joins, same parameter order), which
// is what makes query logs comparable in golden tests.
//
// Rules every plan follows:
//   - Values are never interpolated. Every operand is a typed Param.
//   - Identifiers come only from validated metadata, never from callers.
//   - An IN list is ONE parameter tagged "T[]"; Plan.Bind expands it into
//     one driver placeholder per element at execution time.
//   - Each association hop contributes exactly one LEFT JOIN, deduplicated
//     by join column and target, aliased t1..tn in encounter order
//     (criteria first, then ordering). The root is always t0.
//
// Example:
//
//	SELECT t0.id, t0.status, t0.username, t0.name, t0.email_id
//	FROM cms_users t0
//	WHERE t0.status IN (?) OR t0.status IS NULL
//	ORDER BY t0.username ASC
//	params: [string[] ["dev"]]
package planner
