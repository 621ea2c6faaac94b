// Package queryir provides the predicate tree accepted by Repository.Matching.
//
// A Criteria is a pre-built query description that bypasses the raw
// field/value map path: a WHERE expression, an ordering and optional
// bounds. It is purely structural. Field names are not checked here; the
// criteria package resolves them against entity metadata before any SQL is
// produced.
//
// SEALED INTERFACES:
//
// Expression is sealed with the marker method pattern. Only Comparison, And
// and Or implement it, so walkers can switch exhaustively:
//
//	switch e := expr.(type) {
//	case Comparison:
//	    // leaf
//	case And:
//	    // conjunction
//	case Or:
//	    // disjunction
//	}
//
// Adding an operator means extending Operator and every walker's switch,
// never implementing Expression outside this package.
//
// OPERANDS:
//
// Comparison.Value holds a Go value: nil, a scalar (string, integer kinds,
// bool), an ir.IRValue, a slice for in/notIn, or an ir.Identifiable managed
// object for association fields. Floats are rejected, as everywhere else in
// the repository.
package queryir
