package repository

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/entrepo/internal/criteria"
	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/metadata"
	"github.com/roach88/entrepo/internal/queryir"
	"github.com/roach88/entrepo/internal/uow"
)

// filter applies a resolved query to already hydrated entities with the
// same semantics the database applies: comparisons involving NULL never
// match, and NULLs sort first in ascending order.
func filter(items []*uow.Entity, q *criteria.Query) ([]*uow.Entity, error) {
	var out []*uow.Entity
	for _, e := range items {
		ok, err := matches(e, q.Where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}

	if len(q.Order) > 0 {
		var sortErr error
		slices.SortStableFunc(out, func(a, b *uow.Entity) int {
			for _, s := range q.Order {
				av, err := pathValue(a, s.Path)
				if err != nil {
					sortErr = err
					return 0
				}
				bv, err := pathValue(b, s.Path)
				if err != nil {
					sortErr = err
					return 0
				}
				c := compareValues(av, bv)
				if s.Descending {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
		if sortErr != nil {
			return nil, sortErr
		}
	}

	if q.Offset != nil {
		if *q.Offset >= len(out) {
			out = nil
		} else {
			out = out[*q.Offset:]
		}
	}
	if q.Limit != nil && *q.Limit < len(out) {
		out = out[:*q.Limit]
	}
	return out, nil
}

func matches(e *uow.Entity, p criteria.Predicate) (bool, error) {
	switch n := p.(type) {
	case nil:
		return true, nil
	case criteria.Conj:
		for _, item := range n.Items {
			ok, err := matches(e, item)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case criteria.Disj:
		for _, item := range n.Items {
			ok, err := matches(e, item)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case criteria.Compare:
		v, err := pathValue(e, n.Path)
		if err != nil {
			return false, err
		}
		return compare(v, n.Op, n.Value), nil
	default:
		return false, fmt.Errorf("unknown predicate %T", p)
	}
}

func compare(v ir.IRValue, op queryir.Operator, operand ir.IRValue) bool {
	if op == queryir.OpIsNull || (op == queryir.OpEq && ir.IsNull(operand)) {
		return ir.IsNull(v)
	}
	if ir.IsNull(v) {
		return false
	}
	if op == queryir.OpNeq && ir.IsNull(operand) {
		return true
	}

	switch op {
	case queryir.OpEq:
		return ir.Equal(v, operand)
	case queryir.OpNeq:
		return !ir.Equal(v, operand)
	case queryir.OpLt:
		return compareValues(v, operand) < 0
	case queryir.OpLte:
		return compareValues(v, operand) <= 0
	case queryir.OpGt:
		return compareValues(v, operand) > 0
	case queryir.OpGte:
		return compareValues(v, operand) >= 0
	case queryir.OpIn, queryir.OpNotIn:
		list, _ := operand.(ir.IRArray)
		found := slices.ContainsFunc(list, func(elem ir.IRValue) bool { return ir.Equal(v, elem) })
		return found == (op == queryir.OpIn)
	}

	if op.IsPattern() {
		s, ok := v.(ir.IRString)
		pat, ok2 := operand.(ir.IRString)
		if !ok || !ok2 {
			return false
		}
		str, sub := string(s), string(pat)
		if op.CaseInsensitive() {
			lower := cases.Lower(language.Und)
			str, sub = lower.String(str), lower.String(sub)
		}
		switch op {
		case queryir.OpContains, queryir.OpIContains:
			return strings.Contains(str, sub)
		case queryir.OpStartsWith, queryir.OpIStartsWith:
			return strings.HasPrefix(str, sub)
		case queryir.OpEndsWith, queryir.OpIEndsWith:
			return strings.HasSuffix(str, sub)
		}
	}
	return false
}

// compareValues orders two values of the same scalar type. NULL sorts
// before everything else.
func compareValues(a, b ir.IRValue) int {
	switch {
	case ir.IsNull(a) && ir.IsNull(b):
		return 0
	case ir.IsNull(a):
		return -1
	case ir.IsNull(b):
		return 1
	}
	switch av := a.(type) {
	case ir.IRInt:
		if bv, ok := b.(ir.IRInt); ok {
			return cmp.Compare(av, bv)
		}
	case ir.IRString:
		if bv, ok := b.(ir.IRString); ok {
			return cmp.Compare(av, bv)
		}
	case ir.IRBool:
		if bv, ok := b.(ir.IRBool); ok {
			return cmp.Compare(boolRank(av), boolRank(bv))
		}
	}
	return cmp.Compare(ir.Format(a), ir.Format(b))
}

func boolRank(b ir.IRBool) int {
	if b {
		return 1
	}
	return 0
}

// pathValue reads the value a path compares on: a scalar field, the
// identifier of an owning reference, or a field of a loaded reference.
func pathValue(e *uow.Entity, p criteria.Path) (ir.IRValue, error) {
	if p.Ref.Kind == metadata.KindScalar {
		v, ok := e.Get(p.Ref.Name())
		if !ok {
			return nil, fmt.Errorf("%s: field %q is not loaded", e, p.Ref.Name())
		}
		return v, nil
	}

	ref := e.Ref(p.Ref.Name())
	if ref == nil {
		return ir.IRNull{}, nil
	}
	if p.Nested == nil {
		return ref.IdentifierValues()[0], nil
	}
	if p.Nested.Kind == metadata.KindScalar {
		if v, ok := ref.Get(p.Nested.Name()); ok {
			return v, nil
		}
	} else if ref.Loaded() {
		nested := ref.Ref(p.Nested.Name())
		if nested == nil {
			return ir.IRNull{}, nil
		}
		return nested.IdentifierValues()[0], nil
	}
	return nil, fmt.Errorf("%s: reference %s is not loaded; initialize it before filtering on %s", e, ref, p)
}
