package criteria

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/metadata"
	"github.com/roach88/entrepo/internal/ormerr"
	"github.com/roach88/entrepo/internal/queryir"
)

// pathDelimiter separates an association from a field on its target.
const pathDelimiter = "."

// usage selects which inverse-side error a resolution failure reports.
type usage int

const (
	forSearch usage = iota
	forOrder
)

// Normalizer resolves raw search input against entity metadata.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	source metadata.Source
}

// NewNormalizer creates a normalizer backed by source.
func NewNormalizer(source metadata.Source) *Normalizer {
	return &Normalizer{source: source}
}

// Normalize resolves a raw criteria map, ordering and page into a Query.
//
// Keys of m are processed in sorted order and combined with AND. Nothing is
// partially built: the first failure aborts the whole normalization.
func (n *Normalizer) Normalize(et *ir.EntityType, m Map, order Order, page Page) (*Query, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]Predicate, 0, len(keys))
	for _, key := range keys {
		path, err := n.resolvePath(et, key, forSearch)
		if err != nil {
			return nil, err
		}
		p, err := n.fromRaw(et, path, m[key])
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}

	sorts, err := n.resolveOrder(et, order)
	if err != nil {
		return nil, err
	}

	if page.Limit != nil && *page.Limit < 0 {
		return nil, ormerr.InvalidArgument(et.Name, fmt.Sprintf("limit must be non-negative, got %d", *page.Limit))
	}
	if page.Offset != nil && *page.Offset < 0 {
		return nil, ormerr.InvalidArgument(et.Name, fmt.Sprintf("offset must be non-negative, got %d", *page.Offset))
	}

	return &Query{
		Root:   et,
		Where:  topLevel(conj(items)),
		Order:  sorts,
		Limit:  page.Limit,
		Offset: page.Offset,
	}, nil
}

// Resolve resolves a pre-built predicate tree into a Query.
func (n *Normalizer) Resolve(et *ir.EntityType, c queryir.Criteria) (*Query, error) {
	if problems := queryir.Validate(c); len(problems) > 0 {
		p := problems[0]
		if p.Kind == queryir.ProblemOperand {
			return nil, ormerr.InvalidOperand(et.Name, p.Field, p.Message)
		}
		return nil, ormerr.InvalidArgument(et.Name, p.String())
	}

	var where Predicate
	if c.Where != nil {
		var err error
		where, err = n.resolveExpression(et, c.Where)
		if err != nil {
			return nil, err
		}
	}

	sorts, err := n.resolveOrder(et, Order(c.Orderings))
	if err != nil {
		return nil, err
	}

	return &Query{
		Root:   et,
		Where:  topLevel(where),
		Order:  sorts,
		Limit:  c.MaxResults,
		Offset: c.FirstResult,
	}, nil
}

// ResolveIdentifier converts a find() identifier into the primary-key tuple
// in key order.
//
// id is either a single value (single-column keys only) or a map of
// identifier field to value. Unknown map keys are reported before missing
// ones.
func (n *Normalizer) ResolveIdentifier(et *ir.EntityType, id any) ([]ir.IRValue, error) {
	idFields := et.IdentifierFields()

	var values map[string]any
	switch v := id.(type) {
	case map[string]any:
		values = v
	case Map:
		values = v
	case ir.IRObject:
		values = make(map[string]any, len(v))
		for k, elem := range v {
			values[k] = elem
		}
	default:
		if len(idFields) != 1 {
			return nil, ormerr.MissingIdentifierField(et.Name, idFields[len(idFields)-1].Name)
		}
		values = map[string]any{idFields[0].Name: id}
	}

	var unknown []string
	for k := range values {
		if !et.IsIdentifier(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return nil, ormerr.UnrecognizedIdentifierFields(et.Name, unknown)
	}

	out := make([]ir.IRValue, len(idFields))
	for i, f := range idFields {
		raw, ok := values[f.Name]
		if !ok {
			return nil, ormerr.MissingIdentifierField(et.Name, f.Name)
		}
		path := Path{Ref: metadata.FieldRef{Kind: metadata.KindScalar, Field: f}}
		val, err := n.operand(et, path, raw)
		if err != nil {
			return nil, err
		}
		if ir.IsNull(val) {
			return nil, ormerr.InvalidOperand(et.Name, f.Name, "identifier cannot be NULL")
		}
		out[i] = val
	}
	return out, nil
}

// resolvePath resolves a possibly dotted field name. Every segment must be
// a mapped name; the first of two segments must be an owning association.
func (n *Normalizer) resolvePath(et *ir.EntityType, name string, use usage) (Path, error) {
	segments := strings.Split(name, pathDelimiter)
	if len(segments) > 2 {
		return Path{}, ormerr.UnrecognizedField(et.Name, name)
	}

	ref, err := n.source.ResolveField(et, segments[0])
	if err != nil {
		return Path{}, unrecognized(err, et.Name, name)
	}
	if ref.Kind == metadata.KindInverseAssociation {
		return Path{}, inverseSide(use, et.Name, ref.Name())
	}
	if len(segments) == 1 {
		return Path{Ref: ref}, nil
	}

	if ref.Kind != metadata.KindOwningAssociation {
		return Path{}, ormerr.UnrecognizedField(et.Name, name)
	}
	nested, err := n.source.ResolveField(ref.Target, segments[1])
	if err != nil {
		return Path{}, unrecognized(err, et.Name, name)
	}
	if nested.Kind == metadata.KindInverseAssociation {
		return Path{}, inverseSide(use, ref.Target.Name, nested.Name())
	}
	return Path{Ref: ref, Nested: &nested}, nil
}

// unrecognized reports the full dotted name rather than the failing segment.
func unrecognized(err error, entity, name string) error {
	if errors.Is(err, ormerr.ErrUnrecognizedField) {
		return ormerr.UnrecognizedField(entity, name)
	}
	return err
}

func inverseSide(use usage, entity, field string) error {
	if use == forOrder {
		return ormerr.OrderByInverseSide(entity, field)
	}
	return ormerr.SearchByInverseSide(entity, field)
}

func (n *Normalizer) resolveOrder(et *ir.EntityType, order Order) ([]Sort, error) {
	if len(order) == 0 {
		return nil, nil
	}
	sorts := make([]Sort, 0, len(order))
	for _, term := range order {
		dir := strings.ToUpper(term.Direction)
		if dir != "ASC" && dir != "DESC" {
			return nil, ormerr.InvalidOrientation(et.Name, term.Field)
		}
		path, err := n.resolvePath(et, term.Field, forOrder)
		if err != nil {
			return nil, err
		}
		sorts = append(sorts, Sort{Path: path, Descending: dir == "DESC"})
	}
	return sorts, nil
}

// fromRaw builds the predicate for one criteria map entry: a list is IN,
// nil is IS NULL, anything else is equality.
func (n *Normalizer) fromRaw(et *ir.EntityType, path Path, raw any) (Predicate, error) {
	if queryir.IsList(raw) {
		return n.inList(et, path, queryir.OpIn, raw)
	}
	val, err := n.operand(et, path, raw)
	if err != nil {
		return nil, err
	}
	if ir.IsNull(val) {
		return Compare{Path: path, Op: queryir.OpIsNull}, nil
	}
	return Compare{Path: path, Op: queryir.OpEq, Value: val}, nil
}

func (n *Normalizer) resolveExpression(et *ir.EntityType, e queryir.Expression) (Predicate, error) {
	switch expr := e.(type) {
	case queryir.Comparison:
		return n.resolveComparison(et, expr)
	case *queryir.Comparison:
		return n.resolveComparison(et, *expr)
	case queryir.And:
		items, err := n.resolveAll(et, expr.Expressions)
		if err != nil {
			return nil, err
		}
		return conj(items), nil
	case *queryir.And:
		return n.resolveExpression(et, *expr)
	case queryir.Or:
		items, err := n.resolveAll(et, expr.Expressions)
		if err != nil {
			return nil, err
		}
		return disj(items), nil
	case *queryir.Or:
		return n.resolveExpression(et, *expr)
	default:
		return nil, ormerr.InvalidArgument(et.Name, fmt.Sprintf("unknown expression type: %T", e))
	}
}

func (n *Normalizer) resolveAll(et *ir.EntityType, exprs []queryir.Expression) ([]Predicate, error) {
	items := make([]Predicate, 0, len(exprs))
	for _, child := range exprs {
		p, err := n.resolveExpression(et, child)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, nil
}

func (n *Normalizer) resolveComparison(et *ir.EntityType, c queryir.Comparison) (Predicate, error) {
	path, err := n.resolvePath(et, c.Field, forSearch)
	if err != nil {
		return nil, err
	}

	switch {
	case c.Op == queryir.OpIsNull:
		return Compare{Path: path, Op: queryir.OpIsNull}, nil
	case c.Op.IsList():
		return n.inList(et, path, c.Op, c.Value)
	}

	if c.Op.IsPattern() && path.ValueType() != ir.TypeString {
		return nil, ormerr.InvalidOperand(et.Name, path.String(),
			fmt.Sprintf("%s requires a string field, got %s", c.Op, path.ValueType()))
	}

	val, err := n.operand(et, path, c.Value)
	if err != nil {
		return nil, err
	}
	if c.Op == queryir.OpEq && ir.IsNull(val) {
		return Compare{Path: path, Op: queryir.OpIsNull}, nil
	}
	return Compare{Path: path, Op: c.Op, Value: val}, nil
}

// inList builds an IN or NOT IN predicate. NULL entries are pulled out of
// the list: IN gains an IS NULL disjunct, NOT IN an IS NOT NULL conjunct.
func (n *Normalizer) inList(et *ir.EntityType, path Path, op queryir.Operator, raw any) (Predicate, error) {
	values := ir.IRArray{}
	hasNull := false
	for _, elem := range listElements(raw) {
		val, err := n.operand(et, path, elem)
		if err != nil {
			return nil, err
		}
		if ir.IsNull(val) {
			hasNull = true
			continue
		}
		values = append(values, val)
	}

	list := Compare{Path: path, Op: op, Value: values}
	if !hasNull {
		return list, nil
	}

	if op == queryir.OpNotIn {
		notNull := Compare{Path: path, Op: queryir.OpNeq, Value: ir.IRNull{}}
		if len(values) == 0 {
			return notNull, nil
		}
		return Conj{Items: []Predicate{list, notNull}}, nil
	}

	isNull := Compare{Path: path, Op: queryir.OpIsNull}
	if len(values) == 0 {
		return isNull, nil
	}
	return Disj{Items: []Predicate{list, isNull}}, nil
}

// operand converts one non-list operand to the path's value type.
// Managed objects become their identifier value.
func (n *Normalizer) operand(et *ir.EntityType, path Path, raw any) (ir.IRValue, error) {
	if isNilValue(raw) {
		return ir.IRNull{}, nil
	}

	leaf := path.Leaf()
	if obj, ok := raw.(ir.Identifiable); ok {
		if leaf.Kind != metadata.KindOwningAssociation {
			return nil, ormerr.InvalidOperand(et.Name, path.String(),
				"a managed object can only be compared with an association")
		}
		if obj.EntityTypeName() != leaf.Target.Name {
			return nil, ormerr.InvalidOperand(et.Name, path.String(),
				fmt.Sprintf("expected %s, got %s", leaf.Target.Name, obj.EntityTypeName()))
		}
		ids := obj.IdentifierValues()
		if len(ids) != 1 || ir.IsNull(ids[0]) {
			return nil, ormerr.InvalidOperand(et.Name, path.String(), "managed object has no identifier")
		}
		raw = ids[0]
	}

	val, err := ir.FromGo(raw)
	if err != nil {
		return nil, ormerr.InvalidOperand(et.Name, path.String(), err.Error())
	}
	switch val.(type) {
	case ir.IRNull:
		return val, nil
	case ir.IRArray, ir.IRObject:
		return nil, ormerr.InvalidOperand(et.Name, path.String(), "expected a scalar value")
	}
	return coerce(et, path, val)
}

// coerce converts val to the scalar type of the compared column. Strings
// are parsed for int and bool columns so text sources behave like typed
// callers.
func coerce(et *ir.EntityType, path Path, val ir.IRValue) (ir.IRValue, error) {
	invalid := func(reason string) error {
		return ormerr.InvalidOperand(et.Name, path.String(), reason)
	}

	switch path.ValueType() {
	case ir.TypeInt:
		switch v := val.(type) {
		case ir.IRInt:
			return v, nil
		case ir.IRString:
			i, err := strconv.ParseInt(string(v), 10, 64)
			if err != nil {
				return nil, invalid(fmt.Sprintf("%q is not an integer", string(v)))
			}
			return ir.IRInt(i), nil
		}
		return nil, invalid(fmt.Sprintf("expected int, got %s", ir.Format(val)))

	case ir.TypeString:
		switch v := val.(type) {
		case ir.IRString:
			return v, nil
		case ir.IRInt:
			return ir.IRString(strconv.FormatInt(int64(v), 10)), nil
		}
		return nil, invalid(fmt.Sprintf("expected string, got %s", ir.Format(val)))

	case ir.TypeBool:
		switch v := val.(type) {
		case ir.IRBool:
			return v, nil
		case ir.IRString:
			b, err := strconv.ParseBool(string(v))
			if err != nil {
				return nil, invalid(fmt.Sprintf("%q is not a boolean", string(v)))
			}
			return ir.IRBool(b), nil
		case ir.IRInt:
			if v == 0 || v == 1 {
				return ir.IRBool(v == 1), nil
			}
		}
		return nil, invalid(fmt.Sprintf("expected bool, got %s", ir.Format(val)))
	}
	return val, nil
}

func listElements(raw any) []any {
	if arr, ok := raw.(ir.IRArray); ok {
		out := make([]any, len(arr))
		for i, v := range arr {
			out[i] = v
		}
		return out
	}
	rv := reflect.ValueOf(raw)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	if irv, ok := v.(ir.IRValue); ok {
		return ir.IsNull(irv)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map:
		return rv.IsNil()
	}
	return false
}

func conj(items []Predicate) Predicate {
	if len(items) == 1 {
		return items[0]
	}
	return Conj{Items: items}
}

func disj(items []Predicate) Predicate {
	if len(items) == 1 {
		return items[0]
	}
	return Disj{Items: items}
}

// topLevel drops an empty top-level conjunction.
func topLevel(p Predicate) Predicate {
	if c, ok := p.(Conj); ok && len(c.Items) == 0 {
		return nil
	}
	return p
}
