package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/entrepo/internal/criteria"
)

// queryFlags are the search flags shared by plan and find.
type queryFlags struct {
	Where  []string
	Order  []string
	Limit  int
	Offset int
	Count  bool
}

func (q *queryFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringArrayVar(&q.Where, "where", nil, "criteria field=value; repeat a field for IN, value null for IS NULL")
	f.StringArrayVar(&q.Order, "order", nil, "ordering field[:ASC|DESC], applied in flag order")
	f.IntVar(&q.Limit, "limit", 0, "maximum number of results")
	f.IntVar(&q.Offset, "offset", 0, "number of results to skip")
	f.BoolVar(&q.Count, "count", false, "count matches instead of selecting rows")
}

// search is the parsed form of queryFlags.
type search struct {
	Criteria criteria.Map
	Order    criteria.Order
	Page     criteria.Page
	Count    bool
}

// parse converts the flag values. Limit and offset are bounded only when
// the flag was given.
func (q *queryFlags) parse(cmd *cobra.Command) (*search, error) {
	m, err := parseWhere(q.Where)
	if err != nil {
		return nil, err
	}
	order, err := parseOrder(q.Order)
	if err != nil {
		return nil, err
	}

	s := &search{Criteria: m, Order: order, Count: q.Count}
	if cmd.Flags().Changed("limit") {
		limit := q.Limit
		s.Page.Limit = &limit
	}
	if cmd.Flags().Changed("offset") {
		offset := q.Offset
		s.Page.Offset = &offset
	}
	if s.Count && (len(order) > 0 || s.Page.Limit != nil || s.Page.Offset != nil) {
		return nil, fmt.Errorf("--count does not accept --order, --limit or --offset")
	}
	return s, nil
}

// parseWhere builds a criteria map from field=value pairs. A field given
// more than once becomes a list (IN); the literal null becomes NULL. Values
// stay strings and are coerced to the field type during normalization.
func parseWhere(pairs []string) (criteria.Map, error) {
	m := criteria.Map{}
	for _, pair := range pairs {
		field, raw, ok := strings.Cut(pair, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid --where %q: expected field=value", pair)
		}

		var value any = raw
		if raw == "null" {
			value = nil
		}

		switch prev, seen := m[field]; {
		case !seen:
			m[field] = value
		case isList(prev):
			m[field] = append(prev.([]any), value)
		default:
			m[field] = []any{prev, value}
		}
	}
	return m, nil
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}

// parseOrder reads field[:direction] terms. The direction is passed through
// unchanged so that the repository reports invalid orientations.
func parseOrder(terms []string) (criteria.Order, error) {
	var order criteria.Order
	for _, term := range terms {
		field, dir, ok := strings.Cut(term, ":")
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("invalid --order %q: expected field[:ASC|DESC]", term)
		}
		if !ok {
			dir = "ASC"
		}
		order = append(order, criteria.OrderTerm{Field: field, Direction: dir})
	}
	return order, nil
}
