package repository

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/entrepo/internal/criteria"
	"github.com/roach88/entrepo/internal/ormerr"
	"github.com/roach88/entrepo/internal/uow"
)

// Verb is the operation named by a dynamic shortcut.
type Verb string

const (
	VerbFindBy    Verb = "findBy"
	VerbFindOneBy Verb = "findOneBy"
	VerbCountBy   Verb = "countBy"
)

// maxArgs is the number of positional arguments each verb accepts:
// value, order, limit, offset.
var maxArgs = map[Verb]int{
	VerbFindBy:    4,
	VerbFindOneBy: 2,
	VerbCountBy:   1,
}

// CallResult holds the outcome of Call. Exactly one field is meaningful,
// chosen by Verb.
type CallResult struct {
	Verb     Verb
	Entities []*uow.Entity // findBy
	Entity   *uow.Entity   // findOneBy; nil when nothing matched
	Count    int64         // countBy
}

// ParseMethod splits a shortcut name such as "findOneByStatus" into its verb
// and field name ("status"). The field name is the suffix with its first
// letter lower-cased; it is not resolved here.
func ParseMethod(method string) (Verb, string, bool) {
	for _, verb := range []Verb{VerbFindOneBy, VerbFindBy, VerbCountBy} {
		suffix, ok := strings.CutPrefix(method, string(verb))
		if !ok || suffix == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(suffix)
		return verb, string(unicode.ToLower(r)) + suffix[size:], true
	}
	return "", "", false
}

// Call runs a dynamic shortcut: findBy<Field>(value, order?, limit?,
// offset?), findOneBy<Field>(value, order?) or countBy<Field>(value).
//
// It is sugar over FindBy, FindOneBy and Count with a one-entry criteria
// map; the field goes through the same resolution. order may be a
// criteria.Order or a map[string]string; limit and offset are ints; nil
// leaves any of them unset.
func (r *Repository) Call(ctx context.Context, method string, args ...any) (CallResult, error) {
	verb, field, ok := ParseMethod(method)
	if !ok {
		return CallResult{}, ormerr.UnknownDynamicMethod(r.et.Name, method)
	}
	if len(args) == 0 {
		return CallResult{}, ormerr.MissingArgument(r.et.Name, method)
	}
	if len(args) > maxArgs[verb] {
		return CallResult{}, ormerr.InvalidArgument(r.et.Name,
			fmt.Sprintf("%s accepts at most %d arguments, got %d", method, maxArgs[verb], len(args)))
	}

	m := criteria.Map{field: args[0]}
	opts, err := r.callOptions(method, args[1:])
	if err != nil {
		return CallResult{}, err
	}

	res := CallResult{Verb: verb}
	switch verb {
	case VerbFindBy:
		res.Entities, err = r.FindBy(ctx, m, opts...)
	case VerbFindOneBy:
		res.Entity, err = r.FindOneBy(ctx, m, opts...)
	case VerbCountBy:
		res.Count, err = r.Count(ctx, m)
	}
	if err != nil {
		return CallResult{}, err
	}
	return res, nil
}

// callOptions converts the optional order, limit and offset arguments.
func (r *Repository) callOptions(method string, rest []any) ([]QueryOption, error) {
	var opts []QueryOption

	if len(rest) > 0 && rest[0] != nil {
		switch o := rest[0].(type) {
		case criteria.Order:
			opts = append(opts, WithOrder(o))
		case map[string]string:
			opts = append(opts, WithOrder(criteria.OrderFromMap(o)))
		default:
			return nil, ormerr.InvalidArgument(r.et.Name,
				fmt.Sprintf("%s: order must be criteria.Order or map[string]string, got %T", method, rest[0]))
		}
	}

	for i, name := range []string{"limit", "offset"} {
		if len(rest) <= i+1 || rest[i+1] == nil {
			continue
		}
		n, ok := rest[i+1].(int)
		if !ok {
			return nil, ormerr.InvalidArgument(r.et.Name,
				fmt.Sprintf("%s: %s must be an int, got %T", method, name, rest[i+1]))
		}
		if name == "limit" {
			opts = append(opts, Limit(n))
		} else {
			opts = append(opts, Offset(n))
		}
	}
	return opts, nil
}
