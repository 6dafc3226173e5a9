package queryir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/contentq/internal/ir"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes each rule the query breaks, in traversal order.
	Problems []string
}

// Err returns nil for a valid query, otherwise an error joining all
// problems.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return errors.New(strings.Join(r.Problems, "; "))
}

// Validate checks a query before rendering.
//
// Rules:
//  1. A source table is required
//  2. Field names (projection, ordering, predicates) are non-empty
//  3. Limit and Offset are non-negative
//  4. Literal values are scalars: arrays and objects cannot be bound
//  5. Comparisons against NULL must use IS [NOT] NULL
//
// Validate is a pure function.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// ValidatePredicate applies the predicate rules of Validate to a single
// predicate, so callers can reject it before it joins a query.
func ValidatePredicate(p Predicate) error {
	v := &validator{problems: []string{}}
	v.validatePredicate(p)
	return ValidationResult{Valid: len(v.problems) == 0, Problems: v.problems}.Err()
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case Count:
		v.validateFrom(query.From)
		v.validateFilter(query.Filter)
	case *Count:
		v.validateFrom(query.From)
		v.validateFilter(query.Filter)
	case nil:
		v.addProblem("nil query")
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	v.validateFrom(sel.From)

	for i, f := range sel.Fields {
		if strings.TrimSpace(f) == "" {
			v.addProblem("selected field %d is empty", i)
		}
	}

	v.validateFilter(sel.Filter)

	for i, o := range sel.OrderBy {
		if strings.TrimSpace(o.Field) == "" {
			v.addProblem("order field %d is empty", i)
		}
		if o.Direction != Asc && o.Direction != Desc {
			v.addProblem("order field %q has invalid direction %d", o.Field, o.Direction)
		}
	}

	if sel.Limit < 0 {
		v.addProblem("limit must be non-negative, got %d", sel.Limit)
	}
	if sel.Offset < 0 {
		v.addProblem("offset must be non-negative, got %d", sel.Offset)
	}
}

func (v *validator) validateFrom(from string) {
	if strings.TrimSpace(from) == "" {
		v.addProblem("missing source table")
	}
}

func (v *validator) validateFilter(filter []Predicate) {
	for _, p := range filter {
		v.validatePredicate(p)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		v.addProblem("nil predicate")
		return
	}
	if strings.TrimSpace(p.Column()) == "" {
		v.addProblem("predicate %T has an empty field name", p)
	}

	switch pred := p.(type) {
	case Compare:
		if !pred.Op.IsComparison() {
			v.addProblem("field %q: %q is not a comparison operator", pred.Field, pred.Op)
		}
		if _, isNull := pred.Value.(ir.IRNull); isNull {
			v.addProblem("field %q compared to NULL with %s; use IS NULL or IS NOT NULL", pred.Field, pred.Op)
		}
		v.validateScalar(pred.Field, pred.Value)
	case In:
		if len(pred.Values) == 0 {
			v.addProblem("field %q: IN requires at least one value", pred.Field)
		}
		for _, val := range pred.Values {
			v.validateScalar(pred.Field, val)
		}
	case Between:
		v.validateScalar(pred.Field, pred.Lower)
		v.validateScalar(pred.Field, pred.Upper)
	case Like:
		if _, ok := pred.Pattern.(ir.IRString); !ok {
			v.addProblem("field %q: LIKE pattern must be a string, got %T", pred.Field, pred.Pattern)
		}
	case IsNull:
		// no value
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateScalar(field string, val ir.IRValue) {
	switch val.(type) {
	case ir.IRArray, ir.IRObject:
		v.addProblem("field %q: %T cannot be bound as a parameter", field, val)
	case nil:
		v.addProblem("field %q: missing value", field)
	}
}
