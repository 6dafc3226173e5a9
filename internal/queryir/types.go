package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/contentq/internal/ir"
)

// Query is a renderable collection query. Sealed.
type Query interface {
	queryNode()
}

// Predicate is a single filter condition. Sealed.
type Predicate interface {
	predicateNode()
	// Column returns the field the predicate tests.
	Column() string
}

// Select reads rows from one table.
//
//	SELECT <Fields|*> FROM <From> WHERE <Filter...> ORDER BY <OrderBy> LIMIT <Limit> OFFSET <Offset>
//
// Zero Limit and Offset mean unset. Empty OrderBy means the renderer's
// default ordering.
type Select struct {
	From    string
	Fields  []string    // projection in request order; empty = all fields
	Filter  []Predicate // AND-ed in order
	OrderBy []Order
	Limit   int
	Offset  int
}

func (Select) queryNode() {}

// Count counts the rows matching Filter. Ordering and pagination do not
// apply.
type Count struct {
	From   string
	Filter []Predicate
}

func (Count) queryNode() {}

// Direction is an ordering direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// String returns "ASC" or "DESC".
func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// ParseDirection parses "asc"/"desc" case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	default:
		return Asc, fmt.Errorf("invalid order direction %q: must be ASC or DESC", s)
	}
}

// Order is one ORDER BY fragment.
type Order struct {
	Field     string
	Direction Direction
}

// Operator is a filter operator in its canonical upper-case form.
type Operator string

const (
	OpEq         Operator = "="
	OpNe         Operator = "!="
	OpLtGt       Operator = "<>"
	OpGt         Operator = ">"
	OpGte        Operator = ">="
	OpLt         Operator = "<"
	OpLte        Operator = "<="
	OpIn         Operator = "IN"
	OpNotIn      Operator = "NOT IN"
	OpBetween    Operator = "BETWEEN"
	OpNotBetween Operator = "NOT BETWEEN"
	OpIsNull     Operator = "IS NULL"
	OpIsNotNull  Operator = "IS NOT NULL"
	OpLike       Operator = "LIKE"
	OpNotLike    Operator = "NOT LIKE"
)

var operators = map[Operator]struct{}{
	OpEq: {}, OpNe: {}, OpLtGt: {}, OpGt: {}, OpGte: {}, OpLt: {}, OpLte: {},
	OpIn: {}, OpNotIn: {}, OpBetween: {}, OpNotBetween: {},
	OpIsNull: {}, OpIsNotNull: {}, OpLike: {}, OpNotLike: {},
}

// ParseOperator normalizes s (case-insensitive, runs of whitespace
// collapsed) and returns the matching Operator.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.Join(strings.Fields(strings.ToUpper(s)), " "))
	if _, ok := operators[op]; !ok {
		return "", fmt.Errorf("unsupported operator %q", s)
	}
	return op, nil
}

// IsComparison reports whether op is a binary comparison (=, !=, <, ...).
func (op Operator) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLtGt, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Compare is <field> <op> <value> for a comparison operator.
type Compare struct {
	Field string
	Op    Operator
	Value ir.IRValue
}

func (Compare) predicateNode()   {}
func (c Compare) Column() string { return c.Field }

// In is <field> [NOT] IN (<values>).
type In struct {
	Field  string
	Values ir.IRArray
	Negate bool
}

func (In) predicateNode()   {}
func (p In) Column() string { return p.Field }

// Between is <field> [NOT] BETWEEN <lower> AND <upper>.
type Between struct {
	Field  string
	Lower  ir.IRValue
	Upper  ir.IRValue
	Negate bool
}

func (Between) predicateNode()   {}
func (p Between) Column() string { return p.Field }

// IsNull is <field> IS [NOT] NULL.
type IsNull struct {
	Field  string
	Negate bool
}

func (IsNull) predicateNode()   {}
func (p IsNull) Column() string { return p.Field }

// Like is <field> [NOT] LIKE <pattern>.
type Like struct {
	Field   string
	Pattern ir.IRValue
	Negate  bool
}

func (Like) predicateNode()   {}
func (p Like) Column() string { return p.Field }

// NewPredicate builds the predicate for op. It checks operator arity:
// IN/NOT IN need a sequence, BETWEEN/NOT BETWEEN need exactly two values,
// IS [NOT] NULL ignores value.
func NewPredicate(field string, op Operator, value any) (Predicate, error) {
	switch op {
	case OpIn, OpNotIn:
		values, ok, err := ir.Sequence(value)
		if err != nil {
			return nil, fmt.Errorf("value for %s: %w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("value for %s must be a sequence, got %T", op, value)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("value for %s must not be empty", op)
		}
		return In{Field: field, Values: values, Negate: op == OpNotIn}, nil

	case OpBetween, OpNotBetween:
		values, ok, err := ir.Sequence(value)
		if err != nil {
			return nil, fmt.Errorf("value for %s: %w", op, err)
		}
		if !ok || len(values) != 2 {
			return nil, fmt.Errorf("value for %s must be a sequence with two elements", op)
		}
		return Between{Field: field, Lower: values[0], Upper: values[1], Negate: op == OpNotBetween}, nil

	case OpIsNull, OpIsNotNull:
		return IsNull{Field: field, Negate: op == OpIsNotNull}, nil

	case OpLike, OpNotLike:
		v, err := ir.FromGo(value)
		if err != nil {
			return nil, fmt.Errorf("value for %s: %w", op, err)
		}
		pattern, err := likePattern(v)
		if err != nil {
			return nil, fmt.Errorf("value for %s: %w", op, err)
		}
		return Like{Field: field, Pattern: pattern, Negate: op == OpNotLike}, nil

	default:
		if !op.IsComparison() {
			return nil, fmt.Errorf("unsupported operator %q", op)
		}
		v, err := ir.FromGo(value)
		if err != nil {
			return nil, fmt.Errorf("value for %s: %w", op, err)
		}
		return Compare{Field: field, Op: op, Value: v}, nil
	}
}

// likePattern turns a scalar into the text SQLite would compare it as.
// Null and composite values pass through for the validator to reject.
func likePattern(v ir.IRValue) (ir.IRValue, error) {
	switch v.(type) {
	case ir.IRInt, ir.IRFloat, ir.IRBool:
		data, err := ir.MarshalIRValue(v)
		if err != nil {
			return nil, err
		}
		return ir.IRString(data), nil
	default:
		return v, nil
	}
}
