// Package querysql renders queryir queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/contentq/internal/ir"
	"github.com/roach88/contentq/internal/queryir"
)

// DefaultOrder is used when a Select has no explicit ordering. Every
// collection row has a stem, so pagination stays deterministic.
var DefaultOrder = queryir.Order{Field: "stem", Direction: queryir.Asc}

// Statement is a rendered query: SQL text with ? placeholders and the
// arguments to bind, in placeholder order.
type Statement struct {
	SQL  string
	Args []any
}

// String returns the SQL text.
func (s Statement) String() string {
	return s.SQL
}

// SQLCompiler renders queryir queries.
//
// Literal values are never interpolated into the SQL text; they are always
// bound through ? placeholders. Identifiers are double-quoted.
type SQLCompiler struct {
	// DefaultOrder replaces an empty Select.OrderBy.
	DefaultOrder queryir.Order
}

// NewSQLCompiler creates a compiler with the default stem ordering.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{DefaultOrder: DefaultOrder}
}

// Compile validates q and renders it.
// The output is a pure function of q: compiling the same query twice
// yields identical statements.
func (c *SQLCompiler) Compile(q queryir.Query) (Statement, error) {
	if q == nil {
		return Statement{}, fmt.Errorf("cannot compile nil query")
	}
	if err := queryir.Validate(q).Err(); err != nil {
		return Statement{}, fmt.Errorf("invalid query: %w", err)
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	case queryir.Count:
		return c.compileCount(query)
	case *queryir.Count:
		return c.compileCount(*query)
	default:
		return Statement{}, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (Statement, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(compileFields(q.Fields))
	sb.WriteString(" FROM ")
	sb.WriteString(quoteTable(q.From))

	args, err := writeWhere(&sb, q.Filter)
	if err != nil {
		return Statement{}, err
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(c.compileOrder(q.OrderBy))

	// A single clause: offset is applied first, then the limit caps the rows.
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
		if q.Offset > 0 {
			fmt.Fprintf(&sb, " OFFSET %d", q.Offset)
		}
	}

	return Statement{SQL: sb.String(), Args: args}, nil
}

func (c *SQLCompiler) compileCount(q queryir.Count) (Statement, error) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) AS ")
	sb.WriteString(QuoteIdent("count"))
	sb.WriteString(" FROM ")
	sb.WriteString(quoteTable(q.From))

	args, err := writeWhere(&sb, q.Filter)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: sb.String(), Args: args}, nil
}

// compileFields renders the projection, or * when empty.
// Request order is kept; duplicates are rendered as given.
func compileFields(fields []string) string {
	if len(fields) == 0 {
		return "*"
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = QuoteIdent(f)
	}
	return strings.Join(parts, ", ")
}

func (c *SQLCompiler) compileOrder(orders []queryir.Order) string {
	if len(orders) == 0 {
		orders = []queryir.Order{c.DefaultOrder}
	}
	parts := make([]string, len(orders))
	for i, o := range orders {
		parts[i] = QuoteIdent(o.Field) + " " + o.Direction.String()
	}
	return strings.Join(parts, ", ")
}

// writeWhere appends " WHERE (p1) AND (p2)..." when filter is non-empty.
func writeWhere(sb *strings.Builder, filter []queryir.Predicate) ([]any, error) {
	if len(filter) == 0 {
		return nil, nil
	}

	parts := make([]string, len(filter))
	var args []any
	for i, p := range filter {
		sql, params, err := compilePredicate(p)
		if err != nil {
			return nil, fmt.Errorf("compile filter %d: %w", i, err)
		}
		parts[i] = "(" + sql + ")"
		args = append(args, params...)
	}

	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(parts, " AND "))
	return args, nil
}

// compilePredicate renders one predicate. Values are never interpolated.
func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Compare:
		param, err := irValueToParam(pred.Value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s ?", QuoteIdent(pred.Field), pred.Op), []any{param}, nil

	case queryir.In:
		placeholders := make([]string, len(pred.Values))
		params := make([]any, len(pred.Values))
		for i, v := range pred.Values {
			param, err := irValueToParam(v)
			if err != nil {
				return "", nil, fmt.Errorf("value %d: %w", i, err)
			}
			placeholders[i] = "?"
			params[i] = param
		}
		op := queryir.OpIn
		if pred.Negate {
			op = queryir.OpNotIn
		}
		return fmt.Sprintf("%s %s (%s)", QuoteIdent(pred.Field), op, strings.Join(placeholders, ", ")), params, nil

	case queryir.Between:
		lower, err := irValueToParam(pred.Lower)
		if err != nil {
			return "", nil, fmt.Errorf("lower bound: %w", err)
		}
		upper, err := irValueToParam(pred.Upper)
		if err != nil {
			return "", nil, fmt.Errorf("upper bound: %w", err)
		}
		op := queryir.OpBetween
		if pred.Negate {
			op = queryir.OpNotBetween
		}
		return fmt.Sprintf("%s %s ? AND ?", QuoteIdent(pred.Field), op), []any{lower, upper}, nil

	case queryir.IsNull:
		op := queryir.OpIsNull
		if pred.Negate {
			op = queryir.OpIsNotNull
		}
		return fmt.Sprintf("%s %s", QuoteIdent(pred.Field), op), nil, nil

	case queryir.Like:
		param, err := irValueToParam(pred.Pattern)
		if err != nil {
			return "", nil, err
		}
		op := queryir.OpLike
		if pred.Negate {
			op = queryir.OpNotLike
		}
		return fmt.Sprintf("%s %s ?", QuoteIdent(pred.Field), op), []any{param}, nil

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// QuoteIdent double-quotes an identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var bareTable = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteTable leaves plain table names bare and quotes anything else.
func quoteTable(name string) string {
	if bareTable.MatchString(name) {
		return name
	}
	return QuoteIdent(name)
}

// irValueToParam converts an ir.IRValue to a driver parameter.
// Arrays and objects cannot be bound.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRFloat:
		return float64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRNull:
		return nil, nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
