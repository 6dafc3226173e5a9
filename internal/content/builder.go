package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/contentq/internal/queryir"
	"github.com/roach88/contentq/internal/querysql"
	"github.com/roach88/contentq/internal/store"
)

// PathField is the field matched by Path.
const PathField = "path"

// QueryBuilder accumulates one collection query. It is not safe for
// concurrent use; build one per query.
type QueryBuilder[T any] struct {
	client     *Client
	collection string
	params     queryir.Select
	decode     func(store.Row) (T, error)
	err        error
}

func newBuilder[T any](c *Client, collection string, decode func(store.Row) (T, error)) *QueryBuilder[T] {
	b := &QueryBuilder[T]{
		client:     c,
		collection: collection,
		decode:     decode,
	}

	table, ok := c.tables.Table(collection)
	if !ok {
		b.err = &Error{
			Code:    CodeUnknownCollection,
			Op:      "Query",
			Message: fmt.Sprintf("collection %q is not in the manifest", collection),
		}
		return b
	}
	b.params.From = table
	return b
}

// Err returns the first error recorded by the chain, or nil.
func (b *QueryBuilder[T]) Err() error {
	return b.err
}

// Collection returns the collection name the builder queries.
func (b *QueryBuilder[T]) Collection() string {
	return b.collection
}

// Path filters on the path field: Where("path", "=", value).
func (b *QueryBuilder[T]) Path(value string) *QueryBuilder[T] {
	return b.where("Path", PathField, string(queryir.OpEq), value)
}

// Where adds a condition. Conditions are joined with AND in call order.
//
// Operators are case-insensitive: =, !=, <>, >, >=, <, <=, IN, NOT IN,
// BETWEEN, NOT BETWEEN, IS NULL, IS NOT NULL, LIKE, NOT LIKE.
// IN takes a non-empty slice, BETWEEN a two-element slice, and IS NULL
// ignores value.
func (b *QueryBuilder[T]) Where(field, operator string, value any) *QueryBuilder[T] {
	return b.where("Where", field, operator, value)
}

func (b *QueryBuilder[T]) where(op, field, operator string, value any) *QueryBuilder[T] {
	if b.err != nil {
		return b
	}
	if strings.TrimSpace(field) == "" {
		b.err = invalidArgument(op, field, nil, "field name is empty")
		return b
	}

	parsed, err := queryir.ParseOperator(operator)
	if err != nil {
		b.err = invalidArgument(op, field, err, "%v", err)
		return b
	}

	pred, err := queryir.NewPredicate(field, parsed, value)
	if err != nil {
		b.err = invalidArgument(op, field, err, "%v", err)
		return b
	}
	if err := queryir.ValidatePredicate(pred); err != nil {
		b.err = invalidArgument(op, field, err, "%v", err)
		return b
	}

	b.params.Filter = append(b.params.Filter, pred)
	return b
}

// Skip sets the number of rows to skip. The last call wins.
// An offset only takes effect together with a limit.
func (b *QueryBuilder[T]) Skip(n int) *QueryBuilder[T] {
	if b.err != nil {
		return b
	}
	if n < 0 {
		b.err = invalidArgument("Skip", "", nil, "negative offset %d", n)
		return b
	}
	b.params.Offset = n
	return b
}

// Limit caps the number of rows. Zero means no limit. The last call wins.
func (b *QueryBuilder[T]) Limit(n int) *QueryBuilder[T] {
	if b.err != nil {
		return b
	}
	if n < 0 {
		b.err = invalidArgument("Limit", "", nil, "negative limit %d", n)
		return b
	}
	b.params.Limit = n
	return b
}

// Select appends fields to the projection. Without any Select call every
// column is returned.
func (b *QueryBuilder[T]) Select(fields ...string) *QueryBuilder[T] {
	if b.err != nil {
		return b
	}
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			b.err = invalidArgument("Select", f, nil, "field name is empty")
			return b
		}
	}
	b.params.Fields = append(b.params.Fields, fields...)
	return b
}

// Order appends a sort key. Without any Order call rows are sorted by stem.
func (b *QueryBuilder[T]) Order(field string, direction queryir.Direction) *QueryBuilder[T] {
	if b.err != nil {
		return b
	}
	if strings.TrimSpace(field) == "" {
		b.err = invalidArgument("Order", field, nil, "field name is empty")
		return b
	}
	if direction != queryir.Asc && direction != queryir.Desc {
		b.err = invalidArgument("Order", field, nil, "invalid direction %d", direction)
		return b
	}
	b.params.OrderBy = append(b.params.OrderBy, queryir.Order{Field: field, Direction: direction})
	return b
}

// OrderBy is Order with the direction spelled "asc" or "desc" in any case.
func (b *QueryBuilder[T]) OrderBy(field, direction string) *QueryBuilder[T] {
	if b.err != nil {
		return b
	}
	dir, err := queryir.ParseDirection(direction)
	if err != nil {
		b.err = invalidArgument("OrderBy", field, err, "%v", err)
		return b
	}
	return b.Order(field, dir)
}

// Params returns a copy of the accumulated query.
func (b *QueryBuilder[T]) Params() queryir.Select {
	p := b.params
	p.Fields = append([]string(nil), p.Fields...)
	p.Filter = append([]queryir.Predicate(nil), p.Filter...)
	p.OrderBy = append([]queryir.Order(nil), p.OrderBy...)
	return p
}

// Build renders the query without running it. Rendering the same builder
// twice gives identical statements.
func (b *QueryBuilder[T]) Build() (querysql.Statement, error) {
	if b.err != nil {
		return querysql.Statement{}, b.err
	}
	return b.client.compiler.Compile(b.params)
}

// All runs the query and returns every row. An empty result is a non-nil
// empty slice.
func (b *QueryBuilder[T]) All(ctx context.Context) ([]T, error) {
	stmt, err := b.Build()
	if err != nil {
		return nil, err
	}

	rows, err := b.client.run(ctx, b.collection, stmt)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(rows))
	for i, row := range rows {
		v, err := b.decode(row)
		if err != nil {
			return nil, fmt.Errorf("decode %s row %d: %w", b.collection, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// First runs the query and returns its first row. The bool is false when
// the query matched nothing. The query's own limit is left as is.
func (b *QueryBuilder[T]) First(ctx context.Context) (T, bool, error) {
	var zero T
	rows, err := b.All(ctx)
	if err != nil {
		return zero, false, err
	}
	if len(rows) == 0 {
		return zero, false, nil
	}
	return rows[0], true, nil
}

// Count returns the number of rows matching the conditions. Projection,
// ordering and pagination are ignored.
func (b *QueryBuilder[T]) Count(ctx context.Context) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}

	stmt, err := b.client.compiler.Compile(queryir.Count{From: b.params.From, Filter: b.params.Filter})
	if err != nil {
		return 0, err
	}

	rows, err := b.client.run(ctx, b.collection, stmt)
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 {
		return 0, fmt.Errorf("count %s: expected one row, got %d", b.collection, len(rows))
	}
	n, ok := rows[0]["count"].(int64)
	if !ok {
		return 0, fmt.Errorf("count %s: unexpected value %T", b.collection, rows[0]["count"])
	}
	return n, nil
}

func decodeRow[T any](row store.Row) (T, error) {
	var v T
	data, err := json.Marshal(row)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}
