// Package content is the query API over the content store.
//
// A Client hands out QueryBuilders for named collections:
//
//	docs, err := client.Query("docs").
//		Where("draft", "=", false).
//		Order("date", queryir.Desc).
//		Limit(10).
//		All(ctx)
//
// Builders accumulate predicates, projection, ordering and pagination and
// render them to parameterized SQL. Queries run through the integrity gate,
// which verifies a collection once before its first query in a server
// context.
//
// The first invalid call records an error; later calls are no-ops and every
// terminal operation returns that error.
package content

import (
	"context"

	"github.com/roach88/contentq/internal/integrity"
	"github.com/roach88/contentq/internal/querysql"
	"github.com/roach88/contentq/internal/store"
)

// TableSource resolves a collection's storage table. *manifest.Manifest
// implements it.
type TableSource interface {
	Table(collection string) (string, bool)
}

// Gate runs a rendered statement for a collection. *integrity.Gate
// implements it.
type Gate interface {
	Execute(ctx context.Context, collection string, stmt querysql.Statement, exec integrity.Executor) ([]store.Row, error)
}

// Client builds and runs collection queries.
type Client struct {
	tables   TableSource
	gate     Gate
	exec     integrity.Executor
	compiler *querysql.SQLCompiler
}

// NewClient creates a Client. exec is typically the *store.Store.
func NewClient(tables TableSource, gate Gate, exec integrity.Executor) *Client {
	return &Client{
		tables:   tables,
		gate:     gate,
		exec:     exec,
		compiler: querysql.NewSQLCompiler(),
	}
}

// Query starts a query returning raw rows.
func (c *Client) Query(collection string) *QueryBuilder[store.Row] {
	return newBuilder(c, collection, func(row store.Row) (store.Row, error) {
		return row, nil
	})
}

// QueryAs starts a query whose rows are decoded into T through their JSON
// field tags.
func QueryAs[T any](c *Client, collection string) *QueryBuilder[T] {
	return newBuilder(c, collection, decodeRow[T])
}

func (c *Client) run(ctx context.Context, collection string, stmt querysql.Statement) ([]store.Row, error) {
	return c.gate.Execute(ctx, collection, stmt, c.exec)
}
