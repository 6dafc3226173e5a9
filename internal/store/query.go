package store

import (
	"context"
	"fmt"

	"github.com/roach88/contentq/internal/ir"
)

// Row is one result row: column name -> value.
type Row map[string]any

// All runs a read query and decodes every row.
// Returns an empty (non-nil) slice when nothing matches.
//
// Values are decoded by declared column type; see the package doc.
func (s *Store) All(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}

	result := []Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			v, err := decodeCell(col.DatabaseTypeName(), values[i])
			if err != nil {
				return nil, fmt.Errorf("decode column %q: %w", col.Name(), err)
			}
			row[col.Name()] = v
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

// decodeCell converts a scanned driver value for a column declared as decl.
// The sqlite3 driver already turns BOOLEAN integers into bool.
func decodeCell(decl string, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	s, ok := v.(string)
	if !ok || ColumnType(decl) != TypeJSON {
		return v, nil
	}

	val, err := ir.UnmarshalIRValue([]byte(s))
	if err != nil {
		return nil, err
	}
	return ir.ToGo(val), nil
}
