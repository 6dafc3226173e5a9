package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/contentq/internal/ir"
	"github.com/roach88/contentq/internal/querysql"
)

// ErrCollectionNotFound is returned when no import was recorded for a collection.
var ErrCollectionNotFound = errors.New("collection not found")

// ColumnType is the declared SQLite type of a collection column.
type ColumnType string

const (
	TypeText    ColumnType = "TEXT"
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeBoolean ColumnType = "BOOLEAN"
	TypeJSON    ColumnType = "JSON"
)

// ParseColumnType accepts a type name in any case.
func ParseColumnType(s string) (ColumnType, error) {
	switch t := ColumnType(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypeText, TypeInteger, TypeReal, TypeBoolean, TypeJSON:
		return t, nil
	default:
		return "", fmt.Errorf("unknown column type %q", s)
	}
}

// Column describes one column of a collection table.
type Column struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// Collection is a full set of rows to import for one collection.
type Collection struct {
	Name     string
	Table    string
	Columns  []Column
	Rows     []ir.IRObject
	Checksum string
}

// Info is the bookkeeping recorded by the last import of a collection.
type Info struct {
	Collection string
	Table      string
	Checksum   string
	Columns    []Column
	RowCount   int64
}

// Info returns the recorded import of a collection, or ErrCollectionNotFound.
func (s *Store) Info(ctx context.Context, collection string) (Info, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT collection, table_name, checksum, columns, row_count
		FROM _content_info
		WHERE collection = ?
	`, collection)

	info, err := scanInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if err != nil {
		return Info{}, fmt.Errorf("read info %s: %w", collection, err)
	}
	return info, nil
}

// StoredChecksum returns the checksum recorded for a collection.
// The bool is false when the collection was never imported.
func (s *Store) StoredChecksum(ctx context.Context, collection string) (string, bool, error) {
	info, err := s.Info(ctx, collection)
	if errors.Is(err, ErrCollectionNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return info.Checksum, true, nil
}

// Collections lists every recorded import, ordered by collection name.
func (s *Store) Collections(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, table_name, checksum, columns, row_count
		FROM _content_info
		ORDER BY collection ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return infos, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(sc scanner) (Info, error) {
	var info Info
	var columnsJSON string
	if err := sc.Scan(&info.Collection, &info.Table, &info.Checksum, &columnsJSON, &info.RowCount); err != nil {
		return Info{}, err
	}
	if err := json.Unmarshal([]byte(columnsJSON), &info.Columns); err != nil {
		return Info{}, fmt.Errorf("decode columns: %w", err)
	}
	return info, nil
}

// ReplaceCollection drops and recreates the collection's table, inserts all
// rows and records the checksum, in one transaction. On error nothing changes.
func (s *Store) ReplaceCollection(ctx context.Context, c Collection) (err error) {
	if err := validateCollection(c); err != nil {
		return fmt.Errorf("replace collection %s: %w", c.Name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace collection %s: begin: %w", c.Name, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	table := querysql.QuoteIdent(c.Table)
	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("replace collection %s: drop: %w", c.Name, err)
	}
	if _, err = tx.ExecContext(ctx, createTableSQL(table, c.Columns)); err != nil {
		return fmt.Errorf("replace collection %s: create: %w", c.Name, err)
	}

	insert, err := tx.PrepareContext(ctx, insertSQL(table, c.Columns))
	if err != nil {
		return fmt.Errorf("replace collection %s: prepare: %w", c.Name, err)
	}
	defer insert.Close()

	for i, row := range c.Rows {
		args, encErr := encodeRow(c.Columns, row)
		if encErr != nil {
			err = fmt.Errorf("replace collection %s: row %d: %w", c.Name, i, encErr)
			return err
		}
		if _, err = insert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("replace collection %s: insert row %d: %w", c.Name, i, err)
		}
	}

	columnsJSON, err := json.Marshal(c.Columns)
	if err != nil {
		return fmt.Errorf("replace collection %s: encode columns: %w", c.Name, err)
	}

	// A table previously recorded under another collection name is now gone.
	if _, err = tx.ExecContext(ctx,
		"DELETE FROM _content_info WHERE table_name = ? AND collection != ?",
		c.Table, c.Name,
	); err != nil {
		return fmt.Errorf("replace collection %s: record: %w", c.Name, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO _content_info (collection, table_name, checksum, columns, row_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection) DO UPDATE SET
			table_name = excluded.table_name,
			checksum = excluded.checksum,
			columns = excluded.columns,
			row_count = excluded.row_count
	`, c.Name, c.Table, c.Checksum, string(columnsJSON), len(c.Rows))
	if err != nil {
		return fmt.Errorf("replace collection %s: record: %w", c.Name, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("replace collection %s: commit: %w", c.Name, err)
	}
	return nil
}

func validateCollection(c Collection) error {
	if c.Name == "" {
		return errors.New("missing collection name")
	}
	if c.Table == "" {
		return errors.New("missing table name")
	}
	lower := strings.ToLower(c.Table)
	if lower == "_content_info" || strings.HasPrefix(lower, "sqlite_") {
		return fmt.Errorf("reserved table name %q", c.Table)
	}
	if c.Checksum == "" {
		return errors.New("missing checksum")
	}
	if len(c.Columns) == 0 {
		return errors.New("no columns")
	}

	seen := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		if col.Name == "" {
			return errors.New("empty column name")
		}
		if seen[col.Name] {
			return fmt.Errorf("duplicate column %q", col.Name)
		}
		seen[col.Name] = true
		if _, err := ParseColumnType(string(col.Type)); err != nil {
			return fmt.Errorf("column %q: %w", col.Name, err)
		}
	}
	return nil
}

func createTableSQL(table string, columns []Column) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = querysql.QuoteIdent(col.Name) + " " + string(col.Type)
	}
	return "CREATE TABLE " + table + " (" + strings.Join(defs, ", ") + ")"
}

func insertSQL(table string, columns []Column) string {
	names := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		names[i] = querysql.QuoteIdent(col.Name)
		placeholders[i] = "?"
	}
	return "INSERT INTO " + table + " (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
}

// encodeRow converts a row to insert arguments in column order.
// Missing cells become NULL; cells without a column are rejected.
func encodeRow(columns []Column, row ir.IRObject) ([]any, error) {
	known := make(map[string]bool, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		known[col.Name] = true
		v, err := encodeCell(col, row[col.Name])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		args[i] = v
	}
	for _, key := range row.SortedKeys() {
		if !known[key] {
			return nil, fmt.Errorf("unknown column %q", key)
		}
	}
	return args, nil
}

func encodeCell(col Column, v ir.IRValue) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := v.(ir.IRNull); ok {
		return nil, nil
	}

	switch col.Type {
	case TypeJSON:
		data, err := ir.MarshalCanonical(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case TypeText:
		if s, ok := v.(ir.IRString); ok {
			return string(s), nil
		}
	case TypeInteger:
		switch n := v.(type) {
		case ir.IRInt:
			return int64(n), nil
		case ir.IRFloat:
			if f := float64(n); f == math.Trunc(f) && math.Abs(f) < 1<<63 {
				return int64(f), nil
			}
		}
	case TypeReal:
		switch n := v.(type) {
		case ir.IRFloat:
			return float64(n), nil
		case ir.IRInt:
			return float64(n), nil
		}
	case TypeBoolean:
		if b, ok := v.(ir.IRBool); ok {
			return bool(b), nil
		}
	}
	return nil, fmt.Errorf("%T does not fit a %s column", v, col.Type)
}
