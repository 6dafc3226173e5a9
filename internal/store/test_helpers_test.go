package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"slices"
	"testing"

	"github.com/roach88/contentq/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var docsColumns = []Column{
	{Name: "stem", Type: TypeText},
	{Name: "path", Type: TypeText},
	{Name: "title", Type: TypeText},
	{Name: "weight", Type: TypeInteger},
	{Name: "draft", Type: TypeBoolean},
	{Name: "meta", Type: TypeJSON},
}

// createTestDoc creates a docs row with minimal required fields.
func createTestDoc(stem, title string, weight int64, draft bool) ir.IRObject {
	return ir.IRObject{
		"stem":   ir.IRString(stem),
		"path":   ir.IRString("/" + stem),
		"title":  ir.IRString(title),
		"weight": ir.IRInt(weight),
		"draft":  ir.IRBool(draft),
		"meta":   ir.IRObject{"tags": ir.IRArray{ir.IRString("go")}},
	}
}

// importDocs replaces the docs collection with rows.
func importDocs(t *testing.T, s *Store, checksum string, rows ...ir.IRObject) {
	t.Helper()
	err := s.ReplaceCollection(context.Background(), Collection{
		Name:     "docs",
		Table:    "docs_table",
		Columns:  docsColumns,
		Rows:     rows,
		Checksum: checksum,
	})
	if err != nil {
		t.Fatalf("ReplaceCollection() failed: %v", err)
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var names []string
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		t.Fatalf("failed to list tables: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan table name: %v", err)
		}
		names = append(names, name)
	}
	return slices.Contains(names, table)
}
