// Package dump reads collection dumps: the full column layout and rows of a
// collection as produced by the content build. Dumps are the source used to
// re-import a collection whose stored rows no longer match the manifest.
//
// A dump is a YAML or JSON document, optionally gzip-compressed:
//
//	collection: docs
//	columns:
//	  - {name: stem, type: text}
//	  - {name: title, type: text}
//	rows:
//	  - {stem: intro, title: Introduction}
package dump

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/contentq/internal/ir"
	"github.com/roach88/contentq/internal/store"
)

// ErrNotFound is returned when no dump file exists for a collection.
var ErrNotFound = errors.New("dump not found")

// StemColumn is required in every dump; rows are ordered by it by default.
const StemColumn = "stem"

// Dump is the complete content of one collection.
type Dump struct {
	Collection string
	Columns    []store.Column
	Rows       []ir.IRObject
}

// Source loads dumps by collection name.
type Source interface {
	Load(ctx context.Context, collection string) (Dump, error)
}

// Checksum hashes the dump's column layout and rows, taking rows in stem
// order. Row order in the file and null cells do not affect the result.
func (d Dump) Checksum() (string, error) {
	fields := make(ir.IRArray, len(d.Columns))
	for i, col := range d.Columns {
		fields[i] = ir.IRObject{
			"name": ir.IRString(col.Name),
			"type": ir.IRString(col.Type),
		}
	}

	rows := slices.Clone(d.Rows)
	slices.SortStableFunc(rows, func(a, b ir.IRObject) int {
		return strings.Compare(stemOf(a), stemOf(b))
	})
	return ir.CollectionChecksum(fields, rows)
}

func stemOf(row ir.IRObject) string {
	s, _ := row[StemColumn].(ir.IRString)
	return string(s)
}

// Validate checks the dump is importable: a stem column of type TEXT and a
// unique, non-empty stem on every row.
func (d Dump) Validate() error {
	if d.Collection == "" {
		return errors.New("missing collection name")
	}

	hasStem := false
	for _, col := range d.Columns {
		if col.Name == StemColumn {
			if col.Type != store.TypeText {
				return fmt.Errorf("column %q must be %s, got %s", StemColumn, store.TypeText, col.Type)
			}
			hasStem = true
		}
	}
	if !hasStem {
		return fmt.Errorf("missing %q column", StemColumn)
	}

	seen := make(map[string]int, len(d.Rows))
	for i, row := range d.Rows {
		stem, ok := row[StemColumn].(ir.IRString)
		if !ok || stem == "" {
			return fmt.Errorf("row %d: missing %s", i, StemColumn)
		}
		if prev, dup := seen[string(stem)]; dup {
			return fmt.Errorf("row %d: duplicate %s %q (first at row %d)", i, StemColumn, stem, prev)
		}
		seen[string(stem)] = i
	}
	return nil
}

type document struct {
	Collection string           `yaml:"collection"`
	Columns    []columnDoc      `yaml:"columns"`
	Rows       []map[string]any `yaml:"rows"`
}

type columnDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Decode reads a YAML or JSON dump. Unknown top-level fields are rejected.
func Decode(r io.Reader) (Dump, error) {
	var doc document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return Dump{}, fmt.Errorf("failed to parse dump: %w", err)
	}

	d := Dump{
		Collection: doc.Collection,
		Columns:    make([]store.Column, len(doc.Columns)),
		Rows:       make([]ir.IRObject, len(doc.Rows)),
	}

	for i, col := range doc.Columns {
		typ, err := store.ParseColumnType(col.Type)
		if err != nil {
			return Dump{}, fmt.Errorf("column %q: %w", col.Name, err)
		}
		d.Columns[i] = store.Column{Name: col.Name, Type: typ}
	}

	for i, raw := range doc.Rows {
		v, err := ir.FromGo(raw)
		if err != nil {
			return Dump{}, fmt.Errorf("row %d: %w", i, err)
		}
		obj, ok := v.(ir.IRObject)
		if !ok {
			return Dump{}, fmt.Errorf("row %d: expected object, got %T", i, v)
		}
		d.Rows[i] = obj
	}

	return d, nil
}

// ReadFile reads a dump file, decompressing it when the name ends in .gz.
func ReadFile(path string) (Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dump{}, fmt.Errorf("failed to read dump: %w", err)
	}

	var r io.Reader = bytes.NewReader(data)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return Dump{}, fmt.Errorf("dump %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	d, err := Decode(r)
	if err != nil {
		return Dump{}, fmt.Errorf("dump %s: %w", path, err)
	}
	return d, nil
}

// extensions are tried in order when looking up a collection's dump.
var extensions = []string{".yaml", ".yml", ".json", ".yaml.gz", ".yml.gz", ".json.gz"}

// Dir is a Source reading <dir>/<collection>.<ext>.
type Dir struct {
	path string
}

// NewDir returns a Source over a directory of dump files.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the dump file for a collection, or ErrNotFound.
func (d *Dir) Path(collection string) (string, error) {
	if collection == "" || strings.ContainsAny(collection, `/\`) || collection == "." || collection == ".." {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}
	for _, ext := range extensions {
		path := filepath.Join(d.path, collection+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrNotFound, collection, d.path)
}

// Load reads and validates the dump for collection. A dump that names a
// different collection is rejected.
func (d *Dir) Load(ctx context.Context, collection string) (Dump, error) {
	if err := ctx.Err(); err != nil {
		return Dump{}, err
	}

	path, err := d.Path(collection)
	if err != nil {
		return Dump{}, err
	}

	dump, err := ReadFile(path)
	if err != nil {
		return Dump{}, err
	}
	if dump.Collection != collection {
		return Dump{}, fmt.Errorf("dump %s: collection %q does not match %q", path, dump.Collection, collection)
	}
	if err := dump.Validate(); err != nil {
		return Dump{}, fmt.Errorf("dump %s: %w", path, err)
	}
	return dump, nil
}
