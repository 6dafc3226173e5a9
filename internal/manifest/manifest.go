// Package manifest maps collection names to their storage table and the
// checksum their rows are expected to have.
//
// A manifest is produced by the content build and is read-only at runtime:
//
//	collections:
//	  docs:
//	    table: docs_table
//	    checksum: 5f2c...
//
// YAML, JSON and CUE encodings are accepted.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Entry is one collection's manifest record.
type Entry struct {
	Table    string `yaml:"table" json:"table"`
	Checksum string `yaml:"checksum" json:"checksum"`
}

// Manifest is an immutable collection index.
type Manifest struct {
	entries map[string]Entry
}

type file struct {
	Collections map[string]Entry `yaml:"collections"`
}

// New builds a manifest from entries. The map is copied.
func New(entries map[string]Entry) (*Manifest, error) {
	m := &Manifest{entries: make(map[string]Entry, len(entries))}
	for name, e := range entries {
		m.entries[name] = e
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads a manifest file, choosing the decoder by extension:
// .yaml, .yml and .json use YAML; .cue uses CUE.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m *Manifest
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		m, err = ParseYAML(data)
	case ".cue":
		m, err = ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseYAML decodes a YAML (or JSON) manifest. Unknown fields are rejected.
func ParseYAML(data []byte) (*Manifest, error) {
	var f file
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return New(f.Collections)
}

// ParseCUE evaluates a CUE manifest. filename is used in error positions.
func ParseCUE(data []byte, filename string) (*Manifest, error) {
	value := cuecontext.New().CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	entries := make(map[string]Entry)
	collections := value.LookupPath(cue.ParsePath("collections"))
	if !collections.Exists() {
		return New(entries)
	}

	iter, err := collections.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating collections: %w", err)
	}
	for iter.Next() {
		var e Entry
		if err := iter.Value().Decode(&e); err != nil {
			return nil, fmt.Errorf("collection %q: %w", iter.Selector().Unquoted(), err)
		}
		entries[iter.Selector().Unquoted()] = e
	}
	return New(entries)
}

func (m *Manifest) validate() error {
	var errs []error
	for _, name := range m.Collections() {
		e := m.entries[name]
		if e.Table == "" {
			errs = append(errs, fmt.Errorf("collection %q: missing table", name))
		}
		if e.Checksum == "" {
			errs = append(errs, fmt.Errorf("collection %q: missing checksum", name))
		}
	}
	return errors.Join(errs...)
}

// Lookup returns the entry for a collection.
func (m *Manifest) Lookup(collection string) (Entry, bool) {
	e, ok := m.entries[collection]
	return e, ok
}

// Table returns the storage table of a collection.
func (m *Manifest) Table(collection string) (string, bool) {
	e, ok := m.entries[collection]
	return e.Table, ok
}

// Checksum returns the expected checksum of a collection.
func (m *Manifest) Checksum(collection string) (string, bool) {
	e, ok := m.entries[collection]
	return e.Checksum, ok
}

// Collections returns the collection names in sorted order.
func (m *Manifest) Collections() []string {
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
