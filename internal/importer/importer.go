// Package importer reconciles stored collections with the manifest.
//
// Verify compares the checksum recorded by the last import with the one the
// manifest expects. When they differ it loads the collection's dump, checks
// the dump hashes to the expected checksum and imports it in one
// transaction. A dump that hashes to anything else is never imported.
package importer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/contentq/internal/dump"
	"github.com/roach88/contentq/internal/store"
)

// Store is the part of *store.Store the importer needs.
type Store interface {
	StoredChecksum(ctx context.Context, collection string) (string, bool, error)
	ReplaceCollection(ctx context.Context, c store.Collection) error
}

// TableSource resolves a collection's storage table.
// *manifest.Manifest implements it.
type TableSource interface {
	Table(collection string) (string, bool)
}

// Importer verifies collections and re-imports them from dumps.
type Importer struct {
	store  Store
	dumps  dump.Source
	tables TableSource
	logger *slog.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New creates an Importer.
func New(st Store, dumps dump.Source, tables TableSource, opts ...Option) *Importer {
	i := &Importer{
		store:  st,
		dumps:  dumps,
		tables: tables,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Verify makes the stored rows of collection match expectedChecksum.
//
// Returns true when the stored rows already matched or were re-imported,
// false when the dump does not hash to expectedChecksum. Errors are
// *Error values naming the failed stage.
func (i *Importer) Verify(ctx context.Context, collection, expectedChecksum string) (bool, error) {
	stored, ok, err := i.store.StoredChecksum(ctx, collection)
	if err != nil {
		return false, &Error{Stage: StageReadInfo, Collection: collection, Err: err}
	}
	if ok && stored == expectedChecksum {
		i.logger.Debug("collection up to date", "collection", collection)
		return true, nil
	}

	i.logger.Info("collection checksum mismatch, importing dump",
		"collection", collection,
		"stored", stored,
		"expected", expectedChecksum,
	)

	return i.Import(ctx, collection, expectedChecksum)
}

// Import loads the collection's dump and replaces the stored rows with it,
// whatever the stored checksum. Returns false, without touching the store,
// when the dump does not hash to expectedChecksum.
func (i *Importer) Import(ctx context.Context, collection, expectedChecksum string) (bool, error) {
	d, err := i.dumps.Load(ctx, collection)
	if err != nil {
		return false, &Error{Stage: StageLoadDump, Collection: collection, Err: err}
	}

	sum, err := d.Checksum()
	if err != nil {
		return false, &Error{Stage: StageChecksum, Collection: collection, Err: err}
	}
	if sum != expectedChecksum {
		i.logger.Warn("dump does not match expected checksum",
			"collection", collection,
			"dump", sum,
			"expected", expectedChecksum,
		)
		return false, nil
	}

	table, ok := i.tables.Table(collection)
	if !ok {
		return false, &Error{Stage: StageImport, Collection: collection, Err: errors.New("no table for collection")}
	}

	err = i.store.ReplaceCollection(ctx, store.Collection{
		Name:     collection,
		Table:    table,
		Columns:  d.Columns,
		Rows:     d.Rows,
		Checksum: sum,
	})
	if err != nil {
		return false, &Error{Stage: StageImport, Collection: collection, Err: err}
	}

	i.logger.Info("collection imported", "collection", collection, "rows", len(d.Rows))
	return true, nil
}
