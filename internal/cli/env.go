package cli

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/contentq/internal/config"
	"github.com/roach88/contentq/internal/content"
	"github.com/roach88/contentq/internal/dump"
	"github.com/roach88/contentq/internal/importer"
	"github.com/roach88/contentq/internal/integrity"
	"github.com/roach88/contentq/internal/logging"
	"github.com/roach88/contentq/internal/manifest"
	"github.com/roach88/contentq/internal/metrics"
	"github.com/roach88/contentq/internal/store"
)

// env is the wiring shared by commands: config, logger, store, manifest,
// importer, gate and client. Commands that only need part of it use the
// narrower loaders.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	manifest *manifest.Manifest
	importer *importer.Importer
	gate     *integrity.Gate
	client   *content.Client
}

func (e *env) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// loadConfig resolves the config file and environment, then applies flag
// overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.Manifest != "" {
		cfg.Manifest.Path = opts.Manifest
	}
	if opts.Dumps != "" {
		cfg.Dumps.Dir = opts.Dumps
	}
	return cfg, nil
}

func newLogger(opts *RootOptions, cfg *config.Config, w io.Writer) *slog.Logger {
	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	return logging.New(w, level, cfg.Log.Format)
}

func loadManifest(cfg *config.Config) (*manifest.Manifest, error) {
	m, err := manifest.Load(cfg.Manifest.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load manifest", err)
	}
	return m, nil
}

// openEnv builds the full wiring. Metrics register on reg; pass a fresh
// registry per invocation so repeated runs in one process do not collide.
func openEnv(opts *RootOptions, logw io.Writer, reg prometheus.Registerer) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(opts, cfg, logw)

	m, err := loadManifest(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	imp := importer.New(st, dump.NewDir(cfg.Dumps.Dir), m, importer.WithLogger(logger))
	gate := integrity.New(imp, m,
		integrity.WithLogger(logger),
		integrity.WithMetrics(metrics.New(reg)),
		integrity.WithServerMode(cfg.Integrity.ServerMode),
		integrity.WithRetryOnFailure(cfg.Integrity.RetryOnFailure),
	)

	logger.Debug("environment ready",
		"database", cfg.Database.Path,
		"manifest", cfg.Manifest.Path,
		"dumps", cfg.Dumps.Dir,
		"collections", len(m.Collections()),
	)

	return &env{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		manifest: m,
		importer: imp,
		gate:     gate,
		client:   content.NewClient(m, gate, st),
	}, nil
}
