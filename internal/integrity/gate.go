package integrity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/contentq/internal/metrics"
	"github.com/roach88/contentq/internal/querysql"
	"github.com/roach88/contentq/internal/store"
)

// ErrNoChecksum is reported (and logged) when the manifest has no checksum
// for a collection being verified.
var ErrNoChecksum = errors.New("no expected checksum")

// Verifier checks, and if needed repairs, a collection's stored rows.
// *importer.Importer implements it.
type Verifier interface {
	Verify(ctx context.Context, collection, expectedChecksum string) (bool, error)
}

// ChecksumSource supplies expected checksums. *manifest.Manifest implements it.
type ChecksumSource interface {
	Checksum(collection string) (string, bool)
}

// Executor runs rendered queries. *store.Store implements it.
type Executor interface {
	All(ctx context.Context, query string, args ...any) ([]store.Row, error)
}

// IDGenerator produces verification ids for log correlation.
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// Gate runs queries, verifying each collection once first in a server context.
//
// Thread-safety: all methods are safe for concurrent use.
type Gate struct {
	verifier       Verifier
	checksums      ChecksumSource
	logger         *slog.Logger
	metrics        *metrics.Metrics
	ids            IDGenerator
	serverMode     bool
	retryOnFailure bool

	mu      sync.Mutex
	status  map[string]Status
	flights singleflight.Group
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics records verification outcomes and query latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithRetryOnFailure leaves failed collections Unchecked instead of Invalid.
func WithRetryOnFailure(retry bool) Option {
	return func(g *Gate) {
		g.retryOnFailure = retry
	}
}

// WithServerMode enables verification for requests. Enabled by default.
func WithServerMode(enabled bool) Option {
	return func(g *Gate) {
		g.serverMode = enabled
	}
}

// WithIDGenerator replaces the uuid verification id generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(g *Gate) {
		if ids != nil {
			g.ids = ids
		}
	}
}

// New creates a Gate. All collections start Unchecked.
func New(verifier Verifier, checksums ChecksumSource, opts ...Option) *Gate {
	g := &Gate{
		verifier:   verifier,
		checksums:  checksums,
		logger:     slog.Default(),
		ids:        uuidGenerator{},
		serverMode: true,
		status:     make(map[string]Status),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Execute runs stmt against exec on behalf of collection.
//
// In a server context an Unchecked collection is verified first; callers
// that arrive while a verification is running wait for it. If ctx is done
// while waiting, Execute returns ctx.Err() and the verification carries on
// for the other waiters. Verification failures never surface here.
// Execution errors are returned wrapped with the collection name.
func (g *Gate) Execute(ctx context.Context, collection string, stmt querysql.Statement, exec Executor) ([]store.Row, error) {
	if g.serverContext(ctx) && !g.Status(collection).Checked() {
		if _, err := g.await(ctx, collection, false); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	rows, err := exec.All(ctx, stmt.SQL, stmt.Args...)
	g.metrics.ObserveQuery(collection, err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", collection, err)
	}
	return rows, nil
}

// Verify verifies collection regardless of its cached status and returns
// the new status. It joins a verification already running for collection.
func (g *Gate) Verify(ctx context.Context, collection string) (Status, error) {
	return g.await(ctx, collection, true)
}

// Status returns the cached status of collection.
func (g *Gate) Status(collection string) Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status[collection]
}

// Snapshot returns a copy of every cached status.
func (g *Gate) Snapshot() map[string]Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return maps.Clone(g.status)
}

func (g *Gate) serverContext(ctx context.Context) bool {
	if !g.serverMode {
		return false
	}
	_, ok := RequestFrom(ctx)
	return ok
}

func (g *Gate) setStatus(collection string, s Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status[collection] = s
}

// await joins or starts the collection's verification and waits for it or
// for ctx, whichever comes first.
func (g *Gate) await(ctx context.Context, collection string, force bool) (Status, error) {
	verifyCtx := context.WithoutCancel(ctx)
	ch := g.flights.DoChan(collection, func() (any, error) {
		// Another flight may have finished between the caller's status
		// check and this one starting.
		if !force {
			if s := g.Status(collection); s.Checked() {
				return s, nil
			}
		}
		return g.verify(verifyCtx, collection), nil
	})

	select {
	case <-ctx.Done():
		return g.Status(collection), ctx.Err()
	case res := <-ch:
		return res.Val.(Status), nil
	}
}

// verify runs the verifier once and caches the outcome.
func (g *Gate) verify(ctx context.Context, collection string) Status {
	logger := g.logger.With("collection", collection, "verification_id", g.ids.Generate())

	valid, err := g.runVerifier(ctx, collection)

	var status Status
	switch {
	case err != nil:
		logger.Error("collection verification failed", "error", err)
		g.metrics.ObserveVerification(collection, metrics.OutcomeError)
		status = StatusInvalid
	case !valid:
		logger.Warn("collection failed integrity check")
		g.metrics.ObserveVerification(collection, metrics.OutcomeInvalid)
		status = StatusInvalid
	default:
		logger.Debug("collection verified")
		g.metrics.ObserveVerification(collection, metrics.OutcomeValid)
		status = StatusValid
	}

	if status == StatusInvalid && g.retryOnFailure {
		status = StatusUnchecked
	}
	g.setStatus(collection, status)
	return status
}

// runVerifier calls the verifier, turning a panic into an error.
func (g *Gate) runVerifier(ctx context.Context, collection string) (valid bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			valid, err = false, fmt.Errorf("verifier panic: %v", r)
		}
	}()

	expected, ok := g.checksums.Checksum(collection)
	if !ok {
		return false, ErrNoChecksum
	}
	return g.verifier.Verify(ctx, collection, expected)
}
