package integrity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentq/internal/logging"
	"github.com/roach88/contentq/internal/manifest"
	"github.com/roach88/contentq/internal/metrics"
	"github.com/roach88/contentq/internal/querysql"
	"github.com/roach88/contentq/internal/store"
	fake "github.com/roach88/contentq/internal/testutil"
)

var stmt = querysql.Statement{SQL: `SELECT * FROM docs_table ORDER BY "stem" ASC`}

func testManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.New(map[string]manifest.Entry{
		"docs": {Table: "docs_table", Checksum: "sum-docs"},
		"a":    {Table: "a_table", Checksum: "sum-a"},
		"b":    {Table: "b_table", Checksum: "sum-b"},
	})
	require.NoError(t, err)
	return m
}

func newGate(t *testing.T, v Verifier, opts ...Option) *Gate {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return New(v, testManifest(t), opts...)
}

func requestCtx() context.Context {
	return WithRequest(context.Background(), "req-1")
}

func TestExecute_VerifiesOnceInServerContext(t *testing.T) {
	v := fake.NewFakeVerifier()
	exec := fake.NewFakeExecutor(store.Row{"stem": "intro"})
	g := newGate(t, v)

	rows, err := g.Execute(requestCtx(), "docs", stmt, exec)
	require.NoError(t, err)
	assert.Equal(t, []store.Row{{"stem": "intro"}}, rows)

	_, err = g.Execute(requestCtx(), "docs", stmt, exec)
	require.NoError(t, err)

	assert.Equal(t, 1, v.Calls("docs"))
	assert.Equal(t, "sum-docs", v.ExpectedChecksum("docs"))
	assert.Equal(t, StatusValid, g.Status("docs"))
	assert.Len(t, exec.Calls(), 2)
}

func TestExecute_PassesStatementThrough(t *testing.T) {
	exec := fake.NewFakeExecutor()
	g := newGate(t, fake.NewFakeVerifier())

	s := querysql.Statement{SQL: `SELECT * FROM docs_table WHERE ("draft" = ?)`, Args: []any{false}}
	_, err := g.Execute(requestCtx(), "docs", s, exec)
	require.NoError(t, err)

	last, ok := exec.LastCall()
	require.True(t, ok)
	assert.Equal(t, s.SQL, last.Query)
	assert.Equal(t, []any{false}, last.Args)
}

func TestExecute_SkipsVerificationOutsideServerContext(t *testing.T) {
	t.Run("no request handle", func(t *testing.T) {
		v := fake.NewFakeVerifier()
		g := newGate(t, v)

		_, err := g.Execute(context.Background(), "docs", stmt, fake.NewFakeExecutor())
		require.NoError(t, err)
		assert.Equal(t, 0, v.Calls("docs"))
		assert.Equal(t, StatusUnchecked, g.Status("docs"))
	})

	t.Run("server mode disabled", func(t *testing.T) {
		v := fake.NewFakeVerifier()
		g := newGate(t, v, WithServerMode(false))

		_, err := g.Execute(requestCtx(), "docs", stmt, fake.NewFakeExecutor())
		require.NoError(t, err)
		assert.Equal(t, 0, v.Calls("docs"))
	})
}

func TestExecute_ConcurrentFirstRequestsShareOneVerification(t *testing.T) {
	v := fake.NewFakeVerifier()
	v.Block = make(chan struct{})
	v.Started = make(chan string, 10)
	exec := fake.NewFakeExecutor(store.Row{"stem": "intro"})
	g := newGate(t, v)

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Execute(requestCtx(), "docs", stmt, exec)
			errs <- err
		}()
	}

	assert.Equal(t, "docs", <-v.Started)
	// Nobody runs a query before the verification finishes.
	assert.Empty(t, exec.Calls())

	close(v.Block)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, v.Calls("docs"))
	assert.Len(t, exec.Calls(), callers)
	assert.Equal(t, StatusValid, g.Status("docs"))
}

func TestExecute_CollectionsVerifyIndependently(t *testing.T) {
	v := fake.NewFakeVerifier()
	v.Block = make(chan struct{})
	v.Started = make(chan string, 4)
	g := newGate(t, v)

	var wg sync.WaitGroup
	for _, c := range []string{"a", "b", "a", "b"} {
		wg.Add(1)
		go func(collection string) {
			defer wg.Done()
			_, err := g.Execute(requestCtx(), collection, stmt, fake.NewFakeExecutor())
			assert.NoError(t, err)
		}(c)
	}

	// Both verifications are in flight at the same time.
	started := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case c := <-v.Started:
			started[c] = true
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for verifications to start")
		}
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true}, started)

	close(v.Block)
	wg.Wait()

	assert.Equal(t, 1, v.Calls("a"))
	assert.Equal(t, 1, v.Calls("b"))
}

func TestExecute_InvalidIsCachedAndQueryStillRuns(t *testing.T) {
	v := fake.NewFakeVerifier()
	v.SetResult("docs", false, nil)
	exec := fake.NewFakeExecutor(store.Row{"stem": "stale"})
	g := newGate(t, v)

	rows, err := g.Execute(requestCtx(), "docs", stmt, exec)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, StatusInvalid, g.Status("docs"))

	_, err = g.Execute(requestCtx(), "docs", stmt, exec)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Calls("docs"))
}

func TestExecute_VerifierErrorIsAbsorbedAndLogged(t *testing.T) {
	var buf bytes.Buffer
	v := fake.NewFakeVerifier()
	v.SetResult("docs", false, errors.New("dump missing"))
	g := New(v, testManifest(t),
		WithLogger(logging.New(&buf, "debug", "json")),
		WithIDGenerator(fake.NewFixedIDGenerator("verif-1")),
	)

	_, err := g.Execute(requestCtx(), "docs", stmt, fake.NewFakeExecutor())
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, g.Status("docs"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "collection verification failed", entry["msg"])
	assert.Equal(t, "docs", entry["collection"])
	assert.Equal(t, "verif-1", entry["verification_id"])
	assert.Equal(t, "dump missing", entry["error"])
}

func TestExecute_FalseResultLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	v := fake.NewFakeVerifier()
	v.SetResult("docs", false, nil)
	g := New(v, testManifest(t), WithLogger(logging.New(&buf, "info", "json")))

	_, err := g.Execute(requestCtx(), "docs", stmt, fake.NewFakeExecutor())
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.NotEmpty(t, entry["verification_id"])
}

func TestExecute_RetryOnFailure(t *testing.T) {
	v := fake.NewFakeVerifier()
	v.SetResult("docs", false, errors.New("transient"))
	g := newGate(t, v, WithRetryOnFailure(true))

	_, err := g.Execute(requestCtx(), "docs", stmt, fake.NewFakeExecutor())
	require.NoError(t, err)
	assert.Equal(t, StatusUnchecked, g.Status("docs"))

	v.SetResult("docs", true, nil)
	_, err = g.Execute(requestCtx(), "docs", stmt, fake.NewFakeExecutor())
	require.NoError(t, err)

	assert.Equal(t, 2, v.Calls("docs"))
	assert.Equal(t, StatusValid, g.Status("docs"))
}

func TestExecute_EachVerificationGetsItsOwnID(t *testing.T) {
	var buf bytes.Buffer
	v := fake.NewFakeVerifier()
	v.SetResult("docs", false, nil)
	g := New(v, testManifest(t),
		WithLogger(logging.New(&buf, "debug", "json")),
		WithIDGenerator(fake.NewSequentialIDGenerator("v")),
		WithRetryOnFailure(true),
	)

	_, err := g.Execute(requestCtx(), "docs", stmt, fake.NewFakeExecutor())
	require.NoError(t, err)
	v.SetResult("docs", true, nil)
	_, err = g.Execute(requestCtx(), "docs", stmt, fake.NewFakeExecutor())
	require.NoError(t, err)

	var ids []any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		ids = append(ids, entry["verification_id"])
	}
	assert.Equal(t, []any{"v-1", "v-2"}, ids)
}

func TestExecute_WaiterCancellation(t *testing.T) {
	v := fake.NewFakeVerifier()
	v.Block = make(chan struct{})
	v.Started = make(chan string, 1)
	exec := fake.NewFakeExecutor()
	g := newGate(t, v)

	// The caller that started the verification gives up.
	ctx, cancel := context.WithCancel(requestCtx())
	done := make(chan error, 1)
	go func() {
		_, err := g.Execute(ctx, "docs", stmt, exec)
		done <- err
	}()

	<-v.Started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Empty(t, exec.Calls())

	// The shared verification is not aborted.
	close(v.Block)
	require.Eventually(t, func() bool {
		return g.Status("docs") == StatusValid
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, v.Calls("docs"))
}

func TestExecute_ExecutionErrorWrapped(t *testing.T) {
	boom := errors.New("no such table: docs_table")
	exec := fake.NewFakeExecutor()
	exec.Err = boom
	g := newGate(t, fake.NewFakeVerifier())

	_, err := g.Execute(requestCtx(), "docs", stmt, exec)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "execute docs: no such table: docs_table", err.Error())
}

func TestExecute_MissingChecksum(t *testing.T) {
	v := fake.NewFakeVerifier()
	g := newGate(t, v)

	_, err := g.Execute(requestCtx(), "unknown", stmt, fake.NewFakeExecutor())
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, g.Status("unknown"))
	assert.Equal(t, 0, v.Calls("unknown"))
}

type panicVerifier struct{}

func (panicVerifier) Verify(context.Context, string, string) (bool, error) {
	panic("verifier exploded")
}

func TestExecute_VerifierPanicMarksInvalid(t *testing.T) {
	g := newGate(t, panicVerifier{})

	_, err := g.Execute(requestCtx(), "docs", stmt, fake.NewFakeExecutor())
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, g.Status("docs"))
}

func TestVerify_ForcesReverification(t *testing.T) {
	v := fake.NewFakeVerifier()
	g := newGate(t, v)

	status, err := g.Verify(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, StatusValid, status)

	v.SetResult("docs", false, nil)
	status, err = g.Verify(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, status)
	assert.Equal(t, 2, v.Calls("docs"))
}

func TestSnapshot(t *testing.T) {
	v := fake.NewFakeVerifier()
	v.SetResult("b", false, nil)
	g := newGate(t, v)

	_, _ = g.Verify(context.Background(), "a")
	_, _ = g.Verify(context.Background(), "b")

	snap := g.Snapshot()
	assert.Equal(t, map[string]Status{"a": StatusValid, "b": StatusInvalid}, snap)

	snap["a"] = StatusInvalid
	assert.Equal(t, StatusValid, g.Status("a"))
}

func TestMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	v := fake.NewFakeVerifier()
	v.SetResult("b", false, errors.New("boom"))
	g := newGate(t, v, WithMetrics(m))

	_, err := g.Execute(requestCtx(), "a", stmt, fake.NewFakeExecutor())
	require.NoError(t, err)
	_, err = g.Execute(requestCtx(), "b", stmt, fake.NewFakeExecutor())
	require.NoError(t, err)

	failing := fake.NewFakeExecutor()
	failing.Err = errors.New("boom")
	_, _ = g.Execute(requestCtx(), "a", stmt, failing)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verifications.WithLabelValues("a", metrics.OutcomeValid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verifications.WithLabelValues("b", metrics.OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Queries.WithLabelValues("a", metrics.StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Queries.WithLabelValues("a", metrics.StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Queries.WithLabelValues("b", metrics.StatusOK)))
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "unchecked", StatusUnchecked.String())
	assert.Equal(t, "valid", StatusValid.String())
	assert.Equal(t, "invalid", StatusInvalid.String())
	assert.Equal(t, "unknown", Status(42).String())
	assert.False(t, StatusUnchecked.Checked())
	assert.True(t, StatusInvalid.Checked())
}

func TestRequestFrom(t *testing.T) {
	_, ok := RequestFrom(context.Background())
	assert.False(t, ok)

	handle, ok := RequestFrom(WithRequest(context.Background(), 7))
	assert.True(t, ok)
	assert.Equal(t, 7, handle)

	_, ok = RequestFrom(WithRequest(context.Background(), nil))
	assert.False(t, ok)
}

func TestLoggerDefault(t *testing.T) {
	g := New(fake.NewFakeVerifier(), testManifest(t))
	assert.Same(t, slog.Default(), g.logger)
}
