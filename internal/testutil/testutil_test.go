package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentq/internal/store"
)

func TestFakeVerifier_DefaultsToValid(t *testing.T) {
	v := NewFakeVerifier()

	ok, err := v.Verify(context.Background(), "docs", "sum")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v.Calls("docs"))
	assert.Equal(t, "sum", v.ExpectedChecksum("docs"))
}

func TestFakeVerifier_ScriptedResults(t *testing.T) {
	v := NewFakeVerifier()
	boom := errors.New("boom")
	v.SetResult("bad", false, nil)
	v.SetResult("broken", false, boom)

	ok, err := v.Verify(context.Background(), "bad", "")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = v.Verify(context.Background(), "broken", "")
	assert.ErrorIs(t, err, boom)
}

func TestFakeVerifier_Block(t *testing.T) {
	v := NewFakeVerifier()
	v.Block = make(chan struct{})
	v.Started = make(chan string, 1)

	done := make(chan bool)
	go func() {
		ok, _ := v.Verify(context.Background(), "docs", "")
		done <- ok
	}()

	assert.Equal(t, "docs", <-v.Started)
	close(v.Block)
	assert.True(t, <-done)
}

func TestFakeExecutor_RecordsCalls(t *testing.T) {
	e := NewFakeExecutor(store.Row{"stem": "a"})

	rows, err := e.All(context.Background(), "SELECT 1", int64(1))
	require.NoError(t, err)
	assert.Equal(t, []store.Row{{"stem": "a"}}, rows)

	last, ok := e.LastCall()
	require.True(t, ok)
	assert.Equal(t, ExecCall{Query: "SELECT 1", Args: []any{int64(1)}}, last)
	assert.Len(t, e.Calls(), 1)
}

func TestFakeExecutor_Error(t *testing.T) {
	e := NewFakeExecutor()
	e.Err = errors.New("no such table")

	_, err := e.All(context.Background(), "SELECT 1")
	assert.EqualError(t, err, "no such table")

	_, ok := NewFakeExecutor().LastCall()
	assert.False(t, ok)
}

func TestFixedIDGenerator(t *testing.T) {
	assert.Equal(t, "test-verification", NewFixedIDGenerator("").Generate())
	g := NewFixedIDGenerator("abc")
	assert.Equal(t, "abc", g.Generate())
	assert.Equal(t, "abc", g.Generate())
}

func TestSequentialIDGenerator_ConcurrentUnique(t *testing.T) {
	g := NewSequentialIDGenerator("v")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)

	g.Reset()
	assert.Equal(t, "v-1", g.Generate())
}
