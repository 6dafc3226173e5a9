package testutil

import (
	"context"
	"sync"

	"github.com/roach88/contentq/internal/store"
)

// ExecCall records one query passed to a FakeExecutor.
type ExecCall struct {
	Query string
	Args  []any
}

// FakeExecutor returns canned rows and records every query it receives.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeExecutor struct {
	Rows []store.Row
	Err  error

	mu    sync.Mutex
	calls []ExecCall
}

// NewFakeExecutor creates an executor returning rows.
func NewFakeExecutor(rows ...store.Row) *FakeExecutor {
	return &FakeExecutor{Rows: rows}
}

// All implements the executor interface.
func (e *FakeExecutor) All(ctx context.Context, query string, args ...any) ([]store.Row, error) {
	e.mu.Lock()
	e.calls = append(e.calls, ExecCall{Query: query, Args: args})
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.Err != nil {
		return nil, e.Err
	}
	rows := make([]store.Row, len(e.Rows))
	copy(rows, e.Rows)
	return rows, nil
}

// Calls returns the recorded queries in order.
func (e *FakeExecutor) Calls() []ExecCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ExecCall, len(e.calls))
	copy(out, e.calls)
	return out
}

// LastCall returns the most recent query, or false if none ran.
func (e *FakeExecutor) LastCall() (ExecCall, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.calls) == 0 {
		return ExecCall{}, false
	}
	return e.calls[len(e.calls)-1], true
}
