package testutil

import (
	"context"
	"sync"
)

// VerifyResult is a scripted verifier outcome.
type VerifyResult struct {
	Valid bool
	Err   error
}

// FakeVerifier is a scripted integrity verifier for tests.
//
// Each collection returns Results[collection] (default: valid). When Block is
// set, every call waits until it is closed, so tests can pile up concurrent
// callers behind one verification. Started receives the collection name as
// each call begins.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeVerifier struct {
	Block   chan struct{}
	Started chan string

	mu       sync.Mutex
	results  map[string]VerifyResult
	calls    map[string]int
	expected map[string]string
}

// NewFakeVerifier creates a verifier that reports every collection valid.
func NewFakeVerifier() *FakeVerifier {
	return &FakeVerifier{
		results:  make(map[string]VerifyResult),
		calls:    make(map[string]int),
		expected: make(map[string]string),
	}
}

// SetResult scripts the outcome for collection.
func (v *FakeVerifier) SetResult(collection string, valid bool, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.results[collection] = VerifyResult{Valid: valid, Err: err}
}

// Verify implements integrity.Verifier.
func (v *FakeVerifier) Verify(ctx context.Context, collection, expectedChecksum string) (bool, error) {
	v.mu.Lock()
	v.calls[collection]++
	v.expected[collection] = expectedChecksum
	result, ok := v.results[collection]
	v.mu.Unlock()

	if v.Started != nil {
		v.Started <- collection
	}
	if v.Block != nil {
		select {
		case <-v.Block:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	if !ok {
		return true, nil
	}
	return result.Valid, result.Err
}

// Calls returns how many times collection was verified.
func (v *FakeVerifier) Calls(collection string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[collection]
}

// ExpectedChecksum returns the checksum passed in the last call for collection.
func (v *FakeVerifier) ExpectedChecksum(collection string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expected[collection]
}
