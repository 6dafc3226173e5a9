package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator generates the same verification id every time.
//
// This keeps log output stable for golden comparison.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a new fixed id generator.
// If id is empty, Generate() returns "test-verification".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-verification"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
//
// Implements integrity.IDGenerator interface.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

// SequentialIDGenerator generates ids with a monotonically increasing suffix:
// "<prefix>-1", "<prefix>-2", ...
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	prefix string

	mu  sync.Mutex
	seq int64
}

// NewSequentialIDGenerator creates a generator; the first id ends in 1.
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate increments and returns the next id.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Reset restarts the sequence. The next id ends in 1.
func (g *SequentialIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
