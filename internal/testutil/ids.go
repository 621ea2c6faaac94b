package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator returns the same unit-of-work id every time.
//
// Golden query logs include the unit-of-work id, so scenarios pin it.
// If id is empty, Generate() returns "test-uow-default".
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a new fixed id generator.
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-uow-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

// SequenceIDGenerator returns "<prefix>-1", "<prefix>-2", ...
//
// Unlike FixedIDGenerator, every unit of work gets a distinct id, which
// tests use to tell independent units of work apart.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequenceIDGenerator creates a generator starting at 1.
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate increments the sequence and returns the next id.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Reset restarts the sequence. After Reset(), the next id ends in -1.
func (g *SequenceIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
