package testutil

import (
	"fmt"
	"sync"
)

// SeqIDs generates sequential identifiers of the form "<prefix>-0001".
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with the same SeqIDs produces byte-identical traces.
//
// Unlike ids.Fixed, SeqIDs never runs out.
//
// Thread-safety: SeqIDs is safe for concurrent use via internal mutex.
type SeqIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSeqIDs creates a generator. An empty prefix uses "id".
func NewSeqIDs(prefix string) *SeqIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SeqIDs{prefix: prefix}
}

// Generate returns the next id.
//
// Implements ids.Generator interface.
func (g *SeqIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts the sequence. The next Generate returns "<prefix>-0001".
func (g *SeqIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
