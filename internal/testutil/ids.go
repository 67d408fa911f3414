// Package testutil holds deterministic helpers shared by tests and the
// scenario harness.
package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/tagbridge/internal/engine"
)

var (
	_ engine.IDGenerator = (*SequentialIDs)(nil)
	_ engine.IDGenerator = (*StaticID)(nil)
)

// SequentialIDs issues "<prefix>-0", "<prefix>-1", ... and never runs out.
//
// Unlike engine.FixedGenerator it can be reset, so the same scenario can
// run several times with identical session ids.
//
// Thread-safety: all methods are safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix becomes "session".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "session"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("%s-%d", g.prefix, g.n)
	g.n++
	return id
}

// Issued returns how many ids have been handed out since the last Reset.
func (g *SequentialIDs) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset starts the sequence over at "<prefix>-0".
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

// StaticID returns the same id every time. Stateless and safe for
// concurrent use.
type StaticID struct {
	id string
}

// NewStaticID creates a StaticID. An empty id becomes "test-session".
func NewStaticID(id string) *StaticID {
	if id == "" {
		id = "test-session"
	}
	return &StaticID{id: id}
}

// Generate returns the fixed id.
func (g *StaticID) Generate() string {
	return g.id
}
