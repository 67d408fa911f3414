package store

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/roach88/tagbridge/internal/backend"
	"github.com/roach88/tagbridge/internal/config"
	"github.com/roach88/tagbridge/internal/engine"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession creates a session logging into st, with ids
// "s-0", "s-1", ...
func createTestSession(t *testing.T, st *Store, prov config.Provenance) *engine.Session {
	t.Helper()
	cfg := config.Default()
	cfg.Provenance = prov
	s, err := engine.New(backend.NewMemory(), cfg,
		engine.WithLogger(zaptest.NewLogger(t)),
		engine.WithIDGenerator(engine.NewFixedGenerator("s-0", "s-1", "s-2", "s-3")),
		engine.WithHistorySink(st),
	)
	if err != nil {
		t.Fatalf("engine.New() failed: %v", err)
	}
	return s
}
