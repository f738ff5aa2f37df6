// Package testutil provides throwaway databases and deterministic helpers
// for tests and the scenario harness.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/nakajima/serverdata/internal/store"
)

// MemoryName returns a unique database name. Every name contains "test" so
// the container accepts Truncate and Drop.
func MemoryName() string {
	return "test-" + uuid.NewString()
}

// MemoryDSN is the DSN of a named, shared-cache in-memory SQLite database.
func MemoryDSN(name string) string {
	return "file:" + name + "?mode=memory&cache=shared"
}

// OpenMemory opens a fresh in-memory SQLite container. cfg supplies the
// dialect options; its driver, DSN and name are replaced. Logging is
// discarded unless cfg carries a logger.
func OpenMemory(ctx context.Context, cfg store.Config) (*store.Container, error) {
	name := MemoryName()
	cfg.Driver = "sqlite3"
	cfg.DSN = MemoryDSN(name)
	cfg.Name = name
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return store.Open(ctx, cfg)
}

// NewContainer opens an in-memory container that is closed when the test
// ends.
func NewContainer(t testing.TB, cfg store.Config) *store.Container {
	t.Helper()
	c, err := OpenMemory(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenMemory() failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}
