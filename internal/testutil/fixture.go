// Package testutil provides a seeded SQLite fixture and deterministic
// clocks for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/bandmap/internal/catalog"
	"github.com/roach88/bandmap/internal/engine"
	"github.com/roach88/bandmap/internal/request"
	"github.com/roach88/bandmap/internal/schema"
	"github.com/roach88/bandmap/internal/store"
)

// BaseURL is the server URL fixture responses link to.
const BaseURL = "http://localhost:8080"

// Fixture wires the query stack over a seeded on-disk SQLite database.
type Fixture struct {
	Store   *store.Store
	Catalog *catalog.Catalog
	Schemas *schema.Provider
	Parser  *request.Parser
	Engine  *engine.Engine

	// IDs generates the parser's request ids ("req-1", "req-2", ...).
	IDs *Sequence
}

// OpenFixture opens a database in t.TempDir with the demo seed loaded.
// The store is closed when the test ends.
func OpenFixture(t testing.TB, opts ...engine.Option) *Fixture {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "bandmap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, store.Seed(context.Background(), s))

	cat, err := catalog.Load()
	require.NoError(t, err)
	schemas, err := schema.Load()
	require.NoError(t, err)

	ids := NewSequence("req-")
	return &Fixture{
		Store:   s,
		Catalog: cat,
		Schemas: schemas,
		Parser: request.NewParser(cat, schemas,
			request.WithBaseURL(BaseURL),
			request.WithClock(FixedClock(FixtureTime)),
			request.WithIDGenerator(ids.Next),
		),
		Engine: engine.New(cat, s, opts...),
		IDs:    ids,
	}
}
