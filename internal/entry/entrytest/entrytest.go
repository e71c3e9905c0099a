// Package entrytest provides an in-memory config entry store for tests of
// packages that sit on top of entry.Store.
package entrytest

import (
	"context"
	"database/sql"
	"io/fs"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/migrations"
)

// NewStore returns a loaded Store backed by a fresh in-memory SQLite
// database with the config_entries schema applied. The database is closed
// when the test ends.
func NewStore(t testing.TB) *entry.Store {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	entries, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		t.Fatalf("listing migrations: %v", err)
	}
	for _, name := range entries {
		schema, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if _, err := db.Exec(string(schema)); err != nil {
			t.Fatalf("applying %s: %v", name, err)
		}
	}

	store := entry.NewStore(entry.NewSQLiteRepository(db))
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("loading store: %v", err)
	}
	return store
}

// Add persists e through store and returns the stored copy.
func Add(t testing.TB, store *entry.Store, e *entry.Entry) *entry.Entry {
	t.Helper()

	got, _, err := store.Upsert(context.Background(), e)
	if err != nil {
		t.Fatalf("adding entry: %v", err)
	}
	return got
}
