// Package testutil provides shared test helpers for setting up caches and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/bragi-editor/bragi/internal/cache"
	"github.com/bragi-editor/bragi/internal/index"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "bragi-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestCache creates a temporary cache directory with a cache.Provider.
func TestCache(t *testing.T) (string, cache.Provider) {
	t.Helper()
	cacheDir := t.TempDir()
	store, err := cache.NewFS(cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	return cacheDir, store
}
