package index

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bragi-editor/bragi/internal/cache"
	"github.com/bragi-editor/bragi/internal/models"
)

// watcherTestEnv sets up a cache dir, provider, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, cache.Provider, *DB) {
	t.Helper()
	cacheDir := t.TempDir()
	store, err := cache.NewFS(cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	dbFile, err := os.CreateTemp("", "bragi-watcher-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return cacheDir, store, db
}

func testRecord(articleID, text string) *models.DraftRecord {
	content := json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"` + text + `"}]}]}`)
	return &models.DraftRecord{
		ArticleID:    articleID,
		Title:        text,
		Content:      content,
		LastModified: time.Now(),
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewEntryIndexed(t *testing.T) {
	cacheDir, store, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, cacheDir, logger, func(kind, articleID string) {
		mu.Lock()
		events = append(events, kind+":"+articleID)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = store.Set("a1", testRecord("a1", "fresh draft"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("a1")
		return cs != ""
	}, "new cache entry not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "updated:a1" {
				return true
			}
		}
		return false
	}, "expected updated:a1 callback")
}

func TestWatcher_NonCacheFilesIgnored(t *testing.T) {
	cacheDir, store, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, cacheDir, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(cacheDir, "notes.txt"), []byte("not a draft"), 0o644)
	_ = store.Set("real", testRecord("real", "real draft"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("real")
		return cs != ""
	}, "real entry not indexed")

	m, _ := db.AllChecksums()
	if len(m) != 1 {
		t.Errorf("index contains %d entries, want 1: %v", len(m), m)
	}
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	cacheDir, store, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	_ = store.Set("del", testRecord("del", "delete me"))
	Sync(db, store, logger)

	cs, _ := db.GetChecksum("del")
	if cs == "" {
		t.Fatal("precondition: entry should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, cacheDir, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = store.Remove("del")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del")
		return cs == ""
	}, "deleted entry still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	cacheDir, store, db := watcherTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	_ = store.Set("old", testRecord("old", "renamed draft"))
	Sync(db, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, cacheDir, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(
		filepath.Join(cacheDir, cache.Filename("old")),
		filepath.Join(cacheDir, cache.Filename("new")),
	)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old")
		newCS, _ := db.GetChecksum("new")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old id should be removed and new id indexed")
}
