package index

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bragi-editor/bragi/internal/apperr"
	"github.com/bragi-editor/bragi/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "bragi-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM drafts`).Scan(&count); err != nil {
		t.Fatalf("drafts table missing: %v", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	row := DraftRow{
		ArticleID: "a1",
		Title:     "Hello World",
		Checksum:  "abc123",
		UpdatedAt: now,
	}
	if err := db.UpsertDraft(row, "hello world body"); err != nil {
		t.Fatalf("UpsertDraft: %v", err)
	}

	got, err := db.GetDraft("a1")
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got.Title != "Hello World" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Status != models.StatusDraft {
		t.Errorf("status = %q, want default %q", got.Status, models.StatusDraft)
	}
	cs, _ := db.GetChecksum("a1")
	if cs != "abc123" {
		t.Errorf("checksum = %q", cs)
	}
}

func TestGetDraft_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetDraft("missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertDraft(DraftRow{ArticleID: "up", Title: "Old", Checksum: "1", UpdatedAt: now}, "old body")
	_ = db.UpsertDraft(DraftRow{ArticleID: "up", Title: "New", Checksum: "2", UpdatedAt: now}, "new body")

	got, _ := db.GetDraft("up")
	if got.Title != "New" || got.Checksum != "2" {
		t.Errorf("row = %+v", got)
	}

	rows, total, _ := db.ListDrafts(10, 0, "", "")
	if total != 1 || len(rows) != 1 {
		t.Errorf("total = %d, rows = %d, want 1/1", total, len(rows))
	}
}

func TestDeleteDraft(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDraft(DraftRow{ArticleID: "del", Checksum: "x", UpdatedAt: time.Now()}, "body")

	if err := db.DeleteDraft("del"); err != nil {
		t.Fatalf("DeleteDraft: %v", err)
	}
	if _, err := db.GetDraft("del"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestSetStatus(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDraft(DraftRow{ArticleID: "s1", Checksum: "1", UpdatedAt: time.Now()}, "body")

	if err := db.SetStatus("s1", models.StatusSubmitted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	got, _ := db.GetDraft("s1")
	if got.Status != models.StatusSubmitted {
		t.Errorf("status = %q", got.Status)
	}

	if err := db.SetStatus("missing", models.StatusSubmitted); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListDrafts_FilterAndSort(t *testing.T) {
	db := testDB(t)
	base := time.Now()
	_ = db.UpsertDraft(DraftRow{ArticleID: "a", Title: "Zebra", Checksum: "1", UpdatedAt: base.Add(-2 * time.Hour)}, "")
	_ = db.UpsertDraft(DraftRow{ArticleID: "b", Title: "Apple", Checksum: "2", UpdatedAt: base.Add(-time.Hour)}, "")
	_ = db.UpsertDraft(DraftRow{ArticleID: "c", Title: "Mango", Checksum: "3", Status: models.StatusSubmitted, UpdatedAt: base}, "")

	// Default sort: newest first.
	rows, total, err := db.ListDrafts(10, 0, "", "")
	if err != nil {
		t.Fatalf("ListDrafts: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d", total)
	}
	if rows[0].ArticleID != "c" {
		t.Errorf("first = %q, want c", rows[0].ArticleID)
	}

	// Title sort.
	rows, _, _ = db.ListDrafts(10, 0, "", "title")
	if rows[0].Title != "Apple" {
		t.Errorf("first title = %q", rows[0].Title)
	}

	// Status filter.
	rows, total, _ = db.ListDrafts(10, 0, models.StatusSubmitted, "")
	if total != 1 || rows[0].ArticleID != "c" {
		t.Errorf("filtered rows = %+v, total = %d", rows, total)
	}

	// Pagination.
	rows, total, _ = db.ListDrafts(2, 2, "", "article_id")
	if total != 3 || len(rows) != 1 || rows[0].ArticleID != "c" {
		t.Errorf("page rows = %+v, total = %d", rows, total)
	}
}

func TestAllChecksums(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDraft(DraftRow{ArticleID: "a", Checksum: "1", UpdatedAt: time.Now()}, "")
	_ = db.UpsertDraft(DraftRow{ArticleID: "b", Checksum: "2", UpdatedAt: time.Now()}, "")

	m, err := db.AllChecksums()
	if err != nil {
		t.Fatalf("AllChecksums: %v", err)
	}
	if len(m) != 2 || m["a"] != "1" || m["b"] != "2" {
		t.Errorf("checksums = %v", m)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDraft(DraftRow{ArticleID: "s", Title: "Search Me", Checksum: "1", UpdatedAt: time.Now()}, "uniqueword appears here")

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ArticleID != "s" {
		t.Errorf("search results = %+v, want 1 hit for s", results)
	}
}

func TestSearch_TitleMatch(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDraft(DraftRow{ArticleID: "t", Title: "Quarterly Planning", Checksum: "1", UpdatedAt: time.Now()}, "body text")

	results, err := db.Search("Quarterly", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results = %+v", results)
	}
}
