package index

import (
	"log/slog"

	"github.com/bragi-editor/bragi/internal/cache"
	"github.com/bragi-editor/bragi/internal/checksum"
	"github.com/bragi-editor/bragi/internal/document"
)

// Sync walks the cache directory and brings the index up to date:
//   - new/changed drafts are parsed and upserted
//   - entries removed from disk are deleted from the index
func Sync(db *DB, store cache.Provider, logger *slog.Logger) error {
	metas, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.ArticleID] = struct{}{}

		if checksums[m.ArticleID] == m.Checksum {
			continue
		}

		if err := indexDraft(db, store, m.ArticleID); err != nil {
			logger.Warn("sync: index failed", slog.String("article_id", m.ArticleID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("article_id", m.ArticleID))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteDraft(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("article_id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("article_id", id))
			}
		}
	}

	return nil
}

// indexDraft reads a cached draft and upserts it into the DB. The
// status of an already-indexed draft is preserved.
func indexDraft(db *DB, store cache.Provider, articleID string) error {
	rec, err := store.Get(articleID)
	if err != nil {
		return err
	}
	root, err := document.Parse(rec.Content)
	if err != nil {
		return err
	}

	title := rec.Title
	if title == "" {
		title = root.Title()
	}
	status := ""
	if existing, err := db.GetDraft(articleID); err == nil {
		status = existing.Status
	}

	return db.UpsertDraft(DraftRow{
		ArticleID: articleID,
		Title:     title,
		Checksum:  checksum.Sum(rec.Content),
		Status:    status,
		UpdatedAt: rec.LastModified,
	}, root.PlainText())
}
