package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bragi-editor/bragi/internal/cache"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "updated", "deleted".
type EventCallback func(kind string, articleID string)

// Watch starts an fsnotify watcher on the cache directory and
// processes change events until ctx is cancelled. External sync tools
// may touch the cache dir; the watcher keeps the index consistent with
// it and calls cb (if non-nil) after each successful mutation.
//
// Rename events trigger a debounced reconciliation pass that removes
// stale index entries whose files no longer exist on disk.
func Watch(ctx context.Context, db *DB, store cache.Provider, cacheRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(cacheRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", cacheRoot))

	// reconcileTimer debounces rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			articleID := cache.ArticleIDFromFilename(filepath.Base(ev.Name))
			if articleID == "" {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if idxErr := indexDraft(db, store, articleID); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("article_id", articleID), slog.String("error", idxErr.Error()))
					continue
				}
				logger.Debug("watcher: indexed", slog.String("article_id", articleID))
				if cb != nil {
					cb("updated", articleID)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteDraft(articleID); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("article_id", articleID), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("article_id", articleID))
				if cb != nil {
					cb("deleted", articleID)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only; the new
				// path arrives as a separate Create event. Delete the
				// old entry immediately and schedule a reconciliation
				// pass to catch stragglers.
				if delErr := db.DeleteDraft(articleID); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("article_id", articleID), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("article_id", articleID))
					if cb != nil {
						cb("deleted", articleID)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile does a lightweight sync using batch lookups: index entries
// without a file on disk are removed, and on-disk entries whose
// checksum differs are reindexed.
func reconcile(db *DB, store cache.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.ArticleID] = m.Checksum
	}

	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if delErr := db.DeleteDraft(id); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("article_id", id))
				if cb != nil {
					cb("deleted", id)
				}
			}
		}
	}

	for id, cs := range disk {
		if checksums[id] == cs {
			continue
		}
		if idxErr := indexDraft(db, store, id); idxErr == nil {
			logger.Debug("reconcile: indexed", slog.String("article_id", id))
			if cb != nil {
				cb("updated", id)
			}
		}
	}
}
