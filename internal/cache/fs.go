package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bragi-editor/bragi/internal/apperr"
	"github.com/bragi-editor/bragi/internal/checksum"
	"github.com/bragi-editor/bragi/internal/models"
)

// FS implements Provider backed by the local file system: one JSON
// record per article under the cache root.
type FS struct {
	root string // absolute path to cache directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("cache: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("cache: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cache: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Filename returns the cache file name for an article id.
func Filename(articleID string) string {
	return KeyPrefix + articleID + ".json"
}

// ArticleIDFromFilename extracts the article id from a cache file name,
// or "" when the name is not a cache entry.
func ArticleIDFromFilename(name string) string {
	if !strings.HasPrefix(name, KeyPrefix) || !strings.HasSuffix(name, ".json") {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, KeyPrefix), ".json")
	return id
}

// entryPath resolves an article id to an absolute path and rejects ids
// that would escape the cache root.
func (f *FS) entryPath(articleID string) (string, error) {
	if articleID == "" {
		return "", fmt.Errorf("cache: article id is required")
	}
	name := Filename(articleID)
	if filepath.Clean(name) != name || strings.ContainsAny(articleID, `/\`) || strings.Contains(articleID, "..") {
		return "", fmt.Errorf("cache: invalid article id: %s", articleID)
	}
	abs := filepath.Join(f.root, name)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("cache: path escapes cache root: %s", articleID)
	}
	return abs, nil
}

// Get reads and decodes the cached record for an article.
func (f *FS) Get(articleID string) (*models.DraftRecord, error) {
	abs, err := f.entryPath(articleID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("cache: %s: %w", articleID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("cache: read %s: %w", articleID, err)
	}
	var rec models.DraftRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("cache: decode %s: %w", articleID, err)
	}
	return &rec, nil
}

// Set atomically writes the record: tmp file → fsync → rename.
func (f *FS) Set(articleID string, rec *models.DraftRecord) error {
	abs, err := f.entryPath(articleID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", articleID, err)
	}

	tmp, err := os.CreateTemp(f.root, ".bragi-tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("cache: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("cache: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("cache: rename: %w", err)
	}
	success = true
	return nil
}

// Remove deletes the cache entry for an article.
func (f *FS) Remove(articleID string) error {
	abs, err := f.entryPath(articleID)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cache: remove %s: %w", articleID, err)
	}
	return nil
}

// List walks the cache root and returns metadata for every entry.
func (f *FS) List() ([]models.DraftMetadata, error) {
	var out []models.DraftMetadata
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		id := ArticleIDFromFilename(d.Name())
		if id == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rec, err := f.Get(id)
		if err != nil {
			// Entry vanished or is corrupt; skip it.
			return nil
		}
		out = append(out, models.DraftMetadata{
			ArticleID: id,
			Checksum:  checksum.Sum(rec.Content),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache: list: %w", err)
	}
	return out, nil
}
