package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bragi-editor/bragi/internal/apperr"
	"github.com/bragi-editor/bragi/internal/models"
)

// DraftRow represents a row in the drafts table.
type DraftRow struct {
	ArticleID string
	Title     string
	Checksum  string
	Status    string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ArticleID string
	Title     string
	Snippet   string
}

// UpsertDraft inserts or replaces a draft row and its FTS entry within
// a transaction. body is the flattened plain text used for search.
func (db *DB) UpsertDraft(d DraftRow, body string) error {
	if d.Status == "" {
		d.Status = models.StatusDraft
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO drafts (article_id, title, checksum, status, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(article_id) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			status     = excluded.status,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, d.ArticleID, d.Title, d.Checksum, d.Status, body, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert draft: %w", err)
	}

	// FTS upsert (no-op when the FTS5 tag is absent).
	if err := ftsUpsert(tx, d.ArticleID, d.Title, body); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteDraft removes a draft row and its FTS entry.
func (db *DB) DeleteDraft(articleID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, articleID)
	_, _ = tx.Exec(`DELETE FROM drafts WHERE article_id = ?`, articleID)

	return tx.Commit()
}

// GetDraft returns a single draft row, or apperr.ErrNotFound.
func (db *DB) GetDraft(articleID string) (*DraftRow, error) {
	var d DraftRow
	err := db.conn.QueryRow(`
		SELECT article_id, title, checksum, status, updated_at
		FROM drafts WHERE article_id = ?
	`, articleID).Scan(&d.ArticleID, &d.Title, &d.Checksum, &d.Status, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: %s: %w", articleID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get draft: %w", err)
	}
	return &d, nil
}

// GetChecksum returns the stored checksum for a draft, or empty string
// if not indexed.
func (db *DB) GetChecksum(articleID string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM drafts WHERE article_id = ?`, articleID).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// SetStatus updates the status column for a draft.
func (db *DB) SetStatus(articleID, status string) error {
	res, err := db.conn.Exec(`UPDATE drafts SET status = ? WHERE article_id = ?`, status, articleID)
	if err != nil {
		return fmt.Errorf("index: set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: %s: %w", articleID, apperr.ErrNotFound)
	}
	return nil
}

// ListDrafts returns paginated drafts with an optional status filter.
// sort is one of "updated_at" (default, newest first), "title", or
// "article_id".
func (db *DB) ListDrafts(limit, offset int, status, sort string) ([]DraftRow, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	order := "updated_at DESC"
	switch sort {
	case "title":
		order = "title ASC"
	case "article_id":
		order = "article_id ASC"
	}

	where := ""
	args := []any{}
	if status != "" {
		where = "WHERE status = ?"
		args = append(args, status)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM drafts `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count drafts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT article_id, title, checksum, status, updated_at
		FROM drafts %s ORDER BY %s LIMIT ? OFFSET ?
	`, where, order)
	rows, err := db.conn.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list drafts: %w", err)
	}
	defer rows.Close()

	var out []DraftRow
	for rows.Next() {
		var d DraftRow
		if err := rows.Scan(&d.ArticleID, &d.Title, &d.Checksum, &d.Status, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// AllChecksums returns a map of every indexed article id to its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT article_id, checksum FROM drafts`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}
