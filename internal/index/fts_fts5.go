//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS drafts_fts USING fts5(
			article_id UNINDEXED,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, articleID, title, body string) error {
	_, _ = tx.Exec(`DELETE FROM drafts_fts WHERE article_id = ?`, articleID)
	_, err := tx.Exec(`INSERT INTO drafts_fts (article_id, title, body) VALUES (?, ?, ?)`,
		articleID, title, body)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, articleID string) {
	_, _ = tx.Exec(`DELETE FROM drafts_fts WHERE article_id = ?`, articleID)
}

// Search performs an FTS5 full-text search and returns matching drafts
// with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT article_id,
		       title,
		       snippet(drafts_fts, 2, '<b>', '</b>', '...', 64)
		FROM drafts_fts
		WHERE drafts_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ArticleID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
