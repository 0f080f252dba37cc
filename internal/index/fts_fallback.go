//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; prompt search uses LIKE fallback on generations.prompt.
	return nil
}

func ftsInsert(_ *sql.Tx, _ int64, _, _ string) error {
	// Prompt is already stored in the generations table; nothing extra to do.
	return nil
}

// SearchGenerations performs a LIKE-based prompt search (fallback when FTS5 is not compiled in).
func (db *DB) SearchGenerations(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT id, project, substr(prompt, 1, 200)
		FROM generations
		WHERE prompt LIKE ?
		ORDER BY started_at DESC
		LIMIT ?
	`, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Project, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
