//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS prompts_fts USING fts5(
			id UNINDEXED,
			project UNINDEXED,
			prompt,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, id int64, project, prompt string) error {
	_, err := tx.Exec(`INSERT INTO prompts_fts (id, project, prompt) VALUES (?, ?, ?)`, id, project, prompt)
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

// SearchGenerations performs an FTS5 prompt search and returns matching attempts with snippets.
func (db *DB) SearchGenerations(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id,
		       project,
		       snippet(prompts_fts, 2, '<b>', '</b>', '...', 32)
		FROM prompts_fts
		WHERE prompts_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
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
