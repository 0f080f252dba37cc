package index

import (
	"encoding/json"
	"fmt"

	"github.com/starford/pagesmith/internal/models"
)

// SearchResult represents one prompt search hit.
type SearchResult struct {
	ID      int64  `json:"id"`
	Project string `json:"project"`
	Snippet string `json:"snippet"`
}

// RecordGeneration appends one generation attempt to the journal and returns its id.
func (db *DB) RecordGeneration(g models.Generation) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	committed := g.Committed
	if committed == nil {
		committed = []models.Slot{}
	}
	committedJSON, _ := json.Marshal(committed)

	res, err := tx.Exec(`
		INSERT INTO generations (project, prompt, label, status, error, web_search, committed, title, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.Project, g.Prompt, g.Label, g.Status, g.Error, g.WebSearch, string(committedJSON), g.Title, g.StartedAt.UTC(), g.DurationMS)
	if err != nil {
		return 0, fmt.Errorf("index: record generation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("index: generation id: %w", err)
	}

	// FTS insert (no-op when FTS5 tag is absent).
	if err := ftsInsert(tx, id, g.Project, g.Prompt); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit generation: %w", err)
	}
	return id, nil
}

// Generations returns the newest attempts for a project, newest first.
func (db *DB) Generations(project string, limit int) ([]models.Generation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, project, prompt, label, status, error, web_search, committed, title, started_at, duration_ms
		FROM generations
		WHERE project = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, project, limit)
	if err != nil {
		return nil, fmt.Errorf("index: generations: %w", err)
	}
	defer rows.Close()

	out := []models.Generation{}
	for rows.Next() {
		var g models.Generation
		var committedJSON string
		if err := rows.Scan(&g.ID, &g.Project, &g.Prompt, &g.Label, &g.Status, &g.Error,
			&g.WebSearch, &committedJSON, &g.Title, &g.StartedAt, &g.DurationMS); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(committedJSON), &g.Committed)
		out = append(out, g)
	}
	return out, rows.Err()
}
