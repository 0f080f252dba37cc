package index

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/pagesmith/internal/models"
)

// ProjectRow represents a row in the projects table.
type ProjectRow struct {
	Name      string
	Title     string
	Checksum  string
	Slots     []models.Slot
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Project converts the row to the API model.
func (r ProjectRow) Project() models.Project {
	slots := r.Slots
	if slots == nil {
		slots = []models.Slot{}
	}
	return models.Project{Name: r.Name, Title: r.Title, Slots: slots, UpdatedAt: r.UpdatedAt}
}

// UpsertProject inserts or updates a catalog row. created_at is kept from
// the first insert.
func (db *DB) UpsertProject(p ProjectRow) error {
	slotsJSON, _ := json.Marshal(p.Slots)
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = p.UpdatedAt
	}
	_, err := db.conn.Exec(`
		INSERT INTO projects (name, title, checksum, slots, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			slots      = excluded.slots,
			updated_at = excluded.updated_at
	`, p.Name, p.Title, p.Checksum, string(slotsJSON), created.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert project: %w", err)
	}
	return nil
}

// DeleteProject removes a catalog row. The generation journal is kept.
func (db *DB) DeleteProject(name string) error {
	if _, err := db.conn.Exec(`DELETE FROM projects WHERE name = ?`, name); err != nil {
		return fmt.Errorf("index: delete project: %w", err)
	}
	return nil
}

// GetChecksum returns the stored content fingerprint for a project, or empty string if not found.
func (db *DB) GetChecksum(name string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM projects WHERE name = ?`, name).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// ListProjects returns every catalog row ordered by name.
func (db *DB) ListProjects() ([]ProjectRow, error) {
	rows, err := db.conn.Query(`
		SELECT name, title, checksum, slots, created_at, updated_at
		FROM projects
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("index: list projects: %w", err)
	}
	defer rows.Close()

	out := []ProjectRow{}
	for rows.Next() {
		var r ProjectRow
		var slotsJSON string
		if err := rows.Scan(&r.Name, &r.Title, &r.Checksum, &slotsJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(slotsJSON), &r.Slots)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllChecksums returns name -> fingerprint for every catalog row.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT name, checksum FROM projects`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var name, cs string
		if err := rows.Scan(&name, &cs); err != nil {
			return nil, err
		}
		out[name] = cs
	}
	return out, rows.Err()
}
