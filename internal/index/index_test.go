package index

import (
	"os"
	"testing"
	"time"

	"github.com/starford/pagesmith/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "pagesmith-test-*.db")
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
	if err := db.conn.QueryRow(`SELECT count(*) FROM projects`).Scan(&count); err != nil {
		t.Fatalf("projects table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM generations`).Scan(&count); err != nil {
		t.Fatalf("generations table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := ProjectRow{
		Name:      "Demo",
		Title:     "Demo site",
		Checksum:  "abc123",
		Slots:     []models.Slot{models.SlotPage},
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertProject(row); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}
	cs, err := db.GetChecksum("Demo")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestUpsertKeepsCreatedAt(t *testing.T) {
	db := testDB(t)
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = db.UpsertProject(ProjectRow{Name: "p", Checksum: "1", UpdatedAt: first})
	_ = db.UpsertProject(ProjectRow{Name: "p", Title: "New", Checksum: "2", UpdatedAt: first.Add(time.Hour)})

	rows, err := db.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.Title != "New" || r.Checksum != "2" {
		t.Errorf("row not updated: %+v", r)
	}
	if !r.CreatedAt.Equal(first) {
		t.Errorf("created_at = %v, want %v", r.CreatedAt, first)
	}
	if !r.UpdatedAt.Equal(first.Add(time.Hour)) {
		t.Errorf("updated_at = %v", r.UpdatedAt)
	}
}

func TestListProjectsOrdered(t *testing.T) {
	db := testDB(t)
	for _, n := range []string{"zeta", "alpha", "mid"} {
		_ = db.UpsertProject(ProjectRow{Name: n, Checksum: n, Slots: []models.Slot{models.SlotPage}})
	}
	rows, _ := db.ListProjects()
	if len(rows) != 3 || rows[0].Name != "alpha" || rows[2].Name != "zeta" {
		t.Errorf("rows = %+v", rows)
	}
	if got := rows[0].Project(); len(got.Slots) != 1 || got.Slots[0] != models.SlotPage {
		t.Errorf("slots = %v", got.Slots)
	}
}

func TestDeleteProject(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertProject(ProjectRow{Name: "del", Checksum: "x"})
	if err := db.DeleteProject("del"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	cs, _ := db.GetChecksum("del")
	if cs != "" {
		t.Errorf("deleted project still has checksum %q", cs)
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

func TestRecordAndListGenerations(t *testing.T) {
	db := testDB(t)
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	for i, prompt := range []string{"add a footer", "make it blue"} {
		_, err := db.RecordGeneration(models.Generation{
			Project:    "Demo",
			Prompt:     prompt,
			Label:      "AI_x",
			Status:     models.GenerationOK,
			WebSearch:  i == 1,
			Committed:  []models.Slot{models.SlotPage},
			StartedAt:  start.Add(time.Duration(i) * time.Minute),
			DurationMS: 1200,
		})
		if err != nil {
			t.Fatalf("RecordGeneration: %v", err)
		}
	}
	_, _ = db.RecordGeneration(models.Generation{Project: "Other", Prompt: "x", Status: models.GenerationFailed, StartedAt: start})

	gens, err := db.Generations("Demo", 10)
	if err != nil {
		t.Fatalf("Generations: %v", err)
	}
	if len(gens) != 2 {
		t.Fatalf("len = %d, want 2", len(gens))
	}
	if gens[0].Prompt != "make it blue" || !gens[0].WebSearch {
		t.Errorf("newest = %+v", gens[0])
	}
	if len(gens[1].Committed) != 1 || gens[1].Committed[0] != models.SlotPage {
		t.Errorf("committed = %v", gens[1].Committed)
	}
	if !gens[1].StartedAt.Equal(start) {
		t.Errorf("started_at = %v", gens[1].StartedAt)
	}
}

func TestSearchGenerations(t *testing.T) {
	db := testDB(t)
	_, _ = db.RecordGeneration(models.Generation{Project: "Demo", Prompt: "add a uniqueword section", Status: models.GenerationOK, StartedAt: time.Now()})
	_, _ = db.RecordGeneration(models.Generation{Project: "Demo", Prompt: "something else", Status: models.GenerationOK, StartedAt: time.Now()})

	results, err := db.SearchGenerations("uniqueword", 10)
	if err != nil {
		t.Fatalf("SearchGenerations: %v", err)
	}
	if len(results) != 1 || results[0].Project != "Demo" {
		t.Errorf("results = %+v, want 1 hit in Demo", results)
	}
}
