package index

import "github.com/starford/pagesmith/internal/models"

// Catalog defines the project catalog and generation journal operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Catalog interface {
	UpsertProject(p ProjectRow) error
	DeleteProject(name string) error
	GetChecksum(name string) (string, error)
	ListProjects() ([]ProjectRow, error)
	AllChecksums() (map[string]string, error)
	RecordGeneration(g models.Generation) (int64, error)
	Generations(project string, limit int) ([]models.Generation, error)
	SearchGenerations(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
