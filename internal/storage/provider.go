// Package storage defines the content-root file-system abstraction shared by
// the project, history and upload areas.
package storage

import "github.com/starford/pagesmith/internal/models"

// Provider is the interface for file operations relative to one root directory.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// List returns metadata for every regular file under dir (relative to root).
	List(dir string) ([]models.FileInfo, error)
	// Dirs returns the names of the immediate subdirectories of dir, sorted.
	Dirs(dir string) ([]string, error)
	// Exists reports whether path exists (file or directory).
	Exists(path string) bool
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// RemoveAll removes path and everything below it.
	RemoveAll(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Abs resolves path to an absolute path inside root.
	Abs(path string) (string, error)
}
