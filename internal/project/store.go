// Package project stores named projects, each a directory of text artifacts
// under the projects root.
package project

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/pagesmith/internal/apperr"
	"github.com/starford/pagesmith/internal/htmldoc"
	"github.com/starford/pagesmith/internal/models"
	"github.com/starford/pagesmith/internal/storage"
)

//go:embed templates/*
var templates embed.FS

// Store implements CRUD over projects on a storage.Provider.
type Store struct {
	fs    storage.Provider
	slots []models.Slot
}

// NewStore creates a project store. When multiArtifact is set every project
// carries a server script next to its page.
func NewStore(fs storage.Provider, multiArtifact bool) *Store {
	slots := []models.Slot{models.SlotPage}
	if multiArtifact {
		slots = append(slots, models.SlotServer)
	}
	return &Store{fs: fs, slots: slots}
}

// Slots returns the artifact slots every project carries.
func (s *Store) Slots() []models.Slot {
	return append([]models.Slot(nil), s.slots...)
}

// HasSlot reports whether slot is enabled for this store.
func (s *Store) HasSlot(slot models.Slot) bool {
	for _, sl := range s.slots {
		if sl == slot {
			return true
		}
	}
	return false
}

func (s *Store) slotPath(name string, slot models.Slot) string {
	return path.Join(name, slot.FileName())
}

func (s *Store) checkSlot(slot models.Slot) error {
	if !s.HasSlot(slot) {
		return fmt.Errorf("%w: unknown artifact slot %q", apperr.ErrNotFound, slot)
	}
	return nil
}

// Template returns the starter content for slot, personalised with name.
func Template(slot models.Slot, name string) (string, error) {
	file := "templates/page.html"
	if slot == models.SlotServer {
		file = "templates/app.py"
	}
	data, err := templates.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("project: template %s: %w", slot, err)
	}
	return strings.ReplaceAll(string(data), "{{name}}", name), nil
}

// Create materializes a new project from the starter templates. The
// construction-time write does not snapshot.
func (s *Store) Create(name string) (*models.Project, error) {
	key, err := Sanitize(name)
	if err != nil {
		return nil, err
	}
	if s.fs.Exists(key) {
		return nil, fmt.Errorf("project %q: %w", key, apperr.ErrAlreadyExists)
	}
	for _, slot := range s.slots {
		text, err := Template(slot, strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if err := s.fs.Write(s.slotPath(key, slot), []byte(text)); err != nil {
			return nil, err
		}
	}
	return s.Get(key)
}

// Exists reports whether the project directory exists.
func (s *Store) Exists(name string) bool {
	key, err := Sanitize(name)
	if err != nil {
		return false
	}
	return s.fs.Exists(key)
}

// Get returns the project handle, or ErrNotFound.
func (s *Store) Get(name string) (*models.Project, error) {
	key, err := Sanitize(name)
	if err != nil {
		return nil, err
	}
	if !s.fs.Exists(key) {
		return nil, fmt.Errorf("project %q: %w", key, apperr.ErrNotFound)
	}
	p := &models.Project{Name: key, Slots: s.Slots()}
	files, err := s.fs.List(key)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.UpdatedAt.After(p.UpdatedAt) {
			p.UpdatedAt = f.UpdatedAt
		}
	}
	page, err := s.Read(key, models.SlotPage)
	if err != nil {
		return nil, err
	}
	p.Title = htmldoc.Title(page)
	return p, nil
}

// Read returns the slot text. A missing project or slot yields "" and no error.
func (s *Store) Read(name string, slot models.Slot) (string, error) {
	key, err := Sanitize(name)
	if err != nil {
		return "", err
	}
	if err := s.checkSlot(slot); err != nil {
		return "", err
	}
	data, err := s.fs.Read(s.slotPath(key, slot))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// Artifacts returns the text of every enabled slot.
func (s *Store) Artifacts(name string) (models.Artifacts, error) {
	out := make(models.Artifacts, len(s.slots))
	for _, slot := range s.slots {
		text, err := s.Read(name, slot)
		if err != nil {
			return nil, err
		}
		out[slot] = text
	}
	return out, nil
}

// Write overwrites the slot's artifact in place. Callers on the save and
// generate paths snapshot first.
func (s *Store) Write(name string, slot models.Slot, text string) error {
	key, err := Sanitize(name)
	if err != nil {
		return err
	}
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	return s.fs.Write(s.slotPath(key, slot), []byte(text))
}

// ReplaceAll swaps the whole artifact set in one directory rename so that
// readers never observe a mix of old and new slots. Slots absent from
// artifacts are left empty. The project is created if it does not exist.
func (s *Store) ReplaceAll(name string, artifacts models.Artifacts) error {
	key, err := Sanitize(name)
	if err != nil {
		return err
	}
	token := uuid.NewString()
	stage := ".stage-" + key + "-" + token
	for _, slot := range s.slots {
		if err := s.fs.Write(s.slotPath(stage, slot), []byte(artifacts[slot])); err != nil {
			_ = s.fs.RemoveAll(stage)
			return fmt.Errorf("project: stage %s: %w", key, err)
		}
	}

	old := ""
	if s.fs.Exists(key) {
		old = ".old-" + key + "-" + token
		if err := s.fs.Move(key, old); err != nil {
			_ = s.fs.RemoveAll(stage)
			return fmt.Errorf("project: set aside %s: %w", key, err)
		}
	}
	if err := s.fs.Move(stage, key); err != nil {
		if old != "" {
			_ = s.fs.Move(old, key)
		}
		_ = s.fs.RemoveAll(stage)
		return fmt.Errorf("project: swap %s: %w", key, err)
	}
	if old != "" {
		_ = s.fs.RemoveAll(old)
	}
	return nil
}

// Delete removes every artifact of the project.
func (s *Store) Delete(name string) error {
	key, err := Sanitize(name)
	if err != nil {
		return err
	}
	if !s.fs.Exists(key) {
		return fmt.Errorf("project %q: %w", key, apperr.ErrNotFound)
	}
	return s.fs.RemoveAll(key)
}

// List enumerates project names in sorted order.
func (s *Store) List() ([]string, error) {
	names, err := s.fs.Dirs("")
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Path returns the absolute file path of a slot, for streaming downloads.
func (s *Store) Path(name string, slot models.Slot) (string, error) {
	key, err := Sanitize(name)
	if err != nil {
		return "", err
	}
	if err := s.checkSlot(slot); err != nil {
		return "", err
	}
	p := s.slotPath(key, slot)
	if !s.fs.Exists(p) {
		return "", fmt.Errorf("artifact %s/%s: %w", key, slot, apperr.ErrNotFound)
	}
	return s.fs.Abs(p)
}

// Dir returns the absolute project directory.
func (s *Store) Dir(name string) (string, error) {
	key, err := Sanitize(name)
	if err != nil {
		return "", err
	}
	if !s.fs.Exists(key) {
		return "", fmt.Errorf("project %q: %w", key, apperr.ErrNotFound)
	}
	return s.fs.Abs(key)
}
