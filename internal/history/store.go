// Package history keeps a labeled, prunable, restorable archive of every
// project's artifacts under the backups root.
package history

import (
	"fmt"
	"log/slog"
	"path"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/starford/pagesmith/internal/apperr"
	"github.com/starford/pagesmith/internal/models"
	"github.com/starford/pagesmith/internal/project"
	"github.com/starford/pagesmith/internal/storage"
)

// DefaultRetention is how long unstarred snapshots are kept.
const DefaultRetention = 14 * 24 * time.Hour

// Content is the live artifact source the store copies from and restores into.
type Content interface {
	Artifacts(name string) (models.Artifacts, error)
	ReplaceAll(name string, artifacts models.Artifacts) error
}

// Store manages per-project snapshots.
//
// Layout under the backups root:
//
//	<project>/_index.yaml          structured records
//	<project>/<id>/index.html     blob copy of each slot
type Store struct {
	fs        storage.Provider
	content   Content
	clock     Clock
	retention time.Duration
	logger    *slog.Logger

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithRetention overrides the pruning window.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithLogger sets the logger used for skipped entries.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a snapshot store over fs that copies from content.
func NewStore(fs storage.Provider, content Content, opts ...Option) *Store {
	s := &Store{
		fs:        fs,
		content:   content,
		clock:     RealClock{},
		retention: DefaultRetention,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retention returns the pruning window.
func (s *Store) Retention() time.Duration { return s.retention }

// Snapshot copies the project's current artifacts into a new entry. It
// returns nil without error when the project has no content yet.
func (s *Store) Snapshot(name, label string) (*models.Snapshot, error) {
	key, err := project.Sanitize(name)
	if err != nil {
		return nil, err
	}
	arts, err := s.content.Artifacts(key)
	if err != nil {
		return nil, err
	}
	if arts.Empty() {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadIndex(key)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	label = cleanLabel(label)
	snap := models.Snapshot{
		ID:        s.nextID(key, doc, now, label),
		Label:     label,
		CreatedAt: now,
	}
	for _, slot := range sortedSlots(arts) {
		if err := s.fs.Write(path.Join(key, snap.ID, slot.FileName()), []byte(arts[slot])); err != nil {
			_ = s.fs.RemoveAll(path.Join(key, snap.ID))
			return nil, fmt.Errorf("history: write blob: %w", err)
		}
		snap.Slots = append(snap.Slots, slot)
	}
	doc.Snapshots = append(doc.Snapshots, newRecord(snap))
	if err := s.saveIndex(key, doc); err != nil {
		_ = s.fs.RemoveAll(path.Join(key, snap.ID))
		return nil, err
	}
	s.logger.Debug("history: snapshot taken",
		slog.String("project", key), slog.String("id", snap.ID))
	return &snap, nil
}

// List returns the project's history newest first, pruning expired
// entries before it reads.
func (s *Store) List(name string) ([]models.Snapshot, error) {
	key, err := project.Sanitize(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadIndex(key)
	if err != nil {
		return nil, err
	}
	if _, err := s.prune(key, doc); err != nil {
		return nil, err
	}
	out := s.valid(key, doc)
	// Index order is insertion order; reversing it first makes the newest
	// insert win ties on CreatedAt.
	slices.Reverse(out)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Get returns one snapshot and its stored content.
func (s *Store) Get(name, id string) (*models.Snapshot, models.Artifacts, error) {
	key, err := project.Sanitize(name)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadIndex(key)
	if err != nil {
		return nil, nil, err
	}
	_, snap, err := s.find(key, doc, id)
	if err != nil {
		return nil, nil, err
	}
	arts := make(models.Artifacts, len(snap.Slots))
	for _, slot := range snap.Slots {
		data, err := s.fs.Read(path.Join(key, id, slot.FileName()))
		if err != nil {
			return nil, nil, fmt.Errorf("history: read blob %s/%s: %w", id, slot, err)
		}
		arts[slot] = string(data)
	}
	return &snap, arts, nil
}

// Restore replaces the live project with the snapshot's content after
// taking a safety snapshot of what is live now. The returned snapshot is
// the safety entry, nil when the project had no content.
func (s *Store) Restore(name, id string) (*models.Snapshot, error) {
	_, arts, err := s.Get(name, id)
	if err != nil {
		return nil, err
	}
	safety, err := s.Snapshot(name, models.LabelPreRestore)
	if err != nil {
		return nil, fmt.Errorf("history: safety snapshot: %w", err)
	}
	if err := s.content.ReplaceAll(name, arts); err != nil {
		return nil, fmt.Errorf("history: restore %s: %w", id, err)
	}
	return safety, nil
}

// ToggleStar flips the starred flag of a snapshot. The id, timestamp and
// label are unchanged.
func (s *Store) ToggleStar(name, id string) (*models.Snapshot, error) {
	key, err := project.Sanitize(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadIndex(key)
	if err != nil {
		return nil, err
	}
	i, snap, err := s.find(key, doc, id)
	if err != nil {
		return nil, err
	}
	snap.Starred = !snap.Starred
	if err := s.markStar(key, id, snap.Starred); err != nil {
		return nil, fmt.Errorf("history: star %s: %w", id, err)
	}
	doc.Snapshots[i].Starred = snap.Starred
	if err := s.saveIndex(key, doc); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Delete removes one snapshot, starred or not.
func (s *Store) Delete(name, id string) error {
	key, err := project.Sanitize(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadIndex(key)
	if err != nil {
		return err
	}
	i, _, err := s.find(key, doc, id)
	if err != nil {
		return err
	}
	if err := s.fs.RemoveAll(path.Join(key, id)); err != nil {
		return err
	}
	doc.Snapshots = append(doc.Snapshots[:i], doc.Snapshots[i+1:]...)
	return s.saveIndex(key, doc)
}

// Prune deletes every unstarred snapshot older than the retention window
// and reports how many were removed.
func (s *Store) Prune(name string) (int, error) {
	key, err := project.Sanitize(name)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadIndex(key)
	if err != nil {
		return 0, err
	}
	return s.prune(key, doc)
}

// prune must be called with s.mu held. Entries that fail to parse are kept,
// and nothing is removed while the index is being rebuilt.
func (s *Store) prune(key string, doc *indexDoc) (int, error) {
	if doc.rebuilt {
		s.logger.Warn("history: index rebuilt from blobs, pruning deferred",
			slog.String("project", key))
		return 0, nil
	}
	now := s.clock.Now()
	kept := doc.Snapshots[:0:0]
	removed := 0
	for _, r := range doc.Snapshots {
		snap, err := r.snapshot()
		if err != nil {
			s.logger.Warn("history: skipping corrupt entry",
				slog.String("project", key), slog.String("entry", r.ID), slog.String("error", err.Error()))
			kept = append(kept, r)
			continue
		}
		if snap.Starred || now.Sub(snap.CreatedAt) <= s.retention {
			kept = append(kept, r)
			continue
		}
		if err := s.fs.RemoveAll(path.Join(key, snap.ID)); err != nil {
			s.logger.Warn("history: prune failed",
				slog.String("project", key), slog.String("entry", snap.ID), slog.String("error", err.Error()))
			kept = append(kept, r)
			continue
		}
		removed++
	}
	if removed == 0 {
		return 0, nil
	}
	doc.Snapshots = kept
	if err := s.saveIndex(key, doc); err != nil {
		return removed, err
	}
	s.logger.Info("history: pruned", slog.String("project", key), slog.Int("removed", removed))
	return removed, nil
}

// valid returns the parseable records whose blobs are present.
func (s *Store) valid(key string, doc *indexDoc) []models.Snapshot {
	out := make([]models.Snapshot, 0, len(doc.Snapshots))
	for _, r := range doc.Snapshots {
		snap, err := r.snapshot()
		if err != nil {
			s.logger.Warn("history: skipping corrupt entry",
				slog.String("project", key), slog.String("entry", r.ID), slog.String("error", err.Error()))
			continue
		}
		if !s.fs.Exists(path.Join(key, snap.ID)) {
			s.logger.Warn("history: skipping entry without blob",
				slog.String("project", key), slog.String("entry", snap.ID))
			continue
		}
		out = append(out, snap)
	}
	return out
}

func (s *Store) find(key string, doc *indexDoc, id string) (int, models.Snapshot, error) {
	for i, r := range doc.Snapshots {
		if r.ID != id {
			continue
		}
		snap, err := r.snapshot()
		if err != nil || !s.fs.Exists(path.Join(key, id)) {
			break
		}
		return i, snap, nil
	}
	return -1, models.Snapshot{}, fmt.Errorf("snapshot %q: %w", id, apperr.ErrNotFound)
}

func sortedSlots(arts models.Artifacts) []models.Slot {
	out := make([]models.Slot, 0, len(arts))
	for slot := range arts {
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
