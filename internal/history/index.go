package history

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/pagesmith/internal/models"
)

const (
	indexFile = "_index.yaml"
	keyLayout = "20060102_150405"
	// starMarker inside a blob directory mirrors the starred flag so a
	// rebuilt index does not lose it.
	starMarker = ".starred"
)

var (
	// legacyKeyRe matches blob directory names written before the sidecar
	// index existed: YYYYMMDD_HHMMSS__Label[_STARRED].
	legacyKeyRe = regexp.MustCompile(`^(\d{8}_\d{6})__(.+)$`)
	labelRe     = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// record is the on-disk form of a snapshot. CreatedAt stays a string so a
// single malformed entry cannot fail decoding of the whole index.
type record struct {
	ID        string        `yaml:"id"`
	Label     string        `yaml:"label"`
	CreatedAt string        `yaml:"created_at"`
	Starred   bool          `yaml:"starred,omitempty"`
	Slots     []models.Slot `yaml:"slots,flow"`
}

type indexDoc struct {
	Snapshots []record `yaml:"snapshots"`

	// rebuilt is set when the sidecar could not be decoded and the records
	// were recovered from blob directories.
	rebuilt bool
}

func (r record) snapshot() (models.Snapshot, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("history: entry %q: bad timestamp %q: %w", r.ID, r.CreatedAt, err)
	}
	if r.ID == "" {
		return models.Snapshot{}, fmt.Errorf("history: entry without id")
	}
	return models.Snapshot{
		ID:        r.ID,
		Label:     r.Label,
		CreatedAt: ts,
		Starred:   r.Starred,
		Slots:     r.Slots,
	}, nil
}

func newRecord(s models.Snapshot) record {
	return record{
		ID:        s.ID,
		Label:     s.Label,
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339Nano),
		Starred:   s.Starred,
		Slots:     s.Slots,
	}
}

// cleanLabel restricts a label to name-safe characters.
func cleanLabel(label string) string {
	l := strings.Trim(labelRe.ReplaceAllString(label, "_"), "_")
	if l == "" {
		return "Snapshot"
	}
	return l
}

// parseLegacyKey decodes a pre-index blob directory name.
func parseLegacyKey(key string) (models.Snapshot, error) {
	m := legacyKeyRe.FindStringSubmatch(key)
	if m == nil {
		return models.Snapshot{}, fmt.Errorf("history: unrecognised snapshot key %q", key)
	}
	ts, err := time.ParseInLocation(keyLayout, m[1], time.UTC)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("history: snapshot key %q: %w", key, err)
	}
	label, starred := strings.CutSuffix(m[2], models.LabelStarredSuffix)
	if label == "" {
		return models.Snapshot{}, fmt.Errorf("history: snapshot key %q has no label", key)
	}
	return models.Snapshot{ID: key, Label: label, CreatedAt: ts, Starred: starred}, nil
}

// loadIndex reads the sidecar index of a project and adopts legacy blob
// directories that have no record yet. Adoption is persisted.
func (s *Store) loadIndex(project string) (*indexDoc, error) {
	doc := &indexDoc{}
	data, err := s.fs.Read(path.Join(project, indexFile))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, doc); err != nil {
			s.logger.Warn("history: index unreadable, rebuilding from blob keys",
				slog.String("project", project), slog.String("error", err.Error()))
			doc = &indexDoc{rebuilt: true}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if !s.fs.Exists(project) {
		return doc, nil
	}
	dirs, err := s.fs.Dirs(project)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(doc.Snapshots))
	for _, r := range doc.Snapshots {
		known[r.ID] = struct{}{}
	}
	adopted := 0
	for _, d := range dirs {
		if _, ok := known[d]; ok {
			continue
		}
		snap, err := parseLegacyKey(d)
		if err != nil {
			s.logger.Warn("history: skipping corrupt entry",
				slog.String("project", project), slog.String("entry", d), slog.String("error", err.Error()))
			continue
		}
		snap.Slots = s.blobSlots(project, d)
		if s.fs.Exists(path.Join(project, d, starMarker)) {
			snap.Starred = true
		}
		doc.Snapshots = append(doc.Snapshots, newRecord(snap))
		adopted++
	}
	if adopted > 0 {
		if err := s.saveIndex(project, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (s *Store) saveIndex(project string, doc *indexDoc) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("history: encode index: %w", err)
	}
	return s.fs.Write(path.Join(project, indexFile), data)
}

// markStar writes or removes the star marker of a blob directory.
func (s *Store) markStar(project, id string, starred bool) error {
	p := path.Join(project, id, starMarker)
	if starred {
		return s.fs.Write(p, nil)
	}
	if !s.fs.Exists(p) {
		return nil
	}
	return s.fs.Delete(p)
}

// blobSlots lists the slots present in a blob directory.
func (s *Store) blobSlots(project, id string) []models.Slot {
	var out []models.Slot
	for _, slot := range []models.Slot{models.SlotPage, models.SlotServer} {
		if s.fs.Exists(path.Join(project, id, slot.FileName())) {
			out = append(out, slot)
		}
	}
	return out
}

// nextID derives a collision-free key for a snapshot. Same-second,
// same-label snapshots get a -2, -3, ... counter.
func (s *Store) nextID(project string, doc *indexDoc, ts time.Time, label string) string {
	base := ts.UTC().Format(keyLayout) + "__" + label
	taken := func(id string) bool {
		for _, r := range doc.Snapshots {
			if r.ID == id {
				return true
			}
		}
		return s.fs.Exists(path.Join(project, id))
	}
	id := base
	for n := 2; taken(id); n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	return id
}
