package index

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/starford/pagesmith/internal/checksum"
	"github.com/starford/pagesmith/internal/models"
)

// Change kinds reported by Refresh and the watcher callback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// Source is the on-disk project store the catalog mirrors.
type Source interface {
	List() ([]string, error)
	Exists(name string) bool
	Get(name string) (*models.Project, error)
	Artifacts(name string) (models.Artifacts, error)
}

// Fingerprint digests a whole artifact set in slot order.
func Fingerprint(arts models.Artifacts) string {
	slots := make([]string, 0, len(arts))
	for s := range arts {
		slots = append(slots, string(s))
	}
	sort.Strings(slots)
	var b strings.Builder
	for _, s := range slots {
		b.WriteString(s)
		b.WriteByte(0)
		b.WriteString(arts[models.Slot(s)])
		b.WriteByte(0)
	}
	return checksum.String(b.String())
}

// Refresh brings one project's catalog row in line with disk and reports
// the kind of change, or "" when nothing changed.
func Refresh(db *DB, src Source, name string) (string, error) {
	prev, err := db.GetChecksum(name)
	if err != nil {
		return "", err
	}
	if !src.Exists(name) {
		if prev == "" {
			return "", nil
		}
		return KindDeleted, db.DeleteProject(name)
	}
	arts, err := src.Artifacts(name)
	if err != nil {
		return "", err
	}
	fp := Fingerprint(arts)
	if fp == prev {
		return "", nil
	}
	p, err := src.Get(name)
	if err != nil {
		return "", err
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	row := ProjectRow{
		Name:      p.Name,
		Title:     p.Title,
		Checksum:  fp,
		Slots:     p.Slots,
		UpdatedAt: updated,
	}
	if err := db.UpsertProject(row); err != nil {
		return "", err
	}
	if prev == "" {
		return KindCreated, nil
	}
	return KindUpdated, nil
}

// Sync walks the projects root and brings the catalog up to date:
//   - new/changed projects are upserted
//   - projects removed from disk are deleted from the catalog
func Sync(db *DB, src Source, logger *slog.Logger) error {
	return syncAll(db, src, logger, nil)
}

func syncAll(db *DB, src Source, logger *slog.Logger, cb EventCallback) error {
	names, err := src.List()
	if err != nil {
		return err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(names))
	for _, name := range names {
		disk[name] = struct{}{}
		kind, err := Refresh(db, src, name)
		if err != nil {
			logger.Warn("sync: index failed", slog.String("project", name), slog.String("error", err.Error()))
			continue
		}
		if kind != "" {
			logger.Debug("sync: indexed", slog.String("project", name), slog.String("op", kind))
			if cb != nil {
				cb(kind, name)
			}
		}
	}

	// Remove stale entries.
	for name := range checksums {
		if _, ok := disk[name]; ok {
			continue
		}
		if err := db.DeleteProject(name); err != nil {
			logger.Warn("sync: delete failed", slog.String("project", name), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("project", name))
		if cb != nil {
			cb(KindDeleted, name)
		}
	}
	return nil
}
