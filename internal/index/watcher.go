package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/pagesmith/internal/models"
)

// EventCallback is called after a watcher-driven catalog change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, project string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the projects root and processes
// artifact change events until ctx is cancelled. It calls cb (if non-nil)
// after each catalog mutation, so edits made outside the service show up
// as project events.
//
// Project directories created at runtime are added to the watch list.
// Renames of whole directories (restore swaps, external moves) trigger a
// debounced reconciliation pass over the entire root.
func Watch(ctx context.Context, db *DB, src Source, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addProjectDirs(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := syncAll(db, src, logger, cb); err != nil {
				logger.Warn("reconcile: failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name, file, ok := splitEvent(root, ev.Name)
			if !ok {
				continue
			}

			// Top-level directory events.
			if file == "" {
				if ev.Op&fsnotify.Create != 0 {
					if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
						if addErr := w.Add(ev.Name); addErr != nil {
							logger.Warn("watcher: add new dir failed",
								slog.String("path", ev.Name),
								slog.String("error", addErr.Error()))
						}
					}
				}
				scheduleReconcile()
				continue
			}
			if !isArtifactFile(file) {
				continue
			}

			kind, refreshErr := Refresh(db, src, name)
			if refreshErr != nil {
				logger.Warn("watcher: index failed", slog.String("project", name), slog.String("error", refreshErr.Error()))
				continue
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReconcile()
			}
			if kind == "" {
				continue
			}
			logger.Debug("watcher: indexed", slog.String("project", name), slog.String("op", kind))
			if cb != nil {
				cb(kind, name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// splitEvent maps an absolute event path to its project and file name.
// Hidden entries (stage dirs, temp files, sidecars) are ignored.
func splitEvent(root, abs string) (project, file string, ok bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if strings.HasPrefix(parts[0], ".") {
		return "", "", false
	}
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		if strings.HasPrefix(parts[1], ".") {
			return "", "", false
		}
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}

func isArtifactFile(name string) bool {
	return name == models.SlotPage.FileName() || name == models.SlotServer.FileName()
}

// addProjectDirs adds root and each visible project directory to the watcher.
func addProjectDirs(w *fsnotify.Watcher, root string) error {
	if err := w.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := w.Add(filepath.Join(root, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
