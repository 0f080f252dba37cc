// Package workspace coordinates the project, history, generation, asset
// and catalog stores behind one API used by the HTTP and MCP surfaces.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/pagesmith/internal/apperr"
	"github.com/starford/pagesmith/internal/assets"
	"github.com/starford/pagesmith/internal/checksum"
	"github.com/starford/pagesmith/internal/generate"
	"github.com/starford/pagesmith/internal/history"
	"github.com/starford/pagesmith/internal/index"
	"github.com/starford/pagesmith/internal/keylock"
	"github.com/starford/pagesmith/internal/models"
	"github.com/starford/pagesmith/internal/preview"
	"github.com/starford/pagesmith/internal/project"
	"github.com/starford/pagesmith/internal/sse"
)

// Artifact is the full representation of one slot.
type Artifact struct {
	Project  string      `json:"project"`
	Slot     models.Slot `json:"slot"`
	Code     string      `json:"code"`
	Checksum string      `json:"checksum"`
}

// Events receives change notifications. *sse.Broker satisfies it.
type Events interface {
	Publish(event sse.Event)
	PublishProjectEvent(kind, name string)
}

// Deps are the collaborators of a Service. History and Preview may be nil
// to disable those features.
type Deps struct {
	Projects  *project.Store
	History   *history.Store
	Generator *generate.Orchestrator
	Assets    *assets.Store
	Catalog   *index.DB
	Preview   *preview.Supervisor
	Events    Events
	Logger    *slog.Logger
}

// Service owns the per-project exclusive section: every operation that
// writes artifacts runs under the project's lock.
type Service struct {
	projects *project.Store
	history  *history.Store
	gen      *generate.Orchestrator
	assets   *assets.Store
	db       *index.DB
	preview  *preview.Supervisor
	events   Events
	locks    *keylock.Map
	logger   *slog.Logger
}

// NewService creates a workspace service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		projects: d.Projects,
		history:  d.History,
		gen:      d.Generator,
		assets:   d.Assets,
		db:       d.Catalog,
		preview:  d.Preview,
		events:   d.Events,
		locks:    keylock.New(),
		logger:   logger,
	}
}

// Slots returns the artifact slots every project carries.
func (s *Service) Slots() []models.Slot { return s.projects.Slots() }

// HistoryEnabled reports whether snapshots are taken.
func (s *Service) HistoryEnabled() bool { return s.history != nil }

// lock sanitizes name and takes its exclusive section.
func (s *Service) lock(name string) (string, func(), error) {
	key, err := project.Sanitize(name)
	if err != nil {
		return "", nil, err
	}
	return key, s.locks.Lock(key), nil
}

func (s *Service) requireProject(key string) error {
	if !s.projects.Exists(key) {
		return fmt.Errorf("project %q: %w", key, apperr.ErrNotFound)
	}
	return nil
}

func (s *Service) slot(slot models.Slot) error {
	if !s.projects.HasSlot(slot) {
		return fmt.Errorf("%w: unknown artifact slot %q", apperr.ErrNotFound, slot)
	}
	return nil
}

// snapshot records a pre-mutation snapshot when history is enabled.
func (s *Service) snapshot(key, label string) error {
	if s.history == nil {
		return nil
	}
	if _, err := s.history.Snapshot(key, label); err != nil {
		return fmt.Errorf("workspace: %s snapshot: %w", label, err)
	}
	return nil
}

// refresh re-syncs the catalog row and publishes the resulting change.
func (s *Service) refresh(key string) {
	if s.db == nil {
		return
	}
	kind, err := index.Refresh(s.db, s.projects, key)
	if err != nil {
		s.logger.Warn("workspace: catalog refresh failed", slog.String("project", key), slog.String("error", err.Error()))
		return
	}
	if kind != "" && s.events != nil {
		s.events.PublishProjectEvent(kind, key)
	}
}

func (s *Service) publish(typ string, data any) {
	if s.events != nil {
		s.events.Publish(sse.Event{Type: typ, Data: data})
	}
}

func (s *Service) historyChanged(key string) {
	if s.history != nil {
		s.publish(sse.TypeHistoryChanged, map[string]string{"project": key})
	}
}

// ListProjects returns the catalog rows in name order.
func (s *Service) ListProjects(_ context.Context) ([]models.Project, error) {
	if s.db == nil {
		return s.listFromDisk()
	}
	rows, err := s.db.ListProjects()
	if err != nil {
		return nil, err
	}
	out := make([]models.Project, len(rows))
	for i, r := range rows {
		out[i] = r.Project()
	}
	return out, nil
}

func (s *Service) listFromDisk() ([]models.Project, error) {
	names, err := s.projects.List()
	if err != nil {
		return nil, err
	}
	out := make([]models.Project, 0, len(names))
	for _, n := range names {
		p, err := s.projects.Get(n)
		if err != nil {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// CreateProject materializes a new project from the starter templates.
func (s *Service) CreateProject(_ context.Context, name string) (*models.Project, error) {
	key, unlock, err := s.lock(name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.projects.Create(name)
	if err != nil {
		return nil, err
	}
	s.refresh(key)
	s.logger.Info("workspace: project created", slog.String("project", key))
	return p, nil
}

// DeleteProject takes a Pre_Delete snapshot and removes the project.
func (s *Service) DeleteProject(_ context.Context, name string) error {
	key, unlock, err := s.lock(name)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.requireProject(key); err != nil {
		return err
	}
	if err := s.snapshot(key, models.LabelPreDelete); err != nil {
		return err
	}
	if err := s.projects.Delete(key); err != nil {
		return err
	}
	s.refresh(key)
	s.historyChanged(key)
	s.logger.Info("workspace: project deleted", slog.String("project", key))
	return nil
}

// GetArtifact returns one slot of an existing project.
func (s *Service) GetArtifact(_ context.Context, name string, slot models.Slot) (*Artifact, error) {
	key, err := project.Sanitize(name)
	if err != nil {
		return nil, err
	}
	if err := s.slot(slot); err != nil {
		return nil, err
	}
	if err := s.requireProject(key); err != nil {
		return nil, err
	}
	code, err := s.projects.Read(key, slot)
	if err != nil {
		return nil, err
	}
	return &Artifact{Project: key, Slot: slot, Code: code, Checksum: checksum.String(code)}, nil
}

// ArtifactPath returns the file path of a slot for streaming.
func (s *Service) ArtifactPath(_ context.Context, name string, slot models.Slot) (string, error) {
	return s.projects.Path(name, slot)
}

// SaveArtifact snapshots the live state as Manual_Edit and writes code.
// A non-empty ifMatch must equal the checksum of the current content.
func (s *Service) SaveArtifact(_ context.Context, name string, slot models.Slot, code, ifMatch string) (*Artifact, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: code is required", apperr.ErrRejected)
	}
	if err := s.slot(slot); err != nil {
		return nil, err
	}
	key, unlock, err := s.lock(name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.requireProject(key); err != nil {
		return nil, err
	}
	current, err := s.projects.Read(key, slot)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.String(current) {
		return nil, apperr.ErrConflict
	}
	if err := s.snapshot(key, models.LabelManualEdit); err != nil {
		return nil, err
	}
	if err := s.projects.Write(key, slot, code); err != nil {
		return nil, err
	}
	s.refresh(key)
	s.historyChanged(key)
	return &Artifact{Project: key, Slot: slot, Code: code, Checksum: checksum.String(code)}, nil
}

// Generate runs one generation attempt under the project's lock and
// journals its outcome.
func (s *Service) Generate(ctx context.Context, name, prompt string, webSearch bool) (*generate.Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", apperr.ErrRejected)
	}
	key, unlock, err := s.lock(name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.requireProject(key); err != nil {
		return nil, err
	}

	start := time.Now()
	res, genErr := s.gen.Generate(ctx, generate.Request{Project: key, Prompt: prompt, WebSearch: webSearch})

	entry := models.Generation{
		Project:    key,
		Prompt:     prompt,
		WebSearch:  webSearch,
		StartedAt:  start.UTC(),
		DurationMS: time.Since(start).Milliseconds(),
		Status:     models.GenerationOK,
	}
	if res != nil {
		entry.Label = res.Label
		entry.Committed = res.Committed
		entry.Title = res.Title
		if len(res.Committed) == 0 {
			entry.Status = models.GenerationRejected
		}
	}
	if genErr != nil {
		entry.Status = models.GenerationFailed
		entry.Error = genErr.Error()
	}
	s.journal(entry)

	if res != nil && res.SnapshotID != "" {
		s.historyChanged(key)
	}
	if res != nil && len(res.Committed) > 0 {
		s.refresh(key)
	}
	if genErr != nil {
		s.logger.Warn("workspace: generation failed", slog.String("project", key), slog.String("error", genErr.Error()))
		return res, genErr
	}
	s.publish(sse.TypeGenerationFinished, map[string]any{
		"project":   key,
		"committed": res.Committed,
		"rejected":  res.Rejected,
	})
	s.logger.Info("workspace: generation finished",
		slog.String("project", key),
		slog.Int("committed", len(res.Committed)),
		slog.Int("rejected", len(res.Rejected)),
		slog.Int64("duration_ms", entry.DurationMS))
	return res, nil
}

func (s *Service) journal(g models.Generation) {
	if s.db == nil {
		return
	}
	if _, err := s.db.RecordGeneration(g); err != nil {
		s.logger.Warn("workspace: journal write failed", slog.String("project", g.Project), slog.String("error", err.Error()))
	}
}

// Generations returns the newest journaled attempts for a project.
func (s *Service) Generations(_ context.Context, name string, limit int) ([]models.Generation, error) {
	key, err := project.Sanitize(name)
	if err != nil {
		return nil, err
	}
	if s.db == nil {
		return []models.Generation{}, nil
	}
	return s.db.Generations(key, limit)
}

// SearchGenerations searches journaled prompts across projects.
func (s *Service) SearchGenerations(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", apperr.ErrRejected)
	}
	if s.db == nil {
		return []index.SearchResult{}, nil
	}
	return s.db.SearchGenerations(query, limit)
}

var errHistoryDisabled = fmt.Errorf("history is disabled: %w", apperr.ErrNotFound)

// History lists a project's snapshots newest first. It works for deleted
// projects so their Pre_Delete snapshot can be restored.
func (s *Service) History(_ context.Context, name string) ([]models.Snapshot, error) {
	if s.history == nil {
		if _, err := project.Sanitize(name); err != nil {
			return nil, err
		}
		return []models.Snapshot{}, nil
	}
	return s.history.List(name)
}

// Restore replaces the live artifacts with a snapshot after a safety snapshot.
func (s *Service) Restore(_ context.Context, name, id string) (*models.Snapshot, error) {
	if s.history == nil {
		return nil, errHistoryDisabled
	}
	key, unlock, err := s.lock(name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	safety, err := s.history.Restore(key, id)
	if err != nil {
		return nil, err
	}
	s.refresh(key)
	s.historyChanged(key)
	s.logger.Info("workspace: snapshot restored", slog.String("project", key), slog.String("id", id))
	return safety, nil
}

// ToggleStar flips a snapshot's starred flag.
func (s *Service) ToggleStar(_ context.Context, name, id string) (*models.Snapshot, error) {
	if s.history == nil {
		return nil, errHistoryDisabled
	}
	snap, err := s.history.ToggleStar(name, id)
	if err != nil {
		return nil, err
	}
	s.historyChanged(mustKey(name))
	return snap, nil
}

// DeleteSnapshot removes one snapshot.
func (s *Service) DeleteSnapshot(_ context.Context, name, id string) error {
	if s.history == nil {
		return errHistoryDisabled
	}
	if err := s.history.Delete(name, id); err != nil {
		return err
	}
	s.historyChanged(mustKey(name))
	return nil
}

// Prune removes expired unstarred snapshots and reports how many.
func (s *Service) Prune(_ context.Context, name string) (int, error) {
	if s.history == nil {
		return 0, errHistoryDisabled
	}
	n, err := s.history.Prune(name)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.historyChanged(mustKey(name))
	}
	return n, nil
}

// mustKey sanitizes a name already validated by a store call.
func mustKey(name string) string {
	key, _ := project.Sanitize(name)
	return key
}

// ExportZip writes the project's current artifacts as a zip archive.
func (s *Service) ExportZip(_ context.Context, name string, w io.Writer) error {
	key, err := project.Sanitize(name)
	if err != nil {
		return err
	}
	if err := s.requireProject(key); err != nil {
		return err
	}
	arts, err := s.projects.Artifacts(key)
	if err != nil {
		return err
	}
	return writeZip(w, key, arts)
}

// SnapshotZip writes one snapshot's artifacts as a zip archive.
func (s *Service) SnapshotZip(_ context.Context, name, id string, w io.Writer) error {
	if s.history == nil {
		return errHistoryDisabled
	}
	snap, arts, err := s.history.Get(name, id)
	if err != nil {
		return err
	}
	return writeZip(w, snap.ID, arts)
}

// MaxUploadSize is the per-asset byte limit.
func (s *Service) MaxUploadSize() int64 { return s.assets.MaxSize() }

// Upload stores an uploaded asset.
func (s *Service) Upload(_ context.Context, filename string, r io.Reader) (*models.Asset, error) {
	return s.assets.Upload(filename, r)
}

// UploadRemote stores an asset given as a data URI or an http(s) URL.
func (s *Service) UploadRemote(ctx context.Context, source, filename string) (*models.Asset, error) {
	if strings.HasPrefix(source, "data:") {
		return s.assets.UploadDataURI(source, filename)
	}
	return s.assets.UploadURL(ctx, source, filename)
}

// AssetPath resolves a stored asset for serving.
func (s *Service) AssetPath(_ context.Context, filename string) (string, error) {
	return s.assets.Open(filename)
}

var errPreviewDisabled = errors.New("preview is disabled")

// StartPreview launches the preview server for a project, replacing any
// running preview.
func (s *Service) StartPreview(_ context.Context, name string) (*preview.Instance, error) {
	if s.preview == nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrRejected, errPreviewDisabled)
	}
	dir, err := s.projects.Dir(name)
	if err != nil {
		return nil, err
	}
	return s.preview.Start(mustKey(name), dir)
}

// StopPreview stops the running preview, if any.
func (s *Service) StopPreview(_ context.Context) {
	if s.preview != nil {
		s.preview.Stop()
	}
}

// PreviewStatus returns the running preview, or nil.
func (s *Service) PreviewStatus(_ context.Context) *preview.Instance {
	if s.preview == nil {
		return nil
	}
	inst, ok := s.preview.Status()
	if !ok {
		return nil
	}
	return inst
}
