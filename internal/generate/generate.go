// Package generate turns a natural-language instruction and the current
// project content into replacement artifacts via a hosted model.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/pagesmith/internal/apperr"
	"github.com/starford/pagesmith/internal/htmldoc"
	"github.com/starford/pagesmith/internal/models"
)

// Default length floors per slot. Shorter replies are treated as truncated.
const (
	DefaultPageFloor   = 20
	DefaultServerFloor = 10
)

// CompleteOptions are the capability flags of one model call.
type CompleteOptions struct {
	// WebSearch grants the model a search tool for current-events requests.
	WebSearch bool
	// JSON asks for a structured JSON reply.
	JSON bool
}

// Completer invokes the model once. Failures wrap apperr.ErrTransport.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, error)
}

// Content is the project store the orchestrator reads and commits through.
type Content interface {
	Slots() []models.Slot
	Artifacts(name string) (models.Artifacts, error)
	Write(name string, slot models.Slot, text string) error
}

// Snapshotter records the pre-generation snapshot.
type Snapshotter interface {
	Snapshot(name, label string) (*models.Snapshot, error)
}

// Request is one generation attempt.
type Request struct {
	Project   string
	Prompt    string
	WebSearch bool
}

// Result reports what happened to each slot.
type Result struct {
	Label      string        `json:"label"`
	SnapshotID string        `json:"snapshot_id,omitempty"`
	Committed  []models.Slot `json:"committed"`
	Rejected   []models.Slot `json:"rejected"`
	Title      string        `json:"title,omitempty"`
}

// Orchestrator runs the compose, snapshot, invoke, sanitize and commit
// sequence. Callers serialize calls per project.
type Orchestrator struct {
	model     Completer
	content   Content
	history   Snapshotter
	floors    map[models.Slot]int
	webSearch bool
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHistory enables the pre-generation snapshot.
func WithHistory(h Snapshotter) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithFloors overrides the minimum accepted length per slot. Zero keeps the default.
func WithFloors(page, server int) Option {
	return func(o *Orchestrator) {
		if page > 0 {
			o.floors[models.SlotPage] = page
		}
		if server > 0 {
			o.floors[models.SlotServer] = server
		}
	}
}

// WithWebSearch allows requests to ask for the search tool.
func WithWebSearch(enabled bool) Option {
	return func(o *Orchestrator) { o.webSearch = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator over model and content.
func New(model Completer, content Content, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:   model,
		content: content,
		floors: map[models.Slot]int{
			models.SlotPage:   DefaultPageFloor,
			models.SlotServer: DefaultServerFloor,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) multi() bool {
	for _, s := range o.content.Slots() {
		if s == models.SlotServer {
			return true
		}
	}
	return false
}

// Compose renders the model input for the project's current content.
func (o *Orchestrator) Compose(prompt string, arts models.Artifacts) string {
	data := map[string]string{
		"prompt":       strings.TrimSpace(prompt),
		"current_page": orEmpty(arts[models.SlotPage]),
	}
	if o.multi() {
		data["current_server"] = orEmpty(arts[models.SlotServer])
		return multiPrompt.Render(data)
	}
	return pagePrompt.Render(data)
}

func orEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyContext
	}
	return s
}

// Generate runs one attempt. On a model failure the returned Result still
// carries the label and snapshot id, and the error wraps apperr.ErrTransport.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", apperr.ErrRejected)
	}
	arts, err := o.content.Artifacts(req.Project)
	if err != nil {
		return nil, err
	}
	input := o.Compose(req.Prompt, arts)

	res := &Result{
		Label:     SummaryLabel(req.Prompt),
		Committed: []models.Slot{},
		Rejected:  []models.Slot{},
	}
	if o.history != nil {
		snap, err := o.history.Snapshot(req.Project, res.Label)
		if err != nil {
			return nil, fmt.Errorf("generate: snapshot: %w", err)
		}
		if snap != nil {
			res.SnapshotID = snap.ID
		}
	}

	multi := o.multi()
	opts := CompleteOptions{WebSearch: req.WebSearch && o.webSearch, JSON: multi}
	reply, err := o.model.Complete(ctx, input, opts)
	if err != nil {
		if !errors.Is(err, apperr.ErrTransport) {
			err = fmt.Errorf("%w: %v", apperr.ErrTransport, err)
		}
		return res, err
	}

	outputs := models.Artifacts{models.SlotPage: StripFences(reply)}
	if multi {
		if outputs, err = DecodeMulti(reply); err != nil {
			return res, err
		}
	}

	for _, slot := range o.content.Slots() {
		text := outputs[slot]
		if len(strings.TrimSpace(text)) < o.floors[slot] {
			o.logger.Warn("generate: reply below length floor, not committed",
				slog.String("project", req.Project),
				slog.String("slot", string(slot)),
				slog.Int("length", len(text)))
			res.Rejected = append(res.Rejected, slot)
			continue
		}
		if err := o.content.Write(req.Project, slot, text); err != nil {
			return res, fmt.Errorf("generate: commit %s: %w", slot, err)
		}
		res.Committed = append(res.Committed, slot)
		if slot == models.SlotPage {
			res.Title = htmldoc.Title(text)
			if !htmldoc.IsComplete(text) {
				o.logger.Warn("generate: page is not a complete document",
					slog.String("project", req.Project))
			}
		}
	}
	return res, nil
}
