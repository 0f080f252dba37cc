package models

import "time"

// Snapshot labels used by the mutating workflows.
const (
	LabelManualEdit    = "Manual_Edit"
	LabelPreRestore    = "Pre_Restore_Safety"
	LabelPreDelete     = "Pre_Delete"
	LabelAIPrefix      = "AI_"
	LabelStarredSuffix = "_STARRED"
)

// Snapshot is an immutable, labeled copy of a project's artifacts.
type Snapshot struct {
	ID        string    `json:"id" yaml:"id"`
	Label     string    `json:"label" yaml:"label"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Starred   bool      `json:"starred" yaml:"starred"`
	Slots     []Slot    `json:"slots" yaml:"slots"`
}

// Asset is a stored upload.
type Asset struct {
	Filename     string `json:"filename"`
	Path         string `json:"path"`
	EmbedSnippet string `json:"embed_snippet"`
	Size         int64  `json:"size"`
	Kind         string `json:"kind"`
}

// Generation is one journaled generation attempt.
type Generation struct {
	ID         int64     `json:"id"`
	Project    string    `json:"project"`
	Prompt     string    `json:"prompt"`
	Label      string    `json:"label"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	WebSearch  bool      `json:"web_search"`
	Committed  []Slot    `json:"committed"`
	Title      string    `json:"title,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Generation outcomes.
const (
	GenerationOK       = "ok"
	GenerationRejected = "rejected"
	GenerationFailed   = "failed"
)
