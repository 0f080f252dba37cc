package api

import (
	"github.com/starford/pagesmith/internal/index"
	"github.com/starford/pagesmith/internal/models"
	"github.com/starford/pagesmith/internal/preview"
	"github.com/starford/pagesmith/internal/workspace"
)

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name string `json:"name" example:"My Blog" validate:"required"`
}

// SaveArtifactRequest is the request body for saving an artifact.
type SaveArtifactRequest struct {
	Code string `json:"code" example:"<!DOCTYPE html><html>...</html>" validate:"required"`
}

// GenerateRequest is the request body for a generation.
type GenerateRequest struct {
	Prompt    string `json:"prompt" example:"add a footer" validate:"required"`
	WebSearch bool   `json:"web_search"`
}

// RemoteUploadRequest asks the server to ingest a data URI or an http(s) URL.
type RemoteUploadRequest struct {
	Source   string `json:"source" example:"https://example.com/cat.png" validate:"required"`
	Filename string `json:"filename,omitempty" example:"cat.png"`
}

// Artifact is the full artifact response type (aliased from the domain layer).
type Artifact = workspace.Artifact

// ProjectListResponse wraps the catalog listing.
type ProjectListResponse struct {
	Projects []models.Project `json:"projects" validate:"required"`
	Total    int              `json:"total" example:"3" validate:"required"`
}

// HistoryResponse wraps a project's snapshots, newest first.
type HistoryResponse struct {
	Enabled   bool              `json:"enabled"`
	Snapshots []models.Snapshot `json:"snapshots" validate:"required"`
}

// PruneResponse reports how many snapshots a prune removed.
type PruneResponse struct {
	Removed int `json:"removed" example:"2"`
}

// GenerationsResponse wraps journaled generation attempts.
type GenerationsResponse struct {
	Generations []models.Generation `json:"generations" validate:"required"`
}

// SearchResponse wraps prompt search hits.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// PreviewResponse reports the running preview, if any.
type PreviewResponse struct {
	Running  bool              `json:"running"`
	Instance *preview.Instance `json:"instance,omitempty"`
}
