package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/pagesmith/internal/models"
	"github.com/starford/pagesmith/internal/workspace"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *workspace.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *workspace.Service) *Handler {
	return &Handler{svc: svc}
}

func projectParam(r *http.Request) string { return chi.URLParam(r, "name") }

func slotParam(r *http.Request) models.Slot { return models.Slot(chi.URLParam(r, "slot")) }

func limitParam(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

// ListProjects handles GET /api/projects.
//
//	@Summary		List projects
//	@Tags			projects
//	@Produce		json
//	@Success		200	{object}	ProjectListResponse
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListProjects(r.Context())
	if err != nil {
		writeError(w, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{Projects: items, Total: len(items)})
}

// CreateProject handles POST /api/projects.
//
//	@Summary		Create a project from the starter templates
//	@Tags			projects
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateProjectRequest	true	"Project to create"
//	@Success		201		{object}	models.Project
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects [post]
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProject(r.Context(), req.Name)
	if err != nil {
		writeError(w, "create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// DeleteProject handles DELETE /api/projects/{name}.
//
//	@Summary		Delete a project after a Pre_Delete snapshot
//	@Tags			projects
//	@Param			name	path	string	true	"Project name"
//	@Success		204		"Project deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{name} [delete]
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProject(r.Context(), projectParam(r)); err != nil {
		writeError(w, "delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetArtifact handles GET /api/projects/{name}/artifacts/{slot}.
//
//	@Summary		Get one artifact
//	@Tags			artifacts
//	@Produce		json
//	@Param			name	path		string	true	"Project name"
//	@Param			slot	path		string	true	"Artifact slot"	Enums(page, server)
//	@Success		200		{object}	Artifact
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{name}/artifacts/{slot} [get]
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	art, err := h.svc.GetArtifact(r.Context(), projectParam(r), slotParam(r))
	if err != nil {
		writeError(w, "get artifact", err)
		return
	}
	w.Header().Set("ETag", `"`+art.Checksum+`"`)
	writeJSON(w, http.StatusOK, art)
}

// SaveArtifact handles PUT /api/projects/{name}/artifacts/{slot}.
//
//	@Summary		Save an artifact after a Manual_Edit snapshot
//	@Tags			artifacts
//	@Accept			json
//	@Produce		json
//	@Param			name		path		string				true	"Project name"
//	@Param			slot		path		string				true	"Artifact slot"
//	@Param			If-Match	header		string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		SaveArtifactRequest	true	"New content"
//	@Success		200			{object}	Artifact
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{name}/artifacts/{slot} [put]
func (h *Handler) SaveArtifact(w http.ResponseWriter, r *http.Request) {
	var req SaveArtifactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	art, err := h.svc.SaveArtifact(r.Context(), projectParam(r), slotParam(r), req.Code, ifMatch)
	if err != nil {
		writeError(w, "save artifact", err)
		return
	}
	w.Header().Set("ETag", `"`+art.Checksum+`"`)
	writeJSON(w, http.StatusOK, art)
}

// DownloadArtifact handles GET /api/projects/{name}/artifacts/{slot}/download.
func (h *Handler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	slot := slotParam(r)
	abs, err := h.svc.ArtifactPath(r.Context(), projectParam(r), slot)
	if err != nil {
		writeError(w, "download artifact", err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+slot.FileName()+`"`)
	http.ServeFile(w, r, abs)
}

// ExportProject handles GET /api/projects/{name}/export.
func (h *Handler) ExportProject(w http.ResponseWriter, r *http.Request) {
	name := projectParam(r)
	var buf bytes.Buffer
	if err := h.svc.ExportZip(r.Context(), name, &buf); err != nil {
		writeError(w, "export project", err)
		return
	}
	writeZip(w, name+".zip", buf.Bytes())
}

func writeZip(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Generate handles POST /api/projects/{name}/generate.
//
//	@Summary		Rewrite the project's artifacts from a natural-language prompt
//	@Tags			generate
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string			true	"Project name"
//	@Param			body	body		GenerateRequest	true	"Instruction"
//	@Success		200		{object}	generate.Result
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{name}/generate [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Generate(r.Context(), projectParam(r), req.Prompt, req.WebSearch)
	if err != nil {
		writeError(w, "generate", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Generations handles GET /api/projects/{name}/generations.
func (h *Handler) Generations(w http.ResponseWriter, r *http.Request) {
	gens, err := h.svc.Generations(r.Context(), projectParam(r), limitParam(r))
	if err != nil {
		writeError(w, "list generations", err)
		return
	}
	writeJSON(w, http.StatusOK, GenerationsResponse{Generations: gens})
}

// SearchGenerations handles GET /api/generations/search.
//
//	@Summary		Search journaled prompts across projects
//	@Tags			generate
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/generations/search [get]
func (h *Handler) SearchGenerations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	results, err := h.svc.SearchGenerations(r.Context(), q, limitParam(r))
	if err != nil {
		writeError(w, "search generations", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
