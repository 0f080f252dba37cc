package api

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/pagesmith/internal/workspace"
)

// UploadHandler serves and accepts asset files.
type UploadHandler struct {
	svc *workspace.Service
}

// NewUploadHandler creates an upload handler over the workspace's asset store.
func NewUploadHandler(svc *workspace.Service) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// ServeFile handles GET /uploads/{filename}.
func (h *UploadHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := h.svc.AssetPath(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, "serve upload", err)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/uploads. A multipart/form-data body carries the
// file in field "file"; a JSON body names a data URI or URL to ingest.
//
//	@Summary		Upload an image or video asset
//	@Tags			uploads
//	@Accept			multipart/form-data
//	@Accept			json
//	@Produce		json
//	@Param			file	formData	file				false	"Asset file"
//	@Param			body	body		RemoteUploadRequest	false	"Remote source"
//	@Success		201		{object}	models.Asset
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/uploads [post]
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		h.uploadRemote(w, r)
		return
	}

	limit := h.svc.MaxUploadSize()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	asset, err := h.svc.Upload(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, "upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (h *UploadHandler) uploadRemote(w http.ResponseWriter, r *http.Request) {
	var req RemoteUploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Source == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("source is required"))
		return
	}
	asset, err := h.svc.UploadRemote(r.Context(), req.Source, req.Filename)
	if err != nil {
		writeError(w, "upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}
