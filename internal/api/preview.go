package api

import "net/http"

// PreviewStatus handles GET /api/preview.
func (h *Handler) PreviewStatus(w http.ResponseWriter, r *http.Request) {
	inst := h.svc.PreviewStatus(r.Context())
	writeJSON(w, http.StatusOK, PreviewResponse{Running: inst != nil, Instance: inst})
}

// StartPreview handles POST /api/preview/{name}. Any running preview is
// stopped first.
func (h *Handler) StartPreview(w http.ResponseWriter, r *http.Request) {
	inst, err := h.svc.StartPreview(r.Context(), projectParam(r))
	if err != nil {
		writeError(w, "start preview", err)
		return
	}
	writeJSON(w, http.StatusCreated, PreviewResponse{Running: true, Instance: inst})
}

// StopPreview handles DELETE /api/preview.
func (h *Handler) StopPreview(w http.ResponseWriter, r *http.Request) {
	h.svc.StopPreview(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
