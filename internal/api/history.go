package api

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func snapshotParam(r *http.Request) string { return chi.URLParam(r, "id") }

// History handles GET /api/projects/{name}/history.
//
//	@Summary		List snapshots newest first
//	@Tags			history
//	@Produce		json
//	@Param			name	path		string	true	"Project name"
//	@Success		200		{object}	HistoryResponse
//	@Security		BearerAuth
//	@Router			/projects/{name}/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.svc.History(r.Context(), projectParam(r))
	if err != nil {
		writeError(w, "list history", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Enabled: h.svc.HistoryEnabled(), Snapshots: snaps})
}

// Restore handles POST /api/projects/{name}/history/{id}/restore.
// The response carries the safety snapshot taken before the swap.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	safety, err := h.svc.Restore(r.Context(), projectParam(r), snapshotParam(r))
	if err != nil {
		writeError(w, "restore snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restored": snapshotParam(r), "safety": safety})
}

// ToggleStar handles POST /api/projects/{name}/history/{id}/star.
func (h *Handler) ToggleStar(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.ToggleStar(r.Context(), projectParam(r), snapshotParam(r))
	if err != nil {
		writeError(w, "toggle star", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// DeleteSnapshot handles DELETE /api/projects/{name}/history/{id}.
func (h *Handler) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSnapshot(r.Context(), projectParam(r), snapshotParam(r)); err != nil {
		writeError(w, "delete snapshot", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadSnapshot handles GET /api/projects/{name}/history/{id}/download.
func (h *Handler) DownloadSnapshot(w http.ResponseWriter, r *http.Request) {
	id := snapshotParam(r)
	var buf bytes.Buffer
	if err := h.svc.SnapshotZip(r.Context(), projectParam(r), id, &buf); err != nil {
		writeError(w, "download snapshot", err)
		return
	}
	writeZip(w, id+".zip", buf.Bytes())
}

// Prune handles POST /api/projects/{name}/history/prune.
func (h *Handler) Prune(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Prune(r.Context(), projectParam(r))
	if err != nil {
		writeError(w, "prune history", err)
		return
	}
	writeJSON(w, http.StatusOK, PruneResponse{Removed: n})
}
