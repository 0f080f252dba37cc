package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/pagesmith/internal/workspace"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *workspace.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	uh := NewUploadHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.CreateProject)
	r.Route("/projects/{name}", func(r chi.Router) {
		r.Delete("/", h.DeleteProject)
		r.Get("/export", h.ExportProject)
		r.Post("/generate", h.Generate)
		r.Get("/generations", h.Generations)

		r.Get("/artifacts/{slot}", h.GetArtifact)
		r.Put("/artifacts/{slot}", h.SaveArtifact)
		r.Get("/artifacts/{slot}/download", h.DownloadArtifact)

		r.Get("/history", h.History)
		r.Post("/history/prune", h.Prune)
		r.Delete("/history/{id}", h.DeleteSnapshot)
		r.Post("/history/{id}/restore", h.Restore)
		r.Post("/history/{id}/star", h.ToggleStar)
		r.Get("/history/{id}/download", h.DownloadSnapshot)
	})

	r.Get("/generations/search", h.SearchGenerations)

	r.Post("/uploads", uh.Upload)

	r.Get("/preview", h.PreviewStatus)
	r.Post("/preview/{name}", h.StartPreview)
	r.Delete("/preview", h.StopPreview)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
