// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/pagesmith/internal/api"
	"github.com/starford/pagesmith/internal/assets"
	"github.com/starford/pagesmith/internal/generate"
	"github.com/starford/pagesmith/internal/history"
	"github.com/starford/pagesmith/internal/index"
	"github.com/starford/pagesmith/internal/llm"
	"github.com/starford/pagesmith/internal/mcpserver"
	"github.com/starford/pagesmith/internal/preview"
	"github.com/starford/pagesmith/internal/project"
	"github.com/starford/pagesmith/internal/sse"
	"github.com/starford/pagesmith/internal/storage"
	"github.com/starford/pagesmith/internal/workspace"
)

// components is everything both run modes share.
type components struct {
	cfg      *Config
	version  string
	logger   *slog.Logger
	db       *index.DB
	projects *project.Store
	preview  *preview.Supervisor
	broker   *sse.Broker
	svc      *workspace.Service
}

func (c *components) Close() {
	if c.preview != nil {
		c.preview.Stop()
	}
	if c.broker != nil {
		c.broker.Close()
	}
	if c.db != nil {
		_ = c.db.Close()
	}
}

func openFS(path string) (storage.Provider, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", path, err)
	}
	return storage.NewFS(path)
}

func setup(ctx context.Context, opts ...Option) (*components, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("projects_path", cfg.Storage.Projects),
		slog.String("backups_path", cfg.Storage.Backups),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("model", cfg.Model.Name),
		slog.Bool("multi_artifact", cfg.Generation.MultiArtifact),
		slog.Bool("history", cfg.History.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	projFS, err := openFS(cfg.Storage.Projects)
	if err != nil {
		return nil, err
	}
	uploadFS, err := openFS(cfg.Storage.Uploads)
	if err != nil {
		return nil, err
	}

	c := &components{cfg: cfg, version: app.version, logger: logger}
	c.projects = project.NewStore(projFS, cfg.Generation.MultiArtifact)

	var hist *history.Store
	if cfg.History.Enabled {
		backFS, err := openFS(cfg.Storage.Backups)
		if err != nil {
			return nil, err
		}
		hist = history.NewStore(backFS, c.projects,
			history.WithRetention(cfg.History.Retention),
			history.WithLogger(logger))
	}

	model, err := llm.New(ctx, llm.Config{
		APIKey:  cfg.Model.APIKey,
		Model:   cfg.Model.Name,
		Timeout: cfg.Model.Timeout,
		BaseURL: cfg.Model.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}
	genOpts := []generate.Option{
		generate.WithFloors(cfg.Generation.PageFloor, cfg.Generation.ServerFloor),
		generate.WithWebSearch(cfg.Model.WebSearch),
		generate.WithLogger(logger),
	}
	if hist != nil {
		genOpts = append(genOpts, generate.WithHistory(hist))
	}

	if cfg.Preview.Enabled() {
		c.preview = preview.New(preview.Config{
			Command: cfg.Preview.Command,
			Host:    cfg.Preview.Host,
			Port:    cfg.Preview.Port,
			Output:  os.Stderr,
			Logger:  logger,
		})
	}

	// Initialize SQLite index.
	c.db, err = index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	// Run initial sync.
	if err := index.Sync(c.db, c.projects, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	c.broker = sse.NewBroker(cfg.SSE.ListThrottle)

	c.svc = workspace.NewService(workspace.Deps{
		Projects:  c.projects,
		History:   hist,
		Generator: generate.New(model, c.projects, genOpts...),
		Assets:    assets.New(uploadFS, assets.WithMaxSize(cfg.Assets.MaxBytes())),
		Catalog:   c.db,
		Preview:   c.preview,
		Events:    c.broker,
		Logger:    logger,
	})
	return c, nil
}

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// newHTTPHandler builds the root router.
func newHTTPHandler(c *components) http.Handler {
	apiRouter := api.NewRouter(c.svc, c.cfg.Auth.AuthEnabled(), c.cfg.Auth.Token, c.broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthOK)
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if _, err := c.db.ListProjects(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		healthOK(w, req)
	})

	// Uploaded assets are public so generated pages can embed them.
	r.Get("/uploads/{filename}", api.NewUploadHandler(c.svc).ServeFile)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)
	return r
}

// Run starts the HTTP server, the projects watcher and signal handling.
func Run(ctx context.Context, opts ...Option) error {
	c, err := setup(ctx, opts...)
	if err != nil {
		return err
	}
	defer c.Close()
	cfg, logger := c.cfg, c.logger

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newHTTPHandler(c),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		if err := index.Watch(gCtx, c.db, c.projects, cfg.Storage.Projects, logger, c.broker.PublishProjectEvent); err != nil {
			logger.Warn("projects watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher exits with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	c, err := setup(ctx, append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer c.Close()

	c.logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(c.svc, c.version).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
