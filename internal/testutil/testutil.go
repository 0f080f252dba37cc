// Package testutil provides shared test helpers for setting up project
// roots, catalogs and a fully wired workspace.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/starford/pagesmith/internal/assets"
	"github.com/starford/pagesmith/internal/generate"
	"github.com/starford/pagesmith/internal/history"
	"github.com/starford/pagesmith/internal/index"
	"github.com/starford/pagesmith/internal/project"
	"github.com/starford/pagesmith/internal/storage"
	"github.com/starford/pagesmith/internal/workspace"
)

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "pagesmith-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRoot creates a temporary directory with a storage.Provider.
func TestRoot(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// FakeModel is a scripted generate.Completer.
type FakeModel struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	Prompts []string
	Opts    []generate.CompleteOptions
}

// Complete records the call and returns the scripted reply.
func (f *FakeModel) Complete(_ context.Context, prompt string, opts generate.CompleteOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts = append(f.Prompts, prompt)
	f.Opts = append(f.Opts, opts)
	return f.Reply, f.Err
}

// Calls returns how many times Complete ran.
func (f *FakeModel) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Prompts)
}

// Env is a workspace wired over temporary directories.
type Env struct {
	Service     *workspace.Service
	Projects    *project.Store
	History     *history.Store
	DB          *index.DB
	Model       *FakeModel
	ProjectsDir string
	BackupsDir  string
	UploadsDir  string
}

// Options tune NewEnv.
type Options struct {
	Multi       bool
	NoHistory   bool
	Events      workspace.Events
	HistoryOpts []history.Option
	// Model replaces the scripted FakeModel for the generator.
	Model generate.Completer
}

// NewEnv builds a workspace with a fake model and history enabled unless
// opts.NoHistory is set.
func NewEnv(t *testing.T, opts Options) *Env {
	t.Helper()
	logger := QuietLogger()
	projDir, projFS := TestRoot(t)
	backDir, backFS := TestRoot(t)
	upDir, upFS := TestRoot(t)

	e := &Env{
		Projects:    project.NewStore(projFS, opts.Multi),
		DB:          TestDB(t),
		Model:       &FakeModel{},
		ProjectsDir: projDir,
		BackupsDir:  backDir,
		UploadsDir:  upDir,
	}
	var model generate.Completer = e.Model
	if opts.Model != nil {
		model = opts.Model
	}
	genOpts := []generate.Option{generate.WithLogger(logger), generate.WithWebSearch(true)}
	if !opts.NoHistory {
		hOpts := append([]history.Option{history.WithLogger(logger)}, opts.HistoryOpts...)
		e.History = history.NewStore(backFS, e.Projects, hOpts...)
		genOpts = append(genOpts, generate.WithHistory(e.History))
	}
	e.Service = workspace.NewService(workspace.Deps{
		Projects:  e.Projects,
		History:   e.History,
		Generator: generate.New(model, e.Projects, genOpts...),
		Assets:    assets.New(upFS),
		Catalog:   e.DB,
		Events:    opts.Events,
		Logger:    logger,
	})
	return e
}
