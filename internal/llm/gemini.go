// Package llm adapts the Gemini API to generate.Completer.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/starford/pagesmith/internal/apperr"
	"github.com/starford/pagesmith/internal/generate"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// Config holds the client settings.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// BaseURL overrides the API endpoint; empty uses the public service.
	BaseURL string
	Logger  *slog.Logger
}

// Gemini calls GenerateContent once per Complete, with no retry.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ generate.Completer = (*Gemini)(nil)

// New creates a Gemini client. An empty API key is a configuration error.
func New(ctx context.Context, cfg Config) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("llm: new client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{client: client, model: model, timeout: cfg.Timeout, logger: logger}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

// Complete sends prompt and returns the reply text. The search tool and a
// JSON response type cannot be combined, so search wins and the caller
// strips any fence around the JSON.
func (g *Gemini) Complete(ctx context.Context, prompt string, opts generate.CompleteOptions) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{}
	switch {
	case opts.WebSearch:
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	case opts.JSON:
		cfg.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrTransport, err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: model %s returned no text", apperr.ErrTransport, g.model)
	}
	g.logger.Debug("llm: completion",
		slog.String("model", g.model),
		slog.Bool("web_search", opts.WebSearch),
		slog.Int("chars", len(text)),
		slog.Duration("took", time.Since(start)))
	return text, nil
}
