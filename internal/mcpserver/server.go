// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes pagesmith tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/pagesmith/internal/models"
	"github.com/starford/pagesmith/internal/workspace"
)

const contractURI = "pagesmith://generation-contract"

// Server wraps the MCP server with pagesmith tools.
type Server struct {
	mcp *server.MCPServer
	svc *workspace.Service
}

// New creates a new MCP server with all pagesmith tools registered.
func New(svc *workspace.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"pagesmith",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all projects with their title and artifact slots."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create a project from the starter templates. The name is sanitized to "+
			"letters, digits, '_' and '-'."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
	), s.createProject)

	s.mcp.AddTool(mcp.NewTool("read_artifact",
		mcp.WithDescription("Read the current content of one artifact slot."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("slot", mcp.Description("Artifact slot: page (default) or server")),
	), s.readArtifact)

	s.mcp.AddTool(mcp.NewTool("save_artifact",
		mcp.WithDescription("Overwrite one artifact slot. A Manual_Edit snapshot of the previous "+
			"state is taken first."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("slot", mcp.Description("Artifact slot: page (default) or server")),
		mcp.WithString("code", mcp.Required(), mcp.Description("Full replacement content")),
	), s.saveArtifact)

	s.mcp.AddTool(mcp.NewTool("generate",
		mcp.WithDescription("Rewrite the project from a natural-language instruction using the hosted "+
			"model. Read the generation contract first via get_generation_contract or the "+
			contractURI+" resource."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("What to change")),
		mcp.WithBoolean("web_search", mcp.Description("Let the model search the web for current information")),
	), s.generate)

	s.mcp.AddTool(mcp.NewTool("list_history",
		mcp.WithDescription("List a project's snapshots, newest first."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
	), s.listHistory)

	s.mcp.AddTool(mcp.NewTool("restore_snapshot",
		mcp.WithDescription("Restore a snapshot. The live state is saved as a Pre_Restore_Safety snapshot first."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Snapshot id from list_history")),
	), s.restoreSnapshot)

	s.mcp.AddTool(mcp.NewTool("search_generations",
		mcp.WithDescription("Search previously used prompts across all projects."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchGenerations)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Store an image or video so pages can embed it. Returns an embed snippet."),
		mcp.WithString("url", mcp.Required(), mcp.Description("A base64 data: URI or an http(s) URL")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the source when empty")),
	), s.uploadAsset)

	s.mcp.AddTool(mcp.NewTool("get_generation_contract",
		mcp.WithDescription("Returns the contract the generate tool follows."),
	), s.getGenerationContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Generation Contract",
			mcp.WithResourceDescription("How prompts are composed and replies committed."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func slotArg(req mcp.CallToolRequest) models.Slot {
	if v := req.GetString("slot", ""); v != "" {
		return models.Slot(v)
	}
	return models.SlotPage
}

func (s *Server) listProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no projects"), nil
	}
	lines := make([]string, len(items))
	for i, p := range items {
		lines[i] = p.Name
		if p.Title != "" {
			lines[i] += " (" + p.Title + ")"
		}
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) createProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.CreateProject(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", p.Name)), nil
}

func (s *Server) readArtifact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	art, err := s.svc.GetArtifact(ctx, project, slotArg(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(art.Code), nil
}

func (s *Server) saveArtifact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	art, err := s.svc.SaveArtifact(ctx, project, slotArg(req), code, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s/%s (%s)", art.Project, art.Slot, art.Checksum)), nil
}

func (s *Server) generate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Generate(ctx, project, prompt, req.GetBool("web_search", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) listHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snaps, err := s.svc.History(ctx, project)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(snaps), nil
}

func (s *Server) restoreSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.Restore(ctx, project, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("restored: %s", id)), nil
}

func (s *Server) searchGenerations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.SearchGenerations(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getGenerationContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(GenerationContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     GenerationContract,
		},
	}, nil
}
