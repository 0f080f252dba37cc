package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

type uploadResult struct {
	SavedPath    string `json:"savedPath"`
	EmbedSnippet string `json:"embedSnippet"`
	Kind         string `json:"kind"`
	Size         int64  `json:"size"`
}

func (s *Server) uploadAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	asset, err := s.svc.UploadRemote(ctx, source, req.GetString("filename", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.Marshal(uploadResult{
		SavedPath:    asset.Path,
		EmbedSnippet: asset.EmbedSnippet,
		Kind:         asset.Kind,
		Size:         asset.Size,
	})
	return mcp.NewToolResultText(string(out)), nil
}
