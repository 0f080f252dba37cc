package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/pagesmith/internal/models"
	"github.com/starford/pagesmith/internal/testutil"
)

func testServer(t *testing.T) (*Server, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t, testutil.Options{})
	return New(env.Service, "test"), env
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are invoked directly.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_projects":      srv.listProjects,
		"create_project":     srv.createProject,
		"read_artifact":      srv.readArtifact,
		"save_artifact":      srv.saveArtifact,
		"generate":           srv.generate,
		"list_history":       srv.listHistory,
		"restore_snapshot":   srv.restoreSnapshot,
		"search_generations": srv.searchGenerations,
		"upload_asset":       srv.uploadAsset,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateSaveAndRead(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_project", map[string]interface{}{"name": "My Site"})
	if text := resultText(r); text != "created: My_Site" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "save_artifact", map[string]interface{}{
		"project": "My_Site",
		"code":    "<h1>Hello</h1>",
	})
	if r.IsError {
		t.Fatalf("save failed: %s", resultText(r))
	}

	r = callTool(t, srv, "read_artifact", map[string]interface{}{"project": "My_Site"})
	if text := resultText(r); text != "<h1>Hello</h1>" {
		t.Errorf("read result = %q", text)
	}
}

func TestListProjects(t *testing.T) {
	srv, _ := testServer(t)
	if text := resultText(callTool(t, srv, "list_projects", nil)); text != "no projects" {
		t.Errorf("empty list = %q", text)
	}
	_ = callTool(t, srv, "create_project", map[string]interface{}{"name": "b"})
	_ = callTool(t, srv, "create_project", map[string]interface{}{"name": "a"})

	text := resultText(callTool(t, srv, "list_projects", nil))
	lines := strings.Split(text, "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "a") {
		t.Errorf("list = %q", text)
	}
}

func TestReadArtifactMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_artifact", map[string]interface{}{"project": "nope"})
	if !r.IsError {
		t.Error("expected error for missing project")
	}
}

func TestGenerateThenRestore(t *testing.T) {
	srv, env := testServer(t)
	_ = callTool(t, srv, "create_project", map[string]interface{}{"name": "gen"})
	before, _ := env.Projects.Read("gen", models.SlotPage)

	env.Model.Reply = "<!DOCTYPE html><html><body>generated</body></html>"
	r := callTool(t, srv, "generate", map[string]interface{}{"project": "gen", "prompt": "make it new", "web_search": true})
	if r.IsError {
		t.Fatalf("generate failed: %s", resultText(r))
	}
	if !env.Model.Opts[0].WebSearch {
		t.Error("web_search flag not passed through")
	}

	r = callTool(t, srv, "list_history", map[string]interface{}{"project": "gen"})
	var snaps []models.Snapshot
	if err := json.Unmarshal([]byte(resultText(r)), &snaps); err != nil || len(snaps) != 1 {
		t.Fatalf("history = %s (%v)", resultText(r), err)
	}

	r = callTool(t, srv, "restore_snapshot", map[string]interface{}{"project": "gen", "id": snaps[0].ID})
	if r.IsError {
		t.Fatalf("restore failed: %s", resultText(r))
	}
	after, _ := env.Projects.Read("gen", models.SlotPage)
	if after != before {
		t.Error("restore did not bring back the template")
	}

	r = callTool(t, srv, "search_generations", map[string]interface{}{"query": "new"})
	if !strings.Contains(resultText(r), `"project": "gen"`) {
		t.Errorf("search = %s", resultText(r))
	}
}

func TestGenerateModelError(t *testing.T) {
	srv, env := testServer(t)
	_ = callTool(t, srv, "create_project", map[string]interface{}{"name": "down"})
	env.Model.Err = errors.New("boom")
	r := callTool(t, srv, "generate", map[string]interface{}{"project": "down", "prompt": "x y z"})
	if !r.IsError {
		t.Error("expected tool error on model failure")
	}
}

func TestUploadAssetDataURI(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "upload_asset", map[string]interface{}{
		"url": "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7",
	})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}
	var res uploadResult
	_ = json.Unmarshal([]byte(resultText(r)), &res)
	if !strings.HasPrefix(res.SavedPath, "/uploads/") || !strings.Contains(res.EmbedSnippet, "<img") {
		t.Errorf("result = %+v", res)
	}

	r = callTool(t, srv, "upload_asset", map[string]interface{}{"url": "data:text/plain;base64,aGk="})
	if !r.IsError {
		t.Error("expected error for unsupported media type")
	}
}

func TestContractResource(t *testing.T) {
	srv, _ := testServer(t)
	out, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(out) != 1 {
		t.Fatalf("resource = %v, %v", out, err)
	}
	tc, ok := out[0].(mcp.TextResourceContents)
	if !ok || tc.URI != contractURI || !strings.Contains(tc.Text, "length floor") {
		t.Errorf("contents = %+v", out[0])
	}
}
