package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/pagesmith/internal/apperr"
	"github.com/starford/pagesmith/internal/testutil"
)

// testEnv sets up a temp workspace and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*testutil.Env, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*testutil.Env, http.Handler) {
	t.Helper()
	env := testutil.NewEnv(t, testutil.Options{})
	return env, NewRouter(env.Service, authEnabled, authToken, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createProject(t *testing.T, router http.Handler, name string) {
	t.Helper()
	w := do(t, router, http.MethodPost, "/projects", map[string]string{"name": name})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %s = %d, body = %s", name, w.Code, w.Body.String())
	}
}

func TestCreateAndGetArtifact(t *testing.T) {
	_, router := testEnv(t, "")
	createProject(t, router, "Demo")

	w := do(t, router, http.MethodGet, "/projects/Demo/artifacts/page", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var art Artifact
	_ = json.Unmarshal(w.Body.Bytes(), &art)
	if art.Project != "Demo" || art.Code == "" {
		t.Errorf("artifact = %+v", art)
	}
	if w.Header().Get("ETag") != `"`+art.Checksum+`"` {
		t.Errorf("ETag = %q", w.Header().Get("ETag"))
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")
	createProject(t, router, "My Blog")

	w := do(t, router, http.MethodPost, "/projects", map[string]string{"name": "My/Blog"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateInvalidName(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/projects", map[string]string{"name": "!!!"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid name = %d, want 400", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
}

func TestSaveWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")
	createProject(t, router, "lock")

	w := do(t, router, http.MethodGet, "/projects/lock/artifacts/page", nil)
	var cur Artifact
	_ = json.Unmarshal(w.Body.Bytes(), &cur)

	body, _ := json.Marshal(map[string]string{"code": "<p>v2</p>"})
	req := httptest.NewRequest(http.MethodPut, "/projects/lock/artifacts/page", bytes.NewReader(body))
	req.Header.Set("If-Match", `"`+cur.Checksum+`"`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("save with correct checksum = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Stale checksum → 409.
	req = httptest.NewRequest(http.MethodPut, "/projects/lock/artifacts/page", bytes.NewReader(body))
	req.Header.Set("If-Match", cur.Checksum)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("save with stale checksum = %d, want 409", rec.Code)
	}
}

func TestSaveValidation(t *testing.T) {
	_, router := testEnv(t, "")
	createProject(t, router, "v")

	cases := []struct {
		target string
		code   string
		want   int
	}{
		{"/projects/v/artifacts/page", "", http.StatusBadRequest},
		{"/projects/ghost/artifacts/page", "<p>x</p>", http.StatusNotFound},
		{"/projects/v/artifacts/server", "print(1)", http.StatusNotFound},
		{"/projects/v/artifacts/bogus", "x", http.StatusNotFound},
	}
	for _, c := range cases {
		w := do(t, router, http.MethodPut, c.target, map[string]string{"code": c.code})
		if w.Code != c.want {
			t.Errorf("PUT %s = %d, want %d", c.target, w.Code, c.want)
		}
	}
}

func TestDeleteProject(t *testing.T) {
	_, router := testEnv(t, "")
	createProject(t, router, "bye")

	if w := do(t, router, http.MethodDelete, "/projects/bye", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/projects/bye/artifacts/page", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/projects/bye", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListProjects(t *testing.T) {
	_, router := testEnv(t, "")
	for _, name := range []string{"b", "a"} {
		createProject(t, router, name)
	}
	w := do(t, router, http.MethodGet, "/projects", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp ProjectListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || resp.Projects[0].Name != "a" {
		t.Errorf("list = %+v", resp)
	}
}

func TestGenerateAndHistory(t *testing.T) {
	env, router := testEnv(t, "")
	createProject(t, router, "gen")

	env.Model.Reply = "```html\n<!DOCTYPE html><html><head><title>New</title></head><body></body></html>\n```"
	w := do(t, router, http.MethodPost, "/projects/gen/generate", GenerateRequest{Prompt: "rewrite it"})
	if w.Code != http.StatusOK {
		t.Fatalf("generate = %d, body = %s", w.Code, w.Body.String())
	}
	var res map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res["title"] != "New" || res["label"] != "AI_rewrite_it" {
		t.Errorf("result = %v", res)
	}

	w = do(t, router, http.MethodGet, "/projects/gen/history", nil)
	var hist HistoryResponse
	_ = json.Unmarshal(w.Body.Bytes(), &hist)
	if !hist.Enabled || len(hist.Snapshots) != 1 {
		t.Fatalf("history = %+v", hist)
	}
	id := hist.Snapshots[0].ID

	w = do(t, router, http.MethodPost, "/projects/gen/history/"+id+"/star", nil)
	if w.Code != http.StatusOK {
		t.Errorf("star = %d", w.Code)
	}
	w = do(t, router, http.MethodPost, "/projects/gen/history/"+id+"/restore", nil)
	if w.Code != http.StatusOK {
		t.Errorf("restore = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/projects/gen/history/"+id+"/download", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/zip" {
		t.Errorf("download = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if w := do(t, router, http.MethodPost, "/projects/gen/history/prune", nil); w.Code != http.StatusOK {
		t.Errorf("prune = %d", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/projects/gen/history/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete unknown snapshot = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodGet, "/projects/gen/generations", nil)
	var gens GenerationsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &gens)
	if len(gens.Generations) != 1 {
		t.Errorf("generations = %+v", gens)
	}

	w = do(t, router, http.MethodGet, "/generations/search?q=rewrite", nil)
	var found SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &found)
	if w.Code != http.StatusOK || len(found.Results) != 1 {
		t.Errorf("search = %d %+v", w.Code, found)
	}
}

func TestGenerateTransportError(t *testing.T) {
	env, router := testEnv(t, "")
	createProject(t, router, "down")
	env.Model.Err = errors.New("503 unavailable")

	w := do(t, router, http.MethodPost, "/projects/down/generate", GenerateRequest{Prompt: "anything"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("generate = %d, want 502", w.Code)
	}
	var body errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error == "" {
		t.Error("error body missing")
	}
}

func TestGenerateEmptyPrompt(t *testing.T) {
	_, router := testEnv(t, "")
	createProject(t, router, "p")
	if w := do(t, router, http.MethodPost, "/projects/p/generate", GenerateRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty prompt = %d, want 400", w.Code)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/generations/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestExportProject(t *testing.T) {
	_, router := testEnv(t, "")
	createProject(t, router, "zipme")

	w := do(t, router, http.MethodGet, "/projects/zipme/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "zipme/index.html" {
		t.Errorf("entries = %v", zr.File)
	}
	if w := do(t, router, http.MethodGet, "/projects/none/export", nil); w.Code != http.StatusNotFound {
		t.Errorf("export missing = %d, want 404", w.Code)
	}
}

func TestDownloadArtifact(t *testing.T) {
	_, router := testEnv(t, "")
	createProject(t, router, "dl")
	w := do(t, router, http.MethodGet, "/projects/dl/artifacts/page/download", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download = %d", w.Code)
	}
	if w.Header().Get("Content-Disposition") != `attachment; filename="index.html"` {
		t.Errorf("disposition = %q", w.Header().Get("Content-Disposition"))
	}
}

func TestPreviewDisabled(t *testing.T) {
	_, router := testEnv(t, "")
	createProject(t, router, "pv")
	if w := do(t, router, http.MethodPost, "/preview/pv", nil); w.Code != http.StatusBadRequest {
		t.Errorf("start = %d, want 400", w.Code)
	}
	w := do(t, router, http.MethodGet, "/preview", nil)
	var resp PreviewResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Running {
		t.Error("preview should not be running")
	}
	if w := do(t, router, http.MethodDelete, "/preview", nil); w.Code != http.StatusNoContent {
		t.Errorf("stop = %d, want 204", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		apperr.ErrNotFound:      http.StatusNotFound,
		apperr.ErrAlreadyExists: http.StatusConflict,
		apperr.ErrConflict:      http.StatusConflict,
		apperr.ErrRejected:      http.StatusBadRequest,
		apperr.ErrTransport:     http.StatusBadGateway,
		errors.New("disk full"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Errorf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(map[string]string{"name": "auth"})
	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/projects", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

func sseStub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvFull(t, true, "secret", sseStub())
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// Upload tests.

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndServe(t *testing.T) {
	env, router := testEnv(t, "")

	w := uploadFile(t, router, "test.png", pngHeader)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	name, _ := resp["filename"].(string)
	if resp["kind"] != "image" || resp["path"] != "/uploads/"+name {
		t.Errorf("asset = %v", resp)
	}
	data, err := os.ReadFile(filepath.Join(env.UploadsDir, name))
	if err != nil || !bytes.Equal(data, pngHeader) {
		t.Fatalf("file on disk: %v", err)
	}

	public := chi.NewRouter()
	public.Get("/uploads/{filename}", NewUploadHandler(env.Service).ServeFile)
	rec := httptest.NewRecorder()
	public.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("serve = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	public.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/missing.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing upload = %d, want 404", rec.Code)
	}
}

func TestUploadRejectsExtension(t *testing.T) {
	_, router := testEnv(t, "")
	w := uploadFile(t, router, "archive.zip", []byte("PK"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("zip upload = %d, want 400", w.Code)
	}
}

func TestUploadRemoteDataURI(t *testing.T) {
	_, router := testEnv(t, "")
	body := RemoteUploadRequest{Source: "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"}
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/uploads", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("data uri upload = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestUpload_AuthProtected(t *testing.T) {
	_, router := testEnv(t, "secret")
	if w := uploadFile(t, router, "x.png", pngHeader); w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
}

func TestUpload_MissingFileField(t *testing.T) {
	_, router := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	_, router := testEnv(t, "qs")
	if w := do(t, router, http.MethodGet, "/projects?access_token=qs", nil); w.Code != http.StatusOK {
		t.Errorf("query token GET = %d, want 200", w.Code)
	}
	w := do(t, router, http.MethodPost, "/projects?access_token=qs", map[string]string{"name": "x"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("query token POST = %d, want 401", w.Code)
	}
}
