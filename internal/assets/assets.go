// Package assets stores uploaded images and videos under collision-free
// names and builds the markup to embed them.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/pagesmith/internal/apperr"
	"github.com/starford/pagesmith/internal/models"
	"github.com/starford/pagesmith/internal/storage"
)

// DefaultMaxSize caps a single upload.
const DefaultMaxSize = 50 << 20 // 50 MB

// Asset kinds.
const (
	KindImage = "image"
	KindVideo = "video"
)

var (
	kindByExt = map[string]string{
		".png": KindImage, ".jpg": KindImage, ".jpeg": KindImage,
		".gif": KindImage, ".webp": KindImage, ".svg": KindImage,
		".mp4": KindVideo, ".webm": KindVideo, ".mov": KindVideo, ".ogg": KindVideo,
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// Store writes assets into the shared uploads directory.
type Store struct {
	fs        storage.Provider
	maxSize   int64
	urlPrefix string
}

// Option configures a Store.
type Option func(*Store)

// WithMaxSize overrides the per-upload size cap.
func WithMaxSize(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithURLPrefix sets the path assets are served under. Default "/uploads".
func WithURLPrefix(p string) Option {
	return func(s *Store) { s.urlPrefix = strings.TrimRight(p, "/") }
}

// New creates an asset store over fs.
func New(fs storage.Provider, opts ...Option) *Store {
	s := &Store{fs: fs, maxSize: DefaultMaxSize, urlPrefix: "/uploads"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxSize returns the per-upload size cap.
func (s *Store) MaxSize() int64 { return s.maxSize }

// Kind returns the asset kind for filename, or "" when its extension is
// not allowed. Matching is case-insensitive.
func Kind(filename string) string {
	return kindByExt[strings.ToLower(filepath.Ext(filename))]
}

// sanitizeFilename strips path separators and unsafe characters.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = safeFilenameRe.ReplaceAllString(name, "_")
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// Upload stores the content of r under a fresh name derived from filename.
func (s *Store) Upload(filename string, r io.Reader) (*models.Asset, error) {
	name := sanitizeFilename(filename)
	if filepath.Ext(name) == "" {
		return nil, fmt.Errorf("%w: file %q has no extension", apperr.ErrRejected, filename)
	}
	kind := Kind(name)
	if kind == "" {
		return nil, fmt.Errorf("%w: extension %s not allowed (images: png jpg jpeg gif webp svg, videos: mp4 webm mov ogg)",
			apperr.ErrRejected, strings.ToLower(filepath.Ext(name)))
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("assets: read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: file too large (max %d bytes)", apperr.ErrRejected, s.maxSize)
	}

	stored := uuid.NewString() + "_" + name
	if err := s.fs.Write(stored, data); err != nil {
		return nil, fmt.Errorf("assets: save %s: %w", stored, err)
	}

	url := s.urlPrefix + "/" + stored
	return &models.Asset{
		Filename:     stored,
		Path:         url,
		EmbedSnippet: Snippet(kind, url, name),
		Size:         int64(len(data)),
		Kind:         kind,
	}, nil
}

// Snippet returns ready-to-paste markup for an asset.
func Snippet(kind, url, alt string) string {
	src := html.EscapeString(url)
	if kind == KindVideo {
		return fmt.Sprintf(`<video src="%s" controls></video>`, src)
	}
	return fmt.Sprintf(`<img src="%s" alt="%s">`, src, html.EscapeString(alt))
}

// UploadDataURI decodes a base64 data URI and stores it. filename may be
// empty, in which case one is derived from the media type.
func (s *Store) UploadDataURI(uri, filename string) (*models.Asset, error) {
	data, ext, err := decodeDataURI(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrRejected, err)
	}
	if filename == "" {
		filename = "asset" + ext
	}
	if err := validateMagicBytes(data, strings.ToLower(filepath.Ext(filename))); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrRejected, err)
	}
	return s.Upload(filename, bytes.NewReader(data))
}

// UploadURL downloads a remote file and stores it.
func (s *Store) UploadURL(ctx context.Context, rawURL, filename string) (*models.Asset, error) {
	data, ext, err := fetchHTTP(ctx, rawURL, s.maxSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrRejected, err)
	}
	if filename == "" {
		filename = filenameFromURL(rawURL, ext)
	}
	return s.Upload(filename, bytes.NewReader(data))
}

// Open resolves a stored asset name to its absolute path. Names with path
// separators or traversal are rejected.
func (s *Store) Open(name string) (string, error) {
	cleaned := filepath.Clean(name)
	if name == "" || cleaned != filepath.Base(cleaned) || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("%w: invalid filename %q", apperr.ErrRejected, name)
	}
	if !s.fs.Exists(cleaned) {
		return "", fmt.Errorf("asset %q: %w", cleaned, apperr.ErrNotFound)
	}
	return s.fs.Abs(cleaned)
}
