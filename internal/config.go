package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/pagesmith/internal/generate"
	"github.com/starford/pagesmith/internal/history"
	"github.com/starford/pagesmith/internal/llm"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Storage    StorageConfig     `yaml:"storage"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Model      ModelConfig       `yaml:"model"`
	Generation GenerationConfig  `yaml:"generation"`
	History    HistoryConfig     `yaml:"history"`
	Assets     AssetsConfig      `yaml:"assets"`
	Preview    PreviewConfig     `yaml:"preview"`
	Auth       AuthConfig        `yaml:"auth"`
	SSE        SSEConfig         `yaml:"sse"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Storage, &c.SQLite, &c.Model, &c.Generation, &c.History, &c.Assets, &c.Preview,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig holds the on-disk roots. Each is created at startup.
type StorageConfig struct {
	Projects string `yaml:"projects"`
	Backups  string `yaml:"backups"`
	Uploads  string `yaml:"uploads"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Projects, validation.Required),
		validation.Field(&c.Backups, validation.Required),
		validation.Field(&c.Uploads, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ModelConfig configures the hosted model client.
type ModelConfig struct {
	APIKey    string        `yaml:"api_key"`
	Name      string        `yaml:"name"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	WebSearch bool          `yaml:"web_search"`
}

// Validate validates the model configuration.
func (c *ModelConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.APIKey, validation.Required.Error("is required (set GEMINI_API_KEY)")),
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// GenerationConfig holds the commit floors and the artifact mode.
type GenerationConfig struct {
	MultiArtifact bool `yaml:"multi_artifact"`
	PageFloor     int  `yaml:"page_floor"`
	ServerFloor   int  `yaml:"server_floor"`
}

// Validate validates the generation configuration.
func (c *GenerationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PageFloor, validation.Min(1)),
		validation.Field(&c.ServerFloor, validation.Min(1)),
	)
}

// HistoryConfig controls snapshots. Retention may be raised above the
// default window but never lowered.
type HistoryConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Retention time.Duration `yaml:"retention"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Retention, validation.Required.When(c.Enabled), validation.Min(history.DefaultRetention)),
	)
}

// AssetsConfig limits uploads.
type AssetsConfig struct {
	MaxSizeMB int `yaml:"max_size_mb"`
}

// Validate validates the assets configuration.
func (c *AssetsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Required, validation.Min(1)),
	)
}

// MaxBytes returns the limit in bytes.
func (c *AssetsConfig) MaxBytes() int64 { return int64(c.MaxSizeMB) << 20 }

// PreviewConfig configures the preview child process. An empty command
// disables preview.
type PreviewConfig struct {
	Command []string `yaml:"command"`
	Host    string   `yaml:"host"`
	Port    int      `yaml:"port"`
}

// Validate validates the preview configuration.
func (c *PreviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required.When(len(c.Command) > 0), validation.Min(1), validation.Max(65535)),
	)
}

// Enabled reports whether a preview command is configured.
func (c *PreviewConfig) Enabled() bool { return len(c.Command) > 0 }

// SSEConfig tunes the event broker.
type SSEConfig struct {
	ListThrottle time.Duration `yaml:"list_throttle"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Projects: "./data/projects",
			Backups:  "./data/backups",
			Uploads:  "./data/uploads",
		},
		SQLite: SQLiteConfig{
			Path: "./data/pagesmith.db",
		},
		Model: ModelConfig{
			Name:      llm.DefaultModel,
			Timeout:   60 * time.Second,
			WebSearch: true,
		},
		Generation: GenerationConfig{
			PageFloor:   generate.DefaultPageFloor,
			ServerFloor: generate.DefaultServerFloor,
		},
		History: HistoryConfig{
			Enabled:   true,
			Retention: history.DefaultRetention,
		},
		Assets: AssetsConfig{
			MaxSizeMB: 50,
		},
		Preview: PreviewConfig{
			Command: []string{"python3", "app.py"},
			Host:    "127.0.0.1",
			Port:    5001,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		SSE: SSEConfig{
			ListThrottle: 2 * time.Second,
		},
	}
}
