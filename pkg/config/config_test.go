package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Mode  string `yaml:"mode"`
	Port  int    `yaml:"port"`
	Limit int    `yaml:"limit"`
}

func (s *sample) Validate() error {
	if s.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("PS_SET", "value")
	t.Setenv("PS_EMPTY", "")

	cases := map[string]string{
		"${PS_SET}":             "value",
		"${PS_SET:-other}":      "value",
		"${PS_EMPTY:-fallback}": "fallback",
		"${PS_UNSET:-x y}":      "x y",
		"${PS_UNSET}":           "",
		"$PS_SET/path":          "value/path",
	}
	for in, want := range cases {
		if got := ExpandEnv(in); got != want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	t.Setenv("PS_NAME", "site")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("name: ${PS_NAME}\nmode: ${PS_MODE:-disabled}\nport: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &sample{Limit: 7}
	if err := Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "site" || cfg.Mode != "disabled" || cfg.Port != 9090 || cfg.Limit != 7 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestParseRunsValidator(t *testing.T) {
	err := Parse([]byte("name: x\n"), &sample{})
	if err == nil || !strings.Contains(err.Error(), "port is required") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &sample{}); err == nil {
		t.Error("expected error for missing file")
	}
}
