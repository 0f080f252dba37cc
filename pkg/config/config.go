// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load loads configuration from a YAML file with environment variable
// expansion. Values already set on target act as defaults for keys the
// file omits.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	return Parse(data, target)
}

// Parse decodes YAML bytes into target after expanding ${VAR} and
// ${VAR:-default} references, then validates it.
func Parse[T any](data []byte, target *T) error {
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), target); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// ExpandEnv is os.ExpandEnv with shell-style ${VAR:-default} fallbacks for
// unset or empty variables.
func ExpandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		name, def, hasDefault := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" || !hasDefault {
			return v
		}
		return def
	})
}
