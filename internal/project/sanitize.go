package project

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/pagesmith/internal/apperr"
)

const maxNameLen = 64

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Sanitize maps an arbitrary display name to a filesystem-safe project
// identifier. Runs of unsafe characters collapse to a single underscore.
// Inputs that sanitize to the same identifier address the same project.
func Sanitize(name string) (string, error) {
	s := unsafeNameRe.ReplaceAllString(strings.TrimSpace(name), "_")
	s = strings.Trim(s, "_-")
	if len(s) > maxNameLen {
		s = strings.TrimRight(s[:maxNameLen], "_")
	}
	if s == "" {
		return "", fmt.Errorf("%w: project name is required", apperr.ErrRejected)
	}
	return s, nil
}
