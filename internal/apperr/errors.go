// Package apperr holds the sentinel errors shared across the service.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	// ErrRejected marks caller input that failed validation (bad extension, empty field).
	ErrRejected = errors.New("rejected")
	// ErrTransport marks a failed model invocation (network, auth, quota, malformed reply).
	ErrTransport = errors.New("model transport error")
)
