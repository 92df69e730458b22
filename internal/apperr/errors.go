// Package apperr defines the sentinel error kinds shared across the world
// engine. Components wrap these with fmt.Errorf("...: %w", ...) and callers
// discriminate with errors.Is.
package apperr

import "errors"

var (
	// ErrValidation marks a malformed request: missing field, bad identifier shape.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a reference to an entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an optimistic-concurrency mismatch; callers should refetch and retry.
	ErrConflict = errors.New("conflict")
	// ErrTransient marks a recoverable I/O or LM timeout; the caller may retry with backoff.
	ErrTransient = errors.New("transient error")
	// ErrLMUnavailable marks a persistent LM Gateway failure; cognitive components degrade to defaults.
	ErrLMUnavailable = errors.New("language model unavailable")
	// ErrFatal marks unrecoverable store-level corruption. Halts the affected agent, not the world.
	ErrFatal = errors.New("fatal error")
	// ErrCancelled marks cooperative cancellation at a suspension point.
	ErrCancelled = errors.New("cancelled")
)
