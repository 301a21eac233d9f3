package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrMalformedInput indicates chunker input that cannot be
	// processed: empty text or text over the configured maximum
	// document size. Never retried; surfaced to the caller.
	ErrMalformedInput = errors.New("malformed input")

	// ErrDimensionMismatch indicates a vector whose length disagrees
	// with the index's fixed dimension. This is a configuration or
	// programmer error and is never retried.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyIndex indicates a query against an index with zero live
	// entries. An expected operational state, not a crash; distinct
	// from "fewer results than requested", which is a success.
	ErrEmptyIndex = errors.New("vector index is empty")

	// ErrEmbeddingProvider wraps failures from the embedding backend.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrGenerationProvider wraps failures from the generation backend.
	ErrGenerationProvider = errors.New("generation provider error")

	// ErrSessionBusy indicates a session already has a turn in flight.
	// Turns within a session are strictly sequential.
	ErrSessionBusy = errors.New("session has a turn in flight")
)

// ProviderError carries provider failure details and whether the
// failure is transient. Transient failures may be retried by the caller
// with backoff; permanent failures (e.g. invalid input encoding)
// propagate immediately.
type ProviderError struct {
	// Kind is ErrEmbeddingProvider or ErrGenerationProvider.
	Kind error

	// Provider names the backend, e.g. "openai", "ollama".
	Provider string

	// Transient reports whether retrying may succeed.
	Transient bool

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	state := "permanent"
	if e.Transient {
		state = "transient"
	}
	return fmt.Sprintf("%s (%s, %s): %v", e.Kind, e.Provider, state, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *ProviderError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsTransient reports whether err is a transient provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

// Pipeline stages reported by StageError.
const (
	StageIngest     = "ingest"
	StageRetrieval  = "retrieval"
	StageGeneration = "generation"
)

// StageError identifies which pipeline stage failed, so a caller can
// decide whether to retry just that stage. A failed generation after a
// successful retrieval is reported as StageGeneration.
type StageError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error { return e.Err }
