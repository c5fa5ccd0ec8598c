package domain

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/ragpipe/internal/domain/record"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrEmptyBatch signals a storage call with no items.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrMissingEmbedding signals an item without an embedding vector.
	ErrMissingEmbedding = record.ErrMissingEmbedding
	// ErrMissingContent signals an item without source content.
	ErrMissingContent = record.ErrMissingContent
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrStoreUnavailable signals that the vector store backend is unreachable.
	ErrStoreUnavailable = errors.New("vector store unavailable")
	// ErrTimeout signals that a pipeline call exceeded its deadline.
	ErrTimeout = errors.New("pipeline timeout")
	// ErrInvalidConfig signals an invalid per-call configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// StageError wraps a pipeline stage failure with the stage name.
// The orchestrator propagates the first StageError it sees without suppressing it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s", e.Stage, e.Err.Error())
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError creates a stage error.
func NewStageError(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
