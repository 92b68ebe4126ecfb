package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable signals that the embedding service cannot be reached.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrEncoding signals an empty or malformed input, or a raw/tokenized mode mismatch.
	ErrEncoding = errors.New("encoding error")
	// ErrMissingField signals a required record field that is absent or blank.
	ErrMissingField = errors.New("missing field")
	// ErrSerialization signals an indexable document that cannot be written.
	ErrSerialization = errors.New("serialization error")
	// ErrEmbeddingBatchFailed signals a pipeline run aborted by one batch.
	ErrEmbeddingBatchFailed = errors.New("embedding batch failed")
	// ErrQueryEmbeddingFailed signals that the search query could not be embedded.
	ErrQueryEmbeddingFailed = errors.New("query embedding failed")
	// ErrIndexUnavailable signals an unreachable store or a missing index.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrEmptyQuery signals a blank search query.
	ErrEmptyQuery = errors.New("empty query")
	// ErrVectorDimMismatch signals a vector whose length differs from the index generation.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// MissingFieldError wraps ErrMissingField with the offending field name.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %q", ErrMissingField.Error(), e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return &MissingFieldError{Field: field}
}

// EmbeddingBatchFailedError carries the index of the batch that aborted a pipeline run.
type EmbeddingBatchFailedError struct {
	BatchIndex int
	Cause      error
}

func (e *EmbeddingBatchFailedError) Error() string {
	return fmt.Sprintf("%s: batch %d: %v", ErrEmbeddingBatchFailed.Error(), e.BatchIndex, e.Cause)
}

// Unwrap exposes both the sentinel and the cause to errors.Is.
func (e *EmbeddingBatchFailedError) Unwrap() []error {
	return []error{ErrEmbeddingBatchFailed, e.Cause}
}

// NewEmbeddingBatchFailed creates a batch failure error.
func NewEmbeddingBatchFailed(batchIndex int, cause error) error {
	return &EmbeddingBatchFailedError{BatchIndex: batchIndex, Cause: cause}
}
