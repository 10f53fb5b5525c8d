package reindex

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrDocumentRepositoryRequired is returned when no document repository is given.
	ErrDocumentRepositoryRequired = errors.New("document repository is required")

	// ErrIndexRepositoryRequired is returned when no index repository is given.
	ErrIndexRepositoryRequired = errors.New("index repository is required")

	// ErrEmbedderRequired is returned when no embedder is given.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrEmbeddingMismatch is returned when the embedder answers with the
	// wrong number of vectors.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)
