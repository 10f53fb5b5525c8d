package ingestion

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrIndexRepositoryRequired is returned when an index repository is not provided.
	ErrIndexRepositoryRequired = errors.New("index repository required")

	// ErrIndexRequired is returned when the in-memory concept index is not provided.
	ErrIndexRequired = errors.New("concept index required")

	// ErrInvalidConfig indicates an option value outside its valid range.
	ErrInvalidConfig = errors.New("invalid ingestion configuration")

	// ErrDuplicateDocument is returned when a document ID has already been ingested.
	ErrDuplicateDocument = errors.New("document already ingested")
)
