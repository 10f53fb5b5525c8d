package storage

import (
	"context"

	"github.com/poiesic/conceptrag/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Reset removes every record owned by the repository.
	Reset(ctx context.Context) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentRepository stores documents and their chunks.
type DocumentRepository interface {
	Repository

	// AddDocument stores a document together with its chunks in one write.
	// Returns ErrDuplicateKey if a document with the same ID exists.
	AddDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error

	// DeleteDocument removes a document and its chunks in one write.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id string) error

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// ListDocuments returns every document ordered by ID.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id string) (*core.Chunk, error)

	// GetChunks retrieves multiple chunks by their IDs.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...string) ([]*core.Chunk, error)

	// GetChunksByDocument returns a document's chunks ordered by position.
	GetChunksByDocument(ctx context.Context, docID string) ([]*core.Chunk, error)

	// UpdateChunks replaces existing chunks.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateChunks(ctx context.Context, chunks ...*core.Chunk) error

	// Counts returns the number of stored documents and chunks.
	Counts(ctx context.Context) (documents int, chunks int, err error)
}

// VectorSearcher finds chunks by embedding similarity.
type VectorSearcher interface {
	// FindSimilar returns chunks with similarity >= minSimilarity, up to limit
	// results, ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.SimilarityMatch, error)
}

// IndexRepository persists concept index entries.
type IndexRepository interface {
	Repository

	// LoadIndex returns every persisted entry keyed by concept name.
	LoadIndex(ctx context.Context) (map[string]*core.IndexEntry, error)

	// SaveEntries inserts or replaces the given entries.
	SaveEntries(ctx context.Context, entries ...*core.IndexEntry) error

	// ReplaceIndex discards the persisted index and stores entries instead.
	ReplaceIndex(ctx context.Context, entries map[string]*core.IndexEntry) error
}

// CheckpointRepository records progress of long-running maintenance jobs.
type CheckpointRepository interface {
	// SaveCheckpoint saves or updates a checkpoint.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor.
	// Returns nil (not an error) if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processor string) (*core.Checkpoint, error)

	// ClearCheckpoint removes the checkpoint for a processor.
	ClearCheckpoint(ctx context.Context, processor string) error
}
