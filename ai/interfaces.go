package ai

import (
	"context"

	"github.com/poiesic/conceptrag/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a natural-language answer to a query. When
// contextPassage is empty the generator answers from the query alone.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, contextPassage, query string) (string, error)
}

// VectorSearcher returns the chunks most similar to a free-text query,
// best first. k <= 0 means no limit.
type VectorSearcher interface {
	Search(ctx context.Context, query string, k int) ([]core.SimilarityMatch, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the answer generation service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
