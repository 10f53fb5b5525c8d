package reindex

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/conceptrag/ai"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/search"
	"github.com/poiesic/conceptrag/storage"
)

// EmbedBatchProcessor recomputes the vectors of one batch of chunks.
type EmbedBatchProcessor struct {
	documents      storage.DocumentRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewEmbedBatchProcessor creates a processor.
// maxRetries: maximum number of attempts for each embedding call
// retryBaseDelay: base delay for exponential backoff
func NewEmbedBatchProcessor(documents storage.DocumentRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *EmbedBatchProcessor {
	return &EmbedBatchProcessor{
		documents:      documents,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds each chunk's original text, normalizes the vectors and
// writes the chunks back.
func (bp *EmbedBatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.OriginalText
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(chunks), len(vectors))
	}

	for i, chunk := range chunks {
		chunk.Vector = search.NormalizeVector(vectors[i])
	}
	if err := bp.documents.UpdateChunks(ctx, chunks...); err != nil {
		return fmt.Errorf("failed to update chunks: %w", err)
	}
	return nil
}
