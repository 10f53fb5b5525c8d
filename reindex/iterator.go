package reindex

import (
	"context"

	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/storage"
)

// DefaultBatchSize is the number of documents handed to each batch.
const DefaultBatchSize = 50

// DocumentBatch is a run of documents with their chunks in position order.
type DocumentBatch struct {
	Documents []*core.Document
	Chunks    map[string][]*core.Chunk
}

// Last returns the ID of the final document in the batch.
func (b *DocumentBatch) Last() string {
	if len(b.Documents) == 0 {
		return ""
	}
	return b.Documents[len(b.Documents)-1].ID
}

// ChunkCount returns the number of chunks across the batch.
func (b *DocumentBatch) ChunkCount() int {
	n := 0
	for _, chunks := range b.Chunks {
		n += len(chunks)
	}
	return n
}

// DocumentIterator walks the store in document ID order.
type DocumentIterator struct {
	documents storage.DocumentRepository
	batchSize int
}

// NewDocumentIterator creates an iterator; a non-positive batchSize selects
// DefaultBatchSize.
func NewDocumentIterator(documents storage.DocumentRepository, batchSize int) *DocumentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &DocumentIterator{documents: documents, batchSize: batchSize}
}

// Count returns the number of documents after the given ID ("" for all).
func (it *DocumentIterator) Count(ctx context.Context, after string) (int, error) {
	docs, err := it.list(ctx, after)
	return len(docs), err
}

// ForEach calls fn for each batch of documents whose ID sorts after the given
// ID. Iteration stops at the first error from fn and when ctx is done.
func (it *DocumentIterator) ForEach(ctx context.Context, after string, fn func(*DocumentBatch) error) error {
	docs, err := it.list(ctx, after)
	if err != nil {
		return err
	}

	for start := 0; start < len(docs); start += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+it.batchSize, len(docs))
		batch := &DocumentBatch{
			Documents: docs[start:end],
			Chunks:    make(map[string][]*core.Chunk, end-start),
		}
		for _, doc := range batch.Documents {
			chunks, err := it.documents.GetChunksByDocument(ctx, doc.ID)
			if err != nil {
				return err
			}
			batch.Chunks[doc.ID] = chunks
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

func (it *DocumentIterator) list(ctx context.Context, after string) ([]*core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, err := it.documents.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if after == "" {
		return docs, nil
	}
	out := docs[:0:0]
	for _, doc := range docs {
		if doc.ID > after {
			out = append(out, doc)
		}
	}
	return out, nil
}
