package reindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/extraction"
	"github.com/poiesic/conceptrag/index"
	"github.com/poiesic/conceptrag/storage"
)

// Reindexer rebuilds the concept index from the document store.
//
// Without an extractor the stored chunk concepts are folded as they are. With
// one, every chunk is re-extracted first (IDF taken from the index as rebuilt
// so far, as during ingestion) and the refreshed chunks are written back.
type Reindexer struct {
	documents storage.DocumentRepository
	indexRepo storage.IndexRepository
	extractor *extraction.Extractor
	config    *Config
	progress  io.Writer
	iterator  *DocumentIterator
	logger    *slog.Logger
}

// NewReindexer creates a reindexer. extractor and progress may be nil.
func NewReindexer(documents storage.DocumentRepository, indexRepo storage.IndexRepository, extractor *extraction.Extractor, config *Config, progress io.Writer) (*Reindexer, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if indexRepo == nil {
		return nil, ErrIndexRepositoryRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Reindexer{
		documents: documents,
		indexRepo: indexRepo,
		extractor: extractor,
		config:    config,
		progress:  progress,
		iterator:  NewDocumentIterator(documents, config.BatchSize),
		logger:    slog.Default().With("component", "reindexer"),
	}, nil
}

// Run builds a fresh index over every stored document, replaces the persisted
// index with it and returns it. The persisted index is untouched if the walk
// fails.
func (r *Reindexer) Run(ctx context.Context) (*index.Index, error) {
	total, err := r.iterator.Count(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	fmt.Fprintf(r.progress, "Rebuilding concept index from %d documents\n", total)

	tracker := NewProgressTracker(r.progress, "documents", total, r.config.ReportInterval)
	tracker.Start()

	fresh := index.New()
	err = r.iterator.ForEach(ctx, "", func(batch *DocumentBatch) error {
		for _, doc := range batch.Documents {
			chunks := batch.Chunks[doc.ID]
			if r.extractor != nil {
				if err := r.extract(ctx, chunks, fresh.Stats()); err != nil {
					return fmt.Errorf("document %s: %w", doc.ID, err)
				}
			}
			concepts := make([]index.ChunkConcepts, len(chunks))
			for i, chunk := range chunks {
				concepts[i] = index.ChunkConcepts{ChunkID: chunk.ID, Concepts: chunk.Concepts}
			}
			fresh.Update(doc.ID, concepts)
		}
		tracker.Add(len(batch.Documents))
		return nil
	})
	tracker.Finish()
	if err != nil {
		return nil, err
	}

	if err := r.indexRepo.ReplaceIndex(ctx, fresh.Entries()); err != nil {
		return nil, fmt.Errorf("failed to save index: %w", err)
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindexing complete. %d concepts over %d chunks in %v\n",
		fresh.Len(), fresh.Chunks(), elapsed.Round(time.Millisecond))
	r.logger.Info("reindexing complete", "documents", total, "concepts", fresh.Len(), "elapsed", elapsed)
	return fresh, nil
}

func (r *Reindexer) extract(ctx context.Context, chunks []*core.Chunk, stats *core.CorpusStats) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		concepts, err := r.extractor.ExtractDocument(chunk.OriginalText, stats)
		if err != nil {
			return err
		}
		chunk.Concepts = concepts
	}
	return r.documents.UpdateChunks(ctx, chunks...)
}
