// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/conceptrag/ai"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/storage"
)

// ReembedProcessor names the reembedder's checkpoint.
const ReembedProcessor = "reembed"

// Config holds settings shared by the maintenance jobs.
type Config struct {
	// BatchSize is the number of documents per batch.
	BatchSize int

	// ReportInterval is how often progress is reported, in documents.
	ReportInterval int

	// MaxRetries is the number of attempts for each collaborator call.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     time.Second,
	}
}

// Reembedder recomputes every chunk vector with the configured embedder.
type Reembedder struct {
	documents   storage.DocumentRepository
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	processor   *EmbedBatchProcessor
	iterator    *DocumentIterator
	logger      *slog.Logger
}

// NewReembedder creates a reembedder. checkpoints may be nil, in which case
// every run starts from the first document. progress may be nil.
func NewReembedder(documents storage.DocumentRepository, embedder ai.Embedder, checkpoints storage.CheckpointRepository, config *Config, progress io.Writer) (*Reembedder, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Reembedder{
		documents:   documents,
		checkpoints: checkpoints,
		config:      config,
		progress:    progress,
		processor:   NewEmbedBatchProcessor(documents, embedder, config.MaxRetries, config.RetryDelay),
		iterator:    NewDocumentIterator(documents, config.BatchSize),
		logger:      slog.Default().With("component", "reembedder"),
	}, nil
}

// Run reembeds every document after the saved checkpoint, saving a new
// checkpoint after each batch. The checkpoint is cleared when the run
// completes, so the next run starts over. It returns the number of chunks
// updated.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	checkpoint, err := r.loadCheckpoint(ctx)
	if err != nil {
		return 0, err
	}
	after, done := checkpoint.LastDocID, checkpoint.Processed

	remaining, err := r.iterator.Count(ctx, after)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}
	if remaining == 0 {
		fmt.Fprintf(r.progress, "No documents to reembed\n")
		return 0, r.clearCheckpoint(ctx)
	}
	if after != "" {
		fmt.Fprintf(r.progress, "Resuming after %s (%d documents already done)\n", after, done)
	}
	fmt.Fprintf(r.progress, "Reembedding %d documents (batch size: %d)\n", remaining, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, "documents", remaining, r.config.ReportInterval)
	tracker.Start()

	updated := 0
	err = r.iterator.ForEach(ctx, after, func(batch *DocumentBatch) error {
		var chunks []*core.Chunk
		for _, doc := range batch.Documents {
			chunks = append(chunks, batch.Chunks[doc.ID]...)
		}
		if err := r.processor.Process(ctx, chunks); err != nil {
			return fmt.Errorf("failed to process batch ending at %s: %w", batch.Last(), err)
		}
		updated += len(chunks)
		done += len(batch.Documents)
		tracker.Add(len(batch.Documents))
		return r.saveCheckpoint(ctx, batch.Last(), done)
	})
	tracker.Finish()
	if err != nil {
		return updated, err
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Updated %d chunks in %v\n", updated, elapsed.Round(time.Millisecond))
	r.logger.Info("reembedding complete", "documents", remaining, "chunks", updated, "elapsed", elapsed)
	return updated, r.clearCheckpoint(ctx)
}

func (r *Reembedder) loadCheckpoint(ctx context.Context) (*core.Checkpoint, error) {
	if r.checkpoints == nil {
		return &core.Checkpoint{Processor: ReembedProcessor}, nil
	}
	checkpoint, err := r.checkpoints.LoadCheckpoint(ctx, ReembedProcessor)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if checkpoint == nil {
		checkpoint = &core.Checkpoint{Processor: ReembedProcessor}
	}
	return checkpoint, nil
}

func (r *Reembedder) saveCheckpoint(ctx context.Context, lastDocID string, processed int) error {
	if r.checkpoints == nil {
		return nil
	}
	return r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		Processor: ReembedProcessor,
		LastDocID: lastDocID,
		Processed: processed,
		UpdatedAt: time.Now().UTC(),
	})
}

func (r *Reembedder) clearCheckpoint(ctx context.Context) error {
	if r.checkpoints == nil {
		return nil
	}
	return r.checkpoints.ClearCheckpoint(ctx, ReembedProcessor)
}
