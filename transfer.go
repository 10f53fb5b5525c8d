package conceptrag

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/conceptrag/index"
	"github.com/poiesic/conceptrag/storage"
	"github.com/poiesic/conceptrag/storage/jsonfile"
)

// TransferStats counts what an export or import copied.
type TransferStats struct {
	Documents int
	Chunks    int
	Skipped   int
	Concepts  int
}

// Export writes the whole store and index as document_store.json and
// concept_index.json in dir, replacing whatever the files held.
func (db *Database) Export(ctx context.Context, dir string) (*TransferStats, error) {
	target, err := jsonfile.Open(dir)
	if err != nil {
		return nil, err
	}
	defer target.Close()
	if err := target.Reset(ctx); err != nil {
		return nil, err
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	stats, err := copyDocuments(ctx, db.documents, target)
	if err != nil {
		return nil, err
	}
	entries := db.index.Entries()
	if err := target.ReplaceIndex(ctx, entries); err != nil {
		return nil, err
	}
	stats.Concepts = len(entries)
	db.logger.Info("exported store", "dir", target.Dir(), "documents", stats.Documents, "concepts", stats.Concepts)
	return stats, nil
}

// Import copies the documents of a JSON store in dir into this database and
// folds their chunk concepts into the index. Documents already present are
// skipped.
func (db *Database) Import(ctx context.Context, dir string) (*TransferStats, error) {
	source, err := jsonfile.Open(dir)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	docs, err := source.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	stats := &TransferStats{}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		chunks, err := source.GetChunksByDocument(ctx, doc.ID)
		if err != nil {
			return stats, err
		}
		if err := db.documents.AddDocument(ctx, doc, chunks); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				stats.Skipped++
				continue
			}
			return stats, fmt.Errorf("document %s: %w", doc.ID, err)
		}

		concepts := make([]index.ChunkConcepts, len(chunks))
		for i, chunk := range chunks {
			concepts[i] = index.ChunkConcepts{ChunkID: chunk.ID, Concepts: chunk.Concepts}
		}
		staged := db.index.Stage(doc.ID, concepts)
		if err := db.indexRepo.SaveEntries(ctx, staged...); err != nil {
			if derr := db.documents.DeleteDocument(context.WithoutCancel(ctx), doc.ID); derr != nil {
				err = errors.Join(err, derr)
			}
			return stats, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		db.index.Update(doc.ID, concepts)
		stats.Documents++
		stats.Chunks += len(chunks)
	}
	stats.Concepts = db.index.Len()
	db.logger.Info("imported store", "dir", dir, "documents", stats.Documents, "skipped", stats.Skipped)
	return stats, nil
}

func copyDocuments(ctx context.Context, from, to storage.DocumentRepository) (*TransferStats, error) {
	docs, err := from.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	stats := &TransferStats{}
	for _, doc := range docs {
		chunks, err := from.GetChunksByDocument(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		if err := to.AddDocument(ctx, doc, chunks); err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		stats.Documents++
		stats.Chunks += len(chunks)
	}
	return stats, nil
}
