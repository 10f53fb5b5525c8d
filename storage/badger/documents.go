package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/storage"
)

// DocumentRepository stores documents and chunks in BadgerDB. Chunks are also
// indexed by (document, position) so a document's chunks iterate in order.
type DocumentRepository struct {
	backend *Backend
}

var (
	_ storage.DocumentRepository = (*DocumentRepository)(nil)
	_ storage.VectorSearcher     = (*DocumentRepository)(nil)
)

func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// Close is a no-op; the backend is closed by its owner.
func (r *DocumentRepository) Close() error {
	return nil
}

func (r *DocumentRepository) Reset(ctx context.Context) error {
	return r.backend.DropPrefixes(documentPrefix, chunkPrefix, chunkPositionPrefix)
}

func (r *DocumentRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.SimilarityMatch, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

func (r *DocumentRepository) AddDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
		if chunk.DocID != doc.ID {
			return fmt.Errorf("%w: chunk %s belongs to %s", core.ErrInvalidChunk, chunk.ID, chunk.DocID)
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.ID)
		_, err := tx.Get(key)
		if err == nil {
			return fmt.Errorf("%w: document %s", storage.ErrDuplicateKey, doc.ID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		value, err := storage.MarshalDocument(doc)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}

		for _, chunk := range chunks {
			if err := writeChunk(tx, chunk); err != nil {
				return err
			}
			posKey := makeChunkPositionKey(chunk.DocID, chunk.Position)
			if err := tx.Set(posKey, []byte(chunk.ID)); err != nil {
				return err
			}
		}
		return commit(tx)
	}, true)
}

func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialChunkPositionKey(id)
		iter := tx.NewIterator(opts)
		var posKeys, chunkIDs [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				iter.Close()
				return err
			}
			posKeys = append(posKeys, item.KeyCopy(nil))
			chunkIDs = append(chunkIDs, val)
		}
		iter.Close()

		for i, posKey := range posKeys {
			if err := tx.Delete(makeChunkKey(string(chunkIDs[i]))); err != nil {
				return err
			}
			if err := tx.Delete(posKey); err != nil {
				return err
			}
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return commit(tx)
	}, true)
}

func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var doc *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocumentKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			doc, err = storage.UnmarshalDocument(id, val)
			return err
		})
	}, false)
	return doc, err
}

func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	var docs []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixOf(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			id := string(item.Key()[len(opts.Prefix):])
			err := item.Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(id, val)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return docs, err
}

func (r *DocumentRepository) GetChunk(ctx context.Context, id string) (*core.Chunk, error) {
	var chunk *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		chunk, err = readChunk(tx, id)
		if err != nil {
			return err
		}
		if chunk == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return chunk, err
}

func (r *DocumentRepository) GetChunks(ctx context.Context, ids ...string) ([]*core.Chunk, error) {
	chunks := make([]*core.Chunk, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := readChunk(tx, id)
			if err != nil {
				return err
			}
			if chunk != nil {
				chunks = append(chunks, chunk)
			}
		}
		return nil
	}, false)
	return chunks, err
}

func (r *DocumentRepository) GetChunksByDocument(ctx context.Context, docID string) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialChunkPositionKey(docID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		var ids []string
		for iter.Rewind(); iter.Valid(); iter.Next() {
			val, err := iter.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			ids = append(ids, string(val))
		}

		for _, id := range ids {
			chunk, err := readChunk(tx, id)
			if err != nil {
				return err
			}
			if chunk == nil {
				return fmt.Errorf("%w: chunk %s listed for %s", storage.ErrNotFound, id, docID)
			}
			chunks = append(chunks, chunk)
		}
		return nil
	}, false)
	return chunks, err
}

func (r *DocumentRepository) UpdateChunks(ctx context.Context, chunks ...*core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			if err := core.ValidateChunk(chunk); err != nil {
				return err
			}
			old, err := readChunk(tx, chunk.ID)
			if err != nil {
				return err
			}
			if old == nil {
				return fmt.Errorf("%w: chunk %s", storage.ErrNotFound, chunk.ID)
			}
			if old.DocID != chunk.DocID || old.Position != chunk.Position {
				return fmt.Errorf("%w: chunk %s cannot move", core.ErrInvalidChunk, chunk.ID)
			}
			if err := writeChunk(tx, chunk); err != nil {
				return err
			}
		}
		return commit(tx)
	}, true)
}

func (r *DocumentRepository) Counts(ctx context.Context) (int, int, error) {
	documents, err := r.backend.Count(documentPrefix)
	if err != nil {
		return 0, 0, err
	}
	chunks, err := r.backend.Count(chunkPrefix)
	if err != nil {
		return 0, 0, err
	}
	return documents, chunks, nil
}

func writeChunk(tx *badger.Txn, chunk *core.Chunk) error {
	value, err := storage.MarshalChunk(chunk)
	if err != nil {
		return err
	}
	return tx.Set(makeChunkKey(chunk.ID), value)
}

// readChunk returns nil, nil when the chunk doesn't exist.
func readChunk(tx *badger.Txn, id string) (*core.Chunk, error) {
	item, err := tx.Get(makeChunkKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	return chunk, err
}
