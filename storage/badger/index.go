package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/storage"
)

// IndexRepository stores one key per concept index entry.
type IndexRepository struct {
	backend *Backend
}

var _ storage.IndexRepository = (*IndexRepository)(nil)

func NewIndexRepository(backend *Backend) *IndexRepository {
	return &IndexRepository{backend: backend}
}

// Close is a no-op; the backend is closed by its owner.
func (r *IndexRepository) Close() error {
	return nil
}

func (r *IndexRepository) Reset(ctx context.Context) error {
	return r.backend.DropPrefixes(indexEntryPrefix)
}

func (r *IndexRepository) LoadIndex(ctx context.Context) (map[string]*core.IndexEntry, error) {
	entries := make(map[string]*core.IndexEntry)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixOf(indexEntryPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			name := string(item.Key()[len(opts.Prefix):])
			err := item.Value(func(val []byte) error {
				entry, err := storage.UnmarshalIndexEntry(name, val)
				if err != nil {
					return err
				}
				entries[name] = entry
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *IndexRepository) SaveEntries(ctx context.Context, entries ...*core.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, entry := range entries {
			if err := writeIndexEntry(tx, entry); err != nil {
				return err
			}
		}
		return commit(tx)
	}, true)
}

func (r *IndexRepository) ReplaceIndex(ctx context.Context, entries map[string]*core.IndexEntry) error {
	if err := r.backend.DropPrefixes(indexEntryPrefix); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for name, entry := range entries {
			e := entry.Clone()
			e.Name = name
			if err := writeIndexEntry(tx, e); err != nil {
				return err
			}
		}
		return commit(tx)
	}, true)
}

func writeIndexEntry(tx *badger.Txn, entry *core.IndexEntry) error {
	value, err := storage.MarshalIndexEntry(entry)
	if err != nil {
		return err
	}
	return tx.Set(makeIndexEntryKey(entry.Name), value)
}
