package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/storage"
)

// MarshalJSON encodes the index as {name: {category, total_weight,
// documents, related_concepts}}.
func (i *Index) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Entries())
}

// UnmarshalJSON replaces the index contents with the decoded entries.
func (i *Index) UnmarshalJSON(data []byte) error {
	var entries map[string]*core.IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	restored := FromEntries(entries)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = restored.entries
	i.chunkSeq = restored.chunkSeq
	i.nextSeq = restored.nextSeq
	return nil
}

// Save writes the index to path in indented JSON, replacing the file
// atomically.
func (i *Index) Save(path string) error {
	data, err := json.MarshalIndent(i.Entries(), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return storage.WriteFileAtomic(path, data)
}

// Load reads an index saved by Save. A missing file yields an empty index. A
// file that cannot be decoded also yields an empty index; the returned error
// then wraps storage.ErrCorruptState and is a diagnostic only.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}

	idx := New()
	if err := json.Unmarshal(data, idx); err != nil {
		slog.Default().Warn("concept index is corrupt, starting empty", "path", path, "err", err)
		return New(), fmt.Errorf("%w: %s: %w", storage.ErrCorruptState, path, err)
	}
	return idx, nil
}
