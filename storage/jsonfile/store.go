// Package jsonfile persists the document store and the concept index as two
// human-readable JSON files in one directory.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/index"
	"github.com/poiesic/conceptrag/storage"
)

const (
	// DocumentStoreFile holds {documents: {...}, chunks: {...}}.
	DocumentStoreFile = "document_store.json"

	// ConceptIndexFile holds {concept: {category, total_weight, documents, related_concepts}}.
	ConceptIndexFile = "concept_index.json"
)

// Store keeps both files in memory and rewrites the affected file after every
// mutation. It implements storage.DocumentRepository, storage.IndexRepository
// and storage.VectorSearcher.
type Store struct {
	mu      sync.RWMutex
	dir     string
	state   *storage.DocumentStoreState
	byDoc   map[string][]string
	entries map[string]*core.IndexEntry
	closed  bool
	logger  *slog.Logger
}

var (
	_ storage.DocumentRepository = (*Store)(nil)
	_ storage.IndexRepository    = (*Store)(nil)
	_ storage.VectorSearcher     = (*Store)(nil)
)

// Open loads the store from dir, creating the directory when needed. Missing
// files start empty; files that cannot be decoded also start empty and a
// warning is logged.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	s := &Store{
		dir:    dir,
		logger: slog.Default().With("component", "jsonfile-store"),
	}

	state, err := s.loadDocuments()
	if err != nil {
		return nil, err
	}
	s.setState(state)

	idx, err := index.Load(s.indexPath())
	if errors.Is(err, storage.ErrCorruptState) {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	s.entries = idx.Entries()

	s.logger.Debug("store loaded",
		"dir", dir,
		"documents", len(s.state.Documents),
		"chunks", len(s.state.Chunks),
		"concepts", len(s.entries))
	return s, nil
}

// Dir returns the directory holding the files.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Reset empties both the document store and the concept index.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	s.setState(storage.NewDocumentStoreState())
	s.entries = make(map[string]*core.IndexEntry)
	if err := s.flushDocuments(); err != nil {
		return err
	}
	return s.flushIndex()
}

func (s *Store) AddDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	if _, ok := s.state.Documents[doc.ID]; ok {
		return fmt.Errorf("%w: document %s", storage.ErrDuplicateKey, doc.ID)
	}

	stored := *doc
	s.state.Documents[doc.ID] = &stored
	for _, chunk := range chunks {
		c := *chunk
		s.state.Chunks[chunk.ID] = &c
	}
	s.byDoc[doc.ID] = chunkIDs(chunks)

	if err := s.flushDocuments(); err != nil {
		// Keep memory consistent with the file.
		delete(s.state.Documents, doc.ID)
		for _, chunk := range chunks {
			delete(s.state.Chunks, chunk.ID)
		}
		delete(s.byDoc, doc.ID)
		return err
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	doc, ok := s.state.Documents[id]
	if !ok {
		return storage.ErrNotFound
	}

	ids := s.byDoc[id]
	removed := make(map[string]*core.Chunk, len(ids))
	for _, chunkID := range ids {
		removed[chunkID] = s.state.Chunks[chunkID]
		delete(s.state.Chunks, chunkID)
	}
	delete(s.state.Documents, id)
	delete(s.byDoc, id)

	if err := s.flushDocuments(); err != nil {
		s.state.Documents[id] = doc
		for chunkID, chunk := range removed {
			s.state.Chunks[chunkID] = chunk
		}
		s.byDoc[id] = ids
		return err
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.state.Documents[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *doc
	return &out, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.state.Documents))
	for id := range s.state.Documents {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	docs := make([]*core.Document, len(ids))
	for i, id := range ids {
		doc := *s.state.Documents[id]
		docs[i] = &doc
	}
	return docs, nil
}

func (s *Store) GetChunk(ctx context.Context, id string) (*core.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.state.Chunks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *chunk
	return &out, nil
}

func (s *Store) GetChunks(ctx context.Context, ids ...string) ([]*core.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := make([]*core.Chunk, 0, len(ids))
	for _, id := range ids {
		if chunk, ok := s.state.Chunks[id]; ok {
			c := *chunk
			chunks = append(chunks, &c)
		}
	}
	return chunks, nil
}

func (s *Store) GetChunksByDocument(ctx context.Context, docID string) ([]*core.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byDoc[docID]
	chunks := make([]*core.Chunk, 0, len(ids))
	for _, id := range ids {
		c := *s.state.Chunks[id]
		chunks = append(chunks, &c)
	}
	return chunks, nil
}

func (s *Store) UpdateChunks(ctx context.Context, chunks ...*core.Chunk) error {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	previous := make(map[string]*core.Chunk, len(chunks))
	for _, chunk := range chunks {
		old, ok := s.state.Chunks[chunk.ID]
		if !ok {
			return fmt.Errorf("%w: chunk %s", storage.ErrNotFound, chunk.ID)
		}
		if old.DocID != chunk.DocID || old.Position != chunk.Position {
			return fmt.Errorf("%w: chunk %s cannot move", core.ErrInvalidChunk, chunk.ID)
		}
		previous[chunk.ID] = old
	}
	for _, chunk := range chunks {
		c := *chunk
		s.state.Chunks[chunk.ID] = &c
	}
	if err := s.flushDocuments(); err != nil {
		for id, old := range previous {
			s.state.Chunks[id] = old
		}
		return err
	}
	return nil
}

func (s *Store) Counts(ctx context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.Documents), len(s.state.Chunks), nil
}

func (s *Store) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.SimilarityMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []core.SimilarityMatch
	for id, chunk := range s.state.Chunks {
		if len(chunk.Vector) == 0 {
			continue
		}
		var score float32
		for i := 0; i < min(len(vector), len(chunk.Vector)); i++ {
			score += vector[i] * chunk.Vector[i]
		}
		if score >= minSimilarity {
			results = append(results, core.SimilarityMatch{ChunkID: id, Score: score})
		}
	}
	slices.SortFunc(results, func(a, b core.SimilarityMatch) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return strings.Compare(a.ChunkID, b.ChunkID)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store) LoadIndex(ctx context.Context) (map[string]*core.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*core.IndexEntry, len(s.entries))
	for name, e := range s.entries {
		out[name] = e.Clone()
	}
	return out, nil
}

func (s *Store) SaveEntries(ctx context.Context, entries ...*core.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	previous := make(map[string]*core.IndexEntry, len(entries))
	for _, e := range entries {
		if _, seen := previous[e.Name]; !seen {
			previous[e.Name] = s.entries[e.Name]
		}
		s.entries[e.Name] = e.Clone()
	}
	if err := s.flushIndex(); err != nil {
		for name, old := range previous {
			if old == nil {
				delete(s.entries, name)
			} else {
				s.entries[name] = old
			}
		}
		return err
	}
	return nil
}

func (s *Store) ReplaceIndex(ctx context.Context, entries map[string]*core.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	s.entries = make(map[string]*core.IndexEntry, len(entries))
	for name, e := range entries {
		c := e.Clone()
		c.Name = name
		s.entries[name] = c
	}
	return s.flushIndex()
}

func (s *Store) documentsPath() string {
	return filepath.Join(s.dir, DocumentStoreFile)
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, ConceptIndexFile)
}

func (s *Store) loadDocuments() (*storage.DocumentStoreState, error) {
	path := s.documentsPath()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return storage.NewDocumentStoreState(), nil
	}
	if err != nil {
		return nil, err
	}

	state := storage.NewDocumentStoreState()
	if err := json.Unmarshal(data, state); err != nil {
		s.logger.Warn("document store is corrupt, starting empty", "path", path, "err", err)
		return storage.NewDocumentStoreState(), nil
	}
	if state.Documents == nil {
		state.Documents = make(map[string]*core.Document)
	}
	if state.Chunks == nil {
		state.Chunks = make(map[string]*core.Chunk)
	}
	for id, doc := range state.Documents {
		if doc == nil {
			delete(state.Documents, id)
			continue
		}
		doc.ID = id
	}
	for id, chunk := range state.Chunks {
		if chunk == nil {
			delete(state.Chunks, id)
			continue
		}
		chunk.ID = id
		if _, ok := state.Documents[chunk.DocID]; !ok {
			s.logger.Warn("dropping chunk of unknown document", "chunk", id, "doc", chunk.DocID)
			delete(state.Chunks, id)
		}
	}
	return state, nil
}

// setState installs state and rebuilds the per-document chunk lists.
func (s *Store) setState(state *storage.DocumentStoreState) {
	s.state = state
	grouped := make(map[string][]*core.Chunk, len(state.Documents))
	for _, c := range state.Chunks {
		grouped[c.DocID] = append(grouped[c.DocID], c)
	}
	s.byDoc = make(map[string][]string, len(grouped))
	for docID, chunks := range grouped {
		s.byDoc[docID] = chunkIDs(chunks)
	}
}

// chunkIDs returns the IDs of chunks ordered by position.
func chunkIDs(chunks []*core.Chunk) []string {
	sorted := slices.Clone(chunks)
	slices.SortFunc(sorted, func(a, b *core.Chunk) int { return a.Position - b.Position })
	ids := make([]string, len(sorted))
	for i, c := range sorted {
		ids[i] = c.ID
	}
	return ids
}

func (s *Store) flushDocuments() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return storage.WriteFileAtomic(s.documentsPath(), data)
}

func (s *Store) flushIndex() error {
	return index.FromEntries(s.entries).Save(s.indexPath())
}
