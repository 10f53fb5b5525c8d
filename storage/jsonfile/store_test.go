package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/index"
	"github.com/poiesic/conceptrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument(id string, n int) (*core.Document, []*core.Chunk) {
	doc := &core.Document{ID: id, Text: "text of " + id, Source: id + ".txt", Metadata: map[string]string{"k": "v"}}
	chunks := make([]*core.Chunk, n)
	for i := range chunks {
		chunks[i] = &core.Chunk{
			ID:             core.ChunkID(id, i),
			DocID:          id,
			Position:       i,
			OriginalText:   "original",
			DerivedContent: "derived",
			Mode:           core.ModeSummary,
			Confidence:     1,
		}
	}
	return doc, chunks
}

func TestOpen_Empty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	documents, chunks, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, documents)
	assert.Zero(t, chunks)

	entries, err := store.LoadIndex(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir)
	require.NoError(t, err)

	doc, chunks := testDocument("d1", 3)
	chunks[1].Summary = "short"
	require.NoError(t, store.AddDocument(ctx, doc, chunks))

	idx := index.Build([]index.DocumentConcepts{{DocID: "d1", Chunks: []index.ChunkConcepts{
		{ChunkID: "d1_0000", Concepts: []core.Concept{{Name: "business", Weight: 0.5, Category: "business"}}},
	}}})
	require.NoError(t, store.SaveEntries(ctx, idx.Update("d1", []index.ChunkConcepts{
		{ChunkID: "d1_0002", Concepts: []core.Concept{{Name: "time", Weight: 0.3, Category: "time"}}},
	})...))
	require.NoError(t, store.ReplaceIndex(ctx, idx.Entries()))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	ordered, err := reopened.GetChunksByDocument(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	for i, c := range ordered {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, chunks[i], c)
	}

	entries, err := reopened.LoadIndex(ctx)
	require.NoError(t, err)
	assert.True(t, idx.Equal(index.FromEntries(entries)))
}

func TestStore_FileFormat(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	doc, chunks := testDocument("d1", 1)
	require.NoError(t, store.AddDocument(context.Background(), doc, chunks))

	data, err := os.ReadFile(filepath.Join(dir, DocumentStoreFile))
	require.NoError(t, err)

	var raw struct {
		Documents map[string]map[string]any `json:"documents"`
		Chunks    map[string]map[string]any `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw.Documents, "d1")
	assert.Equal(t, "text of d1", raw.Documents["d1"]["text"])
	assert.Equal(t, "d1.txt", raw.Documents["d1"]["source"])
	assert.Contains(t, raw.Documents["d1"], "metadata")
	require.Contains(t, raw.Chunks, "d1_0000")
	assert.Equal(t, "d1", raw.Chunks["d1_0000"]["doc_id"])
}

func TestOpen_CorruptFilesStartEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DocumentStoreFile), []byte("{broken"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConceptIndexFile), []byte("[1, 2"), 0644))

	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	documents, _, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, documents)

	// A corrupt cache never blocks new ingestion.
	doc, chunks := testDocument("d1", 1)
	require.NoError(t, store.AddDocument(context.Background(), doc, chunks))
}

func TestOpen_DropsOrphanChunks(t *testing.T) {
	dir := t.TempDir()
	state := `{
  "documents": {"d1": {"text": "text of d1", "source": "d1.txt", "metadata": {}}},
  "chunks": {
    "d1_0001": {"chunk_id": "d1_0001", "doc_id": "d1", "position": 1, "original_text": "second"},
    "d1_0000": {"chunk_id": "d1_0000", "doc_id": "d1", "position": 0, "original_text": "first"},
    "gone_0000": {"chunk_id": "gone_0000", "doc_id": "gone", "position": 0, "original_text": "orphan"}
  }
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DocumentStoreFile), []byte(state), 0644))

	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	documents, chunkCount, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, documents)
	assert.Equal(t, 2, chunkCount)

	_, err = store.GetChunk(ctx, "gone_0000")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	chunks, err := store.GetChunksByDocument(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first", chunks[0].OriginalText)
	assert.Equal(t, "second", chunks[1].OriginalText)
}

func TestStore_DeleteDocument(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir)
	require.NoError(t, err)

	doc, chunks := testDocument("d1", 2)
	require.NoError(t, store.AddDocument(ctx, doc, chunks))
	other, otherChunks := testDocument("d2", 1)
	require.NoError(t, store.AddDocument(ctx, other, otherChunks))

	require.NoError(t, store.DeleteDocument(ctx, "d1"))
	assert.ErrorIs(t, store.DeleteDocument(ctx, "d1"), storage.ErrNotFound)
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.GetDocument(ctx, "d1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	remaining, err := reopened.GetChunksByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	documents, chunkCount, err := reopened.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, documents)
	assert.Equal(t, 1, chunkCount)
}

func TestStore_DuplicateAndMissing(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	doc, chunks := testDocument("d1", 1)
	require.NoError(t, store.AddDocument(ctx, doc, chunks))
	assert.ErrorIs(t, store.AddDocument(ctx, doc, chunks), storage.ErrDuplicateKey)

	_, err = store.GetDocument(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetChunk(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, ghost := testDocument("ghost", 1)
	assert.ErrorIs(t, store.UpdateChunks(ctx, ghost[0]), storage.ErrNotFound)
}

func TestStore_UpdateChunksAndFindSimilar(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	doc, chunks := testDocument("d1", 2)
	require.NoError(t, store.AddDocument(ctx, doc, chunks))

	chunks[0].Vector = []float32{0, 1}
	chunks[1].Vector = []float32{1, 0}
	require.NoError(t, store.UpdateChunks(ctx, chunks...))

	results, err := store.FindSimilar(ctx, []float32{1, 0}, 0.5, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1_0001", results[0].ChunkID)

	got, err := store.GetChunks(ctx, "d1_0000", "missing")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float32{0, 1}, got[0].Vector)
}

func TestStore_Reset(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	ctx := context.Background()

	doc, chunks := testDocument("d1", 1)
	require.NoError(t, store.AddDocument(ctx, doc, chunks))
	require.NoError(t, store.SaveEntries(ctx, &core.IndexEntry{
		Name: "business", Category: "business", TotalWeight: 1,
		Documents: []core.DocumentRef{{DocID: "d1", ChunkID: "d1_0000", Weight: 1, Seq: 1}},
	}))
	require.NoError(t, store.Reset(ctx))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	documents, chunkCount, err := reopened.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, documents)
	assert.Zero(t, chunkCount)

	entries, err := reopened.LoadIndex(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_Closed(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	doc, chunks := testDocument("d1", 1)
	assert.ErrorIs(t, store.AddDocument(context.Background(), doc, chunks), storage.ErrStorageClosed)
}
