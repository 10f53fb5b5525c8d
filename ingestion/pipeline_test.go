package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/conceptrag/ai/mock"
	"github.com/poiesic/conceptrag/chunking"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/index"
	"github.com/poiesic/conceptrag/storage"
	"github.com/poiesic/conceptrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workHours = "Work hours are 9-5 Monday to Friday."

type fixture struct {
	docs    storage.DocumentRepository
	indexes storage.IndexRepository
	idx     *index.Index
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	docRepo, indexRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		indexRepo.Close()
		docRepo.Close()
		backend.Close()
	})
	return &fixture{docs: docRepo, indexes: indexRepo, idx: index.New()}
}

func (f *fixture) pipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(f.docs, f.indexes, f.idx, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestNewPipeline(t *testing.T) {
	f := newFixture(t)

	t.Run("missing collaborators", func(t *testing.T) {
		_, err := NewPipeline(nil, f.indexes, f.idx)
		assert.Equal(t, ErrDocumentRepositoryRequired, err)
		_, err = NewPipeline(f.docs, nil, f.idx)
		assert.Equal(t, ErrIndexRepositoryRequired, err)
		_, err = NewPipeline(f.docs, f.indexes, nil)
		assert.Equal(t, ErrIndexRequired, err)
	})

	tests := []struct {
		name string
		opt  Option
	}{
		{"bad mode", WithProcessingMode("verbose")},
		{"zero keywords", WithKeywords(0)},
		{"zero sentences", WithSummarySentences(0)},
		{"nil chunker", WithChunker(nil)},
		{"nil extractor", WithExtractor(nil)},
		{"nil lock", WithWriteLock(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(f.docs, f.indexes, f.idx, tt.opt)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("custom pool and logger", func(t *testing.T) {
		p := f.pipeline(t, WithPoolSize(0), WithPoolSize(4), WithLogger(nil))
		assert.Equal(t, 4, p.pool.Cap())
	})
}

func TestIngest_SingleChunk(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)
	ctx := context.Background()

	result, err := p.Ingest(ctx, Request{Text: workHours, Source: "handbook.txt"})
	require.NoError(t, err)

	docID := core.DocumentIDFromText(workHours)
	assert.Equal(t, docID, result.DocID)
	assert.Equal(t, 1, result.Chunks)
	assert.ElementsMatch(t, []string{"business", "time"}, result.Concepts)
	assert.False(t, result.Embedded)

	doc, err := f.docs.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, "handbook.txt", doc.Source)
	assert.NotNil(t, doc.Metadata)

	chunks, err := f.docs.GetChunksByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	chunk := chunks[0]
	assert.Equal(t, core.ChunkID(docID, 0), chunk.ID)
	assert.Equal(t, workHours, chunk.OriginalText)
	assert.Equal(t, core.ModeHybrid, chunk.Mode)
	assert.Equal(t, 1.0, chunk.Confidence)
	assert.Contains(t, chunk.DerivedContent, " | Keywords: ")
	assert.NotEmpty(t, chunk.Keywords)
	assert.Empty(t, chunk.Vector)

	// Index updated in memory and persisted.
	entry, ok := f.idx.Entry("business")
	require.True(t, ok)
	assert.Equal(t, chunk.ID, entry.Documents[0].ChunkID)

	stored, err := f.indexes.LoadIndex(ctx)
	require.NoError(t, err)
	assert.True(t, f.idx.Equal(index.FromEntries(stored)))
}

func TestIngest_ContiguousPositions(t *testing.T) {
	f := newFixture(t)
	chunker, err := chunking.New(chunking.WithTargetSize(60), chunking.WithOverlap(10))
	require.NoError(t, err)
	p := f.pipeline(t, WithChunker(chunker))

	text := strings.Repeat("The team meeting covers the project budget. ", 10)
	result, err := p.Ingest(context.Background(), Request{ID: "handbook", Text: text})
	require.NoError(t, err)
	require.Greater(t, result.Chunks, 1)

	chunks, err := f.docs.GetChunksByDocument(context.Background(), "handbook")
	require.NoError(t, err)
	require.Len(t, chunks, result.Chunks)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Position)
		assert.Equal(t, core.ChunkID("handbook", i), chunk.ID)
	}
	assert.Equal(t, result.Chunks, f.idx.Chunks())
}

func TestIngest_ProcessingModes(t *testing.T) {
	text := "Employee policy changed. Every employee must attend the weekly meeting. Budget review follows."
	tests := []struct {
		mode  core.ProcessingMode
		check func(t *testing.T, c *core.Chunk)
	}{
		{core.ModeKeywords, func(t *testing.T, c *core.Chunk) {
			assert.True(t, strings.HasPrefix(c.DerivedContent, "Employee policy changed."))
			assert.Contains(t, c.DerivedContent, " | Keywords: employee")
		}},
		{core.ModeSummary, func(t *testing.T, c *core.Chunk) {
			assert.Equal(t, c.Summary, c.DerivedContent)
			assert.NotContains(t, c.DerivedContent, "Keywords:")
		}},
		{core.ModeHybrid, func(t *testing.T, c *core.Chunk) {
			assert.True(t, strings.HasPrefix(c.DerivedContent, c.Summary+" | Keywords: "))
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			f := newFixture(t)
			p := f.pipeline(t, WithProcessingMode(tt.mode), WithKeywords(3))

			result, err := p.Ingest(context.Background(), Request{ID: "doc", Text: text})
			require.NoError(t, err)
			chunk, err := f.docs.GetChunk(context.Background(), core.ChunkID(result.DocID, 0))
			require.NoError(t, err)
			assert.Equal(t, tt.mode, chunk.Mode)
			assert.Len(t, chunk.Keywords, 3)
			tt.check(t, chunk)
		})
	}
}

func TestIngest_EmptyText(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)

	for _, text := range []string{"", "   \n\t"} {
		_, err := p.Ingest(context.Background(), Request{Text: text})
		assert.ErrorIs(t, err, core.ErrEmptyInput)
	}
	documents, chunks, err := f.docs.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, documents)
	assert.Zero(t, chunks)
}

func TestIngest_LongWhitespaceRun(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)
	ctx := context.Background()

	text := "The vacation policy applies to every employee." + strings.Repeat("\n", 1200) + "Meetings start at nine."
	result, err := p.Ingest(ctx, Request{ID: "d", Text: text})
	require.NoError(t, err)
	assert.Greater(t, result.Chunks, 1)

	chunks, err := f.docs.GetChunksByDocument(ctx, "d")
	require.NoError(t, err)
	require.Len(t, chunks, result.Chunks)
	for _, chunk := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(chunk.OriginalText), chunk.ID)
	}
}

func TestConceptProcessor_BlankChunkHasNoConcepts(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)

	chunk := &core.Chunk{ID: "d_0001", DocID: "d", Position: 1, OriginalText: "\n\n   \n"}
	require.NoError(t, p.conceptProc.process(context.Background(), []*core.Chunk{chunk}))
	assert.Empty(t, chunk.Concepts)
}

// failingIndexRepository delegates to a real repository unless SaveEntriesFunc
// is set.
type failingIndexRepository struct {
	storage.IndexRepository
	SaveEntriesFunc func(ctx context.Context, entries ...*core.IndexEntry) error
}

func (r *failingIndexRepository) SaveEntries(ctx context.Context, entries ...*core.IndexEntry) error {
	if r.SaveEntriesFunc != nil {
		return r.SaveEntriesFunc(ctx, entries...)
	}
	return r.IndexRepository.SaveEntries(ctx, entries...)
}

func TestIngest_IndexWriteFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	repo := &failingIndexRepository{
		IndexRepository: f.indexes,
		SaveEntriesFunc: func(ctx context.Context, entries ...*core.IndexEntry) error {
			return errors.New("disk full")
		},
	}
	p, err := NewPipeline(f.docs, repo, f.idx)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	ctx := context.Background()

	_, err = p.Ingest(ctx, Request{ID: "doc1", Text: workHours})
	require.EqualError(t, err, "disk full")

	_, err = f.docs.GetDocument(ctx, "doc1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	documents, chunks, err := f.docs.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, documents)
	assert.Zero(t, chunks)
	assert.Zero(t, f.idx.Len())

	// Once the index can be written, the same document ingests normally.
	repo.SaveEntriesFunc = nil
	result, err := p.Ingest(ctx, Request{ID: "doc1", Text: workHours})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Concepts)

	persisted, err := f.indexes.LoadIndex(ctx)
	require.NoError(t, err)
	assert.True(t, f.idx.Equal(index.FromEntries(persisted)))
}

func TestIngest_Duplicate(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)
	ctx := context.Background()

	_, err := p.Ingest(ctx, Request{Text: workHours})
	require.NoError(t, err)
	before := f.idx.Entries()

	_, err = p.Ingest(ctx, Request{Text: workHours})
	assert.ErrorIs(t, err, ErrDuplicateDocument)
	assert.Equal(t, before, f.idx.Entries())
}

func TestIngest_WithEmbedder(t *testing.T) {
	f := newFixture(t)
	embedder := mock.NewMockEmbedder()
	p := f.pipeline(t, WithEmbedder(embedder))

	result, err := p.Ingest(context.Background(), Request{ID: "doc", Text: workHours})
	require.NoError(t, err)
	assert.True(t, result.Embedded)
	assert.Equal(t, 1, embedder.CallCount())

	chunk, err := f.docs.GetChunk(context.Background(), "doc_0000")
	require.NoError(t, err)
	assert.Len(t, chunk.Vector, mock.Dimensions)
}

func TestIngest_EmbedderFailureDegrades(t *testing.T) {
	f := newFixture(t)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}
	p := f.pipeline(t, WithEmbedder(embedder))

	result, err := p.Ingest(context.Background(), Request{ID: "doc", Text: workHours})
	require.NoError(t, err)
	assert.False(t, result.Embedded)

	chunk, err := f.docs.GetChunk(context.Background(), "doc_0000")
	require.NoError(t, err)
	assert.Empty(t, chunk.Vector)
}

func TestIngestBatch(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)

	results, err := p.IngestBatch(context.Background(), []Request{
		{ID: "a", Text: workHours, Source: "a.txt"},
		{ID: "b", Text: "   ", Source: "b.txt"},
		{ID: "c", Text: "The weather forecast predicts rain.", Source: "c.txt"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyInput)
	assert.Contains(t, err.Error(), "b.txt")

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].DocID)
	assert.Equal(t, "c", results[1].DocID)
	assert.Equal(t, 2, f.idx.Chunks())
}

func TestIngestBatch_Cancelled(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := p.IngestBatch(ctx, []Request{{Text: workHours}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestIngest_ConcurrentPipelinesShareLock(t *testing.T) {
	f := newFixture(t)
	var mu sync.Mutex
	p1 := f.pipeline(t, WithWriteLock(&mu))
	p2 := f.pipeline(t, WithWriteLock(&mu))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		p := p1
		if i%2 == 1 {
			p = p2
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Ingest(context.Background(), Request{
				ID:   fmt.Sprintf("doc-%02d", i),
				Text: fmt.Sprintf("Meeting %d: the team reviews the project schedule on Monday.", i),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, f.idx.Chunks())
	stored, err := f.indexes.LoadIndex(context.Background())
	require.NoError(t, err)
	assert.True(t, f.idx.Equal(index.FromEntries(stored)))
}
