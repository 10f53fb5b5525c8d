package reindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentIterator_Batches(t *testing.T) {
	f := newFixture(t)
	it := NewDocumentIterator(f.documents, 2)

	var sizes []int
	var seen []string
	err := it.ForEach(context.Background(), "", func(batch *DocumentBatch) error {
		sizes = append(sizes, len(batch.Documents))
		for _, doc := range batch.Documents {
			seen = append(seen, doc.ID)
			assert.NotEmpty(t, batch.Chunks[doc.ID])
		}
		assert.Equal(t, batch.Documents[len(batch.Documents)-1].ID, batch.Last())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, f.ids, seen)
}

func TestDocumentIterator_After(t *testing.T) {
	f := newFixture(t)
	it := NewDocumentIterator(f.documents, 0)

	n, err := it.Count(context.Background(), f.ids[2])
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var seen []string
	err = it.ForEach(context.Background(), f.ids[2], func(batch *DocumentBatch) error {
		for _, doc := range batch.Documents {
			seen = append(seen, doc.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, f.ids[3:], seen)
}

func TestDocumentIterator_StopsOnError(t *testing.T) {
	f := newFixture(t)
	it := NewDocumentIterator(f.documents, 1)

	boom := errors.New("boom")
	calls := 0
	err := it.ForEach(context.Background(), "", func(batch *DocumentBatch) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDocumentIterator_Canceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewDocumentIterator(f.documents, 1).ForEach(ctx, "", func(*DocumentBatch) error {
		t.Fatal("batch delivered after cancel")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDocumentBatch_Empty(t *testing.T) {
	batch := &DocumentBatch{}
	assert.Empty(t, batch.Last())
	assert.Zero(t, batch.ChunkCount())
}
