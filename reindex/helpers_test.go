package reindex

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/conceptrag/index"
	"github.com/poiesic/conceptrag/ingestion"
	"github.com/poiesic/conceptrag/storage"
	"github.com/poiesic/conceptrag/storage/badger"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"Work hours are 9-5 Monday to Friday.",
	"The weather forecast calls for rain and strong wind.",
	"Our office is open for business meetings on Tuesday.",
	"Quarterly revenue grew while costs stayed flat.",
	"The team schedule lists every meeting for the week.",
}

type fixture struct {
	documents   storage.DocumentRepository
	indexRepo   storage.IndexRepository
	checkpoints storage.CheckpointRepository
	idx         *index.Index
	ids         []string
}

// newFixture ingests the corpus without embeddings into in-memory badger.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	documents, indexRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		indexRepo.Close()
		documents.Close()
		backend.Close()
	})

	f := &fixture{
		documents:   documents,
		indexRepo:   indexRepo,
		checkpoints: badger.NewCheckpointRepository(backend),
		idx:         index.New(),
	}
	pipeline, err := ingestion.NewPipeline(documents, indexRepo, f.idx)
	require.NoError(t, err)
	defer pipeline.Release()

	for i, text := range corpus {
		id := fmt.Sprintf("doc-%02d", i)
		_, err := pipeline.Ingest(context.Background(), ingestion.Request{ID: id, Text: text})
		require.NoError(t, err)
		f.ids = append(f.ids, id)
	}
	return f
}
