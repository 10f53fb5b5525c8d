package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/conceptrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalDocument(t *testing.T) {
	doc := &core.Document{
		ID:       "d1",
		Text:     "Work hours: Monday to Friday.",
		Source:   "handbook.txt",
		Metadata: map[string]string{"lang": "en"},
	}

	data, err := MarshalDocument(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"d1"`)

	decoded, err := UnmarshalDocument("d1", data)
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestMarshalUnmarshalChunk(t *testing.T) {
	chunk := &core.Chunk{
		ID:             "d1_0000",
		DocID:          "d1",
		Position:       0,
		OriginalText:   "Work hours: Monday to Friday.",
		DerivedContent: "Work hours | Keywords: work, hours",
		Keywords:       []string{"work", "hours"},
		Mode:           core.ModeHybrid,
		Confidence:     1.0,
		Concepts:       []core.Concept{{Name: "business", Weight: 1, Category: "business", Confidence: 0.3}},
		Vector:         []float32{0.6, 0.8},
	}

	data, err := MarshalChunk(chunk)
	require.NoError(t, err)

	decoded, err := UnmarshalChunk(data)
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestUnmarshalIndexEntry(t *testing.T) {
	data := []byte(`{"category":"business","total_weight":0.8,"documents":[{"doc_id":"d1","chunk_id":"d1_0000","weight":0.8,"seq":1}]}`)

	entry, err := UnmarshalIndexEntry("business", data)
	require.NoError(t, err)
	assert.Equal(t, "business", entry.Name)
	assert.Equal(t, 0.8, entry.TotalWeight)
	require.Len(t, entry.Documents, 1)
	assert.Equal(t, uint64(1), entry.Documents[0].Seq)
	assert.NotNil(t, entry.RelatedConcepts)
}

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	checkpoint := &core.Checkpoint{
		Processor: "reembed",
		LastDocID: "d9",
		Processed: 12,
		UpdatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := MarshalCheckpoint(checkpoint)
	require.NoError(t, err)

	decoded, err := UnmarshalCheckpoint(data)
	require.NoError(t, err)
	assert.Equal(t, checkpoint, decoded)
}

func TestUnmarshal_Invalid(t *testing.T) {
	tests := []struct {
		name string
		fn   func([]byte) error
	}{
		{"document", func(b []byte) error { _, err := UnmarshalDocument("x", b); return err }},
		{"chunk", func(b []byte) error { _, err := UnmarshalChunk(b); return err }},
		{"entry", func(b []byte) error { _, err := UnmarshalIndexEntry("x", b); return err }},
		{"checkpoint", func(b []byte) error { _, err := UnmarshalCheckpoint(b); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.fn([]byte("{not json")), ErrSerializationFailed)
			assert.ErrorIs(t, tt.fn(nil), ErrSerializationFailed)
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	require.NoError(t, WriteFileAtomic(path, []byte("first")))
	require.NoError(t, WriteFileAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}
