package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/conceptrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concept_index.json")
	original := Build(sampleDocs())

	require.NoError(t, original.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, original.Equal(loaded))
	assert.Equal(t, original.Targets(), loaded.Targets())
}

func TestSave_HumanReadableForm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concept_index.json")
	require.NoError(t, Build(sampleDocs()).Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "business")
	assert.ElementsMatch(t,
		[]string{"category", "total_weight", "documents", "related_concepts"},
		keys(raw["business"]))
}

func TestLoad_Missing(t *testing.T) {
	idx, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concept_index.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"business": [`), 0644))

	idx, err := Load(path)
	assert.ErrorIs(t, err, storage.ErrCorruptState)
	require.NotNil(t, idx)
	assert.Equal(t, 0, idx.Len())

	// The empty index still accepts updates.
	idx.Update("d1", sampleDocs()[0].Chunks)
	assert.Equal(t, 2, idx.Len())
}

func TestJSON_RoundTrip(t *testing.T) {
	original := Build(sampleDocs())

	data, err := json.Marshal(original)
	require.NoError(t, err)

	decoded := New()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.True(t, original.Equal(decoded))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
