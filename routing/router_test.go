package routing

import (
	"context"
	"testing"

	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/extraction"
	"github.com/poiesic/conceptrag/index"
	"github.com/poiesic/conceptrag/matching"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handbook = "Work hours: Monday to Friday, 9 AM to 5 PM. Every employee follows the vacation policy."

func newTestRouter(t *testing.T, idx *index.Index, opts ...Option) *Router {
	t.Helper()
	extractor, err := extraction.New()
	require.NoError(t, err)
	matcher, err := matching.New()
	require.NoError(t, err)
	r, err := New(extractor, matcher, idx, opts...)
	require.NoError(t, err)
	return r
}

func handbookIndex(t *testing.T) *index.Index {
	t.Helper()
	extractor, err := extraction.New()
	require.NoError(t, err)
	concepts, err := extractor.ExtractDocument(handbook, nil)
	require.NoError(t, err)
	return index.Build([]index.DocumentConcepts{{
		DocID:  "handbook",
		Chunks: []index.ChunkConcepts{{ChunkID: core.ChunkID("handbook", 0), Concepts: concepts}},
	}})
}

func TestRoute(t *testing.T) {
	r := newTestRouter(t, handbookIndex(t))

	tests := []struct {
		name     string
		query    string
		strategy Strategy
		city     string
		reason   string
	}{
		{name: "greeting", query: "Hello!", strategy: DirectResponse, reason: "greeting"},
		{name: "short text", query: "ok", strategy: DirectResponse, reason: "greeting"},
		{name: "weather with city", query: "What's the weather in Tokyo?", strategy: SpecializedAPI, city: "Tokyo", reason: "Tokyo"},
		{name: "weather beats greeting", query: "hi, weather in Oslo", strategy: SpecializedAPI, city: "Oslo"},
		{name: "weather without city", query: "how is the weather", strategy: SpecializedAPI, reason: "without a city"},
		{name: "concept search", query: "What is the vacation policy for an employee?", strategy: ConceptSearch, reason: "business"},
		{name: "no shared vocabulary", query: "Tell me about quantum chromodynamics", strategy: SemanticFallback, reason: "tell me about"},
		{name: "long query", query: "purple monkeys dancing on the moon", strategy: SemanticFallback, reason: "characters long"},
		{name: "default direct", query: "purple monkey", strategy: DirectResponse, reason: "short query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := r.Route(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, d.Strategy)
			assert.Equal(t, tt.city, d.City)
			assert.NotEmpty(t, d.Reasoning)
			if tt.reason != "" {
				assert.Contains(t, d.Reasoning, tt.reason)
			}
			if d.Strategy == ConceptSearch {
				require.NotEmpty(t, d.Matches)
			} else {
				assert.Empty(t, d.Matches)
			}
		})
	}
}

func TestRoute_ConceptSearchTopChunk(t *testing.T) {
	r := newTestRouter(t, handbookIndex(t))

	d, err := r.Route(context.Background(), "What is the vacation policy for an employee?")
	require.NoError(t, err)
	require.Equal(t, ConceptSearch, d.Strategy)
	assert.Equal(t, "handbook_0000", d.Matches[0].TargetID)
}

func TestRoute_IndexNotLoaded(t *testing.T) {
	r := newTestRouter(t, nil)

	d, err := r.Route(context.Background(), "What is the vacation policy for an employee?")
	require.NoError(t, err)
	assert.Equal(t, SemanticFallback, d.Strategy)
	assert.Contains(t, d.Reasoning, "not loaded")
}

func TestRoute_WeakConcepts(t *testing.T) {
	r := newTestRouter(t, handbookIndex(t), WithMinConceptWeight(1.0), WithMinQueryLength(100))

	// business weighs 10/18 here: present but below the minimum.
	d, err := r.Route(context.Background(), "the office can be found near many tall old trees by the river in the north of town")
	require.NoError(t, err)
	assert.Equal(t, DirectResponse, d.Strategy)
	assert.Contains(t, d.Reasoning, "no concept weighs at least 1.00")
}

func TestRoute_Stateless(t *testing.T) {
	r := newTestRouter(t, handbookIndex(t))
	ctx := context.Background()

	first, err := r.Route(ctx, "What is the vacation policy for an employee?")
	require.NoError(t, err)
	_, err = r.Route(ctx, "Hello!")
	require.NoError(t, err)
	again, err := r.Route(ctx, "What is the vacation policy for an employee?")
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestRoute_Errors(t *testing.T) {
	r := newTestRouter(t, nil)

	_, err := r.Route(context.Background(), "   ")
	assert.ErrorIs(t, err, core.ErrEmptyInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Route(ctx, "Hello!")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	extractor, err := extraction.New()
	require.NoError(t, err)
	matcher, err := matching.New()
	require.NoError(t, err)

	_, err = New(extractor, matcher, nil, WithMinConceptWeight(2))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(extractor, matcher, nil, WithMinQueryLength(-1))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestInfoMarker(t *testing.T) {
	assert.Equal(t, "how to", infoMarker("How to reset my password"))
	assert.Equal(t, "explain", infoMarker("please EXPLAIN this"))
	assert.Equal(t, "", infoMarker("whyever not"))
}
