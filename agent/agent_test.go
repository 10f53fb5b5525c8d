package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/conceptrag/ai/mock"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/extraction"
	"github.com/poiesic/conceptrag/index"
	"github.com/poiesic/conceptrag/ingestion"
	"github.com/poiesic/conceptrag/matching"
	"github.com/poiesic/conceptrag/routing"
	"github.com/poiesic/conceptrag/storage"
	"github.com/poiesic/conceptrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workHours = "Work hours are 9-5 Monday to Friday."

type fixture struct {
	docs   storage.DocumentRepository
	idx    *index.Index
	router *routing.Router
}

func newFixture(t *testing.T, texts ...string) *fixture {
	t.Helper()
	docRepo, indexRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		indexRepo.Close()
		docRepo.Close()
		backend.Close()
	})

	idx := index.New()
	pipeline, err := ingestion.NewPipeline(docRepo, indexRepo, idx)
	require.NoError(t, err)
	defer pipeline.Release()
	for i, text := range texts {
		_, err := pipeline.Ingest(context.Background(), ingestion.Request{ID: docID(i), Text: text})
		require.NoError(t, err)
	}

	extractor, err := extraction.New()
	require.NoError(t, err)
	matcher, err := matching.New()
	require.NoError(t, err)
	router, err := routing.New(extractor, matcher, idx)
	require.NoError(t, err)

	return &fixture{docs: docRepo, idx: idx, router: router}
}

func docID(i int) string {
	return string(rune('a'+i)) + "-doc"
}

func (f *fixture) agent(t *testing.T, opts ...Option) *Agent {
	t.Helper()
	a, err := New(f.router, f.docs, opts...)
	require.NoError(t, err)
	return a
}

type fakeWeather struct {
	weather *Weather
	err     error
	city    string
}

func (f *fakeWeather) Current(ctx context.Context, city string) (*Weather, error) {
	f.city = city
	return f.weather, f.err
}

func TestNew(t *testing.T) {
	f := newFixture(t)

	_, err := New(nil, f.docs)
	assert.Equal(t, ErrRouterRequired, err)
	_, err = New(f.router, nil)
	assert.Equal(t, ErrDocumentsRequired, err)

	for _, opt := range []Option{WithWindow(-1), WithPassages(0), WithReconstructor(nil)} {
		_, err = New(f.router, f.docs, opt)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
}

func TestRespond_EmptyQuery(t *testing.T) {
	a := newFixture(t).agent(t)
	_, err := a.Respond(context.Background(), "   ")
	assert.ErrorIs(t, err, core.ErrEmptyInput)
}

func TestRespond_Greeting(t *testing.T) {
	f := newFixture(t, workHours)

	t.Run("canned without generator", func(t *testing.T) {
		resp, err := f.agent(t).Respond(context.Background(), "Hello!")
		require.NoError(t, err)
		assert.Equal(t, routing.DirectResponse, resp.Strategy)
		assert.Equal(t, greetingReply, resp.Answer)
		require.NotEmpty(t, resp.Concepts)
		assert.Equal(t, "greeting", resp.Concepts[0].Name)
		assert.GreaterOrEqual(t, resp.Concepts[0].Weight, 0.8)
	})

	t.Run("generated", func(t *testing.T) {
		gen := mock.NewMockGenerator()
		resp, err := f.agent(t, WithGenerator(gen)).Respond(context.Background(), "Hello!")
		require.NoError(t, err)
		assert.Equal(t, "answer: Hello!", resp.Answer)
		passage, _ := gen.LastCall()
		assert.Empty(t, passage)
	})

	t.Run("generator failure apologizes", func(t *testing.T) {
		gen := mock.NewMockGenerator()
		gen.GenerateFunc = func(ctx context.Context, contextPassage, query string) (string, error) {
			return "", errors.New("model offline")
		}
		resp, err := f.agent(t, WithGenerator(gen)).Respond(context.Background(), "Hello!")
		require.NoError(t, err)
		assert.Equal(t, apologyReply, resp.Answer)
		assert.Contains(t, resp.Reasoning, "model offline")
	})
}

func TestRespond_Weather(t *testing.T) {
	f := newFixture(t)
	query := "What's the weather in Tokyo?"

	t.Run("formatted", func(t *testing.T) {
		svc := &fakeWeather{weather: &Weather{
			City: "Tokyo", Country: "JP", Temperature: 21.5, FeelsLike: 20,
			Description: "light rain", Humidity: 80, WindSpeed: 3.2, Pressure: 1012,
		}}
		resp, err := f.agent(t, WithWeatherService(svc)).Respond(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, routing.SpecializedAPI, resp.Strategy)
		assert.Equal(t, "Tokyo", svc.city)
		assert.Contains(t, resp.Answer, "Weather in Tokyo, JP:")
		assert.Contains(t, resp.Answer, "Light Rain")
	})

	t.Run("no service", func(t *testing.T) {
		resp, err := f.agent(t).Respond(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, noWeatherReply, resp.Answer)
	})

	t.Run("service error", func(t *testing.T) {
		svc := &fakeWeather{err: errors.New("timeout")}
		resp, err := f.agent(t, WithWeatherService(svc)).Respond(context.Background(), query)
		require.NoError(t, err)
		assert.Contains(t, resp.Answer, "'Tokyo'")
		assert.Contains(t, resp.Reasoning, "timeout")
	})
}

func TestRespond_ConceptSearch(t *testing.T) {
	f := newFixture(t, workHours)
	query := "What are the work hours on Monday?"

	t.Run("raw context without generator", func(t *testing.T) {
		resp, err := f.agent(t).Respond(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, routing.ConceptSearch, resp.Strategy)
		require.Len(t, resp.Sources, 1)
		assert.Equal(t, core.ChunkID(docID(0), 0), resp.Sources[0].ChunkID)
		assert.Equal(t, docID(0), resp.Sources[0].DocID)
		assert.True(t, strings.HasPrefix(resp.Context, "[MAIN CHUNK]\n"+workHours))
		assert.Equal(t, contextPrefix+resp.Context, resp.Answer)
	})

	t.Run("generated", func(t *testing.T) {
		gen := mock.NewMockGenerator()
		resp, err := f.agent(t, WithGenerator(gen)).Respond(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, "[MAIN CHUNK] answer: "+query, resp.Answer)
		passage, q := gen.LastCall()
		assert.Equal(t, resp.Context, passage)
		assert.Equal(t, query, q)
	})

	t.Run("generator failure returns context", func(t *testing.T) {
		gen := mock.NewMockGenerator()
		gen.GenerateFunc = func(ctx context.Context, contextPassage, query string) (string, error) {
			return "", errors.New("model offline")
		}
		resp, err := f.agent(t, WithGenerator(gen)).Respond(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, contextPrefix+resp.Context, resp.Answer)
		assert.Contains(t, resp.Reasoning, "generation failed")
	})
}

func TestRespond_SemanticFallback(t *testing.T) {
	query := "Tell me about quantum chromodynamics"

	t.Run("empty store", func(t *testing.T) {
		resp, err := newFixture(t).agent(t).Respond(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, routing.SemanticFallback, resp.Strategy)
		assert.Equal(t, emptyStoreReply, resp.Answer)
	})

	f := newFixture(t, workHours)

	t.Run("no searcher", func(t *testing.T) {
		resp, err := f.agent(t).Respond(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, noMatchReply, resp.Answer)
	})

	t.Run("searcher results", func(t *testing.T) {
		searcher := &mock.MockVectorSearcher{Matches: []core.SimilarityMatch{
			{ChunkID: "missing_0000", Score: 0.9},
			{ChunkID: core.ChunkID(docID(0), 0), Score: 0.7},
		}}
		resp, err := f.agent(t, WithVectorSearcher(searcher)).Respond(context.Background(), query)
		require.NoError(t, err)
		require.Len(t, resp.Sources, 1)
		assert.Equal(t, docID(0), resp.Sources[0].DocID)
		assert.InDelta(t, 0.7, resp.Sources[0].Score, 1e-6)
		assert.Contains(t, resp.Answer, workHours)
	})

	t.Run("searcher error", func(t *testing.T) {
		searcher := &mock.MockVectorSearcher{
			SearchFunc: func(ctx context.Context, query string, k int) ([]core.SimilarityMatch, error) {
				return nil, errors.New("index offline")
			},
		}
		resp, err := f.agent(t, WithVectorSearcher(searcher)).Respond(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, apologyReply, resp.Answer)
	})

	t.Run("searcher empty", func(t *testing.T) {
		resp, err := f.agent(t, WithVectorSearcher(&mock.MockVectorSearcher{})).Respond(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, noMatchReply, resp.Answer)
	})
}

func TestFormatWeather(t *testing.T) {
	out := FormatWeather(&Weather{
		City: "Oslo", Temperature: -2, FeelsLike: -6.5, Description: "SNOW showers",
		Humidity: 90, WindSpeed: 5, Pressure: 1001, Visibility: 2.5,
	})
	assert.Equal(t, "Weather in Oslo:\n"+
		"- Temperature: -2.0°C (feels like -6.5°C)\n"+
		"- Condition: Snow Showers\n"+
		"- Humidity: 90%\n"+
		"- Wind Speed: 5.0 m/s\n"+
		"- Pressure: 1001 hPa\n"+
		"- Visibility: 2.5 km", out)

	assert.Equal(t, "Weather information is currently unavailable.", FormatWeather(nil))
}
