package extraction

import (
	"testing"

	"github.com/poiesic/conceptrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New()
	require.NoError(t, err)
	return e
}

func names(concepts []core.Concept) []string {
	out := make([]string, len(concepts))
	for i, c := range concepts {
		out[i] = c.Name
	}
	return out
}

func TestExtractQuery_Greeting(t *testing.T) {
	e := newTestExtractor(t)

	result, err := e.ExtractQuery("Hello!")
	require.NoError(t, err)

	assert.True(t, result.Greeting)
	assert.False(t, result.WeatherIntent)
	require.Len(t, result.Concepts, 1)
	assert.Equal(t, CategoryGreeting, result.Concepts[0].Name)
	assert.GreaterOrEqual(t, result.Concepts[0].Confidence, 0.8)
}

func TestExtractQuery_GreetingPhrase(t *testing.T) {
	e := newTestExtractor(t)

	result, err := e.ExtractQuery("good morning to the whole team")
	require.NoError(t, err)
	assert.True(t, result.Greeting)
	assert.Contains(t, names(result.Concepts), CategoryGreeting)
	assert.Contains(t, names(result.Concepts), CategoryBusiness)
}

func TestExtractQuery_NoSubstringGreeting(t *testing.T) {
	e := newTestExtractor(t)

	result, err := e.ExtractQuery("this thing is something else entirely")
	require.NoError(t, err)
	assert.False(t, result.Greeting)
}

func TestExtractQuery_Weather(t *testing.T) {
	tests := []struct {
		query string
		city  string
	}{
		{query: "What's the weather in Tokyo?", city: "Tokyo"},
		{query: "weather in new york today", city: "new york"},
		{query: "What is the temperature in Paris right now?", city: "Paris"},
		{query: "Give me the forecast for Berlin", city: "Berlin"},
		{query: "how is the weather", city: ""},
	}

	e := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			result, err := e.ExtractQuery(tt.query)
			require.NoError(t, err)
			assert.True(t, result.WeatherIntent)
			assert.Equal(t, tt.city, result.City)

			var found *core.Concept
			for i := range result.Concepts {
				if result.Concepts[i].Name == CategoryWeatherRequest {
					found = &result.Concepts[i]
				}
			}
			require.NotNil(t, found)
			assert.Equal(t, CategoryWeather, found.Category)
			assert.Equal(t, 0.9, found.Weight)
			assert.Equal(t, 0.95, found.Confidence)
		})
	}
}

func TestExtractQuery_WeatherOrdering(t *testing.T) {
	e := newTestExtractor(t)

	result, err := e.ExtractQuery("What's the weather in Tokyo?")
	require.NoError(t, err)
	assert.Equal(t, []string{CategoryWeather, CategoryWeatherRequest}, names(result.Concepts))
	assert.Equal(t, 1.0, result.Concepts[0].Weight)
}

func TestExtractQuery_NoSharedVocabulary(t *testing.T) {
	e := newTestExtractor(t)

	result, err := e.ExtractQuery("Tell me about quantum chromodynamics")
	require.NoError(t, err)
	assert.Empty(t, result.Concepts)
	assert.False(t, result.Greeting)
	assert.False(t, result.WeatherIntent)
}

func TestExtractDocument(t *testing.T) {
	e := newTestExtractor(t)

	concepts, err := e.ExtractDocument("Employee policy: every employee must attend the weekly team meeting.", nil)
	require.NoError(t, err)
	require.Len(t, concepts, 1)

	c := concepts[0]
	assert.Equal(t, CategoryBusiness, c.Name)
	assert.Equal(t, CategoryBusiness, c.Category)
	assert.Equal(t, 1.0, c.Weight)
	assert.InDelta(t, 4.0/19.0+0.3, c.Confidence, 1e-3)
}

func TestExtractDocument_PluralsMatch(t *testing.T) {
	e := newTestExtractor(t)

	concepts, err := e.ExtractDocument("Employees and managers", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{CategoryBusiness}, names(concepts))
}

func TestExtractDocument_TieBreakByTableOrder(t *testing.T) {
	e := newTestExtractor(t)

	concepts, err := e.ExtractDocument("The software has a price.", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{CategoryTechnical, CategoryProduct, CategoryFinancial}, names(concepts))
	for _, c := range concepts {
		assert.Equal(t, 1.0, c.Weight)
	}
}

func TestExtractDocument_CorpusBoost(t *testing.T) {
	e := newTestExtractor(t)
	text := "The office is closed on public holidays and the staff will be informed by email about any changes to opening arrangements"

	plain, err := e.ExtractDocument(text, nil)
	require.NoError(t, err)
	require.Len(t, plain, 1)
	assert.InDelta(t, 10.0/21.0, plain[0].Weight, 1e-3)

	common := &core.CorpusStats{Chunks: 9, ConceptFrequency: map[string]int{CategoryBusiness: 9}}
	sameWeight, err := e.ExtractDocument(text, common)
	require.NoError(t, err)
	assert.Equal(t, plain[0].Weight, sameWeight[0].Weight)

	rare := &core.CorpusStats{Chunks: 9, ConceptFrequency: map[string]int{CategoryBusiness: 1}}
	boosted, err := e.ExtractDocument(text, rare)
	require.NoError(t, err)
	assert.Equal(t, 1.0, boosted[0].Weight)
}

func TestExtract_Deterministic(t *testing.T) {
	e := newTestExtractor(t)
	text := "The system stores employee data. Weather data and the project budget are reviewed at every meeting."

	first, err := e.ExtractDocument(text, nil)
	require.NoError(t, err)
	second, err := e.ExtractDocument(text, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	q1, err := e.ExtractQuery(text)
	require.NoError(t, err)
	q2, err := e.ExtractQuery(text)
	require.NoError(t, err)
	assert.Equal(t, q1, q2)
}

func TestExtract_SortedAndBounded(t *testing.T) {
	e := newTestExtractor(t)
	text := "Patients see the doctor about medication. The hospital budget covers treatment costs and the software system."

	concepts, err := e.ExtractDocument(text, nil)
	require.NoError(t, err)
	require.NotEmpty(t, concepts)
	for i, c := range concepts {
		require.NoError(t, core.ValidateConcept(&c))
		if i > 0 {
			assert.GreaterOrEqual(t, concepts[i-1].Weight, c.Weight)
		}
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	e := newTestExtractor(t)

	_, err := e.ExtractDocument("   ", nil)
	assert.ErrorIs(t, err, core.ErrEmptyInput)

	_, err = e.ExtractQuery("")
	assert.ErrorIs(t, err, core.ErrEmptyInput)
}

func TestWithCategories(t *testing.T) {
	t.Run("custom table", func(t *testing.T) {
		e, err := New(WithCategories([]Category{
			{Name: "alpha", Terms: terms("foo", "bar baz")},
		}))
		require.NoError(t, err)

		concepts, err := e.ExtractDocument("foo and bar baz", nil)
		require.NoError(t, err)
		require.Len(t, concepts, 1)
		assert.Equal(t, "alpha", concepts[0].Name)
		assert.Equal(t, 1.0, concepts[0].Confidence)
	})

	invalid := []struct {
		name       string
		categories []Category
	}{
		{name: "empty table", categories: nil},
		{name: "empty name", categories: []Category{{Terms: terms("foo")}}},
		{name: "no terms", categories: []Category{{Name: "alpha"}}},
		{name: "duplicate", categories: []Category{{Name: "a", Terms: terms("x")}, {Name: "a", Terms: terms("y")}}},
		{name: "punctuation term", categories: []Category{{Name: "a", Terms: []Term{{Text: "...", Importance: 1}}}}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(WithCategories(tt.categories))
			assert.ErrorIs(t, err, ErrInvalidCategory)
		})
	}
}

func TestImportance(t *testing.T) {
	assert.Equal(t, 2.0, importance("policy"))
	assert.Equal(t, 1.5, importance("meeting"))
	assert.Equal(t, 1.0, importance("office"))
}
