package extraction

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/poiesic/conceptrag/analysis"
	"github.com/poiesic/conceptrag/core"
)

const (
	// contextWindow is the word distance within which another trigger term
	// counts as a co-occurrence.
	contextWindow = 2

	// maxCoOccurrences caps the confidence boost from co-occurrences.
	maxCoOccurrences = 3

	// coOccurrenceBoost is added to confidence per counted co-occurrence.
	coOccurrenceBoost = 0.1

	// lengthScale converts occurrences per word into a weight.
	lengthScale = 10.0

	// shortQueryLength marks queries shorter than this as conversational.
	shortQueryLength = 10
)

// Fixed intent concepts. They gate routing decisions, so their weight and
// confidence do not depend on the text.
var (
	greetingConcept = core.Concept{Name: CategoryGreeting, Weight: 0.8, Category: CategoryGreeting, Confidence: 0.9}
	weatherConcept  = core.Concept{Name: CategoryWeatherRequest, Weight: 0.9, Category: CategoryWeather, Confidence: 0.95}
)

// QueryAnalysis is the result of query-mode extraction.
type QueryAnalysis struct {
	// Concepts are sorted by weight descending.
	Concepts []core.Concept

	// WeatherIntent is set when a weather pattern matched.
	WeatherIntent bool

	// City is the location captured by the weather pattern, as written in the query.
	City string

	// Greeting is set for greeting phrases and very short queries.
	Greeting bool
}

// Extractor derives weighted, categorized concepts from text.
// It is stateless after construction and safe for concurrent use.
type Extractor struct {
	categories []compiledCategory
	greeting   *compiledCategory
	logger     *slog.Logger
}

type compiledCategory struct {
	name   string
	intent bool
	terms  []compiledTerm
}

type compiledTerm struct {
	words      []string
	importance float64
}

// Option configures an Extractor.
type Option func(*Extractor) error

// WithCategories replaces the category table.
func WithCategories(categories []Category) Option {
	return func(e *Extractor) error {
		compiled, err := compileCategories(categories)
		if err != nil {
			return err
		}
		e.categories = compiled
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "concept-extractor")
		return nil
	}
}

// New creates an Extractor over DefaultCategories.
func New(opts ...Option) (*Extractor, error) {
	compiled, err := compileCategories(DefaultCategories)
	if err != nil {
		return nil, err
	}
	e := &Extractor{
		categories: compiled,
		logger:     slog.Default().With("component", "concept-extractor"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	for i := range e.categories {
		if e.categories[i].name == CategoryGreeting {
			e.greeting = &e.categories[i]
		}
	}
	return e, nil
}

// ExtractDocument scans every category of the table. When stats is non-nil
// each weight is boosted by the concept's smoothed inverse document
// frequency, capped at 1.
func (e *Extractor) ExtractDocument(text string, stats *core.CorpusStats) ([]core.Concept, error) {
	if err := core.ValidateText(text); err != nil {
		return nil, err
	}

	concepts := e.scan(analysis.Tokens(text), false)
	if stats != nil {
		for i := range concepts {
			concepts[i].Weight = round(math.Min(1, concepts[i].Weight*stats.IDF(concepts[i].Name)))
		}
		sortConcepts(concepts, e.order())
	}

	e.logger.Debug("extracted document concepts", "count", len(concepts))
	return concepts, nil
}

// ExtractQuery applies the weather and greeting intent patterns and scans the
// non-intent categories.
func (e *Extractor) ExtractQuery(text string) (*QueryAnalysis, error) {
	if err := core.ValidateText(text); err != nil {
		return nil, err
	}

	tokens := analysis.Tokens(text)
	result := &QueryAnalysis{}
	var concepts []core.Concept

	if matched, city := matchWeather(text); matched {
		result.WeatherIntent = true
		result.City = city
		concepts = append(concepts, weatherConcept)
	}

	if len(strings.TrimSpace(text)) < shortQueryLength || e.hasGreeting(tokens) {
		result.Greeting = true
		concepts = append(concepts, greetingConcept)
	}

	concepts = append(concepts, e.scan(tokens, true)...)
	result.Concepts = mergeConcepts(concepts, e.order())

	e.logger.Debug("extracted query concepts",
		"count", len(result.Concepts),
		"weather", result.WeatherIntent,
		"greeting", result.Greeting)
	return result, nil
}

// scan computes one concept per category with at least one trigger hit.
func (e *Extractor) scan(tokens []string, skipIntents bool) []core.Concept {
	if len(tokens) == 0 {
		return nil
	}

	type categoryHits struct {
		category  *compiledCategory
		positions []int
		weighted  float64
		distinct  int
	}

	var found []categoryHits
	occupied := make(map[int]int) // word position -> number of hits
	for i := range e.categories {
		cat := &e.categories[i]
		if skipIntents && cat.intent {
			continue
		}
		hits := categoryHits{category: cat}
		for _, term := range cat.terms {
			positions := findTerm(tokens, term.words)
			if len(positions) == 0 {
				continue
			}
			hits.distinct++
			hits.weighted += float64(len(positions)) * term.importance
			hits.positions = append(hits.positions, positions...)
		}
		if hits.distinct == 0 {
			continue
		}
		for _, p := range hits.positions {
			occupied[p]++
		}
		found = append(found, hits)
	}

	concepts := make([]core.Concept, 0, len(found))
	for _, hits := range found {
		co := 0
		for _, p := range hits.positions {
			if co == maxCoOccurrences {
				break
			}
			if hasNeighbor(occupied, p) {
				co++
			}
		}

		weight := math.Min(1, lengthScale*hits.weighted/float64(len(tokens)))
		observed := float64(hits.distinct) / float64(len(hits.category.terms))
		confidence := math.Min(1, observed+coOccurrenceBoost*float64(co))

		concepts = append(concepts, core.Concept{
			Name:       hits.category.name,
			Weight:     round(weight),
			Category:   hits.category.name,
			Confidence: round(confidence),
		})
	}

	sortConcepts(concepts, e.order())
	return concepts
}

func (e *Extractor) hasGreeting(tokens []string) bool {
	if e.greeting == nil {
		return false
	}
	for _, term := range e.greeting.terms {
		if len(findTerm(tokens, term.words)) > 0 {
			return true
		}
	}
	return false
}

// order maps concept names to their table position, intent names included.
func (e *Extractor) order() map[string]int {
	order := make(map[string]int, len(e.categories))
	for i, cat := range e.categories {
		order[cat.name] = i
	}
	return order
}

// hasNeighbor reports whether another hit lies within contextWindow words of p.
func hasNeighbor(occupied map[int]int, p int) bool {
	for d := 1; d <= contextWindow; d++ {
		if occupied[p-d] > 0 || occupied[p+d] > 0 {
			return true
		}
	}
	return false
}

// findTerm returns the starting word positions of term in tokens. The final
// word also matches its plural forms.
func findTerm(tokens, words []string) []int {
	var positions []int
	n := len(words)
	for i := 0; i+n <= len(tokens); i++ {
		match := true
		for j, w := range words {
			tok := tokens[i+j]
			if tok == w {
				continue
			}
			if j == n-1 && (tok == w+"s" || tok == w+"es") {
				continue
			}
			match = false
			break
		}
		if match {
			positions = append(positions, i)
		}
	}
	return positions
}

// mergeConcepts keeps one concept per name with the maximum weight and sorts
// the result.
func mergeConcepts(concepts []core.Concept, order map[string]int) []core.Concept {
	merged := make([]core.Concept, 0, len(concepts))
	index := make(map[string]int)
	for _, c := range concepts {
		if i, ok := index[c.Name]; ok {
			if c.Weight > merged[i].Weight {
				merged[i] = c
			}
			continue
		}
		index[c.Name] = len(merged)
		merged = append(merged, c)
	}
	sortConcepts(merged, order)
	return merged
}

// sortConcepts orders by weight descending, ties by category table order.
func sortConcepts(concepts []core.Concept, order map[string]int) {
	slices.SortStableFunc(concepts, func(a, b core.Concept) int {
		switch {
		case a.Weight > b.Weight:
			return -1
		case a.Weight < b.Weight:
			return 1
		}
		return order[a.Name] - order[b.Name]
	})
}

func compileCategories(categories []Category) ([]compiledCategory, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrInvalidCategory)
	}
	seen := make(map[string]bool)
	compiled := make([]compiledCategory, 0, len(categories))
	for _, cat := range categories {
		if cat.Name == "" {
			return nil, fmt.Errorf("%w: empty name", ErrInvalidCategory)
		}
		if seen[cat.Name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidCategory, cat.Name)
		}
		if len(cat.Terms) == 0 {
			return nil, fmt.Errorf("%w: %q has no terms", ErrInvalidCategory, cat.Name)
		}
		seen[cat.Name] = true

		cc := compiledCategory{name: cat.Name, intent: cat.Intent}
		for _, term := range cat.Terms {
			words := analysis.Tokens(term.Text)
			if len(words) == 0 || term.Importance <= 0 {
				return nil, fmt.Errorf("%w: bad term %q in %q", ErrInvalidCategory, term.Text, cat.Name)
			}
			cc.terms = append(cc.terms, compiledTerm{words: words, importance: term.Importance})
		}
		compiled = append(compiled, cc)
	}
	return compiled, nil
}

func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
