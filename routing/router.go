// Package routing decides how a query is answered.
//
// Decisions follow a fixed precedence:
//
//  1. a weather request goes to the specialized weather API;
//  2. a greeting or very short query is answered directly;
//  3. a query whose concepts match the concept index uses concept search;
//  4. a long or information-seeking query falls back to semantic search;
//  5. anything else is answered directly.
//
// Every decision carries a human-readable reasoning string. The router keeps
// no state between calls.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/conceptrag/analysis"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/extraction"
	"github.com/poiesic/conceptrag/index"
	"github.com/poiesic/conceptrag/matching"
)

const (
	// DefaultMinConceptWeight is the weight a query concept needs before
	// concept search is attempted.
	DefaultMinConceptWeight = 0.3

	// DefaultMinQueryLength is the length in characters above which a query
	// without concept matches goes to semantic search.
	DefaultMinQueryLength = 15
)

// Strategy is the handling chosen for a query.
type Strategy string

const (
	DirectResponse   Strategy = "direct_response"
	ConceptSearch    Strategy = "concept_search"
	SemanticFallback Strategy = "semantic_fallback"
	SpecializedAPI   Strategy = "specialized_api"
)

// infoMarkers are phrases that signal an information-seeking query.
var infoMarkers = []string{
	"how to", "how do", "how does", "what is", "what are", "why",
	"explain", "define", "describe", "tell me about",
	"policy", "procedure", "information", "details",
}

// Decision is the outcome of routing one query.
type Decision struct {
	Strategy  Strategy
	Reasoning string

	// Concepts are the query concepts, sorted by weight descending.
	Concepts []core.Concept

	// Matches is non-empty only for ConceptSearch.
	Matches []matching.Result

	// City is set for weather requests that name a location.
	City string
}

// Router applies the precedence rules over an extractor, a matcher and the
// concept index. A nil index is treated as not yet loaded.
type Router struct {
	extractor        *extraction.Extractor
	matcher          *matching.Matcher
	index            *index.Index
	minConceptWeight float64
	minQueryLength   int
	logger           *slog.Logger
}

// Option configures a Router.
type Option func(*Router) error

// WithMinConceptWeight sets the weight a concept needs to trigger concept search.
func WithMinConceptWeight(weight float64) Option {
	return func(r *Router) error {
		if weight < 0 || weight > 1 {
			return fmt.Errorf("%w: min concept weight %.2f outside [0, 1]", ErrInvalidConfig, weight)
		}
		r.minConceptWeight = weight
		return nil
	}
}

// WithMinQueryLength sets the length above which semantic search is used.
func WithMinQueryLength(length int) Option {
	return func(r *Router) error {
		if length < 0 {
			return fmt.Errorf("%w: min query length %d", ErrInvalidConfig, length)
		}
		r.minQueryLength = length
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "query-router")
		return nil
	}
}

func New(extractor *extraction.Extractor, matcher *matching.Matcher, idx *index.Index, opts ...Option) (*Router, error) {
	if extractor == nil || matcher == nil {
		return nil, fmt.Errorf("%w: extractor and matcher are required", ErrInvalidConfig)
	}
	r := &Router{
		extractor:        extractor,
		matcher:          matcher,
		index:            idx,
		minConceptWeight: DefaultMinConceptWeight,
		minQueryLength:   DefaultMinQueryLength,
		logger:           slog.Default().With("component", "query-router"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Route chooses a strategy for query.
func (r *Router) Route(ctx context.Context, query string) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	analyzed, err := r.extractor.ExtractQuery(query)
	if err != nil {
		return nil, err
	}

	decision := r.decide(query, analyzed)
	r.logger.Debug("routed query",
		"strategy", decision.Strategy,
		"concepts", len(decision.Concepts),
		"matches", len(decision.Matches))
	return decision, nil
}

func (r *Router) decide(query string, analyzed *extraction.QueryAnalysis) *Decision {
	d := &Decision{Concepts: analyzed.Concepts}

	if analyzed.WeatherIntent {
		d.Strategy = SpecializedAPI
		d.City = analyzed.City
		if d.City != "" {
			d.Reasoning = fmt.Sprintf("weather request for %s", d.City)
		} else {
			d.Reasoning = "weather request without a city"
		}
		return d
	}

	if analyzed.Greeting {
		d.Strategy = DirectResponse
		d.Reasoning = "greeting or short conversational query"
		return d
	}

	conceptReason := "no query concepts"
	if strong := r.strongest(analyzed.Concepts); strong != nil {
		matches, reason := r.matcher.MatchIndex(analyzed.Concepts, r.index)
		if len(matches) > 0 {
			d.Strategy = ConceptSearch
			d.Matches = matches
			d.Reasoning = fmt.Sprintf("concept %q (weight %.2f): %s", strong.Name, strong.Weight, reason)
			return d
		}
		conceptReason = reason
	} else if len(analyzed.Concepts) > 0 {
		conceptReason = fmt.Sprintf("no concept weighs at least %.2f", r.minConceptWeight)
	}

	if marker := infoMarker(query); marker != "" {
		d.Strategy = SemanticFallback
		d.Reasoning = fmt.Sprintf("%s; information-seeking marker %q", conceptReason, marker)
		return d
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(query)); n > r.minQueryLength {
		d.Strategy = SemanticFallback
		d.Reasoning = fmt.Sprintf("%s; query is %d characters long", conceptReason, n)
		return d
	}

	d.Strategy = DirectResponse
	d.Reasoning = fmt.Sprintf("%s; short query without information markers", conceptReason)
	return d
}

// strongest returns the first concept at or above the minimum weight.
// Concepts arrive sorted by weight, so it is also the heaviest.
func (r *Router) strongest(concepts []core.Concept) *core.Concept {
	if len(concepts) > 0 && concepts[0].Weight >= r.minConceptWeight {
		return &concepts[0]
	}
	return nil
}

// infoMarker returns the first information-seeking phrase found in query as
// whole words, or "".
func infoMarker(query string) string {
	padded := " " + strings.Join(analysis.Tokens(query), " ") + " "
	for _, marker := range infoMarkers {
		if strings.Contains(padded, " "+marker+" ") {
			return marker
		}
	}
	return ""
}
