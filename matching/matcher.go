// Package matching scores query concepts against indexed chunk concepts.
//
// An exact match (same concept name) contributes q.Weight × t.Weight; a
// category match (same category, different name) contributes
// q.Weight × t.Weight × 0.7. Contributions below the threshold are dropped,
// the rest are summed per target. An empty result is not an error: it tells
// the caller to fall back to another retrieval strategy.
package matching

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/index"
)

const (
	// DefaultThreshold is the minimum score a single contribution needs.
	DefaultThreshold = 0.3

	// DefaultTopK limits the number of results returned by a Matcher.
	DefaultTopK = 5

	exactFactor    = 1.0
	categoryFactor = 0.7
)

// Kind describes how a query concept matched a target concept.
type Kind int

const (
	KindExact Kind = iota
	KindCategory
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindCategory:
		return "category"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Target is a candidate carrying concepts, usually one indexed chunk.
type Target struct {
	ID       string
	DocID    string
	Concepts []core.Concept
}

// Contribution is one query/target concept pair that cleared the threshold.
type Contribution struct {
	Query  string
	Target string
	Kind   Kind
	Score  float64
}

// Result is a target with its summed score.
type Result struct {
	TargetID      string
	DocID         string
	Score         float64
	Contributions []Contribution
}

// Score returns the contribution of a query concept against a target concept
// and whether they match at all.
func Score(q, t core.Concept) (float64, Kind, bool) {
	switch {
	case q.Name == t.Name:
		return q.Weight * t.Weight * exactFactor, KindExact, true
	case q.Category != "" && q.Category == t.Category:
		return q.Weight * t.Weight * categoryFactor, KindCategory, true
	}
	return 0, 0, false
}

// Match scores every target and returns those with at least one contribution
// at or above threshold, sorted by summed score descending. Ties keep target
// order.
func Match(query []core.Concept, targets []Target, threshold float64) []Result {
	results := []Result{}
	for _, target := range targets {
		var result *Result
		for _, q := range query {
			for _, t := range target.Concepts {
				score, kind, ok := Score(q, t)
				if !ok || score < threshold {
					continue
				}
				if result == nil {
					result = &Result{TargetID: target.ID, DocID: target.DocID}
				}
				result.Score += score
				result.Contributions = append(result.Contributions, Contribution{
					Query:  q.Name,
					Target: t.Name,
					Kind:   kind,
					Score:  score,
				})
			}
		}
		if result != nil {
			results = append(results, *result)
		}
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return results
}

// Targets converts index chunk views into match targets, preserving order.
func Targets(views []index.ChunkView) []Target {
	targets := make([]Target, len(views))
	for i, v := range views {
		targets[i] = Target{ID: v.ChunkID, DocID: v.DocID, Concepts: v.Concepts}
	}
	return targets
}

// Matcher applies a fixed threshold and result limit.
type Matcher struct {
	threshold float64
	topK      int
	logger    *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher) error

// WithThreshold sets the per-contribution threshold.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) error {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("%w: threshold %.2f outside [0, 1]", ErrInvalidConfig, threshold)
		}
		m.threshold = threshold
		return nil
	}
}

// WithTopK limits the number of results.
func WithTopK(k int) Option {
	return func(m *Matcher) error {
		if k <= 0 {
			return fmt.Errorf("%w: top-k must be positive, got %d", ErrInvalidConfig, k)
		}
		m.topK = k
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger.With("component", "concept-matcher")
		return nil
	}
}

func New(opts ...Option) (*Matcher, error) {
	m := &Matcher{
		threshold: DefaultThreshold,
		topK:      DefaultTopK,
		logger:    slog.Default().With("component", "concept-matcher"),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

func (m *Matcher) TopK() int {
	return m.topK
}

// Match runs Match with the configured threshold and keeps the top results.
func (m *Matcher) Match(query []core.Concept, targets []Target) []Result {
	results := Match(query, targets, m.threshold)
	if len(results) > m.topK {
		results = results[:m.topK]
	}
	return results
}

// MatchIndex matches against every chunk of idx. The returned reason explains
// the outcome, including why the result is empty.
func (m *Matcher) MatchIndex(query []core.Concept, idx *index.Index) ([]Result, string) {
	switch {
	case idx == nil:
		return []Result{}, "concept index not loaded"
	case idx.Len() == 0:
		return []Result{}, "concept index is empty"
	case len(query) == 0:
		return []Result{}, "query has no concepts"
	}

	results := m.Match(query, Targets(idx.Targets()))
	if len(results) == 0 {
		reason := fmt.Sprintf("no concept match at or above threshold %.2f", m.threshold)
		m.logger.Debug(reason, "concepts", len(query))
		return results, reason
	}
	reason := fmt.Sprintf("%d chunk(s) matched, best %s with score %.3f", len(results), results[0].TargetID, results[0].Score)
	m.logger.Debug("matched index", "results", len(results), "best", results[0].TargetID)
	return results, reason
}
