package search

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/conceptrag/ai"
	"github.com/poiesic/conceptrag/analysis"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/storage"
)

const (
	// DefaultMinSimilarity is the lowest cosine similarity kept as a candidate.
	DefaultMinSimilarity = 0.60

	// VerbatimBoost is added to chunks containing every content word of the query.
	VerbatimBoost = 0.3

	// candidateFactor widens the semantic candidate pool so the verbatim
	// boost can promote chunks just outside the top k.
	candidateFactor = 3
)

// Searcher implements ai.VectorSearcher over stored chunk vectors.
type Searcher struct {
	vectors       storage.VectorSearcher
	documents     storage.DocumentRepository
	embedder      ai.Embedder
	minSimilarity float32
	logger        *slog.Logger
}

var _ ai.VectorSearcher = (*Searcher)(nil)

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinSimilarity sets the candidate similarity floor, in [-1,1].
func WithMinSimilarity(v float32) Option {
	return func(s *Searcher) error {
		if v < -1 || v > 1 {
			return ErrInvalidConfig
		}
		s.minSimilarity = v
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	vectors storage.VectorSearcher,
	documents storage.DocumentRepository,
	embedder ai.Embedder,
	opts ...Option,
) (*Searcher, error) {
	if vectors == nil {
		return nil, ErrVectorSearcherRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		vectors:       vectors,
		documents:     documents,
		embedder:      embedder,
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default().With("component", "searcher"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search returns up to k chunks similar to query, best first.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]core.SimilarityMatch, error) {
	return s.SearchWithMonitor(ctx, query, k, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, k int, monitor SearchMonitor) ([]core.SimilarityMatch, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(query) == "" {
		return nil, core.ErrEmptyInput
	}

	monitor.Start(query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	limit := 0
	if k > 0 {
		limit = k * candidateFactor
	}
	matches, err := s.vectors.FindSimilar(ctx, NormalizeVector(embedding), s.minSimilarity, limit)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}
	monitor.AfterSemanticSearch(matches)

	if len(matches) == 0 {
		monitor.Finish(nil)
		return []core.SimilarityMatch{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ChunkID
	}
	chunks, err := s.documents.GetChunks(ctx, ids...)
	if err != nil {
		s.logger.Error("error retrieving chunks", "chunkCount", len(ids), "err", err)
		return nil, err
	}
	monitor.AfterChunkRetrieval(chunks)

	byID := make(map[string]*core.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	results := make([]core.SimilarityMatch, 0, len(matches))
	for _, m := range matches {
		chunk, ok := byID[m.ChunkID]
		if !ok {
			continue
		}
		score := m.Score
		if analysis.ContainsAllWords(chunk.OriginalText, query) {
			score += VerbatimBoost
			monitor.VerbatimHit(chunk)
		}
		results = append(results, core.SimilarityMatch{ChunkID: m.ChunkID, Score: score})
	}

	slices.SortStableFunc(results, func(a, b core.SimilarityMatch) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return strings.Compare(a.ChunkID, b.ChunkID)
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	monitor.Finish(results)

	return results, nil
}
