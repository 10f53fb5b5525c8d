package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/conceptrag/analysis"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/extraction"
)

const (
	// DefaultKeywords is the number of keywords kept per chunk.
	DefaultKeywords = 6

	// DefaultSummarySentences is the length of a chunk summary.
	DefaultSummarySentences = 2

	keywordPrefixLength = 100
)

// conceptProcessor derives keywords, a summary, the derived content and the
// concepts of each chunk. Chunks are analyzed concurrently on the pool.
type conceptProcessor struct {
	extractor *extraction.Extractor
	pool      *ants.Pool
	mode      core.ProcessingMode
	keywords  int
	sentences int
	stats     func() *core.CorpusStats
	logger    *slog.Logger
}

var _ processor = (*conceptProcessor)(nil)

func newConceptProcessor(
	extractor *extraction.Extractor,
	pool *ants.Pool,
	mode core.ProcessingMode,
	keywords, sentences int,
	stats func() *core.CorpusStats,
	logger *slog.Logger,
) (*conceptProcessor, error) {
	if extractor == nil {
		return nil, fmt.Errorf("concept extractor required")
	}
	if pool == nil {
		return nil, fmt.Errorf("worker pool required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &conceptProcessor{
		extractor: extractor,
		pool:      pool,
		mode:      mode,
		keywords:  keywords,
		sentences: sentences,
		stats:     stats,
		logger:    logger.With("processor", "concepts"),
	}, nil
}

func (cp *conceptProcessor) process(ctx context.Context, chunks []*core.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp.logger.Debug("analyzing chunks", "chunks", len(chunks))

	var stats *core.CorpusStats
	if cp.stats != nil {
		stats = cp.stats()
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, chunk := range chunks {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := cp.analyze(chunk, stats); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("chunk %s: %w", chunk.ID, err))
				mu.Unlock()
			}
		}
		if err := cp.pool.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("chunk %s: %w", chunk.ID, err))
			mu.Unlock()
		}
	}
	wg.Wait()

	return errors.Join(errs...)
}

// analyze fills one chunk. A chunk that matches no category, or whose text is
// blank, keeps an empty concept list.
func (cp *conceptProcessor) analyze(chunk *core.Chunk, stats *core.CorpusStats) error {
	text := chunk.OriginalText
	chunk.Keywords = analysis.Keywords(text, cp.keywords)
	chunk.Summary = analysis.Summarize(text, cp.sentences)
	chunk.Mode = cp.mode
	chunk.DerivedContent = deriveContent(cp.mode, text, chunk.Summary, chunk.Keywords)
	chunk.Confidence = 1.0

	concepts, err := cp.extractor.ExtractDocument(text, stats)
	if errors.Is(err, core.ErrEmptyInput) {
		concepts, err = nil, nil
	}
	if err != nil {
		return err
	}
	chunk.Concepts = concepts
	return nil
}

// deriveContent renders the searchable representation of a chunk.
func deriveContent(mode core.ProcessingMode, text, summary string, keywords []string) string {
	kw := strings.Join(keywords, " ")
	switch mode {
	case core.ModeKeywords:
		return analysis.Truncate(text, keywordPrefixLength) + " | Keywords: " + kw
	case core.ModeSummary:
		return summary
	default:
		return summary + " | Keywords: " + kw
	}
}
