package reconstruct

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/conceptrag/analysis"
	"github.com/poiesic/conceptrag/core"
)

const (
	// DefaultWindow is the number of neighbouring positions on each side.
	DefaultWindow = 1

	// DefaultNeighborLimit bounds a neighbour without a summary, in runes.
	DefaultNeighborLimit = 200

	// annotationKeywords is the number of keywords in the main chunk note.
	annotationKeywords = 3

	mainHeader    = "[MAIN CHUNK]"
	contextHeader = "[Context]"
)

// ChunkSource provides a document's chunks. Order is not relied upon.
type ChunkSource interface {
	GetChunksByDocument(ctx context.Context, docID string) ([]*core.Chunk, error)
}

// Reconstructor expands a matched chunk into a passage made of the chunk and
// its neighbours from the same document.
type Reconstructor struct {
	source        ChunkSource
	annotate      bool
	neighborLimit int
	logger        *slog.Logger
}

// Option configures a Reconstructor.
type Option func(*Reconstructor) error

// WithAnnotation toggles the "[Key concepts: ...]" note on the main chunk.
// Default is on.
func WithAnnotation(enabled bool) Option {
	return func(r *Reconstructor) error {
		r.annotate = enabled
		return nil
	}
}

// WithNeighborLimit sets the truncation length for neighbours without a
// summary.
func WithNeighborLimit(limit int) Option {
	return func(r *Reconstructor) error {
		if limit <= 0 {
			return fmt.Errorf("%w: neighbor limit must be positive, got %d", ErrInvalidWindow, limit)
		}
		r.neighborLimit = limit
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconstructor) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "context-reconstructor")
		return nil
	}
}

func New(source ChunkSource, opts ...Option) (*Reconstructor, error) {
	if source == nil {
		return nil, ErrNoSource
	}
	r := &Reconstructor{
		source:        source,
		annotate:      true,
		neighborLimit: DefaultNeighborLimit,
		logger:        slog.Default().With("component", "context-reconstructor"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Reconstruct returns the passage centred on the chunk at center. With window
// 0 the center chunk's original text is returned unchanged. Otherwise every
// chunk of docID within window positions is joined in position order: the
// center in full, neighbours shortened to their summary or a truncation.
func (r *Reconstructor) Reconstruct(ctx context.Context, docID string, center, window int) (string, error) {
	if window < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}

	chunks, err := r.source.GetChunksByDocument(ctx, docID)
	if err != nil {
		return "", err
	}

	var main *core.Chunk
	for _, chunk := range chunks {
		if chunk.DocID == docID && chunk.Position == center {
			main = chunk
			break
		}
	}
	if main == nil {
		return "", fmt.Errorf("%w: %s position %d", ErrChunkNotFound, docID, center)
	}
	if window == 0 {
		return main.OriginalText, nil
	}

	var nearby []*core.Chunk
	for _, chunk := range chunks {
		if chunk.DocID != docID {
			continue
		}
		if chunk.Position < center-window || chunk.Position > center+window {
			continue
		}
		nearby = append(nearby, chunk)
	}
	slices.SortFunc(nearby, func(a, b *core.Chunk) int { return a.Position - b.Position })

	parts := make([]string, 0, len(nearby))
	for _, chunk := range nearby {
		if chunk == main {
			parts = append(parts, r.formatMain(chunk))
			continue
		}
		parts = append(parts, r.formatNeighbor(chunk))
	}

	r.logger.Debug("reconstructed context", "doc", docID, "center", center, "parts", len(parts))
	return strings.Join(parts, "\n\n"), nil
}

// ReconstructChunk reconstructs around a chunk already fetched from storage.
func (r *Reconstructor) ReconstructChunk(ctx context.Context, chunk *core.Chunk, window int) (string, error) {
	if chunk == nil {
		return "", ErrChunkNotFound
	}
	return r.Reconstruct(ctx, chunk.DocID, chunk.Position, window)
}

func (r *Reconstructor) formatMain(chunk *core.Chunk) string {
	var b strings.Builder
	b.WriteString(mainHeader)
	b.WriteString("\n")
	b.WriteString(chunk.OriginalText)
	if r.annotate && len(chunk.Keywords) > 0 {
		keywords := chunk.Keywords[:min(annotationKeywords, len(chunk.Keywords))]
		b.WriteString("\n[Key concepts: ")
		b.WriteString(strings.Join(keywords, ", "))
		b.WriteString("]")
	}
	return b.String()
}

func (r *Reconstructor) formatNeighbor(chunk *core.Chunk) string {
	short := chunk.Summary
	if strings.TrimSpace(short) == "" {
		short = analysis.Truncate(chunk.OriginalText, r.neighborLimit)
	}
	return contextHeader + "\n" + short
}
