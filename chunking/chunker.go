package chunking

import (
	"fmt"
	"unicode"

	"github.com/poiesic/conceptrag/core"
)

const (
	// DefaultTargetSize is the default number of characters per chunk.
	DefaultTargetSize = 500

	// DefaultOverlap is the default number of characters shared by adjacent chunks.
	DefaultOverlap = 50
)

// Chunker splits document text into overlapping, sentence-respecting segments.
type Chunker struct {
	targetSize int
	overlap    int
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithTargetSize sets the window size in characters.
func WithTargetSize(size int) Option {
	return func(c *Chunker) error {
		if size <= 0 {
			return fmt.Errorf("%w: target size %d", ErrInvalidChunkConfig, size)
		}
		c.targetSize = size
		return nil
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) error {
		if overlap < 0 {
			return fmt.Errorf("%w: overlap %d", ErrInvalidChunkConfig, overlap)
		}
		c.overlap = overlap
		return nil
	}
}

// New creates a Chunker with the default 500/50 configuration and applies opts.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		targetSize: DefaultTargetSize,
		overlap:    DefaultOverlap,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := validate(c.targetSize, c.overlap); err != nil {
		return nil, err
	}
	return c, nil
}

// TargetSize returns the configured window size.
func (c *Chunker) TargetSize() int {
	return c.targetSize
}

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split chunks text with the configured window and overlap.
func (c *Chunker) Split(text string) ([]string, error) {
	return Split(text, c.targetSize, c.overlap)
}

// Split cuts text into windows of at most targetSize characters. A window ends
// at the last sentence boundary inside it when one exists, otherwise at a hard
// character cut, and the next window starts overlap characters before the end
// of the previous one. Text no longer than targetSize is returned as a single
// chunk. No content is dropped and no chunk is empty or blank: a whitespace
// run longer than a window is carried by the chunk holding the text after it,
// so that chunk may exceed targetSize.
func Split(text string, targetSize, overlap int) ([]string, error) {
	if err := validate(targetSize, overlap); err != nil {
		return nil, err
	}
	if err := core.ValidateText(text); err != nil {
		return nil, err
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []string
	start := 0
	for {
		if n-start <= targetSize {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		end := start + targetSize
		// end-overlap must stay past start so every window makes progress
		if b := lastBoundary(runes, start+overlap+1, end); b > 0 {
			end = b
		}
		if isBlank(runes[start:end]) {
			p := nextNonSpace(runes, end)
			end = min(n, p+targetSize)
			if b := lastBoundary(runes, p+1, end); b > 0 {
				end = b
			}
		}
		if isBlank(runes[end:]) {
			end = n
		}

		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
		start = end - overlap
	}

	return chunks, nil
}

// lastBoundary returns the largest cut position p in [lo, hi] that follows a
// sentence terminator or a blank line, or -1.
func lastBoundary(runes []rune, lo, hi int) int {
	if lo < 1 {
		lo = 1
	}
	for p := hi; p >= lo; p-- {
		if isBoundary(runes, p) {
			return p
		}
	}
	return -1
}

func isBoundary(runes []rune, p int) bool {
	prev := runes[p-1]
	switch prev {
	case '.', '!', '?':
		return p == len(runes) || unicode.IsSpace(runes[p])
	case '\n':
		return p >= 2 && runes[p-2] == '\n'
	}
	return false
}

// nextNonSpace returns the position of the first non-space rune at or after
// from, or len(runes).
func nextNonSpace(runes []rune, from int) int {
	for p := from; p < len(runes); p++ {
		if !unicode.IsSpace(runes[p]) {
			return p
		}
	}
	return len(runes)
}

func isBlank(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func validate(targetSize, overlap int) error {
	if targetSize <= 0 {
		return fmt.Errorf("%w: target size %d must be positive", ErrInvalidChunkConfig, targetSize)
	}
	if overlap < 0 || overlap >= targetSize {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkConfig, overlap, targetSize)
	}
	return nil
}
