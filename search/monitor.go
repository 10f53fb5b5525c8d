package search

import (
	"log/slog"

	"github.com/poiesic/conceptrag/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterSemanticSearch(matches []core.SimilarityMatch)
	AfterChunkRetrieval(chunks []*core.Chunk)
	VerbatimHit(chunk *core.Chunk)
	Finish(results []core.SimilarityMatch)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                {}
func (n *noopMonitor) AfterSemanticSearch(_ []core.SimilarityMatch) {}
func (n *noopMonitor) AfterChunkRetrieval(_ []*core.Chunk)          {}
func (n *noopMonitor) VerbatimHit(_ *core.Chunk)                    {}
func (n *noopMonitor) Finish(_ []core.SimilarityMatch)              {}

// LogMonitor reports every search stage at debug level.
type LogMonitor struct {
	Logger *slog.Logger
}

var _ SearchMonitor = (*LogMonitor)(nil)

func (m *LogMonitor) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m *LogMonitor) Start(query string) {
	m.logger().Debug("search started", "query", query)
}

func (m *LogMonitor) AfterSemanticSearch(matches []core.SimilarityMatch) {
	m.logger().Debug("semantic candidates", "count", len(matches))
}

func (m *LogMonitor) AfterChunkRetrieval(chunks []*core.Chunk) {
	m.logger().Debug("chunks retrieved", "count", len(chunks))
}

func (m *LogMonitor) VerbatimHit(chunk *core.Chunk) {
	m.logger().Debug("verbatim match", "chunk", chunk.ID)
}

func (m *LogMonitor) Finish(results []core.SimilarityMatch) {
	m.logger().Debug("search finished", "results", len(results))
}
