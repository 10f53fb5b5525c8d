package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/conceptrag/ai"
	"github.com/poiesic/conceptrag/core"
)

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, contextPassage, query string) (string, error)

	mu          sync.Mutex
	callCount   int
	lastContext string
	lastQuery   string
}

var _ ai.Generator = (*MockGenerator)(nil)

// NewMockGenerator creates a mock generator with default echo behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate records its arguments and answers. The default answer echoes the
// query, prefixed by the first line of the context when one is given.
func (m *MockGenerator) Generate(ctx context.Context, contextPassage, query string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.lastContext = contextPassage
	m.lastQuery = query
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, contextPassage, query)
	}
	if strings.TrimSpace(contextPassage) == "" {
		return "answer: " + query, nil
	}
	first, _, _ := strings.Cut(strings.TrimSpace(contextPassage), "\n")
	return first + " answer: " + query, nil
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastCall returns the arguments of the most recent Generate call.
func (m *MockGenerator) LastCall() (contextPassage, query string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastContext, m.lastQuery
}

// Reset clears recorded calls and injected behavior.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastContext = ""
	m.lastQuery = ""
	m.GenerateFunc = nil
}

// MockVectorSearcher is a test double for ai.VectorSearcher.
type MockVectorSearcher struct {
	// SearchFunc is called by Search if set.
	SearchFunc func(ctx context.Context, query string, k int) ([]core.SimilarityMatch, error)

	// Matches is returned, truncated to k, when SearchFunc is nil.
	Matches []core.SimilarityMatch

	mu        sync.Mutex
	callCount int
}

var _ ai.VectorSearcher = (*MockVectorSearcher)(nil)

func (m *MockVectorSearcher) Search(ctx context.Context, query string, k int) ([]core.SimilarityMatch, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, k)
	}
	out := append([]core.SimilarityMatch{}, m.Matches...)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// CallCount returns the number of Search calls.
func (m *MockVectorSearcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
