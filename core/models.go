package core

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String renders the ID as 16 lowercase hex digits.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// DocumentIDFromText derives a document ID from its raw text.
func DocumentIDFromText(text string) string {
	return IDFromContent(text).String()
}

// ChunkID builds the identifier of the chunk at position within a document.
func ChunkID(docID string, position int) string {
	return fmt.Sprintf("%s_%04d", docID, position)
}

// ProcessingMode selects how a chunk's derived content is built.
type ProcessingMode string

const (
	// ModeKeywords derives content from a text prefix plus keywords.
	ModeKeywords ProcessingMode = "keywords"
	// ModeSummary derives content from an extractive summary.
	ModeSummary ProcessingMode = "summary"
	// ModeHybrid combines the summary with keywords.
	ModeHybrid ProcessingMode = "hybrid"
)

// Document is a unit of ingested text. The ID is the storage key and is not
// part of the persisted value.
type Document struct {
	ID       string            `json:"-"`
	Text     string            `json:"text"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata"`
}

// Chunk is a bounded span of a document, the unit of indexing and retrieval.
// Position is contiguous from 0 within a document and orders reconstruction.
type Chunk struct {
	ID             string         `json:"chunk_id"`
	DocID          string         `json:"doc_id"`
	Position       int            `json:"position"`
	OriginalText   string         `json:"original_text"`
	DerivedContent string         `json:"derived_content"`
	Keywords       []string       `json:"keywords,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	Mode           ProcessingMode `json:"mode,omitempty"`
	Confidence     float64        `json:"confidence"`
	Concepts       []Concept      `json:"concepts,omitempty"`
	Vector         []float32      `json:"vector,omitempty"`
}

// Concept is a named, weighted, categorized tag attached to a chunk or query.
// Two concepts are the same when their names are equal.
type Concept struct {
	Name       string  `json:"name"`
	Weight     float64 `json:"weight"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// DocumentRef records one chunk exhibiting a concept. Seq is the chunk's
// insertion ordinal in the index.
type DocumentRef struct {
	DocID   string  `json:"doc_id"`
	ChunkID string  `json:"chunk_id"`
	Weight  float64 `json:"weight"`
	Seq     uint64  `json:"seq"`
}

// IndexEntry aggregates every occurrence of one concept. Name is the index key.
type IndexEntry struct {
	Name            string        `json:"-"`
	Category        string        `json:"category"`
	TotalWeight     float64       `json:"total_weight"`
	Documents       []DocumentRef `json:"documents"`
	RelatedConcepts []string      `json:"related_concepts"`
}

// Clone returns a deep copy of the entry.
func (e *IndexEntry) Clone() *IndexEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.Documents = append([]DocumentRef(nil), e.Documents...)
	c.RelatedConcepts = append([]string(nil), e.RelatedConcepts...)
	if c.Documents == nil {
		c.Documents = []DocumentRef{}
	}
	if c.RelatedConcepts == nil {
		c.RelatedConcepts = []string{}
	}
	return &c
}

// CorpusStats carries concept document frequencies over indexed chunks.
type CorpusStats struct {
	Chunks           int
	ConceptFrequency map[string]int
}

// IDF returns the smoothed inverse document frequency of a concept:
// ln((1+N)/(1+df)) + 1. A nil receiver yields 1.
func (s *CorpusStats) IDF(name string) float64 {
	if s == nil || s.Chunks == 0 {
		return 1
	}
	n := float64(s.Chunks)
	df := float64(s.ConceptFrequency[name])
	return math.Log((1+n)/(1+df)) + 1
}

// SimilarityMatch is a chunk returned by a vector-store collaborator.
type SimilarityMatch struct {
	ChunkID string
	Score   float32
}

// StoreStats summarizes the persisted state.
type StoreStats struct {
	Documents   int
	Chunks      int
	Concepts    int
	TopConcepts []string
}

// Checkpoint tracks the last document a maintenance job finished.
type Checkpoint struct {
	Processor string    `json:"processor"`
	LastDocID string    `json:"last_doc_id"`
	Processed int       `json:"processed"`
	UpdatedAt time.Time `json:"updated_at"`
}
