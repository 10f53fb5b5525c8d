package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/conceptrag/ai"
	"github.com/poiesic/conceptrag/chunking"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/extraction"
	"github.com/poiesic/conceptrag/index"
	"github.com/poiesic/conceptrag/storage"
)

// Request is one document to ingest. An empty ID is derived from the text.
type Request struct {
	ID       string
	Text     string
	Source   string
	Metadata map[string]string
}

// Result summarizes one ingested document.
type Result struct {
	DocID    string
	Chunks   int
	Concepts []string
	Embedded bool
	Elapsed  time.Duration
}

// Pipeline orchestrates chunking, analysis, embedding and indexing of
// documents. Analysis of the chunks of one document fans out on a worker
// pool and joins before the write.
type Pipeline struct {
	documents     storage.DocumentRepository
	indexRepo     storage.IndexRepository
	index         *index.Index
	chunker       *chunking.Chunker
	extractor     *extraction.Extractor
	embedder      ai.Embedder
	pool          *ants.Pool
	writeMu       *sync.Mutex
	mode          core.ProcessingMode
	keywords      int
	sentences     int
	conceptProc   processor
	embeddingProc processor
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent chunk analysis.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunker replaces the default 500/50 chunker.
func WithChunker(chunker *chunking.Chunker) Option {
	return func(p *Pipeline) error {
		if chunker == nil {
			return fmt.Errorf("%w: nil chunker", ErrInvalidConfig)
		}
		p.chunker = chunker
		return nil
	}
}

// WithExtractor replaces the default concept extractor.
func WithExtractor(extractor *extraction.Extractor) Option {
	return func(p *Pipeline) error {
		if extractor == nil {
			return fmt.Errorf("%w: nil extractor", ErrInvalidConfig)
		}
		p.extractor = extractor
		return nil
	}
}

// WithEmbedder enables chunk embeddings. Without one, chunks are stored
// without vectors and only concept matching is available.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(p *Pipeline) error {
		p.embedder = embedder
		return nil
	}
}

// WithWriteLock shares a writer lock with other pipelines of the same store.
func WithWriteLock(mu *sync.Mutex) Option {
	return func(p *Pipeline) error {
		if mu == nil {
			return fmt.Errorf("%w: nil write lock", ErrInvalidConfig)
		}
		p.writeMu = mu
		return nil
	}
}

// WithProcessingMode selects how derived content is built. Default is hybrid.
func WithProcessingMode(mode core.ProcessingMode) Option {
	return func(p *Pipeline) error {
		switch mode {
		case core.ModeKeywords, core.ModeSummary, core.ModeHybrid:
			p.mode = mode
			return nil
		}
		return fmt.Errorf("%w: processing mode %q", ErrInvalidConfig, mode)
	}
}

// WithKeywords sets how many keywords are kept per chunk.
func WithKeywords(k int) Option {
	return func(p *Pipeline) error {
		if k < 1 {
			return fmt.Errorf("%w: keywords %d", ErrInvalidConfig, k)
		}
		p.keywords = k
		return nil
	}
}

// WithSummarySentences sets the number of sentences in a chunk summary.
func WithSummarySentences(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("%w: summary sentences %d", ErrInvalidConfig, n)
		}
		p.sentences = n
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline. idx is the in-memory index
// served to queries; it is updated after every document and the changed
// entries are persisted through indexRepo.
func NewPipeline(
	documents storage.DocumentRepository,
	indexRepo storage.IndexRepository,
	idx *index.Index,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if indexRepo == nil {
		return nil, ErrIndexRepositoryRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		documents: documents,
		indexRepo: indexRepo,
		index:     idx,
		pool:      pool,
		writeMu:   &sync.Mutex{},
		mode:      core.ModeHybrid,
		keywords:  DefaultKeywords,
		sentences: DefaultSummarySentences,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	if p.chunker == nil {
		if p.chunker, err = chunking.New(); err != nil {
			p.Release()
			return nil, err
		}
	}
	if p.extractor == nil {
		if p.extractor, err = extraction.New(extraction.WithLogger(p.logger)); err != nil {
			p.Release()
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	// Processors are created after options so they get the final config.
	p.conceptProc, err = newConceptProcessor(p.extractor, p.pool, p.mode, p.keywords, p.sentences, p.index.Stats, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	if p.embedder != nil {
		p.embeddingProc, err = newEmbeddingProcessor(p.embedder, p.logger)
		if err != nil {
			p.Release()
			return nil, err
		}
	}

	return p, nil
}

// Ingest chunks, analyzes and stores one document, then folds its concepts
// into the index. Embedding failures are logged and the document is stored
// without vectors; every other failure leaves the store and the index
// unchanged.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if err := core.ValidateText(req.Text); err != nil {
		return nil, err
	}

	docID := req.ID
	if docID == "" {
		docID = core.DocumentIDFromText(req.Text)
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	doc := &core.Document{ID: docID, Text: req.Text, Source: req.Source, Metadata: metadata}

	pieces, err := p.chunker.Split(req.Text)
	if err != nil {
		return nil, err
	}
	chunks := make([]*core.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &core.Chunk{
			ID:           core.ChunkID(docID, i),
			DocID:        docID,
			Position:     i,
			OriginalText: piece,
		}
	}

	if err := p.conceptProc.process(ctx, chunks); err != nil {
		p.logger.Error("error analyzing chunks", "doc", docID, "err", err)
		return nil, err
	}

	embedded := false
	if p.embeddingProc != nil {
		if err := p.embeddingProc.process(ctx, chunks); err != nil {
			p.logger.Warn("storing document without embeddings", "doc", docID, "err", err)
			for _, chunk := range chunks {
				chunk.Vector = nil
			}
		} else {
			embedded = true
		}
	}

	if err := p.write(ctx, doc, chunks); err != nil {
		return nil, err
	}

	result := &Result{
		DocID:    docID,
		Chunks:   len(chunks),
		Concepts: distinctConcepts(chunks),
		Embedded: embedded,
		Elapsed:  time.Since(start),
	}
	p.logger.Info("ingested document",
		"doc", docID,
		"source", req.Source,
		"chunks", result.Chunks,
		"concepts", len(result.Concepts),
		"embedded", embedded,
		"elapsed", result.Elapsed)
	return result, nil
}

// IngestBatch ingests each request in order. Failed documents are skipped;
// their errors are joined and returned alongside the successful results.
func (p *Pipeline) IngestBatch(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, 0, len(reqs))
	var errs []error
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := p.Ingest(ctx, req)
		if err != nil {
			errs = append(errs, fmt.Errorf("document %d (%s): %w", i, req.Source, err))
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

// write stores the document and chunks before the index references them. The
// changed entries are persisted before the live index sees them; when that
// fails the document is removed again so a retry starts clean.
func (p *Pipeline) write(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := p.documents.AddDocument(ctx, doc, chunks); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("%w: %s", ErrDuplicateDocument, doc.ID)
		}
		return err
	}

	concepts := make([]index.ChunkConcepts, len(chunks))
	for i, chunk := range chunks {
		concepts[i] = index.ChunkConcepts{ChunkID: chunk.ID, Concepts: chunk.Concepts}
	}
	staged := p.index.Stage(doc.ID, concepts)
	if err := p.indexRepo.SaveEntries(ctx, staged...); err != nil {
		p.logger.Error("error saving index entries", "doc", doc.ID, "entries", len(staged), "err", err)
		if derr := p.documents.DeleteDocument(context.WithoutCancel(ctx), doc.ID); derr != nil {
			p.logger.Error("error removing unindexed document", "doc", doc.ID, "err", derr)
			return errors.Join(err, derr)
		}
		return err
	}
	p.index.Update(doc.ID, concepts)
	return nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func distinctConcepts(chunks []*core.Chunk) []string {
	seen := make(map[string]bool)
	var names []string
	for _, chunk := range chunks {
		for _, c := range chunk.Concepts {
			if !seen[c.Name] {
				seen[c.Name] = true
				names = append(names, c.Name)
			}
		}
	}
	return names
}
