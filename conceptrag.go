// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package conceptrag wires the document store, the concept index, the
// ingestion pipeline, the query router and the answering agent into one
// Database.
//
// The Database owns the store and the in-memory index. All writes (ingestion,
// reset, reindex, import) are serialized by one lock shared with the
// ingestion pipeline; queries read the index concurrently.
package conceptrag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/conceptrag/agent"
	"github.com/poiesic/conceptrag/ai"
	"github.com/poiesic/conceptrag/ai/openai"
	"github.com/poiesic/conceptrag/chunking"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/extraction"
	"github.com/poiesic/conceptrag/index"
	"github.com/poiesic/conceptrag/ingestion"
	"github.com/poiesic/conceptrag/matching"
	"github.com/poiesic/conceptrag/reconstruct"
	"github.com/poiesic/conceptrag/reindex"
	"github.com/poiesic/conceptrag/routing"
	"github.com/poiesic/conceptrag/search"
	"github.com/poiesic/conceptrag/storage"
	"github.com/poiesic/conceptrag/storage/badger"
	"github.com/poiesic/conceptrag/storage/jsonfile"
)

// Storage backends accepted by WithBackend.
const (
	BackendBadger = "badger"
	BackendJSON   = "json"
)

// DefaultTopConcepts is the number of concepts reported by Stats.
const DefaultTopConcepts = 10

var (
	// ErrUnknownBackend is returned for a backend name other than badger or json.
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrNoEmbedder is returned by operations that need embeddings when no
	// AI provider with embeddings is configured.
	ErrNoEmbedder = errors.New("no embedder configured")
)

// Database is an opened conceptrag store.
type Database struct {
	backend     *badger.Backend
	jsonStore   *jsonfile.Store
	documents   storage.DocumentRepository
	indexRepo   storage.IndexRepository
	vectors     storage.VectorSearcher
	checkpoints storage.CheckpointRepository

	index     *index.Index
	writeMu   sync.Mutex
	extractor *extraction.Extractor
	provider  ai.Provider
	embedder  ai.Embedder
	pipeline  *ingestion.Pipeline
	router    *routing.Router
	agent     *agent.Agent
	logger    *slog.Logger
}

type options struct {
	backend       string
	inMemory      bool
	aiConfig      *ai.Config
	provider      ai.Provider
	embeddings    bool
	generation    bool
	chunker       []chunking.Option
	extraction    []extraction.Option
	matcher       []matching.Option
	router        []routing.Option
	ingestion     []ingestion.Option
	search        []search.Option
	reconstructor []reconstruct.Option
	agent         []agent.Option
	logger        *slog.Logger
}

// Option configures a Database.
type Option func(*options) error

// WithBackend selects the storage backend: BackendBadger (default) or
// BackendJSON.
func WithBackend(name string) Option {
	return func(o *options) error {
		switch name {
		case BackendBadger, BackendJSON:
			o.backend = name
			return nil
		}
		return fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// WithInMemory keeps a badger store in memory; the path is ignored.
func WithInMemory() Option {
	return func(o *options) error {
		o.inMemory = true
		return nil
	}
}

// WithAI connects to an OpenAI-compatible endpoint for embeddings and
// answer generation.
func WithAI(config *ai.Config) Option {
	return func(o *options) error {
		o.aiConfig = config
		return nil
	}
}

// WithProvider uses an already constructed AI provider. The Database closes
// it on Close.
func WithProvider(provider ai.Provider) Option {
	return func(o *options) error {
		o.provider = provider
		return nil
	}
}

// WithoutEmbeddings stops the provider's embedder from being used, which
// also disables the semantic fallback.
func WithoutEmbeddings() Option {
	return func(o *options) error {
		o.embeddings = false
		return nil
	}
}

// WithoutGeneration answers with raw context and canned replies even when a
// provider is configured.
func WithoutGeneration() Option {
	return func(o *options) error {
		o.generation = false
		return nil
	}
}

// WithChunkerOptions configures the chunker used for ingestion.
func WithChunkerOptions(opts ...chunking.Option) Option {
	return func(o *options) error {
		o.chunker = append(o.chunker, opts...)
		return nil
	}
}

// WithExtractionOptions configures the concept extractor.
func WithExtractionOptions(opts ...extraction.Option) Option {
	return func(o *options) error {
		o.extraction = append(o.extraction, opts...)
		return nil
	}
}

// WithMatcherOptions configures concept matching.
func WithMatcherOptions(opts ...matching.Option) Option {
	return func(o *options) error {
		o.matcher = append(o.matcher, opts...)
		return nil
	}
}

// WithRouterOptions configures the query router.
func WithRouterOptions(opts ...routing.Option) Option {
	return func(o *options) error {
		o.router = append(o.router, opts...)
		return nil
	}
}

// WithIngestionOptions configures the ingestion pipeline.
func WithIngestionOptions(opts ...ingestion.Option) Option {
	return func(o *options) error {
		o.ingestion = append(o.ingestion, opts...)
		return nil
	}
}

// WithSearchOptions configures the vector searcher used by the fallback.
func WithSearchOptions(opts ...search.Option) Option {
	return func(o *options) error {
		o.search = append(o.search, opts...)
		return nil
	}
}

// WithReconstructorOptions configures context assembly for answers.
func WithReconstructorOptions(opts ...reconstruct.Option) Option {
	return func(o *options) error {
		o.reconstructor = append(o.reconstructor, opts...)
		return nil
	}
}

// WithAgentOptions configures the answering agent.
func WithAgentOptions(opts ...agent.Option) Option {
	return func(o *options) error {
		o.agent = append(o.agent, opts...)
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// Open opens (creating if needed) the store at path and loads the concept
// index into memory.
func Open(path string, opts ...Option) (*Database, error) {
	o := &options{
		backend:    BackendBadger,
		embeddings: true,
		generation: true,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	db := &Database{logger: o.logger.With("component", "database")}
	if err := db.openStorage(path, o); err != nil {
		return nil, err
	}
	if err := db.init(o); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (db *Database) openStorage(path string, o *options) error {
	if o.backend == BackendJSON {
		store, err := jsonfile.Open(path)
		if err != nil {
			return err
		}
		db.jsonStore = store
		db.documents, db.indexRepo, db.vectors = store, store, store
		return nil
	}

	backend, err := badger.OpenBackend(path, o.inMemory)
	if err != nil {
		return err
	}
	documents := badger.NewDocumentRepository(backend)
	db.backend = backend
	db.documents = documents
	db.vectors = documents
	db.indexRepo = badger.NewIndexRepository(backend)
	db.checkpoints = badger.NewCheckpointRepository(backend)
	return nil
}

func (db *Database) init(o *options) error {
	ctx := context.Background()

	entries, err := db.indexRepo.LoadIndex(ctx)
	if err != nil {
		return fmt.Errorf("failed to load concept index: %w", err)
	}
	db.index = index.FromEntries(entries)

	db.provider = o.provider
	if db.provider == nil && o.aiConfig != nil {
		if db.provider, err = openai.NewProvider(o.aiConfig); err != nil {
			return err
		}
	}
	var generator ai.Generator
	if db.provider != nil {
		if o.embeddings {
			db.embedder = db.provider.Embedder()
		}
		if o.generation {
			generator = db.provider.Generator()
		}
	}

	extractorOpts := append([]extraction.Option{extraction.WithLogger(o.logger)}, o.extraction...)
	if db.extractor, err = extraction.New(extractorOpts...); err != nil {
		return err
	}
	chunker, err := chunking.New(o.chunker...)
	if err != nil {
		return err
	}
	matcher, err := matching.New(append([]matching.Option{matching.WithLogger(o.logger)}, o.matcher...)...)
	if err != nil {
		return err
	}
	routerOpts := append([]routing.Option{routing.WithLogger(o.logger)}, o.router...)
	if db.router, err = routing.New(db.extractor, matcher, db.index, routerOpts...); err != nil {
		return err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithLogger(o.logger),
		ingestion.WithChunker(chunker),
		ingestion.WithExtractor(db.extractor),
		ingestion.WithWriteLock(&db.writeMu),
	}
	if db.embedder != nil {
		pipelineOpts = append(pipelineOpts, ingestion.WithEmbedder(db.embedder))
	}
	if db.pipeline, err = ingestion.NewPipeline(db.documents, db.indexRepo, db.index, append(pipelineOpts, o.ingestion...)...); err != nil {
		return err
	}

	reconstructor, err := reconstruct.New(db.documents,
		append([]reconstruct.Option{reconstruct.WithLogger(o.logger)}, o.reconstructor...)...)
	if err != nil {
		return err
	}
	agentOpts := []agent.Option{agent.WithLogger(o.logger), agent.WithReconstructor(reconstructor)}
	if generator != nil {
		agentOpts = append(agentOpts, agent.WithGenerator(generator))
	}
	if db.embedder != nil {
		searcher, err := search.NewSearcher(db.vectors, db.documents, db.embedder,
			append([]search.Option{search.WithLogger(o.logger)}, o.search...)...)
		if err != nil {
			return err
		}
		agentOpts = append(agentOpts, agent.WithVectorSearcher(searcher))
	}
	if db.agent, err = agent.New(db.router, db.documents, append(agentOpts, o.agent...)...); err != nil {
		return err
	}

	db.logger.Debug("database opened", "concepts", db.index.Len(), "embeddings", db.embedder != nil, "generation", generator != nil)
	return nil
}

// Close releases the pipeline, the AI provider and the store.
func (db *Database) Close() error {
	var errs []error
	if db.pipeline != nil {
		db.pipeline.Release()
	}
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if db.jsonStore != nil {
		errs = append(errs, db.jsonStore.Close())
	}
	if db.backend != nil {
		errs = append(errs, db.indexRepo.Close(), db.documents.Close())
		if err := db.backend.Close(); err != nil {
			db.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Documents returns the document repository.
func (db *Database) Documents() storage.DocumentRepository {
	return db.documents
}

// IndexRepository returns the persisted side of the concept index.
func (db *Database) IndexRepository() storage.IndexRepository {
	return db.indexRepo
}

// CheckpointRepository returns nil for the JSON backend.
func (db *Database) CheckpointRepository() storage.CheckpointRepository {
	return db.checkpoints
}

// Index returns the live concept index.
func (db *Database) Index() *index.Index {
	return db.index
}

func (db *Database) Router() *routing.Router {
	return db.router
}

func (db *Database) Agent() *agent.Agent {
	return db.agent
}

// Pipeline returns the shared ingestion pipeline.
func (db *Database) Pipeline() *ingestion.Pipeline {
	return db.pipeline
}

// NewIngestionPipeline creates an additional pipeline over the same store,
// index and write lock, e.g. with a different processing mode. The caller
// must Release it.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithLogger(db.logger),
		ingestion.WithExtractor(db.extractor),
		ingestion.WithWriteLock(&db.writeMu),
	}
	if db.embedder != nil {
		base = append(base, ingestion.WithEmbedder(db.embedder))
	}
	return ingestion.NewPipeline(db.documents, db.indexRepo, db.index, append(base, opts...)...)
}

// NewSearcher creates a vector searcher over the store.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	if db.embedder == nil {
		return nil, ErrNoEmbedder
	}
	return search.NewSearcher(db.vectors, db.documents, db.embedder, opts...)
}

// Ingest adds one document.
func (db *Database) Ingest(ctx context.Context, req ingestion.Request) (*ingestion.Result, error) {
	return db.pipeline.Ingest(ctx, req)
}

// IngestBatch adds several documents, continuing past failures.
func (db *Database) IngestBatch(ctx context.Context, reqs []ingestion.Request) ([]*ingestion.Result, error) {
	return db.pipeline.IngestBatch(ctx, reqs)
}

// Route decides how a query would be handled without answering it.
func (db *Database) Route(ctx context.Context, query string) (*routing.Decision, error) {
	return db.router.Route(ctx, query)
}

// Ask answers a query.
func (db *Database) Ask(ctx context.Context, query string) (*agent.Response, error) {
	return db.agent.Respond(ctx, query)
}

// Stats summarizes the store and the index.
func (db *Database) Stats(ctx context.Context) (*core.StoreStats, error) {
	documents, chunks, err := db.documents.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &core.StoreStats{
		Documents:   documents,
		Chunks:      chunks,
		Concepts:    db.index.Len(),
		TopConcepts: db.index.TopConcepts(DefaultTopConcepts),
	}, nil
}

// Reset deletes every document, chunk and index entry.
func (db *Database) Reset(ctx context.Context) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if err := db.documents.Reset(ctx); err != nil {
		return err
	}
	if err := db.indexRepo.Reset(ctx); err != nil {
		return err
	}
	db.index.Reset()
	db.logger.Info("store reset")
	return nil
}

// Reindex rebuilds the concept index from the stored chunks and swaps it in.
// With reextract set, chunk concepts are extracted again first.
func (db *Database) Reindex(ctx context.Context, reextract bool, config *reindex.Config, progress io.Writer) error {
	var extractor *extraction.Extractor
	if reextract {
		extractor = db.extractor
	}
	r, err := reindex.NewReindexer(db.documents, db.indexRepo, extractor, config, progress)
	if err != nil {
		return err
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	rebuilt, err := r.Run(ctx)
	if err != nil {
		return err
	}
	db.index.Replace(rebuilt)
	return nil
}

// Reembed recomputes every chunk vector with the configured embedder,
// resuming from a checkpoint when the backend keeps one.
func (db *Database) Reembed(ctx context.Context, config *reindex.Config, progress io.Writer) (int, error) {
	if db.embedder == nil {
		return 0, ErrNoEmbedder
	}
	r, err := reindex.NewReembedder(db.documents, db.embedder, db.checkpoints, config, progress)
	if err != nil {
		return 0, err
	}
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	return r.Run(ctx)
}
