package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/poiesic/conceptrag"
	"github.com/poiesic/conceptrag/agent"
	"github.com/poiesic/conceptrag/ai"
	"github.com/poiesic/conceptrag/chunking"
	"github.com/poiesic/conceptrag/config"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/ingestion"
	"github.com/poiesic/conceptrag/matching"
	"github.com/poiesic/conceptrag/reconstruct"
	"github.com/poiesic/conceptrag/reindex"
	"github.com/poiesic/conceptrag/routing"
	"github.com/poiesic/conceptrag/search"
	"github.com/urfave/cli/v2"
)

// loadConfig reads --config and applies the global overrides.
func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.Storage.Path = db
	}
	if backend := c.String("backend"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if c.Bool("no-ai") {
		cfg.AI.Enabled = false
	}
	return cfg, cfg.Validate()
}

// databaseOptions maps the application config onto the library options.
func databaseOptions(cfg *config.AppConfig) ([]conceptrag.Option, error) {
	opts := []conceptrag.Option{
		conceptrag.WithBackend(cfg.Storage.Backend),
		conceptrag.WithChunkerOptions(
			chunking.WithTargetSize(cfg.Chunker.TargetSize),
			chunking.WithOverlap(cfg.Chunker.Overlap),
		),
		conceptrag.WithMatcherOptions(
			matching.WithThreshold(cfg.Matcher.Threshold),
			matching.WithTopK(cfg.Matcher.TopK),
		),
		conceptrag.WithRouterOptions(
			routing.WithMinConceptWeight(cfg.Router.MinConceptWeight),
			routing.WithMinQueryLength(cfg.Router.MinQueryLength),
		),
		conceptrag.WithIngestionOptions(
			ingestion.WithProcessingMode(core.ProcessingMode(cfg.Extraction.Mode)),
			ingestion.WithKeywords(cfg.Extraction.Keywords),
			ingestion.WithSummarySentences(cfg.Extraction.SummarySentences),
		),
		conceptrag.WithSearchOptions(search.WithMinSimilarity(cfg.Search.MinSimilarity)),
		conceptrag.WithReconstructorOptions(
			reconstruct.WithAnnotation(cfg.Reconstruction.Annotate),
			reconstruct.WithNeighborLimit(cfg.Reconstruction.NeighborLimit),
		),
		conceptrag.WithAgentOptions(
			agent.WithWindow(cfg.Reconstruction.Window),
			agent.WithPassages(cfg.Reconstruction.Passages),
		),
	}
	if cfg.Ingestion.PoolSize > 0 {
		opts = append(opts, conceptrag.WithIngestionOptions(ingestion.WithPoolSize(cfg.Ingestion.PoolSize)))
	}

	if cfg.AI.Enabled {
		aiConfig := ai.NewConfig(cfg.AI.AIOptions()...)
		if err := aiConfig.Validate(); err != nil {
			return nil, fmt.Errorf("invalid AI configuration: %w", err)
		}
		opts = append(opts, conceptrag.WithAI(aiConfig))
		if !cfg.AI.Embeddings {
			opts = append(opts, conceptrag.WithoutEmbeddings())
		}
	}
	return opts, nil
}

func openDatabase(c *cli.Context) (*conceptrag.Database, *config.AppConfig, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	opts, err := databaseOptions(cfg)
	if err != nil {
		return nil, nil, err
	}
	db, err := conceptrag.Open(cfg.Storage.Path, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store at %s: %w", cfg.Storage.Backend, cfg.Storage.Path, err)
	}
	return db, cfg, nil
}

func ingestCommand(c *cli.Context) error {
	var reqs []ingestion.Request
	for _, text := range c.StringSlice("text") {
		reqs = append(reqs, ingestion.Request{Text: text, Source: c.String("source")})
	}
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		reqs = append(reqs, ingestion.Request{Text: string(data), Source: path})
	}
	if len(reqs) == 0 {
		return errors.New("nothing to ingest: give files or --text")
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.IngestBatch(context.Background(), reqs)
	for _, r := range results {
		if r == nil {
			continue
		}
		fmt.Fprintf(c.App.Writer, "ingested %s: %d chunks, concepts: %s\n",
			r.DocID, r.Chunks, strings.Join(r.Concepts, ", "))
	}
	return err
}

func askCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a question is required")
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	resp, err := db.Ask(context.Background(), query)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, resp.Answer)
	if c.Bool("verbose") {
		w := c.App.Writer
		fmt.Fprintf(w, "\nstrategy: %s\nreasoning: %s\n", resp.Strategy, resp.Reasoning)
		for _, src := range resp.Sources {
			fmt.Fprintf(w, "source: %s (%s) score %.3f\n", src.ChunkID, src.DocID, src.Score)
		}
	}
	return nil
}

func routeCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a question is required")
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	d, err := db.Route(context.Background(), query)
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "strategy: %s\nreasoning: %s\n", d.Strategy, d.Reasoning)
	if d.City != "" {
		fmt.Fprintf(w, "city: %s\n", d.City)
	}
	for _, concept := range d.Concepts {
		fmt.Fprintf(w, "concept: %s (%s) weight %.3f\n", concept.Name, concept.Category, concept.Weight)
	}
	for _, m := range d.Matches {
		fmt.Fprintf(w, "match: %s score %.3f\n", m.TargetID, m.Score)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return fmt.Errorf("search needs ai.enabled and ai.embeddings in the config: %w", err)
	}
	var monitor search.SearchMonitor
	if c.Bool("trace") {
		monitor = &search.LogMonitor{}
	}
	ctx := context.Background()
	matches, err := searcher.SearchWithMonitor(ctx, query, c.Int("limit"), monitor)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Fprintln(c.App.Writer, "no results")
		return nil
	}
	for _, m := range matches {
		chunk, err := db.Documents().GetChunk(ctx, m.ChunkID)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%.3f %s %s\n", m.Score, m.ChunkID, chunk.Summary)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats(context.Background())
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "store: %s (%s)\n", cfg.Storage.Path, cfg.Storage.Backend)
	fmt.Fprintf(w, "documents: %d\nchunks: %d\nconcepts: %d\n", stats.Documents, stats.Chunks, stats.Concepts)
	if len(stats.TopConcepts) > 0 {
		fmt.Fprintf(w, "top concepts: %s\n", strings.Join(stats.TopConcepts, ", "))
	}
	return nil
}

// maintenanceConfig merges the command flags over the config file.
func maintenanceConfig(c *cli.Context, cfg *config.AppConfig) (*reindex.Config, error) {
	rc := &reindex.Config{
		BatchSize:      cfg.Maintenance.BatchSize,
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     cfg.Maintenance.MaxRetries,
		RetryDelay:     cfg.Maintenance.RetryDelay,
	}
	if n := c.Int("batch-size"); n != 0 {
		rc.BatchSize = n
	}
	if n := c.Int("max-retries"); n != 0 {
		rc.MaxRetries = n
	}
	if d := c.Duration("retry-delay"); d != 0 {
		rc.RetryDelay = d
	}

	if rc.BatchSize <= 0 {
		return nil, fmt.Errorf("batch-size must be greater than 0")
	}
	if rc.ReportInterval <= 0 {
		return nil, fmt.Errorf("report-interval must be greater than 0")
	}
	if rc.MaxRetries <= 0 {
		return nil, fmt.Errorf("max-retries must be greater than 0")
	}
	return rc, nil
}

func reindexCommand(c *cli.Context) error {
	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	rc, err := maintenanceConfig(c, cfg)
	if err != nil {
		return err
	}
	if err := db.Reindex(context.Background(), c.Bool("reextract"), rc, c.App.ErrWriter); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	rc, err := maintenanceConfig(c, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "Store: %s\nEmbedding host: %s\nEmbedding model: %s\n\n",
		cfg.Storage.Path, cfg.AI.EmbeddingHost, cfg.AI.EmbeddingModel)

	if _, err := db.Reembed(context.Background(), rc, c.App.ErrWriter); err != nil {
		if errors.Is(err, conceptrag.ErrNoEmbedder) {
			return fmt.Errorf("reembedding needs ai.enabled and ai.embeddings in the config: %w", err)
		}
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func resetCommand(c *cli.Context) error {
	if !c.Bool("yes") {
		return errors.New("reset deletes every document; pass --yes to confirm")
	}
	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Reset(context.Background()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "reset %s\n", cfg.Storage.Path)
	return nil
}

func exportCommand(c *cli.Context) error {
	dir := c.Args().First()
	if dir == "" {
		return errors.New("an output directory is required")
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Export(context.Background(), dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "exported %d documents, %d chunks, %d concepts to %s\n",
		stats.Documents, stats.Chunks, stats.Concepts, dir)
	return nil
}

func importCommand(c *cli.Context) error {
	dir := c.Args().First()
	if dir == "" {
		return errors.New("an input directory is required")
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Import(context.Background(), dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "imported %d documents, %d chunks (%d already present)\n",
		stats.Documents, stats.Chunks, stats.Skipped)
	return nil
}

func initConfigCommand(c *cli.Context) error {
	path := c.String("config")
	if !c.Bool("force") {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s exists; pass --force to overwrite", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	return nil
}
