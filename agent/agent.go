// Package agent answers queries by executing the strategy chosen by the
// query router: a direct reply, concept search over the index, semantic
// search through a vector-store collaborator, or a weather lookup.
//
// Every collaborator except the router and the chunk store is optional. A
// missing or failing collaborator degrades the answer (canned reply, raw
// context, apology) and the reason is recorded in Response.Reasoning.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/conceptrag/ai"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/extraction"
	"github.com/poiesic/conceptrag/reconstruct"
	"github.com/poiesic/conceptrag/routing"
)

const (
	// DefaultWindow is the number of neighbouring chunks on each side of a match.
	DefaultWindow = 1

	// DefaultPassages is the number of matches expanded into the answer context.
	DefaultPassages = 3

	passageSeparator = "\n\n---\n\n"
)

const (
	greetingReply   = "Hello! I can answer questions about the documents in my knowledge base. How can I help you?"
	directReply     = "I can answer questions about the documents in my knowledge base, or report the weather for a city. What would you like to know?"
	apologyReply    = "I apologize, but I'm having trouble processing your request right now. Please try again."
	emptyStoreReply = "I don't have any documents loaded yet. Please ingest some documents first."
	noMatchReply    = "I couldn't find any relevant information in my knowledge base for your question. Could you try rephrasing it?"
	askCityReply    = "I'd be happy to help with weather information! Please specify a city. For example: 'What's the weather in Tokyo?'"
	noWeatherReply  = "Weather lookups are not configured."
	contextPrefix   = "Here's the relevant information from the knowledge base:\n\n"
)

// ChunkStore is the read side of the document store used by the agent.
type ChunkStore interface {
	reconstruct.ChunkSource
	GetChunk(ctx context.Context, id string) (*core.Chunk, error)
	Counts(ctx context.Context) (int, int, error)
}

// Source identifies a chunk used to build an answer.
type Source struct {
	ChunkID string
	DocID   string
	Score   float64
}

// Response is the agent's answer to one query.
type Response struct {
	Answer    string
	Strategy  routing.Strategy
	Reasoning string
	Concepts  []core.Concept
	Sources   []Source

	// Context is the reconstructed passage handed to the generator, if any.
	Context string
}

// Agent executes routed queries.
type Agent struct {
	router        *routing.Router
	store         ChunkStore
	reconstructor *reconstruct.Reconstructor
	generator     ai.Generator
	searcher      ai.VectorSearcher
	weather       WeatherService
	window        int
	passages      int
	logger        *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent) error

// WithGenerator sets the answer generator. Without one, concept and semantic
// search answer with the raw reconstructed context and direct queries get a
// canned reply.
func WithGenerator(g ai.Generator) Option {
	return func(a *Agent) error {
		a.generator = g
		return nil
	}
}

// WithVectorSearcher sets the collaborator used by the semantic fallback.
func WithVectorSearcher(s ai.VectorSearcher) Option {
	return func(a *Agent) error {
		a.searcher = s
		return nil
	}
}

// WithWeatherService sets the weather collaborator.
func WithWeatherService(w WeatherService) Option {
	return func(a *Agent) error {
		a.weather = w
		return nil
	}
}

// WithReconstructor replaces the default reconstructor over the chunk store.
func WithReconstructor(r *reconstruct.Reconstructor) Option {
	return func(a *Agent) error {
		if r == nil {
			return fmt.Errorf("%w: nil reconstructor", ErrInvalidConfig)
		}
		a.reconstructor = r
		return nil
	}
}

// WithWindow sets the reconstruction window.
func WithWindow(window int) Option {
	return func(a *Agent) error {
		if window < 0 {
			return fmt.Errorf("%w: window %d", ErrInvalidConfig, window)
		}
		a.window = window
		return nil
	}
}

// WithPassages sets how many matches are expanded into the answer context.
func WithPassages(n int) Option {
	return func(a *Agent) error {
		if n < 1 {
			return fmt.Errorf("%w: passages %d", ErrInvalidConfig, n)
		}
		a.passages = n
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger.With("component", "agent")
		return nil
	}
}

// New creates an agent over router and store.
func New(router *routing.Router, store ChunkStore, opts ...Option) (*Agent, error) {
	if router == nil {
		return nil, ErrRouterRequired
	}
	if store == nil {
		return nil, ErrDocumentsRequired
	}
	a := &Agent{
		router:   router,
		store:    store,
		window:   DefaultWindow,
		passages: DefaultPassages,
		logger:   slog.Default().With("component", "agent"),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.reconstructor == nil {
		r, err := reconstruct.New(store, reconstruct.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		a.reconstructor = r
	}
	return a, nil
}

// Respond routes query and executes the chosen strategy. Only an empty query,
// a cancelled context or a routing failure return an error; collaborator
// failures produce a degraded answer.
func (a *Agent) Respond(ctx context.Context, query string) (*Response, error) {
	if err := core.ValidateText(query); err != nil {
		return nil, err
	}
	decision, err := a.router.Route(ctx, query)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Strategy:  decision.Strategy,
		Reasoning: decision.Reasoning,
		Concepts:  decision.Concepts,
	}
	switch decision.Strategy {
	case routing.SpecializedAPI:
		a.respondWeather(ctx, decision, resp)
	case routing.ConceptSearch:
		a.respondConcepts(ctx, query, decision, resp)
	case routing.SemanticFallback:
		a.respondSemantic(ctx, query, resp)
	default:
		a.respondDirect(ctx, query, decision, resp)
	}

	a.logger.Info("answered query",
		"strategy", resp.Strategy,
		"sources", len(resp.Sources),
		"generated", a.generator != nil)
	return resp, nil
}

func (a *Agent) respondWeather(ctx context.Context, d *routing.Decision, resp *Response) {
	switch {
	case d.City == "":
		resp.Answer = askCityReply
		resp.note("no city named in the query")
	case a.weather == nil:
		resp.Answer = noWeatherReply
		resp.note("no weather service configured")
	default:
		w, err := a.weather.Current(ctx, d.City)
		if err != nil {
			a.logger.Error("weather lookup failed", "city", d.City, "err", err)
			resp.Answer = fmt.Sprintf("I couldn't retrieve weather information for '%s'. Please check the city name and try again.", d.City)
			resp.note("weather lookup failed: " + err.Error())
			return
		}
		resp.Answer = FormatWeather(w)
	}
}

func (a *Agent) respondConcepts(ctx context.Context, query string, d *routing.Decision, resp *Response) {
	var sources []Source
	for _, m := range d.Matches {
		sources = append(sources, Source{ChunkID: m.TargetID, DocID: m.DocID, Score: m.Score})
	}
	a.answerFromSources(ctx, query, sources, resp)
}

func (a *Agent) respondSemantic(ctx context.Context, query string, resp *Response) {
	if docs, _, err := a.store.Counts(ctx); err == nil && docs == 0 {
		resp.Answer = emptyStoreReply
		resp.note("document store is empty")
		return
	}
	if a.searcher == nil {
		resp.Answer = noMatchReply
		resp.note("no vector search configured")
		return
	}

	matches, err := a.searcher.Search(ctx, query, a.passages)
	if err != nil {
		a.logger.Error("vector search failed", "err", err)
		resp.Answer = apologyReply
		resp.note("vector search failed: " + err.Error())
		return
	}
	if len(matches) == 0 {
		resp.Answer = noMatchReply
		resp.note("vector search returned no results")
		return
	}

	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, Source{ChunkID: m.ChunkID, Score: float64(m.Score)})
	}
	a.answerFromSources(ctx, query, sources, resp)
}

// answerFromSources reconstructs the top sources and hands the passage to the
// generator, falling back to the raw passage.
func (a *Agent) answerFromSources(ctx context.Context, query string, sources []Source, resp *Response) {
	var passages []string
	for _, src := range sources {
		if len(resp.Sources) == a.passages {
			break
		}
		chunk, err := a.store.GetChunk(ctx, src.ChunkID)
		if err != nil {
			a.logger.Warn("matched chunk unavailable", "chunk", src.ChunkID, "err", err)
			continue
		}
		passage, err := a.reconstructor.ReconstructChunk(ctx, chunk, a.window)
		if err != nil {
			a.logger.Warn("context reconstruction failed", "chunk", src.ChunkID, "err", err)
			continue
		}
		src.DocID = chunk.DocID
		resp.Sources = append(resp.Sources, src)
		passages = append(passages, passage)
	}

	if len(passages) == 0 {
		resp.Answer = noMatchReply
		resp.note("no matched chunk could be reconstructed")
		return
	}
	resp.Context = strings.Join(passages, passageSeparator)

	if a.generator == nil {
		resp.Answer = contextPrefix + resp.Context
		resp.note("no generator configured; returning raw context")
		return
	}
	answer, err := a.generator.Generate(ctx, resp.Context, query)
	if err != nil {
		a.logger.Error("generation failed", "err", err)
		resp.Answer = contextPrefix + resp.Context
		resp.note("generation failed: " + err.Error())
		return
	}
	resp.Answer = answer
}

func (a *Agent) respondDirect(ctx context.Context, query string, d *routing.Decision, resp *Response) {
	if a.generator == nil {
		if isGreeting(d) {
			resp.Answer = greetingReply
		} else {
			resp.Answer = directReply
		}
		return
	}
	answer, err := a.generator.Generate(ctx, "", query)
	if err != nil {
		a.logger.Error("generation failed", "err", err)
		resp.Answer = apologyReply
		resp.note("generation failed: " + err.Error())
		return
	}
	resp.Answer = answer
}

func isGreeting(d *routing.Decision) bool {
	for _, c := range d.Concepts {
		if c.Name == extraction.CategoryGreeting {
			return true
		}
	}
	return false
}

// note appends a step to the reasoning.
func (r *Response) note(step string) {
	if r.Reasoning == "" {
		r.Reasoning = step
		return
	}
	r.Reasoning += "; " + step
}
