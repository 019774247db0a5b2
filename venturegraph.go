package venturegraph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/venturegraph/venturegraph/pkg/aliases"
	"github.com/venturegraph/venturegraph/pkg/analyzer"
	"github.com/venturegraph/venturegraph/pkg/assembler"
	"github.com/venturegraph/venturegraph/pkg/config"
	"github.com/venturegraph/venturegraph/pkg/embedder"
	"github.com/venturegraph/venturegraph/pkg/llm"
	"github.com/venturegraph/venturegraph/pkg/retriever"
	"github.com/venturegraph/venturegraph/pkg/store"
	"github.com/venturegraph/venturegraph/pkg/types"
)

// VentureGraph is the top-level retrieval API.
type VentureGraph interface {
	// Search answers one free-text query.
	Search(ctx context.Context, query string, opts *SearchOptions) (*types.SearchResponse, error)

	// FindSimilar returns the nodes most similar to the given node.
	FindSimilar(ctx context.Context, nodeID string, topK int) ([]types.Match, error)

	// EntityNetwork returns a node and its neighborhood up to depth hops.
	EntityNetwork(ctx context.Context, nodeID string, depth int) (*types.Network, error)

	// Statistics reports graph-level counts.
	Statistics(ctx context.Context) (map[string]any, error)

	// Close releases all underlying resources.
	Close(ctx context.Context) error
}

// SearchOptions tune one search. A nil options value uses the configured
// defaults.
type SearchOptions struct {
	TopK         int
	GraphDepth   int
	MinScore     float64
	FilterType   string
	MinRepoStars int
	PersonRoles  []string

	// SkipGraph omits the visualization graph from the response.
	SkipGraph bool

	// SkipSummary omits the natural-language summary.
	SkipSummary bool
}

// Client implements VentureGraph against a Neo4j store and OpenAI models.
type Client struct {
	store     *store.Store
	embedder  embedder.Client
	chat      llm.Client
	retriever *retriever.Retriever
	assembler *assembler.Assembler
	resolver  *aliases.Resolver
	defaults  config.SearchConfig
	logger    *slog.Logger
}

var _ VentureGraph = (*Client)(nil)

// New wires a client from configuration: store, embedder, chat model,
// alias resolver, analyzer, planner, retriever and assembler. The chat
// model is optional; without it the planner falls back to heuristics and
// summaries to the fallback string.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.New(ctx, store.Config{
		URI:        cfg.Database.URI,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		Database:   cfg.Database.Database,
		MaxRetries: cfg.Database.MaxRetries,
	}, logger)
	if err != nil {
		return nil, err
	}

	emb, err := embedder.NewOpenAIClient(embedder.Config{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		closeErr := st.Close(ctx)
		if closeErr != nil {
			logger.Warn("failed to close store during teardown", "error", closeErr)
		}
		return nil, err
	}

	var chat llm.Client
	if cfg.LLM.APIKey != "" {
		chat, err = llm.NewOpenAIClient(cfg.LLM.APIKey, llm.Config{
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		if err != nil {
			if closeErr := st.Close(ctx); closeErr != nil {
				logger.Warn("failed to close store during teardown", "error", closeErr)
			}
			return nil, err
		}
		chat = llm.NewCircuitBreakerClient(chat, llm.BreakerConfig{
			Enabled:          cfg.CircuitBreaker.Enabled,
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
			Timeout:          time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
			ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
		}, logger)
	} else {
		logger.Warn("no LLM configured; planner and summaries run degraded")
	}

	resolver := aliases.Load(ctx, st, cfg.Aliases.File, logger)
	if resolver.Empty() {
		logger.Warn("no aliases loaded; location and industry filters disabled")
	}

	qa := analyzer.New(resolver, logger)

	var planner analyzer.Planner
	if chat != nil {
		planner = analyzer.NewLLMPlanner(chat,
			time.Duration(cfg.LLM.PlannerTimeout)*time.Second, logger)
	} else {
		planner = analyzer.NewHeuristicPlanner()
	}

	return &Client{
		store:     st,
		embedder:  emb,
		chat:      chat,
		retriever: retriever.New(st, emb, planner, qa, resolver, logger),
		assembler: assembler.New(chat,
			time.Duration(cfg.LLM.SummaryTimeout)*time.Second, logger),
		resolver: resolver,
		defaults: cfg.Search,
		logger:   logger,
	}, nil
}

// Search implements VentureGraph.
func (c *Client) Search(ctx context.Context, query string, opts *SearchOptions) (*types.SearchResponse, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}

	ropts := retriever.Options{
		TopK:         opts.TopK,
		GraphDepth:   opts.GraphDepth,
		MinScore:     opts.MinScore,
		FilterType:   opts.FilterType,
		MinRepoStars: opts.MinRepoStars,
		PersonRoles:  opts.PersonRoles,
	}
	if ropts.TopK <= 0 {
		ropts.TopK = c.defaults.TopK
	}
	if ropts.GraphDepth <= 0 {
		ropts.GraphDepth = c.defaults.GraphDepth
	}
	if ropts.MinScore <= 0 {
		ropts.MinScore = c.defaults.MinScore
	}

	result, err := c.retriever.Search(ctx, query, ropts)
	if err != nil {
		return nil, err
	}

	matches := assembler.Dedupe(result.Matches)

	response := &types.SearchResponse{
		Query:        query,
		Matches:      matches,
		TotalResults: len(matches),
		SearchParams: result.Params,
	}
	if !opts.SkipGraph {
		response.Graph = assembler.BuildGraph(matches)
	}
	if opts.SkipSummary {
		response.Response = ""
	} else {
		response.Response = c.assembler.Summarize(ctx, query, matches)
	}
	return response, nil
}

// FindSimilar implements VentureGraph.
func (c *Client) FindSimilar(ctx context.Context, nodeID string, topK int) ([]types.Match, error) {
	if nodeID == "" {
		return nil, fmt.Errorf("node id is required")
	}
	return c.store.FindSimilarNodes(ctx, nodeID, topK, 0)
}

// EntityNetwork implements VentureGraph.
func (c *Client) EntityNetwork(ctx context.Context, nodeID string, depth int) (*types.Network, error) {
	if nodeID == "" {
		return nil, fmt.Errorf("node id is required")
	}
	return c.store.GetNodeWithConnections(ctx, nodeID, depth)
}

// Statistics implements VentureGraph.
func (c *Client) Statistics(ctx context.Context) (map[string]any, error) {
	return c.store.Statistics(ctx)
}

// Store exposes the underlying graph store for ingestion tooling.
func (c *Client) Store() *store.Store {
	return c.store
}

// Embedder exposes the embedding client for ingestion tooling.
func (c *Client) Embedder() embedder.Client {
	return c.embedder
}

// Close implements VentureGraph.
func (c *Client) Close(ctx context.Context) error {
	var firstErr error
	if c.chat != nil {
		if err := c.chat.Close(); err != nil {
			firstErr = err
		}
	}
	if err := c.store.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
