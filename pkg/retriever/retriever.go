// Package retriever orchestrates hybrid retrieval: it analyzes the query,
// picks a strategy, runs vector and structural searches, expands through
// the graph and merges everything into one scored result list.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/venturegraph/venturegraph/pkg/aliases"
	"github.com/venturegraph/venturegraph/pkg/analyzer"
	"github.com/venturegraph/venturegraph/pkg/types"
)

// Defaults applied when the caller leaves options unset.
const (
	DefaultTopK       = 5
	DefaultGraphDepth = 2
	DefaultMinScore   = 0.0
)

// GraphStore is the slice of the store the retriever needs.
type GraphStore interface {
	VectorSearch(ctx context.Context, embedding []float32, f *types.Filters, topK int, minScore float64) ([]types.Match, error)
	FilterSearch(ctx context.Context, f *types.Filters) ([]types.Match, error)
	ExpandFromSeeds(ctx context.Context, seeds []types.Match, depth int, f *types.Filters, seen map[string]struct{}) ([]types.Match, error)
	FindCompaniesByBatch(ctx context.Context, batchTokens []string, limit int) ([]types.Match, error)
	TopStarredRepositories(ctx context.Context, limit, minStars int) ([]types.Match, error)
}

// Embedder is the slice of the embedding client the retriever needs.
type Embedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// Options are per-search overrides. Anything the caller sets here wins
// over what the analyzer extracted.
type Options struct {
	TopK         int
	GraphDepth   int
	MinScore     float64
	FilterType   string
	MinRepoStars int
	PersonRoles  []string
}

// Result is one completed retrieval: the merged matches plus the intent
// and the parameters the search actually ran with.
type Result struct {
	Matches  []types.Match
	Intent   *analyzer.Intent
	Params   types.SearchParams
	Degraded bool
}

// Retriever runs searches. All fields are set at construction and never
// mutated, so it is safe for concurrent use.
type Retriever struct {
	store    GraphStore
	embedder Embedder
	planner  analyzer.Planner
	analyzer *analyzer.Analyzer
	resolver *aliases.Resolver
	logger   *slog.Logger
}

// New wires a retriever. planner may be nil; complex queries then fall
// back to their heuristic intent.
func New(store GraphStore, embedder Embedder, planner analyzer.Planner, qa *analyzer.Analyzer, resolver *aliases.Resolver, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = aliases.NewFromMap(nil)
	}
	if qa == nil {
		qa = analyzer.New(resolver, logger)
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		planner:  planner,
		analyzer: qa,
		resolver: resolver,
		logger:   logger,
	}
}

// Search runs one query end to end and returns the merged matches.
func (r *Retriever) Search(ctx context.Context, query string, opts Options) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.GraphDepth <= 0 {
		opts.GraphDepth = DefaultGraphDepth
	}
	if opts.MinScore < 0 {
		opts.MinScore = DefaultMinScore
	}

	intent := r.analyzer.Analyze(query)
	applyOverrides(intent, opts)

	// Star-ranking queries bypass embeddings entirely.
	if intent.TopStarred {
		matches, err := r.store.TopStarredRepositories(ctx, opts.TopK, intent.Filters.MinRepoStars)
		if err != nil {
			return nil, err
		}
		return r.finish(intent, opts, matches, false), nil
	}

	planned := false
	if intent.Route == analyzer.RoutePlanner && r.planner != nil {
		r.plan(ctx, query, intent)
		planned = true
	}

	if intent.Route == analyzer.RouteFilterOnly {
		matches, err := r.store.FilterSearch(ctx, intent.Filters)
		if err != nil {
			return nil, err
		}
		return r.finish(intent, opts, matches, false), nil
	}

	matches, degraded, err := r.semanticSearch(ctx, intent, opts)
	if err != nil {
		return nil, err
	}

	// An empty fast-path result escalates to the planner once before the
	// structural fallbacks kick in.
	if len(matches) == 0 && !planned && !degraded && r.planner != nil {
		r.logger.Info("fast path returned no results, escalating to planner")
		if r.plan(ctx, query, intent) {
			matches, degraded, err = r.semanticSearch(ctx, intent, opts)
			if err != nil {
				return nil, err
			}
		}
	}

	// Last-resort structural fallback: a batch-filtered query should never
	// come back empty just because the embedding space missed.
	if len(matches) == 0 && len(intent.Filters.BatchTokens) > 0 {
		r.logger.Info("semantic search empty, falling back to direct batch lookup",
			"batch_tokens", intent.Filters.BatchTokens)
		matches, err = r.store.FindCompaniesByBatch(ctx, intent.Filters.BatchTokens, opts.TopK)
		if err != nil {
			return nil, err
		}
		degraded = true
	}

	return r.finish(intent, opts, matches, degraded), nil
}

// plan asks the planner to refine the intent. A planner failure is logged
// and ignored; the heuristic intent is always a safe baseline.
func (r *Retriever) plan(ctx context.Context, query string, intent *analyzer.Intent) bool {
	plan, err := r.planner.Plan(ctx, query, intent)
	if err != nil {
		r.logger.Warn("query planning failed, continuing with heuristic intent", "error", err)
		return false
	}
	intent.Merge(plan, func(code string) []string {
		return r.resolver.AliasesFor(aliases.DomainLocation, code)
	})
	return true
}

// semanticSearch embeds the cleaned query and runs hybrid vector plus
// graph retrieval. An embedding failure degrades to filter-only when hard
// filters exist; with nothing to filter on it is fatal.
func (r *Retriever) semanticSearch(ctx context.Context, intent *analyzer.Intent, opts Options) ([]types.Match, bool, error) {
	text := intent.CleanQuery
	if text == "" {
		text = intent.Query
	}

	embedding, err := r.embedder.EmbedSingle(ctx, text)
	if err != nil {
		if intent.Filters.HasHardFilter() {
			r.logger.Warn("embedding failed, degrading to filter-only search", "error", err)
			matches, ferr := r.store.FilterSearch(ctx, intent.Filters)
			if ferr != nil {
				return nil, false, fmt.Errorf("embedding failed (%v) and filter fallback failed: %w", err, ferr)
			}
			return matches, true, nil
		}
		return nil, false, fmt.Errorf("query embedding failed: %w", err)
	}

	seeds, err := r.store.VectorSearch(ctx, embedding, intent.Filters, opts.TopK, opts.MinScore)
	if err != nil {
		return nil, false, err
	}

	seen := make(map[string]struct{}, len(seeds))
	for _, seed := range seeds {
		seen[seed.ID] = struct{}{}
	}

	expanded, err := r.store.ExpandFromSeeds(ctx, seeds, opts.GraphDepth, intent.Filters, seen)
	if err != nil {
		// Expansion enriches; its failure never voids the direct hits.
		r.logger.Warn("graph expansion failed, returning vector hits only", "error", err)
		expanded = nil
	}

	merged := append(seeds, expanded...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if intent.Filters.LocationCode != "" {
		merged = r.revalidateLocations(merged, intent.Filters.LocationCode)
	}
	return merged, false, nil
}

// revalidateLocations strictly re-checks company locations against the
// canonical alias set. The vector pool uses a coarse substring pre-filter;
// this pass is the authoritative one. Non-company nodes carry no location
// of their own and pass through.
func (r *Retriever) revalidateLocations(matches []types.Match, locationCode string) []types.Match {
	tokens := r.resolver.AliasesFor(aliases.DomainLocation, locationCode)
	if len(tokens) == 0 {
		return matches
	}

	kept := matches[:0]
	for _, m := range matches {
		if m.Type != types.CompanyNodeType {
			kept = append(kept, m)
			continue
		}
		location, _ := m.Data["location"].(string)
		lowered := strings.ToLower(location)
		ok := false
		for _, tok := range tokens {
			if strings.Contains(lowered, strings.ToLower(tok)) {
				ok = true
				break
			}
		}
		if ok {
			kept = append(kept, m)
		}
	}
	return kept
}

// applyOverrides folds caller-supplied options into the analyzed intent.
func applyOverrides(intent *analyzer.Intent, opts Options) {
	if opts.FilterType != "" {
		intent.Filters.NodeType = types.NodeType(opts.FilterType)
	}
	if opts.MinRepoStars > 0 {
		intent.Filters.MinRepoStars = opts.MinRepoStars
	}
	if len(opts.PersonRoles) > 0 {
		intent.Filters.PersonRoles = opts.PersonRoles
	}
}

// finish truncates to top-k and assembles the echoed search parameters.
func (r *Retriever) finish(intent *analyzer.Intent, opts Options, matches []types.Match, degraded bool) *Result {
	if len(matches) > opts.TopK {
		matches = matches[:opts.TopK]
	}
	return &Result{
		Matches:  matches,
		Intent:   intent,
		Degraded: degraded,
		Params: types.SearchParams{
			TopK:           opts.TopK,
			GraphDepth:     opts.GraphDepth,
			MinScore:       opts.MinScore,
			FilterType:     string(intent.Filters.NodeType),
			AppliedFilters: intent.Filters.Applied(),
		},
	}
}
