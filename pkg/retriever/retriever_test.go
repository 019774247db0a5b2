package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturegraph/venturegraph/pkg/aliases"
	"github.com/venturegraph/venturegraph/pkg/analyzer"
	"github.com/venturegraph/venturegraph/pkg/types"
)

// mockStore records calls and returns canned results per method.
type mockStore struct {
	vectorResults   []types.Match
	vectorErr       error
	vectorCalls     int
	filterResults   []types.Match
	filterErr       error
	filterCalls     int
	expandResults   []types.Match
	expandErr       error
	expandCalls     int
	batchResults    []types.Match
	batchCalls      int
	starredResults  []types.Match
	starredCalls    int
	lastVectorTopK  int
	lastFilters     *types.Filters
	lastExpandDepth int
}

func (m *mockStore) VectorSearch(ctx context.Context, emb []float32, f *types.Filters, topK int, minScore float64) ([]types.Match, error) {
	m.vectorCalls++
	m.lastVectorTopK = topK
	m.lastFilters = f
	return m.vectorResults, m.vectorErr
}

func (m *mockStore) FilterSearch(ctx context.Context, f *types.Filters) ([]types.Match, error) {
	m.filterCalls++
	m.lastFilters = f
	return m.filterResults, m.filterErr
}

func (m *mockStore) ExpandFromSeeds(ctx context.Context, seeds []types.Match, depth int, f *types.Filters, seen map[string]struct{}) ([]types.Match, error) {
	m.expandCalls++
	m.lastExpandDepth = depth
	var out []types.Match
	for _, e := range m.expandResults {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out, m.expandErr
}

func (m *mockStore) FindCompaniesByBatch(ctx context.Context, tokens []string, limit int) ([]types.Match, error) {
	m.batchCalls++
	return m.batchResults, nil
}

func (m *mockStore) TopStarredRepositories(ctx context.Context, limit, minStars int) ([]types.Match, error) {
	m.starredCalls++
	return m.starredResults, nil
}

// mockEmbedder counts calls and can fail.
type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func testResolver() *aliases.Resolver {
	return aliases.NewFromMap(map[aliases.Domain]map[string][]string{
		aliases.DomainLocation: {
			"nyc": {"new york", "brooklyn"},
		},
		aliases.DomainIndustry: {
			"fintech": {"payments"},
		},
	})
}

func newTestRetriever(store *mockStore, emb *mockEmbedder) *Retriever {
	resolver := testResolver()
	return New(store, emb, analyzer.NewHeuristicPlanner(),
		analyzer.New(resolver, nil), resolver, nil)
}

func company(id, name string, score float64) types.Match {
	return types.Match{
		ID:    id,
		Score: score,
		Type:  types.CompanyNodeType,
		Data:  map[string]any{"id": id, "name": name},
	}
}

func TestFilterOnlyPathSkipsEmbedding(t *testing.T) {
	store := &mockStore{filterResults: []types.Match{
		company("c1", "Acme", 1.0),
		company("c2", "Beta", 1.0),
	}}
	emb := &mockEmbedder{}
	r := newTestRetriever(store, emb)

	result, err := r.Search(context.Background(), "fintech startups in new york", Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, emb.calls, "filter-only search must not embed")
	assert.Equal(t, 1, store.filterCalls)
	assert.Equal(t, 0, store.vectorCalls)
	assert.Len(t, result.Matches, 2)
	assert.Equal(t, analyzer.RouteFilterOnly, result.Intent.Route)
	assert.Contains(t, result.Params.AppliedFilters, "location_filters")
}

func TestSemanticMergeAndOrdering(t *testing.T) {
	store := &mockStore{
		vectorResults: []types.Match{
			company("c1", "DirectHit", 0.9),
			company("c2", "SecondHit", 0.8),
		},
		expandResults: []types.Match{
			{
				ID: "c3", Score: 0.83, Type: types.CompanyNodeType,
				Data:       map[string]any{"id": "c3", "name": "Neighbor"},
				Connection: &types.Connection{FromID: "c1", Distance: 1, Path: []string{"FOUNDED"}},
			},
		},
	}
	emb := &mockEmbedder{}
	r := newTestRetriever(store, emb)

	result, err := r.Search(context.Background(), "developer tools for code review", Options{TopK: 10})
	require.NoError(t, err)

	assert.Equal(t, 1, emb.calls)
	require.Len(t, result.Matches, 3)
	assert.Equal(t, "c1", result.Matches[0].ID)
	assert.Equal(t, "c3", result.Matches[1].ID, "expansion score 0.83 outranks 0.8 seed")
	assert.Equal(t, "c2", result.Matches[2].ID)
}

func TestExpansionDedupeAgainstSeeds(t *testing.T) {
	store := &mockStore{
		vectorResults: []types.Match{company("c1", "Seed", 0.9)},
		expandResults: []types.Match{
			company("c1", "Seed", 0.5), // already a seed, must not duplicate
			{
				ID: "c2", Score: 0.6, Type: types.CompanyNodeType,
				Data:       map[string]any{"id": "c2", "name": "Fresh"},
				Connection: &types.Connection{FromID: "c1", Distance: 1},
			},
		},
	}
	r := newTestRetriever(store, &mockEmbedder{})

	result, err := r.Search(context.Background(), "graph databases", Options{TopK: 10})
	require.NoError(t, err)
	assert.Len(t, result.Matches, 2)
}

func TestEmbeddingFailureDegradesWithHardFilters(t *testing.T) {
	store := &mockStore{filterResults: []types.Match{company("c1", "Acme", 1.0)}}
	emb := &mockEmbedder{err: errors.New("embedding service down")}
	r := newTestRetriever(store, emb)

	// Analytic term forces the semantic route despite the hard filter.
	result, err := r.Search(context.Background(), "best fintech startups in new york", Options{})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, 1, store.filterCalls)
	assert.Len(t, result.Matches, 1)
}

func TestEmbeddingFailureFatalWithoutFilters(t *testing.T) {
	emb := &mockEmbedder{err: errors.New("embedding service down")}
	r := newTestRetriever(&mockStore{}, emb)

	_, err := r.Search(context.Background(), "developer tools", Options{})
	require.Error(t, err)
}

func TestBatchFallbackOnEmptySemanticResults(t *testing.T) {
	store := &mockStore{
		batchResults: []types.Match{company("c1", "BatchCo", 1.0)},
	}
	r := newTestRetriever(store, &mockEmbedder{})

	// "similar" keeps the query on the semantic path despite the batch filter.
	result, err := r.Search(context.Background(), "companies similar to stripe from w24", Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, store.batchCalls)
	assert.True(t, result.Degraded)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "c1", result.Matches[0].ID)
}

// stubPlanner returns a fixed plan and counts invocations.
type stubPlanner struct {
	plan  *analyzer.Plan
	calls int
}

func (p *stubPlanner) Plan(ctx context.Context, query string, seed *analyzer.Intent) (*analyzer.Plan, error) {
	p.calls++
	return p.plan, nil
}

func TestZeroResultsEscalateToPlanner(t *testing.T) {
	store := &mockStore{}
	planner := &stubPlanner{plan: &analyzer.Plan{FilterType: "Repository", MinRepoStars: 50}}
	resolver := testResolver()
	r := New(store, &mockEmbedder{}, planner, analyzer.New(resolver, nil), resolver, nil)

	result, err := r.Search(context.Background(), "developer tools", Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, planner.calls, "empty fast path escalates once")
	assert.Equal(t, 2, store.vectorCalls, "semantic search reruns with the plan")
	require.NotNil(t, store.lastFilters)
	assert.Equal(t, types.RepositoryNodeType, store.lastFilters.NodeType)
	assert.Equal(t, 50, store.lastFilters.MinRepoStars)
	assert.Empty(t, result.Matches)
}

func TestTopStarredShortcut(t *testing.T) {
	store := &mockStore{starredResults: []types.Match{
		{ID: "r1", Score: 1.0, Type: types.RepositoryNodeType,
			Data: map[string]any{"id": "r1", "name": "hot-repo", "stars": int64(9000)}},
	}}
	emb := &mockEmbedder{}
	r := newTestRetriever(store, emb)

	result, err := r.Search(context.Background(), "most starred repos", Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, emb.calls, "star ranking must not embed")
	assert.Equal(t, 1, store.starredCalls)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "r1", result.Matches[0].ID)
}

func TestLocationRevalidationDropsMismatches(t *testing.T) {
	sfCompany := company("c2", "Elsewhere", 0.8)
	sfCompany.Data["location"] = "San Francisco, CA"
	nycCompany := company("c1", "Local", 0.9)
	nycCompany.Data["location"] = "Brooklyn, NY"

	store := &mockStore{vectorResults: []types.Match{nycCompany, sfCompany}}
	r := newTestRetriever(store, &mockEmbedder{})

	// Analytic term keeps the location-filtered query semantic.
	result, err := r.Search(context.Background(), "most promising startups in new york", Options{TopK: 10})
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, "c1", result.Matches[0].ID)
}

func TestTopKTruncation(t *testing.T) {
	store := &mockStore{vectorResults: []types.Match{
		company("c1", "A", 0.9),
		company("c2", "B", 0.8),
		company("c3", "C", 0.7),
	}}
	r := newTestRetriever(store, &mockEmbedder{})

	result, err := r.Search(context.Background(), "developer tools", Options{TopK: 2})
	require.NoError(t, err)
	assert.Len(t, result.Matches, 2)
	assert.Equal(t, 2, result.Params.TopK)
}

func TestCallerOverrides(t *testing.T) {
	store := &mockStore{}
	r := newTestRetriever(store, &mockEmbedder{})

	_, err := r.Search(context.Background(), "developer tools", Options{
		FilterType:   "Repository",
		MinRepoStars: 100,
	})
	require.NoError(t, err)
	require.NotNil(t, store.lastFilters)
	assert.Equal(t, types.RepositoryNodeType, store.lastFilters.NodeType)
	assert.Equal(t, 100, store.lastFilters.MinRepoStars)
}

func TestEmptyQueryRejected(t *testing.T) {
	r := newTestRetriever(&mockStore{}, &mockEmbedder{})
	_, err := r.Search(context.Background(), "   ", Options{})
	require.Error(t, err)
}

func TestExpansionFailureKeepsVectorHits(t *testing.T) {
	store := &mockStore{
		vectorResults: []types.Match{company("c1", "A", 0.9)},
		expandErr:     errors.New("traversal timeout"),
	}
	r := newTestRetriever(store, &mockEmbedder{})

	result, err := r.Search(context.Background(), "developer tools", Options{})
	require.NoError(t, err)
	assert.Len(t, result.Matches, 1)
}
