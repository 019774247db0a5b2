package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturegraph/venturegraph/pkg/types"
)

func TestExpansionScore(t *testing.T) {
	t.Run("closer is better", func(t *testing.T) {
		assert.Greater(t, ExpansionScore(0.8, 1), ExpansionScore(0.8, 2))
		assert.Greater(t, ExpansionScore(0.8, 2), ExpansionScore(0.8, 3))
	})

	t.Run("higher seed is better", func(t *testing.T) {
		assert.Greater(t, ExpansionScore(0.9, 1), ExpansionScore(0.5, 1))
	})

	t.Run("one hop from a perfect seed", func(t *testing.T) {
		assert.InDelta(t, 0.85, ExpansionScore(1.0, 1), 1e-9)
	})

	t.Run("never outranks the combined ceiling", func(t *testing.T) {
		for _, seed := range []float64{0.1, 0.5, 0.9, 1.0} {
			for distance := 1; distance <= 5; distance++ {
				assert.Less(t, ExpansionScore(seed, distance), 0.7*seed+0.3)
			}
		}
	})
}

func TestCreateRelationshipAllowlist(t *testing.T) {
	s := &Store{}

	// Rejection happens before any query is issued, so a zero-value store
	// is safe here.
	err := s.CreateRelationship(context.Background(), "a", "b", types.EdgeType("DROP_ALL"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")

	err = s.CreateRelationship(context.Background(), "a", "b", types.EdgeType("founded"), nil)
	require.Error(t, err, "allowlist is case sensitive")
}

func TestUpsertAliasHubLabelValidation(t *testing.T) {
	s := &Store{}
	err := s.UpsertAliasHub(context.Background(), "Company", "acme", nil)
	require.Error(t, err)
}

func TestLabelPattern(t *testing.T) {
	assert.Equal(t, ":Company", labelPattern(types.CompanyNodeType))
	assert.Equal(t, ":Person", labelPattern(types.PersonNodeType))
	assert.Equal(t, ":Repository", labelPattern(types.RepositoryNodeType))
	assert.Equal(t, "", labelPattern(types.NodeType("")))
	assert.Equal(t, "", labelPattern(types.NodeType("Cypher) DETACH DELETE")),
		"unknown labels never reach query text")
}

func TestFilterParams(t *testing.T) {
	t.Run("nil filters pass nothing", func(t *testing.T) {
		params := filterParams(nil)
		assert.Nil(t, params["locationFilters"])
		assert.Nil(t, params["batchFilters"])
		assert.Nil(t, params["industryFilters"])
		assert.Nil(t, params["roleFilters"])
		assert.Nil(t, params["minRepoStars"])
	})

	t.Run("tokens are lowercased", func(t *testing.T) {
		params := filterParams(&types.Filters{
			LocationTokens: []string{"New York", "BROOKLYN"},
			MinRepoStars:   100,
		})
		assert.Equal(t, []string{"new york", "brooklyn"}, params["locationFilters"])
		assert.Equal(t, 100, params["minRepoStars"])
	})

	t.Run("zero stars stays nil", func(t *testing.T) {
		params := filterParams(&types.Filters{MinRepoStars: 0})
		assert.Nil(t, params["minRepoStars"])
	})
}

func TestStarFilterScopedToRepositories(t *testing.T) {
	// A query like "AI startups with more than 500 stars" carries both an
	// industry and a star filter; the stars must not drop Company or
	// Person candidates, which have no stars property.
	assert.Contains(t, filterPredicates,
		"$minRepoStars IS NULL OR NOT n:Repository OR coalesce(n.stars, 0) >= $minRepoStars")
}

func TestExplainNetwork(t *testing.T) {
	t.Run("empty network", func(t *testing.T) {
		assert.Equal(t, "No network found.", explainNetwork(&types.Network{}))
	})

	t.Run("center without edges", func(t *testing.T) {
		n := &types.Network{
			Nodes: []types.Match{
				{ID: "c1", Type: types.CompanyNodeType, Data: map[string]any{"name": "Acme"}},
			},
		}
		assert.Equal(t, "Acme (Company) has 0 connected entities in the network.", explainNetwork(n))
	})

	t.Run("relationship counts sorted by type", func(t *testing.T) {
		n := &types.Network{
			Nodes: []types.Match{
				{ID: "c1", Type: types.CompanyNodeType, Data: map[string]any{"name": "Acme"}},
				{ID: "p1", Type: types.PersonNodeType, Data: map[string]any{"name": "Ada Smith"}},
				{ID: "p2", Type: types.PersonNodeType, Data: map[string]any{"name": "Ben Lee"}},
				{ID: "r1", Type: types.RepositoryNodeType, Data: map[string]any{"name": "acme/api"}},
			},
			Edges: []types.GraphEdge{
				{From: "c1", To: "r1", Label: "OWNS"},
				{From: "p1", To: "c1", Label: "FOUNDED"},
				{From: "p2", To: "c1", Label: "FOUNDED"},
			},
		}
		assert.Equal(t,
			"Acme (Company) has 3 connected entities in the network."+
				" Relationships include: 2 FOUNDED, 1 OWNS.",
			explainNetwork(n))
	})
}

func TestRoleRelationPattern(t *testing.T) {
	assert.Equal(t, "FOUNDED", roleRelationPattern([]string{"founder"}))
	assert.Equal(t, "INVESTS_IN", roleRelationPattern([]string{"investor"}))
	assert.Equal(t, "FOUNDED|INVESTS_IN", roleRelationPattern([]string{"founder", "investor"}))
	assert.Equal(t, "FOUNDED|INVESTS_IN", roleRelationPattern(nil),
		"no role means any affiliation")
	assert.Equal(t, "FOUNDED|INVESTS_IN", roleRelationPattern([]string{"advisor"}),
		"unknown roles never reach query text")
}

func TestEmbeddingParam(t *testing.T) {
	assert.Nil(t, embeddingParam(nil))
	assert.Nil(t, embeddingParam([]float32{}))
	assert.Equal(t, []float32{0.1}, embeddingParam([]float32{0.1}))
}
