package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturegraph/venturegraph/pkg/aliases"
	"github.com/venturegraph/venturegraph/pkg/types"
)

func testResolver() *aliases.Resolver {
	return aliases.NewFromMap(map[aliases.Domain]map[string][]string{
		aliases.DomainLocation: {
			"nyc": {"new york", "new york city", "brooklyn", "manhattan"},
			"sf":  {"san francisco", "bay area"},
		},
		aliases.DomainIndustry: {
			"fintech":    {"financial technology", "payments"},
			"healthcare": {"health care", "medical", "biotech"},
		},
	})
}

func TestExtractBatchTokens(t *testing.T) {
	t.Run("short code expands to all forms", func(t *testing.T) {
		tokens := extractBatchTokens("companies in w24")
		assert.Contains(t, tokens, "w24")
		assert.Contains(t, tokens, "winter 2024")
		assert.Contains(t, tokens, "2024")
	})

	t.Run("season and full year", func(t *testing.T) {
		tokens := extractBatchTokens("summer 2023 startups")
		assert.Contains(t, tokens, "s23")
		assert.Contains(t, tokens, "summer 2023")
		assert.Contains(t, tokens, "2023")
	})

	t.Run("yc prefix and apostrophe", func(t *testing.T) {
		tokens := extractBatchTokens("yc s'21 batch")
		assert.Contains(t, tokens, "s21")
		assert.Contains(t, tokens, "summer 2021")
	})

	t.Run("two digit year in season form", func(t *testing.T) {
		tokens := extractBatchTokens("the fall 22 cohort")
		assert.Contains(t, tokens, "f22")
		assert.Contains(t, tokens, "fall 2022")
	})

	t.Run("duplicate mentions dedupe", func(t *testing.T) {
		tokens := extractBatchTokens("w24 and winter 2024")
		count := 0
		for _, tok := range tokens {
			if tok == "w24" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("no batch mention", func(t *testing.T) {
		assert.Empty(t, extractBatchTokens("fintech companies in new york"))
	})
}

func TestExtractNumericFilters(t *testing.T) {
	a := New(testResolver(), nil)

	t.Run("more than", func(t *testing.T) {
		intent := a.Analyze("repos with more than 500 stars")
		assert.Equal(t, 500, intent.Numeric["min_star"])
		assert.NotContains(t, intent.CleanQuery, "500")
		assert.NotContains(t, intent.CleanQuery, "more than")
	})

	t.Run("comparison operators", func(t *testing.T) {
		cases := map[string]struct {
			key   string
			value int
		}{
			"repositories with > 100 stars":      {"min_star", 100},
			"repositories with 1000+ stars":      {"min_star", 1000},
			"repositories with at least 50 star": {"min_star", 50},
			"repositories with over 200 stars":   {"min_star", 200},
			"repos with fewer than 10 stars":     {"max_star", 10},
			"repos with under 30 stars":          {"max_star", 30},
			"repos with at most 5 stars":         {"max_star", 5},
		}
		for query, want := range cases {
			intent := a.Analyze(query)
			assert.Equal(t, want.value, intent.Numeric[want.key], "query: %s", query)
		}
	})

	t.Run("star threshold reaches filters", func(t *testing.T) {
		intent := a.Analyze("repositories with more than 250 stars")
		assert.Equal(t, 250, intent.Filters.MinRepoStars)
	})

	t.Run("clean query whitespace normalized", func(t *testing.T) {
		intent := a.Analyze("show repos  with more than 500 stars about ml")
		assert.NotContains(t, intent.CleanQuery, "  ")
	})
}

func TestDetectEntityType(t *testing.T) {
	t.Run("repository beats company", func(t *testing.T) {
		assert.Equal(t, types.RepositoryNodeType, detectEntityType("repos from startups"))
	})

	t.Run("company terms", func(t *testing.T) {
		assert.Equal(t, types.CompanyNodeType, detectEntityType("fintech startups in sf"))
	})

	t.Run("person terms", func(t *testing.T) {
		assert.Equal(t, types.PersonNodeType, detectEntityType("founders of ai labs"))
	})

	t.Run("no entity mention", func(t *testing.T) {
		assert.Equal(t, types.NodeType(""), detectEntityType("machine learning tools"))
	})
}

func TestInferPersonRoles(t *testing.T) {
	assert.Equal(t, []string{"investor"}, inferPersonRoles("investors in biotech"))
	assert.Equal(t, []string{"founder"}, inferPersonRoles("founders in nyc"))
	assert.Equal(t, []string{"investor", "founder"},
		inferPersonRoles("investors who are also founders"))
	assert.Empty(t, inferPersonRoles("companies in sf"))
}

func TestRouting(t *testing.T) {
	a := New(testResolver(), nil)

	t.Run("hard filter routes filter-only", func(t *testing.T) {
		intent := a.Analyze("fintech startups in new york")
		assert.Equal(t, RouteFilterOnly, intent.Route)
		require.NotNil(t, intent.Filters)
		assert.Equal(t, "nyc", intent.Filters.LocationCode)
		assert.NotEmpty(t, intent.Filters.IndustryTokens)
	})

	t.Run("star threshold alone stays semantic", func(t *testing.T) {
		// No industry alias matches here, so stars are the only filter.
		intent := a.Analyze("observability tooling with more than 500 stars")
		assert.Equal(t, RouteSemantic, intent.Route)
		assert.Equal(t, 500, intent.Filters.MinRepoStars)
	})

	t.Run("plain semantic query", func(t *testing.T) {
		intent := a.Analyze("developer tools for code review")
		assert.Equal(t, RouteSemantic, intent.Route)
	})

	t.Run("analytic verb blocks filter-only", func(t *testing.T) {
		intent := a.Analyze("compare fintech startups in new york")
		assert.NotEqual(t, RouteFilterOnly, intent.Route)
	})

	t.Run("complex query routes to planner", func(t *testing.T) {
		intent := a.Analyze("compare founders and startups in new york from w24 that have repos with more than 100 stars")
		assert.GreaterOrEqual(t, intent.Complexity, plannerThreshold)
		assert.Equal(t, RoutePlanner, intent.Route)
	})

	t.Run("single filter never reaches planner", func(t *testing.T) {
		intent := a.Analyze("startups in new york")
		assert.Less(t, intent.Complexity, plannerThreshold)
	})
}

func TestTopStarredShortcut(t *testing.T) {
	a := New(testResolver(), nil)

	t.Run("detected for repositories", func(t *testing.T) {
		intent := a.Analyze("most starred repos")
		assert.True(t, intent.TopStarred)
		assert.Equal(t, RouteSemantic, intent.Route)
	})

	t.Run("top stars phrasing", func(t *testing.T) {
		intent := a.Analyze("top starred repositories in the graph")
		assert.True(t, intent.TopStarred)
	})

	t.Run("not triggered without star ranking language", func(t *testing.T) {
		intent := a.Analyze("top startups in new york")
		assert.False(t, intent.TopStarred)
	})
}

func TestAnalyzeNeverFails(t *testing.T) {
	a := New(nil, nil)
	for _, q := range []string{"", "   ", "???", "a"} {
		intent := a.Analyze(q)
		require.NotNil(t, intent)
		require.NotNil(t, intent.Filters)
		assert.Equal(t, RouteSemantic, intent.Route)
	}
}

func TestPersonRoleImpliesPersonType(t *testing.T) {
	a := New(testResolver(), nil)
	intent := a.Analyze("investors in new york")
	assert.Equal(t, types.PersonNodeType, intent.Filters.NodeType)
	assert.Equal(t, []string{"investor"}, intent.Filters.PersonRoles)
}
