package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNaturalKeyID(t *testing.T) {
	t.Run("external id wins", func(t *testing.T) {
		assert.Equal(t, "ext-1", NaturalKeyID("company", "ext-1", "Acme", "yc"))
	})

	t.Run("deterministic without external id", func(t *testing.T) {
		a := NaturalKeyID("company", "", "Acme", "yc")
		b := NaturalKeyID("company", "", "Acme", "yc")
		assert.Equal(t, a, b)
		assert.NotEmpty(t, a)
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.Equal(t,
			NaturalKeyID("company", "", "ACME", "yc"),
			NaturalKeyID("company", "", "acme", "yc"))
	})

	t.Run("kind and source distinguish", func(t *testing.T) {
		assert.NotEqual(t,
			NaturalKeyID("company", "", "Acme", "yc"),
			NaturalKeyID("person", "", "Acme", "yc"))
		assert.NotEqual(t,
			NaturalKeyID("company", "", "Acme", "yc"),
			NaturalKeyID("company", "", "Acme", "github"))
	})
}

func TestMatchName(t *testing.T) {
	m := &Match{Data: map[string]any{"name": "Acme"}}
	assert.Equal(t, "Acme", m.Name())

	assert.Equal(t, "Unknown", (&Match{}).Name())
	assert.Equal(t, "Unknown", (&Match{Data: map[string]any{"name": ""}}).Name())
}

func TestFiltersHasHardFilter(t *testing.T) {
	assert.False(t, (*Filters)(nil).HasHardFilter())
	assert.False(t, (&Filters{}).HasHardFilter())
	assert.False(t, (&Filters{MinRepoStars: 100}).HasHardFilter(),
		"a star threshold alone is not a hard filter")
	assert.False(t, (&Filters{NodeType: RepositoryNodeType}).HasHardFilter())

	assert.True(t, (&Filters{BatchTokens: []string{"w24"}}).HasHardFilter())
	assert.True(t, (&Filters{LocationTokens: []string{"nyc"}}).HasHardFilter())
	assert.True(t, (&Filters{IndustryTokens: []string{"fintech"}}).HasHardFilter())
	assert.True(t, (&Filters{PersonRoles: []string{"founder"}}).HasHardFilter())
}

func TestFiltersApplied(t *testing.T) {
	f := &Filters{
		NodeType:       CompanyNodeType,
		BatchTokens:    []string{"w24"},
		LocationTokens: []string{"new york"},
		MinRepoStars:   50,
	}
	applied := f.Applied()
	assert.Equal(t, "Company", applied["node_type"])
	assert.Equal(t, []string{"w24"}, applied["batch_filters"])
	assert.Equal(t, 50, applied["min_repo_stars"])
	assert.NotContains(t, applied, "industry_filters")

	assert.Empty(t, (&Filters{}).Applied())
}

func TestFiltersClone(t *testing.T) {
	orig := &Filters{BatchTokens: []string{"w24"}}
	clone := orig.Clone()
	clone.BatchTokens[0] = "s19"
	clone.MinRepoStars = 10

	assert.Equal(t, "w24", orig.BatchTokens[0])
	assert.Zero(t, orig.MinRepoStars)

	assert.NotNil(t, (*Filters)(nil).Clone())
}
