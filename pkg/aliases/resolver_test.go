package aliases

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverLookup(t *testing.T) {
	r := NewFromMap(map[Domain]map[string][]string{
		DomainLocation: {
			"nyc": {"New York", "new york city", "Brooklyn"},
			"sf":  {"san francisco", "bay area"},
		},
	})

	t.Run("aliases include canonical and are lowercased", func(t *testing.T) {
		aliases := r.AliasesFor(DomainLocation, "NYC")
		assert.Contains(t, aliases, "nyc")
		assert.Contains(t, aliases, "new york")
		assert.Contains(t, aliases, "brooklyn")
	})

	t.Run("unknown canonical returns nil", func(t *testing.T) {
		assert.Nil(t, r.AliasesFor(DomainLocation, "atlantis"))
	})

	t.Run("code for text matches alias substring", func(t *testing.T) {
		code, ok := r.CodeForText(DomainLocation, "fintech startups in Brooklyn")
		require.True(t, ok)
		assert.Equal(t, "nyc", code)
	})

	t.Run("no alias in text", func(t *testing.T) {
		_, ok := r.CodeForText(DomainLocation, "startups in london")
		assert.False(t, ok)
	})

	t.Run("empty domain", func(t *testing.T) {
		assert.Nil(t, r.AliasesFor(DomainIndustry, "fintech"))
	})
}

func TestResolverTieBreakOrder(t *testing.T) {
	// Both canonicals carry an alias present in the text; the first loaded
	// canonical wins. NewFromMap sorts keys, so "aaa" precedes "zzz".
	r := NewFromMap(map[Domain]map[string][]string{
		DomainIndustry: {
			"zzz": {"shared term"},
			"aaa": {"shared term"},
		},
	})
	code, ok := r.CodeForText(DomainIndustry, "query with shared term inside")
	require.True(t, ok)
	assert.Equal(t, "aaa", code)
}

func TestResolverEmpty(t *testing.T) {
	assert.True(t, NewFromMap(nil).Empty())
	assert.False(t, NewFromMap(map[Domain]map[string][]string{
		DomainBatch: {"w24": nil},
	}).Empty())
}

type stubHubSource struct {
	mapping map[Domain]map[string][]string
	err     error
}

func (s *stubHubSource) LoadAliasHubs(ctx context.Context) (map[Domain]map[string][]string, error) {
	return s.mapping, s.err
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("hub source wins", func(t *testing.T) {
		hubs := &stubHubSource{mapping: map[Domain]map[string][]string{
			DomainLocation: {"nyc": {"new york"}},
		}}
		r := Load(ctx, hubs, "", nil)
		assert.Contains(t, r.AliasesFor(DomainLocation, "nyc"), "new york")
	})

	t.Run("hub failure falls back to file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "aliases.json")
		require.NoError(t, os.WriteFile(path, []byte(
			`{"location": {"sf": ["san francisco", "bay area"]}}`), 0644))

		hubs := &stubHubSource{err: errors.New("store down")}
		r := Load(ctx, hubs, path, nil)
		assert.Contains(t, r.AliasesFor(DomainLocation, "sf"), "bay area")
	})

	t.Run("yaml mapping file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "aliases.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"industry:\n  fintech:\n    - payments\n    - financial technology\n"), 0644))

		r := Load(ctx, nil, path, nil)
		assert.Contains(t, r.AliasesFor(DomainIndustry, "fintech"), "payments")
	})

	t.Run("nothing available yields empty resolver", func(t *testing.T) {
		r := Load(ctx, &stubHubSource{err: errors.New("down")}, "/nonexistent/aliases.json", nil)
		require.NotNil(t, r)
		assert.True(t, r.Empty())
	})

	t.Run("empty hub mapping falls through", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "aliases.json")
		require.NoError(t, os.WriteFile(path, []byte(
			`{"batch": {"w24": ["winter 2024"]}}`), 0644))

		r := Load(ctx, &stubHubSource{}, path, nil)
		assert.Contains(t, r.AliasesFor(DomainBatch, "w24"), "winter 2024")
	})
}
