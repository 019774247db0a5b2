package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturegraph/venturegraph/pkg/types"
)

// mockWriter records upserts and edges.
type mockWriter struct {
	mu        sync.Mutex
	companies []string
	people    []string
	repos     []string
	edges     []string
	rebuilt   bool
	hubs      bool
}

func (m *mockWriter) UpsertCompany(ctx context.Context, c *types.Company, emb []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies = append(m.companies, c.ID)
	return nil
}

func (m *mockWriter) UpsertPerson(ctx context.Context, p *types.Person, emb []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.people = append(m.people, p.ID)
	return nil
}

func (m *mockWriter) UpsertRepository(ctx context.Context, r *types.Repository, emb []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos = append(m.repos, r.ID)
	return nil
}

func (m *mockWriter) CreateRelationship(ctx context.Context, fromID, toID string, edge types.EdgeType, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, string(edge))
	return nil
}

func (m *mockWriter) EnsureBatchIndustryHubs(ctx context.Context) error {
	m.hubs = true
	return nil
}

func (m *mockWriter) EnsureIndexes(ctx context.Context, dimensions int) error { return nil }

func (m *mockWriter) RebuildSimilarTo(ctx context.Context) error {
	m.rebuilt = true
	return nil
}

// mockEmbedder counts per-text embedding calls.
type mockEmbedder struct {
	mu    sync.Mutex
	calls map[string]int
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{calls: make(map[string]int)}
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, _ := m.EmbedSingle(ctx, text)
		out[i] = vec
	}
	return out, nil
}

func (m *mockEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[text]++
	return []float32{0.1, 0.2}, nil
}

func (m *mockEmbedder) Dimensions() int { return 2 }

func (m *mockEmbedder) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func writeJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func testData(t *testing.T, dir string) (string, string) {
	companies := []types.Company{
		{
			Name: "Acme", Source: "yc", Batch: "W24", Location: "New York, NY",
			Industries: []string{"Fintech"}, Domain: "acme.dev",
			Founders: []types.Person{
				{Name: "Ada Smith", Role: "founder", Source: "yc"},
				{Name: "Ben Lee", Role: "founder", Source: "yc"},
			},
		},
		{
			Name: "Beta", Source: "yc", Batch: "S23",
			// Ada founded both companies; she must embed only once.
			Founders: []types.Person{{Name: "Ada Smith", Role: "founder", Source: "yc"}},
		},
	}
	repos := []types.Repository{
		{Name: "acme/api", Source: "github", Stars: 1200, Domain: "acme.dev"},
		{Name: "beta-tools", Source: "github", Stars: 40, Owner: "Beta"},
		{Name: "unrelated", Source: "github", Stars: 5, Owner: "someone-else"},
	}
	return writeJSON(t, dir, "companies.json", companies),
		writeJSON(t, dir, "repos.json", repos)
}

func TestPipelineRun(t *testing.T) {
	dir := t.TempDir()
	companiesFile, reposFile := testData(t, dir)

	writer := &mockWriter{}
	emb := newMockEmbedder()
	p := New(writer, emb, nil, nil)

	report, err := p.Run(context.Background(), Options{
		CompaniesFile:    companiesFile,
		RepositoriesFile: reposFile,
		Concurrency:      2,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Companies)
	assert.Equal(t, 3, report.People, "Ada is upserted once per founding")
	assert.Equal(t, 3, report.Repositories)

	assert.Len(t, writer.companies, 2)
	assert.Len(t, writer.repos, 3)
	assert.True(t, writer.hubs)
	assert.True(t, writer.rebuilt)

	founded := 0
	owns := 0
	likely := 0
	for _, edge := range writer.edges {
		switch edge {
		case string(types.EdgeFounded):
			founded++
		case string(types.EdgeOwns):
			owns++
		case string(types.EdgeLikelyOwns):
			likely++
		}
	}
	assert.Equal(t, 3, founded)
	assert.Equal(t, 1, owns, "acme/api shares acme.dev")
	assert.Equal(t, 1, likely, "beta-tools owner matches Beta by name")

	// 2 companies + 3 repos + 2 distinct people: Ada embeds once even
	// though she appears twice.
	assert.Equal(t, 7, emb.totalCalls())
}

func TestPipelineConcurrentCheckpointing(t *testing.T) {
	dir := t.TempDir()

	// Enough companies that many workers mark progress while the
	// checkpoint is being serialized and saved.
	companies := make([]types.Company, 200)
	for i := range companies {
		companies[i] = types.Company{
			Name:   fmt.Sprintf("Company %03d", i),
			Source: "yc",
		}
	}
	companiesFile := writeJSON(t, dir, "companies.json", companies)

	checkpoints, err := NewCheckpointManager(t.TempDir())
	require.NoError(t, err)

	writer := &mockWriter{}
	p := New(writer, newMockEmbedder(), checkpoints, nil)

	report, err := p.Run(context.Background(), Options{
		CompaniesFile: companiesFile,
		Concurrency:   16,
		RunID:         "parallel-run",
	})
	require.NoError(t, err)

	assert.Equal(t, 200, report.Companies)
	assert.Len(t, writer.companies, 200)

	loaded, err := checkpoints.Load(context.Background(), "parallel-run")
	require.NoError(t, err)
	assert.Nil(t, loaded, "completed runs clean up their checkpoint")
}

func TestPipelineResumeSkipsProcessed(t *testing.T) {
	dir := t.TempDir()
	companiesFile, reposFile := testData(t, dir)

	checkpoints, err := NewCheckpointManager(t.TempDir())
	require.NoError(t, err)

	// Pre-seed a checkpoint claiming the first company is already done.
	acmeID := types.NaturalKeyID("company", "", "Acme", "yc")
	cp := &Checkpoint{RunID: "resume-run", Phase: PhaseCompanies}
	cp.MarkDone(acmeID)
	require.NoError(t, checkpoints.Save(context.Background(), cp))

	writer := &mockWriter{}
	p := New(writer, newMockEmbedder(), checkpoints, nil)

	report, err := p.Run(context.Background(), Options{
		CompaniesFile:    companiesFile,
		RepositoriesFile: reposFile,
		RunID:            "resume-run",
		SkipSimilarity:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Companies)
	assert.GreaterOrEqual(t, report.Skipped, 1)
	assert.NotContains(t, writer.companies, acmeID)
	assert.False(t, writer.rebuilt)

	// Completed runs clean up their checkpoint.
	loaded, err := checkpoints.Load(context.Background(), "resume-run")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestEmbeddingTexts(t *testing.T) {
	t.Run("company", func(t *testing.T) {
		text := CompanyEmbeddingText(&types.Company{
			Name:        "Acme",
			Description: "Payments infrastructure",
			Industries:  []string{"Fintech", "B2B"},
			Location:    "New York, NY",
			Batch:       "W24",
		})
		assert.Contains(t, text, "Acme")
		assert.Contains(t, text, "Payments infrastructure")
		assert.Contains(t, text, "Industries: Fintech, B2B")
		assert.Contains(t, text, "Location: New York, NY")
		assert.Contains(t, text, "Batch: W24")
	})

	t.Run("person", func(t *testing.T) {
		text := PersonEmbeddingText(&types.Person{
			Name: "Ada Smith", Role: "founder", Company: "Acme",
		})
		assert.Contains(t, text, "founder at Acme")
	})

	t.Run("repository", func(t *testing.T) {
		text := RepositoryEmbeddingText(&types.Repository{
			Name: "acme/api", Description: "REST API", Language: "Go",
			Topics: []string{"api", "payments"},
		})
		assert.Contains(t, text, "Language: Go")
		assert.Contains(t, text, "Topics: api, payments")
	})
}

func TestNormalizers(t *testing.T) {
	t.Run("domain", func(t *testing.T) {
		assert.Equal(t, "acme.dev", normalizeDomain("https://www.acme.dev/about"))
		assert.Equal(t, "acme.dev", normalizeDomain("ACME.DEV"))
		assert.Equal(t, "acme.dev", normalizeDomain("www.acme.dev"))
		assert.Equal(t, "", normalizeDomain("  "))
	})

	t.Run("name", func(t *testing.T) {
		assert.Equal(t, "acmecorp", normalizeName("Acme Corp"))
		assert.Equal(t, "acmecorp", normalizeName("acme-corp"))
		assert.Equal(t, "acme42", normalizeName("Acme 42!"))
	})
}
