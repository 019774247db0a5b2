// Package pipeline ingests raw company and repository data into the graph:
// nodes with embeddings, ownership and founding edges, structural hubs and
// the similarity graph.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/venturegraph/venturegraph/pkg/embedder"
	"github.com/venturegraph/venturegraph/pkg/types"
)

// GraphWriter is the slice of the store the pipeline needs.
type GraphWriter interface {
	UpsertCompany(ctx context.Context, c *types.Company, embedding []float32) error
	UpsertPerson(ctx context.Context, p *types.Person, embedding []float32) error
	UpsertRepository(ctx context.Context, r *types.Repository, embedding []float32) error
	CreateRelationship(ctx context.Context, fromID, toID string, edge types.EdgeType, props map[string]any) error
	EnsureBatchIndustryHubs(ctx context.Context) error
	EnsureIndexes(ctx context.Context, dimensions int) error
	RebuildSimilarTo(ctx context.Context) error
}

// Options configures one ingestion run.
type Options struct {
	CompaniesFile    string
	RepositoriesFile string

	// Concurrency bounds parallel embed+upsert workers.
	Concurrency int

	// RunID identifies the run for checkpointing. Empty disables resume.
	RunID string

	// SkipSimilarity leaves the SIMILAR_TO graph untouched.
	SkipSimilarity bool
}

// Report summarizes what a run wrote.
type Report struct {
	Companies    int           `json:"companies"`
	People       int           `json:"people"`
	Repositories int           `json:"repositories"`
	Edges        int           `json:"edges"`
	Skipped      int           `json:"skipped"`
	Duration     time.Duration `json:"duration"`
}

// Pipeline runs ingestion.
type Pipeline struct {
	store       GraphWriter
	embedder    embedder.Client
	checkpoints *CheckpointManager
	logger      *slog.Logger

	mu     sync.Mutex
	report Report
}

// New creates a pipeline. checkpoints may be nil; runs are then not
// resumable.
func New(store GraphWriter, emb embedder.Client, checkpoints *CheckpointManager, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:       store,
		embedder:    emb,
		checkpoints: checkpoints,
		logger:      logger,
	}
}

// Run executes the full ingestion: companies and founders, repositories,
// ownership edges, hubs and the similarity graph. It resumes from a
// checkpoint when one exists for the run ID.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	cp, err := p.loadOrCreateCheckpoint(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := p.store.EnsureIndexes(ctx, p.embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	companies, err := LoadCompanies(opts.CompaniesFile)
	if err != nil {
		return nil, err
	}
	repos, err := LoadRepositories(opts.RepositoriesFile)
	if err != nil {
		return nil, err
	}

	if err := p.ingestCompanies(ctx, companies, opts, cp); err != nil {
		p.recordFailure(ctx, cp, err)
		return nil, err
	}
	if err := p.ingestRepositories(ctx, repos, opts, cp); err != nil {
		p.recordFailure(ctx, cp, err)
		return nil, err
	}
	if err := p.linkOwnership(ctx, companies, repos, cp); err != nil {
		p.recordFailure(ctx, cp, err)
		return nil, err
	}

	p.advance(ctx, cp, PhaseHubs)
	if err := p.store.EnsureBatchIndustryHubs(ctx); err != nil {
		p.recordFailure(ctx, cp, err)
		return nil, fmt.Errorf("ensure hubs: %w", err)
	}

	if !opts.SkipSimilarity {
		p.advance(ctx, cp, PhaseSimilarity)
		if err := p.store.RebuildSimilarTo(ctx); err != nil {
			p.recordFailure(ctx, cp, err)
			return nil, fmt.Errorf("rebuild similarity: %w", err)
		}
	}

	p.advance(ctx, cp, PhaseCompleted)
	if cp != nil && p.checkpoints != nil {
		if err := p.checkpoints.Delete(ctx, cp.RunID); err != nil {
			p.logger.Warn("failed to remove completed checkpoint", "error", err)
		}
	}

	p.mu.Lock()
	report := p.report
	p.mu.Unlock()
	report.Duration = time.Since(start)

	p.logger.Info("ingestion run complete",
		"companies", report.Companies,
		"people", report.People,
		"repositories", report.Repositories,
		"edges", report.Edges,
		"skipped", report.Skipped,
		"duration", report.Duration)
	return &report, nil
}

func (p *Pipeline) loadOrCreateCheckpoint(ctx context.Context, opts Options) (*Checkpoint, error) {
	if p.checkpoints == nil || opts.RunID == "" {
		return nil, nil
	}
	cp, err := p.checkpoints.Load(ctx, opts.RunID)
	if err != nil {
		return nil, err
	}
	if cp != nil {
		p.logger.Info("resuming ingestion run",
			"run_id", cp.RunID, "phase", cp.Phase, "attempts", cp.AttemptCount)
		return cp, nil
	}
	cp = &Checkpoint{
		RunID:            opts.RunID,
		Phase:            PhaseInitial,
		CreatedAt:        time.Now(),
		CompaniesFile:    opts.CompaniesFile,
		RepositoriesFile: opts.RepositoriesFile,
	}
	return cp, p.checkpoints.Save(ctx, cp)
}

func (p *Pipeline) advance(ctx context.Context, cp *Checkpoint, phase Phase) {
	if cp == nil || p.checkpoints == nil {
		return
	}
	cp.Phase = phase
	if err := p.checkpoints.Save(ctx, cp); err != nil {
		p.logger.Warn("failed to save checkpoint", "phase", phase, "error", err)
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, cp *Checkpoint, err error) {
	if cp == nil || p.checkpoints == nil {
		return
	}
	if rerr := p.checkpoints.RecordError(ctx, cp, err); rerr != nil {
		p.logger.Warn("failed to record checkpoint error", "error", rerr)
	}
}

// markDone persists one processed id. Saving on every item keeps resume
// granular; the checkpoint file stays small enough for that. The save
// serializes a snapshot taken under the lock: other workers keep writing
// ProcessedIDs while the JSON encoder runs, so handing Save the live
// checkpoint would race.
func (p *Pipeline) markDone(ctx context.Context, cp *Checkpoint, id string) {
	if cp == nil || p.checkpoints == nil {
		return
	}
	p.mu.Lock()
	cp.MarkDone(id)
	snapshot := cp.Clone()
	p.mu.Unlock()
	if err := p.checkpoints.Save(ctx, snapshot); err != nil {
		p.logger.Warn("failed to save checkpoint", "error", err)
	}
}

func (p *Pipeline) isDone(cp *Checkpoint, id string) bool {
	if cp == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return cp.Done(id)
}

// ingestCompanies embeds and upserts every company, then its founders with
// FOUNDED edges. Each founder is embedded at most once per run even when
// they appear on several companies.
func (p *Pipeline) ingestCompanies(ctx context.Context, companies []types.Company, opts Options, cp *Checkpoint) error {
	p.advance(ctx, cp, PhaseCompanies)

	var embedOnce sync.Map

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i := range companies {
		company := &companies[i]
		g.Go(func() error {
			company.ID = types.NaturalKeyID("company", company.ID, company.Name, company.Source)
			if p.isDone(cp, company.ID) {
				p.count(func(r *Report) { r.Skipped++ })
				return nil
			}

			emb, err := p.embedder.EmbedSingle(gctx, CompanyEmbeddingText(company))
			if err != nil {
				return fmt.Errorf("embed company %s: %w", company.Name, err)
			}
			if err := p.store.UpsertCompany(gctx, company, emb); err != nil {
				return err
			}
			p.count(func(r *Report) { r.Companies++ })

			for j := range company.Founders {
				founder := &company.Founders[j]
				founder.ID = types.NaturalKeyID("person", founder.ID, founder.Name, founder.Source)
				if founder.Company == "" {
					founder.Company = company.Name
				}

				var femb []float32
				if _, already := embedOnce.LoadOrStore(founder.ID, true); !already {
					femb, err = p.embedder.EmbedSingle(gctx, PersonEmbeddingText(founder))
					if err != nil {
						return fmt.Errorf("embed person %s: %w", founder.Name, err)
					}
				}
				if err := p.store.UpsertPerson(gctx, founder, femb); err != nil {
					return err
				}
				if err := p.store.CreateRelationship(gctx, founder.ID, company.ID, types.EdgeFounded, nil); err != nil {
					return err
				}
				p.count(func(r *Report) { r.People++; r.Edges++ })
			}

			p.markDone(gctx, cp, company.ID)
			return nil
		})
	}
	return g.Wait()
}

// ingestRepositories embeds and upserts every repository.
func (p *Pipeline) ingestRepositories(ctx context.Context, repos []types.Repository, opts Options, cp *Checkpoint) error {
	p.advance(ctx, cp, PhaseRepositories)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i := range repos {
		repo := &repos[i]
		g.Go(func() error {
			repo.ID = types.NaturalKeyID("repository", repo.ID, repo.Name, repo.Source)
			if p.isDone(cp, repo.ID) {
				p.count(func(r *Report) { r.Skipped++ })
				return nil
			}

			emb, err := p.embedder.EmbedSingle(gctx, RepositoryEmbeddingText(repo))
			if err != nil {
				return fmt.Errorf("embed repository %s: %w", repo.Name, err)
			}
			if err := p.store.UpsertRepository(gctx, repo, emb); err != nil {
				return err
			}
			p.count(func(r *Report) { r.Repositories++ })
			p.markDone(gctx, cp, repo.ID)
			return nil
		})
	}
	return g.Wait()
}

// linkOwnership connects repositories to companies. A shared domain is
// strong evidence and yields OWNS; an owner login matching the normalized
// company name is weaker and yields LIKELY_OWNS.
func (p *Pipeline) linkOwnership(ctx context.Context, companies []types.Company, repos []types.Repository, cp *Checkpoint) error {
	p.advance(ctx, cp, PhaseEdges)

	byDomain := make(map[string]*types.Company)
	byNormName := make(map[string]*types.Company)
	for i := range companies {
		c := &companies[i]
		if d := normalizeDomain(c.Domain); d != "" {
			byDomain[d] = c
		} else if d := normalizeDomain(c.Website); d != "" {
			byDomain[d] = c
		}
		byNormName[normalizeName(c.Name)] = c
	}

	for i := range repos {
		repo := &repos[i]

		if c, ok := byDomain[normalizeDomain(repo.Domain)]; ok && repo.Domain != "" {
			err := p.store.CreateRelationship(ctx, c.ID, repo.ID, types.EdgeOwns,
				map[string]any{"confidence": 0.9, "evidence": "domain"})
			if err != nil {
				return err
			}
			p.count(func(r *Report) { r.Edges++ })
			continue
		}

		if repo.Owner == "" {
			continue
		}
		if c, ok := byNormName[normalizeName(repo.Owner)]; ok {
			err := p.store.CreateRelationship(ctx, c.ID, repo.ID, types.EdgeLikelyOwns,
				map[string]any{"confidence": 0.6, "evidence": "owner_name"})
			if err != nil {
				return err
			}
			p.count(func(r *Report) { r.Edges++ })
		}
	}
	return nil
}

func (p *Pipeline) count(fn func(*Report)) {
	p.mu.Lock()
	fn(&p.report)
	p.mu.Unlock()
}

// LoadCompanies reads a JSON array of companies.
func LoadCompanies(path string) ([]types.Company, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read companies file: %w", err)
	}
	var companies []types.Company
	if err := json.Unmarshal(data, &companies); err != nil {
		return nil, fmt.Errorf("parse companies file: %w", err)
	}
	return companies, nil
}

// LoadRepositories reads a JSON array of repositories.
func LoadRepositories(path string) ([]types.Repository, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read repositories file: %w", err)
	}
	var repos []types.Repository
	if err := json.Unmarshal(data, &repos); err != nil {
		return nil, fmt.Errorf("parse repositories file: %w", err)
	}
	return repos, nil
}

// CompanyEmbeddingText builds the text a company node is embedded from.
func CompanyEmbeddingText(c *types.Company) string {
	parts := []string{c.Name}
	if c.Description != "" {
		parts = append(parts, c.Description)
	}
	if len(c.Industries) > 0 {
		parts = append(parts, "Industries: "+strings.Join(c.Industries, ", "))
	}
	if c.Location != "" {
		parts = append(parts, "Location: "+c.Location)
	}
	if c.Batch != "" {
		parts = append(parts, "Batch: "+c.Batch)
	}
	return strings.Join(parts, ". ")
}

// PersonEmbeddingText builds the text a person node is embedded from.
func PersonEmbeddingText(p *types.Person) string {
	parts := []string{p.Name}
	role := p.Role
	if role == "" && len(p.Roles) > 0 {
		role = p.Roles[0]
	}
	if role != "" && p.Company != "" {
		parts = append(parts, fmt.Sprintf("%s at %s", role, p.Company))
	} else if p.Company != "" {
		parts = append(parts, p.Company)
	}
	if p.Location != "" {
		parts = append(parts, p.Location)
	}
	return strings.Join(parts, ". ")
}

// RepositoryEmbeddingText builds the text a repository node is embedded from.
func RepositoryEmbeddingText(r *types.Repository) string {
	parts := []string{r.Name}
	if r.Description != "" {
		parts = append(parts, r.Description)
	}
	if r.Language != "" {
		parts = append(parts, "Language: "+r.Language)
	}
	if len(r.Topics) > 0 {
		parts = append(parts, "Topics: "+strings.Join(r.Topics, ", "))
	}
	return strings.Join(parts, ". ")
}

// normalizeDomain reduces a URL or bare domain to its host without a www
// prefix, lowercased.
func normalizeDomain(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			raw = u.Host
		}
	}
	raw = strings.TrimPrefix(raw, "www.")
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

// normalizeName strips spaces, punctuation and case so "Acme Corp" matches
// an "acmecorp" GitHub login.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
