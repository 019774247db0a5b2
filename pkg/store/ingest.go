package store

import (
	"context"
	"fmt"

	"github.com/venturegraph/venturegraph/pkg/types"
)

// Upserts are non-destructive: MERGE on id, and existing non-empty
// properties win over incoming values. A record arriving from a second
// source enriches the node instead of overwriting it, and the sources
// list accumulates.

// UpsertCompany creates or enriches a company node. The embedding is set
// only when the node has none, so re-ingestion never re-embeds.
func (s *Store) UpsertCompany(ctx context.Context, c *types.Company, embedding []float32) error {
	if c.ID == "" {
		return fmt.Errorf("company %q has no id", c.Name)
	}

	query := `
		MERGE (c:Company {id: $id})
		ON CREATE SET c.created_at = datetime()
		SET c.updated_at = datetime(),
		    c.name = CASE WHEN coalesce(c.name, '') = '' THEN $name ELSE c.name END,
		    c.description = CASE WHEN coalesce(c.description, '') = '' THEN $description ELSE c.description END,
		    c.location = CASE WHEN coalesce(c.location, '') = '' THEN $location ELSE c.location END,
		    c.location_code = CASE WHEN coalesce(c.location_code, '') = '' THEN $locationCode ELSE c.location_code END,
		    c.batch = CASE WHEN coalesce(c.batch, '') = '' THEN $batch ELSE c.batch END,
		    c.batch_code = CASE WHEN coalesce(c.batch_code, '') = '' THEN $batchCode ELSE c.batch_code END,
		    c.website = CASE WHEN coalesce(c.website, '') = '' THEN $website ELSE c.website END,
		    c.domain = CASE WHEN coalesce(c.domain, '') = '' THEN $domain ELSE c.domain END,
		    c.industries = CASE WHEN size(coalesce(c.industries, [])) = 0 THEN $industries ELSE c.industries END,
		    c.sources = CASE
		      WHEN $source = '' OR $source IN coalesce(c.sources, []) THEN coalesce(c.sources, [])
		      ELSE coalesce(c.sources, []) + $source
		    END,
		    c.embedding = CASE WHEN c.embedding IS NULL THEN $embedding ELSE c.embedding END`

	params := map[string]any{
		"id":           c.ID,
		"name":         c.Name,
		"description":  c.Description,
		"location":     c.Location,
		"locationCode": c.LocationCode,
		"batch":        c.Batch,
		"batchCode":    c.BatchCode,
		"website":      c.Website,
		"domain":       c.Domain,
		"industries":   c.Industries,
		"source":       c.Source,
		"embedding":    embeddingParam(embedding),
	}
	if err := s.write(ctx, query, params); err != nil {
		return fmt.Errorf("upsert company %s: %w", c.ID, err)
	}
	return nil
}

// UpsertPerson creates or enriches a person node. Roles accumulate as a
// set; the legacy single role property is kept for older data but never
// overwritten once present.
func (s *Store) UpsertPerson(ctx context.Context, p *types.Person, embedding []float32) error {
	if p.ID == "" {
		return fmt.Errorf("person %q has no id", p.Name)
	}

	roles := p.Roles
	if len(roles) == 0 && p.Role != "" {
		roles = []string{p.Role}
	}

	query := `
		MERGE (p:Person {id: $id})
		ON CREATE SET p.created_at = datetime()
		SET p.updated_at = datetime(),
		    p.name = CASE WHEN coalesce(p.name, '') = '' THEN $name ELSE p.name END,
		    p.role = CASE WHEN coalesce(p.role, '') = '' THEN $role ELSE p.role END,
		    p.company = CASE WHEN coalesce(p.company, '') = '' THEN $company ELSE p.company END,
		    p.location = CASE WHEN coalesce(p.location, '') = '' THEN $location ELSE p.location END,
		    p.batch = CASE WHEN coalesce(p.batch, '') = '' THEN $batch ELSE p.batch END,
		    p.roles = coalesce(p.roles, []) + [r IN $roles WHERE NOT r IN coalesce(p.roles, [])],
		    p.sources = CASE
		      WHEN $source = '' OR $source IN coalesce(p.sources, []) THEN coalesce(p.sources, [])
		      ELSE coalesce(p.sources, []) + $source
		    END,
		    p.embedding = CASE WHEN p.embedding IS NULL THEN $embedding ELSE p.embedding END`

	params := map[string]any{
		"id":        p.ID,
		"name":      p.Name,
		"role":      p.Role,
		"company":   p.Company,
		"location":  p.Location,
		"batch":     p.Batch,
		"roles":     roles,
		"source":    p.Source,
		"embedding": embeddingParam(embedding),
	}
	if err := s.write(ctx, query, params); err != nil {
		return fmt.Errorf("upsert person %s: %w", p.ID, err)
	}
	return nil
}

// UpsertRepository creates or enriches a repository node. Star counts are
// the one mutable metric: a positive incoming count replaces the stored
// one, since the newer crawl is fresher.
func (s *Store) UpsertRepository(ctx context.Context, r *types.Repository, embedding []float32) error {
	if r.ID == "" {
		return fmt.Errorf("repository %q has no id", r.Name)
	}

	query := `
		MERGE (r:Repository {id: $id})
		ON CREATE SET r.created_at = datetime()
		SET r.updated_at = datetime(),
		    r.name = CASE WHEN coalesce(r.name, '') = '' THEN $name ELSE r.name END,
		    r.description = CASE WHEN coalesce(r.description, '') = '' THEN $description ELSE r.description END,
		    r.language = CASE WHEN coalesce(r.language, '') = '' THEN $language ELSE r.language END,
		    r.url = CASE WHEN coalesce(r.url, '') = '' THEN $url ELSE r.url END,
		    r.homepage = CASE WHEN coalesce(r.homepage, '') = '' THEN $homepage ELSE r.homepage END,
		    r.domain = CASE WHEN coalesce(r.domain, '') = '' THEN $domain ELSE r.domain END,
		    r.owner = CASE WHEN coalesce(r.owner, '') = '' THEN $owner ELSE r.owner END,
		    r.topics = CASE WHEN size(coalesce(r.topics, [])) = 0 THEN $topics ELSE r.topics END,
		    r.stars = CASE WHEN $stars > 0 THEN $stars ELSE coalesce(r.stars, 0) END,
		    r.sources = CASE
		      WHEN $source = '' OR $source IN coalesce(r.sources, []) THEN coalesce(r.sources, [])
		      ELSE coalesce(r.sources, []) + $source
		    END,
		    r.embedding = CASE WHEN r.embedding IS NULL THEN $embedding ELSE r.embedding END`

	params := map[string]any{
		"id":          r.ID,
		"name":        r.Name,
		"description": r.Description,
		"language":    r.Language,
		"url":         r.URL,
		"homepage":    r.Homepage,
		"domain":      r.Domain,
		"owner":       r.Owner,
		"topics":      r.Topics,
		"stars":       r.Stars,
		"source":      r.Source,
		"embedding":   embeddingParam(embedding),
	}
	if err := s.write(ctx, query, params); err != nil {
		return fmt.Errorf("upsert repository %s: %w", r.ID, err)
	}
	return nil
}

// embeddingParam turns an absent vector into a null parameter so the
// CASE expressions above leave any stored embedding alone.
func embeddingParam(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return embedding
}

// allowedEdges restricts relationship types to the known set since the
// type must be spliced into the query string.
var allowedEdges = map[types.EdgeType]struct{}{
	types.EdgeFounded:    {},
	types.EdgeInvestsIn:  {},
	types.EdgeOwns:       {},
	types.EdgeLikelyOwns: {},
	types.EdgeInBatch:    {},
	types.EdgeInIndustry: {},
	types.EdgeSimilarTo:  {},
}

// CreateRelationship merges an edge between two existing nodes. props are
// applied additively on every call.
func (s *Store) CreateRelationship(ctx context.Context, fromID, toID string, edge types.EdgeType, props map[string]any) error {
	if _, ok := allowedEdges[edge]; !ok {
		return fmt.Errorf("relationship type %q is not allowed", edge)
	}
	if props == nil {
		props = map[string]any{}
	}

	query := fmt.Sprintf(`
		MATCH (a {id: $fromID})
		MATCH (b {id: $toID})
		MERGE (a)-[r:%s]->(b)
		SET r += $props`, edge)

	if err := s.write(ctx, query, map[string]any{
		"fromID": fromID,
		"toID":   toID,
		"props":  props,
	}); err != nil {
		return fmt.Errorf("create %s %s->%s: %w", edge, fromID, toID, err)
	}
	return nil
}

// UpsertAliasHub creates or updates a hub node carrying the alias list for
// one canonical value. label must be Location, Industry or Batch.
func (s *Store) UpsertAliasHub(ctx context.Context, label, name string, hubAliases []string) error {
	switch label {
	case "Location", "Industry", "Batch":
	default:
		return fmt.Errorf("hub label %q is not allowed", label)
	}

	query := fmt.Sprintf(`
		MERGE (h:%s {name: $name})
		SET h.aliases = $aliases`, label)

	if err := s.write(ctx, query, map[string]any{
		"name":    name,
		"aliases": hubAliases,
	}); err != nil {
		return fmt.Errorf("upsert %s hub %s: %w", label, name, err)
	}
	return nil
}

// EnsureBatchIndustryHubs connects every company to hub nodes for its
// batch and industries, so structural queries can pivot through them.
func (s *Store) EnsureBatchIndustryHubs(ctx context.Context) error {
	batchQuery := `
		MATCH (c:Company)
		WHERE coalesce(c.batch, '') <> ''
		MERGE (b:Batch {name: c.batch})
		MERGE (c)-[:IN_BATCH]->(b)`
	if err := s.write(ctx, batchQuery, nil); err != nil {
		return fmt.Errorf("ensure batch hubs: %w", err)
	}

	industryQuery := `
		MATCH (c:Company)
		UNWIND coalesce(c.industries, []) AS industry
		WITH c, industry
		WHERE industry <> ''
		MERGE (i:Industry {name: industry})
		MERGE (c)-[:IN_INDUSTRY]->(i)`
	if err := s.write(ctx, industryQuery, nil); err != nil {
		return fmt.Errorf("ensure industry hubs: %w", err)
	}
	return nil
}

// Similarity-graph rebuild parameters.
const (
	similarityTopK      = 3
	similarityThreshold = 0.85
)

// RebuildSimilarTo recomputes the SIMILAR_TO graph from stored embeddings:
// all existing edges are dropped, then each node is linked to its top
// same-label neighbors above the similarity threshold.
func (s *Store) RebuildSimilarTo(ctx context.Context) error {
	if err := s.write(ctx, `MATCH ()-[r:SIMILAR_TO]->() DELETE r`, nil); err != nil {
		return fmt.Errorf("clear similarity edges: %w", err)
	}

	for _, label := range []string{"Company", "Person", "Repository"} {
		query := fmt.Sprintf(`
			MATCH (a:%[1]s)
			WHERE a.embedding IS NOT NULL
			MATCH (b:%[1]s)
			WHERE b.embedding IS NOT NULL AND a.id < b.id
			WITH a, b, vector.similarity.cosine(a.embedding, b.embedding) AS score
			WHERE score >= $threshold
			WITH a, b, score
			ORDER BY a.id, score DESC
			WITH a, collect({node: b, score: score})[0..$topK] AS neighbors
			UNWIND neighbors AS neighbor
			MERGE (a)-[r:SIMILAR_TO]->(neighbor.node)
			SET r.score = neighbor.score`, label)

		if err := s.write(ctx, query, map[string]any{
			"threshold": similarityThreshold,
			"topK":      similarityTopK,
		}); err != nil {
			return fmt.Errorf("rebuild similarity for %s: %w", label, err)
		}
	}

	s.logger.Info("similarity graph rebuilt",
		"top_k", similarityTopK, "threshold", similarityThreshold)
	return nil
}

// EnsureIndexes creates the uniqueness constraints and vector indexes the
// retrieval queries rely on. Safe to call repeatedly.
func (s *Store) EnsureIndexes(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		dimensions = 1536
	}

	constraints := []string{
		`CREATE CONSTRAINT company_id IF NOT EXISTS FOR (c:Company) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT person_id IF NOT EXISTS FOR (p:Person) REQUIRE p.id IS UNIQUE`,
		`CREATE CONSTRAINT repository_id IF NOT EXISTS FOR (r:Repository) REQUIRE r.id IS UNIQUE`,
		`CREATE CONSTRAINT batch_name IF NOT EXISTS FOR (b:Batch) REQUIRE b.name IS UNIQUE`,
		`CREATE CONSTRAINT industry_name IF NOT EXISTS FOR (i:Industry) REQUIRE i.name IS UNIQUE`,
	}
	for _, stmt := range constraints {
		if err := s.write(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure constraint: %w", err)
		}
	}

	vectorIndexes := map[string]string{
		"company_embedding":    "Company",
		"person_embedding":     "Person",
		"repository_embedding": "Repository",
	}
	for name, label := range vectorIndexes {
		stmt := fmt.Sprintf(`
			CREATE VECTOR INDEX %s IF NOT EXISTS
			FOR (n:%s) ON (n.embedding)
			OPTIONS {indexConfig: {
			  `+"`vector.dimensions`"+`: $dimensions,
			  `+"`vector.similarity_function`"+`: 'cosine'
			}}`, name, label)
		if err := s.write(ctx, stmt, map[string]any{"dimensions": dimensions}); err != nil {
			return fmt.Errorf("ensure vector index %s: %w", name, err)
		}
	}
	return nil
}
