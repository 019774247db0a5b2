package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/venturegraph/venturegraph/pkg/aliases"
	"github.com/venturegraph/venturegraph/pkg/types"
)

// maxExpansionSeeds caps how many top vector hits get graph-expanded.
const maxExpansionSeeds = 5

// perSeedExpansionLimit caps discovered neighbors per seed.
const perSeedExpansionLimit = 20

// nodeLabels is the allowlist of labels that may be spliced into query
// text. Labels cannot be parameterized in Cypher.
var nodeLabels = map[types.NodeType]string{
	types.CompanyNodeType:    "Company",
	types.PersonNodeType:     "Person",
	types.RepositoryNodeType: "Repository",
}

// labelPattern returns ":Label" for a known node type and "" otherwise,
// so an unknown or absent type searches every label.
func labelPattern(nodeType types.NodeType) string {
	if label, ok := nodeLabels[nodeType]; ok {
		return ":" + label
	}
	return ""
}

// filterPredicates is the shared WHERE fragment applying every extracted
// filter to node n. Absent filters are passed as null parameters and the
// corresponding predicate collapses to true, so they are no-ops. The star
// threshold only constrains Repository nodes; companies and people carry
// no stars property and must not be dropped by it.
const filterPredicates = `
  AND ($locationFilters IS NULL OR any(tok IN $locationFilters WHERE toLower(coalesce(n.location, '')) CONTAINS tok))
  AND ($batchFilters IS NULL OR any(tok IN $batchFilters WHERE toLower(coalesce(n.batch, '')) CONTAINS tok))
  AND ($industryFilters IS NULL OR any(tok IN $industryFilters WHERE any(ind IN coalesce(n.industries, []) WHERE toLower(ind) CONTAINS tok)))
  AND ($minRepoStars IS NULL OR NOT n:Repository OR coalesce(n.stars, 0) >= $minRepoStars)
  AND ($roleFilters IS NULL OR any(want IN $roleFilters WHERE any(have IN coalesce(n.roles, [coalesce(n.role, '')]) WHERE toLower(have) CONTAINS want)))`

// filterParams lowers the filter set into query parameters. Empty slices
// become nil so the predicates above skip them.
func filterParams(f *types.Filters) map[string]any {
	params := map[string]any{
		"locationFilters": nil,
		"batchFilters":    nil,
		"industryFilters": nil,
		"roleFilters":     nil,
		"minRepoStars":    nil,
	}
	if f == nil {
		return params
	}
	if len(f.LocationTokens) > 0 {
		params["locationFilters"] = lowerAll(f.LocationTokens)
	}
	if len(f.BatchTokens) > 0 {
		params["batchFilters"] = lowerAll(f.BatchTokens)
	}
	if len(f.IndustryTokens) > 0 {
		params["industryFilters"] = lowerAll(f.IndustryTokens)
	}
	if len(f.PersonRoles) > 0 {
		params["roleFilters"] = lowerAll(f.PersonRoles)
	}
	if f.MinRepoStars > 0 {
		params["minRepoStars"] = f.MinRepoStars
	}
	return params
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// VectorSearch runs cosine similarity between the query embedding and every
// candidate passing the filter predicates. When a location filter is
// present the initial pool is widened to 2×topK: the substring predicate is
// a coarse pre-filter and the retriever re-validates locations strictly
// afterwards, so extra headroom avoids starving the final result set.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, f *types.Filters, topK int, minScore float64) ([]types.Match, error) {
	pool := topK
	if f != nil && len(f.LocationTokens) > 0 {
		pool = 2 * topK
	}

	query := fmt.Sprintf(`
		MATCH (n%s)
		WHERE n.embedding IS NOT NULL
		%s
		WITH n, vector.similarity.cosine(n.embedding, $queryEmbedding) AS score
		WHERE score >= $minScore
		RETURN n, score
		ORDER BY score DESC
		LIMIT $topK`,
		labelPattern(nodeTypeOf(f)), filterPredicates)

	params := filterParams(f)
	params["queryEmbedding"] = embedding
	params["minScore"] = minScore
	params["topK"] = pool

	records, err := s.readRecords(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	matches := make([]types.Match, 0, len(records))
	for _, record := range records {
		node, ok := recordNode(record, "n")
		if !ok {
			continue
		}
		matches = append(matches, nodeToMatch(node, recordFloat(record, "score")))
	}
	return matches, nil
}

// FilterSearch returns every node meeting all filters, ordered by name for
// determinism. No embedding is involved and no top-k cap is applied;
// callers truncate if they need to. For person queries the company used
// for location/batch/industry context depends on the requested role: a
// founder's context is their FOUNDED company, an investor's their
// INVESTS_IN company, unioned only when both roles are requested.
func (s *Store) FilterSearch(ctx context.Context, f *types.Filters) ([]types.Match, error) {
	var query string
	if f != nil && f.NodeType == types.PersonNodeType {
		query = fmt.Sprintf(`
			MATCH (p:Person)
			WHERE ($roleFilters IS NULL OR any(want IN $roleFilters WHERE any(have IN coalesce(p.roles, [coalesce(p.role, '')]) WHERE toLower(have) CONTAINS want)))
			OPTIONAL MATCH (p)-[:%s]->(c:Company)
			WITH p, collect(c) AS affiliated
			WHERE ($locationFilters IS NULL OR any(c IN affiliated WHERE any(tok IN $locationFilters WHERE toLower(coalesce(c.location, '')) CONTAINS tok)))
			  AND ($batchFilters IS NULL OR any(c IN affiliated WHERE any(tok IN $batchFilters WHERE toLower(coalesce(c.batch, '')) CONTAINS tok)))
			  AND ($industryFilters IS NULL OR any(c IN affiliated WHERE any(tok IN $industryFilters WHERE any(ind IN coalesce(c.industries, []) WHERE toLower(ind) CONTAINS tok))))
			RETURN p AS n, 1.0 AS score
			ORDER BY p.name`,
			roleRelationPattern(f.PersonRoles))
	} else {
		query = fmt.Sprintf(`
			MATCH (n%s)
			WHERE true
			%s
			RETURN n, 1.0 AS score
			ORDER BY n.name`,
			labelPattern(nodeTypeOf(f)), filterPredicates)
	}

	params := filterParams(f)
	records, err := s.readRecords(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("filter search: %w", err)
	}

	matches := make([]types.Match, 0, len(records))
	for _, record := range records {
		node, ok := recordNode(record, "n")
		if !ok {
			continue
		}
		matches = append(matches, nodeToMatch(node, 1.0))
	}
	return matches, nil
}

// roleRelationPattern builds the FOUNDED/INVESTS_IN union for the
// requested roles. With no role requested, both count as affiliation.
func roleRelationPattern(roles []string) string {
	var rels []string
	for _, role := range roles {
		switch strings.ToLower(role) {
		case "founder":
			rels = append(rels, string(types.EdgeFounded))
		case "investor":
			rels = append(rels, string(types.EdgeInvestsIn))
		}
	}
	if len(rels) == 0 {
		rels = []string{string(types.EdgeFounded), string(types.EdgeInvestsIn)}
	}
	return strings.Join(rels, "|")
}

// ExpansionScore combines a seed's vector score with hop-distance decay.
// Distance is at least 1, so an expansion result always scores strictly
// below 0.7*seed + 0.3 and never outranks a comparable direct hit.
func ExpansionScore(seedScore float64, distance int) float64 {
	return 0.7*seedScore + 0.3*(1.0/float64(distance+1))
}

// ExpandFromSeeds traverses 1..depth hops in any direction from the top
// seeds, collecting nodes not yet in seen. Filters are reapplied to every
// discovered node. seen is shared across seeds so deduplication is global:
// an id observed once is never re-added.
func (s *Store) ExpandFromSeeds(ctx context.Context, seeds []types.Match, depth int, f *types.Filters, seen map[string]struct{}) ([]types.Match, error) {
	if depth <= 0 {
		depth = 2
	}
	if len(seeds) > maxExpansionSeeds {
		seeds = seeds[:maxExpansionSeeds]
	}

	// Variable-length bounds cannot be parameterized; depth is a bounded
	// caller input.
	query := fmt.Sprintf(`
		MATCH (start {id: $seedID})
		MATCH path = (start)-[*1..%d]-(connected)
		WHERE connected.id <> start.id
		WITH connected, length(path) AS distance,
		     [rel IN relationships(path) | type(rel)] AS relTypes
		WITH connected AS n, distance, relTypes
		WHERE true
		%s
		RETURN DISTINCT n, distance, relTypes
		ORDER BY distance
		LIMIT $perSeedLimit`,
		depth, filterPredicates)

	var expanded []types.Match
	for _, seed := range seeds {
		params := filterParams(f)
		params["seedID"] = seed.ID
		params["perSeedLimit"] = perSeedExpansionLimit

		records, err := s.readRecords(ctx, query, params)
		if err != nil {
			return nil, fmt.Errorf("graph expansion from %s: %w", seed.ID, err)
		}

		for _, record := range records {
			node, ok := recordNode(record, "n")
			if !ok {
				continue
			}
			match := nodeToMatch(node, 0)
			if match.ID == "" {
				continue
			}
			if _, dup := seen[match.ID]; dup {
				continue
			}
			seen[match.ID] = struct{}{}

			distance := recordInt(record, "distance")
			match.Score = ExpansionScore(seed.Score, distance)
			match.Connection = &types.Connection{
				FromID:   seed.ID,
				Distance: distance,
				Path:     recordStrings(record, "relTypes"),
			}
			expanded = append(expanded, match)
		}
	}
	return expanded, nil
}

// FindCompaniesByBatch is the last-resort structural fallback: batch
// substring match only, so batch-filtered queries never come back empty
// purely because the embedding space missed.
func (s *Store) FindCompaniesByBatch(ctx context.Context, batchTokens []string, limit int) ([]types.Match, error) {
	if len(batchTokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
		MATCH (n:Company)
		WHERE any(tok IN $batchTokens WHERE toLower(coalesce(n.batch, '')) CONTAINS tok)
		RETURN n
		ORDER BY n.name
		LIMIT $limit`

	records, err := s.readRecords(ctx, query, map[string]any{
		"batchTokens": lowerAll(batchTokens),
		"limit":       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("batch fallback: %w", err)
	}

	matches := make([]types.Match, 0, len(records))
	for _, record := range records {
		node, ok := recordNode(record, "n")
		if !ok {
			continue
		}
		matches = append(matches, nodeToMatch(node, 1.0))
	}
	return matches, nil
}

// TopStarredRepositories answers the star-ranking shortcut with a direct
// structural query, joined to the highest-confidence owning organization.
func (s *Store) TopStarredRepositories(ctx context.Context, limit, minStars int) ([]types.Match, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		MATCH (n:Repository)
		WHERE coalesce(n.stars, 0) >= $minStars
		OPTIONAL MATCH (c:Company)-[o:OWNS|LIKELY_OWNS]->(n)
		WITH n, c, o
		ORDER BY coalesce(o.confidence, 0.0) DESC
		WITH n, collect({id: c.id, name: c.name, confidence: coalesce(o.confidence, 0.0)})[0] AS owner
		RETURN n, owner
		ORDER BY coalesce(n.stars, 0) DESC
		LIMIT $limit`

	records, err := s.readRecords(ctx, query, map[string]any{
		"minStars": minStars,
		"limit":    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("top starred repositories: %w", err)
	}

	matches := make([]types.Match, 0, len(records))
	for _, record := range records {
		node, ok := recordNode(record, "n")
		if !ok {
			continue
		}
		match := nodeToMatch(node, 1.0)
		if ownerValue, found := record.Get("owner"); found {
			if owner, ok := ownerValue.(map[string]any); ok {
				if name, _ := owner["name"].(string); name != "" {
					match.Data["owned_by"] = owner
				}
			}
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// FindSimilarNodes ranks same-label nodes by stored-embedding cosine
// similarity against the given node.
func (s *Store) FindSimilarNodes(ctx context.Context, nodeID string, topK int, minScore float64) ([]types.Match, error) {
	if topK <= 0 {
		topK = 5
	}

	query := `
		MATCH (target {id: $nodeID})
		WHERE target.embedding IS NOT NULL
		MATCH (n)
		WHERE n.id <> target.id
		  AND n.embedding IS NOT NULL
		  AND labels(n) = labels(target)
		WITH n, vector.similarity.cosine(target.embedding, n.embedding) AS score
		WHERE score >= $minScore
		RETURN n, score
		ORDER BY score DESC
		LIMIT $topK`

	records, err := s.readRecords(ctx, query, map[string]any{
		"nodeID":   nodeID,
		"minScore": minScore,
		"topK":     topK,
	})
	if err != nil {
		return nil, fmt.Errorf("similar nodes: %w", err)
	}

	matches := make([]types.Match, 0, len(records))
	for _, record := range records {
		node, ok := recordNode(record, "n")
		if !ok {
			continue
		}
		matches = append(matches, nodeToMatch(node, recordFloat(record, "score")))
	}
	return matches, nil
}

// GetNodeWithConnections returns a node and its neighborhood up to depth
// hops, for network visualization.
func (s *Store) GetNodeWithConnections(ctx context.Context, nodeID string, depth int) (*types.Network, error) {
	if depth <= 0 {
		depth = 1
	}

	nodeQuery := fmt.Sprintf(`
		MATCH (center {id: $nodeID})
		OPTIONAL MATCH (center)-[*1..%d]-(connected)
		RETURN center, collect(DISTINCT connected) AS connectedNodes`, depth)

	records, err := s.readRecords(ctx, nodeQuery, map[string]any{"nodeID": nodeID})
	if err != nil {
		return nil, fmt.Errorf("node network: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("node %s: %w", nodeID, ErrNotFound)
	}

	network := &types.Network{}
	record := records[0]
	if center, ok := recordNode(record, "center"); ok {
		network.Nodes = append(network.Nodes, nodeToMatch(center, 0))
	}
	if value, found := record.Get("connectedNodes"); found {
		if raw, ok := value.([]any); ok {
			for _, item := range raw {
				if node, ok := item.(dbtype.Node); ok {
					network.Nodes = append(network.Nodes, nodeToMatch(node, 0))
				}
			}
		}
	}

	edgeQuery := fmt.Sprintf(`
		MATCH (center {id: $nodeID})
		MATCH path = (center)-[*1..%d]-()
		UNWIND relationships(path) AS rel
		RETURN DISTINCT startNode(rel).id AS fromID, endNode(rel).id AS toID, type(rel) AS relType`, depth)

	edgeRecords, err := s.readRecords(ctx, edgeQuery, map[string]any{"nodeID": nodeID})
	if err != nil {
		return nil, fmt.Errorf("node network edges: %w", err)
	}
	for _, record := range edgeRecords {
		from, _ := record.Get("fromID")
		to, _ := record.Get("toID")
		relType, _ := record.Get("relType")
		fromID, _ := from.(string)
		toID, _ := to.(string)
		label, _ := relType.(string)
		if fromID == "" || toID == "" {
			continue
		}
		network.Edges = append(network.Edges, types.GraphEdge{From: fromID, To: toID, Label: label})
	}

	network.Explanation = explainNetwork(network)
	return network, nil
}

// explainNetwork summarizes a neighborhood: the center node, how many
// entities it reaches and the relationship-type counts. Types are listed
// alphabetically so the same network always reads the same.
func explainNetwork(n *types.Network) string {
	if len(n.Nodes) == 0 {
		return "No network found."
	}

	center := n.Nodes[0]
	explanation := fmt.Sprintf("%s (%s) has %d connected entities in the network.",
		center.Name(), center.Type, len(n.Nodes)-1)
	if len(n.Edges) == 0 {
		return explanation
	}

	counts := make(map[string]int)
	for _, edge := range n.Edges {
		counts[edge.Label]++
	}
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%d %s", counts[label], label))
	}
	return explanation + " Relationships include: " + strings.Join(parts, ", ") + "."
}

// LoadAliasHubs implements aliases.HubSource: it reads the Location,
// Industry and Batch hub nodes with their alias lists.
func (s *Store) LoadAliasHubs(ctx context.Context) (map[aliases.Domain]map[string][]string, error) {
	query := `
		MATCH (h)
		WHERE h:Location OR h:Industry OR h:Batch
		RETURN labels(h) AS hubLabels, h.name AS name, coalesce(h.aliases, []) AS hubAliases`

	records, err := s.readRecords(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("alias hubs: %w", err)
	}

	labelDomains := map[string]aliases.Domain{
		"Location": aliases.DomainLocation,
		"Industry": aliases.DomainIndustry,
		"Batch":    aliases.DomainBatch,
	}

	mapping := make(map[aliases.Domain]map[string][]string)
	for _, record := range records {
		var domain aliases.Domain
		for _, label := range recordStrings(record, "hubLabels") {
			if d, ok := labelDomains[label]; ok {
				domain = d
				break
			}
		}
		if domain == "" {
			continue
		}
		nameValue, _ := record.Get("name")
		name, _ := nameValue.(string)
		if name == "" {
			continue
		}
		if mapping[domain] == nil {
			mapping[domain] = make(map[string][]string)
		}
		mapping[domain][name] = recordStrings(record, "hubAliases")
	}
	return mapping, nil
}

// Statistics reports node counts per label, relationship counts per type
// and how many nodes carry an embedding.
func (s *Store) Statistics(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	nodeRecords, err := s.readRecords(ctx, `
		MATCH (n)
		UNWIND labels(n) AS label
		RETURN label, count(*) AS count
		ORDER BY label`, nil)
	if err != nil {
		return nil, fmt.Errorf("node statistics: %w", err)
	}
	nodeCounts := make(map[string]int)
	for _, record := range nodeRecords {
		value, _ := record.Get("label")
		label, _ := value.(string)
		if label == "" {
			continue
		}
		nodeCounts[label] = recordInt(record, "count")
	}
	stats["nodes"] = nodeCounts

	relRecords, err := s.readRecords(ctx, `
		MATCH ()-[r]->()
		RETURN type(r) AS relType, count(*) AS count
		ORDER BY relType`, nil)
	if err != nil {
		return nil, fmt.Errorf("relationship statistics: %w", err)
	}
	relCounts := make(map[string]int)
	for _, record := range relRecords {
		value, _ := record.Get("relType")
		relType, _ := value.(string)
		if relType == "" {
			continue
		}
		relCounts[relType] = recordInt(record, "count")
	}
	stats["relationships"] = relCounts

	embRecords, err := s.readRecords(ctx, `
		MATCH (n)
		WHERE n.embedding IS NOT NULL
		RETURN count(n) AS count`, nil)
	if err != nil {
		return nil, fmt.Errorf("embedding statistics: %w", err)
	}
	if len(embRecords) > 0 {
		stats["nodes_with_embeddings"] = recordInt(embRecords[0], "count")
	}

	return stats, nil
}

func nodeTypeOf(f *types.Filters) types.NodeType {
	if f == nil {
		return ""
	}
	return f.NodeType
}
