// Package analyzer turns one free-text query into a structured retrieval
// intent: extracted filters, an entity-type guess, a complexity estimate
// and a routing decision.
package analyzer

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/venturegraph/venturegraph/pkg/aliases"
	"github.com/venturegraph/venturegraph/pkg/types"
)

// Route says which retrieval strategy a query should take.
type Route string

const (
	// RouteFilterOnly skips embeddings entirely and runs a structural
	// query. Chosen for "show me X in Y" queries: cheaper and more precise.
	RouteFilterOnly Route = "filter_only"
	// RouteSemantic embeds the cleaned query and runs hybrid retrieval.
	RouteSemantic Route = "semantic"
	// RoutePlanner delegates to the query planner before retrieving.
	RoutePlanner Route = "planner"
)

// plannerThreshold is the complexity score at or above which a query is
// routed through the planner. Tunable, but single-filter queries must
// never reach it (cost control).
const plannerThreshold = 3

// Intent is the structured reading of one query.
type Intent struct {
	Query      string         `json:"query"`
	CleanQuery string         `json:"clean_query"`
	Filters    *types.Filters `json:"filters"`

	// Numeric holds every extracted {direction}_{metric} threshold,
	// e.g. "min_star": 100. Last write wins on duplicate keys.
	Numeric map[string]int `json:"numeric,omitempty"`

	Complexity int    `json:"complexity"`
	Route      Route  `json:"route"`
	QueryFocus string `json:"query_focus,omitempty"`

	// TopStarred marks the special-cased star-ranking query.
	TopStarred bool `json:"top_starred,omitempty"`
}

// Analyzer extracts intents. It holds only immutable state (the alias
// resolver) and is safe for concurrent use.
type Analyzer struct {
	resolver *aliases.Resolver
	logger   *slog.Logger
}

// New creates an analyzer around an alias resolver. A nil resolver is
// allowed and simply disables location/industry/batch-alias extraction.
func New(resolver *aliases.Resolver, logger *slog.Logger) *Analyzer {
	if resolver == nil {
		resolver = aliases.NewFromMap(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{resolver: resolver, logger: logger}
}

// Analyze produces the intent for one query. It never fails: a query that
// matches nothing comes back as a plain semantic intent.
func (a *Analyzer) Analyze(query string) *Intent {
	intent := &Intent{
		Query:   query,
		Filters: &types.Filters{},
		Numeric: make(map[string]int),
	}

	clean := a.extractNumericFilters(query, intent)
	intent.CleanQuery = clean

	lowered := strings.ToLower(query)

	intent.Filters.NodeType = detectEntityType(lowered)
	a.extractLocation(lowered, intent)
	a.extractIndustries(lowered, intent)
	intent.Filters.BatchTokens = extractBatchTokens(lowered)
	intent.Filters.PersonRoles = inferPersonRoles(lowered)
	if len(intent.Filters.PersonRoles) > 0 && intent.Filters.NodeType == "" {
		intent.Filters.NodeType = types.PersonNodeType
	}

	if stars, ok := intent.Numeric["min_star"]; ok {
		intent.Filters.MinRepoStars = stars
	}

	intent.TopStarred = topStarredPattern.MatchString(lowered) &&
		intent.Filters.NodeType == types.RepositoryNodeType

	intent.Complexity = a.scoreComplexity(lowered, intent)
	intent.Route = a.route(lowered, intent)

	a.logger.Debug("analyzed query",
		"route", intent.Route,
		"entity_type", intent.Filters.NodeType,
		"complexity", intent.Complexity,
		"numeric", fmt.Sprint(intent.Numeric))

	return intent
}

// extractNumericFilters runs the comparison pattern table, fills the
// numeric map and returns the query with every matched span removed so the
// residual text embeds cleaner. Spans are removed in reverse position
// order to keep earlier offsets valid.
func (a *Analyzer) extractNumericFilters(query string, intent *Intent) string {
	type span struct {
		start, end int
		key        string
		value      int
	}
	var spans []span

	for _, pattern := range comparisonPatterns {
		for _, m := range pattern.re.FindAllStringSubmatchIndex(query, -1) {
			value, err := strconv.Atoi(query[m[2]:m[3]])
			if err != nil {
				continue
			}
			metric := singularize(query[m[4]:m[5]])
			spans = append(spans, span{
				start: m[0],
				end:   m[1],
				key:   pattern.direction + "_" + metric,
				value: value,
			})
		}
	}

	if len(spans) == 0 {
		return strings.TrimSpace(query)
	}

	// Fill the map in text order so "last write wins" means rightmost.
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for _, s := range spans {
		intent.Numeric[s.key] = s.value
	}

	clean := query
	for i := len(spans) - 1; i >= 0; i-- {
		clean = clean[:spans[i].start] + clean[spans[i].end:]
	}
	return strings.Join(strings.Fields(clean), " ")
}

// detectEntityType tests the three vocabularies in fixed priority order;
// the first one with any hit wins, no scoring.
func detectEntityType(lowered string) types.NodeType {
	for _, vocab := range entityVocabularies {
		if containsAny(lowered, vocab.terms) {
			return types.NodeType(vocab.entityType)
		}
	}
	return ""
}

func (a *Analyzer) extractLocation(lowered string, intent *Intent) {
	code, ok := a.resolver.CodeForText(aliases.DomainLocation, lowered)
	if !ok {
		return
	}
	intent.Filters.LocationCode = code
	intent.Filters.LocationTokens = a.resolver.AliasesFor(aliases.DomainLocation, code)
}

func (a *Analyzer) extractIndustries(lowered string, intent *Intent) {
	code, ok := a.resolver.CodeForText(aliases.DomainIndustry, lowered)
	if !ok {
		return
	}
	intent.Filters.IndustryTokens = a.resolver.AliasesFor(aliases.DomainIndustry, code)
}

// extractBatchTokens parses season+year batch mentions into a lowercase
// token set. Tokens are matched as substrings later, so "w24" alone is
// enough to hit a stored "W24" batch label, but the expanded forms keep
// long labels like "Winter 2024" matchable too.
func extractBatchTokens(lowered string) []string {
	tokenSet := make(map[string]struct{})
	var tokens []string
	add := func(tok string) {
		if _, dup := tokenSet[tok]; dup || tok == "" {
			return
		}
		tokenSet[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	for i, pattern := range batchPatterns {
		for _, m := range pattern.FindAllStringSubmatch(lowered, -1) {
			var season, year string
			if i == 0 {
				season = codeSeasons[m[1]]
				year = m[2]
			} else {
				season = m[1]
				year = m[2]
			}
			if len(year) == 2 {
				year = "20" + year
			}
			short := year[len(year)-2:]
			add(seasonCodes[season] + short)
			add(season + " " + year)
			add(year)
		}
	}
	return tokens
}

// inferPersonRoles checks investor vocabulary before founder vocabulary.
func inferPersonRoles(lowered string) []string {
	var roles []string
	if containsAny(lowered, investorTerms) {
		roles = append(roles, "investor")
	}
	if containsAny(lowered, founderTerms) {
		roles = append(roles, "founder")
	}
	return roles
}

// scoreComplexity sums heuristic signals. The resulting score routes to
// the planner at plannerThreshold; a single-filter query can collect at
// most two points here, so it never escalates.
func (a *Analyzer) scoreComplexity(lowered string, intent *Intent) int {
	score := 0

	mentions := 0
	for _, vocab := range entityVocabularies {
		if containsAny(lowered, vocab.terms) {
			mentions++
		}
	}
	if mentions >= 2 {
		score++
	}
	if containsAny(lowered, analyticTerms) {
		score++
	}
	if len(intent.Numeric) > 0 {
		score++
	}
	for _, conn := range booleanConnectives {
		if strings.Contains(lowered, conn) {
			score++
			break
		}
	}
	for _, marker := range relativeClauseMarkers {
		if strings.Contains(lowered, marker) {
			score++
			break
		}
	}
	if intent.Filters.LocationCode != "" && len(intent.Filters.BatchTokens) > 0 {
		score++
	}
	if len(tokenize(lowered)) > 12 {
		score++
	}
	return score
}

// route picks the retrieval strategy. A hard structural filter with no
// analytic language means filter-only (no embedding call at all). A star
// threshold alone stays semantic: it is compatible with ranking. Complex
// queries go through the planner.
func (a *Analyzer) route(lowered string, intent *Intent) Route {
	if intent.TopStarred {
		return RouteSemantic // retriever short-circuits before embedding
	}
	if intent.Complexity >= plannerThreshold {
		return RoutePlanner
	}
	if intent.Filters.HasHardFilter() && !containsAny(lowered, analyticTerms) {
		return RouteFilterOnly
	}
	return RouteSemantic
}
