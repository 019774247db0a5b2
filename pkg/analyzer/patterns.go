package analyzer

import (
	"regexp"
	"strings"
)

// comparisonPattern binds one comparison phrasing to a direction. Each
// regexp captures the numeric value and the metric noun; keeping them in a
// table lets every pattern be tested in isolation.
type comparisonPattern struct {
	re        *regexp.Regexp
	direction string // "min" or "max"
}

var comparisonPatterns = []comparisonPattern{
	// symbolic forms
	{regexp.MustCompile(`>\s*(\d+)\s+([a-zA-Z]+)`), "min"},
	{regexp.MustCompile(`<\s*(\d+)\s+([a-zA-Z]+)`), "max"},
	{regexp.MustCompile(`\b(\d+)\s*\+\s*([a-zA-Z]+)`), "min"},
	// natural-language forms
	{regexp.MustCompile(`(?i)\bmore\s+than\s+(\d+)\s+([a-zA-Z]+)`), "min"},
	{regexp.MustCompile(`(?i)\bat\s+least\s+(\d+)\s+([a-zA-Z]+)`), "min"},
	{regexp.MustCompile(`(?i)\bover\s+(\d+)\s+([a-zA-Z]+)`), "min"},
	{regexp.MustCompile(`(?i)\bless\s+than\s+(\d+)\s+([a-zA-Z]+)`), "max"},
	{regexp.MustCompile(`(?i)\bfewer\s+than\s+(\d+)\s+([a-zA-Z]+)`), "max"},
	{regexp.MustCompile(`(?i)\bat\s+most\s+(\d+)\s+([a-zA-Z]+)`), "max"},
	{regexp.MustCompile(`(?i)\bunder\s+(\d+)\s+([a-zA-Z]+)`), "max"},
}

// batchPatterns recognize YC-style batch mentions. Each match yields the
// season word and a year; token expansion happens in extractBatchTokens.
var batchPatterns = []*regexp.Regexp{
	// "w24", "yc w24", "s '24", "YC W 24"
	regexp.MustCompile(`(?i)\b(?:yc\s*)?([wsfx])\s*'?\s*(\d{2})\b`),
	// "winter 2024", "summer 24"
	regexp.MustCompile(`(?i)\b(winter|summer|fall|spring)\s+'?(\d{2,4})\b`),
}

// seasonCodes maps season words to YC batch letters and back.
var seasonCodes = map[string]string{
	"winter": "w",
	"summer": "s",
	"fall":   "f",
	"spring": "x",
}

var codeSeasons = map[string]string{
	"w": "winter",
	"s": "summer",
	"f": "fall",
	"x": "spring",
}

// Entity-type vocabularies, checked in this fixed priority order: the first
// vocabulary with any hit wins. The asymmetry is deliberate load-order
// policy (repository terms are the most specific in practice).
type entityVocabulary struct {
	entityType string
	terms      []string
}

var entityVocabularies = []entityVocabulary{
	{"Repository", []string{
		"repository", "repositories", "repo", "repos", "github",
		"open source", "open-source", "codebase", "library", "libraries",
		"framework", "sdk", "starred",
	}},
	{"Company", []string{
		"company", "companies", "startup", "startups", "business",
		"businesses", "organization", "organizations", "firm", "firms",
		"venture", "ventures",
	}},
	{"Person", []string{
		"founder", "founders", "investor", "investors", "person", "people",
		"developer", "developers", "engineer", "engineers", "ceo", "ceos",
		"who",
	}},
}

// Role vocabularies. Investor terms are checked first: they are rarer
// false positives than founder language.
var investorTerms = []string{
	"investor", "investors", "invests", "investing", "invested",
	"vc", "vcs", "venture capital", "angel", "angels", "backer", "backers",
}

var founderTerms = []string{
	"founder", "founders", "co-founder", "cofounder", "founded",
	"ceo", "ceos", "started",
}

// analyticTerms signal that the user wants analysis or ranking rather than
// a plain structural listing; their presence keeps a query on the semantic
// path even when hard filters are present.
var analyticTerms = []string{
	"compare", "comparing", "analyze", "analyse", "analysis", "why", "how",
	"relationship", "relationships", "related", "connection", "connections",
	"connected", "similar", "versus", " vs ", "trend", "trends", "insight",
	"insights", "best", "promising",
}

var booleanConnectives = []string{" and ", " or ", " not ", " but ", " except "}

var relativeClauseMarkers = []string{" that ", " which ", " whose ", " where "}

// topStarredPattern special-cases "most/top/highest starred repositories":
// star ranking is not a similarity problem, so the retriever answers it
// with a direct structural query.
var topStarredPattern = regexp.MustCompile(
	`(?i)\b(?:most|top|highest)[\s-]*(?:starred|stars?\b)`)

// containsAny reports whether any vocabulary term appears in the lowered
// text. Multi-word terms match as substrings, single words on token
// boundaries.
func containsAny(lowered string, terms []string) bool {
	return matchTerm(lowered, terms) != ""
}

// matchTerm returns the first term appearing in the text, or "".
func matchTerm(lowered string, terms []string) string {
	padded := " " + lowered + " "
	for _, term := range terms {
		if strings.ContainsAny(term, " -") {
			if strings.Contains(lowered, term) {
				return term
			}
			continue
		}
		if strings.Contains(padded, " "+term+" ") {
			return term
		}
	}
	return ""
}

// singularize strips a trailing "s" so "stars" and "star" land on the same
// metric key.
func singularize(metric string) string {
	metric = strings.ToLower(metric)
	if len(metric) > 1 && strings.HasSuffix(metric, "s") {
		return strings.TrimSuffix(metric, "s")
	}
	return metric
}

// tokenize splits on whitespace and punctuation, lowercasing as it goes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
}
