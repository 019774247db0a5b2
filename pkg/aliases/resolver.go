// Package aliases resolves free-text mentions of locations, industries and
// YC-style batches to canonical codes and back to their full alias lists.
package aliases

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Domain is one alias namespace.
type Domain string

const (
	DomainLocation Domain = "location"
	DomainIndustry Domain = "industry"
	DomainBatch    Domain = "batch"
)

// HubSource loads canonical->alias mappings from alias hub nodes in the
// graph store.
type HubSource interface {
	LoadAliasHubs(ctx context.Context) (map[Domain]map[string][]string, error)
}

// domainTable keeps canonical keys in insertion order. CodeForText walks
// them in that order, so ties between overlapping aliases are resolved by
// load order rather than specificity.
type domainTable struct {
	order   []string
	aliases map[string][]string
}

func newDomainTable() *domainTable {
	return &domainTable{aliases: make(map[string][]string)}
}

func (t *domainTable) add(canonical string, aliases []string) {
	canonical = strings.ToLower(strings.TrimSpace(canonical))
	if canonical == "" {
		return
	}
	if _, seen := t.aliases[canonical]; !seen {
		t.order = append(t.order, canonical)
	}
	lowered := make([]string, 0, len(aliases)+1)
	lowered = append(lowered, canonical)
	for _, a := range aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && a != canonical {
			lowered = append(lowered, a)
		}
	}
	t.aliases[canonical] = dedupeStrings(append(t.aliases[canonical], lowered...))
}

// Resolver is an immutable, process-lifetime alias cache. Construct one per
// configuration; it never hot-reloads.
type Resolver struct {
	tables map[Domain]*domainTable
}

// Load builds a resolver from the graph store's alias hubs, falling back to
// a JSON/YAML mapping file, falling back to an empty resolver. It never
// fails: a missing alias source just means no alias filtering.
func Load(ctx context.Context, hubs HubSource, filePath string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	if hubs != nil {
		mapping, err := hubs.LoadAliasHubs(ctx)
		if err == nil && countEntries(mapping) > 0 {
			return NewFromMap(mapping)
		}
		if err != nil {
			logger.Warn("alias hub load failed, trying file fallback", "error", err)
		}
	}

	if filePath != "" {
		mapping, err := loadMappingFile(filePath)
		if err == nil && countEntries(mapping) > 0 {
			return NewFromMap(mapping)
		}
		if err != nil {
			logger.Warn("alias file load failed, alias filtering disabled",
				"path", filePath, "error", err)
		}
	}

	return NewFromMap(nil)
}

// NewFromMap builds a resolver directly from a mapping. Canonical order
// follows map iteration per domain unless the caller pre-orders via
// repeated add; primarily used by tests and the file loader.
func NewFromMap(mapping map[Domain]map[string][]string) *Resolver {
	r := &Resolver{tables: map[Domain]*domainTable{
		DomainLocation: newDomainTable(),
		DomainIndustry: newDomainTable(),
		DomainBatch:    newDomainTable(),
	}}
	for domain, entries := range mapping {
		table, ok := r.tables[domain]
		if !ok {
			table = newDomainTable()
			r.tables[domain] = table
		}
		// Sort canonicals for a stable insertion order when the source
		// map has none of its own.
		for _, canonical := range sortedKeys(entries) {
			table.add(canonical, entries[canonical])
		}
	}
	return r
}

// AliasesFor returns every lowercase alias of a canonical code, the
// canonical itself included. Nil means the code is unknown, which callers
// treat as "no filtering available".
func (r *Resolver) AliasesFor(domain Domain, canonical string) []string {
	table, ok := r.tables[domain]
	if !ok {
		return nil
	}
	aliases, ok := table.aliases[strings.ToLower(strings.TrimSpace(canonical))]
	if !ok {
		return nil
	}
	return append([]string(nil), aliases...)
}

// CodeForText scans free text for any known alias and returns the first
// matching canonical code. Canonicals are tried in insertion order and the
// first alias substring hit wins; this order dependence is load-order
// policy, not a guaranteed contract.
func (r *Resolver) CodeForText(domain Domain, text string) (string, bool) {
	table, ok := r.tables[domain]
	if !ok {
		return "", false
	}
	lowered := strings.ToLower(text)
	for _, canonical := range table.order {
		for _, alias := range table.aliases[canonical] {
			if strings.Contains(lowered, alias) {
				return canonical, true
			}
		}
	}
	return "", false
}

// Canonicals lists the known canonical codes of a domain in match order.
func (r *Resolver) Canonicals(domain Domain) []string {
	table, ok := r.tables[domain]
	if !ok {
		return nil
	}
	return append([]string(nil), table.order...)
}

// Empty reports whether no aliases are loaded at all.
func (r *Resolver) Empty() bool {
	for _, table := range r.tables {
		if len(table.order) > 0 {
			return false
		}
	}
	return true
}

// loadMappingFile reads a {"location": {"nyc": ["new york", ...]}, ...}
// mapping from a JSON or YAML file.
func loadMappingFile(path string) (map[Domain]map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]map[string][]string)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &raw)
	default:
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, err
	}

	mapping := make(map[Domain]map[string][]string, len(raw))
	for domain, entries := range raw {
		mapping[Domain(strings.ToLower(domain))] = entries
	}
	return mapping, nil
}

func countEntries(mapping map[Domain]map[string][]string) int {
	total := 0
	for _, entries := range mapping {
		total += len(entries)
	}
	return total
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
