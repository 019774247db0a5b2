package types

// Filters is the structured filter set extracted from a query (or supplied
// by the caller). Empty fields are no-ops: an absent filter passes
// everything.
type Filters struct {
	// NodeType restricts candidates to one label. Empty means any.
	NodeType NodeType `json:"node_type,omitempty"`

	// BatchTokens, LocationTokens and IndustryTokens are lowercase
	// substrings matched against stored fields, not exact values.
	BatchTokens    []string `json:"batch_tokens,omitempty"`
	LocationTokens []string `json:"location_tokens,omitempty"`
	IndustryTokens []string `json:"industry_tokens,omitempty"`

	// LocationCode is the canonical code the location tokens came from,
	// kept for the strict re-validation pass.
	LocationCode string `json:"location_code,omitempty"`

	// PersonRoles restricts Person matches ("founder", "investor", ...).
	PersonRoles []string `json:"person_roles,omitempty"`

	// MinRepoStars is a lower bound on repository stars. Zero means unset.
	MinRepoStars int `json:"min_repo_stars,omitempty"`
}

// HasHardFilter reports whether a structural (non-star) filter is present.
// Star thresholds alone stay on the semantic path: they are compatible
// with similarity ranking, and routing on them would lose recall.
func (f *Filters) HasHardFilter() bool {
	if f == nil {
		return false
	}
	return len(f.BatchTokens) > 0 ||
		len(f.LocationTokens) > 0 ||
		len(f.IndustryTokens) > 0 ||
		len(f.PersonRoles) > 0
}

// IsEmpty reports whether no filter of any kind is set.
func (f *Filters) IsEmpty() bool {
	if f == nil {
		return true
	}
	return !f.HasHardFilter() && f.MinRepoStars == 0 && f.NodeType == ""
}

// Applied returns the filters as a map for search_params.applied_filters.
// Only filters that were actually used appear.
func (f *Filters) Applied() map[string]any {
	applied := make(map[string]any)
	if f == nil {
		return applied
	}
	if f.NodeType != "" {
		applied["node_type"] = string(f.NodeType)
	}
	if len(f.BatchTokens) > 0 {
		applied["batch_filters"] = f.BatchTokens
	}
	if len(f.LocationTokens) > 0 {
		applied["location_filters"] = f.LocationTokens
	}
	if len(f.IndustryTokens) > 0 {
		applied["industry_filters"] = f.IndustryTokens
	}
	if len(f.PersonRoles) > 0 {
		applied["person_role_filters"] = f.PersonRoles
	}
	if f.MinRepoStars > 0 {
		applied["min_repo_stars"] = f.MinRepoStars
	}
	return applied
}

// Clone returns a deep copy so per-request mutation never leaks into a
// shared intent.
func (f *Filters) Clone() *Filters {
	if f == nil {
		return &Filters{}
	}
	out := *f
	out.BatchTokens = append([]string(nil), f.BatchTokens...)
	out.LocationTokens = append([]string(nil), f.LocationTokens...)
	out.IndustryTokens = append([]string(nil), f.IndustryTokens...)
	out.PersonRoles = append([]string(nil), f.PersonRoles...)
	return &out
}
