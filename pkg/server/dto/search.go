// Package dto defines the HTTP request and response shapes.
package dto

import (
	"errors"
	"strings"
)

// MaxQueryLength bounds the accepted query size.
const MaxQueryLength = 2000

// ErrQueryTooLong is returned when a query exceeds MaxQueryLength.
var ErrQueryTooLong = errors.New("query exceeds maximum length")

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query        string   `json:"query" binding:"required"`
	TopK         int      `json:"top_k,omitempty"`
	GraphDepth   int      `json:"graph_depth,omitempty"`
	MinScore     float64  `json:"min_score,omitempty"`
	FilterType   string   `json:"filter_type,omitempty"`
	MinRepoStars int      `json:"min_repo_stars,omitempty"`
	PersonRoles  []string `json:"person_roles,omitempty"`
	SkipGraph    bool     `json:"skip_graph,omitempty"`
	SkipSummary  bool     `json:"skip_summary,omitempty"`
}

// Validate performs validation on SearchRequest
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query cannot be empty")
	}
	if len(r.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	if r.TopK < 0 || r.TopK > 100 {
		return errors.New("top_k must be between 0 and 100")
	}
	if r.GraphDepth < 0 || r.GraphDepth > 4 {
		return errors.New("graph_depth must be between 0 and 4")
	}
	switch r.FilterType {
	case "", "Company", "Person", "Repository":
	default:
		return errors.New("filter_type must be Company, Person or Repository")
	}
	return nil
}

// SimilarRequest is the body of POST /api/v1/similar.
type SimilarRequest struct {
	NodeID string `json:"node_id" binding:"required"`
	TopK   int    `json:"top_k,omitempty"`
}

// Validate performs validation on SimilarRequest
func (r *SimilarRequest) Validate() error {
	if strings.TrimSpace(r.NodeID) == "" {
		return errors.New("node_id cannot be empty")
	}
	if r.TopK < 0 || r.TopK > 100 {
		return errors.New("top_k must be between 0 and 100")
	}
	return nil
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
