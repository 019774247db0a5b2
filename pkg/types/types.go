package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NodeType identifies the label of a graph node.
type NodeType string

const (
	CompanyNodeType    NodeType = "Company"
	PersonNodeType     NodeType = "Person"
	RepositoryNodeType NodeType = "Repository"
	UnknownNodeType    NodeType = "Unknown"
)

// Relationship types the store accepts. Anything outside this set is
// rejected before it reaches a query string.
type EdgeType string

const (
	EdgeFounded    EdgeType = "FOUNDED"
	EdgeInvestsIn  EdgeType = "INVESTS_IN"
	EdgeOwns       EdgeType = "OWNS"
	EdgeLikelyOwns EdgeType = "LIKELY_OWNS"
	EdgeInBatch    EdgeType = "IN_BATCH"
	EdgeInIndustry EdgeType = "IN_INDUSTRY"
	EdgeSimilarTo  EdgeType = "SIMILAR_TO"
)

// Company is an organization node. ID is derived from the natural key so
// repeated ingestion merges instead of duplicating.
type Company struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Location     string    `json:"location,omitempty"`
	LocationCode string    `json:"location_code,omitempty"`
	Batch        string    `json:"batch,omitempty"`
	BatchCode    string    `json:"batch_code,omitempty"`
	Industries   []string  `json:"industries,omitempty"`
	Website      string    `json:"website,omitempty"`
	Domain       string    `json:"domain,omitempty"`
	Source       string    `json:"source,omitempty"`
	Sources      []string  `json:"sources,omitempty"`
	Founders     []Person  `json:"founders,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Person is a founder, investor or developer node. Role holds the legacy
// single value, Roles the accumulated set.
type Person struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Role     string   `json:"role,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Company  string   `json:"company,omitempty"`
	Location string   `json:"location,omitempty"`
	Batch    string   `json:"batch,omitempty"`
	Source   string   `json:"source,omitempty"`
}

// Repository is a code repository node.
type Repository struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Language    string   `json:"language,omitempty"`
	Stars       int      `json:"stars"`
	URL         string   `json:"url,omitempty"`
	Homepage    string   `json:"homepage,omitempty"`
	Domain      string   `json:"domain,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	OwnerKind   string   `json:"owner_kind,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// Connection describes how an expansion result was reached from its seed.
type Connection struct {
	FromID   string   `json:"from_id"`
	Distance int      `json:"distance"`
	Path     []string `json:"path"`
}

// Match is one scored retrieval result. Connection is nil for direct
// vector or filter hits and set for graph-expansion results.
type Match struct {
	ID         string         `json:"id"`
	Score      float64        `json:"score"`
	Type       NodeType       `json:"type"`
	Data       map[string]any `json:"data"`
	Connection *Connection    `json:"connection,omitempty"`
}

// Name returns the display name of the matched node.
func (m *Match) Name() string {
	if m.Data != nil {
		if name, ok := m.Data["name"].(string); ok && name != "" {
			return name
		}
	}
	return "Unknown"
}

// GraphNode is a visualization node.
type GraphNode struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Type  NodeType `json:"type"`
	Score float64  `json:"score,omitempty"`
}

// GraphEdge is a visualization edge.
type GraphEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// Network is a node's neighborhood: the node itself, its connected nodes
// and the relationships between them. Explanation is a deterministic
// summary of the connection and relationship-type counts.
type Network struct {
	Nodes       []Match     `json:"nodes"`
	Edges       []GraphEdge `json:"edges"`
	Explanation string      `json:"explanation"`
}

// GraphData is the deduplicated node/edge structure built from top matches.
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// SearchParams echoes the parameters a search actually ran with,
// including every filter that was applied.
type SearchParams struct {
	TopK           int            `json:"top_k"`
	GraphDepth     int            `json:"graph_depth"`
	MinScore       float64        `json:"min_score"`
	FilterType     string         `json:"filter_type,omitempty"`
	AppliedFilters map[string]any `json:"applied_filters"`
}

// SearchResponse is the full answer returned to callers. It is well formed
// even under partial degradation: Matches may be empty and Response then
// carries the explanation.
type SearchResponse struct {
	Query        string       `json:"query"`
	Matches      []Match      `json:"matches"`
	Response     string       `json:"response"`
	Graph        *GraphData   `json:"graph,omitempty"`
	TotalResults int          `json:"total_results"`
	SearchParams SearchParams `json:"search_params"`
}

// Message is a single chat message sent to a language model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports token consumption of one model call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the result of one chat completion.
type Response struct {
	Content    string      `json:"content"`
	Model      string      `json:"model,omitempty"`
	TokensUsed *TokenUsage `json:"tokens_used,omitempty"`
}

// NaturalKeyID derives a stable node id. An external id wins; otherwise the
// id is a deterministic hash of kind, name and source, so re-ingesting the
// same record always lands on the same node.
func NaturalKeyID(kind, externalID, name, source string) string {
	if externalID != "" {
		return externalID
	}
	key := strings.ToLower(strings.Join([]string{kind, name, source}, "_"))
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(key)).String()
}

// Context keys used to carry caller identity through a request.
type contextKey string

const (
	ContextKeyCallerID      contextKey = "caller_id"
	ContextKeySessionID     contextKey = "session_id"
	ContextKeyRequestSource contextKey = "request_source"
)
