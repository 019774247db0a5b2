package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/venturegraph/venturegraph/pkg/llm"
	"github.com/venturegraph/venturegraph/pkg/types"
)

// Plan is the compact query plan produced for ambiguous queries.
type Plan struct {
	FilterType   string   `json:"filter_type,omitempty"`
	PersonRoles  []string `json:"person_roles,omitempty"`
	MinRepoStars int      `json:"min_repo_stars,omitempty"`
	Location     string   `json:"location,omitempty"`
	QueryFocus   string   `json:"query_focus,omitempty"`
}

// Planner produces a plan for a query, given the heuristic intent as a
// seed. Implementations must treat the seed as read-only.
type Planner interface {
	Plan(ctx context.Context, query string, seed *Intent) (*Plan, error)
}

// HeuristicPlanner derives the plan straight from the heuristic intent.
// It is total: it never fails, so it is always a safe fallback.
type HeuristicPlanner struct{}

// NewHeuristicPlanner returns the no-dependency planner.
func NewHeuristicPlanner() *HeuristicPlanner { return &HeuristicPlanner{} }

// Plan implements Planner.
func (p *HeuristicPlanner) Plan(_ context.Context, _ string, seed *Intent) (*Plan, error) {
	plan := &Plan{}
	if seed == nil {
		return plan, nil
	}
	plan.FilterType = string(seed.Filters.NodeType)
	plan.PersonRoles = append([]string(nil), seed.Filters.PersonRoles...)
	plan.MinRepoStars = seed.Filters.MinRepoStars
	plan.Location = seed.Filters.LocationCode
	plan.QueryFocus = seed.CleanQuery
	return plan, nil
}

const plannerSystemPrompt = `You are a query planner for a startup ecosystem
knowledge graph containing Company, Person and Repository nodes.
Given a search query, respond with a single compact JSON object and nothing
else, using exactly these keys:
{"filter_type": "Company|Person|Repository|", "person_roles": ["founder"|"investor"|...],
 "min_repo_stars": 0, "location": "", "query_focus": ""}
Leave a key empty when the query gives no signal for it. query_focus is the
query rewritten to its semantic core with filter phrases removed.`

// LLMPlanner asks a language model for the plan. Parse failures and model
// errors are swallowed: the heuristic plan is returned instead, so the
// planner is never a hard dependency.
type LLMPlanner struct {
	client   llm.Client
	fallback *HeuristicPlanner
	timeout  time.Duration
	logger   *slog.Logger
}

// NewLLMPlanner wraps a chat client. timeout bounds each planning call.
func NewLLMPlanner(client llm.Client, timeout time.Duration, logger *slog.Logger) *LLMPlanner {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMPlanner{
		client:   client,
		fallback: NewHeuristicPlanner(),
		timeout:  timeout,
		logger:   logger,
	}
}

// Plan implements Planner.
func (p *LLMPlanner) Plan(ctx context.Context, query string, seed *Intent) (*Plan, error) {
	if p.client == nil {
		return p.fallback.Plan(ctx, query, seed)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Chat(callCtx, []types.Message{
		{Role: "system", Content: plannerSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Query: %s", query)},
	})
	if err != nil {
		p.logger.Warn("planner call failed, using heuristic plan", "error", err)
		return p.fallback.Plan(ctx, query, seed)
	}

	plan, err := parsePlan(resp.Content)
	if err != nil {
		p.logger.Warn("planner returned unparsable plan, using heuristic plan",
			"error", err)
		return p.fallback.Plan(ctx, query, seed)
	}
	return plan, nil
}

// parsePlan extracts the JSON plan from model output, repairing common
// LLM JSON defects first.
func parsePlan(content string) (*Plan, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty planner response")
	}

	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		repaired = content
	}

	plan := &Plan{}
	if err := json.Unmarshal([]byte(repaired), plan); err != nil {
		return nil, fmt.Errorf("planner output is not a JSON plan: %w", err)
	}
	return plan, nil
}

// Merge folds a plan into an intent, overriding only the fields the plan
// actually set. Alias expansion for a planned location happens via the
// provided lookup so planned codes get the same token treatment as
// extracted ones.
func (i *Intent) Merge(plan *Plan, locationAliases func(code string) []string) {
	if plan == nil {
		return
	}
	if plan.FilterType != "" {
		i.Filters.NodeType = types.NodeType(plan.FilterType)
	}
	if len(plan.PersonRoles) > 0 {
		i.Filters.PersonRoles = plan.PersonRoles
	}
	if plan.MinRepoStars > 0 {
		i.Filters.MinRepoStars = plan.MinRepoStars
	}
	if plan.Location != "" && locationAliases != nil {
		if toks := locationAliases(plan.Location); len(toks) > 0 {
			i.Filters.LocationCode = plan.Location
			i.Filters.LocationTokens = toks
		}
	}
	if plan.QueryFocus != "" {
		i.QueryFocus = plan.QueryFocus
		i.CleanQuery = plan.QueryFocus
	}
}
