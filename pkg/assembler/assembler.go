// Package assembler turns a merged match list into the final response:
// deduplicated matches, a visualization graph and a natural-language
// summary.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/venturegraph/venturegraph/pkg/llm"
	"github.com/venturegraph/venturegraph/pkg/types"
)

// FallbackSummary is returned whenever summarization cannot run: no
// results, no model, or a model failure.
const FallbackSummary = "No relevant information found for your query."

// graphNodeLimit caps how many top matches the visualization graph shows.
const graphNodeLimit = 5

// summaryGroupLimit caps how many matches of each group feed the prompt.
const summaryGroupLimit = 3

// Assembler builds responses. The chat client may be nil, in which case
// every summary is the fallback string.
type Assembler struct {
	chat    llm.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an assembler. timeout bounds each summarization call.
func New(chat llm.Client, timeout time.Duration, logger *slog.Logger) *Assembler {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{chat: chat, timeout: timeout, logger: logger}
}

// Dedupe removes duplicate ids, keeping the first (highest-ranked)
// occurrence of each.
func Dedupe(matches []types.Match) []types.Match {
	seen := make(map[string]struct{}, len(matches))
	out := matches[:0]
	for _, m := range matches {
		if m.ID == "" {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// BuildGraph produces the node/edge structure for the top matches. An
// expansion edge may point back at a seed outside the top set; such
// sources get a stub node so no edge dangles.
func BuildGraph(matches []types.Match) *types.GraphData {
	top := matches
	if len(top) > graphNodeLimit {
		top = top[:graphNodeLimit]
	}

	graph := &types.GraphData{}
	present := make(map[string]struct{}, len(top))
	for _, m := range top {
		present[m.ID] = struct{}{}
		graph.Nodes = append(graph.Nodes, types.GraphNode{
			ID:    m.ID,
			Label: m.Name(),
			Type:  m.Type,
			Score: m.Score,
		})
	}

	for _, m := range top {
		if m.Connection == nil {
			continue
		}
		from := m.Connection.FromID
		if _, ok := present[from]; !ok {
			present[from] = struct{}{}
			graph.Nodes = append(graph.Nodes, types.GraphNode{
				ID:    from,
				Label: stubLabel(from),
				Type:  types.UnknownNodeType,
			})
		}
		label := ""
		if n := len(m.Connection.Path); n > 0 {
			label = m.Connection.Path[n-1]
		}
		graph.Edges = append(graph.Edges, types.GraphEdge{
			From:  from,
			To:    m.ID,
			Label: label,
		})
	}
	return graph
}

// stubLabel names a placeholder node for an id with no loaded properties.
func stubLabel(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("Entity %s...", id)
}

// Summarize produces a short natural-language answer over the matches.
// It never fails: any problem yields the fallback string.
func (a *Assembler) Summarize(ctx context.Context, query string, matches []types.Match) string {
	if len(matches) == 0 || a.chat == nil {
		return FallbackSummary
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.chat.Chat(callCtx, []types.Message{
		{Role: "system", Content: "You are a concise analyst of a startup ecosystem knowledge graph. Answer in at most three sentences using only the provided results."},
		{Role: "user", Content: buildSummaryPrompt(query, matches)},
	})
	if err != nil {
		a.logger.Warn("summarization failed, returning fallback", "error", err)
		return FallbackSummary
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return FallbackSummary
	}
	return summary
}

// buildSummaryPrompt partitions matches into direct hits and graph-reached
// ones and renders a bounded prompt: at most summaryGroupLimit entries per
// group, one line each, so prompt size never scales with result count.
func buildSummaryPrompt(query string, matches []types.Match) string {
	var direct, connected []types.Match
	for _, m := range matches {
		if m.Connection == nil {
			direct = append(direct, m)
		} else {
			connected = append(connected, m)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", query)

	if len(direct) > 0 {
		b.WriteString("\nDirect matches:\n")
		for i, m := range direct {
			if i >= summaryGroupLimit {
				break
			}
			writeMatchLine(&b, m)
		}
	}
	if len(connected) > 0 {
		b.WriteString("\nConnected through the graph:\n")
		for i, m := range connected {
			if i >= summaryGroupLimit {
				break
			}
			writeMatchLine(&b, m)
			fmt.Fprintf(&b, "  (reached via %s, %d hops)\n",
				strings.Join(m.Connection.Path, " -> "), m.Connection.Distance)
		}
	}
	return b.String()
}

func writeMatchLine(b *strings.Builder, m types.Match) {
	fmt.Fprintf(b, "- %s [%s]", m.Name(), m.Type)
	if desc, ok := m.Data["description"].(string); ok && desc != "" {
		if len(desc) > 200 {
			desc = desc[:200]
		}
		fmt.Fprintf(b, ": %s", desc)
	}
	b.WriteString("\n")
}
